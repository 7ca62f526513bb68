package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/pkg/models"
)

func setupTeamRequest(t *testing.T, db *DB, members ...string) (*models.Team, *models.Request) {
	t.Helper()
	ctx := context.Background()

	p := mustProject(t, db, "Launch")
	n := mustNode(t, db, p.ID, "Contract", "alice", models.ManualStatusDoing)

	team := &models.Team{ProjectID: p.ID, Name: "Legal"}
	require.NoError(t, db.CreateTeam(ctx, team))
	for _, m := range members {
		require.NoError(t, db.AddTeamMember(ctx, models.TeamMember{TeamID: team.ID, UserID: m}))
	}

	r := &models.Request{NodeID: n.ID, RequesterID: "alice", TargetTeamID: team.ID, Question: "Is clause 4 ok?"}
	require.NoError(t, db.CreateRequest(ctx, r))
	return team, r
}

func TestCreateRequest_Validation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")
	n := mustNode(t, db, p.ID, "A", "alice", models.ManualStatusTodo)

	err := db.CreateRequest(ctx, &models.Request{NodeID: n.ID})
	assert.ErrorIs(t, err, graph.ErrAmbiguousTarget)

	err = db.CreateRequest(ctx, &models.Request{NodeID: n.ID, TargetUserID: "bob", TargetTeamID: "t1"})
	assert.ErrorIs(t, err, graph.ErrAmbiguousTarget)

	err = db.CreateRequest(ctx, &models.Request{NodeID: n.ID, TargetTeamID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	r := &models.Request{NodeID: n.ID, TargetUserID: "bob", Question: "When?"}
	require.NoError(t, db.CreateRequest(ctx, r))
	assert.Equal(t, models.RequestStatusOpen, r.Status)

	got, err := db.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bob", got.TargetUserID)
	assert.Empty(t, got.TargetTeamID)
	assert.Nil(t, got.ClaimedAt)
}

func TestTransitionRequest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")
	n := mustNode(t, db, p.ID, "A", "alice", models.ManualStatusTodo)

	r := &models.Request{NodeID: n.ID, TargetUserID: "bob"}
	require.NoError(t, db.CreateRequest(ctx, r))

	_, err := db.TransitionRequest(ctx, r.ID, models.RequestStatusApproved, "")
	assert.ErrorIs(t, err, graph.ErrInvalidTransition)

	require.NoError(t, db.SaveResponseDraft(ctx, r.ID, "probably friday"))

	updated, err := db.TransitionRequest(ctx, r.ID, models.RequestStatusResponded, "Friday")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusResponded, updated.Status)
	assert.Equal(t, "Friday", updated.Response)
	assert.Equal(t, "probably friday", updated.ResponseDraft)

	updated, err = db.TransitionRequest(ctx, r.ID, models.RequestStatusClosed, "")
	require.NoError(t, err)
	assert.Equal(t, "Friday", updated.Response, "empty response keeps the stored one")

	_, err = db.TransitionRequest(ctx, r.ID, models.RequestStatusOpen, "")
	assert.ErrorIs(t, err, graph.ErrRequestClosed)

	_, err = db.TransitionRequest(ctx, "missing", models.RequestStatusClosed, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimRequest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, r := setupTeamRequest(t, db, "bob", "carol")

	_, err := db.ClaimRequest(ctx, r.ID, "mallory")
	assert.ErrorIs(t, err, graph.ErrNotTeamMember)

	claimed, err := db.ClaimRequest(ctx, r.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", claimed.TargetUserID)
	assert.Empty(t, claimed.TargetTeamID)
	assert.NotNil(t, claimed.ClaimedAt)

	_, err = db.ClaimRequest(ctx, r.ID, "carol")
	assert.ErrorIs(t, err, graph.ErrAlreadyClaimed)

	got, err := db.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.TargetUserID)
}

func TestClaimRequest_Concurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	members := make([]string, 8)
	for i := range members {
		members[i] = fmt.Sprintf("user-%d", i)
	}
	_, r := setupTeamRequest(t, db, members...)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  int
	)
	for _, m := range members {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := db.ClaimRequest(ctx, r.ID, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, userID)
			case errors.Is(err, graph.ErrAlreadyClaimed):
				losers++
			default:
				t.Errorf("unexpected claim error for %s: %v", userID, err)
			}
		}(m)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, len(members)-1, losers)

	got, err := db.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.TargetUserID)
}

func TestClaimRequest_UserTargeted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")
	n := mustNode(t, db, p.ID, "A", "alice", models.ManualStatusTodo)

	r := &models.Request{NodeID: n.ID, TargetUserID: "bob"}
	require.NoError(t, db.CreateRequest(ctx, r))

	_, err := db.ClaimRequest(ctx, r.ID, "bob")
	assert.ErrorIs(t, err, graph.ErrNotTeamRequest)
}
