package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/pkg/models"
)

// LoadSnapshot reads everything the status engine needs for one project in a
// single transaction.
func (db *DB) LoadSnapshot(ctx context.Context, projectID string) (graph.Snapshot, error) {
	var s graph.Snapshot
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		nodes, err := db.listNodes(ctx, tx, projectID, nil)
		if err != nil {
			return err
		}
		s.Nodes = make([]models.Node, 0, len(nodes))
		for _, n := range nodes {
			s.Nodes = append(s.Nodes, *n)
		}

		if s.Edges, err = listEdges(ctx, tx, projectID); err != nil {
			return err
		}
		if s.Requests, err = listRequests(ctx, tx, projectID); err != nil {
			return err
		}

		teams, err := db.listTeams(ctx, tx, projectID)
		if err != nil {
			return err
		}
		s.Teams = make([]models.Team, 0, len(teams))
		for _, t := range teams {
			s.Teams = append(s.Teams, *t)
		}

		s.Users, err = listUsers(ctx, tx)
		return err
	})
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if dangling := graph.NewIndex(s).Dangling(); len(dangling) > 0 {
		db.logger.Warn("snapshot has edges to missing nodes",
			"project_id", projectID,
			"count", len(dangling),
		)
	}
	return s, nil
}

// ComputeProjectStatuses loads the project's snapshot and computes every node's status.
func (db *DB) ComputeProjectStatuses(ctx context.Context, projectID string) (map[string]models.ComputedStatus, error) {
	s, err := db.LoadSnapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return graph.ComputeAll(s), nil
}

// WithMutation runs fn and reports how computed statuses in the project
// changed across it. Callers use the transitions to notify owners of nodes
// that became unblocked.
func (db *DB) WithMutation(ctx context.Context, projectID string, fn func(ctx context.Context) error) ([]graph.Transition, error) {
	before, err := db.ComputeProjectStatuses(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if err := fn(ctx); err != nil {
		return nil, err
	}

	after, err := db.ComputeProjectStatuses(ctx, projectID)
	if err != nil {
		return nil, err
	}

	transitions := graph.DiffStatuses(before, after)
	for _, t := range transitions {
		if t.Unblocked() {
			db.logger.Info("node unblocked",
				"project_id", projectID,
				"node_id", t.NodeID,
				"from", t.From,
				"to", t.To,
			)
		}
	}
	return transitions, nil
}
