package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/pkg/models"
)

const requestColumns = `
		r.id, r.node_id, r.status, r.requester_id, r.target_user_id, r.target_team_id,
		r.question, r.response_draft, r.response, r.created_at, r.updated_at, r.claimed_at`

// requestReturning lists the same columns unqualified, for RETURNING clauses.
const requestReturning = `
		id, node_id, status, requester_id, target_user_id, target_team_id,
		question, response_draft, response, created_at, updated_at, claimed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	r := &models.Request{}
	var targetUser, targetTeam sql.NullString
	err := row.Scan(
		&r.ID, &r.NodeID, &r.Status, &r.RequesterID, &targetUser, &targetTeam,
		&r.Question, &r.ResponseDraft, &r.Response, &r.CreatedAt, &r.UpdatedAt, &r.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}
	r.TargetUserID = targetUser.String
	r.TargetTeamID = targetTeam.String
	return r, nil
}

// CreateRequest opens a request on a node. Exactly one of the user and team
// targets must be set.
func (db *DB) CreateRequest(ctx context.Context, r *models.Request) error {
	if err := graph.ValidateTarget(*r); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = models.RequestStatusOpen
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid request status: %s", r.Status)
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		projectID, err := nodeProject(ctx, tx, r.NodeID)
		if err != nil {
			return err
		}
		if r.TargetTeamID != "" {
			team, err := db.getTeam(ctx, tx, r.TargetTeamID)
			if err != nil {
				return err
			}
			if team == nil || team.ProjectID != projectID {
				return notFound("team", r.TargetTeamID)
			}
		}

		query := `
			INSERT INTO requests (id, node_id, status, requester_id, target_user_id, target_team_id, question, response_draft)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING created_at, updated_at
		`
		err = tx.QueryRowContext(ctx, query,
			r.ID, r.NodeID, r.Status, r.RequesterID, nullString(r.TargetUserID), nullString(r.TargetTeamID),
			r.Question, r.ResponseDraft,
		).Scan(&r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	return getRequest(ctx, db.DB, id)
}

func getRequest(ctx context.Context, exec executor, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests r WHERE r.id = ?`
	r, err := scanRequest(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return r, nil
}

// ListRequests returns every request attached to a node of the project.
func (db *DB) ListRequests(ctx context.Context, projectID string) ([]models.Request, error) {
	return listRequests(ctx, db.DB, projectID)
}

func listRequests(ctx context.Context, exec executor, projectID string) ([]models.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM requests r
		JOIN nodes n ON n.id = r.node_id
		WHERE n.project_id = ?
		ORDER BY r.created_at ASC, r.id ASC
	`
	rows, err := exec.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return requests, nil
}

// TransitionRequest moves a request to a new status. A non-empty response
// replaces the stored final response.
func (db *DB) TransitionRequest(ctx context.Context, id string, to models.RequestStatus, response string) (*models.Request, error) {
	var updated *models.Request
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound("request", id)
		}
		if err := graph.CanTransition(current.Status, to); err != nil {
			return err
		}

		query := `
			UPDATE requests
			SET status = ?, response = COALESCE(NULLIF(?, ''), response), updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
			RETURNING ` + requestReturning
		updated, err = scanRequest(tx.QueryRowContext(ctx, query, to, response, id))
		if err != nil {
			return fmt.Errorf("failed to transition request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	db.triggerChange(ctx)
	return updated, nil
}

// SaveResponseDraft stores a draft answer without changing the request status.
func (db *DB) SaveResponseDraft(ctx context.Context, id, draft string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE requests SET response_draft = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status != 'CLOSED'
	`, draft, id)
	if err != nil {
		return fmt.Errorf("failed to save response draft: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound("open request", id)
	}

	db.triggerChange(ctx)
	return nil
}

// ClaimRequest converts a team-targeted request into a request targeted at
// userID. The request and the team membership are re-read inside the
// transaction, and the conditional UPDATE ... RETURNING guarantees a single
// winner when several members claim at once. Losers get graph.ErrAlreadyClaimed.
func (db *DB) ClaimRequest(ctx context.Context, id, userID string) (*models.Request, error) {
	var claimed *models.Request
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound("request", id)
		}

		var team *models.Team
		if current.TargetTeamID != "" {
			team, err = db.getTeam(ctx, tx, current.TargetTeamID)
			if err != nil {
				return err
			}
		}
		if err := graph.CheckClaim(*current, team, userID); err != nil {
			return err
		}

		query := `
			UPDATE requests
			SET target_user_id = ?, target_team_id = NULL, claimed_at = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND target_team_id IS NOT NULL AND claimed_at IS NULL
			RETURNING ` + requestReturning
		claimed, err = scanRequest(tx.QueryRowContext(ctx, query, userID, db.now(), id))
		if err == sql.ErrNoRows {
			return graph.ErrAlreadyClaimed
		}
		if err != nil {
			return fmt.Errorf("failed to claim request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	db.triggerChange(ctx)
	return claimed, nil
}
