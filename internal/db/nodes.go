package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ldi/nodeflow/pkg/models"
)

const nodeColumns = `
		n.id, n.project_id, n.title, n.description, n.type, n.priority, n.due_at,
		n.manual_status, n.owner_id, n.created_at, n.updated_at, p.name AS project_name`

// CreateNode inserts a new node together with its owners and teams.
// If n.ID is empty, a new UUID is generated. An empty manual status defaults to TODO.
func (db *DB) CreateNode(ctx context.Context, n *models.Node) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		return db.createNode(ctx, tx, n)
	})
	if err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) createNode(ctx context.Context, exec executor, n *models.Node) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.ManualStatus == "" {
		n.ManualStatus = models.ManualStatusTodo
	}
	if !n.ManualStatus.IsValid() {
		return fmt.Errorf("invalid manual status: %s", n.ManualStatus)
	}

	query := `
		INSERT INTO nodes (id, project_id, title, description, type, priority, due_at, manual_status, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query,
		n.ID, n.ProjectID, n.Title, n.Description, n.Type, n.Priority, n.DueAt, n.ManualStatus, n.OwnerID,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	if err := replaceOwners(ctx, exec, n.ID, n.OwnerIDs); err != nil {
		return err
	}
	return replaceTeams(ctx, exec, n.ID, n.TeamIDs)
}

// GetNode retrieves a node by its ID, including owners and teams.
func (db *DB) GetNode(ctx context.Context, id string) (*models.Node, error) {
	return db.getNode(ctx, db.DB, id)
}

func (db *DB) getNode(ctx context.Context, exec executor, id string) (*models.Node, error) {
	query := `SELECT ` + nodeColumns + `
		FROM nodes n
		JOIN projects p ON p.id = n.project_id
		WHERE n.id = ?
	`
	nodes, err := queryNodes(ctx, exec, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// GetNodeByTitle returns the oldest node with the given title in a project.
func (db *DB) GetNodeByTitle(ctx context.Context, projectID, title string) (*models.Node, error) {
	return db.getNodeByTitle(ctx, db.DB, projectID, title)
}

func (db *DB) getNodeByTitle(ctx context.Context, exec executor, projectID, title string) (*models.Node, error) {
	query := `SELECT ` + nodeColumns + `
		FROM nodes n
		JOIN projects p ON p.id = n.project_id
		WHERE n.project_id = ? AND n.title = ?
		ORDER BY n.created_at ASC
		LIMIT 1
	`
	nodes, err := queryNodes(ctx, exec, query, projectID, title)
	if err != nil {
		return nil, fmt.Errorf("failed to get node by title: %w", err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// ListNodes returns the nodes of a project, optionally filtered by manual status.
func (db *DB) ListNodes(ctx context.Context, projectID string, status *models.ManualStatus) ([]*models.Node, error) {
	return db.listNodes(ctx, db.DB, projectID, status)
}

func (db *DB) listNodes(ctx context.Context, exec executor, projectID string, status *models.ManualStatus) ([]*models.Node, error) {
	query := `SELECT ` + nodeColumns + `
		FROM nodes n
		JOIN projects p ON p.id = n.project_id
		WHERE n.project_id = ?
	`
	args := []any{projectID}

	if status != nil {
		query += " AND n.manual_status = ?"
		args = append(args, *status)
	}

	query += " ORDER BY n.priority DESC, n.created_at ASC, n.id ASC"

	nodes, err := queryNodes(ctx, exec, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return nodes, nil
}

// queryNodes runs a node query and attaches owners and teams to every row.
func queryNodes(ctx context.Context, exec executor, query string, args ...any) ([]*models.Node, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var nodes []*models.Node
	byID := make(map[string]*models.Node)
	for rows.Next() {
		n := &models.Node{}
		err := rows.Scan(
			&n.ID, &n.ProjectID, &n.Title, &n.Description, &n.Type, &n.Priority, &n.DueAt,
			&n.ManualStatus, &n.OwnerID, &n.CreatedAt, &n.UpdatedAt, &n.ProjectName,
		)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
		byID[n.ID] = n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	// The connection pool holds a single connection, so the node rows must be
	// closed before the assignment queries run.
	if err := attachAssignments(ctx, exec, byID); err != nil {
		return nil, err
	}
	return nodes, nil
}

func attachAssignments(ctx context.Context, exec executor, byID map[string]*models.Node) error {
	if len(byID) == 0 {
		return nil
	}

	var projectID string
	for _, n := range byID {
		projectID = n.ProjectID
		break
	}

	owners, err := exec.QueryContext(ctx, `
		SELECT o.node_id, o.user_id
		FROM node_owners o
		JOIN nodes n ON n.id = o.node_id
		WHERE n.project_id = ?
		ORDER BY o.node_id, o.position, o.user_id
	`, projectID)
	if err != nil {
		return fmt.Errorf("failed to query node owners: %w", err)
	}
	for owners.Next() {
		var nodeID, userID string
		if err := owners.Scan(&nodeID, &userID); err != nil {
			owners.Close()
			return fmt.Errorf("failed to scan node owner: %w", err)
		}
		if n, ok := byID[nodeID]; ok {
			n.OwnerIDs = append(n.OwnerIDs, userID)
		}
	}
	if err := owners.Err(); err != nil {
		owners.Close()
		return fmt.Errorf("rows error: %w", err)
	}
	owners.Close()

	teams, err := exec.QueryContext(ctx, `
		SELECT nt.node_id, nt.team_id
		FROM node_teams nt
		JOIN nodes n ON n.id = nt.node_id
		WHERE n.project_id = ?
		ORDER BY nt.node_id, nt.team_id
	`, projectID)
	if err != nil {
		return fmt.Errorf("failed to query node teams: %w", err)
	}
	defer teams.Close()
	for teams.Next() {
		var nodeID, teamID string
		if err := teams.Scan(&nodeID, &teamID); err != nil {
			return fmt.Errorf("failed to scan node team: %w", err)
		}
		if n, ok := byID[nodeID]; ok {
			n.TeamIDs = append(n.TeamIDs, teamID)
		}
	}
	return teams.Err()
}

// UpdateNode updates the descriptive fields and primary owner of a node.
// The manual status is changed only through UpdateManualStatus.
func (db *DB) UpdateNode(ctx context.Context, n *models.Node) error {
	query := `
		UPDATE nodes
		SET title = ?, description = ?, type = ?, priority = ?, due_at = ?, owner_id = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err := db.QueryRowContext(ctx, query,
		n.Title, n.Description, n.Type, n.Priority, n.DueAt, n.OwnerID, n.ID,
	).Scan(&n.UpdatedAt)
	if err == sql.ErrNoRows {
		return notFound("node", n.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// UpdateManualStatus records a human status change on a node.
func (db *DB) UpdateManualStatus(ctx context.Context, id string, status models.ManualStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid manual status: %s", status)
	}

	query := `
		UPDATE nodes
		SET manual_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update manual status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound("node", id)
	}

	db.triggerChange(ctx)
	return nil
}

// DeleteNode deletes a node. Its edges, requests and assignments go with it.
func (db *DB) DeleteNode(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return notFound("node", id)
	}

	db.triggerChange(ctx)
	return nil
}

// SetOwners replaces the additional owners of a node.
func (db *DB) SetOwners(ctx context.Context, nodeID string, userIDs []string) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireNode(ctx, tx, nodeID); err != nil {
			return err
		}
		return replaceOwners(ctx, tx, nodeID, userIDs)
	})
	if err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

// SetTeams replaces the teams a node is assigned to. Every team must belong
// to the node's project.
func (db *DB) SetTeams(ctx context.Context, nodeID string, teamIDs []string) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireNode(ctx, tx, nodeID); err != nil {
			return err
		}
		return replaceTeams(ctx, tx, nodeID, teamIDs)
	})
	if err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func requireNode(ctx context.Context, exec executor, nodeID string) error {
	var one int
	err := exec.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, nodeID).Scan(&one)
	if err == sql.ErrNoRows {
		return notFound("node", nodeID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up node: %w", err)
	}
	return nil
}

func replaceOwners(ctx context.Context, exec executor, nodeID string, userIDs []string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM node_owners WHERE node_id = ?`, nodeID); err != nil {
		return fmt.Errorf("failed to clear node owners: %w", err)
	}
	for i, userID := range userIDs {
		if userID == "" {
			continue
		}
		_, err := exec.ExecContext(ctx,
			`INSERT OR IGNORE INTO node_owners (node_id, user_id, position) VALUES (?, ?, ?)`,
			nodeID, userID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to add node owner %s: %w", userID, err)
		}
	}
	return nil
}

func replaceTeams(ctx context.Context, exec executor, nodeID string, teamIDs []string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM node_teams WHERE node_id = ?`, nodeID); err != nil {
		return fmt.Errorf("failed to clear node teams: %w", err)
	}
	seen := make(map[string]bool, len(teamIDs))
	for _, teamID := range teamIDs {
		if teamID == "" || seen[teamID] {
			continue
		}
		seen[teamID] = true
		res, err := exec.ExecContext(ctx, `
			INSERT OR IGNORE INTO node_teams (node_id, team_id)
			SELECT n.id, t.id
			FROM nodes n
			JOIN teams t ON t.project_id = n.project_id
			WHERE n.id = ? AND t.id = ?
		`, nodeID, teamID)
		if err != nil {
			return fmt.Errorf("failed to add node team %s: %w", teamID, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("team %s is not part of the node's project: %w", teamID, ErrNotFound)
		}
	}
	return nil
}
