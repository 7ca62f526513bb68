package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/pkg/models"
)

// ErrCrossProject is returned when an edge would connect nodes of two projects.
var ErrCrossProject = errors.New("edge endpoints belong to different projects")

// CreateEdge validates and inserts an edge in one transaction. The project's
// edges are read inside the transaction, so a concurrent insert cannot slip a
// cycle in between the check and the write. Rejections from graph.ValidateEdge
// are returned unchanged.
func (db *DB) CreateEdge(ctx context.Context, e *models.Edge) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		return db.createEdge(ctx, tx, e)
	})
	if err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) createEdge(ctx context.Context, exec executor, e *models.Edge) error {
	projectID, err := edgeProject(ctx, exec, e.FromNodeID, e.ToNodeID)
	if err != nil {
		return err
	}

	existing, err := listEdges(ctx, exec, projectID)
	if err != nil {
		return err
	}
	if err := graph.ValidateEdge(existing, *e); err != nil {
		return err
	}

	return insertEdge(ctx, exec, e)
}

func insertEdge(ctx context.Context, exec executor, e *models.Edge) error {
	query := `
		INSERT INTO edges (from_node_id, to_node_id, relation)
		VALUES (?, ?, ?)
		RETURNING created_at
	`
	err := exec.QueryRowContext(ctx, query, e.FromNodeID, e.ToNodeID, e.Relation).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}
	return nil
}

// CheckEdge runs the same validation as CreateEdge without writing anything.
func (db *DB) CheckEdge(ctx context.Context, e models.Edge) error {
	projectID, err := edgeProject(ctx, db.DB, e.FromNodeID, e.ToNodeID)
	if err != nil {
		return err
	}

	existing, err := listEdges(ctx, db.DB, projectID)
	if err != nil {
		return err
	}
	return graph.ValidateEdge(existing, e)
}

// UpdateEdgeRelation changes the relation of an existing edge. Switching to
// DEPENDS_ON re-runs cycle detection against the rest of the project's edges.
func (db *DB) UpdateEdgeRelation(ctx context.Context, from, to string, oldRel, newRel models.Relation) error {
	if oldRel == newRel {
		return nil
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		projectID, err := edgeProject(ctx, tx, from, to)
		if err != nil {
			return err
		}

		existing, err := listEdges(ctx, tx, projectID)
		if err != nil {
			return err
		}

		current := models.EdgeKey{From: from, To: to, Relation: oldRel}
		others := make([]models.Edge, 0, len(existing))
		found := false
		for _, e := range existing {
			if e.Key() == current {
				found = true
				continue
			}
			others = append(others, e)
		}
		if !found {
			return notFound("edge", fmt.Sprintf("%s -[%s]-> %s", from, oldRel, to))
		}

		proposed := models.Edge{FromNodeID: from, ToNodeID: to, Relation: newRel}
		if err := graph.ValidateEdge(others, proposed); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE edges SET relation = ?
			WHERE from_node_id = ? AND to_node_id = ? AND relation = ?
		`, newRel, from, to, oldRel)
		if err != nil {
			return fmt.Errorf("failed to update edge relation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) DeleteEdge(ctx context.Context, from, to string, rel models.Relation) error {
	query := `DELETE FROM edges WHERE from_node_id = ? AND to_node_id = ? AND relation = ?`
	res, err := db.ExecContext(ctx, query, from, to, rel)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return notFound("edge", fmt.Sprintf("%s -[%s]-> %s", from, rel, to))
	}

	db.triggerChange(ctx)
	return nil
}

// ListEdges returns every edge whose source node belongs to the project.
func (db *DB) ListEdges(ctx context.Context, projectID string) ([]models.Edge, error) {
	return listEdges(ctx, db.DB, projectID)
}

func listEdges(ctx context.Context, exec executor, projectID string) ([]models.Edge, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT e.from_node_id, e.to_node_id, e.relation, e.created_at
		FROM edges e
		JOIN nodes n ON n.id = e.from_node_id
		WHERE n.project_id = ?
		ORDER BY e.created_at ASC, e.from_node_id, e.to_node_id, e.relation
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var edges []models.Edge
	for rows.Next() {
		var e models.Edge
		if err := rows.Scan(&e.FromNodeID, &e.ToNodeID, &e.Relation, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return edges, nil
}

// edgeProject resolves the project shared by both endpoints.
func edgeProject(ctx context.Context, exec executor, from, to string) (string, error) {
	fromProject, err := nodeProject(ctx, exec, from)
	if err != nil {
		return "", err
	}
	if from == to {
		return fromProject, nil
	}
	toProject, err := nodeProject(ctx, exec, to)
	if err != nil {
		return "", err
	}
	if fromProject != toProject {
		return "", fmt.Errorf("%w: %s and %s", ErrCrossProject, from, to)
	}
	return fromProject, nil
}

func nodeProject(ctx context.Context, exec executor, nodeID string) (string, error) {
	var projectID string
	err := exec.QueryRowContext(ctx, `SELECT project_id FROM nodes WHERE id = ?`, nodeID).Scan(&projectID)
	if err == sql.ErrNoRows {
		return "", notFound("node", nodeID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up node: %w", err)
	}
	return projectID, nil
}
