package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/nodeflow/pkg/models"
)

// CommitBatch writes every staged node and edge of a session in one
// transaction. Each edge is validated against the edges already written in
// the same transaction, so a batch that closes a cycle is rolled back as a
// whole. The staged items are taken up front and restored to the session if
// the commit fails, so items staged meanwhile are kept for the next commit.
func (db *DB) CommitBatch(ctx context.Context, sessionID string) error {
	items := db.Staging.GetAndClear(sessionID)
	if len(items.Nodes) == 0 && len(items.Edges) == 0 {
		return nil
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		nodeIDs := make(map[string]string)

		for _, n := range items.Nodes {
			if err := db.createNode(ctx, tx, n); err != nil {
				return fmt.Errorf("failed to create staged node %s: %w", n.Title, err)
			}
			nodeIDs[titleKey(n.ProjectID, n.Title)] = n.ID
		}

		for _, se := range items.Edges {
			from, err := db.resolveStagedEndpoint(ctx, tx, nodeIDs, se.ProjectID, se.FromNodeID, se.FromTitle)
			if err != nil {
				return fmt.Errorf("failed to resolve edge source: %w", err)
			}
			to, err := db.resolveStagedEndpoint(ctx, tx, nodeIDs, se.ProjectID, se.ToNodeID, se.ToTitle)
			if err != nil {
				return fmt.Errorf("failed to resolve edge target: %w", err)
			}

			e := &models.Edge{FromNodeID: from, ToNodeID: to, Relation: se.Relation}
			if err := db.createEdge(ctx, tx, e); err != nil {
				return fmt.Errorf("failed to create staged edge %s -> %s: %w", from, to, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Staging.Restore(sessionID, items)
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) resolveStagedEndpoint(ctx context.Context, exec executor, staged map[string]string, projectID, nodeID, title string) (string, error) {
	if nodeID != "" {
		return nodeID, nil
	}
	if id, ok := staged[titleKey(projectID, title)]; ok {
		return id, nil
	}

	n, err := db.getNodeByTitle(ctx, exec, projectID, title)
	if err != nil {
		return "", err
	}
	if n == nil {
		return "", notFound("node", title)
	}
	return n.ID, nil
}

func titleKey(projectID, title string) string {
	return projectID + "/" + title
}
