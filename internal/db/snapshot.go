package db

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/pkg/models"
)

const snapshotVersion = 1

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (db *DB) EnableAutoSnapshot(path string) {
	db.SetOnChange(func(ctx context.Context) {
		// The write already committed; a failed export is only logged.
		if err := db.ExportSnapshot(ctx, path); err != nil {
			db.logger.Warn("auto snapshot failed", "path", path, "error", err)
		}
	})
}

// ExportSnapshot writes every user, project, team, node, edge and request as
// one JSON object per line. The file is replaced atomically through a
// temporary file in the same directory.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	if err := db.writeSnapshot(ctx, w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func (db *DB) writeSnapshot(ctx context.Context, w *bufio.Writer) error {
	if err := writeRecord(w, "meta", map[string]int{"version": snapshotVersion}); err != nil {
		return err
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := writeRecord(w, "user", u); err != nil {
			return err
		}
	}

	projects, err := db.ListProjects(ctx)
	if err != nil {
		return err
	}
	for i := len(projects) - 1; i >= 0; i-- {
		p := projects[i]
		if err := writeRecord(w, "project", p); err != nil {
			return err
		}

		s, err := db.LoadSnapshot(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, t := range s.Teams {
			if err := writeRecord(w, "team", t); err != nil {
				return err
			}
		}
		for _, n := range s.Nodes {
			n.ProjectName = ""
			if err := writeRecord(w, "node", n); err != nil {
				return err
			}
		}
		for _, e := range s.Edges {
			if err := writeRecord(w, "edge", e); err != nil {
				return err
			}
		}
		for _, r := range s.Requests {
			if err := writeRecord(w, "request", r); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeRecord writes v as a JSON object carrying a record_type key.
func writeRecord(w *bufio.Writer, recordType string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", recordType, err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", recordType, err)
	}
	fields["record_type"] = json.RawMessage(fmt.Sprintf("%q", recordType))

	line, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", recordType, err)
	}
	if _, err := w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write snapshot line: %w", err)
	}
	return nil
}

// ImportSnapshot reads a JSONL snapshot and merges it into the database in one
// transaction. Records are matched by id; edges go through the same validation
// as CreateEdge, and edges that already exist are skipped.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			if err := db.importRecord(ctx, tx, line); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("scanner error: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) importRecord(ctx context.Context, tx *sql.Tx, line []byte) error {
	var base struct {
		RecordType string `json:"record_type"`
		Version    int    `json:"version"`
	}
	if err := json.Unmarshal(line, &base); err != nil {
		return fmt.Errorf("failed to unmarshal base record: %w", err)
	}

	switch base.RecordType {
	case "meta":
		if base.Version > snapshotVersion {
			return fmt.Errorf("unsupported snapshot version %d", base.Version)
		}
		return nil

	case "user":
		var u models.User
		if err := json.Unmarshal(line, &u); err != nil {
			return fmt.Errorf("failed to unmarshal user: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, name) VALUES (?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
			u.ID, u.Name)
		if err != nil {
			return fmt.Errorf("failed to sync user %s: %w", u.ID, err)
		}

	case "project":
		var p models.Project
		if err := json.Unmarshal(line, &p); err != nil {
			return fmt.Errorf("failed to unmarshal project: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, description = excluded.description,
				created_at = excluded.created_at, updated_at = excluded.updated_at`,
			p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to sync project %s: %w", p.Name, err)
		}

	case "team":
		var t models.Team
		if err := json.Unmarshal(line, &t); err != nil {
			return fmt.Errorf("failed to unmarshal team: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, project_id, name, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
			t.ID, t.ProjectID, t.Name, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to sync team %s: %w", t.Name, err)
		}
		for _, m := range t.Members {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO team_members (team_id, user_id, role) VALUES (?, ?, ?)
				ON CONFLICT (team_id, user_id) DO UPDATE SET role = excluded.role`,
				t.ID, m.UserID, m.Role)
			if err != nil {
				return fmt.Errorf("failed to sync member %s of team %s: %w", m.UserID, t.Name, err)
			}
		}

	case "node":
		var n models.Node
		if err := json.Unmarshal(line, &n); err != nil {
			return fmt.Errorf("failed to unmarshal node: %w", err)
		}
		if !n.ManualStatus.IsValid() {
			return fmt.Errorf("node %s has invalid manual status %q", n.ID, n.ManualStatus)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (
				id, project_id, title, description, type, priority, due_at,
				manual_status, owner_id, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				title = excluded.title, description = excluded.description, type = excluded.type,
				priority = excluded.priority, due_at = excluded.due_at,
				manual_status = excluded.manual_status, owner_id = excluded.owner_id,
				created_at = excluded.created_at, updated_at = excluded.updated_at`,
			n.ID, n.ProjectID, n.Title, n.Description, n.Type, n.Priority, n.DueAt,
			n.ManualStatus, n.OwnerID, n.CreatedAt, n.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to sync node %s: %w", n.Title, err)
		}
		if err := replaceOwners(ctx, tx, n.ID, n.OwnerIDs); err != nil {
			return err
		}
		if err := replaceTeams(ctx, tx, n.ID, n.TeamIDs); err != nil {
			return err
		}

	case "edge":
		var e models.Edge
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("failed to unmarshal edge: %w", err)
		}
		err := db.createEdge(ctx, tx, &e)
		if errors.Is(err, graph.ErrDuplicateEdge) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to insert edge %s -> %s: %w", e.FromNodeID, e.ToNodeID, err)
		}

	case "request":
		var r models.Request
		if err := json.Unmarshal(line, &r); err != nil {
			return fmt.Errorf("failed to unmarshal request: %w", err)
		}
		if err := graph.ValidateTarget(r); err != nil {
			return fmt.Errorf("request %s: %w", r.ID, err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO requests (
				id, node_id, status, requester_id, target_user_id, target_team_id,
				question, response_draft, response, created_at, updated_at, claimed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				status = excluded.status, target_user_id = excluded.target_user_id,
				target_team_id = excluded.target_team_id, question = excluded.question,
				response_draft = excluded.response_draft, response = excluded.response,
				updated_at = excluded.updated_at, claimed_at = excluded.claimed_at`,
			r.ID, r.NodeID, r.Status, r.RequesterID, nullString(r.TargetUserID), nullString(r.TargetTeamID),
			r.Question, r.ResponseDraft, r.Response, r.CreatedAt, r.UpdatedAt, r.ClaimedAt)
		if err != nil {
			return fmt.Errorf("failed to sync request %s: %w", r.ID, err)
		}

	default:
		return fmt.Errorf("unknown record type %q", base.RecordType)
	}
	return nil
}
