package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/nodeflow/pkg/models"
)

// UpsertUser records a display name for a user id.
func (db *DB) UpsertUser(ctx context.Context, u models.User) error {
	query := `
		INSERT INTO users (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name
	`
	if _, err := db.ExecContext(ctx, query, u.ID, u.Name); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	err := db.QueryRowContext(ctx, `SELECT id, name FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	return listUsers(ctx, db.DB)
}

func listUsers(ctx context.Context, exec executor) ([]models.User, error) {
	rows, err := exec.QueryContext(ctx, `SELECT id, name FROM users ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return users, nil
}
