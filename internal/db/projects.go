package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ldi/nodeflow/pkg/models"
)

const projectColumns = `id, name, description, created_at, updated_at`

func (db *DB) CreateProject(ctx context.Context, p *models.Project) error {
	if err := db.createProject(ctx, db.DB, p); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) createProject(ctx context.Context, exec executor, p *models.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO projects (id, name, description)
		VALUES (?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query, p.ID, p.Name, p.Description).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (db *DB) GetProject(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	p := &models.Project{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

func (db *DB) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	return db.getProjectByName(ctx, db.DB, name)
}

func (db *DB) getProjectByName(ctx context.Context, exec executor, name string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE name = ?`
	p := &models.Project{}
	err := exec.QueryRowContext(ctx, query, name).Scan(
		&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project by name: %w", err)
	}

	return p, nil
}

// ResolveProject looks a project up by id first and then by name.
func (db *DB) ResolveProject(ctx context.Context, ref string) (*models.Project, error) {
	p, err := db.GetProject(ctx, ref)
	if err != nil || p != nil {
		return p, err
	}
	return db.GetProjectByName(ctx, ref)
}

func (db *DB) ListProjects(ctx context.Context) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC, name ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return projects, nil
}

func (db *DB) UpdateProject(ctx context.Context, p *models.Project) error {
	query := `
		UPDATE projects
		SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err := db.QueryRowContext(ctx, query, p.Name, p.Description, p.ID).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return notFound("project", p.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// DeleteProject removes a project together with its nodes, edges, requests and teams.
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return notFound("project", id)
	}

	db.triggerChange(ctx)
	return nil
}
