package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ldi/nodeflow/pkg/models"
)

func (db *DB) CreateTeam(ctx context.Context, t *models.Team) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO teams (id, project_id, name)
		VALUES (?, ?, ?)
		RETURNING created_at
	`
	if err := db.QueryRowContext(ctx, query, t.ID, t.ProjectID, t.Name).Scan(&t.CreatedAt); err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// GetTeam returns the team with its members, or nil when it does not exist.
func (db *DB) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	return db.getTeam(ctx, db.DB, id)
}

func (db *DB) getTeam(ctx context.Context, exec executor, id string) (*models.Team, error) {
	t := &models.Team{}
	err := exec.QueryRowContext(ctx,
		`SELECT id, project_id, name, created_at FROM teams WHERE id = ?`, id,
	).Scan(&t.ID, &t.ProjectID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	members, err := listTeamMembers(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	t.Members = members
	return t, nil
}

// ListTeams returns the teams of a project with their members.
func (db *DB) ListTeams(ctx context.Context, projectID string) ([]*models.Team, error) {
	return db.listTeams(ctx, db.DB, projectID)
}

func (db *DB) listTeams(ctx context.Context, exec executor, projectID string) ([]*models.Team, error) {
	rows, err := exec.QueryContext(ctx,
		`SELECT id, project_id, name, created_at FROM teams WHERE project_id = ? ORDER BY name ASC`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	var teams []*models.Team
	byID := make(map[string]*models.Team)
	for rows.Next() {
		t := &models.Team{}
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	members, err := exec.QueryContext(ctx, `
		SELECT m.team_id, m.user_id, m.role
		FROM team_members m
		JOIN teams t ON t.id = m.team_id
		WHERE t.project_id = ?
		ORDER BY m.team_id, m.user_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer members.Close()

	for members.Next() {
		var m models.TeamMember
		if err := members.Scan(&m.TeamID, &m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		if t, ok := byID[m.TeamID]; ok {
			t.Members = append(t.Members, m)
		}
	}
	if err := members.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return teams, nil
}

func (db *DB) AddTeamMember(ctx context.Context, m models.TeamMember) error {
	if m.Role == "" {
		m.Role = "member"
	}

	query := `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT (team_id, user_id) DO UPDATE SET role = excluded.role
	`
	if _, err := db.ExecContext(ctx, query, m.TeamID, m.UserID, m.Role); err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) RemoveTeamMember(ctx context.Context, teamID, userID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound("team member", teamID+"/"+userID)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) ListTeamMembers(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	return listTeamMembers(ctx, db.DB, teamID)
}

func listTeamMembers(ctx context.Context, exec executor, teamID string) ([]models.TeamMember, error) {
	rows, err := exec.QueryContext(ctx,
		`SELECT team_id, user_id, role FROM team_members WHERE team_id = ? ORDER BY user_id`, teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	var members []models.TeamMember
	for rows.Next() {
		var m models.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return members, nil
}

func (db *DB) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		`SELECT 1 FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return true, nil
}
