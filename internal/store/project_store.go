package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/01moynul/projecthub-golang/internal/models"
)

// RoleOwner and RoleMember are the project_members.role values.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// CreateProject inserts the project and enrolls its owner as a member in one
// transaction. A taken slug gets a numeric suffix.
func (s *SQLStore) CreateProject(ctx context.Context, p *models.Project) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. --- Resolve a unique slug ---
	base := p.Slug
	for n := 2; ; n++ {
		var taken int
		if err := tx.GetContext(ctx, &taken, `SELECT COUNT(*) FROM projects WHERE slug = ?`, p.Slug); err != nil {
			return fmt.Errorf("checking slug: %w", err)
		}
		if taken == 0 {
			break
		}
		p.Slug = fmt.Sprintf("%s-%d", base, n)
	}

	// 2. --- Insert the project ---
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts
	result, err := tx.ExecContext(ctx, `
		INSERT INTO projects (name, slug, description, owner_email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Slug, p.Description, p.OwnerEmail, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	if p.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("reading project id: %w", err)
	}

	// 3. --- Owner is a member ---
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO project_members (project_id, member_email, role, created_at)
		VALUES (?, ?, ?, ?)`, p.ID, p.OwnerEmail, RoleOwner, ts); err != nil {
		return fmt.Errorf("adding project owner: %w", err)
	}

	return tx.Commit()
}

// GetProject loads a project by id.
func (s *SQLStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var p models.Project
	err := s.db.GetContext(ctx, &p, `
		SELECT id, name, slug, description, owner_email, created_at, updated_at
		FROM projects WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting project %d: %w", id, err)
	}
	return &p, nil
}

// AddMember enrolls m in its project. ErrConflict if already a member.
func (s *SQLStore) AddMember(ctx context.Context, m *models.ProjectMember) error {
	isMember, err := s.IsMember(ctx, m.ProjectID, m.MemberEmail)
	if err != nil {
		return err
	}
	if isMember {
		return ErrConflict
	}

	if m.Role == "" {
		m.Role = RoleMember
	}
	m.CreatedAt = now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO project_members (project_id, member_email, role, created_at)
		VALUES (?, ?, ?, ?)`, m.ProjectID, m.MemberEmail, m.Role, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding project member: %w", err)
	}
	return nil
}

// IsMember reports whether email belongs to the project.
func (s *SQLStore) IsMember(ctx context.Context, projectID int64, email string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM project_members WHERE project_id = ? AND member_email = ?`, projectID, email)
	if err != nil {
		return false, fmt.Errorf("checking project membership: %w", err)
	}
	return count > 0, nil
}
