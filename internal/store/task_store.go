package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/01moynul/projecthub-golang/internal/models"
)

const taskSelect = `
	SELECT t.id, t.project_id, t.title, t.description, t.assignee_email, t.status,
	       t.due_date, t.reminder_sent, t.overdue_notified, t.created_at, t.updated_at,
	       p.name AS project_name, p.owner_email AS owner_email
	FROM tasks t
	JOIN projects p ON p.id = t.project_id`

// CreateTask inserts a task in the todo state.
func (s *SQLStore) CreateTask(ctx context.Context, t *models.Task) error {
	ts := now()
	t.Status = models.TaskTodo
	t.CreatedAt, t.UpdatedAt = ts, ts
	if t.DueDate != nil {
		due := t.DueDate.UTC().Truncate(time.Second)
		t.DueDate = &due
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (project_id, title, description, assignee_email, status, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, t.Title, t.Description, t.AssigneeEmail, t.Status, t.DueDate, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	if t.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("reading task id: %w", err)
	}
	return nil
}

// GetTask loads a task with its project name and owner.
func (s *SQLStore) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var t models.Task
	if err := s.db.GetContext(ctx, &t, taskSelect+` WHERE t.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}
	return &t, nil
}

// TransitionTask moves the task to `to` only if its status is one of `from`.
// ErrNotFound if the task is missing, ErrConflict if its status does not match.
func (s *SQLStore) TransitionTask(ctx context.Context, id int64, from []models.TaskStatus, to models.TaskStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("transition to %s: no source states", to)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	args := []any{to, now(), id}
	for _, st := range from {
		args = append(args, st)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("updating task %d status: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := s.GetTask(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// TasksDueBetween returns open tasks due in (from, to] that have not had a reminder.
func (s *SQLStore) TasksDueBetween(ctx context.Context, from, to time.Time) ([]*models.Task, error) {
	var tasks []*models.Task
	err := s.db.SelectContext(ctx, &tasks, taskSelect+`
		WHERE t.status <> ? AND t.due_date IS NOT NULL
		  AND t.due_date > ? AND t.due_date <= ?
		  AND t.reminder_sent = 0
		ORDER BY t.due_date, t.id`,
		models.TaskDone, from.UTC().Truncate(time.Second), to.UTC().Truncate(time.Second))
	if err != nil {
		return nil, fmt.Errorf("listing tasks due soon: %w", err)
	}
	return tasks, nil
}

// TasksOverdue returns open tasks whose due date is at or before now and that
// have not been reported as overdue.
func (s *SQLStore) TasksOverdue(ctx context.Context, at time.Time) ([]*models.Task, error) {
	var tasks []*models.Task
	err := s.db.SelectContext(ctx, &tasks, taskSelect+`
		WHERE t.status <> ? AND t.due_date IS NOT NULL
		  AND t.due_date <= ?
		  AND t.overdue_notified = 0
		ORDER BY t.due_date, t.id`,
		models.TaskDone, at.UTC().Truncate(time.Second))
	if err != nil {
		return nil, fmt.Errorf("listing overdue tasks: %w", err)
	}
	return tasks, nil
}

func (s *SQLStore) MarkReminderSent(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE tasks SET reminder_sent = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("flagging reminder for task %d: %w", id, err)
	}
	return nil
}

func (s *SQLStore) MarkOverdueNotified(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE tasks SET overdue_notified = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("flagging overdue task %d: %w", id, err)
	}
	return nil
}
