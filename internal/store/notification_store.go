package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/01moynul/projecthub-golang/internal/models"
)

const notificationColumns = `
	id, recipient_id, type, title, message, is_read,
	project_id, project_name, task_id, task_title,
	created_at, updated_at`

// notificationRow carries the nullable association columns.
type notificationRow struct {
	models.Notification
	ProjectID   *int64  `db:"project_id"`
	ProjectName *string `db:"project_name"`
	TaskID      *int64  `db:"task_id"`
	TaskTitle   *string `db:"task_title"`
}

func (r *notificationRow) toModel() *models.Notification {
	n := r.Notification
	if r.ProjectID != nil {
		n.Project = &models.ProjectRef{ID: *r.ProjectID, Name: deref(r.ProjectName)}
	}
	if r.TaskID != nil {
		n.Task = &models.TaskRef{ID: *r.TaskID, Title: deref(r.TaskTitle)}
	}
	return &n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Create inserts n as an unread notification and fills ID and timestamps.
func (s *SQLStore) Create(ctx context.Context, n *models.Notification) error {
	ts := now()
	n.IsRead = false
	n.CreatedAt = ts
	n.UpdatedAt = ts

	var projectID, taskID *int64
	var projectName, taskTitle *string
	if n.Project != nil {
		projectID, projectName = &n.Project.ID, &n.Project.Name
	}
	if n.Task != nil {
		taskID, taskTitle = &n.Task.ID, &n.Task.Title
	}

	query := `
		INSERT INTO notifications
		(recipient_id, type, title, message, is_read, project_id, project_name, task_id, task_title, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		n.RecipientID, n.Type, n.Title, n.Message,
		projectID, projectName, taskID, taskTitle,
		n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading notification id: %w", err)
	}
	n.ID = id
	return nil
}

func getNotification(ctx context.Context, q sqlx.QueryerContext, id int64, recipientID string) (*models.Notification, error) {
	var row notificationRow
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ? AND recipient_id = ?`
	if err := sqlx.GetContext(ctx, q, &row, query, id, recipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting notification %d: %w", id, err)
	}
	return row.toModel(), nil
}

// Get returns the notification only if it belongs to recipientID.
func (s *SQLStore) Get(ctx context.Context, id int64, recipientID string) (*models.Notification, error) {
	return getNotification(ctx, s.db, id, recipientID)
}

// List returns one page of the recipient's notifications, newest first, and
// the total number of rows matching the filter.
func (s *SQLStore) List(ctx context.Context, recipientID string, opts ListOptions) ([]*models.Notification, int, error) {
	return listNotifications(ctx, s.db, recipientID, opts)
}

// ListPage is List plus the recipient's counters, read in one transaction so
// both describe the same set of rows.
func (s *SQLStore) ListPage(ctx context.Context, recipientID string, opts ListOptions) (*Page, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	items, total, err := listNotifications(ctx, tx, recipientID, opts)
	if err != nil {
		return nil, err
	}
	stats, err := notificationStats(ctx, tx, recipientID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Stats: *stats}, nil
}

func listNotifications(ctx context.Context, q sqlx.QueryerContext, recipientID string, opts ListOptions) ([]*models.Notification, int, error) {
	opts.Normalize()

	where := `recipient_id = ?`
	if opts.UnreadOnly {
		where += ` AND is_read = 0`
	}

	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM notifications WHERE `+where, recipientID); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	var rows []notificationRow
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	if err := sqlx.SelectContext(ctx, q, &rows, query, recipientID, opts.Limit, opts.Offset()); err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}

	items := make([]*models.Notification, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toModel())
	}
	return items, total, nil
}

// MarkAsRead flips is_read to true. A row that is already read is returned
// unchanged; nothing here ever sets is_read back to false.
func (s *SQLStore) MarkAsRead(ctx context.Context, id int64, recipientID string) (*models.Notification, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := getNotification(ctx, tx, id, recipientID)
	if err != nil {
		return nil, err
	}

	if !n.IsRead {
		ts := now()
		_, err := tx.ExecContext(ctx, `
			UPDATE notifications
			SET is_read = 1, updated_at = ?
			WHERE id = ? AND recipient_id = ?`, ts, id, recipientID)
		if err != nil {
			return nil, fmt.Errorf("marking notification %d read: %w", id, err)
		}
		n.IsRead = true
		n.UpdatedAt = ts
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing mark-read: %w", err)
	}
	return n, nil
}

// MarkAllAsRead marks every unread notification of the recipient and returns
// how many rows changed.
func (s *SQLStore) MarkAllAsRead(ctx context.Context, recipientID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = 1, updated_at = ?
		WHERE recipient_id = ? AND is_read = 0`, now(), recipientID)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes one notification owned by recipientID.
func (s *SQLStore) Delete(ctx context.Context, id int64, recipientID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND recipient_id = ?`, id, recipientID)
	if err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats computes total/unread/read for the recipient.
func (s *SQLStore) Stats(ctx context.Context, recipientID string) (*models.NotificationStats, error) {
	return notificationStats(ctx, s.db, recipientID)
}

func notificationStats(ctx context.Context, q sqlx.QueryerContext, recipientID string) (*models.NotificationStats, error) {
	var stats models.NotificationStats
	query := `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END), 0) AS unread
		FROM notifications
		WHERE recipient_id = ?`
	if err := sqlx.GetContext(ctx, q, &stats, query, recipientID); err != nil {
		return nil, fmt.Errorf("computing notification stats: %w", err)
	}
	stats.Read = stats.Total - stats.Unread
	return &stats, nil
}
