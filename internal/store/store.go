package store

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/01moynul/projecthub-golang/internal/models"
)

var (
	// ErrNotFound covers both missing rows and rows owned by another user.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a write that does not apply to the row's current state.
	ErrConflict = errors.New("conflict")
)

// ListOptions controls pagination for notification listing.
type ListOptions struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps Page and Limit into their valid ranges.
func (o *ListOptions) Normalize() {
	if o.Page <= 0 {
		o.Page = 1
	}
	if o.Limit <= 0 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		o.Limit = MaxPageSize
	}
}

// Offset returns the row offset of the current page.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// Page is one page of a recipient's notifications together with their
// counters at the same point in time.
type Page struct {
	Items []*models.Notification
	// Total counts the rows matching the list filter.
	Total int
	Stats models.NotificationStats
}

// NotificationStore persists notification records.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, id int64, recipientID string) (*models.Notification, error)
	List(ctx context.Context, recipientID string, opts ListOptions) ([]*models.Notification, int, error)
	ListPage(ctx context.Context, recipientID string, opts ListOptions) (*Page, error)
	MarkAsRead(ctx context.Context, id int64, recipientID string) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, id int64, recipientID string) error
	Stats(ctx context.Context, recipientID string) (*models.NotificationStats, error)
}

// ProjectStore persists projects and their members.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	AddMember(ctx context.Context, m *models.ProjectMember) error
	IsMember(ctx context.Context, projectID int64, email string) (bool, error)
}

// TaskStore persists tasks and the bookkeeping of the due-date worker.
type TaskStore interface {
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	TransitionTask(ctx context.Context, id int64, from []models.TaskStatus, to models.TaskStatus) error
	TasksDueBetween(ctx context.Context, from, to time.Time) ([]*models.Task, error)
	TasksOverdue(ctx context.Context, now time.Time) ([]*models.Task, error)
	MarkReminderSent(ctx context.Context, id int64) error
	MarkOverdueNotified(ctx context.Context, id int64) error
}

// SQLStore implements every store interface on a single sqlx pool. Queries use
// '?' placeholders, which both the mysql and sqlite drivers accept.
type SQLStore struct {
	db *sqlx.DB
}

// New wraps an open pool.
func New(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// now is the timestamp used for writes; DATETIME columns keep whole seconds.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
