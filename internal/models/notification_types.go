package models

import (
	"time"
)

// NotificationType is the closed set of events that produce a notification.
type NotificationType string

const (
	NotificationMemberAdded     NotificationType = "MEMBER_ADDED"
	NotificationTaskApproved    NotificationType = "TASK_APPROVED"
	NotificationTaskRejected    NotificationType = "TASK_REJECTED"
	NotificationReviewRequested NotificationType = "REVIEW_REQUESTED"
	NotificationTaskStarted     NotificationType = "TASK_STARTED"
	NotificationTaskOverdue     NotificationType = "TASK_OVERDUE"
	NotificationTaskDueReminder NotificationType = "TASK_DUE_REMINDER"
)

var notificationTypes = map[NotificationType]struct{}{
	NotificationMemberAdded:     {},
	NotificationTaskApproved:    {},
	NotificationTaskRejected:    {},
	NotificationReviewRequested: {},
	NotificationTaskStarted:     {},
	NotificationTaskOverdue:     {},
	NotificationTaskDueReminder: {},
}

// Valid reports whether t is one of the recognised notification types.
func (t NotificationType) Valid() bool {
	_, ok := notificationTypes[t]
	return ok
}

// ParseNotificationType converts a raw string into a NotificationType.
func ParseNotificationType(raw string) (NotificationType, bool) {
	t := NotificationType(raw)
	return t, t.Valid()
}

// ProjectRef is a display reference to a project, not ownership.
type ProjectRef struct {
	ID   int64  `json:"id" validate:"required"`
	Name string `json:"name"`
}

// TaskRef is a display reference to a task, not ownership.
type TaskRef struct {
	ID    int64  `json:"id" validate:"required"`
	Title string `json:"title"`
}

// Notification is the model for the 'notifications' table.
// Title and Message are immutable once created; IsRead only moves false -> true.
type Notification struct {
	ID          int64            `json:"id" db:"id"`
	RecipientID string           `json:"recipientId" db:"recipient_id"`
	Type        NotificationType `json:"type" db:"type"`
	Title       string           `json:"title" db:"title"`
	Message     string           `json:"message" db:"message"`
	IsRead      bool             `json:"isRead" db:"is_read"`

	// Joins (denormalized onto the row, populated by the store)
	Project *ProjectRef `json:"project,omitempty" db:"-"`
	Task    *TaskRef    `json:"task,omitempty" db:"-"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// NotificationStats is computed per recipient at query time.
type NotificationStats struct {
	Total  int `json:"total" db:"total"`
	Unread int `json:"unread" db:"unread"`
	Read   int `json:"read" db:"read"`
}

// ConnectionFrame is the first frame written on a notification stream.
type ConnectionFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
