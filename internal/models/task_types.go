package models

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskInReview   TaskStatus = "in_review"
	TaskDone       TaskStatus = "done"
)

// Task is the model for the 'tasks' table.
type Task struct {
	ID            int64      `json:"id" db:"id"`
	ProjectID     int64      `json:"projectId" db:"project_id"`
	Title         string     `json:"title" db:"title"`
	Description   string     `json:"description" db:"description"`
	AssigneeEmail string     `json:"assigneeEmail" db:"assignee_email"`
	Status        TaskStatus `json:"status" db:"status"`
	DueDate       *time.Time `json:"dueDate,omitempty" db:"due_date"`

	// Worker bookkeeping; never exposed
	ReminderSent    bool `json:"-" db:"reminder_sent"`
	OverdueNotified bool `json:"-" db:"overdue_notified"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Flattened fields for notification text (populated by joins)
	ProjectName string `json:"projectName,omitempty" db:"project_name"`
	OwnerEmail  string `json:"-" db:"owner_email"`
}

// Ref returns the display reference attached to notifications.
func (t *Task) Ref() *TaskRef {
	return &TaskRef{ID: t.ID, Title: t.Title}
}

// ProjectRef returns the project display reference for the task.
func (t *Task) ProjectRef() *ProjectRef {
	return &ProjectRef{ID: t.ProjectID, Name: t.ProjectName}
}
