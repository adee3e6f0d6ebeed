package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/auth"
	"github.com/01moynul/projecthub-golang/internal/middleware"
	"github.com/01moynul/projecthub-golang/internal/models"
	"github.com/01moynul/projecthub-golang/internal/notify"
	"github.com/01moynul/projecthub-golang/internal/store"
)

//
// --- Task Handlers ---
//

type createTaskRequest struct {
	Title         string     `json:"title" binding:"required,max=255"`
	Description   string     `json:"description"`
	AssigneeEmail string     `json:"assigneeEmail" binding:"required,email"`
	DueDate       *time.Time `json:"dueDate"`
}

// CreateTask is the handler for POST /v1/projects/:id/tasks
// Caller and assignee must both be members of the project.
func (h *Handlers) CreateTask(c *gin.Context) {
	// 1. --- Get IDs & Bind ---
	email := middleware.UserEmail(c)
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	assignee := auth.NormalizeEmail(req.AssigneeEmail)

	// 2. --- Check Membership ---
	ctx := c.Request.Context()
	if _, err := h.Projects.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		h.Log.Error("loading project", zap.Int64("project", projectID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		return
	}
	for _, who := range []string{email, assignee} {
		isMember, err := h.Projects.IsMember(ctx, projectID, who)
		if err != nil {
			h.Log.Error("checking membership", zap.Int64("project", projectID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
			return
		}
		if !isMember && who == email {
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this project"})
			return
		}
		if !isMember {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Assignee must be a member of the project"})
			return
		}
	}

	// 3. --- Insert ---
	task := &models.Task{
		ProjectID:     projectID,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		AssigneeEmail: assignee,
		DueDate:       req.DueDate,
	}
	if err := h.Tasks.CreateTask(ctx, task); err != nil {
		h.Log.Error("creating task", zap.Int64("project", projectID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task": task})
}

// taskTransition describes one workflow step and who hears about it.
type taskTransition struct {
	from  []models.TaskStatus
	to    models.TaskStatus
	actor func(t *models.Task) string

	notifyType models.NotificationType
	recipient  func(t *models.Task) string
	title      string
	message    func(t *models.Task, reason string) string
}

func assigneeOf(t *models.Task) string { return t.AssigneeEmail }
func ownerOf(t *models.Task) string    { return t.OwnerEmail }

var (
	startTask = taskTransition{
		from:       []models.TaskStatus{models.TaskTodo},
		to:         models.TaskInProgress,
		actor:      assigneeOf,
		notifyType: models.NotificationTaskStarted,
		recipient:  ownerOf,
		title:      "Task started",
		message: func(t *models.Task, _ string) string {
			return fmt.Sprintf("%s started working on %q", t.AssigneeEmail, t.Title)
		},
	}
	submitTask = taskTransition{
		from:       []models.TaskStatus{models.TaskInProgress},
		to:         models.TaskInReview,
		actor:      assigneeOf,
		notifyType: models.NotificationReviewRequested,
		recipient:  ownerOf,
		title:      "Review requested",
		message: func(t *models.Task, _ string) string {
			return fmt.Sprintf("%s submitted %q for review", t.AssigneeEmail, t.Title)
		},
	}
	approveTask = taskTransition{
		from:       []models.TaskStatus{models.TaskInReview},
		to:         models.TaskDone,
		actor:      ownerOf,
		notifyType: models.NotificationTaskApproved,
		recipient:  assigneeOf,
		title:      "Task approved",
		message: func(t *models.Task, _ string) string {
			return fmt.Sprintf("Your task %q was approved", t.Title)
		},
	}
	rejectTask = taskTransition{
		from:       []models.TaskStatus{models.TaskInReview},
		to:         models.TaskInProgress,
		actor:      ownerOf,
		notifyType: models.NotificationTaskRejected,
		recipient:  assigneeOf,
		title:      "Task rejected",
		message: func(t *models.Task, reason string) string {
			return fmt.Sprintf("Your task %q was sent back: %s", t.Title, reason)
		},
	}
)

// StartTask is the handler for POST /v1/tasks/:id/start
func (h *Handlers) StartTask(c *gin.Context) { h.transitionTask(c, startTask, "") }

// SubmitTask is the handler for POST /v1/tasks/:id/submit
func (h *Handlers) SubmitTask(c *gin.Context) { h.transitionTask(c, submitTask, "") }

// ApproveTask is the handler for POST /v1/tasks/:id/approve
func (h *Handlers) ApproveTask(c *gin.Context) { h.transitionTask(c, approveTask, "") }

type rejectTaskRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectTask is the handler for POST /v1/tasks/:id/reject
// A reason is required and is included in the notification.
func (h *Handlers) RejectTask(c *gin.Context) {
	var req rejectTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A rejection reason is required"})
		return
	}
	h.transitionTask(c, rejectTask, strings.TrimSpace(req.Reason))
}

func (h *Handlers) transitionTask(c *gin.Context, tr taskTransition, reason string) {
	// 1. --- Get IDs ---
	email := middleware.UserEmail(c)
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// 2. --- Load Task & Check Actor ---
	ctx := c.Request.Context()
	task, err := h.Tasks.GetTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		h.Log.Error("loading task", zap.Int64("task", taskID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load task"})
		return
	}
	if tr.actor(task) != email {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to change this task"})
		return
	}

	// 3. --- Apply Transition ---
	err = h.Tasks.TransitionTask(ctx, taskID, tr.from, tr.to)
	switch {
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("Task cannot move from %s to %s", task.Status, tr.to),
		})
		return
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	case err != nil:
		h.Log.Error("updating task status", zap.Int64("task", taskID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}
	task.Status = tr.to

	// 4. --- Notify ---
	h.notifyBestEffort(ctx, tr.recipient(task), tr.notifyType, tr.title, tr.message(task, reason),
		&notify.Associations{Project: task.ProjectRef(), Task: task.Ref()})

	c.JSON(http.StatusOK, gin.H{"task": task})
}
