package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/auth"
	"github.com/01moynul/projecthub-golang/internal/middleware"
	"github.com/01moynul/projecthub-golang/internal/models"
	"github.com/01moynul/projecthub-golang/internal/notify"
	"github.com/01moynul/projecthub-golang/internal/store"
)

//
// --- Project Handlers ---
//

type createProjectRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`
}

// CreateProject is the handler for POST /v1/projects
// The caller becomes the owner and first member.
func (h *Handlers) CreateProject(c *gin.Context) {
	// 1. --- Bind ---
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// 2. --- Build Slug ---
	name := strings.TrimSpace(req.Name)
	projectSlug := slug.Make(name)
	if projectSlug == "" {
		projectSlug = "project"
	}

	// 3. --- Insert ---
	p := &models.Project{
		Name:        name,
		Slug:        projectSlug,
		Description: req.Description,
		OwnerEmail:  middleware.UserEmail(c),
	}
	if err := h.Projects.CreateProject(c.Request.Context(), p); err != nil {
		h.Log.Error("creating project", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"project": p})
}

type addMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// AddProjectMember is the handler for POST /v1/projects/:id/members
// Only the owner may add members; the new member gets MEMBER_ADDED.
func (h *Handlers) AddProjectMember(c *gin.Context) {
	// 1. --- Get IDs ---
	email := middleware.UserEmail(c)
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// 2. --- Load Project & Check Ownership ---
	ctx := c.Request.Context()
	p, err := h.Projects.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	if err != nil {
		h.Log.Error("loading project", zap.Int64("project", projectID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		return
	}
	if p.OwnerEmail != email {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the project owner can add members"})
		return
	}

	// 3. --- Add Member ---
	member := &models.ProjectMember{ProjectID: p.ID, MemberEmail: auth.NormalizeEmail(req.Email)}
	err = h.Projects.AddMember(ctx, member)
	if errors.Is(err, store.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already a member of this project"})
		return
	}
	if err != nil {
		h.Log.Error("adding project member", zap.Int64("project", projectID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		return
	}

	// 4. --- Notify ---
	h.notifyBestEffort(ctx, member.MemberEmail, models.NotificationMemberAdded,
		"Added to project",
		fmt.Sprintf("%s added you to the project %q", email, p.Name),
		&notify.Associations{Project: p.Ref()})

	c.JSON(http.StatusCreated, gin.H{"member": member})
}
