package models

import "time"

// Project is the model for the 'projects' table.
type Project struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	OwnerEmail  string    `json:"ownerEmail" db:"owner_email"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// ProjectMember is the model for the 'project_members' table.
type ProjectMember struct {
	ProjectID   int64     `json:"projectId" db:"project_id"`
	MemberEmail string    `json:"memberEmail" db:"member_email"`
	Role        string    `json:"role" db:"role"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Ref returns the display reference attached to notifications.
func (p *Project) Ref() *ProjectRef {
	return &ProjectRef{ID: p.ID, Name: p.Name}
}
