package domain

import (
	"strings"
	"time"
)

// Role is a member's permission level within a project.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleMember || r == RoleAdmin
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectArchived  ProjectStatus = "archived"
	ProjectCompleted ProjectStatus = "completed"
)

const DefaultProjectColor = "#3B82F6"

// Member links a user to a project.
type Member struct {
	User     string    `json:"user"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ProjectSettings are per project options.
type ProjectSettings struct {
	AllowMemberInvites  bool     `json:"allowMemberInvites"`
	DefaultTaskPriority Priority `json:"defaultTaskPriority"`
}

// Project groups tasks and is the broadcast channel key for them.
type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	Status      ProjectStatus   `json:"status"`
	CreatedBy   string          `json:"createdBy"`
	Members     []Member        `json:"members"`
	Settings    ProjectSettings `json:"settings"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Member returns the membership record for userID, if any.
func (p Project) Member(userID string) (Member, bool) {
	for _, m := range p.Members {
		if m.User == userID {
			return m, true
		}
	}
	return Member{}, false
}

// IsMember reports whether userID belongs to the project.
func (p Project) IsMember(userID string) bool {
	_, ok := p.Member(userID)
	return ok
}

// CanInvite reports whether userID may add members.
func (p Project) CanInvite(userID string) bool {
	m, ok := p.Member(userID)
	if !ok {
		return false
	}
	return m.Role == RoleAdmin || p.Settings.AllowMemberInvites
}

// NewProject carries the client supplied fields for project creation.
type NewProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (n *NewProject) Validate() error {
	n.Name = strings.TrimSpace(n.Name)
	n.Description = strings.TrimSpace(n.Description)
	if n.Name == "" {
		return ValidationError{Field: "name", Message: "Project name is required"}
	}
	if len([]rune(n.Name)) > MaxTitleLength {
		return ValidationError{Field: "name", Message: "Project name cannot be more than 100 characters"}
	}
	if len([]rune(n.Description)) > MaxDescriptionLength {
		return ValidationError{Field: "description", Message: "Description cannot be more than 500 characters"}
	}
	if n.Color == "" {
		n.Color = DefaultProjectColor
	}
	return nil
}

// NewMember is an invitation request.
type NewMember struct {
	User string `json:"user"`
	Role Role   `json:"role"`
}

func (n *NewMember) Validate() error {
	n.User = strings.TrimSpace(n.User)
	if n.User == "" {
		return ValidationError{Field: "user", Message: "User ID is required"}
	}
	if n.Role == "" {
		n.Role = RoleMember
	}
	if !n.Role.Valid() {
		return ValidationError{Field: "role", Message: "`" + string(n.Role) + "` is not a valid role"}
	}
	return nil
}
