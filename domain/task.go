package domain

import (
	"strings"
	"time"
)

// Priority is the user selected importance of a task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status is the workflow column a task sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusCompleted:
		return true
	}
	return false
}

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// Task represents a single work item within a project.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       Priority   `json:"priority"`
	Status         Status     `json:"status"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
	ActualHours    float64    `json:"actualHours"`
	AssignedTo     []string   `json:"assignedTo"`
	CreatedBy      string     `json:"createdBy"`
	Project        string     `json:"project"`
	Labels         []string   `json:"labels"`
	PriorityScore  int        `json:"priorityScore"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// ScoreInput returns the subset of task fields the priority score is derived from.
func (t Task) ScoreInput() ScoreInput {
	return ScoreInput{
		Priority:       t.Priority,
		DueDate:        t.DueDate,
		EstimatedHours: t.EstimatedHours,
		Title:          t.Title,
		Description:    t.Description,
	}
}

// IsAssignedTo reports whether userID is among the task assignees.
func (t Task) IsAssignedTo(userID string) bool {
	for _, a := range t.AssignedTo {
		if a == userID {
			return true
		}
	}
	return false
}

// NewTask carries the client supplied fields for task creation.
type NewTask struct {
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Priority       Priority      `json:"priority"`
	DueDate        OptionalTime  `json:"dueDate"`
	EstimatedHours OptionalFloat `json:"estimatedHours"`
	Project        string        `json:"project"`
	Labels         []string      `json:"labels"`
	AssignedTo     []string      `json:"assignedTo"`
}

// Validate checks field constraints and normalizes whitespace in place.
func (n *NewTask) Validate() error {
	n.Title = strings.TrimSpace(n.Title)
	n.Description = strings.TrimSpace(n.Description)
	n.Project = strings.TrimSpace(n.Project)
	if n.Title == "" {
		return ValidationError{Field: "title", Message: "Task title is required"}
	}
	if n.Project == "" {
		return ValidationError{Field: "project", Message: "Project ID is required"}
	}
	if err := validateText(n.Title, n.Description); err != nil {
		return err
	}
	if n.Priority != "" && !n.Priority.Valid() {
		return ValidationError{Field: "priority", Message: "`" + string(n.Priority) + "` is not a valid priority"}
	}
	if h := n.EstimatedHours.Value; h != nil && *h < 0 {
		return ValidationError{Field: "estimatedHours", Message: "Estimated hours cannot be negative"}
	}
	n.Labels = trimLabels(n.Labels)
	return nil
}

// TaskPatch carries a partial task update. Nil fields are left untouched.
// DueDate and EstimatedHours distinguish "absent" from "cleared".
type TaskPatch struct {
	Title          *string       `json:"title"`
	Description    *string       `json:"description"`
	Priority       *Priority     `json:"priority"`
	Status         *Status       `json:"status"`
	DueDate        OptionalTime  `json:"dueDate"`
	EstimatedHours OptionalFloat `json:"estimatedHours"`
	ActualHours    *float64      `json:"actualHours"`
	AssignedTo     *[]string     `json:"assignedTo"`
	Labels         *[]string     `json:"labels"`
	Project        *string       `json:"project"`
	PriorityScore  *int          `json:"priorityScore"`
}

// Validate checks the patch against the current task.
func (p *TaskPatch) Validate(current Task) error {
	if p.Project != nil && *p.Project != current.Project {
		return ValidationError{Field: "project", Message: "Task project cannot be changed"}
	}
	if p.PriorityScore != nil {
		return ValidationError{Field: "priorityScore", Message: "Priority score is computed and cannot be set"}
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return ValidationError{Field: "title", Message: "Task title is required"}
		}
		p.Title = &t
	}
	title := current.Title
	if p.Title != nil {
		title = *p.Title
	}
	desc := current.Description
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		p.Description = &d
		desc = d
	}
	if err := validateText(title, desc); err != nil {
		return err
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return ValidationError{Field: "priority", Message: "`" + string(*p.Priority) + "` is not a valid priority"}
	}
	if p.Status != nil && !p.Status.Valid() {
		return ValidationError{Field: "status", Message: "`" + string(*p.Status) + "` is not a valid status"}
	}
	if p.EstimatedHours.Value != nil && *p.EstimatedHours.Value < 0 {
		return ValidationError{Field: "estimatedHours", Message: "Estimated hours cannot be negative"}
	}
	if p.ActualHours != nil && *p.ActualHours < 0 {
		return ValidationError{Field: "actualHours", Message: "Actual hours cannot be negative"}
	}
	if p.Labels != nil {
		labels := trimLabels(*p.Labels)
		p.Labels = &labels
	}
	return nil
}

// ChangesScore reports whether applying the patch alters any field the
// priority score depends on.
func (p TaskPatch) ChangesScore(current Task) bool {
	if p.Title != nil && *p.Title != current.Title {
		return true
	}
	if p.Description != nil && *p.Description != current.Description {
		return true
	}
	if p.Priority != nil && *p.Priority != current.Priority {
		return true
	}
	if p.DueDate.Set && !sameTime(p.DueDate.Value, current.DueDate) {
		return true
	}
	if p.EstimatedHours.Set && !sameFloat(p.EstimatedHours.Value, current.EstimatedHours) {
		return true
	}
	return false
}

// Apply returns a copy of t with the patch applied. The score is not touched.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Value
	}
	if p.EstimatedHours.Set {
		t.EstimatedHours = p.EstimatedHours.Value
	}
	if p.ActualHours != nil {
		t.ActualHours = *p.ActualHours
	}
	if p.AssignedTo != nil {
		t.AssignedTo = append([]string(nil), (*p.AssignedTo)...)
	}
	if p.Labels != nil {
		t.Labels = append([]string(nil), (*p.Labels)...)
	}
	return t
}

func validateText(title, description string) error {
	if len([]rune(title)) > MaxTitleLength {
		return ValidationError{Field: "title", Message: "Title cannot be more than 100 characters"}
	}
	if len([]rune(description)) > MaxDescriptionLength {
		return ValidationError{Field: "description", Message: "Description cannot be more than 500 characters"}
	}
	return nil
}

func trimLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
