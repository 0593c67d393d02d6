package domain

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ProjectService manages projects and their member lists.
type ProjectService struct {
	projects ProjectStorage
	now      func() time.Time
	newID    func() string
}

func NewProjectService(projects ProjectStorage) *ProjectService {
	return &ProjectService{projects: projects, now: time.Now, newID: uuid.NewString}
}

// CreateProject stores a new project with the creator as its admin.
func (s *ProjectService) CreateProject(ctx context.Context, userID string, in NewProject) (Project, error) {
	if err := in.Validate(); err != nil {
		return Project{}, err
	}
	now := s.now()
	p := Project{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		Status:      ProjectActive,
		CreatedBy:   userID,
		Members:     []Member{{User: userID, Role: RoleAdmin, JoinedAt: now}},
		Settings: ProjectSettings{
			AllowMemberInvites:  true,
			DefaultTaskPriority: PriorityMedium,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.projects.PutProject(ctx, p); err != nil {
		return Project{}, fmt.Errorf("store project: %w", err)
	}
	return p, nil
}

// GetProject returns the project if userID is a member.
func (s *ProjectService) GetProject(ctx context.Context, userID, projectID string) (Project, error) {
	p, err := memberProject(ctx, s.projects, projectID, userID)
	if err != nil {
		return Project{}, err
	}
	return *p, nil
}

// Authorize reports whether userID may subscribe to the project's channel.
func (s *ProjectService) Authorize(ctx context.Context, userID, projectID string) error {
	_, err := memberProject(ctx, s.projects, projectID, userID)
	return err
}

// ListUserProjects returns the projects userID belongs to, newest first.
func (s *ProjectService) ListUserProjects(ctx context.Context, userID string) ([]Project, error) {
	ids, err := s.projects.ListUserProjectIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]Project, 0, len(ids))
	for _, id := range ids {
		p, err := s.projects.GetProject(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load project %s: %w", id, err)
		}
		// the index may briefly outlive a removed project
		if p == nil || !p.IsMember(userID) {
			continue
		}
		out = append(out, *p)
	}
	sortProjectsNewestFirst(out)
	return out, nil
}

// AddMember adds a user to the project. Adding an existing member is a no-op.
func (s *ProjectService) AddMember(ctx context.Context, userID, projectID string, in NewMember) (Project, error) {
	if err := in.Validate(); err != nil {
		return Project{}, err
	}
	p, err := memberProject(ctx, s.projects, projectID, userID)
	if err != nil {
		return Project{}, err
	}
	if !p.CanInvite(userID) {
		return Project{}, fmt.Errorf("invite to %s: %w", projectID, ErrForbidden)
	}
	if p.IsMember(in.User) {
		return *p, nil
	}
	now := s.now()
	p.Members = append(p.Members, Member{User: in.User, Role: in.Role, JoinedAt: now})
	p.UpdatedAt = now
	if err := s.projects.PutProject(ctx, *p); err != nil {
		return Project{}, fmt.Errorf("store project: %w", err)
	}
	return *p, nil
}

func sortProjectsNewestFirst(ps []Project) {
	slices.SortStableFunc(ps, func(a, b Project) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
