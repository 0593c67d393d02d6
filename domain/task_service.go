package domain

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MaxUserTasks bounds the personal task list.
const MaxUserTasks = 1000

// TaskStorage persists tasks. GetTask returns nil without error when the
// task does not exist.
type TaskStorage interface {
	GetTask(ctx context.Context, taskID string) (*Task, error)
	PutTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, projectID, taskID string) error
	ListProjectTasks(ctx context.Context, projectID string) ([]Task, error)
}

// ProjectStorage persists projects and the user to project index. GetProject
// returns nil without error when the project does not exist.
type ProjectStorage interface {
	GetProject(ctx context.Context, projectID string) (*Project, error)
	PutProject(ctx context.Context, p Project) error
	ListUserProjectIDs(ctx context.Context, userID string) ([]string, error)
}

// EventPublisher delivers task events to the subscribers of a project
// channel. Delivery is best effort and never reports failure to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, ev TaskEvent)
}

// TaskService applies task mutations and broadcasts them once committed.
type TaskService struct {
	tasks     TaskStorage
	projects  ProjectStorage
	publisher EventPublisher
	scorer    PriorityScorer
	newID     func() string
}

func NewTaskService(tasks TaskStorage, projects ProjectStorage, publisher EventPublisher, scorer PriorityScorer) *TaskService {
	return &TaskService{
		tasks:     tasks,
		projects:  projects,
		publisher: publisher,
		scorer:    scorer,
		newID:     uuid.NewString,
	}
}

func (s *TaskService) now() time.Time {
	if s.scorer.Now != nil {
		return s.scorer.Now()
	}
	return time.Now()
}

// memberProject loads the project and checks that userID belongs to it.
func memberProject(ctx context.Context, projects ProjectStorage, projectID, userID string) (*Project, error) {
	p, err := projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}
	if p == nil {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if !p.IsMember(userID) {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrForbidden)
	}
	return p, nil
}

// CreateTask validates and stores a new task, then publishes TaskCreated.
func (s *TaskService) CreateTask(ctx context.Context, userID string, in NewTask) (Task, error) {
	if err := in.Validate(); err != nil {
		return Task{}, err
	}
	project, err := memberProject(ctx, s.projects, in.Project, userID)
	if err != nil {
		return Task{}, err
	}

	priority := in.Priority
	if priority == "" {
		priority = project.Settings.DefaultTaskPriority
	}
	if !priority.Valid() {
		priority = PriorityMedium
	}
	assignees := in.AssignedTo
	if len(assignees) == 0 {
		assignees = []string{userID}
	}

	now := s.now()
	t := Task{
		ID:             s.newID(),
		Title:          in.Title,
		Description:    in.Description,
		Priority:       priority,
		Status:         StatusTodo,
		DueDate:        in.DueDate.Value,
		EstimatedHours: in.EstimatedHours.Value,
		AssignedTo:     append([]string(nil), assignees...),
		CreatedBy:      userID,
		Project:        project.ID,
		Labels:         in.Labels,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	t.PriorityScore = s.scorer.Score(t.ScoreInput())

	if err := s.tasks.PutTask(ctx, t); err != nil {
		return Task{}, fmt.Errorf("store task: %w", err)
	}
	log.WithFields(log.Fields{"task": t.ID, "project": t.Project, "score": t.PriorityScore}).Debug("task created")

	s.publisher.Publish(ctx, t.Project, TaskCreated{Task: t})
	return t, nil
}

// UpdateTask applies patch to an existing task. The priority score is only
// recomputed when a field it depends on changes.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, patch TaskPatch) (Task, error) {
	current, err := s.loadTask(ctx, userID, taskID)
	if err != nil {
		return Task{}, err
	}
	if err := patch.Validate(current); err != nil {
		return Task{}, err
	}

	rescore := patch.ChangesScore(current)
	updated := patch.Apply(current)
	if rescore {
		updated.PriorityScore = s.scorer.Score(updated.ScoreInput())
	}
	updated.UpdatedAt = s.now()

	if err := s.tasks.PutTask(ctx, updated); err != nil {
		return Task{}, fmt.Errorf("store task: %w", err)
	}
	log.WithFields(log.Fields{"task": updated.ID, "rescored": rescore, "score": updated.PriorityScore}).Debug("task updated")

	s.publisher.Publish(ctx, updated.Project, TaskUpdated{Task: updated})
	return updated, nil
}

// DeleteTask removes a task and publishes TaskDeleted.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	current, err := s.loadTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, current.Project, current.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	log.WithFields(log.Fields{"task": current.ID, "project": current.Project}).Debug("task deleted")

	s.publisher.Publish(ctx, current.Project, TaskDeleted{TaskID: current.ID})
	return nil
}

func (s *TaskService) loadTask(ctx context.Context, userID, taskID string) (Task, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, fmt.Errorf("load task %s: %w", taskID, err)
	}
	if t == nil {
		return Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if _, err := memberProject(ctx, s.projects, t.Project, userID); err != nil {
		return Task{}, err
	}
	return *t, nil
}

// ListProjectTasks returns the project's tasks, most urgent and newest first.
func (s *TaskService) ListProjectTasks(ctx context.Context, userID, projectID string) ([]Task, error) {
	if _, err := memberProject(ctx, s.projects, projectID, userID); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListProjectTasks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	SortByScore(tasks)
	return tasks, nil
}

// ListUserTasks returns the open tasks assigned to userID across all of the
// user's projects, most urgent and soonest due first.
func (s *TaskService) ListUserTasks(ctx context.Context, userID string) ([]Task, error) {
	projectIDs, err := s.projects.ListUserProjectIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := []Task{}
	for _, pid := range projectIDs {
		tasks, err := s.tasks.ListProjectTasks(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("list tasks for %s: %w", pid, err)
		}
		for _, t := range tasks {
			if t.Status != StatusCompleted && t.IsAssignedTo(userID) {
				out = append(out, t)
			}
		}
	}
	SortByScoreAndDue(out)
	if len(out) > MaxUserTasks {
		out = out[:MaxUserTasks]
	}
	return out, nil
}

// SortByScore orders by score descending then creation time descending.
func SortByScore(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		if c := cmp.Compare(b.PriorityScore, a.PriorityScore); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// SortByScoreAndDue orders by score descending then due date ascending,
// tasks without a due date last.
func SortByScoreAndDue(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		if c := cmp.Compare(b.PriorityScore, a.PriorityScore); c != 0 {
			return c
		}
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	})
}
