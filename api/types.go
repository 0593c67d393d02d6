package api

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/lokeshjavvadi/Smart-taskhub-React/broadcast"
	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

// TaskService is the task application layer used by the handlers.
type TaskService interface {
	CreateTask(ctx context.Context, userID string, in domain.NewTask) (domain.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
	ListProjectTasks(ctx context.Context, userID, projectID string) ([]domain.Task, error)
	ListUserTasks(ctx context.Context, userID string) ([]domain.Task, error)
}

// ProjectService is the project application layer used by the handlers.
type ProjectService interface {
	CreateProject(ctx context.Context, userID string, in domain.NewProject) (domain.Project, error)
	GetProject(ctx context.Context, userID, projectID string) (domain.Project, error)
	ListUserProjects(ctx context.Context, userID string) ([]domain.Project, error)
	AddMember(ctx context.Context, userID, projectID string, in domain.NewMember) (domain.Project, error)
	Authorize(ctx context.Context, userID, projectID string) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Subscriptions registers realtime connections on project channels.
type Subscriptions interface {
	Subscribe(channel string, s *broadcast.Subscriber)
	Unsubscribe(channel string, s *broadcast.Subscriber)
	Disconnect(s *broadcast.Subscriber)
}

// Deduper prevents processing of duplicate create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when processing fails.
	Remove(ctx context.Context, userID, key string) error
}

// Deps carries the collaborators Register wires into the routes.
type Deps struct {
	Tasks    TaskService
	Projects ProjectService
	Auth     Authenticator
	Hub      Subscriptions
	Logger   *log.Logger

	// Deduper is optional; without it Idempotency-Key headers are ignored.
	Deduper Deduper
	// Health is optional and reports dependency failures on /healthz.
	Health func(ctx context.Context) error

	MailboxSize      int
	WSOriginPatterns []string
}
