package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lokeshjavvadi/Smart-taskhub-React/broadcast"
	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

// memStore is an in-memory TaskStorage and ProjectStorage.
type memStore struct {
	mu       sync.Mutex
	tasks    map[string]domain.Task
	projects map[string]domain.Project
}

func newMemStore() *memStore {
	return &memStore{tasks: map[string]domain.Task{}, projects: map[string]domain.Project{}}
}

func (m *memStore) GetTask(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memStore) PutTask(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, _, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memStore) ListProjectTasks(_ context.Context, projectID string) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Task{}
	for _, t := range m.tasks {
		if t.Project == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) GetProject(_ context.Context, id string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) PutProject(_ context.Context, p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *memStore) ListUserProjectIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, p := range m.projects {
		if p.IsMember(userID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) taskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// bearerAuth treats the bearer token as the user id.
type bearerAuth struct{}

func (bearerAuth) UserIDFromAuthHeader(h string) (string, error) {
	user, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || user == "" {
		return "", errMissingAuthorization
	}
	return user, nil
}

type testServer struct {
	e     *echo.Echo
	store *memStore
	hub   *broadcast.Hub
	hook  *test.Hook
}

func newTestServer(t *testing.T, opts ...func(*Deps)) *testServer {
	t.Helper()
	logger, hook := test.NewNullLogger()
	store := newMemStore()
	hub := broadcast.NewHub(logger)

	now := time.Now().UTC()
	for _, p := range []domain.Project{
		{ID: "p1", Name: "Launch", CreatedBy: "alice", CreatedAt: now,
			Members:  []domain.Member{{User: "alice", Role: domain.RoleAdmin}, {User: "bob", Role: domain.RoleMember}},
			Settings: domain.ProjectSettings{AllowMemberInvites: true, DefaultTaskPriority: domain.PriorityMedium}},
		{ID: "p2", Name: "Ops", CreatedBy: "alice", CreatedAt: now.Add(-time.Hour),
			Members:  []domain.Member{{User: "alice", Role: domain.RoleAdmin}},
			Settings: domain.ProjectSettings{DefaultTaskPriority: domain.PriorityHigh}},
		{ID: "p3", Name: "Private", CreatedBy: "carol", CreatedAt: now,
			Members: []domain.Member{{User: "carol", Role: domain.RoleAdmin}}},
	} {
		_ = store.PutProject(context.Background(), p)
	}

	d := Deps{
		Tasks:    domain.NewTaskService(store, store, hub, domain.NewPriorityScorer()),
		Projects: domain.NewProjectService(store),
		Auth:     bearerAuth{},
		Hub:      hub,
		Logger:   logger,
	}
	for _, o := range opts {
		o(&d)
	}
	e := echo.New()
	Register(e, d)
	return &testServer{e: e, store: store, hub: hub, hook: hook}
}

func (s *testServer) do(method, path, user, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

var errBoom = errors.New("boom")
