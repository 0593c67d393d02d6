package domain

import (
	"context"
	"errors"
	"sync"
)

type fakeStore struct {
	mu       sync.Mutex
	tasks    map[string]Task
	projects map[string]Project
	putErr   error
	puts     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]Task{}, projects: map[string]Project{}}
}

func (f *fakeStore) GetTask(ctx context.Context, taskID string) (*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) PutTask(ctx context.Context, t Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, projectID, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[taskID]; !ok {
		return errors.New("missing task")
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeStore) ListProjectTasks(ctx context.Context, projectID string) ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Task{}
	for _, t := range f.tasks {
		if t.Project == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProject(ctx context.Context, projectID string) (*Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[projectID]
	if !ok {
		return nil, nil
	}
	p.Members = append([]Member(nil), p.Members...)
	return &p, nil
}

func (f *fakeStore) PutProject(ctx context.Context, p Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[p.ID] = p
	return nil
}

func (f *fakeStore) ListUserProjectIDs(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, p := range f.projects {
		if p.IsMember(userID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type published struct {
	channel string
	event   TaskEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingPublisher) Publish(ctx context.Context, channel string, ev TaskEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{channel: channel, event: ev})
}

func (r *recordingPublisher) Events() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.events...)
}
