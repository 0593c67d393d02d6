package domain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProjectLifecycle(t *testing.T) {
	st := newFakeStore()
	svc := NewProjectService(st)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, "alice", NewProject{Name: "  Website "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Name != "Website" || p.Color != DefaultProjectColor || p.Status != ProjectActive {
		t.Fatalf("unexpected defaults %+v", p)
	}
	if m, ok := p.Member("alice"); !ok || m.Role != RoleAdmin {
		t.Fatalf("creator must be admin: %+v", p.Members)
	}

	if _, err := svc.GetProject(ctx, "bob", p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	p, err = svc.AddMember(ctx, "alice", p.ID, NewMember{User: "bob"})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if m, ok := p.Member("bob"); !ok || m.Role != RoleMember {
		t.Fatalf("bob not added as member: %+v", p.Members)
	}
	again, err := svc.AddMember(ctx, "bob", p.ID, NewMember{User: "bob", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if len(again.Members) != 2 {
		t.Fatalf("expected idempotent add, got %d members", len(again.Members))
	}

	if err := svc.Authorize(ctx, "bob", p.ID); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := svc.Authorize(ctx, "bob", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddMemberRespectsInviteSetting(t *testing.T) {
	st := newFakeStore()
	st.projects["p"] = Project{
		ID:       "p",
		Members:  []Member{{User: "alice", Role: RoleAdmin}, {User: "bob", Role: RoleMember}},
		Settings: ProjectSettings{AllowMemberInvites: false},
	}
	svc := NewProjectService(st)

	if _, err := svc.AddMember(context.Background(), "bob", "p", NewMember{User: "carol"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.AddMember(context.Background(), "alice", "p", NewMember{User: "carol", Role: "owner"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.AddMember(context.Background(), "alice", "p", NewMember{User: "carol", Role: RoleViewer}); err != nil {
		t.Fatalf("admin invite: %v", err)
	}
}

func TestListUserProjectsNewestFirst(t *testing.T) {
	st := newFakeStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st.projects["old"] = Project{ID: "old", Members: []Member{{User: "u"}}, CreatedAt: base}
	st.projects["new"] = Project{ID: "new", Members: []Member{{User: "u"}}, CreatedAt: base.Add(time.Hour)}
	st.projects["other"] = Project{ID: "other", Members: []Member{{User: "v"}}, CreatedAt: base}

	ps, err := NewProjectService(st).ListUserProjects(context.Background(), "u")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ps) != 2 || ps[0].ID != "new" || ps[1].ID != "old" {
		t.Fatalf("unexpected projects %+v", ps)
	}
}
