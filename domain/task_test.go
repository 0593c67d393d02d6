package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestTaskPatchDecodeDistinguishesNullAndAbsent(t *testing.T) {
	var p TaskPatch
	if err := sonic.ConfigStd.Unmarshal([]byte(`{"dueDate":null,"title":"x"}`), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !p.DueDate.Set || p.DueDate.Value != nil {
		t.Fatalf("expected cleared due date, got %+v", p.DueDate)
	}
	if p.EstimatedHours.Set {
		t.Fatal("expected estimatedHours absent")
	}

	var q TaskPatch
	if err := sonic.ConfigStd.Unmarshal([]byte(`{"dueDate":"2026-03-12","estimatedHours":0}`), &q); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	if q.DueDate.Value == nil || !q.DueDate.Value.Equal(want) {
		t.Fatalf("unexpected due date %v", q.DueDate.Value)
	}
	if q.EstimatedHours.Value == nil || *q.EstimatedHours.Value != 0 {
		t.Fatalf("expected explicit zero hours, got %+v", q.EstimatedHours)
	}
}

func TestTaskPatchChangesScore(t *testing.T) {
	due := scoreNow
	current := Task{Title: "a", Description: "b", Priority: PriorityLow, DueDate: &due, EstimatedHours: hours(2)}
	same := scoreNow
	other := scoreNow.Add(time.Hour)
	title := "b"
	actual := 4.0
	high := PriorityHigh

	tests := []struct {
		name  string
		patch TaskPatch
		want  bool
	}{
		{name: "empty", patch: TaskPatch{}, want: false},
		{name: "actual hours", patch: TaskPatch{ActualHours: &actual}, want: false},
		{name: "same due date", patch: TaskPatch{DueDate: OptionalTime{Set: true, Value: &same}}, want: false},
		{name: "new due date", patch: TaskPatch{DueDate: OptionalTime{Set: true, Value: &other}}, want: true},
		{name: "cleared due date", patch: TaskPatch{DueDate: OptionalTime{Set: true}}, want: true},
		{name: "cleared hours", patch: TaskPatch{EstimatedHours: OptionalFloat{Set: true}}, want: true},
		{name: "title", patch: TaskPatch{Title: &title}, want: true},
		{name: "priority", patch: TaskPatch{Priority: &high}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.patch.ChangesScore(current); got != tt.want {
				t.Fatalf("ChangesScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewTaskValidateTrims(t *testing.T) {
	n := NewTask{Title: "  hello ", Description: " d ", Project: " p1 ", Labels: []string{" ui ", "", "api"}}
	if err := n.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if n.Title != "hello" || n.Description != "d" || n.Project != "p1" {
		t.Fatalf("fields not trimmed: %+v", n)
	}
	if len(n.Labels) != 2 || n.Labels[0] != "ui" {
		t.Fatalf("unexpected labels %v", n.Labels)
	}

	bad := NewTask{Title: "x", Project: "p1", Description: string(make([]rune, 501))}
	var verr ValidationError
	if err := bad.Validate(); !errors.As(err, &verr) || verr.Field != "description" {
		t.Fatalf("expected description error, got %v", err)
	}
}

func TestNewTaskDecodesFormStrings(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *float64
		wantErr bool
	}{
		{name: "empty string", body: `{"estimatedHours":"","dueDate":""}`},
		{name: "numeric string", body: `{"estimatedHours":"2"}`, want: hours(2)},
		{name: "padded string", body: `{"estimatedHours":" 1.5 "}`, want: hours(1.5)},
		{name: "number", body: `{"estimatedHours":0}`, want: hours(0)},
		{name: "null", body: `{"estimatedHours":null}`},
		{name: "absent", body: `{}`},
		{name: "words", body: `{"estimatedHours":"two"}`, wantErr: true},
		{name: "not a number", body: `{"estimatedHours":"NaN"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n NewTask
			err := sonic.ConfigStd.Unmarshal([]byte(tt.body), &n)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected decode error, got %+v", n.EstimatedHours)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := n.EstimatedHours.Value
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Fatalf("estimatedHours = %v, want %v", got, tt.want)
			}
			if n.DueDate.Value != nil {
				t.Fatalf("expected no due date, got %v", n.DueDate.Value)
			}
		})
	}
}
