package domain

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// EventType names a task mutation on the wire.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// TaskEvent is a task mutation notification. The set of implementations is
// closed: TaskCreated, TaskUpdated and TaskDeleted.
type TaskEvent interface {
	Type() EventType
	isTaskEvent()
}

// TaskCreated carries the full task after creation.
type TaskCreated struct{ Task Task }

// TaskUpdated carries the full task after an update.
type TaskUpdated struct{ Task Task }

// TaskDeleted carries only the identifier of the removed task.
type TaskDeleted struct{ TaskID string }

func (TaskCreated) Type() EventType { return EventCreated }
func (TaskUpdated) Type() EventType { return EventUpdated }
func (TaskDeleted) Type() EventType { return EventDeleted }

func (TaskCreated) isTaskEvent() {}
func (TaskUpdated) isTaskEvent() {}
func (TaskDeleted) isTaskEvent() {}

type taskPayload struct {
	Type EventType `json:"type"`
	Task Task      `json:"task"`
}

type deletedPayload struct {
	Type   EventType `json:"type"`
	TaskID string    `json:"taskId"`
}

func (e TaskCreated) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(taskPayload{Type: EventCreated, Task: e.Task})
}

func (e TaskUpdated) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(taskPayload{Type: EventUpdated, Task: e.Task})
}

func (e TaskDeleted) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(deletedPayload{Type: EventDeleted, TaskID: e.TaskID})
}

// EncodeTaskEvent renders ev in its wire form.
func EncodeTaskEvent(ev TaskEvent) ([]byte, error) {
	switch e := ev.(type) {
	case TaskCreated:
		return e.MarshalJSON()
	case TaskUpdated:
		return e.MarshalJSON()
	case TaskDeleted:
		return e.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown task event %T", ev)
	}
}

var errMalformedEvent = errors.New("malformed task event")

// DecodeTaskEvent parses the wire form of a task event.
func DecodeTaskEvent(data []byte) (TaskEvent, error) {
	var raw struct {
		Type   EventType `json:"type"`
		Task   *Task     `json:"task"`
		TaskID string    `json:"taskId"`
	}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	switch raw.Type {
	case EventCreated, EventUpdated:
		if raw.Task == nil {
			return nil, fmt.Errorf("%w: %s event without task", errMalformedEvent, raw.Type)
		}
		if raw.Type == EventCreated {
			return TaskCreated{Task: *raw.Task}, nil
		}
		return TaskUpdated{Task: *raw.Task}, nil
	case EventDeleted:
		if raw.TaskID == "" {
			return nil, fmt.Errorf("%w: deleted event without taskId", errMalformedEvent)
		}
		return TaskDeleted{TaskID: raw.TaskID}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", errMalformedEvent, raw.Type)
	}
}
