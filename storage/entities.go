package storage

import (
	"time"

	"github.com/bytedance/sonic"

	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmDateTime = "Edm.DateTime"
	EdmDouble   = "Edm.Double"
	EdmInt32    = "Edm.Int32"

	projectPartition = "project"
)

// taskEntity is a task row. PartitionKey is the project id and RowKey the
// task id. List columns are stored as JSON strings.
type taskEntity struct {
	Entity
	Title              string   `json:"Title"`
	Description        string   `json:"Description"`
	Priority           string   `json:"Priority"`
	Status             string   `json:"Status"`
	DueDate            *string  `json:"DueDate,omitempty"`
	DueDateType        *string  `json:"DueDate@odata.type,omitempty"`
	EstimatedHours     *float64 `json:"EstimatedHours,omitempty"`
	EstimatedHoursType *string  `json:"EstimatedHours@odata.type,omitempty"`
	ActualHours        float64  `json:"ActualHours"`
	ActualHoursType    string   `json:"ActualHours@odata.type"`
	AssignedTo         string   `json:"AssignedTo"`
	CreatedBy          string   `json:"CreatedBy"`
	Labels             string   `json:"Labels"`
	PriorityScore      int      `json:"PriorityScore"`
	PriorityScoreType  string   `json:"PriorityScore@odata.type"`
	CreatedAt          string   `json:"CreatedAt"`
	CreatedAtType      string   `json:"CreatedAt@odata.type"`
	UpdatedAt          string   `json:"UpdatedAt"`
	UpdatedAtType      string   `json:"UpdatedAt@odata.type"`
}

// projectEntity is a project row under the shared "project" partition.
type projectEntity struct {
	Entity
	Name                string `json:"Name"`
	Description         string `json:"Description"`
	Color               string `json:"Color"`
	Status              string `json:"Status"`
	CreatedBy           string `json:"CreatedBy"`
	Members             string `json:"Members"`
	AllowMemberInvites  bool   `json:"AllowMemberInvites"`
	DefaultTaskPriority string `json:"DefaultTaskPriority"`
	CreatedAt           string `json:"CreatedAt"`
	CreatedAtType       string `json:"CreatedAt@odata.type"`
	UpdatedAt           string `json:"UpdatedAt"`
	UpdatedAtType       string `json:"UpdatedAt@odata.type"`
}

// membershipEntity indexes the projects a user belongs to. PartitionKey is
// the user id and RowKey the project id.
type membershipEntity struct {
	Entity
	Role string `json:"Role"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	return sonic.MarshalString(v)
}

func decodeList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := sonic.UnmarshalString(s, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeTaskEntity(t domain.Task) ([]byte, error) {
	assigned, err := encodeList(t.AssignedTo)
	if err != nil {
		return nil, err
	}
	labels, err := encodeList(t.Labels)
	if err != nil {
		return nil, err
	}
	ent := taskEntity{
		Entity:            Entity{PartitionKey: t.Project, RowKey: t.ID},
		Title:             t.Title,
		Description:       t.Description,
		Priority:          string(t.Priority),
		Status:            string(t.Status),
		ActualHours:       t.ActualHours,
		ActualHoursType:   EdmDouble,
		AssignedTo:        assigned,
		CreatedBy:         t.CreatedBy,
		Labels:            labels,
		PriorityScore:     t.PriorityScore,
		PriorityScoreType: EdmInt32,
		CreatedAt:         formatTime(t.CreatedAt),
		CreatedAtType:     EdmDateTime,
		UpdatedAt:         formatTime(t.UpdatedAt),
		UpdatedAtType:     EdmDateTime,
	}
	if t.DueDate != nil {
		due, typ := formatTime(*t.DueDate), EdmDateTime
		ent.DueDate, ent.DueDateType = &due, &typ
	}
	if t.EstimatedHours != nil {
		hours, typ := *t.EstimatedHours, EdmDouble
		ent.EstimatedHours, ent.EstimatedHoursType = &hours, &typ
	}
	return sonic.Marshal(ent)
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	assigned, err := decodeList(ent.AssignedTo)
	if err != nil {
		return domain.Task{}, err
	}
	labels, err := decodeList(ent.Labels)
	if err != nil {
		return domain.Task{}, err
	}
	created, err := parseTime(ent.CreatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	updated, err := parseTime(ent.UpdatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:             ent.RowKey,
		Title:          ent.Title,
		Description:    ent.Description,
		Priority:       domain.Priority(ent.Priority),
		Status:         domain.Status(ent.Status),
		EstimatedHours: ent.EstimatedHours,
		ActualHours:    ent.ActualHours,
		AssignedTo:     assigned,
		CreatedBy:      ent.CreatedBy,
		Project:        ent.PartitionKey,
		Labels:         labels,
		PriorityScore:  ent.PriorityScore,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
	if ent.DueDate != nil && *ent.DueDate != "" {
		due, err := parseTime(*ent.DueDate)
		if err != nil {
			return domain.Task{}, err
		}
		t.DueDate = &due
	}
	return t, nil
}

func encodeProjectEntity(p domain.Project) ([]byte, error) {
	members, err := sonic.MarshalString(p.Members)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(projectEntity{
		Entity:              Entity{PartitionKey: projectPartition, RowKey: p.ID},
		Name:                p.Name,
		Description:         p.Description,
		Color:               p.Color,
		Status:              string(p.Status),
		CreatedBy:           p.CreatedBy,
		Members:             members,
		AllowMemberInvites:  p.Settings.AllowMemberInvites,
		DefaultTaskPriority: string(p.Settings.DefaultTaskPriority),
		CreatedAt:           formatTime(p.CreatedAt),
		CreatedAtType:       EdmDateTime,
		UpdatedAt:           formatTime(p.UpdatedAt),
		UpdatedAtType:       EdmDateTime,
	})
}

func decodeProjectEntity(data []byte) (domain.Project, error) {
	var ent projectEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Project{}, err
	}
	members := []domain.Member{}
	if ent.Members != "" {
		if err := sonic.UnmarshalString(ent.Members, &members); err != nil {
			return domain.Project{}, err
		}
	}
	created, err := parseTime(ent.CreatedAt)
	if err != nil {
		return domain.Project{}, err
	}
	updated, err := parseTime(ent.UpdatedAt)
	if err != nil {
		return domain.Project{}, err
	}
	return domain.Project{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Description: ent.Description,
		Color:       ent.Color,
		Status:      domain.ProjectStatus(ent.Status),
		CreatedBy:   ent.CreatedBy,
		Members:     members,
		Settings: domain.ProjectSettings{
			AllowMemberInvites:  ent.AllowMemberInvites,
			DefaultTaskPriority: domain.Priority(ent.DefaultTaskPriority),
		},
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
