package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

// Storage persists tasks, projects and memberships in Azure Table storage.
type Storage struct {
	taskTable       *aztables.Client
	projectTable    *aztables.Client
	membershipTable *aztables.Client
}

var (
	_ domain.TaskStorage    = (*Storage)(nil)
	_ domain.ProjectStorage = (*Storage)(nil)
)

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, projectsTable, membershipsTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:       svc.NewClient(tasksTable),
		projectTable:    svc.NewClient(projectsTable),
		membershipTable: svc.NewClient(membershipsTable),
	}, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// quote escapes a value for use inside an OData filter literal.
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// GetTask looks a task up by id across all project partitions. It returns
// nil when the task does not exist.
func (s *Storage) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	filter := "RowKey eq " + quote(taskID)
	top := int32(1)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Top: &top})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if len(resp.Entities) == 0 {
			continue
		}
		t, err := decodeTaskEntity(resp.Entities[0])
		if err != nil {
			return nil, fmt.Errorf("decode task %s: %w", taskID, err)
		}
		return &t, nil
	}
	return nil, nil
}

// PutTask creates or replaces a task.
func (s *Storage) PutTask(ctx context.Context, t domain.Task) error {
	payload, err := encodeTaskEntity(t)
	if err == nil {
		_, err = s.taskTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	}
	return err
}

// DeleteTask removes a task. A missing task yields domain.ErrNotFound.
func (s *Storage) DeleteTask(ctx context.Context, projectID, taskID string) error {
	et := azcore.ETagAny
	_, err := s.taskTable.DeleteEntity(ctx, projectID, taskID, &aztables.DeleteEntityOptions{IfMatch: &et})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
		}
		return err
	}
	return nil
}

// ListProjectTasks returns every task in the project partition.
func (s *Storage) ListProjectTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	filter := "PartitionKey eq " + quote(projectID)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// GetProject retrieves a project if present.
func (s *Storage) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	ent, err := s.projectTable.GetEntity(ctx, projectPartition, projectID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	p, err := decodeProjectEntity(ent.Value)
	if err != nil {
		return nil, fmt.Errorf("decode project %s: %w", projectID, err)
	}
	return &p, nil
}

// PutProject upserts the project row followed by one membership row per
// member. Membership rows are only ever added.
func (s *Storage) PutProject(ctx context.Context, p domain.Project) error {
	payload, err := encodeProjectEntity(p)
	if err != nil {
		return err
	}
	if _, err := s.projectTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return err
	}
	for _, m := range p.Members {
		data, err := sonic.Marshal(membershipEntity{
			Entity: Entity{PartitionKey: m.User, RowKey: p.ID},
			Role:   string(m.Role),
		})
		if err != nil {
			return err
		}
		if _, err := s.membershipTable.UpsertEntity(ctx, data, nil); err != nil {
			return fmt.Errorf("store membership %s/%s: %w", m.User, p.ID, err)
		}
	}
	return nil
}

// ListUserProjectIDs returns the ids of the projects userID belongs to.
func (s *Storage) ListUserProjectIDs(ctx context.Context, userID string) ([]string, error) {
	filter := "PartitionKey eq " + quote(userID)
	pager := s.membershipTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	ids := []string{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent membershipEntity
			if err := sonic.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			ids = append(ids, ent.RowKey)
		}
	}
	return ids, nil
}
