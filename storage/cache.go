package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

// fillIfCurrent stores a task list only while the project's write generation
// still matches the one read before loading it.
//
// KEYS[1] list key, KEYS[2] generation key
// ARGV[1] generation, ARGV[2] payload, ARGV[3] ttl in milliseconds
var fillIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Cache is a read-through Redis cache of project task lists in front of a
// task store. Every committed write bumps the project's generation and drops
// the cached list; a list loaded across a write is never stored.
type Cache struct {
	base  domain.TaskStorage
	redis *redis.Client
	ttl   time.Duration
}

var _ domain.TaskStorage = (*Cache)(nil)

// NewCache wraps base. A nil client or zero TTL disables list caching.
func NewCache(base domain.TaskStorage, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

func (c *Cache) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return c.base.GetTask(ctx, taskID)
}

func (c *Cache) PutTask(ctx context.Context, t domain.Task) error {
	if err := c.base.PutTask(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx, t.Project)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, projectID, taskID string) error {
	if err := c.base.DeleteTask(ctx, projectID, taskID); err != nil {
		return err
	}
	c.invalidate(ctx, projectID)
	return nil
}

func (c *Cache) ListProjectTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	if !c.enabled() {
		return c.base.ListProjectTasks(ctx, projectID)
	}
	if tasks, ok := c.cachedTasks(ctx, projectID); ok {
		return tasks, nil
	}

	gen, genErr := c.generation(ctx, projectID)
	tasks, err := c.base.ListProjectTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		c.fill(ctx, projectID, gen, tasks)
	}
	return tasks, nil
}

func (c *Cache) cachedTasks(ctx context.Context, projectID string) ([]domain.Task, bool) {
	key := tasksCacheKey(projectID)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("project", projectID).Debug("task cache read failed")
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return tasks, true
}

// generation returns the project's write counter; a missing counter is zero.
func (c *Cache) generation(ctx context.Context, projectID string) (string, error) {
	gen, err := c.redis.Get(ctx, generationKey(projectID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func (c *Cache) fill(ctx context.Context, projectID, gen string, tasks []domain.Task) {
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	keys := []string{tasksCacheKey(projectID), generationKey(projectID)}
	ms := strconv.FormatInt(c.ttl.Milliseconds(), 10)
	stored, err := fillIfCurrent.Run(ctx, c.redis, keys, gen, data, ms).Int()
	if err != nil {
		log.WithError(err).WithField("project", projectID).Debug("task cache fill failed")
		return
	}
	if stored == 0 {
		log.WithField("project", projectID).Debug("task list changed while loading; not cached")
	}
}

func (c *Cache) invalidate(ctx context.Context, projectID string) {
	if c.redis == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	_, err := c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, generationKey(projectID))
		p.Del(ctx, tasksCacheKey(projectID))
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("project", projectID).Warn("task cache invalidation failed")
	}
}

func tasksCacheKey(projectID string) string {
	return "tasks:" + projectID
}

func generationKey(projectID string) string {
	return tasksCacheKey(projectID) + ":gen"
}
