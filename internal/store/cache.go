package store

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskboard/internal/model"
)

const (
	generationKey  = "taskboard:gen"
	groupedKeyBase = "taskboard:grouped:"
)

// Backend is the read/write surface the server needs; *Store and *Cache both implement it.
type Backend interface {
	Grouped(ctx context.Context, f model.Filter) (model.GroupedTasks, error)
	List(ctx context.Context, f model.Filter) (model.TaskPage, error)
	Get(ctx context.Context, id string) (model.Task, error)
	Patch(ctx context.Context, id string, p model.TaskPatch) (model.Task, error)
	Comments(ctx context.Context, taskID string) ([]model.Comment, error)
	Ping(ctx context.Context) error
}

// Cache wraps a Backend with Redis-backed caching of grouped boards.
//
// Cached boards are keyed by a generation counter; every successful write bumps the
// generation, which invalidates every filter's entry at once.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
}

func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("store.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) Grouped(ctx context.Context, f model.Filter) (model.GroupedTasks, error) {
	key, ok := c.groupedKey(ctx, f)
	if ok {
		if out, hit := c.load(ctx, key); hit {
			return out, nil
		}
	}
	out, err := c.base.Grouped(ctx, f)
	if err != nil {
		return model.GroupedTasks{}, err
	}
	if ok {
		c.store(ctx, key, out)
	}
	return out, nil
}

func (c *Cache) List(ctx context.Context, f model.Filter) (model.TaskPage, error) {
	return c.base.List(ctx, f)
}

func (c *Cache) Get(ctx context.Context, id string) (model.Task, error) {
	return c.base.Get(ctx, id)
}

func (c *Cache) Comments(ctx context.Context, taskID string) ([]model.Comment, error) {
	return c.base.Comments(ctx, taskID)
}

func (c *Cache) Patch(ctx context.Context, id string, p model.TaskPatch) (model.Task, error) {
	t, err := c.base.Patch(ctx, id, p)
	if err != nil {
		return model.Task{}, err
	}
	c.invalidate(ctx)
	return t, nil
}

// Ping checks the backing store; Redis being down only costs cache hits.
func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

func (c *Cache) groupedKey(ctx context.Context, f model.Filter) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	gen, err := c.redis.Get(ctx, generationKey).Int64()
	if err != nil && err != redis.Nil {
		return "", false
	}
	return groupedKeyBase + strconv.FormatInt(gen, 10) + ":" + f.Grouped().Values().Encode(), true
}

func (c *Cache) load(ctx context.Context, key string) (model.GroupedTasks, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return model.GroupedTasks{}, false
	}
	var out model.GroupedTasks
	if err := sonic.Unmarshal(data, &out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return model.GroupedTasks{}, false
	}
	return out, true
}

func (c *Cache) store(ctx context.Context, key string, v model.GroupedTasks) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Incr(ctx, generationKey).Err()
}
