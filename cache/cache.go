// Package cache deduplicates builds: at most one build per fingerprint runs
// at a time, all concurrent requesters share its outcome, and finished
// results are stored with a TTL in a pluggable backend.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wattpad-downloader/model"
)

// BuildFunc runs the orchestrator and assembler for one fingerprint.
type BuildFunc func(ctx context.Context) (*model.BuildResult, error)

type Config struct {
	TTL          time.Duration
	BuildTimeout time.Duration
}

type Cache struct {
	backend Backend
	cfg     Config
	log     zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// job coordinates one in-flight build. It lives in the job table from the
// first request until the result is broadcast, then is dropped so failures
// are retried from scratch.
type job struct {
	done    chan struct{}
	result  *model.BuildResult
	err     error
	waiters int
	cancel  context.CancelFunc
}

func New(backend Backend, cfg Config, log zerolog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = 10 * time.Minute
	}
	return &Cache{
		backend: backend,
		cfg:     cfg,
		log:     log.With().Str("component", "cache").Logger(),
		jobs:    make(map[string]*job),
	}
}

// GetOrBuild returns a cached result for the fingerprint, attaches to an
// in-flight build for it, or starts one. The build runs detached from any
// single caller: it is cancelled only when every waiter has left.
func (c *Cache) GetOrBuild(ctx context.Context, fingerprint string, build BuildFunc) (*model.BuildResult, error) {
	if res, ok := c.lookup(ctx, fingerprint); ok {
		return res, nil
	}

	c.mu.Lock()
	if j, ok := c.jobs[fingerprint]; ok {
		j.waiters++
		c.mu.Unlock()
		return c.wait(ctx, j)
	}
	buildCtx, cancel := context.WithTimeout(context.Background(), c.cfg.BuildTimeout)
	j := &job{done: make(chan struct{}), waiters: 1, cancel: cancel}
	c.jobs[fingerprint] = j
	c.mu.Unlock()

	go c.run(buildCtx, fingerprint, j, build)
	return c.wait(ctx, j)
}

func (c *Cache) run(ctx context.Context, fingerprint string, j *job, build BuildFunc) {
	defer j.cancel()

	result, err := c.buildOrFollow(ctx, fingerprint, build)
	if err == nil {
		c.store(ctx, fingerprint, result)
	} else if ctx.Err() != nil {
		err = fmt.Errorf("%w: build deadline exceeded", model.ErrTimeout)
	}

	c.mu.Lock()
	delete(c.jobs, fingerprint)
	j.result, j.err = result, err
	close(j.done)
	c.mu.Unlock()
}

// buildOrFollow builds locally unless a shared backend says another process
// already does; then it polls for that process's result instead. Lock
// failures degrade to building locally, never to failing the request.
func (c *Cache) buildOrFollow(ctx context.Context, fingerprint string, build BuildFunc) (*model.BuildResult, error) {
	locker, ok := c.backend.(Locker)
	if !ok {
		return build(ctx)
	}

	acquired, err := locker.TryLock(ctx, fingerprint, c.cfg.BuildTimeout)
	if err != nil {
		c.log.Warn().Err(err).Msg("dedup lock unavailable, building locally")
		return build(ctx)
	}
	if acquired {
		defer func() {
			if err := locker.Unlock(context.WithoutCancel(ctx), fingerprint); err != nil {
				c.log.Warn().Err(err).Msg("failed to release dedup lock")
			}
		}()
		return build(ctx)
	}

	c.log.Debug().Str("fingerprint", fingerprint[:12]).Msg("another process is building, polling for its result")
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if res, ok := c.lookup(ctx, fingerprint); ok {
				return res, nil
			}
			// The remote builder may have failed and released the lock;
			// take it over rather than waiting out the full deadline.
			if acquired, err := locker.TryLock(ctx, fingerprint, c.cfg.BuildTimeout); err == nil && acquired {
				defer locker.Unlock(context.WithoutCancel(ctx), fingerprint)
				return build(ctx)
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting on remote build", model.ErrTimeout)
		}
	}
}

func (c *Cache) wait(ctx context.Context, j *job) (*model.BuildResult, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		c.mu.Lock()
		j.waiters--
		last := j.waiters == 0
		c.mu.Unlock()
		if last {
			// Sole waiter gone: stop the build and free pool slots.
			j.cancel()
		}
		return nil, fmt.Errorf("%w: %v", model.ErrTimeout, ctx.Err())
	}
}

// lookup treats every backend fault as a miss; the cache is best effort.
func (c *Cache) lookup(ctx context.Context, fingerprint string) (*model.BuildResult, bool) {
	data, ok, err := c.backend.Get(ctx, fingerprint)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache lookup failed, treating as miss")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	result := &model.BuildResult{}
	if err := json.Unmarshal(data, result); err != nil {
		c.log.Warn().Err(err).Msg("cache entry undecodable, treating as miss")
		return nil, false
	}
	return result, true
}

func (c *Cache) store(ctx context.Context, fingerprint string, result *model.BuildResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.log.Warn().Err(err).Msg("result not cacheable")
		return
	}
	if err := c.backend.Set(context.WithoutCancel(ctx), fingerprint, data, c.cfg.TTL); err != nil {
		c.log.Warn().Err(err).Msg("cache store failed, serving uncached")
	}
}
