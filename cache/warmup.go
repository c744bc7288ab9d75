package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decorstore/cachekit/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// WarmupTask refreshes one key on every warmup run.
type WarmupTask struct {
	Key  string
	TTL  time.Duration
	Load Loader
}

// Warmer periodically refreshes frequently read keys in the distributed cache and,
// when given, the local cache.
type Warmer struct {
	dist     *Distributed
	local    *Local
	settings Settings
	tasks    []WarmupTask
	mutex    sync.Mutex
	logger   logger.Logger
}

// NewWarmer returns a Warmer. local may be nil.
func NewWarmer(dist *Distributed, local *Local, settings Settings, log logger.Logger) *Warmer {
	return &Warmer{
		dist:     dist,
		local:    local,
		settings: settings,
		logger:   log.WithPrefix("[cache-warmup]"),
	}
}

// Register adds a task. A ttl <= 0 uses LongTermExpiryMinutes.
func (w *Warmer) Register(key string, ttl time.Duration, load Loader) {
	if ttl <= 0 {
		ttl = w.settings.LongTermExpiry()
	}
	w.mutex.Lock()
	w.tasks = append(w.tasks, WarmupTask{Key: key, TTL: ttl, Load: load})
	w.mutex.Unlock()
	if w.local != nil {
		w.local.RegisterLoader(key, load)
	}
}

// RunOnce runs every task concurrently and returns how many keys were refreshed.
// Task failures are logged and do not stop the other tasks.
func (w *Warmer) RunOnce(ctx context.Context) int {
	w.mutex.Lock()
	tasks := make([]WarmupTask, len(w.tasks))
	copy(tasks, w.tasks)
	w.mutex.Unlock()

	log := w.logger.With(map[string]interface{}{"run": uuid.NewString()})
	log.Info("starting cache warmup of %d keys", len(tasks))
	started := time.Now()

	var warmed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			val, err := task.Load(gctx)
			if err != nil {
				log.Error("error warming up key %s: %s", task.Key, err)
				return nil
			}
			w.dist.Set(gctx, task.Key, val, task.TTL)
			if w.local != nil {
				w.local.Set(task.Key, val, task.TTL, "warmup")
			}
			warmed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	log.Info("cache warmup completed: %d/%d keys in %s", warmed.Load(), len(tasks), time.Since(started))
	return int(warmed.Load())
}

// Run waits WarmupDelay, then calls RunOnce every WarmupInterval until ctx is
// cancelled. It returns immediately when warming is disabled.
func (w *Warmer) Run(ctx context.Context) {
	if !w.settings.EnableCacheWarming {
		w.logger.Debug("cache warming is disabled")
		return
	}
	delay, err := w.settings.warmupDelay()
	if err != nil {
		w.logger.Error("invalid warmup delay %q: %s", w.settings.WarmupDelay, err)
		return
	}
	interval, err := w.settings.warmupInterval()
	if err != nil || interval <= 0 {
		w.logger.Error("invalid warmup interval %q: %v", w.settings.WarmupInterval, err)
		return
	}
	w.logger.Info("cache warmup service started, first run in %s then every %s", delay, interval)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cache warmup service is stopping")
			return
		case <-timer.C:
			w.RunOnce(ctx)
			timer.Reset(interval)
		}
	}
}
