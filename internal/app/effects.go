package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"taskflow/api/internal/logger"
)

// effect is one post-commit side effect: an activity entry, a board
// notification, a presence heartbeat or a search index update.
type effect struct {
	name string
	run  func(ctx context.Context) error
}

// Effects runs post-commit side effects on a fixed pool of workers. Dispatch
// never blocks: when the queue is full the effect is dropped and logged.
// Failures are retried a few times and then logged; they never reach the
// caller whose mutation already committed.
type Effects struct {
	logger  logger.Logger
	metrics *Metrics
	timeout time.Duration
	// newBackOff builds the retry schedule for one effect.
	newBackOff func() backoff.BackOff

	mu     sync.RWMutex
	closed bool
	queue  chan effect
	pool   *pool.Pool
}

func NewEffects(workers, queueSize int, log logger.Logger, metrics *Metrics) *Effects {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	e := &Effects{
		logger:  log,
		metrics: metrics,
		timeout: 5 * time.Second,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return backoff.WithMaxRetries(b, 3)
		},
		queue: make(chan effect, queueSize),
		pool:  pool.New().WithMaxGoroutines(workers),
	}
	for i := 0; i < workers; i++ {
		e.pool.Go(e.work)
	}
	return e
}

// Dispatch queues fn under name and reports whether it was accepted.
func (e *Effects) Dispatch(name string, fn func(ctx context.Context) error) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.metrics.effectDropped(name)
		return false
	}
	select {
	case e.queue <- effect{name: name, run: fn}:
		return true
	default:
		e.logger.Warn("effects: queue full, dropping", zap.String("effect", name))
		e.metrics.effectDropped(name)
		return false
	}
}

// Close stops accepting effects, drains the queue and waits for the workers.
func (e *Effects) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()
	e.pool.Wait()
}

func (e *Effects) work() {
	for eff := range e.queue {
		e.run(eff)
	}
}

func (e *Effects) run(eff effect) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	attempt := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = backoff.Permanent(fmt.Errorf("panic: %v", r))
			}
		}()
		return eff.run(ctx)
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Debug("effects: retrying", zap.String("effect", eff.name), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(attempt, backoff.WithContext(e.newBackOff(), ctx), notify); err != nil {
		e.logger.Warn("effects: giving up", zap.String("effect", eff.name), zap.Error(err))
		e.metrics.effectFailed(eff.name)
	}
}
