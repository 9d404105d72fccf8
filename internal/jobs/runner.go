package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/autodevhq/autodev-backend/internal/platform/logger"
)

// Runner executes background tasks on a bounded pool. Submit never blocks
// the caller and task failures are logged, never propagated: submitted tasks
// are independent best-effort work, not a transaction. No ordering is
// guaranteed between tasks.
type Runner struct {
	log *logger.Logger
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewRunner(log *logger.Logger, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Runner{
		log: log.With("service", "JobRunner"),
		sem: make(chan struct{}, maxConcurrent),
	}
}

// Submit schedules fn on the pool. The task runs detached from the caller's
// context so an HTTP request finishing does not cancel its cascade work.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.sem <- struct{}{}
		defer func() { <-r.sem }()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("background task panicked", "task", name, "panic", fmt.Sprint(rec))
			}
		}()

		if err := fn(context.Background()); err != nil {
			r.log.Error("background task failed", "task", name, "error", err)
			return
		}
		r.log.Debug("background task complete", "task", name)
	}()
}

// Wait blocks until all submitted tasks have finished. Used on shutdown and
// by tests that need the cascade drained.
func (r *Runner) Wait() {
	r.wg.Wait()
}
