package business

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"suppliersync/pkg/logger"
)

// Task processes one identifier. Its error is reported to the done callback
// and never stops the run.
type Task func(ctx context.Context, identifier string) error

// DoneFunc is called once per identifier, in completion order.
type DoneFunc func(identifier string, err error)

// Scheduler drives a Task over identifiers in chunks of Concurrency.
// Every dispatch waits on one shared limiter, so starts are at least
// PerRequestDelay apart across all workers; a chunk drains completely and
// then InterBatchDelay passes before the next chunk starts.
type Scheduler struct {
	Concurrency     int
	PerRequestDelay time.Duration
	InterBatchDelay time.Duration

	limiter *rate.Limiter
	sleep   SleepFunc
	log     logger.Logger
}

func NewScheduler(concurrency int, perRequestDelay, interBatchDelay time.Duration, writer io.Writer) *Scheduler {
	limit := rate.Inf
	if perRequestDelay > 0 {
		limit = rate.Every(perRequestDelay)
	}
	return &Scheduler{
		Concurrency:     concurrency,
		PerRequestDelay: perRequestDelay,
		InterBatchDelay: interBatchDelay,
		limiter:         rate.NewLimiter(limit, 1),
		sleep:           sleepContext,
		log:             logger.NewLogger(writer, "[ Scheduler ]"),
	}
}

// Pacer is the limiter every dispatch waits on. Fetchers and retries that
// send more than one request per dispatch wait on it too.
func (s *Scheduler) Pacer() *rate.Limiter {
	return s.limiter
}

// Run returns nil once every identifier was handled. Cancellation of ctx is
// checked between chunks only: work already dispatched runs to completion on
// a detached context, and Run then returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, identifiers []string, task Task, done DoneFunc) error {
	if len(identifiers) == 0 {
		return nil
	}
	if s.Concurrency <= 0 {
		return errors.New("scheduler: concurrency must be positive")
	}

	workCtx := context.WithoutCancel(ctx)
	chunks := (len(identifiers) + s.Concurrency - 1) / s.Concurrency

	for n, start := 0, 0; start < len(identifiers); n, start = n+1, start+s.Concurrency {
		if start > 0 && s.InterBatchDelay > 0 {
			if err := s.sleep(ctx, s.InterBatchDelay); err != nil {
				s.log.Log("stopped before chunk %d/%d: %v", n+1, chunks, err)
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			s.log.Log("stopped before chunk %d/%d: %v", n+1, chunks, err)
			return err
		}

		end := start + s.Concurrency
		if end > len(identifiers) {
			end = len(identifiers)
		}
		s.runChunk(workCtx, identifiers[start:end], task, done)
	}
	return nil
}

func (s *Scheduler) runChunk(ctx context.Context, chunk []string, task Task, done DoneFunc) {
	var wg sync.WaitGroup
	for _, id := range chunk {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := s.dispatch(ctx, id, task)
			if done != nil {
				done(id, err)
			}
		}(id)
	}
	wg.Wait()
}

func (s *Scheduler) dispatch(ctx context.Context, id string, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", id, r)
		}
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("limiter: %w", err)
	}
	return task(ctx, id)
}
