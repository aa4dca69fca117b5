// Package janitor runs periodic maintenance sweeps: expired sessions, stale
// OTP challenges, dead verification rows, and revocation records whose tokens
// have already expired. Each task runs isolated; one failing sweep never
// stops the others or the schedule.
package janitor

import (
	"context"
	"log"
	"time"

	"vehicle-rental-platform/authcore/internal/telemetry"
)

const (
	defaultRetries    = 3
	defaultRetryDelay = time.Second
)

// Task is one maintenance category. Run returns how many rows were cleaned.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Scheduler fans tasks out on a fixed interval.
type Scheduler struct {
	interval   time.Duration
	tasks      []Task
	retries    int
	retryDelay time.Duration
	emitter    *telemetry.AsyncEmitter
}

// New returns a Scheduler sweeping tasks every interval. emitter may be nil.
func New(interval time.Duration, emitter *telemetry.AsyncEmitter, tasks ...Task) *Scheduler {
	return &Scheduler{
		interval:   interval,
		tasks:      tasks,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		emitter:    emitter,
	}
}

// Start runs the sweep loop until ctx is canceled. One sweep runs immediately
// on start. Each task runs in its own goroutine; the loop never waits for a
// slow task before scheduling the next tick.
func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("janitor: starting, interval %s, %d tasks", s.interval, len(s.tasks))
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("janitor: stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	for _, t := range s.tasks {
		go s.runTask(ctx, t)
	}
}

// runTask runs one task with bounded retries. Exhausting the retries only
// logs; the rows stay for the next sweep.
func (s *Scheduler) runTask(ctx context.Context, t Task) {
	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		n, err := t.Run(ctx)
		if err == nil {
			if n > 0 {
				log.Printf("janitor: %s cleaned %d rows", t.Name, n)
			}
			if s.emitter != nil && n > 0 {
				s.emitter.Emit(ctx, telemetry.Event{
					Type:   telemetry.EventJanitorSweep,
					Detail: map[string]any{"task": t.Name, "cleaned": n},
				})
			}
			return
		}
		lastErr = err
		if ctx.Err() != nil {
			return
		}
		if attempt < s.retries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retryDelay):
			}
		}
	}
	log.Printf("janitor: %s failed after %d attempts: %v", t.Name, s.retries, lastErr)
}
