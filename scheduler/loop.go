package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Post queues fn to run on the loop goroutine. It blocks when the inbox is
// full and gives up when ctx is done.
func (s *Scheduler) Post(ctx context.Context, fn func()) error {
	select {
	case s.inbox <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run owns the container until ctx is done. Posted jobs run here, and pending
// work is flushed after each job or on every tick when WithTick is set.
func (s *Scheduler) Run(ctx context.Context) error {
	s.c.AdoptGoroutine()

	var tick <-chan time.Time
	if s.tick > 0 {
		t := time.NewTicker(s.tick)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.inbox:
			fn()
			if tick != nil {
				continue
			}
		case <-tick:
		}
		if !s.Pending() {
			continue
		}
		if err := s.Flush(ctx); err != nil {
			s.logger.Error("flush failed", slog.Any("err", err))
		}
	}
}
