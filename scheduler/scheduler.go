package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/store"
)

var ErrNotConverged = errors.New("scheduler: flush did not converge")

const DefaultMaxPasses = 100

// Renderer re-renders a dirty host. inv subscribes the host.
type Renderer func(ctx context.Context, inv *store.Invocation, ec *store.ElementContext) error

// TaskRunner re-runs a dirty effect. inv subscribes the task.
type TaskRunner func(ctx context.Context, inv *store.Invocation, task *store.Task) error

// Scheduler is the reference store.Scheduler: notifications only mark work,
// Flush drains it. Hosts render before effects in each pass.
type Scheduler struct {
	c         *store.Container
	render    Renderer
	runTask   TaskRunner
	tick      time.Duration
	maxPasses int
	logger    *slog.Logger

	// incremented after each completed flush
	clock     int
	scheduled bool
	running   bool
	waiters   []chan struct{}

	inbox chan func()
}

type Option func(*Scheduler)

func WithRenderer(r Renderer) Option {
	return func(s *Scheduler) { s.render = r }
}

func WithTaskRunner(r TaskRunner) Option {
	return func(s *Scheduler) { s.runTask = r }
}

// WithTick makes Run flush on a fixed interval instead of after every posted
// job.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

func WithMaxPasses(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxPasses = n
		}
	}
}

// Attach creates a scheduler and installs it on c.
func Attach(c *store.Container, opts ...Option) *Scheduler {
	s := &Scheduler{
		c:         c,
		maxPasses: DefaultMaxPasses,
		logger:    c.Logger(),
		inbox:     make(chan func(), 64),
	}
	s.render = s.defaultRender
	s.runTask = s.defaultRunTask
	for _, opt := range opts {
		opt(s)
	}
	c.SetScheduler(s)
	return s
}

func (s *Scheduler) MarkHostDirty(host *dom.Node) {
	s.scheduled = true
}

func (s *Scheduler) MarkEffectDirty(task *store.Task) {
	task.Flags |= store.TaskDirty
	s.scheduled = true
}

// RequestFlush returns a channel closed once pending work has been flushed.
func (s *Scheduler) RequestFlush() <-chan struct{} {
	ch := make(chan struct{})
	if !s.scheduled && !s.c.HasDirty() {
		close(ch)
		return ch
	}
	s.waiters = append(s.waiters, ch)
	return ch
}

func (s *Scheduler) Pending() bool {
	return s.scheduled || s.c.HasDirty()
}

func (s *Scheduler) Clock() int {
	return s.clock
}

// Flush renders dirty hosts then runs dirty effects until nothing is dirty.
// Calls made while a flush is running return immediately. Waiters from
// RequestFlush are released however the flush ends, a cancelled ctx
// included.
func (s *Scheduler) Flush(ctx context.Context) error {
	if s.running {
		return nil
	}
	s.running = true
	defer func() {
		s.running = false
		s.release()
	}()

	var errs []error
	passes := 0
	for s.c.HasDirty() {
		if err := ctx.Err(); err != nil {
			return err
		}
		passes++
		if passes > s.maxPasses {
			errs = append(errs, fmt.Errorf("%w after %d passes", ErrNotConverged, s.maxPasses))
			break
		}

		hosts := s.c.TakeDirtyHosts()
		for _, host := range hosts {
			if err := s.renderHost(ctx, host); err != nil {
				errs = append(errs, err)
			}
		}
		s.c.FinishHostFlush()

		for _, task := range s.c.TakeDirtyEffects() {
			if err := s.runEffect(ctx, task); err != nil {
				errs = append(errs, err)
			}
		}
	}

	s.clock++
	s.scheduled = false

	s.logger.Debug("flushed", slog.Int("clock", s.clock), slog.Int("passes", passes))
	return errors.Join(errs...)
}

func (s *Scheduler) release() {
	for _, ch := range s.waiters {
		close(ch)
	}
	s.waiters = s.waiters[:0]
}

func (s *Scheduler) renderHost(ctx context.Context, host *dom.Node) error {
	s.c.ClearSubscriptionsFor(host)
	ec, ok := s.c.LookupContext(host)
	if !ok {
		return nil
	}
	inv := s.c.NewInvocation(host, host, store.EventRender)
	if err := s.render(ctx, inv, ec); err != nil {
		return fmt.Errorf("render %s: %w", host, err)
	}
	return nil
}

func (s *Scheduler) runEffect(ctx context.Context, task *store.Task) error {
	s.c.ClearSubscriptionsFor(task)
	task.Flags &^= store.TaskDirty
	inv := s.c.NewInvocation(task.Host, task, store.EventTask)
	if err := s.runTask(ctx, inv, task); err != nil {
		return fmt.Errorf("task %d of %s: %w", task.Index, task.Host, err)
	}
	return nil
}

func (s *Scheduler) defaultRender(ctx context.Context, inv *store.Invocation, ec *store.ElementContext) error {
	if ec.Render == nil {
		return nil
	}
	_, err := ec.Render.Invoke(ctx, s.c.Loader(), ec.Element, inv)
	return err
}

func (s *Scheduler) defaultRunTask(ctx context.Context, inv *store.Invocation, task *store.Task) error {
	if task.Ref == nil {
		return nil
	}
	_, err := task.Ref.Invoke(ctx, s.c.Loader(), task.Host, inv)
	return err
}
