package store_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/lazy"
	"github.com/delaneyj/resumeparty/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingScheduler struct {
	hosts   []*dom.Node
	effects []*store.Task
}

func (s *recordingScheduler) MarkHostDirty(host *dom.Node)     { s.hosts = append(s.hosts, host) }
func (s *recordingScheduler) MarkEffectDirty(task *store.Task) { s.effects = append(s.effects, task) }
func (s *recordingScheduler) RequestFlush() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// should tell the scheduler about a host once per flush
func TestNotifyCoalesces(t *testing.T) {
	sched := &recordingScheduler{}
	c, host := setup(store.WithScheduler(sched))
	s := c.NewStore(map[string]any{"a": 0, "b": 0})

	inv := render(c, host)
	s.Get(inv, "a")
	s.Get(inv, "b")

	require.NoError(t, s.Set(nil, "a", 1))
	require.NoError(t, s.Set(nil, "b", 1))
	assert.Equal(t, []*dom.Node{host}, sched.hosts)

	assert.Equal(t, []*dom.Node{host}, c.TakeDirtyHosts())
	assert.True(t, c.IsHostStaged(host))

	require.NoError(t, s.Set(nil, "a", 2))
	assert.Len(t, sched.hosts, 2)
	c.FinishHostFlush()
	assert.False(t, c.IsHostStaged(host))
	assert.Equal(t, []*dom.Node{host}, c.TakeDirtyHosts())
}

// should drop every subscription below an unmounted element
func TestUnmount(t *testing.T) {
	c, host := setup()
	s := c.NewStore(map[string]any{"n": 0})
	task := c.AddTask(host, lazy.Inline("task", func() {}), store.TaskEffect)
	c.TakeDirtyEffects()

	s.Get(render(c, host), "n")
	s.Get(c.NewInvocation(host, task, store.EventTask), "n")
	assert.Equal(t, 2, c.Subs().Len())

	c.Unmount(c.Root())
	assert.Zero(t, c.Subs().Len())
	_, ok := c.LookupContext(host)
	assert.False(t, ok)

	require.NoError(t, s.Set(nil, "n", 1))
	assert.False(t, c.HasDirty())
}

// should detach a disposed task from its host
func TestDisposeTask(t *testing.T) {
	c, host := setup()
	a := c.AddTask(host, lazy.Inline("a", func() {}), store.TaskEffect)
	b := c.AddTask(host, lazy.Inline("b", func() {}), store.TaskEffect)
	assert.True(t, a.Flags.Has(store.TaskDirty))

	c.DisposeTask(a)
	ec, ok := c.LookupContext(host)
	require.True(t, ok)
	assert.Equal(t, []*store.Task{b}, ec.Tasks)
	assert.Equal(t, []*store.Task{b}, c.TakeDirtyEffects())
}

// should keep sequential state across renders
func TestUseStore(t *testing.T) {
	c, host := setup()

	first := store.UseStore(render(c, host), map[string]any{"count": 0}, 0)
	require.NoError(t, first.Set(nil, "count", 5))

	second := store.UseStore(render(c, host), map[string]any{"count": 0}, 0)
	assert.Same(t, first, second)
	assert.Equal(t, 5, second.Get(nil, "count"))

	ec, _ := c.LookupContext(host)
	assert.Len(t, ec.Seq, 1)
}

// should run a task only once per slot
func TestUseTask(t *testing.T) {
	c, host := setup()
	ref := lazy.Inline("effect", func() {})

	a := store.UseTask(render(c, host), ref, store.TaskVisible)
	b := store.UseTask(render(c, host), ref, store.TaskVisible)
	assert.Same(t, a, b)
	assert.Equal(t, []*store.Task{a}, c.TakeDirtyEffects())
}

// should resolve contexts from the nearest provider
func TestContexts(t *testing.T) {
	c, host := setup()
	theme := store.CreateContextID("theme")
	other := store.CreateContextID("other")
	assert.NotEqual(t, theme.Key, other.Key)

	store.UseContextProvider(c.NewInvocation(c.Root(), nil, store.EventRender), theme, "dark")
	v, ok := store.UseContext(render(c, host), theme)
	require.True(t, ok)
	assert.Equal(t, "dark", v)

	c.ProvideContext(host, theme, "light")
	v, _ = c.ResolveContext(host, theme)
	assert.Equal(t, "light", v)

	_, ok = c.ResolveContext(host, other)
	assert.False(t, ok)
}

// should never reuse element ids
func TestElementIDs(t *testing.T) {
	c, _ := setup()
	assert.Equal(t, "0", c.NextElementID())
	c.ObserveElementID("z")
	assert.Equal(t, "10", c.NextElementID())
	c.ObserveElementID("3")
	assert.Equal(t, "11", c.NextElementID())
}

// should invoke matching listeners with their captures and the invocation
func TestDispatch(t *testing.T) {
	loader := lazy.NewMapLoader()
	loader.Register("./counter.js", "inc", func(ctx context.Context, args ...any) (any, error) {
		s := args[0].(*store.Object)
		inv := args[1].(*store.Invocation)
		n := s.Get(nil, "count").(int)
		return nil, s.Set(inv, "count", n+args[2].(int))
	})
	loader.Register("./counter.js", "fail", func(ctx context.Context, args ...any) (any, error) {
		return nil, errors.New("boom")
	})

	c, host := setup(store.WithLoader(loader))
	s := c.NewStore(map[string]any{"count": 0})
	ec := c.Context(host)
	ec.On("click", lazy.New("./counter.js", "inc", s))
	ec.On("focus", lazy.New("./counter.js", "fail"))

	require.NoError(t, c.Dispatch(context.Background(), host, "click", 2))
	assert.Equal(t, 2, s.Get(nil, "count"))

	err := c.Dispatch(context.Background(), host, "focus")
	assert.ErrorContains(t, err, "boom")

	assert.NoError(t, c.Dispatch(context.Background(), c.Root(), "click"))
}

// should warn about writes from another goroutine in dev mode
func TestDevModeGoroutineGuard(t *testing.T) {
	var buf bytes.Buffer
	c, _ := setup(
		store.WithDevMode(true),
		store.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)
	s := c.NewStore(map[string]any{"n": 0})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Set(nil, "n", 1)
	}()
	wg.Wait()

	assert.Contains(t, buf.String(), "foreign goroutine")
}
