package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/petermattis/goid"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/lazy"
	"github.com/delaneyj/resumeparty/subs"
)

// Scheduler turns dirty notifications into deferred work.
type Scheduler interface {
	MarkHostDirty(host *dom.Node)
	MarkEffectDirty(task *Task)
	RequestFlush() <-chan struct{}
}

// Container is the per-root state: the target arena and wrapper cache, the
// subscription index, pending work and the element id counter.
//
// A container is confined to a single logical thread. Nothing in it is
// locked; shard by root when running roots in parallel.
type Container struct {
	root      *dom.Node
	loader    lazy.Loader
	scheduler Scheduler
	logger    *slog.Logger
	devMode   bool
	goroutine int64

	targets  []*Target
	wrappers map[*Target]Wrapper
	subs     *subs.Manager
	contexts map[*dom.Node]*ElementContext

	hostsNext    mapset.Set[*dom.Node]
	hostQueue    []*dom.Node
	hostsStaging mapset.Set[*dom.Node]
	effects      mapset.Set[*Task]
	effectQueue  []*Task

	elementIDs int
}

func New(root *dom.Node, opts ...Option) *Container {
	c := &Container{
		root:         root,
		logger:       slog.Default(),
		goroutine:    goid.Get(),
		wrappers:     map[*Target]Wrapper{},
		contexts:     map[*dom.Node]*ElementContext{},
		hostsNext:    mapset.NewThreadUnsafeSet[*dom.Node](),
		hostsStaging: mapset.NewThreadUnsafeSet[*dom.Node](),
		effects:      mapset.NewThreadUnsafeSet[*Task](),
	}
	c.subs = subs.NewManager(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Container) Root() *dom.Node          { return c.root }
func (c *Container) Loader() lazy.Loader      { return c.loader }
func (c *Container) Logger() *slog.Logger     { return c.logger }
func (c *Container) Subs() *subs.Manager      { return c.subs }
func (c *Container) Scheduler() Scheduler     { return c.scheduler }
func (c *Container) SetScheduler(s Scheduler) { c.scheduler = s }

// Register adds t to the arena. Registering a target owned by another
// container is a programming error.
func (c *Container) Register(t *Target) subs.TargetID {
	if t.owner == c {
		return t.id
	}
	if t.owner != nil {
		panic(fmt.Sprintf("store: target %d belongs to another container", t.id))
	}
	t.owner = c
	c.targets = append(c.targets, t)
	t.id = subs.TargetID(len(c.targets))
	return t.id
}

// Target looks a registered target up by handle.
func (c *Container) Target(id subs.TargetID) *Target {
	if id == 0 || int(id) > len(c.targets) {
		return nil
	}
	return c.targets[id-1]
}

// Wrap returns the single wrapper of t, creating it on first use. Later
// calls return the cached wrapper whatever flags they pass.
func (c *Container) Wrap(t *Target, flags Flags) Wrapper {
	c.Register(t)
	if w, ok := c.wrappers[t]; ok {
		return w
	}
	p := proxy{c: c, t: t, flags: flags}
	var w Wrapper
	if t.kind == KindArray {
		w = &Array{p}
	} else {
		w = &Object{p}
	}
	c.wrappers[t] = w
	return w
}

func (c *Container) Object(t *Target, flags Flags) *Object {
	o, ok := c.Wrap(t, flags).(*Object)
	if !ok {
		panic("store: Object called on an array target")
	}
	return o
}

func (c *Container) Array(t *Target, flags Flags) *Array {
	a, ok := c.Wrap(t, flags).(*Array)
	if !ok {
		panic("store: Array called on an object target")
	}
	return a
}

// NewStore creates a recursive object store from plain props.
func (c *Container) NewStore(props map[string]any) *Object {
	return c.Object(NewObject(props), Recursive)
}

// Notify implements subs.Notifier. Repeated notifications for a subscriber
// already waiting for a flush are coalesced here.
func (c *Container) Notify(sub subs.Subscriber) {
	switch s := sub.(type) {
	case *dom.Node:
		if c.hostsNext.Add(s) {
			c.hostQueue = append(c.hostQueue, s)
			if c.scheduler != nil {
				c.scheduler.MarkHostDirty(s)
			}
		}
	case *Task:
		if c.effects.Add(s) {
			c.effectQueue = append(c.effectQueue, s)
			if c.scheduler != nil {
				c.scheduler.MarkEffectDirty(s)
			}
		}
	default:
		c.logger.Warn("unknown subscriber notified", slog.Any("subscriber", sub))
	}
}

// TakeDirtyHosts moves the pending hosts into staging and returns them in
// notification order. Hosts notified while staged queue up for the next pass.
func (c *Container) TakeDirtyHosts() []*dom.Node {
	hosts := make([]*dom.Node, 0, len(c.hostQueue))
	for _, h := range c.hostQueue {
		if c.hostsNext.Contains(h) {
			hosts = append(hosts, h)
			c.hostsStaging.Add(h)
		}
	}
	c.hostQueue = c.hostQueue[:0]
	c.hostsNext.Clear()
	return hosts
}

func (c *Container) FinishHostFlush() {
	c.hostsStaging.Clear()
}

func (c *Container) IsHostStaged(host *dom.Node) bool {
	return c.hostsStaging.Contains(host)
}

func (c *Container) TakeDirtyEffects() []*Task {
	tasks := make([]*Task, 0, len(c.effectQueue))
	for _, t := range c.effectQueue {
		if c.effects.Contains(t) {
			tasks = append(tasks, t)
		}
	}
	c.effectQueue = c.effectQueue[:0]
	c.effects.Clear()
	return tasks
}

func (c *Container) HasDirty() bool {
	return c.hostsNext.Cardinality() > 0 || c.effects.Cardinality() > 0
}

// NextElementID mints a fresh anchor id. Ids are never recycled.
func (c *Container) NextElementID() string {
	id := strconv.FormatInt(int64(c.elementIDs), 36)
	c.elementIDs++
	return id
}

// ObserveElementID moves the counter past an id found in the view tree.
func (c *Container) ObserveElementID(id string) {
	n, err := strconv.ParseInt(id, 36, 64)
	if err != nil {
		return
	}
	if int(n) >= c.elementIDs {
		c.elementIDs = int(n) + 1
	}
}

// Context returns the element context of el, creating it when missing.
func (c *Container) Context(el *dom.Node) *ElementContext {
	if ec, ok := c.contexts[el]; ok {
		return ec
	}
	ec := &ElementContext{Element: el}
	c.contexts[el] = ec
	return ec
}

func (c *Container) LookupContext(el *dom.Node) (*ElementContext, bool) {
	ec, ok := c.contexts[el]
	return ec, ok
}

func (c *Container) NewInvocation(host *dom.Node, sub subs.Subscriber, event string) *Invocation {
	return &Invocation{Container: c, Host: host, Subscriber: sub, Event: event}
}

func (c *Container) ClearSubscriptionsFor(sub subs.Subscriber) int {
	return c.subs.ClearSubscriptionsFor(sub)
}

// AddTask attaches an effect to host and marks it dirty so it runs on the
// next flush.
func (c *Container) AddTask(host *dom.Node, ref *lazy.Ref, flags TaskFlags) *Task {
	ec := c.Context(host)
	t := &Task{Flags: flags | TaskDirty, Index: len(ec.Tasks), Host: host, Ref: ref}
	ec.Tasks = append(ec.Tasks, t)
	c.Notify(t)
	return t
}

// DisposeTask drops the task's edges and detaches it from its host.
func (c *Container) DisposeTask(t *Task) {
	c.subs.ClearSubscriptionsFor(t)
	c.effects.Remove(t)
	if ec, ok := c.contexts[t.Host]; ok {
		for i, other := range ec.Tasks {
			if other == t {
				ec.Tasks = append(ec.Tasks[:i], ec.Tasks[i+1:]...)
				break
			}
		}
	}
}

// Unmount tears down every context and subscription under el.
func (c *Container) Unmount(el *dom.Node) {
	el.Walk(func(n *dom.Node) bool {
		c.subs.ClearSubscriptionsFor(n)
		c.hostsNext.Remove(n)
		c.hostsStaging.Remove(n)
		if ec, ok := c.contexts[n]; ok {
			for _, t := range ec.Tasks {
				c.subs.ClearSubscriptionsFor(t)
				c.effects.Remove(t)
			}
			delete(c.contexts, n)
		}
		return true
	})
}

// Dispose releases the whole container.
func (c *Container) Dispose() {
	c.Unmount(c.root)
	c.targets = nil
	c.wrappers = map[*Target]Wrapper{}
	c.subs = subs.NewManager(c)
	c.hostQueue = nil
	c.effectQueue = nil
	c.effects.Clear()
}

// Dispatch invokes every listener registered for event on el. Listeners get
// the invocation followed by args after their captures.
func (c *Container) Dispatch(ctx context.Context, el *dom.Node, event string, args ...any) error {
	ec, ok := c.contexts[el]
	if !ok {
		return nil
	}
	inv := c.NewInvocation(el, nil, EventListenerPrefix+event)
	var errs []error
	for _, l := range ec.Listeners {
		if l.Event != event {
			continue
		}
		all := append([]any{inv}, args...)
		if _, err := l.Ref.Invoke(ctx, c.loader, el, all...); err != nil {
			errs = append(errs, fmt.Errorf("dispatch %s on %s: %w", event, el, err))
		}
	}
	return errors.Join(errs...)
}

// AdoptGoroutine makes the calling goroutine the container's owner, for
// event loops started after construction.
func (c *Container) AdoptGoroutine() {
	c.goroutine = goid.Get()
}

func (c *Container) checkOwner(op string) {
	if !c.devMode {
		return
	}
	if g := goid.Get(); g != c.goroutine {
		c.logger.Warn("container used from a foreign goroutine",
			slog.String("op", op),
			slog.Int64("owner", c.goroutine),
			slog.Int64("goroutine", g),
		)
	}
}
