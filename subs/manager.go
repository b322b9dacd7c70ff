package subs

import (
	mapset "github.com/deckarep/golang-set/v2"
)

type Kind uint8

const (
	// KindHost subscribers are view anchors standing in for a component instance.
	KindHost Kind = iota
	// KindEffect subscribers are side-effect task descriptors.
	KindEffect
)

func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// Subscriber is anything that can depend on tracked state.
// Implementations must be comparable (pointer types in practice).
type Subscriber interface {
	SubscriberKind() Kind
}

// TargetID is the stable arena handle of a reactive target.
// Zero is never a valid handle.
type TargetID uint32

// Notifier receives subscribers whose dependencies changed.
// The manager holds no scheduling policy, it only forwards.
type Notifier interface {
	Notify(sub Subscriber)
}

type NotifierFunc func(sub Subscriber)

func (f NotifierFunc) Notify(sub Subscriber) {
	if f != nil {
		f(sub)
	}
}

type Subscription struct {
	Subscriber Subscriber
	Target     TargetID
	Key        string
	Wildcard   bool

	removed bool
}

type edge struct {
	sub      Subscriber
	target   TargetID
	key      string
	wildcard bool
}

func (s *Subscription) edge() edge {
	return edge{sub: s.Subscriber, target: s.Target, key: s.Key, wildcard: s.Wildcard}
}

type targetSubs struct {
	list []*Subscription
	live int
}

// Manager is the flat per-container dependency index.
// Entries are kept per target in registration order and per subscriber so
// teardown only touches the subscriber's own edges.
type Manager struct {
	notifier Notifier

	byTarget     map[TargetID]*targetSubs
	bySubscriber map[Subscriber][]*Subscription
	edges        mapset.Set[edge]
}

func NewManager(n Notifier) *Manager {
	return &Manager{
		notifier:     n,
		byTarget:     map[TargetID]*targetSubs{},
		bySubscriber: map[Subscriber][]*Subscription{},
		edges:        mapset.NewThreadUnsafeSet[edge](),
	}
}

// AddSub registers the edge, returning false if an equivalent edge already
// exists. A keyed edge is redundant once the same subscriber holds a wildcard
// on the target.
func (m *Manager) AddSub(sub Subscriber, target TargetID, key string, wildcard bool) bool {
	if sub == nil || target == 0 {
		return false
	}
	if wildcard {
		key = ""
	} else if m.edges.Contains(edge{sub: sub, target: target, wildcard: true}) {
		return false
	}

	s := &Subscription{Subscriber: sub, Target: target, Key: key, Wildcard: wildcard}
	if !m.edges.Add(s.edge()) {
		return false
	}

	ts, ok := m.byTarget[target]
	if !ok {
		ts = &targetSubs{}
		m.byTarget[target] = ts
	}
	ts.list = append(ts.list, s)
	ts.live++

	m.bySubscriber[sub] = append(m.bySubscriber[sub], s)
	return true
}

// Notify fires every subscriber of target holding a wildcard or the given key.
func (m *Manager) Notify(target TargetID, key string) {
	m.notify(target, func(s *Subscription) bool {
		return s.Wildcard || s.Key == key
	})
}

// NotifyAll fires every subscriber of target regardless of key. Used for
// structural mutations of sequences.
func (m *Manager) NotifyAll(target TargetID) {
	m.notify(target, func(*Subscription) bool { return true })
}

func (m *Manager) notify(target TargetID, match func(*Subscription) bool) {
	ts, ok := m.byTarget[target]
	if !ok || m.notifier == nil {
		return
	}

	// snapshot first, firing may register or clear edges
	list := make([]*Subscription, len(ts.list))
	copy(list, ts.list)

	var fired []Subscriber
	for _, s := range list {
		if s.removed || !match(s) {
			continue
		}
		already := false
		for _, f := range fired {
			if f == s.Subscriber {
				already = true
				break
			}
		}
		if already {
			continue
		}
		fired = append(fired, s.Subscriber)
		m.notifier.Notify(s.Subscriber)
	}
}

// ClearSubscriptionsFor drops every edge owned by sub across all targets.
func (m *Manager) ClearSubscriptionsFor(sub Subscriber) int {
	owned, ok := m.bySubscriber[sub]
	if !ok {
		return 0
	}
	delete(m.bySubscriber, sub)

	for _, s := range owned {
		s.removed = true
		m.edges.Remove(s.edge())

		ts := m.byTarget[s.Target]
		if ts == nil {
			continue
		}
		ts.live--
		if ts.live <= 0 {
			delete(m.byTarget, s.Target)
			continue
		}
		if len(ts.list) > 2*ts.live {
			ts.compact()
		}
	}
	return len(owned)
}

func (ts *targetSubs) compact() {
	live := ts.list[:0]
	for _, s := range ts.list {
		if !s.removed {
			live = append(live, s)
		}
	}
	for i := len(live); i < len(ts.list); i++ {
		ts.list[i] = nil
	}
	ts.list = live
}

// HasSubscribers reports whether any live edge points at target.
func (m *Manager) HasSubscribers(target TargetID) bool {
	ts, ok := m.byTarget[target]
	return ok && ts.live > 0
}

// ForTarget returns the live edges of target in registration order.
func (m *Manager) ForTarget(target TargetID) []Subscription {
	ts, ok := m.byTarget[target]
	if !ok {
		return nil
	}
	out := make([]Subscription, 0, ts.live)
	for _, s := range ts.list {
		if !s.removed {
			out = append(out, *s)
		}
	}
	return out
}

// ForSubscriber returns the live edges owned by sub in registration order.
func (m *Manager) ForSubscriber(sub Subscriber) []Subscription {
	owned := m.bySubscriber[sub]
	out := make([]Subscription, 0, len(owned))
	for _, s := range owned {
		out = append(out, *s)
	}
	return out
}

// Len is the number of live edges.
func (m *Manager) Len() int {
	return m.edges.Cardinality()
}
