package subs_test

import (
	"testing"

	"github.com/delaneyj/resumeparty/subs"
	"github.com/stretchr/testify/assert"
)

type host struct{ name string }

func (*host) SubscriberKind() subs.Kind { return subs.KindHost }

type effect struct{ name string }

func (*effect) SubscriberKind() subs.Kind { return subs.KindEffect }

func recorder() (*[]string, subs.Notifier) {
	log := []string{}
	return &log, subs.NotifierFunc(func(s subs.Subscriber) {
		switch s := s.(type) {
		case *host:
			log = append(log, s.name)
		case *effect:
			log = append(log, s.name)
		}
	})
}

func TestManager(t *testing.T) {
	t.Run("duplicate edges collapse", func(t *testing.T) {
		log, n := recorder()
		m := subs.NewManager(n)
		h := &host{"h"}

		assert.True(t, m.AddSub(h, 1, "count", false))
		assert.False(t, m.AddSub(h, 1, "count", false))
		assert.Equal(t, 1, m.Len())

		m.Notify(1, "count")
		assert.Equal(t, []string{"h"}, *log)
	})

	t.Run("keyed edges only fire on their key", func(t *testing.T) {
		log, n := recorder()
		m := subs.NewManager(n)
		a, b := &host{"a"}, &host{"b"}

		m.AddSub(a, 1, "x", false)
		m.AddSub(b, 1, "y", false)

		m.Notify(1, "x")
		m.Notify(1, "z")
		assert.Equal(t, []string{"a"}, *log)
	})

	t.Run("wildcard fires on any key", func(t *testing.T) {
		log, n := recorder()
		m := subs.NewManager(n)
		a := &host{"a"}

		m.AddSub(a, 1, "", true)
		assert.False(t, m.AddSub(a, 1, "x", false), "keyed edge is redundant under a wildcard")

		m.Notify(1, "anything")
		m.NotifyAll(1)
		assert.Equal(t, []string{"a", "a"}, *log)
	})

	t.Run("fires in registration order, once per subscriber", func(t *testing.T) {
		log, n := recorder()
		m := subs.NewManager(n)
		a, b, c := &host{"a"}, &effect{"b"}, &host{"c"}

		m.AddSub(c, 7, "k", false)
		m.AddSub(a, 7, "k", false)
		m.AddSub(b, 7, "", true)
		m.AddSub(c, 7, "", true)

		m.Notify(7, "k")
		assert.Equal(t, []string{"c", "a", "b"}, *log)
	})

	t.Run("teardown removes every edge of the subscriber", func(t *testing.T) {
		log, n := recorder()
		m := subs.NewManager(n)
		a, b := &host{"a"}, &host{"b"}

		m.AddSub(a, 1, "x", false)
		m.AddSub(a, 2, "", true)
		m.AddSub(b, 2, "y", false)

		assert.Equal(t, 2, m.ClearSubscriptionsFor(a))
		assert.False(t, m.HasSubscribers(1))
		assert.True(t, m.HasSubscribers(2))

		m.Notify(1, "x")
		m.NotifyAll(2)
		assert.Equal(t, []string{"b"}, *log)
		assert.Empty(t, m.ForSubscriber(a))
		assert.Equal(t, 0, m.ClearSubscriptionsFor(a))

		// re-registration after teardown works
		assert.True(t, m.AddSub(a, 1, "x", false))
	})

	t.Run("for target lists live edges", func(t *testing.T) {
		_, n := recorder()
		m := subs.NewManager(n)
		hs := []*host{{"0"}, {"1"}, {"2"}, {"3"}, {"4"}}
		for _, h := range hs {
			m.AddSub(h, 3, "v", false)
		}
		for _, h := range hs[:4] {
			m.ClearSubscriptionsFor(h)
		}

		edges := m.ForTarget(3)
		if assert.Len(t, edges, 1) {
			assert.Equal(t, hs[4], edges[0].Subscriber)
			assert.Equal(t, "v", edges[0].Key)
		}
	})

	t.Run("ignores invalid edges", func(t *testing.T) {
		m := subs.NewManager(nil)
		assert.False(t, m.AddSub(nil, 1, "x", false))
		assert.False(t, m.AddSub(&host{}, 0, "x", false))
		m.Notify(1, "x")
	})
}
