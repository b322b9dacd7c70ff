package store

import (
	"fmt"
	"log/slog"
)

// Wrapper is the reactive view over a Target. Each registered target has at
// most one wrapper per container.
type Wrapper interface {
	Target() *Target
	Flags() Flags
	Container() *Container
}

type proxy struct {
	c     *Container
	t     *Target
	flags Flags
}

func (p *proxy) Target() *Target       { return p.t }
func (p *proxy) Flags() Flags          { return p.flags }
func (p *proxy) Container() *Container { return p.c }

func (p *proxy) track(inv *Invocation, key string, wildcard bool) {
	if inv == nil || inv.Subscriber == nil {
		return
	}
	p.c.subs.AddSub(inv.Subscriber, p.t.id, key, wildcard)
}

func (p *proxy) value(v any) any {
	if b, ok := v.(*MutableBox); ok {
		v = b.Value
	}
	if t, ok := v.(*Target); ok && p.flags.Has(Recursive) {
		return p.c.Wrap(t, p.flags)
	}
	return v
}

func (p *proxy) prepare(inv *Invocation, op string, v any) (any, error) {
	if p.flags.Has(Immutable) {
		return nil, fmt.Errorf("%w: %s on target %d", ErrImmutableWrite, op, p.t.id)
	}
	p.c.checkOwner(op)
	if inv != nil && inv.Event == EventRender {
		p.c.logger.Warn("store mutated during render",
			slog.String("op", op),
			slog.Uint64("target", uint64(p.t.id)),
			slog.Any("host", inv.Host),
		)
	}
	if p.flags.Has(Recursive) {
		v = Unwrap(v)
	}
	v = normalize(v)
	if t, ok := v.(*Target); ok {
		p.c.Register(t)
	}
	return v, nil
}

// Object is the wrapper of a keyed target. Reads made with a subscribing
// invocation record a keyed edge; writes notify the written key.
type Object struct {
	proxy
}

func (o *Object) Get(inv *Invocation, key string) any {
	v, _ := o.Lookup(inv, key)
	return v
}

func (o *Object) Lookup(inv *Invocation, key string) (any, bool) {
	o.track(inv, key, false)
	v, ok := o.t.props[key]
	if !ok {
		return nil, false
	}
	return o.value(v), true
}

// Has reports whether key is present. Like Keys it subscribes to every key.
func (o *Object) Has(inv *Invocation, key string) bool {
	o.track(inv, "", true)
	_, ok := o.t.props[key]
	return ok
}

// Keys returns the sorted keys and subscribes to every key.
func (o *Object) Keys(inv *Invocation) []string {
	o.track(inv, "", true)
	return o.t.Keys()
}

func (o *Object) Len(inv *Invocation) int {
	o.track(inv, "", true)
	return len(o.t.props)
}

// Set writes key. Writing a value equal to the current one notifies nobody.
func (o *Object) Set(inv *Invocation, key string, v any) error {
	v, err := o.prepare(inv, "set "+key, v)
	if err != nil {
		return err
	}
	if old, ok := o.t.props[key]; ok && sameValue(old, v) {
		return nil
	}
	if o.t.props == nil {
		o.t.props = map[string]any{}
	}
	o.t.props[key] = v
	o.c.subs.Notify(o.t.id, key)
	return nil
}

func (o *Object) Delete(inv *Invocation, key string) error {
	if _, err := o.prepare(inv, "delete "+key, nil); err != nil {
		return err
	}
	if _, ok := o.t.props[key]; !ok {
		return nil
	}
	delete(o.t.props, key)
	o.c.subs.Notify(o.t.id, key)
	return nil
}

// Array is the wrapper of a sequence target. Any read subscribes to the whole
// array and any write notifies every subscriber.
type Array struct {
	proxy
}

func (a *Array) Len(inv *Invocation) int {
	a.track(inv, "", true)
	return len(a.t.items)
}

// Index returns nil when i is out of range.
func (a *Array) Index(inv *Invocation, i int) any {
	a.track(inv, "", true)
	if i < 0 || i >= len(a.t.items) {
		return nil
	}
	return a.value(a.t.items[i])
}

func (a *Array) Items(inv *Invocation) []any {
	a.track(inv, "", true)
	out := make([]any, len(a.t.items))
	for i, v := range a.t.items {
		out[i] = a.value(v)
	}
	return out
}

func (a *Array) SetIndex(inv *Invocation, i int, v any) error {
	if i < 0 || i >= len(a.t.items) {
		return fmt.Errorf("%w: %d of %d", ErrIndexRange, i, len(a.t.items))
	}
	v, err := a.prepare(inv, "set index", v)
	if err != nil {
		return err
	}
	a.t.items[i] = v
	a.c.subs.NotifyAll(a.t.id)
	return nil
}

func (a *Array) Push(inv *Invocation, vs ...any) error {
	_, err := a.Splice(inv, len(a.t.items), 0, vs...)
	return err
}

// Splice removes deleteCount items at start, inserts vs in their place and
// returns the removed items.
func (a *Array) Splice(inv *Invocation, start, deleteCount int, vs ...any) ([]any, error) {
	if start < 0 || start > len(a.t.items) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexRange, start, len(a.t.items))
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if start+deleteCount > len(a.t.items) {
		deleteCount = len(a.t.items) - start
	}
	prepared := make([]any, len(vs))
	for i, v := range vs {
		pv, err := a.prepare(inv, "splice", v)
		if err != nil {
			return nil, err
		}
		prepared[i] = pv
	}
	if len(vs) == 0 {
		if _, err := a.prepare(inv, "splice", nil); err != nil {
			return nil, err
		}
	}
	removed := make([]any, deleteCount)
	copy(removed, a.t.items[start:start+deleteCount])

	items := make([]any, 0, len(a.t.items)-deleteCount+len(prepared))
	items = append(items, a.t.items[:start]...)
	items = append(items, prepared...)
	items = append(items, a.t.items[start+deleteCount:]...)
	a.t.items = items

	a.c.subs.NotifyAll(a.t.id)
	return removed, nil
}

func (a *Array) Truncate(inv *Invocation, n int) error {
	if n < 0 || n > len(a.t.items) {
		return fmt.Errorf("%w: %d of %d", ErrIndexRange, n, len(a.t.items))
	}
	_, err := a.Splice(inv, n, len(a.t.items)-n)
	return err
}
