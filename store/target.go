package store

import (
	"sort"

	"github.com/delaneyj/resumeparty/subs"
)

type Kind uint8

const (
	KindObject Kind = iota
	KindArray
)

func (k Kind) String() string {
	if k == KindArray {
		return "array"
	}
	return "object"
}

// Target is a plain keyed container. It carries no subscriptions of its own;
// once registered with a Container it is addressed by a stable handle.
//
// The accessors on Target are untracked. Reactive code goes through the
// Object and Array wrappers instead.
type Target struct {
	kind  Kind
	props map[string]any
	items []any

	id    subs.TargetID
	owner *Container
}

// NewObject copies props into a new keyed target. Nested map[string]any and
// []any values become targets as well.
func NewObject(props map[string]any) *Target {
	t := &Target{kind: KindObject, props: make(map[string]any, len(props))}
	for k, v := range props {
		t.props[k] = normalize(v)
	}
	return t
}

// NewArray builds a sequence target, normalizing items like NewObject.
func NewArray(items ...any) *Target {
	t := &Target{kind: KindArray, items: make([]any, len(items))}
	for i, v := range items {
		t.items[i] = normalize(v)
	}
	return t
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return NewObject(x)
	case []any:
		return NewArray(x...)
	default:
		return v
	}
}

func (t *Target) Kind() Kind { return t.kind }

// ID is zero until the target is registered with a container.
func (t *Target) ID() subs.TargetID { return t.id }

func (t *Target) Container() *Container { return t.owner }

func (t *Target) Lookup(key string) (any, bool) {
	v, ok := t.props[key]
	return v, ok
}

// Keys returns the object keys in sorted order.
func (t *Target) Keys() []string {
	keys := make([]string, 0, len(t.props))
	for k := range t.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *Target) Put(key string, v any) {
	if t.props == nil {
		t.props = map[string]any{}
	}
	t.props[key] = normalize(v)
}

func (t *Target) Del(key string) {
	delete(t.props, key)
}

// Items returns a copy of the sequence.
func (t *Target) Items() []any {
	out := make([]any, len(t.items))
	copy(out, t.items)
	return out
}

func (t *Target) SetItems(items []any) {
	t.items = make([]any, len(items))
	for i, v := range items {
		t.items[i] = normalize(v)
	}
}

// Len is the number of keys or items.
func (t *Target) Len() int {
	if t.kind == KindArray {
		return len(t.items)
	}
	return len(t.props)
}
