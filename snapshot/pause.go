package snapshot

import (
	"log/slog"
	"math"
	"reflect"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/lazy"
	"github.com/delaneyj/resumeparty/store"
	"github.com/delaneyj/resumeparty/subs"
)

type refMap struct {
	values []any
	pos    map[any]int
}

func (m *refMap) add(v any) int {
	key := canonical(v)
	if i, ok := m.pos[key]; ok {
		return i
	}
	m.pos[key] = len(m.values)
	m.values = append(m.values, v)
	return len(m.values) - 1
}

type pauser struct {
	c    *store.Container
	root *dom.Node

	seen    mapset.Set[any]
	entries []any
	index   map[any]int

	anchors    mapset.Set[*dom.Node]
	anchorList []*dom.Node
	visited    mapset.Set[*dom.Node]
	refMaps    map[*dom.Node]*refMap
	elementIDs map[*dom.Node]string
}

// Pause serializes every element context under root, the values they reach
// and the subscriptions between them. On success the overlay attributes of
// the tree are rewritten; on error the tree is left untouched.
func Pause(c *store.Container, root *dom.Node) (*Snapshot, error) {
	if root == nil {
		root = c.Root()
	}
	p := &pauser{
		c:          c,
		root:       root,
		seen:       mapset.NewThreadUnsafeSet[any](),
		index:      map[any]int{},
		anchors:    mapset.NewThreadUnsafeSet[*dom.Node](),
		visited:    mapset.NewThreadUnsafeSet[*dom.Node](),
		refMaps:    map[*dom.Node]*refMap{},
		elementIDs: map[*dom.Node]string{},
	}

	if err := p.collectTree(); err != nil {
		return nil, err
	}
	if err := p.closeOverSubscribers(); err != nil {
		return nil, err
	}
	subscribed := p.assignIDs()
	p.assignElementIDs()

	snap := &Snapshot{
		Objs:     make([]any, len(p.entries)),
		Subs:     make([]map[string][]string, subscribed),
		Elements: p.elementIDs,
	}
	for i, v := range p.entries {
		enc, err := p.encode(v)
		if err != nil {
			return nil, err
		}
		snap.Objs[i] = enc
	}
	for i := 0; i < subscribed; i++ {
		snap.Subs[i] = p.subscriptions(p.entries[i].(*store.Target))
	}

	attrs, err := p.overlay(snap)
	if err != nil {
		return nil, err
	}
	p.root.Walk(func(n *dom.Node) bool {
		if n.Type == dom.ElementNode {
			n.RemoveAttrFunc(func(key string) bool {
				return key != dom.AttrID && dom.IsOverlayAttr(key)
			})
		}
		return true
	})
	for _, el := range p.anchorList {
		for _, a := range attrs[el] {
			el.SetAttr(a.Key, a.Val)
		}
	}

	c.Logger().Debug("paused",
		slog.Int("entries", len(snap.Objs)),
		slog.Int("subscribed", subscribed),
		slog.Int("elements", len(p.anchorList)),
	)
	return snap, nil
}

func (p *pauser) collectTree() error {
	var err error
	p.root.Walk(func(n *dom.Node) bool {
		if err != nil {
			return false
		}
		if ec, ok := p.c.LookupContext(n); ok && ec.HasState() {
			err = p.visit(n)
		}
		return true
	})
	return err
}

// closeOverSubscribers pulls in the hosts and tasks subscribed to collected
// stores. Visiting them may collect more stores, so the loop runs until the
// entry list stops growing.
func (p *pauser) closeOverSubscribers() error {
	for i := 0; i < len(p.entries); i++ {
		t, ok := p.entries[i].(*store.Target)
		if !ok || t.ID() == 0 {
			continue
		}
		for _, s := range p.c.Subs().ForTarget(t.ID()) {
			switch sub := s.Subscriber.(type) {
			case *dom.Node:
				if !p.root.Contains(sub) {
					continue
				}
				if err := p.visit(sub); err != nil {
					return err
				}
			case *store.Task:
				if sub.Host == nil || !p.root.Contains(sub.Host) {
					continue
				}
				if err := p.collect(sub); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (p *pauser) visit(el *dom.Node) error {
	if err := p.anchor(el); err != nil {
		return err
	}
	if !p.visited.Add(el) {
		return nil
	}
	ec, ok := p.c.LookupContext(el)
	if !ok {
		return nil
	}

	rm := &refMap{pos: map[any]int{}}
	p.refMaps[el] = rm
	for _, l := range ec.Listeners {
		captures, err := l.Ref.Captures()
		if err != nil {
			return err
		}
		for _, v := range captures {
			if err := p.collect(v); err != nil {
				return err
			}
			rm.add(v)
		}
	}
	for _, v := range ec.Seq {
		if err := p.collect(v); err != nil {
			return err
		}
	}
	if ec.Props != nil {
		if err := p.collect(ec.Props); err != nil {
			return err
		}
	}
	for _, k := range sortedKeys(ec.Contexts) {
		if err := p.collect(ec.Contexts[k]); err != nil {
			return err
		}
	}
	for _, t := range ec.Tasks {
		if err := p.collect(t); err != nil {
			return err
		}
	}
	if ec.Render != nil {
		if err := p.collectCaptures(ec.Render); err != nil {
			return err
		}
	}
	return nil
}

func (p *pauser) anchor(el *dom.Node) error {
	if !p.root.Contains(el) {
		return &NotSerializableError{Value: el, Reason: "element outside the paused root"}
	}
	if p.anchors.Add(el) {
		p.anchorList = append(p.anchorList, el)
	}
	return nil
}

func (p *pauser) collectCaptures(r *lazy.Ref) error {
	captures, err := r.Captures()
	if err != nil {
		return err
	}
	for _, v := range captures {
		if err := p.collect(v); err != nil {
			return err
		}
	}
	return nil
}

// collect records v as an entry and visits what it references. Elements are
// anchored instead of becoming entries.
func (p *pauser) collect(v any) error {
	if n, ok := v.(*dom.Node); ok {
		if n == nil {
			return &NotSerializableError{Value: v, Reason: "nil element"}
		}
		if n.Type == dom.ElementNode {
			return p.anchor(n)
		}
	}
	key := canonical(v)
	if key != nil && !reflect.TypeOf(key).Comparable() {
		return &NotSerializableError{Value: v, Reason: "wrap maps and slices in a store"}
	}
	if !p.seen.Add(key) {
		return nil
	}
	p.entries = append(p.entries, key)

	switch x := key.(type) {
	case *store.Target:
		if owner := x.Container(); owner != nil && owner != p.c {
			return &NotSerializableError{Value: v, Reason: "store of another container"}
		}
		p.c.Register(x)
		if x.Kind() == store.KindArray {
			for _, item := range x.Items() {
				if err := p.collectChild(item); err != nil {
					return err
				}
			}
			return nil
		}
		for _, k := range x.Keys() {
			child, _ := x.Lookup(k)
			if err := p.collectChild(child); err != nil {
				return err
			}
		}
		return nil
	case string:
		return nil
	}
	if isPrimitive(key) {
		return nil
	}

	cd := codecFor(key)
	if cd == nil {
		return &NotSerializableError{Value: v}
	}
	if cd.children == nil {
		return nil
	}
	children, err := cd.children(key)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := p.collect(child); err != nil {
			return err
		}
	}
	return nil
}

func (p *pauser) collectChild(v any) error {
	if isPrimitive(v) {
		return nil
	}
	return p.collect(v)
}

func (p *pauser) retained(s subs.Subscription) bool {
	switch sub := s.Subscriber.(type) {
	case *dom.Node:
		return p.anchors.Contains(sub)
	case *store.Task:
		return p.seen.Contains(sub)
	}
	return false
}

func (p *pauser) hasRetainedSubscribers(v any) bool {
	t, ok := v.(*store.Target)
	if !ok || t.ID() == 0 {
		return false
	}
	for _, s := range p.c.Subs().ForTarget(t.ID()) {
		if p.retained(s) {
			return true
		}
	}
	return false
}

// assignIDs moves subscribed stores to the front, keeping collection order
// otherwise, and returns how many there are.
func (p *pauser) assignIDs() int {
	ordered := make([]any, 0, len(p.entries))
	var rest []any
	for _, v := range p.entries {
		if p.hasRetainedSubscribers(v) {
			ordered = append(ordered, v)
		} else {
			rest = append(rest, v)
		}
	}
	subscribed := len(ordered)
	p.entries = append(ordered, rest...)
	for i, v := range p.entries {
		p.index[v] = i
	}
	return subscribed
}

// assignElementIDs keeps existing q:id values and mints new ones, in
// document order, past every id already present in the tree.
func (p *pauser) assignElementIDs() {
	p.root.Walk(func(n *dom.Node) bool {
		if id, ok := n.ID(); ok {
			p.c.ObserveElementID(id)
		}
		return true
	})
	ordered := make([]*dom.Node, 0, len(p.anchorList))
	p.root.Walk(func(n *dom.Node) bool {
		if !p.anchors.Contains(n) {
			return true
		}
		id, ok := n.ID()
		if !ok {
			id = p.c.NextElementID()
		}
		p.elementIDs[n] = id
		ordered = append(ordered, n)
		return true
	})
	p.anchorList = ordered
}

// token is the top level reference to a collected value.
func (p *pauser) token(v any) (string, error) {
	switch x := v.(type) {
	case *dom.Node:
		if x.Type == dom.ElementNode {
			id, ok := p.elementIDs[x]
			if !ok {
				return "", &NotSerializableError{Value: v, Reason: "element was not anchored"}
			}
			return elementToken(id), nil
		}
	case store.Wrapper:
		i, ok := p.index[x.Target()]
		if !ok {
			return "", &NotSerializableError{Value: v, Reason: "store was not collected"}
		}
		return wrapToken(i, x.Flags()), nil
	}
	key := canonical(v)
	i, ok := p.index[key]
	if !ok {
		return "", &NotSerializableError{Value: v, Reason: "value was not collected"}
	}
	return formatID(i), nil
}

// child is the form of a value nested in an object or array.
func (p *pauser) child(v any) (any, error) {
	if isPrimitive(v) {
		return v, nil
	}
	return p.token(v)
}

func (p *pauser) encode(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return escapeString(x), nil
	case *store.Target:
		if x.Kind() == store.KindArray {
			items := x.Items()
			out := make([]any, len(items))
			for i, item := range items {
				c, err := p.child(item)
				if err != nil {
					return nil, err
				}
				out[i] = c
			}
			return out, nil
		}
		out := make(map[string]any, x.Len())
		for _, k := range x.Keys() {
			item, _ := x.Lookup(k)
			c, err := p.child(item)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	}
	if isPrimitive(v) {
		return v, nil
	}
	cd := codecFor(v)
	if cd == nil {
		return nil, &NotSerializableError{Value: v}
	}
	payload, err := cd.encode(p, v)
	if err != nil {
		return nil, err
	}
	return string(cd.prefix) + payload, nil
}

func (p *pauser) subscriberID(sub subs.Subscriber) string {
	switch s := sub.(type) {
	case *dom.Node:
		return elementToken(p.elementIDs[s])
	case *store.Task:
		return formatID(p.index[s])
	}
	return ""
}

func (p *pauser) subscriptions(t *store.Target) map[string][]string {
	out := map[string][]string{}
	wildcard := map[string]bool{}
	for _, s := range p.c.Subs().ForTarget(t.ID()) {
		if !p.retained(s) {
			continue
		}
		id := p.subscriberID(s.Subscriber)
		switch {
		case s.Wildcard:
			out[id] = nil
			wildcard[id] = true
		case wildcard[id]:
		default:
			out[id] = append(out[id], s.Key)
		}
	}
	return out
}

func (p *pauser) overlay(snap *Snapshot) (map[*dom.Node][]dom.Attr, error) {
	attrs := make(map[*dom.Node][]dom.Attr, len(p.anchorList))
	for _, el := range p.anchorList {
		id := p.elementIDs[el]
		list := []dom.Attr{{Key: dom.AttrID, Val: id}}

		ec, ok := p.c.LookupContext(el)
		if !ok {
			attrs[el] = list
			continue
		}
		add := func(key string, values []any) error {
			if len(values) == 0 {
				return nil
			}
			tokens := make([]string, len(values))
			for i, v := range values {
				t, err := p.token(v)
				if err != nil {
					return err
				}
				tokens[i] = t
			}
			list = append(list, dom.Attr{Key: key, Val: strings.Join(tokens, " ")})
			return nil
		}

		rm := p.refMaps[el]
		if rm == nil {
			rm = &refMap{pos: map[any]int{}}
		}
		if err := add(dom.AttrObj, rm.values); err != nil {
			return nil, err
		}
		if err := add(dom.AttrSeq, ec.Seq); err != nil {
			return nil, err
		}
		if ec.Props != nil {
			if err := add(dom.AttrProps, []any{ec.Props}); err != nil {
				return nil, err
			}
		}
		if len(ec.Contexts) > 0 {
			keys := sortedKeys(ec.Contexts)
			pairs := make([]string, len(keys))
			for i, k := range keys {
				t, err := p.token(ec.Contexts[k])
				if err != nil {
					return nil, err
				}
				pairs[i] = k + "=" + t
			}
			list = append(list, dom.Attr{Key: dom.AttrCtx, Val: strings.Join(pairs, " ")})
		}
		tasks := make([]any, len(ec.Tasks))
		for i, t := range ec.Tasks {
			tasks[i] = t
		}
		if err := add(dom.AttrTask, tasks); err != nil {
			return nil, err
		}
		if ec.Render != nil {
			enc, err := p.encodeRef(ec.Render, p.token)
			if err != nil {
				return nil, err
			}
			list = append(list, dom.Attr{Key: dom.AttrRender, Val: enc})
		}

		var events []string
		byEvent := map[string][]string{}
		for _, l := range ec.Listeners {
			enc, err := p.encodeRef(l.Ref, func(v any) (string, error) {
				return formatID(rm.add(v)), nil
			})
			if err != nil {
				return nil, err
			}
			if _, ok := byEvent[l.Event]; !ok {
				events = append(events, l.Event)
			}
			byEvent[l.Event] = append(byEvent[l.Event], enc)
			snap.Listeners = append(snap.Listeners, ListenerEntry{Element: el, ID: id, Event: l.Event, Ref: enc})
		}
		for _, ev := range events {
			list = append(list, dom.Attr{Key: dom.ListenerPrefix + ev, Val: strings.Join(byEvent[ev], "\n")})
		}
		attrs[el] = list
	}
	return attrs, nil
}

func (p *pauser) encodeRef(r *lazy.Ref, capture func(any) (string, error)) (string, error) {
	captures, err := r.Captures()
	if err != nil {
		return "", err
	}
	ids := make([]string, len(captures))
	for i, v := range captures {
		if ids[i], err = capture(v); err != nil {
			return "", err
		}
	}
	return lazy.Format(r.Chunk, r.EncodedSymbol(), ids), nil
}

// canonical is the identity a value is collected under. Live-only values
// collapse into undefined.
func canonical(v any) any {
	switch x := v.(type) {
	case store.Wrapper:
		return x.Target()
	case *store.NoSerializeBox:
		return store.Undefined
	case float64:
		if math.IsNaN(x) {
			return nanValue{bits: 64}
		}
	case float32:
		if math.IsNaN(float64(x)) {
			return nanValue{bits: 32}
		}
	}
	return v
}

// isPrimitive reports whether v is written inline. JSON keeps the Go type of
// ints and fractional float64s only.
func isPrimitive(v any) bool {
	switch x := v.(type) {
	case nil, bool, int:
		return true
	case float64:
		return !math.IsInf(x, 0) && !math.IsNaN(x) && x != math.Trunc(x)
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
