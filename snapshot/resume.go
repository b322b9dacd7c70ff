package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/lazy"
	"github.com/delaneyj/resumeparty/store"
	"github.com/delaneyj/resumeparty/subs"
)

// Report summarizes a resume. Diagnostics are recoverable problems that were
// logged and skipped.
type Report struct {
	Entries       int
	Subscriptions int
	Elements      int
	Diagnostics   []error
}

func (r *Report) Err() error {
	return errors.Join(r.Diagnostics...)
}

type resumer struct {
	c      *store.Container
	root   *dom.Node
	logger *slog.Logger

	elements map[string]*dom.Node
	anchors  []*dom.Node
	values   []any
	report   *Report
}

// Resume rebuilds the state paused under root into c: entries, subscriptions
// and element contexts. Subscriptions are registered before any value is
// handed to application code.
func Resume(c *store.Container, root *dom.Node, data []byte) (*Report, error) {
	if root == nil {
		root = c.Root()
	}
	w, err := decodeWire(data)
	if err != nil {
		return nil, err
	}

	r := &resumer{
		c:        c,
		root:     root,
		logger:   c.Logger(),
		elements: map[string]*dom.Node{},
		values:   make([]any, len(w.Objs)),
		report:   &Report{Entries: len(w.Objs)},
	}
	r.indexElements()

	for i, raw := range w.Objs {
		v, err := r.prepare(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", formatID(i), err)
		}
		r.values[i] = v
	}
	for i, m := range w.Subs {
		r.subscribe(i, m)
	}
	for i, raw := range w.Objs {
		if err := r.fill(i, raw); err != nil {
			return nil, fmt.Errorf("entry %s: %w", formatID(i), err)
		}
	}
	if err := r.restoreContexts(); err != nil {
		return nil, err
	}

	r.logger.Debug("resumed",
		slog.Int("entries", r.report.Entries),
		slog.Int("subscriptions", r.report.Subscriptions),
		slog.Int("elements", r.report.Elements),
		slog.Int("diagnostics", len(r.report.Diagnostics)),
	)
	return r.report, nil
}

type decodedWire struct {
	Objs *[]any                `json:"objs"`
	Subs []map[string][]string `json:"subs"`
}

func decodeWire(data []byte) (*wire, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var d decodedWire
	if err := dec.Decode(&d); err != nil {
		return nil, malformed("%v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformed("trailing data after payload")
	}
	if d.Objs == nil {
		return nil, malformed("missing objs")
	}
	if len(d.Subs) > len(*d.Objs) {
		return nil, malformed("%d subscription sets for %d entries", len(d.Subs), len(*d.Objs))
	}
	return &wire{Objs: *d.Objs, Subs: d.Subs}, nil
}

func (r *resumer) diag(err error) {
	r.report.Diagnostics = append(r.report.Diagnostics, err)
	r.logger.Warn("resume", slog.Any("err", err))
}

func (r *resumer) indexElements() {
	r.root.Walk(func(n *dom.Node) bool {
		if id, ok := n.ID(); ok {
			r.elements[id] = n
			r.anchors = append(r.anchors, n)
			r.c.ObserveElementID(id)
		}
		return true
	})
	r.report.Elements = len(r.anchors)
}

func (r *resumer) prepare(raw any) (any, error) {
	switch x := raw.(type) {
	case nil, bool:
		return x, nil
	case json.Number:
		return number(x)
	case string:
		if x == "" || x[0] >= 0x20 {
			return x, nil
		}
		if x[0] == prefixEscape {
			return x[1:], nil
		}
		cd, ok := decoders[x[0]]
		if !ok {
			return nil, malformed("unknown prefix %#x", x[0])
		}
		return cd.decode(r, x[1:])
	case map[string]any:
		t := store.NewObject(nil)
		r.c.Register(t)
		return t, nil
	case []any:
		t := store.NewArray()
		r.c.Register(t)
		return t, nil
	}
	return nil, malformed("unexpected %T", raw)
}

func (r *resumer) fill(i int, raw any) error {
	switch x := raw.(type) {
	case map[string]any:
		t := r.values[i].(*store.Target)
		for k, v := range x {
			child, err := r.decodeChild(v)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			t.Put(k, child)
		}
	case []any:
		items := make([]any, len(x))
		for j, v := range x {
			child, err := r.decodeChild(v)
			if err != nil {
				return fmt.Errorf("item %d: %w", j, err)
			}
			items[j] = child
		}
		r.values[i].(*store.Target).SetItems(items)
	case string:
		if x == "" || x[0] >= 0x20 || x[0] == prefixEscape {
			return nil
		}
		cd := decoders[x[0]]
		if cd.fill != nil {
			if err := cd.fill(r, r.values[i], x[1:]); err != nil {
				return fmt.Errorf("%s: %w", cd.name, err)
			}
		}
	}
	return nil
}

func (r *resumer) decodeChild(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool:
		return x, nil
	case json.Number:
		return number(x)
	case string:
		return r.decodeToken(x)
	}
	return nil, malformed("unexpected child %T", v)
}

// decodeToken resolves a reference token. An unknown element is a
// diagnostic and resolves to nil.
func (r *resumer) decodeToken(s string) (any, error) {
	t, err := parseToken(s)
	if err != nil {
		return nil, err
	}
	if t.element != "" {
		el, ok := r.elements[t.element]
		if !ok {
			r.diag(fmt.Errorf("%w: #%s", ErrMissingAnchor, t.element))
			return nil, nil
		}
		return el, nil
	}
	if t.id >= len(r.values) {
		return nil, malformed("token %q past %d entries", s, len(r.values))
	}
	v := r.values[t.id]
	if !t.wrap {
		return v, nil
	}
	target, ok := v.(*store.Target)
	if !ok {
		return nil, malformed("token %q wraps a %T", s, v)
	}
	return r.c.Wrap(target, t.flags), nil
}

func (r *resumer) subscriber(id string) subs.Subscriber {
	if strings.HasPrefix(id, string(elementMark)) {
		if el, ok := r.elements[id[1:]]; ok {
			return el
		}
		return nil
	}
	i, err := parseID(id)
	if err != nil || i >= len(r.values) {
		return nil
	}
	if t, ok := r.values[i].(*store.Task); ok {
		return t
	}
	return nil
}

func (r *resumer) subscribe(i int, m map[string][]string) {
	t, ok := r.values[i].(*store.Target)
	if !ok {
		if len(m) > 0 {
			r.diag(fmt.Errorf("%w: entry %s is not a store", ErrDanglingSubscription, formatID(i)))
		}
		return
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sub := r.subscriber(id)
		if sub == nil {
			cause := ErrDanglingSubscription
			if strings.HasPrefix(id, string(elementMark)) {
				cause = ErrMissingAnchor
			}
			r.diag(fmt.Errorf("%w: subscriber %q on entry %s", cause, id, formatID(i)))
			continue
		}
		keys := m[id]
		if keys == nil {
			if r.c.Subs().AddSub(sub, t.ID(), "", true) {
				r.report.Subscriptions++
			}
			continue
		}
		for _, k := range keys {
			if r.c.Subs().AddSub(sub, t.ID(), k, false) {
				r.report.Subscriptions++
			}
		}
	}
}

func (r *resumer) decodeList(s string) ([]any, error) {
	fields := strings.Fields(s)
	out := make([]any, len(fields))
	for i, f := range fields {
		v, err := r.decodeToken(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *resumer) restoreContexts() error {
	for _, el := range r.anchors {
		if err := r.restoreContext(el); err != nil {
			id, _ := el.ID()
			return fmt.Errorf("element #%s: %w", id, err)
		}
	}
	return nil
}

func (r *resumer) restoreContext(el *dom.Node) error {
	var ec *store.ElementContext
	elementContext := func() *store.ElementContext {
		if ec == nil {
			ec = r.c.Context(el)
		}
		return ec
	}

	if v, ok := el.Attr(dom.AttrObj); ok {
		values, err := r.decodeList(v)
		if err != nil {
			return err
		}
		elementContext().RefMap = values
	}
	if v, ok := el.Attr(dom.AttrSeq); ok {
		values, err := r.decodeList(v)
		if err != nil {
			return err
		}
		elementContext().Seq = values
	}
	if v, ok := el.Attr(dom.AttrProps); ok {
		props, err := r.decodeToken(v)
		if err != nil {
			return err
		}
		elementContext().Props = props
	}
	if v, ok := el.Attr(dom.AttrCtx); ok {
		ctx := elementContext()
		ctx.Contexts = map[string]any{}
		for _, pair := range strings.Fields(v) {
			key, tok, found := strings.Cut(pair, "=")
			if !found {
				return malformed("context pair %q", pair)
			}
			value, err := r.decodeToken(tok)
			if err != nil {
				return err
			}
			ctx.Contexts[key] = value
		}
	}
	if v, ok := el.Attr(dom.AttrTask); ok {
		values, err := r.decodeList(v)
		if err != nil {
			return err
		}
		ctx := elementContext()
		for _, value := range values {
			t, ok := value.(*store.Task)
			if !ok {
				return malformed("q:task holds a %T", value)
			}
			t.Host = el
			ctx.Tasks = append(ctx.Tasks, t)
		}
	}
	if v, ok := el.Attr(dom.AttrRender); ok {
		ref, err := lazy.Parse(v)
		if err != nil {
			return malformed("render ref %q: %v", v, err)
		}
		ref.SetCaptureIDs(ref.CaptureIDs(), r.decodeToken)
		elementContext().Render = ref
	}

	for _, a := range el.Attrs {
		if !strings.HasPrefix(a.Key, dom.ListenerPrefix) {
			continue
		}
		event := a.Key[len(dom.ListenerPrefix):]
		ctx := elementContext()
		for _, line := range strings.Split(a.Val, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			ref, err := lazy.Parse(line)
			if err != nil {
				r.diag(fmt.Errorf("listener %s on %s: %w", event, el, err))
				continue
			}
			ref.SetCaptureIDs(ref.CaptureIDs(), refMapDecoder(ctx))
			ctx.On(event, ref)
		}
	}
	return nil
}

func refMapDecoder(ec *store.ElementContext) lazy.Decoder {
	return func(id string) (any, error) {
		i, err := parseID(id)
		if err != nil {
			return nil, err
		}
		if i >= len(ec.RefMap) {
			return nil, malformed("capture %s past %d refs", id, len(ec.RefMap))
		}
		return ec.RefMap[i], nil
	}
}

func number(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, malformed("number %q", n)
	}
	return f, nil
}
