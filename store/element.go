package store

import (
	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/lazy"
)

type Listener struct {
	Event string
	Ref   *lazy.Ref
}

// ElementContext is the live state attached to an anchored element.
type ElementContext struct {
	Element   *dom.Node
	Listeners []Listener
	Tasks     []*Task
	Seq       []any
	Props     any
	Contexts  map[string]any
	Render    *lazy.Ref
	// RefMap holds the values listener captures point into, by position.
	RefMap []any
}

func (ec *ElementContext) On(event string, ref *lazy.Ref) {
	ec.Listeners = append(ec.Listeners, Listener{Event: event, Ref: ref})
}

// HasState reports whether the context carries anything worth snapshotting.
func (ec *ElementContext) HasState() bool {
	return len(ec.Listeners) > 0 ||
		len(ec.Tasks) > 0 ||
		len(ec.Seq) > 0 ||
		len(ec.Contexts) > 0 ||
		ec.Props != nil ||
		ec.Render != nil
}
