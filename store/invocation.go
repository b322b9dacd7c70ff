package store

import (
	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/lazy"
	"github.com/delaneyj/resumeparty/subs"
)

const (
	EventRender = "render"
	EventTask   = "task"
	// EventListenerPrefix precedes the DOM event name of listener invocations.
	EventListenerPrefix = "on:"
)

// Invocation is the explicit read context handed to component and task code.
// Reads through wrappers subscribe Subscriber; a nil Subscriber reads
// untracked.
type Invocation struct {
	Container  *Container
	Host       *dom.Node
	Subscriber subs.Subscriber
	Event      string

	seq int
}

// UseSequentialScope returns the next slot of the host's sequential state.
// ok reports whether the slot already held a value; set stores one.
func (inv *Invocation) UseSequentialScope() (value any, ok bool, set func(any) any) {
	ec := inv.Container.Context(inv.Host)
	i := inv.seq
	inv.seq++
	set = func(v any) any {
		for len(ec.Seq) <= i {
			ec.Seq = append(ec.Seq, nil)
		}
		ec.Seq[i] = v
		return v
	}
	if i < len(ec.Seq) {
		return ec.Seq[i], true, set
	}
	return nil, false, set
}

// UseStore returns the host's store for this slot, creating it from initial
// on first render.
func UseStore(inv *Invocation, initial map[string]any, flags Flags) *Object {
	v, ok, set := inv.UseSequentialScope()
	if o, isObject := v.(*Object); ok && isObject {
		return o
	}
	o := inv.Container.Object(NewObject(initial), Recursive|flags)
	set(o)
	return o
}

// UseTask registers ref as an effect of the host the first time the slot is
// reached.
func UseTask(inv *Invocation, ref *lazy.Ref, flags TaskFlags) *Task {
	v, ok, set := inv.UseSequentialScope()
	if t, isTask := v.(*Task); ok && isTask {
		return t
	}
	t := inv.Container.AddTask(inv.Host, ref, flags)
	set(t)
	return t
}

func UseContextProvider(inv *Invocation, id ContextID, value any) {
	inv.Container.ProvideContext(inv.Host, id, value)
}

func UseContext(inv *Invocation, id ContextID) (any, bool) {
	return inv.Container.ResolveContext(inv.Host, id)
}
