package store

import (
	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/lazy"
	"github.com/delaneyj/resumeparty/subs"
)

type TaskFlags uint8

const (
	TaskEffect TaskFlags = 1 << iota
	TaskVisible
	TaskDirty
)

func (f TaskFlags) Has(flag TaskFlags) bool { return f&flag != 0 }

// Task is an effect owned by a host element. It subscribes like a host but
// is run by the scheduler after renders.
type Task struct {
	Flags TaskFlags
	Index int
	Host  *dom.Node
	Ref   *lazy.Ref
}

func (*Task) SubscriberKind() subs.Kind { return subs.KindEffect }
