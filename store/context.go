package store

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/delaneyj/resumeparty/dom"
)

// ContextID names a value provided to a subtree. Key is the stable hashed
// form used in snapshots.
type ContextID struct {
	Name string
	Key  string
}

func CreateContextID(name string) ContextID {
	return ContextID{Name: name, Key: strconv.FormatUint(xxhash.Sum64String(name), 36)}
}

func (c *Container) ProvideContext(el *dom.Node, id ContextID, value any) {
	ec := c.Context(el)
	if ec.Contexts == nil {
		ec.Contexts = map[string]any{}
	}
	ec.Contexts[id.Key] = value
}

// ResolveContext walks from el up to the root looking for a provider.
func (c *Container) ResolveContext(el *dom.Node, id ContextID) (any, bool) {
	for n := el; n != nil; n = n.Parent {
		ec, ok := c.contexts[n]
		if !ok {
			continue
		}
		if v, ok := ec.Contexts[id.Key]; ok {
			return v, true
		}
	}
	return nil, false
}
