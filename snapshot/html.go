package snapshot

import (
	"fmt"
	"io"
	"strings"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/store"
)

const ScriptType = "qwik/json"

const (
	scriptOpen  = `<script type="` + ScriptType + `">`
	scriptClose = `</script>`
)

func isSnapshotScript(n *dom.Node) bool {
	switch n.Type {
	case dom.ElementNode:
		typ, _ := n.Attr("type")
		return n.Data == "script" && typ == ScriptType
	case dom.RawNode:
		return strings.HasPrefix(n.Data, scriptOpen)
	}
	return false
}

// Embed appends the snapshot script to root, or to its body when root is a
// document, replacing any snapshot embedded earlier.
func Embed(root *dom.Node, s *Snapshot) error {
	data, err := s.JSON()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	var stale []*dom.Node
	root.Walk(func(n *dom.Node) bool {
		if isSnapshotScript(n) {
			stale = append(stale, n)
			return false
		}
		return true
	})
	for _, n := range stale {
		if n.Parent != nil {
			n.Parent.Remove(n)
		}
	}

	host := root
	if root.Type == dom.DocumentNode {
		if body := root.Find(func(n *dom.Node) bool {
			return n.Type == dom.ElementNode && n.Data == "body"
		}); body != nil {
			host = body
		}
	}
	host.Append(dom.NewRaw(Script(data)))
	return nil
}

// WriteHTML pauses c, embeds the snapshot under root and renders the tree.
func WriteHTML(w io.Writer, c *store.Container, root *dom.Node) (*Snapshot, error) {
	if root == nil {
		root = c.Root()
	}
	snap, err := Pause(c, root)
	if err != nil {
		return nil, err
	}
	if err := Embed(root, snap); err != nil {
		return nil, err
	}
	if err := dom.Render(w, root); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return snap, nil
}

// Extract returns the payload of the first snapshot script under root.
func Extract(root *dom.Node) ([]byte, error) {
	n := root.Find(isSnapshotScript)
	if n == nil {
		return nil, ErrNoSnapshot
	}
	if n.Type == dom.RawNode {
		payload := strings.TrimPrefix(n.Data, scriptOpen)
		return []byte(strings.TrimSuffix(payload, scriptClose)), nil
	}
	return []byte(n.Text()), nil
}

// ResumeContainer creates a container for a parsed tree and resumes the
// snapshot embedded in it.
func ResumeContainer(root *dom.Node, opts ...store.Option) (*store.Container, *Report, error) {
	data, err := Extract(root)
	if err != nil {
		return nil, nil, err
	}
	c := store.New(root, opts...)
	report, err := Resume(c, root, data)
	if err != nil {
		return nil, nil, err
	}
	return c, report, nil
}
