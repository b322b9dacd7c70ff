package dom

import (
	"strings"

	"github.com/delaneyj/resumeparty/subs"
)

type NodeType uint8

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
	CommentNode
	DoctypeNode
	// RawNode content is rendered verbatim and never produced by Parse.
	RawNode
)

type Attr struct {
	Key string
	Val string
}

// Node is an anchor in the view tree. Hosts are element nodes; the document
// node doubles as the host document sentinel.
type Node struct {
	Type     NodeType
	Data     string
	Attrs    []Attr
	Parent   *Node
	Children []*Node
}

func (*Node) SubscriberKind() subs.Kind { return subs.KindHost }

func NewDocument() *Node {
	return &Node{Type: DocumentNode}
}

func NewElement(tag string, attrs ...Attr) *Node {
	return &Node{Type: ElementNode, Data: strings.ToLower(tag), Attrs: attrs}
}

func NewText(text string) *Node {
	return &Node{Type: TextNode, Data: text}
}

func NewRaw(markup string) *Node {
	return &Node{Type: RawNode, Data: markup}
}

// Append adopts children, detaching them from any previous parent.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c.Parent != nil {
			c.Parent.Remove(c)
		}
		c.Parent = n
		n.Children = append(n.Children, c)
	}
	return n
}

func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.Parent = nil
			return true
		}
	}
	return false
}

func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func (n *Node) SetAttr(key, val string) {
	for i, a := range n.Attrs {
		if a.Key == key {
			n.Attrs[i].Val = val
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Val: val})
}

func (n *Node) RemoveAttr(key string) {
	n.RemoveAttrFunc(func(k string) bool { return k == key })
}

func (n *Node) RemoveAttrFunc(match func(key string) bool) {
	kept := n.Attrs[:0]
	for _, a := range n.Attrs {
		if !match(a.Key) {
			kept = append(kept, a)
		}
	}
	n.Attrs = kept
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

func (n *Node) Find(match func(*Node) bool) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Contains reports whether other is n or one of its descendants.
func (n *Node) Contains(other *Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// Document returns the topmost ancestor when it is a document node.
func (n *Node) Document() *Node {
	top := n
	for top.Parent != nil {
		top = top.Parent
	}
	if top.Type != DocumentNode {
		return nil
	}
	return top
}

// Text concatenates the text of all descendant text nodes.
func (n *Node) Text() string {
	var sb strings.Builder
	n.Walk(func(c *Node) bool {
		if c.Type == TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// String is a shallow description used in diagnostics.
func (n *Node) String() string {
	switch n.Type {
	case DocumentNode:
		return "#document"
	case TextNode:
		return "#text"
	case CommentNode:
		return "#comment"
	case DoctypeNode:
		return "<!DOCTYPE " + n.Data + ">"
	case RawNode:
		return "#raw"
	}
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(n.Data)
	for _, a := range n.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Key)
		sb.WriteString(`="`)
		sb.WriteString(a.Val)
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	return sb.String()
}
