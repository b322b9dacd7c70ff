package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parse reads a full HTML document into an anchor tree.
func Parse(r io.Reader) (*Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return fromHTML(doc), nil
}

func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

func fromHTML(h *html.Node) *Node {
	n := &Node{Data: h.Data}
	switch h.Type {
	case html.DocumentNode:
		n.Type = DocumentNode
	case html.ElementNode:
		n.Type = ElementNode
	case html.TextNode:
		n.Type = TextNode
	case html.CommentNode:
		n.Type = CommentNode
	case html.DoctypeNode:
		n.Type = DoctypeNode
	case html.RawNode:
		n.Type = RawNode
	}
	if len(h.Attr) > 0 {
		n.Attrs = make([]Attr, 0, len(h.Attr))
		for _, a := range h.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			n.Attrs = append(n.Attrs, Attr{Key: key, Val: a.Val})
		}
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		child := fromHTML(c)
		child.Parent = n
		n.Children = append(n.Children, child)
	}
	return n
}

// Render writes n and its descendants as HTML.
func Render(w io.Writer, n *Node) error {
	return html.Render(w, toHTML(n))
}

func RenderString(n *Node) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, n); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func toHTML(n *Node) *html.Node {
	h := &html.Node{Data: n.Data}
	switch n.Type {
	case DocumentNode:
		h.Type = html.DocumentNode
	case ElementNode:
		h.Type = html.ElementNode
	case TextNode:
		h.Type = html.TextNode
	case CommentNode:
		h.Type = html.CommentNode
	case DoctypeNode:
		h.Type = html.DoctypeNode
	case RawNode:
		h.Type = html.RawNode
	}
	for _, a := range n.Attrs {
		h.Attr = append(h.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	for _, c := range n.Children {
		h.AppendChild(toHTML(c))
	}
	return h
}
