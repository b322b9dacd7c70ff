package dom

import "strings"

// Overlay attributes written on anchors when a container is paused.
const (
	AttrID     = "q:id"
	AttrObj    = "q:obj"
	AttrSeq    = "q:seq"
	AttrProps  = "q:props"
	AttrCtx    = "q:ctx"
	AttrTask   = "q:task"
	AttrRender = "q:render"

	// ListenerPrefix precedes the event name of listener attributes.
	ListenerPrefix = "on:"
	overlayPrefix  = "q:"
)

// IsOverlayAttr reports whether key is written by pause and may be cleared
// before a new pause.
func IsOverlayAttr(key string) bool {
	return strings.HasPrefix(key, overlayPrefix) || strings.HasPrefix(key, ListenerPrefix)
}

// ID returns the anchor id of n, if it has one.
func (n *Node) ID() (string, bool) {
	if n.Type != ElementNode {
		return "", false
	}
	return n.Attr(AttrID)
}
