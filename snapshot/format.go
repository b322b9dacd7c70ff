package snapshot

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/store"
)

const (
	prefixUndefined = '\x01'
	prefixRef       = '\x02'
	prefixTask      = '\x03'
	prefixURL       = '\x05'
	prefixDate      = '\x06'
	prefixRegexp    = '\x07'
	prefixMutable   = '\x0b'
	prefixNumber    = '\x0e'
	prefixDocument  = '\x0f'
	prefixBigInt    = '\x1a'
	prefixEscape    = '\x1f'

	elementMark = '#'
	wrapMark    = '!'
)

// Snapshot is the result of a pause.
type Snapshot struct {
	// Objs holds the JSON form of every entry.
	Objs []any
	// Subs describes the first len(Subs) entries. Keys are subscriber ids,
	// a nil key list is a wildcard.
	Subs []map[string][]string
	// Listeners lists every listener attribute written on the tree.
	Listeners []ListenerEntry
	// Elements maps anchored elements to their q:id.
	Elements map[*dom.Node]string
}

type ListenerEntry struct {
	Element *dom.Node
	ID      string
	Event   string
	Ref     string
}

type wire struct {
	Objs []any                 `json:"objs"`
	Subs []map[string][]string `json:"subs"`
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	w := wire{Objs: s.Objs, Subs: s.Subs}
	if w.Objs == nil {
		w.Objs = []any{}
	}
	if w.Subs == nil {
		w.Subs = []map[string][]string{}
	}
	return json.Marshal(w)
}

// JSON encodes the payload. Markup characters are escaped so the result can
// sit inside a script element.
func (s *Snapshot) JSON() ([]byte, error) {
	return s.MarshalJSON()
}

func formatID(i int) string {
	return strconv.FormatInt(int64(i), 36)
}

func parseID(s string) (int, error) {
	n, err := strconv.ParseInt(s, 36, 64)
	if err != nil || n < 0 {
		return 0, malformed("bad id %q", s)
	}
	return int(n), nil
}

func elementToken(elid string) string {
	return string(elementMark) + elid
}

func wrapToken(id int, flags store.Flags) string {
	if flags == store.Recursive {
		return formatID(id) + string(wrapMark)
	}
	return formatID(id) + string(wrapMark) + strconv.Itoa(int(flags))
}

type token struct {
	element string
	id      int
	wrap    bool
	flags   store.Flags
}

func parseToken(s string) (token, error) {
	if s == "" {
		return token{}, malformed("empty token")
	}
	if s[0] == elementMark {
		if len(s) == 1 {
			return token{}, malformed("empty element token")
		}
		return token{element: s[1:]}, nil
	}
	idPart, flagPart, wrapped := strings.Cut(s, string(wrapMark))
	id, err := parseID(idPart)
	if err != nil {
		return token{}, err
	}
	t := token{id: id, wrap: wrapped}
	if !wrapped {
		return t, nil
	}
	t.flags = store.Recursive
	if flagPart != "" {
		f, err := strconv.ParseUint(flagPart, 10, 8)
		if err != nil {
			return token{}, malformed("bad wrap flags in %q", s)
		}
		t.flags = store.Flags(f)
	}
	return t, nil
}

func escapeString(s string) string {
	if s != "" && s[0] < 0x20 {
		return string(prefixEscape) + s
	}
	return s
}
