package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// EntryInfo describes one payload entry without resuming it.
type EntryInfo struct {
	ID          string
	Kind        string
	Summary     string
	Size        int
	Subscribers []string
}

// Inspect decodes a payload into per-entry descriptions, in entry order.
func Inspect(data []byte) ([]EntryInfo, error) {
	w, err := decodeWire(data)
	if err != nil {
		return nil, err
	}
	infos := make([]EntryInfo, len(w.Objs))
	for i, raw := range w.Objs {
		enc, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		info := EntryInfo{ID: formatID(i), Size: len(enc)}
		info.Kind, info.Summary = describe(raw, enc)
		if i < len(w.Subs) {
			for id, keys := range w.Subs[i] {
				if keys == nil {
					info.Subscribers = append(info.Subscribers, id+"[*]")
					continue
				}
				info.Subscribers = append(info.Subscribers, fmt.Sprintf("%s%v", id, keys))
			}
			sort.Strings(info.Subscribers)
		}
		infos[i] = info
	}
	return infos, nil
}

func describe(raw any, enc []byte) (kind, summary string) {
	switch x := raw.(type) {
	case nil:
		return "null", "null"
	case bool:
		return "bool", fmt.Sprint(x)
	case json.Number:
		return "number", x.String()
	case map[string]any:
		return "object", truncate(string(enc))
	case []any:
		return "array", truncate(string(enc))
	case string:
		if x == "" || x[0] >= 0x20 {
			return "string", truncate(x)
		}
		if x[0] == prefixEscape {
			return "string", truncate(x[1:])
		}
		if cd, ok := decoders[x[0]]; ok {
			return cd.name, truncate(x[1:])
		}
		return "unknown", truncate(fmt.Sprintf("%q", x))
	}
	return fmt.Sprintf("%T", raw), ""
}

func truncate(s string) string {
	const max = 48
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
