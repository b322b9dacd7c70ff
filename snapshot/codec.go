package snapshot

import (
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/lazy"
	"github.com/delaneyj/resumeparty/store"
)

// codec handles one kind of special value. Entries are written as the prefix
// byte followed by the encoded payload.
type codec struct {
	name   string
	prefix byte
	test   func(v any) bool
	// children lists nested values the collector must visit.
	children func(v any) ([]any, error)
	encode   func(p *pauser, v any) (string, error)
	// decode builds the live value; fill links it to other entries once every
	// entry exists.
	decode func(r *resumer, data string) (any, error)
	fill   func(r *resumer, v any, data string) error
}

var codecs = []*codec{
	{
		name:   "undefined",
		prefix: prefixUndefined,
		test: func(v any) bool {
			_, ok := v.(store.UndefinedValue)
			return ok
		},
		encode: func(*pauser, any) (string, error) { return "", nil },
		decode: func(*resumer, string) (any, error) { return store.Undefined, nil },
	},
	{
		name:   "ref",
		prefix: prefixRef,
		test: func(v any) bool {
			_, ok := v.(*lazy.Ref)
			return ok
		},
		children: func(v any) ([]any, error) {
			return v.(*lazy.Ref).Captures()
		},
		encode: func(p *pauser, v any) (string, error) {
			r := v.(*lazy.Ref)
			captures, err := r.Captures()
			if err != nil {
				return "", err
			}
			ids := make([]string, len(captures))
			for i, c := range captures {
				if ids[i], err = p.token(c); err != nil {
					return "", err
				}
			}
			return lazy.Format(r.Chunk, r.EncodedSymbol(), ids), nil
		},
		decode: func(r *resumer, data string) (any, error) {
			ref, err := lazy.Parse(data)
			if err != nil {
				return nil, malformed("ref %q: %v", data, err)
			}
			ref.SetCaptureIDs(ref.CaptureIDs(), r.decodeToken)
			return ref, nil
		},
	},
	{
		name:   "task",
		prefix: prefixTask,
		test: func(v any) bool {
			_, ok := v.(*store.Task)
			return ok
		},
		children: func(v any) ([]any, error) {
			t := v.(*store.Task)
			return []any{t.Ref, t.Host}, nil
		},
		encode: func(p *pauser, v any) (string, error) {
			t := v.(*store.Task)
			ref, err := p.token(t.Ref)
			if err != nil {
				return "", err
			}
			host, err := p.token(t.Host)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d %d %s %s", t.Flags, t.Index, ref, host), nil
		},
		decode: func(*resumer, string) (any, error) { return &store.Task{}, nil },
		fill: func(r *resumer, v any, data string) error {
			t := v.(*store.Task)
			fields := strings.Fields(data)
			if len(fields) != 4 {
				return malformed("task %q", data)
			}
			flags, err := strconv.ParseUint(fields[0], 10, 8)
			if err != nil {
				return malformed("task flags %q", fields[0])
			}
			index, err := strconv.Atoi(fields[1])
			if err != nil {
				return malformed("task index %q", fields[1])
			}
			refValue, err := r.decodeToken(fields[2])
			if err != nil {
				return err
			}
			ref, ok := refValue.(*lazy.Ref)
			if !ok && refValue != nil {
				return malformed("task ref %q is a %T", fields[2], refValue)
			}
			hostValue, err := r.decodeToken(fields[3])
			if err != nil {
				return err
			}
			host, _ := hostValue.(*dom.Node)
			t.Flags, t.Index, t.Ref, t.Host = store.TaskFlags(flags), index, ref, host
			return nil
		},
	},
	{
		name:   "url",
		prefix: prefixURL,
		test: func(v any) bool {
			_, ok := v.(*url.URL)
			return ok
		},
		encode: func(_ *pauser, v any) (string, error) { return v.(*url.URL).String(), nil },
		decode: func(_ *resumer, data string) (any, error) {
			u, err := url.Parse(data)
			if err != nil {
				return nil, malformed("url: %v", err)
			}
			return u, nil
		},
	},
	{
		name:   "date",
		prefix: prefixDate,
		test: func(v any) bool {
			_, ok := v.(time.Time)
			return ok
		},
		encode: func(_ *pauser, v any) (string, error) {
			return v.(time.Time).Format(time.RFC3339Nano), nil
		},
		decode: func(_ *resumer, data string) (any, error) {
			t, err := time.Parse(time.RFC3339Nano, data)
			if err != nil {
				return nil, malformed("date: %v", err)
			}
			return t, nil
		},
	},
	{
		name:   "regexp",
		prefix: prefixRegexp,
		test: func(v any) bool {
			_, ok := v.(*regexp.Regexp)
			return ok
		},
		encode: func(_ *pauser, v any) (string, error) { return v.(*regexp.Regexp).String(), nil },
		decode: func(_ *resumer, data string) (any, error) {
			re, err := regexp.Compile(data)
			if err != nil {
				return nil, malformed("regexp: %v", err)
			}
			return re, nil
		},
	},
	{
		name:   "mutable",
		prefix: prefixMutable,
		test: func(v any) bool {
			_, ok := v.(*store.MutableBox)
			return ok
		},
		children: func(v any) ([]any, error) {
			return []any{v.(*store.MutableBox).Value}, nil
		},
		encode: func(p *pauser, v any) (string, error) {
			return p.token(v.(*store.MutableBox).Value)
		},
		decode: func(*resumer, string) (any, error) { return &store.MutableBox{}, nil },
		fill: func(r *resumer, v any, data string) error {
			inner, err := r.decodeToken(data)
			if err != nil {
				return err
			}
			v.(*store.MutableBox).Value = inner
			return nil
		},
	},
	{
		name:   "document",
		prefix: prefixDocument,
		test: func(v any) bool {
			n, ok := v.(*dom.Node)
			return ok && n != nil && n.Type == dom.DocumentNode
		},
		encode: func(*pauser, any) (string, error) { return "", nil },
		decode: func(r *resumer, _ string) (any, error) {
			if doc := r.root.Document(); doc != nil {
				return doc, nil
			}
			return r.root, nil
		},
	},
	{
		name:   "number",
		prefix: prefixNumber,
		test: func(v any) bool {
			switch v.(type) {
			case nanValue,
				int8, int16, int32, int64,
				uint, uint8, uint16, uint32, uint64,
				float32, float64:
				return true
			}
			return false
		},
		encode: func(_ *pauser, v any) (string, error) { return formatNumber(v), nil },
		decode: func(_ *resumer, data string) (any, error) { return parseNumber(data) },
	},
	{
		name:   "bigint",
		prefix: prefixBigInt,
		test: func(v any) bool {
			_, ok := v.(*big.Int)
			return ok
		},
		encode: func(_ *pauser, v any) (string, error) { return v.(*big.Int).String(), nil },
		decode: func(_ *resumer, data string) (any, error) {
			n, ok := new(big.Int).SetString(data, 10)
			if !ok {
				return nil, malformed("bigint %q", data)
			}
			return n, nil
		},
	},
}

var decoders = func() map[byte]*codec {
	m := make(map[byte]*codec, len(codecs))
	for _, c := range codecs {
		m[c.prefix] = c
	}
	return m
}()

func codecFor(v any) *codec {
	for _, c := range codecs {
		if c.test(v) {
			return c
		}
	}
	return nil
}

// nanValue stands in for NaN while pausing: NaN never equals itself, so it
// cannot key the entry index.
type nanValue struct {
	bits int
}

// formatNumber writes "kind:value" for numbers JSON cannot tell apart from int.
func formatNumber(v any) string {
	switch x := v.(type) {
	case nanValue:
		return fmt.Sprintf("float%d:NaN", x.bits)
	case float32:
		return "float32:" + strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return "float64:" + strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%d", v, v)
}

func parseNumber(data string) (any, error) {
	kind, text, ok := strings.Cut(data, ":")
	if !ok {
		return nil, malformed("number %q", data)
	}
	// "float32" -> 32, "int8" -> 8, "uint" -> 0 (platform size)
	bits, _ := strconv.Atoi(strings.TrimLeft(kind, "abcdefghijklmnopqrstuvwxyz"))

	switch kind {
	case "float32", "float64":
		f, err := strconv.ParseFloat(text, bits)
		if err != nil {
			return nil, malformed("number %q: %v", data, err)
		}
		if bits == 32 {
			return float32(f), nil
		}
		return f, nil
	case "int8", "int16", "int32", "int64":
		n, err := strconv.ParseInt(text, 10, bits)
		if err != nil {
			return nil, malformed("number %q: %v", data, err)
		}
		switch bits {
		case 8:
			return int8(n), nil
		case 16:
			return int16(n), nil
		case 32:
			return int32(n), nil
		}
		return n, nil
	case "uint", "uint8", "uint16", "uint32", "uint64":
		n, err := strconv.ParseUint(text, 10, bits)
		if err != nil {
			return nil, malformed("number %q: %v", data, err)
		}
		switch kind {
		case "uint":
			return uint(n), nil
		case "uint8":
			return uint8(n), nil
		case "uint16":
			return uint16(n), nil
		case "uint32":
			return uint32(n), nil
		}
		return n, nil
	}
	return nil, malformed("number kind %q", kind)
}
