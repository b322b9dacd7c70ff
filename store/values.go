package store

import (
	"errors"
	"reflect"
)

var (
	ErrImmutableWrite = errors.New("store: write to immutable target")
	ErrIndexRange     = errors.New("store: index out of range")
)

type Flags uint8

const (
	// Recursive wraps nested targets lazily on read and unwraps wrappers on write.
	Recursive Flags = 1 << iota
	// Immutable rejects every write with ErrImmutableWrite.
	Immutable
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// UndefinedValue marks an explicitly absent value, distinct from nil.
type UndefinedValue struct{}

var Undefined UndefinedValue

// MutableBox forces a value to stay mutable when handed down as a prop.
// Reads through a wrapper unbox it transparently.
type MutableBox struct {
	Value any
}

func Mutable(v any) *MutableBox {
	return &MutableBox{Value: v}
}

// NoSerializeBox holds values that are live-only; snapshots record them as
// undefined.
type NoSerializeBox struct {
	Value any
}

func NoSerialize(v any) *NoSerializeBox {
	return &NoSerializeBox{Value: v}
}

// Unwrap returns the raw target behind a wrapper, or v unchanged.
func Unwrap(v any) any {
	if w, ok := v.(Wrapper); ok {
		return w.Target()
	}
	return v
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	// Value.Comparable looks through interface fields; == panics on a
	// struct whose interface field holds a slice.
	if va, vb := reflect.ValueOf(a), reflect.ValueOf(b); va.Comparable() && vb.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
