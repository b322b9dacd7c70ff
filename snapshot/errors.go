package snapshot

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	ErrNotSerializable      = errors.New("snapshot: value is not serializable")
	ErrMalformedSnapshot    = errors.New("snapshot: malformed snapshot")
	ErrMissingAnchor        = errors.New("snapshot: missing anchor")
	ErrDanglingSubscription = errors.New("snapshot: dangling subscription")
	ErrNoSnapshot           = errors.New("snapshot: no snapshot script found")
)

// NotSerializableError names the value pause could not classify.
type NotSerializableError struct {
	Value  any
	Reason string
}

func (e *NotSerializableError) Error() string {
	msg := fmt.Sprintf("%s: %T %s", ErrNotSerializable, e.Value, describeValue(e.Value))
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

const maxDescription = 60

// describeValue prints v one level deep. Containers report only their length
// so cyclic values cannot recurse.
func describeValue(v any) string {
	if _, ok := v.(fmt.Stringer); ok {
		return clip(fmt.Sprint(v))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Invalid:
		return "<nil>"
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Chan:
		return fmt.Sprintf("len=%d", rv.Len())
	case reflect.Pointer:
		if !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
			return "&" + describeStruct(rv.Elem())
		}
		return fmt.Sprintf("%p", v)
	case reflect.Struct:
		return describeStruct(rv)
	}
	return clip(fmt.Sprintf("%v", v))
}

func describeStruct(rv reflect.Value) string {
	parts := make([]string, rv.NumField())
	for i := range parts {
		parts[i] = rv.Type().Field(i).Name + ":" + scalar(rv.Field(i))
	}
	return clip("{" + strings.Join(parts, " ") + "}")
}

func scalar(f reflect.Value) string {
	switch f.Kind() {
	case reflect.Bool:
		return fmt.Sprint(f.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprint(f.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fmt.Sprint(f.Uint())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprint(f.Float())
	case reflect.String:
		return fmt.Sprintf("%q", f.String())
	}
	return f.Type().String()
}

func clip(s string) string {
	if len(s) <= maxDescription {
		return s
	}
	return s[:maxDescription-3] + "..."
}

func (e *NotSerializableError) Is(target error) bool {
	return target == ErrNotSerializable
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedSnapshot, fmt.Sprintf(format, args...))
}
