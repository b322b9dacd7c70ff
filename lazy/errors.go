package lazy

import (
	"errors"
	"fmt"
)

var ErrNotInvocable = errors.New("lazy: not invocable")

// NotInvocableError is returned when a reference invoked as a function
// resolves to something that cannot be called.
type NotInvocableError struct {
	Chunk  string
	Symbol string
	Value  any
}

func (e *NotInvocableError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("lazy: %s#%s resolved to %T which is not invocable", e.Chunk, e.Symbol, e.Value)
}

func (e *NotInvocableError) Is(target error) bool {
	return target == ErrNotInvocable
}
