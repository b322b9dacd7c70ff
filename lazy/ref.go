package lazy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/delaneyj/resumeparty/dom"
)

const (
	// DefaultSymbol is implied when an encoded reference has no #symbol part.
	DefaultSymbol = "default"
	// InlineChunk marks references created at runtime around an existing value.
	InlineChunk = "inline"
)

var (
	ErrMalformedRef     = errors.New("lazy: malformed reference")
	ErrNoLoader         = errors.New("lazy: no loader")
	ErrUndecodedCapture = errors.New("lazy: capture has no decoder")
)

// Func is the callable shape of a resolved symbol.
type Func func(ctx context.Context, args ...any) (any, error)

// Decoder turns an encoded capture id into its live value.
type Decoder func(id string) (any, error)

type state uint8

const (
	stateAbsent state = iota
	statePending
	stateReady
)

// Ref is a serializable pointer to a symbol whose code loads on demand.
type Ref struct {
	Chunk  string
	Symbol string
	// RefSymbol replaces Symbol when the reference is encoded.
	RefSymbol string

	mu     sync.Mutex
	state  state
	value  any
	future *Future

	captures   []any
	captureIDs []string
	decode     Decoder
}

func New(chunk, symbol string, captures ...any) *Ref {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return &Ref{Chunk: chunk, Symbol: symbol, captures: captures}
}

// Inline wraps an already available value; resolving it never hits a loader.
func Inline(symbol string, value any, captures ...any) *Ref {
	r := New(InlineChunk, symbol, captures...)
	r.state = stateReady
	r.value = value
	return r
}

func (r *Ref) WithRefSymbol(symbol string) *Ref {
	r.RefSymbol = symbol
	return r
}

// EncodedSymbol is the symbol name written into snapshots.
func (r *Ref) EncodedSymbol() string {
	if r.RefSymbol != "" {
		return r.RefSymbol
	}
	return r.Symbol
}

// SetCaptureIDs stores captures still in their encoded form. They are decoded
// through dec on first use.
func (r *Ref) SetCaptureIDs(ids []string, dec Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captureIDs = ids
	r.captures = nil
	r.decode = dec
}

// CaptureIDs returns the still encoded captures, if any.
func (r *Ref) CaptureIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captureIDs
}

// Captures decodes pending capture ids and returns the captured values.
func (r *Ref) Captures() ([]any, error) {
	r.mu.Lock()
	ids, dec := r.captureIDs, r.decode
	if ids == nil {
		captures := r.captures
		r.mu.Unlock()
		return captures, nil
	}
	r.mu.Unlock()

	if dec == nil {
		return nil, fmt.Errorf("%w: %s", ErrUndecodedCapture, r)
	}
	values := make([]any, len(ids))
	for i, id := range ids {
		v, err := dec(id)
		if err != nil {
			return nil, fmt.Errorf("decode capture %q of %s: %w", id, r, err)
		}
		values[i] = v
	}

	r.mu.Lock()
	r.captures = values
	r.captureIDs = nil
	r.decode = nil
	r.mu.Unlock()
	return values, nil
}

// Resolved returns the loaded value without triggering a load.
func (r *Ref) Resolved() (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.state == stateReady
}

// ResolveAsync starts, or joins, the load of the symbol. Concurrent callers
// share a single in-flight future and the loader is called once.
func (r *Ref) ResolveAsync(ctx context.Context, loader Loader, anchor *dom.Node) *Future {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateReady:
		return resolvedFuture(r.value, nil)
	case statePending:
		return r.future
	}

	if loader == nil {
		return resolvedFuture(nil, fmt.Errorf("%w: resolving %s", ErrNoLoader, r))
	}

	f := newFuture()
	r.state = statePending
	r.future = f

	// the load outlives any single waiter
	loadCtx := context.WithoutCancel(ctx)
	go func() {
		v, err := loader.ImportSymbol(loadCtx, anchor, r.Chunk, r.Symbol)

		r.mu.Lock()
		if err != nil {
			r.state = stateAbsent
			err = fmt.Errorf("load %s: %w", r, err)
		} else {
			r.state = stateReady
			r.value = v
		}
		r.future = nil
		r.mu.Unlock()

		f.complete(v, err)
	}()
	return f
}

// Resolve returns the symbol value, loading it if needed.
func (r *Ref) Resolve(ctx context.Context, loader Loader, anchor *dom.Node) (any, error) {
	if v, ok := r.Resolved(); ok {
		return v, nil
	}
	return r.ResolveAsync(ctx, loader, anchor).Wait(ctx)
}

// Invoke resolves the symbol and calls it with the captures prepended to args.
func (r *Ref) Invoke(ctx context.Context, loader Loader, anchor *dom.Node, args ...any) (any, error) {
	v, err := r.Resolve(ctx, loader, anchor)
	if err != nil {
		return nil, err
	}
	fn, ok := asFunc(v)
	if !ok {
		return nil, &NotInvocableError{Chunk: r.Chunk, Symbol: r.Symbol, Value: v}
	}

	captures, err := r.Captures()
	if err != nil {
		return nil, err
	}
	all := make([]any, 0, len(captures)+len(args))
	all = append(all, captures...)
	all = append(all, args...)
	return fn(ctx, all...)
}

func asFunc(v any) (Func, bool) {
	switch fn := v.(type) {
	case Func:
		return fn, fn != nil
	case func(context.Context, ...any) (any, error):
		return fn, fn != nil
	case func(...any) any:
		if fn == nil {
			return nil, false
		}
		return func(_ context.Context, args ...any) (any, error) {
			return fn(args...), nil
		}, true
	case func():
		if fn == nil {
			return nil, false
		}
		return func(context.Context, ...any) (any, error) {
			fn()
			return nil, nil
		}, true
	default:
		return nil, false
	}
}

func (r *Ref) String() string {
	return Format(r.Chunk, r.EncodedSymbol(), nil)
}

// Format encodes chunk, symbol and capture ids as chunk#symbol[id id].
func Format(chunk, symbol string, captureIDs []string) string {
	var sb strings.Builder
	sb.WriteString(chunk)
	if symbol != "" && symbol != DefaultSymbol {
		sb.WriteByte('#')
		sb.WriteString(symbol)
	}
	if len(captureIDs) > 0 {
		sb.WriteByte('[')
		sb.WriteString(strings.Join(captureIDs, " "))
		sb.WriteByte(']')
	}
	return sb.String()
}

// Parse decodes the textual form produced by Format. Capture ids are kept
// encoded; attach a decoder with SetCaptureIDs before invoking.
func Parse(s string) (*Ref, error) {
	rest := s
	var ids []string
	if strings.HasSuffix(rest, "]") {
		open := strings.LastIndexByte(rest, '[')
		if open < 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedRef, s)
		}
		ids = strings.Fields(rest[open+1 : len(rest)-1])
		rest = rest[:open]
	}

	chunk, symbol := rest, DefaultSymbol
	if i := strings.LastIndexByte(rest, '#'); i >= 0 {
		chunk, symbol = rest[:i], rest[i+1:]
		if symbol == "" {
			symbol = DefaultSymbol
		}
	}
	if chunk == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRef, s)
	}

	r := New(chunk, symbol)
	if len(ids) > 0 {
		r.captureIDs = ids
	}
	return r, nil
}
