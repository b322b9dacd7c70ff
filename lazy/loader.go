package lazy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/delaneyj/resumeparty/dom"
)

var ErrSymbolNotFound = errors.New("lazy: symbol not found")

// Loader maps a reference to actual code. Implementations must be safe to
// call concurrently for distinct (chunk, symbol) pairs.
type Loader interface {
	ImportSymbol(ctx context.Context, anchor *dom.Node, chunk, symbol string) (any, error)
}

type LoaderFunc func(ctx context.Context, anchor *dom.Node, chunk, symbol string) (any, error)

func (f LoaderFunc) ImportSymbol(ctx context.Context, anchor *dom.Node, chunk, symbol string) (any, error) {
	return f(ctx, anchor, chunk, symbol)
}

// MapLoader serves symbols registered ahead of time from Go code.
type MapLoader struct {
	mu      sync.RWMutex
	symbols map[string]any
}

func NewMapLoader() *MapLoader {
	return &MapLoader{symbols: map[string]any{}}
}

func (l *MapLoader) Register(chunk, symbol string, value any) *MapLoader {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.symbols[Format(chunk, symbol, nil)] = value
	return l
}

// RegisterInline makes an inline reference loadable after a resume.
func (l *MapLoader) RegisterInline(r *Ref) *MapLoader {
	v, _ := r.Resolved()
	return l.Register(r.Chunk, r.Symbol, v)
}

func (l *MapLoader) ImportSymbol(_ context.Context, _ *dom.Node, chunk, symbol string) (any, error) {
	key := Format(chunk, symbol, nil)
	l.mu.RLock()
	v, ok := l.symbols[key]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, key)
	}
	return v, nil
}
