// Package jsloader resolves lazy references against JavaScript chunks
// evaluated by goja.
//
// A chunk is CommonJS flavoured source: it assigns its symbols to exports
// (or replaces module.exports). Exported functions come back as lazy.Func
// values; anything else is exported as a plain Go value.
package jsloader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/lazy"
)

var ErrUnknownChunk = errors.New("jsloader: unknown chunk")

type Option func(*Loader)

func WithChunk(id, source string) Option {
	return func(l *Loader) {
		l.sources[id] = source
	}
}

func WithChunks(chunks map[string]string) Option {
	return func(l *Loader) {
		for id, src := range chunks {
			l.sources[id] = src
		}
	}
}

// Loader evaluates every chunk at most once inside a single goja runtime.
// goja runtimes are not goroutine safe so every entry into the VM holds mu.
type Loader struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	sources map[string]string
	modules map[string]*goja.Object
}

func New(opts ...Option) *Loader {
	l := &Loader{
		vm:      goja.New(),
		sources: map[string]string{},
		modules: map[string]*goja.Object{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddChunk registers source for id after checking that it compiles.
func (l *Loader) AddChunk(id, source string) error {
	if _, err := goja.Compile(id, wrap(source), false); err != nil {
		return fmt.Errorf("jsloader: compile %s: %w", id, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources[id] = source
	delete(l.modules, id)
	return nil
}

func wrap(source string) string {
	return "(function(exports, module) {\n" + source + "\n})"
}

func (l *Loader) ImportSymbol(ctx context.Context, _ *dom.Node, chunk, symbol string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	exports, err := l.module(chunk)
	if err != nil {
		return nil, err
	}
	v := exports.Get(symbol)
	if v == nil || goja.IsUndefined(v) {
		return nil, fmt.Errorf("%w: %s", lazy.ErrSymbolNotFound, lazy.Format(chunk, symbol, nil))
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return l.bind(fn), nil
	}
	return v.Export(), nil
}

func (l *Loader) module(chunk string) (*goja.Object, error) {
	if m, ok := l.modules[chunk]; ok {
		return m, nil
	}
	src, ok := l.sources[chunk]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChunk, chunk)
	}

	program, err := goja.Compile(chunk, wrap(src), false)
	if err != nil {
		return nil, fmt.Errorf("jsloader: compile %s: %w", chunk, err)
	}
	factory, err := l.vm.RunProgram(program)
	if err != nil {
		return nil, fmt.Errorf("jsloader: evaluate %s: %w", chunk, err)
	}
	call, ok := goja.AssertFunction(factory)
	if !ok {
		return nil, fmt.Errorf("jsloader: evaluate %s: chunk wrapper is not a function", chunk)
	}

	exports := l.vm.NewObject()
	module := l.vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	if _, err := call(goja.Undefined(), exports, module); err != nil {
		return nil, fmt.Errorf("jsloader: evaluate %s: %w", chunk, err)
	}

	resolved := module.Get("exports").ToObject(l.vm)
	l.modules[chunk] = resolved
	return resolved, nil
}

func (l *Loader) bind(fn goja.Callable) lazy.Func {
	return func(ctx context.Context, args ...any) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l.mu.Lock()
		defer l.mu.Unlock()

		values := make([]goja.Value, len(args))
		for i, a := range args {
			values[i] = l.vm.ToValue(a)
		}
		res, err := fn(goja.Undefined(), values...)
		if err != nil {
			return nil, err
		}
		if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
			return nil, nil
		}
		return res.Export(), nil
	}
}
