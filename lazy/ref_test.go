package lazy_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/lazy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("chunk symbol and captures", func(t *testing.T) {
		r, err := lazy.Parse("./mod#greet[0 1]")
		require.NoError(t, err)
		assert.Equal(t, "./mod", r.Chunk)
		assert.Equal(t, "greet", r.Symbol)
		assert.Equal(t, []string{"0", "1"}, r.CaptureIDs())
	})

	t.Run("missing symbol means default", func(t *testing.T) {
		r, err := lazy.Parse("./mod")
		require.NoError(t, err)
		assert.Equal(t, lazy.DefaultSymbol, r.Symbol)
		assert.Nil(t, r.CaptureIDs())
	})

	t.Run("malformed", func(t *testing.T) {
		for _, s := range []string{"", "#greet", "./mod#x 1]"} {
			_, err := lazy.Parse(s)
			assert.ErrorIs(t, err, lazy.ErrMalformedRef, s)
		}
	})

	t.Run("format round trips", func(t *testing.T) {
		for _, s := range []string{"./mod#greet[0 1]", "./mod", "a/b.js#x", "c#y[#3 a!]"} {
			r, err := lazy.Parse(s)
			require.NoError(t, err)
			assert.Equal(t, s, lazy.Format(r.Chunk, r.Symbol, r.CaptureIDs()))
		}
	})

	t.Run("ref symbol renames on encode", func(t *testing.T) {
		r := lazy.New("./mod", "s_abc").WithRefSymbol("greet")
		assert.Equal(t, "./mod#greet", r.String())
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent resolution loads once", func(t *testing.T) {
		var calls atomic.Int32
		release := make(chan struct{})
		loader := lazy.LoaderFunc(func(ctx context.Context, _ *dom.Node, chunk, symbol string) (any, error) {
			calls.Add(1)
			<-release
			return chunk + "#" + symbol, nil
		})

		r := lazy.New("./mod", "greet")
		const n = 8
		var wg sync.WaitGroup
		results := make([]any, n)
		futures := make([]*lazy.Future, n)
		for i := 0; i < n; i++ {
			futures[i] = r.ResolveAsync(ctx, loader, nil)
		}
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err := futures[i].Wait(ctx)
				assert.NoError(t, err)
				results[i] = v
			}(i)
		}
		close(release)
		wg.Wait()

		assert.EqualValues(t, 1, calls.Load())
		for _, v := range results {
			assert.Equal(t, "./mod#greet", v)
		}

		// ready values are served without the loader
		v, err := r.Resolve(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "./mod#greet", v)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("failed load can be retried by the caller", func(t *testing.T) {
		boom := errors.New("boom")
		var calls atomic.Int32
		loader := lazy.LoaderFunc(func(context.Context, *dom.Node, string, string) (any, error) {
			if calls.Add(1) == 1 {
				return nil, boom
			}
			return 42, nil
		})

		r := lazy.New("./mod", "")
		_, err := r.Resolve(ctx, loader, nil)
		assert.ErrorIs(t, err, boom)
		_, ok := r.Resolved()
		assert.False(t, ok)

		v, err := r.Resolve(ctx, loader, nil)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("waiter cancellation does not cancel the load", func(t *testing.T) {
		release := make(chan struct{})
		loader := lazy.LoaderFunc(func(context.Context, *dom.Node, string, string) (any, error) {
			<-release
			return "ok", nil
		})
		r := lazy.New("./slow", "")
		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		_, err := r.Resolve(waitCtx, loader, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
		v, err := r.ResolveAsync(ctx, loader, nil).Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("no loader", func(t *testing.T) {
		_, err := lazy.New("./mod", "x").Resolve(ctx, nil, nil)
		assert.ErrorIs(t, err, lazy.ErrNoLoader)
	})
}

func TestInvoke(t *testing.T) {
	ctx := context.Background()
	greet := lazy.Func(func(_ context.Context, args ...any) (any, error) {
		s := ""
		for _, a := range args {
			s += a.(string)
		}
		return s, nil
	})

	t.Run("captures are prepended", func(t *testing.T) {
		loader := lazy.NewMapLoader().Register("./mod", "greet", greet)
		r := lazy.New("./mod", "greet", "hello", " ")
		v, err := r.Invoke(ctx, loader, nil, "world")
		require.NoError(t, err)
		assert.Equal(t, "hello world", v)
	})

	t.Run("encoded captures decode on invoke", func(t *testing.T) {
		table := []any{"a", "b"}
		decoded := 0
		r, err := lazy.Parse("./mod#greet[1 0]")
		require.NoError(t, err)
		r.SetCaptureIDs(r.CaptureIDs(), func(id string) (any, error) {
			decoded++
			i, err := strconv.Atoi(id)
			if err != nil {
				return nil, err
			}
			return table[i], nil
		})

		loader := lazy.NewMapLoader().Register("./mod", "greet", greet)
		v, err := r.Invoke(ctx, loader, nil, "c")
		require.NoError(t, err)
		assert.Equal(t, "bac", v)

		_, err = r.Invoke(ctx, loader, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, decoded, "captures decode once")
		assert.Nil(t, r.CaptureIDs())
	})

	t.Run("captures without decoder", func(t *testing.T) {
		r, _ := lazy.Parse("./mod#greet[0]")
		loader := lazy.NewMapLoader().Register("./mod", "greet", greet)
		_, err := r.Invoke(ctx, loader, nil)
		assert.ErrorIs(t, err, lazy.ErrUndecodedCapture)
	})

	t.Run("non callable", func(t *testing.T) {
		loader := lazy.NewMapLoader().Register("./mod", "count", 3)
		_, err := lazy.New("./mod", "count").Invoke(ctx, loader, nil)
		assert.ErrorIs(t, err, lazy.ErrNotInvocable)

		var nie *lazy.NotInvocableError
		require.ErrorAs(t, err, &nie)
		assert.Equal(t, "./mod", nie.Chunk)
		assert.Equal(t, "count", nie.Symbol)
	})

	t.Run("inline refs skip the loader", func(t *testing.T) {
		called := false
		r := lazy.Inline("onClick", func() { called = true })
		_, err := r.Invoke(ctx, nil, nil)
		require.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, lazy.InlineChunk+"#onClick", r.String())
	})

	t.Run("unknown symbol", func(t *testing.T) {
		_, err := lazy.New("./mod", "missing").Invoke(ctx, lazy.NewMapLoader(), nil)
		assert.ErrorIs(t, err, lazy.ErrSymbolNotFound)
	})
}
