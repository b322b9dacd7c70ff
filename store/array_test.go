package store_test

import (
	"testing"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// should notify array readers on every structural change
func TestArrayWrites(t *testing.T) {
	c, host := setup()
	a := c.Array(store.NewArray(1, 2, 3), store.Recursive)

	assert.Equal(t, []any{1, 2, 3}, a.Items(render(c, host)))

	require.NoError(t, a.Push(nil, 4))
	assert.Equal(t, []*dom.Node{host}, c.TakeDirtyHosts())
	assert.Equal(t, 4, a.Len(nil))

	removed, err := a.Splice(nil, 1, 2, "x")
	require.NoError(t, err)
	assert.Equal(t, []any{2, 3}, removed)
	assert.Equal(t, []any{1, "x", 4}, a.Target().Items())
	assert.Len(t, c.TakeDirtyHosts(), 1)

	require.NoError(t, a.Truncate(nil, 1))
	assert.Equal(t, []any{1}, a.Target().Items())
	assert.Len(t, c.TakeDirtyHosts(), 1)
}

// should notify on every write, even when nothing changes
func TestArrayWritesAlwaysNotify(t *testing.T) {
	c, host := setup()
	a := c.Array(store.NewArray("a"), 0)
	a.Index(render(c, host), 0)

	require.NoError(t, a.SetIndex(nil, 0, "a"))
	assert.Equal(t, []*dom.Node{host}, c.TakeDirtyHosts())

	require.NoError(t, a.Truncate(nil, 1))
	assert.Equal(t, []*dom.Node{host}, c.TakeDirtyHosts())

	removed, err := a.Splice(nil, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Equal(t, []*dom.Node{host}, c.TakeDirtyHosts())
	assert.Equal(t, []any{"a"}, a.Target().Items())
}

// should report out of range indexes
func TestArrayRange(t *testing.T) {
	c, _ := setup()
	a := c.Array(store.NewArray("a"), 0)

	assert.ErrorIs(t, a.SetIndex(nil, 3, "b"), store.ErrIndexRange)
	_, err := a.Splice(nil, -1, 0)
	assert.ErrorIs(t, err, store.ErrIndexRange)
	assert.ErrorIs(t, a.Truncate(nil, 2), store.ErrIndexRange)
	assert.Nil(t, a.Index(nil, 5))
}

// should wrap nested items of recursive arrays
func TestArrayNested(t *testing.T) {
	c, _ := setup()
	a := c.Array(store.NewArray(map[string]any{"done": false}), store.Recursive)

	item, ok := a.Index(nil, 0).(*store.Object)
	require.True(t, ok)
	require.NoError(t, item.Set(nil, "done", true))
	assert.Equal(t, true, item.Get(nil, "done"))
}
