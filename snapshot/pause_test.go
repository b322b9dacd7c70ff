package snapshot_test

import (
	"bytes"
	"testing"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/snapshot"
	"github.com/delaneyj/resumeparty/store"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// counter builds a button whose render read count from a store kept in its
// first sequential slot, then bumps count to 1.
func counter(t *testing.T) (*store.Container, *dom.Node, *dom.Node) {
	t.Helper()
	root := dom.NewElement("div")
	button := dom.NewElement("button")
	root.Append(button)
	c := store.New(root)

	inv := c.NewInvocation(button, button, store.EventRender)
	state := store.UseStore(inv, map[string]any{"count": 0}, 0)
	assert.Equal(t, 0, state.Get(inv, "count"))
	require.NoError(t, state.Set(nil, "count", 1))
	return c, root, button
}

// should produce the documented counter snapshot
func TestPauseCounter(t *testing.T) {
	c, root, button := counter(t)

	snap, err := snapshot.Pause(c, root)
	require.NoError(t, err)
	data, err := snap.JSON()
	require.NoError(t, err)
	golden(t).Assert(t, "counter", data)

	id, ok := button.ID()
	require.True(t, ok)
	assert.Equal(t, "0", id)
	seq, _ := button.Attr(dom.AttrSeq)
	assert.Equal(t, "0!", seq)
}

// should embed the snapshot script next to the overlay attributes
func TestWriteHTMLCounter(t *testing.T) {
	c, root, _ := counter(t)

	var buf bytes.Buffer
	_, err := snapshot.WriteHTML(&buf, c, root)
	require.NoError(t, err)
	golden(t).Assert(t, "counter_html", buf.Bytes())

	_, err = snapshot.WriteHTML(&buf, c, root)
	require.NoError(t, err)
	scripts := 0
	root.Walk(func(n *dom.Node) bool {
		if n.Type == dom.RawNode {
			scripts++
		}
		return true
	})
	assert.Equal(t, 1, scripts)
}

// should place subscribed stores before everything else
func TestSubscribedEntriesFirst(t *testing.T) {
	root := dom.NewElement("div")
	host := dom.NewElement("p")
	root.Append(host)
	c := store.New(root)

	quiet := c.NewStore(map[string]any{"name": "quiet"})
	loud := c.NewStore(map[string]any{"name": "loud"})
	ec := c.Context(host)
	ec.Seq = []any{quiet, loud}
	loud.Get(c.NewInvocation(host, host, store.EventRender), "name")

	snap, err := snapshot.Pause(c, root)
	require.NoError(t, err)
	require.Len(t, snap.Subs, 1)
	assert.Equal(t, map[string][]string{"#0": {"name"}}, snap.Subs[0])

	data, err := snap.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"objs": [{"name": "3"}, {"name": "2"}, "quiet", "loud"],
		"subs": [{"#0": ["name"]}]
	}`, string(data))

	seq, _ := host.Attr(dom.AttrSeq)
	assert.Equal(t, "1! 0!", seq)
}

// should write wildcards as null and prefer them over keys
func TestPauseWildcard(t *testing.T) {
	root := dom.NewElement("div")
	host := dom.NewElement("ul")
	root.Append(host)
	c := store.New(root)

	list := c.Array(store.NewArray("a", "b"), store.Recursive)
	c.Context(host).Seq = []any{list}
	list.Len(c.NewInvocation(host, host, store.EventRender))

	snap, err := snapshot.Pause(c, root)
	require.NoError(t, err)
	data, err := snap.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"objs":[["1","2"],"a","b"],"subs":[{"#0":null}]}`, string(data))
}

// should keep existing element ids and mint past them
func TestPauseElementIDs(t *testing.T) {
	root := dom.NewElement("div")
	old := dom.NewElement("p", dom.Attr{Key: dom.AttrID, Val: "5"})
	fresh := dom.NewElement("p")
	stale := dom.NewElement("i", dom.Attr{Key: dom.AttrSeq, Val: "9"})
	root.Append(old, fresh, stale)
	c := store.New(root)

	c.Context(old).Seq = []any{1}
	c.Context(fresh).Seq = []any{2}

	snap, err := snapshot.Pause(c, root)
	require.NoError(t, err)
	assert.Equal(t, map[*dom.Node]string{old: "5", fresh: "6"}, snap.Elements)

	id, _ := fresh.ID()
	assert.Equal(t, "6", id)
	_, ok := stale.Attr(dom.AttrSeq)
	assert.False(t, ok)
}

type point struct {
	X, Y int
	tag  string
}

// should reject values it cannot classify and leave the tree alone
func TestPauseNotSerializable(t *testing.T) {
	for name, tc := range map[string]struct {
		value any
		desc  string
	}{
		"channel":   {make(chan int), "chan int len=0"},
		"plain map": {map[string]any{"a": 1}, "map[string]interface {} len=1"},
		"struct":    {point{X: 1, Y: 2, tag: "p"}, `snapshot_test.point {X:1 Y:2 tag:"p"}`},
	} {
		t.Run(name, func(t *testing.T) {
			root := dom.NewElement("div")
			host := dom.NewElement("p")
			root.Append(host)
			c := store.New(root)
			c.Context(host).Seq = []any{tc.value}

			_, err := snapshot.Pause(c, root)
			assert.ErrorIs(t, err, snapshot.ErrNotSerializable)
			var nse *snapshot.NotSerializableError
			assert.ErrorAs(t, err, &nse)
			assert.Contains(t, err.Error(), tc.desc)

			_, ok := host.ID()
			assert.False(t, ok)
		})
	}
}

// should refuse elements outside the paused root
func TestPauseDetachedElement(t *testing.T) {
	root := dom.NewElement("div")
	host := dom.NewElement("p")
	root.Append(host)
	c := store.New(root)
	c.Context(host).Seq = []any{dom.NewElement("span")}

	_, err := snapshot.Pause(c, root)
	assert.ErrorIs(t, err, snapshot.ErrNotSerializable)
	assert.Contains(t, err.Error(), "<span")
}
