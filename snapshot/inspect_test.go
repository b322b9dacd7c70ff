package snapshot_test

import (
	"testing"

	"github.com/delaneyj/resumeparty/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	infos, err := snapshot.Inspect([]byte(`{
		"objs": [{"count": 1}, "\u0002./app.js#inc[0]", "\u0001", "\u001f\u0001x", 3],
		"subs": [{"#0": ["count"], "4": null}]
	}`))
	require.NoError(t, err)
	require.Len(t, infos, 5)

	assert.Equal(t, "object", infos[0].Kind)
	assert.Equal(t, []string{"#0[count]", "4[*]"}, infos[0].Subscribers)
	assert.Equal(t, "ref", infos[1].Kind)
	assert.Equal(t, "./app.js#inc[0]", infos[1].Summary)
	assert.Equal(t, "undefined", infos[2].Kind)
	assert.Equal(t, "string", infos[3].Kind)
	assert.Equal(t, "number", infos[4].Kind)
	assert.Empty(t, infos[4].Subscribers)

	_, err = snapshot.Inspect([]byte(`{"subs":[]}`))
	assert.ErrorIs(t, err, snapshot.ErrMalformedSnapshot)
}
