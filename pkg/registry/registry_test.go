package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Register("one", 1))

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = r.Get("two")
	assert.False(t, ok)
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := New[string]()
	require.NoError(t, r.Register("a", "first"))
	assert.Error(t, r.Register("a", "second"))

	v, _ := r.Get("a")
	assert.Equal(t, "first", v)
}

func TestRegisterEmptyNameFails(t *testing.T) {
	r := New[string]()
	assert.Error(t, r.Register("", "x"))
	assert.Error(t, r.Replace("", "x"))
}

func TestReplaceOverwrites(t *testing.T) {
	r := New[string]()
	require.NoError(t, r.Register("a", "first"))
	require.NoError(t, r.Replace("a", "second"))

	v, _ := r.Get("a")
	assert.Equal(t, "second", v)
}

func TestNamesSorted(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Register("zeta", 1))
	require.NoError(t, r.Register("alpha", 2))
	require.NoError(t, r.Register("mid", 3))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
	assert.Equal(t, 3, r.Len())
}

func TestRemove(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Remove("a"))
	assert.Error(t, r.Remove("a"))
	assert.Equal(t, 0, r.Len())
}
