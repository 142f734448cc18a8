package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAddGet(t *testing.T) {
	m := newMapObj()
	require.NoError(t, m.Add(Int(1), Int(100)))
	v, ok := m.Get(Int(1))
	assert.True(t, ok)
	assert.Equal(t, Int(100), v)
}

func TestMapIntFloatKeyAlias(t *testing.T) {
	m := newMapObj()
	require.NoError(t, m.Add(Int(1), Int(1)))
	v, ok := m.Get(Float(1.0))
	assert.True(t, ok, "1 and 1.0 must alias to the same map slot")
	assert.Equal(t, Int(1), v)
}

func TestMapUpdateOverwrites(t *testing.T) {
	m := newMapObj()
	require.NoError(t, m.Add(Int(1), Int(1)))
	require.NoError(t, m.Add(Int(1), Int(2)))
	assert.Equal(t, 1, m.Len())
	v, _ := m.Get(Int(1))
	assert.Equal(t, Int(2), v)
}

func TestMapNullKeyRejected(t *testing.T) {
	m := newMapObj()
	err := m.Add(Null, Int(1))
	assert.Error(t, err)
}

func TestMapDeleteThenLookupMisses(t *testing.T) {
	m := newMapObj()
	require.NoError(t, m.Add(Int(1), Int(1)))
	require.NoError(t, m.Add(Int(2), Int(2)))
	assert.True(t, m.Delete(Int(1)))
	_, ok := m.Get(Int(1))
	assert.False(t, ok)
	v, ok := m.Get(Int(2))
	assert.True(t, ok)
	assert.Equal(t, Int(2), v)
}

func TestMapDeleteBackwardShiftKeepsAllReachable(t *testing.T) {
	m := newMapObj()
	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, m.Add(Int(int64(i)), Int(int64(i*i))))
	}
	for i := 0; i < n; i += 3 {
		m.Delete(Int(int64(i)))
	}
	for i := 0; i < n; i++ {
		v, ok := m.Get(Int(int64(i)))
		if i%3 == 0 {
			assert.False(t, ok, "key %d was deleted", i)
			continue
		}
		require.True(t, ok, "key %d must still be reachable after neighboring deletes", i)
		assert.Equal(t, Int(int64(i*i)), v)
	}
}

func TestMapGrowsUnderLoadFactor(t *testing.T) {
	m := newMapObj()
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Add(Int(int64(i)), Null))
	}
	assert.LessOrEqual(t, float64(m.Len())/float64(m.Cap()), 0.75)
}

func TestMapExtendChildWins(t *testing.T) {
	parent := newMapObj()
	require.NoError(t, parent.Add(Int(1), Int(1)))
	require.NoError(t, parent.Add(Int(2), Int(2)))

	child := newMapObj()
	require.NoError(t, child.Add(Int(1), Int(999)))
	require.NoError(t, child.Extend(parent))

	v, _ := child.Get(Int(1))
	assert.Equal(t, Int(999), v, "child's own entry must win over the parent's")
	v, _ = child.Get(Int(2))
	assert.Equal(t, Int(2), v)
}

func TestMapNextKeyTerminatesAfterLastEntry(t *testing.T) {
	m := newMapObj()
	require.NoError(t, m.Add(Int(1), Int(10)))
	require.NoError(t, m.Add(Int(2), Int(20)))

	seen := map[int64]bool{}
	key := Null
	for i := 0; i < m.Len()+1; i++ {
		key = m.NextKey(key)
		if key.Kind == KNull {
			break
		}
		require.False(t, seen[key.AsInt()], "key %d yielded more than once", key.AsInt())
		seen[key.AsInt()] = true
	}
	assert.Equal(t, Null, key, "iteration must terminate with NULL once every entry is consumed")
	assert.Len(t, seen, m.Len())
}

func TestMapNextKeyOnEmptyMapReturnsNull(t *testing.T) {
	m := newMapObj()
	assert.Equal(t, Null, m.NextKey(Null))
}

func TestArcContains(t *testing.T) {
	assert.True(t, arcContains(2, 5, 3))
	assert.False(t, arcContains(2, 5, 1))
	assert.True(t, arcContains(6, 1, 0), "wrap-around arc")
	assert.False(t, arcContains(6, 1, 5))
}
