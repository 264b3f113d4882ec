package tiny

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashMap_InsertAndGet(t *testing.T) {
	m := NewHashMap[string]()
	m.Insert(1, "one")
	m.Insert(2, "two")

	v, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	v, ok = m.Get(2)
	require.True(t, ok)
	assert.Equal(t, "two", v)

	assert.Equal(t, 2, m.Len())
}

func TestHashMap_GetMissingKeyReturnsFalse(t *testing.T) {
	m := NewHashMap[int]()
	_, ok := m.Get(42)
	assert.False(t, ok)
}

func TestHashMap_InsertOverwritesExistingKey(t *testing.T) {
	m := NewHashMap[int]()
	m.Insert(1, 10)
	m.Insert(1, 20)

	v, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, 20, v)
	assert.Equal(t, 1, m.Len(), "overwriting a key must not grow the count")
}

func TestHashMap_RemoveDeletesEntryAndReturnsOldValue(t *testing.T) {
	m := NewHashMap[string]()
	m.Insert(1, "one")

	v, ok := m.Remove(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	_, ok = m.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestHashMap_RemoveMissingKeyReturnsFalse(t *testing.T) {
	m := NewHashMap[int]()
	_, ok := m.Remove(99)
	assert.False(t, ok)
}

func TestHashMap_TombstoneDoesNotBreakProbeChainPastIt(t *testing.T) {
	m := NewHashMap[string]()
	// Both keys collide into the same bucket under the low bits of the
	// backing table's initial 16-slot capacity, so the second key's
	// lookup/removal must probe past the first slot regardless of its
	// state.
	const cap0 = 16
	a, b := uint64(3), uint64(3+cap0)

	m.Insert(a, "a")
	m.Insert(b, "b")
	require.Equal(t, 2, m.Len())

	_, ok := m.Remove(a)
	require.True(t, ok)

	v, ok := m.Get(b)
	require.True(t, ok, "removing the earlier slot in a probe chain must not hide a later occupied slot")
	assert.Equal(t, "b", v)
}

func TestHashMap_ReinsertingIntoATombstonedSlotReusesIt(t *testing.T) {
	m := NewHashMap[string]()
	const cap0 = 16
	a, b := uint64(5), uint64(5+cap0)

	m.Insert(a, "a")
	m.Insert(b, "b")
	m.Remove(a)

	m.Insert(a, "a-again")
	v, ok := m.Get(a)
	require.True(t, ok)
	assert.Equal(t, "a-again", v)

	v, ok = m.Get(b)
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 2, m.Len())
}

func TestHashMap_GrowsPastLoadFactorAndKeepsAllEntries(t *testing.T) {
	m := NewHashMap[int]()
	const n = 100
	for i := uint64(0); i < n; i++ {
		m.Insert(i, int(i)*10)
	}
	require.Equal(t, n, m.Len())

	for i := uint64(0); i < n; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		assert.Equal(t, int(i)*10, v)
	}
}

func TestHashMap_EmptyMapGetIsSafe(t *testing.T) {
	var m HashMap[int]
	_, ok := m.Get(1)
	assert.False(t, ok)
}
