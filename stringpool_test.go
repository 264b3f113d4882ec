package tiny

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringPool_InsertInterns(t *testing.T) {
	p := NewStringPool()
	a := p.Insert("hello")
	b := p.Insert("hello")
	assert.Same(t, a, b, "two insertions of identical bytes must return the same pointer")
	assert.Equal(t, "hello", a.Value)
}

func TestStringPool_DistinctBytesDistinctPointers(t *testing.T) {
	p := NewStringPool()
	a := p.Insert("hello")
	b := p.Insert("world")
	assert.NotSame(t, a, b)
}

func TestStringPool_RepeatedInsertDoesNotGrowPool(t *testing.T) {
	p := NewStringPool()
	p.Insert("same")
	before := p.Len()
	for i := 0; i < 10; i++ {
		p.Insert("same")
	}
	require.Equal(t, before, p.Len())
}

func TestStringPool_ReleaseToZeroRemovesEntry(t *testing.T) {
	p := NewStringPool()
	ref := p.Insert("transient")
	p.Retain(ref)
	require.Equal(t, 1, p.Len())

	p.Release(ref)
	assert.Equal(t, 0, p.Len())

	// Re-inserting the same bytes after release mints a fresh entry.
	again := p.Insert("transient")
	assert.Equal(t, "transient", again.Value)
}

func TestStringPool_RetainKeepsAliveAcrossExtraRelease(t *testing.T) {
	p := NewStringPool()
	ref := p.Insert("kept")
	p.Retain(ref)
	p.Retain(ref)
	p.Release(ref)
	assert.Equal(t, 1, p.Len(), "one release of a doubly-retained string must not free it")
}
