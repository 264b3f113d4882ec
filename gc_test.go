package tiny

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeap_UnreachableStringIsSweptAndReleased(t *testing.T) {
	pool := NewStringPool()
	heap := NewHeap(1000, 2.0, pool)

	ref := pool.Insert("garbage")
	v := heap.NewString(ref)
	_ = v

	require.Equal(t, 1, pool.Len())
	heap.Collect(func(mark func(Value)) {})
	assert.Equal(t, 0, pool.Len(), "a string with no roots must be released from the pool on sweep")
}

func TestHeap_ReachableStringSurvives(t *testing.T) {
	pool := NewStringPool()
	heap := NewHeap(1000, 2.0, pool)

	ref := pool.Insert("kept")
	v := heap.NewString(ref)

	heap.Collect(func(mark func(Value)) { mark(v) })
	assert.Equal(t, 1, pool.Len())
}

func TestHeap_StructFieldsAreTransitivelyMarked(t *testing.T) {
	pool := NewStringPool()
	heap := NewHeap(1000, 2.0, pool)

	inner := heap.NewStruct(1)
	outer := heap.NewStruct(1)
	outer.SetField(0, inner)

	innerStrRef := pool.Insert("nested")
	innerStr := heap.NewString(innerStrRef)
	inner.SetField(0, innerStr)

	heap.Collect(func(mark func(Value)) { mark(outer) })

	assert.Equal(t, 1, pool.Len(), "the string nested two structs deep must survive via transitive marking")
}

func TestHeap_CycleSurvivesWithoutLooping(t *testing.T) {
	pool := NewStringPool()
	heap := NewHeap(1000, 2.0, pool)

	a := heap.NewStruct(1)
	b := heap.NewStruct(1)
	a.SetField(0, b)
	b.SetField(0, a)

	heap.Collect(func(mark func(Value)) { mark(a) })
	assert.Equal(t, 2, heap.numObjects, "both halves of the cycle survive once either is reachable")
}

func TestHeap_NativeFinalizeRunsOnSweep(t *testing.T) {
	pool := NewStringPool()
	heap := NewHeap(1000, 2.0, pool)

	finalized := false
	prop := &NativeProp{
		Name:     "handle",
		Finalize: func(data any) { finalized = true },
	}
	v := heap.NewNative("payload", prop)
	_ = v

	heap.Collect(func(mark func(Value)) {})
	assert.True(t, finalized)
}

func TestHeap_NativeProtectFromGCKeepsReferentsAlive(t *testing.T) {
	pool := NewStringPool()
	heap := NewHeap(1000, 2.0, pool)

	ref := pool.Insert("protected")
	protected := heap.NewString(ref)

	prop := &NativeProp{
		ProtectFromGC: func(data any, mark func(Value)) {
			mark(data.(Value))
		},
	}
	nat := heap.NewNative(protected, prop)

	heap.Collect(func(mark func(Value)) { mark(nat) })
	assert.Equal(t, 1, pool.Len())
}

func TestHeap_ShouldCollectThresholdAndGrowth(t *testing.T) {
	pool := NewStringPool()
	heap := NewHeap(2, 2.0, pool)

	assert.False(t, heap.ShouldCollect())
	heap.NewStruct(0)
	heap.NewStruct(0)
	assert.False(t, heap.ShouldCollect(), "exactly at the threshold must not yet trigger")
	heap.NewStruct(0)
	assert.True(t, heap.ShouldCollect())

	heap.Collect(func(mark func(Value)) {})
	assert.Equal(t, 0, heap.numObjects)
	assert.False(t, heap.ShouldCollect())
}
