package tiny

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_AllocReturnsZeroValue(t *testing.T) {
	a := NewArena[int](4)
	p := a.Alloc()
	assert.Equal(t, 0, *p)
}

func TestArena_AllocatedPointersStayDistinct(t *testing.T) {
	a := NewArena[int](4)
	p1 := a.Alloc()
	p2 := a.Alloc()
	*p1 = 1
	*p2 = 2
	assert.Equal(t, 1, *p1)
	assert.Equal(t, 2, *p2)
}

func TestArena_LenTracksAllocationsAcrossPages(t *testing.T) {
	a := NewArena[int](4)
	for i := 0; i < 10; i++ {
		a.Alloc()
	}
	assert.Equal(t, 10, a.Len())
}

func TestArena_PointersSurvivePastAPageBoundary(t *testing.T) {
	a := NewArena[int](2)
	ptrs := make([]*int, 0, 5)
	for i := 0; i < 5; i++ {
		p := a.Alloc()
		*p = i
		ptrs = append(ptrs, p)
	}
	for i, p := range ptrs {
		assert.Equal(t, i, *p, "allocating a new page must not invalidate earlier pointers")
	}
}

func TestArena_ZeroOrNegativePageSizeUsesDefault(t *testing.T) {
	a := NewArena[byte](0)
	require.NotNil(t, a)
	p := a.Alloc()
	require.NotNil(t, p)
}

type arenaTestStruct struct {
	X, Y int
}

func TestArena_AllocWithStructType(t *testing.T) {
	a := NewArena[arenaTestStruct](4)
	p := a.Alloc()
	p.X, p.Y = 3, 4
	assert.Equal(t, arenaTestStruct{X: 3, Y: 4}, *p)
}
