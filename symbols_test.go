package tiny

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbols_DeclareVarAtGlobalScope(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	tags := NewTypePool()

	name := pool.Insert("x")
	sym, err := syms.DeclareVar(name, 0, tags.Primitive(TypeInt))
	require.NoError(t, err)
	assert.True(t, sym.IsGlobal)
	assert.Equal(t, 0, sym.Index)
	assert.Equal(t, 1, syms.NumGlobals())
}

func TestSymbols_RedeclareInSameScopeIsError(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	tags := NewTypePool()
	name := pool.Insert("x")

	_, err := syms.DeclareVar(name, 0, tags.Primitive(TypeInt))
	require.NoError(t, err)
	_, err = syms.DeclareVar(name, 1, tags.Primitive(TypeInt))
	require.Error(t, err)
	assert.IsType(t, &NameError{}, err)
}

func TestSymbols_ShadowingForbiddenAcrossNestedBlocksInSameFunction(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	tags := NewTypePool()
	intT := tags.Primitive(TypeInt)
	name := pool.Insert("a")

	// Enter a function's top-level scope and declare `a` there.
	syms.EnterFunction()
	_, err := syms.DeclareVar(name, 0, intT)
	require.NoError(t, err)

	// A nested block (if/while/for body) may not redeclare `a`.
	syms.PushScope()
	_, err = syms.DeclareVar(name, 1, intT)
	require.Error(t, err, "nested block must not be able to shadow an outer name in the same function")
	syms.PopScope()

	syms.LeaveFunction()
}

func TestSymbols_SameNameAllowedInSiblingFunctions(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	tags := NewTypePool()
	intT := tags.Primitive(TypeInt)
	name := pool.Insert("a")

	syms.EnterFunction()
	_, err := syms.DeclareVar(name, 0, intT)
	require.NoError(t, err)
	syms.LeaveFunction()

	// Back at global scope; a second, unrelated function may reuse `a`
	// as a local without interference from the first function's scope.
	syms.EnterFunction()
	_, err = syms.DeclareVar(name, 1, intT)
	assert.NoError(t, err)
	syms.LeaveFunction()
}

func TestSymbols_LocalIndexResetsPerFunction(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	tags := NewTypePool()
	intT := tags.Primitive(TypeInt)

	syms.EnterFunction()
	s1, _ := syms.DeclareVar(pool.Insert("p1"), 0, intT)
	s2, _ := syms.DeclareVar(pool.Insert("p2"), 0, intT)
	assert.False(t, s1.IsGlobal)
	assert.Equal(t, 0, s1.Index)
	assert.Equal(t, 1, s2.Index)
	syms.LeaveFunction()

	syms.EnterFunction()
	s3, _ := syms.DeclareVar(pool.Insert("q1"), 0, intT)
	assert.Equal(t, 0, s3.Index, "a fresh function scope starts local indices over at 0")
	syms.LeaveFunction()
}

func TestSymbols_TopLevelBlockDeclarationIsStillAGlobalSlot(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	tags := NewTypePool()

	// A `:=` inside a top-level block or for-statement scope still gets a
	// global slot; only function bodies allocate frame slots.
	syms.PushScope()
	sym, err := syms.DeclareVar(pool.Insert("i"), 0, tags.Primitive(TypeInt))
	require.NoError(t, err)
	assert.True(t, sym.IsGlobal)
	assert.Equal(t, 1, syms.NumGlobals())
	syms.PopScope()
}

func TestSymbols_ReferenceVarFindsOuterScope(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	tags := NewTypePool()
	name := pool.Insert("g")

	_, err := syms.DeclareVar(name, 0, tags.Primitive(TypeInt))
	require.NoError(t, err)

	syms.PushScope()
	syms.PushScope()
	sym, err := syms.ReferenceVar(name, 0)
	require.NoError(t, err)
	assert.True(t, sym.IsGlobal)
	syms.PopScope()
	syms.PopScope()
}

func TestSymbols_ReferenceUndeclaredIsNameError(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	_, err := syms.ReferenceVar(pool.Insert("nope"), 0)
	require.Error(t, err)
	assert.IsType(t, &NameError{}, err)
}

func TestSymbols_DeclareConstOutsideFileScopeIsError(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	tags := NewTypePool()

	syms.PushScope()
	_, err := syms.DeclareConst(pool.Insert("K"), 0, tags.Primitive(TypeInt))
	require.Error(t, err)
	syms.PopScope()
}

func TestSymbols_DeclareFuncTwiceIsError(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	tags := NewTypePool()
	sig := tags.InternFunc(nil, tags.Primitive(TypeVoid), false)
	name := pool.Insert("f")

	_, err := syms.DeclareFunc(name, 0, sig, nil)
	require.NoError(t, err)
	_, err = syms.DeclareFunc(name, 1, sig, nil)
	require.Error(t, err)
}

func TestSymbols_BindFunctionThenFindFunc(t *testing.T) {
	pool := NewStringPool()
	syms := NewSymbols()
	tags := NewTypePool()
	sig := tags.InternFunc(nil, tags.Primitive(TypeVoid), false)
	name := pool.Insert("hostfn")

	sym, err := syms.BindFunction(name, sig, 3)
	require.NoError(t, err)
	assert.True(t, sym.Foreign)
	assert.Equal(t, 3, sym.CallbackIndex)

	found, ok := syms.FindFunc(name)
	require.True(t, ok)
	assert.Same(t, sym, found)
}
