package tiny

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileAndRun(t *testing.T, src string) (*State, *Thread) {
	t.Helper()
	state := NewState()
	require.NoError(t, state.CompileString(src))
	th := state.NewThread()
	state.PrepareThread(th)
	require.NoError(t, th.Run())
	return state, th
}

func TestEndToEnd_GlobalsAndFunctionCall(t *testing.T) {
	src := `
x := 10
y := 20
func add(a: int, b: int): int {
	return a + b
}
`
	state, th := compileAndRun(t, src)

	idx, ok := state.GetFunctionIndex("add")
	require.True(t, ok)
	assert.GreaterOrEqual(t, idx, 0)

	result, err := th.CallFunction(idx, []Value{IntValue(3), IntValue(4)})
	require.NoError(t, err)
	assert.Equal(t, int32(7), result.AsInt())

	xi, ok := state.GetGlobalIndex("x")
	require.True(t, ok)
	assert.Equal(t, int32(10), th.GetGlobal(xi).AsInt())
}

func TestEndToEnd_IdenticalStringLiteralsShareInternedPointer(t *testing.T) {
	src := `
s := "he"
t := "he"
`
	state, th := compileAndRun(t, src)

	si, ok := state.GetGlobalIndex("s")
	require.True(t, ok)
	ti, ok := state.GetGlobalIndex("t")
	require.True(t, ok)

	sv := th.GetGlobal(si).AsString()
	tv := th.GetGlobal(ti).AsString()
	require.NotNil(t, sv)
	require.NotNil(t, tv)
	assert.Same(t, sv, tv, "two `he` literals must intern to the same string pool entry")
}

func TestEndToEnd_StructConstructionAndFieldAccess(t *testing.T) {
	src := `
struct P {
	x: int
	y: int
}
p := new P{1, 2}
q := p.x + p.y
`
	state, th := compileAndRun(t, src)

	qi, ok := state.GetGlobalIndex("q")
	require.True(t, ok)
	assert.Equal(t, int32(3), th.GetGlobal(qi).AsInt())
}

func TestEndToEnd_ForeignVarargsReceivesExactArgs(t *testing.T) {
	src := `
foreign func print(...)

print(1, "a", true)
`
	state := NewState()
	require.NoError(t, state.CompileString(src))

	var received []Value
	require.NoError(t, state.BindFunction("print(...)", func(th *Thread, args []Value) Value {
		received = append(received, args...)
		return NullValue()
	}))

	th := state.NewThread()
	state.PrepareThread(th)

	spBefore := th.sp
	require.NoError(t, th.Run())
	assert.Equal(t, spBefore, th.sp, "stack depth must return to its pre-call level")

	require.Len(t, received, 3)
	assert.Equal(t, VInt, received[0].Kind)
	assert.Equal(t, int32(1), received[0].AsInt())
	assert.Equal(t, VString, received[1].Kind)
	assert.Equal(t, "a", received[1].AsString().Value)
	assert.Equal(t, VBool, received[2].Kind)
	assert.True(t, received[2].AsBool())
}

func TestEndToEnd_LoopCounterAndFrameDepthRestored(t *testing.T) {
	// `i` is declared once in the function's own scope, then driven by
	// plain assignment in the for-statement's init/post clauses. The
	// for-statement opens its own scope around init/cond/post/body (as
	// the original parser does), so a `for i := 0; ...` would scope `i`
	// to the loop itself and leave `return i` unable to see it.
	src := `
func run(): int {
	i := 0
	for i = 0; i < 1000; i = i + 1 {
	}
	return i
}
`
	state, th := compileAndRun(t, src)

	idx, ok := state.GetFunctionIndex("run")
	require.True(t, ok)

	depthBefore := len(th.frames)
	result, err := th.CallFunction(idx, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1000), result.AsInt())
	assert.Equal(t, depthBefore, len(th.frames), "call frame stack must return to its prior depth")
}

func TestEndToEnd_TopLevelForLoopAccumulates(t *testing.T) {
	src := `
total := 0
for i := 0; i < 5; i = i + 1 {
	total = total + i
}
`
	state, th := compileAndRun(t, src)

	ti, ok := state.GetGlobalIndex("total")
	require.True(t, ok)
	assert.Equal(t, int32(10), th.GetGlobal(ti).AsInt())
}

func TestEndToEnd_TopLevelReturnSetsRetval(t *testing.T) {
	src := `
i := 0
for i = 0; i < 1000; i = i + 1 {
}
return i
`
	_, th := compileAndRun(t, src)
	assert.Equal(t, int32(1000), th.RetVal().AsInt())
	assert.True(t, th.IsDone())
}

func TestEndToEnd_CastOfNonPrimitiveIsCompileError(t *testing.T) {
	src := `cast("hello", int)`
	state := NewState()
	err := state.CompileString(src)
	require.Error(t, err)
	assert.IsType(t, &TypeError{}, err)
}

func TestEndToEnd_CompileModuleAppendsAcrossCompiles(t *testing.T) {
	state := NewState()
	require.NoError(t, state.CompileModule("mathutil", `
func double(x: int): int {
	return x + x
}
base := 10
`))
	require.NoError(t, state.CompileModule("main", `
result := double(base)
`))

	th := state.NewThread()
	state.PrepareThread(th)
	require.NoError(t, th.Run())

	ri, ok := state.GetGlobalIndex("result")
	require.True(t, ok)
	assert.Equal(t, int32(20), th.GetGlobal(ri).AsInt(), "the second unit's top-level runs after the first's, seeing its functions and globals")
}

func TestRegisterType_DistinctNamesAreDistinctTypes(t *testing.T) {
	state := NewState()
	require.NoError(t, state.RegisterType("File"))
	require.NoError(t, state.RegisterType("Socket"))

	f, ok := state.syms.FindTypeSym(state.pool.Insert("File"))
	require.True(t, ok)
	sock, ok := state.syms.FindTypeSym(state.pool.Insert("Socket"))
	require.True(t, ok)
	assert.NotSame(t, f.Type, sock.Type, "two opaque registrations must not be assignable to one another")
}
