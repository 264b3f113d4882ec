package tiny

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVM_StackOverflowTrapsThread(t *testing.T) {
	src := `
struct Ten {
	a: int
	b: int
	c: int
	d: int
	e: int
	f: int
	g: int
	h: int
	i: int
	j: int
}
t := new Ten{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
`
	state := NewState()
	require.NoError(t, state.CompileString(src))
	state.Config.SetInt("vm.stack_size", 4)

	th := state.NewThread()
	state.PrepareThread(th)
	err := th.Run()

	require.Error(t, err)
	assert.IsType(t, &RuntimeTrap{}, err)
	assert.Equal(t, ThreadDead, th.status)
}

func TestVM_CallDepthExceededTrapsThread(t *testing.T) {
	src := `
func recurse(): int {
	return recurse()
}
`
	state := NewState()
	require.NoError(t, state.CompileString(src))
	state.Config.SetInt("vm.max_call_depth", 3)

	th := state.NewThread()
	state.PrepareThread(th)

	idx, ok := state.GetFunctionIndex("recurse")
	require.True(t, ok)

	_, err := th.CallFunction(idx, nil)
	require.Error(t, err)
	assert.IsType(t, &RuntimeTrap{}, err)
	assert.Equal(t, "call depth exceeded", err.(*RuntimeTrap).Message)
}

func TestVM_DivisionByZeroTrapsThread(t *testing.T) {
	src := `
z := 0
r := 10 / z
`
	state := NewState()
	require.NoError(t, state.CompileString(src))

	th := state.NewThread()
	state.PrepareThread(th)
	err := th.Run()

	require.Error(t, err)
	assert.IsType(t, &RuntimeTrap{}, err)
	assert.Equal(t, "division by zero", err.(*RuntimeTrap).Message)
	assert.Equal(t, ThreadDead, th.status)
}

func TestVM_ModuloByZeroTrapsThread(t *testing.T) {
	src := `
z := 0
r := 10 % z
`
	_, th := compileAndRunExpectTrap(t, src)
	assert.Equal(t, ThreadDead, th.status)
}

func compileAndRunExpectTrap(t *testing.T, src string) (*State, *Thread) {
	t.Helper()
	state := NewState()
	require.NoError(t, state.CompileString(src))
	th := state.NewThread()
	state.PrepareThread(th)
	err := th.Run()
	require.Error(t, err)
	assert.IsType(t, &RuntimeTrap{}, err)
	return state, th
}

func TestVM_TrapCarriesSourceLocation(t *testing.T) {
	src := `
z := 0
r := 10 / z
`
	state := NewState()
	require.NoError(t, state.CompileString(src))

	th := state.NewThread()
	state.PrepareThread(th)
	err := th.Run()

	require.Error(t, err)
	trap := err.(*RuntimeTrap)
	assert.Equal(t, "main", trap.File)
	assert.Equal(t, 3, trap.Line)
}

func TestVM_CastIntToFloatAndBack(t *testing.T) {
	src := `
i := 7
f := cast(i, float)
back := cast(f, int)
`
	state, th := compileAndRun(t, src)

	fi, ok := state.GetGlobalIndex("f")
	require.True(t, ok)
	assert.Equal(t, float32(7), th.GetGlobal(fi).AsFloat())

	bi, ok := state.GetGlobalIndex("back")
	require.True(t, ok)
	assert.Equal(t, int32(7), th.GetGlobal(bi).AsInt())
}

func TestVM_CastCharToIntAndBoolToInt(t *testing.T) {
	src := `
ch := 'A'
n := cast(ch, int)
b := true
bi := cast(b, int)
`
	state, th := compileAndRun(t, src)

	ni, ok := state.GetGlobalIndex("n")
	require.True(t, ok)
	assert.Equal(t, int32(65), th.GetGlobal(ni).AsInt())

	bii, ok := state.GetGlobalIndex("bi")
	require.True(t, ok)
	assert.Equal(t, int32(1), th.GetGlobal(bii).AsInt())
}

func TestVM_CastIntToCharAndIntToBool(t *testing.T) {
	src := `
n := 66
ch := cast(n, char)
z := 0
b := cast(z, bool)
`
	state, th := compileAndRun(t, src)

	chi, ok := state.GetGlobalIndex("ch")
	require.True(t, ok)
	assert.Equal(t, 'B', th.GetGlobal(chi).AsChar())

	bi, ok := state.GetGlobalIndex("b")
	require.True(t, ok)
	assert.False(t, th.GetGlobal(bi).AsBool())
}

func TestVM_GotoFalseSkipsBranchOnFalseCondition(t *testing.T) {
	src := `
x := 0
if false {
	x = 99
} else {
	x = 1
}
`
	state, th := compileAndRun(t, src)

	xi, ok := state.GetGlobalIndex("x")
	require.True(t, ok)
	assert.Equal(t, int32(1), th.GetGlobal(xi).AsInt())
}

func TestVM_DoReturnRestoresCallerFrameAndPC(t *testing.T) {
	src := `
func inner(): int {
	return 42
}
func outer(): int {
	a := inner()
	b := inner()
	return a + b
}
`
	state, th := compileAndRun(t, src)

	idx, ok := state.GetFunctionIndex("outer")
	require.True(t, ok)

	depthBefore := len(th.frames)
	result, err := th.CallFunction(idx, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(84), result.AsInt())
	assert.Equal(t, depthBefore, len(th.frames))
}

func TestVM_UnboundForeignFunctionTrapsThread(t *testing.T) {
	src := `
foreign func log(...)
log(1)
`
	state := NewState()
	require.NoError(t, state.CompileString(src))

	th := state.NewThread()
	state.PrepareThread(th)
	err := th.Run()

	require.Error(t, err)
	assert.IsType(t, &RuntimeTrap{}, err)
	assert.Equal(t, ThreadDead, th.status)
}
