package tiny

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinylang/tiny/ascii"
)

func TestCodegen_IncrementByLiteralOneUsesDedicatedOpcodes(t *testing.T) {
	state := NewState()
	require.NoError(t, state.CompileString(`
x := 5
x = x + 1
y := x - 1
`))

	asm := Disassemble(state.Program, ascii.DefaultTheme)
	assert.Contains(t, asm, "add1_int")
	assert.Contains(t, asm, "sub1_int")

	th := state.NewThread()
	state.PrepareThread(th)
	require.NoError(t, th.Run())

	xi, ok := state.GetGlobalIndex("x")
	require.True(t, ok)
	assert.Equal(t, int32(6), th.GetGlobal(xi).AsInt())
	yi, ok := state.GetGlobalIndex("y")
	require.True(t, ok)
	assert.Equal(t, int32(5), th.GetGlobal(yi).AsInt())
}

func TestCodegen_FloatLiteralUsesBytePoolIndex(t *testing.T) {
	state := NewState()
	require.NoError(t, state.CompileString(`f := 1.5`))

	asm := Disassemble(state.Program, ascii.DefaultTheme)
	assert.Contains(t, asm, "push_float_byte")
	require.Len(t, state.Program.Floats, 1)
	assert.Equal(t, float32(1.5), state.Program.Floats[0])
}

func TestCodegen_RepeatedFloatLiteralSharesPoolSlot(t *testing.T) {
	state := NewState()
	require.NoError(t, state.CompileString(`
a := 2.5
b := 2.5
`))
	assert.Len(t, state.Program.Floats, 1)
}

func TestCodegen_FunctionBodyReservesLocalsWithAddSp(t *testing.T) {
	state := NewState()
	require.NoError(t, state.CompileString(`
func f(a: int): int {
	b := a + a
	c := b + 1
	return c
}
`))

	asm := Disassemble(state.Program, ascii.DefaultTheme)
	assert.Contains(t, asm, "add_sp")

	th := state.NewThread()
	state.PrepareThread(th)
	require.NoError(t, th.Run())

	idx, ok := state.GetFunctionIndex("f")
	require.True(t, ok)
	result, err := th.CallFunction(idx, []Value{IntValue(3)})
	require.NoError(t, err)
	assert.Equal(t, int32(7), result.AsInt())
}
