package tiny

import (
	"fmt"

	"github.com/tinylang/tiny/ascii"
)

// label identifies a jump target within one function's instruction list
// before addresses are known. Resolved to an absolute byte offset by
// encodeUnit. Mirrors the teacher's two-phase gen.go/vm_encoder.go split:
// emit symbolic instructions first, then backpatch.
type label int

// Instruction is one not-yet-encoded bytecode operation. Only the fields
// relevant to Op are meaningful; this mirrors the original Instruction
// tagged struct (tiny/src/vm.c's codegen side) rather than one Go type per
// opcode, which would fragment the single encode switch below.
type Instruction struct {
	Op Opcode

	Int32    int32  // push_int / load|store_global / new_struct count / goto targets stash
	LocalIdx int32  // load|store_local, load|store_field slot
	FloatIdx uint32 // push_float / push_float_byte pool index
	StrIdx   uint32
	CallIdx  uint16
	NArgs    uint8
	CastKind uint8
	Slots    uint8 // add_sp reservation count
	DbgFile  uint32
	DbgLine  uint32

	Target label // goto / goto_false
}

// Program is a State's compiled bytecode plus its constant pools and the
// tables the VM needs to dispatch calls. Each CompileString/CompileModule
// call re-assembles a fresh Program covering every unit compiled so far;
// a Thread holds whichever Program snapshot its State had when the thread
// was created.
type Program struct {
	Code   []byte
	Floats []float32
	Strs   []*StringRef
	Files  []string // compile-unit names, indexed by the `file` debug op

	// FuncTable maps a Symbols function index to where its body begins in
	// Code, or -1 if the function is foreign (dispatched through the
	// State's Natives table instead).
	FuncTable []int
	EntryPC   int // where top-level (global-initializer) code begins
}

// encodeUnit turns one function's or the top-level unit's []Instruction
// into bytes appended to out, resolving that unit's own labels. Returns out
// extended with the unit's bytes.
func encodeUnit(out []byte, instrs []Instruction, labelPos map[label]int) ([]byte, error) {
	base := len(out)

	// Pass 1: compute the byte offset each instruction starts at, so
	// labels (which refer to instruction *indices*) can be resolved to
	// absolute byte offsets before any bytes are written.
	offsets := make([]int, len(instrs)+1)
	offset := base
	for i, ins := range instrs {
		offsets[i] = offset
		offset += encodedSize(ins, offset)
	}
	offsets[len(instrs)] = offset

	resolve := func(lbl label) (int, error) {
		idx, ok := labelPos[lbl]
		if !ok {
			return 0, fmt.Errorf("unresolved label %d", lbl)
		}
		if idx < 0 || idx > len(instrs) {
			return 0, fmt.Errorf("label %d out of range", lbl)
		}
		return offsets[idx], nil
	}

	// Pass 2: write bytes, using the offsets table for any goto target.
	for _, ins := range instrs {
		var err error
		out, err = appendInstruction(out, ins, resolve)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func encodedSize(ins Instruction, offset int) int {
	size, align := operandWidth(ins.Op)
	pad := padNeeded(offset+1, align)
	return 1 + pad + size
}

func padNeeded(offset, align int) int {
	if align <= 1 {
		return 0
	}
	rem := offset % align
	if rem == 0 {
		return 0
	}
	return align - rem
}

func putU16(b []byte, v uint16) []byte { return append(b, byte(v), byte(v>>8)) }
func putU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendInstruction(out []byte, ins Instruction, resolve func(label) (int, error)) ([]byte, error) {
	out = append(out, byte(ins.Op))
	_, align := operandWidth(ins.Op)
	for pad := padNeeded(len(out), align); pad > 0; pad-- {
		out = append(out, byte(OpMisalignedInstruction))
	}

	switch ins.Op {
	case OpPushChar, OpPushInt, OpLoadGlobal, OpStoreGlobal, OpNewStruct:
		out = putU32(out, uint32(ins.Int32))
	case OpPushString:
		out = putU32(out, ins.StrIdx)
	case OpPushFloat:
		out = putU32(out, ins.FloatIdx)
	case OpPushFloatByte:
		out = append(out, byte(ins.FloatIdx))
	case OpLoadLocal, OpStoreLocal, OpLoadField, OpStoreField:
		out = putU16(out, uint16(ins.LocalIdx))
	case OpGoto, OpGotoFalse:
		target, err := resolve(ins.Target)
		if err != nil {
			return nil, err
		}
		out = putU32(out, uint32(target))
	case OpCall, OpCallFgn:
		out = putU16(out, ins.CallIdx)
		out = append(out, ins.NArgs)
	case OpCast:
		out = append(out, ins.CastKind)
	case OpAddSp:
		out = append(out, ins.Slots)
	case OpFile:
		out = putU32(out, ins.DbgFile)
	case OpLine:
		out = putU32(out, ins.DbgLine)
	}
	return out, nil
}

// Disassemble renders a Program's instruction stream for debugging, in the
// ascii package's color theme.
func Disassemble(p *Program, theme ascii.Theme) string {
	var out string
	pc := 0
	for pc < len(p.Code) {
		op := Opcode(p.Code[pc])
		start := pc
		pc++
		if op == OpMisalignedInstruction {
			continue
		}
		size, align := operandWidth(op)
		pc += padNeeded(start+1, align)
		out += ascii.Color(theme.Muted, "%04d", start) + "  " + ascii.Color(theme.Operator, "%-16s", op.String())
		if size > 0 && pc+size <= len(p.Code) {
			out += ascii.Color(theme.Literal, "% x", p.Code[pc:pc+size])
		}
		out += "\n"
		pc += size
	}
	return out
}
