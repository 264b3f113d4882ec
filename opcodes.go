package tiny

// Opcode is a single bytecode instruction's operation. Mirrors the Opcode
// enum in tiny/include/vm.h; arithmetic/comparison ops are split per
// operand type (no runtime verifier; the compiler alone is responsible
// for emitting the correctly-typed variant, spec §6).
type Opcode byte

const (
	OpPushNull Opcode = iota
	OpPushTrue
	OpPushFalse
	OpPushChar      // u32 immediate: rune
	OpPushInt       // i32 immediate
	OpPushInt0      // no immediate, pushes int 0
	OpPushFloat     // u32 immediate: index into float pool
	OpPushFloatByte // u8 immediate: specialized variant for pool indexes < 256
	OpPushFloat0    // no immediate, pushes float 0
	OpPushString    // u32 immediate: index into string pool

	OpAddInt
	OpSubInt
	OpMulInt
	OpDivInt
	OpModInt
	OpAdd1Int // no immediate, increments the int on top of the stack
	OpSub1Int // no immediate, decrements the int on top of the stack
	OpAddFloat
	OpSubFloat
	OpMulFloat
	OpDivFloat
	OpConcatStr

	OpLtInt
	OpGtInt
	OpLteInt
	OpGteInt
	OpLtFloat
	OpGtFloat
	OpLteFloat
	OpGteFloat

	OpEqInt
	OpEqFloat
	OpEqBool
	OpEqChar
	OpEqStr
	OpEqRef // pointer equality: struct/func/null comparisons
	OpNeq   // negates the boolean just pushed by one of the Eq* ops above

	OpAndInt
	OpOrInt
	OpAndBool
	OpOrBool

	OpNegInt
	OpNegFloat
	OpNotBool

	OpLoadLocal  // u16 immediate: frame-relative slot
	OpStoreLocal // u16 immediate: frame-relative slot
	OpLoadGlobal // u32 immediate: global slot
	OpStoreGlobal

	OpLoadField  // u16 immediate: struct field index
	OpStoreField // u16 immediate: struct field index
	OpNewStruct  // u32 immediate: struct field count

	OpPop
	OpDup

	OpGoto      // i32 immediate: absolute pc
	OpGotoFalse // i32 immediate: absolute pc; pops bool

	OpCall    // u16 immediate: function index, u8 immediate: nargs
	OpCallFgn // u16 immediate: foreign callback index, u8 immediate: nargs
	OpRet
	OpRetVal
	OpGetRetVal

	OpCast // u8 immediate: target TypeKind

	OpAddSp // u8 immediate: null slots to reserve for a frame's locals

	OpFile // u32 immediate: index into Program.Files; debug info
	OpLine // u32 immediate: source line; debug info

	OpMisalignedInstruction // alignment padding filler, never executed
	OpHalt
)

var opcodeNames = map[Opcode]string{
	OpPushNull: "push_null", OpPushTrue: "push_true", OpPushFalse: "push_false",
	OpPushChar: "push_char", OpPushInt: "push_int", OpPushInt0: "push_int_0",
	OpPushFloat: "push_float", OpPushFloatByte: "push_float_byte",
	OpPushFloat0: "push_float_0", OpPushString: "push_string",
	OpAddInt: "add_int", OpSubInt: "sub_int", OpMulInt: "mul_int", OpDivInt: "div_int", OpModInt: "mod_int",
	OpAdd1Int: "add1_int", OpSub1Int: "sub1_int",
	OpAddFloat: "add_float", OpSubFloat: "sub_float", OpMulFloat: "mul_float", OpDivFloat: "div_float",
	OpConcatStr: "concat_str",
	OpLtInt:     "lt_int", OpGtInt: "gt_int", OpLteInt: "lte_int", OpGteInt: "gte_int",
	OpLtFloat: "lt_float", OpGtFloat: "gt_float", OpLteFloat: "lte_float", OpGteFloat: "gte_float",
	OpEqInt: "eq_int", OpEqFloat: "eq_float", OpEqBool: "eq_bool", OpEqChar: "eq_char",
	OpEqStr: "eq_str", OpEqRef: "eq_ref", OpNeq: "neq",
	OpAndInt: "and_int", OpOrInt: "or_int", OpAndBool: "and_bool", OpOrBool: "or_bool",
	OpNegInt: "neg_int", OpNegFloat: "neg_float", OpNotBool: "not_bool",
	OpLoadLocal: "load_local", OpStoreLocal: "store_local",
	OpLoadGlobal: "load_global", OpStoreGlobal: "store_global",
	OpLoadField: "load_field", OpStoreField: "store_field", OpNewStruct: "new_struct",
	OpPop: "pop", OpDup: "dup",
	OpGoto: "goto", OpGotoFalse: "goto_false",
	OpCall: "call", OpCallFgn: "call_fgn", OpRet: "ret", OpRetVal: "retval", OpGetRetVal: "get_retval",
	OpCast:                  "cast",
	OpAddSp:                 "add_sp",
	OpFile:                  "file",
	OpLine:                  "line",
	OpMisalignedInstruction: "misaligned_instruction",
	OpHalt:                  "halt",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "<unknown opcode>"
}

// operandWidth reports how many immediate bytes follow an opcode, and the
// alignment that immediate needs within the encoded stream (spec §6: i32/
// u32/usize immediates are padded to their own size with
// MISALIGNED_INSTRUCTION filler bytes so the VM can read them unaligned-free).
func operandWidth(op Opcode) (size, align int) {
	switch op {
	case OpPushChar, OpPushInt, OpPushFloat, OpPushString, OpLoadGlobal, OpStoreGlobal, OpNewStruct, OpGoto, OpGotoFalse:
		return 4, 4
	case OpPushFloatByte, OpCast, OpAddSp:
		return 1, 1
	case OpLoadLocal, OpStoreLocal, OpLoadField, OpStoreField:
		return 2, 2
	case OpCall, OpCallFgn:
		return 3, 2 // u16 index + u8 nargs; aligned as its leading u16
	case OpFile, OpLine:
		return 4, 4
	default:
		return 0, 1
	}
}
