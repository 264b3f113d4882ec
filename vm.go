package tiny

import "fmt"

// ThreadStatus is a Thread's lifecycle state. Mirrors the five-state
// lifecycle in tiny/include/vm.h's Tiny_ThreadState (Uninitialized →
// Initialized → Running → Done, plus Dead for an aborted thread); a thread
// may go Done → Running again through CallFunction, e.g. invoking an
// exported function after the top-level program already finished.
type ThreadStatus int

const (
	ThreadUninitialized ThreadStatus = iota
	ThreadInitialized
	ThreadRunning
	ThreadDone
	ThreadDead
)

type callFrame struct {
	returnPC int
	prevFP   int
	nargs    int
}

// NativeFunc is a Go callback bound to a `foreign` declaration. It receives
// the calling thread (so it can read/write globals or re-enter via
// CallFunction) and exactly the arguments the call site pushed.
type NativeFunc func(t *Thread, args []Value) Value

// Thread executes one Program. Grounded on tiny/src/vm.c's Tiny_StateThread:
// a typed fixed-capacity operand stack, a fixed-capacity call-frame ring,
// its own GC heap, and a flat globals slice (kept per-thread rather than
// shared on the State, since Tiny gives no concurrency guarantees across
// threads sharing a program (spec §5).
type Thread struct {
	prog    *Program
	natives []NativeFunc

	pc int
	sp int
	fp int

	stack  []Value
	frames []callFrame

	maxCallDepth int

	globals []Value
	retval  Value

	Userdata any

	curFile uint32
	curLine uint32

	heap   *Heap
	status ThreadStatus
}

// NewThread allocates (but does not start) a thread against prog. natives
// is indexed the same way prog.FuncTable is: natives[i] is consulted
// whenever prog.FuncTable[i] == -1.
func NewThread(prog *Program, natives []NativeFunc, cfg *Config, pool *StringPool) *Thread {
	t := &Thread{
		prog:         prog,
		natives:      natives,
		stack:        make([]Value, cfg.GetInt("vm.stack_size")),
		maxCallDepth: cfg.GetInt("vm.max_call_depth"),
		globals:      make([]Value, 0),
		heap:         NewHeap(cfg.GetInt("vm.max_objects"), cfg.GetFloat("vm.gc_growth_factor"), pool),
		status:       ThreadUninitialized,
	}
	return t
}

// InitThread prepares a thread to run prog's top-level unit: it allocates
// numGlobals global slots and resets the stack/frame/pc state.
func (t *Thread) InitThread(numGlobals int) {
	t.globals = make([]Value, numGlobals)
	t.sp, t.fp, t.pc = 0, 0, 0
	t.frames = t.frames[:0]
	t.status = ThreadInitialized
}

// StartThread begins executing the top-level unit.
func (t *Thread) StartThread() {
	t.pc = t.prog.EntryPC
	t.status = ThreadRunning
}

func (t *Thread) IsDone() bool { return t.status == ThreadDone || t.status == ThreadDead }

func (t *Thread) push(v Value) error {
	if t.sp >= len(t.stack) {
		return t.trap("operand stack overflow")
	}
	t.stack[t.sp] = v
	t.sp++
	return nil
}

// trap kills the thread and returns a RuntimeTrap annotated with the
// source position the `file`/`line` debug ops last reported.
func (t *Thread) trap(format string, args ...any) error {
	t.status = ThreadDead
	tr := &RuntimeTrap{Message: fmt.Sprintf(format, args...)}
	if int(t.curFile) < len(t.prog.Files) {
		tr.File = t.prog.Files[t.curFile]
		tr.Line = int(t.curLine)
	}
	return tr
}

func (t *Thread) pop() Value {
	t.sp--
	return t.stack[t.sp]
}

func readU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func readU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Run drives ExecuteCycle while the thread's status is running: until it
// halts, returns from its entry frame, runs past the end of the code, or a
// runtime trap occurs.
func (t *Thread) Run() error {
	for t.status == ThreadRunning {
		if err := t.ExecuteCycle(); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteCycle decodes and executes exactly one instruction, then runs a GC
// cycle if the heap has grown past its threshold (spec §4.9: "triggered at
// the end of any cycle where numObjects > maxObjects").
func (t *Thread) ExecuteCycle() error {
	err := t.executeOne()
	t.CollectGarbage()
	return err
}

// executeOne decodes and executes exactly one instruction. Grounded on
// tiny/src/vm.c's Tiny_ExecuteCycle switch; arithmetic/comparison
// instructions are split per operand type rather than verified at runtime,
// since the compiler alone is responsible for emitting the matching
// variant (spec §6 "no runtime verifier").
func (t *Thread) executeOne() error {
	if t.pc >= len(t.prog.Code) {
		t.status = ThreadDone
		return nil
	}

	op := Opcode(t.prog.Code[t.pc])
	afterOp := t.pc + 1
	_, align := operandWidth(op)
	operand := afterOp + padNeeded(afterOp, align)
	code := t.prog.Code

	switch op {
	case OpMisalignedInstruction:
		t.pc++
		return nil

	case OpPushNull:
		t.pc = afterOp
		return t.push(NullValue())
	case OpPushTrue:
		t.pc = afterOp
		return t.push(BoolValue(true))
	case OpPushFalse:
		t.pc = afterOp
		return t.push(BoolValue(false))
	case OpPushChar:
		v := rune(readU32(code[operand:]))
		t.pc = operand + 4
		return t.push(CharValue(v))
	case OpPushInt:
		v := int32(readU32(code[operand:]))
		t.pc = operand + 4
		return t.push(IntValue(v))
	case OpPushInt0:
		t.pc = afterOp
		return t.push(IntValue(0))
	case OpPushFloat:
		idx := readU32(code[operand:])
		t.pc = operand + 4
		return t.push(FloatValue(t.prog.Floats[idx]))
	case OpPushFloatByte:
		idx := code[operand]
		t.pc = operand + 1
		return t.push(FloatValue(t.prog.Floats[idx]))
	case OpPushFloat0:
		t.pc = afterOp
		return t.push(FloatValue(0))
	case OpPushString:
		idx := readU32(code[operand:])
		t.pc = operand + 4
		return t.push(t.heap.NewString(t.prog.Strs[idx]))

	case OpAddInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(IntValue(a.AsInt() + b.AsInt()))
	case OpSubInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(IntValue(a.AsInt() - b.AsInt()))
	case OpMulInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(IntValue(a.AsInt() * b.AsInt()))
	case OpDivInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		if b.AsInt() == 0 {
			return t.trap("division by zero")
		}
		return t.push(IntValue(a.AsInt() / b.AsInt()))
	case OpModInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		if b.AsInt() == 0 {
			return t.trap("division by zero")
		}
		return t.push(IntValue(a.AsInt() % b.AsInt()))

	case OpAdd1Int:
		a := t.pop()
		t.pc = afterOp
		return t.push(IntValue(a.AsInt() + 1))
	case OpSub1Int:
		a := t.pop()
		t.pc = afterOp
		return t.push(IntValue(a.AsInt() - 1))

	case OpAddFloat:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(FloatValue(a.AsFloat() + b.AsFloat()))
	case OpSubFloat:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(FloatValue(a.AsFloat() - b.AsFloat()))
	case OpMulFloat:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(FloatValue(a.AsFloat() * b.AsFloat()))
	case OpDivFloat:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(FloatValue(a.AsFloat() / b.AsFloat()))

	case OpConcatStr:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(t.heap.NewString(internConcat(t.heap.pool, a.AsString(), b.AsString())))

	case OpLtInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsInt() < b.AsInt()))
	case OpGtInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsInt() > b.AsInt()))
	case OpLteInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsInt() <= b.AsInt()))
	case OpGteInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsInt() >= b.AsInt()))
	case OpLtFloat:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsFloat() < b.AsFloat()))
	case OpGtFloat:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsFloat() > b.AsFloat()))
	case OpLteFloat:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsFloat() <= b.AsFloat()))
	case OpGteFloat:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsFloat() >= b.AsFloat()))

	case OpEqInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsInt() == b.AsInt()))
	case OpEqFloat:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsFloat() == b.AsFloat()))
	case OpEqBool:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsBool() == b.AsBool()))
	case OpEqChar:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsChar() == b.AsChar()))
	case OpEqStr:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsString() == b.AsString()))
	case OpEqRef:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.eq(b)))
	case OpNeq:
		v := t.pop()
		t.pc = afterOp
		return t.push(BoolValue(!v.AsBool()))

	case OpAndInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(IntValue(a.AsInt() & b.AsInt()))
	case OpOrInt:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(IntValue(a.AsInt() | b.AsInt()))
	case OpAndBool:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsBool() && b.AsBool()))
	case OpOrBool:
		b, a := t.pop(), t.pop()
		t.pc = afterOp
		return t.push(BoolValue(a.AsBool() || b.AsBool()))

	case OpNegInt:
		a := t.pop()
		t.pc = afterOp
		return t.push(IntValue(-a.AsInt()))
	case OpNegFloat:
		a := t.pop()
		t.pc = afterOp
		return t.push(FloatValue(-a.AsFloat()))
	case OpNotBool:
		a := t.pop()
		t.pc = afterOp
		return t.push(BoolValue(!a.AsBool()))

	case OpLoadLocal:
		idx := readU16(code[operand:])
		t.pc = operand + 2
		return t.push(t.stack[t.fp+int(idx)])
	case OpStoreLocal:
		idx := readU16(code[operand:])
		v := t.pop()
		t.pc = operand + 2
		t.stack[t.fp+int(idx)] = v
		return nil
	case OpLoadGlobal:
		idx := readU32(code[operand:])
		t.pc = operand + 4
		return t.push(t.globals[idx])
	case OpStoreGlobal:
		idx := readU32(code[operand:])
		v := t.pop()
		t.pc = operand + 4
		t.globals[idx] = v
		return nil

	case OpLoadField:
		idx := readU16(code[operand:])
		obj := t.pop()
		t.pc = operand + 2
		return t.push(obj.Field(int(idx)))
	case OpStoreField:
		idx := readU16(code[operand:])
		val := t.pop()
		obj := t.pop()
		t.pc = operand + 2
		obj.SetField(int(idx), val)
		return nil
	case OpNewStruct:
		n := int(readU32(code[operand:]))
		t.pc = operand + 4
		v := t.heap.NewStruct(n)
		for i := n - 1; i >= 0; i-- {
			v.SetField(i, t.pop())
		}
		return t.push(v)

	case OpPop:
		t.pop()
		t.pc = afterOp
		return nil
	case OpDup:
		top := t.stack[t.sp-1]
		t.pc = afterOp
		return t.push(top)

	case OpGoto:
		target := readU32(code[operand:])
		t.pc = int(target)
		return nil
	case OpGotoFalse:
		target := readU32(code[operand:])
		v := t.pop()
		if !v.AsBool() {
			t.pc = int(target)
		} else {
			t.pc = operand + 4
		}
		return nil

	case OpCall, OpCallFgn:
		funcIdx := readU16(code[operand:])
		nargs := code[operand+2]
		returnPC := operand + 3
		return t.doCall(int(funcIdx), int(nargs), returnPC)

	case OpRet:
		return t.doReturn(nil)
	case OpRetVal:
		v := t.pop()
		return t.doReturn(&v)
	case OpGetRetVal:
		t.pc = afterOp
		return t.push(t.retval)

	case OpAddSp:
		n := int(code[operand])
		t.pc = operand + 1
		for i := 0; i < n; i++ {
			if err := t.push(NullValue()); err != nil {
				return err
			}
		}
		return nil

	case OpCast:
		kind := TypeKind(code[operand])
		v := t.pop()
		t.pc = operand + 1
		return t.push(castValue(v, kind))

	case OpFile:
		t.curFile = readU32(code[operand:])
		t.pc = operand + 4
		return nil
	case OpLine:
		t.curLine = readU32(code[operand:])
		t.pc = operand + 4
		return nil

	case OpHalt:
		t.status = ThreadDone
		return nil
	}

	return fmt.Errorf("unknown opcode %d at pc %d", op, t.pc)
}

func (t *Thread) doCall(funcIdx, nargs, returnPC int) error {
	entry := t.prog.FuncTable[funcIdx]
	if entry == -1 {
		if funcIdx >= len(t.natives) || t.natives[funcIdx] == nil {
			return t.trap("unbound foreign function %d", funcIdx)
		}
		args := make([]Value, nargs)
		copy(args, t.stack[t.sp-nargs:t.sp])
		t.sp -= nargs
		t.retval = t.natives[funcIdx](t, args)
		t.pc = returnPC
		return nil
	}

	if len(t.frames) >= t.maxCallDepth {
		return t.trap("call depth exceeded")
	}

	// The callee's body (right after its `file` op) starts with an add_sp
	// reserving its local slots when it has any, so the frame needs no
	// reservation here.
	t.frames = append(t.frames, callFrame{returnPC: returnPC, prevFP: t.fp, nargs: nargs})
	t.fp = t.sp - nargs
	t.pc = entry
	return nil
}

func (t *Thread) doReturn(val *Value) error {
	if val != nil {
		t.retval = *val
	}
	if len(t.frames) == 0 {
		t.status = ThreadDone
		return nil
	}
	fr := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	t.sp = t.fp
	t.fp = fr.prevFP
	t.pc = fr.returnPC
	return nil
}

// CallFunction re-enters the thread to run funcIdx to completion with the
// given arguments, saving and restoring the caller's pc/fp so a foreign
// function can call back into Tiny mid-execution (spec §4.8). Works
// equally from a Done thread (calling an exported function once the
// top-level program has finished) or recursively from inside another
// CallFunction.
func (t *Thread) CallFunction(funcIdx int, args []Value) (Value, error) {
	if t.prog.FuncTable[funcIdx] == -1 {
		if funcIdx >= len(t.natives) || t.natives[funcIdx] == nil {
			return Value{}, &RuntimeTrap{Message: fmt.Sprintf("unbound foreign function %d", funcIdx)}
		}
		return t.natives[funcIdx](t, args), nil
	}

	savedPC, savedFP, savedStatus := t.pc, t.fp, t.status
	savedDepth := len(t.frames)

	for _, a := range args {
		if err := t.push(a); err != nil {
			return Value{}, err
		}
	}
	if err := t.doCall(funcIdx, len(args), -1); err != nil {
		return Value{}, err
	}
	t.status = ThreadRunning

	for len(t.frames) > savedDepth && t.status == ThreadRunning {
		if err := t.ExecuteCycle(); err != nil {
			return Value{}, err
		}
	}

	result := t.retval
	t.pc, t.fp, t.status = savedPC, savedFP, savedStatus
	return result, nil
}

// MarkRoots reports every Value currently reachable directly from this
// thread: the live operand stack, all globals, and the retval register.
// Local variables below the current stack pointer but beyond live frames
// are never produced since sp always tracks the high-water mark of
// reachable slots.
func (t *Thread) MarkRoots(mark func(Value)) {
	for i := 0; i < t.sp; i++ {
		mark(t.stack[i])
	}
	for _, g := range t.globals {
		mark(g)
	}
	mark(t.retval)
}

// CollectGarbage runs one GC cycle if the heap has grown past its
// threshold. Safe to call between any two instructions; a thread never
// triggers GC mid-instruction since every opcode above leaves the stack in
// a self-consistent state before returning.
func (t *Thread) CollectGarbage() {
	if t.heap.ShouldCollect() {
		t.heap.Collect(t.MarkRoots)
	}
}

func castValue(v Value, target TypeKind) Value {
	switch target {
	case TypeInt:
		switch v.Kind {
		case VFloat:
			return IntValue(int32(v.AsFloat()))
		case VChar:
			return IntValue(int32(v.AsChar()))
		case VBool:
			if v.AsBool() {
				return IntValue(1)
			}
			return IntValue(0)
		default:
			return v
		}
	case TypeFloat:
		switch v.Kind {
		case VInt:
			return FloatValue(float32(v.AsInt()))
		case VChar:
			return FloatValue(float32(v.AsChar()))
		default:
			return v
		}
	case TypeChar:
		if v.Kind == VInt {
			return CharValue(rune(v.AsInt()))
		}
		return v
	case TypeBool:
		if v.Kind == VInt {
			return BoolValue(v.AsInt() != 0)
		}
		return v
	default:
		return v
	}
}

func internConcat(pool *StringPool, a, b *StringRef) *StringRef {
	return pool.Insert(a.Value + b.Value)
}
