package tiny

import "fmt"

// Codegen lowers type-checked ASTs into a Program. Grounded on the
// teacher's two-phase gen.go (emit symbolic instructions, then a single
// Encode pass resolves labels and alignment): each function compiles to
// its own label-addressed instruction list, encoded independently and
// concatenated, so one function's jump targets never collide with
// another's. A Codegen lives as long as its State: every CompileProgram
// call appends another unit's top-level statements and functions to the
// symbolic lists kept here, then re-assembles the whole Program, so
// additional compiles extend the state's code, floats, and strings
// rather than replacing them.
type Codegen struct {
	types *TypePool
	syms  *Symbols

	floats     []float32
	floatIndex map[float32]int
	strs       []*StringRef
	strIndex   map[*StringRef]int

	files []string

	tops    []*funcGen        // one top-level unit per compiled source, in order
	bodies  map[int]*funcGen  // function index -> compiled body
	foreign map[int]bool      // function index -> dispatched through the native table
}

func NewCodegen(types *TypePool, syms *Symbols) *Codegen {
	return &Codegen{
		types:      types,
		syms:       syms,
		floatIndex: make(map[float32]int),
		strIndex:   make(map[*StringRef]int),
		bodies:     make(map[int]*funcGen),
		foreign:    make(map[int]bool),
	}
}

func (c *Codegen) internFloat(v float32) uint32 {
	if idx, ok := c.floatIndex[v]; ok {
		return uint32(idx)
	}
	idx := len(c.floats)
	c.floats = append(c.floats, v)
	c.floatIndex[v] = idx
	return uint32(idx)
}

func (c *Codegen) internStr(ref *StringRef) uint32 {
	if idx, ok := c.strIndex[ref]; ok {
		return uint32(idx)
	}
	idx := len(c.strs)
	c.strs = append(c.strs, ref)
	c.strIndex[ref] = idx
	return uint32(idx)
}

// funcGen holds the per-function emission state: its own label namespace,
// the break/continue target stack for nested loops, and the line tracking
// that keeps `line` debug ops down to one per source line.
type funcGen struct {
	cg     *Codegen
	instrs []Instruction
	labels map[label]int
	nextID label

	li       *LineIndex
	lastLine uint32

	breakTargets    []label
	continueTargets []label
}

func (c *Codegen) newFuncGen(li *LineIndex, fileIdx uint32) *funcGen {
	fg := &funcGen{cg: c, labels: make(map[label]int), li: li}
	fg.emit(Instruction{Op: OpFile, DbgFile: fileIdx})
	return fg
}

func (f *funcGen) newLabel() label {
	f.nextID++
	return f.nextID
}

func (f *funcGen) place(l label) {
	f.labels[l] = len(f.instrs)
}

func (f *funcGen) emit(ins Instruction) {
	f.instrs = append(f.instrs, ins)
}

// CompileProgram generates a Program from a type-checked NProgram root,
// appending this unit to everything compiled before it. It compiles every
// NProc body, plus a synthetic top-level unit that runs the source's
// global-variable initializers and statements in declaration order; the
// top-level units of successive compiles run back to back, in compile
// order, before a single trailing halt.
func (c *Codegen) CompileProgram(program *Node, fileName string, src []byte) (*Program, error) {
	li := NewLineIndex(src)
	fileIdx := uint32(len(c.files))
	c.files = append(c.files, fileName)

	top := c.newFuncGen(li, fileIdx)
	for _, d := range program.Children {
		switch d.Kind {
		case NProc:
			if d.IsForeign {
				c.foreign[d.Sym.Index] = true
				continue
			}
			fg := c.newFuncGen(li, fileIdx)
			if locals := d.Sym.FrameSize - len(d.Params); locals > 0 {
				fg.emit(Instruction{Op: OpAddSp, Slots: uint8(locals)})
			}
			if err := fg.emitBlock(d.Body); err != nil {
				return nil, err
			}
			fg.emit(Instruction{Op: OpRet})
			c.bodies[d.Sym.Index] = fg
		case NStructDecl, NImportDecl:
			// no runtime representation
		default:
			// top-level declarations (`:=`/`::`), assignments, and bare
			// expression statements all run as part of the synthetic
			// top-level unit, in source order.
			if err := top.emitStmt(d); err != nil {
				return nil, err
			}
		}
	}
	c.tops = append(c.tops, top)
	return c.assemble()
}

// assemble re-encodes every compiled unit into one byte stream: all
// top-level units in compile order, one halt, then every function body.
func (c *Codegen) assemble() (*Program, error) {
	var code []byte
	var err error
	for _, top := range c.tops {
		code, err = encodeUnit(code, top.instrs, top.labels)
		if err != nil {
			return nil, err
		}
	}
	code = append(code, byte(OpHalt))

	numFuncs := c.syms.NumFuncs()
	funcTable := make([]int, numFuncs)
	for i := 0; i < numFuncs; i++ {
		fg, ok := c.bodies[i]
		if c.foreign[i] || !ok {
			funcTable[i] = -1
			continue
		}
		funcTable[i] = len(code)
		code, err = encodeUnit(code, fg.instrs, fg.labels)
		if err != nil {
			return nil, err
		}
	}

	return &Program{
		Code:      code,
		Floats:    c.floats,
		Strs:      c.strs,
		Files:     c.files,
		FuncTable: funcTable,
		EntryPC:   0,
	}, nil
}

func (f *funcGen) emitBlock(block *Node) error {
	for _, stmt := range block.Children {
		if err := f.emitStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (f *funcGen) emitStmt(n *Node) error {
	if line := uint32(f.li.At(n.P).Line); line != f.lastLine {
		f.emit(Instruction{Op: OpLine, DbgLine: line})
		f.lastLine = line
	}
	switch n.Kind {
	case NDecl:
		if err := f.emitExpr(n.Value); err != nil {
			return err
		}
		f.emitStore(n.Sym)
		return nil

	case NAssign:
		return f.emitAssign(n)

	case NIf:
		return f.emitIf(n)

	case NWhile:
		startL, endL := f.newLabel(), f.newLabel()
		f.place(startL)
		if err := f.emitExpr(n.Cond); err != nil {
			return err
		}
		f.emit(Instruction{Op: OpGotoFalse, Target: endL})
		f.breakTargets = append(f.breakTargets, endL)
		f.continueTargets = append(f.continueTargets, startL)
		if err := f.emitBlock(n.Body); err != nil {
			return err
		}
		f.breakTargets = f.breakTargets[:len(f.breakTargets)-1]
		f.continueTargets = f.continueTargets[:len(f.continueTargets)-1]
		f.emit(Instruction{Op: OpGoto, Target: startL})
		f.place(endL)
		return nil

	case NFor:
		if n.Init != nil {
			if err := f.emitStmt(n.Init); err != nil {
				return err
			}
		}
		startL, postL, endL := f.newLabel(), f.newLabel(), f.newLabel()
		f.place(startL)
		if n.Cond != nil {
			if err := f.emitExpr(n.Cond); err != nil {
				return err
			}
			f.emit(Instruction{Op: OpGotoFalse, Target: endL})
		}
		f.breakTargets = append(f.breakTargets, endL)
		f.continueTargets = append(f.continueTargets, postL)
		if err := f.emitBlock(n.Body); err != nil {
			return err
		}
		f.breakTargets = f.breakTargets[:len(f.breakTargets)-1]
		f.continueTargets = f.continueTargets[:len(f.continueTargets)-1]
		f.place(postL)
		if n.Post != nil {
			if err := f.emitStmt(n.Post); err != nil {
				return err
			}
		}
		f.emit(Instruction{Op: OpGoto, Target: startL})
		f.place(endL)
		return nil

	case NReturn:
		if n.Operand == nil {
			f.emit(Instruction{Op: OpRet})
			return nil
		}
		if err := f.emitExpr(n.Operand); err != nil {
			return err
		}
		f.emit(Instruction{Op: OpRetVal})
		return nil

	case NBreak:
		if len(f.breakTargets) == 0 {
			return fmt.Errorf("break outside loop")
		}
		f.emit(Instruction{Op: OpGoto, Target: f.breakTargets[len(f.breakTargets)-1]})
		return nil

	case NContinue:
		if len(f.continueTargets) == 0 {
			return fmt.Errorf("continue outside loop")
		}
		f.emit(Instruction{Op: OpGoto, Target: f.continueTargets[len(f.continueTargets)-1]})
		return nil

	case NBlock:
		return f.emitBlock(n)

	default:
		if err := f.emitExpr(n); err != nil {
			return err
		}
		if n.Typ == nil || n.Typ.Kind != TypeVoid {
			f.emit(Instruction{Op: OpPop})
		}
		return nil
	}
}

func (f *funcGen) emitIf(n *Node) error {
	elseL, endL := f.newLabel(), f.newLabel()
	if err := f.emitExpr(n.Cond); err != nil {
		return err
	}
	f.emit(Instruction{Op: OpGotoFalse, Target: elseL})
	if err := f.emitBlock(n.Then); err != nil {
		return err
	}
	f.emit(Instruction{Op: OpGoto, Target: endL})
	f.place(elseL)
	if n.Else != nil {
		if n.Else.Kind == NIf {
			if err := f.emitIf(n.Else); err != nil {
				return err
			}
		} else if err := f.emitBlock(n.Else); err != nil {
			return err
		}
	}
	f.place(endL)
	return nil
}

func (f *funcGen) emitLoad(sym *Sym) {
	if sym.IsGlobal {
		f.emit(Instruction{Op: OpLoadGlobal, Int32: int32(sym.Index)})
	} else {
		f.emit(Instruction{Op: OpLoadLocal, LocalIdx: int32(sym.Index)})
	}
}

func (f *funcGen) emitStore(sym *Sym) {
	if sym.IsGlobal {
		f.emit(Instruction{Op: OpStoreGlobal, Int32: int32(sym.Index)})
	} else {
		f.emit(Instruction{Op: OpStoreLocal, LocalIdx: int32(sym.Index)})
	}
}

func (f *funcGen) emitAssign(n *Node) error {
	if n.Object.Kind == NIdent {
		sym := n.Object.Sym
		if n.Op != TokEqual {
			f.emitLoad(sym)
			if err := f.emitExpr(n.Value); err != nil {
				return err
			}
			f.emitCompoundOp(n.Op, sym.Type)
		} else {
			if err := f.emitExpr(n.Value); err != nil {
				return err
			}
		}
		f.emitStore(sym)
		return nil
	}

	// NDot target
	dot := n.Object
	if err := f.emitExpr(dot.Object); err != nil {
		return err
	}
	fieldType := dot.Typ
	if n.Op != TokEqual {
		f.emit(Instruction{Op: OpDup})
		f.emit(Instruction{Op: OpLoadField, LocalIdx: int32(dot.FieldIndex)})
		if err := f.emitExpr(n.Value); err != nil {
			return err
		}
		f.emitCompoundOp(n.Op, fieldType)
	} else {
		if err := f.emitExpr(n.Value); err != nil {
			return err
		}
	}
	f.emit(Instruction{Op: OpStoreField, LocalIdx: int32(dot.FieldIndex)})
	return nil
}

func (f *funcGen) emitCompoundOp(op TokenType, typ *Typetag) {
	isFloat := typ.Kind == TypeFloat
	switch op {
	case TokPlusEqual:
		if typ.Kind == TypeStr {
			f.emit(Instruction{Op: OpConcatStr})
		} else if isFloat {
			f.emit(Instruction{Op: OpAddFloat})
		} else {
			f.emit(Instruction{Op: OpAddInt})
		}
	case TokMinusEqual:
		if isFloat {
			f.emit(Instruction{Op: OpSubFloat})
		} else {
			f.emit(Instruction{Op: OpSubInt})
		}
	case TokStarEqual:
		if isFloat {
			f.emit(Instruction{Op: OpMulFloat})
		} else {
			f.emit(Instruction{Op: OpMulInt})
		}
	case TokSlashEqual:
		if isFloat {
			f.emit(Instruction{Op: OpDivFloat})
		} else {
			f.emit(Instruction{Op: OpDivInt})
		}
	case TokPercentEqual:
		f.emit(Instruction{Op: OpModInt})
	case TokOrEqual:
		f.emit(Instruction{Op: OpOrInt})
	case TokAndEqual:
		f.emit(Instruction{Op: OpAndInt})
	}
}

func (f *funcGen) emitExpr(n *Node) error {
	switch n.Kind {
	case NNull:
		f.emit(Instruction{Op: OpPushNull})
		return nil
	case NBool:
		if n.BoolValue {
			f.emit(Instruction{Op: OpPushTrue})
		} else {
			f.emit(Instruction{Op: OpPushFalse})
		}
		return nil
	case NChar:
		f.emit(Instruction{Op: OpPushChar, Int32: int32(n.CharValue)})
		return nil
	case NInt:
		if n.IntValue == 0 {
			f.emit(Instruction{Op: OpPushInt0})
		} else {
			f.emit(Instruction{Op: OpPushInt, Int32: n.IntValue})
		}
		return nil
	case NFloat:
		if n.FloatValue == 0 {
			f.emit(Instruction{Op: OpPushFloat0})
			return nil
		}
		idx := f.cg.internFloat(n.FloatValue)
		if idx < 256 {
			f.emit(Instruction{Op: OpPushFloatByte, FloatIdx: idx})
		} else {
			f.emit(Instruction{Op: OpPushFloat, FloatIdx: idx})
		}
		return nil
	case NString:
		f.emit(Instruction{Op: OpPushString, StrIdx: f.cg.internStr(n.StringValue)})
		return nil

	case NIdent:
		if n.Sym.Kind == SymFunc {
			return fmt.Errorf("codegen: function `%s` used as a value", n.Sym.Name.Value)
		}
		f.emitLoad(n.Sym)
		return nil

	case NParen:
		return f.emitExpr(n.Operand)

	case NUnary:
		if err := f.emitExpr(n.Operand); err != nil {
			return err
		}
		switch n.Op {
		case TokMinus:
			if n.Operand.Typ.Kind == TypeFloat {
				f.emit(Instruction{Op: OpNegFloat})
			} else {
				f.emit(Instruction{Op: OpNegInt})
			}
		case TokBang:
			f.emit(Instruction{Op: OpNotBool})
		}
		return nil

	case NBinary:
		return f.emitBinary(n)

	case NDot:
		if err := f.emitExpr(n.Object); err != nil {
			return err
		}
		f.emit(Instruction{Op: OpLoadField, LocalIdx: int32(n.FieldIndex)})
		return nil

	case NCall:
		return f.emitCall(n)

	case NConstructor:
		for _, v := range n.Children {
			if err := f.emitExpr(v); err != nil {
				return err
			}
		}
		f.emit(Instruction{Op: OpNewStruct, Int32: int32(len(n.Children))})
		return nil

	case NCast:
		if err := f.emitExpr(n.Operand); err != nil {
			return err
		}
		f.emit(Instruction{Op: OpCast, CastKind: uint8(n.Typ.Kind)})
		return nil

	default:
		return fmt.Errorf("codegen: unsupported expression node %s", n.Kind)
	}
}

func (f *funcGen) emitBinary(n *Node) error {
	switch n.Op {
	case TokLogAnd:
		falseL, endL := f.newLabel(), f.newLabel()
		if err := f.emitExpr(n.Left); err != nil {
			return err
		}
		f.emit(Instruction{Op: OpGotoFalse, Target: falseL})
		if err := f.emitExpr(n.Right); err != nil {
			return err
		}
		f.emit(Instruction{Op: OpGoto, Target: endL})
		f.place(falseL)
		f.emit(Instruction{Op: OpPushFalse})
		f.place(endL)
		return nil

	case TokLogOr:
		rightL, endL := f.newLabel(), f.newLabel()
		if err := f.emitExpr(n.Left); err != nil {
			return err
		}
		f.emit(Instruction{Op: OpGotoFalse, Target: rightL})
		f.emit(Instruction{Op: OpPushTrue})
		f.emit(Instruction{Op: OpGoto, Target: endL})
		f.place(rightL)
		if err := f.emitExpr(n.Right); err != nil {
			return err
		}
		f.place(endL)
		return nil
	}

	if err := f.emitExpr(n.Left); err != nil {
		return err
	}

	// int increment/decrement by a literal 1 has a dedicated opcode.
	if (n.Op == TokPlus || n.Op == TokMinus) && n.Left.Typ.Kind == TypeInt &&
		n.Right.Kind == NInt && n.Right.IntValue == 1 {
		f.emit(Instruction{Op: pick(n.Op == TokPlus, OpAdd1Int, OpSub1Int)})
		return nil
	}

	if err := f.emitExpr(n.Right); err != nil {
		return err
	}

	lt := n.Left.Typ
	isFloat := lt.Kind == TypeFloat

	switch n.Op {
	case TokLt:
		f.emit(Instruction{Op: pick(isFloat, OpLtFloat, OpLtInt)})
	case TokGt:
		f.emit(Instruction{Op: pick(isFloat, OpGtFloat, OpGtInt)})
	case TokLte:
		f.emit(Instruction{Op: pick(isFloat, OpLteFloat, OpLteInt)})
	case TokGte:
		f.emit(Instruction{Op: pick(isFloat, OpGteFloat, OpGteInt)})
	case TokEquals, TokNotEquals:
		f.emit(Instruction{Op: eqOpFor(lt.Kind)})
		if n.Op == TokNotEquals {
			f.emit(Instruction{Op: OpNeq})
		}
	case TokOr:
		f.emit(Instruction{Op: OpOrInt})
	case TokAnd:
		f.emit(Instruction{Op: OpAndInt})
	case TokPlus:
		if lt.Kind == TypeStr {
			f.emit(Instruction{Op: OpConcatStr})
		} else {
			f.emit(Instruction{Op: pick(isFloat, OpAddFloat, OpAddInt)})
		}
	case TokMinus:
		f.emit(Instruction{Op: pick(isFloat, OpSubFloat, OpSubInt)})
	case TokStar:
		f.emit(Instruction{Op: pick(isFloat, OpMulFloat, OpMulInt)})
	case TokSlash:
		f.emit(Instruction{Op: pick(isFloat, OpDivFloat, OpDivInt)})
	case TokPercent:
		f.emit(Instruction{Op: OpModInt})
	default:
		return fmt.Errorf("codegen: unsupported binary operator %s", n.Op)
	}
	return nil
}

func pick(cond bool, ifTrue, ifFalse Opcode) Opcode {
	if cond {
		return ifTrue
	}
	return ifFalse
}

func eqOpFor(kind TypeKind) Opcode {
	switch kind {
	case TypeBool:
		return OpEqBool
	case TypeChar:
		return OpEqChar
	case TypeInt:
		return OpEqInt
	case TypeFloat:
		return OpEqFloat
	case TypeStr:
		return OpEqStr
	default:
		return OpEqRef
	}
}

func (f *funcGen) emitCall(n *Node) error {
	for _, arg := range n.Children {
		if err := f.emitExpr(arg); err != nil {
			return err
		}
	}
	sym := n.Left.Sym
	if sym == nil || sym.Kind != SymFunc {
		return fmt.Errorf("codegen: call target must be a declared function")
	}
	op := OpCall
	if sym.Foreign {
		op = OpCallFgn
	}
	f.emit(Instruction{Op: op, CallIdx: uint16(sym.Index), NArgs: uint8(len(n.Children))})
	if n.Typ != nil && n.Typ.Kind != TypeVoid {
		f.emit(Instruction{Op: OpGetRetVal})
	}
	return nil
}
