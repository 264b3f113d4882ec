package tiny

import "fmt"

// primitiveTypeNames maps the spelling of a builtin type to its Typetag
// kind. Tiny has no `int`/`float`/... keywords at the lexer level (they are
// plain identifiers, see token.go). A name is only recognized as primitive
// here, the same deferred-resolution shape as TypeName in tiny/src/type.c.
var primitiveTypeNames = map[string]TypeKind{
	"void": TypeVoid, "bool": TypeBool, "char": TypeChar, "int": TypeInt,
	"float": TypeFloat, "str": TypeStr, "any": TypeAny,
}

// Typechecker runs a single post-parse traversal that resolves every
// TypeName placeholder against the type/struct namespace and annotates
// each AST node with its Typetag. The original resolves types inline as it
// parses (tiny/src/type.c called from tiny/src/parser.c); a standalone pass
// is used here instead (spec §4.6, SPEC_FULL.md §5.7). Declarations are
// still checked in source order: a function body may call the function
// itself or any function declared before it (in this file or an earlier
// compile), but a call to a function declared later in the same file is
// reported as an undeclared identifier.
type Typechecker struct {
	types *TypePool
	syms  *Symbols
	pool  *StringPool

	curFuncRet *Typetag
	loopDepth  int
}

func NewTypechecker(types *TypePool, syms *Symbols, pool *StringPool) *Typechecker {
	return &Typechecker{types: types, syms: syms, pool: pool}
}

func (tc *Typechecker) resolveTypeName(name *StringRef, pos Pos) (*Typetag, error) {
	if k, ok := primitiveTypeNames[name.Value]; ok {
		return tc.types.Primitive(k), nil
	}
	if sym, ok := tc.syms.FindTypeSym(name); ok {
		return sym.Type, nil
	}
	return nil, &TypeError{Pos: pos, Message: fmt.Sprintf("unknown type `%s`", name.Value)}
}

// Typecheck resolves and annotates every node reachable from an NProgram
// root, in declaration order. Struct and function declarations must
// reference only types declared earlier in the same file. Tiny has no
// forward-declared structs, a deliberate simplification over the original
// (see DESIGN.md).
func (tc *Typechecker) Typecheck(program *Node) error {
	for _, d := range program.Children {
		if err := tc.typecheckTopLevel(d); err != nil {
			return err
		}
	}
	return nil
}

func (tc *Typechecker) typecheckTopLevel(d *Node) error {
	switch d.Kind {
	case NImportDecl:
		alias := tc.pool.Insert(modAliasFromPath(d.Path.Value))
		_, err := tc.syms.DefineModuleSym(alias, d.P, d.Path)
		return err

	case NStructDecl:
		return tc.typecheckStructDecl(d)

	case NProc:
		return tc.typecheckFuncDecl(d)

	default:
		return tc.typecheckStmt(d)
	}
}

func (tc *Typechecker) typecheckStructDecl(d *Node) error {
	fieldTypes := make([]*Typetag, len(d.FieldTypeNames))
	for i, tn := range d.FieldTypeNames {
		t, err := tc.resolveTypeName(tn, d.P)
		if err != nil {
			return err
		}
		fieldTypes[i] = t
	}
	tag := tc.types.InternStruct(d.FieldNames, fieldTypes)
	sym, err := tc.syms.DefineTypeSym(d.Name, d.P, tag, d)
	if err != nil {
		return err
	}
	d.Sym, d.Typ = sym, tag
	return nil
}

func (tc *Typechecker) typecheckFuncDecl(d *Node) error {
	argTypes := make([]*Typetag, len(d.Params))
	for i, param := range d.Params {
		t, err := tc.resolveTypeName(param.TypeName, d.P)
		if err != nil {
			return err
		}
		argTypes[i] = t
	}
	retType := tc.types.Primitive(TypeVoid)
	if d.RetTypeName != nil {
		t, err := tc.resolveTypeName(d.RetTypeName, d.P)
		if err != nil {
			return err
		}
		retType = t
	}
	sig := tc.types.InternFunc(argTypes, retType, d.IsVarargs)

	sym, err := tc.syms.DeclareFunc(d.Name, d.P, sig, d)
	if err != nil {
		return err
	}
	sym.Foreign = d.IsForeign
	d.Sym, d.Typ = sym, sig

	if d.IsForeign {
		return nil
	}

	tc.syms.EnterFunction()
	for i, param := range d.Params {
		psym, err := tc.syms.DeclareVar(param.Name, d.P, argTypes[i])
		if err != nil {
			tc.syms.LeaveFunction()
			return err
		}
		param.Sym = psym
	}
	prevRet := tc.curFuncRet
	tc.curFuncRet = retType
	err = tc.typecheckBlockStmts(d.Body)
	tc.curFuncRet = prevRet
	sym.FrameSize = tc.syms.nextLocalIndex
	tc.syms.LeaveFunction()
	return err
}

func (tc *Typechecker) typecheckDecl(d *Node) error {
	valType, err := tc.typecheckExpr(d.Value)
	if err != nil {
		return err
	}
	declType := valType
	if d.DeclaredTypeName != nil {
		declType, err = tc.resolveTypeName(d.DeclaredTypeName, d.P)
		if err != nil {
			return err
		}
		if !tc.assignableFrom(d.Value, valType, declType) {
			return &TypeError{Pos: d.P, Message: fmt.Sprintf("cannot assign `%s` to `%s`", valType, declType)}
		}
	}
	var sym *Sym
	if d.IsConst {
		sym, err = tc.syms.DeclareConst(d.Name, d.P, declType)
	} else {
		sym, err = tc.syms.DeclareVar(d.Name, d.P, declType)
	}
	if err != nil {
		return err
	}
	d.Sym, d.Typ = sym, declType
	return nil
}

// typecheckBlockStmts type-checks a block's statements in a NEW scope.
func (tc *Typechecker) typecheckBlockStmts(block *Node) error {
	tc.syms.PushScope()
	defer tc.syms.PopScope()
	for _, stmt := range block.Children {
		if err := tc.typecheckStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (tc *Typechecker) typecheckStmt(n *Node) error {
	switch n.Kind {
	case NDecl:
		return tc.typecheckDecl(n)

	case NAssign:
		return tc.typecheckAssign(n)

	case NIf:
		return tc.typecheckIf(n)

	case NWhile:
		cond, err := tc.typecheckExpr(n.Cond)
		if err != nil {
			return err
		}
		if cond.Kind != TypeBool {
			return &TypeError{Pos: n.P, Message: "while condition must be bool"}
		}
		tc.loopDepth++
		err = tc.typecheckBlockStmts(n.Body)
		tc.loopDepth--
		return err

	case NFor:
		tc.syms.PushScope()
		defer tc.syms.PopScope()
		if n.Init != nil {
			if err := tc.typecheckStmt(n.Init); err != nil {
				return err
			}
		}
		if n.Cond != nil {
			cond, err := tc.typecheckExpr(n.Cond)
			if err != nil {
				return err
			}
			if cond.Kind != TypeBool {
				return &TypeError{Pos: n.P, Message: "for condition must be bool"}
			}
		}
		if n.Post != nil {
			if err := tc.typecheckStmt(n.Post); err != nil {
				return err
			}
		}
		tc.loopDepth++
		err := tc.typecheckBlockStmts(n.Body)
		tc.loopDepth--
		return err

	case NReturn:
		if n.Operand == nil {
			if tc.curFuncRet != nil && tc.curFuncRet.Kind != TypeVoid {
				return &TypeError{Pos: n.P, Message: "missing return value"}
			}
			n.Typ = tc.types.Primitive(TypeVoid)
			return nil
		}
		t, err := tc.typecheckExpr(n.Operand)
		if err != nil {
			return err
		}
		if tc.curFuncRet == nil {
			// top-level return: halts the unit and leaves the value in
			// the thread's retval register.
			n.Typ = t
			return nil
		}
		if !tc.assignableFrom(n.Operand, t, tc.curFuncRet) {
			return &TypeError{Pos: n.P, Message: fmt.Sprintf("cannot return `%s` from a function returning `%s`", t, tc.curFuncRet)}
		}
		n.Typ = tc.curFuncRet
		return nil

	case NBreak, NContinue:
		if tc.loopDepth == 0 {
			return &SyntaxError{Pos: n.P, Message: fmt.Sprintf("%s outside of a loop", n.Kind)}
		}
		return nil

	case NBlock:
		return tc.typecheckBlockStmts(n)

	default:
		_, err := tc.typecheckExpr(n)
		return err
	}
}

func (tc *Typechecker) typecheckIf(n *Node) error {
	cond, err := tc.typecheckExpr(n.Cond)
	if err != nil {
		return err
	}
	if cond.Kind != TypeBool {
		return &TypeError{Pos: n.P, Message: "if condition must be bool"}
	}
	if err := tc.typecheckBlockStmts(n.Then); err != nil {
		return err
	}
	if n.Else == nil {
		return nil
	}
	if n.Else.Kind == NIf {
		return tc.typecheckIf(n.Else)
	}
	return tc.typecheckBlockStmts(n.Else)
}

func (tc *Typechecker) typecheckAssign(n *Node) error {
	var targetType *Typetag
	switch n.Object.Kind {
	case NIdent:
		sym, err := tc.syms.ReferenceVar(n.Object.Name, n.P)
		if err != nil {
			return err
		}
		if sym.Kind == SymConst {
			return &NameError{Pos: n.P, Message: fmt.Sprintf("cannot assign to constant `%s`", sym.Name.Value)}
		}
		n.Object.Sym, n.Object.Typ = sym, sym.Type
		targetType = sym.Type
	case NDot:
		t, err := tc.typecheckExpr(n.Object)
		if err != nil {
			return err
		}
		targetType = t
	default:
		return &SyntaxError{Pos: n.P, Message: "invalid assignment target"}
	}

	valType, err := tc.typecheckExpr(n.Value)
	if err != nil {
		return err
	}

	if n.Op != TokEqual {
		if targetType.Kind == TypeStr && n.Op == TokPlusEqual {
			// string concatenation sugar
		} else if targetType.Kind != TypeInt && targetType.Kind != TypeFloat {
			return &TypeError{Pos: n.P, Message: fmt.Sprintf("operator `%s` requires a numeric target, got `%s`", n.Op, targetType)}
		}
		if (n.Op == TokOrEqual || n.Op == TokAndEqual) && targetType.Kind != TypeInt {
			return &TypeError{Pos: n.P, Message: fmt.Sprintf("operator `%s` requires an int target, got `%s`", n.Op, targetType)}
		}
		if !tc.assignableFrom(n.Value, valType, targetType) {
			return &TypeError{Pos: n.P, Message: fmt.Sprintf("cannot use `%s` with `%s`", valType, targetType)}
		}
	} else if !tc.assignableFrom(n.Value, valType, targetType) {
		return &TypeError{Pos: n.P, Message: fmt.Sprintf("cannot assign `%s` to `%s`", valType, targetType)}
	}
	n.Typ = targetType
	return nil
}

// assignableFrom special-cases a literal `null` source expression, which
// has no primitive representation and may be assigned to any reference
// type (str, struct, func) but never to bool/char/int/float.
func (tc *Typechecker) assignableFrom(srcNode *Node, src, target *Typetag) bool {
	if srcNode != nil && srcNode.Kind == NNull {
		switch target.Kind {
		case TypeStr, TypeStruct, TypeFunc, TypeAny:
			return true
		default:
			return false
		}
	}
	return Assignable(src, target)
}

func (tc *Typechecker) typecheckExpr(n *Node) (*Typetag, error) {
	switch n.Kind {
	case NNull:
		n.Typ = tc.types.Primitive(TypeAny)
		return n.Typ, nil
	case NBool:
		n.Typ = tc.types.Primitive(TypeBool)
		return n.Typ, nil
	case NChar:
		n.Typ = tc.types.Primitive(TypeChar)
		return n.Typ, nil
	case NInt:
		n.Typ = tc.types.Primitive(TypeInt)
		return n.Typ, nil
	case NFloat:
		n.Typ = tc.types.Primitive(TypeFloat)
		return n.Typ, nil
	case NString:
		n.Typ = tc.types.Primitive(TypeStr)
		return n.Typ, nil

	case NIdent:
		sym, err := tc.syms.ReferenceVar(n.Name, n.P)
		if err != nil {
			// fall back to the function namespace: a bare function name
			// used as a value (passed around, not called) resolves here.
			fsym, ferr := tc.syms.ReferenceFunc(n.Name, n.P)
			if ferr != nil {
				return nil, err
			}
			n.Sym, n.Typ = fsym, fsym.Type
			return n.Typ, nil
		}
		n.Sym, n.Typ = sym, sym.Type
		return n.Typ, nil

	case NParen:
		t, err := tc.typecheckExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		n.Typ = t
		return t, nil

	case NUnary:
		t, err := tc.typecheckExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case TokMinus:
			if t.Kind != TypeInt && t.Kind != TypeFloat {
				return nil, &TypeError{Pos: n.P, Message: "unary `-` requires int or float"}
			}
		case TokBang:
			if t.Kind != TypeBool {
				return nil, &TypeError{Pos: n.P, Message: "unary `!` requires bool"}
			}
		}
		n.Typ = t
		return t, nil

	case NBinary:
		return tc.typecheckBinary(n)

	case NDot:
		objType, err := tc.typecheckExpr(n.Object)
		if err != nil {
			return nil, err
		}
		if objType.Kind != TypeStruct {
			return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("`.%s` requires a struct, got `%s`", n.Name.Value, objType)}
		}
		idx := objType.FieldIndex(n.Name)
		if idx < 0 {
			return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("struct has no field `%s`", n.Name.Value)}
		}
		n.FieldIndex = idx
		n.Typ = objType.FieldTypes[idx]
		return n.Typ, nil

	case NCall:
		return tc.typecheckCall(n)

	case NConstructor:
		return tc.typecheckConstructor(n)

	case NCast:
		srcType, err := tc.typecheckExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		target, err := tc.resolveTypeName(n.TargetTypeName, n.P)
		if err != nil {
			return nil, err
		}
		if !IsPrimitive(srcType) || !IsPrimitive(target) {
			return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("cannot cast `%s` to `%s`: cast only works between primitive types", srcType, target)}
		}
		n.Typ = target
		return target, nil

	default:
		return nil, &TypeError{Pos: n.P, Message: "not an expression"}
	}
}

func (tc *Typechecker) typecheckBinary(n *Node) (*Typetag, error) {
	lt, err := tc.typecheckExpr(n.Left)
	if err != nil {
		return nil, err
	}
	rt, err := tc.typecheckExpr(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case TokLogAnd, TokLogOr:
		if lt.Kind != TypeBool || rt.Kind != TypeBool {
			return nil, &TypeError{Pos: n.P, Message: "`&&`/`||` require bool operands"}
		}
		n.Typ = tc.types.Primitive(TypeBool)
		return n.Typ, nil

	case TokEquals, TokNotEquals:
		if !Assignable(lt, rt) && !Assignable(rt, lt) {
			return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("cannot compare `%s` with `%s`", lt, rt)}
		}
		n.Typ = tc.types.Primitive(TypeBool)
		return n.Typ, nil

	case TokLt, TokGt, TokLte, TokGte:
		if lt != rt || (lt.Kind != TypeInt && lt.Kind != TypeFloat) {
			return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("`%s` requires two operands of the same numeric type", n.Op)}
		}
		n.Typ = tc.types.Primitive(TypeBool)
		return n.Typ, nil

	case TokOr, TokAnd:
		if lt.Kind != TypeInt || rt.Kind != TypeInt {
			return nil, &TypeError{Pos: n.P, Message: "bitwise `|`/`&` require int operands"}
		}
		n.Typ = tc.types.Primitive(TypeInt)
		return n.Typ, nil

	case TokPlus:
		if lt.Kind == TypeStr && rt.Kind == TypeStr {
			n.Typ = tc.types.Primitive(TypeStr)
			return n.Typ, nil
		}
		fallthrough
	case TokMinus, TokStar, TokSlash, TokPercent:
		if lt != rt || (lt.Kind != TypeInt && lt.Kind != TypeFloat) {
			return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("`%s` requires two operands of the same numeric type", n.Op)}
		}
		n.Typ = lt
		return n.Typ, nil
	}
	return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("unsupported operator `%s`", n.Op)}
}

func (tc *Typechecker) typecheckCall(n *Node) (*Typetag, error) {
	var funcType *Typetag
	if n.Left.Kind == NIdent {
		if sym, err := tc.syms.ReferenceFunc(n.Left.Name, n.P); err == nil {
			n.Left.Sym, n.Left.Typ = sym, sym.Type
			funcType = sym.Type
		}
	}
	if funcType == nil {
		t, err := tc.typecheckExpr(n.Left)
		if err != nil {
			return nil, err
		}
		funcType = t
	}
	if funcType.Kind != TypeFunc {
		return nil, &TypeError{Pos: n.P, Message: "call target is not a function"}
	}

	nargs := len(n.Children)
	nparams := len(funcType.Args)
	if funcType.Varargs {
		if nargs < nparams {
			return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("expected at least %d arguments, got %d", nparams, nargs)}
		}
	} else if nargs != nparams {
		return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("expected %d arguments, got %d", nparams, nargs)}
	}

	for i, arg := range n.Children {
		t, err := tc.typecheckExpr(arg)
		if err != nil {
			return nil, err
		}
		if i < nparams {
			if !tc.assignableFrom(arg, t, funcType.Args[i]) {
				return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("argument %d: cannot use `%s` as `%s`", i+1, t, funcType.Args[i])}
			}
		}
		// args beyond nparams (varargs tail) widen to `any` implicitly.
	}

	n.Typ = funcType.Ret
	return n.Typ, nil
}

func (tc *Typechecker) typecheckConstructor(n *Node) (*Typetag, error) {
	sym, ok := tc.syms.FindTypeSym(n.TargetTypeName)
	if !ok {
		return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("unknown struct type `%s`", n.TargetTypeName.Value)}
	}
	structType := sym.Type
	if len(n.Children) != len(structType.FieldTypes) {
		return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("struct `%s` has %d fields, got %d values", n.TargetTypeName.Value, len(structType.FieldTypes), len(n.Children))}
	}
	for i, fv := range n.Children {
		t, err := tc.typecheckExpr(fv)
		if err != nil {
			return nil, err
		}
		if !tc.assignableFrom(fv, t, structType.FieldTypes[i]) {
			return nil, &TypeError{Pos: n.P, Message: fmt.Sprintf("field %d: cannot assign `%s` to `%s`", i, t, structType.FieldTypes[i])}
		}
	}
	n.Typ = structType
	return structType, nil
}

func (k NodeKind) String() string {
	names := [...]string{
		"identifier", "call", "null", "bool", "char", "int", "float", "string",
		"binary", "paren", "block", "proc", "if", "unary", "return", "while",
		"for", "dot", "constructor", "cast", "break", "continue", "decl",
		"assign", "struct declaration", "import", "program",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "<unknown node>"
}
