package tiny

// NodeKind discriminates AST node shapes. Mirrors the NodeKind enum in
// tiny/src/ast.c; Go keeps the original's single tagged-struct layout
// (rather than one interface type per node) so that the compiler passes
// below can switch on Kind exactly the way ResolveSymbols/GenerateCode do
// in the original.
type NodeKind int

const (
	NIdent NodeKind = iota
	NCall
	NNull
	NBool
	NChar
	NInt
	NFloat
	NString
	NBinary
	NParen
	NBlock
	NProc
	NIf
	NUnary
	NReturn
	NWhile
	NFor
	NDot
	NConstructor
	NCast
	NBreak
	NContinue
	NDecl
	NAssign
	NStructDecl
	NImportDecl
	NProgram
)

// Param is one declared parameter of a proc.
type Param struct {
	Name     *StringRef
	TypeName *StringRef // unresolved; Sym.Type holds the resolved tag after Symbols
	Sym      *Sym
}

// Node is a single AST node. Not every field is meaningful for every Kind;
// see the per-constructor comments below for which fields a given Kind
// populates. Allocated from an AST's Arena so that pointers handed out
// during parsing remain valid for the lifetime of the compile.
type Node struct {
	Kind NodeKind
	P    Pos
	Typ  *Typetag // filled in by Typecheck

	Name *StringRef // NIdent, NDot (field name)

	BoolValue   bool
	CharValue   rune
	IntValue    int32
	FloatValue  float32
	StringValue *StringRef

	Op          TokenType // NBinary, NUnary, NAssign (compound op, or TokEqual for plain)
	Left, Right *Node     // NBinary; NCall keeps its callee in Left
	Operand     *Node     // NUnary, NReturn (value, maybe nil), NCast (expr)

	Children []*Node // NBlock (statements), NCall (args), NConstructor (field values)

	Params      []*Param
	RetTypeName *StringRef // "" / nil means void
	IsForeign   bool
	IsVarargs   bool // NProc: parameter list ended in `...`
	Body        *Node // NProc, NWhile, NFor (block)

	Init, Cond, Post *Node // NFor
	Then, Else       *Node // NIf branches (Else may be nil or another NIf)

	Object     *Node // NDot receiver, NAssign target
	FieldIndex int   // NDot, resolved by Typecheck

	TargetTypeName *StringRef // NCast, NConstructor (struct type name)

	IsConst          bool
	DeclaredTypeName *StringRef // NDecl explicit `:T=` type, nil if inferred
	Value            *Node      // NDecl initializer, NAssign rhs

	Path *StringRef // NImportDecl

	FieldNames     []*StringRef // NStructDecl
	FieldTypeNames []*StringRef

	Sym *Sym // NIdent, NDecl, NProc, NStructDecl: resolved by Symbols
}

// AST owns the arena every Node in one compile unit is allocated from.
type AST struct {
	arena *Arena[Node]
}

func NewAST() *AST {
	return &AST{arena: NewArena[Node](0)}
}

func (a *AST) alloc(kind NodeKind, pos Pos) *Node {
	n := a.arena.Alloc()
	n.Kind = kind
	n.P = pos
	return n
}

func (a *AST) Ident(pos Pos, name *StringRef) *Node {
	n := a.alloc(NIdent, pos)
	n.Name = name
	return n
}

func (a *AST) Call(pos Pos, callee *Node, args []*Node) *Node {
	n := a.alloc(NCall, pos)
	n.Left = callee
	n.Children = args
	return n
}

func (a *AST) Null(pos Pos) *Node { return a.alloc(NNull, pos) }

func (a *AST) Bool(pos Pos, v bool) *Node {
	n := a.alloc(NBool, pos)
	n.BoolValue = v
	return n
}

func (a *AST) Char(pos Pos, v rune) *Node {
	n := a.alloc(NChar, pos)
	n.CharValue = v
	return n
}

func (a *AST) Int(pos Pos, v int32) *Node {
	n := a.alloc(NInt, pos)
	n.IntValue = v
	return n
}

func (a *AST) Float(pos Pos, v float32) *Node {
	n := a.alloc(NFloat, pos)
	n.FloatValue = v
	return n
}

func (a *AST) String(pos Pos, v *StringRef) *Node {
	n := a.alloc(NString, pos)
	n.StringValue = v
	return n
}

func (a *AST) Binary(pos Pos, op TokenType, left, right *Node) *Node {
	n := a.alloc(NBinary, pos)
	n.Op, n.Left, n.Right = op, left, right
	return n
}

func (a *AST) Paren(pos Pos, inner *Node) *Node {
	n := a.alloc(NParen, pos)
	n.Operand = inner
	return n
}

func (a *AST) Block(pos Pos, stmts []*Node) *Node {
	n := a.alloc(NBlock, pos)
	n.Children = stmts
	return n
}

func (a *AST) Proc(pos Pos, name *StringRef, params []*Param, retType *StringRef, foreign, varargs bool, body *Node) *Node {
	n := a.alloc(NProc, pos)
	n.Name, n.Params, n.RetTypeName, n.IsForeign, n.IsVarargs, n.Body = name, params, retType, foreign, varargs, body
	return n
}

func (a *AST) If(pos Pos, cond, then, els *Node) *Node {
	n := a.alloc(NIf, pos)
	n.Cond, n.Then, n.Else = cond, then, els
	return n
}

func (a *AST) Unary(pos Pos, op TokenType, operand *Node) *Node {
	n := a.alloc(NUnary, pos)
	n.Op, n.Operand = op, operand
	return n
}

func (a *AST) Return(pos Pos, value *Node) *Node {
	n := a.alloc(NReturn, pos)
	n.Operand = value
	return n
}

func (a *AST) While(pos Pos, cond, body *Node) *Node {
	n := a.alloc(NWhile, pos)
	n.Cond, n.Body = cond, body
	return n
}

func (a *AST) For(pos Pos, init, cond, post, body *Node) *Node {
	n := a.alloc(NFor, pos)
	n.Init, n.Cond, n.Post, n.Body = init, cond, post, body
	return n
}

func (a *AST) Dot(pos Pos, object *Node, field *StringRef) *Node {
	n := a.alloc(NDot, pos)
	n.Object, n.Name, n.FieldIndex = object, field, -1
	return n
}

func (a *AST) Constructor(pos Pos, typeName *StringRef, fieldValues []*Node) *Node {
	n := a.alloc(NConstructor, pos)
	n.TargetTypeName, n.Children = typeName, fieldValues
	return n
}

func (a *AST) Cast(pos Pos, expr *Node, typeName *StringRef) *Node {
	n := a.alloc(NCast, pos)
	n.Operand, n.TargetTypeName = expr, typeName
	return n
}

func (a *AST) Break(pos Pos) *Node    { return a.alloc(NBreak, pos) }
func (a *AST) Continue(pos Pos) *Node { return a.alloc(NContinue, pos) }

func (a *AST) Decl(pos Pos, name *StringRef, isConst bool, declaredType *StringRef, value *Node) *Node {
	n := a.alloc(NDecl, pos)
	n.Name, n.IsConst, n.DeclaredTypeName, n.Value = name, isConst, declaredType, value
	return n
}

// Assign covers plain `=` and the compound-assignment sugar (`+=`, `-=`,
// ...): Op carries the originating token so codegen can desugar `x += e`
// into `x = x + e` while still reporting the original operator in errors.
func (a *AST) Assign(pos Pos, op TokenType, target, value *Node) *Node {
	n := a.alloc(NAssign, pos)
	n.Op, n.Object, n.Value = op, target, value
	return n
}

func (a *AST) StructDecl(pos Pos, name *StringRef, fieldNames, fieldTypeNames []*StringRef) *Node {
	n := a.alloc(NStructDecl, pos)
	n.Name, n.FieldNames, n.FieldTypeNames = name, fieldNames, fieldTypeNames
	return n
}

func (a *AST) ImportDecl(pos Pos, path *StringRef) *Node {
	n := a.alloc(NImportDecl, pos)
	n.Path = path
	return n
}

func (a *AST) Program(pos Pos, decls []*Node) *Node {
	n := a.alloc(NProgram, pos)
	n.Children = decls
	return n
}
