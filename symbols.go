package tiny

import "fmt"

// SymKind discriminates what a Sym names. Mirrors the symbol-table entry
// kinds scattered across tiny/src/symbols.c (vars, consts, funcs, and the
// type/module namespaces kept alongside it).
type SymKind int

const (
	SymVar SymKind = iota
	SymConst
	SymFunc
	SymType
	SymModule
)

// Sym is one resolved name: a variable/constant slot, a function, a struct
// type, or an imported module alias.
type Sym struct {
	Kind SymKind
	Name *StringRef
	Type *Typetag

	Index    int // global slot / local slot / function table index
	IsGlobal bool

	Foreign       bool
	CallbackIndex int // index into the State's registered native callbacks
	FrameSize     int // SymFunc only: total arg+local stack slots its calls need

	Path *StringRef // SymModule: the imported module's path

	Node *Node
}

type scope struct {
	syms map[*StringRef]*Sym
}

func newScope() *scope { return &scope{syms: make(map[*StringRef]*Sym)} }

// Symbols tracks lexical scoping for a State, across all of its compiles: a stack of block
// scopes for locals, plus flat namespaces for functions, struct types and
// imported modules, which Tiny only allows to be declared at file scope.
// Grounded on tiny/src/symbols.c's Symbols struct and its Push/Pop/Declare/
// Reference family of functions.
type Symbols struct {
	scopes []*scope
	inFunc bool

	funcs   map[*StringRef]*Sym
	types   map[*StringRef]*Sym
	modules map[*StringRef]*Sym

	nextGlobalIndex int
	nextLocalIndex  int
	nextFuncIndex   int
}

func NewSymbols() *Symbols {
	s := &Symbols{
		funcs:   make(map[*StringRef]*Sym),
		types:   make(map[*StringRef]*Sym),
		modules: make(map[*StringRef]*Sym),
	}
	s.PushScope()
	return s
}

// PushScope opens a new lexical block (if/while/for body, or a bare `{}`
// block). A block alone does not change where declarations are stored:
// only EnterFunction switches DeclareVar from global slots to frame slots,
// the way the original keys that decision on curFunc rather than on scope
// depth (tiny/src/symbols.c).
func (s *Symbols) PushScope() {
	s.scopes = append(s.scopes, newScope())
}

// PopScope closes the innermost lexical block.
func (s *Symbols) PopScope() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// EnterFunction opens a function body's top-level scope. Locals start
// fresh at frame slot 0; every DeclareVar until LeaveFunction allocates a
// frame slot rather than a global one. Functions never nest, so this is
// never called re-entrantly.
func (s *Symbols) EnterFunction() {
	s.inFunc = true
	s.nextLocalIndex = 0
	s.PushScope()
}

// LeaveFunction closes a function body's scope, returning DeclareVar to
// global-slot allocation.
func (s *Symbols) LeaveFunction() {
	s.PopScope()
	s.inFunc = false
}

func (s *Symbols) atGlobalScope() bool { return len(s.scopes) == 1 }
func (s *Symbols) top() *scope         { return s.scopes[len(s.scopes)-1] }

// DeclareVar introduces name as a variable in the innermost scope.
// Shadowing is forbidden anywhere within the same function: a nested block
// may not redeclare a name already visible in an enclosing block of the
// same function body. Functions never nest (tiny/src/symbols.c), so every
// scope above the global one (index 0) belongs either to the one active
// function or, outside any function, to a top-level block or for-statement,
// and it suffices to search all of them rather than just the innermost.
// Storage is decided by the active function, not the scope
// depth: a `:=` inside a top-level block or for-statement still allocates
// a global slot, matching the original's curFunc==NULL rule.
func (s *Symbols) DeclareVar(name *StringRef, pos Pos, typ *Typetag) (*Sym, error) {
	lo := 0
	if !s.atGlobalScope() {
		lo = 1
	}
	for i := len(s.scopes) - 1; i >= lo; i-- {
		if _, ok := s.scopes[i].syms[name]; ok {
			return nil, &NameError{Pos: pos, Message: fmt.Sprintf("variable `%s` already declared in this scope", name.Value)}
		}
	}
	sym := &Sym{Kind: SymVar, Name: name, Type: typ, IsGlobal: !s.inFunc}
	if sym.IsGlobal {
		sym.Index = s.nextGlobalIndex
		s.nextGlobalIndex++
	} else {
		sym.Index = s.nextLocalIndex
		s.nextLocalIndex++
	}
	s.top().syms[name] = sym
	return sym, nil
}

// DeclareConst introduces name as a compile-time constant. Tiny only allows
// `::` declarations at file scope; one inside a function body is a
// NameError (tiny/src/symbols.c rejects it the same way).
func (s *Symbols) DeclareConst(name *StringRef, pos Pos, typ *Typetag) (*Sym, error) {
	if !s.atGlobalScope() {
		return nil, &NameError{Pos: pos, Message: fmt.Sprintf("constant `%s` must be declared at file scope", name.Value)}
	}
	if _, ok := s.top().syms[name]; ok {
		return nil, &NameError{Pos: pos, Message: fmt.Sprintf("name `%s` already declared", name.Value)}
	}
	sym := &Sym{Kind: SymConst, Name: name, Type: typ, IsGlobal: true, Index: s.nextGlobalIndex}
	s.nextGlobalIndex++
	s.top().syms[name] = sym
	return sym, nil
}

// ReferenceVar resolves name against the active scope stack, innermost
// first. Tiny has no nested function declarations and no closures, so the
// stack in play at any reference is always "this function's blocks, down to
// the global scope"; there is never an intervening, unrelated function's
// locals to skip.
func (s *Symbols) ReferenceVar(name *StringRef, pos Pos) (*Sym, error) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if sym, ok := s.scopes[i].syms[name]; ok {
			return sym, nil
		}
	}
	return nil, &NameError{Pos: pos, Message: fmt.Sprintf("undeclared identifier `%s`", name.Value)}
}

// DeclareFunc registers a top-level function. Must be called at file scope;
// Tiny has no nested function declarations (tiny/src/symbols.c rejects a
// `func` keyword seen while already inside a function body).
func (s *Symbols) DeclareFunc(name *StringRef, pos Pos, sig *Typetag, node *Node) (*Sym, error) {
	if !s.atGlobalScope() {
		return nil, &NameError{Pos: pos, Message: "functions cannot be nested"}
	}
	if _, ok := s.funcs[name]; ok {
		return nil, &NameError{Pos: pos, Message: fmt.Sprintf("function `%s` already declared", name.Value)}
	}
	sym := &Sym{Kind: SymFunc, Name: name, Type: sig, IsGlobal: true, Index: s.nextFuncIndex, Node: node}
	s.nextFuncIndex++
	s.funcs[name] = sym
	return sym, nil
}

// BindFunction registers a foreign (native) function signature under a
// callback index supplied by the embedding API, without an AST node.
// The Go callback it is bound to lives in the State's native table.
func (s *Symbols) BindFunction(name *StringRef, sig *Typetag, callbackIndex int) (*Sym, error) {
	if _, ok := s.funcs[name]; ok {
		return nil, fmt.Errorf("function `%s` already bound", name.Value)
	}
	sym := &Sym{Kind: SymFunc, Name: name, Type: sig, IsGlobal: true, Foreign: true, CallbackIndex: callbackIndex, Index: s.nextFuncIndex}
	s.nextFuncIndex++
	s.funcs[name] = sym
	return sym, nil
}

// FindFunc looks up a declared function by name without failing. Used by
// the embedding API to match a `foreign` declaration against a Go callback
// supplied after compilation.
func (s *Symbols) FindFunc(name *StringRef) (*Sym, bool) {
	sym, ok := s.funcs[name]
	return sym, ok
}

func (s *Symbols) ReferenceFunc(name *StringRef, pos Pos) (*Sym, error) {
	if sym, ok := s.funcs[name]; ok {
		return sym, nil
	}
	return nil, &NameError{Pos: pos, Message: fmt.Sprintf("undeclared function `%s`", name.Value)}
}

// FindTypeSym looks up a declared struct type by name without failing.
func (s *Symbols) FindTypeSym(name *StringRef) (*Sym, bool) {
	sym, ok := s.types[name]
	return sym, ok
}

// DefineTypeSym registers a struct type declaration.
func (s *Symbols) DefineTypeSym(name *StringRef, pos Pos, structTag *Typetag, node *Node) (*Sym, error) {
	if _, ok := s.types[name]; ok {
		return nil, &NameError{Pos: pos, Message: fmt.Sprintf("type `%s` already declared", name.Value)}
	}
	sym := &Sym{Kind: SymType, Name: name, Type: structTag, IsGlobal: true, Node: node}
	s.types[name] = sym
	return sym, nil
}

// GetTypeName returns the pooled name a type symbol was declared under.
func (s *Symbols) GetTypeName(sym *Sym) *StringRef { return sym.Name }

// DefineModuleSym registers an import's alias.
func (s *Symbols) DefineModuleSym(alias *StringRef, pos Pos, path *StringRef) (*Sym, error) {
	if _, ok := s.modules[alias]; ok {
		return nil, &NameError{Pos: pos, Message: fmt.Sprintf("module alias `%s` already declared", alias.Value)}
	}
	sym := &Sym{Kind: SymModule, Name: alias, IsGlobal: true, Path: path}
	s.modules[alias] = sym
	return sym, nil
}

func (s *Symbols) FindModuleSym(alias *StringRef) (*Sym, bool) {
	sym, ok := s.modules[alias]
	return sym, ok
}

// GlobalSym looks up a file-scope variable or constant by name.
func (s *Symbols) GlobalSym(name *StringRef) (*Sym, bool) {
	sym, ok := s.scopes[0].syms[name]
	return sym, ok
}

// NumGlobals reports how many global variable slots have been allocated,
// the size the VM must give Thread.Globals.
func (s *Symbols) NumGlobals() int { return s.nextGlobalIndex }

// NumFuncs reports how many functions (native and compiled) are registered.
func (s *Symbols) NumFuncs() int { return s.nextFuncIndex }
