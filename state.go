package tiny

import (
	"fmt"
	"strings"
)

// State holds everything one embedder shares across however many compile
// calls and threads it creates: the type/symbol/string tables, the
// compiled Program, and the native callback table BindFunction populates.
// Grounded on the Tiny_State handle in include/tiny.h and its
// Tiny_CompileString/Tiny_BindFunction pair.
type State struct {
	Config *Config

	types *TypePool
	syms  *Symbols
	pool  *StringPool
	cg    *Codegen

	Program *Program
	Natives []NativeFunc

	constSeeds []constSeed
}

func NewState() *State {
	s := &State{
		Config: NewConfig(),
		types:  NewTypePool(),
		syms:   NewSymbols(),
		pool:   NewStringPool(),
	}
	s.cg = NewCodegen(s.types, s.syms)
	return s
}

// RegisterType pre-declares an opaque named type, for a host value that
// Tiny source only ever holds through foreign functions (spec §6's
// type-registration hook). The name tag gives each registered type its own
// identity: two registrations under different names are never assignable
// to one another, even though neither has any structure a script can see.
func (s *State) RegisterType(name string) error {
	ref := s.pool.Insert(name)
	tag := s.types.InternName(ref)
	_, err := s.syms.DefineTypeSym(ref, 0, tag, nil)
	return err
}

// CompileString compiles one source string under the module name "main".
// See CompileModule for the append semantics.
func (s *State) CompileString(src string) error {
	return s.CompileModule("main", src)
}

// CompileModule compiles src as the named module, appending its functions,
// globals, constants, and top-level statements to everything this State
// compiled before: symbols declared by an earlier compile stay visible to
// a later one (this is how an `import` is satisfied — the embedder
// compiles the imported module into the same State), and a thread prepared
// after the latest compile runs every unit's top-level statements in
// compile order. Each call reassembles the Program, so raw pointers into a
// previous Program's code buffer must not be cached across compiles, and
// the compiler must not run while a thread of this State executes.
func (s *State) CompileModule(name, src string) error {
	p := NewParser([]byte(src), s.pool)
	program, err := p.Parse()
	if err != nil {
		return err
	}

	tc := NewTypechecker(s.types, s.syms, s.pool)
	if err := tc.Typecheck(program); err != nil {
		return err
	}

	prog, err := s.cg.CompileProgram(program, name, []byte(src))
	if err != nil {
		return err
	}

	s.Program = prog
	if s.Natives == nil {
		s.Natives = make([]NativeFunc, s.syms.NumFuncs())
	} else {
		grown := make([]NativeFunc, s.syms.NumFuncs())
		copy(grown, s.Natives)
		s.Natives = grown
	}
	return nil
}

// GetGlobalIndex resolves a file-scope variable or constant's global slot
// index, for Thread.GetGlobal/SetGlobal.
func (s *State) GetGlobalIndex(name string) (int, bool) {
	sym, ok := s.syms.GlobalSym(s.pool.Insert(name))
	if !ok || sym.Kind == SymFunc || sym.Kind == SymType || sym.Kind == SymModule {
		return 0, false
	}
	return sym.Index, true
}

// GetFunctionIndex resolves a declared function's FuncTable/Natives index.
func (s *State) GetFunctionIndex(name string) (int, bool) {
	sym, ok := s.syms.FindFunc(s.pool.Insert(name))
	if !ok {
		return 0, false
	}
	return sym.Index, true
}

// BindFunction matches a Go callback against a `foreign` declaration
// already seen by CompileString, identified by a signature string of the
// form `name(T1, T2, ...): R` (`: R` may be omitted for a void return, and
// a literal trailing `...` marks the declaration variadic). Grounded on
// Tiny_BindFunction in include/tiny.h.
func (s *State) BindFunction(signature string, fn NativeFunc) error {
	name, argNames, varargs, retName, err := parseSignature(signature)
	if err != nil {
		return err
	}

	nameRef := s.pool.Insert(name)
	sym, ok := s.syms.FindFunc(nameRef)
	if !ok {
		return fmt.Errorf("tiny: no `foreign %s` declared", name)
	}
	if !sym.Foreign {
		return fmt.Errorf("tiny: `%s` is not a foreign function", name)
	}

	argTypes := make([]*Typetag, len(argNames))
	for i, an := range argNames {
		t, err := s.resolveTypeName(an)
		if err != nil {
			return err
		}
		argTypes[i] = t
	}
	retType, err := s.resolveTypeName(retName)
	if err != nil {
		return err
	}
	sig := s.types.InternFunc(argTypes, retType, varargs)
	if sig != sym.Type {
		return fmt.Errorf("tiny: signature of `%s` does not match its `foreign` declaration", name)
	}

	if sym.Index >= len(s.Natives) {
		grown := make([]NativeFunc, sym.Index+1)
		copy(grown, s.Natives)
		s.Natives = grown
	}
	s.Natives[sym.Index] = fn
	return nil
}

func (s *State) resolveTypeName(name string) (*Typetag, error) {
	name = strings.TrimSpace(name)
	if k, ok := primitiveTypeNames[name]; ok {
		return s.types.Primitive(k), nil
	}
	if sym, ok := s.syms.FindTypeSym(s.pool.Insert(name)); ok {
		return sym.Type, nil
	}
	return nil, fmt.Errorf("tiny: unknown type `%s` in bound signature", name)
}

// parseSignature splits `name(T1, T2, ...): R` into its parts. A missing
// `: R` defaults the return type to void, matching BindFunction's grammar.
func parseSignature(sig string) (name string, argTypes []string, varargs bool, retType string, err error) {
	open := strings.IndexByte(sig, '(')
	if open < 0 {
		return "", nil, false, "", fmt.Errorf("tiny: malformed signature %q: missing `(`", sig)
	}
	name = strings.TrimSpace(sig[:open])

	closeIdx := strings.IndexByte(sig[open:], ')')
	if closeIdx < 0 {
		return "", nil, false, "", fmt.Errorf("tiny: malformed signature %q: missing `)`", sig)
	}
	closeIdx += open

	argsPart := strings.TrimSpace(sig[open+1 : closeIdx])
	retType = "void"
	if colon := strings.IndexByte(sig[closeIdx:], ':'); colon >= 0 {
		retType = strings.TrimSpace(sig[closeIdx+colon+1:])
	}

	if argsPart != "" {
		for _, p := range strings.Split(argsPart, ",") {
			p = strings.TrimSpace(p)
			if p == "..." {
				varargs = true
				continue
			}
			argTypes = append(argTypes, p)
		}
	}
	return name, argTypes, varargs, retType, nil
}

// NewThread allocates a thread ready to run this State's Program.
func (s *State) NewThread() *Thread {
	return NewThread(s.Program, s.Natives, s.Config, s.pool)
}
