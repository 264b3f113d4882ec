package tiny

import "fmt"

// This file is the embedding surface a host program actually calls:
// CreateState/DeleteState and the Bind* family from include/tiny.h's
// public API, plus the per-thread lifecycle wrappers. State and Thread
// already expose most of this directly as idiomatic methods; what's added
// here is the handful of operations that need both (constant seeding) or
// exist purely for API-shape parity with the original's explicit
// create/destroy pairing.

// CreateState is an alias for NewState kept for readers coming from the
// original's Tiny_CreateState.
func CreateState() *State { return NewState() }

// DeleteState releases a State's tables. Go's GC reclaims the memory on
// its own; this exists so host code written against the original's
// explicit lifecycle has a direct line to call.
func (s *State) DeleteState() {
	s.types = nil
	s.syms = nil
	s.pool = nil
	s.cg = nil
	s.Program = nil
	s.Natives = nil
}

type constSeed struct {
	index int
	kind  TypeKind
	b     bool
	i     int32
	f     float32
	s     *StringRef
}

func (s *State) declareHostConst(name string, kind TypeKind) (*Sym, error) {
	ref := s.pool.Insert(name)
	return s.syms.DeclareConst(ref, 0, s.types.Primitive(kind))
}

// BindConstBool, BindConstInt, BindConstFloat and BindConstString define a
// `::` constant from the host side rather than from Tiny source text,
// useful for exposing build-time configuration or platform info to
// scripts. The constant's global slot is seeded when a thread calls
// PrepareThread.
func (s *State) BindConstBool(name string, v bool) error {
	sym, err := s.declareHostConst(name, TypeBool)
	if err != nil {
		return err
	}
	s.constSeeds = append(s.constSeeds, constSeed{index: sym.Index, kind: TypeBool, b: v})
	return nil
}

func (s *State) BindConstInt(name string, v int32) error {
	sym, err := s.declareHostConst(name, TypeInt)
	if err != nil {
		return err
	}
	s.constSeeds = append(s.constSeeds, constSeed{index: sym.Index, kind: TypeInt, i: v})
	return nil
}

func (s *State) BindConstFloat(name string, v float32) error {
	sym, err := s.declareHostConst(name, TypeFloat)
	if err != nil {
		return err
	}
	s.constSeeds = append(s.constSeeds, constSeed{index: sym.Index, kind: TypeFloat, f: v})
	return nil
}

func (s *State) BindConstString(name string, v string) error {
	sym, err := s.declareHostConst(name, TypeStr)
	if err != nil {
		return err
	}
	s.constSeeds = append(s.constSeeds, constSeed{index: sym.Index, kind: TypeStr, s: s.pool.Insert(v)})
	return nil
}

// PrepareThread allocates t's global slots for this State's Program and
// seeds every host-bound constant, then starts execution at the top-level
// unit. This replaces calling InitThread/StartThread separately whenever
// the caller has no need to inspect the thread between the two steps.
func (s *State) PrepareThread(t *Thread) {
	t.InitThread(s.syms.NumGlobals())
	for _, seed := range s.constSeeds {
		switch seed.kind {
		case TypeBool:
			t.globals[seed.index] = BoolValue(seed.b)
		case TypeInt:
			t.globals[seed.index] = IntValue(seed.i)
		case TypeFloat:
			t.globals[seed.index] = FloatValue(seed.f)
		case TypeStr:
			t.globals[seed.index] = t.heap.NewString(seed.s)
		}
	}
	t.StartThread()
}

// RetVal reads the thread's retval register: the value the most recent
// `return <expr>` (including a top-level one) or foreign call produced.
func (t *Thread) RetVal() Value { return t.retval }

// GetGlobal reads a thread's global slot by State-resolved index.
func (t *Thread) GetGlobal(index int) Value { return t.globals[index] }

// SetGlobal writes a thread's global slot by State-resolved index.
func (t *Thread) SetGlobal(index int, v Value) { t.globals[index] = v }

// DestroyThread drops a thread's heap and stack. Like DeleteState, this
// exists for API-shape parity with the original's manual lifecycle; Go's
// GC would reclaim the same memory once t goes out of scope regardless.
func (t *Thread) DestroyThread() {
	t.stack = nil
	t.frames = nil
	t.globals = nil
	t.heap = nil
	t.status = ThreadDead
}

// MustBindFunction panics if BindFunction fails. Convenient for host code
// wiring up a fixed, known-good set of native functions at startup.
func (s *State) MustBindFunction(signature string, fn NativeFunc) {
	if err := s.BindFunction(signature, fn); err != nil {
		panic(fmt.Sprintf("tiny: %v", err))
	}
}
