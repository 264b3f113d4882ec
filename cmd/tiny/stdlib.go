package main

import (
	"fmt"

	tiny "github.com/tinylang/tiny"
)

// bindStdlib offers the CLI driver's small standard library to whichever
// `foreign` declarations the compiled script actually made, mirroring the
// original's Tiny_BindStandardIO hook (include/tiny.h) with a print/println
// pair over Go's stdout rather than the original's full array/dict/string
// libraries (out of scope per spec §1).
func bindStdlib(state *tiny.State) {
	bindIfDeclared(state, "print(...)", func(t *tiny.Thread, args []tiny.Value) tiny.Value {
		for _, a := range args {
			fmt.Print(formatValue(a))
		}
		return tiny.NullValue()
	})
	bindIfDeclared(state, "println(...)", func(t *tiny.Thread, args []tiny.Value) tiny.Value {
		for _, a := range args {
			fmt.Print(formatValue(a))
		}
		fmt.Println()
		return tiny.NullValue()
	})
}

// bindIfDeclared wires fn to sig only if the script declared a matching
// `foreign` function; a script that never declares print/println simply
// never exercises this callback, the same way an unreferenced entry in the
// original's standard library is harmless to bind.
func bindIfDeclared(state *tiny.State, sig string, fn tiny.NativeFunc) {
	_ = state.BindFunction(sig, fn)
}

func formatValue(v tiny.Value) string {
	switch v.Kind {
	case tiny.VNull:
		return "null"
	case tiny.VBool:
		return fmt.Sprintf("%v", v.AsBool())
	case tiny.VChar:
		return string(v.AsChar())
	case tiny.VInt:
		return fmt.Sprintf("%d", v.AsInt())
	case tiny.VFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case tiny.VString:
		if s := v.AsString(); s != nil {
			return s.Value
		}
		return ""
	default:
		return "<value>"
	}
}
