package tiny

import "fmt"

// Error kinds per spec §7: lexical and syntax errors are fatal to the
// current Parse call; name-resolution and type errors are fatal to the
// Typecheck pass; runtime errors halt a single thread without affecting
// the State it was spawned from.

// LexError reports a malformed token (unterminated literal, unknown byte).
// Grounded on the original's Lexer.errorMessage (tiny/src/lexer.c).
type LexError struct {
	Pos     Pos
	Message string
}

func (e *LexError) Error() string { return fmt.Sprintf("%s @ %d", e.Message, e.Pos) }

// SyntaxError reports a malformed grammatical construct. Grounded on the
// original's PARSER_ERROR macro (tiny/src/parser.c); unlike the original,
// which escapes via setjmp/longjmp, this is returned as a plain Go error up
// to the single top-level Parse call (spec §9 "Long-jump error escape").
type SyntaxError struct {
	Pos     Pos
	Message string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("%s @ %d", e.Message, e.Pos) }

// NameError reports a failed name resolution: undeclared identifier,
// duplicate declaration, or a declaration in a forbidden position (a
// function nested in a function, a const inside a function). Grounded on
// the SYMBOLS_ERROR sites in tiny/src/symbols.c.
type NameError struct {
	Pos     Pos
	Message string
}

func (e *NameError) Error() string { return fmt.Sprintf("%s @ %d", e.Message, e.Pos) }

// TypeError reports a static type-checking failure: incompatible
// assignment, arity mismatch, missing field, illegal cast, or a value
// returned from a void function. Grounded on the type-rule checks in
// tiny/src/type.c (CompareTypes, GetFieldIndex) applied by the checker.
type TypeError struct {
	Pos     Pos
	Message string
}

func (e *TypeError) Error() string { return fmt.Sprintf("%s @ %d", e.Message, e.Pos) }

// RuntimeTrap reports a failure detected while a thread executes bytecode:
// stack overflow, call-depth overflow, an unbound foreign call, or division
// by zero. It halts the thread that raised it (pc set to the sentinel);
// it does not affect the State or any other thread. File and Line carry
// whatever the `file`/`line` debug ops last reported, when the thread's
// Program has debug info.
type RuntimeTrap struct {
	Message string
	File    string
	Line    int
}

func (e *RuntimeTrap) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s (%s:%d)", e.Message, e.File, e.Line)
	}
	return e.Message
}
