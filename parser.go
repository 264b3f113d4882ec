package tiny

import "fmt"

// Parser is a recursive-descent/Pratt parser over one Lexer's token stream.
// It returns errors as plain Go `error` values up to the single top-level
// Parse call, the idiomatic-Go replacement for the original's
// setjmp/longjmp PARSER_ERROR escape (tiny/src/parser.c).
type Parser struct {
	lex  *Lexer
	cur  Token
	pool *StringPool
	ast  *AST
}

func NewParser(src []byte, pool *StringPool) *Parser {
	p := &Parser{lex: NewLexer(src), pool: pool, ast: NewAST()}
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.lex.Next()
}

func (p *Parser) lexErrIfAny() error {
	if p.cur.Type == TokError {
		return p.lex.Err()
	}
	return nil
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	if err := p.lexErrIfAny(); err != nil {
		return Token{}, err
	}
	if p.cur.Type != tt {
		return Token{}, &SyntaxError{Pos: p.cur.Pos, Message: fmt.Sprintf("expected %s, got %s", tt, p.cur.Type)}
	}
	tok := p.cur
	p.advance()
	return tok, nil
}

func (p *Parser) at(tt TokenType) bool { return p.cur.Type == tt }

func (p *Parser) consumeSemis() {
	for p.at(TokSemi) {
		p.advance()
	}
}

func (p *Parser) intern(tok Token) *StringRef { return p.pool.Insert(tok.Lexeme) }

// Parse parses an entire compilation unit into an NProgram node.
func (p *Parser) Parse() (*Node, error) {
	startPos := p.cur.Pos
	var decls []*Node
	for !p.at(TokEOF) {
		if err := p.lexErrIfAny(); err != nil {
			return nil, err
		}
		var (
			d   *Node
			err error
		)
		switch p.cur.Type {
		case TokImport:
			d, err = p.parseImport()
		case TokStruct:
			d, err = p.parseStructDecl()
		case TokFunc, TokForeign:
			d, err = p.parseFuncDecl()
		default:
			// any other statement (declaration, assignment, call, loop,
			// conditional) runs as top-level code.
			d, err = p.parseStatement()
		}
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
		p.consumeSemis()
	}
	return p.ast.Program(startPos, decls), nil
}

func modAliasFromPath(path string) string {
	start, end := 0, len(path)
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			start = i + 1
			break
		}
	}
	for i := len(path) - 1; i >= start; i-- {
		if path[i] == '.' {
			end = i
			break
		}
	}
	return path[start:end]
}

func (p *Parser) parseImport() (*Node, error) {
	tok, _ := p.expect(TokImport)
	pathTok, err := p.expect(TokString)
	if err != nil {
		return nil, err
	}
	p.consumeSemis()
	return p.ast.ImportDecl(tok.Pos, p.pool.Insert(pathTok.Lexeme)), nil
}

func (p *Parser) parseTypeName() (*StringRef, error) {
	tok, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	return p.intern(tok), nil
}

func (p *Parser) parseStructDecl() (*Node, error) {
	tok, _ := p.expect(TokStruct)
	nameTok, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokOpenCurly); err != nil {
		return nil, err
	}
	var names, types []*StringRef
	for !p.at(TokCloseCurly) {
		fnTok, err := p.expect(TokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon); err != nil {
			return nil, err
		}
		ftype, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		names = append(names, p.intern(fnTok))
		types = append(types, ftype)
		if p.at(TokComma) || p.at(TokSemi) {
			p.advance()
		}
	}
	if _, err := p.expect(TokCloseCurly); err != nil {
		return nil, err
	}
	return p.ast.StructDecl(tok.Pos, p.intern(nameTok), names, types), nil
}

func (p *Parser) parseFuncDecl() (*Node, error) {
	foreign := false
	pos := p.cur.Pos
	if p.at(TokForeign) {
		foreign = true
		p.advance()
	}
	if _, err := p.expect(TokFunc); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokOpenParen); err != nil {
		return nil, err
	}
	var params []*Param
	varargs := false
	for !p.at(TokCloseParen) {
		if p.at(TokEllipsis) {
			if !foreign {
				return nil, &SyntaxError{Pos: p.cur.Pos, Message: "`...` is only allowed in a `foreign` function's parameter list"}
			}
			p.advance()
			varargs = true
			break
		}
		pnTok, err := p.expect(TokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon); err != nil {
			return nil, err
		}
		ptype, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		params = append(params, &Param{Name: p.intern(pnTok), TypeName: ptype})
		if p.at(TokComma) {
			p.advance()
		}
	}
	if _, err := p.expect(TokCloseParen); err != nil {
		return nil, err
	}
	var retType *StringRef
	if p.at(TokColon) {
		p.advance()
		retType, err = p.parseTypeName()
		if err != nil {
			return nil, err
		}
	}
	var body *Node
	if foreign {
		p.consumeSemis()
	} else {
		body, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return p.ast.Proc(pos, p.intern(nameTok), params, retType, foreign, varargs, body), nil
}

func (p *Parser) parseBlock() (*Node, error) {
	tok, err := p.expect(TokOpenCurly)
	if err != nil {
		return nil, err
	}
	var stmts []*Node
	for !p.at(TokCloseCurly) {
		if err := p.lexErrIfAny(); err != nil {
			return nil, err
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		p.consumeSemis()
	}
	if _, err := p.expect(TokCloseCurly); err != nil {
		return nil, err
	}
	return p.ast.Block(tok.Pos, stmts), nil
}

func (p *Parser) parseStatement() (*Node, error) {
	switch p.cur.Type {
	case TokIf:
		return p.parseIf()
	case TokWhile:
		return p.parseWhile()
	case TokFor:
		return p.parseFor()
	case TokReturn:
		return p.parseReturn()
	case TokBreak:
		tok := p.cur
		p.advance()
		return p.ast.Break(tok.Pos), nil
	case TokContinue:
		tok := p.cur
		p.advance()
		return p.ast.Continue(tok.Pos), nil
	case TokOpenCurly:
		return p.parseBlock()
	default:
		return p.parseSimpleStatement()
	}
}

var compoundAssignOps = map[TokenType]bool{
	TokEqual: true, TokPlusEqual: true, TokMinusEqual: true, TokStarEqual: true,
	TokSlashEqual: true, TokPercentEqual: true, TokOrEqual: true, TokAndEqual: true,
}

// parseSimpleStatement parses a declaration (`:=`, `:T=`, `::`), a plain or
// compound assignment, or a bare expression statement (a call).
func (p *Parser) parseSimpleStatement() (*Node, error) {
	pos := p.cur.Pos
	left, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	switch {
	case p.at(TokDeclare):
		p.advance()
		if left.Kind != NIdent {
			return nil, &SyntaxError{Pos: pos, Message: "left side of `:=` must be an identifier"}
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return p.ast.Decl(pos, left.Name, false, nil, value), nil

	case p.at(TokDeclareConst):
		p.advance()
		if left.Kind != NIdent {
			return nil, &SyntaxError{Pos: pos, Message: "left side of `::` must be an identifier"}
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return p.ast.Decl(pos, left.Name, true, nil, value), nil

	case p.at(TokColon):
		p.advance()
		if left.Kind != NIdent {
			return nil, &SyntaxError{Pos: pos, Message: "left side of `:T=` must be an identifier"}
		}
		typeName, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokEqual); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return p.ast.Decl(pos, left.Name, false, typeName, value), nil

	case compoundAssignOps[p.cur.Type]:
		op := p.cur.Type
		p.advance()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return p.ast.Assign(pos, op, left, value), nil

	default:
		return left, nil
	}
}

func (p *Parser) parseIf() (*Node, error) {
	tok, _ := p.expect(TokIf)
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var els *Node
	if p.at(TokElse) {
		p.advance()
		if p.at(TokIf) {
			els, err = p.parseIf()
		} else {
			els, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return p.ast.If(tok.Pos, cond, then, els), nil
}

func (p *Parser) parseWhile() (*Node, error) {
	tok, _ := p.expect(TokWhile)
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return p.ast.While(tok.Pos, cond, body), nil
}

func (p *Parser) parseFor() (*Node, error) {
	tok, _ := p.expect(TokFor)
	init, err := p.parseSimpleStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemi); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemi); err != nil {
		return nil, err
	}
	post, err := p.parseSimpleStatement()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return p.ast.For(tok.Pos, init, cond, post, body), nil
}

func (p *Parser) parseReturn() (*Node, error) {
	tok, _ := p.expect(TokReturn)
	if p.at(TokSemi) || p.at(TokCloseCurly) {
		return p.ast.Return(tok.Pos, nil), nil
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return p.ast.Return(tok.Pos, value), nil
}

// precedence maps binary operator tokens to their climbing precedence, per
// spec §4.4's table (&& and || share a level, as do the six comparisons,
// and * / % share a level with the bitwise & |). Not present means "not a
// binary operator".
var precedence = map[TokenType]int{
	TokLogOr: 1, TokLogAnd: 1,
	TokEquals: 2, TokNotEquals: 2, TokLt: 2, TokGt: 2, TokLte: 2, TokGte: 2,
	TokPlus: 3, TokMinus: 3,
	TokStar: 4, TokSlash: 4, TokPercent: 4, TokAnd: 4, TokOr: 4,
}

func (p *Parser) parseExpr() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinRHS(0, left)
}

func (p *Parser) parseBinRHS(minPrec int, left *Node) (*Node, error) {
	for {
		prec, ok := precedence[p.cur.Type]
		if !ok || prec < minPrec {
			return left, nil
		}
		op := p.cur.Type
		opPos := p.cur.Pos
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		for {
			nextPrec, ok := precedence[p.cur.Type]
			if !ok || nextPrec <= prec {
				break
			}
			right, err = p.parseBinRHS(prec+1, right)
			if err != nil {
				return nil, err
			}
		}
		left = p.ast.Binary(opPos, op, left, right)
	}
}

func (p *Parser) parseUnary() (*Node, error) {
	if p.at(TokMinus) || p.at(TokBang) {
		op := p.cur.Type
		pos := p.cur.Pos
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return p.ast.Unary(pos, op, operand), nil
	}
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(expr)
}

func (p *Parser) parsePostfix(expr *Node) (*Node, error) {
	for {
		switch p.cur.Type {
		case TokDot:
			pos := p.cur.Pos
			p.advance()
			fieldTok, err := p.expect(TokIdent)
			if err != nil {
				return nil, err
			}
			expr = p.ast.Dot(pos, expr, p.intern(fieldTok))
		case TokOpenParen:
			pos := p.cur.Pos
			p.advance()
			var args []*Node
			for !p.at(TokCloseParen) {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.at(TokComma) {
					p.advance()
				}
			}
			if _, err := p.expect(TokCloseParen); err != nil {
				return nil, err
			}
			expr = p.ast.Call(pos, expr, args)
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (*Node, error) {
	if err := p.lexErrIfAny(); err != nil {
		return nil, err
	}
	tok := p.cur
	switch tok.Type {
	case TokOpenParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokCloseParen); err != nil {
			return nil, err
		}
		return p.ast.Paren(tok.Pos, inner), nil

	case TokNull:
		p.advance()
		return p.ast.Null(tok.Pos), nil

	case TokBool:
		p.advance()
		return p.ast.Bool(tok.Pos, tok.BoolValue), nil

	case TokChar:
		p.advance()
		return p.ast.Char(tok.Pos, rune(tok.IntValue)), nil

	case TokInt:
		p.advance()
		return p.ast.Int(tok.Pos, tok.IntValue), nil

	case TokFloat:
		p.advance()
		return p.ast.Float(tok.Pos, tok.FloatValue), nil

	case TokString:
		p.advance()
		return p.ast.String(tok.Pos, p.pool.Insert(tok.Lexeme)), nil

	case TokIdent:
		p.advance()
		return p.ast.Ident(tok.Pos, p.intern(tok)), nil

	case TokNew:
		p.advance()
		typeName, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokOpenCurly); err != nil {
			return nil, err
		}
		var values []*Node
		for !p.at(TokCloseCurly) {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if p.at(TokComma) {
				p.advance()
			}
		}
		if _, err := p.expect(TokCloseCurly); err != nil {
			return nil, err
		}
		return p.ast.Constructor(tok.Pos, typeName, values), nil

	case TokCast:
		p.advance()
		if _, err := p.expect(TokOpenParen); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokComma); err != nil {
			return nil, err
		}
		typeName, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokCloseParen); err != nil {
			return nil, err
		}
		return p.ast.Cast(tok.Pos, expr, typeName), nil

	default:
		return nil, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("unexpected token %s", tok.Type)}
	}
}
