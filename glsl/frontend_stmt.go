// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"github.com/shaderlab/ssair/wgsl"
)

func (p *parser) functionDecl(returnType wgsl.Type, name string) (*wgsl.FunctionDecl, error) {
	start := p.peek()
	if _, err := p.expect(tokLeftParen, "("); err != nil {
		return nil, err
	}
	var params []*wgsl.Parameter
	if !p.check(tokRightParen) && !(p.check(tokVoid) && p.peekAt(1).kind == tokRightParen) {
		for {
			p.parseStorageQualifier() // in/out/inout/const on a parameter
			pt, err := p.parseType()
			if err != nil {
				return nil, err
			}
			nameTok, err := p.expect(tokIdent, "parameter name")
			if err != nil {
				return nil, err
			}
			pt, err = p.parseArraySuffix(pt)
			if err != nil {
				return nil, err
			}
			params = append(params, &wgsl.Parameter{Name: nameTok.lexeme, Type: pt})
			if !p.match(tokComma) {
				break
			}
		}
	} else if p.check(tokVoid) {
		p.advance()
	}
	if _, err := p.expect(tokRightParen, ")"); err != nil {
		return nil, err
	}

	if p.match(tokSemicolon) {
		// Forward declaration: no body to lower, skip entirely.
		return nil, nil
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &wgsl.FunctionDecl{Name: name, Params: params, ReturnType: returnType, Body: body, Span: spanAt(start)}, nil
}

func (p *parser) peekAt(offset int) token {
	idx := p.current + offset
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *parser) block() (*wgsl.BlockStmt, error) {
	start := p.peek()
	if _, err := p.expect(tokLeftBrace, "{"); err != nil {
		return nil, err
	}
	var stmts []wgsl.Stmt
	for !p.check(tokRightBrace) && !p.check(tokEOF) {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		if s != nil {
			stmts = append(stmts, s)
		}
	}
	if _, err := p.expect(tokRightBrace, "}"); err != nil {
		return nil, err
	}
	return &wgsl.BlockStmt{Statements: stmts, Span: spanAt(start)}, nil
}

func (p *parser) statement() (wgsl.Stmt, error) {
	switch {
	case p.check(tokLeftBrace):
		return p.block()
	case p.check(tokIf):
		return p.ifStatement()
	case p.check(tokFor):
		return p.forStatement()
	case p.check(tokWhile):
		return p.whileStatement()
	case p.check(tokDo):
		return p.doWhileStatement()
	case p.check(tokBreak):
		t := p.advance()
		_, err := p.expect(tokSemicolon, ";")
		return &wgsl.BreakStmt{Span: spanAt(t)}, err
	case p.check(tokContinue):
		t := p.advance()
		_, err := p.expect(tokSemicolon, ";")
		return &wgsl.ContinueStmt{Span: spanAt(t)}, err
	case p.check(tokDiscard):
		t := p.advance()
		_, err := p.expect(tokSemicolon, ";")
		return &wgsl.DiscardStmt{Span: spanAt(t)}, err
	case p.check(tokReturn):
		return p.returnStatement()
	case p.check(tokSemicolon):
		p.advance()
		return nil, nil
	case p.check(tokConst), p.isTypeStart():
		return p.localVarOrConstStatement()
	default:
		return p.exprOrAssignStatement()
	}
}

// isTypeStart reports whether the current token can begin a local
// variable declaration's type (a built-in type keyword, or an identifier
// that is immediately followed by another identifier — `Foo bar` — as
// opposed to `bar = ...` or `bar(...)` which are expression statements).
func (p *parser) isTypeStart() bool {
	if p.check(tokTypeName) {
		return true
	}
	return p.check(tokIdent) && p.peekAt(1).kind == tokIdent
}

func (p *parser) localVarOrConstStatement() (wgsl.Stmt, error) {
	start := p.peek()
	isConst := p.match(tokConst)
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(tokIdent, "variable name")
	if err != nil {
		return nil, err
	}
	typ, err = p.parseArraySuffix(typ)
	if err != nil {
		return nil, err
	}
	var init wgsl.Expr
	if p.match(tokEqual) {
		init, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokSemicolon, ";"); err != nil {
		return nil, err
	}
	if isConst {
		return &wgsl.ConstDecl{Name: nameTok.lexeme, Type: typ, Init: init, Span: spanAt(start)}, nil
	}
	return &wgsl.VarDecl{Name: nameTok.lexeme, Type: typ, Init: init, AddressSpace: "function", Span: spanAt(start)}, nil
}

func (p *parser) ifStatement() (wgsl.Stmt, error) {
	start := p.advance() // 'if'
	if _, err := p.expect(tokLeftParen, "("); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRightParen, ")"); err != nil {
		return nil, err
	}
	body, err := p.statementAsBlock()
	if err != nil {
		return nil, err
	}
	var elseStmt wgsl.Stmt
	if p.match(tokElse) {
		if p.check(tokIf) {
			elseStmt, err = p.ifStatement()
		} else {
			elseStmt, err = p.statementAsBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return &wgsl.IfStmt{Condition: cond, Body: body, Else: elseStmt, Span: spanAt(start)}, nil
}

// statementAsBlock parses a single statement, wrapping it in a BlockStmt
// if it wasn't already one, since wgsl.IfStmt/ForStmt/WhileStmt bodies are
// always *wgsl.BlockStmt (GLSL, like C, allows a bare statement here).
func (p *parser) statementAsBlock() (*wgsl.BlockStmt, error) {
	if p.check(tokLeftBrace) {
		return p.block()
	}
	start := p.peek()
	s, err := p.statement()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return &wgsl.BlockStmt{Span: spanAt(start)}, nil
	}
	return &wgsl.BlockStmt{Statements: []wgsl.Stmt{s}, Span: spanAt(start)}, nil
}

func (p *parser) forStatement() (wgsl.Stmt, error) {
	start := p.advance() // 'for'
	if _, err := p.expect(tokLeftParen, "("); err != nil {
		return nil, err
	}
	var init wgsl.Stmt
	var err error
	if !p.check(tokSemicolon) {
		init, err = p.forInit()
		if err != nil {
			return nil, err
		}
	} else {
		p.advance()
	}
	var cond wgsl.Expr
	if !p.check(tokSemicolon) {
		cond, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokSemicolon, ";"); err != nil {
		return nil, err
	}
	var update wgsl.Stmt
	if !p.check(tokRightParen) {
		update, err = p.simpleStatementNoSemicolon()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokRightParen, ")"); err != nil {
		return nil, err
	}
	body, err := p.statementAsBlock()
	if err != nil {
		return nil, err
	}
	return &wgsl.ForStmt{Init: init, Condition: cond, Update: update, Body: body, Span: spanAt(start)}, nil
}

// forInit parses the init-clause of a for statement (a local var decl or
// an expression/assignment), consuming the trailing semicolon.
func (p *parser) forInit() (wgsl.Stmt, error) {
	if p.check(tokConst) || p.isTypeStart() {
		return p.localVarOrConstStatement()
	}
	s, err := p.simpleStatementNoSemicolon()
	if err != nil {
		return nil, err
	}
	_, err = p.expect(tokSemicolon, ";")
	return s, err
}

func (p *parser) whileStatement() (wgsl.Stmt, error) {
	start := p.advance() // 'while'
	if _, err := p.expect(tokLeftParen, "("); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRightParen, ")"); err != nil {
		return nil, err
	}
	body, err := p.statementAsBlock()
	if err != nil {
		return nil, err
	}
	return &wgsl.WhileStmt{Condition: cond, Body: body, Span: spanAt(start)}, nil
}

// doWhileStatement desugars `do { body } while (cond);` to
// `loop { body continuing { break if !cond } }` via the primitive
// wgsl.LoopStmt the WGSL lowering already knows how to terminate.
func (p *parser) doWhileStatement() (wgsl.Stmt, error) {
	start := p.advance() // 'do'
	body, err := p.statementAsBlock()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokWhile, "while"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLeftParen, "("); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRightParen, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemicolon, ";"); err != nil {
		return nil, err
	}
	guard := &wgsl.IfStmt{
		Condition: &wgsl.UnaryExpr{Op: wgsl.TokenBang, Operand: cond},
		Body:      &wgsl.BlockStmt{Statements: []wgsl.Stmt{&wgsl.BreakStmt{Span: spanAt(start)}}},
	}
	continuing := &wgsl.BlockStmt{Statements: []wgsl.Stmt{guard}}
	return &wgsl.LoopStmt{Body: body, Continuing: continuing, Span: spanAt(start)}, nil
}

func (p *parser) returnStatement() (wgsl.Stmt, error) {
	start := p.advance() // 'return'
	if p.match(tokSemicolon) {
		return &wgsl.ReturnStmt{Span: spanAt(start)}, nil
	}
	v, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemicolon, ";"); err != nil {
		return nil, err
	}
	return &wgsl.ReturnStmt{Value: v, Span: spanAt(start)}, nil
}

func (p *parser) exprOrAssignStatement() (wgsl.Stmt, error) {
	s, err := p.simpleStatementNoSemicolon()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemicolon, ";"); err != nil {
		return nil, err
	}
	return s, nil
}

func compoundAssignOp(k tokenKind) (wgsl.TokenKind, bool) {
	switch k {
	case tokEqual:
		return wgsl.TokenEqual, true
	case tokPlusEqual:
		return wgsl.TokenPlusEqual, true
	case tokMinusEqual:
		return wgsl.TokenMinusEqual, true
	case tokStarEqual:
		return wgsl.TokenStarEqual, true
	case tokSlashEqual:
		return wgsl.TokenSlashEqual, true
	case tokPercentEqual:
		return wgsl.TokenPercentEqual, true
	case tokAmpEqual:
		return wgsl.TokenAmpEqual, true
	case tokPipeEqual:
		return wgsl.TokenPipeEqual, true
	case tokCaretEqual:
		return wgsl.TokenCaretEqual, true
	case tokLessLessEqual:
		return wgsl.TokenLessLessEqual, true
	case tokGreaterGreaterEqual:
		return wgsl.TokenGreaterGreaterEqual, true
	default:
		return 0, false
	}
}

// simpleStatementNoSemicolon parses one assignment, increment/decrement,
// or bare expression — the form shared by expression statements and the
// init/update clauses of a for loop — without consuming a trailing `;`.
func (p *parser) simpleStatementNoSemicolon() (wgsl.Stmt, error) {
	start := p.peek()
	lhs, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.check(tokPlusPlus) || p.check(tokMinusMinus) {
		op := wgsl.TokenPlusEqual
		if p.check(tokMinusMinus) {
			op = wgsl.TokenMinusEqual
		}
		p.advance()
		one := &wgsl.Literal{Kind: wgsl.TokenIntLiteral, Value: "1"}
		return &wgsl.AssignStmt{Left: lhs, Op: op, Right: one, Span: spanAt(start)}, nil
	}
	if op, ok := compoundAssignOp(p.peek().kind); ok {
		p.advance()
		rhs, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &wgsl.AssignStmt{Left: lhs, Op: op, Right: rhs, Span: spanAt(start)}, nil
	}
	return &wgsl.ExprStmt{Expr: lhs, Span: spanAt(start)}, nil
}
