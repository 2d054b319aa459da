// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package msl

import (
	"github.com/shaderlab/ssair/wgsl"
)

// functionDecl parses a function's parameter list and body. Parameters
// tagged with a resource attribute ([[buffer(n)]]/[[texture(n)]]/
// [[sampler(n)]]) are resources in MSL's calling convention but globals in
// this IR, so they are synthesized into p.resourceGlobals instead of being
// added to the function's own parameter list; everything else (a
// [[stage_in]] struct, or a scalar/vector tagged with a builtin attribute
// such as [[thread_position_in_grid]]) becomes a genuine parameter.
func (p *parser) functionDecl(stage string, returnType wgsl.Type, name string) (*wgsl.FunctionDecl, error) {
	start := p.peek()
	if _, err := p.expect(tokLeftParen, "("); err != nil {
		return nil, err
	}
	var params []*wgsl.Parameter
	for !p.check(tokRightParen) {
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
		attrs, err := p.parseAttributes()
		if err != nil {
			return nil, err
		}
		if space, index, isResource := resourceAttr(attrs); isResource {
			p.resourceGlobals[nameTok.lexeme] = &wgsl.VarDecl{
				Name: nameTok.lexeme, Type: pt, AddressSpace: space,
				Attributes: []wgsl.Attribute{literalAttr("group", 0), literalAttr("binding", index)},
			}
		} else {
			params = append(params, &wgsl.Parameter{Name: nameTok.lexeme, Type: pt, Attributes: memberAttrsToWGSL(attrs)})
		}
		if !p.match(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRightParen, ")"); err != nil {
		return nil, err
	}

	// Trailing attribute on the function itself ([[max_total_threads_per_threadgroup(N)]], etc.) — consumed and ignored.
	if _, err := p.parseAttributes(); err != nil {
		return nil, err
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fn := &wgsl.FunctionDecl{Name: name, Params: params, ReturnType: returnType, Body: body, Span: spanAt(start)}
	if stage != "" {
		fn.Attributes = append(fn.Attributes, wgsl.Attribute{Name: stage})
	}
	return fn, nil
}

// resourceAttr reports whether attrs tags a parameter as a buffer/texture/
// sampler resource, and if so its IR address space and binding index.
func resourceAttr(attrs []mslAttr) (space string, index uint32, ok bool) {
	for _, a := range attrs {
		switch a.name {
		case "buffer":
			idx := uint32(0)
			if a.index != nil {
				idx = *a.index
			}
			return "storage", idx, true
		case "texture", "sampler":
			idx := uint32(0)
			if a.index != nil {
				idx = *a.index
			}
			return "handle", idx, true
		}
	}
	return "", 0, false
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
		return p.localVarStatement()
	default:
		return p.exprOrAssignStatement()
	}
}

// isTypeStart reports whether the current token can begin a local
// variable declaration's type: a built-in type keyword, an address-space
// qualifier, or an identifier immediately followed by another identifier
// (`Foo bar`), as opposed to `bar = ...`/`bar(...)` expression statements.
func (p *parser) isTypeStart() bool {
	switch {
	case p.check(tokTypeName), p.check(tokConstant), p.check(tokDevice), p.check(tokThread), p.check(tokThreadgroup):
		return true
	}
	return p.check(tokIdent) && p.peekAt(1).kind == tokIdent
}

func (p *parser) localVarStatement() (wgsl.Stmt, error) {
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

func (p *parser) forInit() (wgsl.Stmt, error) {
	if p.check(tokConst) || p.isTypeStart() {
		return p.localVarStatement()
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

// doWhileStatement desugars `do { body } while (cond);` the same way the
// GLSL front end does, into the primitive wgsl.LoopStmt.
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
