// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"strings"

	"github.com/shaderlab/ssair/wgsl"
)

// expression parses the full GLSL expression grammar down through the
// ternary conditional, which has no wgsl AST node of its own and is
// rewritten to a select() call the WGSL lowering already understands.
func (p *parser) expression() (wgsl.Expr, error) {
	cond, err := p.logicalOr()
	if err != nil {
		return nil, err
	}
	if !p.match(tokQuestion) {
		return cond, nil
	}
	accept, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, ":"); err != nil {
		return nil, err
	}
	reject, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &wgsl.CallExpr{Func: &wgsl.Ident{Name: "select"}, Args: []wgsl.Expr{reject, accept, cond}}, nil
}

func (p *parser) logicalOr() (wgsl.Expr, error) {
	return p.binary(map[tokenKind]wgsl.TokenKind{tokPipePipe: wgsl.TokenPipePipe}, (*parser).logicalAnd)
}

func (p *parser) logicalAnd() (wgsl.Expr, error) {
	return p.binary(map[tokenKind]wgsl.TokenKind{tokAmpAmp: wgsl.TokenAmpAmp}, (*parser).bitwiseOr)
}

func (p *parser) bitwiseOr() (wgsl.Expr, error) {
	return p.binary(map[tokenKind]wgsl.TokenKind{tokPipe: wgsl.TokenPipe}, (*parser).bitwiseXor)
}

func (p *parser) bitwiseXor() (wgsl.Expr, error) {
	return p.binary(map[tokenKind]wgsl.TokenKind{tokCaret: wgsl.TokenCaret}, (*parser).bitwiseAnd)
}

func (p *parser) bitwiseAnd() (wgsl.Expr, error) {
	return p.binary(map[tokenKind]wgsl.TokenKind{tokAmpersand: wgsl.TokenAmpersand}, (*parser).equality)
}

func (p *parser) equality() (wgsl.Expr, error) {
	return p.binary(map[tokenKind]wgsl.TokenKind{tokEqualEqual: wgsl.TokenEqualEqual, tokBangEqual: wgsl.TokenBangEqual}, (*parser).relational)
}

func (p *parser) relational() (wgsl.Expr, error) {
	return p.binary(map[tokenKind]wgsl.TokenKind{
		tokLess: wgsl.TokenLess, tokLessEqual: wgsl.TokenLessEqual,
		tokGreater: wgsl.TokenGreater, tokGreaterEqual: wgsl.TokenGreaterEqual,
	}, (*parser).shift)
}

func (p *parser) shift() (wgsl.Expr, error) {
	return p.binary(map[tokenKind]wgsl.TokenKind{tokLessLess: wgsl.TokenLessLess, tokGreaterGreater: wgsl.TokenGreaterGreater}, (*parser).additive)
}

func (p *parser) additive() (wgsl.Expr, error) {
	return p.binary(map[tokenKind]wgsl.TokenKind{tokPlus: wgsl.TokenPlus, tokMinus: wgsl.TokenMinus}, (*parser).multiplicative)
}

func (p *parser) multiplicative() (wgsl.Expr, error) {
	return p.binary(map[tokenKind]wgsl.TokenKind{tokStar: wgsl.TokenStar, tokSlash: wgsl.TokenSlash, tokPercent: wgsl.TokenPercent}, (*parser).unary)
}

func (p *parser) binary(ops map[tokenKind]wgsl.TokenKind, next func(*parser) (wgsl.Expr, error)) (wgsl.Expr, error) {
	left, err := next(p)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ops[p.peek().kind]
		if !ok {
			return left, nil
		}
		start := p.advance()
		right, err := next(p)
		if err != nil {
			return nil, err
		}
		left = &wgsl.BinaryExpr{Left: left, Op: op, Right: right, Span: spanAt(start)}
	}
}

func (p *parser) unary() (wgsl.Expr, error) {
	start := p.peek()
	switch {
	case p.match(tokMinus):
		v, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &wgsl.UnaryExpr{Op: wgsl.TokenMinus, Operand: v, Span: spanAt(start)}, nil
	case p.match(tokBang):
		v, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &wgsl.UnaryExpr{Op: wgsl.TokenBang, Operand: v, Span: spanAt(start)}, nil
	case p.match(tokTilde):
		v, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &wgsl.UnaryExpr{Op: wgsl.TokenTilde, Operand: v, Span: spanAt(start)}, nil
	case p.match(tokPlus):
		return p.unary()
	case p.check(tokPlusPlus) || p.check(tokMinusMinus):
		// Prefix ++/-- reads the same as postfix for our purposes: the
		// statement-level rewrite happens in simpleStatementNoSemicolon;
		// as a sub-expression (rare in GLSL) just evaluate the operand.
		p.advance()
		return p.unary()
	default:
		return p.postfix()
	}
}

func (p *parser) postfix() (wgsl.Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(tokLeftBracket):
			start := p.advance()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRightBracket, "]"); err != nil {
				return nil, err
			}
			expr = &wgsl.IndexExpr{Expr: expr, Index: idx, Span: spanAt(start)}
		case p.check(tokDot):
			start := p.advance()
			member, err := p.expect(tokIdent, "member name")
			if err != nil {
				return nil, err
			}
			expr = &wgsl.MemberExpr{Expr: expr, Member: member.lexeme, Span: spanAt(start)}
		case p.check(tokPlusPlus), p.check(tokMinusMinus):
			// Postfix ++/-- as a sub-expression yields the pre-increment
			// value in C, but GLSL shaders essentially never rely on
			// that in an expression context; treat it as a no-op read
			// here since the statement-level form is handled separately.
			p.advance()
		default:
			return expr, nil
		}
	}
}

func (p *parser) primary() (wgsl.Expr, error) {
	start := p.peek()
	switch {
	case p.check(tokIntLiteral):
		p.advance()
		return &wgsl.Literal{Kind: wgsl.TokenIntLiteral, Value: start.lexeme, Span: spanAt(start)}, nil
	case p.check(tokFloatLiteral):
		p.advance()
		return &wgsl.Literal{Kind: wgsl.TokenFloatLiteral, Value: normalizeFloatSuffix(start.lexeme), Span: spanAt(start)}, nil
	case p.check(tokBoolLiteral):
		p.advance()
		return &wgsl.Literal{Kind: wgsl.TokenBoolLiteral, Value: start.lexeme, Span: spanAt(start)}, nil
	case p.check(tokLeftParen):
		p.advance()
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		_, err = p.expect(tokRightParen, ")")
		return e, err
	case p.check(tokTypeName):
		p.advance()
		typ, err := glslTypeToNamed(start.lexeme)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return p.constructorOrBareType(typ, start)
	case p.check(tokIdent):
		p.advance()
		if p.check(tokLeftParen) {
			return p.call(start.lexeme, start)
		}
		return &wgsl.Ident{Name: start.lexeme, Span: spanAt(start)}, nil
	default:
		return nil, p.errorf("unexpected token %q in expression", start.lexeme)
	}
}

// normalizeFloatSuffix rewrites GLSL's `lf`/`F` float suffixes to the `f`
// wgsl.Lower expects; GLSL has no half-precision suffix.
func normalizeFloatSuffix(lexeme string) string {
	switch {
	case strings.HasSuffix(lexeme, "lf"):
		return strings.TrimSuffix(lexeme, "lf") + "f"
	case strings.HasSuffix(lexeme, "F"):
		return strings.TrimSuffix(lexeme, "F") + "f"
	default:
		return lexeme
	}
}

func (p *parser) constructorOrBareType(typ wgsl.Type, start token) (wgsl.Expr, error) {
	if !p.check(tokLeftParen) {
		// A type name with no call parens only occurs as a cast-like
		// context GLSL doesn't otherwise have; treat the bare name as
		// an identifier so the caller reports a clear lowering error
		// rather than the parser swallowing it silently.
		if named, ok := typ.(*wgsl.NamedType); ok {
			return &wgsl.Ident{Name: named.Name, Span: spanAt(start)}, nil
		}
		return nil, p.errorf("unexpected type name in expression")
	}
	p.advance()
	var args []wgsl.Expr
	for !p.check(tokRightParen) {
		a, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.match(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRightParen, ")"); err != nil {
		return nil, err
	}
	return &wgsl.ConstructExpr{Type: typ, Args: args, Span: spanAt(start)}, nil
}

func (p *parser) call(name string, start token) (wgsl.Expr, error) {
	p.advance() // '('
	var args []wgsl.Expr
	for !p.check(tokRightParen) {
		a, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.match(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRightParen, ")"); err != nil {
		return nil, err
	}
	return p.rewriteCall(name, args, start)
}

// glslToWGSLFunction renames the common GLSL built-ins whose spelling
// differs from their WGSL equivalent; everything absent from this table
// (abs, min, max, clamp, sin, cos, pow, ...) is already spelled the same
// in both dialects.
var glslToWGSLFunction = map[string]string{
	"faceforward": "faceForward", "inversesqrt": "inverseSqrt",
	"dFdx": "dpdx", "dFdy": "dpdy", "fwidth": "fwidth",
	"imageLoad": "textureLoad", "imageStore": "textureStore",
	"texelFetch": "textureLoad",
}

func (p *parser) rewriteCall(name string, args []wgsl.Expr, start token) (wgsl.Expr, error) {
	if name == "mod" && len(args) == 2 {
		return &wgsl.BinaryExpr{Left: args[0], Op: wgsl.TokenPercent, Right: args[1], Span: spanAt(start)}, nil
	}
	if pair, ok := p.samplerTextureCall(name, args, start); ok {
		return pair, nil
	}
	if renamed, ok := glslToWGSLFunction[name]; ok {
		name = renamed
	}
	return &wgsl.CallExpr{Func: &wgsl.Ident{Name: name, Span: spanAt(start)}, Args: args, Span: spanAt(start)}, nil
}

// samplerTextureCall recognizes GLSL's combined-sampler texture built-ins
// (texture/textureLod/textureGrad) whose first argument names a
// `samplerND` variable, and rewrites them to the two-argument
// (texture, sampler) form wgsl.Lower's lowerTextureSample expects.
func (p *parser) samplerTextureCall(name string, args []wgsl.Expr, start token) (wgsl.Expr, bool) {
	if len(args) == 0 {
		return nil, false
	}
	ident, ok := args[0].(*wgsl.Ident)
	if !ok {
		return nil, false
	}
	pair, known := p.samplers[ident.Name]
	if !known {
		return nil, false
	}
	tex := &wgsl.Ident{Name: pair.textureName, Span: spanAt(start)}
	samp := &wgsl.Ident{Name: pair.samplerName, Span: spanAt(start)}
	switch name {
	case "texture":
		rest := args[1:]
		call := append([]wgsl.Expr{tex, samp}, rest...)
		return &wgsl.CallExpr{Func: &wgsl.Ident{Name: "textureSample", Span: spanAt(start)}, Args: call, Span: spanAt(start)}, true
	case "textureLod":
		rest := args[1:]
		call := append([]wgsl.Expr{tex, samp}, rest...)
		return &wgsl.CallExpr{Func: &wgsl.Ident{Name: "textureSampleLevel", Span: spanAt(start)}, Args: call, Span: spanAt(start)}, true
	case "textureGrad":
		rest := args[1:]
		call := append([]wgsl.Expr{tex, samp}, rest...)
		return &wgsl.CallExpr{Func: &wgsl.Ident{Name: "textureSampleGrad", Span: spanAt(start)}, Args: call, Span: spanAt(start)}, true
	default:
		return nil, false
	}
}
