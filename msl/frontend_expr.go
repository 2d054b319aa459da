// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package msl

import (
	"strings"

	"github.com/shaderlab/ssair/wgsl"
)

// expression parses the full MSL expression grammar down through the
// ternary conditional, rewritten to a select() call the same way the
// GLSL front end does, since wgsl has no ternary AST node.
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
			// MSL calls texture/sampler methods on the object:
			// `tex.sample(samp, uv)`. Rewrite these into the free-function
			// form the WGSL lowerer's call dispatch table expects.
			if p.check(tokLeftParen) {
				if call, ok, err2 := p.methodCall(expr, member.lexeme, start); err2 != nil {
					return nil, err2
				} else if ok {
					expr = call
					continue
				}
			}
			expr = &wgsl.MemberExpr{Expr: expr, Member: member.lexeme, Span: spanAt(start)}
		case p.check(tokPlusPlus), p.check(tokMinusMinus):
			p.advance()
		default:
			return expr, nil
		}
	}
}

var mslMethodToWGSLFunction = map[string]string{
	"sample": "textureSample", "sample_bias": "textureSampleBias",
	"sample_grad": "textureSampleGrad", "gather": "textureGather",
	"read": "textureLoad", "write": "textureStore",
}

// methodCall recognizes `receiver.method(args...)` where receiver names a
// texture/sampler object, and rewrites it into the free-function form
// (`textureSample(tex, samp, coord, ...)`) wgsl.Lower's call dispatch
// expects — the mirror image of the GLSL front end's samplerTextureCall,
// grounded on the same textureSample/textureLoad/textureStore family.
func (p *parser) methodCall(receiver wgsl.Expr, method string, start token) (wgsl.Expr, bool, error) {
	wgslName, ok := mslMethodToWGSLFunction[method]
	if !ok {
		return nil, false, nil
	}
	p.advance() // '('
	var args []wgsl.Expr
	for !p.check(tokRightParen) {
		a, err := p.expression()
		if err != nil {
			return nil, false, err
		}
		args = append(args, a)
		if !p.match(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRightParen, ")"); err != nil {
		return nil, false, err
	}
	call := append([]wgsl.Expr{receiver}, args...)
	return &wgsl.CallExpr{Func: &wgsl.Ident{Name: wgslName, Span: spanAt(start)}, Args: call, Span: spanAt(start)}, true, nil
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
		typ, err := mslTypeToNamed(start.lexeme)
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

// normalizeFloatSuffix rewrites MSL's `h` (half) float suffix to `f`, the
// suffix wgsl.Lower expects — this IR doesn't carry a distinct half type
// at the literal level.
func normalizeFloatSuffix(lexeme string) string {
	switch {
	case strings.HasSuffix(lexeme, "h") || strings.HasSuffix(lexeme, "H"):
		return lexeme[:len(lexeme)-1] + "f"
	case strings.HasSuffix(lexeme, "F"):
		return lexeme[:len(lexeme)-1] + "f"
	default:
		return lexeme
	}
}

func (p *parser) constructorOrBareType(typ wgsl.Type, start token) (wgsl.Expr, error) {
	if !p.check(tokLeftParen) {
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

// mslToWGSLFunction renames the MSL built-ins whose spelling differs from
// their WGSL equivalent; everything else (abs, min, max, clamp, sin, cos,
// pow, dot, cross, normalize, reflect, refract, fract, ...) is already
// spelled the same in both.
var mslToWGSLFunction = map[string]string{
	"rsqrt": "inverseSqrt", "dfdx": "dpdx", "dfdy": "dpdy",
}

func (p *parser) rewriteCall(name string, args []wgsl.Expr, start token) (wgsl.Expr, error) {
	if renamed, ok := mslToWGSLFunction[name]; ok {
		name = renamed
	}
	return &wgsl.CallExpr{Func: &wgsl.Ident{Name: name, Span: spanAt(start)}, Args: args, Span: spanAt(start)}, nil
}
