// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package msl

import (
	"fmt"
	"strings"

	"github.com/shaderlab/ssair/wgsl"
)

// parseError is a parse-time failure; like the GLSL front end, this one
// does not attempt resync past it — the same policy the WGSL front end
// falls back to for most unrecoverable token mismatches.
type parseError struct {
	message string
	line    int
	column  int
}

func (e *parseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.line, e.column, e.message)
}

// mslAttr is one parsed [[...]] attribute clause.
type mslAttr struct {
	name  string
	index *uint32
}

// parser turns an MSL token stream into a *wgsl.Module, reusing the WGSL
// AST and wgsl.Lower for everything downstream of parsing.
type parser struct {
	tokens  []token
	current int

	// resourceGlobals accumulates the global variables synthesized from
	// [[buffer(n)]]/[[texture(n)]]/[[sampler(n)]] function parameters —
	// MSL passes resource bindings as function arguments, but this IR
	// models them as module-scope globals the same way WGSL/GLSL do, so
	// each such parameter is rewritten into a global instead of being
	// added to the function's parameter list.
	resourceGlobals map[string]*wgsl.VarDecl
}

func newParser(tokens []token) *parser {
	return &parser{tokens: tokens, resourceGlobals: make(map[string]*wgsl.VarDecl)}
}

func (p *parser) parseModule() (*wgsl.Module, error) {
	module := &wgsl.Module{}
	for !p.check(tokEOF) {
		if p.check(tokUsing) {
			p.skipUsingDirective()
			continue
		}
		decl, err := p.topLevelDecl()
		if err != nil {
			return nil, err
		}
		switch d := decl.(type) {
		case *wgsl.FunctionDecl:
			module.Functions = append(module.Functions, d)
		case *wgsl.StructDecl:
			module.Structs = append(module.Structs, d)
		}
	}
	for _, g := range p.resourceGlobals {
		module.GlobalVars = append(module.GlobalVars, g)
	}
	return module, nil
}

func (p *parser) skipUsingDirective() {
	for !p.check(tokSemicolon) && !p.check(tokEOF) {
		p.advance()
	}
	p.match(tokSemicolon)
}

// topLevelDecl parses one top-level MSL declaration: a struct, or a
// (optionally vertex/fragment/kernel-qualified) function definition.
func (p *parser) topLevelDecl() (wgsl.Decl, error) {
	stage := ""
	switch {
	case p.check(tokVertex):
		stage = "vertex"
		p.advance()
	case p.check(tokFragment):
		stage = "fragment"
		p.advance()
	case p.check(tokKernel):
		stage = "compute"
		p.advance()
	}

	if p.check(tokStruct) {
		return p.structDecl()
	}

	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(tokIdent, "identifier")
	if err != nil {
		return nil, err
	}
	return p.functionDecl(stage, typ, name.lexeme)
}

func (p *parser) structDecl() (*wgsl.StructDecl, error) {
	start := p.advance() // 'struct'
	nameTok, err := p.expect(tokIdent, "struct name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLeftBrace, "{"); err != nil {
		return nil, err
	}
	var members []*wgsl.StructMember
	for !p.check(tokRightBrace) && !p.check(tokEOF) {
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		memberName, err := p.expect(tokIdent, "member name")
		if err != nil {
			return nil, err
		}
		typ, err = p.parseArraySuffix(typ)
		if err != nil {
			return nil, err
		}
		attrs, err := p.parseAttributes()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokSemicolon, ";"); err != nil {
			return nil, err
		}
		members = append(members, &wgsl.StructMember{Name: memberName.lexeme, Type: typ, Attributes: memberAttrsToWGSL(attrs)})
	}
	if _, err := p.expect(tokRightBrace, "}"); err != nil {
		return nil, err
	}
	p.match(tokSemicolon)
	return &wgsl.StructDecl{Name: nameTok.lexeme, Members: members, Span: spanAt(start)}, nil
}

// parseAttributes parses zero or more `[[name]]` / `[[name(n)]]` clauses,
// each possibly holding a comma-separated list of attributes.
func (p *parser) parseAttributes() ([]mslAttr, error) {
	var attrs []mslAttr
	for p.check(tokAttrOpen) {
		p.advance()
		for {
			nameTok, err := p.attrNameToken()
			if err != nil {
				return nil, err
			}
			a := mslAttr{name: nameTok.lexeme}
			if p.match(tokLeftParen) {
				if p.check(tokIntLiteral) {
					v := parseUintLiteral(p.peek().lexeme)
					a.index = &v
					p.advance()
				} else if p.check(tokIdent) {
					p.advance() // named constant reference; index left nil
				}
				if _, err := p.expect(tokRightParen, ")"); err != nil {
					return nil, err
				}
			}
			attrs = append(attrs, a)
			if !p.match(tokComma) {
				break
			}
		}
		if _, err := p.expect(tokAttrClose, "]]"); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

func (p *parser) attrNameToken() (token, error) {
	if p.check(tokIdent) || p.check(tokTypeName) || p.check(tokConst) {
		return p.advance(), nil
	}
	return token{}, p.errorf("expected attribute name")
}

func parseUintLiteral(s string) uint32 {
	var v uint32
	fmt.Sscanf(s, "%d", &v)
	return v
}

// memberBuiltinNames maps MSL's [[...]] builtin attribute spellings to the
// IR's builtin attribute names (the same vocabulary lower_function.go's
// builtinByName table recognizes).
var memberBuiltinNames = map[string]string{
	"position":                        "position",
	"vertex_id":                       "vertex_index",
	"instance_id":                     "instance_index",
	"front_facing":                    "front_facing",
	"sample_id":                       "sample_index",
	"thread_position_in_grid":         "global_invocation_id",
	"thread_position_in_threadgroup":  "local_invocation_id",
	"threadgroup_position_in_grid":    "workgroup_id",
	"thread_index_in_threadgroup":     "local_invocation_index",
	"threadgroups_per_grid":           "num_workgroups",
}

func memberAttrsToWGSL(attrs []mslAttr) []wgsl.Attribute {
	var out []wgsl.Attribute
	for _, a := range attrs {
		switch {
		case a.name == "color" && a.index != nil:
			out = append(out, literalAttr("location", *a.index))
		case a.name == "attribute" && a.index != nil:
			out = append(out, literalAttr("location", *a.index))
		case a.name == "user" || a.name == "stage_in":
			// consumed by the caller (struct-level stage_in / attribute
			// aliasing is handled where the attribute list is built)
		default:
			if builtinName, ok := memberBuiltinNames[a.name]; ok {
				out = append(out, wgsl.Attribute{Name: "builtin", Args: []wgsl.Expr{&wgsl.Ident{Name: builtinName}}})
			}
		}
	}
	return out
}

func literalAttr(name string, v uint32) wgsl.Attribute {
	return wgsl.Attribute{Name: name, Args: []wgsl.Expr{&wgsl.Literal{Kind: wgsl.TokenIntLiteral, Value: fmt.Sprintf("%d", v)}}}
}

func (p *parser) parseArraySuffix(typ wgsl.Type) (wgsl.Type, error) {
	for p.check(tokLeftBracket) {
		p.advance()
		var size wgsl.Expr
		if !p.check(tokRightBracket) {
			var err error
			size, err = p.expression()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(tokRightBracket, "]"); err != nil {
			return nil, err
		}
		typ = &wgsl.ArrayType{Element: typ, Size: size}
	}
	return typ, nil
}

// parseType parses an MSL type, consuming any leading address-space
// qualifier (constant/device/thread/threadgroup) and trailing pointer/
// reference marker, and any `<...>` template arguments on resource types
// (texture2d<float>, etc., which this IR flattens to a fixed f32 sample
// type the same way glslTypeToNamed does for GLSL's sampler types).
func (p *parser) parseType() (wgsl.Type, error) {
	isDevicePointee := p.check(tokDevice) || p.check(tokConstant)
	for p.check(tokConstant) || p.check(tokDevice) || p.check(tokThread) || p.check(tokThreadgroup) || p.check(tokConst) {
		p.advance()
	}
	tok := p.peek()
	var typ wgsl.Type
	switch {
	case p.check(tokTypeName):
		p.advance()
		t, err := mslTypeToNamed(tok.lexeme)
		if err != nil {
			return nil, err
		}
		typ = t
		if p.match(tokLess) {
			// Skip template arguments (texture2d<float, access::read>).
			depth := 1
			for depth > 0 && !p.check(tokEOF) {
				if p.check(tokLess) {
					depth++
				} else if p.check(tokGreater) {
					depth--
					if depth == 0 {
						p.advance()
						break
					}
				}
				p.advance()
			}
		}
	case p.check(tokIdent):
		p.advance()
		typ = &wgsl.NamedType{Name: tok.lexeme}
	default:
		return nil, p.errorf("expected a type, got %q", tok.lexeme)
	}
	isPointer := false
	for p.match(tokAmpersand) || p.match(tokStar) {
		// Reference/pointer marker: this IR doesn't model MSL's reference
		// parameters as a distinct pointer type at the surface AST level;
		// the global/parameter's own address space already captures it.
		isPointer = true
	}
	if isPointer && isDevicePointee {
		// `device T* name` is MSL's spelling of an unbounded storage
		// buffer, the same thing GLSL spells `buffer { T name[]; }` — model
		// it the same way, as a runtime-sized array, rather than a bare
		// scalar a kernel could never index.
		typ = &wgsl.ArrayType{Element: typ}
	}
	return typ, nil
}

var mslVectorBase = map[string]string{"bool": "bool", "int": "i32", "uint": "u32", "float": "f32", "half": "f32"}

func mslTypeToNamed(name string) (wgsl.Type, error) {
	switch name {
	case "void":
		return nil, nil
	case "bool":
		return &wgsl.NamedType{Name: "bool"}, nil
	case "int", "char", "short", "long":
		return &wgsl.NamedType{Name: "i32"}, nil
	case "uint", "uchar", "ushort", "ulong":
		return &wgsl.NamedType{Name: "u32"}, nil
	case "float", "half":
		return &wgsl.NamedType{Name: "f32"}, nil
	case "sampler":
		return &wgsl.NamedType{Name: "sampler"}, nil
	}
	if dim, ok := mslImageDims[name]; ok {
		return &wgsl.NamedType{Name: dim, TypeParams: []wgsl.Type{&wgsl.NamedType{Name: "f32"}}}, nil
	}
	for _, base := range []string{"bool", "int", "uint", "float", "half"} {
		for _, size := range []string{"2", "3", "4"} {
			if name == base+size {
				return &wgsl.NamedType{Name: "vec" + size, TypeParams: []wgsl.Type{&wgsl.NamedType{Name: mslVectorBase[base]}}}, nil
			}
		}
	}
	if strings.HasPrefix(name, "float") && strings.Contains(name, "x") {
		dims := strings.TrimPrefix(name, "float")
		return &wgsl.NamedType{Name: "mat" + dims, TypeParams: []wgsl.Type{&wgsl.NamedType{Name: "f32"}}}, nil
	}
	return nil, fmt.Errorf("unsupported type %q", name)
}

var mslImageDims = map[string]string{
	"texture1d": "texture_1d", "texture2d": "texture_2d", "texture2d_array": "texture_2d_array",
	"texture3d": "texture_3d", "texturecube": "texture_cube", "texturecube_array": "texture_cube_array",
	"depth2d": "texture_depth_2d", "depthcube": "texture_depth_cube",
}

// ---- helpers shared by parsing state ----

func spanAt(t token) wgsl.Span {
	return wgsl.Span{Start: wgsl.Position{Line: t.line, Column: t.column}}
}

func (p *parser) peek() token { return p.tokens[p.current] }

func (p *parser) peekAt(offset int) token {
	idx := p.current + offset
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *parser) advance() token {
	t := p.tokens[p.current]
	if p.current < len(p.tokens)-1 {
		p.current++
	}
	return t
}

func (p *parser) check(k tokenKind) bool { return p.tokens[p.current].kind == k }

func (p *parser) match(k tokenKind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.check(k) {
		return p.advance(), nil
	}
	return token{}, p.errorf("expected %s, got %q", what, p.peek().lexeme)
}

func (p *parser) errorf(format string, args ...any) error {
	tok := p.peek()
	return &parseError{message: fmt.Sprintf(format, args...), line: tok.line, column: tok.column}
}
