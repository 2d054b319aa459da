// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strings"

	"github.com/shaderlab/ssair/wgsl"
)

// parseError is a parse-time failure; the GLSL front end does not attempt
// resync past one, the same policy the WGSL front end applies to most
// unrecoverable token mismatches.
type parseError struct {
	message string
	line    int
	column  int
}

func (e *parseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.line, e.column, e.message)
}

// samplerPair records that declaring `uniform sampler2D name;` synthesized
// two IR-facing globals: the texture itself and a companion sampler. The
// parser consults this to rewrite `texture(name, ...)` calls into the
// two-argument textureSample form the IR lowering pipeline expects.
type samplerPair struct {
	textureName string
	samplerName string
}

// parser turns a GLSL 450 (Vulkan dialect) token stream into a *wgsl.Module,
// reusing the WGSL AST and wgsl.Lower for everything downstream of parsing.
type parser struct {
	tokens  []token
	current int

	samplers map[string]samplerPair

	// pendingStructs/pendingVars accumulate declarations synthesized
	// while parsing a single topLevelDecl that produces more than one
	// AST node — an interface block yields both a backing struct and an
	// instance variable, and a `sampler2D` declaration yields both the
	// texture global and its companion sampler. parseModule drains them
	// after every topLevelDecl call.
	pendingStructs []*wgsl.StructDecl
	pendingVars    []*wgsl.VarDecl

	// workgroupSize is populated by a `layout(local_size_x=N, ...) in;`
	// declaration, GLSL's only syntax for a compute shader's workgroup
	// size (it carries no function attribute for it).
	workgroupSize [3]uint32
}

func newParser(tokens []token) *parser {
	return &parser{tokens: tokens, samplers: make(map[string]samplerPair), workgroupSize: [3]uint32{1, 1, 1}}
}

func (p *parser) parseModule() (*wgsl.Module, error) {
	module := &wgsl.Module{}
	for !p.check(tokEOF) {
		if p.check(tokPrecision) {
			p.skipPrecisionStatement()
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
		case *wgsl.VarDecl:
			module.GlobalVars = append(module.GlobalVars, d)
		case *wgsl.ConstDecl:
			module.Constants = append(module.Constants, d)
		}
		module.Structs = append(module.Structs, p.pendingStructs...)
		module.GlobalVars = append(module.GlobalVars, p.pendingVars...)
		p.pendingStructs = nil
		p.pendingVars = nil
	}
	return module, nil
}

func (p *parser) skipPrecisionStatement() {
	for !p.check(tokSemicolon) && !p.check(tokEOF) {
		p.advance()
	}
	p.match(tokSemicolon)
}

// layoutQualifiers is the parsed content of a `layout(...)` qualifier list.
type layoutQualifiers struct {
	set      *uint32
	binding  *uint32
	location *uint32
	format   string
	extra    map[string]uint32 // other key=value pairs, e.g. local_size_x
}

func (p *parser) parseLayoutQualifiers() (layoutQualifiers, error) {
	var lq layoutQualifiers
	if !p.match(tokLayout) {
		return lq, nil
	}
	if _, err := p.expect(tokLeftParen, "("); err != nil {
		return lq, err
	}
	for {
		if !p.check(tokIdent) && !p.check(tokTypeName) {
			return lq, p.errorf("expected layout qualifier name")
		}
		key := p.advance().lexeme
		var value string
		if p.match(tokEqual) {
			value, _ = p.layoutValue()
		}
		switch key {
		case "set":
			v := parseUintLiteral(value)
			lq.set = &v
		case "binding":
			v := parseUintLiteral(value)
			lq.binding = &v
		case "location":
			v := parseUintLiteral(value)
			lq.location = &v
		default:
			if value == "" {
				lq.format = key
			} else {
				if lq.extra == nil {
					lq.extra = make(map[string]uint32)
				}
				lq.extra[key] = parseUintLiteral(value)
			}
		}
		if !p.match(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRightParen, ")"); err != nil {
		return lq, err
	}
	return lq, nil
}

func (p *parser) layoutValue() (string, error) {
	if p.check(tokIntLiteral) || p.check(tokIdent) || p.check(tokTypeName) {
		return p.advance().lexeme, nil
	}
	return "", p.errorf("expected layout qualifier value")
}

func parseUintLiteral(s string) uint32 {
	var v uint32
	fmt.Sscanf(s, "%d", &v)
	return v
}

// storageQualifier captures the qualifier keywords preceding a declaration:
// in/out/inout, uniform/buffer/shared, const, and interpolation (ignored
// beyond being consumed).
type storageQualifier struct {
	kind string // "in", "out", "inout", "uniform", "buffer", "shared", "const", ""
}

func (p *parser) parseStorageQualifier() storageQualifier {
	var sq storageQualifier
	for {
		switch {
		case p.match(tokFlat), p.match(tokSmooth), p.match(tokNoperspective):
			// interpolation qualifiers don't affect IR lowering here
		case p.check(tokIn):
			p.advance()
			sq.kind = "in"
		case p.check(tokOut):
			p.advance()
			sq.kind = "out"
		case p.check(tokInout):
			p.advance()
			sq.kind = "inout"
		case p.check(tokUniform):
			p.advance()
			sq.kind = "uniform"
		case p.check(tokBuffer):
			p.advance()
			sq.kind = "buffer"
		case p.check(tokShared):
			p.advance()
			sq.kind = "shared"
		case p.check(tokConst):
			p.advance()
			sq.kind = "const"
		default:
			return sq
		}
	}
}

func addressSpaceForQualifier(kind string) string {
	switch kind {
	case "uniform":
		return "uniform"
	case "buffer":
		return "storage"
	case "shared":
		return "workgroup"
	case "in":
		return "input"
	case "out":
		return "output"
	default:
		return ""
	}
}

// topLevelDecl parses one top-level GLSL declaration: an interface block,
// a plain struct, a global variable (with optional layout/storage
// qualifiers), or a function definition.
func (p *parser) topLevelDecl() (wgsl.Decl, error) {
	lq, err := p.parseLayoutQualifiers()
	if err != nil {
		return nil, err
	}
	sq := p.parseStorageQualifier()

	if sq.kind == "in" && p.check(tokSemicolon) {
		p.advance()
		if v, ok := lq.extra["local_size_x"]; ok {
			p.workgroupSize[0] = v
		}
		if v, ok := lq.extra["local_size_y"]; ok {
			p.workgroupSize[1] = v
		}
		if v, ok := lq.extra["local_size_z"]; ok {
			p.workgroupSize[2] = v
		}
		return nil, nil
	}

	if p.check(tokStruct) {
		return p.structOrInterfaceBlock(lq, sq)
	}

	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(tokIdent, "identifier")
	if err != nil {
		return nil, err
	}

	if p.check(tokLeftParen) {
		return p.functionDecl(typ, name.lexeme)
	}

	return p.globalVarTail(lq, sq, typ, name.lexeme)
}

func (p *parser) structOrInterfaceBlock(lq layoutQualifiers, sq storageQualifier) (wgsl.Decl, error) {
	start := p.peek()
	p.advance() // 'struct'
	nameTok, err := p.expect(tokIdent, "struct name")
	if err != nil {
		return nil, err
	}
	members, err := p.structMembers()
	if err != nil {
		return nil, err
	}
	structDecl := &wgsl.StructDecl{Name: nameTok.lexeme, Members: members, Span: spanAt(start)}

	// A bare `struct Foo { ... };` with no trailing instance name and no
	// storage qualifier is an ordinary type declaration.
	if sq.kind == "" && !p.check(tokIdent) {
		if _, err := p.expect(tokSemicolon, ";"); err != nil {
			return nil, err
		}
		return structDecl, nil
	}

	// Interface block: `layout(...) uniform Name { members } instance;`
	instTok, err := p.expect(tokIdent, "interface block instance name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemicolon, ";"); err != nil {
		return nil, err
	}

	p.pendingStructs = append(p.pendingStructs, structDecl)

	v := &wgsl.VarDecl{
		Name:         instTok.lexeme,
		Type:         &wgsl.NamedType{Name: structDecl.Name},
		AddressSpace: addressSpaceForQualifier(sq.kind),
		Attributes:   resourceAttributes(lq),
		Span:         spanAt(start),
	}
	p.pendingVars = append(p.pendingVars, v)
	return nil, nil
}

func resourceAttributes(lq layoutQualifiers) []wgsl.Attribute {
	var attrs []wgsl.Attribute
	if lq.set != nil {
		attrs = append(attrs, literalAttr("group", *lq.set))
	}
	if lq.binding != nil {
		attrs = append(attrs, literalAttr("binding", *lq.binding))
	}
	if lq.location != nil {
		attrs = append(attrs, literalAttr("location", *lq.location))
	}
	return attrs
}

func literalAttr(name string, v uint32) wgsl.Attribute {
	return wgsl.Attribute{Name: name, Args: []wgsl.Expr{&wgsl.Literal{Kind: wgsl.TokenIntLiteral, Value: fmt.Sprintf("%d", v)}}}
}

func (p *parser) structMembers() ([]*wgsl.StructMember, error) {
	if _, err := p.expect(tokLeftBrace, "{"); err != nil {
		return nil, err
	}
	var members []*wgsl.StructMember
	for !p.check(tokRightBrace) && !p.check(tokEOF) {
		lq, err := p.parseLayoutQualifiers()
		if err != nil {
			return nil, err
		}
		p.parseStorageQualifier() // interpolation qualifiers inside a block
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		nameTok, err := p.expect(tokIdent, "member name")
		if err != nil {
			return nil, err
		}
		typ, err = p.parseArraySuffix(typ)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokSemicolon, ";"); err != nil {
			return nil, err
		}
		members = append(members, &wgsl.StructMember{Name: nameTok.lexeme, Type: typ, Attributes: resourceAttributes(lq)})
	}
	if _, err := p.expect(tokRightBrace, "}"); err != nil {
		return nil, err
	}
	return members, nil
}

func (p *parser) globalVarTail(lq layoutQualifiers, sq storageQualifier, typ wgsl.Type, name string) (wgsl.Decl, error) {
	typ, err := p.parseArraySuffix(typ)
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

	if sq.kind == "const" {
		return &wgsl.ConstDecl{Name: name, Type: typ, Init: init}, nil
	}

	if named, ok := typ.(*wgsl.NamedType); ok {
		if dim, isSampler := samplerDims[named.Name]; isSampler {
			samplerName := name + "_sampler"
			p.samplers[name] = samplerPair{textureName: name, samplerName: samplerName}
			p.pendingVars = append(p.pendingVars, &wgsl.VarDecl{
				Name: samplerName, Type: &wgsl.NamedType{Name: "sampler"}, AddressSpace: "",
				Attributes: companionSamplerAttrs(lq),
			})
			return &wgsl.VarDecl{
				Name: name, Type: &wgsl.NamedType{Name: dim, TypeParams: []wgsl.Type{&wgsl.NamedType{Name: "f32"}}},
				AddressSpace: "", Attributes: resourceAttributes(lq),
			}, nil
		}
	}

	return &wgsl.VarDecl{
		Name: name, Type: typ, Init: init,
		AddressSpace: addressSpaceForQualifier(sq.kind),
		Attributes:   resourceAttributes(lq),
	}, nil
}

func companionSamplerAttrs(lq layoutQualifiers) []wgsl.Attribute {
	attrs := resourceAttributes(lq)
	if lq.binding != nil {
		// The companion sampler takes the next binding slot in the same
		// group, mirroring the "%s_%s" combined-name convention the GLSL
		// back end uses for the reverse (IR -> GLSL) direction.
		next := *lq.binding + 1
		for i, a := range attrs {
			if a.Name == "binding" {
				attrs[i] = literalAttr("binding", next)
			}
		}
	}
	return attrs
}

var samplerDims = map[string]string{
	"sampler2D": "texture_2d", "sampler3D": "texture_3d", "samplerCube": "texture_cube",
	"sampler2DArray": "texture_2d_array", "samplerCubeArray": "texture_cube_array",
	"sampler2DShadow": "texture_depth_2d", "samplerCubeShadow": "texture_depth_cube",
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

func (p *parser) parseType() (wgsl.Type, error) {
	tok := p.peek()
	switch {
	case p.check(tokVoid):
		p.advance()
		return nil, nil
	case p.check(tokTypeName):
		p.advance()
		return glslTypeToNamed(tok.lexeme)
	case p.check(tokIdent):
		p.advance()
		return &wgsl.NamedType{Name: tok.lexeme}, nil
	default:
		return nil, p.errorf("expected a type, got %q", tok.lexeme)
	}
}

var vectorBaseScalar = map[byte]string{'i': "i32", 'u': "u32", 'b': "bool", 'd': "f32"}

func glslTypeToNamed(name string) (wgsl.Type, error) {
	switch name {
	case "bool":
		return &wgsl.NamedType{Name: "bool"}, nil
	case "int":
		return &wgsl.NamedType{Name: "i32"}, nil
	case "uint":
		return &wgsl.NamedType{Name: "u32"}, nil
	case "float":
		return &wgsl.NamedType{Name: "f32"}, nil
	case "double":
		return nil, fmt.Errorf("double precision is not supported")
	}
	if strings.HasPrefix(name, "image") || strings.HasPrefix(name, "sampler") {
		if dim, ok := samplerDims[name]; ok {
			return &wgsl.NamedType{Name: dim, TypeParams: []wgsl.Type{&wgsl.NamedType{Name: "f32"}}}, nil
		}
	}
	if len(name) >= 4 && strings.HasPrefix(name, "vec") {
		return &wgsl.NamedType{Name: "vec" + name[3:], TypeParams: []wgsl.Type{&wgsl.NamedType{Name: "f32"}}}, nil
	}
	if len(name) >= 5 && (strings.HasSuffix(name, "vec2") || strings.HasSuffix(name, "vec3") || strings.HasSuffix(name, "vec4")) {
		prefix := name[0]
		scalar, ok := vectorBaseScalar[prefix]
		if !ok {
			return nil, fmt.Errorf("unsupported vector type %q", name)
		}
		size := name[len(name)-1:]
		return &wgsl.NamedType{Name: "vec" + size, TypeParams: []wgsl.Type{&wgsl.NamedType{Name: scalar}}}, nil
	}
	if strings.HasPrefix(name, "mat") {
		dims := name[3:]
		if !strings.Contains(dims, "x") {
			dims = dims + "x" + dims
		}
		return &wgsl.NamedType{Name: "mat" + dims, TypeParams: []wgsl.Type{&wgsl.NamedType{Name: "f32"}}}, nil
	}
	return nil, fmt.Errorf("unsupported type %q", name)
}

// ---- helpers shared by parsing state ----

func spanAt(t token) wgsl.Span {
	return wgsl.Span{Start: wgsl.Position{Line: t.line, Column: t.column}}
}

func (p *parser) peek() token { return p.tokens[p.current] }

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
