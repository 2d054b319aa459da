// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"

	"github.com/shaderlab/ssair/ir"
	"github.com/shaderlab/ssair/wgsl"
)

// Stage selects the pipeline stage a parsed GLSL module's "main" function
// is compiled as. GLSL itself carries no @vertex/@fragment attribute
// syntax, so unlike the WGSL front end this has to be supplied by the
// caller, the same way glslangValidator takes a -fshader-stage flag.
type Stage = ir.ShaderStage

// Stage values, re-exported from ir for callers that only import glsl.
const (
	StageVertex   = ir.StageVertex
	StageFragment = ir.StageFragment
	StageCompute  = ir.StageCompute
)

// Parse lexes and parses GLSL 450 (Vulkan dialect) source into a
// *wgsl.Module and synthesizes main's entry-point formation (parameter
// list, return type, and built-in/location bindings) from its global
// in/out variables and any gl_* built-ins it references.
func Parse(source string, stage Stage) (*wgsl.Module, error) {
	toks, err := newLexer(source).tokenize()
	if err != nil {
		return nil, err
	}
	pr := newParser(toks)
	module, err := pr.parseModule()
	if err != nil {
		return nil, fmt.Errorf("glsl: %w", err)
	}
	if err := synthesizeEntryPoint(module, stage, pr.workgroupSize); err != nil {
		return nil, fmt.Errorf("glsl: %w", err)
	}
	return module, nil
}

// Lower parses and lowers GLSL source straight to the IR.
func Lower(source string, stage Stage) (*ir.Module, error) {
	module, err := Parse(source, stage)
	if err != nil {
		return nil, err
	}
	return wgsl.LowerWithSource(module, source)
}

// glslBuiltin describes one of GLSL's implicit gl_* built-in variables:
// its IR builtin attribute name, the WGSL-shaped type it carries, and
// whether it crosses the pipeline boundary as a stage input or output.
type glslBuiltin struct {
	attr      string
	typeName  string
	scalar    string // "" for non-vector scalar types
	direction string // "in" or "out"
}

var globalBuiltins = map[string]glslBuiltin{
	"gl_Position":             {attr: "position", typeName: "vec4", scalar: "f32", direction: "out"},
	"gl_FragCoord":            {attr: "position", typeName: "vec4", scalar: "f32", direction: "in"},
	"gl_FragDepth":            {attr: "frag_depth", typeName: "f32", direction: "out"},
	"gl_VertexIndex":          {attr: "vertex_index", typeName: "u32", direction: "in"},
	"gl_VertexID":             {attr: "vertex_index", typeName: "u32", direction: "in"},
	"gl_InstanceIndex":        {attr: "instance_index", typeName: "u32", direction: "in"},
	"gl_InstanceID":           {attr: "instance_index", typeName: "u32", direction: "in"},
	"gl_FrontFacing":          {attr: "front_facing", typeName: "bool", direction: "in"},
	"gl_GlobalInvocationID":   {attr: "global_invocation_id", typeName: "vec3", scalar: "u32", direction: "in"},
	"gl_LocalInvocationID":    {attr: "local_invocation_id", typeName: "vec3", scalar: "u32", direction: "in"},
	"gl_LocalInvocationIndex": {attr: "local_invocation_index", typeName: "u32", direction: "in"},
	"gl_WorkGroupID":          {attr: "workgroup_id", typeName: "vec3", scalar: "u32", direction: "in"},
	"gl_NumWorkGroups":        {attr: "num_workgroups", typeName: "vec3", scalar: "u32", direction: "in"},
	"gl_SampleID":             {attr: "sample_index", typeName: "i32", direction: "in"},
}

func (b glslBuiltin) toType() wgsl.Type {
	if b.scalar == "" {
		return &wgsl.NamedType{Name: b.typeName}
	}
	return &wgsl.NamedType{Name: b.typeName, TypeParams: []wgsl.Type{&wgsl.NamedType{Name: b.scalar}}}
}

func builtinAttr(name string) wgsl.Attribute {
	return wgsl.Attribute{Name: "builtin", Args: []wgsl.Expr{&wgsl.Ident{Name: name}}}
}

func stageAttrName(stage Stage) string {
	switch stage {
	case ir.StageVertex:
		return "vertex"
	case ir.StageFragment:
		return "fragment"
	default:
		return "compute"
	}
}

// synthesizeEntryPoint rewrites module's "main" function so its global
// in/out variables (explicit GLSL `in`/`out` declarations, plus any
// referenced gl_* built-ins) become entry-point-bound parameters and a
// return type/struct, the form the WGSL lowering pipeline expects per
// the "Entry-point formation" algorithm every front end follows. Helper
// functions that touch the same globals directly (rather than through
// main) are outside this rewrite's reach — GLSL shaders overwhelmingly
// inline pipeline I/O into main, so this covers the common case.
func synthesizeEntryPoint(module *wgsl.Module, stage Stage, workgroup [3]uint32) error {
	var main *wgsl.FunctionDecl
	for _, fn := range module.Functions {
		if fn.Name == "main" {
			main = fn
			break
		}
	}
	if main == nil {
		return fmt.Errorf("no main() function found")
	}

	var remaining []*wgsl.VarDecl
	var ins, outs []*wgsl.VarDecl
	for _, v := range module.GlobalVars {
		switch v.AddressSpace {
		case "input":
			ins = append(ins, v)
		case "output":
			outs = append(outs, v)
		default:
			remaining = append(remaining, v)
		}
	}
	module.GlobalVars = remaining

	referenced := make(map[string]bool)
	collectIdentNames(main.Body, referenced)
	declared := make(map[string]bool)
	for _, v := range ins {
		declared[v.Name] = true
	}
	for _, v := range outs {
		declared[v.Name] = true
	}
	for name := range referenced {
		b, ok := globalBuiltins[name]
		if !ok || declared[name] {
			continue
		}
		v := &wgsl.VarDecl{Name: name, Type: b.toType(), Attributes: []wgsl.Attribute{builtinAttr(b.attr)}}
		if b.direction == "in" {
			v.AddressSpace = "input"
			ins = append(ins, v)
		} else {
			v.AddressSpace = "output"
			outs = append(outs, v)
		}
		declared[name] = true
	}

	for _, v := range ins {
		main.Params = append(main.Params, &wgsl.Parameter{Name: v.Name, Type: v.Type, Attributes: v.Attributes})
	}

	var prelude []wgsl.Stmt
	for _, v := range outs {
		prelude = append(prelude, &wgsl.VarDecl{Name: v.Name, Type: v.Type, AddressSpace: "function"})
	}
	main.Body.Statements = append(prelude, main.Body.Statements...)

	switch len(outs) {
	case 0:
		main.ReturnType = nil
	case 1:
		main.ReturnType = outs[0].Type
		main.ReturnAttrs = outs[0].Attributes
		main.Body.Statements = append(main.Body.Statements, &wgsl.ReturnStmt{Value: &wgsl.Ident{Name: outs[0].Name}})
	default:
		structName := "MainOutput"
		members := make([]*wgsl.StructMember, 0, len(outs))
		args := make([]wgsl.Expr, 0, len(outs))
		for _, v := range outs {
			members = append(members, &wgsl.StructMember{Name: v.Name, Type: v.Type, Attributes: v.Attributes})
			args = append(args, &wgsl.Ident{Name: v.Name})
		}
		module.Structs = append(module.Structs, &wgsl.StructDecl{Name: structName, Members: members})
		main.ReturnType = &wgsl.NamedType{Name: structName}
		main.Body.Statements = append(main.Body.Statements, &wgsl.ReturnStmt{
			Value: &wgsl.ConstructExpr{Type: &wgsl.NamedType{Name: structName}, Args: args},
		})
	}

	main.Attributes = append(main.Attributes, wgsl.Attribute{Name: stageAttrName(stage)})
	if stage == ir.StageCompute {
		main.Attributes = append(main.Attributes, wgsl.Attribute{Name: "workgroup_size", Args: []wgsl.Expr{
			uintLiteral(workgroup[0]), uintLiteral(workgroup[1]), uintLiteral(workgroup[2]),
		}})
	}
	return nil
}

func uintLiteral(v uint32) wgsl.Expr {
	return &wgsl.Literal{Kind: wgsl.TokenIntLiteral, Value: fmt.Sprintf("%d", v)}
}

// collectIdentNames walks stmt collecting every referenced identifier
// name, the same shape as the WGSL lowerer's own collectIdentsStmt/
// collectIdentsExpr (unexported there), used here to notice which gl_*
// built-ins a GLSL main() actually touches.
func collectIdentNames(s wgsl.Stmt, out map[string]bool) {
	switch n := s.(type) {
	case *wgsl.BlockStmt:
		for _, stmt := range n.Statements {
			collectIdentNames(stmt, out)
		}
	case *wgsl.IfStmt:
		collectExprIdents(n.Condition, out)
		collectIdentNames(n.Body, out)
		if n.Else != nil {
			collectIdentNames(n.Else, out)
		}
	case *wgsl.ForStmt:
		if n.Init != nil {
			collectIdentNames(n.Init, out)
		}
		if n.Condition != nil {
			collectExprIdents(n.Condition, out)
		}
		if n.Update != nil {
			collectIdentNames(n.Update, out)
		}
		collectIdentNames(n.Body, out)
	case *wgsl.WhileStmt:
		collectExprIdents(n.Condition, out)
		collectIdentNames(n.Body, out)
	case *wgsl.LoopStmt:
		collectIdentNames(n.Body, out)
		if n.Continuing != nil {
			collectIdentNames(n.Continuing, out)
		}
	case *wgsl.ReturnStmt:
		if n.Value != nil {
			collectExprIdents(n.Value, out)
		}
	case *wgsl.AssignStmt:
		collectExprIdents(n.Left, out)
		collectExprIdents(n.Right, out)
	case *wgsl.ExprStmt:
		collectExprIdents(n.Expr, out)
	case *wgsl.VarDecl:
		if n.Init != nil {
			collectExprIdents(n.Init, out)
		}
	case *wgsl.ConstDecl:
		if n.Init != nil {
			collectExprIdents(n.Init, out)
		}
	case *wgsl.SwitchStmt:
		collectExprIdents(n.Selector, out)
		for _, c := range n.Cases {
			collectIdentNames(c.Body, out)
		}
	}
}

func collectExprIdents(e wgsl.Expr, out map[string]bool) {
	switch n := e.(type) {
	case *wgsl.Ident:
		out[n.Name] = true
	case *wgsl.BinaryExpr:
		collectExprIdents(n.Left, out)
		collectExprIdents(n.Right, out)
	case *wgsl.UnaryExpr:
		collectExprIdents(n.Operand, out)
	case *wgsl.CallExpr:
		for _, a := range n.Args {
			collectExprIdents(a, out)
		}
	case *wgsl.IndexExpr:
		collectExprIdents(n.Expr, out)
		collectExprIdents(n.Index, out)
	case *wgsl.MemberExpr:
		collectExprIdents(n.Expr, out)
	case *wgsl.ConstructExpr:
		for _, a := range n.Args {
			collectExprIdents(a, out)
		}
	case *wgsl.BitcastExpr:
		collectExprIdents(n.Expr, out)
	}
}
