// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package msl

import (
	"fmt"
	"testing"

	"github.com/shaderlab/ssair/ir"
	"github.com/shaderlab/ssair/wgsl"
)

func TestParse_BufferParamBecomesGlobal(t *testing.T) {
	src := `
kernel void main0(device float* values [[buffer(0)]],
                   uint id [[thread_position_in_grid]]) {
    values[id] = 1.0;
}
`
	module, err := Lower(src)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	var global *ir.GlobalVariable
	for i, g := range module.Globals() {
		if g.Name == "values" {
			global = &module.Globals()[i]
		}
	}
	if global == nil {
		t.Fatalf("no global named %q found", "values")
	}
	if global.Space != ir.SpaceStorage {
		t.Errorf("values.Space = %v, want SpaceStorage", global.Space)
	}
	if global.Binding == nil || global.Binding.Group != 0 || global.Binding.Binding != 0 {
		t.Fatalf("values.Binding = %+v, want {Group:0 Binding:0}", global.Binding)
	}
}

func TestParse_StageInStructMembersCarryBindings(t *testing.T) {
	src := `
struct VertexIn {
    float3 position [[attribute(0)]];
    float3 normal [[attribute(1)]];
};

vertex float4 main0(VertexIn in [[stage_in]]) {
    return float4(in.position, 1.0);
}
`
	ast, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	var found *wgsl.StructDecl
	for _, s := range ast.Structs {
		if s.Name == "VertexIn" {
			found = s
		}
	}
	if found == nil {
		t.Fatalf("no struct named %q found", "VertexIn")
	}
	if len(found.Members) != 2 {
		t.Fatalf("len(Members) = %d, want 2", len(found.Members))
	}
	for i, want := range []uint32{0, 1} {
		m := found.Members[i]
		if len(m.Attributes) != 1 || m.Attributes[0].Name != "location" {
			t.Fatalf("member %d attributes = %+v, want a single location attribute", i, m.Attributes)
		}
		lit, ok := m.Attributes[0].Args[0].(*wgsl.Literal)
		if !ok || lit.Value != fmt.Sprintf("%d", want) {
			t.Errorf("member %d location = %+v, want %d", i, m.Attributes[0].Args[0], want)
		}
	}

	var main0 *wgsl.FunctionDecl
	for _, fn := range ast.Functions {
		if fn.Name == "main0" {
			main0 = fn
		}
	}
	if main0 == nil {
		t.Fatalf("no function named %q found", "main0")
	}
	if len(main0.Params) != 1 || main0.Params[0].Name != "in" {
		t.Fatalf("main0.Params = %+v, want a single 'in' parameter", main0.Params)
	}
	hasVertexAttr := false
	for _, a := range main0.Attributes {
		if a.Name == "vertex" {
			hasVertexAttr = true
		}
	}
	if !hasVertexAttr {
		t.Errorf("main0 is missing a vertex stage attribute")
	}
}

func TestParse_KernelStageDetected(t *testing.T) {
	src := `
kernel void compute_main(uint id [[thread_position_in_grid]]) {
    return;
}
`
	ast, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	found := false
	for _, fn := range ast.Functions {
		if fn.Name != "compute_main" {
			continue
		}
		for _, a := range fn.Attributes {
			if a.Name == "compute" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("compute_main is missing a compute stage attribute")
	}
}

func TestParse_TernaryRewritesToSelect(t *testing.T) {
	src := `
float pick(float a, float b, bool cond) {
    return cond ? a : b;
}
`
	ast, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	for _, fn := range ast.Functions {
		if fn.Name != "pick" {
			continue
		}
		if len(fn.Body.Statements) != 1 {
			t.Fatalf("len(pick body) = %d, want 1", len(fn.Body.Statements))
		}
		ret, ok := fn.Body.Statements[0].(*wgsl.ReturnStmt)
		if !ok {
			t.Fatalf("pick body[0] = %T, want *wgsl.ReturnStmt", fn.Body.Statements[0])
		}
		call, ok := ret.Value.(*wgsl.CallExpr)
		if !ok || call.Func.Name != "select" {
			t.Fatalf("return value = %#v, want a select(...) call", ret.Value)
		}
		if len(call.Args) != 3 {
			t.Fatalf("len(select args) = %d, want 3", len(call.Args))
		}
	}
}

func TestParse_DoWhileDesugarsToLoop(t *testing.T) {
	src := `
void helper() {
    int i = 0;
    do {
        i = i + 1;
    } while (i < 4);
}
`
	_, err := Lower(src)
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
}

func TestParse_TextureSampleMethodRewrite(t *testing.T) {
	src := `
fragment float4 main0(texture2d<float> tex [[texture(0)]], sampler samp [[sampler(0)]]) {
    float2 uv = float2(0.0, 0.0);
    return tex.sample(samp, uv);
}
`
	ast, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	var main0 *wgsl.FunctionDecl
	for _, fn := range ast.Functions {
		if fn.Name == "main0" {
			main0 = fn
		}
	}
	if main0 == nil {
		t.Fatalf("no function named %q found", "main0")
	}
	last := main0.Body.Statements[len(main0.Body.Statements)-1]
	ret, ok := last.(*wgsl.ReturnStmt)
	if !ok {
		t.Fatalf("last statement = %T, want *wgsl.ReturnStmt", last)
	}
	call, ok := ret.Value.(*wgsl.CallExpr)
	if !ok || call.Func.Name != "textureSample" {
		t.Fatalf("return value = %#v, want a textureSample(...) call", ret.Value)
	}
	if len(call.Args) != 3 {
		t.Fatalf("len(textureSample args) = %d, want 3 (tex, samp, uv)", len(call.Args))
	}
}
