package wgsl

import (
	"testing"

	"github.com/shaderlab/ssair/ir"
)

// parseWGSL is a helper to parse WGSL source code
func parseWGSL(source string) (*Module, error) {
	lexer := NewLexer(source)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, err
	}
	parser := NewParser(tokens)
	return parser.Parse()
}

func TestTypeDeduplication(t *testing.T) {
	source := `
		struct Vertex {
			position: vec4<f32>,
			color: vec4<f32>,
		}

		@vertex
		fn main(v: Vertex) -> @builtin(position) vec4<f32> {
			return v.position;
		}
	`

	ast, err := parseWGSL(source)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	module, err := Lower(ast)
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}

	// Built-ins: bool, i32, u32, f32, f16 (5), plus vec4<f32> and Vertex.
	want := 7
	if got := len(module.Types()); got != want {
		t.Errorf("expected %d unique types, got %d", want, got)
		for i, typ := range module.Types() {
			t.Logf("Type %d: %s (%T)", i, typ.Name, typ.Inner)
		}
	}

	vec4Count := 0
	for _, typ := range module.Types() {
		if vec, ok := typ.Inner.(ir.VectorType); ok {
			if vec.Size == ir.Vec4 && vec.Scalar.Kind == ir.ScalarFloat {
				vec4Count++
			}
		}
	}
	if vec4Count != 1 {
		t.Errorf("expected vec4<f32> to appear exactly once, got %d occurrences", vec4Count)
	}
}

func TestTypeDeduplicationMultipleStructs(t *testing.T) {
	source := `
		struct A {
			x: vec4<f32>,
		}

		struct B {
			y: vec4<f32>,
		}

		@vertex
		fn main() -> @builtin(position) vec4<f32> {
			return vec4<f32>(0.0, 0.0, 0.0, 1.0);
		}
	`

	ast, err := parseWGSL(source)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	module, err := Lower(ast)
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}

	// Built-ins (5) + vec4<f32> + A + B.
	want := 8
	if got := len(module.Types()); got != want {
		t.Errorf("expected %d unique types, got %d", want, got)
		for i, typ := range module.Types() {
			t.Logf("Type %d: %s (%T)", i, typ.Name, typ.Inner)
		}
	}

	vec4Count := 0
	for _, typ := range module.Types() {
		if vec, ok := typ.Inner.(ir.VectorType); ok {
			if vec.Size == ir.Vec4 && vec.Scalar.Kind == ir.ScalarFloat {
				vec4Count++
			}
		}
	}
	if vec4Count != 1 {
		t.Errorf("expected vec4<f32> to appear exactly once, got %d occurrences", vec4Count)
	}
}

func TestTypeDeduplicationMatrices(t *testing.T) {
	source := `
		struct Transforms {
			model: mat4x4<f32>,
			view: mat4x4<f32>,
			projection: mat4x4<f32>,
		}

		@vertex
		fn main() -> @builtin(position) vec4<f32> {
			return vec4<f32>(0.0, 0.0, 0.0, 1.0);
		}
	`

	ast, err := parseWGSL(source)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	module, err := Lower(ast)
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}

	mat4Count := 0
	for _, typ := range module.Types() {
		if mat, ok := typ.Inner.(ir.MatrixType); ok {
			if mat.Columns == ir.Vec4 && mat.Rows == ir.Vec4 && mat.Scalar.Kind == ir.ScalarFloat {
				mat4Count++
			}
		}
	}
	if mat4Count != 1 {
		t.Errorf("expected mat4x4<f32> to appear exactly once, got %d occurrences", mat4Count)
	}
}
