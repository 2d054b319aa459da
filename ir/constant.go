package ir

// Constant is a module-scope constant value: a scalar literal, a composite
// built from other constants, a zero value, or a pipeline-overridable
// specialization constant. Like GlobalVariable, its own ID is the operand
// used to reference it — there is no wrapping "load constant" instruction.
type Constant struct {
	ID   ID
	Name string
	Type TypeHandle
	Value ConstantValue

	// IsOverride and SpecID mark a WGSL `override` / GLSL specialization
	// constant: its value may be replaced at pipeline-creation time
	// without recompiling the shader, so back-ends must emit it as a
	// specialization constant (SPIR-V OpSpecConstant, decorated with
	// SpecID) rather than folding it into the constant pool.
	IsOverride bool
	SpecID     uint32
}

// ConstantValue is the closed set of ways a Constant's bit pattern can be
// described.
type ConstantValue interface {
	constantValue()
}

// ScalarValue stores the constant's bits in a canonical 64-bit slot
// regardless of Kind/width: floats are stored via math.Float64bits-style
// reinterpretation, narrower ints are sign- or zero-extended.
type ScalarValue struct {
	Bits uint64
	Kind ScalarKind
}

func (ScalarValue) constantValue() {}

// CompositeValue is a vector, matrix, array or struct constant built from
// other constants already present in the module.
type CompositeValue struct {
	Components []ConstantHandle
}

func (CompositeValue) constantValue() {}

// NullValue is the zero value of its type: `vec4<f32>()` or a
// default-initialized struct/array. Kept distinct from CompositeValue of
// all-zero components so the interner and back-ends can recognize and emit
// it in one shot (OpConstantNull) instead of materializing every member.
type NullValue struct{}

func (NullValue) constantValue() {}
