package ir

// TypeOf computes the TypeHandle of every value a Function produces —
// arguments, locals (as pointers) and every instruction result — by
// walking its blocks once in construction order. A front end tracks this
// incrementally as it lowers (see the wgsl package's own valueTypes side
// table); a back end that only ever reads an already-built Module needs
// the same information after the fact, and this is that computation,
// shared so spirv/msl/glsl don't each reimplement it.
//
// Construction order guarantees every operand of an instruction was
// already assigned a type earlier in this same walk: a value can only be
// used after it is produced, function arguments/locals/globals/constants
// are typed before any block runs, and block order never requires a
// forward value reference (only forward block-label references, which
// TypeOf does not need).
//
// in is used to recover or mint the TypeHandle for a type shape implied
// structurally by an instruction (a vector's scalar component, a matrix's
// column vector, a pointer to an access-chain result) — these always
// intern to a type that either already exists in the module or is
// trivially derivable from one that does.
func TypeOf(in *Interner, fn *Function) map[ValueHandle]TypeHandle {
	t := &typer{in: in, module: in.Module(), types: make(map[ValueHandle]TypeHandle)}
	for _, arg := range fn.Arguments {
		t.types[arg.ID] = arg.Type
	}
	for _, local := range fn.Locals {
		t.types[local.ID] = in.InternType("", PointerType{Base: local.Type, Space: SpaceFunction})
	}
	for _, blk := range fn.Blocks {
		for _, inst := range blk.Instructions {
			if inst.Result == NoID {
				continue
			}
			t.types[inst.Result] = t.typeOfInst(inst.Kind)
		}
	}
	return t.types
}

type typer struct {
	in     *Interner
	module *Module
	types  map[ValueHandle]TypeHandle
}

func (t *typer) valueType(v ValueHandle) TypeHandle {
	if h, ok := t.types[v]; ok {
		return h
	}
	if c, ok := t.module.Constant(v); ok {
		return c.Type
	}
	if g, ok := t.module.Global(v); ok {
		return g.Type
	}
	return NoID
}

func (t *typer) inner(h TypeHandle) (TypeInner, bool) {
	ty, ok := t.module.Type(h)
	if !ok {
		return nil, false
	}
	return ty.Inner, true
}

func (t *typer) pointeeOf(h TypeHandle) TypeHandle {
	inner, ok := t.inner(h)
	if !ok {
		return NoID
	}
	ptr, ok := inner.(PointerType)
	if !ok {
		return NoID
	}
	return ptr.Base
}

func (t *typer) spaceOf(h TypeHandle) AddressSpace {
	inner, ok := t.inner(h)
	if !ok {
		return SpaceFunction
	}
	ptr, ok := inner.(PointerType)
	if !ok {
		return SpaceFunction
	}
	return ptr.Space
}

// accessedType returns the element type produced by indexing into base
// (a composite, not a pointer): the array element, the vector's scalar,
// or a matrix's column vector. idx is used only for struct member access.
func (t *typer) accessedType(baseType TypeHandle, idx uint32) TypeHandle {
	inner, ok := t.inner(baseType)
	if !ok {
		return NoID
	}
	switch it := inner.(type) {
	case ArrayType:
		return it.Base
	case VectorType:
		return t.in.InternType("", it.Scalar)
	case MatrixType:
		return t.in.InternType("", VectorType{Size: it.Rows, Scalar: it.Scalar})
	case StructType:
		if int(idx) < len(it.Members) {
			return it.Members[idx].Type
		}
	}
	return NoID
}

func (t *typer) typeOfInst(kind InstructionKind) TypeHandle {
	switch k := kind.(type) {
	case InstCompose:
		return k.Type
	case InstAccess:
		baseType := t.pointeeOf(t.valueType(k.Base))
		space := t.spaceOf(t.valueType(k.Base))
		elem := t.accessedType(baseType, 0)
		return t.in.InternType("", PointerType{Base: elem, Space: space})
	case InstAccessIndex:
		baseType := t.pointeeOf(t.valueType(k.Base))
		space := t.spaceOf(t.valueType(k.Base))
		elem := t.accessedType(baseType, k.Index)
		return t.in.InternType("", PointerType{Base: elem, Space: space})
	case InstExtract:
		return t.accessedType(t.valueType(k.Composite), k.Index)
	case InstExtractDynamic:
		return t.accessedType(t.valueType(k.Composite), 0)
	case InstInsert:
		return t.valueType(k.Composite)
	case InstInsertDynamic:
		return t.valueType(k.Composite)
	case InstSplat:
		inner, _ := t.inner(t.valueType(k.Value))
		scalar, _ := inner.(ScalarType)
		return t.in.InternType("", VectorType{Size: k.Size, Scalar: scalar})
	case InstShuffle:
		inner, _ := t.inner(t.valueType(k.Vector))
		vt, _ := inner.(VectorType)
		return t.in.InternType("", VectorType{Size: k.Size, Scalar: vt.Scalar})
	case InstLoad:
		return t.pointeeOf(t.valueType(k.Pointer))
	case InstArrayLength:
		return t.in.InternType("u32", ScalarType{Kind: ScalarUint, Width: 4})
	case InstUnary:
		return t.valueType(k.Value)
	case InstBinary:
		return t.typeOfBinary(k)
	case InstSelect:
		return t.valueType(k.Accept)
	case InstMath:
		return t.typeOfMath(k)
	case InstRelational:
		return t.typeOfRelational(k)
	case InstDerivative:
		return t.valueType(k.Value)
	case InstConvert:
		return t.in.InternType("", ScalarType{Kind: k.Kind, Width: k.Width})
	case InstBitcast:
		return t.in.InternType("", ScalarType{Kind: k.Kind, Width: k.Width})
	case InstCall:
		fn, ok := t.module.Function(k.Function)
		if !ok || fn.Result == nil {
			return NoID
		}
		return fn.Result.Type
	case InstImageSample:
		return t.imageSampleResultType(k.Image, k.DepthRef != NoID)
	case InstImageLoad:
		return t.imageSampleResultType(k.Image, false)
	case InstImageQuery:
		return t.typeOfImageQuery(k.Query)
	case InstAtomic:
		return t.pointeeOf(t.valueType(k.Pointer))
	default:
		return NoID
	}
}

func (t *typer) typeOfBinary(k InstBinary) TypeHandle {
	switch k.Op {
	case BinaryEqual, BinaryNotEqual, BinaryLess, BinaryLessEqual, BinaryGreater, BinaryGreaterEqual:
		return t.boolOrBoolVector(t.valueType(k.Left))
	case BinaryLogicalAnd, BinaryLogicalOr:
		return t.in.InternType("bool", ScalarType{Kind: ScalarBool, Width: 1})
	case BinaryMultiply:
		if h := t.matrixMultiplyType(k.Left, k.Right); h != NoID {
			return h
		}
	}
	if h := t.valueType(k.Left); h != NoID {
		return h
	}
	return t.valueType(k.Right)
}

// matrixMultiplyType mirrors wgsl.Lowerer.matrixMultiplyType for back ends
// that must re-derive a multiply's result shape from already-built IR
// rather than from the AST that produced it.
func (t *typer) matrixMultiplyType(left, right ValueHandle) TypeHandle {
	lInner, lok := t.inner(t.valueType(left))
	rInner, rok := t.inner(t.valueType(right))
	if !lok || !rok {
		return NoID
	}
	lm, lIsMat := lInner.(MatrixType)
	rm, rIsMat := rInner.(MatrixType)
	switch {
	case lIsMat && rIsMat:
		return t.in.InternType("", MatrixType{Columns: rm.Columns, Rows: lm.Rows, Scalar: lm.Scalar})
	case lIsMat:
		if _, rIsVec := rInner.(VectorType); rIsVec {
			return t.in.InternType("", VectorType{Size: lm.Rows, Scalar: lm.Scalar})
		}
	case rIsMat:
		if _, lIsVec := lInner.(VectorType); lIsVec {
			return t.in.InternType("", VectorType{Size: rm.Columns, Scalar: rm.Scalar})
		}
	}
	return NoID
}

func (t *typer) boolOrBoolVector(operandType TypeHandle) TypeHandle {
	boolType := t.in.InternType("bool", ScalarType{Kind: ScalarBool, Width: 1})
	inner, ok := t.inner(operandType)
	if !ok {
		return boolType
	}
	if vt, isVec := inner.(VectorType); isVec {
		return t.in.InternType("", VectorType{Size: vt.Size, Scalar: ScalarType{Kind: ScalarBool, Width: 1}})
	}
	return boolType
}

func (t *typer) typeOfMath(k InstMath) TypeHandle {
	switch k.Fun {
	case MathDot:
		inner, _ := t.inner(t.valueType(k.Args[0]))
		if vt, ok := inner.(VectorType); ok {
			return t.in.InternType("", vt.Scalar)
		}
		return t.valueType(k.Args[0])
	case MathLength, MathDistance:
		inner, _ := t.inner(t.valueType(k.Args[0]))
		if vt, ok := inner.(VectorType); ok {
			return t.in.InternType("", vt.Scalar)
		}
		return t.valueType(k.Args[0])
	case MathTranspose:
		inner, ok := t.inner(t.valueType(k.Args[0]))
		if !ok {
			return NoID
		}
		mt, ok := inner.(MatrixType)
		if !ok {
			return t.valueType(k.Args[0])
		}
		return t.in.InternType("", MatrixType{Columns: mt.Rows, Rows: mt.Columns, Scalar: mt.Scalar})
	case MathDeterminant:
		inner, _ := t.inner(t.valueType(k.Args[0]))
		if mt, ok := inner.(MatrixType); ok {
			return t.in.InternType("", mt.Scalar)
		}
		return t.valueType(k.Args[0])
	case MathCountOneBits, MathCountLeadingZeros, MathCountTrailingZeros, MathReverseBits:
		return t.valueType(k.Args[0])
	case MathPack2x16float, MathPack2x16snorm, MathPack2x16unorm, MathPack4x8snorm, MathPack4x8unorm,
		MathPack4xI8, MathPack4xU8, MathPack4xI8Clamp, MathPack4xU8Clamp:
		return t.in.InternType("u32", ScalarType{Kind: ScalarUint, Width: 4})
	case MathUnpack2x16float:
		return t.in.InternType("", VectorType{Size: Vec2, Scalar: ScalarType{Kind: ScalarFloat, Width: 4}})
	case MathUnpack2x16snorm, MathUnpack2x16unorm:
		return t.in.InternType("", VectorType{Size: Vec2, Scalar: ScalarType{Kind: ScalarFloat, Width: 4}})
	case MathUnpack4x8snorm, MathUnpack4x8unorm:
		return t.in.InternType("", VectorType{Size: Vec4, Scalar: ScalarType{Kind: ScalarFloat, Width: 4}})
	case MathUnpack4xI8:
		return t.in.InternType("", VectorType{Size: Vec4, Scalar: ScalarType{Kind: ScalarSint, Width: 4}})
	case MathUnpack4xU8:
		return t.in.InternType("", VectorType{Size: Vec4, Scalar: ScalarType{Kind: ScalarUint, Width: 4}})
	default:
		return t.valueType(k.Args[0])
	}
}

func (t *typer) typeOfRelational(k InstRelational) TypeHandle {
	switch k.Fun {
	case RelationalAll, RelationalAny:
		return t.in.InternType("bool", ScalarType{Kind: ScalarBool, Width: 1})
	default:
		return t.boolOrBoolVector(t.valueType(k.Arg))
	}
}

func (t *typer) imageSampleResultType(image ValueHandle, isDepthCompare bool) TypeHandle {
	if isDepthCompare {
		return t.in.InternType("", ScalarType{Kind: ScalarFloat, Width: 4})
	}
	inner, ok := t.inner(t.valueType(image))
	if !ok {
		return NoID
	}
	img, ok := inner.(ImageType)
	if !ok || img.Class == ImageClassDepth {
		return t.in.InternType("", ScalarType{Kind: ScalarFloat, Width: 4})
	}
	return t.in.InternType("", VectorType{Size: Vec4, Scalar: ScalarType{Kind: ScalarFloat, Width: 4}})
}

func (t *typer) typeOfImageQuery(q ImageQuery) TypeHandle {
	u32 := ScalarType{Kind: ScalarUint, Width: 4}
	switch q.(type) {
	case ImageQuerySize:
		return t.in.InternType("", VectorType{Size: Vec2, Scalar: u32})
	default:
		return t.in.InternType("u32", u32)
	}
}
