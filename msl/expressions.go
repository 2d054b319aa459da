package msl

import (
	"fmt"
	"strings"

	"github.com/shaderlab/ssair/ir"
)

// valueText resolves a previously-defined SSA value to the text that
// refers to it: a materialized temp name, inlined expression text, a
// function argument/local name, or a global variable name.
func (w *Writer) valueText(v ir.ValueHandle) (string, error) {
	if v == ir.NoID {
		return "", nil
	}
	if name, ok := w.letNames[v]; ok {
		return name, nil
	}
	if text, ok := w.exprText[v]; ok {
		return text, nil
	}
	if name, ok := w.argNames[v]; ok {
		return name, nil
	}
	if _, ok := w.module.Global(ir.GlobalHandle(v)); ok {
		if name, ok := w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(v)}]; ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("msl: no text recorded for value %d", v)
}

func (w *Writer) valueTextList(vs []ir.ValueHandle) ([]string, error) {
	out := make([]string, len(vs))
	for i, v := range vs {
		s, err := w.valueText(v)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// bind records the rendered text for result: inlined directly at its one
// use site if it's referenced at most once, otherwise materialized into an
// `auto` binding. pure must be false for anything with a side effect
// (atomics, calls) — those always materialize so the side effect isn't
// duplicated or dropped if the value goes unused.
func (w *Writer) bind(result ir.ValueHandle, text string, pure bool) error {
	if result == ir.NoID {
		return nil
	}
	if pure && w.useCount[result] <= 1 {
		w.exprText[result] = text
		return nil
	}
	name := fmt.Sprintf("_e%d", result)
	w.letNames[result] = name
	w.writeLine("auto %s = %s;", name, text)
	return nil
}

// valueTypeInner resolves the TypeInner a value was typed with.
func (w *Writer) valueTypeInner(v ir.ValueHandle) (ir.TypeInner, bool) {
	handle, ok := w.valueTypes[v]
	if !ok {
		return nil, false
	}
	t, ok := w.module.Type(handle)
	if !ok {
		return nil, false
	}
	return t.Inner, true
}

// pointerNeedsDeref reports whether a pointer in this address space was
// declared as a raw C pointer (buffer/constant-buffer entry point
// parameters, see writeGlobalResourceParam) rather than a C++ reference,
// and so needs an explicit `*`/`(*ptr)` at every use.
func pointerNeedsDeref(space ir.AddressSpace) bool {
	switch space {
	case ir.SpaceUniform, ir.SpaceStorage, ir.SpacePushConstant:
		return true
	default:
		return false
	}
}

// derefText wraps base's text in `(*base)` when its resolved type is a
// pointer declared as a raw pointer, otherwise returns it unchanged (a
// thread/function-space pointer is a C++ reference and already aliases
// the pointee directly).
func (w *Writer) derefText(base ir.ValueHandle) (text string, isArrayWrapperBase bool, wrapperBase ir.TypeHandle, err error) {
	baseText, err := w.valueText(base)
	if err != nil {
		return "", false, 0, err
	}
	inner, ok := w.valueTypeInner(base)
	if !ok {
		return baseText, false, 0, nil
	}
	pt, ok := inner.(ir.PointerType)
	if !ok {
		return baseText, false, 0, nil
	}
	if _, wrapped := w.arrayWrappers[pt.Base]; wrapped {
		wrapperBase = pt.Base
		isArrayWrapperBase = true
	}
	if pointerNeedsDeref(pt.Space) {
		return fmt.Sprintf("(*%s)", baseText), isArrayWrapperBase, wrapperBase, nil
	}
	return baseText, isArrayWrapperBase, wrapperBase, nil
}

// structTypeOf returns the StructType a pointer-to-struct or struct-typed
// value resolves to, unwrapping one pointer level if present.
func (w *Writer) structTypeOf(v ir.ValueHandle) (ir.StructType, bool) {
	inner, ok := w.valueTypeInner(v)
	if !ok {
		return ir.StructType{}, false
	}
	if pt, ok := inner.(ir.PointerType); ok {
		base, ok := w.module.Type(pt.Base)
		if !ok {
			return ir.StructType{}, false
		}
		inner = base.Inner
	}
	st, ok := inner.(ir.StructType)
	return st, ok
}

// memberAccessText renders access to member/element index of base: a
// struct member (`.name`), an array-wrapper element (`.inner[index]`) or a
// vector/matrix/array element (`[index]`), dereferencing base first when
// its pointer was declared raw.
func (w *Writer) memberAccessText(base ir.ValueHandle, index uint32, structTypeHandle ir.TypeHandle) (string, error) {
	baseText, isWrapper, wrapperHandle, err := w.derefText(base)
	if err != nil {
		return "", err
	}
	if isWrapper {
		return fmt.Sprintf("%s.inner[%d]", baseText, index), nil
	}
	if st, ok := w.structTypeOf(base); ok && int(index) < len(st.Members) {
		handle := structTypeHandle
		if handle == ir.NoID {
			if pt, ok := func() (ir.PointerType, bool) {
				inner, _ := w.valueTypeInner(base)
				pt, ok := inner.(ir.PointerType)
				return pt, ok
			}(); ok {
				handle = pt.Base
			}
		}
		memberName := w.getName(nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(index)})
		return fmt.Sprintf("%s.%s", baseText, memberName), nil
	}
	_ = wrapperHandle
	return fmt.Sprintf("%s[%d]", baseText, index), nil
}

// dynamicAccessText renders a runtime-indexed access to base.
func (w *Writer) dynamicAccessText(base, index ir.ValueHandle) (string, error) {
	idx, err := w.valueText(index)
	if err != nil {
		return "", err
	}
	baseText, isWrapper, _, err := w.derefText(base)
	if err != nil {
		return "", err
	}
	if isWrapper {
		return fmt.Sprintf("%s.inner[%s]", baseText, idx), nil
	}
	return fmt.Sprintf("%s[%s]", baseText, idx), nil
}

// emitInstruction renders one non-terminator instruction: a statement for
// anything side-effecting, otherwise a recorded expression (inline or
// `auto` binding, see bind).
func (w *Writer) emitInstruction(inst ir.Instruction) error {
	switch k := inst.Kind.(type) {
	case ir.InstStore:
		ptrText, _, _, err := w.derefText(k.Pointer)
		if err != nil {
			return err
		}
		val, err := w.valueText(k.Value)
		if err != nil {
			return err
		}
		w.writeLine("%s = %s;", ptrText, val)
		return nil

	case ir.InstImageStore:
		return w.emitImageStoreStmt(k)

	case ir.InstBarrier:
		return w.emitBarrier(k)

	case ir.InstAtomic:
		return w.emitAtomicStmt(inst.Result, k)

	case ir.InstCall:
		return w.emitCallStmt(inst.Result, k)

	case ir.InstInsert:
		return w.emitInsert(inst.Result, k.Composite, memberOrIndexText{index: k.Index}, k.Value)

	case ir.InstInsertDynamic:
		idxText, err := w.valueText(k.Index)
		if err != nil {
			return err
		}
		return w.emitInsert(inst.Result, k.Composite, memberOrIndexText{dynamic: idxText}, k.Value)

	default:
		text, err := w.exprTextFor(inst.Kind)
		if err != nil {
			return err
		}
		return w.bind(inst.Result, text, true)
	}
}

// exprTextFor builds the expression text for every pure InstructionKind —
// side-effecting kinds (store, call, atomic, image-store, barrier) are
// handled directly in emitInstruction since they always render as their
// own statement.
//
//nolint:gocyclo,cyclop,funlen // instruction dispatch enumerates the full IR instruction set
func (w *Writer) exprTextFor(kind ir.InstructionKind) (string, error) {
	switch k := kind.(type) {
	case ir.InstCompose:
		typeName := w.writeTypeName(k.Type, StorageAccess(0))
		parts, err := w.valueTextList(k.Components)
		if err != nil {
			return "", err
		}
		useBraces := false
		isArrayWrapper := false
		if _, ok := w.arrayWrappers[k.Type]; ok {
			useBraces, isArrayWrapper = true, true
		} else if typ, ok := w.module.Type(k.Type); ok {
			if _, ok := typ.Inner.(ir.StructType); ok {
				useBraces = true
			}
		}
		if !useBraces {
			return fmt.Sprintf("%s(%s)", typeName, strings.Join(parts, ", ")), nil
		}
		if isArrayWrapper {
			return fmt.Sprintf("%s{{%s}}", typeName, strings.Join(parts, ", ")), nil
		}
		return fmt.Sprintf("%s{%s}", typeName, strings.Join(parts, ", ")), nil

	case ir.InstAccess:
		return w.dynamicAccessText(k.Base, k.Index)

	case ir.InstAccessIndex:
		return w.memberAccessText(k.Base, k.Index, ir.NoID)

	case ir.InstExtract:
		return w.memberAccessText(k.Composite, k.Index, ir.NoID)

	case ir.InstExtractDynamic:
		return w.dynamicAccessText(k.Composite, k.Index)

	case ir.InstSplat:
		val, err := w.valueText(k.Value)
		if err != nil {
			return "", err
		}
		scalar, ok := w.valueTypeInner(k.Value)
		name := "float"
		if st, isScalar := scalar.(ir.ScalarType); ok && isScalar {
			name = scalarTypeName(st)
		}
		return fmt.Sprintf("%s%s%d(%s)", Namespace, name, k.Size, val), nil

	case ir.InstShuffle:
		base, err := w.valueText(k.Vector)
		if err != nil {
			return "", err
		}
		var letters strings.Builder
		components := "xyzw"
		for i := 0; i < int(k.Size); i++ {
			letters.WriteByte(components[k.Pattern[i]])
		}
		return fmt.Sprintf("%s.%s", base, letters.String()), nil

	case ir.InstLoad:
		text, _, _, err := w.derefText(k.Pointer)
		return text, err

	case ir.InstArrayLength:
		w.needsSizesBuffer = true
		return "0 /* array length */", nil

	case ir.InstUnary:
		val, err := w.valueText(k.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s%s)", unaryOpText(k.Op), val), nil

	case ir.InstBinary:
		return w.emitBinary(k)

	case ir.InstSelect:
		cond, err := w.valueText(k.Condition)
		if err != nil {
			return "", err
		}
		accept, err := w.valueText(k.Accept)
		if err != nil {
			return "", err
		}
		reject, err := w.valueText(k.Reject)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s ? %s : %s)", cond, accept, reject), nil

	case ir.InstMath:
		return w.emitMath(k)

	case ir.InstRelational:
		arg, err := w.valueText(k.Arg)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s%s(%s)", Namespace, relationalFuncName(k.Fun), arg), nil

	case ir.InstDerivative:
		val, err := w.valueText(k.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s%s(%s)", Namespace, derivativeFuncName(k.Axis, k.Control), val), nil

	case ir.InstConvert:
		return w.emitConvert(k.Value, k.Kind, k.Width, false)

	case ir.InstBitcast:
		return w.emitConvert(k.Value, k.Kind, k.Width, true)

	case ir.InstImageSample:
		return w.emitImageSample(k)

	case ir.InstImageLoad:
		return w.emitImageLoad(k)

	case ir.InstImageQuery:
		return w.emitImageQuery(k)

	case ir.InstPhi:
		return "", fmt.Errorf("msl: phi instructions are not produced by the statement lowerer and have no structured-text form")

	default:
		return "", fmt.Errorf("msl: unhandled instruction kind %T", kind)
	}
}

func unaryOpText(op ir.UnaryOperator) string {
	switch op {
	case ir.UnaryLogicalNot:
		return "!"
	case ir.UnaryBitwiseNot:
		return "~"
	default:
		return "-"
	}
}

// emitBinary renders a binary operation, routing integer divide/modulo
// through the safe _ssir_div/_ssir_mod helpers (MSL, like C, traps on
// divide-by-zero and INT_MIN/-1 where WGSL/SPIR-V define the result).
func (w *Writer) emitBinary(k ir.InstBinary) (string, error) {
	left, err := w.valueText(k.Left)
	if err != nil {
		return "", err
	}
	right, err := w.valueText(k.Right)
	if err != nil {
		return "", err
	}

	isInt := false
	if inner, ok := w.valueTypeInner(k.Left); ok {
		scalar := inner
		if vt, ok := inner.(ir.VectorType); ok {
			scalar = vt.Scalar
		}
		if st, ok := scalar.(ir.ScalarType); ok {
			isInt = st.Kind == ir.ScalarSint || st.Kind == ir.ScalarUint
		}
	}

	switch k.Op {
	case ir.BinaryDivide:
		if isInt {
			w.needsDivHelper = true
			return fmt.Sprintf("_ssir_div(%s, %s)", left, right), nil
		}
	case ir.BinaryModulo:
		if isInt {
			w.needsModHelper = true
			return fmt.Sprintf("_ssir_mod(%s, %s)", left, right), nil
		}
	}

	return fmt.Sprintf("(%s %s %s)", left, binaryOpText(k.Op), right), nil
}

func binaryOpText(op ir.BinaryOperator) string {
	switch op {
	case ir.BinaryAdd:
		return "+"
	case ir.BinarySubtract:
		return "-"
	case ir.BinaryMultiply:
		return "*"
	case ir.BinaryDivide:
		return "/"
	case ir.BinaryModulo:
		return "%"
	case ir.BinaryEqual:
		return "=="
	case ir.BinaryNotEqual:
		return "!="
	case ir.BinaryLess:
		return "<"
	case ir.BinaryLessEqual:
		return "<="
	case ir.BinaryGreater:
		return ">"
	case ir.BinaryGreaterEqual:
		return ">="
	case ir.BinaryAnd:
		return "&"
	case ir.BinaryExclusiveOr:
		return "^"
	case ir.BinaryInclusiveOr:
		return "|"
	case ir.BinaryLogicalAnd:
		return "&&"
	case ir.BinaryLogicalOr:
		return "||"
	case ir.BinaryShiftLeft:
		return "<<"
	case ir.BinaryShiftRight:
		return ">>"
	default:
		return "+"
	}
}

func relationalFuncName(f ir.RelationalFunction) string {
	switch f {
	case ir.RelationalAny:
		return "any"
	case ir.RelationalIsNan:
		return "isnan"
	case ir.RelationalIsInf:
		return "isinf"
	default:
		return "all"
	}
}

func derivativeFuncName(axis ir.DerivativeAxis, control ir.DerivativeControl) string {
	var base string
	switch axis {
	case ir.DerivativeY:
		base = "dfdy"
	case ir.DerivativeWidth:
		return "fwidth"
	default:
		base = "dfdx"
	}
	switch control {
	case ir.DerivativeCoarse:
		return base + "_coarse"
	case ir.DerivativeFine:
		return base + "_fine"
	default:
		return base
	}
}

// mathFunctionName maps a MathFunction to its metal:: name. MSL has real
// builtins for transpose/determinant, unlike WGSL — only the outer
// product and matrix inverse have no Metal Shading Language equivalent,
// so those still route through a user-supplied _ssir_outer/_ssir_inverse
// helper, same gap WGSL has for the same two functions.
//
//nolint:gocyclo,cyclop,funlen // table lookup over the full MathFunction set
func mathFunctionName(fun ir.MathFunction) string {
	switch fun {
	case ir.MathAbs:
		return "abs"
	case ir.MathMin:
		return "min"
	case ir.MathMax:
		return "max"
	case ir.MathClamp:
		return "clamp"
	case ir.MathSaturate:
		return "saturate"
	case ir.MathCos:
		return "cos"
	case ir.MathCosh:
		return "cosh"
	case ir.MathSin:
		return "sin"
	case ir.MathSinh:
		return "sinh"
	case ir.MathTan:
		return "tan"
	case ir.MathTanh:
		return "tanh"
	case ir.MathAcos:
		return "acos"
	case ir.MathAsin:
		return "asin"
	case ir.MathAtan:
		return "atan"
	case ir.MathAtan2:
		return "atan2"
	case ir.MathAsinh:
		return "asinh"
	case ir.MathAcosh:
		return "acosh"
	case ir.MathAtanh:
		return "atanh"
	case ir.MathRadians:
		return "radians"
	case ir.MathDegrees:
		return "degrees"
	case ir.MathCeil:
		return "ceil"
	case ir.MathFloor:
		return "floor"
	case ir.MathRound:
		return "rint"
	case ir.MathFract:
		return "fract"
	case ir.MathTrunc:
		return "trunc"
	case ir.MathModf:
		return "modf"
	case ir.MathFrexp:
		return "frexp"
	case ir.MathLdexp:
		return "ldexp"
	case ir.MathExp:
		return "exp"
	case ir.MathExp2:
		return "exp2"
	case ir.MathLog:
		return "log"
	case ir.MathLog2:
		return "log2"
	case ir.MathPow:
		return "pow"
	case ir.MathDistance:
		return "distance"
	case ir.MathLength:
		return "length"
	case ir.MathNormalize:
		return "normalize"
	case ir.MathFaceForward:
		return "faceforward"
	case ir.MathReflect:
		return "reflect"
	case ir.MathRefract:
		return "refract"
	case ir.MathSign:
		return "sign"
	case ir.MathMix:
		return "mix"
	case ir.MathStep:
		return "step"
	case ir.MathSmoothStep:
		return "smoothstep"
	case ir.MathSqrt:
		return "sqrt"
	case ir.MathInverseSqrt:
		return "rsqrt"
	case ir.MathTranspose:
		return "transpose"
	case ir.MathDeterminant:
		return "determinant"
	case ir.MathQuantizeF16:
		return "quantize_f16" // no direct builtin; approximated via a half round-trip
	case ir.MathCountTrailingZeros:
		return "ctz"
	case ir.MathCountLeadingZeros:
		return "clz"
	case ir.MathCountOneBits:
		return "popcount"
	case ir.MathReverseBits:
		return "reverse_bits"
	case ir.MathExtractBits:
		return "extract_bits"
	case ir.MathInsertBits:
		return "insert_bits"
	case ir.MathFirstTrailingBit:
		return "ctz"
	case ir.MathFirstLeadingBit:
		return "clz"
	case ir.MathInverse:
		return "_ssir_inverse"
	case ir.MathOuter:
		return "_ssir_outer"
	default:
		return fmt.Sprintf("unknown_math_%d", fun)
	}
}

// emitMath renders an InstMath call. MathDot and MathCross keep their
// arity-2 shape; the rest share the generic arity-driven path.
func (w *Writer) emitMath(k ir.InstMath) (string, error) {
	switch k.Fun {
	case ir.MathDot, ir.MathCross, ir.MathOuter:
		return w.emitBinaryMath(k)
	case ir.MathFma:
		args, err := w.valueTextList(k.Args[:3])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%sfma(%s)", Namespace, strings.Join(args, ", ")), nil
	}
	args, err := w.valueTextList(k.Args[:k.Fun.Arity()])
	if err != nil {
		return "", err
	}
	name := mathFunctionName(k.Fun)
	prefix := Namespace
	if strings.HasPrefix(name, "_ssir_") {
		prefix = ""
	}
	return fmt.Sprintf("%s%s(%s)", prefix, name, strings.Join(args, ", ")), nil
}

func (w *Writer) emitBinaryMath(k ir.InstMath) (string, error) {
	name := mathFunctionName(k.Fun)
	args, err := w.valueTextList(k.Args[:k.Fun.Arity()])
	if err != nil {
		return "", err
	}
	prefix := Namespace
	if strings.HasPrefix(name, "_ssir_") {
		prefix = ""
	}
	return fmt.Sprintf("%s%s(%s)", prefix, name, strings.Join(args, ", ")), nil
}

// emitConvert renders both InstConvert (value-changing numeric
// conversion, `float3(x)`) and InstBitcast (same-bits reinterpretation,
// `as_type<float3>(x)`); both rebuild the target type at the source's
// vector width, since Kind/Width alone don't carry shape.
func (w *Writer) emitConvert(value ir.ValueHandle, kind ir.ScalarKind, width uint8, isBitcast bool) (string, error) {
	val, err := w.valueText(value)
	if err != nil {
		return "", err
	}
	inner, ok := w.valueTypeInner(value)
	if !ok {
		return "", fmt.Errorf("msl: unknown type for convert source value %d", value)
	}
	target := ir.ScalarType{Kind: kind, Width: width}

	var typeText string
	switch t := inner.(type) {
	case ir.ScalarType:
		typeText = scalarTypeName(target)
	case ir.VectorType:
		typeText = fmt.Sprintf("%s%s%d", Namespace, scalarTypeName(target), t.Size)
	default:
		return "", fmt.Errorf("msl: convert/bitcast source is neither scalar nor vector (%T)", inner)
	}
	if isBitcast {
		return fmt.Sprintf("as_type<%s>(%s)", typeText, val), nil
	}
	return fmt.Sprintf("%s(%s)", typeText, val), nil
}

func (w *Writer) emitImageSample(k ir.InstImageSample) (string, error) {
	image, err := w.valueText(k.Image)
	if err != nil {
		return "", err
	}
	sampler, err := w.valueText(k.Sampler)
	if err != nil {
		return "", err
	}
	coord, err := w.valueText(k.Coordinate)
	if err != nil {
		return "", err
	}

	fname := ".sample("
	switch {
	case k.Gather != nil:
		fname = ".gather("
	case k.DepthRef != ir.NoID:
		fname = ".sample_compare("
	}

	args := []string{sampler, coord}
	if k.ArrayIndex != ir.NoID {
		arr, err := w.valueText(k.ArrayIndex)
		if err != nil {
			return "", err
		}
		args = append(args, arr)
	}
	if k.DepthRef != ir.NoID {
		dref, err := w.valueText(k.DepthRef)
		if err != nil {
			return "", err
		}
		args = append(args, dref)
	}

	switch lvl := k.Level.(type) {
	case ir.SampleLevelAuto:
	case ir.SampleLevelZero:
		args = append(args, fmt.Sprintf("%slevel(0.0)", Namespace))
	case ir.SampleLevelExact:
		t, err := w.valueText(lvl.Level)
		if err != nil {
			return "", err
		}
		args = append(args, fmt.Sprintf("%slevel(%s)", Namespace, t))
	case ir.SampleLevelBias:
		t, err := w.valueText(lvl.Bias)
		if err != nil {
			return "", err
		}
		args = append(args, fmt.Sprintf("%sbias(%s)", Namespace, t))
	case ir.SampleLevelGradient:
		x, err := w.valueText(lvl.X)
		if err != nil {
			return "", err
		}
		y, err := w.valueText(lvl.Y)
		if err != nil {
			return "", err
		}
		args = append(args, fmt.Sprintf("%sgradient2d(%s, %s)", Namespace, x, y))
	}

	if k.Offset != ir.NoID {
		off, err := w.valueText(k.Offset)
		if err != nil {
			return "", err
		}
		args = append(args, off)
	}

	return fmt.Sprintf("%s%s%s)", image, fname, strings.Join(args, ", ")), nil
}

func (w *Writer) emitImageLoad(k ir.InstImageLoad) (string, error) {
	image, err := w.valueText(k.Image)
	if err != nil {
		return "", err
	}
	coord, err := w.valueText(k.Coordinate)
	if err != nil {
		return "", err
	}
	args := []string{fmt.Sprintf("%suint2(%s)", Namespace, coord)}
	if k.ArrayIndex != ir.NoID {
		arr, err := w.valueText(k.ArrayIndex)
		if err != nil {
			return "", err
		}
		args = append(args, arr)
	}
	if k.Sample != ir.NoID {
		s, err := w.valueText(k.Sample)
		if err != nil {
			return "", err
		}
		args = append(args, s)
	} else if k.Level != ir.NoID {
		l, err := w.valueText(k.Level)
		if err != nil {
			return "", err
		}
		args = append(args, l)
	}
	return fmt.Sprintf("%s.read(%s)", image, strings.Join(args, ", ")), nil
}

func (w *Writer) emitImageQuery(k ir.InstImageQuery) (string, error) {
	image, err := w.valueText(k.Image)
	if err != nil {
		return "", err
	}
	switch q := k.Query.(type) {
	case ir.ImageQuerySize:
		if q.Level != ir.NoID {
			l, err := w.valueText(q.Level)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s.get_width(%s)", image, l), nil
		}
		return fmt.Sprintf("%s.get_width()", image), nil
	case ir.ImageQueryNumLevels:
		return fmt.Sprintf("%s.get_num_mip_levels()", image), nil
	case ir.ImageQueryNumLayers:
		return fmt.Sprintf("%s.get_array_size()", image), nil
	case ir.ImageQueryNumSamples:
		return fmt.Sprintf("%s.get_num_samples()", image), nil
	default:
		return "", fmt.Errorf("msl: unhandled image query %T", q)
	}
}

func (w *Writer) emitImageStoreStmt(k ir.InstImageStore) error {
	image, err := w.valueText(k.Image)
	if err != nil {
		return err
	}
	coord, err := w.valueText(k.Coordinate)
	if err != nil {
		return err
	}
	val, err := w.valueText(k.Value)
	if err != nil {
		return err
	}
	args := []string{val, fmt.Sprintf("%suint2(%s)", Namespace, coord)}
	if k.ArrayIndex != ir.NoID {
		arr, err := w.valueText(k.ArrayIndex)
		if err != nil {
			return err
		}
		args = append(args, arr)
	}
	w.writeLine("%s.write(%s);", image, strings.Join(args, ", "))
	return nil
}

func (w *Writer) emitBarrier(k ir.InstBarrier) error {
	var flags []string
	if k.Flags&ir.BarrierWorkGroup != 0 {
		flags = append(flags, Namespace+"mem_flags::mem_threadgroup")
	}
	if k.Flags&(ir.BarrierStorage|ir.BarrierTexture) != 0 {
		flags = append(flags, Namespace+"mem_flags::mem_device")
	}
	if len(flags) == 0 {
		flags = append(flags, Namespace+"mem_flags::mem_none")
	}
	w.writeLine("%sthreadgroup_barrier(%s);", Namespace, strings.Join(flags, " | "))
	return nil
}

func (w *Writer) emitCallStmt(result ir.ValueHandle, k ir.InstCall) error {
	fn, ok := w.module.Function(k.Function)
	if !ok {
		return fmt.Errorf("msl: unknown function %d", k.Function)
	}
	name := ""
	if handle, ok := w.module.FunctionHandle(fn); ok {
		name = w.getName(nameKey{kind: nameKeyFunction, handle1: uint32(handle)})
	}
	args, err := w.valueTextList(k.Args)
	if err != nil {
		return err
	}
	call := fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
	if result == ir.NoID {
		w.writeLine("%s;", call)
		return nil
	}
	return w.bind(result, call, false)
}

// emitAtomicStmt renders one atomic instruction. MSL spells every atomic
// op as an explicit free function taking the memory order, unlike WGSL's
// free functions that default to relaxed ordering implicitly.
func (w *Writer) emitAtomicStmt(result ir.ValueHandle, k ir.InstAtomic) error {
	ptr, err := w.valueText(k.Pointer)
	if err != nil {
		return err
	}
	val, err := w.valueText(k.Value)
	if err != nil {
		return err
	}
	order := Namespace + "memory_order_relaxed"

	var call string
	switch fn := k.Fun.(type) {
	case ir.AtomicAdd:
		call = fmt.Sprintf("%satomic_fetch_add_explicit(&%s, %s, %s)", Namespace, ptr, val, order)
	case ir.AtomicSubtract:
		call = fmt.Sprintf("%satomic_fetch_sub_explicit(&%s, %s, %s)", Namespace, ptr, val, order)
	case ir.AtomicAnd:
		call = fmt.Sprintf("%satomic_fetch_and_explicit(&%s, %s, %s)", Namespace, ptr, val, order)
	case ir.AtomicExclusiveOr:
		call = fmt.Sprintf("%satomic_fetch_xor_explicit(&%s, %s, %s)", Namespace, ptr, val, order)
	case ir.AtomicInclusiveOr:
		call = fmt.Sprintf("%satomic_fetch_or_explicit(&%s, %s, %s)", Namespace, ptr, val, order)
	case ir.AtomicMin:
		call = fmt.Sprintf("%satomic_fetch_min_explicit(&%s, %s, %s)", Namespace, ptr, val, order)
	case ir.AtomicMax:
		call = fmt.Sprintf("%satomic_fetch_max_explicit(&%s, %s, %s)", Namespace, ptr, val, order)
	case ir.AtomicExchange:
		if fn.Compare != ir.NoID {
			cmp, err := w.valueText(fn.Compare)
			if err != nil {
				return err
			}
			resultType := "uint"
			if handle, ok := w.valueTypes[result]; ok {
				resultType = w.writeTypeName(handle, StorageAccess(0))
			}
			tmp := fmt.Sprintf("_ae%d", result)
			w.writeLine("%s %s = %s;", resultType, tmp, cmp)
			w.writeLine("%satomic_compare_exchange_weak_explicit(&%s, &%s, %s, %s, %s);", Namespace, ptr, tmp, val, order, order)
			w.letNames[result] = tmp
			return nil
		}
		call = fmt.Sprintf("%satomic_exchange_explicit(&%s, %s, %s)", Namespace, ptr, val, order)
	default:
		return fmt.Errorf("msl: unhandled atomic function %T", fn)
	}
	if result == ir.NoID {
		w.writeLine("%s;", call)
		return nil
	}
	return w.bind(result, call, false)
}

// memberOrIndexText carries either a compile-time member/element index or
// an already-rendered runtime index expression, letting emitInsert share
// one implementation between InstInsert and InstInsertDynamic.
type memberOrIndexText struct {
	index   uint32
	dynamic string
}

// emitInsert has no direct MSL expression form — there's no builtin
// "copy this composite with one member replaced" operator — so it
// materializes a throwaway local, copies the base composite into it,
// assigns the one replaced member/element, and binds the result name to
// that local: subsequent reads of the InstInsert result just read _iN.
func (w *Writer) emitInsert(result ir.ValueHandle, base ir.ValueHandle, idx memberOrIndexText, value ir.ValueHandle) error {
	baseText, err := w.valueText(base)
	if err != nil {
		return err
	}
	valText, err := w.valueText(value)
	if err != nil {
		return err
	}
	resultType := "auto"
	if handle, ok := w.valueTypes[result]; ok {
		resultType = w.writeTypeName(handle, StorageAccess(0))
	}
	tmp := fmt.Sprintf("_i%d", result)
	w.writeLine("%s %s = %s;", resultType, tmp, baseText)

	var target string
	if idx.dynamic != "" {
		target = fmt.Sprintf("%s[%s]", tmp, idx.dynamic)
	} else if st, ok := w.structTypeOf(base); ok && int(idx.index) < len(st.Members) {
		handle := w.valueTypes[base]
		memberName := w.getName(nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(idx.index)})
		target = fmt.Sprintf("%s.%s", tmp, memberName)
	} else {
		target = fmt.Sprintf("%s[%d]", tmp, idx.index)
	}
	w.writeLine("%s = %s;", target, valText)
	w.exprText[result] = tmp
	return nil
}
