package wgsl

import "github.com/shaderlab/ssair/ir"

var scalarConstructorTypes = map[string]bool{"f32": true, "i32": true, "u32": true, "bool": true, "f16": true}

func (l *Lowerer) lowerConstruct(n *ConstructExpr) ir.ValueHandle {
	typ, err := l.resolveType(n.Type)
	if err != nil {
		l.errf(n.Span, "%v", err)
		return ir.NoID
	}
	args := make([]ir.ValueHandle, 0, len(n.Args))
	for _, a := range n.Args {
		args = append(args, l.lowerExpression(a))
	}
	resolved, _ := l.builder.Module().Type(typ)
	if len(args) == 1 {
		if scalar, ok := resolved.Inner.(ir.ScalarType); ok {
			return l.emit(ir.InstConvert{Value: args[0], Kind: scalar.Kind, Width: scalar.Width}, typ)
		}
		if vt, ok := resolved.Inner.(ir.VectorType); ok {
			return l.emit(ir.InstSplat{Size: vt.Size, Value: args[0]}, typ)
		}
	}
	return l.emit(ir.InstCompose{Type: typ, Components: args}, typ)
}

var mathFunctionByName = map[string]ir.MathFunction{
	"abs": ir.MathAbs, "min": ir.MathMin, "max": ir.MathMax, "clamp": ir.MathClamp, "saturate": ir.MathSaturate,
	"cos": ir.MathCos, "cosh": ir.MathCosh, "sin": ir.MathSin, "sinh": ir.MathSinh, "tan": ir.MathTan, "tanh": ir.MathTanh,
	"acos": ir.MathAcos, "asin": ir.MathAsin, "atan": ir.MathAtan, "atan2": ir.MathAtan2,
	"asinh": ir.MathAsinh, "acosh": ir.MathAcosh, "atanh": ir.MathAtanh,
	"radians": ir.MathRadians, "degrees": ir.MathDegrees,
	"ceil": ir.MathCeil, "floor": ir.MathFloor, "round": ir.MathRound, "fract": ir.MathFract, "trunc": ir.MathTrunc,
	"modf": ir.MathModf, "frexp": ir.MathFrexp, "ldexp": ir.MathLdexp,
	"exp": ir.MathExp, "exp2": ir.MathExp2, "log": ir.MathLog, "log2": ir.MathLog2, "pow": ir.MathPow,
	"dot": ir.MathDot, "dot4I8Packed": ir.MathDot4I8Packed, "dot4U8Packed": ir.MathDot4U8Packed,
	"cross": ir.MathCross, "distance": ir.MathDistance, "length": ir.MathLength, "normalize": ir.MathNormalize,
	"faceForward": ir.MathFaceForward, "reflect": ir.MathReflect, "refract": ir.MathRefract,
	"sign": ir.MathSign, "fma": ir.MathFma, "mix": ir.MathMix, "step": ir.MathStep, "smoothstep": ir.MathSmoothStep,
	"sqrt": ir.MathSqrt, "inverseSqrt": ir.MathInverseSqrt, "inverse": ir.MathInverse,
	"transpose": ir.MathTranspose, "determinant": ir.MathDeterminant, "quantizeToF16": ir.MathQuantizeF16,
	"countTrailingZeros": ir.MathCountTrailingZeros, "countLeadingZeros": ir.MathCountLeadingZeros,
	"countOneBits": ir.MathCountOneBits, "reverseBits": ir.MathReverseBits,
	"extractBits": ir.MathExtractBits, "insertBits": ir.MathInsertBits,
	"firstTrailingBit": ir.MathFirstTrailingBit, "firstLeadingBit": ir.MathFirstLeadingBit,
	"pack4x8snorm": ir.MathPack4x8snorm, "pack4x8unorm": ir.MathPack4x8unorm,
	"pack2x16snorm": ir.MathPack2x16snorm, "pack2x16unorm": ir.MathPack2x16unorm, "pack2x16float": ir.MathPack2x16float,
	"unpack4x8snorm": ir.MathUnpack4x8snorm, "unpack4x8unorm": ir.MathUnpack4x8unorm,
	"unpack2x16snorm": ir.MathUnpack2x16snorm, "unpack2x16unorm": ir.MathUnpack2x16unorm, "unpack2x16float": ir.MathUnpack2x16float,
}

var relationalFunctionByName = map[string]ir.RelationalFunction{
	"all": ir.RelationalAll, "any": ir.RelationalAny, "isNan": ir.RelationalIsNan, "isInf": ir.RelationalIsInf,
}

func (l *Lowerer) lowerCall(n *CallExpr) ir.ValueHandle {
	name := n.Func.Name

	if scalarConstructorTypes[name] && len(n.Args) == 1 {
		value := l.lowerExpression(n.Args[0])
		typ := l.types[name]
		resolved, _ := l.builder.Module().Type(typ)
		scalar := resolved.Inner.(ir.ScalarType)
		return l.emit(ir.InstConvert{Value: value, Kind: scalar.Kind, Width: scalar.Width}, typ)
	}

	if fn, ok := mathFunctionByName[name]; ok {
		return l.lowerMathCall(fn, n)
	}
	if fn, ok := relationalFunctionByName[name]; ok {
		arg := l.lowerExpression(n.Args[0])
		return l.emit(ir.InstRelational{Fun: fn, Arg: arg}, l.types["bool"])
	}
	if axis, control, ok := derivativeFunction(name); ok {
		value := l.lowerExpression(n.Args[0])
		return l.emit(ir.InstDerivative{Axis: axis, Control: control, Value: value}, l.valueType(value))
	}

	switch name {
	case "select":
		reject := l.lowerExpression(n.Args[0])
		accept := l.lowerExpression(n.Args[1])
		cond := l.lowerExpression(n.Args[2])
		return l.emit(ir.InstSelect{Condition: cond, Accept: accept, Reject: reject}, l.valueType(accept))
	case "arrayLength":
		ptr, err := l.lowerLValue(derefArg(n.Args[0]))
		if err != nil {
			l.errf(n.Span, "%v", err)
			return ir.NoID
		}
		return l.emit(ir.InstArrayLength{Pointer: ptr}, l.types["u32"])
	case "workgroupBarrier":
		l.builder.EmitVoid(ir.InstBarrier{Flags: ir.BarrierWorkGroup})
		return ir.NoID
	case "storageBarrier":
		l.builder.EmitVoid(ir.InstBarrier{Flags: ir.BarrierStorage})
		return ir.NoID
	case "textureBarrier":
		l.builder.EmitVoid(ir.InstBarrier{Flags: ir.BarrierTexture})
		return ir.NoID
	}

	if isTextureFunction(name) {
		return l.lowerTextureCall(name, n)
	}
	if isAtomicFunction(name) {
		return l.lowerAtomicCall(name, n)
	}

	// user-defined function call
	handle, ok := l.functions[name]
	if !ok {
		if _, declared := l.functionDecls[name]; !declared {
			l.errf(n.Span, "call to undefined function %q", name)
			return ir.NoID
		}
	}
	args := make([]ir.ValueHandle, 0, len(n.Args))
	for _, a := range n.Args {
		args = append(args, l.lowerExpression(a))
	}
	var resultType ir.TypeHandle
	if decl, ok := l.functionDecls[name]; ok && decl.ReturnType != nil {
		resultType, _ = l.resolveType(decl.ReturnType)
	}
	if resultType == ir.NoID {
		l.builder.EmitVoid(ir.InstCall{Function: handle, Args: args})
		return ir.NoID
	}
	return l.emit(ir.InstCall{Function: handle, Args: args}, resultType)
}

// derefArg strips one leading `&` so `arrayLength(&buf.data)` resolves the
// lvalue `buf.data` instead of trying to take the address of an address.
func derefArg(e Expr) Expr {
	if u, ok := e.(*UnaryExpr); ok && u.Op == TokenAmpersand {
		return u.Operand
	}
	return e
}

func (l *Lowerer) lowerMathCall(fn ir.MathFunction, n *CallExpr) ir.ValueHandle {
	var args [4]ir.ValueHandle
	for i := range args {
		args[i] = ir.NoID
	}
	for i, a := range n.Args {
		if i >= 4 {
			break
		}
		args[i] = l.lowerExpression(a)
	}
	resultType := l.valueType(args[0])
	switch fn {
	case ir.MathLength, ir.MathDistance, ir.MathDot, ir.MathDot4I8Packed, ir.MathDot4U8Packed:
		resultType = l.types["f32"]
	}
	return l.emit(ir.InstMath{Fun: fn, Args: args}, resultType)
}

func derivativeFunction(name string) (ir.DerivativeAxis, ir.DerivativeControl, bool) {
	switch name {
	case "dpdx":
		return ir.DerivativeX, ir.DerivativeNone, true
	case "dpdxCoarse":
		return ir.DerivativeX, ir.DerivativeCoarse, true
	case "dpdxFine":
		return ir.DerivativeX, ir.DerivativeFine, true
	case "dpdy":
		return ir.DerivativeY, ir.DerivativeNone, true
	case "dpdyCoarse":
		return ir.DerivativeY, ir.DerivativeCoarse, true
	case "dpdyFine":
		return ir.DerivativeY, ir.DerivativeFine, true
	case "fwidth":
		return ir.DerivativeWidth, ir.DerivativeNone, true
	case "fwidthCoarse":
		return ir.DerivativeWidth, ir.DerivativeCoarse, true
	case "fwidthFine":
		return ir.DerivativeWidth, ir.DerivativeFine, true
	default:
		return 0, 0, false
	}
}

func isTextureFunction(name string) bool {
	switch name {
	case "textureSample", "textureSampleLevel", "textureSampleBias", "textureSampleCompare",
		"textureSampleGrad", "textureLoad", "textureStore", "textureDimensions",
		"textureNumLevels", "textureNumLayers", "textureNumSamples":
		return true
	default:
		return false
	}
}

func (l *Lowerer) lowerTextureCall(name string, n *CallExpr) ir.ValueHandle {
	switch name {
	case "textureSample", "textureSampleLevel", "textureSampleBias", "textureSampleCompare", "textureSampleGrad":
		return l.lowerTextureSample(name, n)
	case "textureLoad":
		return l.lowerTextureLoad(n)
	case "textureStore":
		l.lowerTextureStore(n)
		return ir.NoID
	default:
		return l.lowerTextureQuery(name, n)
	}
}

func (l *Lowerer) lowerTextureSample(name string, n *CallExpr) ir.ValueHandle {
	image := l.lowerExpression(n.Args[0])
	sampler := l.lowerExpression(n.Args[1])
	coord := l.lowerExpression(n.Args[2])
	var level ir.SampleLevel = ir.SampleLevelAuto{}
	argIdx := 3
	switch name {
	case "textureSampleLevel":
		if argIdx < len(n.Args) {
			level = ir.SampleLevelExact{Level: l.lowerExpression(n.Args[argIdx])}
			argIdx++
		}
	case "textureSampleBias":
		if argIdx < len(n.Args) {
			level = ir.SampleLevelBias{Bias: l.lowerExpression(n.Args[argIdx])}
			argIdx++
		}
	case "textureSampleGrad":
		if argIdx+1 < len(n.Args) {
			level = ir.SampleLevelGradient{X: l.lowerExpression(n.Args[argIdx]), Y: l.lowerExpression(n.Args[argIdx+1])}
			argIdx += 2
		}
	}
	var depthRef ir.ValueHandle = ir.NoID
	if name == "textureSampleCompare" && argIdx < len(n.Args) {
		depthRef = l.lowerExpression(n.Args[argIdx])
		argIdx++
	}
	imgType := l.valueType(image)
	resultType := l.samplerResultType(imgType)
	return l.emit(ir.InstImageSample{
		Image: image, Sampler: sampler, Coordinate: coord, Level: level, DepthRef: depthRef,
	}, resultType)
}

func (l *Lowerer) samplerResultType(imageType ir.TypeHandle) ir.TypeHandle {
	t, ok := l.builder.Module().Type(imageType)
	if !ok {
		return l.types["f32"]
	}
	img, ok := t.Inner.(ir.ImageType)
	if !ok {
		return l.types["f32"]
	}
	if img.Class == ir.ImageClassDepth {
		return l.types["f32"]
	}
	return l.builder.InternType("", ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}})
}

func (l *Lowerer) lowerTextureLoad(n *CallExpr) ir.ValueHandle {
	image := l.lowerExpression(n.Args[0])
	coord := l.lowerExpression(n.Args[1])
	var arrayIndex, sample, levelVal ir.ValueHandle = ir.NoID, ir.NoID, ir.NoID
	if len(n.Args) > 2 {
		levelVal = l.lowerExpression(n.Args[2])
	}
	resultType := l.samplerResultType(l.valueType(image))
	return l.emit(ir.InstImageLoad{Image: image, Coordinate: coord, ArrayIndex: arrayIndex, Sample: sample, Level: levelVal}, resultType)
}

func (l *Lowerer) lowerTextureStore(n *CallExpr) {
	image := l.lowerExpression(n.Args[0])
	coord := l.lowerExpression(n.Args[1])
	value := l.lowerExpression(n.Args[len(n.Args)-1])
	l.builder.EmitVoid(ir.InstImageStore{Image: image, Coordinate: coord, Value: value})
}

func (l *Lowerer) lowerTextureQuery(name string, n *CallExpr) ir.ValueHandle {
	image := l.lowerExpression(n.Args[0])
	var query ir.ImageQuery
	switch name {
	case "textureDimensions":
		var level ir.ValueHandle = ir.NoID
		if len(n.Args) > 1 {
			level = l.lowerExpression(n.Args[1])
		}
		query = ir.ImageQuerySize{Level: level}
	case "textureNumLevels":
		query = ir.ImageQueryNumLevels{}
	case "textureNumLayers":
		query = ir.ImageQueryNumLayers{}
	default:
		query = ir.ImageQueryNumSamples{}
	}
	return l.emit(ir.InstImageQuery{Image: image, Query: query}, l.types["u32"])
}

func isAtomicFunction(name string) bool {
	switch name {
	case "atomicLoad", "atomicStore", "atomicAdd", "atomicSub", "atomicMax", "atomicMin",
		"atomicAnd", "atomicOr", "atomicXor", "atomicExchange", "atomicCompareExchangeWeak":
		return true
	default:
		return false
	}
}

// atomicScalarType unwraps an atomic<T> type handle (as produced by
// exprStaticType on the variable an atomic builtin addresses) down to T.
func (l *Lowerer) atomicScalarType(atomicType ir.TypeHandle) ir.TypeHandle {
	t, ok := l.builder.Module().Type(atomicType)
	if !ok {
		return l.types["u32"]
	}
	at, ok := t.Inner.(ir.AtomicType)
	if !ok {
		return l.types["u32"]
	}
	return l.builder.InternType("", at.Scalar)
}

func (l *Lowerer) lowerAtomicCall(name string, n *CallExpr) ir.ValueHandle {
	pointer, err := l.lowerLValue(derefArg(n.Args[0]))
	if err != nil {
		l.errf(n.Span, "%v", err)
		return ir.NoID
	}
	scalarType := l.atomicScalarType(l.exprStaticType(derefArg(n.Args[0])))

	if name == "atomicLoad" {
		return l.emit(ir.InstAtomic{Pointer: pointer, Fun: ir.AtomicExchange{}, Value: ir.NoID}, scalarType)
	}
	if name == "atomicStore" {
		value := l.lowerExpression(n.Args[1])
		l.builder.EmitVoid(ir.InstAtomic{Pointer: pointer, Fun: ir.AtomicExchange{}, Value: value})
		return ir.NoID
	}

	value := l.lowerExpression(n.Args[1])
	var fn ir.AtomicFunction
	switch name {
	case "atomicAdd":
		fn = ir.AtomicAdd{}
	case "atomicSub":
		fn = ir.AtomicSubtract{}
	case "atomicMax":
		fn = ir.AtomicMax{}
	case "atomicMin":
		fn = ir.AtomicMin{}
	case "atomicAnd":
		fn = ir.AtomicAnd{}
	case "atomicOr":
		fn = ir.AtomicInclusiveOr{}
	case "atomicXor":
		fn = ir.AtomicExclusiveOr{}
	case "atomicCompareExchangeWeak":
		compare := value
		value = l.lowerExpression(n.Args[2])
		fn = ir.AtomicExchange{Compare: compare}
	default:
		fn = ir.AtomicExchange{}
	}
	return l.emit(ir.InstAtomic{Pointer: pointer, Fun: fn, Value: value}, scalarType)
}
