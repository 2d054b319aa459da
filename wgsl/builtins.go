// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package wgsl

import (
	"fmt"
	"strings"

	"github.com/shaderlab/ssair/ir"
)

// mathFuncName maps a MathFunction to its WGSL builtin name. A handful of
// functions WGSL has no builtin for (outer product, matrix inverse,
// determinant) fall back to a `naga_` prefixed name that a caller is
// expected to supply as a user-defined helper — WGSL has no way to spell
// these inline, unlike GLSL or MSL.
func mathFuncName(f ir.MathFunction) string {
	switch f {
	case ir.MathAbs:
		return "abs"
	case ir.MathMin:
		return "min"
	case ir.MathMax:
		return "max"
	case ir.MathClamp:
		return "clamp"
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
		return "round"
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
	case ir.MathDot:
		return "dot"
	case ir.MathDot4I8Packed:
		return "dot4I8Packed"
	case ir.MathDot4U8Packed:
		return "dot4U8Packed"
	case ir.MathOuter:
		return "naga_outer"
	case ir.MathCross:
		return "cross"
	case ir.MathDistance:
		return "distance"
	case ir.MathLength:
		return "length"
	case ir.MathNormalize:
		return "normalize"
	case ir.MathFaceForward:
		return "faceForward"
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
		return "inverseSqrt"
	case ir.MathInverse:
		return "naga_inverse"
	case ir.MathTranspose:
		return "transpose"
	case ir.MathDeterminant:
		return "naga_determinant"
	case ir.MathQuantizeF16:
		return "quantizeToF16"
	case ir.MathCountTrailingZeros:
		return "countTrailingZeros"
	case ir.MathCountLeadingZeros:
		return "countLeadingZeros"
	case ir.MathCountOneBits:
		return "countOneBits"
	case ir.MathReverseBits:
		return "reverseBits"
	case ir.MathExtractBits:
		return "extractBits"
	case ir.MathInsertBits:
		return "insertBits"
	case ir.MathFirstTrailingBit:
		return "firstTrailingBit"
	case ir.MathFirstLeadingBit:
		return "firstLeadingBit"
	case ir.MathPack4x8snorm:
		return "pack4x8snorm"
	case ir.MathPack4x8unorm:
		return "pack4x8unorm"
	case ir.MathPack2x16snorm:
		return "pack2x16snorm"
	case ir.MathPack2x16unorm:
		return "pack2x16unorm"
	case ir.MathPack2x16float:
		return "pack2x16float"
	case ir.MathPack4xI8:
		return "pack4xI8"
	case ir.MathPack4xU8:
		return "pack4xU8"
	case ir.MathPack4xI8Clamp:
		return "pack4xI8Clamp"
	case ir.MathPack4xU8Clamp:
		return "pack4xU8Clamp"
	case ir.MathUnpack4x8snorm:
		return "unpack4x8snorm"
	case ir.MathUnpack4x8unorm:
		return "unpack4x8unorm"
	case ir.MathUnpack2x16snorm:
		return "unpack2x16snorm"
	case ir.MathUnpack2x16unorm:
		return "unpack2x16unorm"
	case ir.MathUnpack2x16float:
		return "unpack2x16float"
	case ir.MathUnpack4xI8:
		return "unpack4xI8"
	case ir.MathUnpack4xU8:
		return "unpack4xU8"
	default:
		return "naga_unknown"
	}
}

// emitMath renders an InstMath call. MathSaturate and MathFma get
// special handling: WGSL dropped `saturate` from the final spec (it
// lowers to clamp(x, 0, 1) here), and this IR's MathFma carries a
// fourth, unused Args slot matching MathInsertBits's real arity-4 shape
// even though WGSL's fma takes exactly three operands.
func (w *writer) emitMath(k ir.InstMath) (string, error) {
	if k.Fun == ir.MathSaturate {
		return w.emitSaturate(k.Args[0])
	}
	if k.Fun == ir.MathFma {
		args, err := w.valueTextList(k.Args[:3])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("fma(%s)", strings.Join(args, ", ")), nil
	}
	args, err := w.valueTextList(k.Args[:k.Fun.Arity()])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", mathFuncName(k.Fun), strings.Join(args, ", ")), nil
}

func (w *writer) emitSaturate(value ir.ValueHandle) (string, error) {
	val, err := w.valueText(value)
	if err != nil {
		return "", err
	}
	typeName, err := w.typeName(w.valueTypes[value])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("clamp(%s, %s(0.0), %s(1.0))", val, typeName, typeName), nil
}

// emitConvert renders both InstConvert (value-changing numeric
// conversion) and InstBitcast (same-bits reinterpretation) — WGSL spells
// the former as a constructor call (`f32(x)`) and the latter as
// `bitcast<T>(x)`; both need the target type rebuilt at the same
// vector width as the source, since Kind/Width alone don't carry shape.
func (w *writer) emitConvert(value ir.ValueHandle, kind ir.ScalarKind, width uint8, isBitcast bool) (string, error) {
	val, err := w.valueText(value)
	if err != nil {
		return "", err
	}
	origType := w.valueTypes[value]
	t, ok := w.module.Type(origType)
	if !ok {
		return "", fmt.Errorf("wgsl: unknown type %d for convert source", origType)
	}
	target := ir.ScalarType{Kind: kind, Width: width}

	var typeText string
	switch inner := t.Inner.(type) {
	case ir.ScalarType:
		typeText = scalarTypeName(target)
	case ir.VectorType:
		typeText = fmt.Sprintf("vec%d<%s>", inner.Size, scalarTypeName(target))
	default:
		return "", fmt.Errorf("wgsl: convert/bitcast source is neither scalar nor vector (%T)", inner)
	}
	if isBitcast {
		return fmt.Sprintf("bitcast<%s>(%s)", typeText, val), nil
	}
	return fmt.Sprintf("%s(%s)", typeText, val), nil
}

func (w *writer) emitImageSample(k ir.InstImageSample) (string, error) {
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

	base := []string{image, sampler, coord}
	if k.ArrayIndex != ir.NoID {
		arr, err := w.valueText(k.ArrayIndex)
		if err != nil {
			return "", err
		}
		base = append(base, arr)
	}

	var tail []string
	fname := "textureSample"

	switch {
	case k.Gather != nil:
		fname = "textureGather"
		base = append([]string{fmt.Sprintf("%d", *k.Gather)}, base...)

	case k.DepthRef != ir.NoID:
		dref, err := w.valueText(k.DepthRef)
		if err != nil {
			return "", err
		}
		base = append(base, dref)
		if _, isZero := k.Level.(ir.SampleLevelZero); isZero {
			fname = "textureSampleCompareLevel"
		} else {
			fname = "textureSampleCompare"
		}

	default:
		switch lvl := k.Level.(type) {
		case ir.SampleLevelZero:
			fname = "textureSampleLevel"
			tail = append(tail, "0.0")
		case ir.SampleLevelExact:
			t, err := w.valueText(lvl.Level)
			if err != nil {
				return "", err
			}
			fname = "textureSampleLevel"
			tail = append(tail, t)
		case ir.SampleLevelBias:
			t, err := w.valueText(lvl.Bias)
			if err != nil {
				return "", err
			}
			fname = "textureSampleBias"
			tail = append(tail, t)
		case ir.SampleLevelGradient:
			x, err := w.valueText(lvl.X)
			if err != nil {
				return "", err
			}
			y, err := w.valueText(lvl.Y)
			if err != nil {
				return "", err
			}
			fname = "textureSampleGrad"
			tail = append(tail, x, y)
		}
	}

	if k.Offset != ir.NoID {
		off, err := w.valueText(k.Offset)
		if err != nil {
			return "", err
		}
		tail = append(tail, off)
	}

	args := append(base, tail...)
	return fmt.Sprintf("%s(%s)", fname, strings.Join(args, ", ")), nil
}

func (w *writer) emitImageLoad(k ir.InstImageLoad) (string, error) {
	image, err := w.valueText(k.Image)
	if err != nil {
		return "", err
	}
	coord, err := w.valueText(k.Coordinate)
	if err != nil {
		return "", err
	}
	args := []string{image, coord}
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
	return fmt.Sprintf("textureLoad(%s)", strings.Join(args, ", ")), nil
}

func (w *writer) emitImageQuery(k ir.InstImageQuery) (string, error) {
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
			return fmt.Sprintf("textureDimensions(%s, %s)", image, l), nil
		}
		return fmt.Sprintf("textureDimensions(%s)", image), nil
	case ir.ImageQueryNumLevels:
		return fmt.Sprintf("textureNumLevels(%s)", image), nil
	case ir.ImageQueryNumLayers:
		return fmt.Sprintf("textureNumLayers(%s)", image), nil
	case ir.ImageQueryNumSamples:
		return fmt.Sprintf("textureNumSamples(%s)", image), nil
	default:
		return "", fmt.Errorf("wgsl: unhandled image query %T", q)
	}
}
