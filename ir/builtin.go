package ir

// MathFunction is the closed set of builtin math/bit-manipulation
// functions invokable through InstMath. The selector carries the meaning;
// Args holds its (up to four) operands in InstMath, unused slots left NoID.
type MathFunction uint8

const (
	// comparison
	MathAbs MathFunction = iota
	MathMin
	MathMax
	MathClamp
	MathSaturate

	// trigonometry
	MathCos
	MathCosh
	MathSin
	MathSinh
	MathTan
	MathTanh
	MathAcos
	MathAsin
	MathAtan
	MathAtan2
	MathAsinh
	MathAcosh
	MathAtanh
	MathRadians
	MathDegrees

	// decomposition
	MathCeil
	MathFloor
	MathRound
	MathFract
	MathTrunc
	MathModf
	MathFrexp
	MathLdexp

	// exponential
	MathExp
	MathExp2
	MathLog
	MathLog2
	MathPow

	// geometry
	MathDot
	MathDot4I8Packed
	MathDot4U8Packed
	MathOuter
	MathCross
	MathDistance
	MathLength
	MathNormalize
	MathFaceForward
	MathReflect
	MathRefract

	// computational
	MathSign
	MathFma
	MathMix
	MathStep
	MathSmoothStep
	MathSqrt
	MathInverseSqrt
	MathInverse
	MathTranspose
	MathDeterminant
	MathQuantizeF16

	// bit manipulation
	MathCountTrailingZeros
	MathCountLeadingZeros
	MathCountOneBits
	MathReverseBits
	MathExtractBits
	MathInsertBits
	MathFirstTrailingBit
	MathFirstLeadingBit

	// packing
	MathPack4x8snorm
	MathPack4x8unorm
	MathPack2x16snorm
	MathPack2x16unorm
	MathPack2x16float
	MathPack4xI8
	MathPack4xU8
	MathPack4xI8Clamp
	MathPack4xU8Clamp

	// unpacking
	MathUnpack4x8snorm
	MathUnpack4x8unorm
	MathUnpack2x16snorm
	MathUnpack2x16unorm
	MathUnpack2x16float
	MathUnpack4xI8
	MathUnpack4xU8
)

// Arity is the number of meaningful operands InstMath.Args carries for this
// function, used by validate.go to check the instruction and by back-ends
// deciding how many arguments to emit.
func (f MathFunction) Arity() int {
	switch f {
	case MathAbs, MathSaturate, MathCos, MathCosh, MathSin, MathSinh, MathTan, MathTanh,
		MathAcos, MathAsin, MathAtan, MathAsinh, MathAcosh, MathAtanh, MathRadians, MathDegrees,
		MathCeil, MathFloor, MathRound, MathFract, MathTrunc, MathModf, MathFrexp,
		MathExp, MathExp2, MathLog, MathLog2,
		MathLength, MathNormalize, MathSign, MathSqrt, MathInverseSqrt, MathInverse,
		MathTranspose, MathDeterminant, MathQuantizeF16,
		MathCountTrailingZeros, MathCountLeadingZeros, MathCountOneBits, MathReverseBits,
		MathFirstTrailingBit, MathFirstLeadingBit,
		MathPack4x8snorm, MathPack4x8unorm, MathPack2x16snorm, MathPack2x16unorm, MathPack2x16float,
		MathPack4xI8, MathPack4xU8, MathPack4xI8Clamp, MathPack4xU8Clamp,
		MathUnpack4x8snorm, MathUnpack4x8unorm, MathUnpack2x16snorm, MathUnpack2x16unorm, MathUnpack2x16float,
		MathUnpack4xI8, MathUnpack4xU8:
		return 1
	case MathMin, MathMax, MathAtan2, MathLdexp, MathPow, MathDot, MathDot4I8Packed, MathDot4U8Packed,
		MathOuter, MathCross, MathDistance, MathReflect, MathStep:
		return 2
	case MathClamp, MathFaceForward, MathRefract, MathMix, MathSmoothStep, MathExtractBits:
		return 3
	case MathFma, MathInsertBits:
		return 4
	default:
		return 1
	}
}
