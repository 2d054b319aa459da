package ir

// Instruction is one entry in a Block's straight-line instruction list.
// Result is NoID when the instruction has no value (a store, a barrier, a
// merge marker); otherwise Result is the ID by which every later
// instruction refers back to this one.
type Instruction struct {
	Result ID
	Kind   InstructionKind
}

// InstructionKind is the closed set of non-terminator operations a block
// can contain. Terminators (branch, switch, return, ...) are a separate
// closed set — see Terminator in block.go — because every block has
// exactly one, stored separately from the instruction list rather than as
// just another list entry.
type InstructionKind interface {
	instructionKind()
}

// --- composite ---

type InstCompose struct {
	Type       TypeHandle
	Components []ValueHandle
}

func (InstCompose) instructionKind() {}

// InstAccess computes a pointer to Base[Index] where Index is itself a
// runtime value (array/vector dynamic indexing). The result type is a
// pointer in the same address space as Base.
type InstAccess struct {
	Base  ValueHandle
	Index ValueHandle
}

func (InstAccess) instructionKind() {}

// InstAccessIndex is InstAccess specialized to a compile-time-constant
// index, which lets back-ends emit a direct struct-member access instead
// of a dynamic one.
type InstAccessIndex struct {
	Base  ValueHandle
	Index uint32
}

func (InstAccessIndex) instructionKind() {}

// InstExtract reads member Index out of a composite value directly (no
// pointer involved) — WGSL's `v.field` / `a[3]` when `v`/`a` are values,
// not variables.
type InstExtract struct {
	Composite ValueHandle
	Index     uint32
}

func (InstExtract) instructionKind() {}

// InstExtractDynamic is InstExtract with a runtime index, legal only on
// vectors (SPIR-V has no dynamic extract for arbitrary composites).
type InstExtractDynamic struct {
	Composite ValueHandle
	Index     ValueHandle
}

func (InstExtractDynamic) instructionKind() {}

// InstInsert produces a new composite equal to Composite with member Index
// functionally replaced by Value. It does not mutate Composite or go
// through memory.
type InstInsert struct {
	Composite ValueHandle
	Index     uint32
	Value     ValueHandle
}

func (InstInsert) instructionKind() {}

type InstInsertDynamic struct {
	Composite ValueHandle
	Index     ValueHandle
	Value     ValueHandle
}

func (InstInsertDynamic) instructionKind() {}

type InstSplat struct {
	Size  VectorSize
	Value ValueHandle
}

func (InstSplat) instructionKind() {}

type SwizzleComponent uint8

const (
	SwizzleX SwizzleComponent = iota
	SwizzleY
	SwizzleZ
	SwizzleW
)

// InstShuffle reads up to four components out of Vector according to
// Pattern, producing a new vector of size Size — WGSL swizzles (`v.xyz`,
// `v.wwxy`) lower to this.
type InstShuffle struct {
	Size    VectorSize
	Vector  ValueHandle
	Pattern [4]SwizzleComponent
}

func (InstShuffle) instructionKind() {}

// --- memory ---

type InstLoad struct {
	Pointer ValueHandle
}

func (InstLoad) instructionKind() {}

type InstStore struct {
	Pointer ValueHandle
	Value   ValueHandle
}

func (InstStore) instructionKind() {}

// InstArrayLength reads the runtime length of the unsized array tail of a
// storage-space struct, addressed through Pointer.
type InstArrayLength struct {
	Pointer ValueHandle
}

func (InstArrayLength) instructionKind() {}

// --- arithmetic / logical ---

type UnaryOperator uint8

const (
	UnaryNegate UnaryOperator = iota
	UnaryLogicalNot
	UnaryBitwiseNot
)

type InstUnary struct {
	Op    UnaryOperator
	Value ValueHandle
}

func (InstUnary) instructionKind() {}

type BinaryOperator uint8

const (
	BinaryAdd BinaryOperator = iota
	BinarySubtract
	BinaryMultiply
	BinaryDivide
	BinaryModulo
	BinaryEqual
	BinaryNotEqual
	BinaryLess
	BinaryLessEqual
	BinaryGreater
	BinaryGreaterEqual
	BinaryAnd
	BinaryExclusiveOr
	BinaryInclusiveOr
	BinaryLogicalAnd
	BinaryLogicalOr
	BinaryShiftLeft
	BinaryShiftRight
)

type InstBinary struct {
	Op    BinaryOperator
	Left  ValueHandle
	Right ValueHandle
}

func (InstBinary) instructionKind() {}

type InstSelect struct {
	Condition ValueHandle
	Accept    ValueHandle
	Reject    ValueHandle
}

func (InstSelect) instructionKind() {}

// --- builtins ---

type InstMath struct {
	Fun  MathFunction
	Args [4]ValueHandle // unused slots are NoID
}

func (InstMath) instructionKind() {}

type RelationalFunction uint8

const (
	RelationalAll RelationalFunction = iota
	RelationalAny
	RelationalIsNan
	RelationalIsInf
)

type InstRelational struct {
	Fun RelationalFunction
	Arg ValueHandle
}

func (InstRelational) instructionKind() {}

type DerivativeAxis uint8

const (
	DerivativeX DerivativeAxis = iota
	DerivativeY
	DerivativeWidth
)

type DerivativeControl uint8

const (
	DerivativeNone DerivativeControl = iota
	DerivativeCoarse
	DerivativeFine
)

type InstDerivative struct {
	Axis    DerivativeAxis
	Control DerivativeControl
	Value   ValueHandle
}

func (InstDerivative) instructionKind() {}

// --- conversion ---

// InstConvert performs a numeric conversion (e.g. f32 to i32 with
// truncation), changing the represented value. InstBitcast reinterprets the
// same bits as a different scalar type.
type InstConvert struct {
	Value ValueHandle
	Kind  ScalarKind
	Width uint8
}

func (InstConvert) instructionKind() {}

type InstBitcast struct {
	Value ValueHandle
	Kind  ScalarKind
	Width uint8
}

func (InstBitcast) instructionKind() {}

// --- calls ---

type InstCall struct {
	Function FuncHandle
	Args     []ValueHandle
}

func (InstCall) instructionKind() {}

// --- textures ---

type SampleLevel interface {
	sampleLevel()
}

type SampleLevelAuto struct{}

func (SampleLevelAuto) sampleLevel() {}

type SampleLevelZero struct{}

func (SampleLevelZero) sampleLevel() {}

type SampleLevelExact struct{ Level ValueHandle }

func (SampleLevelExact) sampleLevel() {}

type SampleLevelBias struct{ Bias ValueHandle }

func (SampleLevelBias) sampleLevel() {}

type SampleLevelGradient struct{ X, Y ValueHandle }

func (SampleLevelGradient) sampleLevel() {}

type InstImageSample struct {
	Image       ValueHandle
	Sampler     ValueHandle
	Gather      *SwizzleComponent // non-nil selects a gather instead of a filtered sample
	Coordinate  ValueHandle
	ArrayIndex  ValueHandle // NoID if not array-indexed
	Offset      ValueHandle // NoID if no texel offset
	Level       SampleLevel
	DepthRef    ValueHandle // NoID unless this is a depth-comparison sample
	ClampToEdge bool
}

func (InstImageSample) instructionKind() {}

type InstImageLoad struct {
	Image      ValueHandle
	Coordinate ValueHandle
	ArrayIndex ValueHandle
	Sample     ValueHandle
	Level      ValueHandle
}

func (InstImageLoad) instructionKind() {}

type InstImageStore struct {
	Image      ValueHandle
	Coordinate ValueHandle
	ArrayIndex ValueHandle
	Value      ValueHandle
}

func (InstImageStore) instructionKind() {}

type ImageQuery interface {
	imageQuery()
}

type ImageQuerySize struct{ Level ValueHandle }

func (ImageQuerySize) imageQuery() {}

type ImageQueryNumLevels struct{}

func (ImageQueryNumLevels) imageQuery() {}

type ImageQueryNumLayers struct{}

func (ImageQueryNumLayers) imageQuery() {}

type ImageQueryNumSamples struct{}

func (ImageQueryNumSamples) imageQuery() {}

type InstImageQuery struct {
	Image ValueHandle
	Query ImageQuery
}

func (InstImageQuery) instructionKind() {}

// --- synchronization ---

type BarrierFlags uint8

const (
	BarrierStorage BarrierFlags = 1 << iota
	BarrierWorkGroup
	BarrierSubGroup
	BarrierTexture
)

type InstBarrier struct {
	Flags BarrierFlags
}

func (InstBarrier) instructionKind() {}

type AtomicFunction interface {
	atomicFunction()
}

type AtomicAdd struct{}

func (AtomicAdd) atomicFunction() {}

type AtomicSubtract struct{}

func (AtomicSubtract) atomicFunction() {}

type AtomicAnd struct{}

func (AtomicAnd) atomicFunction() {}

type AtomicExclusiveOr struct{}

func (AtomicExclusiveOr) atomicFunction() {}

type AtomicInclusiveOr struct{}

func (AtomicInclusiveOr) atomicFunction() {}

type AtomicMin struct{}

func (AtomicMin) atomicFunction() {}

type AtomicMax struct{}

func (AtomicMax) atomicFunction() {}

type AtomicExchange struct {
	Compare ValueHandle // NoID unless this is a compare-exchange
}

func (AtomicExchange) atomicFunction() {}

type InstAtomic struct {
	Pointer ValueHandle
	Fun     AtomicFunction
	Value   ValueHandle
}

func (InstAtomic) instructionKind() {}

// --- merge markers ---

// InstSelectionMerge must be the instruction immediately preceding a
// BranchConditional or Switch terminator in the same block when that
// construct's two arms reconverge; Merge names the block both arms
// eventually branch to. Mirrors SPIR-V's OpSelectionMerge.
type InstSelectionMerge struct {
	Merge BlockHandle
}

func (InstSelectionMerge) instructionKind() {}

// InstLoopMerge must be the instruction immediately preceding the
// terminator of a loop header block. Merge is the block after the loop;
// Continue is the block `continue` jumps to (the loop's continuing/latch
// block, which then branches back to the header). Mirrors SPIR-V's
// OpLoopMerge.
type InstLoopMerge struct {
	Merge    BlockHandle
	Continue BlockHandle
}

func (InstLoopMerge) instructionKind() {}

// Fragment discard lowers straight to the TermKill terminator (block.go):
// unlike most side effects it unconditionally ends the block, so it has no
// instruction-list form of its own.

// PhiIncoming is one (value, predecessor) pair of a Phi instruction.
type PhiIncoming struct {
	Value       ValueHandle
	Predecessor BlockHandle
}

// InstPhi selects a value depending on which predecessor block control
// arrived from. Must appear at the head of a block, before any
// non-Phi instruction, with one incoming entry per predecessor.
type InstPhi struct {
	Type     TypeHandle
	Incoming []PhiIncoming
}

func (InstPhi) instructionKind() {}
