package ir

// ID is a module-wide, monotonically increasing identifier. Every entity a
// Module owns — types, constants, globals, functions, blocks and the values
// instructions produce — is minted from the same counter, mirroring the
// single ID namespace a SPIR-V module itself uses. The zero value, NoID,
// never names a real entity.
type ID uint32

// NoID is the null identifier. A zero-valued optional operand (for example
// an absent array-length suffix) is always NoID, never a valid ID.
const NoID ID = 0

// TypeHandle, ConstantHandle, GlobalHandle and FuncHandle are ID in
// disguise: the distinct names exist so a function signature documents
// which namespace an ID was drawn from, not because the values live in
// separate counters.
type (
	TypeHandle     = ID
	ConstantHandle = ID
	GlobalHandle   = ID
	FuncHandle     = ID
	BlockHandle    = ID
	ValueHandle    = ID
)

// ShaderStage names the pipeline stage a function is an entry point for.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// EntryPointFlags carries fragment-stage execution modes that don't fit
// naturally as booleans on the function itself.
type EntryPointFlags uint8

const (
	FlagDepthReplacing EntryPointFlags = 1 << iota
	FlagEarlyFragmentTests
)

// EntryPoint names a Function as a pipeline entry point under a given
// stage, with the interface of global variables it touches (needed by the
// SPIR-V back-end's OpEntryPoint instruction) and the workgroup size for
// compute stages.
type EntryPoint struct {
	Name      string
	Stage     ShaderStage
	Function  FuncHandle
	Workgroup [3]uint32
	Interface []GlobalHandle
	Flags     EntryPointFlags
}

// Type pairs an optional surface name with its structural shape. Two Types
// with the same Inner but different Name are still interned to the same
// TypeHandle by Interner; Name is carried for debug output only.
type Type struct {
	Name  string
	Inner TypeInner
}

// TypeInner is the closed set of structural type shapes the IR can
// represent. Each concrete type implements typeInner as a marker so the
// set cannot be extended outside this package.
type TypeInner interface {
	typeInner()
}

type ScalarKind uint8

const (
	ScalarSint ScalarKind = iota
	ScalarUint
	ScalarFloat
	ScalarBool
)

func (ScalarKind) isScalarKind() {}

type ScalarType struct {
	Kind  ScalarKind
	Width uint8 // bytes: 1, 2, 4 or 8
}

func (ScalarType) typeInner() {}

type VectorSize uint8

const (
	Vec2 VectorSize = 2
	Vec3 VectorSize = 3
	Vec4 VectorSize = 4
)

type VectorType struct {
	Size   VectorSize
	Scalar ScalarType
}

func (VectorType) typeInner() {}

type MatrixType struct {
	Columns VectorSize
	Rows    VectorSize
	Scalar  ScalarType
}

func (MatrixType) typeInner() {}

// ArraySize is either a constant element count or Dynamic, meaning the
// array is unsized (only legal as the last member of a storage-space
// struct, and only reachable through a pointer).
type ArraySize struct {
	Constant *uint32
}

func (a ArraySize) IsDynamic() bool { return a.Constant == nil }

type ArrayType struct {
	Base   TypeHandle
	Size   ArraySize
	Stride uint32
}

func (ArrayType) typeInner() {}

type StructMember struct {
	Name    string
	Type    TypeHandle
	Binding *Binding
	Offset  uint32
}

type StructType struct {
	Members []StructMember
	Span    uint32
}

func (StructType) typeInner() {}

// AddressSpace is the memory space a pointer or global variable lives in.
// SpaceInput and SpaceOutput exist only on function parameters/results at
// entry-point boundaries: a vertex shader's interpolated inputs and a
// fragment shader's color outputs are just ordinary bindings on ordinary
// value-typed arguments, not pointers, but the space tag lets validation
// and the SPIR-V back-end route them to Input/Output storage classes.
type AddressSpace uint8

const (
	SpaceFunction AddressSpace = iota
	SpacePrivate
	SpaceWorkGroup
	SpaceUniform
	SpaceStorage
	SpacePushConstant
	SpaceUniformConstant // samplers, textures: opaque handles, not backed by memory
	SpaceInput
	SpaceOutput
)

type PointerType struct {
	Base  TypeHandle
	Space AddressSpace
}

func (PointerType) typeInner() {}

type AtomicType struct {
	Scalar ScalarType
}

func (AtomicType) typeInner() {}

type SamplerType struct {
	Comparison bool
}

func (SamplerType) typeInner() {}

type ImageDimension uint8

const (
	Dim1D ImageDimension = iota
	Dim2D
	Dim3D
	DimCube
)

type ImageClass uint8

const (
	ImageClassSampled ImageClass = iota
	ImageClassDepth
	ImageClassStorage
)

type ImageType struct {
	Dim           ImageDimension
	Arrayed       bool
	Class         ImageClass
	Multisampled  bool
	StorageFormat StorageFormat // only meaningful when Class == ImageClassStorage
	StorageAccess StorageAccess
}

func (ImageType) typeInner() {}

// StorageFormat is the texel layout of a storage image, needed by SPIR-V's
// OpTypeImage and by GLSL/MSL's `layout(rgba8)`-style annotations.
type StorageFormat uint8

const (
	FormatUnknown StorageFormat = iota
	FormatRgba8Unorm
	FormatRgba8Snorm
	FormatRgba8Uint
	FormatRgba8Sint
	FormatRgba16Float
	FormatRgba16Uint
	FormatRgba16Sint
	FormatRgba32Float
	FormatRgba32Uint
	FormatRgba32Sint
	FormatR32Float
	FormatR32Uint
	FormatR32Sint
)

type StorageAccess uint8

const (
	AccessLoad  StorageAccess = 1 << 0
	AccessStore StorageAccess = 1 << 1
)

// Binding describes how a function argument, result or struct member
// crosses the entry-point boundary: either a hardware builtin or a numbered
// user location with optional interpolation.
type Binding interface {
	binding()
}

type BuiltinValue uint8

const (
	BuiltinPosition BuiltinValue = iota
	BuiltinVertexIndex
	BuiltinInstanceIndex
	BuiltinFrontFacing
	BuiltinFragDepth
	BuiltinSampleIndex
	BuiltinSampleMask
	BuiltinLocalInvocationID
	BuiltinLocalInvocationIndex
	BuiltinGlobalInvocationID
	BuiltinWorkGroupID
	BuiltinNumWorkGroups
)

type BuiltinBinding struct {
	Builtin BuiltinValue
}

func (BuiltinBinding) binding() {}

type InterpolationKind uint8

const (
	InterpolatePerspective InterpolationKind = iota
	InterpolateLinear
	InterpolateFlat
)

type InterpolationSampling uint8

const (
	SamplingCenter InterpolationSampling = iota
	SamplingCentroid
	SamplingSample
)

type Interpolation struct {
	Kind     InterpolationKind
	Sampling InterpolationSampling
}

type LocationBinding struct {
	Location      uint32
	Interpolation *Interpolation
}

func (LocationBinding) binding() {}

// ResourceBinding is the (group, binding) pair a uniform/storage/texture
// global is bound to, matching WGSL's `@group(g) @binding(b)` and GLSL's
// `layout(set=g, binding=b)`.
type ResourceBinding struct {
	Group   uint32
	Binding uint32
}

// GlobalVariable is a module-scope variable: a uniform/storage buffer, a
// texture or sampler handle, a workgroup-shared array, or a push-constant
// block. Its own ID is the value used to reference it from instructions —
// there is no separate "load global" instruction to first materialize a
// reference.
type GlobalVariable struct {
	ID          ID
	Name        string
	Space       AddressSpace
	Binding     *ResourceBinding
	Type        TypeHandle
	Init        ConstantHandle // NoID if absent
	NonWritable bool
	Invariant   bool
}

// FunctionArgument is an entry in a function's parameter list. Its ID is
// the value operand used wherever the parameter is referenced.
type FunctionArgument struct {
	ID      ID
	Name    string
	Type    TypeHandle
	Binding *Binding
}

type FunctionResult struct {
	Type    TypeHandle
	Binding *Binding
}

// LocalVariable is a function-scope variable: always of pointer type in
// SpaceFunction, optionally zero-initialized or initialized from a
// constant expression. Its ID denotes the pointer, not the pointee — it
// must be `load`ed like any other pointer.
type LocalVariable struct {
	ID   ID
	Name string
	Type TypeHandle // the *pointee* type; the value itself is PointerType{Type, SpaceFunction}
	Init ConstantHandle
}

// Function is a single subroutine: a signature, a flat pool of local
// variables, and a control-flow graph of basic blocks rooted at Entry.
type Function struct {
	Name      string
	Arguments []FunctionArgument
	Result    *FunctionResult
	Locals    []LocalVariable
	Blocks    []*Block
	Entry     BlockHandle
}

// BlockByID returns the block with the given handle, or nil if none
// matches. Blocks within one function are few enough that a linear scan is
// simpler than maintaining a side index.
func (f *Function) BlockByID(id BlockHandle) *Block {
	for _, b := range f.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Module is the root container: every type, constant, global and function
// in a compiled shader, plus the entry points that expose some of those
// functions to a pipeline stage.
type Module struct {
	nextID ID

	types     []Type
	typeIndex map[ID]int

	constants     []Constant
	constantIndex map[ID]int

	globals     []GlobalVariable
	globalIndex map[ID]int

	functions     []*Function
	functionIndex map[ID]int

	EntryPoints []EntryPoint
	DebugNames  map[ID]string
}

// NewModule returns an empty Module ready for a Builder (or an Interner) to
// populate.
func NewModule() *Module {
	return &Module{
		nextID:        1,
		typeIndex:     make(map[ID]int),
		constantIndex: make(map[ID]int),
		globalIndex:   make(map[ID]int),
		functionIndex: make(map[ID]int),
		DebugNames:    make(map[ID]string),
	}
}

// AllocID reserves the next ID in the module's single namespace without
// binding it to any entity yet. Builder uses this to hand out block and
// value IDs before the block/instruction that owns them is appended.
func (m *Module) AllocID() ID {
	id := m.nextID
	m.nextID++
	return id
}

func (m *Module) defineType(id ID, t Type) {
	m.typeIndex[id] = len(m.types)
	m.types = append(m.types, t)
}

func (m *Module) defineConstant(id ID, c Constant) {
	m.constantIndex[id] = len(m.constants)
	m.constants = append(m.constants, c)
}

func (m *Module) defineGlobal(g GlobalVariable) {
	m.globalIndex[g.ID] = len(m.globals)
	m.globals = append(m.globals, g)
}

func (m *Module) defineFunction(f *Function) FuncHandle {
	id := m.AllocID()
	m.functionIndex[id] = len(m.functions)
	m.functions = append(m.functions, f)
	return id
}

// Types, Constants, Globals and Functions return the entities in the order
// they were created — the order every back-end emits them in.
func (m *Module) Types() []Type             { return m.types }
func (m *Module) Constants() []Constant     { return m.constants }
func (m *Module) Globals() []GlobalVariable { return m.globals }
func (m *Module) Functions() []*Function    { return m.functions }

func (m *Module) Type(id TypeHandle) (Type, bool) {
	idx, ok := m.typeIndex[id]
	if !ok {
		return Type{}, false
	}
	return m.types[idx], true
}

func (m *Module) Constant(id ConstantHandle) (Constant, bool) {
	idx, ok := m.constantIndex[id]
	if !ok {
		return Constant{}, false
	}
	return m.constants[idx], true
}

func (m *Module) Global(id GlobalHandle) (GlobalVariable, bool) {
	idx, ok := m.globalIndex[id]
	if !ok {
		return GlobalVariable{}, false
	}
	return m.globals[idx], true
}

func (m *Module) Function(id FuncHandle) (*Function, bool) {
	idx, ok := m.functionIndex[id]
	if !ok {
		return nil, false
	}
	return m.functions[idx], true
}

// FunctionByName is a linear lookup used by lowering passes resolving a
// forward call reference; Module itself never needs it.
func (m *Module) FunctionByName(name string) (FuncHandle, *Function, bool) {
	for id, idx := range m.functionIndex {
		if m.functions[idx].Name == name {
			return id, m.functions[idx], true
		}
	}
	return NoID, nil, false
}

// FunctionHandle recovers the ID a *Function was defined under — the
// reverse of Function(id) — for back ends that walk Functions() by pointer
// and need the handle back to key their own per-function caches.
func (m *Module) FunctionHandle(fn *Function) (FuncHandle, bool) {
	for id, idx := range m.functionIndex {
		if m.functions[idx] == fn {
			return id, true
		}
	}
	return NoID, false
}
