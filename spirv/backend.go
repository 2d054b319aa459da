package spirv

import (
	"fmt"
	"math"

	"github.com/shaderlab/ssair/ir"
)

// Backend translates an IR module to a SPIR-V binary. Types, constants and
// functions are emitted lazily the first time something references them
// rather than by walking the module's slices in order, since IR handles are
// not contiguous indices the way the old per-slice position scheme assumed.
type Backend struct {
	module   *ir.Module
	builder  *ModuleBuilder
	options  Options
	interner *ir.Interner

	typeIDs     map[ir.TypeHandle]uint32
	constantIDs map[ir.ConstantHandle]uint32
	globalIDs   map[ir.GlobalHandle]uint32
	functionIDs map[ir.FuncHandle]uint32

	// wrappedGlobals marks globals whose declared type wasn't already a
	// struct but needed a Block decoration (a bare resource array in
	// storage/uniform/push-constant space); the variable's actual SPIR-V
	// pointee is a synthetic single-member struct, so every access chain
	// rooted at one of these needs a leading member-0 index.
	wrappedGlobals map[ir.GlobalHandle]bool

	// sampledImageIDs caches the %sampled_image wrapper type per underlying
	// image TypeHandle, since image sample instructions need one and it must
	// be declared at most once.
	sampledImageIDs map[ir.TypeHandle]uint32

	glslExtID uint32

	// argInterfaceVars holds the Input/Output variable IDs a builtin- or
	// location-bound function argument or result decomposes into, keyed by
	// the value that argument/result carries inside the function body. A
	// struct-typed argument/result has one entry per member.
	argInterfaceVars map[ir.ValueHandle][]uint32

	// entryInterfaces collects, per entry-point function, every Input/Output
	// variable its arguments and result were decomposed into — the
	// interface list OpEntryPoint needs.
	entryInterfaces map[ir.FuncHandle][]uint32

	// Per-function state, reset at the start of emitFunction.
	values           map[ir.ValueHandle]uint32
	valueTypes       map[ir.ValueHandle]ir.TypeHandle
	blockLabels      map[ir.BlockHandle]uint32
	currentFn        *ir.Function
	currentHandle    ir.FuncHandle
	currentStage     ir.ShaderStage
	isEntry          bool
	currentInterface []uint32
}

// NewBackend creates a SPIR-V backend.
func NewBackend(options Options) *Backend {
	return &Backend{
		options:          options,
		typeIDs:          make(map[ir.TypeHandle]uint32),
		constantIDs:      make(map[ir.ConstantHandle]uint32),
		globalIDs:        make(map[ir.GlobalHandle]uint32),
		functionIDs:      make(map[ir.FuncHandle]uint32),
		wrappedGlobals:   make(map[ir.GlobalHandle]bool),
		sampledImageIDs:  make(map[ir.TypeHandle]uint32),
		argInterfaceVars: make(map[ir.ValueHandle][]uint32),
		entryInterfaces:  make(map[ir.FuncHandle][]uint32),
	}
}

// Compile translates module to a SPIR-V binary.
func (b *Backend) Compile(module *ir.Module) ([]byte, error) {
	b.module = module
	b.interner = ir.NewInternerOverModule(module)
	b.builder = NewModuleBuilder(b.options.Version)

	b.emitCapabilities()
	b.builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)
	b.glslExtID = b.builder.AddExtInstImport("GLSL.std.450")

	for _, g := range module.Globals() {
		if err := b.emitGlobal(g); err != nil {
			return nil, err
		}
	}

	for _, fn := range module.Functions() {
		if err := b.emitFunction(fn); err != nil {
			return nil, err
		}
	}

	if err := b.emitEntryPoints(); err != nil {
		return nil, err
	}

	if b.options.Debug {
		b.emitDebugNames()
	}

	return b.builder.Build(), nil
}

// emitCapabilities declares Shader plus whatever optional capability a
// feature actually used in the module requires.
func (b *Backend) emitCapabilities() {
	b.builder.AddCapability(CapabilityShader)

	usesImageQuery := false
	usesSampled1D := false
	for _, t := range b.module.Types() {
		img, ok := t.Inner.(ir.ImageType)
		if !ok {
			continue
		}
		if img.Dim == ir.Dim1D {
			usesSampled1D = true
		}
	}
	for _, fn := range b.module.Functions() {
		for _, blk := range fn.Blocks {
			for _, inst := range blk.Instructions {
				if _, ok := inst.Kind.(ir.InstImageQuery); ok {
					usesImageQuery = true
				}
			}
		}
	}
	if usesImageQuery {
		b.builder.AddCapability(CapabilityImageQuery)
	}
	if usesSampled1D {
		b.builder.AddCapability(CapabilitySampled1D)
		b.builder.AddCapability(CapabilityImage1D)
	}
	for _, c := range b.options.Capabilities {
		b.builder.AddCapability(c)
	}
}

func (b *Backend) emitDebugNames() {
	for id, name := range b.module.DebugNames {
		if mapped, ok := b.lookupDebugID(id); ok {
			b.builder.AddName(mapped, name)
		}
	}
}

// lookupDebugID maps a module-level ID that was given a debug name to
// whatever SPIR-V ID it was ultimately emitted under, across every
// namespace the name could have come from.
func (b *Backend) lookupDebugID(id ir.ID) (uint32, bool) {
	if mapped, ok := b.typeIDs[id]; ok {
		return mapped, true
	}
	if mapped, ok := b.constantIDs[id]; ok {
		return mapped, true
	}
	if mapped, ok := b.globalIDs[id]; ok {
		return mapped, true
	}
	if mapped, ok := b.functionIDs[id]; ok {
		return mapped, true
	}
	return 0, false
}

// --- types ---

func (b *Backend) typeIDFor(handle ir.TypeHandle) (uint32, error) {
	if id, ok := b.typeIDs[handle]; ok {
		return id, nil
	}
	typ, ok := b.module.Type(handle)
	if !ok {
		return 0, fmt.Errorf("spirv: unknown type handle %d", handle)
	}

	var id uint32
	var err error
	switch inner := typ.Inner.(type) {
	case ir.ScalarType:
		id, err = b.emitScalarType(inner)
	case ir.VectorType:
		compID, cerr := b.emitScalarType(inner.Scalar)
		if cerr != nil {
			return 0, cerr
		}
		id = b.builder.AddTypeVector(compID, uint32(inner.Size))
	case ir.MatrixType:
		colType := ir.VectorType{Size: inner.Rows, Scalar: inner.Scalar}
		colID, cerr := b.internedTypeID(colType)
		if cerr != nil {
			return 0, cerr
		}
		id = b.builder.AddTypeMatrix(colID, uint32(inner.Columns))
	case ir.ArrayType:
		baseID, berr := b.typeIDFor(inner.Base)
		if berr != nil {
			return 0, berr
		}
		if inner.Size.IsDynamic() {
			id = b.builder.AddTypeInstruction(OpTypeRuntimeArray, baseID)
		} else {
			lengthType, lerr := b.internedTypeID(ir.ScalarType{Kind: ir.ScalarUint, Width: 4})
			if lerr != nil {
				return 0, lerr
			}
			lengthConst := b.builder.AddConstant(lengthType, *inner.Size.Constant)
			id = b.builder.AddTypeArray(baseID, lengthConst)
		}
		if inner.Stride != 0 {
			b.builder.AddDecorate(id, DecorationArrayStride, inner.Stride)
		}
	case ir.StructType:
		memberIDs := make([]uint32, len(inner.Members))
		for i, m := range inner.Members {
			mID, merr := b.typeIDFor(m.Type)
			if merr != nil {
				return 0, merr
			}
			memberIDs[i] = mID
		}
		id = b.builder.AddTypeStruct(memberIDs...)
		b.decorateStructMembers(id, inner)
	case ir.PointerType:
		baseID, berr := b.typeIDFor(inner.Base)
		if berr != nil {
			return 0, berr
		}
		id = b.builder.AddTypePointer(addressSpaceToStorageClass(inner.Space), baseID)
	case ir.AtomicType:
		id, err = b.emitScalarType(inner.Scalar)
	case ir.SamplerType:
		id = b.builder.AddTypeInstruction(OpTypeSampler)
	case ir.ImageType:
		id, err = b.emitImageType(inner)
	default:
		return 0, fmt.Errorf("spirv: unhandled type %T", inner)
	}
	if err != nil {
		return 0, err
	}
	b.typeIDs[handle] = id
	return id, nil
}

// internedTypeID finds or mints a derived type (a matrix's column vector, a
// comparison result's bool vector) that the front end may never itself have
// declared, then resolves it exactly like any module-defined type.
func (b *Backend) internedTypeID(inner ir.TypeInner) (uint32, error) {
	handle := b.interner.InternType("", inner)
	return b.typeIDFor(handle)
}

func (b *Backend) emitScalarType(s ir.ScalarType) (uint32, error) {
	switch s.Kind {
	case ir.ScalarBool:
		return b.builder.AddTypeBool(), nil
	case ir.ScalarFloat:
		return b.builder.AddTypeFloat(uint32(s.Width) * 8), nil
	case ir.ScalarSint:
		return b.builder.AddTypeInt(uint32(s.Width)*8, true), nil
	case ir.ScalarUint:
		return b.builder.AddTypeInt(uint32(s.Width)*8, false), nil
	default:
		return 0, fmt.Errorf("spirv: unhandled scalar kind %v", s.Kind)
	}
}

func (b *Backend) emitImageType(img ir.ImageType) (uint32, error) {
	sampledType, err := b.internedTypeID(ir.ScalarType{Kind: ir.ScalarFloat, Width: 4})
	if err != nil {
		return 0, err
	}
	dim := Dim2D
	switch img.Dim {
	case ir.Dim1D:
		dim = Dim1D
	case ir.Dim3D:
		dim = Dim3D
	case ir.DimCube:
		dim = DimCube
	}
	depth := uint32(0)
	if img.Class == ir.ImageClassDepth {
		depth = 1
	}
	arrayed := uint32(0)
	if img.Arrayed {
		arrayed = 1
	}
	ms := uint32(0)
	if img.Multisampled {
		ms = 1
	}
	sampled := uint32(1) // used with a sampler
	format := ImageFormatUnknown
	if img.Class == ir.ImageClassStorage {
		sampled = 2 // read/written directly
		format = StorageFormatToImageFormat(img.StorageFormat)
		if img.StorageFormat == ir.FormatUnknown {
			if img.StorageAccess&ir.AccessStore != 0 {
				b.builder.AddCapability(CapabilityStorageImageWriteWithoutFormat)
			} else {
				b.builder.AddCapability(CapabilityStorageImageReadWithoutFormat)
			}
		}
	}
	return b.builder.AddTypeInstruction(OpTypeImage, sampledType, uint32(dim), depth, arrayed, ms, sampled, uint32(format)), nil
}

// decorateStructMembers emits Offset, and for matrix members ColMajor and
// MatrixStride, using layout already computed by the front end (Offset) and
// an std140-style column-vector rounding for the stride.
func (b *Backend) decorateStructMembers(structID uint32, st ir.StructType) {
	for i, m := range st.Members {
		b.builder.AddMemberDecorate(structID, uint32(i), DecorationOffset, m.Offset)
		if mt, ok := b.matrixInner(m.Type); ok {
			b.builder.AddMemberDecorate(structID, uint32(i), DecorationColMajor)
			b.builder.AddMemberDecorate(structID, uint32(i), DecorationMatrixStride, matrixColumnStride(mt))
		}
	}
}

func (b *Backend) matrixInner(handle ir.TypeHandle) (ir.MatrixType, bool) {
	typ, ok := b.module.Type(handle)
	if !ok {
		return ir.MatrixType{}, false
	}
	mt, ok := typ.Inner.(ir.MatrixType)
	return mt, ok
}

func matrixColumnStride(mt ir.MatrixType) uint32 {
	return alignUp(uint32(mt.Rows)*uint32(mt.Scalar.Width), 16)
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}

func addressSpaceToStorageClass(space ir.AddressSpace) StorageClass {
	switch space {
	case ir.SpaceFunction:
		return StorageClassFunction
	case ir.SpacePrivate:
		return StorageClassPrivate
	case ir.SpaceWorkGroup:
		return StorageClassWorkgroup
	case ir.SpaceUniform:
		return StorageClassUniform
	case ir.SpaceStorage:
		return StorageClassStorageBuffer
	case ir.SpacePushConstant:
		return StorageClassPushConstant
	case ir.SpaceUniformConstant:
		return StorageClassUniformConstant
	case ir.SpaceInput:
		return StorageClassInput
	case ir.SpaceOutput:
		return StorageClassOutput
	default:
		return StorageClassFunction
	}
}

// --- constants ---

func (b *Backend) constantIDFor(handle ir.ConstantHandle) (uint32, error) {
	if id, ok := b.constantIDs[handle]; ok {
		return id, nil
	}
	c, ok := b.module.Constant(handle)
	if !ok {
		return 0, fmt.Errorf("spirv: unknown constant handle %d", handle)
	}
	typeID, err := b.typeIDFor(c.Type)
	if err != nil {
		return 0, err
	}

	var id uint32
	switch v := c.Value.(type) {
	case ir.ScalarValue:
		if c.IsOverride {
			id, err = b.emitSpecConstant(typeID, v, c.SpecID)
		} else {
			id, err = b.emitScalarConstant(typeID, v)
		}
	case ir.CompositeValue:
		members := make([]uint32, len(v.Components))
		for i, comp := range v.Components {
			mID, merr := b.constantIDFor(comp)
			if merr != nil {
				return 0, merr
			}
			members[i] = mID
		}
		id = b.builder.AddConstantComposite(typeID, members...)
	case ir.NullValue:
		id = b.builder.AddTypeInstruction(OpConstantNull, typeID)
	default:
		return 0, fmt.Errorf("spirv: unhandled constant value %T", v)
	}
	if err != nil {
		return 0, err
	}
	b.constantIDs[handle] = id
	return id, nil
}

func (b *Backend) emitScalarConstant(typeID uint32, v ir.ScalarValue) (uint32, error) {
	switch v.Kind {
	case ir.ScalarBool:
		if v.Bits != 0 {
			return b.builder.AddTypeInstruction(OpConstantTrue, typeID), nil
		}
		return b.builder.AddTypeInstruction(OpConstantFalse, typeID), nil
	case ir.ScalarFloat:
		return b.emitFloatConstant(typeID, v.Bits), nil
	default:
		return b.builder.AddConstant(typeID, uint32(v.Bits)), nil
	}
}

// emitFloatConstant distinguishes f32 from f64 by whether the stored bit
// pattern fits the lower 32 bits: f32 literals are carried as
// uint64(math.Float32bits(x)) (zero-extended), never as a float64
// reinterpretation, so a nonzero high half means this is really an f64.
func (b *Backend) emitFloatConstant(typeID uint32, bits uint64) uint32 {
	if bits>>32 == 0 {
		return b.builder.AddConstantFloat32(typeID, math.Float32frombits(uint32(bits)))
	}
	return b.builder.AddConstantFloat64(typeID, math.Float64frombits(bits))
}

func (b *Backend) emitSpecConstant(typeID uint32, v ir.ScalarValue, specID uint32) (uint32, error) {
	var id uint32
	switch v.Kind {
	case ir.ScalarBool:
		if v.Bits != 0 {
			id = b.builder.AddTypeInstruction(OpSpecConstantTrue, typeID)
		} else {
			id = b.builder.AddTypeInstruction(OpSpecConstantFalse, typeID)
		}
	case ir.ScalarFloat:
		if v.Bits>>32 == 0 {
			id = b.builder.AddTypeValueInstruction(OpSpecConstant, typeID, uint32(v.Bits))
		} else {
			id = b.builder.AddTypeValueInstruction(OpSpecConstant, typeID, uint32(v.Bits), uint32(v.Bits>>32))
		}
	default:
		id = b.builder.AddTypeValueInstruction(OpSpecConstant, typeID, uint32(v.Bits))
	}
	b.builder.AddDecorate(id, DecorationSpecId, specID)
	return id, nil
}

// --- globals ---

func (b *Backend) emitGlobal(g ir.GlobalVariable) error {
	typ, ok := b.module.Type(g.Type)
	if !ok {
		return fmt.Errorf("spirv: unknown global type %d", g.Type)
	}
	_, isStruct := typ.Inner.(ir.StructType)
	needsBlock := g.Space == ir.SpaceUniform || g.Space == ir.SpaceStorage || g.Space == ir.SpacePushConstant

	// A conformant validator rejects a Uniform/StorageBuffer/PushConstant
	// variable that isn't Block-decorated, and Block can only decorate a
	// struct type — so a bare resource (e.g. `var<storage> buf: array<u32>`)
	// gets wrapped in a synthetic single-member struct before it's used as
	// the variable's pointee type.
	pointeeType := g.Type
	if needsBlock && !isStruct {
		pointeeType = b.interner.InternType("", ir.StructType{
			Members: []ir.StructMember{{Name: "_data", Type: g.Type, Offset: 0}},
		})
		b.wrappedGlobals[g.ID] = true
	}

	ptrType, err := b.internedTypeID(ir.PointerType{Base: pointeeType, Space: g.Space})
	if err != nil {
		return err
	}
	class := addressSpaceToStorageClass(g.Space)

	var id uint32
	if g.Init != ir.NoID {
		initID, ierr := b.constantIDFor(g.Init)
		if ierr != nil {
			return ierr
		}
		id = b.builder.AddVariableWithInit(ptrType, class, initID)
	} else {
		id = b.builder.AddVariable(ptrType, class)
	}
	b.globalIDs[g.ID] = id

	if g.Binding != nil {
		b.builder.AddDecorate(id, DecorationDescriptorSet, g.Binding.Group)
		b.builder.AddDecorate(id, DecorationBinding, g.Binding.Binding)
	}
	if g.NonWritable {
		b.builder.AddDecorate(id, DecorationNonWritable)
	}
	if g.Invariant {
		b.builder.AddDecorate(id, DecorationInvariant)
	}
	if needsBlock {
		structID, serr := b.typeIDFor(pointeeType)
		if serr != nil {
			return serr
		}
		b.builder.AddDecorate(structID, DecorationBlock)
	}
	if g.Name != "" {
		b.builder.AddName(id, g.Name)
	}
	return nil
}

// --- builtins / bindings ---

func builtinToSPIRV(v ir.BuiltinValue, stage ir.ShaderStage) BuiltIn {
	switch v {
	case ir.BuiltinPosition:
		if stage == ir.StageVertex {
			return BuiltInPosition
		}
		return BuiltInFragCoord
	case ir.BuiltinVertexIndex:
		return BuiltInVertexIndex
	case ir.BuiltinInstanceIndex:
		return BuiltInInstanceIndex
	case ir.BuiltinFrontFacing:
		return BuiltInFrontFacing
	case ir.BuiltinFragDepth:
		return BuiltInFragDepth
	case ir.BuiltinSampleIndex:
		return BuiltInSampleID
	case ir.BuiltinSampleMask:
		return BuiltInSampleMask
	case ir.BuiltinLocalInvocationID:
		return BuiltInLocalInvocationID
	case ir.BuiltinLocalInvocationIndex:
		return BuiltInLocalInvocationIndex
	case ir.BuiltinGlobalInvocationID:
		return BuiltInGlobalInvocationID
	case ir.BuiltinWorkGroupID:
		return BuiltInWorkgroupID
	case ir.BuiltinNumWorkGroups:
		return BuiltInNumWorkgroups
	default:
		return BuiltInPosition
	}
}

// emitInterfaceVars decomposes a builtin- or location-bound argument/result
// type into one Input/Output OpVariable per leaf member (struct types
// decompose member-wise; anything else is a single variable) and returns
// their IDs in member order.
func (b *Backend) emitInterfaceVars(typeHandle ir.TypeHandle, binding *ir.Binding, class StorageClass, stage ir.ShaderStage, interfaces *[]uint32) ([]uint32, error) {
	if binding == nil {
		typ, ok := b.module.Type(typeHandle)
		if !ok {
			return nil, fmt.Errorf("spirv: unknown type handle %d", typeHandle)
		}
		st, ok := typ.Inner.(ir.StructType)
		if !ok {
			return nil, fmt.Errorf("spirv: entry-point value has neither a binding nor a struct type")
		}
		var ids []uint32
		for _, m := range st.Members {
			memberIDs, err := b.emitInterfaceVars(m.Type, m.Binding, class, stage, interfaces)
			if err != nil {
				return nil, err
			}
			ids = append(ids, memberIDs...)
		}
		return ids, nil
	}

	ptrType, err := b.internedTypeID(ir.PointerType{Base: typeHandle, Space: storageClassToSpace(class)})
	if err != nil {
		return nil, err
	}
	id := b.builder.AddVariable(ptrType, class)
	*interfaces = append(*interfaces, id)

	switch bind := (*binding).(type) {
	case ir.BuiltinBinding:
		b.builder.AddDecorate(id, DecorationBuiltIn, uint32(builtinToSPIRV(bind.Builtin, stage)))
	case ir.LocationBinding:
		b.builder.AddDecorate(id, DecorationLocation, bind.Location)
		if bind.Interpolation != nil {
			switch bind.Interpolation.Kind {
			case ir.InterpolateFlat:
				b.builder.AddDecorate(id, DecorationFlat)
			case ir.InterpolateLinear:
				b.builder.AddDecorate(id, DecorationNoPerspective)
			}
		}
	}
	return []uint32{id}, nil
}

func storageClassToSpace(class StorageClass) ir.AddressSpace {
	if class == StorageClassOutput {
		return ir.SpaceOutput
	}
	return ir.SpaceInput
}

// --- functions ---

func (b *Backend) emitFunction(fn *ir.Function) error {
	handle, ok := b.module.FunctionHandle(fn)
	if !ok {
		return fmt.Errorf("spirv: function %q not registered in module", fn.Name)
	}

	isEntry, stage := b.entryStageFor(handle)

	b.values = make(map[ir.ValueHandle]uint32)
	b.valueTypes = ir.TypeOf(b.interner, fn)
	b.blockLabels = make(map[ir.BlockHandle]uint32)
	b.currentFn = fn
	b.currentHandle = handle
	b.currentStage = stage
	b.isEntry = isEntry
	b.currentInterface = nil

	var returnTypeID uint32
	var err error
	if isEntry || fn.Result == nil {
		returnTypeID = b.builder.AddTypeVoid()
	} else {
		returnTypeID, err = b.typeIDFor(fn.Result.Type)
		if err != nil {
			return err
		}
	}

	paramTypeIDs := make([]uint32, 0, len(fn.Arguments))
	if !isEntry {
		for _, arg := range fn.Arguments {
			ptID, perr := b.typeIDFor(arg.Type)
			if perr != nil {
				return perr
			}
			paramTypeIDs = append(paramTypeIDs, ptID)
		}
	}
	funcTypeID := b.builder.AddTypeFunction(returnTypeID, paramTypeIDs...)

	funcID := b.builder.AddFunction(funcTypeID, returnTypeID, FunctionControlNone)
	b.functionIDs[handle] = funcID
	if fn.Name != "" {
		b.builder.AddName(funcID, fn.Name)
	}

	if !isEntry {
		for i, arg := range fn.Arguments {
			paramID := b.builder.AddFunctionParameter(paramTypeIDs[i])
			b.values[arg.ID] = paramID
		}
	}

	entryLabel := b.builder.AddLabel()
	b.blockLabels[fn.Entry] = entryLabel
	for _, blk := range fn.Blocks {
		if blk.ID != fn.Entry {
			b.blockLabels[blk.ID] = b.builder.AllocID()
		}
	}

	if isEntry {
		if err := b.loadEntryArguments(fn); err != nil {
			return err
		}
	}

	for _, local := range fn.Locals {
		ptrType, lerr := b.internedTypeID(ir.PointerType{Base: local.Type, Space: ir.SpaceFunction})
		if lerr != nil {
			return lerr
		}
		var varID uint32
		if local.Init != ir.NoID {
			initID, ierr := b.constantIDFor(local.Init)
			if ierr != nil {
				return ierr
			}
			varID = b.builder.AddVariableWithInit(ptrType, StorageClassFunction, initID)
		} else {
			varID = b.builder.AddVariable(ptrType, StorageClassFunction)
		}
		b.values[local.ID] = varID
		if local.Name != "" {
			b.builder.AddName(varID, local.Name)
		}
	}

	for i, blk := range fn.Blocks {
		if i > 0 {
			b.builder.AddLabelID(b.blockLabels[blk.ID])
		}
		for _, inst := range blk.Instructions {
			if err := b.emitInstruction(inst); err != nil {
				return err
			}
		}
		if err := b.emitTerminator(blk.Terminator); err != nil {
			return err
		}
	}

	if isEntry {
		b.entryInterfaces[handle] = b.currentInterface
	}

	b.builder.AddFunctionEnd()
	return nil
}

func (b *Backend) entryStageFor(handle ir.FuncHandle) (bool, ir.ShaderStage) {
	for _, ep := range b.module.EntryPoints {
		if ep.Function == handle {
			return true, ep.Stage
		}
	}
	return false, ir.StageVertex
}

// loadEntryArguments materializes each entry-point argument's value by
// loading it (builtin/location args decompose to one Input variable per
// member, reassembled with OpCompositeConstruct) since SPIR-V entry
// functions take no parameters.
func (b *Backend) loadEntryArguments(fn *ir.Function) error {
	for _, arg := range fn.Arguments {
		varIDs, err := b.emitInterfaceVars(arg.Type, arg.Binding, StorageClassInput, b.currentStage, &b.currentInterface)
		if err != nil {
			return err
		}
		b.argInterfaceVars[arg.ID] = varIDs
		value, err := b.assembleEntryValue(arg.Type, varIDs)
		if err != nil {
			return err
		}
		b.values[arg.ID] = value
	}
	return nil
}

// assembleEntryValue loads each interface variable and, for a struct type,
// composes the members back into a single struct value.
func (b *Backend) assembleEntryValue(typeHandle ir.TypeHandle, varIDs []uint32) (uint32, error) {
	typ, ok := b.module.Type(typeHandle)
	if ok {
		if st, isStruct := typ.Inner.(ir.StructType); isStruct {
			typeID, err := b.typeIDFor(typeHandle)
			if err != nil {
				return 0, err
			}
			members := make([]uint32, len(st.Members))
			cursor := 0
			for i, m := range st.Members {
				memberCount := b.interfaceVarCount(m.Type, m.Binding)
				memberValue, err := b.assembleEntryValue(m.Type, varIDs[cursor:cursor+memberCount])
				if err != nil {
					return 0, err
				}
				members[i] = memberValue
				cursor += memberCount
			}
			return b.builder.AddCompositeConstruct(typeID, members...), nil
		}
	}
	typeID, err := b.typeIDFor(typeHandle)
	if err != nil {
		return 0, err
	}
	return b.builder.AddLoad(typeID, varIDs[0]), nil
}

func (b *Backend) interfaceVarCount(typeHandle ir.TypeHandle, binding *ir.Binding) int {
	if binding != nil {
		return 1
	}
	typ, ok := b.module.Type(typeHandle)
	if !ok {
		return 1
	}
	st, ok := typ.Inner.(ir.StructType)
	if !ok {
		return 1
	}
	n := 0
	for _, m := range st.Members {
		n += b.interfaceVarCount(m.Type, m.Binding)
	}
	return n
}

// storeEntryResult decomposes a return value into its interface Output
// variables (reverse of loadEntryArguments) just before the entry point's
// OpReturn.
func (b *Backend) storeEntryResult(value uint32) error {
	if b.currentFn.Result == nil {
		return nil
	}
	varIDs, err := b.emitInterfaceVars(b.currentFn.Result.Type, b.currentFn.Result.Binding, StorageClassOutput, b.currentStage, &b.currentInterface)
	if err != nil {
		return err
	}
	return b.storeEntryValue(b.currentFn.Result.Type, value, varIDs)
}

func (b *Backend) storeEntryValue(typeHandle ir.TypeHandle, value uint32, varIDs []uint32) error {
	typ, ok := b.module.Type(typeHandle)
	if ok {
		if st, isStruct := typ.Inner.(ir.StructType); isStruct {
			cursor := 0
			for i, m := range st.Members {
				memberTypeID, err := b.typeIDFor(m.Type)
				if err != nil {
					return err
				}
				memberValue := b.builder.AddInstruction(OpCompositeExtract, memberTypeID, value, uint32(i))
				memberCount := b.interfaceVarCount(m.Type, m.Binding)
				if err := b.storeEntryValue(m.Type, memberValue, varIDs[cursor:cursor+memberCount]); err != nil {
					return err
				}
				cursor += memberCount
			}
			return nil
		}
	}
	b.builder.AddStore(varIDs[0], value)
	return nil
}

func (b *Backend) emitEntryPoints() error {
	for _, ep := range b.module.EntryPoints {
		funcID, ok := b.functionIDs[ep.Function]
		if !ok {
			return fmt.Errorf("spirv: entry point %q never emitted", ep.Name)
		}

		interfaces := append([]uint32(nil), b.entryInterfaces[ep.Function]...)
		for _, g := range ep.Interface {
			if gID, ok := b.globalIDs[g]; ok {
				interfaces = append(interfaces, gID)
			}
		}

		execModel := ExecutionModelVertex
		switch ep.Stage {
		case ir.StageFragment:
			execModel = ExecutionModelFragment
		case ir.StageCompute:
			execModel = ExecutionModelGLCompute
		}
		b.builder.AddEntryPoint(execModel, funcID, ep.Name, interfaces)

		switch ep.Stage {
		case ir.StageFragment:
			b.builder.AddExecutionMode(funcID, ExecutionModeOriginUpperLeft)
			if ep.Flags&ir.FlagDepthReplacing != 0 {
				b.builder.AddExecutionMode(funcID, ExecutionModeDepthReplacing)
			}
			if ep.Flags&ir.FlagEarlyFragmentTests != 0 {
				b.builder.AddExecutionMode(funcID, ExecutionModeEarlyFragmentTests)
			}
		case ir.StageCompute:
			b.builder.AddExecutionMode(funcID, ExecutionModeLocalSize, ep.Workgroup[0], ep.Workgroup[1], ep.Workgroup[2])
		}
	}
	return nil
}

// --- value resolution ---

// valueID resolves a value reference to whatever SPIR-V ID already carries
// it: a block-local value or parameter already in b.values, a module
// constant (emitted lazily on first use), or a global variable's own ID
// (globals carry their pointer directly, with no separate "load global" step
// needed to materialize a reference to them).
func (b *Backend) valueID(v ir.ValueHandle) (uint32, error) {
	if id, ok := b.values[v]; ok {
		return id, nil
	}
	if _, ok := b.module.Constant(v); ok {
		id, err := b.constantIDFor(v)
		if err != nil {
			return 0, err
		}
		b.values[v] = id
		return id, nil
	}
	if g, ok := b.module.Global(v); ok {
		if id, ok := b.globalIDs[g.ID]; ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("spirv: unresolved value %d", v)
}

// leadingWrapIndex returns the single member-0 access-chain index needed to
// step through a synthetic Block-wrapping struct when v is a bare resource
// global that emitGlobal had to wrap (see wrappedGlobals), or nil otherwise.
func (b *Backend) leadingWrapIndex(v ir.ValueHandle) []uint32 {
	g, ok := b.module.Global(v)
	if !ok || !b.wrappedGlobals[g.ID] {
		return nil
	}
	zero := b.builder.AddConstant(b.mustScalarType(ir.ScalarUint, 4), 0)
	return []uint32{zero}
}

// resolvedPointer is valueID plus the member-0 access chain a direct load or
// store of a wrapped global's value (as opposed to an already-indexed
// access) needs to reach its real, unwrapped type.
func (b *Backend) resolvedPointer(v ir.ValueHandle) (uint32, error) {
	base, err := b.valueID(v)
	if err != nil {
		return 0, err
	}
	g, ok := b.module.Global(v)
	if !ok || !b.wrappedGlobals[g.ID] {
		return base, nil
	}
	ptrType, perr := b.internedTypeID(ir.PointerType{Base: g.Type, Space: g.Space})
	if perr != nil {
		return 0, perr
	}
	zero := b.builder.AddConstant(b.mustScalarType(ir.ScalarUint, 4), 0)
	return b.builder.AddAccessChain(ptrType, base, zero), nil
}

func (b *Backend) scalarKindOf(h ir.TypeHandle) ir.ScalarKind {
	typ, ok := b.module.Type(h)
	if !ok {
		return ir.ScalarFloat
	}
	switch inner := typ.Inner.(type) {
	case ir.ScalarType:
		return inner.Kind
	case ir.VectorType:
		return inner.Scalar.Kind
	case ir.MatrixType:
		return inner.Scalar.Kind
	case ir.AtomicType:
		return inner.Scalar.Kind
	default:
		return ir.ScalarFloat
	}
}

// scalarWidthOf returns the bit width of the scalar (or scalar-of-vector)
// type behind h, defaulting to 32 for anything it can't resolve.
func (b *Backend) scalarWidthOf(h ir.TypeHandle) uint32 {
	typ, ok := b.module.Type(h)
	if !ok {
		return 32
	}
	switch inner := typ.Inner.(type) {
	case ir.ScalarType:
		return uint32(inner.Width) * 8
	case ir.VectorType:
		return uint32(inner.Scalar.Width) * 8
	default:
		return 32
	}
}

func (b *Backend) isMatrixHandle(h ir.TypeHandle) bool {
	typ, ok := b.module.Type(h)
	if !ok {
		return false
	}
	_, ok = typ.Inner.(ir.MatrixType)
	return ok
}

func (b *Backend) isVectorHandle(h ir.TypeHandle) bool {
	typ, ok := b.module.Type(h)
	if !ok {
		return false
	}
	_, ok = typ.Inner.(ir.VectorType)
	return ok
}

func arithOp(kind ir.ScalarKind, floatOp, sintOp, uintOp OpCode) OpCode {
	switch kind {
	case ir.ScalarFloat:
		return floatOp
	case ir.ScalarSint:
		return sintOp
	case ir.ScalarUint:
		return uintOp
	default:
		return sintOp
	}
}

// --- non-terminator instructions ---

func (b *Backend) emitInstruction(inst ir.Instruction) error {
	var resultTypeID uint32
	if inst.Result != ir.NoID {
		th, ok := b.valueTypes[inst.Result]
		if !ok {
			return fmt.Errorf("spirv: no inferred type for value %d", inst.Result)
		}
		id, err := b.typeIDFor(th)
		if err != nil {
			return err
		}
		resultTypeID = id
	}

	switch k := inst.Kind.(type) {
	case ir.InstCompose:
		ids, err := b.valueIDs(k.Components)
		if err != nil {
			return err
		}
		id, err := b.typeIDFor(k.Type)
		if err != nil {
			return err
		}
		b.values[inst.Result] = b.builder.AddCompositeConstruct(id, ids...)

	case ir.InstAccess:
		base, err := b.valueID(k.Base)
		if err != nil {
			return err
		}
		index, err := b.valueID(k.Index)
		if err != nil {
			return err
		}
		indices := b.leadingWrapIndex(k.Base)
		indices = append(indices, index)
		b.values[inst.Result] = b.builder.AddAccessChain(resultTypeID, base, indices...)

	case ir.InstAccessIndex:
		base, err := b.valueID(k.Base)
		if err != nil {
			return err
		}
		indexConst, err := b.literalUint(k.Index)
		if err != nil {
			return err
		}
		indices := b.leadingWrapIndex(k.Base)
		indices = append(indices, indexConst)
		b.values[inst.Result] = b.builder.AddAccessChain(resultTypeID, base, indices...)

	case ir.InstExtract:
		composite, err := b.valueID(k.Composite)
		if err != nil {
			return err
		}
		b.values[inst.Result] = b.builder.AddInstruction(OpCompositeExtract, resultTypeID, composite, k.Index)

	case ir.InstExtractDynamic:
		composite, err := b.valueID(k.Composite)
		if err != nil {
			return err
		}
		index, err := b.valueID(k.Index)
		if err != nil {
			return err
		}
		b.values[inst.Result] = b.builder.AddInstruction(OpVectorExtractDynamic, resultTypeID, composite, index)

	case ir.InstInsert:
		composite, err := b.valueID(k.Composite)
		if err != nil {
			return err
		}
		value, err := b.valueID(k.Value)
		if err != nil {
			return err
		}
		b.values[inst.Result] = b.builder.AddInstruction(OpCompositeInsert, resultTypeID, value, composite, k.Index)

	case ir.InstInsertDynamic:
		composite, err := b.valueID(k.Composite)
		if err != nil {
			return err
		}
		index, err := b.valueID(k.Index)
		if err != nil {
			return err
		}
		value, err := b.valueID(k.Value)
		if err != nil {
			return err
		}
		b.values[inst.Result] = b.builder.AddInstruction(OpVectorInsertDynamic, resultTypeID, composite, value, index)

	case ir.InstSplat:
		value, err := b.valueID(k.Value)
		if err != nil {
			return err
		}
		components := make([]uint32, k.Size)
		for i := range components {
			components[i] = value
		}
		b.values[inst.Result] = b.builder.AddCompositeConstruct(resultTypeID, components...)

	case ir.InstShuffle:
		vec, err := b.valueID(k.Vector)
		if err != nil {
			return err
		}
		components := make([]uint32, k.Size)
		for i := 0; i < int(k.Size); i++ {
			components[i] = uint32(k.Pattern[i])
		}
		b.values[inst.Result] = b.builder.AddVectorShuffle(resultTypeID, vec, vec, components)

	case ir.InstLoad:
		pointer, err := b.resolvedPointer(k.Pointer)
		if err != nil {
			return err
		}
		b.values[inst.Result] = b.builder.AddLoad(resultTypeID, pointer)

	case ir.InstStore:
		pointer, err := b.resolvedPointer(k.Pointer)
		if err != nil {
			return err
		}
		value, err := b.valueID(k.Value)
		if err != nil {
			return err
		}
		b.builder.AddStore(pointer, value)

	case ir.InstArrayLength:
		pointer, err := b.valueID(k.Pointer)
		if err != nil {
			return err
		}
		structID := pointer // the pointer's base is the struct; access chain into member 0 is implicit here
		b.values[inst.Result] = b.builder.AddInstruction(OpArrayLength, resultTypeID, structID, 0)

	case ir.InstUnary:
		if err := b.emitUnary(inst.Result, k, resultTypeID); err != nil {
			return err
		}

	case ir.InstBinary:
		if err := b.emitBinary(inst.Result, k, resultTypeID); err != nil {
			return err
		}

	case ir.InstSelect:
		condition, err := b.valueID(k.Condition)
		if err != nil {
			return err
		}
		accept, err := b.valueID(k.Accept)
		if err != nil {
			return err
		}
		reject, err := b.valueID(k.Reject)
		if err != nil {
			return err
		}
		b.values[inst.Result] = b.builder.AddSelect(resultTypeID, condition, accept, reject)

	case ir.InstMath:
		id, err := b.emitMath(k, resultTypeID)
		if err != nil {
			return err
		}
		b.values[inst.Result] = id

	case ir.InstRelational:
		id, err := b.emitRelational(k, resultTypeID)
		if err != nil {
			return err
		}
		b.values[inst.Result] = id

	case ir.InstDerivative:
		value, err := b.valueID(k.Value)
		if err != nil {
			return err
		}
		b.values[inst.Result] = b.builder.AddUnaryOp(derivativeOpcode(k), resultTypeID, value)

	case ir.InstConvert:
		value, err := b.valueID(k.Value)
		if err != nil {
			return err
		}
		srcType := b.scalarKindOf(b.valueTypes[k.Value])
		id, err := b.emitConvert(resultTypeID, value, srcType, k.Kind)
		if err != nil {
			return err
		}
		b.values[inst.Result] = id

	case ir.InstBitcast:
		value, err := b.valueID(k.Value)
		if err != nil {
			return err
		}
		b.values[inst.Result] = b.builder.AddUnaryOp(OpBitcast, resultTypeID, value)

	case ir.InstCall:
		funcID, ok := b.functionIDs[k.Function]
		if !ok {
			return fmt.Errorf("spirv: call to unemitted function %d", k.Function)
		}
		args, err := b.valueIDs(k.Args)
		if err != nil {
			return err
		}
		id := b.builder.AddInstruction(OpFunctionCall, resultTypeID, append([]uint32{funcID}, args...)...)
		if inst.Result != ir.NoID {
			b.values[inst.Result] = id
		}

	case ir.InstImageSample:
		id, err := b.emitImageSample(k, resultTypeID)
		if err != nil {
			return err
		}
		b.values[inst.Result] = id

	case ir.InstImageLoad:
		id, err := b.emitImageLoad(k, resultTypeID)
		if err != nil {
			return err
		}
		b.values[inst.Result] = id

	case ir.InstImageStore:
		return b.emitImageStore(k)

	case ir.InstImageQuery:
		id, err := b.emitImageQuery(k, resultTypeID)
		if err != nil {
			return err
		}
		b.values[inst.Result] = id

	case ir.InstBarrier:
		b.emitBarrier(k)

	case ir.InstAtomic:
		id, err := b.emitAtomic(k, resultTypeID)
		if err != nil {
			return err
		}
		if inst.Result != ir.NoID {
			b.values[inst.Result] = id
		}

	case ir.InstSelectionMerge:
		b.builder.AddSelectionMerge(b.blockLabels[k.Merge], SelectionControlNone)

	case ir.InstLoopMerge:
		b.builder.AddLoopMerge(b.blockLabels[k.Merge], b.blockLabels[k.Continue], LoopControlNone)

	case ir.InstPhi:
		operands := make([]uint32, 0, len(k.Incoming)*2)
		for _, inc := range k.Incoming {
			v, err := b.valueID(inc.Value)
			if err != nil {
				return err
			}
			operands = append(operands, v, b.blockLabels[inc.Predecessor])
		}
		b.values[inst.Result] = b.builder.AddInstruction(OpPhi, resultTypeID, operands...)

	default:
		return fmt.Errorf("spirv: unhandled instruction %T", k)
	}
	return nil
}

func (b *Backend) valueIDs(handles []ir.ValueHandle) ([]uint32, error) {
	ids := make([]uint32, len(handles))
	for i, h := range handles {
		id, err := b.valueID(h)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// literalUint mints (or finds) a u32 constant to use as an access-chain
// index, since OpAccessChain indices are always value operands, even for
// InstAccessIndex's compile-time-constant index.
func (b *Backend) literalUint(v uint32) (uint32, error) {
	u32, err := b.internedTypeID(ir.ScalarType{Kind: ir.ScalarUint, Width: 4})
	if err != nil {
		return 0, err
	}
	return b.builder.AddConstant(u32, v), nil
}

func (b *Backend) emitUnary(result ir.ValueHandle, k ir.InstUnary, resultTypeID uint32) error {
	value, err := b.valueID(k.Value)
	if err != nil {
		return err
	}
	kind := b.scalarKindOf(b.valueTypes[k.Value])
	var op OpCode
	switch k.Op {
	case ir.UnaryNegate:
		if kind == ir.ScalarFloat {
			op = OpFNegate
		} else {
			op = OpSNegate
		}
	case ir.UnaryLogicalNot:
		op = OpLogicalNot
	case ir.UnaryBitwiseNot:
		op = OpNot
	}
	b.values[result] = b.builder.AddUnaryOp(op, resultTypeID, value)
	return nil
}

func (b *Backend) emitBinary(result ir.ValueHandle, k ir.InstBinary, resultTypeID uint32) error {
	left, err := b.valueID(k.Left)
	if err != nil {
		return err
	}
	right, err := b.valueID(k.Right)
	if err != nil {
		return err
	}
	leftType := b.valueTypes[k.Left]
	kind := b.scalarKindOf(leftType)

	switch k.Op {
	case ir.BinaryMultiply:
		b.values[result] = b.emitMultiply(left, right, leftType, b.valueTypes[k.Right], resultTypeID)
		return nil
	case ir.BinaryAdd:
		b.values[result] = b.builder.AddBinaryOp(arithOp(kind, OpFAdd, OpIAdd, OpIAdd), resultTypeID, left, right)
	case ir.BinarySubtract:
		b.values[result] = b.builder.AddBinaryOp(arithOp(kind, OpFSub, OpISub, OpISub), resultTypeID, left, right)
	case ir.BinaryDivide:
		b.values[result] = b.builder.AddBinaryOp(arithOp(kind, OpFDiv, OpSDiv, OpUDiv), resultTypeID, left, right)
	case ir.BinaryModulo:
		b.values[result] = b.builder.AddBinaryOp(arithOp(kind, OpFMod, OpSMod, OpUMod), resultTypeID, left, right)
	case ir.BinaryEqual:
		b.values[result] = b.builder.AddBinaryOp(compareOp(kind, OpFOrdEqual, OpIEqual, OpLogicalEqual), resultTypeID, left, right)
	case ir.BinaryNotEqual:
		b.values[result] = b.builder.AddBinaryOp(compareOp(kind, OpFOrdNotEqual, OpINotEqual, OpLogicalNotEqual), resultTypeID, left, right)
	case ir.BinaryLess:
		b.values[result] = b.builder.AddBinaryOp(arithOp(kind, OpFOrdLessThan, OpSLessThan, OpULessThan), resultTypeID, left, right)
	case ir.BinaryLessEqual:
		b.values[result] = b.builder.AddBinaryOp(arithOp(kind, OpFOrdLessThanEqual, OpSLessThanEqual, OpULessThanEqual), resultTypeID, left, right)
	case ir.BinaryGreater:
		b.values[result] = b.builder.AddBinaryOp(arithOp(kind, OpFOrdGreaterThan, OpSGreaterThan, OpUGreaterThan), resultTypeID, left, right)
	case ir.BinaryGreaterEqual:
		b.values[result] = b.builder.AddBinaryOp(arithOp(kind, OpFOrdGreaterThanEqual, OpSGreaterThanEqual, OpUGreaterThanEqual), resultTypeID, left, right)
	case ir.BinaryAnd:
		if kind == ir.ScalarBool {
			b.values[result] = b.builder.AddBinaryOp(OpLogicalAnd, resultTypeID, left, right)
		} else {
			b.values[result] = b.builder.AddBinaryOp(OpBitwiseAnd, resultTypeID, left, right)
		}
	case ir.BinaryInclusiveOr:
		if kind == ir.ScalarBool {
			b.values[result] = b.builder.AddBinaryOp(OpLogicalOr, resultTypeID, left, right)
		} else {
			b.values[result] = b.builder.AddBinaryOp(OpBitwiseOr, resultTypeID, left, right)
		}
	case ir.BinaryExclusiveOr:
		if kind == ir.ScalarBool {
			b.values[result] = b.builder.AddBinaryOp(OpLogicalNotEqual, resultTypeID, left, right)
		} else {
			b.values[result] = b.builder.AddBinaryOp(OpBitwiseXor, resultTypeID, left, right)
		}
	case ir.BinaryLogicalAnd:
		b.values[result] = b.builder.AddBinaryOp(OpLogicalAnd, resultTypeID, left, right)
	case ir.BinaryLogicalOr:
		b.values[result] = b.builder.AddBinaryOp(OpLogicalOr, resultTypeID, left, right)
	case ir.BinaryShiftLeft:
		b.values[result] = b.builder.AddBinaryOp(OpShiftLeftLogical, resultTypeID, left, right)
	case ir.BinaryShiftRight:
		if kind == ir.ScalarSint {
			b.values[result] = b.builder.AddBinaryOp(OpShiftRightArithmetic, resultTypeID, left, right)
		} else {
			b.values[result] = b.builder.AddBinaryOp(OpShiftRightLogical, resultTypeID, left, right)
		}
	default:
		return fmt.Errorf("spirv: unhandled binary operator %v", k.Op)
	}
	return nil
}

func compareOp(kind ir.ScalarKind, floatOp, intOp, boolOp OpCode) OpCode {
	if kind == ir.ScalarBool {
		return boolOp
	}
	if kind == ir.ScalarFloat {
		return floatOp
	}
	return intOp
}

// emitMultiply picks the SPIR-V multiply opcode matrix/vector/scalar shapes
// require; WGSL's single `*` operator covers all of these.
func (b *Backend) emitMultiply(left, right uint32, leftType, rightType ir.TypeHandle, resultTypeID uint32) uint32 {
	lMat, rMat := b.isMatrixHandle(leftType), b.isMatrixHandle(rightType)
	lVec, rVec := b.isVectorHandle(leftType), b.isVectorHandle(rightType)
	switch {
	case lMat && rMat:
		return b.builder.AddBinaryOp(OpMatrixTimesMatrix, resultTypeID, left, right)
	case lMat && rVec:
		return b.builder.AddBinaryOp(OpMatrixTimesVector, resultTypeID, left, right)
	case lVec && rMat:
		return b.builder.AddBinaryOp(OpVectorTimesMatrix, resultTypeID, left, right)
	case lMat:
		return b.builder.AddBinaryOp(OpMatrixTimesScalar, resultTypeID, left, right)
	case rMat:
		return b.builder.AddBinaryOp(OpMatrixTimesScalar, resultTypeID, right, left)
	case lVec && !rVec:
		return b.builder.AddBinaryOp(OpVectorTimesScalar, resultTypeID, left, right)
	case rVec && !lVec:
		return b.builder.AddBinaryOp(OpVectorTimesScalar, resultTypeID, right, left)
	default:
		kind := b.scalarKindOf(leftType)
		return b.builder.AddBinaryOp(arithOp(kind, OpFMul, OpIMul, OpIMul), resultTypeID, left, right)
	}
}

func (b *Backend) emitRelational(k ir.InstRelational, resultTypeID uint32) (uint32, error) {
	arg, err := b.valueID(k.Arg)
	if err != nil {
		return 0, err
	}
	switch k.Fun {
	case ir.RelationalAll:
		return b.builder.AddUnaryOp(OpAll, resultTypeID, arg), nil
	case ir.RelationalAny:
		return b.builder.AddUnaryOp(OpAny, resultTypeID, arg), nil
	case ir.RelationalIsNan:
		return b.builder.AddUnaryOp(OpIsNan, resultTypeID, arg), nil
	case ir.RelationalIsInf:
		return b.builder.AddUnaryOp(OpIsInf, resultTypeID, arg), nil
	default:
		return 0, fmt.Errorf("spirv: unhandled relational function %v", k.Fun)
	}
}

func derivativeOpcode(k ir.InstDerivative) OpCode {
	switch k.Control {
	case ir.DerivativeCoarse:
		switch k.Axis {
		case ir.DerivativeX:
			return OpDPdxCoarse
		case ir.DerivativeY:
			return OpDPdyCoarse
		default:
			return OpFwidthCoarse
		}
	case ir.DerivativeFine:
		switch k.Axis {
		case ir.DerivativeX:
			return OpDPdxFine
		case ir.DerivativeY:
			return OpDPdyFine
		default:
			return OpFwidthFine
		}
	default:
		switch k.Axis {
		case ir.DerivativeX:
			return OpDPdx
		case ir.DerivativeY:
			return OpDPdy
		default:
			return OpFwidth
		}
	}
}

func (b *Backend) emitConvert(resultTypeID, value uint32, from, to ir.ScalarKind) (uint32, error) {
	switch {
	case from == to:
		return value, nil
	case to == ir.ScalarFloat && from == ir.ScalarSint:
		return b.builder.AddUnaryOp(OpConvertSToF, resultTypeID, value), nil
	case to == ir.ScalarFloat && from == ir.ScalarUint:
		return b.builder.AddUnaryOp(OpConvertUToF, resultTypeID, value), nil
	case to == ir.ScalarSint && from == ir.ScalarFloat:
		return b.builder.AddUnaryOp(OpConvertFToS, resultTypeID, value), nil
	case to == ir.ScalarUint && from == ir.ScalarFloat:
		return b.builder.AddUnaryOp(OpConvertFToU, resultTypeID, value), nil
	case (to == ir.ScalarSint || to == ir.ScalarUint) && (from == ir.ScalarSint || from == ir.ScalarUint):
		return b.builder.AddUnaryOp(OpBitcast, resultTypeID, value), nil
	default:
		return 0, fmt.Errorf("spirv: unsupported conversion %v to %v", from, to)
	}
}

// --- math ---

var glslExtTable = map[ir.MathFunction]uint32{
	ir.MathCos: GLSLstd450Cos, ir.MathCosh: GLSLstd450Cosh, ir.MathSin: GLSLstd450Sin, ir.MathSinh: GLSLstd450Sinh,
	ir.MathTan: GLSLstd450Tan, ir.MathTanh: GLSLstd450Tanh, ir.MathAcos: GLSLstd450Acos, ir.MathAsin: GLSLstd450Asin,
	ir.MathAtan: GLSLstd450Atan, ir.MathAtan2: GLSLstd450Atan2, ir.MathAsinh: GLSLstd450Asinh, ir.MathAcosh: GLSLstd450Acosh,
	ir.MathAtanh: GLSLstd450Atanh, ir.MathRadians: GLSLstd450Radians, ir.MathDegrees: GLSLstd450Degrees,
	ir.MathCeil: GLSLstd450Ceil, ir.MathFloor: GLSLstd450Floor, ir.MathRound: GLSLstd450RoundEven,
	ir.MathFract: GLSLstd450Fract, ir.MathTrunc: GLSLstd450Trunc, ir.MathModf: GLSLstd450Modf, ir.MathFrexp: GLSLstd450Frexp,
	ir.MathLdexp: GLSLstd450Ldexp, ir.MathExp: GLSLstd450Exp, ir.MathExp2: GLSLstd450Exp2, ir.MathLog: GLSLstd450Log,
	ir.MathLog2: GLSLstd450Log2, ir.MathPow: GLSLstd450Pow, ir.MathCross: GLSLstd450Cross, ir.MathDistance: GLSLstd450Distance,
	ir.MathLength: GLSLstd450Length, ir.MathNormalize: GLSLstd450Normalize, ir.MathFaceForward: GLSLstd450FaceForward,
	ir.MathReflect: GLSLstd450Reflect, ir.MathRefract: GLSLstd450Refract, ir.MathMix: GLSLstd450FMix,
	ir.MathStep: GLSLstd450Step, ir.MathSmoothStep: GLSLstd450SmoothStep, ir.MathSqrt: GLSLstd450Sqrt,
	ir.MathInverseSqrt: GLSLstd450InverseSqrt, ir.MathInverse: GLSLstd450MatrixInverse, ir.MathDeterminant: GLSLstd450Determinant,
	ir.MathQuantizeF16: GLSLstd450RoundEven,
	ir.MathPack4x8snorm: GLSLstd450PackSnorm4x8, ir.MathPack4x8unorm: GLSLstd450PackUnorm4x8,
	ir.MathPack2x16snorm: GLSLstd450PackSnorm2x16, ir.MathPack2x16unorm: GLSLstd450PackUnorm2x16,
	ir.MathPack2x16float: GLSLstd450PackHalf2x16,
	ir.MathUnpack4x8snorm: GLSLstd450UnpackSnorm4x8, ir.MathUnpack4x8unorm: GLSLstd450UnpackUnorm4x8,
	ir.MathUnpack2x16snorm: GLSLstd450UnpackSnorm2x16, ir.MathUnpack2x16unorm: GLSLstd450UnpackUnorm2x16,
	ir.MathUnpack2x16float: GLSLstd450UnpackHalf2x16,
}

// emitMath dispatches to GLSL.std.450 extended instructions for the bulk of
// the math builtins, to core SPIR-V opcodes for the ones that have a direct
// encoding (dot/outer/transpose, bit-field ops), and special-cases the
// handful whose ext instruction depends on operand signedness
// (abs/sign/min/max/clamp) or that need a small synthesis (saturate, the
// 8-bit dot-product and packing functions this IR's builtin list carries but
// GLSL.std.450 has no direct instruction for).
func (b *Backend) emitMath(k ir.InstMath, resultTypeID uint32) (uint32, error) {
	argc := k.Fun.Arity()
	args := make([]uint32, argc)
	for i := 0; i < argc; i++ {
		id, err := b.valueID(k.Args[i])
		if err != nil {
			return 0, err
		}
		args[i] = id
	}
	kind := b.scalarKindOf(b.valueTypes[k.Args[0]])

	switch k.Fun {
	case ir.MathAbs:
		ext := GLSLstd450FAbs
		if kind == ir.ScalarSint {
			ext = GLSLstd450SAbs
		}
		return b.builder.AddExtInst(resultTypeID, b.glslExtID, ext, args...), nil
	case ir.MathSign:
		ext := GLSLstd450FSign
		if kind == ir.ScalarSint {
			ext = GLSLstd450SSign
		}
		return b.builder.AddExtInst(resultTypeID, b.glslExtID, ext, args...), nil
	case ir.MathMin:
		return b.builder.AddExtInst(resultTypeID, b.glslExtID, minMaxExt(kind, GLSLstd450FMin, GLSLstd450SMin, GLSLstd450UMin), args...), nil
	case ir.MathMax:
		return b.builder.AddExtInst(resultTypeID, b.glslExtID, minMaxExt(kind, GLSLstd450FMax, GLSLstd450SMax, GLSLstd450UMax), args...), nil
	case ir.MathClamp:
		return b.builder.AddExtInst(resultTypeID, b.glslExtID, minMaxExt(kind, GLSLstd450FClamp, GLSLstd450SClamp, GLSLstd450UClamp), args...), nil
	case ir.MathSaturate:
		return b.emitSaturate(resultTypeID, args[0]), nil
	case ir.MathDot:
		return b.builder.AddBinaryOp(OpDot, resultTypeID, args[0], args[1]), nil
	case ir.MathOuter:
		return b.builder.AddBinaryOp(OpOuterProduct, resultTypeID, args[0], args[1]), nil
	case ir.MathTranspose:
		return b.builder.AddUnaryOp(OpTranspose, resultTypeID, args[0]), nil
	case ir.MathFma:
		// Arity reserves a fourth slot but GLSLstd450Fma takes exactly 3 operands.
		return b.builder.AddExtInst(resultTypeID, b.glslExtID, GLSLstd450Fma, args[0], args[1], args[2]), nil
	case ir.MathCountOneBits:
		return b.builder.AddUnaryOp(OpBitCount, resultTypeID, args[0]), nil
	case ir.MathReverseBits:
		return b.builder.AddUnaryOp(OpBitReverse, resultTypeID, args[0]), nil
	case ir.MathExtractBits:
		op := OpBitFieldUExtract
		if kind == ir.ScalarSint {
			op = OpBitFieldSExtract
		}
		return b.builder.AddInstruction(op, resultTypeID, args[0], args[1], args[2]), nil
	case ir.MathInsertBits:
		return b.builder.AddInstruction(OpBitFieldInsert, resultTypeID, args[0], args[1], args[2], args[3]), nil
	case ir.MathFirstTrailingBit:
		return b.builder.AddExtInst(resultTypeID, b.glslExtID, GLSLstd450FindILsb, args...), nil
	case ir.MathFirstLeadingBit:
		ext := GLSLstd450FindUMsb
		if kind == ir.ScalarSint {
			ext = GLSLstd450FindSMsb
		}
		return b.builder.AddExtInst(resultTypeID, b.glslExtID, ext, args...), nil
	case ir.MathCountTrailingZeros:
		// FindILsb already returns the bit index of the least-significant set
		// bit, which is exactly the trailing-zero count.
		return b.builder.AddExtInst(resultTypeID, b.glslExtID, GLSLstd450FindILsb, args...), nil
	case ir.MathCountLeadingZeros:
		// FindUMsb returns the bit index of the most-significant set bit, not
		// a count from the top, so clz = width - 1 - msbIndex.
		msb := b.builder.AddExtInst(resultTypeID, b.glslExtID, GLSLstd450FindUMsb, args...)
		width := b.scalarWidthOf(b.valueTypes[k.Args[0]])
		widthMinusOne := b.builder.AddConstant(resultTypeID, width-1)
		return b.builder.AddBinaryOp(OpISub, resultTypeID, widthMinusOne, msb), nil
	case ir.MathDot4I8Packed, ir.MathDot4U8Packed, ir.MathPack4xI8, ir.MathPack4xU8,
		ir.MathPack4xI8Clamp, ir.MathPack4xU8Clamp, ir.MathUnpack4xI8, ir.MathUnpack4xU8:
		// No GLSL.std.450 instruction packs/unpacks four 8-bit lanes this way;
		// bitcast stands in until a dedicated lowering is written.
		return b.builder.AddUnaryOp(OpBitcast, resultTypeID, args[0]), nil
	default:
		if ext, ok := glslExtTable[k.Fun]; ok {
			return b.builder.AddExtInst(resultTypeID, b.glslExtID, ext, args...), nil
		}
		return 0, fmt.Errorf("spirv: unhandled math function %v", k.Fun)
	}
}

func minMaxExt(kind ir.ScalarKind, floatExt, sintExt, uintExt uint32) uint32 {
	switch kind {
	case ir.ScalarFloat:
		return floatExt
	case ir.ScalarSint:
		return sintExt
	default:
		return uintExt
	}
}

// emitSaturate synthesizes clamp(x, 0, 1) since GLSL.std.450 has no
// dedicated saturate instruction.
func (b *Backend) emitSaturate(resultTypeID, value uint32) uint32 {
	zero := b.builder.AddConstantFloat32(resultTypeID, 0)
	one := b.builder.AddConstantFloat32(resultTypeID, 1)
	return b.builder.AddExtInst(resultTypeID, b.glslExtID, GLSLstd450FClamp, value, zero, one)
}

// --- images ---

func (b *Backend) emitImageSample(k ir.InstImageSample, resultTypeID uint32) (uint32, error) {
	image, err := b.valueID(k.Image)
	if err != nil {
		return 0, err
	}
	sampler, err := b.valueID(k.Sampler)
	if err != nil {
		return 0, err
	}
	coord, err := b.valueID(k.Coordinate)
	if err != nil {
		return 0, err
	}
	sampledImageType, err := b.imageSampledTypeID(k.Image)
	if err != nil {
		return 0, err
	}
	sampledImage := b.builder.AddBinaryOp(OpSampledImage, sampledImageType, image, sampler)

	if k.ArrayIndex != ir.NoID {
		arrayIdx, aerr := b.valueID(k.ArrayIndex)
		if aerr != nil {
			return 0, aerr
		}
		vecType, verr := b.internedTypeID(ir.VectorType{Size: ir.Vec3, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}})
		if verr != nil {
			return 0, verr
		}
		coord = b.builder.AddCompositeConstruct(vecType, coord, arrayIdx)
	}

	// A texel offset is always a const-expression in WGSL/GLSL/MSL source,
	// so it is folded in as the ConstOffset image operand rather than the
	// capability-requiring runtime Offset operand.
	var offsetMask uint32
	var offsetWords []uint32
	if k.Offset != ir.NoID {
		off, operr := b.valueID(k.Offset)
		if operr != nil {
			return 0, operr
		}
		offsetMask = 8 // ConstOffset
		offsetWords = []uint32{off}
	}

	if k.Gather != nil {
		component := b.builder.AddConstant(b.mustScalarType(ir.ScalarUint, 4), uint32(*k.Gather))
		if k.DepthRef != ir.NoID {
			dref, derr := b.valueID(k.DepthRef)
			if derr != nil {
				return 0, derr
			}
			operands := []uint32{sampledImage, coord, dref}
			if offsetMask != 0 {
				operands = append(operands, offsetMask)
				operands = append(operands, offsetWords...)
			}
			return b.builder.AddInstruction(OpImageDrefGather, resultTypeID, operands...), nil
		}
		operands := []uint32{sampledImage, coord, component}
		if offsetMask != 0 {
			operands = append(operands, offsetMask)
			operands = append(operands, offsetWords...)
		}
		return b.builder.AddInstruction(OpImageGather, resultTypeID, operands...), nil
	}

	if k.DepthRef != ir.NoID {
		dref, derr := b.valueID(k.DepthRef)
		if derr != nil {
			return 0, derr
		}
		opcode := OpImageSampleDrefImplicitLod
		if _, explicit := k.Level.(ir.SampleLevelExact); explicit {
			opcode = OpImageSampleDrefExplicitLod
		}
		operands := []uint32{sampledImage, coord, dref}
		if offsetMask != 0 {
			operands = append(operands, offsetMask)
			operands = append(operands, offsetWords...)
		}
		return b.builder.AddInstruction(opcode, resultTypeID, operands...), nil
	}

	switch lvl := k.Level.(type) {
	case ir.SampleLevelExact:
		level, lerr := b.valueID(lvl.Level)
		if lerr != nil {
			return 0, lerr
		}
		operands := append([]uint32{sampledImage, coord, 2 | offsetMask, level}, offsetWords...)
		return b.builder.AddInstruction(OpImageSampleExplicitLod, resultTypeID, operands...), nil
	case ir.SampleLevelZero:
		zero := b.builder.AddConstantFloat32(b.mustScalarType(ir.ScalarFloat, 4), 0)
		operands := append([]uint32{sampledImage, coord, 2 | offsetMask, zero}, offsetWords...)
		return b.builder.AddInstruction(OpImageSampleExplicitLod, resultTypeID, operands...), nil
	case ir.SampleLevelBias:
		bias, berr := b.valueID(lvl.Bias)
		if berr != nil {
			return 0, berr
		}
		operands := append([]uint32{sampledImage, coord, 1 | offsetMask, bias}, offsetWords...)
		return b.builder.AddInstruction(OpImageSampleImplicitLod, resultTypeID, operands...), nil
	case ir.SampleLevelGradient:
		x, xerr := b.valueID(lvl.X)
		if xerr != nil {
			return 0, xerr
		}
		y, yerr := b.valueID(lvl.Y)
		if yerr != nil {
			return 0, yerr
		}
		operands := append([]uint32{sampledImage, coord, 4 | offsetMask, x, y}, offsetWords...)
		return b.builder.AddInstruction(OpImageSampleExplicitLod, resultTypeID, operands...), nil
	default:
		if offsetMask != 0 {
			operands := append([]uint32{sampledImage, coord, offsetMask}, offsetWords...)
			return b.builder.AddInstruction(OpImageSampleImplicitLod, resultTypeID, operands...), nil
		}
		return b.builder.AddInstruction(OpImageSampleImplicitLod, resultTypeID, sampledImage, coord), nil
	}
}

func (b *Backend) mustScalarType(kind ir.ScalarKind, width uint8) uint32 {
	id, _ := b.internedTypeID(ir.ScalarType{Kind: kind, Width: width})
	return id
}

// imageSampledTypeID returns the %sampled_image type wrapping the image
// value's own type, caching by image TypeHandle since OpTypeSampledImage,
// like every other SPIR-V type, must be declared at most once per module.
func (b *Backend) imageSampledTypeID(imageValue ir.ValueHandle) (uint32, error) {
	imgTypeHandle, ok := b.valueTypes[imageValue]
	if !ok {
		return 0, fmt.Errorf("spirv: no inferred type for image value %d", imageValue)
	}
	if id, ok := b.sampledImageIDs[imgTypeHandle]; ok {
		return id, nil
	}
	imgID, err := b.typeIDFor(imgTypeHandle)
	if err != nil {
		return 0, err
	}
	id := b.builder.AddTypeInstruction(OpTypeSampledImage, imgID)
	b.sampledImageIDs[imgTypeHandle] = id
	return id, nil
}

func (b *Backend) emitImageLoad(k ir.InstImageLoad, resultTypeID uint32) (uint32, error) {
	image, err := b.valueID(k.Image)
	if err != nil {
		return 0, err
	}
	coord, err := b.valueID(k.Coordinate)
	if err != nil {
		return 0, err
	}
	imgTypeHandle := b.valueTypes[k.Image]
	imgType, _ := b.module.Type(imgTypeHandle)
	img, _ := imgType.Inner.(ir.ImageType)

	var operands []uint32
	var imageOperandsMask uint32
	if k.Sample != ir.NoID {
		sample, serr := b.valueID(k.Sample)
		if serr != nil {
			return 0, serr
		}
		imageOperandsMask |= 64 // Sample
		operands = append(operands, sample)
	} else if k.Level != ir.NoID && img.Class != ir.ImageClassStorage {
		level, lerr := b.valueID(k.Level)
		if lerr != nil {
			return 0, lerr
		}
		imageOperandsMask |= 2 // Lod
		operands = append(operands, level)
	}

	opcode := OpImageRead
	if img.Class != ir.ImageClassStorage {
		opcode = OpImageFetch
	}
	args := []uint32{image, coord}
	if imageOperandsMask != 0 {
		args = append(args, imageOperandsMask)
		args = append(args, operands...)
	}
	return b.builder.AddInstruction(opcode, resultTypeID, args...), nil
}

func (b *Backend) emitImageStore(k ir.InstImageStore) error {
	image, err := b.valueID(k.Image)
	if err != nil {
		return err
	}
	coord, err := b.valueID(k.Coordinate)
	if err != nil {
		return err
	}
	value, err := b.valueID(k.Value)
	if err != nil {
		return err
	}
	b.builder.AddInstructionNoResult(OpImageWrite, image, coord, value)
	return nil
}

func (b *Backend) emitImageQuery(k ir.InstImageQuery, resultTypeID uint32) (uint32, error) {
	image, err := b.valueID(k.Image)
	if err != nil {
		return 0, err
	}
	switch q := k.Query.(type) {
	case ir.ImageQuerySize:
		if q.Level != ir.NoID {
			level, lerr := b.valueID(q.Level)
			if lerr != nil {
				return 0, lerr
			}
			return b.builder.AddInstruction(OpImageQuerySizeLod, resultTypeID, image, level), nil
		}
		return b.builder.AddUnaryOp(OpImageQuerySize, resultTypeID, image), nil
	case ir.ImageQueryNumLevels:
		return b.builder.AddUnaryOp(OpImageQueryLevels, resultTypeID, image), nil
	case ir.ImageQueryNumLayers:
		return b.builder.AddUnaryOp(OpImageQuerySize, resultTypeID, image), nil
	case ir.ImageQueryNumSamples:
		return b.builder.AddUnaryOp(OpImageQuerySamples, resultTypeID, image), nil
	default:
		return 0, fmt.Errorf("spirv: unhandled image query %T", q)
	}
}

// --- synchronization ---

func (b *Backend) emitBarrier(k ir.InstBarrier) {
	scope := b.builder.AddConstant(b.mustScalarType(ir.ScalarUint, 4), ScopeWorkgroup)
	semantics := uint32(MemorySemanticsAcquireRelease)
	if k.Flags&ir.BarrierStorage != 0 {
		semantics |= MemorySemanticsUniformMemory
	}
	if k.Flags&ir.BarrierWorkGroup != 0 {
		semantics |= MemorySemanticsWorkgroupMemory
	}
	if k.Flags&ir.BarrierTexture != 0 {
		semantics |= MemorySemanticsImageMemory
	}
	semID := b.builder.AddConstant(b.mustScalarType(ir.ScalarUint, 4), semantics)
	b.builder.AddInstructionNoResult(OpControlBarrier, scope, scope, semID)
}

func (b *Backend) emitAtomic(k ir.InstAtomic, resultTypeID uint32) (uint32, error) {
	pointer, err := b.valueID(k.Pointer)
	if err != nil {
		return 0, err
	}
	value, err := b.valueID(k.Value)
	if err != nil {
		return 0, err
	}
	scope := b.builder.AddConstant(b.mustScalarType(ir.ScalarUint, 4), ScopeDevice)
	semantics := b.builder.AddConstant(b.mustScalarType(ir.ScalarUint, 4), MemorySemanticsNone)
	kind := b.scalarKindOf(b.valueTypes[k.Pointer])

	switch fun := k.Fun.(type) {
	case ir.AtomicAdd:
		return b.builder.AddInstruction(OpAtomicIAdd, resultTypeID, pointer, scope, semantics, value), nil
	case ir.AtomicSubtract:
		return b.builder.AddInstruction(OpAtomicISub, resultTypeID, pointer, scope, semantics, value), nil
	case ir.AtomicAnd:
		return b.builder.AddInstruction(OpAtomicAnd, resultTypeID, pointer, scope, semantics, value), nil
	case ir.AtomicInclusiveOr:
		return b.builder.AddInstruction(OpAtomicOr, resultTypeID, pointer, scope, semantics, value), nil
	case ir.AtomicExclusiveOr:
		return b.builder.AddInstruction(OpAtomicXor, resultTypeID, pointer, scope, semantics, value), nil
	case ir.AtomicMin:
		op := OpAtomicUMin
		if kind == ir.ScalarSint {
			op = OpAtomicSMin
		}
		return b.builder.AddInstruction(op, resultTypeID, pointer, scope, semantics, value), nil
	case ir.AtomicMax:
		op := OpAtomicUMax
		if kind == ir.ScalarSint {
			op = OpAtomicSMax
		}
		return b.builder.AddInstruction(op, resultTypeID, pointer, scope, semantics, value), nil
	case ir.AtomicExchange:
		if fun.Compare != ir.NoID {
			compare, cerr := b.valueID(fun.Compare)
			if cerr != nil {
				return 0, cerr
			}
			return b.builder.AddInstruction(OpAtomicCompareExch, resultTypeID, pointer, scope, semantics, semantics, value, compare), nil
		}
		return b.builder.AddInstruction(OpAtomicExchange, resultTypeID, pointer, scope, semantics, value), nil
	default:
		return 0, fmt.Errorf("spirv: unhandled atomic function %T", fun)
	}
}

// --- terminators ---

func (b *Backend) emitTerminator(term ir.Terminator) error {
	switch t := term.(type) {
	case ir.TermBranch:
		b.builder.AddBranch(b.blockLabels[t.Target])

	case ir.TermBranchConditional:
		condition, err := b.valueID(t.Condition)
		if err != nil {
			return err
		}
		b.builder.AddBranchConditional(condition, b.blockLabels[t.TrueTarget], b.blockLabels[t.FalseTarget])

	case ir.TermSwitch:
		selector, err := b.valueID(t.Selector)
		if err != nil {
			return err
		}
		var cases []uint32
		for _, c := range t.Cases {
			switch v := c.Value.(type) {
			case ir.SwitchValueI32:
				cases = append(cases, uint32(v.Value), b.blockLabels[c.Target])
			case ir.SwitchValueU32:
				cases = append(cases, v.Value, b.blockLabels[c.Target])
			}
		}
		b.builder.AddSwitch(selector, b.blockLabels[t.Default], cases)

	case ir.TermReturnValue:
		value, err := b.valueID(t.Value)
		if err != nil {
			return err
		}
		if b.isEntry {
			if err := b.storeEntryResult(value); err != nil {
				return err
			}
			b.builder.AddReturn()
		} else {
			b.builder.AddReturnValue(value)
		}

	case ir.TermReturnVoid:
		b.builder.AddReturn()

	case ir.TermUnreachable:
		b.builder.AddUnreachable()

	case ir.TermKill:
		b.builder.AddKill()

	default:
		return fmt.Errorf("spirv: unhandled terminator %T", t)
	}
	return nil
}
