package wgsl

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shaderlab/ssair/ir"
)

// Warning is a non-fatal lowering diagnostic (an unused local, say) that
// does not prevent a Module from being produced.
type Warning struct {
	Message string
	Span    Span
}

// loopContext records where `break` and `continue` should branch to inside
// the loop currently being lowered.
type loopContext struct {
	breakTarget    ir.BlockHandle
	continueTarget ir.BlockHandle
}

// Lowerer turns a parsed WGSL Module into an ir.Module via ir.Builder.
// Locals are always addressed through memory: a WGSL `var` becomes an
// ir.LocalVariable (a pointer) loaded and stored like any other pointer,
// and a `let` becomes a plain SSA value bound once. Because mutation always
// goes through a pointer, control flow (if/loop/switch) never needs to
// synthesize Phi instructions to merge a variable's value across branches
// — Phi remains available in the IR for a later optimization pass, but
// nothing here emits one.
type Lowerer struct {
	builder *ir.Builder
	source  string

	types map[string]ir.TypeHandle

	globals         map[string]ir.GlobalHandle
	moduleConstants map[string]ir.ConstantHandle
	functions       map[string]ir.FuncHandle
	functionDecls   map[string]*FunctionDecl

	// valueTypes records the IR type of every value-producing ID minted
	// during lowering (parameters, locals-as-pointers, let-bindings,
	// globals, and every instruction emitted through l.emit), keyed by ID
	// since the IR's ID space is shared across all of them. It persists
	// for the whole module, not just one function, because globals and
	// constants are registered once up front.
	valueTypes map[ir.ID]ir.TypeHandle

	// per-function lowering state, reset in lowerFunction
	locals     map[string]localInfo
	loopStack  []loopContext
	usedLocals map[string]bool
	declSpans  map[string]Span

	errors   SourceErrors
	warnings []Warning
}

type localInfo struct {
	handle ir.ValueHandle
	typ    ir.TypeHandle
	isPtr  bool // true for `var` (pointer, needs Load); false for `let`/parameter (direct value)
}

// Lower lowers module into a fresh ir.Module, returning the first error
// encountered (if any) with no source context attached.
func Lower(module *Module) (*ir.Module, error) {
	m, _, err := LowerWithWarnings(module, "")
	return m, err
}

// LowerWithSource is Lower with source text attached to error spans so
// SourceError.FormatWithContext can show the offending line.
func LowerWithSource(module *Module, source string) (*ir.Module, error) {
	m, _, err := LowerWithWarnings(module, source)
	return m, err
}

// LowerWithWarnings additionally returns any non-fatal diagnostics
// produced during lowering (e.g. unused variables).
func LowerWithWarnings(module *Module, source string) (*ir.Module, []Warning, error) {
	l := &Lowerer{
		builder:         ir.NewBuilder(),
		source:          source,
		types:           make(map[string]ir.TypeHandle),
		globals:         make(map[string]ir.GlobalHandle),
		moduleConstants: make(map[string]ir.ConstantHandle),
		functions:       make(map[string]ir.FuncHandle),
		functionDecls:   make(map[string]*FunctionDecl),
		valueTypes:      make(map[ir.ID]ir.TypeHandle),
	}
	l.registerBuiltinTypes()

	for _, alias := range module.Aliases {
		if t, err := l.resolveType(alias.Type); err == nil {
			l.types[alias.Name] = t
		}
	}
	for _, s := range module.Structs {
		l.lowerStruct(s)
	}
	for _, g := range module.GlobalVars {
		l.lowerGlobalVar(g)
	}
	for _, c := range module.Constants {
		l.lowerConstant(c)
	}
	for _, fn := range module.Functions {
		l.functionDecls[fn.Name] = fn
	}
	for _, fn := range module.Functions {
		l.lowerFunction(fn)
	}

	if l.errors.HasErrors() {
		return nil, l.warnings, l.errors
	}
	return l.builder.Module(), l.warnings, nil
}

func (l *Lowerer) errf(span Span, format string, args ...any) {
	l.errors.Add(NewSourceErrorf(span, l.source, format, args...))
}

func (l *Lowerer) warnf(span Span, format string, args ...any) {
	l.warnings = append(l.warnings, Warning{Message: fmt.Sprintf(format, args...), Span: span})
}

func (l *Lowerer) registerBuiltinTypes() {
	l.types["bool"] = l.builder.InternType("bool", ir.ScalarType{Kind: ir.ScalarBool, Width: 1})
	l.types["i32"] = l.builder.InternType("i32", ir.ScalarType{Kind: ir.ScalarSint, Width: 4})
	l.types["u32"] = l.builder.InternType("u32", ir.ScalarType{Kind: ir.ScalarUint, Width: 4})
	l.types["f32"] = l.builder.InternType("f32", ir.ScalarType{Kind: ir.ScalarFloat, Width: 4})
	l.types["f16"] = l.builder.InternType("f16", ir.ScalarType{Kind: ir.ScalarFloat, Width: 2})
}

// ==================== types ====================

func (l *Lowerer) resolveType(t Type) (ir.TypeHandle, error) {
	switch n := t.(type) {
	case *NamedType:
		return l.resolveNamedType(n)
	case *ArrayType:
		elem, err := l.resolveType(n.Element)
		if err != nil {
			return ir.NoID, err
		}
		size := ir.ArraySize{}
		if n.Size != nil {
			v, err := constUint32(n.Size)
			if err != nil {
				return ir.NoID, err
			}
			size.Constant = &v
		}
		return l.builder.InternType("array", ir.ArrayType{Base: elem, Size: size, Stride: l.typeStride(elem)}), nil
	case *PtrType:
		base, err := l.resolveType(n.PointeeType)
		if err != nil {
			return ir.NoID, err
		}
		return l.builder.InternType("ptr", ir.PointerType{Base: base, Space: addressSpaceFromString(n.AddressSpace)}), nil
	case *BindingArrayType:
		elem, err := l.resolveType(n.Element)
		if err != nil {
			return ir.NoID, err
		}
		size := ir.ArraySize{}
		if n.Size != nil {
			v, err := constUint32(n.Size)
			if err != nil {
				return ir.NoID, err
			}
			size.Constant = &v
		}
		return l.builder.InternType("binding_array", ir.ArrayType{Base: elem, Size: size}), nil
	default:
		return ir.NoID, fmt.Errorf("unsupported type node %T", t)
	}
}

func (l *Lowerer) resolveNamedType(n *NamedType) (ir.TypeHandle, error) {
	if existing, ok := l.types[n.Name]; ok && len(n.TypeParams) == 0 {
		return existing, nil
	}
	if th, matched := l.resolveVectorOrMatrix(n); matched {
		return th, nil
	}
	if th, ok := l.parseTextureType(n); ok {
		return th, nil
	}
	switch n.Name {
	case "sampler":
		return l.builder.InternType("sampler", ir.SamplerType{}), nil
	case "sampler_comparison":
		return l.builder.InternType("sampler_comparison", ir.SamplerType{Comparison: true}), nil
	case "atomic":
		if len(n.TypeParams) != 1 {
			return ir.NoID, fmt.Errorf("atomic<T> requires one type parameter")
		}
		inner, err := l.resolveType(n.TypeParams[0])
		if err != nil {
			return ir.NoID, err
		}
		t, _ := l.builder.Module().Type(inner)
		scalar, ok := t.Inner.(ir.ScalarType)
		if !ok {
			return ir.NoID, fmt.Errorf("atomic<T>: T must be a scalar type")
		}
		return l.builder.InternType("atomic", ir.AtomicType{Scalar: scalar}), nil
	}
	if existing, ok := l.types[n.Name]; ok {
		return existing, nil
	}
	return ir.NoID, fmt.Errorf("unknown type %q", n.Name)
}

var vectorSizeByName = map[string]ir.VectorSize{"vec2": ir.Vec2, "vec3": ir.Vec3, "vec4": ir.Vec4}

var matrixShapeByName = map[string][2]ir.VectorSize{
	"mat2x2": {2, 2}, "mat2x3": {2, 3}, "mat2x4": {2, 4},
	"mat3x2": {3, 2}, "mat3x3": {3, 3}, "mat3x4": {3, 4},
	"mat4x2": {4, 2}, "mat4x3": {4, 3}, "mat4x4": {4, 4},
}

func (l *Lowerer) resolveVectorOrMatrix(n *NamedType) (ir.TypeHandle, bool) {
	if size, ok := vectorSizeByName[n.Name]; ok {
		if len(n.TypeParams) != 1 {
			return ir.NoID, true
		}
		scalar, ok := l.scalarOf(n.TypeParams[0])
		if !ok {
			return ir.NoID, true
		}
		return l.builder.InternType(n.Name, ir.VectorType{Size: size, Scalar: scalar}), true
	}
	if shape, ok := matrixShapeByName[n.Name]; ok {
		if len(n.TypeParams) != 1 {
			return ir.NoID, true
		}
		scalar, ok := l.scalarOf(n.TypeParams[0])
		if !ok {
			return ir.NoID, true
		}
		return l.builder.InternType(n.Name, ir.MatrixType{Columns: shape[0], Rows: shape[1], Scalar: scalar}), true
	}
	return ir.NoID, false
}

func (l *Lowerer) scalarOf(t Type) (ir.ScalarType, bool) {
	handle, err := l.resolveType(t)
	if err != nil {
		return ir.ScalarType{}, false
	}
	resolved, ok := l.builder.Module().Type(handle)
	if !ok {
		return ir.ScalarType{}, false
	}
	scalar, ok := resolved.Inner.(ir.ScalarType)
	return scalar, ok
}

var textureDimByName = map[string]ir.ImageDimension{
	"texture_1d": ir.Dim1D, "texture_2d": ir.Dim2D, "texture_2d_array": ir.Dim2D,
	"texture_3d": ir.Dim3D, "texture_cube": ir.DimCube, "texture_cube_array": ir.DimCube,
	"texture_multisampled_2d": ir.Dim2D,
	"texture_storage_1d":      ir.Dim1D, "texture_storage_2d": ir.Dim2D, "texture_storage_2d_array": ir.Dim2D,
	"texture_storage_3d": ir.Dim3D,
	"texture_depth_2d":   ir.Dim2D, "texture_depth_2d_array": ir.Dim2D,
	"texture_depth_cube": ir.DimCube, "texture_depth_cube_array": ir.DimCube,
	"texture_depth_multisampled_2d": ir.Dim2D,
}

func (l *Lowerer) parseTextureType(n *NamedType) (ir.TypeHandle, bool) {
	dim, known := textureDimByName[n.Name]
	if !known {
		return ir.NoID, false
	}
	class := ir.ImageClassSampled
	switch {
	case strings.Contains(n.Name, "depth"):
		class = ir.ImageClassDepth
	case strings.Contains(n.Name, "storage"):
		class = ir.ImageClassStorage
	}
	var format ir.StorageFormat
	access := ir.AccessLoad
	if class == ir.ImageClassStorage && len(n.TypeParams) >= 1 {
		if named, ok := n.TypeParams[0].(*NamedType); ok {
			format = parseStorageFormat(named.Name)
		}
		if len(n.TypeParams) >= 2 {
			if named, ok := n.TypeParams[1].(*NamedType); ok && named.Name == "read_write" {
				access = ir.AccessLoad | ir.AccessStore
			}
		}
	}
	return l.builder.InternType(n.Name, ir.ImageType{
		Dim:           dim,
		Arrayed:       strings.HasSuffix(n.Name, "_array"),
		Class:         class,
		Multisampled:  strings.Contains(n.Name, "multisampled"),
		StorageFormat: format,
		StorageAccess: access,
	}), true
}

func parseStorageFormat(name string) ir.StorageFormat {
	switch name {
	case "rgba8unorm":
		return ir.FormatRgba8Unorm
	case "rgba8snorm":
		return ir.FormatRgba8Snorm
	case "rgba8uint":
		return ir.FormatRgba8Uint
	case "rgba8sint":
		return ir.FormatRgba8Sint
	case "rgba16float":
		return ir.FormatRgba16Float
	case "rgba16uint":
		return ir.FormatRgba16Uint
	case "rgba16sint":
		return ir.FormatRgba16Sint
	case "rgba32float":
		return ir.FormatRgba32Float
	case "rgba32uint":
		return ir.FormatRgba32Uint
	case "rgba32sint":
		return ir.FormatRgba32Sint
	case "r32float":
		return ir.FormatR32Float
	case "r32uint":
		return ir.FormatR32Uint
	case "r32sint":
		return ir.FormatR32Sint
	default:
		return ir.FormatUnknown
	}
}

func (l *Lowerer) typeStride(handle ir.TypeHandle) uint32 {
	size, align := l.typeAlignmentAndSize(handle)
	if size%align != 0 {
		size += align - size%align
	}
	return size
}

// typeAlignmentAndSize returns (size, align) in bytes per the WGSL memory
// layout rules for the uniform/storage address spaces.
func (l *Lowerer) typeAlignmentAndSize(handle ir.TypeHandle) (size, align uint32) {
	t, ok := l.builder.Module().Type(handle)
	if !ok {
		return 0, 1
	}
	switch inner := t.Inner.(type) {
	case ir.ScalarType:
		return uint32(inner.Width), uint32(inner.Width)
	case ir.VectorType:
		return l.vectorAlignmentAndSize(inner)
	case ir.MatrixType:
		colSize, colAlign := l.vectorAlignmentAndSize(ir.VectorType{Size: inner.Rows, Scalar: inner.Scalar})
		return colSize * uint32(inner.Columns), colAlign
	case ir.ArrayType:
		elemSize, elemAlign := l.typeAlignmentAndSize(inner.Base)
		stride := elemSize
		if stride%elemAlign != 0 {
			stride += elemAlign - stride%elemAlign
		}
		count := uint32(0)
		if inner.Size.Constant != nil {
			count = *inner.Size.Constant
		}
		return stride * count, elemAlign
	case ir.StructType:
		return inner.Span, 16
	default:
		return 4, 4
	}
}

func (l *Lowerer) vectorAlignmentAndSize(v ir.VectorType) (size, align uint32) {
	elem := uint32(v.Scalar.Width)
	switch v.Size {
	case ir.Vec2:
		return 2 * elem, 2 * elem
	default:
		return 4 * elem, 4 * elem
	}
}

func addressSpaceFromString(s string) ir.AddressSpace {
	switch s {
	case "private":
		return ir.SpacePrivate
	case "workgroup":
		return ir.SpaceWorkGroup
	case "uniform":
		return ir.SpaceUniform
	case "storage":
		return ir.SpaceStorage
	case "push_constant":
		return ir.SpacePushConstant
	case "handle":
		return ir.SpaceUniformConstant
	default:
		return ir.SpaceFunction
	}
}

func constUint32(e Expr) (uint32, error) {
	lit, ok := e.(*Literal)
	if !ok {
		return 0, fmt.Errorf("expected a constant integer, got %T", e)
	}
	v, err := strconv.ParseUint(strings.TrimRight(lit.Value, "uif"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// ==================== structs ====================

func (l *Lowerer) lowerStruct(s *StructDecl) {
	members := make([]ir.StructMember, 0, len(s.Members))
	offset := uint32(0)
	for _, m := range s.Members {
		mt, err := l.resolveType(m.Type)
		if err != nil {
			l.errf(m.Span, "member %q: %v", m.Name, err)
			continue
		}
		size, align := l.typeAlignmentAndSize(mt)
		if offset%align != 0 {
			offset += align - offset%align
		}
		members = append(members, ir.StructMember{Name: m.Name, Type: mt, Binding: l.memberBinding(m.Attributes), Offset: offset})
		offset += size
	}
	l.types[s.Name] = l.builder.InternType(s.Name, ir.StructType{Members: members, Span: offset})
}

func (l *Lowerer) memberBinding(attrs []Attribute) *ir.Binding {
	for _, a := range attrs {
		switch a.Name {
		case "builtin":
			if b, ok := l.builtinFromAttr(a); ok {
				var binding ir.Binding = ir.BuiltinBinding{Builtin: b}
				return &binding
			}
		case "location":
			if loc, ok := l.literalArgUint32(a); ok {
				var binding ir.Binding = ir.LocationBinding{Location: loc}
				return &binding
			}
		}
	}
	return nil
}

func (l *Lowerer) literalArgUint32(a Attribute) (uint32, bool) {
	if len(a.Args) != 1 {
		return 0, false
	}
	v, err := constUint32(a.Args[0])
	if err != nil {
		return 0, false
	}
	return v, true
}

var builtinByName = map[string]ir.BuiltinValue{
	"position":               ir.BuiltinPosition,
	"vertex_index":           ir.BuiltinVertexIndex,
	"instance_index":         ir.BuiltinInstanceIndex,
	"front_facing":           ir.BuiltinFrontFacing,
	"frag_depth":             ir.BuiltinFragDepth,
	"sample_index":           ir.BuiltinSampleIndex,
	"sample_mask":            ir.BuiltinSampleMask,
	"local_invocation_id":    ir.BuiltinLocalInvocationID,
	"local_invocation_index": ir.BuiltinLocalInvocationIndex,
	"global_invocation_id":   ir.BuiltinGlobalInvocationID,
	"workgroup_id":           ir.BuiltinWorkGroupID,
	"num_workgroups":         ir.BuiltinNumWorkGroups,
}

func (l *Lowerer) builtinFromAttr(a Attribute) (ir.BuiltinValue, bool) {
	if len(a.Args) != 1 {
		return 0, false
	}
	id, ok := a.Args[0].(*Ident)
	if !ok {
		return 0, false
	}
	b, ok := builtinByName[id.Name]
	return b, ok
}

// ==================== globals and constants ====================

func (l *Lowerer) lowerGlobalVar(g *VarDecl) {
	typ, err := l.resolveType(g.Type)
	if err != nil {
		l.errf(g.Span, "global %q: %v", g.Name, err)
		return
	}
	space := addressSpaceFromString(g.AddressSpace)
	if g.AddressSpace == "" {
		if isOpaqueResourceType(l.builder.Module(), typ) {
			space = ir.SpaceUniformConstant
		} else {
			space = ir.SpacePrivate
		}
	}
	var group, binding *uint32
	for _, a := range g.Attributes {
		switch a.Name {
		case "group":
			if v, ok := l.literalArgUint32(a); ok {
				group = &v
			}
		case "binding":
			if v, ok := l.literalArgUint32(a); ok {
				binding = &v
			}
		}
	}
	var resBinding *ir.ResourceBinding
	if group != nil && binding != nil {
		resBinding = &ir.ResourceBinding{Group: *group, Binding: *binding}
	}
	var init ir.ConstantHandle
	if g.Init != nil {
		init = l.lowerConstExpr(g.Init, typ)
	}
	handle := l.builder.DefineGlobal(ir.GlobalVariable{
		Name: g.Name, Space: space, Binding: resBinding, Type: typ, Init: init,
		NonWritable: g.AccessMode == "read",
	})
	l.globals[g.Name] = handle
	l.builder.SetDebugName(handle, g.Name)

	if space == ir.SpaceUniformConstant {
		l.valueTypes[handle] = typ // textures/samplers: the global's ID is the value itself
	} else {
		l.valueTypes[handle] = l.builder.InternType("", ir.PointerType{Base: typ, Space: space})
	}
}

func (l *Lowerer) lowerConstant(c *ConstDecl) {
	var typ ir.TypeHandle
	if c.Type != nil {
		if t, err := l.resolveType(c.Type); err == nil {
			typ = t
		}
	}
	handle := l.lowerConstExpr(c.Init, typ)
	l.moduleConstants[c.Name] = handle
	l.builder.SetDebugName(handle, c.Name)
}

// lowerConstExpr evaluates a constant-expression AST node directly into an
// ir.Constant, without a function body to emit instructions into. Only
// literals, references to other module constants, and type-constructor
// composites of those are supported.
func (l *Lowerer) lowerConstExpr(e Expr, typeHint ir.TypeHandle) ir.ConstantHandle {
	switch n := e.(type) {
	case *Literal:
		return l.lowerLiteralConst(n)
	case *Ident:
		if h, ok := l.moduleConstants[n.Name]; ok {
			return h
		}
		l.errf(n.Span, "undefined constant %q", n.Name)
		return ir.NoID
	case *ConstructExpr:
		typ, err := l.resolveType(n.Type)
		if err != nil {
			l.errf(n.Span, "%v", err)
			return ir.NoID
		}
		components := make([]ir.ConstantHandle, 0, len(n.Args))
		for _, arg := range n.Args {
			components = append(components, l.lowerConstExpr(arg, ir.NoID))
		}
		return l.builder.DefineConstant(ir.Constant{Type: typ, Value: ir.CompositeValue{Components: components}})
	case *UnaryExpr:
		inner := l.lowerConstExpr(n.Operand, typeHint)
		if n.Op != TokenMinus {
			return inner
		}
		c, ok := l.builder.Module().Constant(inner)
		if !ok {
			return inner
		}
		sv, ok := c.Value.(ir.ScalarValue)
		if !ok {
			return inner
		}
		return l.builder.InternScalar(c.Type, sv.Kind, scalarWidth(sv.Kind), negateBits(sv))
	default:
		l.errf(e.Pos(), "unsupported constant expression %T", e)
		return ir.NoID
	}
}

func scalarWidth(k ir.ScalarKind) uint8 {
	if k == ir.ScalarBool {
		return 1
	}
	return 4
}

func negateBits(sv ir.ScalarValue) uint64 {
	if sv.Kind == ir.ScalarFloat {
		return sv.Bits ^ 0x80000000
	}
	return uint64(uint32(-int32(sv.Bits)))
}

func (l *Lowerer) lowerLiteralConst(lit *Literal) ir.ConstantHandle {
	switch lit.Kind {
	case TokenBoolLiteral:
		bits := uint64(0)
		if lit.Value == "true" {
			bits = 1
		}
		return l.builder.InternScalar(l.types["bool"], ir.ScalarBool, 1, bits)
	case TokenFloatLiteral:
		v, _ := strconv.ParseFloat(strings.TrimRight(lit.Value, "fh"), 32)
		return l.builder.InternScalar(l.types["f32"], ir.ScalarFloat, 4, uint64(math.Float32bits(float32(v))))
	default: // TokenIntLiteral
		text := lit.Value
		if strings.HasSuffix(text, "u") {
			v, _ := strconv.ParseUint(strings.TrimSuffix(text, "u"), 0, 32)
			return l.builder.InternScalar(l.types["u32"], ir.ScalarUint, 4, v)
		}
		v, _ := strconv.ParseInt(strings.TrimSuffix(text, "i"), 0, 32)
		return l.builder.InternScalar(l.types["i32"], ir.ScalarSint, 4, uint64(uint32(v)))
	}
}
