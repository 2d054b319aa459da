// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package wgsl

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shaderlab/ssair/ir"
)

// Options configures WGSL text generation.
type Options struct {
	// EntryPoint restricts output to a single named entry point's call
	// graph. Empty emits every function and entry point in the module.
	EntryPoint string
}

// Compile renders module as WGSL source text.
func Compile(module *ir.Module, options Options) (string, error) {
	w := &writer{
		module:      module,
		options:     options,
		typeNames:   make(map[ir.TypeHandle]string),
		globalNames: make(map[ir.GlobalHandle]string),
		funcNames:   make(map[ir.FuncHandle]string),
		usedNames:   make(map[string]struct{}),
	}
	if err := w.write(); err != nil {
		return "", err
	}
	return w.out.String(), nil
}

// writer holds the state needed to render one module. Per-function state
// (valueTypes, useCount, exprText, letNames) is reset at the start of each
// writeFunction call.
type writer struct {
	module  *ir.Module
	options Options

	out    strings.Builder
	indent int

	typeNames   map[ir.TypeHandle]string
	globalNames map[ir.GlobalHandle]string
	funcNames   map[ir.FuncHandle]string
	usedNames   map[string]struct{}

	fn         *ir.Function
	valueTypes map[ir.ValueHandle]ir.TypeHandle
	useCount   map[ir.ValueHandle]int
	// exprText holds the rendered text for a value that has not been
	// materialized into a `let` binding — substituted inline at every
	// reference. letNames holds the binding name for a value that has.
	// A value is in exactly one of the two maps once its defining
	// instruction has been processed.
	exprText map[ir.ValueHandle]string
	letNames map[ir.ValueHandle]string
	argNames map[ir.ValueHandle]string

	loopStack []loopContext
}

func (w *writer) uniqueName(base string) string {
	name := sanitizeIdent(base)
	if _, used := w.usedNames[name]; !used {
		w.usedNames[name] = struct{}{}
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if _, used := w.usedNames[candidate]; !used {
			w.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

func sanitizeIdent(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (w *writer) line(format string, args ...any) {
	w.out.WriteString(strings.Repeat("    ", w.indent))
	fmt.Fprintf(&w.out, format, args...)
	w.out.WriteByte('\n')
}

func (w *writer) write() error {
	for i, t := range w.module.Types() {
		if _, ok := t.Inner.(ir.StructType); ok {
			w.nameStructType(ir.TypeHandle(i+1), t)
		}
	}
	for i, t := range w.module.Types() {
		if st, ok := t.Inner.(ir.StructType); ok {
			if err := w.writeStruct(ir.TypeHandle(i+1), t.Name, st); err != nil {
				return err
			}
		}
	}

	for _, g := range w.module.Globals() {
		if err := w.writeGlobal(g); err != nil {
			return err
		}
	}

	stageByFunc := make(map[ir.FuncHandle]*ir.EntryPoint)
	for i := range w.module.EntryPoints {
		ep := &w.module.EntryPoints[i]
		stageByFunc[ep.Function] = ep
	}

	// Functions are named up front, before any body is written, so a call
	// to a function appearing later in declaration order renders the same
	// name writeFunction will later assign it instead of a raw fallback.
	for _, fn := range w.module.Functions() {
		handle, _ := w.module.FunctionHandle(fn)
		w.funcNames[handle] = w.uniqueName(fn.Name)
	}

	for _, fn := range w.module.Functions() {
		handle, _ := w.module.FunctionHandle(fn)
		if w.options.EntryPoint != "" {
			ep, isEntry := stageByFunc[handle]
			if isEntry && ep.Name != w.options.EntryPoint {
				continue
			}
		}
		if err := w.writeFunction(handle, fn, stageByFunc[handle]); err != nil {
			return err
		}
	}
	return nil
}

// nameStructType assigns a struct its WGSL name up front so member type
// references emitted before the struct itself (mutually-recursive pointer
// types never occur in WGSL, but struct-of-struct does) resolve correctly.
func (w *writer) nameStructType(handle ir.TypeHandle, t ir.Type) {
	base := t.Name
	if base == "" {
		base = fmt.Sprintf("Struct%d", handle)
	}
	w.typeNames[handle] = w.uniqueName(base)
}

func (w *writer) writeStruct(handle ir.TypeHandle, _ string, st ir.StructType) error {
	w.line("struct %s {", w.typeNames[handle])
	w.indent++
	for _, m := range st.Members {
		typeName, err := w.typeName(m.Type)
		if err != nil {
			return err
		}
		attr := w.bindingAttribute(m.Binding)
		if attr != "" {
			attr += " "
		}
		w.line("%s%s: %s,", attr, sanitizeIdent(m.Name), typeName)
	}
	w.indent--
	w.line("}")
	w.out.WriteByte('\n')
	return nil
}

func (w *writer) bindingAttribute(b *ir.Binding) string {
	if b == nil {
		return ""
	}
	switch v := (*b).(type) {
	case ir.BuiltinBinding:
		return fmt.Sprintf("@builtin(%s)", builtinName(v.Builtin))
	case ir.LocationBinding:
		attr := fmt.Sprintf("@location(%d)", v.Location)
		if v.Interpolation != nil {
			attr += " " + interpolationAttribute(*v.Interpolation)
		}
		return attr
	default:
		return ""
	}
}

func interpolationAttribute(interp ir.Interpolation) string {
	kind := "perspective"
	switch interp.Kind {
	case ir.InterpolateLinear:
		kind = "linear"
	case ir.InterpolateFlat:
		kind = "flat"
	}
	if interp.Kind == ir.InterpolateFlat {
		return fmt.Sprintf("@interpolate(%s)", kind)
	}
	sampling := ""
	switch interp.Sampling {
	case ir.SamplingCentroid:
		sampling = ", centroid"
	case ir.SamplingSample:
		sampling = ", sample"
	}
	return fmt.Sprintf("@interpolate(%s%s)", kind, sampling)
}

func builtinName(v ir.BuiltinValue) string {
	switch v {
	case ir.BuiltinPosition:
		return "position"
	case ir.BuiltinVertexIndex:
		return "vertex_index"
	case ir.BuiltinInstanceIndex:
		return "instance_index"
	case ir.BuiltinFrontFacing:
		return "front_facing"
	case ir.BuiltinFragDepth:
		return "frag_depth"
	case ir.BuiltinSampleIndex:
		return "sample_index"
	case ir.BuiltinSampleMask:
		return "sample_mask"
	case ir.BuiltinLocalInvocationID:
		return "local_invocation_id"
	case ir.BuiltinLocalInvocationIndex:
		return "local_invocation_index"
	case ir.BuiltinGlobalInvocationID:
		return "global_invocation_id"
	case ir.BuiltinWorkGroupID:
		return "workgroup_id"
	case ir.BuiltinNumWorkGroups:
		return "num_workgroups"
	default:
		return "position"
	}
}

func (w *writer) writeGlobal(g ir.GlobalVariable) error {
	typeName, err := w.typeName(g.Type)
	if err != nil {
		return err
	}
	name := w.uniqueName(g.Name)
	w.globalNames[g.ID] = name

	var attrs []string
	if g.Binding != nil {
		attrs = append(attrs, fmt.Sprintf("@group(%d) @binding(%d)", g.Binding.Group, g.Binding.Binding))
	}
	if len(attrs) > 0 {
		w.line("%s", strings.Join(attrs, " "))
	}

	space, access := addressSpaceKeyword(g.Space, g.NonWritable)
	var init string
	if g.Init != ir.NoID {
		val, err := w.constantExpr(g.Init)
		if err != nil {
			return err
		}
		init = " = " + val
	}
	if space == "" {
		w.line("var<private> %s: %s%s;", name, typeName, init)
	} else if access == "" {
		w.line("var<%s> %s: %s%s;", space, name, typeName, init)
	} else {
		w.line("var<%s, %s> %s: %s%s;", space, access, name, typeName, init)
	}
	w.out.WriteByte('\n')
	return nil
}

func addressSpaceKeyword(space ir.AddressSpace, nonWritable bool) (string, string) {
	switch space {
	case ir.SpaceUniform:
		return "uniform", ""
	case ir.SpaceStorage:
		if nonWritable {
			return "storage", "read"
		}
		return "storage", "read_write"
	case ir.SpaceWorkGroup:
		return "workgroup", ""
	case ir.SpacePushConstant:
		return "push_constant", ""
	case ir.SpaceUniformConstant:
		return "", ""
	default:
		return "private", ""
	}
}

// --- types ---

func (w *writer) typeName(handle ir.TypeHandle) (string, error) {
	if name, ok := w.typeNames[handle]; ok {
		return name, nil
	}
	t, ok := w.module.Type(handle)
	if !ok {
		return "", fmt.Errorf("wgsl: unknown type %d", handle)
	}
	name, err := w.buildTypeName(t.Inner)
	if err != nil {
		return "", err
	}
	w.typeNames[handle] = name
	return name, nil
}

func (w *writer) buildTypeName(inner ir.TypeInner) (string, error) {
	switch t := inner.(type) {
	case ir.ScalarType:
		return scalarTypeName(t), nil
	case ir.VectorType:
		return fmt.Sprintf("vec%d<%s>", t.Size, scalarTypeName(t.Scalar)), nil
	case ir.MatrixType:
		return fmt.Sprintf("mat%dx%d<%s>", t.Columns, t.Rows, scalarTypeName(t.Scalar)), nil
	case ir.ArrayType:
		base, err := w.typeName(t.Base)
		if err != nil {
			return "", err
		}
		if t.Size.IsDynamic() {
			return fmt.Sprintf("array<%s>", base), nil
		}
		return fmt.Sprintf("array<%s, %d>", base, *t.Size.Constant), nil
	case ir.PointerType:
		base, err := w.typeName(t.Base)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ptr<%s, %s>", addressSpaceName(t.Space), base), nil
	case ir.AtomicType:
		return fmt.Sprintf("atomic<%s>", scalarTypeName(t.Scalar)), nil
	case ir.SamplerType:
		if t.Comparison {
			return "sampler_comparison", nil
		}
		return "sampler", nil
	case ir.ImageType:
		return imageTypeName(t), nil
	case ir.StructType:
		return "", fmt.Errorf("wgsl: struct type referenced before naming")
	default:
		return "", fmt.Errorf("wgsl: unhandled type %T", inner)
	}
}

func scalarTypeName(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarFloat:
		if s.Width == 2 {
			return "f16"
		}
		return "f32"
	case ir.ScalarSint:
		return "i32"
	case ir.ScalarUint:
		return "u32"
	case ir.ScalarBool:
		return "bool"
	default:
		return "f32"
	}
}

func addressSpaceName(space ir.AddressSpace) string {
	switch space {
	case ir.SpaceFunction:
		return "function"
	case ir.SpacePrivate:
		return "private"
	case ir.SpaceWorkGroup:
		return "workgroup"
	case ir.SpaceUniform:
		return "uniform"
	case ir.SpaceStorage:
		return "storage"
	case ir.SpacePushConstant:
		return "push_constant"
	default:
		return "function"
	}
}

func imageTypeName(t ir.ImageType) string {
	dim := "2d"
	switch t.Dim {
	case ir.Dim1D:
		dim = "1d"
	case ir.Dim3D:
		dim = "3d"
	case ir.DimCube:
		dim = "cube"
	}
	arrayed := ""
	if t.Arrayed {
		arrayed = "_array"
	}
	switch t.Class {
	case ir.ImageClassDepth:
		return fmt.Sprintf("texture_depth%s%s", multisampledSuffix(t.Multisampled), dim+arrayed)
	case ir.ImageClassStorage:
		return fmt.Sprintf("texture_storage_%s%s<%s, %s>", dim, arrayed, storageFormatName(t.StorageFormat), storageAccessName(t.StorageAccess))
	default:
		return fmt.Sprintf("texture%s_%s%s<f32>", multisampledSuffix(t.Multisampled), dim, arrayed)
	}
}

func multisampledSuffix(ms bool) string {
	if ms {
		return "_multisampled"
	}
	return ""
}

func storageAccessName(a ir.StorageAccess) string {
	if a&ir.AccessStore != 0 {
		return "write"
	}
	return "read"
}

func storageFormatName(f ir.StorageFormat) string {
	switch f {
	case ir.FormatRgba8Unorm:
		return "rgba8unorm"
	case ir.FormatRgba8Snorm:
		return "rgba8snorm"
	case ir.FormatRgba8Uint:
		return "rgba8uint"
	case ir.FormatRgba8Sint:
		return "rgba8sint"
	case ir.FormatRgba16Float:
		return "rgba16float"
	default:
		return "rgba8unorm"
	}
}

// --- constants ---

func (w *writer) constantExpr(handle ir.ConstantHandle) (string, error) {
	c, ok := w.module.Constant(handle)
	if !ok {
		return "", fmt.Errorf("wgsl: unknown constant %d", handle)
	}
	switch v := c.Value.(type) {
	case ir.ScalarValue:
		return scalarLiteral(v), nil
	case ir.CompositeValue:
		typeName, err := w.typeName(c.Type)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(v.Components))
		for i, comp := range v.Components {
			s, err := w.constantExpr(comp)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return fmt.Sprintf("%s(%s)", typeName, strings.Join(parts, ", ")), nil
	case ir.NullValue:
		typeName, err := w.typeName(c.Type)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s()", typeName), nil
	default:
		return "", fmt.Errorf("wgsl: unhandled constant value %T", v)
	}
}

func scalarLiteral(v ir.ScalarValue) string {
	switch v.Kind {
	case ir.ScalarFloat:
		f := math.Float32frombits(uint32(v.Bits))
		s := strconv.FormatFloat(float64(f), 'g', -1, 32)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s + "f"
	case ir.ScalarSint:
		return fmt.Sprintf("%di", int32(v.Bits))
	case ir.ScalarUint:
		return fmt.Sprintf("%du", uint32(v.Bits))
	case ir.ScalarBool:
		if v.Bits != 0 {
			return "true"
		}
		return "false"
	default:
		return "0"
	}
}
