package msl

import (
	"fmt"

	"github.com/shaderlab/ssair/ir"
)

// MSL attribute constants
const (
	attrPosition  = "[[position]]"
	spaceConstant = "constant"
	spaceDevice   = "device"
)

// writeFunctions writes all non-entry-point function definitions.
func (w *Writer) writeFunctions() error {
	for _, fn := range w.module.Functions() {
		handle, _ := w.module.FunctionHandle(fn)
		if w.isEntryPointFunction(handle) {
			continue
		}
		if err := w.writeFunction(handle, fn); err != nil {
			return err
		}
	}
	return nil
}

// isEntryPointFunction checks if a function is an entry point.
func (w *Writer) isEntryPointFunction(handle ir.FuncHandle) bool {
	for _, ep := range w.module.EntryPoints {
		if ep.Function == handle {
			return true
		}
	}
	return false
}

func (w *Writer) beginFunctionContext(handle ir.FuncHandle, fn *ir.Function) {
	w.fn = fn
	w.currentFuncHandle = handle
	w.valueTypes = ir.TypeOf(ir.NewInternerOverModule(w.module), fn)
	w.useCount = computeUseCounts(fn)
	w.exprText = make(map[ir.ValueHandle]string)
	w.letNames = make(map[ir.ValueHandle]string)
	w.argNames = make(map[ir.ValueHandle]string)
	w.loopStack = nil
	w.loopCounter = 0
}

func (w *Writer) endFunctionContext() {
	w.fn = nil
	w.valueTypes = nil
	w.useCount = nil
	w.exprText = nil
	w.letNames = nil
	w.argNames = nil
	w.loopStack = nil
}

// writeFunction writes a regular function definition.
func (w *Writer) writeFunction(handle ir.FuncHandle, fn *ir.Function) error {
	w.beginFunctionContext(handle, fn)
	defer w.endFunctionContext()

	funcName := w.getName(nameKey{kind: nameKeyFunction, handle1: uint32(handle)})

	returnType := "void"
	if fn.Result != nil {
		returnType = w.writeTypeName(fn.Result.Type, StorageAccess(0))
	}

	w.write("%s %s(", returnType, funcName)

	for i, arg := range fn.Arguments {
		if i > 0 {
			w.write(", ")
		}
		argName := w.getName(nameKey{kind: nameKeyFunctionArgument, handle1: uint32(handle), handle2: uint32(i)})
		w.argNames[arg.ID] = argName
		argType := w.writeTypeName(arg.Type, StorageAccess(0))
		w.write("%s %s", argType, argName)
	}

	w.write(") {\n")
	w.pushIndent()

	for _, local := range fn.Locals {
		if err := w.writeLocalDecl(local); err != nil {
			return err
		}
	}
	if len(fn.Locals) > 0 {
		w.writeLine("")
	}

	if err := w.emitRegion(fn.Entry, ir.NoID); err != nil {
		return err
	}

	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

func (w *Writer) writeLocalDecl(local ir.LocalVariable) error {
	localName := escapeName(local.Name)
	if localName == "" {
		localName = fmt.Sprintf("local_%d", local.ID)
	}
	w.argNames[local.ID] = localName

	localType := w.writeTypeName(local.Type, StorageAccess(0))
	w.writeIndent()
	w.write("%s %s", localType, localName)

	if local.Init != ir.NoID {
		init, err := w.constantExpr(local.Init)
		if err != nil {
			return err
		}
		w.write(" = %s", init)
	} else {
		w.write(" = %s()", localType)
	}
	w.write(";\n")
	return nil
}

// writeEntryPoints writes all entry point functions.
func (w *Writer) writeEntryPoints() error {
	for epIdx := range w.module.EntryPoints {
		ep := &w.module.EntryPoints[epIdx]
		if w.pipeline.EntryPoint != nil {
			if w.pipeline.EntryPoint.Name != ep.Name || w.pipeline.EntryPoint.Stage != ep.Stage {
				continue
			}
		}
		if err := w.writeEntryPoint(epIdx, ep); err != nil {
			return err
		}
	}
	return nil
}

// writeEntryPoint writes a single entry point function.
//
//nolint:gocognit,gocyclo,cyclop,funlen,maintidx // Entry point generation requires handling many input/output patterns
func (w *Writer) writeEntryPoint(epIdx int, ep *ir.EntryPoint) error {
	fn, ok := w.module.Function(ep.Function)
	if !ok {
		return fmt.Errorf("invalid entry point function handle: %d", ep.Function)
	}

	w.beginFunctionContext(ep.Function, fn)
	w.entryPointOutputVar = ""
	w.entryPointOutputTypeActive = false
	w.entryPointInputStructArg = -1

	defer func() {
		w.endFunctionContext()
		w.entryPointOutputVar = ""
		w.entryPointOutputTypeActive = false
		w.entryPointInputStructArg = -1
	}()

	inputStructName, hasInputStruct := w.writeEntryPointInputStruct(epIdx, ep, fn)
	outputStructName, hasOutputStruct := w.writeEntryPointOutputStruct(epIdx, ep, fn)

	epName := w.getName(nameKey{kind: nameKeyEntryPoint, handle1: uint32(epIdx)})

	var stageKeyword string
	switch ep.Stage {
	case ir.StageVertex:
		stageKeyword = "vertex"
	case ir.StageFragment:
		stageKeyword = "fragment"
	case ir.StageCompute:
		stageKeyword = "kernel"
	}

	resolveReturnSignature := func() (string, string) {
		if hasOutputStruct {
			w.entryPointOutputVar = "_output"
			w.entryPointOutputType = fn.Result.Type
			w.entryPointOutputTypeActive = true
			return outputStructName, ""
		}
		if fn.Result == nil {
			return "void", ""
		}
		returnType := w.writeTypeName(fn.Result.Type, StorageAccess(0))
		if fn.Result.Binding == nil {
			return returnType, ""
		}
		if _, ok := (*fn.Result.Binding).(ir.BuiltinBinding); !ok {
			return returnType, ""
		}
		return returnType, w.writeBindingAttribute(*fn.Result.Binding)
	}
	returnType, returnAttr := resolveReturnSignature()

	w.write("%s %s %s(", stageKeyword, returnType, epName)

	firstParam := true

	if hasInputStruct {
		w.write("%s _input [[stage_in]]", inputStructName)
		firstParam = false
	}

	for i, arg := range fn.Arguments {
		w.argNames[arg.ID] = w.getName(nameKey{kind: nameKeyFunctionArgument, handle1: uint32(ep.Function), handle2: uint32(i)})
		if arg.Binding != nil { //nolint:nestif // Binding type checks require nesting
			if builtin, ok := (*arg.Binding).(ir.BuiltinBinding); ok {
				attr := builtinInputAttribute(builtin.Builtin, ep.Stage)
				if attr != "" {
					if !firstParam {
						w.write(", ")
					}
					argName := w.argNames[arg.ID]
					argType := w.writeTypeName(arg.Type, StorageAccess(0))
					w.write("%s %s %s", argType, argName, attr)
					firstParam = false
				}
			}
		}
	}

	for _, global := range w.module.Globals() {
		if global.Binding != nil {
			if !firstParam {
				w.write(",\n    ")
			}
			if err := w.writeGlobalResourceParam(uint32(global.ID), &global); err != nil {
				return err
			}
			firstParam = false
		}
	}

	if returnAttr != "" {
		w.write(") %s {\n", returnAttr)
	} else {
		w.write(") {\n")
	}
	w.pushIndent()

	emitInputAliases := func() {
		if !hasInputStruct {
			return
		}
		for i, arg := range fn.Arguments {
			if arg.Binding == nil {
				continue
			}
			if _, ok := (*arg.Binding).(ir.LocationBinding); !ok {
				continue
			}
			argName := w.getName(nameKey{kind: nameKeyFunctionArgument, handle1: uint32(ep.Function), handle2: uint32(i)})
			w.writeLine("auto %s = _input.%s;", argName, argName)
		}
		if w.entryPointInputStructArg < 0 {
			return
		}
		arg := fn.Arguments[w.entryPointInputStructArg]
		argName := arg.Name
		if argName == "" {
			argName = fmt.Sprintf("arg_%d", w.entryPointInputStructArg)
		}
		argName = escapeName(argName)
		w.argNames[arg.ID] = argName
		w.writeLine("auto %s = _input;", argName)
	}
	emitInputAliases()

	for _, local := range fn.Locals {
		if err := w.writeLocalDecl(local); err != nil {
			return err
		}
	}

	if len(fn.Locals) > 0 || hasInputStruct {
		w.writeLine("")
	}

	if hasOutputStruct {
		w.writeLine("%s _output;", outputStructName)
	}

	if err := w.emitRegion(fn.Entry, ir.NoID); err != nil {
		return err
	}

	if hasOutputStruct {
		w.writeLine("return _output;")
	}

	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// writeEntryPointInputStruct writes the input struct for an entry point.
//
//nolint:gocognit,cyclop // Entry point struct generation requires handling many input/output patterns
func (w *Writer) writeEntryPointInputStruct(epIdx int, ep *ir.EntryPoint, fn *ir.Function) (string, bool) {
	hasLocationInputs := false
	for _, arg := range fn.Arguments {
		if arg.Binding == nil {
			continue
		}
		if _, ok := (*arg.Binding).(ir.LocationBinding); ok {
			hasLocationInputs = true
			break
		}
	}

	emitInputStruct := func(structName string, emitFields func()) {
		w.writeLine("struct %s {", structName)
		w.pushIndent()
		emitFields()
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}

	if hasLocationInputs {
		structName := fmt.Sprintf("%s_Input", w.getName(nameKey{kind: nameKeyEntryPoint, handle1: uint32(epIdx)}))

		emitInputStruct(structName, func() {
			for i, arg := range fn.Arguments {
				if arg.Binding == nil {
					continue
				}
				loc, ok := (*arg.Binding).(ir.LocationBinding)
				if !ok {
					continue
				}
				argName := w.getName(nameKey{kind: nameKeyFunctionArgument, handle1: uint32(ep.Function), handle2: uint32(i)})
				argType := w.writeTypeName(arg.Type, StorageAccess(0))

				attr := locationInputAttribute(loc, ep.Stage)
				w.writeLine("%s %s %s;", argType, argName, attr)
			}
		})

		return structName, true
	}
	for i, arg := range fn.Arguments {
		if arg.Binding != nil {
			continue
		}
		typeInfo, ok := w.module.Type(arg.Type)
		if !ok {
			continue
		}
		st, ok := typeInfo.Inner.(ir.StructType)
		if !ok {
			continue
		}

		structName := fmt.Sprintf("%s_Input", w.getName(nameKey{kind: nameKeyEntryPoint, handle1: uint32(epIdx)}))
		w.entryPointInputStructArg = i

		emitInputStruct(structName, func() {
			for memberIdx, member := range st.Members {
				memberName := w.getName(nameKey{kind: nameKeyStructMember, handle1: uint32(arg.Type), handle2: uint32(memberIdx)})
				memberType := w.writeTypeName(member.Type, StorageAccess(0))

				var attr string
				if member.Binding != nil {
					switch b := (*member.Binding).(type) {
					case ir.LocationBinding:
						attr = locationInputAttribute(b, ep.Stage)
					case ir.BuiltinBinding:
						attr = builtinInputAttribute(b.Builtin, ep.Stage)
					}
				}
				if attr == "" {
					switch {
					case ep.Stage == ir.StageFragment && memberIdx == 0:
						attr = attrPosition
					case ep.Stage == ir.StageFragment:
						attr = fmt.Sprintf("[[user(locn%d)]]", memberIdx-1)
					default:
						attr = fmt.Sprintf("[[attribute(%d)]]", memberIdx)
					}
				}

				w.writeLine("%s %s %s;", memberType, memberName, attr)
			}
		})

		return structName, true
	}
	return "", false
}

// writeEntryPointOutputStruct writes the output struct for an entry point.
// Member bindings are read directly off StructType.Members when present;
// the position-based fallback only kicks in for members that carry none.
func (w *Writer) writeEntryPointOutputStruct(epIdx int, ep *ir.EntryPoint, fn *ir.Function) (string, bool) {
	if fn.Result == nil {
		return "", false
	}

	resultType := fn.Result.Type
	typeInfo, ok := w.module.Type(resultType)
	if !ok {
		return "", false
	}

	st, ok := typeInfo.Inner.(ir.StructType)
	if !ok {
		// Simple return type - check if it has a builtin binding that requires output struct.
		// In MSL, [[position]] must be on a struct member, not on function return type.
		if fn.Result.Binding != nil {
			if _, isBuiltin := (*fn.Result.Binding).(ir.BuiltinBinding); isBuiltin {
				structName := fmt.Sprintf("%s_Output", w.getName(nameKey{kind: nameKeyEntryPoint, handle1: uint32(epIdx)}))
				returnType := w.writeTypeName(fn.Result.Type, StorageAccess(0))
				attr := w.writeBindingAttribute(*fn.Result.Binding)

				w.writeLine("struct %s {", structName)
				w.pushIndent()
				w.writeLine("%s member %s;", returnType, attr)
				w.popIndent()
				w.writeLine("};")
				w.writeLine("")

				return structName, true
			}
		}
		return "", false
	}

	structName := fmt.Sprintf("%s_Output", w.getName(nameKey{kind: nameKeyEntryPoint, handle1: uint32(epIdx)}))

	w.writeLine("struct %s {", structName)
	w.pushIndent()

	for memberIdx, member := range st.Members {
		memberName := w.getName(nameKey{kind: nameKeyStructMember, handle1: uint32(resultType), handle2: uint32(memberIdx)})
		memberType := w.writeTypeName(member.Type, StorageAccess(0))

		var attr string
		if member.Binding != nil {
			switch b := (*member.Binding).(type) {
			case ir.BuiltinBinding:
				attr = builtinOutputAttribute(b.Builtin)
			case ir.LocationBinding:
				switch ep.Stage {
				case ir.StageVertex:
					attr = fmt.Sprintf("[[user(locn%d)]]", b.Location)
				case ir.StageFragment:
					attr = fmt.Sprintf("[[color(%d)]]", b.Location)
				}
			}
		}
		if attr == "" {
			switch ep.Stage {
			case ir.StageVertex:
				if memberIdx == 0 {
					attr = attrPosition
				} else {
					attr = fmt.Sprintf("[[user(locn%d)]]", memberIdx-1)
				}
			case ir.StageFragment:
				attr = fmt.Sprintf("[[color(%d)]]", memberIdx)
			}
		}

		w.writeLine("%s %s %s;", memberType, memberName, attr)
	}

	w.popIndent()
	w.writeLine("};")
	w.writeLine("")

	return structName, true
}

// writeGlobalResourceParam writes a global resource as an entry point parameter.
func (w *Writer) writeGlobalResourceParam(handle uint32, global *ir.GlobalVariable) error {
	name := w.getName(nameKey{kind: nameKeyGlobalVariable, handle1: handle})

	typeInfo, ok := w.module.Type(global.Type)
	if !ok {
		return fmt.Errorf("invalid type handle: %d", global.Type)
	}

	var binding uint32
	if global.Binding != nil {
		binding = global.Binding.Binding
	}

	switch inner := typeInfo.Inner.(type) {
	case ir.SamplerType:
		w.write("%ssampler %s [[sampler(%d)]]", Namespace, name, binding)

	case ir.ImageType:
		typeName := w.imageTypeName(inner, StorageAccess(0))
		w.write("%s %s [[texture(%d)]]", typeName, name, binding)

	default:
		space := addressSpaceName(global.Space)
		typeName := w.writeTypeName(global.Type, StorageAccess(0))

		if space == spaceConstant || space == spaceDevice {
			w.write("%s %s* %s [[buffer(%d)]]", space, typeName, name, binding)
		} else {
			w.write("%s %s [[buffer(%d)]]", typeName, name, binding)
		}
	}

	return nil
}

// writeBindingAttribute writes the MSL attribute for a binding.
func (w *Writer) writeBindingAttribute(binding ir.Binding) string {
	switch b := binding.(type) {
	case ir.BuiltinBinding:
		return builtinOutputAttribute(b.Builtin)
	case ir.LocationBinding:
		return fmt.Sprintf("[[color(%d)]]", b.Location)
	}
	return ""
}

// builtinInputAttribute returns the MSL attribute for a built-in input.
func builtinInputAttribute(builtin ir.BuiltinValue, stage ir.ShaderStage) string {
	switch builtin {
	case ir.BuiltinPosition:
		if stage == ir.StageFragment {
			return attrPosition
		}
		return ""
	case ir.BuiltinVertexIndex:
		return "[[vertex_id]]"
	case ir.BuiltinInstanceIndex:
		return "[[instance_id]]"
	case ir.BuiltinFrontFacing:
		return "[[front_facing]]"
	case ir.BuiltinSampleIndex:
		return "[[sample_id]]"
	case ir.BuiltinSampleMask:
		return "[[sample_mask]]"
	case ir.BuiltinLocalInvocationID:
		return "[[thread_position_in_threadgroup]]"
	case ir.BuiltinLocalInvocationIndex:
		return "[[thread_index_in_threadgroup]]"
	case ir.BuiltinGlobalInvocationID:
		return "[[thread_position_in_grid]]"
	case ir.BuiltinWorkGroupID:
		return "[[threadgroup_position_in_grid]]"
	case ir.BuiltinNumWorkGroups:
		return "[[threadgroups_per_grid]]"
	}
	return ""
}

// builtinOutputAttribute returns the MSL attribute for a built-in output.
func builtinOutputAttribute(builtin ir.BuiltinValue) string {
	switch builtin {
	case ir.BuiltinPosition:
		return attrPosition
	case ir.BuiltinFragDepth:
		return "[[depth(any)]]"
	case ir.BuiltinSampleMask:
		return "[[sample_mask]]"
	}
	return ""
}

// locationInputAttribute returns the MSL attribute for a location input.
func locationInputAttribute(loc ir.LocationBinding, stage ir.ShaderStage) string {
	switch stage {
	case ir.StageVertex:
		return fmt.Sprintf("[[attribute(%d)]]", loc.Location)
	case ir.StageFragment:
		return fmt.Sprintf("[[user(locn%d)]]", loc.Location)
	}
	return ""
}

// computeUseCounts mirrors wgsl's own use-count pass: a pure value used at
// most once is inlined at its use site, anything used more than once gets
// hoisted into an `auto _eN = ...;` binding.
func computeUseCounts(fn *ir.Function) map[ir.ValueHandle]int {
	counts := make(map[ir.ValueHandle]int)
	use := func(v ir.ValueHandle) {
		if v != ir.NoID {
			counts[v]++
		}
	}
	for _, block := range fn.Blocks {
		for _, inst := range block.Instructions {
			walkInstructionOperands(inst.Kind, use)
		}
		walkTerminatorOperands(block.Terminator, use)
	}
	return counts
}

func walkInstructionOperands(kind ir.InstructionKind, use func(ir.ValueHandle)) {
	switch k := kind.(type) {
	case ir.InstCompose:
		for _, c := range k.Components {
			use(c)
		}
	case ir.InstAccess:
		use(k.Base)
		use(k.Index)
	case ir.InstAccessIndex:
		use(k.Base)
	case ir.InstExtract:
		use(k.Composite)
	case ir.InstExtractDynamic:
		use(k.Composite)
		use(k.Index)
	case ir.InstInsert:
		use(k.Composite)
		use(k.Value)
	case ir.InstInsertDynamic:
		use(k.Composite)
		use(k.Index)
		use(k.Value)
	case ir.InstSplat:
		use(k.Value)
	case ir.InstShuffle:
		use(k.Vector)
	case ir.InstLoad:
		use(k.Pointer)
	case ir.InstStore:
		use(k.Pointer)
		use(k.Value)
	case ir.InstArrayLength:
		use(k.Pointer)
	case ir.InstUnary:
		use(k.Value)
	case ir.InstBinary:
		use(k.Left)
		use(k.Right)
	case ir.InstSelect:
		use(k.Condition)
		use(k.Accept)
		use(k.Reject)
	case ir.InstMath:
		for i := 0; i < k.Fun.Arity(); i++ {
			use(k.Args[i])
		}
	case ir.InstRelational:
		use(k.Arg)
	case ir.InstDerivative:
		use(k.Value)
	case ir.InstConvert:
		use(k.Value)
	case ir.InstBitcast:
		use(k.Value)
	case ir.InstCall:
		for _, a := range k.Args {
			use(a)
		}
	case ir.InstImageSample:
		use(k.Image)
		use(k.Sampler)
		use(k.Coordinate)
		use(k.ArrayIndex)
		use(k.Offset)
		use(k.DepthRef)
		switch lvl := k.Level.(type) {
		case ir.SampleLevelExact:
			use(lvl.Level)
		case ir.SampleLevelBias:
			use(lvl.Bias)
		case ir.SampleLevelGradient:
			use(lvl.X)
			use(lvl.Y)
		}
	case ir.InstImageLoad:
		use(k.Image)
		use(k.Coordinate)
		use(k.ArrayIndex)
		use(k.Sample)
		use(k.Level)
	case ir.InstImageStore:
		use(k.Image)
		use(k.Coordinate)
		use(k.ArrayIndex)
		use(k.Value)
	case ir.InstImageQuery:
		use(k.Image)
		if sz, ok := k.Query.(ir.ImageQuerySize); ok {
			use(sz.Level)
		}
	case ir.InstAtomic:
		use(k.Pointer)
		use(k.Value)
		if ex, ok := k.Fun.(ir.AtomicExchange); ok {
			use(ex.Compare)
		}
	case ir.InstPhi:
		for _, inc := range k.Incoming {
			use(inc.Value)
		}
	}
}

func walkTerminatorOperands(term ir.Terminator, use func(ir.ValueHandle)) {
	switch t := term.(type) {
	case ir.TermBranchConditional:
		use(t.Condition)
	case ir.TermSwitch:
		use(t.Selector)
	case ir.TermReturnValue:
		use(t.Value)
	}
}
