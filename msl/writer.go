package msl

import (
	"fmt"
	"strings"

	"github.com/shaderlab/ssair/ir"
)

// nameKey identifies an IR entity for name lookup.
type nameKey struct {
	kind    nameKeyKind
	handle1 uint32
	handle2 uint32
}

type nameKeyKind uint8

const (
	nameKeyType nameKeyKind = iota
	nameKeyStructMember
	nameKeyConstant
	nameKeyGlobalVariable
	nameKeyFunction
	nameKeyFunctionArgument
	nameKeyEntryPoint
	nameKeyLocal
)

// loopContext mirrors wgsl's own loopStack entry: break jumps to
// breakTarget, continue jumps to continueTarget. continueLabel is set only
// when the loop's continuing block is non-trivial — MSL's while(true)
// doesn't run trailing code on a bare `continue`, so such loops translate
// continue into `goto` the label placed just before the continuing block.
type loopContext struct {
	breakTarget    ir.BlockHandle
	continueTarget ir.BlockHandle
	continueLabel  string
}

// Writer generates MSL source code from IR.
type Writer struct {
	module   *ir.Module
	options  *Options
	pipeline *PipelineOptions

	out    strings.Builder
	indent int

	names      map[nameKey]string
	namer      *namer
	structPads map[nameKey]struct{}

	typeNames     map[ir.TypeHandle]string
	arrayWrappers map[ir.TypeHandle]string

	// Function context, reset at the start of each writeFunction call.
	fn                *ir.Function
	currentFuncHandle ir.FuncHandle
	valueTypes        map[ir.ValueHandle]ir.TypeHandle
	useCount          map[ir.ValueHandle]int
	exprText          map[ir.ValueHandle]string
	letNames          map[ir.ValueHandle]string
	argNames          map[ir.ValueHandle]string
	loopStack         []loopContext
	loopCounter       int

	entryPointNames  map[string]string
	needsSizesBuffer bool
	needsDivHelper   bool
	needsModHelper   bool

	entryPointOutputVar        string
	entryPointOutputType       ir.TypeHandle
	entryPointOutputTypeActive bool
	entryPointInputStructArg   int
}

// namer generates unique identifiers.
type namer struct {
	usedNames map[string]struct{}
	counter   uint32
}

func newNamer() *namer {
	return &namer{usedNames: make(map[string]struct{})}
}

// call generates a unique name based on the given base.
func (n *namer) call(base string) string {
	escaped := escapeName(base)
	if _, used := n.usedNames[escaped]; !used {
		n.usedNames[escaped] = struct{}{}
		return escaped
	}
	for {
		n.counter++
		candidate := fmt.Sprintf("%s_%d", escaped, n.counter)
		if _, used := n.usedNames[candidate]; !used {
			n.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

// newWriter creates a new MSL writer.
func newWriter(module *ir.Module, options *Options, pipeline *PipelineOptions) *Writer {
	return &Writer{
		module:                   module,
		options:                  options,
		pipeline:                 pipeline,
		names:                    make(map[nameKey]string),
		namer:                    newNamer(),
		structPads:               make(map[nameKey]struct{}),
		typeNames:                make(map[ir.TypeHandle]string),
		arrayWrappers:            make(map[ir.TypeHandle]string),
		entryPointNames:          make(map[string]string),
		entryPointInputStructArg: -1,
	}
}

// String returns the generated MSL source code.
func (w *Writer) String() string {
	return w.out.String()
}

// writeModule generates MSL code for the entire module.
func (w *Writer) writeModule() error {
	w.writeHeader()

	if err := w.registerNames(); err != nil {
		return err
	}

	if err := w.writeTypes(); err != nil {
		return err
	}

	if err := w.writeConstants(); err != nil {
		return err
	}

	w.writeHelperFunctions()

	if err := w.writeFunctions(); err != nil {
		return err
	}

	return w.writeEntryPoints()
}

// writeHeader writes the MSL file header.
func (w *Writer) writeHeader() {
	w.writeLine("#include <metal_stdlib>")
	w.writeLine("#include <simd/simd.h>")
	w.writeLine("")
	w.writeLine("using metal::uint;")
	w.writeLine("")
}

// registerNames assigns unique names to all IR entities.
func (w *Writer) registerNames() error {
	entryPointNames := make(map[ir.FuncHandle]string)
	for _, ep := range w.module.EntryPoints {
		if ep.Name != "" {
			entryPointNames[ep.Function] = ep.Name
		}
	}

	for i, typ := range w.module.Types() {
		handle := ir.TypeHandle(i + 1)
		baseName := typ.Name
		if baseName == "" {
			baseName = fmt.Sprintf("type_%d", handle)
		}
		name := w.namer.call(baseName)
		w.names[nameKey{kind: nameKeyType, handle1: uint32(handle)}] = name
		w.typeNames[handle] = name

		if st, ok := typ.Inner.(ir.StructType); ok {
			for memberIdx, member := range st.Members {
				memberName := member.Name
				if memberName == "" {
					memberName = fmt.Sprintf("member_%d", memberIdx)
				}
				w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(memberIdx)}] = escapeName(memberName)
			}
		}
	}

	for i, constant := range w.module.Constants() {
		handle := ir.ConstantHandle(i + 1)
		baseName := constant.Name
		if baseName == "" {
			baseName = fmt.Sprintf("const_%d", handle)
		}
		w.names[nameKey{kind: nameKeyConstant, handle1: uint32(handle)}] = w.namer.call(baseName)
	}

	for _, global := range w.module.Globals() {
		baseName := global.Name
		if baseName == "" {
			baseName = fmt.Sprintf("global_%d", global.ID)
		}
		w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(global.ID)}] = w.namer.call(baseName)
	}

	for _, fn := range w.module.Functions() {
		handle, _ := w.module.FunctionHandle(fn)
		baseName := fn.Name
		if entryName, ok := entryPointNames[handle]; ok {
			baseName = entryName
		}
		if baseName == "" {
			baseName = fmt.Sprintf("function_%d", handle)
		}
		name := w.namer.call(baseName)
		w.names[nameKey{kind: nameKeyFunction, handle1: uint32(handle)}] = name

		for argIdx, arg := range fn.Arguments {
			argName := arg.Name
			if argName == "" {
				argName = fmt.Sprintf("arg_%d", argIdx)
			}
			w.names[nameKey{kind: nameKeyFunctionArgument, handle1: uint32(handle), handle2: uint32(argIdx)}] = escapeName(argName)
		}
	}

	for epIdx, ep := range w.module.EntryPoints {
		fnName, ok := w.names[nameKey{kind: nameKeyFunction, handle1: uint32(ep.Function)}]
		if !ok || fnName == "" {
			fnName = w.namer.call(ep.Name)
		}
		w.names[nameKey{kind: nameKeyEntryPoint, handle1: uint32(epIdx)}] = fnName
		w.entryPointNames[ep.Name] = fnName
	}

	return nil
}

// Output helpers

//nolint:goprintffuncname
func (w *Writer) write(format string, args ...any) {
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
}

//nolint:goprintffuncname
func (w *Writer) writeLine(format string, args ...any) {
	w.writeIndent()
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
	w.out.WriteByte('\n')
}

func (w *Writer) writeIndent() {
	for i := 0; i < w.indent; i++ {
		w.out.WriteString("    ")
	}
}

func (w *Writer) pushIndent() {
	w.indent++
}

func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}

// writeHelperFunctions writes polyfills every shader gets regardless of
// whether a given translation unit actually needs them, mirroring the
// unconditional-emission approach the rest of this writer inherited for
// its division/modulo safety wrappers.
func (w *Writer) writeHelperFunctions() {
	w.writeLine("// Safe division helper (handles zero divisor)")
	w.writeLine("template <typename T, typename D>")
	w.writeLine("T _ssir_div(T lhs, D rhs) {")
	w.pushIndent()
	w.writeLine("D nz = D(rhs != D(0));")
	w.writeLine("return lhs / (nz * rhs + D(!nz));")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")

	w.writeLine("// Safe modulo helper (handles zero divisor)")
	w.writeLine("template <typename T, typename D>")
	w.writeLine("T _ssir_mod(T lhs, D rhs) {")
	w.pushIndent()
	w.writeLine("D nz = D(rhs != D(0));")
	w.writeLine("return lhs %s (nz * rhs + D(!nz));", "%")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
}

// getTypeName returns the MSL type name for a type handle.
func (w *Writer) getTypeName(handle ir.TypeHandle) string {
	if name, ok := w.typeNames[handle]; ok {
		return name
	}
	return fmt.Sprintf("type_%d", handle)
}

// getName returns the registered name for a name key.
func (w *Writer) getName(key nameKey) string {
	if name, ok := w.names[key]; ok {
		return name
	}
	return fmt.Sprintf("unnamed_%d_%d", key.kind, key.handle1)
}
