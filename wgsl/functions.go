// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package wgsl

import (
	"fmt"
	"strings"

	"github.com/shaderlab/ssair/ir"
)

// loopContext mirrors the lowerer's own loopStack (lower_stmt.go): break
// jumps to breakTarget, continue jumps to continueTarget. The structurer
// needs the same stack in reverse, to recognize a TermBranch to either as
// `break`/`continue` rather than as a sequential fallthrough into a block
// outside the current region.
type loopContext struct {
	breakTarget    ir.BlockHandle
	continueTarget ir.BlockHandle
}

func (w *writer) writeFunction(handle ir.FuncHandle, fn *ir.Function, ep *ir.EntryPoint) error {
	w.fn = fn
	w.valueTypes = ir.TypeOf(ir.NewInternerOverModule(w.module), fn)
	w.useCount = computeUseCounts(fn)
	w.exprText = make(map[ir.ValueHandle]string)
	w.letNames = make(map[ir.ValueHandle]string)
	w.argNames = make(map[ir.ValueHandle]string)
	w.loopStack = nil

	name := w.funcNames[handle]

	if ep != nil {
		switch ep.Stage {
		case ir.StageVertex:
			w.line("@vertex")
		case ir.StageFragment:
			w.line("@fragment")
		case ir.StageCompute:
			w.line("@compute @workgroup_size(%d, %d, %d)", ep.Workgroup[0], ep.Workgroup[1], ep.Workgroup[2])
		}
	}

	params := make([]string, len(fn.Arguments))
	for i, arg := range fn.Arguments {
		typeName, err := w.typeName(arg.Type)
		if err != nil {
			return err
		}
		argName := w.uniqueName(arg.Name)
		w.argNames[arg.ID] = argName
		attr := w.bindingAttribute(arg.Binding)
		if attr != "" {
			attr += " "
		}
		params[i] = fmt.Sprintf("%s%s: %s", attr, argName, typeName)
	}

	returnClause := ""
	if fn.Result != nil {
		typeName, err := w.typeName(fn.Result.Type)
		if err != nil {
			return err
		}
		attr := w.bindingAttribute(fn.Result.Binding)
		if attr != "" {
			attr += " "
		}
		returnClause = fmt.Sprintf(" -> %s%s", attr, typeName)
	}

	w.line("fn %s(%s)%s {", name, strings.Join(params, ", "), returnClause)
	w.indent++
	for _, local := range fn.Locals {
		if err := w.writeLocalDecl(local); err != nil {
			return err
		}
	}
	if err := w.emitRegion(fn.Entry, ir.NoID); err != nil {
		return err
	}
	w.indent--
	w.line("}")
	w.out.WriteByte('\n')
	return nil
}

func (w *writer) writeLocalDecl(local ir.LocalVariable) error {
	typeName, err := w.typeName(local.Type)
	if err != nil {
		return err
	}
	name := w.uniqueName(local.Name)
	w.argNames[local.ID] = name
	if local.Init != ir.NoID {
		init, err := w.constantExpr(local.Init)
		if err != nil {
			return err
		}
		w.line("var %s: %s = %s;", name, typeName, init)
	} else {
		w.line("var %s: %s;", name, typeName)
	}
	return nil
}

// computeUseCounts scans every instruction operand and terminator operand
// in fn to determine how many times each SSA value is referenced — the
// basis for deciding whether a pure expression gets inlined at its single
// use site or materialized into a `let` binding.
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
