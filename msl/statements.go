package msl

import (
	"fmt"

	"github.com/shaderlab/ssair/ir"
)

// emitRegion renders the statements reachable starting at start, stopping
// (without rendering start itself) once it reaches stopAt. Recognizing
// if/else, loop and switch shapes relies on the same structural guarantee
// the WGSL back end relies on: the lowerer that produced this IR only ever
// builds these four block shapes.
func (w *Writer) emitRegion(start, stopAt ir.BlockHandle) error {
	current := start
	for {
		if current == stopAt {
			return nil
		}
		block := w.fn.BlockByID(current)
		if block == nil {
			return fmt.Errorf("msl: unknown block %d", current)
		}
		if err := w.emitBlockInstructions(block); err != nil {
			return err
		}

		switch t := block.Terminator.(type) {
		case ir.TermReturnValue:
			handled, err := w.writeEntryPointOutputReturn(t.Value)
			if err != nil {
				return err
			}
			if handled {
				return nil
			}
			val, err := w.valueText(t.Value)
			if err != nil {
				return err
			}
			w.writeLine("return %s;", val)
			return nil

		case ir.TermReturnVoid:
			w.writeLine("return;")
			return nil

		case ir.TermKill:
			w.writeLine("discard_fragment();")
			return nil

		case ir.TermUnreachable:
			return nil

		case ir.TermBranch:
			if merge, cont, isLoop := loopMergeOf(block); isLoop {
				if err := w.emitLoop(t.Target, merge, cont); err != nil {
					return err
				}
				current = merge
				continue
			}
			if handled, err := w.followBranch(t.Target, stopAt); handled {
				return err
			}
			current = t.Target

		case ir.TermBranchConditional:
			merge, hasMerge := selectionMergeOf(block)
			if !hasMerge {
				return fmt.Errorf("msl: branch-conditional block %d has no selection merge marker", current)
			}
			cond, err := w.valueText(t.Condition)
			if err != nil {
				return err
			}
			w.writeLine("if (%s) {", cond)
			w.pushIndent()
			if err := w.emitRegion(t.TrueTarget, merge); err != nil {
				return err
			}
			w.popIndent()
			if t.FalseTarget != merge {
				w.writeLine("} else {")
				w.pushIndent()
				if err := w.emitRegion(t.FalseTarget, merge); err != nil {
					return err
				}
				w.popIndent()
			}
			w.writeLine("}")
			current = merge

		case ir.TermSwitch:
			if err := w.emitSwitch(t); err != nil {
				return err
			}
			merge := switchMergeOf(w.fn, t)
			if merge == ir.NoID {
				return nil
			}
			current = merge

		default:
			return fmt.Errorf("msl: unhandled terminator %T", t)
		}
	}
}

// followBranch emits `break;`/`continue;` (or a `goto` to the active
// loop's continuing label, when it has one) when target matches the
// innermost active loop's merge/continuing block.
func (w *Writer) followBranch(target, stopAt ir.BlockHandle) (handled bool, err error) {
	if target == stopAt {
		return false, nil
	}
	if len(w.loopStack) == 0 {
		return false, nil
	}
	ctx := w.loopStack[len(w.loopStack)-1]
	switch target {
	case ctx.breakTarget:
		w.writeLine("break;")
		return true, nil
	case ctx.continueTarget:
		if ctx.continueLabel != "" {
			w.writeLine("goto %s;", ctx.continueLabel)
		} else {
			w.writeLine("continue;")
		}
		return true, nil
	default:
		return false, nil
	}
}

func selectionMergeOf(block *ir.Block) (ir.BlockHandle, bool) {
	if n := len(block.Instructions); n > 0 {
		if m, ok := block.Instructions[n-1].Kind.(ir.InstSelectionMerge); ok {
			return m.Merge, true
		}
	}
	return ir.NoID, false
}

func loopMergeOf(block *ir.Block) (merge, cont ir.BlockHandle, ok bool) {
	if n := len(block.Instructions); n > 0 {
		if m, ok2 := block.Instructions[n-1].Kind.(ir.InstLoopMerge); ok2 {
			return m.Merge, m.Continue, true
		}
	}
	return ir.NoID, ir.NoID, false
}

// switchMergeOf recovers the block every switch case/default implicitly
// reconverges on: the one branch target, among every case/default block's
// own terminator, that isn't itself one of the switch's own case/default
// blocks.
func switchMergeOf(fn *ir.Function, t ir.TermSwitch) ir.BlockHandle {
	targets := make(map[ir.BlockHandle]bool, len(t.Cases)+1)
	for _, c := range t.Cases {
		targets[c.Target] = true
	}
	targets[t.Default] = true

	check := func(handle ir.BlockHandle) ir.BlockHandle {
		blk := fn.BlockByID(handle)
		if blk == nil {
			return ir.NoID
		}
		if tb, ok := blk.Terminator.(ir.TermBranch); ok && !targets[tb.Target] {
			return tb.Target
		}
		return ir.NoID
	}
	for _, c := range t.Cases {
		if m := check(c.Target); m != ir.NoID {
			return m
		}
	}
	return check(t.Default)
}

// emitLoop writes a while(true) loop. MSL's continue does not run trailing
// "continuing" code the way WGSL's native loop construct does, so a loop
// with a non-trivial continuing block gets a goto-target label placed
// right before that code, and every continue within the body that's meant
// to reach it is rewritten to goto instead of a bare `continue;`.
func (w *Writer) emitLoop(body, merge, continuing ir.BlockHandle) error {
	contBlock := w.fn.BlockByID(continuing)
	nonTrivial := contBlock != nil && !isImmediateBackEdge(contBlock)

	continueLabel := ""
	if nonTrivial {
		continueLabel = fmt.Sprintf("loop%d_continue", w.loopCounter)
		w.loopCounter++
	}

	w.loopStack = append(w.loopStack, loopContext{breakTarget: merge, continueTarget: continuing, continueLabel: continueLabel})
	w.writeLine("while (true) {")
	w.pushIndent()
	if err := w.emitRegion(body, continuing); err != nil {
		return err
	}
	if nonTrivial {
		w.popIndent()
		w.writeLine("%s:", continueLabel)
		w.pushIndent()
		if err := w.emitRegion(continuing, backEdgeTarget(contBlock)); err != nil {
			return err
		}
	}
	w.popIndent()
	w.writeLine("}")
	w.loopStack = w.loopStack[:len(w.loopStack)-1]
	return nil
}

// isImmediateBackEdge reports whether block is an empty continuing block
// that does nothing but branch straight back to the loop header.
func isImmediateBackEdge(block *ir.Block) bool {
	_, ok := block.Terminator.(ir.TermBranch)
	return ok && len(block.Instructions) == 0
}

func backEdgeTarget(block *ir.Block) ir.BlockHandle {
	if tb, ok := block.Terminator.(ir.TermBranch); ok {
		return tb.Target
	}
	return ir.NoID
}

// emitSwitch writes a switch statement. Every case gets an explicit
// trailing break (dead code if the case body already returned or jumped
// away) unless SwitchCase.FallThrough says the source genuinely fell into
// the next case — MSL/C switches fall through by default, unlike WGSL's.
func (w *Writer) emitSwitch(t ir.TermSwitch) error {
	selector, err := w.valueText(t.Selector)
	if err != nil {
		return err
	}
	w.writeLine("switch (%s) {", selector)
	w.pushIndent()
	merge := switchMergeOf(w.fn, t)
	for _, c := range t.Cases {
		w.writeLine("case %s: {", switchValueText(c.Value))
		w.pushIndent()
		if err := w.emitRegion(c.Target, merge); err != nil {
			return err
		}
		if !c.FallThrough {
			w.writeLine("break;")
		}
		w.popIndent()
		w.writeLine("}")
	}
	w.writeLine("default: {")
	w.pushIndent()
	if err := w.emitRegion(t.Default, merge); err != nil {
		return err
	}
	w.writeLine("break;")
	w.popIndent()
	w.writeLine("}")
	w.popIndent()
	w.writeLine("}")
	return nil
}

func switchValueText(v ir.SwitchValue) string {
	switch val := v.(type) {
	case ir.SwitchValueI32:
		return fmt.Sprintf("%d", val.Value)
	case ir.SwitchValueU32:
		return fmt.Sprintf("%du", val.Value)
	default:
		return "0"
	}
}

// emitBlockInstructions renders every instruction in block, skipping the
// merge markers emitRegion reads directly off block.Instructions.
func (w *Writer) emitBlockInstructions(block *ir.Block) error {
	for _, inst := range block.Instructions {
		switch inst.Kind.(type) {
		case ir.InstSelectionMerge, ir.InstLoopMerge:
			continue
		}
		if err := w.emitInstruction(inst); err != nil {
			return err
		}
	}
	return nil
}

// writeEntryPointOutputReturn redirects a return inside an entry point
// whose result is wrapped in the synthesized _Output struct, writing each
// field of _output instead of returning the value directly. Returns false
// (nothing written) when the current function isn't such an entry point,
// so the caller falls back to a plain `return`.
func (w *Writer) writeEntryPointOutputReturn(value ir.ValueHandle) (bool, error) {
	if !w.entryPointOutputTypeActive {
		return false, nil
	}
	typ, ok := w.module.Type(w.entryPointOutputType)
	if !ok {
		return false, nil
	}

	val, err := w.valueText(value)
	if err != nil {
		return false, err
	}

	st, ok := typ.Inner.(ir.StructType)
	if !ok {
		w.writeLine("%s.member = %s;", w.entryPointOutputVar, val)
		return true, nil
	}

	for memberIdx := range st.Members {
		memberName := w.getName(nameKey{kind: nameKeyStructMember, handle1: uint32(w.entryPointOutputType), handle2: uint32(memberIdx)})
		w.writeLine("%s.%s = %s.%s;", w.entryPointOutputVar, memberName, val, memberName)
	}
	return true, nil
}
