// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package wgsl

import (
	"fmt"

	"github.com/shaderlab/ssair/ir"
)

// emitRegion renders the statements reachable starting at start, stopping
// (without rendering start itself) once it reaches stopAt. stopAt is
// ir.NoID for a function body, which never re-converges onto a named
// block. Recognizing if/else, loop and switch shapes (rather than just
// emitting one `goto`-style label per block) relies entirely on the fact
// that this IR's only producer, the lowerer in lower_stmt.go, always
// builds these four specific block shapes — an arbitrary reducible CFG
// with other shapes would need a more general (interval/relooper-style)
// algorithm than this one.
func (w *writer) emitRegion(start, stopAt ir.BlockHandle) error {
	current := start
	for {
		if current == stopAt {
			return nil
		}
		block := w.fn.BlockByID(current)
		if block == nil {
			return fmt.Errorf("wgsl: unknown block %d", current)
		}
		if err := w.emitBlockInstructions(block); err != nil {
			return err
		}

		switch t := block.Terminator.(type) {
		case ir.TermReturnValue:
			val, err := w.valueText(t.Value)
			if err != nil {
				return err
			}
			w.line("return %s;", val)
			return nil

		case ir.TermReturnVoid:
			w.line("return;")
			return nil

		case ir.TermKill:
			w.line("discard;")
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
				return fmt.Errorf("wgsl: branch-conditional block %d has no selection merge marker", current)
			}
			cond, err := w.valueText(t.Condition)
			if err != nil {
				return err
			}
			w.line("if (%s) {", cond)
			w.indent++
			if err := w.emitRegion(t.TrueTarget, merge); err != nil {
				return err
			}
			w.indent--
			if t.FalseTarget != merge {
				w.line("} else {")
				w.indent++
				if err := w.emitRegion(t.FalseTarget, merge); err != nil {
					return err
				}
				w.indent--
			}
			w.line("}")
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
			return fmt.Errorf("wgsl: unhandled terminator %T", t)
		}
	}
}

// followBranch emits `break;`/`continue;` when target matches the
// innermost active loop's merge/continuing block instead of silently
// falling through into it — those targets lie outside the region
// currently being rendered even though they aren't this call's stopAt.
// Returns handled=true (and the region is done) when it emitted one of
// these; handled=false means the caller should keep walking to target as
// an ordinary same-region fallthrough.
func (w *writer) followBranch(target, stopAt ir.BlockHandle) (handled bool, err error) {
	if target == stopAt {
		return false, nil
	}
	if len(w.loopStack) == 0 {
		return false, nil
	}
	ctx := w.loopStack[len(w.loopStack)-1]
	switch target {
	case ctx.breakTarget:
		w.line("break;")
		return true, nil
	case ctx.continueTarget:
		w.line("continue;")
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
// reconverges on. lower_stmt.go's lowerSwitch never emits an
// InstSelectionMerge marker ahead of TermSwitch the way lowerIf does
// ahead of TermBranchConditional, so the merge target isn't named
// anywhere explicit; it is recovered here as the one branch target, among
// every case/default block's own terminator, that isn't itself one of the
// switch's own case/default blocks (the shared block every
// non-fallthrough, non-early-terminated case body branches to once its
// own statements finish). A switch whose every case returns, breaks, or
// falls into another case never references such a block, in which case
// this returns ir.NoID and execution past the switch is unreachable.
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

func (w *writer) emitLoop(body, merge, continuing ir.BlockHandle) error {
	w.loopStack = append(w.loopStack, loopContext{breakTarget: merge, continueTarget: continuing})
	w.line("loop {")
	w.indent++
	if err := w.emitRegion(body, continuing); err != nil {
		return err
	}
	contBlock := w.fn.BlockByID(continuing)
	if contBlock != nil && (len(contBlock.Instructions) > 0 || !isImmediateBackEdge(contBlock)) {
		w.indent--
		w.line("continuing {")
		w.indent++
		if err := w.emitRegion(continuing, backEdgeTarget(contBlock)); err != nil {
			return err
		}
		w.indent--
		w.line("}")
		w.indent++
	}
	w.indent--
	w.line("}")
	w.loopStack = w.loopStack[:len(w.loopStack)-1]
	return nil
}

// isImmediateBackEdge reports whether block is an empty continuing block
// that does nothing but branch straight back to the loop header — WGSL
// permits omitting an empty `continuing { }` entirely.
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

func (w *writer) emitSwitch(t ir.TermSwitch) error {
	selector, err := w.valueText(t.Selector)
	if err != nil {
		return err
	}
	w.line("switch (%s) {", selector)
	w.indent++
	merge := switchMergeOf(w.fn, t)
	for _, c := range t.Cases {
		w.line("case %s: {", switchValueText(c.Value))
		w.indent++
		if err := w.emitRegion(c.Target, merge); err != nil {
			return err
		}
		w.indent--
		w.line("}")
	}
	w.line("default: {")
	w.indent++
	if err := w.emitRegion(t.Default, merge); err != nil {
		return err
	}
	w.indent--
	w.line("}")
	w.indent--
	w.line("}")
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

// emitBlockInstructions renders every instruction in block as either a
// materialized `let`/assignment statement or — for a pure, single-use
// value — no statement at all, recording its text in w.exprText for
// inline substitution at the one place it's referenced. Merge markers
// produce no text of their own; emitRegion reads them directly off
// block.Instructions via selectionMergeOf/loopMergeOf.
func (w *writer) emitBlockInstructions(block *ir.Block) error {
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
