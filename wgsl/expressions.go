// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package wgsl

import (
	"fmt"
	"strings"

	"github.com/shaderlab/ssair/ir"
)

// valueText resolves a previously-defined SSA value to the text that
// refers to it: a `let` binding name, inlined expression text, a
// function argument/local name, or a global variable name. Exactly one
// of these is populated for any value by the time it's referenced, since
// every block is processed before its successors and every operand is
// defined in a dominating block.
func (w *writer) valueText(v ir.ValueHandle) (string, error) {
	if v == ir.NoID {
		return "", nil
	}
	if name, ok := w.letNames[v]; ok {
		return name, nil
	}
	if text, ok := w.exprText[v]; ok {
		return text, nil
	}
	if name, ok := w.argNames[v]; ok {
		return name, nil
	}
	if g, ok := w.module.Global(ir.GlobalHandle(v)); ok {
		if name, ok := w.globalNames[g.ID]; ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("wgsl: no text recorded for value %d", v)
}

// bind records the rendered text for result: inlined directly at its one
// use site if it's referenced at most once, otherwise materialized into a
// `let` statement. pure must be false for anything with a side effect
// (atomics, calls, stores) — those always materialize so the side effect
// isn't duplicated or dropped if the value is unused.
func (w *writer) bind(result ir.ValueHandle, text string, pure bool) error {
	if result == ir.NoID {
		return nil
	}
	if pure && w.useCount[result] <= 1 {
		w.exprText[result] = text
		return nil
	}
	name := fmt.Sprintf("_e%d", result)
	w.letNames[result] = name
	typeName, err := w.typeName(w.valueTypes[result])
	if err != nil {
		return err
	}
	w.line("let %s: %s = %s;", name, typeName, text)
	return nil
}

// emitInstruction renders one non-terminator instruction: a statement for
// anything side-effecting, otherwise a recorded expression (inline or
// `let`, see bind).
func (w *writer) emitInstruction(inst ir.Instruction) error {
	switch k := inst.Kind.(type) {
	case ir.InstStore:
		ptr, err := w.valueText(k.Pointer)
		if err != nil {
			return err
		}
		val, err := w.valueText(k.Value)
		if err != nil {
			return err
		}
		w.line("%s = %s;", ptr, val)
		return nil

	case ir.InstImageStore:
		return w.emitImageStoreStmt(k)

	case ir.InstBarrier:
		if k.Flags&ir.BarrierWorkGroup != 0 {
			w.line("workgroupBarrier();")
		}
		if k.Flags&(ir.BarrierStorage|ir.BarrierTexture) != 0 {
			w.line("storageBarrier();")
		}
		return nil

	case ir.InstAtomic:
		return w.emitAtomicStmt(inst.Result, k)

	case ir.InstCall:
		return w.emitCallStmt(inst.Result, k)

	case ir.InstInsert:
		return w.emitInsert(inst.Result, k.Composite, memberOrIndexText{index: k.Index}, k.Value)

	case ir.InstInsertDynamic:
		idxText, err := w.valueText(k.Index)
		if err != nil {
			return err
		}
		return w.emitInsert(inst.Result, k.Composite, memberOrIndexText{dynamic: idxText}, k.Value)

	default:
		text, err := w.exprTextFor(inst.Kind)
		if err != nil {
			return err
		}
		return w.bind(inst.Result, text, true)
	}
}

// exprTextFor builds the expression text for every pure InstructionKind —
// side-effecting kinds (store, call, atomic, image-store, barrier) are
// handled directly in emitInstruction since they always render as their
// own statement.
func (w *writer) exprTextFor(kind ir.InstructionKind) (string, error) {
	switch k := kind.(type) {
	case ir.InstCompose:
		typeName, err := w.typeName(k.Type)
		if err != nil {
			return "", err
		}
		parts, err := w.valueTextList(k.Components)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", typeName, strings.Join(parts, ", ")), nil

	case ir.InstAccess:
		base, err := w.valueText(k.Base)
		if err != nil {
			return "", err
		}
		index, err := w.valueText(k.Index)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", base, index), nil

	case ir.InstAccessIndex:
		return w.memberAccessText(k.Base, k.Index)

	case ir.InstExtract:
		return w.memberAccessText(k.Composite, k.Index)

	case ir.InstExtractDynamic:
		base, err := w.valueText(k.Composite)
		if err != nil {
			return "", err
		}
		index, err := w.valueText(k.Index)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", base, index), nil

	case ir.InstSplat:
		val, err := w.valueText(k.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("vec%d(%s)", k.Size, val), nil

	case ir.InstShuffle:
		base, err := w.valueText(k.Vector)
		if err != nil {
			return "", err
		}
		var letters strings.Builder
		for i := 0; i < int(k.Size); i++ {
			letters.WriteByte(swizzleLetter(k.Pattern[i]))
		}
		return fmt.Sprintf("%s.%s", base, letters.String()), nil

	case ir.InstLoad:
		return w.valueText(k.Pointer)

	case ir.InstArrayLength:
		ptr, err := w.valueText(k.Pointer)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("arrayLength(&%s)", ptr), nil

	case ir.InstUnary:
		val, err := w.valueText(k.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s%s)", unaryOpText(k.Op), val), nil

	case ir.InstBinary:
		left, err := w.valueText(k.Left)
		if err != nil {
			return "", err
		}
		right, err := w.valueText(k.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, binaryOpText(k.Op), right), nil

	case ir.InstSelect:
		cond, err := w.valueText(k.Condition)
		if err != nil {
			return "", err
		}
		accept, err := w.valueText(k.Accept)
		if err != nil {
			return "", err
		}
		reject, err := w.valueText(k.Reject)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("select(%s, %s, %s)", reject, accept, cond), nil

	case ir.InstMath:
		return w.emitMath(k)

	case ir.InstRelational:
		arg, err := w.valueText(k.Arg)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", relationalFuncName(k.Fun), arg), nil

	case ir.InstDerivative:
		val, err := w.valueText(k.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", derivativeFuncName(k.Axis, k.Control), val), nil

	case ir.InstConvert:
		return w.emitConvert(k.Value, k.Kind, k.Width, false)

	case ir.InstBitcast:
		return w.emitConvert(k.Value, k.Kind, k.Width, true)

	case ir.InstImageSample:
		return w.emitImageSample(k)

	case ir.InstImageLoad:
		return w.emitImageLoad(k)

	case ir.InstImageQuery:
		return w.emitImageQuery(k)

	case ir.InstPhi:
		return "", fmt.Errorf("wgsl: phi instructions are not produced by the statement lowerer and have no structured-text form")

	default:
		return "", fmt.Errorf("wgsl: unhandled instruction kind %T", kind)
	}
}

func (w *writer) valueTextList(vs []ir.ValueHandle) ([]string, error) {
	out := make([]string, len(vs))
	for i, v := range vs {
		s, err := w.valueText(v)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func swizzleLetter(c ir.SwizzleComponent) byte {
	switch c {
	case ir.SwizzleX:
		return 'x'
	case ir.SwizzleY:
		return 'y'
	case ir.SwizzleZ:
		return 'z'
	default:
		return 'w'
	}
}

func unaryOpText(op ir.UnaryOperator) string {
	switch op {
	case ir.UnaryLogicalNot:
		return "!"
	case ir.UnaryBitwiseNot:
		return "~"
	default:
		return "-"
	}
}

func binaryOpText(op ir.BinaryOperator) string {
	switch op {
	case ir.BinaryAdd:
		return "+"
	case ir.BinarySubtract:
		return "-"
	case ir.BinaryMultiply:
		return "*"
	case ir.BinaryDivide:
		return "/"
	case ir.BinaryModulo:
		return "%"
	case ir.BinaryEqual:
		return "=="
	case ir.BinaryNotEqual:
		return "!="
	case ir.BinaryLess:
		return "<"
	case ir.BinaryLessEqual:
		return "<="
	case ir.BinaryGreater:
		return ">"
	case ir.BinaryGreaterEqual:
		return ">="
	case ir.BinaryAnd:
		return "&"
	case ir.BinaryExclusiveOr:
		return "^"
	case ir.BinaryInclusiveOr:
		return "|"
	case ir.BinaryLogicalAnd:
		return "&&"
	case ir.BinaryLogicalOr:
		return "||"
	case ir.BinaryShiftLeft:
		return "<<"
	case ir.BinaryShiftRight:
		return ">>"
	default:
		return "+"
	}
}

func relationalFuncName(f ir.RelationalFunction) string {
	switch f {
	case ir.RelationalAny:
		return "any"
	case ir.RelationalIsNan:
		return "isNan"
	case ir.RelationalIsInf:
		return "isInf"
	default:
		return "all"
	}
}

func derivativeFuncName(axis ir.DerivativeAxis, control ir.DerivativeControl) string {
	var base string
	switch axis {
	case ir.DerivativeY:
		base = "dpdy"
	case ir.DerivativeWidth:
		base = "fwidth"
	default:
		base = "dpdx"
	}
	switch control {
	case ir.DerivativeCoarse:
		return base + "Coarse"
	case ir.DerivativeFine:
		return base + "Fine"
	default:
		return base
	}
}

// memberOrIndexText carries either a compile-time member/element index or
// an already-rendered runtime index expression, letting emitInsert share
// one implementation between InstInsert and InstInsertDynamic.
type memberOrIndexText struct {
	index   uint32
	dynamic string
}

// memberAccessText renders access to member/element index of base,
// choosing `.name` for a struct member and `[index]` for anything else
// (vector, matrix column, array) by inspecting base's resolved type.
func (w *writer) memberAccessText(base ir.ValueHandle, index uint32) (string, error) {
	baseText, err := w.valueText(base)
	if err != nil {
		return "", err
	}
	inner, err := w.resolvedInner(w.valueTypes[base])
	if err != nil {
		return "", err
	}
	if st, ok := inner.(ir.StructType); ok && int(index) < len(st.Members) {
		return fmt.Sprintf("%s.%s", baseText, sanitizeIdent(st.Members[index].Name)), nil
	}
	return fmt.Sprintf("%s[%d]", baseText, index), nil
}

// resolvedInner returns handle's TypeInner, dereferencing one level of
// pointer first — InstAccessIndex/InstAccess operate on a pointer to the
// composite, while InstExtract operates on the composite value directly,
// and both need the same member-vs-index decision.
func (w *writer) resolvedInner(handle ir.TypeHandle) (ir.TypeInner, error) {
	t, ok := w.module.Type(handle)
	if !ok {
		return nil, fmt.Errorf("wgsl: unknown type %d", handle)
	}
	if ptr, ok := t.Inner.(ir.PointerType); ok {
		base, ok := w.module.Type(ptr.Base)
		if !ok {
			return nil, fmt.Errorf("wgsl: unknown pointer base type %d", ptr.Base)
		}
		return base.Inner, nil
	}
	return t.Inner, nil
}

// emitInsert has no direct WGSL expression form — WGSL offers no
// functional "copy this composite with one member replaced" operator —
// so it materializes a throwaway `var`, copies the base composite into
// it, assigns the one replaced member/element, and binds the result name
// to that variable: subsequent reads of the InstInsert result are just
// reads of _iN.
func (w *writer) emitInsert(result ir.ValueHandle, base ir.ValueHandle, idx memberOrIndexText, value ir.ValueHandle) error {
	baseText, err := w.valueText(base)
	if err != nil {
		return err
	}
	valText, err := w.valueText(value)
	if err != nil {
		return err
	}
	typeName, err := w.typeName(w.valueTypes[result])
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("_i%d", result)
	w.line("var %s: %s = %s;", tmp, typeName, baseText)

	var target string
	if idx.dynamic != "" {
		target = fmt.Sprintf("%s[%s]", tmp, idx.dynamic)
	} else {
		inner, err := w.resolvedInner(w.valueTypes[base])
		if err != nil {
			return err
		}
		if st, ok := inner.(ir.StructType); ok && int(idx.index) < len(st.Members) {
			target = fmt.Sprintf("%s.%s", tmp, sanitizeIdent(st.Members[idx.index].Name))
		} else {
			target = fmt.Sprintf("%s[%d]", tmp, idx.index)
		}
	}
	w.line("%s = %s;", target, valText)
	w.exprText[result] = tmp
	return nil
}

func (w *writer) emitCallStmt(result ir.ValueHandle, k ir.InstCall) error {
	fn, ok := w.module.Function(k.Function)
	if !ok {
		return fmt.Errorf("wgsl: unknown function %d", k.Function)
	}
	name := w.funcNames[k.Function]
	if name == "" {
		name = sanitizeIdent(fn.Name)
	}
	args, err := w.valueTextList(k.Args)
	if err != nil {
		return err
	}
	call := fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
	if result == ir.NoID {
		w.line("%s;", call)
		return nil
	}
	return w.bind(result, call, false)
}

func (w *writer) emitAtomicStmt(result ir.ValueHandle, k ir.InstAtomic) error {
	ptr, err := w.valueText(k.Pointer)
	if err != nil {
		return err
	}
	val, err := w.valueText(k.Value)
	if err != nil {
		return err
	}
	var call string
	switch fn := k.Fun.(type) {
	case ir.AtomicAdd:
		call = fmt.Sprintf("atomicAdd(&%s, %s)", ptr, val)
	case ir.AtomicSubtract:
		call = fmt.Sprintf("atomicSub(&%s, %s)", ptr, val)
	case ir.AtomicAnd:
		call = fmt.Sprintf("atomicAnd(&%s, %s)", ptr, val)
	case ir.AtomicExclusiveOr:
		call = fmt.Sprintf("atomicXor(&%s, %s)", ptr, val)
	case ir.AtomicInclusiveOr:
		call = fmt.Sprintf("atomicOr(&%s, %s)", ptr, val)
	case ir.AtomicMin:
		call = fmt.Sprintf("atomicMin(&%s, %s)", ptr, val)
	case ir.AtomicMax:
		call = fmt.Sprintf("atomicMax(&%s, %s)", ptr, val)
	case ir.AtomicExchange:
		if fn.Compare != ir.NoID {
			cmp, err := w.valueText(fn.Compare)
			if err != nil {
				return err
			}
			call = fmt.Sprintf("atomicCompareExchangeWeak(&%s, %s, %s).old_value", ptr, cmp, val)
		} else {
			call = fmt.Sprintf("atomicExchange(&%s, %s)", ptr, val)
		}
	default:
		return fmt.Errorf("wgsl: unhandled atomic function %T", fn)
	}
	if result == ir.NoID {
		w.line("%s;", call)
		return nil
	}
	return w.bind(result, call, false)
}

func (w *writer) emitImageStoreStmt(k ir.InstImageStore) error {
	image, err := w.valueText(k.Image)
	if err != nil {
		return err
	}
	coord, err := w.valueText(k.Coordinate)
	if err != nil {
		return err
	}
	val, err := w.valueText(k.Value)
	if err != nil {
		return err
	}
	if k.ArrayIndex != ir.NoID {
		arr, err := w.valueText(k.ArrayIndex)
		if err != nil {
			return err
		}
		w.line("textureStore(%s, %s, %s, %s);", image, coord, arr, val)
		return nil
	}
	w.line("textureStore(%s, %s, %s);", image, coord, val)
	return nil
}
