package wgsl

import (
	"strconv"
	"strings"

	"github.com/shaderlab/ssair/ir"
)

func (l *Lowerer) lowerFunction(fn *FunctionDecl) {
	l.locals = make(map[string]localInfo)
	l.usedLocals = make(map[string]bool)
	l.declSpans = make(map[string]Span)
	l.loopStack = nil

	var result *ir.FunctionResult
	if fn.ReturnType != nil {
		rt, err := l.resolveType(fn.ReturnType)
		if err != nil {
			l.errf(fn.Span, "function %q: return type: %v", fn.Name, err)
			return
		}
		result = &ir.FunctionResult{Type: rt, Binding: l.returnBinding(fn.ReturnAttrs)}
	}

	l.builder.BeginFunction(fn.Name, result)

	for _, p := range fn.Params {
		pt, err := l.resolveType(p.Type)
		if err != nil {
			l.errf(p.Span, "function %q: parameter %q: %v", fn.Name, p.Name, err)
			continue
		}
		binding := l.paramBinding(p.Attributes)
		v := l.builder.AddArgument(p.Name, pt, binding)
		l.locals[p.Name] = localInfo{handle: v, typ: pt, isPtr: false}
		l.builder.SetDebugName(v, p.Name)
	}

	entry := l.builder.CreateBlock()
	l.builder.SetEntry(entry)
	l.builder.SelectBlock(entry)

	l.lowerBlock(fn.Body)
	l.terminateFallthrough(result)

	handle := l.builder.FinishFunction()
	l.functions[fn.Name] = handle
	l.builder.SetDebugName(handle, fn.Name)

	l.checkUnusedLocals()

	if stage, ok := l.entryPointStage(fn.Attributes); ok {
		workgroup := l.extractWorkgroupSize(fn.Attributes)
		l.builder.AddEntryPoint(ir.EntryPoint{
			Name: fn.Name, Stage: stage, Function: handle, Workgroup: workgroup,
			Interface: l.entryPointInterface(fn),
		})
	}
}

// terminateFallthrough closes out the function's current block with an
// implicit return if the body didn't already end in one — WGSL allows a
// void function's body to simply fall off the end.
func (l *Lowerer) terminateFallthrough(result *ir.FunctionResult) {
	if l.builder.CurrentBlockTerminated() {
		return
	}
	if result == nil {
		l.builder.SetTerminator(ir.TermReturnVoid{})
	} else {
		l.builder.SetTerminator(ir.TermUnreachable{})
	}
}

func (l *Lowerer) checkUnusedLocals() {
	for name := range l.locals {
		if !l.usedLocals[name] {
			if span, ok := l.declSpans[name]; ok {
				l.warnf(span, "local variable %q is never read", name)
			}
		}
	}
}

func (l *Lowerer) paramBinding(attrs []Attribute) *ir.Binding {
	return l.memberBinding(attrs)
}

func (l *Lowerer) returnBinding(attrs []Attribute) *ir.Binding {
	return l.memberBinding(attrs)
}

func (l *Lowerer) entryPointStage(attrs []Attribute) (ir.ShaderStage, bool) {
	for _, a := range attrs {
		switch a.Name {
		case "vertex":
			return ir.StageVertex, true
		case "fragment":
			return ir.StageFragment, true
		case "compute":
			return ir.StageCompute, true
		}
	}
	return 0, false
}

func (l *Lowerer) extractWorkgroupSize(attrs []Attribute) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	for _, a := range attrs {
		if a.Name != "workgroup_size" {
			continue
		}
		for i, arg := range a.Args {
			if i > 2 {
				break
			}
			if v, err := constUint32(arg); err == nil {
				size[i] = v
			} else if id, ok := arg.(*Ident); ok {
				if h, ok := l.moduleConstants[id.Name]; ok {
					if c, ok := l.builder.Module().Constant(h); ok {
						if sv, ok := c.Value.(ir.ScalarValue); ok {
							size[i] = uint32(sv.Bits)
						}
					}
				}
			}
		}
	}
	return size
}

// entryPointInterface collects the globals an entry point's body touches,
// used by the SPIR-V back-end's OpEntryPoint instruction. A simple
// syntactic scan over the source function body (rather than a full
// reachability analysis through callees) is good enough here since WGSL
// entry points rarely call deeply into helpers that touch unrelated
// bindings, and any miss only costs a back-end a slightly larger interface
// list, never a validation failure.
func (l *Lowerer) entryPointInterface(fn *FunctionDecl) []ir.GlobalHandle {
	names := make(map[string]bool)
	collectIdentsStmt(fn.Body, names)
	out := make([]ir.GlobalHandle, 0, len(names))
	for name := range names {
		if h, ok := l.globals[name]; ok {
			out = append(out, h)
		}
	}
	return out
}

func collectIdentsStmt(s Stmt, out map[string]bool) {
	switch n := s.(type) {
	case *BlockStmt:
		for _, stmt := range n.Statements {
			collectIdentsStmt(stmt, out)
		}
	case *IfStmt:
		collectIdentsExpr(n.Condition, out)
		collectIdentsStmt(n.Body, out)
		if n.Else != nil {
			collectIdentsStmt(n.Else, out)
		}
	case *ForStmt:
		if n.Init != nil {
			collectIdentsStmt(n.Init, out)
		}
		if n.Condition != nil {
			collectIdentsExpr(n.Condition, out)
		}
		if n.Update != nil {
			collectIdentsStmt(n.Update, out)
		}
		collectIdentsStmt(n.Body, out)
	case *WhileStmt:
		collectIdentsExpr(n.Condition, out)
		collectIdentsStmt(n.Body, out)
	case *LoopStmt:
		collectIdentsStmt(n.Body, out)
		if n.Continuing != nil {
			collectIdentsStmt(n.Continuing, out)
		}
	case *ReturnStmt:
		if n.Value != nil {
			collectIdentsExpr(n.Value, out)
		}
	case *AssignStmt:
		collectIdentsExpr(n.Left, out)
		collectIdentsExpr(n.Right, out)
	case *ExprStmt:
		collectIdentsExpr(n.Expr, out)
	case *VarDecl:
		if n.Init != nil {
			collectIdentsExpr(n.Init, out)
		}
	case *SwitchStmt:
		collectIdentsExpr(n.Selector, out)
		for _, c := range n.Cases {
			collectIdentsStmt(c.Body, out)
		}
	}
}

func collectIdentsExpr(e Expr, out map[string]bool) {
	switch n := e.(type) {
	case *Ident:
		out[n.Name] = true
	case *BinaryExpr:
		collectIdentsExpr(n.Left, out)
		collectIdentsExpr(n.Right, out)
	case *UnaryExpr:
		collectIdentsExpr(n.Operand, out)
	case *CallExpr:
		for _, a := range n.Args {
			collectIdentsExpr(a, out)
		}
	case *IndexExpr:
		collectIdentsExpr(n.Expr, out)
		collectIdentsExpr(n.Index, out)
	case *MemberExpr:
		collectIdentsExpr(n.Expr, out)
	case *ConstructExpr:
		for _, a := range n.Args {
			collectIdentsExpr(a, out)
		}
	case *BitcastExpr:
		collectIdentsExpr(n.Expr, out)
	}
}

func tokenToBinaryOp(k TokenKind) (ir.BinaryOperator, bool) {
	switch k {
	case TokenPlus:
		return ir.BinaryAdd, true
	case TokenMinus:
		return ir.BinarySubtract, true
	case TokenStar:
		return ir.BinaryMultiply, true
	case TokenSlash:
		return ir.BinaryDivide, true
	case TokenPercent:
		return ir.BinaryModulo, true
	case TokenEqualEqual:
		return ir.BinaryEqual, true
	case TokenBangEqual:
		return ir.BinaryNotEqual, true
	case TokenLess:
		return ir.BinaryLess, true
	case TokenLessEqual:
		return ir.BinaryLessEqual, true
	case TokenGreater:
		return ir.BinaryGreater, true
	case TokenGreaterEqual:
		return ir.BinaryGreaterEqual, true
	case TokenAmpersand:
		return ir.BinaryAnd, true
	case TokenCaret:
		return ir.BinaryExclusiveOr, true
	case TokenPipe:
		return ir.BinaryInclusiveOr, true
	case TokenAmpAmp:
		return ir.BinaryLogicalAnd, true
	case TokenPipePipe:
		return ir.BinaryLogicalOr, true
	case TokenLessLess:
		return ir.BinaryShiftLeft, true
	case TokenGreaterGreater:
		return ir.BinaryShiftRight, true
	default:
		return 0, false
	}
}

// assignOpToBinary maps a compound-assignment token (`+=`, `&=`, ...) to
// the binary operator it implies; plain `=` has no binary operator.
func assignOpToBinary(k TokenKind) (ir.BinaryOperator, bool) {
	switch k {
	case TokenPlusEqual:
		return ir.BinaryAdd, true
	case TokenMinusEqual:
		return ir.BinarySubtract, true
	case TokenStarEqual:
		return ir.BinaryMultiply, true
	case TokenSlashEqual:
		return ir.BinaryDivide, true
	case TokenPercentEqual:
		return ir.BinaryModulo, true
	case TokenAmpEqual:
		return ir.BinaryAnd, true
	case TokenPipeEqual:
		return ir.BinaryInclusiveOr, true
	case TokenCaretEqual:
		return ir.BinaryExclusiveOr, true
	case TokenLessLessEqual:
		return ir.BinaryShiftLeft, true
	case TokenGreaterGreaterEqual:
		return ir.BinaryShiftRight, true
	default:
		return 0, false
	}
}

func tokenToUnaryOp(k TokenKind) (ir.UnaryOperator, bool) {
	switch k {
	case TokenMinus:
		return ir.UnaryNegate, true
	case TokenBang:
		return ir.UnaryLogicalNot, true
	case TokenTilde:
		return ir.UnaryBitwiseNot, true
	default:
		return 0, false
	}
}

func literalToSwitchValue(lit *Literal) ir.SwitchValue {
	if strings.HasSuffix(lit.Value, "u") {
		v, _ := strconv.ParseUint(strings.TrimSuffix(lit.Value, "u"), 0, 32)
		return ir.SwitchValueU32{Value: uint32(v)}
	}
	v, _ := strconv.ParseInt(strings.TrimSuffix(lit.Value, "i"), 0, 32)
	return ir.SwitchValueI32{Value: int32(v)}
}
