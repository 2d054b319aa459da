package wgsl

import "github.com/shaderlab/ssair/ir"

// lowerBlock lowers every statement in blk into the builder's current
// block, stopping early if a statement already terminated it (a nested
// if/loop/return/discard). Trailing dead statements after that point are
// simply not reachable and are skipped, matching how a structured-control
// compiler treats code after an unconditional jump.
func (l *Lowerer) lowerBlock(blk *BlockStmt) {
	for _, stmt := range blk.Statements {
		if l.builder.CurrentBlockTerminated() {
			return
		}
		l.lowerStatement(stmt)
	}
}

func (l *Lowerer) lowerStatement(stmt Stmt) {
	switch s := stmt.(type) {
	case *BlockStmt:
		l.lowerBlock(s)
	case *ReturnStmt:
		l.lowerReturn(s)
	case *IfStmt:
		l.lowerIf(s)
	case *ForStmt:
		l.lowerFor(s)
	case *WhileStmt:
		l.lowerWhile(s)
	case *LoopStmt:
		l.lowerLoop(s)
	case *SwitchStmt:
		l.lowerSwitch(s)
	case *BreakStmt:
		l.lowerBreak(s)
	case *ContinueStmt:
		l.lowerContinue(s)
	case *DiscardStmt:
		l.builder.SetTerminator(ir.TermKill{})
	case *VarDecl:
		l.lowerLocalVar(s)
	case *ConstDecl:
		l.lowerLocalConst(s)
	case *AssignStmt:
		l.lowerAssign(s)
	case *ExprStmt:
		l.lowerExpression(s.Expr)
	default:
		l.errf(stmt.Pos(), "unsupported statement %T", stmt)
	}
}

func (l *Lowerer) lowerReturn(s *ReturnStmt) {
	if s.Value == nil {
		l.builder.SetTerminator(ir.TermReturnVoid{})
		return
	}
	v := l.lowerExpression(s.Value)
	l.builder.SetTerminator(ir.TermReturnValue{Value: v})
}

func (l *Lowerer) lowerBreak(s *BreakStmt) {
	if len(l.loopStack) == 0 {
		l.errf(s.Span, "break outside of a loop")
		return
	}
	ctx := l.loopStack[len(l.loopStack)-1]
	l.builder.SetTerminator(ir.TermBranch{Target: ctx.breakTarget})
}

func (l *Lowerer) lowerContinue(s *ContinueStmt) {
	if len(l.loopStack) == 0 {
		l.errf(s.Span, "continue outside of a loop")
		return
	}
	ctx := l.loopStack[len(l.loopStack)-1]
	l.builder.SetTerminator(ir.TermBranch{Target: ctx.continueTarget})
}

// lowerIf lowers `if cond { accept } else { reject }` to a header block
// ending in InstSelectionMerge + BranchConditional, with the accept/reject
// arms each branching to a shared merge block unless they already
// terminated themselves (a nested return/break/discard).
func (l *Lowerer) lowerIf(s *IfStmt) {
	cond := l.lowerExpression(s.Condition)

	acceptBlk := l.builder.CreateBlock()
	rejectBlk := l.builder.CreateBlock()
	mergeBlk := l.builder.CreateBlock()

	l.builder.EmitVoid(ir.InstSelectionMerge{Merge: mergeBlk})
	l.builder.SetTerminator(ir.TermBranchConditional{Condition: cond, TrueTarget: acceptBlk, FalseTarget: rejectBlk})

	l.builder.SelectBlock(acceptBlk)
	l.lowerStatement(s.Body)
	if !l.builder.CurrentBlockTerminated() {
		l.builder.SetTerminator(ir.TermBranch{Target: mergeBlk})
	}

	l.builder.SelectBlock(rejectBlk)
	if s.Else != nil {
		l.lowerStatement(s.Else)
	}
	if !l.builder.CurrentBlockTerminated() {
		l.builder.SetTerminator(ir.TermBranch{Target: mergeBlk})
	}

	l.builder.SelectBlock(mergeBlk)
}

// lowerLoop lowers the primitive `loop { body continuing { ... } }` form
// every other loop statement desugars to. The header block carries the
// InstLoopMerge marker naming both the merge block (where `break` goes)
// and the continuing block (where `continue` goes); the continuing block's
// own terminator is the loop's back edge, optionally guarded by
// `break if`.
func (l *Lowerer) lowerLoop(s *LoopStmt) {
	header := l.builder.CreateBlock()
	body := l.builder.CreateBlock()
	continuing := l.builder.CreateBlock()
	merge := l.builder.CreateBlock()

	if !l.builder.CurrentBlockTerminated() {
		l.builder.SetTerminator(ir.TermBranch{Target: header})
	}

	l.builder.SelectBlock(header)
	l.builder.EmitVoid(ir.InstLoopMerge{Merge: merge, Continue: continuing})
	l.builder.SetTerminator(ir.TermBranch{Target: body})

	l.loopStack = append(l.loopStack, loopContext{breakTarget: merge, continueTarget: continuing})

	l.builder.SelectBlock(body)
	l.lowerBlock(s.Body)
	if !l.builder.CurrentBlockTerminated() {
		l.builder.SetTerminator(ir.TermBranch{Target: continuing})
	}

	l.builder.SelectBlock(continuing)
	if s.Continuing != nil {
		l.lowerBlock(s.Continuing)
	}
	if !l.builder.CurrentBlockTerminated() {
		l.builder.SetTerminator(ir.TermBranch{Target: header})
	}

	l.loopStack = l.loopStack[:len(l.loopStack)-1]

	l.builder.SelectBlock(merge)
}

// lowerWhile desugars `while cond { body }` to
// `loop { if !cond { break } body }`.
func (l *Lowerer) lowerWhile(s *WhileStmt) {
	l.lowerLoop(&LoopStmt{
		Span: s.Span,
		Body: &BlockStmt{
			Span: s.Body.Span,
			Statements: []Stmt{
				&IfStmt{
					Span:      s.Condition.Pos(),
					Condition: &UnaryExpr{Op: TokenBang, Operand: s.Condition, Span: s.Condition.Pos()},
					Body:      &BlockStmt{Statements: []Stmt{&BreakStmt{Span: s.Span}}},
				},
				s.Body,
			},
		},
	})
}

// lowerFor desugars `for (init; cond; update) { body }` to
// `{ init loop { if !cond { break } body continuing { update } } }`.
func (l *Lowerer) lowerFor(s *ForStmt) {
	if s.Init != nil {
		l.lowerStatement(s.Init)
		if l.builder.CurrentBlockTerminated() {
			return
		}
	}
	loop := &LoopStmt{Span: s.Span, Body: s.Body}
	if s.Condition != nil {
		loop.Body = &BlockStmt{
			Span: s.Body.Span,
			Statements: append([]Stmt{&IfStmt{
				Span:      s.Condition.Pos(),
				Condition: &UnaryExpr{Op: TokenBang, Operand: s.Condition, Span: s.Condition.Pos()},
				Body:      &BlockStmt{Statements: []Stmt{&BreakStmt{Span: s.Span}}},
			}}, s.Body.Statements...),
		}
	}
	if s.Update != nil {
		loop.Continuing = &BlockStmt{Statements: []Stmt{s.Update}}
	}
	l.lowerLoop(loop)
}

// lowerSwitch lowers a WGSL switch to a TermSwitch terminator plus one
// block per case. A `fallthrough`-shaped WGSL switch (clauses whose bodies
// are empty and share the next clause's body) is represented by routing
// that case's target directly to the next case's block instead of to the
// merge block.
func (l *Lowerer) lowerSwitch(s *SwitchStmt) {
	selector := l.lowerExpression(s.Selector)
	merge := l.builder.CreateBlock()

	type caseBlock struct {
		clause *SwitchCaseClause
		block  ir.BlockHandle
	}
	blocks := make([]caseBlock, len(s.Cases))
	for i, c := range s.Cases {
		blocks[i] = caseBlock{clause: c, block: l.builder.CreateBlock()}
	}

	cases := make([]ir.SwitchCase, 0, len(s.Cases))
	defaultTarget := merge
	for i, cb := range blocks {
		if cb.clause.IsDefault {
			defaultTarget = cb.block
			continue
		}
		for _, sel := range cb.clause.Selectors {
			lit, ok := sel.(*Literal)
			if !ok {
				l.errf(sel.Pos(), "switch case selector must be a literal")
				continue
			}
			_ = i
			cases = append(cases, ir.SwitchCase{Value: literalToSwitchValue(lit), Target: cb.block})
		}
	}
	l.builder.SetTerminator(ir.TermSwitch{Selector: selector, Cases: cases, Default: defaultTarget})

	for i, cb := range blocks {
		l.builder.SelectBlock(cb.block)
		l.lowerBlock(cb.clause.Body)
		if l.builder.CurrentBlockTerminated() {
			continue
		}
		if i+1 < len(blocks) {
			l.builder.SetTerminator(ir.TermBranch{Target: blocks[i+1].block})
		} else {
			l.builder.SetTerminator(ir.TermBranch{Target: merge})
		}
	}

	l.builder.SelectBlock(merge)
}

func (l *Lowerer) lowerLocalVar(s *VarDecl) {
	typ, err := l.resolveType(s.Type)
	if err != nil {
		l.errf(s.Span, "local %q: %v", s.Name, err)
		return
	}
	ptrType := l.builder.InternType("", ir.PointerType{Base: typ, Space: ir.SpaceFunction})
	handle := l.builder.AddLocal(s.Name, typ, ir.NoID)
	l.locals[s.Name] = localInfo{handle: handle, typ: ptrType, isPtr: true}
	l.declSpans[s.Name] = s.Span
	l.builder.SetDebugName(handle, s.Name)

	if s.Init != nil {
		v := l.lowerExpression(s.Init)
		l.builder.EmitVoid(ir.InstStore{Pointer: handle, Value: v})
	}
}

// lowerLocalConst handles a `let`/`const` statement local to a function
// body: unlike a `var`, it's an ordinary SSA value with no backing pointer.
func (l *Lowerer) lowerLocalConst(s *ConstDecl) {
	v := l.lowerExpression(s.Init)
	typ := l.valueType(v)
	l.locals[s.Name] = localInfo{handle: v, typ: typ, isPtr: false}
	l.declSpans[s.Name] = s.Span
	l.builder.SetDebugName(v, s.Name)
}

func (l *Lowerer) lowerAssign(s *AssignStmt) {
	ptr, err := l.lowerLValue(s.Left)
	if err != nil {
		l.errf(s.Span, "%v", err)
		return
	}
	value := l.lowerExpression(s.Right)
	if s.Op != TokenEqual {
		op, ok := assignOpToBinary(s.Op)
		if !ok {
			l.errf(s.Span, "unsupported compound assignment operator")
			return
		}
		current := l.builder.Emit(ir.InstLoad{Pointer: ptr})
		value = l.builder.Emit(ir.InstBinary{Op: op, Left: current, Right: value})
	}
	l.builder.EmitVoid(ir.InstStore{Pointer: ptr, Value: value})
}
