package ir

import "fmt"

// ValidationError describes one way a Module fails to satisfy the IR's
// invariants. Validate collects every error it finds rather than stopping
// at the first, so a single bad shader reports its whole rap sheet in one
// pass instead of one compile-fix-recompile cycle per mistake.
type ValidationError struct {
	Message  string
	Function string
	Block    BlockHandle
	Value    ID
}

func (e ValidationError) Error() string {
	switch {
	case e.Function != "" && e.Block != NoID:
		return fmt.Sprintf("function %q, block %d: %s", e.Function, e.Block, e.Message)
	case e.Function != "":
		return fmt.Sprintf("function %q: %s", e.Function, e.Message)
	default:
		return e.Message
	}
}

type validator struct {
	module *Module
	errors []ValidationError

	fn        *Function
	predOf    map[BlockHandle][]BlockHandle
	blockByID map[BlockHandle]*Block
}

// Validate checks every invariant this package's types are meant to
// uphold: handle references point at real entities, every block ends in
// exactly one well-placed terminator, merge markers and Phi instructions
// appear where a consuming back-end requires them, and entry points
// satisfy their stage's contract. It never mutates module.
func Validate(module *Module) ([]ValidationError, error) {
	v := &validator{module: module}
	v.validateTypes()
	v.validateConstants()
	v.validateGlobals()
	for _, fn := range module.Functions() {
		v.validateFunction(fn)
	}
	v.validateEntryPoints()
	if len(v.errors) > 0 {
		return v.errors, fmt.Errorf("ir: module has %d validation error(s)", len(v.errors))
	}
	return nil, nil
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, ValidationError{Message: fmt.Sprintf(format, args...)})
}

func (v *validator) addFnError(format string, args ...any) {
	name := ""
	if v.fn != nil {
		name = v.fn.Name
	}
	v.errors = append(v.errors, ValidationError{Function: name, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) addBlockError(block BlockHandle, format string, args ...any) {
	name := ""
	if v.fn != nil {
		name = v.fn.Name
	}
	v.errors = append(v.errors, ValidationError{Function: name, Block: block, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) isValidType(h TypeHandle) bool {
	_, ok := v.module.Type(h)
	return ok
}

func (v *validator) isValidConstant(h ConstantHandle) bool {
	_, ok := v.module.Constant(h)
	return ok
}

func (v *validator) isValidGlobal(h GlobalHandle) bool {
	_, ok := v.module.Global(h)
	return ok
}

func (v *validator) isValidFunction(h FuncHandle) bool {
	_, ok := v.module.Function(h)
	return ok
}

func (v *validator) validateTypes() {
	for _, t := range v.module.Types() {
		switch inner := t.Inner.(type) {
		case PointerType:
			if !v.isValidType(inner.Base) {
				v.addError("type %q: pointer base type %d does not exist", t.Name, inner.Base)
			}
		case ArrayType:
			if !v.isValidType(inner.Base) {
				v.addError("type %q: array element type %d does not exist", t.Name, inner.Base)
			}
		case StructType:
			seen := make(map[string]bool)
			for _, m := range inner.Members {
				if m.Name != "" {
					if seen[m.Name] {
						v.addError("struct %q: duplicate member %q", t.Name, m.Name)
					}
					seen[m.Name] = true
				}
				if !v.isValidType(m.Type) {
					v.addError("struct %q: member %q has invalid type %d", t.Name, m.Name, m.Type)
				}
			}
		}
	}
}

func (v *validator) validateConstants() {
	for _, c := range v.module.Constants() {
		if !v.isValidType(c.Type) {
			v.addError("constant %q: invalid type %d", c.Name, c.Type)
			continue
		}
		if comp, ok := c.Value.(CompositeValue); ok {
			for _, ch := range comp.Components {
				if !v.isValidConstant(ch) {
					v.addError("constant %q: composite component %d does not exist", c.Name, ch)
				}
			}
		}
	}
}

func (v *validator) validateGlobals() {
	seenBinding := make(map[ResourceBinding]string)
	for _, g := range v.module.Globals() {
		if !v.isValidType(g.Type) {
			v.addError("global %q: invalid type %d", g.Name, g.Type)
		}
		if g.Init != NoID && !v.isValidConstant(g.Init) {
			v.addError("global %q: invalid initializer constant %d", g.Name, g.Init)
		}
		if g.Binding != nil {
			if owner, dup := seenBinding[*g.Binding]; dup {
				v.addError("global %q: binding (group=%d, binding=%d) already used by %q",
					g.Name, g.Binding.Group, g.Binding.Binding, owner)
			} else {
				seenBinding[*g.Binding] = g.Name
			}
		}
	}
}

func (v *validator) validateFunction(fn *Function) {
	v.fn = fn
	defer func() { v.fn = nil }()

	if len(fn.Blocks) == 0 {
		v.addFnError("function has no blocks")
		return
	}

	v.blockByID = make(map[BlockHandle]*Block, len(fn.Blocks))
	for _, blk := range fn.Blocks {
		if _, dup := v.blockByID[blk.ID]; dup {
			v.addFnError("duplicate block id %d", blk.ID)
			continue
		}
		v.blockByID[blk.ID] = blk
	}

	if _, ok := v.blockByID[fn.Entry]; !ok {
		v.addFnError("entry block %d does not exist", fn.Entry)
	}

	argIDs := make(map[ValueHandle]bool, len(fn.Arguments))
	for _, a := range fn.Arguments {
		if !v.isValidType(a.Type) {
			v.addFnError("argument %q: invalid type %d", a.Name, a.Type)
		}
		argIDs[a.ID] = true
	}
	for _, l := range fn.Locals {
		if !v.isValidType(l.Type) {
			v.addFnError("local %q: invalid type %d", l.Name, l.Type)
		}
	}
	if fn.Result != nil && !v.isValidType(fn.Result.Type) {
		v.addFnError("result: invalid type %d", fn.Result.Type)
	}

	v.predOf = computePredecessors(fn)

	for _, blk := range fn.Blocks {
		v.validateBlock(blk)
	}
}

func computePredecessors(fn *Function) map[BlockHandle][]BlockHandle {
	preds := make(map[BlockHandle][]BlockHandle)
	for _, blk := range fn.Blocks {
		for _, target := range terminatorTargets(blk.Terminator) {
			preds[target] = append(preds[target], blk.ID)
		}
	}
	return preds
}

func terminatorTargets(t Terminator) []BlockHandle {
	switch term := t.(type) {
	case TermBranch:
		return []BlockHandle{term.Target}
	case TermBranchConditional:
		return []BlockHandle{term.TrueTarget, term.FalseTarget}
	case TermSwitch:
		targets := make([]BlockHandle, 0, len(term.Cases)+1)
		for _, c := range term.Cases {
			targets = append(targets, c.Target)
		}
		if term.Default != NoID {
			targets = append(targets, term.Default)
		}
		return targets
	default:
		return nil
	}
}

func (v *validator) validateBlock(blk *Block) {
	if blk.Terminator == nil {
		v.addBlockError(blk.ID, "block has no terminator")
		return
	}

	// Phi instructions must form a contiguous run at the block's head.
	seenNonPhi := false
	for i, inst := range blk.Instructions {
		_, isPhi := inst.Kind.(InstPhi)
		if isPhi && seenNonPhi {
			v.addBlockError(blk.ID, "phi at position %d follows a non-phi instruction", i)
		}
		if !isPhi {
			seenNonPhi = true
		}
	}

	// A selection/loop merge marker, if present, must be the last
	// instruction before the terminator, and must match the terminator
	// kind it decorates.
	for i, inst := range blk.Instructions {
		last := i == len(blk.Instructions)-1
		switch inst.Kind.(type) {
		case InstSelectionMerge:
			if !last {
				v.addBlockError(blk.ID, "selection merge must immediately precede the terminator")
			}
			switch blk.Terminator.(type) {
			case TermBranchConditional, TermSwitch:
			default:
				v.addBlockError(blk.ID, "selection merge present but terminator is not a conditional branch or switch")
			}
		case InstLoopMerge:
			if !last {
				v.addBlockError(blk.ID, "loop merge must immediately precede the terminator")
			}
			switch blk.Terminator.(type) {
			case TermBranch, TermBranchConditional:
			default:
				v.addBlockError(blk.ID, "loop merge present but terminator does not branch")
			}
		}
	}

	for _, inst := range blk.Instructions {
		if phi, ok := inst.Kind.(InstPhi); ok {
			v.validatePhi(blk, phi)
		}
	}

	v.validateTerminator(blk)
}

func (v *validator) validatePhi(blk *Block, phi InstPhi) {
	if !v.isValidType(phi.Type) {
		v.addBlockError(blk.ID, "phi: invalid type %d", phi.Type)
	}
	expected := make(map[BlockHandle]bool)
	for _, p := range v.predOf[blk.ID] {
		expected[p] = true
	}
	seen := make(map[BlockHandle]bool)
	for _, inc := range phi.Incoming {
		if !expected[inc.Predecessor] {
			v.addBlockError(blk.ID, "phi: block %d is not a predecessor of this block", inc.Predecessor)
		}
		seen[inc.Predecessor] = true
	}
	for p := range expected {
		if !seen[p] {
			v.addBlockError(blk.ID, "phi: missing incoming value for predecessor %d", p)
		}
	}
}

func (v *validator) validateTerminator(blk *Block) {
	switch t := blk.Terminator.(type) {
	case TermBranch:
		if _, ok := v.blockByID[t.Target]; !ok {
			v.addBlockError(blk.ID, "branch target %d does not exist", t.Target)
		}
	case TermBranchConditional:
		if _, ok := v.blockByID[t.TrueTarget]; !ok {
			v.addBlockError(blk.ID, "branch-conditional true target %d does not exist", t.TrueTarget)
		}
		if _, ok := v.blockByID[t.FalseTarget]; !ok {
			v.addBlockError(blk.ID, "branch-conditional false target %d does not exist", t.FalseTarget)
		}
	case TermSwitch:
		if t.Default != NoID {
			if _, ok := v.blockByID[t.Default]; !ok {
				v.addBlockError(blk.ID, "switch default %d does not exist", t.Default)
			}
		} else {
			v.addBlockError(blk.ID, "switch has no default case")
		}
		for _, c := range t.Cases {
			if _, ok := v.blockByID[c.Target]; !ok {
				v.addBlockError(blk.ID, "switch case target %d does not exist", c.Target)
			}
		}
	case TermReturnValue:
		if v.fn.Result == nil {
			v.addBlockError(blk.ID, "return with value in a function that returns nothing")
		}
	case TermReturnVoid:
		if v.fn.Result != nil {
			v.addBlockError(blk.ID, "return with no value in a function that returns a value")
		}
	case TermUnreachable, TermKill:
		// always structurally valid
	default:
		v.addBlockError(blk.ID, "unknown terminator kind %T", t)
	}
}

func (v *validator) validateEntryPoints() {
	seen := make(map[string]bool)
	for _, ep := range v.module.EntryPoints {
		if seen[ep.Name] {
			v.addError("entry point %q declared more than once", ep.Name)
		}
		seen[ep.Name] = true

		fn, ok := v.module.Function(ep.Function)
		if !ok {
			v.addError("entry point %q: function %d does not exist", ep.Name, ep.Function)
			continue
		}

		switch ep.Stage {
		case StageVertex:
			if !resultHasPositionBuiltin(v.module, fn) {
				v.addError("entry point %q: vertex stage must return @builtin(position)", ep.Name)
			}
		case StageCompute:
			if ep.Workgroup[0] == 0 || ep.Workgroup[1] == 0 || ep.Workgroup[2] == 0 {
				v.addError("entry point %q: compute stage must declare a nonzero workgroup size on every axis", ep.Name)
			}
		}

		for _, g := range ep.Interface {
			if !v.isValidGlobal(g) {
				v.addError("entry point %q: interface references invalid global %d", ep.Name, g)
			}
		}
	}
}

func resultHasPositionBuiltin(module *Module, fn *Function) bool {
	if fn.Result == nil {
		return false
	}
	if fn.Result.Binding != nil {
		if b, ok := (*fn.Result.Binding).(BuiltinBinding); ok && b.Builtin == BuiltinPosition {
			return true
		}
	}
	t, ok := module.Type(fn.Result.Type)
	if !ok {
		return false
	}
	st, ok := t.Inner.(StructType)
	if !ok {
		return false
	}
	for _, m := range st.Members {
		if m.Binding != nil {
			if b, ok := (*m.Binding).(BuiltinBinding); ok && b.Builtin == BuiltinPosition {
				return true
			}
		}
	}
	return false
}
