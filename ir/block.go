package ir

// Block is one basic block: a straight-line run of instructions ending in
// exactly one Terminator. ID is the label other blocks' terminators and
// Phi incoming-edges refer to.
type Block struct {
	ID           BlockHandle
	Instructions []Instruction
	Terminator   Terminator
}

// Terminator is the closed set of ways a block can end. Every block must
// have exactly one; validate.go rejects a block with none or with a
// terminator that is not actually its last entry.
type Terminator interface {
	terminator()
}

type TermBranch struct {
	Target BlockHandle
}

func (TermBranch) terminator() {}

type TermBranchConditional struct {
	Condition   ValueHandle
	TrueTarget  BlockHandle
	FalseTarget BlockHandle
}

func (TermBranchConditional) terminator() {}

// SwitchValue is either a literal i32/u32 case label or the default arm.
type SwitchValue interface {
	switchValue()
}

type SwitchValueI32 struct{ Value int32 }

func (SwitchValueI32) switchValue() {}

type SwitchValueU32 struct{ Value uint32 }

func (SwitchValueU32) switchValue() {}

// SwitchCase pairs a label with the block control transfers to when the
// selector matches it. FallThrough records whether, in the source
// language, this case fell into the next one (WGSL/GLSL switches don't
// fall through by default) — back-ends that can't express fallthrough
// directly use it to decide whether to duplicate the body instead.
type SwitchCase struct {
	Value       SwitchValue
	Target      BlockHandle
	FallThrough bool
}

type TermSwitch struct {
	Selector ValueHandle
	Cases    []SwitchCase
	Default  BlockHandle
}

func (TermSwitch) terminator() {}

type TermReturnValue struct {
	Value ValueHandle
}

func (TermReturnValue) terminator() {}

type TermReturnVoid struct{}

func (TermReturnVoid) terminator() {}

// TermUnreachable marks a block control can never actually reach at
// runtime — the block following a `discard`, or a switch arm the front-end
// proved dead. Back-ends lower it to whatever "this point is unreachable"
// instruction their target has (SPIR-V's OpUnreachable).
type TermUnreachable struct{}

func (TermUnreachable) terminator() {}

// TermKill is a fragment-shader `discard`: the invocation terminates and
// produces no output. Distinct from TermUnreachable, which asserts control
// never arrives rather than ending it.
type TermKill struct{}

func (TermKill) terminator() {}
