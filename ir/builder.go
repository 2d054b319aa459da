package ir

import "fmt"

// Builder is the only supported way to construct a Module. It wraps an
// Interner for type/constant dedup and adds the per-function, per-block
// state a lowering pass needs: the function currently being built, the
// block instructions are currently being appended to, and the bookkeeping
// to allocate new blocks and values.
//
// A Builder is not safe for concurrent use; each front-end lowers one
// module on one goroutine.
type Builder struct {
	*Interner

	fn        *Function
	fnHandle  FuncHandle
	block     *Block
	globalIdx map[GlobalHandle]int
}

// NewBuilder creates a Builder over a fresh Module.
func NewBuilder() *Builder {
	return &Builder{Interner: NewInterner(), globalIdx: make(map[GlobalHandle]int)}
}

// DefineGlobal adds a module-scope variable and returns its handle, which
// doubles as the value every instruction uses to reference it.
func (b *Builder) DefineGlobal(g GlobalVariable) GlobalHandle {
	g.ID = b.Module().AllocID()
	b.Module().defineGlobal(g)
	return g.ID
}

// BeginFunction starts a new function named name. Callers register
// arguments with AddArgument before calling CreateBlock/SetEntry, since
// argument IDs must exist before any instruction can reference them.
func (b *Builder) BeginFunction(name string, result *FunctionResult) {
	b.fn = &Function{Name: name, Result: result}
}

// AddArgument appends a parameter to the function currently being built and
// returns the ValueHandle other instructions use to reference it.
func (b *Builder) AddArgument(name string, typ TypeHandle, binding *Binding) ValueHandle {
	id := b.Module().AllocID()
	b.fn.Arguments = append(b.fn.Arguments, FunctionArgument{ID: id, Name: name, Type: typ, Binding: binding})
	return id
}

// AddLocal appends a function-scope pointer local and returns its handle.
func (b *Builder) AddLocal(name string, typ TypeHandle, init ConstantHandle) ValueHandle {
	id := b.Module().AllocID()
	b.fn.Locals = append(b.fn.Locals, LocalVariable{ID: id, Name: name, Type: typ, Init: init})
	return id
}

// CreateBlock allocates a new, empty block in the function currently being
// built and returns its handle. The caller must later call SetTerminator on
// it (directly or via SelectBlock) before the function is finished.
func (b *Builder) CreateBlock() BlockHandle {
	blk := &Block{ID: b.Module().AllocID()}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	return blk.ID
}

// SetEntry marks which block a function starts executing from.
func (b *Builder) SetEntry(entry BlockHandle) {
	b.fn.Entry = entry
}

// SelectBlock makes block the target of subsequent Emit/SetTerminator
// calls — lowering a nested `if`/`loop` means repeatedly creating blocks
// and selecting them as the cursor moves through the AST.
func (b *Builder) SelectBlock(block BlockHandle) {
	blk := b.fn.BlockByID(block)
	if blk == nil {
		panic(fmt.Sprintf("ir: SelectBlock: no such block %d in function %q", block, b.fn.Name))
	}
	b.block = blk
}

// CurrentBlock returns the block instructions are currently appended to.
func (b *Builder) CurrentBlock() BlockHandle { return b.block.ID }

// CurrentBlockTerminated reports whether the current block already has a
// terminator set, so a lowering pass can tell whether control fell off the
// end of a statement list or already branched/returned/discarded.
func (b *Builder) CurrentBlockTerminated() bool {
	return b.block.Terminator != nil
}

// Emit appends a non-terminator instruction to the current block and, if
// kind produces a value, returns the ID of that value. Callers that don't
// need the result can discard it.
func (b *Builder) Emit(kind InstructionKind) ValueHandle {
	id := b.Module().AllocID()
	b.block.Instructions = append(b.block.Instructions, Instruction{Result: id, Kind: kind})
	return id
}

// EmitVoid appends a side-effecting instruction that produces no value
// (store, barrier, image store, a merge marker).
func (b *Builder) EmitVoid(kind InstructionKind) {
	b.block.Instructions = append(b.block.Instructions, Instruction{Result: NoID, Kind: kind})
}

// SetTerminator ends the current block. A block may have its terminator
// set only once; lowering code that needs to change its mind (e.g. an `if`
// whose Accept arm turns out to fall through) should create a fresh
// continuation block instead of mutating an existing terminator.
func (b *Builder) SetTerminator(t Terminator) {
	b.block.Terminator = t
}

// FinishFunction registers the function under construction with the
// module and returns its handle. The Builder has no function selected
// afterward.
func (b *Builder) FinishFunction() FuncHandle {
	handle := b.Module().defineFunction(b.fn)
	b.fn = nil
	b.block = nil
	return handle
}

// AddEntryPoint registers fn as a pipeline entry point.
func (b *Builder) AddEntryPoint(ep EntryPoint) {
	b.Module().EntryPoints = append(b.Module().EntryPoints, ep)
}

// SetDebugName records a human-readable name for id, used by back-ends
// when Options.Debug is set (SPIR-V's OpName, or simply preserved
// identifiers in the text back-ends).
func (b *Builder) SetDebugName(id ID, name string) {
	b.Module().DebugNames[id] = name
}
