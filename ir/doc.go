// Package ir defines the in-memory intermediate representation shared by
// every front-end and back-end in this module.
//
// Unlike a textual shader language, the IR has no lexical scope and no
// surface syntax: a Module is a flat pool of typed entities — types,
// constants, global variables and functions — addressed by stable 32-bit
// IDs rather than pointers. Every function body is a control-flow graph of
// basic blocks; each block holds a straight-line list of instructions and
// ends in exactly one terminator. There is no statement tree and no
// implicit fallthrough: everything a back-end needs to know about control
// flow is encoded explicitly, either in the terminator itself (branch,
// conditional branch, switch, return) or in a merge marker that names the
// block where divergent control flow reconverges.
//
// A single Builder (builder.go) is the only supported way to construct a
// Module programmatically; front-ends call it while lowering an AST, and
// validate.go checks the result before any back-end is allowed to consume
// it.
package ir
