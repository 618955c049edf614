// Package frame is the type-level model of the JVM operand stack.
//
// A TypeSet is the set of verification kinds a value may have. A TypeStack
// is the stack at a program point and a Layout is a stack shape made of
// placeholders. A Manipulation is the transfer function of a single
// instruction over both.
//
// Two implementations exist. StaticManipulation covers every instruction
// with a fixed effect. ShapeManipulation covers POP, POP2, DUP, DUP_X1,
// DUP_X2, DUP2, DUP2_X1, DUP2_X2 and SWAP, whose effect depends on the
// categories of the values they touch: its TypeStack methods fail with
// ErrStackDependent when those categories are unknown, while its Layout
// methods always fall back to the instruction's minimal form.
//
// All values in this package are immutable and safe for concurrent use.
package frame
