// Package cfg builds the control-flow graph of a JVM method.
//
// Build turns a bytecode.Method into basic blocks connected by edges derived
// from the last instruction of each block. Every instruction belongs to
// exactly one block, and every edge ends at a block entry or at
// instr.MethodExit.
//
// Stack transfer functions hang off the graph in two places. A block's
// BlockManipulation holds the transitions between its consecutive
// instructions and is computed lazily. Each Edge carries the transition of
// the block's last instruction towards that successor.
package cfg
