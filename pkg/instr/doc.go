// Package instr models JVM instructions for control-flow and stack analysis.
//
// An Instruction is a tagged variant: a Kind plus the common Meta record.
// Behaviour per Kind comes from a capability table, and fixed stack
// contracts come from per-opcode tables, so comparison jumps, conversions
// and arithmetic are data rather than code.
//
// Jumps and switches are created as Unresolved placeholders. Their targets
// are bytecode offsets, which only map to instruction indices once the whole
// method has been scanned. SetDestination and SetDestinations return a new,
// resolved Instruction; the caller replaces the placeholder by index.
//
// VariableTable records which types each local slot holds over the method,
// so loads can push the declared type of their slot.
package instr
