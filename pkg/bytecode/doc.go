// Package bytecode decodes JVM method code into a flat list of raw
// instructions, the input of the control-flow and stack analysis.
//
// The package is deliberately close to the class-file format:
//
//   - Opcodes: the full JVM instruction set (0x00-0xC9) with operand lengths
//     and a coarse Group used by decoders and listings
//
//   - Decode: turns a Code attribute byte array into RawInstructions,
//     handling the wide prefix, switch padding and 32-bit goto_w offsets.
//     Branch targets are converted to absolute offsets; a ConstantResolver
//     (usually the class-file reader) fills in member and class references.
//
//   - Method: analysis input bundling metadata, instructions, the exception
//     table and the LocalVariableTable.
//
//   - Assembler: a label-based emitter used by tests and tools to build code
//     arrays without computing offsets by hand.
//
// # Errors
//
// All errors wrap one of ErrMalformed, ErrContractViolation or
// ErrUnsupported. The analysis packages build their own sentinels on top of
// these categories so a caller can always tell bad input from API misuse
// from an instruction the model does not cover yet.
package bytecode
