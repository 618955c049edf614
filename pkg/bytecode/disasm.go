package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of decoded instructions.
func Disassemble(insns []RawInstruction) string {
	var sb strings.Builder
	writeInstructions(&sb, insns)
	return sb.String()
}

// Disassemble returns a human-readable listing of the method with a header,
// its exception table and local variables.
func (m *Method) Disassemble() string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("; === %s ===\n", m.Key()))
	sb.WriteString(fmt.Sprintf("; Flags: 0x%04X", m.AccessFlags))
	if m.AccessFlags&AccStatic != 0 {
		sb.WriteString(" [STATIC]")
	}
	if m.AccessFlags&AccAbstract != 0 {
		sb.WriteString(" [ABSTRACT]")
	}
	if m.AccessFlags&AccNative != 0 {
		sb.WriteString(" [NATIVE]")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("; Stack: %d, Locals: %d\n", m.MaxStack, m.MaxLocals))

	// Locals
	if len(m.LocalVariables) > 0 {
		sb.WriteString("; Locals:\n")
		for _, lv := range m.LocalVariables {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s %s (pc %d-%d)\n",
				lv.Slot, lv.Name, lv.Descriptor, lv.StartPC, lv.StartPC+lv.Length))
		}
	}

	// Handlers
	if len(m.ExceptionTable) > 0 {
		sb.WriteString("; Exception table:\n")
		for _, h := range m.ExceptionTable {
			catch := h.CatchType
			if catch == "" {
				catch = "any"
			}
			sb.WriteString(fmt.Sprintf(";   %04X-%04X -> %04X %s\n", h.StartPC, h.EndPC, h.HandlerPC, catch))
		}
	}
	sb.WriteString("\n")

	// Code section
	sb.WriteString("; Code:\n")
	if m.DecodeErr != nil {
		sb.WriteString(fmt.Sprintf("; %d bytes not decoded: %v\n", len(m.Code), m.DecodeErr))
	}
	writeInstructions(&sb, m.Instructions)
	return sb.String()
}

func writeInstructions(sb *strings.Builder, insns []RawInstruction) {
	for _, insn := range insns {
		if insn.Line > 0 {
			sb.WriteString(fmt.Sprintf("%04X  %-40s ; line %d\n", insn.Offset, insn.String(), insn.Line))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", insn.Offset, insn.String()))
		}
	}
}
