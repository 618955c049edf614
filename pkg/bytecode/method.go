package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Method access flags used by the analysis.
const (
	AccPublic   uint16 = 0x0001
	AccPrivate  uint16 = 0x0002
	AccStatic   uint16 = 0x0008
	AccNative   uint16 = 0x0100
	AccAbstract uint16 = 0x0400
)

// MemberRef is a resolved field, method or call-site reference.
// Owner is empty for invokedynamic call sites.
type MemberRef struct {
	Owner      string
	Name       string
	Descriptor string
}

// String formats the reference as owner.name descriptor.
func (r MemberRef) String() string {
	if r.Owner == "" {
		return r.Name + r.Descriptor
	}
	return r.Owner + "." + r.Name + r.Descriptor
}

// SwitchTable holds the decoded operands of a tableswitch or lookupswitch.
// Targets are absolute bytecode offsets, parallel to Keys.
type SwitchTable struct {
	Default int
	Keys    []int32
	Targets []int
}

// RawInstruction is one decoded instruction as produced by the class-file
// reader. Branch and switch targets are absolute offsets, not indices.
type RawInstruction struct {
	Offset int    // Offset of the opcode byte in the code array
	Len    int    // Encoded length in bytes, including any wide prefix
	Opcode Opcode // The instruction (never OpWide; Wide marks the prefix)
	Wide   bool   // Preceded by a wide prefix
	Line   int    // Source line, 0 if unknown

	Slot   int          // Local variable slot (loads, stores, iinc, ret)
	Value  int32        // bipush/sipush value, iinc delta, newarray atype, invokeinterface count
	Index  uint16       // Constant pool index
	Dims   int          // multianewarray dimensions
	Target int          // Absolute branch target
	Switch *SwitchTable // Switch operands

	Member   *MemberRef // Resolved member for field access and invokes
	Class    string     // Resolved class for new/anewarray/checkcast/instanceof/multianewarray
	Constant string     // Field descriptor of an ldc constant ("I", "Ljava/lang/String;", ...)
}

// String returns a javap-like rendering of the instruction.
func (r RawInstruction) String() string {
	name := r.Opcode.String()
	switch r.Opcode.Group() {
	case GroupLocal:
		if r.Opcode == OpIinc {
			return fmt.Sprintf("%s %d %d", name, r.Slot, r.Value)
		}
		if r.Opcode.OperandLen() > 0 || r.Wide {
			return fmt.Sprintf("%s %d", name, r.Slot)
		}
		return name
	case GroupConstant:
		if r.Opcode == OpBipush || r.Opcode == OpSipush {
			return fmt.Sprintf("%s %d", name, r.Value)
		}
		if r.Constant != "" {
			return fmt.Sprintf("%s #%d ; %s", name, r.Index, r.Constant)
		}
		return fmt.Sprintf("%s #%d", name, r.Index)
	case GroupBranch, GroupSubroutine:
		if r.Opcode == OpRet {
			return fmt.Sprintf("%s %d", name, r.Slot)
		}
		return fmt.Sprintf("%s %d", name, r.Target)
	case GroupSwitch:
		return name + " " + r.Switch.String()
	case GroupMember, GroupInvoke:
		if r.Member != nil {
			return fmt.Sprintf("%s %s", name, r.Member)
		}
		return fmt.Sprintf("%s #%d", name, r.Index)
	case GroupType:
		if r.Opcode == OpNewarray {
			return fmt.Sprintf("%s %s", name, arrayTypeName(r.Value))
		}
		target := r.Class
		if target == "" {
			target = fmt.Sprintf("#%d", r.Index)
		}
		if r.Opcode == OpMultianewarray {
			return fmt.Sprintf("%s %s %d", name, target, r.Dims)
		}
		return name + " " + target
	}
	return name
}

// String renders the table as {key: target, ..., default: target}.
func (s *SwitchTable) String() string {
	if s == nil {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range s.Keys {
		sb.WriteString(fmt.Sprintf("%d: %d, ", k, s.Targets[i]))
	}
	sb.WriteString(fmt.Sprintf("default: %d}", s.Default))
	return sb.String()
}

// arrayTypeName maps a newarray atype operand to its element type name.
func arrayTypeName(atype int32) string {
	switch atype {
	case 4:
		return "boolean"
	case 5:
		return "char"
	case 6:
		return "float"
	case 7:
		return "double"
	case 8:
		return "byte"
	case 9:
		return "short"
	case 10:
		return "int"
	case 11:
		return "long"
	default:
		return fmt.Sprintf("atype(%d)", atype)
	}
}

// ExceptionHandler is one entry of a Code attribute's exception table.
// CatchType is empty for finally handlers.
type ExceptionHandler struct {
	StartPC   int
	EndPC     int
	HandlerPC int
	CatchType string
}

// LocalVariable is one LocalVariableTable entry.
type LocalVariable struct {
	Slot       int
	Name       string
	Descriptor string
	StartPC    int
	Length     int
}

// LineNumber is one LineNumberTable entry.
type LineNumber struct {
	StartPC int
	Line    int
}

// Method is the analysis input: a method's metadata and decoded code.
type Method struct {
	ClassName   string
	Name        string
	Descriptor  string
	AccessFlags uint16
	MaxStack    int
	MaxLocals   int

	Instructions   []RawInstruction
	ExceptionTable []ExceptionHandler
	LocalVariables []LocalVariable

	// Code is the raw code array when the method was read from a class
	// file. DecodeErr is set when Code could not be decoded; Instructions
	// is then empty and the rest of the class is unaffected.
	Code      []byte
	DecodeErr error
}

// IsStatic reports whether the method has no receiver.
func (m *Method) IsStatic() bool {
	return m.AccessFlags&AccStatic != 0
}

// HasCode reports whether the method carries code (not abstract or native),
// including code that failed to decode.
func (m *Method) HasCode() bool {
	return len(m.Instructions) > 0 || len(m.Code) > 0 || m.DecodeErr != nil
}

// Key identifies the method as class.name descriptor.
func (m *Method) Key() string {
	return m.ClassName + "." + m.Name + m.Descriptor
}

// ApplyLineNumbers sets Line on every instruction from a LineNumberTable.
// An instruction takes the line of the closest entry at or before its offset.
func ApplyLineNumbers(insns []RawInstruction, table []LineNumber) {
	if len(table) == 0 {
		return
	}
	sorted := make([]LineNumber, len(table))
	copy(sorted, table)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartPC < sorted[j].StartPC })

	for i := range insns {
		idx := sort.Search(len(sorted), func(k int) bool { return sorted[k].StartPC > insns[i].Offset })
		if idx > 0 {
			insns[i].Line = sorted[idx-1].Line
		}
	}
}
