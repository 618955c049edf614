package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Opcode represents a JVM bytecode instruction.
// Opcodes are organized into ranges by category, mirroring the JVM
// specification's numbering.
type Opcode byte

const (
	// ========================================================================
	// Constants (0x00-0x14)
	// ========================================================================

	OpNop        Opcode = 0x00 // No operation
	OpAconstNull Opcode = 0x01 // Push null
	OpIconstM1   Opcode = 0x02 // Push int -1
	OpIconst0    Opcode = 0x03 // Push int 0
	OpIconst1    Opcode = 0x04 // Push int 1
	OpIconst2    Opcode = 0x05 // Push int 2
	OpIconst3    Opcode = 0x06 // Push int 3
	OpIconst4    Opcode = 0x07 // Push int 4
	OpIconst5    Opcode = 0x08 // Push int 5
	OpLconst0    Opcode = 0x09 // Push long 0
	OpLconst1    Opcode = 0x0A // Push long 1
	OpFconst0    Opcode = 0x0B // Push float 0
	OpFconst1    Opcode = 0x0C // Push float 1
	OpFconst2    Opcode = 0x0D // Push float 2
	OpDconst0    Opcode = 0x0E // Push double 0
	OpDconst1    Opcode = 0x0F // Push double 1
	OpBipush     Opcode = 0x10 // Push byte: OpBipush <value:i8>
	OpSipush     Opcode = 0x11 // Push short: OpSipush <value:i16>
	OpLdc        Opcode = 0x12 // Push constant: OpLdc <index:u8>
	OpLdcW       Opcode = 0x13 // Push constant: OpLdcW <index:u16>
	OpLdc2W      Opcode = 0x14 // Push long/double constant: OpLdc2W <index:u16>

	// ========================================================================
	// Loads (0x15-0x35)
	// ========================================================================

	OpIload  Opcode = 0x15 // Push int local: OpIload <slot:u8>
	OpLload  Opcode = 0x16 // Push long local
	OpFload  Opcode = 0x17 // Push float local
	OpDload  Opcode = 0x18 // Push double local
	OpAload  Opcode = 0x19 // Push reference local
	OpIload0 Opcode = 0x1A
	OpIload1 Opcode = 0x1B
	OpIload2 Opcode = 0x1C
	OpIload3 Opcode = 0x1D
	OpLload0 Opcode = 0x1E
	OpLload1 Opcode = 0x1F
	OpLload2 Opcode = 0x20
	OpLload3 Opcode = 0x21
	OpFload0 Opcode = 0x22
	OpFload1 Opcode = 0x23
	OpFload2 Opcode = 0x24
	OpFload3 Opcode = 0x25
	OpDload0 Opcode = 0x26
	OpDload1 Opcode = 0x27
	OpDload2 Opcode = 0x28
	OpDload3 Opcode = 0x29
	OpAload0 Opcode = 0x2A
	OpAload1 Opcode = 0x2B
	OpAload2 Opcode = 0x2C
	OpAload3 Opcode = 0x2D
	OpIaload Opcode = 0x2E // arrayref index -> int
	OpLaload Opcode = 0x2F
	OpFaload Opcode = 0x30
	OpDaload Opcode = 0x31
	OpAaload Opcode = 0x32
	OpBaload Opcode = 0x33
	OpCaload Opcode = 0x34
	OpSaload Opcode = 0x35

	// ========================================================================
	// Stores (0x36-0x56)
	// ========================================================================

	OpIstore  Opcode = 0x36 // Pop int into local: OpIstore <slot:u8>
	OpLstore  Opcode = 0x37
	OpFstore  Opcode = 0x38
	OpDstore  Opcode = 0x39
	OpAstore  Opcode = 0x3A
	OpIstore0 Opcode = 0x3B
	OpIstore1 Opcode = 0x3C
	OpIstore2 Opcode = 0x3D
	OpIstore3 Opcode = 0x3E
	OpLstore0 Opcode = 0x3F
	OpLstore1 Opcode = 0x40
	OpLstore2 Opcode = 0x41
	OpLstore3 Opcode = 0x42
	OpFstore0 Opcode = 0x43
	OpFstore1 Opcode = 0x44
	OpFstore2 Opcode = 0x45
	OpFstore3 Opcode = 0x46
	OpDstore0 Opcode = 0x47
	OpDstore1 Opcode = 0x48
	OpDstore2 Opcode = 0x49
	OpDstore3 Opcode = 0x4A
	OpAstore0 Opcode = 0x4B
	OpAstore1 Opcode = 0x4C
	OpAstore2 Opcode = 0x4D
	OpAstore3 Opcode = 0x4E
	OpIastore Opcode = 0x4F // arrayref index value ->
	OpLastore Opcode = 0x50
	OpFastore Opcode = 0x51
	OpDastore Opcode = 0x52
	OpAastore Opcode = 0x53
	OpBastore Opcode = 0x54
	OpCastore Opcode = 0x55
	OpSastore Opcode = 0x56

	// ========================================================================
	// Stack manipulation (0x57-0x5F)
	// ========================================================================

	OpPop    Opcode = 0x57
	OpPop2   Opcode = 0x58
	OpDup    Opcode = 0x59
	OpDupX1  Opcode = 0x5A
	OpDupX2  Opcode = 0x5B
	OpDup2   Opcode = 0x5C
	OpDup2X1 Opcode = 0x5D
	OpDup2X2 Opcode = 0x5E
	OpSwap   Opcode = 0x5F

	// ========================================================================
	// Arithmetic and logic (0x60-0x84)
	// ========================================================================

	OpIadd  Opcode = 0x60
	OpLadd  Opcode = 0x61
	OpFadd  Opcode = 0x62
	OpDadd  Opcode = 0x63
	OpIsub  Opcode = 0x64
	OpLsub  Opcode = 0x65
	OpFsub  Opcode = 0x66
	OpDsub  Opcode = 0x67
	OpImul  Opcode = 0x68
	OpLmul  Opcode = 0x69
	OpFmul  Opcode = 0x6A
	OpDmul  Opcode = 0x6B
	OpIdiv  Opcode = 0x6C
	OpLdiv  Opcode = 0x6D
	OpFdiv  Opcode = 0x6E
	OpDdiv  Opcode = 0x6F
	OpIrem  Opcode = 0x70
	OpLrem  Opcode = 0x71
	OpFrem  Opcode = 0x72
	OpDrem  Opcode = 0x73
	OpIneg  Opcode = 0x74
	OpLneg  Opcode = 0x75
	OpFneg  Opcode = 0x76
	OpDneg  Opcode = 0x77
	OpIshl  Opcode = 0x78
	OpLshl  Opcode = 0x79
	OpIshr  Opcode = 0x7A
	OpLshr  Opcode = 0x7B
	OpIushr Opcode = 0x7C
	OpLushr Opcode = 0x7D
	OpIand  Opcode = 0x7E
	OpLand  Opcode = 0x7F
	OpIor   Opcode = 0x80
	OpLor   Opcode = 0x81
	OpIxor  Opcode = 0x82
	OpLxor  Opcode = 0x83
	OpIinc  Opcode = 0x84 // Increment local: OpIinc <slot:u8> <delta:i8>

	// ========================================================================
	// Conversions (0x85-0x93)
	// ========================================================================

	OpI2l Opcode = 0x85
	OpI2f Opcode = 0x86
	OpI2d Opcode = 0x87
	OpL2i Opcode = 0x88
	OpL2f Opcode = 0x89
	OpL2d Opcode = 0x8A
	OpF2i Opcode = 0x8B
	OpF2l Opcode = 0x8C
	OpF2d Opcode = 0x8D
	OpD2i Opcode = 0x8E
	OpD2l Opcode = 0x8F
	OpD2f Opcode = 0x90
	OpI2b Opcode = 0x91
	OpI2c Opcode = 0x92
	OpI2s Opcode = 0x93

	// ========================================================================
	// Comparisons (0x94-0xA6)
	// ========================================================================

	OpLcmp     Opcode = 0x94
	OpFcmpl    Opcode = 0x95
	OpFcmpg    Opcode = 0x96
	OpDcmpl    Opcode = 0x97
	OpDcmpg    Opcode = 0x98
	OpIfeq     Opcode = 0x99 // Jump if int == 0: OpIfeq <offset:i16>
	OpIfne     Opcode = 0x9A
	OpIflt     Opcode = 0x9B
	OpIfge     Opcode = 0x9C
	OpIfgt     Opcode = 0x9D
	OpIfle     Opcode = 0x9E
	OpIfIcmpeq Opcode = 0x9F // Jump if int1 == int2: OpIfIcmpeq <offset:i16>
	OpIfIcmpne Opcode = 0xA0
	OpIfIcmplt Opcode = 0xA1
	OpIfIcmpge Opcode = 0xA2
	OpIfIcmpgt Opcode = 0xA3
	OpIfIcmple Opcode = 0xA4
	OpIfAcmpeq Opcode = 0xA5
	OpIfAcmpne Opcode = 0xA6

	// ========================================================================
	// Control (0xA7-0xB1)
	// ========================================================================

	OpGoto         Opcode = 0xA7 // Unconditional jump: OpGoto <offset:i16>
	OpJsr          Opcode = 0xA8 // Jump to subroutine (obsolete)
	OpRet          Opcode = 0xA9 // Return from subroutine (obsolete)
	OpTableswitch  Opcode = 0xAA // Dense switch, 4-byte aligned table
	OpLookupswitch Opcode = 0xAB // Sparse switch, 4-byte aligned pairs
	OpIreturn      Opcode = 0xAC
	OpLreturn      Opcode = 0xAD
	OpFreturn      Opcode = 0xAE
	OpDreturn      Opcode = 0xAF
	OpAreturn      Opcode = 0xB0
	OpReturn       Opcode = 0xB1

	// ========================================================================
	// References (0xB2-0xC3)
	// ========================================================================

	OpGetstatic       Opcode = 0xB2 // OpGetstatic <field:u16>
	OpPutstatic       Opcode = 0xB3
	OpGetfield        Opcode = 0xB4
	OpPutfield        Opcode = 0xB5
	OpInvokevirtual   Opcode = 0xB6 // OpInvokevirtual <method:u16>
	OpInvokespecial   Opcode = 0xB7
	OpInvokestatic    Opcode = 0xB8
	OpInvokeinterface Opcode = 0xB9 // OpInvokeinterface <method:u16> <count:u8> <0:u8>
	OpInvokedynamic   Opcode = 0xBA // OpInvokedynamic <callsite:u16> <0:u16>
	OpNew             Opcode = 0xBB // OpNew <class:u16>
	OpNewarray        Opcode = 0xBC // OpNewarray <atype:u8>
	OpAnewarray       Opcode = 0xBD // OpAnewarray <class:u16>
	OpArraylength     Opcode = 0xBE
	OpAthrow          Opcode = 0xBF
	OpCheckcast       Opcode = 0xC0
	OpInstanceof      Opcode = 0xC1
	OpMonitorenter    Opcode = 0xC2
	OpMonitorexit     Opcode = 0xC3

	// ========================================================================
	// Extended (0xC4-0xC9)
	// ========================================================================

	OpWide           Opcode = 0xC4 // Widen the next load/store/iinc/ret
	OpMultianewarray Opcode = 0xC5 // OpMultianewarray <class:u16> <dims:u8>
	OpIfnull         Opcode = 0xC6
	OpIfnonnull      Opcode = 0xC7
	OpGotoW          Opcode = 0xC8 // OpGotoW <offset:i32>
	OpJsrW           Opcode = 0xC9
)

// Group classifies opcodes by the broad shape of their operands and
// control-flow behaviour.
type Group uint8

const (
	GroupSimple Group = iota
	GroupConstant
	GroupLocal
	GroupBranch
	GroupSwitch
	GroupReturn
	GroupMember
	GroupInvoke
	GroupType
	GroupSubroutine
	GroupPrefix
)

// OperandVariable marks opcodes whose operand length depends on the
// instruction's position or contents (switches and wide).
const OperandVariable = -1

// OpcodeInfo provides metadata about each opcode for decoding and listing.
type OpcodeInfo struct {
	Name       string // Mnemonic, upper case
	OperandLen int    // Number of operand bytes following the opcode (-1 = variable)
	Group      Group  // Operand/control-flow class
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Constants
	OpNop:        {"NOP", 0, GroupSimple},
	OpAconstNull: {"ACONST_NULL", 0, GroupSimple},
	OpIconstM1:   {"ICONST_M1", 0, GroupSimple},
	OpIconst0:    {"ICONST_0", 0, GroupSimple},
	OpIconst1:    {"ICONST_1", 0, GroupSimple},
	OpIconst2:    {"ICONST_2", 0, GroupSimple},
	OpIconst3:    {"ICONST_3", 0, GroupSimple},
	OpIconst4:    {"ICONST_4", 0, GroupSimple},
	OpIconst5:    {"ICONST_5", 0, GroupSimple},
	OpLconst0:    {"LCONST_0", 0, GroupSimple},
	OpLconst1:    {"LCONST_1", 0, GroupSimple},
	OpFconst0:    {"FCONST_0", 0, GroupSimple},
	OpFconst1:    {"FCONST_1", 0, GroupSimple},
	OpFconst2:    {"FCONST_2", 0, GroupSimple},
	OpDconst0:    {"DCONST_0", 0, GroupSimple},
	OpDconst1:    {"DCONST_1", 0, GroupSimple},
	OpBipush:     {"BIPUSH", 1, GroupConstant},
	OpSipush:     {"SIPUSH", 2, GroupConstant},
	OpLdc:        {"LDC", 1, GroupConstant},
	OpLdcW:       {"LDC_W", 2, GroupConstant},
	OpLdc2W:      {"LDC2_W", 2, GroupConstant},

	// Loads
	OpIload:  {"ILOAD", 1, GroupLocal},
	OpLload:  {"LLOAD", 1, GroupLocal},
	OpFload:  {"FLOAD", 1, GroupLocal},
	OpDload:  {"DLOAD", 1, GroupLocal},
	OpAload:  {"ALOAD", 1, GroupLocal},
	OpIload0: {"ILOAD_0", 0, GroupLocal},
	OpIload1: {"ILOAD_1", 0, GroupLocal},
	OpIload2: {"ILOAD_2", 0, GroupLocal},
	OpIload3: {"ILOAD_3", 0, GroupLocal},
	OpLload0: {"LLOAD_0", 0, GroupLocal},
	OpLload1: {"LLOAD_1", 0, GroupLocal},
	OpLload2: {"LLOAD_2", 0, GroupLocal},
	OpLload3: {"LLOAD_3", 0, GroupLocal},
	OpFload0: {"FLOAD_0", 0, GroupLocal},
	OpFload1: {"FLOAD_1", 0, GroupLocal},
	OpFload2: {"FLOAD_2", 0, GroupLocal},
	OpFload3: {"FLOAD_3", 0, GroupLocal},
	OpDload0: {"DLOAD_0", 0, GroupLocal},
	OpDload1: {"DLOAD_1", 0, GroupLocal},
	OpDload2: {"DLOAD_2", 0, GroupLocal},
	OpDload3: {"DLOAD_3", 0, GroupLocal},
	OpAload0: {"ALOAD_0", 0, GroupLocal},
	OpAload1: {"ALOAD_1", 0, GroupLocal},
	OpAload2: {"ALOAD_2", 0, GroupLocal},
	OpAload3: {"ALOAD_3", 0, GroupLocal},
	OpIaload: {"IALOAD", 0, GroupSimple},
	OpLaload: {"LALOAD", 0, GroupSimple},
	OpFaload: {"FALOAD", 0, GroupSimple},
	OpDaload: {"DALOAD", 0, GroupSimple},
	OpAaload: {"AALOAD", 0, GroupSimple},
	OpBaload: {"BALOAD", 0, GroupSimple},
	OpCaload: {"CALOAD", 0, GroupSimple},
	OpSaload: {"SALOAD", 0, GroupSimple},

	// Stores
	OpIstore:  {"ISTORE", 1, GroupLocal},
	OpLstore:  {"LSTORE", 1, GroupLocal},
	OpFstore:  {"FSTORE", 1, GroupLocal},
	OpDstore:  {"DSTORE", 1, GroupLocal},
	OpAstore:  {"ASTORE", 1, GroupLocal},
	OpIstore0: {"ISTORE_0", 0, GroupLocal},
	OpIstore1: {"ISTORE_1", 0, GroupLocal},
	OpIstore2: {"ISTORE_2", 0, GroupLocal},
	OpIstore3: {"ISTORE_3", 0, GroupLocal},
	OpLstore0: {"LSTORE_0", 0, GroupLocal},
	OpLstore1: {"LSTORE_1", 0, GroupLocal},
	OpLstore2: {"LSTORE_2", 0, GroupLocal},
	OpLstore3: {"LSTORE_3", 0, GroupLocal},
	OpFstore0: {"FSTORE_0", 0, GroupLocal},
	OpFstore1: {"FSTORE_1", 0, GroupLocal},
	OpFstore2: {"FSTORE_2", 0, GroupLocal},
	OpFstore3: {"FSTORE_3", 0, GroupLocal},
	OpDstore0: {"DSTORE_0", 0, GroupLocal},
	OpDstore1: {"DSTORE_1", 0, GroupLocal},
	OpDstore2: {"DSTORE_2", 0, GroupLocal},
	OpDstore3: {"DSTORE_3", 0, GroupLocal},
	OpAstore0: {"ASTORE_0", 0, GroupLocal},
	OpAstore1: {"ASTORE_1", 0, GroupLocal},
	OpAstore2: {"ASTORE_2", 0, GroupLocal},
	OpAstore3: {"ASTORE_3", 0, GroupLocal},
	OpIastore: {"IASTORE", 0, GroupSimple},
	OpLastore: {"LASTORE", 0, GroupSimple},
	OpFastore: {"FASTORE", 0, GroupSimple},
	OpDastore: {"DASTORE", 0, GroupSimple},
	OpAastore: {"AASTORE", 0, GroupSimple},
	OpBastore: {"BASTORE", 0, GroupSimple},
	OpCastore: {"CASTORE", 0, GroupSimple},
	OpSastore: {"SASTORE", 0, GroupSimple},

	// Stack manipulation
	OpPop:    {"POP", 0, GroupSimple},
	OpPop2:   {"POP2", 0, GroupSimple},
	OpDup:    {"DUP", 0, GroupSimple},
	OpDupX1:  {"DUP_X1", 0, GroupSimple},
	OpDupX2:  {"DUP_X2", 0, GroupSimple},
	OpDup2:   {"DUP2", 0, GroupSimple},
	OpDup2X1: {"DUP2_X1", 0, GroupSimple},
	OpDup2X2: {"DUP2_X2", 0, GroupSimple},
	OpSwap:   {"SWAP", 0, GroupSimple},

	// Arithmetic and logic
	OpIadd:  {"IADD", 0, GroupSimple},
	OpLadd:  {"LADD", 0, GroupSimple},
	OpFadd:  {"FADD", 0, GroupSimple},
	OpDadd:  {"DADD", 0, GroupSimple},
	OpIsub:  {"ISUB", 0, GroupSimple},
	OpLsub:  {"LSUB", 0, GroupSimple},
	OpFsub:  {"FSUB", 0, GroupSimple},
	OpDsub:  {"DSUB", 0, GroupSimple},
	OpImul:  {"IMUL", 0, GroupSimple},
	OpLmul:  {"LMUL", 0, GroupSimple},
	OpFmul:  {"FMUL", 0, GroupSimple},
	OpDmul:  {"DMUL", 0, GroupSimple},
	OpIdiv:  {"IDIV", 0, GroupSimple},
	OpLdiv:  {"LDIV", 0, GroupSimple},
	OpFdiv:  {"FDIV", 0, GroupSimple},
	OpDdiv:  {"DDIV", 0, GroupSimple},
	OpIrem:  {"IREM", 0, GroupSimple},
	OpLrem:  {"LREM", 0, GroupSimple},
	OpFrem:  {"FREM", 0, GroupSimple},
	OpDrem:  {"DREM", 0, GroupSimple},
	OpIneg:  {"INEG", 0, GroupSimple},
	OpLneg:  {"LNEG", 0, GroupSimple},
	OpFneg:  {"FNEG", 0, GroupSimple},
	OpDneg:  {"DNEG", 0, GroupSimple},
	OpIshl:  {"ISHL", 0, GroupSimple},
	OpLshl:  {"LSHL", 0, GroupSimple},
	OpIshr:  {"ISHR", 0, GroupSimple},
	OpLshr:  {"LSHR", 0, GroupSimple},
	OpIushr: {"IUSHR", 0, GroupSimple},
	OpLushr: {"LUSHR", 0, GroupSimple},
	OpIand:  {"IAND", 0, GroupSimple},
	OpLand:  {"LAND", 0, GroupSimple},
	OpIor:   {"IOR", 0, GroupSimple},
	OpLor:   {"LOR", 0, GroupSimple},
	OpIxor:  {"IXOR", 0, GroupSimple},
	OpLxor:  {"LXOR", 0, GroupSimple},
	OpIinc:  {"IINC", 2, GroupLocal},

	// Conversions
	OpI2l: {"I2L", 0, GroupSimple},
	OpI2f: {"I2F", 0, GroupSimple},
	OpI2d: {"I2D", 0, GroupSimple},
	OpL2i: {"L2I", 0, GroupSimple},
	OpL2f: {"L2F", 0, GroupSimple},
	OpL2d: {"L2D", 0, GroupSimple},
	OpF2i: {"F2I", 0, GroupSimple},
	OpF2l: {"F2L", 0, GroupSimple},
	OpF2d: {"F2D", 0, GroupSimple},
	OpD2i: {"D2I", 0, GroupSimple},
	OpD2l: {"D2L", 0, GroupSimple},
	OpD2f: {"D2F", 0, GroupSimple},
	OpI2b: {"I2B", 0, GroupSimple},
	OpI2c: {"I2C", 0, GroupSimple},
	OpI2s: {"I2S", 0, GroupSimple},

	// Comparisons
	OpLcmp:     {"LCMP", 0, GroupSimple},
	OpFcmpl:    {"FCMPL", 0, GroupSimple},
	OpFcmpg:    {"FCMPG", 0, GroupSimple},
	OpDcmpl:    {"DCMPL", 0, GroupSimple},
	OpDcmpg:    {"DCMPG", 0, GroupSimple},
	OpIfeq:     {"IFEQ", 2, GroupBranch},
	OpIfne:     {"IFNE", 2, GroupBranch},
	OpIflt:     {"IFLT", 2, GroupBranch},
	OpIfge:     {"IFGE", 2, GroupBranch},
	OpIfgt:     {"IFGT", 2, GroupBranch},
	OpIfle:     {"IFLE", 2, GroupBranch},
	OpIfIcmpeq: {"IF_ICMPEQ", 2, GroupBranch},
	OpIfIcmpne: {"IF_ICMPNE", 2, GroupBranch},
	OpIfIcmplt: {"IF_ICMPLT", 2, GroupBranch},
	OpIfIcmpge: {"IF_ICMPGE", 2, GroupBranch},
	OpIfIcmpgt: {"IF_ICMPGT", 2, GroupBranch},
	OpIfIcmple: {"IF_ICMPLE", 2, GroupBranch},
	OpIfAcmpeq: {"IF_ACMPEQ", 2, GroupBranch},
	OpIfAcmpne: {"IF_ACMPNE", 2, GroupBranch},

	// Control
	OpGoto:         {"GOTO", 2, GroupBranch},
	OpJsr:          {"JSR", 2, GroupSubroutine},
	OpRet:          {"RET", 1, GroupSubroutine},
	OpTableswitch:  {"TABLESWITCH", OperandVariable, GroupSwitch},
	OpLookupswitch: {"LOOKUPSWITCH", OperandVariable, GroupSwitch},
	OpIreturn:      {"IRETURN", 0, GroupReturn},
	OpLreturn:      {"LRETURN", 0, GroupReturn},
	OpFreturn:      {"FRETURN", 0, GroupReturn},
	OpDreturn:      {"DRETURN", 0, GroupReturn},
	OpAreturn:      {"ARETURN", 0, GroupReturn},
	OpReturn:       {"RETURN", 0, GroupReturn},

	// References
	OpGetstatic:       {"GETSTATIC", 2, GroupMember},
	OpPutstatic:       {"PUTSTATIC", 2, GroupMember},
	OpGetfield:        {"GETFIELD", 2, GroupMember},
	OpPutfield:        {"PUTFIELD", 2, GroupMember},
	OpInvokevirtual:   {"INVOKEVIRTUAL", 2, GroupInvoke},
	OpInvokespecial:   {"INVOKESPECIAL", 2, GroupInvoke},
	OpInvokestatic:    {"INVOKESTATIC", 2, GroupInvoke},
	OpInvokeinterface: {"INVOKEINTERFACE", 4, GroupInvoke},
	OpInvokedynamic:   {"INVOKEDYNAMIC", 4, GroupInvoke},
	OpNew:             {"NEW", 2, GroupType},
	OpNewarray:        {"NEWARRAY", 1, GroupType},
	OpAnewarray:       {"ANEWARRAY", 2, GroupType},
	OpArraylength:     {"ARRAYLENGTH", 0, GroupSimple},
	OpAthrow:          {"ATHROW", 0, GroupReturn},
	OpCheckcast:       {"CHECKCAST", 2, GroupType},
	OpInstanceof:      {"INSTANCEOF", 2, GroupType},
	OpMonitorenter:    {"MONITORENTER", 0, GroupSimple},
	OpMonitorexit:     {"MONITOREXIT", 0, GroupSimple},

	// Extended
	OpWide:           {"WIDE", OperandVariable, GroupPrefix},
	OpMultianewarray: {"MULTIANEWARRAY", 3, GroupType},
	OpIfnull:         {"IFNULL", 2, GroupBranch},
	OpIfnonnull:      {"IFNONNULL", 2, GroupBranch},
	OpGotoW:          {"GOTO_W", 4, GroupBranch},
	OpJsrW:           {"JSR_W", 4, GroupSubroutine},
}

// opcodesByName is the reverse of opcodeInfoTable, built once.
var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// IsDefined reports whether op is a JVM opcode known to the table.
func (op Opcode) IsDefined() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// LookupOpcode finds an opcode by mnemonic, case-insensitively.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[strings.ToUpper(name)]
	return op, ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode, or
// OperandVariable for switches and wide.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// Group returns the opcode's operand/control-flow class.
func (op Opcode) Group() Group {
	return GetOpcodeInfo(op).Group
}

// IsJump returns true for conditional and unconditional branches.
func (op Opcode) IsJump() bool {
	return op.Group() == GroupBranch
}

// IsConditionalJump returns true for branches with a fall-through successor.
func (op Opcode) IsConditionalJump() bool {
	return op.IsJump() && op != OpGoto && op != OpGotoW
}

// IsSwitch returns true for tableswitch and lookupswitch.
func (op Opcode) IsSwitch() bool {
	return op == OpTableswitch || op == OpLookupswitch
}

// IsReturn returns true if this opcode leaves the method (returns and athrow).
func (op Opcode) IsReturn() bool {
	return op.Group() == GroupReturn
}

// IsInvoke returns true if this opcode is a method invocation.
func (op Opcode) IsInvoke() bool {
	return op.Group() == GroupInvoke
}

// IsWidenable returns true if the opcode may follow a wide prefix.
func (op Opcode) IsWidenable() bool {
	return (op >= OpIload && op <= OpAload) || (op >= OpIstore && op <= OpAstore) ||
		op == OpIinc || op == OpRet
}

// AllOpcodes returns all defined opcodes in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	sort.Slice(opcodes, func(i, j int) bool { return opcodes[i] < opcodes[j] })
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
