package instr

import (
	"fmt"

	"github.com/chazu/jflow/pkg/bytecode"
)

// Kind is the variant tag of an Instruction.
type Kind uint8

const (
	KindNop Kind = iota
	KindConstant
	KindLoad
	KindStore
	KindArrayLoad
	KindArrayStore
	KindStack // DUP, POP and SWAP family
	KindArithmetic
	KindUnary
	KindIncrement
	KindConversion
	KindCompare
	KindConditionalJump
	KindGoto
	KindSwitch
	KindReturn
	KindThrow
	KindField
	KindInvoke
	KindObject
	KindMonitor
	KindSubroutine
	numKinds
)

var kindNames = [numKinds]string{
	"nop", "constant", "load", "store", "array-load", "array-store",
	"stack", "arithmetic", "unary", "increment", "conversion", "compare",
	"conditional-jump", "goto", "switch", "return", "throw", "field",
	"invoke", "object", "monitor", "subroutine",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// KindOf classifies an opcode.
func KindOf(op bytecode.Opcode) (Kind, error) {
	switch {
	case op == bytecode.OpNop:
		return KindNop, nil
	case op >= bytecode.OpAconstNull && op <= bytecode.OpLdc2W:
		return KindConstant, nil
	case op >= bytecode.OpIload && op <= bytecode.OpAload3:
		return KindLoad, nil
	case op >= bytecode.OpIaload && op <= bytecode.OpSaload:
		return KindArrayLoad, nil
	case op >= bytecode.OpIstore && op <= bytecode.OpAstore3:
		return KindStore, nil
	case op >= bytecode.OpIastore && op <= bytecode.OpSastore:
		return KindArrayStore, nil
	case op >= bytecode.OpPop && op <= bytecode.OpSwap:
		return KindStack, nil
	case op >= bytecode.OpIneg && op <= bytecode.OpDneg:
		return KindUnary, nil
	case op >= bytecode.OpIadd && op <= bytecode.OpLxor:
		return KindArithmetic, nil
	case op == bytecode.OpIinc:
		return KindIncrement, nil
	case op >= bytecode.OpI2l && op <= bytecode.OpI2s:
		return KindConversion, nil
	case op >= bytecode.OpLcmp && op <= bytecode.OpDcmpg:
		return KindCompare, nil
	case op == bytecode.OpGoto || op == bytecode.OpGotoW:
		return KindGoto, nil
	case op.IsConditionalJump():
		return KindConditionalJump, nil
	case op.IsSwitch():
		return KindSwitch, nil
	case op == bytecode.OpAthrow:
		return KindThrow, nil
	case op.IsReturn():
		return KindReturn, nil
	case op >= bytecode.OpGetstatic && op <= bytecode.OpPutfield:
		return KindField, nil
	case op.IsInvoke():
		return KindInvoke, nil
	case op == bytecode.OpMonitorenter || op == bytecode.OpMonitorexit:
		return KindMonitor, nil
	case op == bytecode.OpJsr || op == bytecode.OpJsrW || op == bytecode.OpRet:
		return KindSubroutine, nil
	case op == bytecode.OpNew || op == bytecode.OpNewarray || op == bytecode.OpAnewarray ||
		op == bytecode.OpArraylength || op == bytecode.OpCheckcast ||
		op == bytecode.OpInstanceof || op == bytecode.OpMultianewarray:
		return KindObject, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedOpcode, op)
}
