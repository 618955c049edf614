package instr

import (
	"fmt"

	"github.com/chazu/jflow/pkg/bytecode"
	"github.com/chazu/jflow/pkg/frame"
)

// Instruction model errors. Each wraps one of the bytecode error categories.
var (
	// ErrStackDependent is returned by the static stack queries of the DUP,
	// POP and SWAP family; use StackManipulation and layouts instead.
	ErrStackDependent = frame.ErrStackDependent

	ErrUnresolvedPlaceholder = fmt.Errorf("%w: unresolved placeholder", bytecode.ErrContractViolation)
	ErrAlreadyResolved       = fmt.Errorf("%w: placeholder already resolved", bytecode.ErrContractViolation)
	ErrNotBranch             = fmt.Errorf("%w: not a jump or switch", bytecode.ErrContractViolation)
	ErrCaseCount             = fmt.Errorf("%w: case destinations do not match switch keys", bytecode.ErrContractViolation)
	ErrNotSuccessor          = fmt.Errorf("%w: next instruction is not a successor", bytecode.ErrContractViolation)
	ErrMissingDescriptor     = fmt.Errorf("%w: unresolved member or constant", bytecode.ErrContractViolation)

	ErrUnsupportedOpcode = fmt.Errorf("%w: opcode not covered by the instruction model", bytecode.ErrUnsupported)
)
