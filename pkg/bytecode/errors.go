package bytecode

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error categories
// ---------------------------------------------------------------------------

// Every error produced while decoding or analysing a method wraps exactly one
// of these categories, so callers can decide with errors.Is whether to skip
// the method (malformed), fix their usage (contract violation) or extend the
// instruction model (unsupported).
var (
	ErrMalformed         = errors.New("malformed bytecode")
	ErrContractViolation = errors.New("contract violation")
	ErrUnsupported       = errors.New("unsupported construct")
)

// Decoder errors.
var (
	ErrTruncated     = fmt.Errorf("%w: truncated instruction", ErrMalformed)
	ErrUnknownOpcode = fmt.Errorf("%w: unknown opcode", ErrMalformed)
	ErrBadWide       = fmt.Errorf("%w: wide prefix on non-widenable opcode", ErrMalformed)
	ErrBadSwitch     = fmt.Errorf("%w: invalid switch table", ErrMalformed)
)

// Category returns a short name for the category err belongs to, or ""
// when err does not wrap any of them.
func Category(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrContractViolation):
		return "contract"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return ""
	}
}
