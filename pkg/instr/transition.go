package instr

import (
	"fmt"

	"github.com/chazu/jflow/pkg/frame"
)

// Transition is the stack transfer function along one edge from instruction
// From to instruction To (MethodExit when the method ends).
type Transition struct {
	From int
	To   int
	frame.Manipulation
}

func (t *Transition) String() string {
	to := fmt.Sprint(t.To)
	if t.To == MethodExit {
		to = "exit"
	}
	return fmt.Sprintf("%d->%s %v", t.From, to, t.Manipulation)
}
