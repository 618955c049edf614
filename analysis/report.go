package analysis

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/jflow/pkg/instr"
)

// cborEncMode uses canonical mode so equal reports encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("analysis: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Report is the result of analysing one class.
type Report struct {
	RunID   string          `cbor:"1,keyasint"`
	Class   string          `cbor:"2,keyasint"`
	Methods []MethodSummary `cbor:"3,keyasint"`
	Failed  int             `cbor:"4,keyasint"`
	Skipped int             `cbor:"5,keyasint"`
}

// MethodSummary describes the control-flow graph of one method, or why it
// could not be built.
type MethodSummary struct {
	Class        string         `cbor:"1,keyasint"`
	Name         string         `cbor:"2,keyasint"`
	Descriptor   string         `cbor:"3,keyasint"`
	Instructions int            `cbor:"4,keyasint"`
	Blocks       []BlockSummary `cbor:"5,keyasint,omitempty"`
	Handlers     []int          `cbor:"6,keyasint,omitempty"`
	Unreachable  []int          `cbor:"7,keyasint,omitempty"`
	Shapes       []ShapeSummary `cbor:"8,keyasint,omitempty"`
	Error        string         `cbor:"9,keyasint,omitempty"`
	Category     string         `cbor:"10,keyasint,omitempty"` // malformed, contract or unsupported
	Skipped      bool           `cbor:"11,keyasint,omitempty"`

	// Cached is set when the summary came from the cache.
	Cached bool `cbor:"-"`
}

// Key returns class.name descriptor.
func (s *MethodSummary) Key() string {
	return s.Class + "." + s.Name + s.Descriptor
}

// OK reports whether the graph was built.
func (s *MethodSummary) OK() bool { return s.Error == "" }

// BlockSummary is one basic block. Successors use instr.MethodExit for the
// method exit.
type BlockSummary struct {
	Entry       int   `cbor:"1,keyasint"`
	Len         int   `cbor:"2,keyasint"`
	StartOffset int   `cbor:"3,keyasint"`
	EndOffset   int   `cbor:"4,keyasint"`
	Successors  []int `cbor:"5,keyasint"`
	Transitions int   `cbor:"6,keyasint"`
}

// ShapeSummary records the minimal frame layouts of a stack-shuffling
// instruction.
type ShapeSummary struct {
	Index  int    `cbor:"1,keyasint"`
	Opcode string `cbor:"2,keyasint"`
	Before string `cbor:"3,keyasint"`
	After  string `cbor:"4,keyasint"`
}

// MarshalReport serializes a Report to CBOR bytes.
func MarshalReport(r *Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalReport deserializes a Report from CBOR bytes.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("analysis: unmarshal report: %w", err)
	}
	return &r, nil
}

// WriteReports writes reports to w as a CBOR sequence, one data item per
// report.
func WriteReports(w io.Writer, reports []*Report) error {
	enc := cborEncMode.NewEncoder(w)
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("analysis: encode report %s: %w", r.Class, err)
		}
	}
	return nil
}

// ReadReports decodes a CBOR sequence written by WriteReports.
func ReadReports(r io.Reader) ([]*Report, error) {
	dec := cbor.NewDecoder(r)
	var reports []*Report
	for {
		var rep Report
		err := dec.Decode(&rep)
		if errors.Is(err, io.EOF) {
			return reports, nil
		}
		if err != nil {
			return nil, fmt.Errorf("analysis: decode report %d: %w", len(reports), err)
		}
		reports = append(reports, &rep)
	}
}

func marshalSummary(s *MethodSummary) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

func unmarshalSummary(data []byte) (*MethodSummary, error) {
	var s MethodSummary
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("analysis: unmarshal summary: %w", err)
	}
	return &s, nil
}

// Method returns the summary for name and descriptor.
func (r *Report) Method(name, descriptor string) (*MethodSummary, bool) {
	for i := range r.Methods {
		if r.Methods[i].Name == name && r.Methods[i].Descriptor == descriptor {
			return &r.Methods[i], true
		}
	}
	return nil, false
}

func formatSuccessors(succ []int) string {
	parts := make([]string, len(succ))
	for i, s := range succ {
		if s == instr.MethodExit {
			parts[i] = "exit"
		} else {
			parts[i] = fmt.Sprint(s)
		}
	}
	return strings.Join(parts, ", ")
}

// WriteText prints a human-readable summary of the report.
func (r *Report) WriteText(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "class %s (run %s): %d methods, %d failed, %d skipped\n",
		r.Class, r.RunID, len(r.Methods), r.Failed, r.Skipped)
	for _, m := range r.Methods {
		fmt.Fprintf(&sb, "\n%s%s", m.Name, m.Descriptor)
		switch {
		case m.Skipped:
			fmt.Fprintf(&sb, ": skipped: %s\n", m.Error)
			continue
		case !m.OK():
			fmt.Fprintf(&sb, ": %s error: %s\n", m.Category, m.Error)
			continue
		}
		fmt.Fprintf(&sb, ": %d instructions, %d blocks\n", m.Instructions, len(m.Blocks))
		for _, b := range m.Blocks {
			fmt.Fprintf(&sb, "  block %d [%d-%d) %d insns, %d transitions -> %s\n",
				b.Entry, b.StartOffset, b.EndOffset, b.Len, b.Transitions, formatSuccessors(b.Successors))
		}
		if len(m.Handlers) > 0 {
			fmt.Fprintf(&sb, "  handlers: %v\n", m.Handlers)
		}
		if len(m.Unreachable) > 0 {
			fmt.Fprintf(&sb, "  unreachable: %v\n", m.Unreachable)
		}
		for _, s := range m.Shapes {
			fmt.Fprintf(&sb, "  %d %s: %s -> %s\n", s.Index, s.Opcode, s.Before, s.After)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
