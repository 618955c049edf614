package classfile

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/jflow/pkg/bytecode"
)

// Class file errors. All of them are malformed input.
var (
	ErrInvalidMagic = fmt.Errorf("%w: invalid magic number: expected CAFEBABE", bytecode.ErrMalformed)
	ErrTruncated    = fmt.Errorf("%w: unexpected end of class data", bytecode.ErrMalformed)
	ErrBadConstant  = fmt.Errorf("%w: bad constant pool entry", bytecode.ErrMalformed)
	ErrBadIndex     = fmt.Errorf("%w: invalid constant pool index", bytecode.ErrMalformed)
	ErrWrongTag     = fmt.Errorf("%w: constant pool entry has the wrong tag", bytecode.ErrMalformed)
	ErrBadAttribute = fmt.Errorf("%w: bad attribute", bytecode.ErrMalformed)
	ErrTrailingData = fmt.Errorf("%w: trailing bytes after class", bytecode.ErrMalformed)
)

// reader is a big-endian cursor over class file bytes.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return fmt.Errorf("%w: need %d bytes at %d, have %d", ErrTruncated, n, r.pos, len(r.data)-r.pos)
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// sub returns a reader over the next n bytes and skips them.
func (r *reader) sub(n int) (*reader, error) {
	b, err := r.bytes(n)
	if err != nil {
		return nil, err
	}
	return &reader{data: b}, nil
}

func (r *reader) done() bool { return r.pos == len(r.data) }
