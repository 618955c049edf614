// Package classfile reads JVM class files into bytecode.Method values ready
// for control-flow analysis, and writes small class files for tests and
// tools.
//
// Only what analysis needs is kept: the constant pool, the class names, and
// for each method its Code attribute with the exception table,
// LineNumberTable and LocalVariableTable. Fields and other attributes are
// skipped. A code array that does not decode is recorded on its method as
// DecodeErr instead of failing the class.
package classfile

import (
	"fmt"
	"io"

	"github.com/chazu/jflow/pkg/bytecode"
)

// Magic is the first word of every class file.
const Magic uint32 = 0xCAFEBABE

// ClassFile is a parsed class.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         *Pool
	AccessFlags  uint16
	Name         string
	SuperName    string // Empty for java/lang/Object
	Interfaces   []string
	SourceFile   string
	Methods      []*bytecode.Method
}

// Method returns the method with the given name and descriptor.
func (cf *ClassFile) Method(name, descriptor string) (*bytecode.Method, bool) {
	for _, m := range cf.Methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m, true
		}
	}
	return nil, false
}

// ParseReader reads a whole class file from r.
func ParseReader(r io.Reader) (*ClassFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("classfile: failed to read class data: %w", err)
	}
	return Parse(data)
}

// Parse parses a class file. Method code is decoded with constant pool
// references resolved.
func Parse(data []byte) (*ClassFile, error) {
	cf, err := parse(&reader{data: data})
	if err != nil {
		return nil, fmt.Errorf("classfile: %w", err)
	}
	return cf, nil
}

func parse(r *reader) (*ClassFile, error) {
	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: got %08X", ErrInvalidMagic, magic)
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = r.u16(); err != nil {
		return nil, err
	}
	if cf.MajorVersion, err = r.u16(); err != nil {
		return nil, err
	}
	if cf.Pool, err = readPool(r); err != nil {
		return nil, err
	}
	if cf.AccessFlags, err = r.u16(); err != nil {
		return nil, err
	}

	this, err := r.u16()
	if err != nil {
		return nil, err
	}
	if cf.Name, err = cf.Pool.Class(this); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	super, err := r.u16()
	if err != nil {
		return nil, err
	}
	if super != 0 {
		if cf.SuperName, err = cf.Pool.Class(super); err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
	}

	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		idx, err := r.u16()
		if err != nil {
			return nil, err
		}
		name, err := cf.Pool.Class(idx)
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", i, err)
		}
		cf.Interfaces = append(cf.Interfaces, name)
	}

	// Fields carry nothing analysis needs.
	if n, err = r.u16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		if _, err := r.bytes(6); err != nil {
			return nil, err
		}
		if err := skipAttributes(r); err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
	}

	if n, err = r.u16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		m, err := cf.readMethod(r)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		cf.Methods = append(cf.Methods, m)
	}

	err = cf.eachAttribute(r, func(name string, body *reader) error {
		if name != "SourceFile" {
			return nil
		}
		idx, err := body.u16()
		if err != nil {
			return err
		}
		cf.SourceFile, err = cf.Pool.Utf8(idx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !r.done() {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, len(r.data)-r.pos)
	}
	return cf, nil
}

// eachAttribute reads an attributes table and calls fn with each
// attribute's name and a reader over its body.
func (cf *ClassFile) eachAttribute(r *reader, fn func(name string, body *reader) error) error {
	n, err := r.u16()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		nameIdx, err := r.u16()
		if err != nil {
			return err
		}
		name, err := cf.Pool.Utf8(nameIdx)
		if err != nil {
			return fmt.Errorf("attribute name: %w", err)
		}
		length, err := r.u32()
		if err != nil {
			return err
		}
		body, err := r.sub(int(length))
		if err != nil {
			return err
		}
		if err := fn(name, body); err != nil {
			return fmt.Errorf("%s attribute: %w", name, err)
		}
	}
	return nil
}

func skipAttributes(r *reader) error {
	n, err := r.u16()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		if _, err := r.u16(); err != nil {
			return err
		}
		length, err := r.u32()
		if err != nil {
			return err
		}
		if _, err := r.bytes(int(length)); err != nil {
			return err
		}
	}
	return nil
}

func (cf *ClassFile) readMethod(r *reader) (*bytecode.Method, error) {
	access, err := r.u16()
	if err != nil {
		return nil, err
	}
	nameIdx, err := r.u16()
	if err != nil {
		return nil, err
	}
	descIdx, err := r.u16()
	if err != nil {
		return nil, err
	}
	m := &bytecode.Method{ClassName: cf.Name, AccessFlags: access}
	if m.Name, err = cf.Pool.Utf8(nameIdx); err != nil {
		return nil, err
	}
	if m.Descriptor, err = cf.Pool.Utf8(descIdx); err != nil {
		return nil, err
	}

	err = cf.eachAttribute(r, func(name string, body *reader) error {
		if name != "Code" {
			return nil
		}
		return cf.readCode(body, m)
	})
	if err != nil {
		return nil, fmt.Errorf("%s%s: %w", m.Name, m.Descriptor, err)
	}
	return m, nil
}

func (cf *ClassFile) readCode(r *reader, m *bytecode.Method) error {
	maxStack, err := r.u16()
	if err != nil {
		return err
	}
	maxLocals, err := r.u16()
	if err != nil {
		return err
	}
	m.MaxStack, m.MaxLocals = int(maxStack), int(maxLocals)

	length, err := r.u32()
	if err != nil {
		return err
	}
	code, err := r.bytes(int(length))
	if err != nil {
		return err
	}
	m.Code = append([]byte(nil), code...)
	if m.Instructions, err = bytecode.Decode(code, cf.Pool); err != nil {
		// Undecodable code fails this method only, at analysis time.
		m.Instructions = nil
		m.DecodeErr = fmt.Errorf("code: %w", err)
	}

	n, err := r.u16()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		var h [4]uint16
		for j := range h {
			if h[j], err = r.u16(); err != nil {
				return err
			}
		}
		handler := bytecode.ExceptionHandler{StartPC: int(h[0]), EndPC: int(h[1]), HandlerPC: int(h[2])}
		if h[3] != 0 {
			if handler.CatchType, err = cf.Pool.Class(h[3]); err != nil {
				return fmt.Errorf("catch type: %w", err)
			}
		}
		m.ExceptionTable = append(m.ExceptionTable, handler)
	}

	var lines []bytecode.LineNumber
	err = cf.eachAttribute(r, func(name string, body *reader) error {
		switch name {
		case "LineNumberTable":
			ls, err := readLineNumbers(body)
			lines = append(lines, ls...)
			return err
		case "LocalVariableTable":
			lv, err := cf.readLocals(body)
			m.LocalVariables = append(m.LocalVariables, lv...)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !r.done() {
		return fmt.Errorf("%w: %d unread bytes in Code", ErrBadAttribute, len(r.data)-r.pos)
	}
	bytecode.ApplyLineNumbers(m.Instructions, lines)
	return nil
}

func readLineNumbers(r *reader) ([]bytecode.LineNumber, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]bytecode.LineNumber, 0, n)
	for i := 0; i < int(n); i++ {
		pc, err := r.u16()
		if err != nil {
			return nil, err
		}
		line, err := r.u16()
		if err != nil {
			return nil, err
		}
		out = append(out, bytecode.LineNumber{StartPC: int(pc), Line: int(line)})
	}
	return out, nil
}

func (cf *ClassFile) readLocals(r *reader) ([]bytecode.LocalVariable, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]bytecode.LocalVariable, 0, n)
	for i := 0; i < int(n); i++ {
		var f [5]uint16
		for j := range f {
			if f[j], err = r.u16(); err != nil {
				return nil, err
			}
		}
		lv := bytecode.LocalVariable{StartPC: int(f[0]), Length: int(f[1]), Slot: int(f[4])}
		if lv.Name, err = cf.Pool.Utf8(f[2]); err != nil {
			return nil, err
		}
		if lv.Descriptor, err = cf.Pool.Utf8(f[3]); err != nil {
			return nil, err
		}
		out = append(out, lv)
	}
	return out, nil
}
