package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sarchlab/bfil/il"
)

// reader consumes little-endian fields. The first failure sticks.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("%w: %w at byte %d", ErrMalformed, io.ErrUnexpectedEOF, r.pos)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) str() string {
	return string(r.take(int(r.u16())))
}

func (r *reader) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
	}
}

// Decode reads a module written by Encode.
func Decode(in io.Reader) (*Module, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}

	if len(data) < len(magic) || !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, ErrBadMagic
	}

	r := &reader{data: data, pos: len(magic)}
	if v := r.u16(); r.err == nil && v != formatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, v)
	}

	m := &Module{Name: r.str()}
	m.Version.Major = r.u16()
	m.Version.Minor = r.u16()
	m.Version.Build = r.u16()
	m.Version.Revision = r.u16()
	copy(m.MVID[:], r.take(len(m.MVID)))

	d := &decoder{r: r}
	d.readTypeRefs()
	d.readMemberRefs()
	d.readTypeDefs(m)

	entryToken := r.u32()
	if r.err != nil {
		return nil, r.err
	}

	if entryToken != 0 {
		methods := m.Methods()
		table, row := splitToken(entryToken)
		if table != tableMethodDef || row < 1 || row > len(methods) {
			return nil, fmt.Errorf("%w: invalid entry point token %#08x", ErrMalformed, entryToken)
		}
		m.entry = methods[row-1]
	}

	return m, nil
}

type decoder struct {
	r          *reader
	typeRefs   []il.TypeRef
	memberRefs []il.MethodRef
}

func (d *decoder) readTypeRefs() {
	n := int(d.r.u16())
	for i := 0; i < n && d.r.err == nil; i++ {
		ns := d.r.str()
		name := d.r.str()
		d.typeRefs = append(d.typeRefs, il.TypeRef{Namespace: ns, Name: name})
	}
}

func (d *decoder) readMemberRefs() {
	n := int(d.r.u16())
	for i := 0; i < n && d.r.err == nil; i++ {
		var ref il.MethodRef
		ref.DeclaringType = d.typeRef(d.r.u32())
		ref.Name = d.r.str()
		ref.HasThis = d.r.u8() != 0
		ref.Return = d.typeRef(d.r.u32())

		params := int(d.r.u8())
		for j := 0; j < params && d.r.err == nil; j++ {
			ref.Params = append(ref.Params, d.typeRef(d.r.u32()))
		}
		d.memberRefs = append(d.memberRefs, ref)
	}
}

func (d *decoder) readTypeDefs(m *Module) {
	n := int(d.r.u16())
	for i := 0; i < n && d.r.err == nil; i++ {
		td := &TypeDef{
			Namespace: d.r.str(),
			Name:      d.r.str(),
		}
		td.Extends = d.typeRef(d.r.u32())

		methods := int(d.r.u16())
		for j := 0; j < methods && d.r.err == nil; j++ {
			td.addMethod(d.readMethod())
		}
		m.Types = append(m.Types, td)
	}
}

func (d *decoder) readMethod() *MethodDef {
	md := &MethodDef{Name: d.r.str()}
	md.Static = d.r.u16()&flagStatic != 0

	body := il.NewMethodBody()
	locals := int(d.r.u8())
	for i := 0; i < locals && d.r.err == nil; i++ {
		body.Locals = append(body.Locals, d.typeRef(d.r.u32()))
	}

	code := d.r.take(int(d.r.u32()))
	if d.r.err != nil {
		return md
	}

	insts, err := d.decodeCode(code)
	if err != nil {
		d.r.fail("method %s: %v", md.Name, err)
		return md
	}
	body.Instructions = insts
	md.Body = body

	return md
}

func (d *decoder) typeRef(tok uint32) il.TypeRef {
	table, row := splitToken(tok)
	if table != tableTypeRef || row < 1 || row > len(d.typeRefs) {
		d.r.fail("invalid type token %#08x", tok)
		return il.TypeRef{}
	}
	return d.typeRefs[row-1]
}

func (d *decoder) memberRef(tok uint32) (il.MethodRef, error) {
	table, row := splitToken(tok)
	if table != tableMemberRef || row < 1 || row > len(d.memberRefs) {
		return il.MethodRef{}, fmt.Errorf("invalid member token %#08x", tok)
	}
	return d.memberRefs[row-1], nil
}

// decodeCode turns CIL byte code back into instructions. Branches are
// resolved in a second pass once every instruction offset is known.
func (d *decoder) decodeCode(code []byte) ([]*il.Instruction, error) {
	type branch struct {
		inst   *il.Instruction
		at     int
		target int
	}

	var (
		insts    []*il.Instruction
		branches []branch
		byOffset = make(map[int]*il.Instruction)
	)

	pc := 0
	for pc < len(code) {
		start := pc
		op, ok := il.DefaultISA.Decode(code[pc])
		if !ok {
			return nil, fmt.Errorf("unknown opcode %#02x at IL_%04x", code[pc], pc)
		}
		pc++

		info := op.Info()
		size := info.Operand.Size()
		if pc+size > len(code) {
			return nil, fmt.Errorf("truncated operand of %s at IL_%04x", op, start)
		}
		operand := code[pc : pc+size]
		pc += size

		var inst *il.Instruction
		switch info.Operand {
		case il.InlineNone:
			inst = il.Create(op)
		case il.InlineI:
			inst = il.CreateInt(op, int32(binary.LittleEndian.Uint32(operand)))
		case il.ShortInlineVar:
			inst = il.CreateVar(op, operand[0])
		case il.InlineBrTarget:
			inst = &il.Instruction{OpCode: op}
			disp := int32(binary.LittleEndian.Uint32(operand))
			branches = append(branches, branch{inst: inst, at: start, target: pc + int(disp)})
		case il.InlineType:
			tok := binary.LittleEndian.Uint32(operand)
			table, row := splitToken(tok)
			if table != tableTypeRef || row < 1 || row > len(d.typeRefs) {
				return nil, fmt.Errorf("invalid type token %#08x at IL_%04x", tok, start)
			}
			inst = il.CreateType(op, d.typeRefs[row-1])
		case il.InlineMethod:
			ref, err := d.memberRef(binary.LittleEndian.Uint32(operand))
			if err != nil {
				return nil, fmt.Errorf("%v at IL_%04x", err, start)
			}
			inst = il.CreateMethod(op, ref)
		}

		byOffset[start] = inst
		insts = append(insts, inst)
	}

	for _, b := range branches {
		target, ok := byOffset[b.target]
		if !ok {
			return nil, fmt.Errorf("branch at IL_%04x to IL_%04x is not an instruction boundary", b.at, b.target)
		}
		b.inst.Operand = target
	}

	return insts, nil
}
