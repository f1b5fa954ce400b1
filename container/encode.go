package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/sarchlab/bfil/il"
)

var magic = [4]byte{'B', 'F', 'I', 'L'}

const formatVersion uint16 = 1

// Metadata tables addressed by tokens.
const (
	tableTypeRef   = 0x01
	tableTypeDef   = 0x02
	tableMethodDef = 0x06
	tableMemberRef = 0x0A
)

// Method attribute flags.
const (
	flagStatic        uint16 = 0x0010
	flagSpecialName   uint16 = 0x0800
	flagRTSpecialName uint16 = 0x1000
)

func token(table uint8, row int) uint32 {
	return uint32(table)<<24 | uint32(row)
}

func splitToken(tok uint32) (table uint8, row int) {
	return uint8(tok >> 24), int(tok & 0x00FFFFFF)
}

// tables collects the type and member references of a module. Rows are
// numbered from one in first-use order.
type tables struct {
	typeRefs   []il.TypeRef
	typeRows   map[il.TypeRef]int
	memberRefs []il.MethodRef
	memberRows map[string]int
}

func newTables(m *Module) *tables {
	t := &tables{
		typeRows:   make(map[il.TypeRef]int),
		memberRows: make(map[string]int),
	}

	for _, td := range m.Types {
		t.typeToken(td.Extends)
		for _, md := range td.Methods {
			for _, local := range md.Body.Locals {
				t.typeToken(local)
			}
			for _, inst := range md.Body.Instructions {
				switch inst.OpCode.Info().Operand {
				case il.InlineType:
					ref, _ := inst.Type()
					t.typeToken(ref)
				case il.InlineMethod:
					ref, _ := inst.Method()
					t.memberToken(ref)
				}
			}
		}
	}

	return t
}

func (t *tables) typeToken(ref il.TypeRef) uint32 {
	row, ok := t.typeRows[ref]
	if !ok {
		t.typeRefs = append(t.typeRefs, ref)
		row = len(t.typeRefs)
		t.typeRows[ref] = row
	}
	return token(tableTypeRef, row)
}

func (t *tables) memberToken(ref il.MethodRef) uint32 {
	key := ref.String()
	row, ok := t.memberRows[key]
	if !ok {
		t.typeToken(ref.DeclaringType)
		t.typeToken(returnType(ref))
		for _, p := range ref.Params {
			t.typeToken(p)
		}
		t.memberRefs = append(t.memberRefs, ref)
		row = len(t.memberRefs)
		t.memberRows[key] = row
	}
	return token(tableMemberRef, row)
}

func returnType(ref il.MethodRef) il.TypeRef {
	if ref.Return.IsZero() {
		return il.TypeVoid
	}
	return ref.Return
}

// writer accumulates little-endian fields.
type writer struct {
	buf bytes.Buffer
	err error
}

func (w *writer) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *writer) u16(v uint16) {
	w.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

func (w *writer) u32(v uint32) {
	w.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

func (w *writer) bytes(b []byte) {
	w.buf.Write(b)
}

func (w *writer) str(s string) {
	if len(s) > math.MaxUint16 {
		w.fail(fmt.Errorf("%w: string of %d bytes is too long", ErrMalformed, len(s)))
		return
	}
	w.u16(uint16(len(s)))
	w.buf.WriteString(s)
}

func (w *writer) count(n int, what string) {
	if n > math.MaxUint16 {
		w.fail(fmt.Errorf("%w: too many %s (%d)", ErrMalformed, what, n))
		return
	}
	w.u16(uint16(n))
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Encode writes the module in its binary form.
func (m *Module) Encode(w io.Writer) error {
	data, err := m.encode()
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

func (m *Module) encode() ([]byte, error) {
	t := newTables(m)
	out := &writer{}

	out.bytes(magic[:])
	out.u16(formatVersion)
	out.str(m.Name)
	out.u16(m.Version.Major)
	out.u16(m.Version.Minor)
	out.u16(m.Version.Build)
	out.u16(m.Version.Revision)
	out.bytes(m.MVID[:])

	// Encode the code first so every reference is in the tables.
	codes := make(map[*MethodDef][]byte)
	for _, md := range m.Methods() {
		code, err := encodeCode(md.Body, t)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", md.FullName(), err)
		}
		codes[md] = code
	}

	out.count(len(t.typeRefs), "type references")
	for _, ref := range t.typeRefs {
		out.str(ref.Namespace)
		out.str(ref.Name)
	}

	out.count(len(t.memberRefs), "member references")
	for _, ref := range t.memberRefs {
		out.u32(t.typeToken(ref.DeclaringType))
		out.str(ref.Name)
		if ref.HasThis {
			out.u8(1)
		} else {
			out.u8(0)
		}
		out.u32(t.typeToken(returnType(ref)))
		out.u8(uint8(len(ref.Params)))
		for _, p := range ref.Params {
			out.u32(t.typeToken(p))
		}
	}

	var entryToken uint32
	methodRow := 0
	out.count(len(m.Types), "types")
	for _, td := range m.Types {
		out.str(td.Namespace)
		out.str(td.Name)
		out.u32(t.typeToken(td.Extends))
		out.count(len(td.Methods), "methods")
		for _, md := range td.Methods {
			methodRow++
			if md == m.entry {
				entryToken = token(tableMethodDef, methodRow)
			}

			out.str(md.Name)
			out.u16(methodFlags(md))
			out.u8(uint8(len(md.Body.Locals)))
			for _, local := range md.Body.Locals {
				out.u32(t.typeToken(local))
			}
			out.u32(uint32(len(codes[md])))
			out.bytes(codes[md])
		}
	}

	out.u32(entryToken)

	if out.err != nil {
		return nil, out.err
	}
	return out.buf.Bytes(), nil
}

func methodFlags(md *MethodDef) uint16 {
	var flags uint16
	if md.Static {
		flags |= flagStatic
	}
	if md.Name == CtorName {
		flags |= flagSpecialName | flagRTSpecialName
	}
	return flags
}

// encodeCode lays out a body as CIL byte code.
func encodeCode(body *il.MethodBody, t *tables) ([]byte, error) {
	if err := body.CheckTargets(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	idx := body.Index()
	offsets := body.Offsets()
	code := make([]byte, 0, offsets[len(offsets)-1])

	for i, inst := range body.Instructions {
		info := inst.OpCode.Info()
		code = append(code, info.Code)

		switch info.Operand {
		case il.InlineNone:
		case il.InlineI:
			v, _ := inst.Int()
			code = binary.LittleEndian.AppendUint32(code, uint32(v))
		case il.ShortInlineVar:
			slot, _ := inst.Slot()
			code = append(code, slot)
		case il.InlineBrTarget:
			next := offsets[i+1]
			target := offsets[idx[inst.Target()]]
			code = binary.LittleEndian.AppendUint32(code, uint32(int32(target-next)))
		case il.InlineType:
			ref, _ := inst.Type()
			code = binary.LittleEndian.AppendUint32(code, t.typeToken(ref))
		case il.InlineMethod:
			ref, _ := inst.Method()
			code = binary.LittleEndian.AppendUint32(code, t.memberToken(ref))
		}
	}

	return code, nil
}

// computeMVID derives the module id from the encoded method bodies.
func (m *Module) computeMVID() ([16]byte, error) {
	var mvid [16]byte

	h, err := blake2b.New256(nil)
	if err != nil {
		return mvid, err
	}

	t := newTables(m)
	h.Write([]byte(m.Name))
	for _, md := range m.Methods() {
		code, err := encodeCode(md.Body, t)
		if err != nil {
			return mvid, err
		}
		h.Write([]byte(md.FullName()))
		h.Write(code)
	}

	copy(mvid[:], h.Sum(nil))
	return mvid, nil
}
