// Package il models the stack-machine instruction set that bfil targets: a
// subset of CIL with its real single-byte encodings.
package il

import (
	"fmt"
	"strings"
)

// OpCode identifies an instruction of the ISA.
type OpCode uint8

// The supported opcodes.
const (
	Nop OpCode = iota
	Ldarg0
	Ldloc0
	Ldloc1
	Ldloc2
	Stloc0
	Stloc1
	Stloc2
	LdlocaS
	LdcI4Zero
	LdcI4One
	LdcI4
	Dup
	Call
	Ret
	Br
	Brtrue
	LdindU1
	StindI1
	Add
	Sub
	ConvU2
	ConvU1
	Newarr
	Ldelema
	LdelemU1
	StelemI1

	numOpCodes
)

// OperandKind describes the inline operand that follows an opcode.
type OperandKind uint8

// Operand kinds, named after the CIL operand types.
const (
	InlineNone OperandKind = iota
	InlineI
	ShortInlineVar
	InlineBrTarget
	InlineType
	InlineMethod
)

// Size returns the encoded size of the operand in bytes.
func (k OperandKind) Size() int {
	switch k {
	case ShortInlineVar:
		return 1
	case InlineI, InlineBrTarget, InlineType, InlineMethod:
		return 4
	}
	return 0
}

// VarPop marks opcodes whose stack effect depends on the operand (calls).
const VarPop = -1

// OpInfo is the static description of an opcode.
type OpInfo struct {
	Name    string
	Code    byte
	Operand OperandKind
	Pop     int
	Push    int
}

// ISA represents an instruction set: a registry of opcode descriptions
// addressable by opcode, mnemonic and encoding.
type ISA struct {
	name   string
	infos  [numOpCodes]OpInfo
	byName map[string]OpCode
	byCode map[byte]OpCode
}

// NewISA creates an empty instruction set.
func NewISA(name string) *ISA {
	return &ISA{
		name:   name,
		byName: make(map[string]OpCode),
		byCode: make(map[byte]OpCode),
	}
}

// Name returns the name of the ISA.
func (isa *ISA) Name() string {
	return isa.name
}

func (isa *ISA) registerNewInst(op OpCode, info OpInfo) {
	if _, dup := isa.byCode[info.Code]; dup {
		panic(fmt.Sprintf("opcode byte 0x%02X registered twice", info.Code))
	}
	isa.infos[op] = info
	isa.byName[info.Name] = op
	isa.byCode[info.Code] = op
}

// Info returns the description of op.
func (isa *ISA) Info(op OpCode) OpInfo {
	if op >= numOpCodes {
		return OpInfo{Name: fmt.Sprintf("op(%d)", op)}
	}
	return isa.infos[op]
}

// Lookup finds an opcode by mnemonic, case-insensitively.
func (isa *ISA) Lookup(name string) (OpCode, bool) {
	op, ok := isa.byName[strings.ToLower(name)]
	return op, ok
}

// Decode finds the opcode encoded as b.
func (isa *ISA) Decode(b byte) (OpCode, bool) {
	op, ok := isa.byCode[b]
	return op, ok
}

// DefaultISA is the CIL subset emitted by the compiler.
var DefaultISA = NewISA("bfil CIL subset")

func init() {
	defaultISAinit()
}

func defaultISAinit() {
	isa := DefaultISA
	isa.registerNewInst(Nop, OpInfo{Name: "nop", Code: 0x00})
	isa.registerNewInst(Ldarg0, OpInfo{Name: "ldarg.0", Code: 0x02, Push: 1})
	isa.registerNewInst(Ldloc0, OpInfo{Name: "ldloc.0", Code: 0x06, Push: 1})
	isa.registerNewInst(Ldloc1, OpInfo{Name: "ldloc.1", Code: 0x07, Push: 1})
	isa.registerNewInst(Ldloc2, OpInfo{Name: "ldloc.2", Code: 0x08, Push: 1})
	isa.registerNewInst(Stloc0, OpInfo{Name: "stloc.0", Code: 0x0A, Pop: 1})
	isa.registerNewInst(Stloc1, OpInfo{Name: "stloc.1", Code: 0x0B, Pop: 1})
	isa.registerNewInst(Stloc2, OpInfo{Name: "stloc.2", Code: 0x0C, Pop: 1})
	isa.registerNewInst(LdlocaS, OpInfo{Name: "ldloca.s", Code: 0x12, Operand: ShortInlineVar, Push: 1})
	isa.registerNewInst(LdcI4Zero, OpInfo{Name: "ldc.i4.0", Code: 0x16, Push: 1})
	isa.registerNewInst(LdcI4One, OpInfo{Name: "ldc.i4.1", Code: 0x17, Push: 1})
	isa.registerNewInst(LdcI4, OpInfo{Name: "ldc.i4", Code: 0x20, Operand: InlineI, Push: 1})
	isa.registerNewInst(Dup, OpInfo{Name: "dup", Code: 0x25, Pop: 1, Push: 2})
	isa.registerNewInst(Call, OpInfo{Name: "call", Code: 0x28, Operand: InlineMethod, Pop: VarPop})
	isa.registerNewInst(Ret, OpInfo{Name: "ret", Code: 0x2A})
	isa.registerNewInst(Br, OpInfo{Name: "br", Code: 0x38, Operand: InlineBrTarget})
	isa.registerNewInst(Brtrue, OpInfo{Name: "brtrue", Code: 0x3A, Operand: InlineBrTarget, Pop: 1})
	isa.registerNewInst(LdindU1, OpInfo{Name: "ldind.u1", Code: 0x47, Pop: 1, Push: 1})
	isa.registerNewInst(StindI1, OpInfo{Name: "stind.i1", Code: 0x52, Pop: 2})
	isa.registerNewInst(Add, OpInfo{Name: "add", Code: 0x58, Pop: 2, Push: 1})
	isa.registerNewInst(Sub, OpInfo{Name: "sub", Code: 0x59, Pop: 2, Push: 1})
	isa.registerNewInst(Newarr, OpInfo{Name: "newarr", Code: 0x8D, Operand: InlineType, Pop: 1, Push: 1})
	isa.registerNewInst(Ldelema, OpInfo{Name: "ldelema", Code: 0x8F, Operand: InlineType, Pop: 2, Push: 1})
	isa.registerNewInst(LdelemU1, OpInfo{Name: "ldelem.u1", Code: 0x91, Pop: 2, Push: 1})
	isa.registerNewInst(StelemI1, OpInfo{Name: "stelem.i1", Code: 0x9C, Pop: 3})
	isa.registerNewInst(ConvU2, OpInfo{Name: "conv.u2", Code: 0xD1, Pop: 1, Push: 1})
	isa.registerNewInst(ConvU1, OpInfo{Name: "conv.u1", Code: 0xD2, Pop: 1, Push: 1})
}

// Info returns the description of the opcode in the default ISA.
func (op OpCode) Info() OpInfo {
	return DefaultISA.Info(op)
}

func (op OpCode) String() string {
	return op.Info().Name
}

// Valid reports whether op is part of the default ISA.
func (op OpCode) Valid() bool {
	return op < numOpCodes
}

// IsBranch reports whether the opcode transfers control to an operand target.
func (op OpCode) IsBranch() bool {
	return op.Info().Operand == InlineBrTarget
}

// ParseOpCode looks up a mnemonic in the default ISA.
func ParseOpCode(name string) (OpCode, error) {
	op, ok := DefaultISA.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("unknown opcode %q", name)
	}
	return op, nil
}
