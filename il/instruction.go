package il

import (
	"fmt"
	"strconv"
)

// Instruction is an opcode plus its inline operand. The operand is nil, an
// int32, a uint8 local slot, a *Instruction branch target, a TypeRef or a
// MethodRef, depending on the opcode's OperandKind.
type Instruction struct {
	OpCode  OpCode
	Operand interface{}
}

// Create builds an instruction without an operand.
func Create(op OpCode) *Instruction {
	mustOperand(op, InlineNone)
	return &Instruction{OpCode: op}
}

// CreateInt builds an instruction with an int32 literal operand.
func CreateInt(op OpCode, v int32) *Instruction {
	mustOperand(op, InlineI)
	return &Instruction{OpCode: op, Operand: v}
}

// CreateVar builds an instruction referencing a local slot.
func CreateVar(op OpCode, slot uint8) *Instruction {
	mustOperand(op, ShortInlineVar)
	return &Instruction{OpCode: op, Operand: slot}
}

// CreateBranch builds a branch to target. The target may not be placed in a
// body yet; it must be before the body is encoded or executed.
func CreateBranch(op OpCode, target *Instruction) *Instruction {
	mustOperand(op, InlineBrTarget)
	return &Instruction{OpCode: op, Operand: target}
}

// CreateType builds an instruction with a type operand.
func CreateType(op OpCode, t TypeRef) *Instruction {
	mustOperand(op, InlineType)
	return &Instruction{OpCode: op, Operand: t}
}

// CreateMethod builds an instruction with a method operand.
func CreateMethod(op OpCode, m MethodRef) *Instruction {
	mustOperand(op, InlineMethod)
	return &Instruction{OpCode: op, Operand: m}
}

func mustOperand(op OpCode, kind OperandKind) {
	if got := op.Info().Operand; got != kind {
		panic(fmt.Sprintf("opcode %s does not take operand kind %d", op, kind))
	}
}

// Int returns the literal operand, or the implied constant of the short
// ldc.i4 forms.
func (i *Instruction) Int() (int32, bool) {
	switch i.OpCode {
	case LdcI4Zero:
		return 0, true
	case LdcI4One:
		return 1, true
	}
	v, ok := i.Operand.(int32)
	return v, ok
}

// Slot returns the local slot the instruction touches.
func (i *Instruction) Slot() (uint8, bool) {
	switch i.OpCode {
	case Ldloc0, Stloc0:
		return 0, true
	case Ldloc1, Stloc1:
		return 1, true
	case Ldloc2, Stloc2:
		return 2, true
	}
	v, ok := i.Operand.(uint8)
	return v, ok
}

// Target returns the branch target.
func (i *Instruction) Target() *Instruction {
	t, _ := i.Operand.(*Instruction)
	return t
}

// Type returns the type operand.
func (i *Instruction) Type() (TypeRef, bool) {
	t, ok := i.Operand.(TypeRef)
	return t, ok
}

// Method returns the method operand.
func (i *Instruction) Method() (MethodRef, bool) {
	m, ok := i.Operand.(MethodRef)
	return m, ok
}

// Size returns the encoded size in bytes.
func (i *Instruction) Size() int {
	return 1 + i.OpCode.Info().Operand.Size()
}

// StackEffect returns how many slots the instruction pops and pushes.
func (i *Instruction) StackEffect() (pop, push int) {
	info := i.OpCode.Info()
	if info.Pop == VarPop {
		m, _ := i.Method()
		return m.Pop(), m.Push()
	}
	return info.Pop, info.Push
}

// OperandText formats the operand. Branch targets are rendered through
// label, which maps an instruction to its label text.
func (i *Instruction) OperandText(label func(*Instruction) string) string {
	switch v := i.Operand.(type) {
	case nil:
		return ""
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case *Instruction:
		if label == nil {
			return v.OpCode.String()
		}
		return label(v)
	case TypeRef:
		return v.FullName()
	case MethodRef:
		return v.String()
	}
	return fmt.Sprintf("%v", i.Operand)
}

func (i *Instruction) String() string {
	if text := i.OperandText(nil); text != "" {
		return i.OpCode.String() + " " + text
	}
	return i.OpCode.String()
}
