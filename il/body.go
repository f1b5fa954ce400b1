package il

import (
	"fmt"
	"strings"
)

// MethodBody is the ordered instruction sequence of a method together with
// its local variable types.
type MethodBody struct {
	Locals       []TypeRef
	Instructions []*Instruction
}

// NewMethodBody creates an empty body with the given locals.
func NewMethodBody(locals ...TypeRef) *MethodBody {
	return &MethodBody{
		Locals:       locals,
		Instructions: make([]*Instruction, 0, 64),
	}
}

// Append places inst at the end of the body and returns it.
func (b *MethodBody) Append(inst *Instruction) *Instruction {
	b.Instructions = append(b.Instructions, inst)
	return inst
}

// Emit appends a new instruction without an operand.
func (b *MethodBody) Emit(op OpCode) *Instruction {
	return b.Append(Create(op))
}

// Len returns the number of instructions.
func (b *MethodBody) Len() int {
	return len(b.Instructions)
}

// Index maps each instruction to its position in the body.
func (b *MethodBody) Index() map[*Instruction]int {
	idx := make(map[*Instruction]int, len(b.Instructions))
	for i, inst := range b.Instructions {
		idx[inst] = i
	}
	return idx
}

// Offsets returns the byte offset of every instruction, plus the total code
// size as the final element.
func (b *MethodBody) Offsets() []int {
	offsets := make([]int, len(b.Instructions)+1)
	for i, inst := range b.Instructions {
		offsets[i+1] = offsets[i] + inst.Size()
	}
	return offsets
}

// CodeSize returns the encoded size of the body's instructions.
func (b *MethodBody) CodeSize() int {
	offsets := b.Offsets()
	return offsets[len(offsets)-1]
}

// CheckTargets verifies that every branch target is part of the body.
func (b *MethodBody) CheckTargets() error {
	idx := b.Index()
	for i, inst := range b.Instructions {
		if !inst.OpCode.IsBranch() {
			continue
		}
		target := inst.Target()
		if target == nil {
			return fmt.Errorf("instruction %d (%s) has no branch target", i, inst.OpCode)
		}
		if _, ok := idx[target]; !ok {
			return fmt.Errorf("instruction %d (%s) branches outside the method body", i, inst.OpCode)
		}
	}
	return nil
}

// LabelFunc returns a function naming instructions by their byte offset,
// in the IL_xxxx style.
func (b *MethodBody) LabelFunc() func(*Instruction) string {
	idx := b.Index()
	offsets := b.Offsets()
	return func(inst *Instruction) string {
		i, ok := idx[inst]
		if !ok {
			return "IL_????"
		}
		return OffsetLabel(offsets[i])
	}
}

// OffsetLabel formats a byte offset as a label.
func OffsetLabel(offset int) string {
	return fmt.Sprintf("IL_%04x", offset)
}

// Format renders the body as one instruction per line.
func (b *MethodBody) Format() string {
	var sb strings.Builder
	label := b.LabelFunc()
	offsets := b.Offsets()
	for i, inst := range b.Instructions {
		sb.WriteString(OffsetLabel(offsets[i]))
		sb.WriteString(": ")
		sb.WriteString(inst.OpCode.String())
		if text := inst.OperandText(label); text != "" {
			sb.WriteByte(' ')
			sb.WriteString(text)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Equal reports whether two bodies have the same locals and instruction
// sequence. Branch targets are compared by position.
func Equal(a, b *MethodBody) bool {
	if len(a.Locals) != len(b.Locals) || len(a.Instructions) != len(b.Instructions) {
		return false
	}
	for i := range a.Locals {
		if a.Locals[i] != b.Locals[i] {
			return false
		}
	}

	idxA, idxB := a.Index(), b.Index()
	for i := range a.Instructions {
		x, y := a.Instructions[i], b.Instructions[i]
		if x.OpCode != y.OpCode {
			return false
		}
		if x.OpCode.IsBranch() {
			tx, okx := idxA[x.Target()]
			ty, oky := idxB[y.Target()]
			if okx != oky || tx != ty {
				return false
			}
			continue
		}
		if x.OperandText(nil) != y.OperandText(nil) {
			return false
		}
	}
	return true
}
