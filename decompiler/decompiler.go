// Package decompiler recovers tape-language programs from method bodies
// generated by package compiler.
//
// It is a structural recognizer: the body must consist of exactly the
// instruction templates the compiler emits. Semantically equivalent but
// differently encoded bodies are rejected.
package decompiler

import (
	"errors"
	"fmt"

	"github.com/sarchlab/bfil/bf"
	"github.com/sarchlab/bfil/config"
	"github.com/sarchlab/bfil/il"
)

var (
	// ErrUnexpectedMethodPrologue is reported when the body does not start
	// with the tape and pointer allocation.
	ErrUnexpectedMethodPrologue = errors.New("unexpected method prologue")
	// ErrUnexpectedOpcode is reported when no template matches at the cursor.
	ErrUnexpectedOpcode = errors.New("unexpected opcode")
)

// UnexpectedOpcodeError locates an unrecognized instruction window.
type UnexpectedOpcodeError struct {
	Position int
	OpCode   il.OpCode
}

func (e *UnexpectedOpcodeError) Error() string {
	return fmt.Sprintf("unexpected opcode (%d): %s", e.Position, e.OpCode)
}

// Is makes errors.Is(err, ErrUnexpectedOpcode) hold.
func (e *UnexpectedOpcodeError) Is(target error) bool {
	return target == ErrUnexpectedOpcode
}

// Decompilation is the result of decompiling a method body.
type Decompilation struct {
	Program        bf.Program
	CellCount      int
	InterceptInput bool
}

var prologue = []il.OpCode{il.LdcI4, il.Newarr, il.Stloc0, il.LdcI4Zero, il.Stloc1}

// Decompile recovers the program and options from a generated entry method
// body. Scanning stops at the first ret.
func Decompile(body *il.MethodBody, _ config.DecompileOptions) (*Decompilation, error) {
	insts := body.Instructions
	if !windowMatches(insts, 0, prologue) {
		return nil, ErrUnexpectedMethodPrologue
	}
	if t, _ := insts[1].Type(); t != il.TypeByte {
		return nil, fmt.Errorf("%w: tape element type %s", ErrUnexpectedMethodPrologue, t)
	}
	cells, _ := insts[0].Int()

	d := &Decompilation{
		Program:   bf.Program{Tokens: make([]bf.Token, 0, len(insts)/4)},
		CellCount: int(cells),
	}

	cursor := len(prologue)
	for cursor < len(insts) {
		if insts[cursor].OpCode == il.Ret {
			break
		}

		m := match(insts, cursor)
		if m == nil {
			return nil, &UnexpectedOpcodeError{Position: cursor, OpCode: insts[cursor].OpCode}
		}

		d.Program.Tokens = append(d.Program.Tokens, m.token)
		if m.intercept != nil {
			d.InterceptInput = *m.intercept
		}
		cursor += len(m.window)
	}

	return d, nil
}

// match returns the first template whose window matches at cursor.
func match(insts []*il.Instruction, cursor int) *template {
	for i := range templates {
		if windowMatches(insts, cursor, templates[i].window) {
			return &templates[i]
		}
	}
	return nil
}

func windowMatches(insts []*il.Instruction, at int, window []il.OpCode) bool {
	if at+len(window) > len(insts) {
		return false
	}
	for i, op := range window {
		if insts[at+i].OpCode != op {
			return false
		}
	}
	return true
}
