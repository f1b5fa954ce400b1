// Package compiler translates tape-language programs into the body of a
// single entry method.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sarchlab/bfil/bf"
	"github.com/sarchlab/bfil/config"
	"github.com/sarchlab/bfil/il"
)

// Local variable slots of the generated entry method.
const (
	SlotCells  = 0
	SlotPtr    = 1
	SlotKeyBuf = 2
)

// Locals are the local variable types of every generated entry method.
var Locals = []il.TypeRef{il.TypeByteArray, il.TypeInt32, il.TypeConsoleKeyInfo}

var (
	// ErrUnmatchedLoopEnd is reported for a ']' without an open loop.
	ErrUnmatchedLoopEnd = errors.New("unmatched ']' encountered")
	// ErrUnmatchedLoopStart is reported when loops are still open at the end
	// of the source.
	ErrUnmatchedLoopStart = errors.New("unmatched '[' encountered")
)

// SyntaxError ties a bracket error to its source offset.
type SyntaxError struct {
	Offset int
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// loopFrame holds the two labels of an open loop. Both are placed later:
// body right after the entry jump, head at the matching ']'.
type loopFrame struct {
	head  *il.Instruction
	body  *il.Instruction
	start int
}

// Compiler generates one method body. A Compiler is single use.
type Compiler struct {
	opts     config.CompileOptions
	body     *il.MethodBody
	loops    []loopFrame
	maxDepth int
}

// NewCompiler creates a compiler for the given options.
func NewCompiler(opts config.CompileOptions) *Compiler {
	return &Compiler{
		opts:  opts,
		body:  il.NewMethodBody(Locals...),
		loops: make([]loopFrame, 0, 8),
	}
}

// Compile parses source and compiles it. Characters other than the eight
// commands are ignored.
func Compile(source string, opts config.CompileOptions) (*il.MethodBody, error) {
	return CompileProgram(bf.Parse(source), opts)
}

// CompileProgram compiles a parsed program.
func CompileProgram(prog bf.Program, opts config.CompileOptions) (*il.MethodBody, error) {
	return NewCompiler(opts).Compile(prog)
}

// Compile generates the entry method body for prog.
func (c *Compiler) Compile(prog bf.Program) (*il.MethodBody, error) {
	if err := c.opts.Validate(); err != nil {
		return nil, err
	}

	c.emitPrologue()

	for i, tok := range prog.Tokens {
		if err := c.compileToken(tok, prog.Offset(i)); err != nil {
			return nil, err
		}
	}

	if n := len(c.loops); n > 0 {
		return nil, &SyntaxError{Offset: c.loops[n-1].start, Err: ErrUnmatchedLoopStart}
	}

	c.body.Emit(il.Ret)

	slog.Debug("compiled program",
		"name", c.opts.Name,
		"tokens", prog.Len(),
		"instructions", c.body.Len(),
		"max_loop_depth", c.maxDepth,
	)

	return c.body, nil
}

// emitPrologue allocates the tape and zeroes the pointer.
func (c *Compiler) emitPrologue() {
	// byte[] cells = new byte[CellCount];
	c.emitInt(int32(c.opts.CellCount))
	c.body.Append(il.CreateType(il.Newarr, il.TypeByte))
	c.emit(il.Stloc0)

	// int ptr = 0;
	c.emit(il.LdcI4Zero)
	c.emit(il.Stloc1)
}

func (c *Compiler) compileToken(tok bf.Token, offset int) error {
	switch tok {
	case bf.MoveRight:
		c.compilePointerMove(il.Add)
	case bf.MoveLeft:
		c.compilePointerMove(il.Sub)
	case bf.Increment:
		c.compileCellUpdate(il.Add)
	case bf.Decrement:
		c.compileCellUpdate(il.Sub)
	case bf.Output:
		c.compileOutput()
	case bf.Input:
		c.compileInput()
	case bf.LoopStart:
		c.compileLoopStart(offset)
	case bf.LoopEnd:
		return c.compileLoopEnd(offset)
	default:
		return fmt.Errorf("offset %d: unexpected token %s", offset, tok.Name())
	}
	return nil
}

// ptr = ptr (+|-) 1;
func (c *Compiler) compilePointerMove(op il.OpCode) {
	c.emit(il.Ldloc1)
	c.emit(il.LdcI4One)
	c.emit(op)
	c.emit(il.Stloc1)
}

// cells[ptr] = (byte)(cells[ptr] (+|-) 1);
func (c *Compiler) compileCellUpdate(op il.OpCode) {
	c.emit(il.Ldloc0)
	c.emit(il.Ldloc1)
	c.body.Append(il.CreateType(il.Ldelema, il.TypeByte))
	c.emit(il.Dup)
	c.emit(il.LdindU1)
	c.emit(il.LdcI4One)
	c.emit(op)
	c.emit(il.ConvU1)
	c.emit(il.StindI1)
}

// Console.Write((char)cells[ptr]);
func (c *Compiler) compileOutput() {
	c.emit(il.Ldloc0)
	c.emit(il.Ldloc1)
	c.emit(il.LdelemU1)
	c.body.Append(il.CreateMethod(il.Call, il.MethodConsoleWrite))
}

// keyBuf = Console.ReadKey(intercept); cells[ptr] = (byte)keyBuf.KeyChar;
func (c *Compiler) compileInput() {
	c.emit(il.Ldloc0)
	c.emit(il.Ldloc1)
	if c.opts.InterceptInput {
		c.emit(il.LdcI4One)
	} else {
		c.emit(il.LdcI4Zero)
	}
	c.body.Append(il.CreateMethod(il.Call, il.MethodConsoleReadKey))
	c.emit(il.Stloc2)
	c.body.Append(il.CreateVar(il.LdlocaS, SlotKeyBuf))
	c.body.Append(il.CreateMethod(il.Call, il.MethodKeyChar))
	c.emit(il.ConvU1)
	c.emit(il.StelemI1)
}

// goto head; body:
func (c *Compiler) compileLoopStart(offset int) {
	frame := loopFrame{
		head:  il.Create(il.Nop),
		body:  il.Create(il.Nop),
		start: offset,
	}

	c.body.Append(il.CreateBranch(il.Br, frame.head))
	c.body.Append(frame.body)

	c.loops = append(c.loops, frame)
	if len(c.loops) > c.maxDepth {
		c.maxDepth = len(c.loops)
	}
}

// head: if (cells[ptr] != 0) goto body;
func (c *Compiler) compileLoopEnd(offset int) error {
	n := len(c.loops)
	if n == 0 {
		return &SyntaxError{Offset: offset, Err: ErrUnmatchedLoopEnd}
	}
	frame := c.loops[n-1]
	c.loops = c.loops[:n-1]

	c.body.Append(frame.head)
	c.emit(il.Ldloc0)
	c.emit(il.Ldloc1)
	c.emit(il.LdelemU1)
	c.body.Append(il.CreateBranch(il.Brtrue, frame.body))

	return nil
}

func (c *Compiler) emit(op il.OpCode) {
	c.body.Emit(op)
}

// emitInt pushes a constant using the general ldc.i4 form, which the
// decompiler reads the cell count from.
func (c *Compiler) emitInt(v int32) {
	c.body.Append(il.CreateInt(il.LdcI4, v))
}
