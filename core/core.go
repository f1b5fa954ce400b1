// Package core executes method bodies on a simulated stack machine.
package core

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/bfil/il"
)

// Core runs one method body, one instruction per tick.
type Core struct {
	*sim.TickingComponent

	state coreState
	emu   instEmulator
}

// MapProgram sets the method body the core runs and schedules the first
// tick on the next cycle. Locals start zeroed. A core may be remapped after
// its previous program halted.
func (c *Core) MapProgram(body *il.MethodBody) {
	c.state.Body = body
	c.state.Index = body.Index()
	c.state.PC = 0
	c.state.NextPC = 0
	c.state.Stack = c.state.Stack[:0]
	c.state.Locals = make([]value, len(body.Locals))
	c.state.Steps = 0
	c.state.Halted = false
	c.state.Err = nil

	for i, t := range body.Locals {
		switch t {
		case il.TypeByteArray:
			c.state.Locals[i] = value{kind: kindArray}
		case il.TypeConsoleKeyInfo:
			c.state.Locals[i] = value{kind: kindKeyInfo}
		default:
			c.state.Locals[i] = int32Value(0)
		}
	}

	c.TickLater()
}

// SetConsole replaces the console.
func (c *Core) SetConsole(console Console) {
	c.state.Console = console
}

// Tick runs the program for one cycle.
func (c *Core) Tick() (madeProgress bool) {
	if c.state.Halted || c.state.Body == nil {
		return false
	}

	if c.state.MaxSteps > 0 && c.state.Steps >= c.state.MaxSteps {
		c.halt(fmt.Errorf("%w: %d", ErrStepLimit, c.state.MaxSteps))
		return false
	}

	if c.state.PC < 0 || c.state.PC >= c.state.Body.Len() {
		c.halt(fmt.Errorf("%w: execution ran past the end of the method", ErrInvalidProgram))
		return false
	}

	inst := c.state.Body.Instructions[c.state.PC]
	pc := c.state.PC

	err := c.emu.RunInst(inst, &c.state)
	c.state.Steps++

	Trace("Inst",
		"Time", float64(c.Engine.CurrentTime()*1e9),
		"Core", c.Name(),
		"PC", pc,
		"Inst", inst.String(),
		"Stack", len(c.state.Stack),
	)

	if err != nil {
		c.halt(fmt.Errorf("instruction %d (%s): %w", pc, inst.OpCode, err))
		return true
	}

	if c.state.Halted {
		c.halt(nil)
	}

	return true
}

func (c *Core) halt(err error) {
	c.state.Halted = true
	c.state.Err = err

	if err != nil {
		Trace("Halt", "Core", c.Name(), "Steps", c.state.Steps, "Error", err.Error())
	} else {
		Trace("Halt", "Core", c.Name(), "Steps", c.state.Steps)
	}

	LogState(c)
}

// Err returns the error that stopped the program, if any.
func (c *Core) Err() error {
	return c.state.Err
}

// Halted reports whether the program has stopped.
func (c *Core) Halted() bool {
	return c.state.Halted
}

// Steps returns the number of executed instructions.
func (c *Core) Steps() int {
	return c.state.Steps
}

// Cells returns the tape: the first byte array local, or nil.
func (c *Core) Cells() []byte {
	for _, v := range c.state.Locals {
		if v.kind == kindArray && v.arr != nil {
			return v.arr
		}
	}
	return nil
}

// Pointer returns the first int32 local, the tape pointer of compiled
// programs.
func (c *Core) Pointer() int {
	for _, v := range c.state.Locals {
		if v.kind == kindInt32 {
			return int(v.i)
		}
	}
	return 0
}
