// Package api defines the driver API for running compiled programs.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/bfil/core"
	"github.com/sarchlab/bfil/il"
)

var (
	// ErrInputExhausted is reported when a program reads more input than
	// was fed in.
	ErrInputExhausted = errors.New("input exhausted")
	// ErrNoProgram is reported by Run when no program is mapped.
	ErrNoProgram = errors.New("no program mapped")
)

// Driver provides the interface to run a program on a core. The driver is
// the program's console: key reads consume fed-in bytes and writes are
// collected.
type Driver interface {
	// FeedIn queues input bytes. Each key read consumes one byte.
	FeedIn(data []byte)

	// Collect returns everything the program has written so far, including
	// echoed keys.
	Collect() []byte

	// MapProgram loads a method body onto the core.
	MapProgram(body *il.MethodBody)

	// Run runs the mapped program until it returns or fails.
	Run() error

	// Core returns the core the driver runs programs on.
	Core() *core.Core
}

type driverImpl struct {
	engine sim.Engine
	core   *core.Core
	mapped bool

	input  []byte
	output []byte
}

func (d *driverImpl) FeedIn(data []byte) {
	d.input = append(d.input, data...)
}

func (d *driverImpl) Collect() []byte {
	out := make([]byte, len(d.output))
	copy(out, d.output)
	return out
}

// MapProgram dispatches a program to the core.
func (d *driverImpl) MapProgram(body *il.MethodBody) {
	d.core.MapProgram(body)
	d.mapped = true
}

// Run runs all the tasks in the driver.
func (d *driverImpl) Run() error {
	if !d.mapped {
		return ErrNoProgram
	}
	d.mapped = false

	if err := d.engine.Run(); err != nil {
		return err
	}

	slog.Debug("program finished",
		"core", d.core.Name(),
		"steps", d.core.Steps(),
		"output_bytes", len(d.output),
		"input_left", len(d.input),
	)

	if !d.core.Halted() {
		return fmt.Errorf("core %s stopped before the program returned", d.core.Name())
	}
	return d.core.Err()
}

func (d *driverImpl) Core() *core.Core {
	return d.core
}

// Write collects one character, UTF-8 encoded.
func (d *driverImpl) Write(ch uint16) error {
	d.output = utf8.AppendRune(d.output, rune(ch))
	return nil
}

// ReadKey consumes one fed-in byte, echoing it unless intercepted.
func (d *driverImpl) ReadKey(intercept bool) (uint16, error) {
	if len(d.input) == 0 {
		return 0, ErrInputExhausted
	}

	b := d.input[0]
	d.input = d.input[1:]

	if !intercept {
		if err := d.Write(uint16(b)); err != nil {
			return 0, err
		}
	}

	return uint16(b), nil
}
