package core

import (
	"github.com/sarchlab/akita/v4/sim"
)

// Builder can create new cores.
type Builder struct {
	engine   sim.Engine
	freq     sim.Freq
	console  Console
	maxSteps int
}

// NewBuilder returns a builder with a 1 GHz clock and no step limit.
func NewBuilder() Builder {
	return Builder{
		freq: 1 * sim.GHz,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the core.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithConsole sets the console the program reads and writes.
func (b Builder) WithConsole(console Console) Builder {
	b.console = console
	return b
}

// WithMaxSteps limits the number of executed instructions. Zero means no
// limit.
func (b Builder) WithMaxSteps(n int) Builder {
	b.maxSteps = n
	return b
}

// Build creates a core.
func (b Builder) Build(name string) *Core {
	c := &Core{
		emu: newInstEmulator(),
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	c.state = coreState{
		Stack:    make([]value, 0, 8),
		MaxSteps: b.maxSteps,
		Console:  b.console,
	}

	return c
}
