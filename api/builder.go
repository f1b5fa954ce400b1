package api

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/bfil/core"
)

// DriverBuilder creates a new instance of Driver.
type DriverBuilder struct {
	engine   sim.Engine
	freq     sim.Freq
	maxSteps int
}

// WithEngine sets the engine.
func (b DriverBuilder) WithEngine(engine sim.Engine) DriverBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the core the driver runs programs on.
func (b DriverBuilder) WithFreq(freq sim.Freq) DriverBuilder {
	b.freq = freq
	return b
}

// WithMaxSteps limits the number of instructions a program may execute.
// Zero means no limit.
func (b DriverBuilder) WithMaxSteps(n int) DriverBuilder {
	b.maxSteps = n
	return b
}

// Build create a driver. A serial engine and a 1 GHz clock are used unless
// configured.
func (b DriverBuilder) Build(name string) Driver {
	if b.engine == nil {
		b.engine = sim.NewSerialEngine()
	}
	if b.freq == 0 {
		b.freq = 1 * sim.GHz
	}

	d := &driverImpl{
		engine: b.engine,
	}

	d.core = core.NewBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithConsole(d).
		WithMaxSteps(b.maxSteps).
		Build(name + ".Core")

	return d
}
