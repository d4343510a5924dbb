// Package bench assembles a complete simulated test bench: the fixture,
// both boards running the test firmware on their own bus, the bridges
// connecting the buses and the TESTER console.
package bench

import (
	"context"
	"time"

	"github.com/robotalks/eol.go/pkg/board"
	"github.com/robotalks/eol.go/pkg/bus"
	"github.com/robotalks/eol.go/pkg/dut"
	fx "github.com/robotalks/eol.go/pkg/framework"
	"github.com/robotalks/eol.go/pkg/hw"
	"github.com/robotalks/eol.go/pkg/signals"
	"github.com/robotalks/eol.go/pkg/sim"
	"github.com/robotalks/eol.go/pkg/tester"
)

// Defaults of Bench. The DUT boots slower than TESTER restarts so that
// TESTER always sees the DUT reboot.
const (
	DefaultDUTBootDelay    = 2 * time.Second
	DefaultTesterBootDelay = 100 * time.Millisecond
)

// Bench is a simulated fixture with both boards.
type Bench struct {
	Profile *board.Profile
	Fixture *sim.Fixture
	Console *Console

	DUTBus     *bus.Bus
	TesterBus  *bus.Bus
	DUTLink    bus.Link
	TesterLink bus.Link

	DUTBootDelay    time.Duration
	TesterBootDelay time.Duration
	// RestartDelay is the pause of TESTER after printing results.
	RestartDelay time.Duration
	// DUTPollInterval and TesterPollInterval override firmware defaults.
	DUTPollInterval    time.Duration
	TesterPollInterval time.Duration
}

// New creates a Bench with both buses connected by an in-process pipe.
func New(profile *board.Profile) *Bench {
	dutLink, testerLink := bus.NewPipe(64)
	return &Bench{
		Profile:         profile,
		Fixture:         sim.NewFixture(profile.Adc.PwmResolutionBits),
		Console:         &Console{},
		DUTBus:          signals.NewBus(),
		TesterBus:       signals.NewBus(),
		DUTLink:         dutLink,
		TesterLink:      testerLink,
		DUTBootDelay:    DefaultDUTBootDelay,
		TesterBootDelay: DefaultTesterBootDelay,
		RestartDelay:    tester.DefaultRestartDelay,
	}
}

// DUTImage is the DUT firmware.
func (b *Bench) DUTImage(r hw.Restarter) fx.Runnable {
	d := b.Fixture.DUT()
	return &dut.Executor{
		Bus:          b.DUTBus.Port(signals.DUT),
		Profile:      b.Profile,
		Pins:         b.Profile.Pins(),
		GPIO:         d,
		ADC:          d,
		EEPROM:       d.EEPROM(),
		Restarter:    r,
		PollInterval: b.DUTPollInterval,
	}
}

// TesterImage is the TESTER firmware.
func (b *Bench) TesterImage(r hw.Restarter) fx.Runnable {
	t := b.Fixture.Tester()
	return &tester.Executor{
		Bus:          b.TesterBus.Port(signals.TESTER),
		Profile:      b.Profile,
		Pins:         b.Profile.Pins(),
		GPIO:         t,
		PWM:          t,
		Restarter:    r,
		Console:      b.Console,
		PollInterval: b.TesterPollInterval,
		RestartDelay: b.RestartDelay,
	}
}

// Runnables are the boards and the bridges.
func (b *Bench) Runnables() []fx.Runnable {
	return []fx.Runnable{
		&sim.MCU{
			Node:      signals.DUT,
			Bus:       b.DUTBus,
			Image:     b.DUTImage,
			BootDelay: b.DUTBootDelay,
			OnReset:   b.Fixture.PowerCycleDUT,
		},
		&sim.MCU{
			Node:      signals.TESTER,
			Bus:       b.TesterBus,
			Image:     b.TesterImage,
			BootDelay: b.TesterBootDelay,
		},
		fx.NamedRun("dut-bridge", &bus.Bridge{Bus: b.DUTBus, Node: signals.DUT, Link: b.DUTLink}),
		fx.NamedRun("tester-bridge", &bus.Bridge{Bus: b.TesterBus, Node: signals.TESTER, Link: b.TesterLink}),
	}
}

// Run runs the bench until ctx is done.
func (b *Bench) Run(ctx context.Context) error {
	return fx.NewRunnerWith(ctx).Go(b.Runnables()...).Wait()
}
