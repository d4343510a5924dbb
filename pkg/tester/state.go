package tester

import (
	"sync/atomic"

	"github.com/robotalks/eol.go/pkg/bus"
	fx "github.com/robotalks/eol.go/pkg/framework"
	"github.com/robotalks/eol.go/pkg/signals"
)

// State holds the values TESTER publishes.
type State struct {
	phase atomic.Int64
	gpio  atomic.Int64
}

// NewState creates State in phase NONE with no GPIO commanded.
func NewState() *State {
	s := &State{}
	s.phase.Store(int64(signals.PhaseNone))
	s.gpio.Store(signals.GpioNone)
	return s
}

// SetPhase sets the published test phase.
func (s *State) SetPhase(p signals.TestPhase) {
	s.phase.Store(int64(p))
}

// Phase returns the published test phase.
func (s *State) Phase() signals.TestPhase {
	return signals.TestPhase(s.phase.Load())
}

// SetGpio commands a pin, signals.GpioNone for none.
func (s *State) SetGpio(pin int64) {
	s.gpio.Store(pin)
}

// Publish writes all TESTER signals.
func (s *State) Publish(p bus.Publisher) {
	p.Publish(signals.TesterCurrentTest, s.phase.Load())
	p.Publish(signals.TesterCurrentGpio, s.gpio.Load())
}

// Task is the periodic publisher of State.
func (s *State) Task(p bus.Publisher) *fx.RateFuncs {
	return &fx.RateFuncs{
		Name:  "tester-tx",
		Hz100: func() { s.Publish(p) },
	}
}
