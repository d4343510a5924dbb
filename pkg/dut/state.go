package dut

import (
	"sync/atomic"

	"github.com/robotalks/eol.go/pkg/bus"
	"github.com/robotalks/eol.go/pkg/eol"
	fx "github.com/robotalks/eol.go/pkg/framework"
	"github.com/robotalks/eol.go/pkg/signals"
)

// State is shared between the test bodies and the publisher task.
// Every field is accessed atomically.
type State struct {
	eeprom  atomic.Uint32
	decided atomic.Bool
	adc     atomic.Pointer[Scan]
}

// NewState creates State with nothing decided.
func NewState() *State {
	s := &State{}
	s.adc.Store(&Scan{})
	return s
}

// DecideEeprom records the EEPROM result. Only the first call in a boot
// takes effect, the return value tells whether it did.
func (s *State) DecideEeprom(status eol.EepromStatus) bool {
	if !s.decided.CompareAndSwap(false, true) {
		return false
	}
	s.eeprom.Store(uint32(status))
	return true
}

// EepromStatus returns the EEPROM result, NOT_RUN before decided.
func (s *State) EepromStatus() eol.EepromStatus {
	return eol.EepromStatus(s.eeprom.Load())
}

// SetAdcScan replaces the latest ADC scan.
func (s *State) SetAdcScan(scan Scan) {
	s.adc.Store(&scan)
}

// AdcScan returns the latest ADC scan.
func (s *State) AdcScan() Scan {
	return *s.adc.Load()
}

// Publish writes all DUT signals.
func (s *State) Publish(p bus.Publisher) {
	scan := s.AdcScan()
	p.Publish(signals.DutEepromTestStatus, int64(s.EepromStatus()))
	p.Publish(signals.DutAdcUniqueness, int64(scan.Uniqueness))
	if scan.Uniqueness == signals.UniquenessNone {
		p.Publish(signals.DutAdcActivePin, signals.AdcPinNone)
	} else {
		p.Publish(signals.DutAdcActivePin, int64(scan.Pin))
	}
	p.Publish(signals.DutAdcActiveMillivolts, int64(scan.Millivolts))
}

// Task is the periodic publisher of State.
func (s *State) Task(p bus.Publisher) *fx.RateFuncs {
	return &fx.RateFuncs{
		Name:  "dut-tx",
		Hz100: func() { s.Publish(p) },
	}
}
