// Package psu drives the bench power supply feeding the fixture and
// checks the rails of the unit under test.
package psu

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	fx "github.com/robotalks/eol.go/pkg/framework"
)

// ErrVoltageOutOfRange is returned when a setting exceeds the channel limit.
var ErrVoltageOutOfRange = errors.New("voltage out of range")

// Channel is an output channel of the supply, starting at 1.
type Channel uint8

// MaxVolts is the highest voltage the channel can output.
func (c Channel) MaxVolts() float64 {
	switch c {
	case 1:
		return 15
	case 2, 3:
		return 32
	case 4:
		return 5
	}
	return 0
}

func (c Channel) String() string {
	return fmt.Sprintf("channel %d", uint8(c))
}

// Supply is a programmable multi-channel power supply.
type Supply interface {
	AllOutputsOff() error
	AllOutputsOn() error
	SetVoltage(ch Channel, volts float64) error
	SetCurrent(ch Channel, amps float64) error
	// SetLoadCV puts a channel in constant voltage load mode.
	SetLoadCV(ch Channel) error
}

// Meter measures voltages.
type Meter interface {
	MeasureVoltage(ch Channel) (float64, error)
}

// Rail is a supply rail of the unit and its acceptable range [Min, Max).
type Rail struct {
	Name    string
	Channel Channel
	Min     float64
	Max     float64
}

// Contains tells if volts is in range.
func (r Rail) Contains(volts float64) bool {
	return volts >= r.Min && volts < r.Max
}

// DefaultRails are the rails of the current board revision, measured
// by the load channels of the supply.
var DefaultRails = []Rail{
	{Name: "3V3", Channel: 1, Min: 3.27, Max: 3.35},
	{Name: "5V0", Channel: 2, Min: 4.98, Max: 5.02},
}

// Input is the supply channel powering the unit.
var Input = struct {
	Channel Channel
	Volts   float64
	Amps    float64
}{Channel: 4, Volts: 15, Amps: 1.1}

// RailError reports a rail out of range.
type RailError struct {
	Rail  Rail
	Volts float64
}

// Error implements error.
func (e *RailError) Error() string {
	return fmt.Sprintf("%s out of range: acceptable is [%.2f, %.2f), actual was %.2f",
		e.Rail.Name, e.Rail.Min, e.Rail.Max, e.Volts)
}

// Prepare turns the unit on: input channel powering the board, rail
// channels in load mode to measure the on-board regulators.
func Prepare(s Supply, rails []Rail) error {
	if err := s.AllOutputsOff(); err != nil {
		return err
	}
	if err := s.SetVoltage(Input.Channel, Input.Volts); err != nil {
		return err
	}
	if err := s.SetCurrent(Input.Channel, Input.Amps); err != nil {
		return err
	}
	for _, rail := range rails {
		if err := s.SetVoltage(rail.Channel, 0); err != nil {
			return err
		}
		if err := s.SetCurrent(rail.Channel, 0); err != nil {
			return err
		}
		if err := s.SetLoadCV(rail.Channel); err != nil {
			return err
		}
	}
	return s.AllOutputsOn()
}

// CheckRails measures all rails. All out-of-range rails are reported.
func CheckRails(m Meter, rails []Rail) error {
	var errs fx.AggregatedError
	for _, rail := range rails {
		volts, err := m.MeasureVoltage(rail.Channel)
		if err != nil {
			errs.Add(fmt.Errorf("measure %s: %w", rail.Name, err))
			continue
		}
		if !rail.Contains(volts) {
			errs.Add(&RailError{Rail: rail, Volts: volts})
			continue
		}
		glog.Infof("rail %s: %.3fV", rail.Name, volts)
	}
	return errs.Aggregate()
}

// Power prepares the supply before a unit is tested and checks the
// rails afterwards.
type Power struct {
	Supply Supply
	Meter  Meter
	Rails  []Rail
	// Settle is the time for the supply to stabilize after power up.
	Settle time.Duration
}

// Up powers the unit and waits for it to settle.
func (p *Power) Up() error {
	glog.Info("configuring and enabling power supply")
	if err := Prepare(p.Supply, p.Rails); err != nil {
		return fmt.Errorf("prepare power supply: %w", err)
	}
	time.Sleep(p.Settle)
	glog.Info("power supply ready")
	return nil
}

// Check verifies the rails.
func (p *Power) Check() error {
	return CheckRails(p.Meter, p.Rails)
}

// Down turns all outputs off.
func (p *Power) Down() error {
	return p.Supply.AllOutputsOff()
}
