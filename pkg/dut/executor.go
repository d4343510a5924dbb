// Package dut implements the test firmware running on the device under
// test. It runs the EEPROM self test once per boot, then follows the
// test phase published by TESTER: mirroring GPIO commands onto its pins
// and scanning its analog inputs.
package dut

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/robotalks/eol.go/pkg/board"
	"github.com/robotalks/eol.go/pkg/bus"
	"github.com/robotalks/eol.go/pkg/eol"
	fx "github.com/robotalks/eol.go/pkg/framework"
	"github.com/robotalks/eol.go/pkg/hw"
	"github.com/robotalks/eol.go/pkg/signals"
)

// Defaults of Executor.
const (
	DefaultPollInterval = 2 * time.Millisecond
	DefaultPeerWait     = 10 * time.Second
)

// ErrTesterAbsent is returned when TESTER never shows up on the bus.
var ErrTesterAbsent = errors.New("TESTER never became live")

// Executor is the DUT test firmware for one boot.
type Executor struct {
	Bus       bus.ReadPublisher
	Profile   *board.Profile
	Pins      board.Pins
	GPIO      hw.GPIO
	ADC       hw.ADC
	EEPROM    hw.EEPROM
	Restarter hw.Restarter
	State     *State

	PollInterval time.Duration
	// PeerWait bounds the wait for TESTER after boot.
	PeerWait time.Duration
}

func (e *Executor) pollInterval() time.Duration {
	if e.PollInterval > 0 {
		return e.PollInterval
	}
	return DefaultPollInterval
}

// Run implements Runnable. It publishes State while the test sequence
// runs and restarts the firmware when the sequence ends.
func (e *Executor) Run(ctx context.Context) error {
	if e.State == nil {
		e.State = NewState()
	}
	taskCtx, cancel := context.WithCancel(ctx)
	taskDone := make(chan struct{})
	go func() {
		fx.NewTasking(e.State.Task(e.Bus)).Run(taskCtx)
		close(taskDone)
	}()
	err := e.Sequence(ctx)
	cancel()
	<-taskDone
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		glog.Errorf("DUT test sequence aborted: %v", err)
	} else {
		glog.Info("DUT test sequence done")
	}
	e.Restarter.Restart()
	return err
}

// Sequence runs the EEPROM test, then serves the phases published by
// TESTER until TESTER returns to NONE after at least one phase.
func (e *Executor) Sequence(ctx context.Context) error {
	if status := e.EepromTest(); !e.State.DecideEeprom(status) {
		glog.Warning("EEPROM status already decided in this boot")
	}
	if err := e.waitForTester(ctx); err != nil {
		return err
	}
	var ranGpio, ranAdc bool
	for {
		if !e.Bus.IsNodeLive(signals.TESTER) {
			return fmt.Errorf("waiting for test phase: %w", bus.ErrPeerLost)
		}
		switch phase := signals.TestPhase(e.Bus.Read(signals.TesterCurrentTest)); phase {
		case signals.PhaseGpioTest:
			if !ranGpio {
				ranGpio = true
				if err := e.phaseDone(ctx, "GPIO", e.GpioTest(ctx)); err != nil {
					return err
				}
			}
		case signals.PhaseAdcTest:
			if !ranAdc {
				ranAdc = true
				if err := e.phaseDone(ctx, "ADC", e.AdcTest(ctx)); err != nil {
					return err
				}
			}
		case signals.PhaseNone:
			if ranGpio || ranAdc {
				return nil
			}
		default:
			glog.V(2).Infof("ignore unknown test phase %v", phase)
		}
		if err := fx.Sleep(ctx, e.pollInterval()); err != nil {
			return err
		}
	}
}

// phaseDone decides whether an error from a phase ends the sequence.
// A lost peer or a cancelled context does, a hardware failure only ends
// that phase.
func (e *Executor) phaseDone(ctx context.Context, name string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, bus.ErrPeerLost) {
		return err
	}
	glog.Errorf("%s test: %v", name, err)
	return nil
}

func (e *Executor) waitForTester(ctx context.Context) error {
	wait := e.PeerWait
	if wait == 0 {
		wait = DefaultPeerWait
	}
	deadline := time.Now().Add(wait)
	for !e.Bus.IsNodeLive(signals.TESTER) {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %v: %w", ErrTesterAbsent, wait, bus.ErrPeerLost)
		}
		if err := fx.Sleep(ctx, e.pollInterval()); err != nil {
			return err
		}
	}
	glog.Info("TESTER is live")
	return nil
}

// EepromTest writes the pattern and reads it back once.
func (e *Executor) EepromTest() eol.EepromStatus {
	addr, pattern := e.Profile.Eeprom.Address, []byte(e.Profile.Eeprom.Pattern)
	if err := e.EEPROM.Write(addr, pattern); err != nil {
		glog.Errorf("EEPROM write: %v", err)
		return eol.EepromFail
	}
	buf := make([]byte, len(pattern))
	if err := e.EEPROM.Read(addr, buf); err != nil {
		glog.Errorf("EEPROM read: %v", err)
		return eol.EepromFail
	}
	if !bytes.Equal(buf, pattern) {
		glog.Errorf("EEPROM mismatch at %#04x: wrote %x, read %x", addr, pattern, buf)
		return eol.EepromFail
	}
	glog.Info("EEPROM test passed")
	return eol.EepromPass
}

func (e *Executor) release(pins []board.Pin) {
	if err := e.GPIO.SetDirection(pins, hw.Input); err != nil {
		glog.Errorf("release pins: %v", err)
	}
}

// GpioTest mirrors the TESTER GPIO command onto the pins while the
// phase is GPIO_TEST.
func (e *Executor) GpioTest(ctx context.Context) error {
	pins := e.Pins.Gpio
	glog.Info("GPIO test start")
	if err := e.GPIO.SetDirection(pins, hw.Output); err != nil {
		return err
	}
	defer e.release(pins)
	for {
		if !e.Bus.IsNodeLive(signals.TESTER) {
			return fmt.Errorf("GPIO test: %w", bus.ErrPeerLost)
		}
		if signals.TestPhase(e.Bus.Read(signals.TesterCurrentTest)) != signals.PhaseGpioTest {
			glog.Info("GPIO test end")
			return nil
		}
		var mask uint64
		if cmd := e.Bus.Read(signals.TesterCurrentGpio); cmd >= 0 && cmd < board.MaxPins {
			mask = uint64(1) << uint(cmd)
		}
		if err := e.GPIO.Write(pins, mask); err != nil {
			return err
		}
		if err := fx.Sleep(ctx, e.pollInterval()); err != nil {
			return err
		}
	}
}

// AdcTest publishes the classification of the latest scan while the
// phase is ADC_TEST.
func (e *Executor) AdcTest(ctx context.Context) error {
	pins := e.Pins.Adc
	glog.Info("ADC test start")
	if err := e.GPIO.SetDirection(pins, hw.Input); err != nil {
		return err
	}
	interval := e.Profile.Adc.ScanInterval()
	for {
		if !e.Bus.IsNodeLive(signals.TESTER) {
			return fmt.Errorf("ADC test: %w", bus.ErrPeerLost)
		}
		if signals.TestPhase(e.Bus.Read(signals.TesterCurrentTest)) != signals.PhaseAdcTest {
			glog.Info("ADC test end")
			return nil
		}
		scan, err := e.scanAdc(pins)
		if err != nil {
			return err
		}
		e.State.SetAdcScan(scan)
		glog.V(3).Infof("ADC scan %v pin %d %dmV", scan.Uniqueness, scan.Pin, scan.Millivolts)
		if err := fx.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
