// Package tester implements the test firmware running on the fixture.
// It waits for a freshly booted DUT, drives the GPIO and ADC tests over
// the bus, and prints the results record on its console.
package tester

import (
	"context"
	"errors"
	"fmt"
	"io"
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
	DefaultPollInterval = 20 * time.Millisecond
	DefaultRestartDelay = time.Second
)

// Executor is the TESTER test firmware for one boot.
type Executor struct {
	Bus       bus.ReadPublisher
	Profile   *board.Profile
	Pins      board.Pins
	GPIO      hw.GPIO
	PWM       hw.PWM
	Restarter hw.Restarter
	State     *State
	// Console receives informational lines and the results line.
	Console io.Writer

	PollInterval time.Duration
	// RestartDelay is the pause between printing results and restarting.
	RestartDelay time.Duration
}

func (e *Executor) pollInterval() time.Duration {
	if e.PollInterval > 0 {
		return e.PollInterval
	}
	return DefaultPollInterval
}

func (e *Executor) say(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	glog.Info(line)
	if e.Console != nil {
		fmt.Fprintln(e.Console, line)
	}
}

// Run implements Runnable. It publishes State while the test sequence
// runs and restarts the firmware afterwards.
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
	_, err := e.Sequence(ctx)
	cancel()
	<-taskDone
	if ctx.Err() != nil {
		return ctx.Err()
	}
	e.Restarter.Restart()
	return err
}

// Sequence runs one full test of a unit and prints the results.
func (e *Executor) Sequence(ctx context.Context) (*eol.TestResults, error) {
	e.say("# waiting for DUT to boot")
	if err := e.WaitForDUTReboot(ctx); err != nil {
		return nil, err
	}
	e.say("# DUT booted")

	results := &eol.TestResults{}
	if err := e.GpioTest(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.say("# GPIO test failed: %v", err)
	} else {
		results.GpioResult = true
		e.say("# GPIO test passed")
	}

	adc, err := e.AdcTest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.say("# ADC test failed: %v", err)
	} else {
		results.AdcResult = &adc
		e.say("# ADC test passed, worst pin %d at %+d mV", adc.Pin, adc.ToleranceMillivolts)
	}

	// DUT restarts as soon as the phase returns to NONE, read its EEPROM
	// status before that.
	results.EepromResult = e.eepromStatus()
	e.State.SetPhase(signals.PhaseNone)

	line, err := results.Line()
	if err != nil {
		return nil, err
	}
	if e.Console != nil {
		if _, err := fmt.Fprintln(e.Console, line); err != nil {
			glog.Errorf("write results: %v", err)
		}
	}
	glog.Infof("results: %s", line)

	delay := e.RestartDelay
	if delay == 0 {
		delay = DefaultRestartDelay
	}
	if err := fx.Sleep(ctx, delay); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Executor) eepromStatus() eol.EepromStatus {
	val := e.Bus.Read(signals.DutEepromTestStatus)
	if status := eol.EepromStatus(val); val >= 0 && val <= 0xff && status.Valid() {
		return status
	}
	glog.Errorf("DUT reported invalid EEPROM status %d", val)
	return eol.EepromFail
}

// WaitForDUTReboot polls DUT liveness until it goes from false to true.
func (e *Executor) WaitForDUTReboot(ctx context.Context) error {
	var edge bus.RisingEdge
	for !edge.Observe(e.Bus.IsNodeLive(signals.DUT)) {
		if err := fx.Sleep(ctx, e.pollInterval()); err != nil {
			return err
		}
	}
	return nil
}

// settle waits for d while checking DUT liveness every poll interval.
func (e *Executor) settle(ctx context.Context, test string, d time.Duration) error {
	deadline := time.Now().Add(d)
	for {
		if !e.Bus.IsNodeLive(signals.DUT) {
			return fmt.Errorf("%s test: %w", test, bus.ErrPeerLost)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		if remaining > e.pollInterval() {
			remaining = e.pollInterval()
		}
		if err := fx.Sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

// GpioTest commands DUT to drive one pin at a time and checks exactly
// that pin is sensed high.
func (e *Executor) GpioTest(ctx context.Context) error {
	pins := e.Pins.Gpio
	settle := e.Profile.Gpio.Settle()
	if err := e.GPIO.SetDirection(pins, hw.Input); err != nil {
		return err
	}
	e.State.SetGpio(signals.GpioNone)
	e.State.SetPhase(signals.PhaseGpioTest)
	defer e.State.SetGpio(signals.GpioNone)
	e.say("# GPIO test start")

	if err := e.settle(ctx, "GPIO", settle); err != nil {
		return err
	}
	mask, err := e.GPIO.Read(pins)
	if err != nil {
		return err
	}
	if mask != 0 {
		return &MeasurementError{
			Test:   "GPIO",
			Pin:    NoPin,
			Reason: "starting state not 0",
			Actual: int64(mask),
			Mask:   true,
		}
	}

	for _, pin := range pins {
		e.State.SetGpio(int64(pin.Index))
		if err := e.settle(ctx, "GPIO", settle); err != nil {
			return err
		}
		mask, err := e.GPIO.Read(pins)
		if err != nil {
			return err
		}
		if err := CheckGpio(pin.Index, mask); err != nil {
			return err
		}
		glog.V(1).Infof("GPIO pin %d ok", pin.Index)
	}
	return nil
}

// AdcTest stimulates one analog pin at a time and validates what DUT
// reads. It returns the worst deviation among all pins, or an error on
// the first failing pin.
func (e *Executor) AdcTest(ctx context.Context) (eol.AdcResult, error) {
	params := e.Profile.Adc
	spec := AdcSpec{ExpectedMv: params.ExpectedMv, ToleranceMv: params.ToleranceMv}

	// keep the other pins low rather than floating
	if err := e.GPIO.SetDirection(e.Pins.Gpio, hw.Output); err != nil {
		return eol.AdcResult{}, err
	}
	defer e.GPIO.SetDirection(e.Pins.Gpio, hw.Input)
	if err := e.GPIO.Write(e.Pins.Gpio, 0); err != nil {
		return eol.AdcResult{}, err
	}
	defer func() {
		if err := e.PWM.Stop(); err != nil {
			glog.Errorf("stop PWM: %v", err)
		}
	}()

	e.State.SetPhase(signals.PhaseAdcTest)
	e.say("# ADC test start")
	var worst WorstCase
	for _, pin := range e.Pins.Adc {
		if err := e.PWM.Drive(pin, params.PwmDuty); err != nil {
			return eol.AdcResult{}, err
		}
		if err := e.settle(ctx, "ADC", params.Settle()); err != nil {
			return eol.AdcResult{}, err
		}
		readback := AdcReadback{
			Uniqueness: signals.Uniqueness(e.Bus.Read(signals.DutAdcUniqueness)),
			ActivePin:  e.Bus.Read(signals.DutAdcActivePin),
			Millivolts: e.Bus.Read(signals.DutAdcActiveMillivolts),
		}
		deviation, err := CheckAdc(pin.Index, readback, spec)
		if err != nil {
			return eol.AdcResult{}, err
		}
		e.say("#  ADC pin %d ok, %d mV (%+d)", pin.Index, readback.Millivolts, deviation)
		worst.Observe(pin.Index, deviation)
	}
	result, ok := worst.Result()
	if !ok {
		return result, errors.New("ADC test: no pin tested")
	}
	return result, nil
}
