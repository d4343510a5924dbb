// Package signals defines the nodes and signals shared by the DUT and
// TESTER firmware.
package signals

import (
	"fmt"

	"github.com/robotalks/eol.go/pkg/bus"
	"github.com/robotalks/eol.go/pkg/eol"
)

// Nodes on the EOL bus.
const (
	DUT    bus.Node = "DUT"
	TESTER bus.Node = "TESTER"
)

// TestPhase selects the active sub-test. It is owned by TESTER and is
// the only coordination token between the two boards.
type TestPhase int64

// Test phases.
const (
	PhaseNone TestPhase = iota
	PhaseGpioTest
	PhaseAdcTest
)

func (p TestPhase) String() string {
	switch p {
	case PhaseNone:
		return "NONE"
	case PhaseGpioTest:
		return "GPIO_TEST"
	case PhaseAdcTest:
		return "ADC_TEST"
	}
	return fmt.Sprintf("TestPhase(%d)", int64(p))
}

// Uniqueness classifies an ADC scan on DUT.
type Uniqueness int64

// Uniqueness values.
const (
	UniquenessNone Uniqueness = iota
	UniquenessUnique
	UniquenessNotUnique
)

func (u Uniqueness) String() string {
	switch u {
	case UniquenessNone:
		return "NONE"
	case UniquenessUnique:
		return "UNIQUE"
	case UniquenessNotUnique:
		return "NOT_UNIQUE"
	}
	return fmt.Sprintf("Uniqueness(%d)", int64(u))
}

// GpioNone is the GPIO command meaning all pins low.
const GpioNone int64 = -1

// AdcPinNone is reported as active pin when no pin is active.
const AdcPinNone int64 = -1

// Signals.
var (
	TesterCurrentTest = bus.Signal{
		Name: "TESTER_currentTest", Owner: TESTER, ID: 0x100, Default: int64(PhaseNone),
	}
	TesterCurrentGpio = bus.Signal{
		Name: "TESTER_currentGpio", Owner: TESTER, ID: 0x101, Default: GpioNone,
	}
	DutAdcUniqueness = bus.Signal{
		Name: "DUT_adcUniqueness", Owner: DUT, ID: 0x200, Default: int64(UniquenessNone),
	}
	DutAdcActivePin = bus.Signal{
		Name: "DUT_adcActivePin", Owner: DUT, ID: 0x201, Default: AdcPinNone,
	}
	DutAdcActiveMillivolts = bus.Signal{
		Name: "DUT_adcActiveMillivolts", Owner: DUT, ID: 0x202, Default: 0,
	}
	DutEepromTestStatus = bus.Signal{
		Name: "DUT_eepromTestStatus", Owner: DUT, ID: 0x210, Default: int64(eol.EepromNotRun),
	}
)

// All lists every signal on the EOL bus.
func All() []bus.Signal {
	return []bus.Signal{
		TesterCurrentTest,
		TesterCurrentGpio,
		DutAdcUniqueness,
		DutAdcActivePin,
		DutAdcActiveMillivolts,
		DutEepromTestStatus,
	}
}

// NewBus creates a Bus carrying all EOL signals.
func NewBus() *bus.Bus {
	return bus.New(All()...)
}

// Describe renders a signal value with its symbolic name if any.
func Describe(sig bus.Signal, val int64) string {
	switch sig.Name {
	case TesterCurrentTest.Name:
		return TestPhase(val).String()
	case DutAdcUniqueness.Name:
		return Uniqueness(val).String()
	case DutEepromTestStatus.Name:
		return eol.EepromStatus(val).String()
	case TesterCurrentGpio.Name:
		if val == GpioNone {
			return "none"
		}
	case DutAdcActivePin.Name:
		if val == AdcPinNone {
			return "none"
		}
	case DutAdcActiveMillivolts.Name:
		return fmt.Sprintf("%dmV", val)
	}
	return fmt.Sprintf("%d", val)
}
