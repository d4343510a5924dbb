// Package hw defines the hardware collaborators of the firmware actors.
package hw

import (
	"fmt"

	"github.com/robotalks/eol.go/pkg/board"
)

// Direction of a GPIO pin.
type Direction int

// Directions.
const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// GPIO accesses a set of pins as a bitmask indexed by pin number.
type GPIO interface {
	SetDirection(pins []board.Pin, dir Direction) error
	// Write drives each pin high if its bit is set in mask, low otherwise.
	Write(pins []board.Pin, mask uint64) error
	// Read samples the pins, bits of pins not in the set are 0.
	Read(pins []board.Pin) (uint64, error)
}

// ADC reads analog inputs.
type ADC interface {
	ReadMillivolts(pin board.Pin) (int32, error)
}

// PWM drives a single PWM channel which can be routed to any pin.
type PWM interface {
	// Drive routes the channel to pin and outputs duty.
	Drive(pin board.Pin, duty uint32) error
	// Stop disconnects the channel.
	Stop() error
}

// EEPROM is a byte addressable memory.
type EEPROM interface {
	Write(addr uint16, data []byte) error
	Read(addr uint16, buf []byte) error
}

// Restarter restarts the firmware.
type Restarter interface {
	Restart()
}

// RestartFunc is the func form of Restarter.
type RestartFunc func()

// Restart implements Restarter.
func (f RestartFunc) Restart() {
	f()
}

// Error is a failure reported by a hardware collaborator.
type Error struct {
	Op  string
	Pin int
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Pin >= 0 {
		return fmt.Sprintf("%s pin %d: %v", e.Op, e.Pin, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
