package psu

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

// GPP USB identifiers, for locating the port.
const (
	InstekVendorID  = 8580
	InstekProductID = 87
	InstekBaudRate  = 115200
)

// InstekGPP drives an Instek GPP series supply over its serial
// command interface.
type InstekGPP struct {
	rw     io.ReadWriter
	reader *bufio.Reader
	lock   sync.Mutex
}

// NewInstekGPP creates a driver over an open port.
func NewInstekGPP(rw io.ReadWriter) *InstekGPP {
	return &InstekGPP{rw: rw, reader: bufio.NewReader(rw)}
}

// OpenInstekGPP opens the supply on a serial port.
func OpenInstekGPP(address string) (*InstekGPP, error) {
	port, err := serial.Open(&serial.Config{
		Address:  address,
		BaudRate: InstekBaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open power supply %s: %w", address, err)
	}
	return NewInstekGPP(port), nil
}

// Close closes the port if it can be closed.
func (p *InstekGPP) Close() error {
	if closer, ok := p.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (p *InstekGPP) command(format string, args ...interface{}) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.send(format, args...)
}

func (p *InstekGPP) send(format string, args ...interface{}) error {
	if _, err := fmt.Fprintf(p.rw, format+"\r\n", args...); err != nil {
		return fmt.Errorf("write to power supply: %w", err)
	}
	return nil
}

// AllOutputsOff implements Supply.
func (p *InstekGPP) AllOutputsOff() error {
	return p.command(":ALLOUTOFF")
}

// AllOutputsOn implements Supply.
func (p *InstekGPP) AllOutputsOn() error {
	return p.command(":ALLOUTON")
}

// SetVoltage implements Supply.
func (p *InstekGPP) SetVoltage(ch Channel, volts float64) error {
	if volts < 0 || volts > ch.MaxVolts() {
		return fmt.Errorf("%w: %.3fV for %v", ErrVoltageOutOfRange, volts, ch)
	}
	return p.command(":SOURce%d:VOLTage %.3f", ch, volts)
}

// SetCurrent implements Supply.
func (p *InstekGPP) SetCurrent(ch Channel, amps float64) error {
	return p.command(":SOURce%d:CURRent %.3f", ch, amps)
}

// SetLoadCV implements Supply.
func (p *InstekGPP) SetLoadCV(ch Channel) error {
	return p.command(":LOAD%d:CV ON", ch)
}

// MeasureVoltage implements Meter.
func (p *InstekGPP) MeasureVoltage(ch Channel) (float64, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.send(":MEASure%d:VOLTage?", ch); err != nil {
		return 0, err
	}
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("read from power supply: %w", err)
	}
	volts, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid measurement %q: %w", line, err)
	}
	return volts, nil
}
