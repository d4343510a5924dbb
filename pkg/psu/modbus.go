package psu

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// ModbusMeter reads rail voltages from a Modbus RTU analog input module.
// Channel n is read from input register Base+n-1 in millivolts.
type ModbusMeter struct {
	Base    uint16
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// RegisterReader is the part of modbus.Client ModbusMeter uses.
type RegisterReader interface {
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
}

// OpenModbusMeter connects to the module on a serial port.
func OpenModbusMeter(address string, baud int, slaveID byte) (*ModbusMeter, error) {
	h := modbus.NewRTUClientHandler(address)
	h.BaudRate = baud
	h.DataBits = 8
	h.Parity = "N"
	h.StopBits = 1
	h.SlaveId = slaveID
	h.Timeout = time.Second
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus meter %s: %w", address, err)
	}
	return &ModbusMeter{handler: h, client: modbus.NewClient(h)}, nil
}

// Close closes the serial port.
func (m *ModbusMeter) Close() error {
	return m.handler.Close()
}

// MeasureVoltage implements Meter.
func (m *ModbusMeter) MeasureVoltage(ch Channel) (float64, error) {
	return readMillivolts(m.client, m.Base, ch)
}

func readMillivolts(r RegisterReader, base uint16, ch Channel) (float64, error) {
	if ch == 0 {
		return 0, fmt.Errorf("invalid %v", ch)
	}
	data, err := r.ReadInputRegisters(base+uint16(ch)-1, 1)
	if err != nil {
		return 0, fmt.Errorf("read %v: %w", ch, err)
	}
	if len(data) != 2 {
		return 0, fmt.Errorf("read %v: unexpected %d bytes", ch, len(data))
	}
	return float64(binary.BigEndian.Uint16(data)) / 1000, nil
}
