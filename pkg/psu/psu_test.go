package psu

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePort struct {
	bytes.Buffer
	reply *strings.Reader
}

func (p *fakePort) Read(b []byte) (int, error) {
	return p.reply.Read(b)
}

func newFakePort(reply string) *fakePort {
	return &fakePort{reply: strings.NewReader(reply)}
}

func TestPrepareCommands(t *testing.T) {
	port := newFakePort("")
	require.NoError(t, Prepare(NewInstekGPP(port), DefaultRails))
	require.Equal(t, ":ALLOUTOFF\r\n"+
		":SOURce4:VOLTage 15.000\r\n"+
		":SOURce4:CURRent 1.100\r\n"+
		":SOURce1:VOLTage 0.000\r\n"+
		":SOURce1:CURRent 0.000\r\n"+
		":LOAD1:CV ON\r\n"+
		":SOURce2:VOLTage 0.000\r\n"+
		":SOURce2:CURRent 0.000\r\n"+
		":LOAD2:CV ON\r\n"+
		":ALLOUTON\r\n", port.String())
}

func TestVoltageLimit(t *testing.T) {
	testCases := []struct {
		name  string
		ch    Channel
		volts float64
		ok    bool
	}{
		{name: "channel 1 max", ch: 1, volts: 15, ok: true},
		{name: "channel 1 over", ch: 1, volts: 15.5},
		{name: "channel 2 max", ch: 2, volts: 32, ok: true},
		{name: "channel 4 over", ch: 4, volts: 5.1},
		{name: "negative", ch: 3, volts: -1},
		{name: "no such channel", ch: 5, volts: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			port := newFakePort("")
			err := NewInstekGPP(port).SetVoltage(tc.ch, tc.volts)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, ErrVoltageOutOfRange))
			require.Zero(t, port.Len())
		})
	}
}

func TestMeasureVoltage(t *testing.T) {
	port := newFakePort("3.301\r\n4.99\r\n")
	p := NewInstekGPP(port)
	v, err := p.MeasureVoltage(1)
	require.NoError(t, err)
	require.InDelta(t, 3.301, v, 1e-9)
	v, err = p.MeasureVoltage(2)
	require.NoError(t, err)
	require.InDelta(t, 4.99, v, 1e-9)
	require.Equal(t, ":MEASure1:VOLTage?\r\n:MEASure2:VOLTage?\r\n", port.String())

	_, err = NewInstekGPP(newFakePort("garbage\n")).MeasureVoltage(1)
	require.Error(t, err)
}

type fixedMeter map[Channel]float64

func (m fixedMeter) MeasureVoltage(ch Channel) (float64, error) {
	v, ok := m[ch]
	if !ok {
		return 0, errors.New("no reading")
	}
	return v, nil
}

func TestCheckRails(t *testing.T) {
	testCases := []struct {
		name   string
		meter  fixedMeter
		failed []string
	}{
		{name: "nominal", meter: fixedMeter{1: 3.30, 2: 5.00}},
		{name: "lower bounds inclusive", meter: fixedMeter{1: 3.27, 2: 4.98}},
		{name: "upper bounds exclusive", meter: fixedMeter{1: 3.35, 2: 5.02}, failed: []string{"3V3", "5V0"}},
		{name: "3v3 low", meter: fixedMeter{1: 3.1, 2: 5.0}, failed: []string{"3V3"}},
		{name: "meter failure", meter: fixedMeter{1: 3.3}, failed: []string{"5V0"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckRails(tc.meter, DefaultRails)
			if len(tc.failed) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, name := range tc.failed {
				require.Contains(t, err.Error(), name)
			}
		})
	}
}

type registers map[uint16]uint16

func (r registers) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	v, ok := r[address]
	if !ok || quantity != 1 {
		return nil, errors.New("illegal address")
	}
	return []byte{byte(v >> 8), byte(v)}, nil
}

func TestModbusMillivolts(t *testing.T) {
	regs := registers{10: 3302, 11: 5001}
	v, err := readMillivolts(regs, 10, 1)
	require.NoError(t, err)
	require.InDelta(t, 3.302, v, 1e-9)
	v, err = readMillivolts(regs, 10, 2)
	require.NoError(t, err)
	require.InDelta(t, 5.001, v, 1e-9)
	_, err = readMillivolts(regs, 10, 3)
	require.Error(t, err)
	_, err = readMillivolts(regs, 10, 0)
	require.Error(t, err)
}
