package socketcan

import (
	"testing"

	"github.com/robotalks/eol.go/pkg/bus"
	"github.com/robotalks/eol.go/pkg/signals"
	"github.com/stretchr/testify/require"
)

func TestMarshalFrame(t *testing.T) {
	f := bus.EncodeFrame(bus.Update{Signal: signals.DutAdcActiveMillivolts, Value: 306})
	buf := MarshalFrame(f)
	require.Equal(t, []byte{
		0x02, 0x02, 0x00, 0x00, 8, 0, 0, 0,
		0x32, 0x01, 0, 0, 0, 0, 0, 0,
	}, buf)
	decoded, err := UnmarshalFrame(buf)
	require.NoError(t, err)
	require.Equal(t, f, decoded)
}

func TestExtendedFrame(t *testing.T) {
	buf := MarshalFrame(bus.Frame{ID: 0x12345, Len: 8})
	require.Equal(t, byte(0x80), buf[3])
	f, err := UnmarshalFrame(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(0x12345), f.ID)
}

func TestUnmarshalFrameErrors(t *testing.T) {
	testCases := []struct {
		name string
		buf  []byte
	}{
		{name: "short", buf: make([]byte, 8)},
		{name: "remote", buf: []byte{0x00, 0x01, 0, 0x40, 8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{name: "error", buf: []byte{0x00, 0x01, 0, 0x20, 8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{name: "length", buf: []byte{0x00, 0x01, 0, 0, 9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalFrame(tc.buf)
			require.Error(t, err)
		})
	}
}
