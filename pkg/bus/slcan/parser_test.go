package slcan

import (
	"errors"
	"io"
	"testing"

	"github.com/robotalks/eol.go/pkg/bus"
	"github.com/robotalks/eol.go/pkg/signals"
	"github.com/stretchr/testify/require"
)

func parseAll(p *Parser, data string) []bus.Frame {
	var frames []bus.Frame
	for i := 0; i < len(data); i++ {
		if f := p.Parse(data[i]); f != nil {
			frames = append(frames, *f)
		}
	}
	return frames
}

func TestEncodeLine(t *testing.T) {
	f := bus.EncodeFrame(bus.Update{Signal: signals.DutAdcActiveMillivolts, Value: 306})
	require.Equal(t, "T0000020283201000000000000\r", string(EncodeLine(f)))
	require.Equal(t, "T1FFFFFFF0\r", string(EncodeLine(bus.Frame{ID: 0x1fffffff})))
}

func TestParser(t *testing.T) {
	testCases := []struct {
		name    string
		data    string
		frames  []bus.Frame
		dropped int
	}{
		{
			name:   "extended",
			data:   "T0000020283201000000000000\r",
			frames: []bus.Frame{{ID: 0x202, Len: 8, Data: [8]byte{0x32, 0x01}}},
		},
		{
			name:   "standard lower case",
			data:   "t1012ff00\r",
			frames: []bus.Frame{{ID: 0x101, Len: 2, Data: [8]byte{0xff}}},
		},
		{
			name:   "noise before frame",
			data:   "xyz\r\nT000001000\r",
			frames: []bus.Frame{{ID: 0x100}},
		},
		{
			name:    "bad digit resyncs",
			data:    "T00G" + "T000001000\r",
			frames:  []bus.Frame{{ID: 0x100}},
			dropped: 1,
		},
		{
			name:    "bad length",
			data:    "T000001009\r",
			dropped: 1,
		},
		{
			name:    "frame restarts mid frame",
			data:    "T0000010" + "T0000010110A\r",
			frames:  []bus.Frame{{ID: 0x101, Len: 1, Data: [8]byte{0x0a}}},
			dropped: 1,
		},
		{
			name:    "missing terminator",
			data:    "t10000x",
			dropped: 1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p Parser
			require.Equal(t, tc.frames, parseAll(&p, tc.data))
			require.Equal(t, tc.dropped, p.Dropped)
		})
	}
}

type loopPort struct {
	io.Reader
	io.Writer
}

func (loopPort) Close() error { return nil }

func TestLinkOverPipe(t *testing.T) {
	r, w := io.Pipe()
	b := signals.NewBus()
	l := NewLink(loopPort{Reader: r, Writer: w}, b)
	u := bus.Update{Signal: signals.TesterCurrentGpio, Value: 33}
	go l.Send(u)
	got, err := l.Recv()
	require.NoError(t, err)
	require.Equal(t, u, got)

	go w.Write(EncodeLine(bus.Frame{ID: 0x7ff, Len: 8}))
	_, err = l.Recv()
	var unknown *bus.UnknownSignalError
	require.True(t, errors.As(err, &unknown))

	require.NoError(t, l.Close())
	require.Equal(t, io.ErrClosedPipe, l.Send(u))
}
