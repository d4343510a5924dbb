package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	sigPhase = Signal{Name: "A_phase", Owner: "A", ID: 0x10, Default: 0}
	sigPin   = Signal{Name: "A_pin", Owner: "A", ID: 0x11, Default: -1}
	sigValue = Signal{Name: "B_value", Owner: "B", ID: 0x20, Default: 7}
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBus() (*Bus, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := New(sigPhase, sigPin, sigValue)
	b.Now = clock.Now
	b.Timeout = 100 * time.Millisecond
	return b, clock
}

func TestBusReadDefaults(t *testing.T) {
	b, _ := newTestBus()
	require.Equal(t, int64(0), b.Read(sigPhase))
	require.Equal(t, int64(-1), b.Read(sigPin))
	require.Equal(t, int64(7), b.Read(sigValue))
	unknown := Signal{Name: "X", Owner: "X", Default: 42}
	require.Equal(t, int64(42), b.Read(unknown))
}

func TestBusLastValueWins(t *testing.T) {
	b, _ := newTestBus()
	a := b.Port("A")
	a.Publish(sigPin, 3)
	a.Publish(sigPin, 5)
	require.Equal(t, int64(5), b.Port("B").Read(sigPin))
}

func TestBusLiveness(t *testing.T) {
	b, clock := newTestBus()
	a := b.Port("A")
	require.False(t, b.IsNodeLive("A"))
	require.False(t, b.IsNodeLive("nobody"))

	a.Publish(sigPhase, 1)
	require.True(t, b.IsNodeLive("A"))
	require.False(t, b.IsNodeLive("B"))

	clock.Advance(100 * time.Millisecond)
	require.True(t, b.IsNodeLive("A"))
	clock.Advance(time.Millisecond)
	require.False(t, b.IsNodeLive("A"))

	// any signal of the node refreshes liveness
	a.Publish(sigPin, 1)
	require.True(t, b.IsNodeLive("A"))
}

func TestBusReset(t *testing.T) {
	b, _ := newTestBus()
	b.Port("A").Publish(sigPin, 9)
	b.Port("B").Publish(sigValue, 9)
	b.Reset("A")
	require.Equal(t, int64(-1), b.Read(sigPin))
	require.False(t, b.IsNodeLive("A"))
	require.Equal(t, int64(9), b.Read(sigValue))
	require.True(t, b.IsNodeLive("B"))
}

func TestPortPublishNotOwned(t *testing.T) {
	b, _ := newTestBus()
	require.Panics(t, func() { b.Port("B").Publish(sigPin, 1) })
}

func TestBusOwned(t *testing.T) {
	b, _ := newTestBus()
	require.Equal(t, []Signal{sigPhase, sigPin}, b.Owned("A"))
	require.Equal(t, []Node{"A", "B"}, b.Nodes())
	sig, ok := b.LookupID(0x20)
	require.True(t, ok)
	require.Equal(t, sigValue, sig)
	_, ok = b.Lookup("nope")
	require.False(t, ok)
}

func TestNewDuplicatedSignal(t *testing.T) {
	require.Panics(t, func() { New(sigPin, sigPin) })
	require.Panics(t, func() { New(sigPin, Signal{Name: "other", Owner: "A", ID: sigPin.ID}) })
}

func TestRisingEdge(t *testing.T) {
	testCases := []struct {
		name    string
		samples []bool
		expect  []bool
	}{
		{
			name:    "reboot",
			samples: []bool{true, true, false, false, true},
			expect:  []bool{false, false, false, false, true},
		},
		{
			name:    "already running",
			samples: []bool{true, true, true},
			expect:  []bool{false, false, false},
		},
		{
			name:    "fresh boot",
			samples: []bool{false, true},
			expect:  []bool{false, true},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var edge RisingEdge
			for n, live := range tc.samples {
				require.Equal(t, tc.expect[n], edge.Observe(live), "sample %d", n)
			}
		})
	}
}

func TestFrameCodec(t *testing.T) {
	b, _ := newTestBus()
	f := EncodeFrame(Update{Signal: sigPin, Value: -2})
	require.Equal(t, uint32(0x11), f.ID)
	require.Equal(t, [8]byte{0xfe, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, f.Data)
	u, err := DecodeFrame(b, f)
	require.NoError(t, err)
	require.Equal(t, Update{Signal: sigPin, Value: -2}, u)

	_, err = DecodeFrame(b, Frame{ID: 0x99, Len: 8})
	var unknown *UnknownSignalError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, uint32(0x99), unknown.ID)

	_, err = DecodeFrame(b, Frame{ID: 0x11, Len: 2})
	require.Error(t, err)
}

func TestBridge(t *testing.T) {
	busA, busB := New(sigPhase, sigPin, sigValue), New(sigPhase, sigPin, sigValue)
	linkA, linkB := NewPipe(64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 2)
	go func() {
		errCh <- (&Bridge{Bus: busA, Node: "A", Link: linkA, Interval: time.Millisecond}).Run(ctx)
	}()
	go func() {
		errCh <- (&Bridge{Bus: busB, Node: "B", Link: linkB, Interval: time.Millisecond}).Run(ctx)
	}()

	// nothing is broadcast before the local node is live
	time.Sleep(10 * time.Millisecond)
	require.False(t, busB.IsNodeLive("A"))

	busA.Port("A").Publish(sigPin, 4)
	busB.Port("B").Publish(sigValue, 11)
	require.Eventually(t, func() bool {
		return busB.Read(sigPin) == 4 && busA.Read(sigValue) == 11
	}, time.Second, time.Millisecond)
	require.True(t, busB.IsNodeLive("A"))
	require.True(t, busA.IsNodeLive("B"))

	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.Equal(t, context.Canceled, <-errCh)
}
