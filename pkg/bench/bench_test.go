package bench

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/robotalks/eol.go/pkg/board"
	"github.com/robotalks/eol.go/pkg/eol"
	"github.com/robotalks/eol.go/pkg/sim"
	"github.com/robotalks/eol.go/pkg/station"
	"github.com/stretchr/testify/require"
)

func newTestBench() *Bench {
	p := board.Default()
	p.GpioPins = []uint32{1, 2, 3, 4}
	p.AdcPins = []uint32{1, 2, 3}
	p.Gpio.SettleMs = 30
	p.Adc.SettleMs = 80
	b := New(p)
	b.Fixture.Tau = 10 * time.Millisecond
	b.DUTBootDelay = 400 * time.Millisecond
	b.TesterBootDelay = 10 * time.Millisecond
	b.RestartDelay = 20 * time.Millisecond
	b.TesterPollInterval = 5 * time.Millisecond
	return b
}

func startBench(t *testing.T, b *Bench) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestBenchPass(t *testing.T) {
	b := newTestBench()
	results := station.NewResultChannel(b.Console.Subscribe())
	defer results.Close()
	startBench(t, b)

	r, err := results.ReadResult()
	require.NoError(t, err)
	require.True(t, r.GpioResult)
	require.NotNil(t, r.AdcResult)
	require.Equal(t, eol.EepromPass, r.EepromResult)
	require.True(t, station.Decide(r).Pass)
}

func TestBenchFault(t *testing.T) {
	b := newTestBench()
	b.Fixture.Inject(sim.Faults{Open: []uint32{4}})
	results := station.NewResultChannel(b.Console.Subscribe())
	defer results.Close()
	startBench(t, b)

	r, err := results.ReadResult()
	require.NoError(t, err)
	require.Equal(t, []string{station.SubsystemGPIO}, station.Decide(r).Failed())
}

func TestConsoleFanOut(t *testing.T) {
	var c Console
	a, b := c.Subscribe(), c.Subscribe()
	_, err := io.WriteString(&c, "hello\n")
	require.NoError(t, err)
	require.NoError(t, b.Close())
	_, err = io.WriteString(&c, "world\n")
	require.NoError(t, err)

	buf := make([]byte, 12)
	n, err := io.ReadFull(a, buf)
	require.NoError(t, err)
	require.Equal(t, "hello\nworld\n", string(buf[:n]))
	_, err = b.Read(buf)
	require.Equal(t, io.EOF, err)
}

func TestConsoleServe(t *testing.T) {
	var c Console
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx, l) }()

	rwc, err := station.OpenConsole("tcp://" + l.Addr().String())
	require.NoError(t, err)
	defer rwc.Close()
	require.Eventually(t, func() bool {
		c.lock.Lock()
		defer c.lock.Unlock()
		return len(c.subs) == 1
	}, time.Second, 5*time.Millisecond)
	io.WriteString(&c, "TEST_RESULT:{}\n")
	buf := make([]byte, 64)
	n, err := rwc.Read(buf)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(buf[:n]), "TEST_RESULT:"))

	cancel()
	require.Equal(t, context.Canceled, <-done)
}
