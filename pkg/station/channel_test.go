package station

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/robotalks/eol.go/pkg/eol"
	"github.com/stretchr/testify/require"
)

const (
	passLine   = `TEST_RESULT:{"gpio_result":true,"adc_result":[3,5],"eeprom_result":1}`
	failLine   = `TEST_RESULT:{"gpio_result":false,"adc_result":null,"eeprom_result":2}`
	staleLine  = `TEST_RESULT:{"gpio_result":true,"adc_result":[1,0],"eeprom_result":0}`
	brokenLine = `TEST_RESULT:{"gpio_result":tr`
)

func newStringChannel(text string) *ResultChannel {
	c := NewResultChannel(io.NopCloser(strings.NewReader(text)))
	c.Deadline = time.Second
	return c
}

func TestReadResultDiscardsFirstRecord(t *testing.T) {
	testCases := []struct {
		name   string
		text   string
		expect *eol.TestResults
	}{
		{
			name:   "stale valid record",
			text:   staleLine + "\n" + passLine + "\n",
			expect: &eol.TestResults{GpioResult: true, AdcResult: &eol.AdcResult{Pin: 3, ToleranceMillivolts: 5}, EepromResult: eol.EepromPass},
		},
		{
			name:   "stale broken record",
			text:   brokenLine + "\n" + failLine + "\n",
			expect: &eol.TestResults{EepromResult: eol.EepromFail},
		},
		{
			name:   "informational lines and crlf",
			text:   "# booting\r\n" + staleLine + "\r\n# GPIO test start\r\nI (5) TEST_RESULT:{}\r\n" + failLine + "\r\n" + passLine + "\r\n",
			expect: &eol.TestResults{EepromResult: eol.EepromFail},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newStringChannel(tc.text)
			defer c.Close()
			r, err := c.ReadResult()
			require.NoError(t, err)
			require.Equal(t, tc.expect, r)
		})
	}
}

func TestReadResultMalformed(t *testing.T) {
	c := newStringChannel(staleLine + "\n" + brokenLine + "\n")
	_, err := c.ReadResult()
	var malformed *MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, brokenLine, malformed.Line)
	require.True(t, Retryable(err))
}

func TestReadResultInvalidEeprom(t *testing.T) {
	c := newStringChannel(staleLine + "\n" + `TEST_RESULT:{"gpio_result":true,"adc_result":null,"eeprom_result":3}` + "\n")
	_, err := c.ReadResult()
	var malformed *MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	require.True(t, errors.Is(err, eol.ErrInvalidEepromStatus))
}

func TestReadResultTimeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := NewResultChannel(r)
	c.Deadline = 50 * time.Millisecond
	go io.WriteString(w, passLine+"\n")
	start := time.Now()
	_, err := c.ReadResult()
	require.Equal(t, ErrTimeout, err)
	require.True(t, Retryable(err))
	require.True(t, time.Since(start) >= 50*time.Millisecond)
}

func TestReadResultDeviceError(t *testing.T) {
	c := newStringChannel(passLine + "\n")
	_, err := c.ReadResult()
	var ioErr *DeviceIOError
	require.ErrorAs(t, err, &ioErr)
	require.True(t, errors.Is(err, io.EOF))
	require.False(t, Retryable(err))
}

func TestReadResultDiagnostics(t *testing.T) {
	c := newStringChannel("# hello\n" + staleLine + "\n" + passLine + "\n")
	var lines []string
	c.OnLine = func(line string) { lines = append(lines, line) }
	_, err := c.ReadResult()
	require.NoError(t, err)
	require.Equal(t, []string{"# hello", staleLine, passLine}, lines)
}

func TestReadResultRetrySeesNextRecords(t *testing.T) {
	c := newStringChannel(staleLine + "\n" + brokenLine + "\n" + staleLine + "\n" + passLine + "\n")
	_, err := c.ReadResult()
	require.True(t, Retryable(err))
	r, err := c.ReadResult()
	require.NoError(t, err)
	require.True(t, r.GpioResult)
}

func TestReadResultSkipsOversizedLine(t *testing.T) {
	garbage := strings.Repeat("\xff", 70*1024)
	c := newStringChannel(garbage + "\n" + staleLine + "\n" + passLine + "\n")
	defer c.Close()
	r, err := c.ReadResult()
	require.NoError(t, err)
	require.True(t, r.GpioResult)
	require.Equal(t, eol.EepromPass, r.EepromResult)
}

func TestReadResultContextCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := NewResultChannel(r)
	c.Deadline = 10 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := c.ReadResultContext(ctx)
	require.Equal(t, context.Canceled, err)
	require.False(t, Retryable(err))
	require.True(t, time.Since(start) < time.Second)
}
