package station

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/robotalks/eol.go/pkg/eol"
)

// DefaultReadDeadline bounds a single wait for results.
const DefaultReadDeadline = 10 * time.Second

// MaxLineLength is the longest console line kept. Longer lines are
// garbage and dropped up to the next newline.
const MaxLineLength = 64 * 1024

// ResultChannel extracts results records from the TESTER console.
// A single goroutine scans the console into lines, one ReadResult
// consumes them at a time.
type ResultChannel struct {
	// Deadline bounds each ReadResult, DefaultReadDeadline if zero.
	Deadline time.Duration
	// OnLine receives every console line for diagnostics.
	OnLine func(string)

	rc    io.ReadCloser
	lines chan string
	err   error
}

// NewResultChannel starts scanning the console.
func NewResultChannel(rc io.ReadCloser) *ResultChannel {
	c := &ResultChannel{rc: rc, lines: make(chan string, 64)}
	go c.scan()
	return c
}

func (c *ResultChannel) scan() {
	reader := bufio.NewReaderSize(c.rc, MaxLineLength)
	var oversized bool
	for {
		data, err := reader.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			if !oversized {
				glog.Warningf("console line exceeds %d bytes, dropped", MaxLineLength)
			}
			oversized = true
			continue
		}
		if len(data) > 0 && !oversized && (err == nil || err == io.EOF) {
			c.lines <- strings.TrimRight(string(data), "\r\n")
		}
		oversized = false
		if err != nil {
			c.err = err
			break
		}
	}
	close(c.lines)
}

// ReadResult waits for a results record. The first tagged line seen is
// stale output from before this run and is always discarded, the second
// one is decoded. It fails with ErrTimeout when the deadline passes,
// *MalformedRecordError when the record doesn't decode, and
// *DeviceIOError when the console fails.
func (c *ResultChannel) ReadResult() (*eol.TestResults, error) {
	return c.ReadResultContext(context.Background())
}

// ReadResultContext is ReadResult also ending early with ctx.Err() when
// ctx is done.
func (c *ResultChannel) ReadResultContext(ctx context.Context) (*eol.TestResults, error) {
	deadline := c.Deadline
	if deadline == 0 {
		deadline = DefaultReadDeadline
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var discarded bool
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrTimeout
		case line, ok := <-c.lines:
			if !ok {
				return nil, &DeviceIOError{Op: "read", Err: c.err}
			}
			if c.OnLine != nil {
				c.OnLine(line)
			}
			payload, tagged := eol.CutSentinel(line)
			if !tagged {
				continue
			}
			if !discarded {
				discarded = true
				glog.V(1).Infof("discard stale results %q", payload)
				continue
			}
			results, err := eol.Decode([]byte(payload))
			if err != nil {
				return nil, &MalformedRecordError{Line: line, Err: err}
			}
			return results, nil
		}
	}
}

// Close closes the console and stops scanning.
func (c *ResultChannel) Close() error {
	return c.rc.Close()
}
