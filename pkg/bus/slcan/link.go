package slcan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/golang/glog"
	"github.com/robotalks/eol.go/pkg/bus"
)

// DefaultBaudRate of the bridge port.
const DefaultBaudRate = 115200

// Link implements bus.Link over a serial line.
type Link struct {
	Table bus.Table

	port   io.ReadWriteCloser
	reader *bufio.Reader
	parser Parser

	writeLock sync.Mutex
	done      chan struct{}
	once      sync.Once
}

// NewLink creates a Link over an open port.
func NewLink(port io.ReadWriteCloser, table bus.Table) *Link {
	return &Link{
		Table:  table,
		port:   port,
		reader: bufio.NewReader(port),
		done:   make(chan struct{}),
	}
}

// Open opens the serial port of the bridge.
func Open(address string, table bus.Table) (*Link, error) {
	port, err := serial.Open(&serial.Config{
		Address:  address,
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", address, err)
	}
	return NewLink(port, table), nil
}

func (l *Link) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Send implements bus.Link.
func (l *Link) Send(u bus.Update) error {
	if l.closed() {
		return io.ErrClosedPipe
	}
	l.writeLock.Lock()
	defer l.writeLock.Unlock()
	_, err := l.port.Write(EncodeLine(bus.EncodeFrame(u)))
	return err
}

// Recv implements bus.Link.
func (l *Link) Recv() (bus.Update, error) {
	for {
		if l.closed() {
			return bus.Update{}, io.ErrClosedPipe
		}
		b, err := l.reader.ReadByte()
		if errors.Is(err, serial.ErrTimeout) {
			continue
		}
		if err != nil {
			if l.closed() {
				return bus.Update{}, io.ErrClosedPipe
			}
			return bus.Update{}, err
		}
		if f := l.parser.Parse(b); f != nil {
			glog.V(3).Infof("slcan RCV %#x", f.ID)
			return bus.DecodeFrame(l.Table, *f)
		}
	}
}

// Close implements bus.Link.
func (l *Link) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.port.Close()
	})
	return err
}
