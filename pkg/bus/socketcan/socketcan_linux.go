//go:build linux

package socketcan

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/robotalks/eol.go/pkg/bus"
	"golang.org/x/sys/unix"
)

// Link implements bus.Link on a raw CAN socket.
type Link struct {
	Table  bus.Table
	ifname string
	socket int

	done chan struct{}
	once sync.Once
}

// Open binds a raw socket to the interface and filters it to the
// frame IDs of the signals.
func Open(ifname string, table bus.Table, signals []bus.Signal) (*Link, error) {
	socket, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("create CAN socket: %w", err)
	}
	l := &Link{Table: table, ifname: ifname, socket: socket, done: make(chan struct{})}
	if err := l.setup(signals); err != nil {
		unix.Close(socket)
		return nil, err
	}
	return l, nil
}

func (l *Link) setup(signals []bus.Signal) error {
	ifreq, err := unix.NewIfreq(l.ifname)
	if err != nil {
		return fmt.Errorf("interface %s: %w", l.ifname, err)
	}
	if err := unix.IoctlIfreq(l.socket, unix.SIOCGIFINDEX, ifreq); err != nil {
		return fmt.Errorf("interface %s index: %w", l.ifname, err)
	}
	filters := make([]unix.CanFilter, 0, len(signals))
	for _, sig := range signals {
		filters = append(filters, unix.CanFilter{Id: sig.ID, Mask: maskEFF})
	}
	if len(filters) > 0 {
		if err := unix.SetsockoptCanRawFilter(l.socket, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters); err != nil {
			return fmt.Errorf("set CAN filter: %w", err)
		}
	}
	// Periodic wakeups let Recv notice Close.
	tv := unix.NsecToTimeval(int64(100e6))
	if err := unix.SetsockoptTimeval(l.socket, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("set receive timeout: %w", err)
	}
	if err := unix.Bind(l.socket, &unix.SockaddrCAN{Ifindex: int(ifreq.Uint32())}); err != nil {
		return fmt.Errorf("bind %s: %w", l.ifname, err)
	}
	return nil
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
	_, err := unix.Write(l.socket, MarshalFrame(bus.EncodeFrame(u)))
	if errors.Is(err, unix.ENOBUFS) || errors.Is(err, unix.EAGAIN) {
		glog.V(2).Infof("%s: drop %s, tx queue full", l.ifname, u)
		return nil
	}
	return err
}

// Recv implements bus.Link.
func (l *Link) Recv() (bus.Update, error) {
	buf := make([]byte, WireFrameLen)
	for {
		if l.closed() {
			return bus.Update{}, io.ErrClosedPipe
		}
		n, err := unix.Read(l.socket, buf)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return bus.Update{}, fmt.Errorf("%s: read: %w", l.ifname, err)
		}
		f, err := UnmarshalFrame(buf[:n])
		if err != nil {
			glog.V(2).Infof("%s: %v", l.ifname, err)
			continue
		}
		return bus.DecodeFrame(l.Table, f)
	}
}

// Close implements bus.Link.
func (l *Link) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = unix.Close(l.socket)
	})
	return err
}
