package bus

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"
	fx "github.com/robotalks/eol.go/pkg/framework"
)

// DefaultBroadcastInterval is the cadence a Bridge broadcasts owned signals.
const DefaultBroadcastInterval = 10 * time.Millisecond

// Link transports updates between processes.
type Link interface {
	Send(Update) error
	// Recv blocks until an update is received. Close unblocks it.
	Recv() (Update, error)
	Close() error
}

// Bridge connects a local Bus to remote nodes over a Link. It
// periodically broadcasts the signals owned by Node while Node is live
// locally and applies updates received for signals owned by other nodes.
type Bridge struct {
	Bus      *Bus
	Node     Node
	Link     Link
	Interval time.Duration
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	interval := b.Interval
	if interval == 0 {
		interval = DefaultBroadcastInterval
	}
	owned := b.Bus.Owned(b.Node)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	recvErrCh := make(chan error, 1)
	go func() {
		recvErrCh <- fx.RunWithContextCloser(ctx, b.Link, b.recvLoop)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-recvErrCh
			return ctx.Err()
		case err := <-recvErrCh:
			return err
		case <-ticker.C:
			if !b.Bus.IsNodeLive(b.Node) {
				continue
			}
			for _, sig := range owned {
				if err := b.Link.Send(Update{Signal: sig, Value: b.Bus.Read(sig)}); err != nil {
					cancel()
					<-recvErrCh
					return err
				}
			}
		}
	}
}

func (b *Bridge) recvLoop() error {
	for {
		u, err := b.Link.Recv()
		if err != nil {
			var unknown *UnknownSignalError
			if errors.As(err, &unknown) {
				glog.V(2).Infof("bridge %s: %v", b.Node, err)
				continue
			}
			return err
		}
		if u.Signal.Owner == b.Node {
			continue
		}
		glog.V(3).Infof("bridge %s: RCV %s", b.Node, u)
		b.Bus.Apply(u)
	}
}
