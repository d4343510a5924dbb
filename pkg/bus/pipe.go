package bus

import (
	"io"
	"sync"
)

// pipeEnd is one end of an in-process Link pair. Sends never block,
// updates are dropped when the peer falls behind, as on a real bus.
type pipeEnd struct {
	in   chan Update
	out  chan Update
	done chan struct{}
	once sync.Once
}

// NewPipe creates a pair of connected in-process Links.
func NewPipe(depth int) (Link, Link) {
	a2b, b2a := make(chan Update, depth), make(chan Update, depth)
	a := &pipeEnd{in: b2a, out: a2b, done: make(chan struct{})}
	b := &pipeEnd{in: a2b, out: b2a, done: make(chan struct{})}
	return a, b
}

// Send implements Link.
func (p *pipeEnd) Send(u Update) error {
	select {
	case <-p.done:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- u:
	default:
	}
	return nil
}

// Recv implements Link.
func (p *pipeEnd) Recv() (Update, error) {
	select {
	case <-p.done:
		return Update{}, io.ErrClosedPipe
	case u := <-p.in:
		return u, nil
	}
}

// Close implements Link.
func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
