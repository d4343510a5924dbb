package bench

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	fx "github.com/robotalks/eol.go/pkg/framework"
	"github.com/robotalks/eol.go/pkg/station"
	"golang.org/x/net/websocket"
)

// subscriberDepth is the number of writes buffered per subscriber.
const subscriberDepth = 256

// Console fans the TESTER console out to any number of subscribers.
// A subscriber only sees output written after it subscribed, and loses
// output when it falls behind, like a serial terminal.
type Console struct {
	lock sync.Mutex
	subs map[*Subscriber]struct{}
}

// Subscriber reads console output.
type Subscriber struct {
	console *Console
	ch      chan []byte
	buf     []byte
	done    chan struct{}
	once    sync.Once
}

// Write implements io.Writer.
func (c *Console) Write(p []byte) (int, error) {
	data := append([]byte(nil), p...)
	c.lock.Lock()
	defer c.lock.Unlock()
	for sub := range c.subs {
		select {
		case sub.ch <- data:
		default:
			glog.V(2).Info("console subscriber behind, dropping output")
		}
	}
	return len(p), nil
}

// Subscribe starts receiving output.
func (c *Console) Subscribe() *Subscriber {
	sub := &Subscriber{console: c, ch: make(chan []byte, subscriberDepth), done: make(chan struct{})}
	c.lock.Lock()
	if c.subs == nil {
		c.subs = make(map[*Subscriber]struct{})
	}
	c.subs[sub] = struct{}{}
	c.lock.Unlock()
	return sub
}

// Read implements io.Reader.
func (s *Subscriber) Read(p []byte) (int, error) {
	for len(s.buf) == 0 {
		select {
		case <-s.done:
			return 0, io.EOF
		case s.buf = <-s.ch:
		}
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Close implements io.Closer.
func (s *Subscriber) Close() error {
	s.once.Do(func() {
		s.console.lock.Lock()
		delete(s.console.subs, s)
		s.console.lock.Unlock()
		close(s.done)
	})
	return nil
}

func (c *Console) stream(w io.Writer, peer string) {
	sub := c.Subscribe()
	defer sub.Close()
	glog.Infof("console client %s connected", peer)
	_, err := io.Copy(w, sub)
	glog.Infof("console client %s disconnected: %v", peer, err)
}

// Serve streams the console to every connection accepted on l until
// ctx is done.
func (c *Console) Serve(ctx context.Context, l net.Listener) error {
	return fx.RunWithContextCloser(ctx, l, func() error {
		for {
			conn, err := l.Accept()
			if err != nil {
				return err
			}
			go func() {
				defer conn.Close()
				c.stream(conn, conn.RemoteAddr().String())
			}()
		}
	})
}

// WebsocketHandler streams the console to websocket clients, one
// message per write.
func (c *Console) WebsocketHandler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		c.stream(station.NewWebsocketConsole(conn), conn.Request().RemoteAddr)
	})
}
