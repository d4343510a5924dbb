package station

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/goburrow/serial"
	"golang.org/x/net/websocket"
)

// Default console settings.
const (
	DefaultBaudRate    = 115200
	DefaultDialTimeout = 5 * time.Second
)

// OpenConsole opens the TESTER console by URL. Supported schemes:
//
//	serial:///dev/ttyACM0?baud=115200
//	tcp://host:port
//	ws://host:port/path
func OpenConsole(consoleURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(consoleURL)
	if err != nil {
		return nil, &DeviceIOError{Op: "open", Err: err}
	}
	var rwc io.ReadWriteCloser
	switch u.Scheme {
	case "serial", "":
		rwc, err = openSerial(u)
	case "tcp":
		rwc, err = net.DialTimeout("tcp", u.Host, DefaultDialTimeout)
	case "ws", "wss":
		rwc, err = openWebsocket(u)
	default:
		err = fmt.Errorf("unsupported console scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, &DeviceIOError{Op: "open " + consoleURL, Err: err}
	}
	return rwc, nil
}

func openSerial(u *url.URL) (io.ReadWriteCloser, error) {
	baud := DefaultBaudRate
	if val := u.Query().Get("baud"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("invalid baud %q", val)
		}
		baud = n
	}
	port, err := serial.Open(&serial.Config{
		Address:  u.Path,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &serialConsole{Port: port}, nil
}

// serialConsole turns read timeouts of the port into blocking reads.
type serialConsole struct {
	serial.Port
}

func (c *serialConsole) Read(p []byte) (int, error) {
	for {
		n, err := c.Port.Read(p)
		if errors.Is(err, serial.ErrTimeout) && n == 0 {
			continue
		}
		return n, err
	}
}

func openWebsocket(u *url.URL) (io.ReadWriteCloser, error) {
	origin := &url.URL{Scheme: "http", Host: u.Host}
	if u.Scheme == "wss" {
		origin.Scheme = "https"
	}
	conn, err := websocket.Dial(u.String(), "", origin.String())
	if err != nil {
		return nil, err
	}
	return NewWebsocketConsole(conn), nil
}

// WebsocketConsole carries console bytes in websocket messages.
type WebsocketConsole struct {
	conn *websocket.Conn
	buf  []byte
}

// NewWebsocketConsole wraps a websocket connection.
func NewWebsocketConsole(conn *websocket.Conn) *WebsocketConsole {
	return &WebsocketConsole{conn: conn}
}

// Read implements io.Reader.
func (c *WebsocketConsole) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		if err := websocket.Message.Receive(c.conn, &c.buf); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// Write implements io.Writer. Each write is sent as one message.
func (c *WebsocketConsole) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(c.conn, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (c *WebsocketConsole) Close() error {
	return c.conn.Close()
}
