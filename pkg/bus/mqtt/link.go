package mqtt

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes/wrappers"
	"github.com/robotalks/eol.go/pkg/bus"
)

// Topic is the topic of a signal relative to the prefix.
func Topic(sig bus.Signal) string {
	return string(sig.Owner) + "/" + sig.Name
}

// ParseTopic resolves the signal of a topic relative to the prefix.
func ParseTopic(table bus.Table, topic string) (bus.Signal, error) {
	node, name, ok := strings.Cut(topic, "/")
	if !ok {
		return bus.Signal{}, &bus.UnknownSignalError{Name: topic}
	}
	sig, found := table.Lookup(name)
	if !found || string(sig.Owner) != node {
		return bus.Signal{}, &bus.UnknownSignalError{Name: topic}
	}
	return sig, nil
}

// EncodeValue encodes a signal value as the message payload.
func EncodeValue(val int64) ([]byte, error) {
	return proto.Marshal(&wrappers.Int64Value{Value: val})
}

// DecodeValue decodes a message payload.
func DecodeValue(payload []byte) (int64, error) {
	var msg wrappers.Int64Value
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return 0, err
	}
	return msg.Value, nil
}

// Link implements bus.Link over a Queue.
type Link struct {
	Queue *Queue
	Table bus.Table

	updates chan bus.Update
	done    chan struct{}
	once    sync.Once
}

// NewLink subscribes to all signal topics of the queue.
func NewLink(q *Queue, table bus.Table) *Link {
	l := &Link{
		Queue:   q,
		Table:   table,
		updates: make(chan bus.Update, 64),
		done:    make(chan struct{}),
	}
	q.Sub("+/+", l.handle)
	return l
}

// Dial connects to the broker and creates the Link.
func Dial(brokerURL string, table bus.Table) (*Link, error) {
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	l := NewLink(q, table)
	if err := q.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", brokerURL, err)
	}
	return l, nil
}

func (l *Link) handle(topic string, payload []byte) {
	sig, err := ParseTopic(l.Table, topic)
	if err != nil {
		glog.V(2).Info(err)
		return
	}
	val, err := DecodeValue(payload)
	if err != nil {
		glog.Warningf("%s: invalid payload: %v", topic, err)
		return
	}
	select {
	case l.updates <- bus.Update{Signal: sig, Value: val}:
	default:
		glog.V(2).Infof("drop %s", topic)
	}
}

// Send implements bus.Link. Updates are dropped while disconnected.
func (l *Link) Send(u bus.Update) error {
	select {
	case <-l.done:
		return io.ErrClosedPipe
	default:
	}
	payload, err := EncodeValue(u.Value)
	if err != nil {
		return err
	}
	if l.Queue.Client.IsConnected() {
		l.Queue.Pub(Topic(u.Signal), payload)
	}
	return nil
}

// Recv implements bus.Link.
func (l *Link) Recv() (bus.Update, error) {
	select {
	case <-l.done:
		return bus.Update{}, io.ErrClosedPipe
	case u := <-l.updates:
		return u, nil
	}
}

// Close implements bus.Link.
func (l *Link) Close() error {
	l.once.Do(func() { close(l.done) })
	return l.Queue.Close()
}
