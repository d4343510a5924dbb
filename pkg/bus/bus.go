// Package bus implements a last-value signal bus. Every signal has a
// single owning node which keeps overwriting its latest value; readers
// always see the most recent value or the signal default. Node liveness
// is derived from the time the node last published anything.
package bus

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultNodeTimeout is the liveness window of a node.
const DefaultNodeTimeout = 200 * time.Millisecond

// ErrPeerLost indicates a peer node stopped publishing.
var ErrPeerLost = errors.New("peer lost")

// Node names a participant on the bus.
type Node string

// Signal describes a named value with exactly one owner.
type Signal struct {
	Name    string
	Owner   Node
	ID      uint32 // frame ID on frame based links
	Default int64
}

// String implements fmt.Stringer.
func (s Signal) String() string {
	return s.Name
}

// Update carries a single value of a signal.
type Update struct {
	Signal Signal
	Value  int64
}

// String implements fmt.Stringer.
func (u Update) String() string {
	return fmt.Sprintf("%s=%d", u.Signal.Name, u.Value)
}

// Table resolves signals by name or frame ID.
type Table interface {
	Lookup(name string) (Signal, bool)
	LookupID(id uint32) (Signal, bool)
}

// Reader reads signal values and node liveness.
type Reader interface {
	Read(Signal) int64
	IsNodeLive(Node) bool
}

// Publisher overwrites signal values.
type Publisher interface {
	Publish(Signal, int64)
}

// ReadPublisher is the view a firmware actor has on the bus.
type ReadPublisher interface {
	Reader
	Publisher
}

type cell struct {
	sig   Signal
	value atomic.Int64
}

type node struct {
	lastSeen atomic.Int64 // unix nanos, 0 if never seen
}

// Bus is the shared last-value store. The set of signals and nodes is
// fixed when the Bus is created, all value access afterwards is lock-free.
type Bus struct {
	// Timeout is the liveness window, DefaultNodeTimeout if zero.
	Timeout time.Duration
	// Now is the clock, time.Now if nil.
	Now func() time.Time

	cells map[string]*cell
	byID  map[uint32]*cell
	nodes map[Node]*node
}

// New creates a Bus with the given signals. Signal names and non-zero
// frame IDs must be unique.
func New(signals ...Signal) *Bus {
	b := &Bus{
		cells: make(map[string]*cell),
		byID:  make(map[uint32]*cell),
		nodes: make(map[Node]*node),
	}
	for _, sig := range signals {
		if _, exist := b.cells[sig.Name]; exist {
			panic("duplicated signal " + sig.Name)
		}
		c := &cell{sig: sig}
		c.value.Store(sig.Default)
		b.cells[sig.Name] = c
		if sig.ID != 0 {
			if _, exist := b.byID[sig.ID]; exist {
				panic(fmt.Sprintf("duplicated frame ID %#x", sig.ID))
			}
			b.byID[sig.ID] = c
		}
		if b.nodes[sig.Owner] == nil {
			b.nodes[sig.Owner] = &node{}
		}
	}
	return b
}

func (b *Bus) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Bus) timeout() time.Duration {
	if b.Timeout > 0 {
		return b.Timeout
	}
	return DefaultNodeTimeout
}

// Signals lists all signals sorted by name.
func (b *Bus) Signals() []Signal {
	sigs := make([]Signal, 0, len(b.cells))
	for _, c := range b.cells {
		sigs = append(sigs, c.sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Name < sigs[j].Name })
	return sigs
}

// Owned lists the signals owned by a node sorted by name.
func (b *Bus) Owned(n Node) []Signal {
	var sigs []Signal
	for _, sig := range b.Signals() {
		if sig.Owner == n {
			sigs = append(sigs, sig)
		}
	}
	return sigs
}

// Nodes lists all nodes owning at least one signal.
func (b *Bus) Nodes() []Node {
	nodes := make([]Node, 0, len(b.nodes))
	for n := range b.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// Lookup implements Table.
func (b *Bus) Lookup(name string) (Signal, bool) {
	if c := b.cells[name]; c != nil {
		return c.sig, true
	}
	return Signal{}, false
}

// LookupID implements Table.
func (b *Bus) LookupID(id uint32) (Signal, bool) {
	if c := b.byID[id]; c != nil {
		return c.sig, true
	}
	return Signal{}, false
}

// Apply stores an update and marks the owner of the signal as seen.
// Updates of unknown signals are dropped.
func (b *Bus) Apply(u Update) {
	c := b.cells[u.Signal.Name]
	if c == nil {
		glog.V(2).Infof("drop update of unknown signal %s", u.Signal.Name)
		return
	}
	c.value.Store(u.Value)
	b.nodes[c.sig.Owner].lastSeen.Store(b.now().UnixNano())
}

// Read implements Reader.
func (b *Bus) Read(sig Signal) int64 {
	if c := b.cells[sig.Name]; c != nil {
		return c.value.Load()
	}
	return sig.Default
}

// IsNodeLive implements Reader.
func (b *Bus) IsNodeLive(n Node) bool {
	nd := b.nodes[n]
	if nd == nil {
		return false
	}
	seen := nd.lastSeen.Load()
	if seen == 0 {
		return false
	}
	return b.now().Sub(time.Unix(0, seen)) <= b.timeout()
}

// Reset restores the signals owned by a node to their defaults and
// forgets when the node was last seen, as a restart of that node does.
func (b *Bus) Reset(n Node) {
	for _, c := range b.cells {
		if c.sig.Owner == n {
			c.value.Store(c.sig.Default)
		}
	}
	if nd := b.nodes[n]; nd != nil {
		nd.lastSeen.Store(0)
	}
}

// Port creates the view of a node on the bus.
func (b *Bus) Port(n Node) *Port {
	return &Port{bus: b, node: n}
}

// Port is the view of a single node. A node may only publish the
// signals it owns.
type Port struct {
	bus  *Bus
	node Node
}

// Node returns the node of the port.
func (p *Port) Node() Node {
	return p.node
}

// Bus returns the underlying bus.
func (p *Port) Bus() *Bus {
	return p.bus
}

// Publish implements Publisher. Publishing a signal owned by another
// node is a programming error.
func (p *Port) Publish(sig Signal, val int64) {
	if sig.Owner != p.node {
		panic(fmt.Sprintf("node %s publishing %s owned by %s", p.node, sig.Name, sig.Owner))
	}
	p.bus.Apply(Update{Signal: sig, Value: val})
}

// Read implements Reader.
func (p *Port) Read(sig Signal) int64 {
	return p.bus.Read(sig)
}

// IsNodeLive implements Reader.
func (p *Port) IsNodeLive(n Node) bool {
	return p.bus.IsNodeLive(n)
}
