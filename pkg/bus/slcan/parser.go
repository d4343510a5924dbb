// Package slcan carries bus signals over a serial line in the ASCII
// frame format of the fixture's USB bridge:
//
//	T<8 hex id><len digit><2*len hex data>\r   extended frame
//	t<3 hex id><len digit><2*len hex data>\r   standard frame
package slcan

import (
	"github.com/robotalks/eol.go/pkg/bus"
)

const hexDigits = "0123456789ABCDEF"

// EncodeLine formats a frame. Frames are always sent extended, as the
// bridge does.
func EncodeLine(f bus.Frame) []byte {
	buf := make([]byte, 0, 11+2*int(f.Len))
	buf = append(buf, 'T')
	for shift := 28; shift >= 0; shift -= 4 {
		buf = append(buf, hexDigits[(f.ID>>uint(shift))&0xf])
	}
	buf = append(buf, '0'+f.Len)
	for _, b := range f.Data[:f.Len] {
		buf = append(buf, hexDigits[b>>4], hexDigits[b&0xf])
	}
	return append(buf, '\r')
}

type parseState int

const (
	stateIdle parseState = iota // waiting for T or t
	stateID                     // waiting for id digits
	stateLen                    // waiting for length digit
	stateData                   // waiting for data nibbles
	stateEnd                    // waiting for \r
)

// Parser parses the byte stream one byte at a time. Malformed frames
// are counted and skipped, the parser resynchronizes on the next frame
// start.
type Parser struct {
	// Dropped counts malformed frames.
	Dropped int

	state   parseState
	frame   bus.Frame
	idLeft  int
	nibbles int
}

// Parse consumes one byte and returns a frame when one completes.
func (p *Parser) Parse(b byte) *bus.Frame {
	switch p.state {
	case stateIdle:
		p.start(b)
	case stateID:
		n, ok := nibble(b)
		if !ok {
			return p.resync(b)
		}
		p.frame.ID = p.frame.ID<<4 | uint32(n)
		if p.idLeft--; p.idLeft == 0 {
			p.state = stateLen
		}
	case stateLen:
		if b < '0' || b > '0'+bus.FrameDataLen {
			return p.resync(b)
		}
		p.frame.Len = b - '0'
		p.nibbles = 0
		if p.frame.Len == 0 {
			p.state = stateEnd
		} else {
			p.state = stateData
		}
	case stateData:
		n, ok := nibble(b)
		if !ok {
			return p.resync(b)
		}
		idx := p.nibbles / 2
		p.frame.Data[idx] = p.frame.Data[idx]<<4 | n
		if p.nibbles++; p.nibbles == 2*int(p.frame.Len) {
			p.state = stateEnd
		}
	case stateEnd:
		if b != '\r' && b != '\n' {
			return p.resync(b)
		}
		f := p.frame
		p.state = stateIdle
		return &f
	}
	return nil
}

func (p *Parser) start(b byte) {
	switch b {
	case 'T':
		p.idLeft = 8
	case 't':
		p.idLeft = 3
	default:
		return
	}
	p.frame = bus.Frame{}
	p.state = stateID
}

func (p *Parser) resync(b byte) *bus.Frame {
	p.Dropped++
	p.state = stateIdle
	p.start(b)
	return nil
}

func nibble(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}
