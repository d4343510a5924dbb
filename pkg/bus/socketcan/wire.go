// Package socketcan carries bus signals over a Linux SocketCAN interface,
// one raw CAN frame per update.
package socketcan

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/robotalks/eol.go/pkg/bus"
)

// Flags in the ID word of a raw frame.
const (
	flagEFF = 0x80000000
	flagRTR = 0x40000000
	flagERR = 0x20000000

	maskSFF = 0x000007ff
	maskEFF = 0x1fffffff
)

// WireFrameLen is the size of struct can_frame.
const WireFrameLen = 16

// ErrNotDataFrame is returned for remote and error frames.
var ErrNotDataFrame = errors.New("not a data frame")

// MarshalFrame lays out a frame as struct can_frame. IDs beyond the
// standard 11 bits are sent as extended frames.
func MarshalFrame(f bus.Frame) []byte {
	buf := make([]byte, WireFrameLen)
	id := f.ID & maskEFF
	if id > maskSFF {
		id |= flagEFF
	}
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = f.Len
	copy(buf[8:], f.Data[:])
	return buf
}

// UnmarshalFrame parses struct can_frame.
func UnmarshalFrame(buf []byte) (bus.Frame, error) {
	if len(buf) < WireFrameLen {
		return bus.Frame{}, fmt.Errorf("incomplete CAN frame: %d bytes", len(buf))
	}
	id := binary.LittleEndian.Uint32(buf[0:4])
	if id&(flagRTR|flagERR) != 0 {
		return bus.Frame{}, ErrNotDataFrame
	}
	f := bus.Frame{Len: buf[4]}
	if id&flagEFF != 0 {
		f.ID = id & maskEFF
	} else {
		f.ID = id & maskSFF
	}
	if f.Len > bus.FrameDataLen {
		return bus.Frame{}, fmt.Errorf("frame %#x: invalid length %d", f.ID, f.Len)
	}
	copy(f.Data[:], buf[8:16])
	return f, nil
}
