package bus

import (
	"encoding/binary"
	"fmt"
)

// FrameDataLen is the payload length of a signal frame.
const FrameDataLen = 8

// Frame is a CAN style frame carrying one signal value.
type Frame struct {
	ID   uint32
	Len  uint8
	Data [FrameDataLen]byte
}

// UnknownSignalError is returned when a received frame or topic doesn't
// map to any known signal.
type UnknownSignalError struct {
	ID   uint32
	Name string
}

// Error implements error.
func (e *UnknownSignalError) Error() string {
	if e.Name != "" {
		return "unknown signal " + e.Name
	}
	return fmt.Sprintf("unknown signal frame %#x", e.ID)
}

// EncodeFrame encodes an update as a frame. The value is stored
// little-endian in all 8 data bytes.
func EncodeFrame(u Update) Frame {
	f := Frame{ID: u.Signal.ID, Len: FrameDataLen}
	binary.LittleEndian.PutUint64(f.Data[:], uint64(u.Value))
	return f
}

// DecodeFrame decodes a frame into an update.
func DecodeFrame(t Table, f Frame) (Update, error) {
	sig, ok := t.LookupID(f.ID)
	if !ok {
		return Update{}, &UnknownSignalError{ID: f.ID}
	}
	if f.Len != FrameDataLen {
		return Update{}, fmt.Errorf("frame %#x: invalid length %d", f.ID, f.Len)
	}
	return Update{Signal: sig, Value: int64(binary.LittleEndian.Uint64(f.Data[:]))}, nil
}
