//go:build !linux

package socketcan

import (
	"errors"

	"github.com/robotalks/eol.go/pkg/bus"
)

// Open is only supported on Linux.
func Open(ifname string, table bus.Table, signals []bus.Signal) (bus.Link, error) {
	return nil, errors.New("socketcan is only supported on linux")
}
