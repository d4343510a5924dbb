package sim

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"
	"github.com/robotalks/eol.go/pkg/bus"
	fx "github.com/robotalks/eol.go/pkg/framework"
	"github.com/robotalks/eol.go/pkg/hw"
)

// Image builds the firmware of a single boot. Calling Restart on the
// given restarter ends the boot.
type Image func(hw.Restarter) fx.Runnable

// MCU runs a firmware image boot after boot. A restart resets the
// signals owned by the node to their defaults, the way a real reset
// silences the node on the bus.
type MCU struct {
	Node      bus.Node
	Bus       *bus.Bus
	Image     Image
	BootDelay time.Duration
	// Boots limits the number of boots, 0 for unlimited.
	Boots int
	// OnReset is called after each boot ends.
	OnReset func()
}

// Name implements Named.
func (m *MCU) Name() string {
	return string(m.Node)
}

// Run implements Runnable.
func (m *MCU) Run(ctx context.Context) error {
	for boot := 1; m.Boots == 0 || boot <= m.Boots; boot++ {
		if err := fx.Sleep(ctx, m.BootDelay); err != nil {
			return err
		}
		glog.Infof("%s: boot #%d", m.Node, boot)
		bootCtx, cancel := context.WithCancel(ctx)
		err := m.Image(hw.RestartFunc(cancel)).Run(bootCtx)
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			glog.Warningf("%s: boot #%d ended: %v", m.Node, boot, err)
		}
		m.Bus.Reset(m.Node)
		if m.OnReset != nil {
			m.OnReset()
		}
	}
	return nil
}
