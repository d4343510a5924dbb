package framework

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Rate is the period of a rate group.
type Rate time.Duration

// Predefined rate groups.
const (
	Rate1Hz   = Rate(time.Second)
	Rate10Hz  = Rate(100 * time.Millisecond)
	Rate100Hz = Rate(10 * time.Millisecond)
	Rate1kHz  = Rate(time.Millisecond)
)

// RateFuncs is a set of callbacks owned by one task. Each non-nil
// callback runs periodically in its rate group. Init runs once before
// any rate group starts.
type RateFuncs struct {
	Name  string
	Init  func()
	Hz1   func()
	Hz10  func()
	Hz100 func()
	Hz1k  func()
}

func (f *RateFuncs) at(rate Rate) func() {
	switch rate {
	case Rate1Hz:
		return f.Hz1
	case Rate10Hz:
		return f.Hz10
	case Rate100Hz:
		return f.Hz100
	case Rate1kHz:
		return f.Hz1k
	}
	return nil
}

// Tasking runs RateFuncs in independent rate groups. Callbacks in the
// same rate group run sequentially in registration order, different
// rate groups run concurrently.
type Tasking struct {
	Tasks []*RateFuncs
}

// NewTasking creates a Tasking.
func NewTasking(tasks ...*RateFuncs) *Tasking {
	return &Tasking{Tasks: tasks}
}

// Add registers more tasks. It must be called before Run.
func (t *Tasking) Add(tasks ...*RateFuncs) *Tasking {
	t.Tasks = append(t.Tasks, tasks...)
	return t
}

// Run implements Runnable.
func (t *Tasking) Run(ctx context.Context) error {
	for _, task := range t.Tasks {
		if task.Init != nil {
			glog.V(4).Infof("init task %s", task.Name)
			task.Init()
		}
	}
	runner := NewRunnerWith(ctx)
	for _, rate := range []Rate{Rate1Hz, Rate10Hz, Rate100Hz, Rate1kHz} {
		var fns []func()
		for _, task := range t.Tasks {
			if fn := task.at(rate); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) > 0 {
			runner.Go(&rateGroup{period: time.Duration(rate), fns: fns})
		}
	}
	if len(runner.Runners) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := runner.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

type rateGroup struct {
	period time.Duration
	fns    []func()
}

func (g *rateGroup) Name() string {
	return g.period.String()
}

func (g *rateGroup) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.period)
	defer ticker.Stop()
	g.tick()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *rateGroup) tick() {
	for _, fn := range g.fns {
		fn()
	}
}
