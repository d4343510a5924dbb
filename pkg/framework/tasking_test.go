package framework

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskingRunsRateGroups(t *testing.T) {
	var inits, fast, slow int32
	tasks := NewTasking(&RateFuncs{
		Name:  "test",
		Init:  func() { atomic.AddInt32(&inits, 1) },
		Hz100: func() { atomic.AddInt32(&fast, 1) },
		Hz1:   func() { atomic.AddInt32(&slow, 1) },
	})
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	err := tasks.Run(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Equal(t, int32(1), atomic.LoadInt32(&inits))
	require.True(t, atomic.LoadInt32(&fast) >= 5)
	// first tick fires immediately, next one is a second later
	require.Equal(t, int32(1), atomic.LoadInt32(&slow))
}

func TestTaskingWithoutCallbacks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTasking(&RateFuncs{Name: "empty"}).Run(ctx)
	require.Equal(t, context.Canceled, err)
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, context.Canceled, Sleep(ctx, time.Hour))
}

func TestAggregatedError(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	err := errs.Add(errA).Aggregate()
	require.Equal(t, "a", err.Error())
	err = errs.Add(nil, errB).Aggregate()
	require.Equal(t, "Multiple errors:\na\nb", err.Error())
	require.True(t, errors.Is(err, errB))
}
