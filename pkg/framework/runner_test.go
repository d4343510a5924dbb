package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

func TestRunnerFailureStopsOthers(t *testing.T) {
	errBoard := errors.New("board fault")
	runner := NewRunner()
	runner.Go(
		NamedRun("dut", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
		NamedRun("tester", RunFunc(func(ctx context.Context) error {
			return errBoard
		})),
	)
	err := runner.Wait()
	require.True(t, errors.Is(err, errBoard), err)
	require.Equal(t, "tester: board fault", err.Error())
	require.Error(t, runner.Context.Err())
}

func TestRunnerCleanExit(t *testing.T) {
	testCases := []struct {
		name string
		run  RunFunc
	}{
		{name: "returns nil", run: func(context.Context) error { return nil }},
		{name: "cancelled", run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			runner := NewRunnerWith(ctx).Go(tc.run, tc.run)
			cancel()
			require.NoError(t, runner.Wait())
		})
	}
}

func TestRunnerStop(t *testing.T) {
	runner := NewRunner().Go(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	runner.Stop()
	require.NoError(t, runner.Wait())
}

func TestRunWithContextCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	var closes int
	closer := closerFunc(func() error {
		closes++
		close(unblock)
		return nil
	})
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-unblock
		return errors.New("use of closed connection")
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, closes)

	closes = 0
	unblock = make(chan struct{})
	err = RunWithContextCloser(context.Background(), closer, func() error { return nil })
	require.NoError(t, err)
	require.Equal(t, 1, closes)
}
