package station

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/golang/glog"
	"github.com/robotalks/eol.go/pkg/eol"
	fx "github.com/robotalks/eol.go/pkg/framework"
	"github.com/robotalks/eol.go/pkg/psu"
)

// Station tests one unit at a time: it powers the fixture, waits for the
// TESTER to report, decides the verdict and persists the record.
type Station struct {
	Results *ResultChannel
	// Power is nil when the fixture is powered externally.
	Power     *psu.Power
	Sink      Sink
	StationID string
	Board     string
	// Report receives the operator summary lines.
	Report func(string)

	closers []io.Closer
}

// AwaitResults reads until a valid record arrives. Malformed records
// and timeouts are logged and retried until ctx is done. A console
// failure ends the wait. The number of attempts is always returned.
func (s *Station) AwaitResults(ctx context.Context) (*eol.TestResults, int, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}
		results, err := s.Results.ReadResultContext(ctx)
		if err == nil {
			return results, attempt, nil
		}
		if !Retryable(err) {
			return nil, attempt, err
		}
		glog.Warningf("attempt %d: %v, retrying", attempt, err)
	}
}

// Test runs one unit. The record is returned when a verdict is reached,
// even if persisting it failed.
func (s *Station) Test(ctx context.Context) (*Record, error) {
	rec := NewRecord(s.StationID, s.Board)
	if s.Power != nil {
		if err := s.Power.Up(); err != nil {
			return nil, err
		}
		defer func() {
			if err := s.Power.Down(); err != nil {
				glog.Errorf("power down: %v", err)
			}
		}()
	}

	results, attempts, err := s.AwaitResults(ctx)
	rec.Attempts = attempts
	if err != nil {
		return nil, err
	}
	rec.Results = results
	rec.Verdict = Decide(results)
	if s.Power != nil {
		rec.Verdict.Add(powerStatus(s.Power.Check()))
	}

	for _, line := range rec.Verdict.Lines() {
		s.report(line)
	}
	if s.Sink != nil {
		if err := s.Sink.Store(ctx, rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func (s *Station) report(line string) {
	if s.Report != nil {
		s.Report(line)
		return
	}
	glog.Info(line)
}

// Close releases the console and sinks.
func (s *Station) Close() error {
	var errs fx.AggregatedError
	if s.Results != nil {
		errs.Add(s.Results.Close())
	}
	for _, c := range s.closers {
		errs.Add(c.Close())
	}
	return errs.Aggregate()
}

func powerStatus(err error) Status {
	if err == nil {
		return Status{Subsystem: SubsystemPower, Pass: true, Detail: "rails in range"}
	}
	var agg *fx.AggregatedError
	if errors.As(err, &agg) {
		msgs := make([]string, len(agg.Errors))
		for n, e := range agg.Errors {
			msgs[n] = e.Error()
		}
		return Status{Subsystem: SubsystemPower, Detail: strings.Join(msgs, "; ")}
	}
	return Status{Subsystem: SubsystemPower, Detail: err.Error()}
}
