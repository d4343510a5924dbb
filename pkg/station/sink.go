package station

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	fx "github.com/robotalks/eol.go/pkg/framework"
)

// Sink persists records.
type Sink interface {
	Store(ctx context.Context, r *Record) error
}

// Sinks stores a record into all sinks.
type Sinks []Sink

// Store implements Sink. Every sink is attempted.
func (s Sinks) Store(ctx context.Context, r *Record) error {
	var errs fx.AggregatedError
	for _, sink := range s {
		errs.Add(sink.Store(ctx, r))
	}
	return errs.Aggregate()
}

// FileSink writes one JSON document per run into Dir.
type FileSink struct {
	Dir string
}

// Filename is the file a record is written to.
func (s *FileSink) Filename(r *Record) string {
	return filepath.Join(s.Dir, r.Time.Format("20060102T150405Z")+"-"+r.RunID+".json")
}

// Store implements Sink.
func (s *FileSink) Store(ctx context.Context, r *Record) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	fn := s.Filename(r)
	if err := os.WriteFile(fn, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	glog.Infof("record saved to %s", fn)
	return nil
}
