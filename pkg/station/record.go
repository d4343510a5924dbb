package station

import (
	"time"

	"github.com/google/uuid"
	"github.com/robotalks/eol.go/pkg/eol"
)

// Record is the persisted outcome of testing one unit.
type Record struct {
	RunID     string           `json:"run_id"`
	StationID string           `json:"station_id"`
	Board     string           `json:"board"`
	Time      time.Time        `json:"time"`
	Attempts  int              `json:"attempts"`
	Results   *eol.TestResults `json:"results,omitempty"`
	Verdict   *Verdict         `json:"verdict"`
}

// NewRecord starts a record with a fresh run ID.
func NewRecord(stationID, board string) *Record {
	return &Record{
		RunID:     uuid.NewString(),
		StationID: stationID,
		Board:     board,
		Time:      time.Now().UTC(),
	}
}
