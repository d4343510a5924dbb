package station

import (
	"context"
	"fmt"
	"net/url"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
)

// Measurement is the InfluxDB measurement records are written to.
const Measurement = "eol_run"

// InfluxSink writes a point per record to InfluxDB.
type InfluxSink struct {
	client *influxdb3.Client
}

// NewInfluxSink creates the sink from a URL like
// http://host:8181/?database=eol&token=xxx.
func NewInfluxSink(influxURL string) (*InfluxSink, error) {
	u, err := url.Parse(influxURL)
	if err != nil {
		return nil, fmt.Errorf("invalid InfluxDB URL: %w", err)
	}
	query := u.Query()
	database := query.Get("database")
	if database == "" {
		database = "eol"
	}
	token := query.Get("token")
	u.RawQuery = ""
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     u.String(),
		Token:    token,
		Database: database,
	})
	if err != nil {
		return nil, fmt.Errorf("create InfluxDB client: %w", err)
	}
	return &InfluxSink{client: client}, nil
}

// Store implements Sink.
func (s *InfluxSink) Store(ctx context.Context, r *Record) error {
	if err := s.client.WritePoints(ctx, []*influxdb3.Point{recordPoint(r)}); err != nil {
		return fmt.Errorf("write InfluxDB point: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *InfluxSink) Close() error {
	return s.client.Close()
}

func recordPoint(r *Record) *influxdb3.Point {
	tags := map[string]string{
		"station": r.StationID,
		"board":   r.Board,
		"run_id":  r.RunID,
	}
	fields := map[string]any{
		"pass":     r.Verdict.Pass,
		"attempts": int64(r.Attempts),
	}
	if res := r.Results; res != nil {
		fields["gpio"] = res.GpioResult
		fields["eeprom"] = int64(res.EepromResult)
		if adc := res.AdcResult; adc != nil {
			fields["adc_pin"] = int64(adc.Pin)
			fields["adc_tolerance_mv"] = int64(adc.ToleranceMillivolts)
		}
	}
	return influxdb3.NewPoint(Measurement, tags, fields, r.Time)
}
