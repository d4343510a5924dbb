package station

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
)

// DefaultTable is the ClickHouse table records are inserted into.
const DefaultTable = "eol_runs"

// ClickHouseSink inserts a row per record into ClickHouse.
type ClickHouseSink struct {
	Table string
	conn  driver.Conn
}

// NewClickHouseSink connects to ClickHouse and creates the table.
func NewClickHouseSink(ctx context.Context, addr, database, username, password string) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: strings.Split(addr, ","),
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping ClickHouse: %w", err)
	}
	s := &ClickHouseSink{Table: DefaultTable, conn: conn}
	if err := conn.Exec(ctx, createTableQuery(s.Table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create table %s: %w", s.Table, err)
	}
	return s, nil
}

func createTableQuery(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime64(3),
			run_id UUID,
			station String,
			board String,
			attempts UInt32,
			pass Bool,
			gpio Bool,
			adc_pin Nullable(UInt32),
			adc_tolerance_mv Nullable(Int32),
			eeprom UInt8,
			failed Array(String)
		) ENGINE = MergeTree()
		ORDER BY (timestamp, station)
		PARTITION BY toYYYYMM(timestamp)
	`, table)
}

// Store implements Sink.
func (s *ClickHouseSink) Store(ctx context.Context, r *Record) error {
	runID, err := uuid.Parse(r.RunID)
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", r.RunID, err)
	}
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.Table)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	var (
		gpio      bool
		eeprom    uint8
		adcPin    *uint32
		tolerance *int32
	)
	if res := r.Results; res != nil {
		gpio, eeprom = res.GpioResult, uint8(res.EepromResult)
		if adc := res.AdcResult; adc != nil {
			adcPin, tolerance = &adc.Pin, &adc.ToleranceMillivolts
		}
	}
	failed := r.Verdict.Failed()
	if failed == nil {
		failed = []string{}
	}
	if err := batch.Append(
		r.Time,
		runID,
		r.StationID,
		r.Board,
		uint32(r.Attempts),
		r.Verdict.Pass,
		gpio,
		adcPin,
		tolerance,
		eeprom,
		failed,
	); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
