package station

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/robotalks/eol.go/pkg/board"
	"github.com/robotalks/eol.go/pkg/psu"
)

// Config provides the options to set up a station.
type Config struct {
	// ConsoleURL is the TESTER console, see OpenConsole.
	ConsoleURL   string
	ReadDeadline time.Duration
	// BoardProfile is a YAML board profile, empty for the built-in one.
	BoardProfile string
	StationID    string

	// PSUPort is the serial port of the power supply, empty when the
	// fixture is powered externally.
	PSUPort   string
	PSUSettle time.Duration
	// MeterPort is the serial port of a Modbus meter measuring the rails
	// instead of the supply.
	MeterPort    string
	MeterBaud    int
	MeterSlaveID int
	MeterBase    int

	ResultsDir         string
	InfluxURL          string
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
}

var defaultConfig = Config{
	ConsoleURL:         "tcp://localhost:7070",
	ReadDeadline:       DefaultReadDeadline,
	PSUSettle:          4 * time.Second,
	MeterBaud:          9600,
	MeterSlaveID:       1,
	ResultsDir:         "results",
	ClickHouseDatabase: "default",
	ClickHouseUser:     "default",
}

func init() {
	if val := os.Getenv("EOL_CONSOLE"); val != "" {
		defaultConfig.ConsoleURL = val
	}
	if val := os.Getenv("EOL_RESULTS_DIR"); val != "" {
		defaultConfig.ResultsDir = val
	}
	if val := os.Getenv("EOL_BOARD_PROFILE"); val != "" {
		defaultConfig.BoardProfile = val
	}
	if val := os.Getenv("EOL_PSU_PORT"); val != "" {
		defaultConfig.PSUPort = val
	}
	if val := os.Getenv("EOL_INFLUX_URL"); val != "" {
		defaultConfig.InfluxURL = val
	}
	if val := os.Getenv("EOL_CLICKHOUSE_ADDR"); val != "" {
		defaultConfig.ClickHouseAddr = val
	}
	if val := os.Getenv("EOL_CLICKHOUSE_PASSWORD"); val != "" {
		defaultConfig.ClickHousePassword = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ConsoleURL, "console", defaultConfig.ConsoleURL, "TESTER console URL")
	flag.DurationVar(&defaultConfig.ReadDeadline, "deadline", defaultConfig.ReadDeadline, "Deadline of a single wait for results")
	flag.StringVar(&defaultConfig.BoardProfile, "board", defaultConfig.BoardProfile, "Board profile YAML")
	flag.StringVar(&defaultConfig.StationID, "station-id", defaultConfig.StationID, "Station ID, machine ID if empty")
	flag.StringVar(&defaultConfig.PSUPort, "psu", defaultConfig.PSUPort, "Power supply serial port")
	flag.DurationVar(&defaultConfig.PSUSettle, "psu-settle", defaultConfig.PSUSettle, "Settle time after power up")
	flag.StringVar(&defaultConfig.MeterPort, "meter", defaultConfig.MeterPort, "Modbus rail meter serial port")
	flag.IntVar(&defaultConfig.MeterBaud, "meter-baud", defaultConfig.MeterBaud, "Modbus rail meter baud rate")
	flag.IntVar(&defaultConfig.MeterSlaveID, "meter-slave", defaultConfig.MeterSlaveID, "Modbus rail meter slave ID")
	flag.IntVar(&defaultConfig.MeterBase, "meter-base", defaultConfig.MeterBase, "Input register of the first rail channel")
	flag.StringVar(&defaultConfig.ResultsDir, "results", defaultConfig.ResultsDir, "Directory for result records, empty to disable")
	flag.StringVar(&defaultConfig.InfluxURL, "influx", defaultConfig.InfluxURL, "InfluxDB URL")
	flag.StringVar(&defaultConfig.ClickHouseAddr, "clickhouse", defaultConfig.ClickHouseAddr, "ClickHouse addresses")
	flag.StringVar(&defaultConfig.ClickHouseDatabase, "clickhouse-db", defaultConfig.ClickHouseDatabase, "ClickHouse database")
	flag.StringVar(&defaultConfig.ClickHouseUser, "clickhouse-user", defaultConfig.ClickHouseUser, "ClickHouse user")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewStation opens all devices and sinks.
func (c *Config) NewStation(ctx context.Context) (*Station, error) {
	profile := board.Default()
	if c.BoardProfile != "" {
		p, err := board.Load(c.BoardProfile)
		if err != nil {
			return nil, err
		}
		profile = p
	}
	s := &Station{StationID: c.StationID, Board: profile.Name}
	if s.StationID == "" {
		s.StationID = StationID()
	}
	if err := c.setupPower(s); err != nil {
		s.Close()
		return nil, err
	}
	if err := c.setupSinks(ctx, s); err != nil {
		s.Close()
		return nil, err
	}
	console, err := OpenConsole(c.ConsoleURL)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Results = NewResultChannel(console)
	s.Results.Deadline = c.ReadDeadline
	s.Results.OnLine = func(line string) { glog.V(1).Infof("console: %s", line) }
	return s, nil
}

func (c *Config) setupPower(s *Station) error {
	if c.PSUPort == "" {
		return nil
	}
	supply, err := psu.OpenInstekGPP(c.PSUPort)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, supply)
	s.Power = &psu.Power{Supply: supply, Meter: supply, Rails: psu.DefaultRails, Settle: c.PSUSettle}
	if c.MeterPort != "" {
		meter, err := psu.OpenModbusMeter(c.MeterPort, c.MeterBaud, byte(c.MeterSlaveID))
		if err != nil {
			return err
		}
		meter.Base = uint16(c.MeterBase)
		s.closers = append(s.closers, meter)
		s.Power.Meter = meter
	}
	return nil
}

func (c *Config) setupSinks(ctx context.Context, s *Station) error {
	var sinks Sinks
	if c.ResultsDir != "" {
		sinks = append(sinks, &FileSink{Dir: c.ResultsDir})
	}
	if c.InfluxURL != "" {
		sink, err := NewInfluxSink(c.InfluxURL)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, sink)
		sinks = append(sinks, sink)
	}
	if c.ClickHouseAddr != "" {
		sink, err := NewClickHouseSink(ctx, c.ClickHouseAddr, c.ClickHouseDatabase, c.ClickHouseUser, c.ClickHousePassword)
		if err != nil {
			return fmt.Errorf("setup ClickHouse sink: %w", err)
		}
		s.closers = append(s.closers, sink)
		sinks = append(sinks, sink)
	}
	if len(sinks) > 0 {
		s.Sink = sinks
	}
	return nil
}
