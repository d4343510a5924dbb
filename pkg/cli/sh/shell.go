// Package sh is the interactive operator shell of the station.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/eol.go/pkg/board"
	"github.com/robotalks/eol.go/pkg/psu"
	"github.com/robotalks/eol.go/pkg/station"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Config  *station.Config
	Station *station.Station

	passed, failed int
}

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "
	openPrompt   = "eol > "
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&TestCmd,
		&PowerCmd,
		&RailsCmd,
		&ProfileCmd,
		&StatusCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(conf *station.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Shell:       ishell.New(),
		Config:      conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Open opens the station if it's not open yet.
func (s *Shell) Open(ctx context.Context) error {
	if s.Station != nil {
		return nil
	}
	st, err := s.Config.NewStation(ctx)
	if err != nil {
		return err
	}
	s.Station = st
	if s.Shell != nil {
		s.Shell.SetPrompt(openPrompt)
	}
	return nil
}

// Close closes the station.
func (s *Shell) Close() error {
	if s.Station == nil {
		return nil
	}
	err := s.Station.Close()
	s.Station = nil
	if s.Shell != nil {
		s.Shell.SetPrompt(closedPrompt)
	}
	return err
}

// Test tests one unit and keeps the tally.
func (s *Shell) Test(ctx context.Context) (*station.Record, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	rec, err := s.Station.Test(ctx)
	if rec != nil {
		if rec.Verdict.Pass {
			s.passed++
		} else {
			s.failed++
		}
	}
	return rec, err
}

func (s *Shell) power() (*psu.Power, error) {
	if err := s.Open(context.Background()); err != nil {
		return nil, err
	}
	if s.Station.Power == nil {
		return nil, fmt.Errorf("no power supply configured")
	}
	return s.Station.Power, nil
}

// SetPower turns the fixture on or off.
func (s *Shell) SetPower(on bool) error {
	p, err := s.power()
	if err != nil {
		return err
	}
	if on {
		return p.Up()
	}
	return p.Down()
}

// Rails measures all rails.
func (s *Shell) Rails() ([]string, error) {
	p, err := s.power()
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(p.Rails))
	for _, rail := range p.Rails {
		volts, err := p.Meter.MeasureVoltage(rail.Channel)
		if err != nil {
			return lines, err
		}
		verdict := "OK"
		if !rail.Contains(volts) {
			verdict = "OUT OF RANGE"
		}
		lines = append(lines, fmt.Sprintf("%s: %.3fV [%.2f, %.2f) %s", rail.Name, volts, rail.Min, rail.Max, verdict))
	}
	return lines, nil
}

// Profile renders the board profile in use.
func (s *Shell) Profile() (string, error) {
	profile := board.Default()
	if s.Config.BoardProfile != "" {
		p, err := board.Load(s.Config.BoardProfile)
		if err != nil {
			return "", err
		}
		profile = p
	}
	out, err := yaml.Marshal(profile)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Status summarizes the session.
func (s *Shell) Status() string {
	state := "closed"
	if s.Station != nil {
		state = fmt.Sprintf("open, station %s, board %s", s.Station.StationID, s.Station.Board)
	}
	return fmt.Sprintf("%s; %d passed, %d failed", state, s.passed, s.failed)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func printJSON(c *ishell.Context, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

var (
	// OpenCmd opens the console, power supply and sinks.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "open the station",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Open(context.Background()); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the station.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "close the station",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Close(); err != nil {
				c.Err(err)
			}
		},
	}

	// TestCmd tests one unit.
	TestCmd = ishell.Cmd{
		Name:    "test",
		Aliases: []string{"t", "run"},
		Help:    "test the unit in the fixture",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			rec, err := s.Test(ctx)
			if rec != nil {
				if s.OutputJSON {
					printJSON(c, rec)
				} else {
					for _, line := range rec.Verdict.Lines() {
						c.Println(line)
					}
				}
			}
			if err != nil {
				c.Err(err)
			}
		},
	}

	// PowerCmd switches the fixture power.
	PowerCmd = ishell.Cmd{
		Name: "power",
		Help: "on|off",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 || (c.Args[0] != "on" && c.Args[0] != "off") {
				c.Err(fmt.Errorf("usage: power on|off"))
				return
			}
			if err := ShellFrom(c).SetPower(c.Args[0] == "on"); err != nil {
				c.Err(err)
			}
		},
	}

	// RailsCmd measures the rails.
	RailsCmd = ishell.Cmd{
		Name: "rails",
		Help: "measure supply rails",
		Func: func(c *ishell.Context) {
			lines, err := ShellFrom(c).Rails()
			for _, line := range lines {
				c.Println(line)
			}
			if err != nil {
				c.Err(err)
			}
		},
	}

	// ProfileCmd prints the board profile.
	ProfileCmd = ishell.Cmd{
		Name: "profile",
		Help: "print the board profile",
		Func: func(c *ishell.Context) {
			out, err := ShellFrom(c).Profile()
			if err != nil {
				c.Err(err)
				return
			}
			c.Print(out)
		},
	}

	// StatusCmd prints the session status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "session status",
		Func: func(c *ishell.Context) {
			c.Println(ShellFrom(c).Status())
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(station.NewConfig()).Run(flag.Args()...)
}
