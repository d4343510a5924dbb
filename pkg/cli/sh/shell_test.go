package sh

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/robotalks/eol.go/pkg/psu"
	"github.com/robotalks/eol.go/pkg/station"
	"github.com/stretchr/testify/require"
)

const (
	staleLine = `TEST_RESULT:{"gpio_result":true,"adc_result":[1,0],"eeprom_result":0}`
	passLine  = `TEST_RESULT:{"gpio_result":true,"adc_result":[3,5],"eeprom_result":1}`
	failLine  = `TEST_RESULT:{"gpio_result":false,"adc_result":null,"eeprom_result":2}`
)

type bench struct {
	on bool
}

func (b *bench) AllOutputsOff() error                       { b.on = false; return nil }
func (b *bench) AllOutputsOn() error                        { b.on = true; return nil }
func (b *bench) SetVoltage(ch psu.Channel, v float64) error { return nil }
func (b *bench) SetCurrent(ch psu.Channel, a float64) error { return nil }
func (b *bench) SetLoadCV(ch psu.Channel) error             { return nil }
func (b *bench) MeasureVoltage(ch psu.Channel) (float64, error) {
	if ch == 1 {
		return 3.30, nil
	}
	return 5.10, nil
}

func newTestShell(console string, power *psu.Power) *Shell {
	results := station.NewResultChannel(io.NopCloser(strings.NewReader(console)))
	results.Deadline = time.Second
	return &Shell{
		Config: station.NewConfig(),
		Station: &station.Station{
			Results:   results,
			Power:     power,
			StationID: "bench",
			Board:     "eol-rev1",
			Report:    func(string) {},
		},
	}
}

func TestShellTally(t *testing.T) {
	s := newTestShell(staleLine+"\n"+passLine+"\n"+staleLine+"\n"+failLine+"\n", nil)
	rec, err := s.Test(context.Background())
	require.NoError(t, err)
	require.True(t, rec.Verdict.Pass)
	rec, err = s.Test(context.Background())
	require.NoError(t, err)
	require.False(t, rec.Verdict.Pass)
	require.Equal(t, "open, station bench, board eol-rev1; 1 passed, 1 failed", s.Status())
	require.NoError(t, s.Close())
	require.Equal(t, "closed; 1 passed, 1 failed", s.Status())
}

func TestShellPower(t *testing.T) {
	s := newTestShell("", nil)
	require.Error(t, s.SetPower(true))
	_, err := s.Rails()
	require.Error(t, err)

	supply := &bench{}
	s = newTestShell("", &psu.Power{Supply: supply, Meter: supply, Rails: psu.DefaultRails})
	require.NoError(t, s.SetPower(true))
	require.True(t, supply.on)
	lines, err := s.Rails()
	require.NoError(t, err)
	require.Equal(t, []string{
		"3V3: 3.300V [3.27, 3.35) OK",
		"5V0: 5.100V [4.98, 5.02) OUT OF RANGE",
	}, lines)
	require.NoError(t, s.SetPower(false))
	require.False(t, supply.on)
}

func TestShellProfile(t *testing.T) {
	s := newTestShell("", nil)
	out, err := s.Profile()
	require.NoError(t, err)
	require.Contains(t, out, "name: eol-rev1")
	require.Contains(t, out, "gpio_pins:")
}
