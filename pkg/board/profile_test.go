package board

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultProfile(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	pins := p.Pins()
	require.Len(t, pins.Gpio, 26)
	require.Len(t, pins.Adc, 18)
	require.Equal(t, Pin{Index: 1, Caps: CapGPIO | CapADC}, pins.Gpio[0])
	require.Equal(t, Pin{Index: 48, Caps: CapGPIO}, pins.Gpio[25])
	require.True(t, pins.Adc[17].Has(CapADC))
	require.InDelta(t, 309.4, p.Adc.PwmTargetMillivolts(3300), 0.1)
}

func TestParse(t *testing.T) {
	p, err := Parse([]byte(`
name: test
gpio_pins: [3, 1]
adc_pins: [1]
adc:
  tolerance_mv: 20
`))
	require.NoError(t, err)
	require.Equal(t, "test", p.Name)
	require.Equal(t, []uint32{3, 1}, p.GpioPins)
	require.Equal(t, int32(20), p.Adc.ToleranceMv)
	// untouched fields keep defaults
	require.Equal(t, int32(306), p.Adc.ExpectedMv)
	require.Equal(t, uint16(0xDEAD), p.Eeprom.Address)
	require.Equal(t, uint64(0b1010), Mask(p.Pins().Gpio))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Profile)
	}{
		{"no gpio pins", func(p *Profile) { p.GpioPins = nil }},
		{"no adc pins", func(p *Profile) { p.AdcPins = []uint32{} }},
		{"pin out of range", func(p *Profile) { p.GpioPins = []uint32{64} }},
		{"duplicated pin", func(p *Profile) { p.AdcPins = []uint32{2, 2} }},
		{"negative tolerance", func(p *Profile) { p.Adc.ToleranceMv = -1 }},
		{"zero threshold", func(p *Profile) { p.Adc.NoiseThresholdMv = 0 }},
		{"duty too large", func(p *Profile) { p.Adc.PwmDuty = 64 }},
		{"empty pattern", func(p *Profile) { p.Eeprom.Pattern = "" }},
		{"pattern overflow", func(p *Profile) { p.Eeprom.Address = 0xFFFF }},
		{"zero settle", func(p *Profile) { p.Gpio.SettleMs = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Default()
			tc.modify(p)
			require.Error(t, p.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("adc_pins: [1, 1]\n"), 0644))
	_, err := Load(fn)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
