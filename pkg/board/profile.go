// Package board describes the pins and test constants of a board revision.
package board

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxPins bounds pin indices so a pin set fits a 64-bit mask.
const MaxPins = 64

// Capability is a bit set of what a pin can be used for in the test.
type Capability uint8

// Capabilities.
const (
	CapGPIO Capability = 1 << iota
	CapADC
)

// Pin describes a test pin.
type Pin struct {
	Index uint32
	Caps  Capability
}

// Has tells if the pin has the capability.
func (p Pin) Has(c Capability) bool {
	return p.Caps&c == c
}

// Bit is the pin in a bitmask.
func (p Pin) Bit() uint64 {
	return 1 << p.Index
}

// Pins are the ordered pin descriptors built once from a Profile.
type Pins struct {
	Gpio []Pin
	Adc  []Pin
}

// GpioParams configures the GPIO test.
type GpioParams struct {
	SettleMs int `yaml:"settle_ms"`
}

// Settle is the interval between commanding a pin and sampling.
func (p GpioParams) Settle() time.Duration {
	return time.Duration(p.SettleMs) * time.Millisecond
}

// AdcParams configures the ADC test.
type AdcParams struct {
	NoiseThresholdMv  int32  `yaml:"noise_threshold_mv"`
	ExpectedMv        int32  `yaml:"expected_mv"`
	ToleranceMv       int32  `yaml:"tolerance_mv"`
	SettleMs          int    `yaml:"settle_ms"`
	ScanIntervalMs    int    `yaml:"scan_interval_ms"`
	PwmDuty           uint32 `yaml:"pwm_duty"`
	PwmResolutionBits uint8  `yaml:"pwm_resolution_bits"`
	PwmFrequencyHz    uint32 `yaml:"pwm_frequency_hz"`
}

// Settle is the time for the RC filter on DUT to settle after the
// stimulus moves to another pin.
func (p AdcParams) Settle() time.Duration {
	return time.Duration(p.SettleMs) * time.Millisecond
}

// ScanInterval is the period of DUT ADC scans.
func (p AdcParams) ScanInterval() time.Duration {
	return time.Duration(p.ScanIntervalMs) * time.Millisecond
}

// EepromParams configures the EEPROM self test.
type EepromParams struct {
	Address uint16 `yaml:"address"`
	Pattern string `yaml:"pattern"`
}

// Profile describes a board revision.
type Profile struct {
	Name     string       `yaml:"name"`
	GpioPins []uint32     `yaml:"gpio_pins"`
	AdcPins  []uint32     `yaml:"adc_pins"`
	Gpio     GpioParams   `yaml:"gpio"`
	Adc      AdcParams    `yaml:"adc"`
	Eeprom   EepromParams `yaml:"eeprom"`
}

// Default returns the profile of the current board revision.
func Default() *Profile {
	return &Profile{
		Name: "eol-rev1",
		GpioPins: []uint32{
			1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18,
			33, 34, 35, 36, 37, 40, 47, 48,
		},
		AdcPins: []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18},
		Gpio:    GpioParams{SettleMs: 50},
		Adc: AdcParams{
			NoiseThresholdMv:  15,
			ExpectedMv:        306,
			ToleranceMv:       15,
			SettleMs:          400,
			ScanIntervalMs:    5,
			PwmDuty:           6,
			PwmResolutionBits: 6,
			PwmFrequencyHz:    1000000,
		},
		Eeprom: EepromParams{Address: 0xDEAD, Pattern: "DEADBEEF"},
	}
}

// Load reads a YAML profile. Fields absent from the file keep the
// values of Default.
func Load(fn string) (*Profile, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML profile on top of Default and validates it.
func Parse(data []byte) (*Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse board profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the profile without modifying it.
func (p *Profile) Validate() error {
	if err := validatePins("gpio_pins", p.GpioPins); err != nil {
		return err
	}
	if err := validatePins("adc_pins", p.AdcPins); err != nil {
		return err
	}
	a := p.Adc
	switch {
	case p.Gpio.SettleMs <= 0:
		return errors.New("gpio.settle_ms must be positive")
	case a.NoiseThresholdMv <= 0:
		return errors.New("adc.noise_threshold_mv must be positive")
	case a.ToleranceMv < 0:
		return errors.New("adc.tolerance_mv must not be negative")
	case a.ExpectedMv <= a.NoiseThresholdMv:
		return errors.New("adc.expected_mv must be above the noise threshold")
	case a.SettleMs <= 0:
		return errors.New("adc.settle_ms must be positive")
	case a.ScanIntervalMs <= 0:
		return errors.New("adc.scan_interval_ms must be positive")
	case a.PwmResolutionBits == 0 || a.PwmResolutionBits > 20:
		return fmt.Errorf("adc.pwm_resolution_bits %d out of range", a.PwmResolutionBits)
	case a.PwmDuty == 0 || a.PwmDuty >= 1<<a.PwmResolutionBits:
		return fmt.Errorf("adc.pwm_duty %d out of range", a.PwmDuty)
	case len(p.Eeprom.Pattern) == 0:
		return errors.New("eeprom.pattern must not be empty")
	case int(p.Eeprom.Address)+len(p.Eeprom.Pattern) > 1<<16:
		return errors.New("eeprom.pattern exceeds address space")
	}
	return nil
}

func validatePins(field string, pins []uint32) error {
	if len(pins) == 0 {
		return fmt.Errorf("%s must not be empty", field)
	}
	seen := make(map[uint32]bool)
	for _, pin := range pins {
		if pin >= MaxPins {
			return fmt.Errorf("%s: pin %d out of range", field, pin)
		}
		if seen[pin] {
			return fmt.Errorf("%s: duplicated pin %d", field, pin)
		}
		seen[pin] = true
	}
	return nil
}

// Pins builds the pin descriptors in profile order.
func (p *Profile) Pins() Pins {
	caps := make(map[uint32]Capability)
	for _, pin := range p.GpioPins {
		caps[pin] |= CapGPIO
	}
	for _, pin := range p.AdcPins {
		caps[pin] |= CapADC
	}
	var pins Pins
	for _, index := range p.GpioPins {
		pins.Gpio = append(pins.Gpio, Pin{Index: index, Caps: caps[index]})
	}
	for _, index := range p.AdcPins {
		pins.Adc = append(pins.Adc, Pin{Index: index, Caps: caps[index]})
	}
	return pins
}

// Mask is the bitmask of all pins.
func Mask(pins []Pin) uint64 {
	var mask uint64
	for _, pin := range pins {
		mask |= pin.Bit()
	}
	return mask
}

// PwmTargetMillivolts is the average voltage of the PWM stimulus on a
// rail of vccMv millivolts.
func (p AdcParams) PwmTargetMillivolts(vccMv float64) float64 {
	return vccMv * float64(p.PwmDuty) / float64(uint32(1)<<p.PwmResolutionBits)
}
