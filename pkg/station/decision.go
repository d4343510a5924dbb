package station

import (
	"fmt"
	"strings"

	"github.com/robotalks/eol.go/pkg/eol"
)

// Subsystem names.
const (
	SubsystemGPIO   = "GPIO"
	SubsystemADC    = "ADC"
	SubsystemEEPROM = "EEPROM"
	SubsystemPower  = "POWER"
)

// Status is the outcome of one subsystem.
type Status struct {
	Subsystem string `json:"subsystem"`
	Pass      bool   `json:"pass"`
	Detail    string `json:"detail"`
}

func (s Status) String() string {
	if s.Pass {
		return fmt.Sprintf("%s: PASS (%s)", s.Subsystem, s.Detail)
	}
	return fmt.Sprintf("%s: FAIL (%s)", s.Subsystem, s.Detail)
}

// Verdict is the overall outcome of a unit.
type Verdict struct {
	Pass     bool     `json:"pass"`
	Statuses []Status `json:"statuses"`
}

// Failed lists the subsystems which failed.
func (v *Verdict) Failed() []string {
	var names []string
	for _, s := range v.Statuses {
		if !s.Pass {
			names = append(names, s.Subsystem)
		}
	}
	return names
}

// Add appends the status of another subsystem.
func (v *Verdict) Add(s Status) {
	v.Statuses = append(v.Statuses, s)
	v.Pass = v.Pass && s.Pass
}

// Lines renders the verdict for the operator.
func (v *Verdict) Lines() []string {
	lines := make([]string, 0, len(v.Statuses)+1)
	for _, s := range v.Statuses {
		lines = append(lines, s.String())
	}
	if v.Pass {
		lines = append(lines, "OVERALL: PASS")
	} else {
		lines = append(lines, "OVERALL: FAIL ("+strings.Join(v.Failed(), ", ")+")")
	}
	return lines
}

// Decide computes the verdict of a results record.
func Decide(r *eol.TestResults) *Verdict {
	v := &Verdict{Statuses: []Status{gpioStatus(r), adcStatus(r), eepromStatus(r)}}
	v.Pass = true
	for _, s := range v.Statuses {
		v.Pass = v.Pass && s.Pass
	}
	return v
}

func gpioStatus(r *eol.TestResults) Status {
	if r.GpioResult {
		return Status{Subsystem: SubsystemGPIO, Pass: true, Detail: "all pins OK"}
	}
	return Status{Subsystem: SubsystemGPIO, Detail: "GPIO test failed"}
}

func adcStatus(r *eol.TestResults) Status {
	if a := r.AdcResult; a != nil {
		return Status{
			Subsystem: SubsystemADC,
			Pass:      true,
			Detail:    fmt.Sprintf("worst pin %d at %+d mV", a.Pin, a.ToleranceMillivolts),
		}
	}
	return Status{Subsystem: SubsystemADC, Detail: "no tolerance result, ADC test failed"}
}

func eepromStatus(r *eol.TestResults) Status {
	s := Status{Subsystem: SubsystemEEPROM}
	switch r.EepromResult {
	case eol.EepromPass:
		s.Pass, s.Detail = true, "pattern verified"
	case eol.EepromNotRun:
		s.Detail = "EEPROM test not run"
	case eol.EepromFail:
		s.Detail = "EEPROM test failed"
	default:
		s.Detail = fmt.Sprintf("invalid EEPROM status %d", uint8(r.EepromResult))
	}
	return s
}
