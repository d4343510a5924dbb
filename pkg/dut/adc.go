package dut

import (
	"github.com/robotalks/eol.go/pkg/board"
	"github.com/robotalks/eol.go/pkg/signals"
)

// Reading is the value of one analog pin in a scan.
type Reading struct {
	Pin        uint32
	Millivolts int32
}

// Scan is the classification of one pass over all analog pins.
type Scan struct {
	Uniqueness signals.Uniqueness
	Pin        uint32
	Millivolts int32
}

// Classify classifies a scan. A pin is active when the magnitude of its
// reading exceeds threshold. With more than one active pin the scan is
// NOT_UNIQUE and reports the last active pin.
func Classify(readings []Reading, threshold int32) Scan {
	var scan Scan
	for _, r := range readings {
		mv := r.Millivolts
		if mv < 0 {
			mv = -mv
		}
		if mv <= threshold {
			continue
		}
		uniq := signals.UniquenessUnique
		if scan.Uniqueness != signals.UniquenessNone {
			uniq = signals.UniquenessNotUnique
		}
		scan = Scan{Uniqueness: uniq, Pin: r.Pin, Millivolts: r.Millivolts}
	}
	return scan
}

func (e *Executor) scanAdc(pins []board.Pin) (Scan, error) {
	readings := make([]Reading, 0, len(pins))
	for _, pin := range pins {
		mv, err := e.ADC.ReadMillivolts(pin)
		if err != nil {
			return Scan{}, err
		}
		readings = append(readings, Reading{Pin: pin.Index, Millivolts: mv})
	}
	return Classify(readings, e.Profile.Adc.NoiseThresholdMv), nil
}
