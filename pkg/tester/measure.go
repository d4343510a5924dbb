package tester

import (
	"fmt"

	"github.com/robotalks/eol.go/pkg/eol"
	"github.com/robotalks/eol.go/pkg/signals"
)

// NoPin is used in MeasurementError when no single pin is involved.
const NoPin = -1

// MeasurementError reports a reading out of expectation.
type MeasurementError struct {
	Test     string
	Pin      int
	Reason   string
	Expected int64
	Actual   int64
	// Mask renders Expected and Actual as bitmasks.
	Mask bool
}

// Error implements error.
func (e *MeasurementError) Error() string {
	where := e.Test
	if e.Pin != NoPin {
		where = fmt.Sprintf("%s pin %d", e.Test, e.Pin)
	}
	if e.Mask {
		return fmt.Sprintf("%s: %s: expected %#b, got %#b", where, e.Reason, uint64(e.Expected), uint64(e.Actual))
	}
	return fmt.Sprintf("%s: %s: expected %d, got %d", where, e.Reason, e.Expected, e.Actual)
}

// CheckGpio validates the sampled mask for a commanded pin.
func CheckGpio(pin uint32, mask uint64) error {
	if want := uint64(1) << pin; mask != want {
		return &MeasurementError{
			Test:     "GPIO",
			Pin:      int(pin),
			Reason:   "unexpected input state",
			Expected: int64(want),
			Actual:   int64(mask),
			Mask:     true,
		}
	}
	return nil
}

// AdcReadback is what DUT reports for a stimulated pin.
type AdcReadback struct {
	Uniqueness signals.Uniqueness
	ActivePin  int64
	Millivolts int64
}

// AdcSpec is the expected reading.
type AdcSpec struct {
	ExpectedMv  int32
	ToleranceMv int32
}

// CheckAdc validates the readback for a stimulated pin and returns the
// signed deviation from the expected value.
func CheckAdc(pin uint32, r AdcReadback, spec AdcSpec) (int32, error) {
	mErr := &MeasurementError{Test: "ADC", Pin: int(pin)}
	switch r.Uniqueness {
	case signals.UniquenessNone:
		mErr.Reason = "no active pin, pin disconnected?"
		mErr.Expected, mErr.Actual = int64(signals.UniquenessUnique), int64(r.Uniqueness)
		return 0, mErr
	case signals.UniquenessNotUnique:
		mErr.Reason = "multiple active pins, pins bridged?"
		mErr.Expected, mErr.Actual = int64(signals.UniquenessUnique), int64(r.Uniqueness)
		return 0, mErr
	case signals.UniquenessUnique:
	default:
		mErr.Reason = "invalid uniqueness"
		mErr.Expected, mErr.Actual = int64(signals.UniquenessUnique), int64(r.Uniqueness)
		return 0, mErr
	}
	if r.ActivePin != int64(pin) {
		mErr.Reason = "another pin is active, pins bridged or misrouted?"
		mErr.Expected, mErr.Actual = int64(pin), r.ActivePin
		return 0, mErr
	}
	deviation := r.Millivolts - int64(spec.ExpectedMv)
	if deviation > int64(spec.ToleranceMv) || deviation < -int64(spec.ToleranceMv) {
		mErr.Reason = fmt.Sprintf("millivolts out of tolerance %d", spec.ToleranceMv)
		mErr.Expected, mErr.Actual = int64(spec.ExpectedMv), r.Millivolts
		return 0, mErr
	}
	return int32(deviation), nil
}

// WorstCase tracks the largest magnitude deviation among passing pins.
// The first pin sets it, later pins replace it only when strictly larger.
type WorstCase struct {
	set    bool
	result eol.AdcResult
}

func abs32(v int32) int64 {
	if v < 0 {
		return -int64(v)
	}
	return int64(v)
}

// Observe records the deviation of a passing pin.
func (w *WorstCase) Observe(pin uint32, deviation int32) {
	if !w.set || abs32(deviation) > abs32(w.result.ToleranceMillivolts) {
		w.set = true
		w.result = eol.AdcResult{Pin: pin, ToleranceMillivolts: deviation}
	}
}

// Result returns the worst case, false if no pin was observed.
func (w *WorstCase) Result() (eol.AdcResult, bool) {
	return w.result, w.set
}
