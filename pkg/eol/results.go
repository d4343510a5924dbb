// Package eol defines the test results record the TESTER reports to the
// host station and its line encoding.
package eol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel prefixes every line carrying a results record.
const Sentinel = "TEST_RESULT:"

// ErrInvalidEepromStatus is returned when decoding an EEPROM status
// outside NOT_RUN, PASS and FAIL.
var ErrInvalidEepromStatus = errors.New("invalid eeprom status")

// EepromStatus is the tri-state outcome of the DUT EEPROM self test.
type EepromStatus uint8

// EEPROM statuses.
const (
	EepromNotRun EepromStatus = 0
	EepromPass   EepromStatus = 1
	EepromFail   EepromStatus = 2
)

// Valid tells if s is one of the defined statuses.
func (s EepromStatus) Valid() bool {
	return s <= EepromFail
}

func (s EepromStatus) String() string {
	switch s {
	case EepromNotRun:
		return "NOT_RUN"
	case EepromPass:
		return "PASS"
	case EepromFail:
		return "FAIL"
	}
	return fmt.Sprintf("EepromStatus(%d)", uint8(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *EepromStatus) UnmarshalJSON(data []byte) error {
	val, err := strconv.ParseUint(string(data), 10, 8)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEepromStatus, data)
	}
	if st := EepromStatus(val); st.Valid() {
		*s = st
		return nil
	}
	return fmt.Errorf("%w: %d", ErrInvalidEepromStatus, val)
}

// AdcResult is the worst-case tolerance seen during the ADC test: the
// pin and its signed deviation from the expected value in millivolts.
// It is encoded as a 2-element array.
type AdcResult struct {
	Pin                 uint32
	ToleranceMillivolts int32
}

// MarshalJSON implements json.Marshaler.
func (r AdcResult) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{int64(r.Pin), int64(r.ToleranceMillivolts)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *AdcResult) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("adc_result: %w", err)
	}
	if len(tuple) != 2 {
		return fmt.Errorf("adc_result: expect 2 elements, got %d", len(tuple))
	}
	var pin *uint32
	if err := json.Unmarshal(tuple[0], &pin); err != nil {
		return fmt.Errorf("adc_result pin: %w", err)
	}
	var tolerance *int32
	if err := json.Unmarshal(tuple[1], &tolerance); err != nil {
		return fmt.Errorf("adc_result tolerance: %w", err)
	}
	if pin == nil || tolerance == nil {
		return errors.New("adc_result: null element")
	}
	r.Pin, r.ToleranceMillivolts = *pin, *tolerance
	return nil
}

// TestResults is the record of one full test run of a unit.
type TestResults struct {
	GpioResult   bool         `json:"gpio_result"`
	AdcResult    *AdcResult   `json:"adc_result"`
	EepromResult EepromStatus `json:"eeprom_result"`
}

type wireResults struct {
	GpioResult   *bool           `json:"gpio_result"`
	AdcResult    json.RawMessage `json:"adc_result"`
	EepromResult *EepromStatus   `json:"eeprom_result"`
}

// Encode serializes the record as single-line JSON.
func (r *TestResults) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Line renders the record as a sentinel-tagged console line without the
// line terminator.
func (r *TestResults) Line() (string, error) {
	data, err := r.Encode()
	if err != nil {
		return "", err
	}
	return Sentinel + string(data), nil
}

// Decode parses a record. All three fields must be present and no other
// field is accepted.
func Decode(data []byte) (*TestResults, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w wireResults
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after record")
	}
	switch {
	case w.GpioResult == nil:
		return nil, errors.New("missing gpio_result")
	case w.AdcResult == nil:
		return nil, errors.New("missing adc_result")
	case w.EepromResult == nil:
		return nil, errors.New("missing eeprom_result")
	}
	r := &TestResults{GpioResult: *w.GpioResult, EepromResult: *w.EepromResult}
	if !bytes.Equal(bytes.TrimSpace(w.AdcResult), []byte("null")) {
		r.AdcResult = &AdcResult{}
		if err := json.Unmarshal(w.AdcResult, r.AdcResult); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// CutSentinel returns the payload following the sentinel and whether
// the line is tagged at all. Only a sentinel at the very start of the
// line counts.
func CutSentinel(line string) (string, bool) {
	return strings.CutPrefix(line, Sentinel)
}
