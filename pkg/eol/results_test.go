package eol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLine(t *testing.T) {
	r := &TestResults{
		GpioResult:   true,
		AdcResult:    &AdcResult{Pin: 3, ToleranceMillivolts: -5},
		EepromResult: EepromPass,
	}
	line, err := r.Line()
	require.NoError(t, err)
	require.Equal(t, `TEST_RESULT:{"gpio_result":true,"adc_result":[3,-5],"eeprom_result":1}`, line)

	r = &TestResults{EepromResult: EepromFail}
	line, err = r.Line()
	require.NoError(t, err)
	require.Equal(t, `TEST_RESULT:{"gpio_result":false,"adc_result":null,"eeprom_result":2}`, line)
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
		expect  *TestResults
		invalid bool
	}{
		{
			name:    "pass",
			payload: `{"gpio_result":true,"adc_result":[3,5],"eeprom_result":1}`,
			expect:  &TestResults{GpioResult: true, AdcResult: &AdcResult{Pin: 3, ToleranceMillivolts: 5}, EepromResult: EepromPass},
		},
		{
			name:    "adc absent",
			payload: `{"gpio_result":true,"adc_result":null,"eeprom_result":0}`,
			expect:  &TestResults{GpioResult: true, EepromResult: EepromNotRun},
		},
		{
			name:    "trailing whitespace",
			payload: "{\"gpio_result\":false,\"adc_result\":[2,-15],\"eeprom_result\":2} \r",
			expect:  &TestResults{AdcResult: &AdcResult{Pin: 2, ToleranceMillivolts: -15}, EepromResult: EepromFail},
		},
		{name: "eeprom out of range", payload: `{"gpio_result":true,"adc_result":null,"eeprom_result":3}`, invalid: true},
		{name: "eeprom negative", payload: `{"gpio_result":true,"adc_result":null,"eeprom_result":-1}`, invalid: true},
		{name: "eeprom string", payload: `{"gpio_result":true,"adc_result":null,"eeprom_result":"1"}`, invalid: true},
		{name: "missing gpio", payload: `{"adc_result":null,"eeprom_result":1}`},
		{name: "missing adc", payload: `{"gpio_result":true,"eeprom_result":1}`},
		{name: "missing eeprom", payload: `{"gpio_result":true,"adc_result":null}`},
		{name: "unknown field", payload: `{"gpio_result":true,"adc_result":null,"eeprom_result":1,"x":1}`},
		{name: "short tuple", payload: `{"gpio_result":true,"adc_result":[3],"eeprom_result":1}`},
		{name: "null tuple elements", payload: `{"gpio_result":true,"adc_result":[null,null],"eeprom_result":1}`},
		{name: "null tolerance", payload: `{"gpio_result":true,"adc_result":[3,null],"eeprom_result":1}`},
		{name: "negative pin", payload: `{"gpio_result":true,"adc_result":[-3,1],"eeprom_result":1}`},
		{name: "truncated", payload: `{"gpio_result":true,"adc_res`},
		{name: "trailing garbage", payload: `{"gpio_result":true,"adc_result":null,"eeprom_result":1}x`},
		{name: "empty", payload: ``},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Decode([]byte(tc.payload))
			if tc.expect != nil {
				require.NoError(t, err)
				require.Equal(t, tc.expect, r)
				return
			}
			require.Error(t, err)
			require.Nil(t, r)
			require.Equal(t, tc.invalid, errors.Is(err, ErrInvalidEepromStatus), err.Error())
		})
	}
}

func TestCutSentinel(t *testing.T) {
	payload, ok := CutSentinel(`TEST_RESULT:{}`)
	require.True(t, ok)
	require.Equal(t, "{}", payload)
	_, ok = CutSentinel(`I (123) TEST_RESULT:{}`)
	require.False(t, ok)
	_, ok = CutSentinel(` TEST_RESULT:{}`)
	require.False(t, ok)
}
