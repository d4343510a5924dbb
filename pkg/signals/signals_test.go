package signals

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBusDefaults(t *testing.T) {
	b := NewBus()
	require.Equal(t, int64(PhaseNone), b.Read(TesterCurrentTest))
	require.Equal(t, GpioNone, b.Read(TesterCurrentGpio))
	require.Equal(t, AdcPinNone, b.Read(DutAdcActivePin))
	require.Len(t, b.Owned(DUT), 4)
	require.Len(t, b.Owned(TESTER), 2)
}

func TestDescribe(t *testing.T) {
	testCases := []struct {
		name   string
		val    int64
		expect string
	}{
		{TesterCurrentTest.Name, int64(PhaseAdcTest), "ADC_TEST"},
		{TesterCurrentGpio.Name, GpioNone, "none"},
		{TesterCurrentGpio.Name, 5, "5"},
		{DutAdcUniqueness.Name, int64(UniquenessNotUnique), "NOT_UNIQUE"},
		{DutAdcActiveMillivolts.Name, 306, "306mV"},
		{DutEepromTestStatus.Name, 2, "FAIL"},
		{TesterCurrentTest.Name, 9, "TestPhase(9)"},
	}
	b := NewBus()
	for _, tc := range testCases {
		sig, ok := b.Lookup(tc.name)
		require.True(t, ok)
		require.Equal(t, tc.expect, Describe(sig, tc.val))
	}
}
