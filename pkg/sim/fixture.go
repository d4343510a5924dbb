// Package sim simulates the EOL fixture: a DUT wired pin to pin to a
// TESTER, with an RC filter in front of every DUT analog input.
package sim

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/robotalks/eol.go/pkg/board"
	"github.com/robotalks/eol.go/pkg/hw"
)

// Defaults of the electrical model.
const (
	DefaultVccMillivolts = 3300
	DefaultTau           = 60 * time.Millisecond
	EepromSize           = 1 << 16
)

// ErrBroken is returned by a hardware access on an injected fault.
var ErrBroken = errors.New("hardware fault")

// Faults are manufacturing defects injected into the fixture.
type Faults struct {
	// Open pins are not connected between DUT and TESTER.
	Open []uint32
	// Bridged pairs are shorted together on DUT.
	Bridged [][2]uint32
	// StuckHigh pins always read high on TESTER.
	StuckHigh []uint32
	// AdcOffsetMv adds a constant error to DUT analog readings.
	AdcOffsetMv map[uint32]int32
	// EepromCorrupt flips a bit of every EEPROM write.
	EepromCorrupt bool
	// AdcBroken fails every DUT analog reading.
	AdcBroken bool
}

type rcNode struct {
	start  float64
	target float64
	since  time.Time
}

func (n *rcNode) voltage(now time.Time, tau time.Duration) float64 {
	dt := now.Sub(n.since)
	if dt <= 0 {
		return n.start
	}
	return n.target + (n.start-n.target)*math.Exp(-float64(dt)/float64(tau))
}

// Fixture is the simulated pair of boards.
type Fixture struct {
	Tau           time.Duration
	VccMillivolts float64
	Now           func() time.Time

	lock      sync.Mutex
	faults    Faults
	dutOutput uint64 // pins configured as output on DUT
	dutLevel  uint64 // levels driven by DUT
	testerOut uint64
	testerLvl uint64
	pwmPin    int
	pwmDuty   uint32
	pwmBits   uint8
	rc        map[uint32]*rcNode
	eeprom    []byte
}

// NewFixture creates a Fixture. pwmBits is the resolution of the
// TESTER PWM channel.
func NewFixture(pwmBits uint8) *Fixture {
	return &Fixture{
		Tau:           DefaultTau,
		VccMillivolts: DefaultVccMillivolts,
		pwmPin:        -1,
		pwmBits:       pwmBits,
		rc:            make(map[uint32]*rcNode),
		eeprom:        make([]byte, EepromSize),
	}
}

func (f *Fixture) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Inject replaces the injected faults.
func (f *Fixture) Inject(faults Faults) {
	f.lock.Lock()
	f.faults = faults
	f.lock.Unlock()
}

// PowerCycleDUT returns all DUT pins to input, as after a reset.
// EEPROM content survives.
func (f *Fixture) PowerCycleDUT() {
	f.lock.Lock()
	f.dutOutput, f.dutLevel = 0, 0
	f.lock.Unlock()
}

// DUT is the view of the DUT board.
func (f *Fixture) DUT() *DUT {
	return &DUT{f: f}
}

// Tester is the view of the TESTER board.
func (f *Fixture) Tester() *Tester {
	return &Tester{f: f}
}

func contains(pins []uint32, pin uint32) bool {
	for _, p := range pins {
		if p == pin {
			return true
		}
	}
	return false
}

// net returns all pins electrically connected to pin on DUT.
func (f *Fixture) net(pin uint32) []uint32 {
	pins := []uint32{pin}
	for _, pair := range f.faults.Bridged {
		if pair[0] == pin {
			pins = append(pins, pair[1])
		} else if pair[1] == pin {
			pins = append(pins, pair[0])
		}
	}
	return pins
}

// dutNetHigh tells whether any DUT output on the net of pin drives high.
func (f *Fixture) dutNetHigh(pin uint32) bool {
	for _, p := range f.net(pin) {
		bit := uint64(1) << p
		if f.dutOutput&bit != 0 && f.dutLevel&bit != 0 {
			return true
		}
	}
	return false
}

func (f *Fixture) rcAt(pin uint32, now time.Time) float64 {
	if n := f.rc[pin]; n != nil {
		return n.voltage(now, f.Tau)
	}
	return 0
}

func (f *Fixture) retarget(pin uint32, target float64, now time.Time) {
	f.rc[pin] = &rcNode{start: f.rcAt(pin, now), target: target, since: now}
}

func (f *Fixture) pwmTarget() float64 {
	return f.VccMillivolts * float64(f.pwmDuty) / float64(uint32(1)<<f.pwmBits)
}

// analog is the voltage seen on a DUT analog input.
func (f *Fixture) analog(pin uint32, now time.Time) float64 {
	var v float64
	for _, p := range f.net(pin) {
		if val := f.rcAt(p, now); val > v {
			v = val
		}
	}
	return v
}

// DUT implements hw.GPIO and hw.ADC for the DUT board, EEPROM
// returns its hw.EEPROM.
type DUT struct {
	f *Fixture
}

// SetDirection implements hw.GPIO.
func (d *DUT) SetDirection(pins []board.Pin, dir hw.Direction) error {
	mask := board.Mask(pins)
	d.f.lock.Lock()
	defer d.f.lock.Unlock()
	if dir == hw.Output {
		d.f.dutOutput |= mask
	} else {
		d.f.dutOutput &^= mask
	}
	return nil
}

// Write implements hw.GPIO.
func (d *DUT) Write(pins []board.Pin, mask uint64) error {
	all := board.Mask(pins)
	d.f.lock.Lock()
	defer d.f.lock.Unlock()
	d.f.dutLevel = d.f.dutLevel&^all | mask&all
	return nil
}

// Read implements hw.GPIO. DUT reads back its own levels.
func (d *DUT) Read(pins []board.Pin) (uint64, error) {
	d.f.lock.Lock()
	defer d.f.lock.Unlock()
	return d.f.dutLevel & board.Mask(pins), nil
}

// ReadMillivolts implements hw.ADC.
func (d *DUT) ReadMillivolts(pin board.Pin) (int32, error) {
	now := d.f.now()
	d.f.lock.Lock()
	defer d.f.lock.Unlock()
	if d.f.faults.AdcBroken {
		return 0, &hw.Error{Op: "adc read", Pin: int(pin.Index), Err: ErrBroken}
	}
	mv := int32(math.Round(d.f.analog(pin.Index, now)))
	return mv + d.f.faults.AdcOffsetMv[pin.Index], nil
}

// WriteEeprom writes EEPROM content.
func (d *DUT) WriteEeprom(addr uint16, data []byte) error {
	d.f.lock.Lock()
	defer d.f.lock.Unlock()
	if int(addr)+len(data) > len(d.f.eeprom) {
		return &hw.Error{Op: "eeprom write", Pin: -1, Err: errors.New("out of range")}
	}
	n := copy(d.f.eeprom[addr:], data)
	if d.f.faults.EepromCorrupt && n > 0 {
		d.f.eeprom[addr] ^= 0x01
	}
	return nil
}

// ReadEeprom reads EEPROM content.
func (d *DUT) ReadEeprom(addr uint16, buf []byte) error {
	d.f.lock.Lock()
	defer d.f.lock.Unlock()
	if int(addr)+len(buf) > len(d.f.eeprom) {
		return &hw.Error{Op: "eeprom read", Pin: -1, Err: errors.New("out of range")}
	}
	copy(buf, d.f.eeprom[addr:])
	return nil
}

// EEPROM returns the hw.EEPROM of the DUT.
func (d *DUT) EEPROM() hw.EEPROM {
	return eeprom{d}
}

type eeprom struct {
	d *DUT
}

func (e eeprom) Write(addr uint16, data []byte) error { return e.d.WriteEeprom(addr, data) }
func (e eeprom) Read(addr uint16, buf []byte) error   { return e.d.ReadEeprom(addr, buf) }

// Tester implements hw.GPIO and hw.PWM for the TESTER board.
type Tester struct {
	f *Fixture
}

// SetDirection implements hw.GPIO.
func (t *Tester) SetDirection(pins []board.Pin, dir hw.Direction) error {
	mask := board.Mask(pins)
	t.f.lock.Lock()
	defer t.f.lock.Unlock()
	if dir == hw.Output {
		t.f.testerOut |= mask
	} else {
		t.f.testerOut &^= mask
	}
	return nil
}

// Write implements hw.GPIO.
func (t *Tester) Write(pins []board.Pin, mask uint64) error {
	all := board.Mask(pins)
	t.f.lock.Lock()
	defer t.f.lock.Unlock()
	t.f.testerLvl = t.f.testerLvl&^all | mask&all
	return nil
}

// Read implements hw.GPIO. Input pins sense what DUT drives through the
// fixture wiring, output pins read back their own level.
func (t *Tester) Read(pins []board.Pin) (uint64, error) {
	t.f.lock.Lock()
	defer t.f.lock.Unlock()
	var mask uint64
	for _, pin := range pins {
		bit := pin.Bit()
		var high bool
		switch {
		case contains(t.f.faults.StuckHigh, pin.Index):
			high = true
		case t.f.testerOut&bit != 0:
			high = t.f.testerLvl&bit != 0
		case contains(t.f.faults.Open, pin.Index):
			high = false
		default:
			high = t.f.dutNetHigh(pin.Index)
		}
		if high {
			mask |= bit
		}
	}
	return mask, nil
}

// Drive implements hw.PWM.
func (t *Tester) Drive(pin board.Pin, duty uint32) error {
	now := t.f.now()
	t.f.lock.Lock()
	defer t.f.lock.Unlock()
	t.f.stopPWM(now)
	t.f.pwmPin, t.f.pwmDuty = int(pin.Index), duty
	if !contains(t.f.faults.Open, pin.Index) {
		t.f.retarget(pin.Index, t.f.pwmTarget(), now)
	}
	return nil
}

// Stop implements hw.PWM.
func (t *Tester) Stop() error {
	now := t.f.now()
	t.f.lock.Lock()
	defer t.f.lock.Unlock()
	t.f.stopPWM(now)
	return nil
}

func (f *Fixture) stopPWM(now time.Time) {
	if f.pwmPin >= 0 {
		f.retarget(uint32(f.pwmPin), 0, now)
	}
	f.pwmPin, f.pwmDuty = -1, 0
}
