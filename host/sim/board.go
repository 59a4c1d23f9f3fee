package sim

import (
	"context"
	"errors"
	"math"
	"time"

	"glimmer/core"
)

// ErrFinished is returned by the board once the script has run out
var ErrFinished = errors.New("script finished")

// Defaults for the simulated analog inputs
const (
	DefaultVoltage     = 160
	DefaultTemperature = 100
	DefaultEEPROMSize  = 256
	FullCharge         = 255
)

type interval struct {
	start, end time.Duration
}

func (iv interval) contains(t time.Duration) bool {
	return t >= iv.start && t < iv.end
}

type readingChange struct {
	at    time.Duration
	src   core.SampleSource
	value uint8
}

// timeline is a script laid out on the simulated clock
type timeline struct {
	cuts     []interval
	presses  []interval
	readings []readingChange
	end      time.Duration
}

func newTimeline(s Script) *timeline {
	tl := &timeline{}
	var t time.Duration
	for _, st := range s {
		switch st.Action {
		case ActCut:
			tl.cuts = append(tl.cuts, interval{t, t + st.Duration})
		case ActPress:
			tl.presses = append(tl.presses, interval{t, t + st.Duration})
		case ActReading:
			tl.readings = append(tl.readings, readingChange{t, st.Source, st.Value})
		}
		t += st.Duration
	}
	tl.end = t
	return tl
}

func within(ivs []interval, t time.Duration) (interval, bool) {
	for _, iv := range ivs {
		if iv.contains(t) {
			return iv, true
		}
	}
	return interval{}, false
}

// nextEdge returns the first interval boundary after t
func nextEdge(ivs []interval, t time.Duration) (time.Duration, bool) {
	best, found := time.Duration(0), false
	for _, iv := range ivs {
		for _, e := range [2]time.Duration{iv.start, iv.end} {
			if e > t && (!found || e < best) {
				best, found = e, true
			}
		}
	}
	return best, found
}

// Board is a simulated light engine. It implements every core HAL
// interface on a virtual clock that only moves when the core sleeps or
// delays, so runs are deterministic and take no wall time.
type Board struct {
	cfg core.Config
	tl  *timeline
	isr core.Interrupts

	now   time.Duration
	carry time.Duration

	// Tau is the RC constant of the off-time capacitor
	Tau time.Duration
	// Reserve is how long an off-time sleep MCU survives on its hold-up capacitor
	Reserve time.Duration

	charge   uint8
	readings map[core.SampleSource]uint8
	pending  core.SampleSource
	started  bool

	EEPROM *EEPROM
	Output *Output
}

// NewBoard creates a board for cfg with a blank EEPROM
func NewBoard(cfg core.Config) *Board {
	b := &Board{
		cfg:     cfg,
		tl:      &timeline{},
		Tau:     1700 * time.Millisecond,
		Reserve: 3 * time.Second,
		readings: map[core.SampleSource]uint8{
			core.SampleVoltage:     DefaultVoltage,
			core.SampleTemperature: DefaultTemperature,
		},
		EEPROM: NewEEPROM(DefaultEEPROMSize),
	}
	b.Output = &Output{board: b}
	return b
}

// HAL returns the board as the collaborator bundle the driver takes
func (b *Board) HAL() core.Board {
	return core.Board{
		Output:  b.Output,
		Sampler: b,
		Switch:  b,
		Storage: b.EEPROM,
		Power:   b,
		Clock:   b,
	}
}

// Now returns the simulated time
func (b *Board) Now() time.Duration {
	return b.now
}

func (b *Board) load(s Script) {
	b.tl = newTimeline(s)
	b.now = 0
	b.carry = 0
}

// supplied reports whether the supply is connected at t
func (b *Board) supplied(t time.Duration) bool {
	_, cut := within(b.tl.cuts, t)
	return !cut
}

// Closed is the switch pin: the button on e-switch builds, the
// supply-sense input on everything else.
func (b *Board) Closed() bool {
	if b.cfg.Input == core.InputESwitch {
		_, pressed := within(b.tl.presses, b.now)
		return pressed
	}
	return b.supplied(b.now)
}

// Start begins an ADC conversion. Simulated conversions finish at once.
func (b *Board) Start(src core.SampleSource) error {
	b.pending = src
	b.started = true
	return nil
}

func (b *Board) Ready() bool {
	return b.started
}

func (b *Board) Result() uint8 {
	b.started = false
	if b.pending == core.SampleOffTimeCap {
		return b.charge
	}
	v := b.readings[b.pending]
	for _, rc := range b.tl.readings {
		if rc.at <= b.now && rc.src == b.pending {
			v = rc.value
		}
	}
	return v
}

// Attach registers the ISR handlers of a freshly booted driver
func (b *Board) Attach(isr core.Interrupts) {
	b.isr = isr
}

// Sleep advances the clock. Idle and watchdog sleeps last until the next
// tick; power-down lasts until the next switch or supply edge.
func (b *Board) Sleep(ctx context.Context, mode core.SleepMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mode == core.SleepPowerDown {
		return b.powerDown()
	}
	return b.advance(b.cfg.TickPeriod-b.carry, false)
}

func (b *Board) powerDown() error {
	ivs := b.tl.presses
	if b.cfg.Input != core.InputESwitch {
		ivs = b.tl.cuts
	}
	edge, ok := nextEdge(ivs, b.now)
	if !ok || edge >= b.tl.end {
		b.now = b.tl.end
		return ErrFinished
	}
	b.now = edge
	b.carry = 0
	if b.lost() {
		return core.ErrPowerLost
	}
	if b.isr.PinChange != nil {
		b.isr.PinChange()
	}
	return nil
}

// Delay blocks for d of simulated time with ticks still delivered
func (b *Board) Delay(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.advance(d, true)
}

// advance moves the clock by d, firing a tick at every period boundary.
// It stops early at a supply cut the core cannot survive.
func (b *Board) advance(d time.Duration, blocking bool) error {
	for d > 0 {
		step := b.cfg.TickPeriod - b.carry
		if step > d {
			step = d
		}
		if edge, ok := nextEdge(b.tl.cuts, b.now); ok && edge-b.now < step {
			step = edge - b.now
		}
		b.now += step
		b.carry += step
		d -= step
		if b.carry >= b.cfg.TickPeriod {
			b.carry = 0
			if b.isr.Tick != nil {
				b.isr.Tick()
			}
		}
		if b.now >= b.tl.end {
			return ErrFinished
		}
		if b.lost() || (blocking && b.cfg.Input == core.InputOTSM && !b.supplied(b.now)) {
			return core.ErrPowerLost
		}
	}
	return nil
}

// lost reports whether the MCU has lost power at the current time
func (b *Board) lost() bool {
	cut, ok := within(b.tl.cuts, b.now)
	if !ok {
		return false
	}
	switch b.cfg.Input {
	case core.InputESwitch:
		return false
	case core.InputOTSM:
		return b.now-cut.start >= b.Reserve
	}
	return true
}

// restore waits out the current cut and returns how long the MCU was
// unpowered, measured from the start of the cut.
func (b *Board) restore() (time.Duration, error) {
	cut, ok := within(b.tl.cuts, b.now)
	if !ok {
		return 0, nil
	}
	if cut.end >= b.tl.end {
		b.now = b.tl.end
		return 0, ErrFinished
	}
	b.now = cut.end
	b.carry = 0
	off := cut.end - cut.start
	b.charge = Discharge(off, b.Tau)
	return off, nil
}

// Discharge returns the off-time capacitor reading after being unpowered
// for off, starting from a full charge.
func Discharge(off, tau time.Duration) uint8 {
	if tau <= 0 {
		return 0
	}
	v := FullCharge * math.Exp(-off.Seconds()/tau.Seconds())
	return uint8(math.Round(v))
}

// Level is one output change
type Level struct {
	At    time.Duration
	Value uint8
}

// Output records PWM changes and implements core.Pulser
type Output struct {
	board   *Board
	level   uint8
	enabled bool

	Changes []Level
	Trains  int
}

func (o *Output) SetLevel(ch core.Channel, value uint8) error {
	if value != o.level || len(o.Changes) == 0 {
		o.Changes = append(o.Changes, Level{At: o.board.now, Value: value})
	}
	o.level = value
	return nil
}

func (o *Output) Enable() error {
	o.enabled = true
	return nil
}

func (o *Output) Disable() error {
	o.enabled = false
	return nil
}

// Pulse starts a hardware strobe train
func (o *Output) Pulse(count uint32, hz uint32) error {
	o.Trains++
	return nil
}

func (o *Output) StopPulse() error {
	return nil
}

// Level returns the current duty cycle, 0 when disabled
func (o *Output) Level() uint8 {
	if !o.enabled {
		return 0
	}
	return o.level
}

// EEPROM is a byte array with per-cell write counts
type EEPROM struct {
	cells  []uint8
	Writes []int
}

// NewEEPROM returns an erased EEPROM of size bytes
func NewEEPROM(size int) *EEPROM {
	e := &EEPROM{cells: make([]uint8, size), Writes: make([]int, size)}
	for i := range e.cells {
		e.cells[i] = core.Erased
	}
	return e
}

func (e *EEPROM) LoadByte(addr uint16) (uint8, error) {
	if int(addr) >= len(e.cells) {
		return 0, errors.New("eeprom: address out of range")
	}
	return e.cells[addr], nil
}

func (e *EEPROM) StoreByte(addr uint16, value uint8) error {
	if int(addr) >= len(e.cells) {
		return errors.New("eeprom: address out of range")
	}
	e.cells[addr] = value
	e.Writes[addr]++
	return nil
}

func (e *EEPROM) Size() uint16 {
	return uint16(len(e.cells))
}

// MaxWrites returns the highest write count of any cell
func (e *EEPROM) MaxWrites() int {
	max := 0
	for _, n := range e.Writes {
		if n > max {
			max = n
		}
	}
	return max
}
