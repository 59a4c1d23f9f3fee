package core

import (
	"context"
	"errors"
	"time"
)

// memStore is an EEPROM image that counts writes per cell
type memStore struct {
	cells  []uint8
	writes []int
	failAt int // fail the StoreByte for this address, -1 for never
}

func newMemStore(size int) *memStore {
	m := &memStore{
		cells:  make([]uint8, size),
		writes: make([]int, size),
		failAt: -1,
	}
	for i := range m.cells {
		m.cells[i] = Erased
	}
	return m
}

func (m *memStore) LoadByte(addr uint16) (uint8, error) {
	if int(addr) >= len(m.cells) {
		return 0, errors.New("address out of range")
	}
	return m.cells[addr], nil
}

func (m *memStore) StoreByte(addr uint16, value uint8) error {
	if int(addr) >= len(m.cells) {
		return errors.New("address out of range")
	}
	if int(addr) == m.failAt {
		return errors.New("write failed")
	}
	m.cells[addr] = value
	m.writes[addr]++
	return nil
}

func (m *memStore) Size() uint16 {
	return uint16(len(m.cells))
}

// mockOutput records the PWM level
type mockOutput struct {
	level   uint8
	enabled bool
	levels  []uint8
}

func (o *mockOutput) SetLevel(ch Channel, value uint8) error {
	o.level = value
	o.levels = append(o.levels, value)
	return nil
}

func (o *mockOutput) Enable() error {
	o.enabled = true
	return nil
}

func (o *mockOutput) Disable() error {
	o.enabled = false
	return nil
}

// mockSampler converts instantly
type mockSampler struct {
	readings map[SampleSource]uint8
	current  SampleSource
	started  int
}

func (s *mockSampler) Start(src SampleSource) error {
	s.current = src
	s.started++
	return nil
}

func (s *mockSampler) Ready() bool {
	return true
}

func (s *mockSampler) Result() uint8 {
	return s.readings[s.current]
}

// mockSwitch follows a script indexed by the board's tick count
type mockSwitch struct {
	board  *mockBoard
	script func(tick int) bool
}

func (s *mockSwitch) Closed() bool {
	if s.script == nil {
		return false
	}
	return s.script(s.board.ticks)
}

// mockBoard delivers one tick per idle sleep and one tick per TickPeriod
// of blocking delay. stop is checked before every sleep.
type mockBoard struct {
	isr     Interrupts
	period  time.Duration
	ticks   int
	sleeps  int
	elapsed time.Duration
	carry   time.Duration
	cutAt   time.Duration // power cut after this much delay, 0 for never
	stop    func() bool
	modes   []SleepMode

	out     *mockOutput
	sampler *mockSampler
	sw      *mockSwitch
	mem     *memStore
}

func newMockBoard(period time.Duration, mem *memStore) *mockBoard {
	b := &mockBoard{
		period:  period,
		out:     &mockOutput{},
		sampler: &mockSampler{readings: map[SampleSource]uint8{}},
		mem:     mem,
	}
	b.sw = &mockSwitch{board: b}
	return b
}

func (b *mockBoard) Board() Board {
	return Board{
		Output:  b.out,
		Sampler: b.sampler,
		Switch:  b.sw,
		Storage: b.mem,
		Power:   b,
		Clock:   b,
	}
}

func (b *mockBoard) Attach(isr Interrupts) {
	b.isr = isr
}

func (b *mockBoard) tick() {
	b.ticks++
	if b.isr.Tick != nil {
		b.isr.Tick()
	}
}

func (b *mockBoard) Sleep(ctx context.Context, mode SleepMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.stop != nil && b.stop() {
		return ErrPowerLost
	}
	b.sleeps++
	b.modes = append(b.modes, mode)
	if mode == SleepPowerDown {
		if !b.sw.Closed() {
			// Nothing will ever wake us: treat as the user cutting power
			return ErrPowerLost
		}
		if b.isr.PinChange != nil {
			b.isr.PinChange()
		}
		return nil
	}
	b.tick()
	return nil
}

func (b *mockBoard) Delay(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.cutAt > 0 && b.elapsed+d > b.cutAt {
		b.elapsed = b.cutAt
		return ErrPowerLost
	}
	b.elapsed += d
	b.carry += d
	for b.carry >= b.period {
		b.carry -= b.period
		b.tick()
	}
	return nil
}

// countEvents counts recorded events of type typ whose Value1 is v1
// (any Value1 when v1 is negative).
func countEvents(typ uint8, v1 int) int {
	n := 0
	for _, evt := range Events() {
		if evt.Type == typ && (v1 < 0 || evt.Value1 == uint32(v1)) {
			n++
		}
	}
	return n
}
