package core

import (
	"context"
	"errors"
)

// DriverState is the scheduler's power state
type DriverState uint8

const (
	StateActive DriverState = iota
	StateSleepingForInput
	StateSleepingIdle
)

func (s DriverState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSleepingForInput:
		return "sleeping-for-input"
	case StateSleepingIdle:
		return "sleeping-idle"
	default:
		return "unknown"
	}
}

// errAccepted ends a menu window when an e-switch press accepts the value
var errAccepted = errors.New("menu value accepted")

// fastState is written by the ISRs. Access only inside Critical.
type fastState struct {
	ticks uint32
	edges uint8
}

// Driver is the low-power scheduler. It owns the main loop, the mode state
// machine, the persisted state and every periodic monitor.
type Driver struct {
	cfg    Config
	board  Board
	store  *Store
	clicks *ClickHistory

	state   PersistedState
	machine *ModeMachine

	voltage       VoltageMonitor
	thermal       ThermalRegulator
	turbo         TurboTimer
	thermalOrigin uint8

	debounce *Debouncer
	hold     HoldTracker
	gapTicks uint16

	timers       TimerQueue
	voltageTimer Timer
	thermalTimer Timer
	saveTimer    Timer
	adcBusy      bool
	adcSource    SampleSource

	fast     fastState
	lastTick uint32
	run      DriverState
	booted   bool
	shutdown bool
	pulsing  bool

	pendingVoltage VoltageAction
	pendingThermal ThermalAction
	pendingTurbo   bool
	pendingMenu    bool
	supplyLost     bool
}

// NewDriver validates cfg and board and attaches the ISR handlers. clicks
// is the history that survives short power cuts; nil allocates a fresh one
// (e-switch boards keep it in ordinary RAM).
func NewDriver(cfg Config, board Board, clicks *ClickHistory) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := board.validate(); err != nil {
		return nil, err
	}
	store, err := NewStore(board.Storage)
	if err != nil {
		return nil, err
	}
	if clicks == nil {
		clicks = &ClickHistory{}
	}

	d := &Driver{
		cfg:      cfg,
		board:    board,
		store:    store,
		clicks:   clicks,
		machine:  NewModeMachine(ModeTable{}),
		debounce: NewDebouncer(cfg.DebounceWindow),
		hold:     HoldTracker{LongTicks: cfg.LongHoldTicks},
		turbo:    TurboTimer{Timeout: cfg.TurboTimeoutTicks},
		voltage: VoltageMonitor{
			Low:      cfg.Battery.Low,
			Critical: cfg.Battery.Critical,
			Samples:  cfg.Battery.Samples,
		},
	}
	board.Power.Attach(Interrupts{
		Tick:      d.TickISR,
		PinChange: d.PinChangeISR,
	})
	return d, nil
}

// TickISR is called from the periodic watchdog/timer interrupt.
func (d *Driver) TickISR() {
	Critical(func() {
		d.fast.ticks++
	})
}

// PinChangeISR is called from the switch pin-change interrupt. It only
// records that an edge happened; the main loop decides what it means.
func (d *Driver) PinChangeISR() {
	Critical(func() {
		if d.fast.edges < 0xFF {
			d.fast.edges++
		}
	})
}

// Ticks returns the tick counter maintained by TickISR
func (d *Driver) Ticks() uint32 {
	var now uint32
	Critical(func() {
		now = d.fast.ticks
	})
	return now
}

func (d *Driver) snapshot() (now uint32, edges uint8) {
	Critical(func() {
		now = d.fast.ticks
		edges = d.fast.edges
		d.fast.edges = 0
	})
	return now, edges
}

// State returns the scheduler's current power state
func (d *Driver) State() DriverState {
	return d.run
}

// Index returns the active mode index
func (d *Driver) Index() uint8 {
	return d.machine.Index()
}

// Mode returns the active mode entry
func (d *Driver) Mode() Mode {
	return d.machine.Current()
}

// Table returns the active mode table
func (d *Driver) Table() *ModeTable {
	return d.machine.Table()
}

// Persisted returns the in-memory copy of the persisted state
func (d *Driver) Persisted() PersistedState {
	return d.state
}

// Store returns the persistence layer
func (d *Driver) Store() *Store {
	return d.store
}

// Clicks returns the gesture history
func (d *Driver) Clicks() *ClickHistory {
	return d.clicks
}

// LowBatteryCount returns the consecutive low-voltage reading count
func (d *Driver) LowBatteryCount() uint8 {
	return d.voltage.Count()
}

// ShutDown reports whether a critical condition forced the light off
func (d *Driver) ShutDown() bool {
	return d.shutdown
}

// Boot loads persisted state, classifies the power-on press for clicky
// strategies and programs the output. It is called by Run if needed.
func (d *Driver) Boot(ctx context.Context) error {
	d.run = StateActive
	d.loadState()

	warm := d.clicks.Warm()
	if !warm {
		d.clicks.Reset()
	}
	d.clicks.Arm()
	RecordEvent(EvtBoot, d.Ticks(), uint32(d.cfg.Input), boolU32(!warm))

	d.lastTick, _ = d.snapshot()
	d.startTimers()
	d.booted = true

	switch d.cfg.Input {
	case InputOTC:
		reading, ok := d.readNow(ctx, SampleOffTimeCap)
		class := PressLong
		if ok {
			class = d.classifier().ClassifyCharge(reading)
		}
		if err := d.press(ctx, class, uint16(reading)); err != nil {
			return err
		}
	case InputNoInit:
		class := PressLong
		if warm {
			class = PressShort
		}
		if err := d.press(ctx, class, boolU16(warm)); err != nil {
			return err
		}
	case InputOTSM:
		// The MCU only cold boots when the reserve ran out, so this is
		// always a long press. Later presses are timed in offTime.
		d.debounce.Force(true)
		if err := d.press(ctx, PressLong, 0xFFFF); err != nil {
			return err
		}
	case InputESwitch:
		d.debounce.Force(false)
		d.machine.SetIndex(0)
		d.applyOutput()
	}
	return nil
}

// loadState reads persisted state, repairing anything out of range.
func (d *Driver) loadState() {
	st, first := d.store.Load(d.cfg.Defaults)
	if first {
		RecordEvent(EvtFirstBoot, d.Ticks(), 1, 0)
		st = d.cfg.Defaults
		if err := d.store.Format(st); err != nil {
			d.storeError(0, err)
		}
	}
	if int(st.ModeGroup) >= len(d.cfg.Groups) {
		RecordEvent(EvtFirstBoot, d.Ticks(), 2, uint32(st.ModeGroup))
		st.ModeGroup = d.cfg.Defaults.ModeGroup
		st.ModeIndex = 0
	}
	d.state = st
	d.rebuildTable()
	if !d.machine.Table().Valid(st.ModeIndex) {
		RecordEvent(EvtFirstBoot, d.Ticks(), 3, uint32(st.ModeIndex))
		d.state.ModeIndex = 0
	}
	d.machine.SetIndex(d.state.ModeIndex)
	d.machine.SetMemory(d.state.ModeIndex)
	d.applyThermalOptions()
}

// rebuildTable must run whenever the group, reverse or hidden option changes.
func (d *Driver) rebuildTable() {
	group := d.state.ModeGroup
	if int(group) >= len(d.cfg.Groups) {
		group = 0
	}
	d.machine.SetTable(BuildModeTable(
		d.cfg.Groups[group],
		d.cfg.Hidden,
		d.state.Options.Has(OptReverse),
		d.state.Options.Has(OptHidden),
	))
}

func (d *Driver) applyThermalOptions() {
	d.thermal = ThermalRegulator{
		Hysteresis: d.cfg.Thermal.Hysteresis,
		Samples:    d.cfg.Thermal.Samples,
	}
	if d.state.Options.Has(OptThermal) {
		d.thermal.Ceiling = d.state.ThermalCeiling
	}
	d.thermalOrigin = 0
}

func (d *Driver) classifier() Classifier {
	c := d.cfg.Thresholds
	c.ThreeWay = c.ThreeWay && d.state.Options.Has(OptThreeWay)
	return c
}

func (d *Driver) startTimers() {
	needVoltage := d.cfg.Battery.Low > 0
	for _, k := range d.cfg.Hidden {
		if k == KindBattCheck {
			needVoltage = true
		}
	}
	if needVoltage && !d.timers.Scheduled(&d.voltageTimer) {
		interval := maxU16(d.cfg.Battery.SampleTicks, 1)
		d.voltageTimer.Handler = d.sampleEvent(SampleVoltage, interval)
		d.timers.ScheduleIn(&d.voltageTimer, uint32(interval))
	}
	if d.cfg.Thermal.Samples > 0 && d.cfg.Thermal.SampleTicks > 0 && !d.timers.Scheduled(&d.thermalTimer) {
		d.thermalTimer.Handler = d.sampleEvent(SampleTemperature, d.cfg.Thermal.SampleTicks)
		d.timers.ScheduleIn(&d.thermalTimer, uint32(d.cfg.Thermal.SampleTicks))
	}
}

// Run drives the cooperative main loop until the board loses power or ctx
// is cancelled. The returned error is ErrPowerLost or ctx.Err() in normal
// operation.
func (d *Driver) Run(ctx context.Context) error {
	if !d.booted {
		if err := d.Boot(ctx); err != nil {
			return err
		}
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		mode := d.sleepMode()
		if mode == SleepPowerDown {
			d.run = StateSleepingForInput
			RecordEvent(EvtSleep, d.Ticks(), uint32(mode), uint32(d.machine.Index()))
		} else {
			d.run = StateSleepingIdle
		}
		if err := d.board.Power.Sleep(ctx, mode); err != nil {
			return err
		}
		d.run = StateActive
		if err := d.service(ctx); err != nil {
			return err
		}
	}
}

func (d *Driver) lightOn() bool {
	return !d.shutdown && d.machine.Index() != 0
}

// gestureActive reports whether the switch input still needs ticks:
// a debounce in progress, a held button or an open multi-click window.
func (d *Driver) gestureActive() bool {
	switch d.cfg.Input {
	case InputESwitch:
		if !d.debounce.Idle() || d.hold.Held() {
			return true
		}
		return d.clicks.FastPresses > 0 && d.gapTicks < d.cfg.ClickWindowTicks
	case InputOTSM:
		return !d.debounce.Settled()
	}
	return false
}

// menuThreshold is the fast-press count beyond which the menu opens, or 0
// when the build has no menu.
func (d *Driver) menuThreshold() uint8 {
	if len(d.cfg.Menu.Items) == 0 {
		return 0
	}
	return d.cfg.Menu.FastPresses
}

func (d *Driver) sleepMode() SleepMode {
	if d.shutdown || (d.machine.Index() == 0 && !d.gestureActive() && !d.timers.Scheduled(&d.saveTimer)) {
		return SleepPowerDown
	}
	return SleepIdle
}

// service runs once per wake: per-tick checks, due timers, then any
// pending action that needs blocking delays.
func (d *Driver) service(ctx context.Context) error {
	now, edges := d.snapshot()
	elapsed := now - d.lastTick
	d.lastTick = now
	if elapsed > 0xFFFF {
		elapsed = 0xFFFF
	}

	if elapsed == 0 && edges > 0 {
		// Woken from power-down by the switch: poll it once right away.
		d.poll()
	}
	for i := uint32(0); i < elapsed && !d.supplyLost; i++ {
		d.tick()
	}

	if d.supplyLost {
		d.supplyLost = false
		return d.offTime(ctx)
	}

	d.timers.Dispatch(now)
	err := d.runPending(ctx)
	if errors.Is(err, ErrPowerLost) && d.cfg.Input == InputOTSM {
		// The supply dropped during a pattern; the reserve keeps us alive.
		return d.offTime(ctx)
	}
	return err
}

// tick is the per-tick work that does not block
func (d *Driver) tick() {
	d.poll()
	if d.turbo.Tick(d.inTurbo()) {
		d.pendingTurbo = true
	}
}

func (d *Driver) inTurbo() bool {
	if !d.lightOn() {
		return false
	}
	t := d.machine.Table()
	idx := d.machine.Index()
	if t.IsHidden(idx) {
		return false
	}
	top := t.At(idx).Level
	for i := uint8(1); i <= t.Solid(); i++ {
		if t.At(i).Level > top {
			return false
		}
	}
	// A table with nothing dimmer has no turbo to time out of.
	return t.nextLevel(top, false) != 0
}

// poll samples the switch input once through the debouncer.
func (d *Driver) poll() {
	switch d.cfg.Input {
	case InputESwitch:
		pressed, changed := d.debounce.Sample(d.board.Switch.Closed())
		if changed {
			d.voltage.Reset()
		}
		d.onHold(d.hold.Update(pressed))
		if !d.hold.Held() && d.gapTicks < 0xFFFF {
			d.gapTicks++
			if d.gapTicks >= d.cfg.ClickWindowTicks {
				d.clicks.FastPresses = 0
			}
		}
	case InputOTSM:
		present, changed := d.debounce.Sample(d.board.Switch.Closed())
		if changed && !present {
			d.supplyLost = true
		}
	}
}

// onHold maps e-switch events to transitions.
func (d *Driver) onHold(ev HoldEvent) {
	switch ev {
	case HoldClick:
		if d.gapTicks >= d.cfg.ClickWindowTicks {
			d.clicks.FastPresses = 0
		}
		d.gapTicks = 0
		RecordEvent(EvtPress, d.lastTick, uint32(PressShort), uint32(d.hold.HeldTicks()))
		if d.clicks.Count(PressShort, d.menuThreshold()) {
			d.pendingMenu = true
			return
		}
		d.shutdown = false
		if d.machine.Index() == 0 {
			if d.state.Options.Has(OptLockout) {
				return
			}
			if d.state.Options.Has(OptMemory) && d.machine.Memory() != 0 {
				d.apply(RestoreMemory)
				return
			}
		}
		d.apply(Advance)
	case HoldStart, HoldRepeat:
		d.clicks.FastPresses = 0
		if ev == HoldStart {
			RecordEvent(EvtPress, d.lastTick, uint32(PressLong), uint32(d.hold.HeldTicks()))
		}
		if d.machine.Index() == 0 {
			if ev == HoldRepeat || d.state.Options.Has(OptLockout) {
				return
			}
			d.shutdown = false
			d.machine.SetIndex(d.machine.Table().Dimmest())
			d.commitMode()
			return
		}
		d.apply(Retreat)
	case HoldRelease:
		d.gapTicks = 0
	}
}

// press handles one classified power-on press for clicky strategies.
func (d *Driver) press(ctx context.Context, class PressClass, raw uint16) error {
	d.clicks.Reading = raw
	d.voltage.Reset()
	RecordEvent(EvtPress, d.lastTick, uint32(class), uint32(raw))

	if d.clicks.Count(class, d.menuThreshold()) {
		RecordEvent(EvtMenuEnter, d.lastTick, uint32(d.menuThreshold())+1, 0)
		return d.runMenu(ctx)
	}

	tr := TransitionFor(class, d.state.Options)
	if d.state.Options.Has(OptLockout) && d.machine.Index() == 0 && (tr == Advance || tr == Retreat) {
		tr = TransitionNone
	}
	d.apply(tr)
	return nil
}

// apply performs a user transition and persists the result.
func (d *Driver) apply(tr Transition) {
	d.machine.Apply(tr)
	d.commitMode()
}

// commitMode records the active index as the user's choice.
func (d *Driver) commitMode() {
	d.thermalOrigin = 0
	d.thermal.Reset()
	d.turbo.Reset()
	d.state.ModeIndex = d.machine.Index()
	d.machine.SetMemory(d.state.ModeIndex)
	d.persist()
	d.applyOutput()
}

// applyOutput programs the PWM for the active mode. Hidden modes are
// driven by runPattern; here they only start or stop hardware strobe.
func (d *Driver) applyOutput() {
	m := d.machine.Current()
	RecordEvent(EvtMode, d.lastTick, uint32(d.machine.Index()), uint32(m.Level))

	if d.pulsing && (m.Kind != KindStrobe || d.shutdown) {
		if p, ok := d.board.Output.(Pulser); ok {
			_ = p.StopPulse()
		}
		d.pulsing = false
	}

	if d.shutdown || (m.Kind == KindSolid && m.Level == 0) {
		d.setLevel(0)
		d.hwError(d.board.Output.Disable())
		return
	}
	d.hwError(d.board.Output.Enable())
	switch m.Kind {
	case KindSolid:
		d.setLevel(m.Level)
	case KindStrobe:
		if p, ok := d.board.Output.(Pulser); ok && !d.pulsing {
			d.setLevel(d.topLevel())
			if err := p.Pulse(0, strobeHz); err == nil {
				d.pulsing = true
			}
		}
	default:
		d.setLevel(0)
	}
}

func (d *Driver) setLevel(level uint8) {
	d.hwError(d.board.Output.SetLevel(d.cfg.OutputChannel, level))
}

func (d *Driver) topLevel() uint8 {
	t := d.machine.Table()
	var top uint8
	for i := uint8(1); i <= t.Solid(); i++ {
		if l := t.At(i).Level; l > top {
			top = l
		}
	}
	return top
}

// persist writes now, or after SaveDelayTicks so rapid changes coalesce.
func (d *Driver) persist() {
	if d.cfg.SaveDelayTicks == 0 {
		d.saveNow()
		return
	}
	d.timers.Cancel(&d.saveTimer)
	d.saveTimer.Handler = func(*Timer) uint8 {
		d.saveNow()
		return SF_DONE
	}
	d.timers.ScheduleIn(&d.saveTimer, uint32(d.cfg.SaveDelayTicks))
}

func (d *Driver) saveNow() {
	if err := d.store.Save(d.state); err != nil {
		d.storeError(0, err)
	}
}

func (d *Driver) storeError(addr uint16, err error) {
	RecordEvent(EvtStoreError, d.lastTick, uint32(addr), 0)
	DebugPrintln("store: " + err.Error())
}

func (d *Driver) hwError(err error) {
	if err != nil {
		DebugPrintln("hal: " + err.Error())
	}
}

// sampleEvent returns a timer handler that starts a conversion of src,
// collects it on a later tick and waits interval ticks before the next.
// The ADC is shared, so a busy converter defers the other source a tick.
func (d *Driver) sampleEvent(src SampleSource, interval uint16) func(*Timer) uint8 {
	return func(t *Timer) uint8 {
		now := d.timers.Now()
		switch {
		case !d.lightOn():
			t.WakeTick = now + uint32(interval)
		case d.adcBusy && d.adcSource != src:
			t.WakeTick = now + 1
		case !d.adcBusy:
			if err := d.board.Sampler.Start(src); err != nil {
				d.hwError(err)
				t.WakeTick = now + uint32(interval)
				break
			}
			d.adcBusy = true
			d.adcSource = src
			t.WakeTick = now + 1
		case !d.board.Sampler.Ready():
			t.WakeTick = now + 1
		default:
			reading := d.board.Sampler.Result()
			d.adcBusy = false
			d.consumeSample(src, reading)
			t.WakeTick = now + uint32(interval)
		}
		return SF_RESCHEDULE
	}
}

func (d *Driver) consumeSample(src SampleSource, reading uint8) {
	switch src {
	case SampleVoltage:
		if a := d.voltage.Sample(reading); a != VoltageOK {
			d.pendingVoltage = a
		}
	case SampleTemperature:
		if !d.state.Options.Has(OptThermal) {
			return
		}
		if a := d.thermal.Sample(reading); a != ThermalOK {
			d.pendingThermal = a
		}
	}
}

// readNow performs a blocking conversion, used at boot and by battcheck.
func (d *Driver) readNow(ctx context.Context, src SampleSource) (uint8, bool) {
	if d.adcBusy {
		// Let the in-flight periodic conversion finish first
		for i := 0; i < readAttempts && !d.board.Sampler.Ready(); i++ {
			if d.board.Clock.Delay(ctx, adcPollDelay) != nil {
				return 0, false
			}
		}
		d.adcBusy = false
		d.consumeSample(d.adcSource, d.board.Sampler.Result())
	}
	if err := d.board.Sampler.Start(src); err != nil {
		d.hwError(err)
		return 0, false
	}
	for i := 0; i < readAttempts; i++ {
		if d.board.Sampler.Ready() {
			return d.board.Sampler.Result(), true
		}
		if d.board.Clock.Delay(ctx, adcPollDelay) != nil {
			return 0, false
		}
	}
	return 0, false
}

// runPending executes actions that need blocking delays.
func (d *Driver) runPending(ctx context.Context) error {
	if d.pendingMenu {
		d.pendingMenu = false
		RecordEvent(EvtMenuEnter, d.lastTick, uint32(d.menuThreshold())+1, 0)
		return d.runMenu(ctx)
	}

	switch d.pendingVoltage {
	case VoltageStepDown:
		d.pendingVoltage = VoltageOK
		if err := d.batteryStepDown(ctx); err != nil {
			return err
		}
	case VoltageShutoff:
		d.pendingVoltage = VoltageOK
		if d.lightOn() {
			d.shutoff(CauseBattery, d.voltage.Last())
		}
	}

	switch d.pendingThermal {
	case ThermalStepDown:
		d.pendingThermal = ThermalOK
		if d.lightOn() {
			if d.thermalOrigin == 0 {
				d.thermalOrigin = d.machine.Index()
			}
			d.stepDown(CauseThermal)
		}
	case ThermalStepUp:
		d.pendingThermal = ThermalOK
		if d.lightOn() && d.thermalOrigin != 0 {
			if d.machine.StepUp(d.thermalOrigin) {
				RecordEvent(EvtStepUp, d.lastTick, CauseThermal, uint32(d.machine.Index()))
				d.applyOutput()
			}
			if d.machine.Index() == d.thermalOrigin {
				d.thermalOrigin = 0
			}
		}
	}

	if d.pendingTurbo {
		d.pendingTurbo = false
		if d.inTurbo() {
			d.stepDown(CauseTurbo)
		}
	}

	if d.lightOn() && d.machine.Table().IsHidden(d.machine.Index()) {
		return d.runPattern(ctx, d.machine.Current().Kind)
	}
	return nil
}

func (d *Driver) batteryStepDown(ctx context.Context) error {
	if !d.lightOn() {
		return nil
	}
	if err := d.warnBlinks(ctx); err != nil {
		return err
	}
	d.stepDown(CauseBattery)
	return nil
}

// stepDown drops one level without touching the persisted index. At moon
// only a battery step-down shuts the light off; thermal and turbo hold the
// level so they stay reversible.
func (d *Driver) stepDown(cause uint32) {
	if d.machine.StepDown() {
		RecordEvent(EvtStepDown, d.lastTick, cause, uint32(d.machine.Index()))
		d.turbo.Reset()
		d.applyOutput()
		return
	}
	if cause == CauseBattery {
		d.shutoff(cause, d.voltage.Last())
	}
}

// shutoff forces the output off and parks in power-down.
func (d *Driver) shutoff(cause uint32, reading uint8) {
	RecordEvent(EvtShutoff, d.lastTick, cause, uint32(reading))
	d.shutdown = true
	d.machine.SetIndex(0)
	d.applyOutput()
}

// offTime runs the off-time sleep loop: the supply is gone, the output is
// off and the MCU counts watchdog ticks until power returns.
func (d *Driver) offTime(ctx context.Context) error {
	d.setLevel(0)
	d.hwError(d.board.Output.Disable())
	d.debounce.Force(false)
	d.run = StateSleepingForInput
	start := d.Ticks()
	for {
		if err := d.board.Power.Sleep(ctx, SleepWatchdog); err != nil {
			return err
		}
		if present, _ := d.debounce.Sample(d.board.Switch.Closed()); present {
			break
		}
	}
	d.run = StateActive
	now, _ := d.snapshot()
	d.lastTick = now
	elapsed := now - start
	if elapsed > 0xFFFF {
		elapsed = 0xFFFF
	}
	d.shutdown = false
	return d.press(ctx, d.classifier().ClassifyTicks(uint16(elapsed)), uint16(elapsed))
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func boolU16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

func maxU16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}
