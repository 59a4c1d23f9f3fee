package core

import (
	"context"
	"errors"
	"time"
)

// Blink timings. All pattern delays are blocking.
const (
	strobeHz    = 10
	strobeOn    = 20 * time.Millisecond
	strobeOff   = 80 * time.Millisecond
	beaconOn    = 50 * time.Millisecond
	beaconOff   = 2 * time.Second
	sosDot      = 200 * time.Millisecond
	blinkOn     = 150 * time.Millisecond
	blinkOff    = 300 * time.Millisecond
	blinkPause  = time.Second
	buzzSlice   = 25 * time.Millisecond
	switchSlice = 20 * time.Millisecond

	readAttempts = 20
	adcPollDelay = time.Millisecond
)

// errSwitchPressed aborts an interruptible wait on e-switch boards
var errSwitchPressed = errors.New("switch pressed")

// sosLetters is S O S as dot (1) and dash (3) lengths
var sosLetters = [3][3]uint8{{1, 1, 1}, {3, 3, 3}, {1, 1, 1}}

// wait blocks for d. On e-switch boards an interruptible wait returns
// errSwitchPressed as soon as the button closes.
func (d *Driver) wait(ctx context.Context, dur time.Duration, interruptible bool) error {
	if !interruptible || d.cfg.Input != InputESwitch {
		return d.board.Clock.Delay(ctx, dur)
	}
	for dur > 0 {
		if d.board.Switch.Closed() {
			return errSwitchPressed
		}
		slice := switchSlice
		if dur < slice {
			slice = dur
		}
		if err := d.board.Clock.Delay(ctx, slice); err != nil {
			return err
		}
		dur -= slice
	}
	if d.board.Switch.Closed() {
		return errSwitchPressed
	}
	return nil
}

// flash shows level for on, then darkness for off.
func (d *Driver) flash(ctx context.Context, level uint8, on, off time.Duration, interruptible bool) error {
	d.setLevel(level)
	if err := d.wait(ctx, on, interruptible); err != nil {
		d.setLevel(0)
		return err
	}
	d.setLevel(0)
	return d.wait(ctx, off, interruptible)
}

// blink flashes n times at the configured blink level.
func (d *Driver) blink(ctx context.Context, n uint8, interruptible bool) error {
	for i := uint8(0); i < n; i++ {
		if err := d.flash(ctx, d.cfg.BlinkLevel, blinkOn, blinkOff, interruptible); err != nil {
			return err
		}
	}
	return nil
}

// warnBlinks precedes a low-battery step-down, then restores the level.
func (d *Driver) warnBlinks(ctx context.Context) error {
	if d.cfg.Battery.WarnBlinks == 0 {
		return nil
	}
	level := d.machine.Current().Level
	err := d.blink(ctx, d.cfg.Battery.WarnBlinks, false)
	d.setLevel(level)
	d.resync()
	return err
}

// runPattern runs one cycle of a hidden mode and returns so the main loop
// can service ticks between cycles.
func (d *Driver) runPattern(ctx context.Context, kind ModeKind) error {
	var err error
	switch kind {
	case KindStrobe:
		if d.pulsing {
			return nil
		}
		err = d.flash(ctx, d.topLevel(), strobeOn, strobeOff, true)
	case KindBeacon:
		err = d.flash(ctx, d.topLevel(), beaconOn, beaconOff, true)
	case KindSOS:
		err = d.sos(ctx)
	case KindBattCheck:
		err = d.battCheck(ctx)
	}
	d.resync()
	if errors.Is(err, errSwitchPressed) {
		return nil
	}
	return err
}

// sos signals S O S once. The final pause is a letter gap followed by a
// full word gap.
func (d *Driver) sos(ctx context.Context) error {
	level := d.topLevel()
	for _, letter := range sosLetters {
		for _, units := range letter {
			if err := d.flash(ctx, level, time.Duration(units)*sosDot, sosDot, true); err != nil {
				return err
			}
		}
		if err := d.wait(ctx, 2*sosDot, true); err != nil {
			return err
		}
	}
	return d.wait(ctx, 7*sosDot, true)
}

// battCheck blinks one flash per voltage band reached.
func (d *Driver) battCheck(ctx context.Context) error {
	reading, ok := d.readNow(ctx, SampleVoltage)
	if !ok {
		reading = d.voltage.Last()
	}
	RecordEvent(EvtSample, d.Ticks(), uint32(SampleVoltage), uint32(reading))
	n := BattCheckBlinks(reading, d.cfg.Battery.CheckBands)
	if err := d.blink(ctx, n, true); err != nil {
		return err
	}
	return d.wait(ctx, blinkPause, true)
}

// resync skips the ticks that elapsed during a blocking action; the switch
// was not being polled while they passed.
func (d *Driver) resync() {
	d.lastTick = d.Ticks()
}
