package core

import (
	"context"
	"errors"
)

// runMenu presents each configured toggle in turn. A toggle is persisted
// speculatively and reverted unless the user cuts power (or, on e-switch
// boards, presses) during its confirmation window. The light ends off.
func (d *Driver) runMenu(ctx context.Context) error {
	d.clicks.FastPresses = 0
	d.machine.SetIndex(0)
	d.commitMode()
	if d.timers.Cancel(&d.saveTimer) {
		d.saveNow()
	}
	d.hwError(d.board.Output.Enable())

	for i, item := range d.cfg.Menu.Items {
		err := d.toggle(ctx, uint8(i+1), item)
		if errors.Is(err, errAccepted) {
			d.applyOutput()
			d.resync()
			return d.waitRelease(ctx)
		}
		if err != nil {
			return err
		}
	}
	d.applyOutput()
	d.resync()
	return nil
}

// toggle runs one menu item: blink its ordinal, flip, persist, buzz for
// the window, then roll back. Returning early from the buzz leaves the
// flipped value in storage.
func (d *Driver) toggle(ctx context.Context, ordinal uint8, item Options) error {
	if err := d.blink(ctx, ordinal, false); err != nil {
		return err
	}

	prev := d.state.Options
	d.setOptions(prev.Toggle(item))
	RecordEvent(EvtToggle, d.Ticks(), uint32(item), boolU32(d.state.Options.Has(item)))

	if err := d.buzz(ctx); err != nil {
		if errors.Is(err, errSwitchPressed) {
			return errAccepted
		}
		return err
	}

	d.setOptions(prev)
	RecordEvent(EvtRevert, d.Ticks(), uint32(item), boolU32(prev.Has(item)))
	return nil
}

// buzz flickers at low level for the confirmation window.
func (d *Driver) buzz(ctx context.Context) error {
	level := d.machine.Table().At(d.machine.Table().Dimmest()).Level
	if level == 0 {
		level = d.cfg.BlinkLevel
	}
	for left := d.cfg.Menu.Window; left > 0; left -= 2 * buzzSlice {
		if err := d.flash(ctx, level, buzzSlice, buzzSlice, true); err != nil {
			return err
		}
	}
	return nil
}

// setOptions replaces the option set, persists it immediately and applies
// whatever depends on it.
func (d *Driver) setOptions(opts Options) {
	changed := d.state.Options ^ opts
	d.state.Options = opts
	d.saveNow()
	if changed&(OptReverse|OptHidden) != 0 {
		d.rebuildTable()
	}
	if changed&OptThermal != 0 {
		d.applyThermalOptions()
	}
}

// waitRelease swallows the accepting press so it does not reach the
// click handler once polling resumes.
func (d *Driver) waitRelease(ctx context.Context) error {
	for d.board.Switch.Closed() {
		if err := d.board.Clock.Delay(ctx, switchSlice); err != nil {
			return err
		}
	}
	d.debounce.Force(false)
	d.hold = HoldTracker{LongTicks: d.cfg.LongHoldTicks}
	d.clicks.FastPresses = 0
	d.resync()
	return nil
}
