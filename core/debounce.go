package core

// Debouncer accepts a switch transition only after the last Window polls
// all agree. History is a shift register, newest sample in bit 0.
type Debouncer struct {
	history uint32
	mask    uint32
	stable  bool
}

// NewDebouncer returns a debouncer over a window of 1..32 polls
// starting in the released state.
func NewDebouncer(window uint8) *Debouncer {
	if window == 0 {
		window = 1
	}
	if window > 32 {
		window = 32
	}
	mask := uint32(0xFFFFFFFF)
	if window < 32 {
		mask = (uint32(1) << window) - 1
	}
	return &Debouncer{mask: mask}
}

// Sample shifts in one poll and returns the debounced state and whether
// it changed on this poll.
func (d *Debouncer) Sample(closed bool) (pressed bool, changed bool) {
	d.history <<= 1
	if closed {
		d.history |= 1
	}

	window := d.history & d.mask
	switch {
	case !d.stable && window == d.mask:
		d.stable = true
		return true, true
	case d.stable && window == 0:
		d.stable = false
		return false, true
	}
	return d.stable, false
}

// Pressed returns the current debounced state
func (d *Debouncer) Pressed() bool {
	return d.stable
}

// Idle reports whether the switch is released and the window holds no
// stray closed samples.
func (d *Debouncer) Idle() bool {
	return !d.stable && d.history&d.mask == 0
}

// Settled reports whether the whole window agrees with the debounced
// state, i.e. no transition is in progress.
func (d *Debouncer) Settled() bool {
	window := d.history & d.mask
	if d.stable {
		return window == d.mask
	}
	return window == 0
}

// Force sets the debounced state and fills the window to match, used
// when waking from power-down with the button already known to be held.
func (d *Debouncer) Force(pressed bool) {
	d.stable = pressed
	if pressed {
		d.history = d.mask
	} else {
		d.history = 0
	}
}

// HoldEvent is what a HoldTracker reports for one debounced poll
type HoldEvent uint8

const (
	HoldNone HoldEvent = iota
	// HoldClick is a release before the long-hold boundary
	HoldClick
	// HoldStart fires once when the hold crosses the boundary
	HoldStart
	// HoldRepeat fires every further boundary while still held
	HoldRepeat
	// HoldRelease is a release after a long hold
	HoldRelease
)

// HoldTracker turns the debounced e-switch state into click/hold events.
type HoldTracker struct {
	LongTicks uint16

	held  uint16
	down  bool
	holds uint8
}

// Update consumes one debounced state per tick.
func (h *HoldTracker) Update(pressed bool) HoldEvent {
	if pressed {
		if !h.down {
			h.down = true
			h.held = 0
			h.holds = 0
		}
		if h.held < 0xFFFF {
			h.held++
		}
		if h.LongTicks > 0 && h.held%h.LongTicks == 0 {
			h.holds++
			if h.holds == 1 {
				return HoldStart
			}
			return HoldRepeat
		}
		return HoldNone
	}

	if !h.down {
		return HoldNone
	}
	h.down = false
	if h.holds > 0 {
		return HoldRelease
	}
	return HoldClick
}

// Held reports whether the button is currently down
func (h *HoldTracker) Held() bool {
	return h.down
}

// HeldTicks returns how long the current (or last) press lasted
func (h *HoldTracker) HeldTicks() uint16 {
	return h.held
}
