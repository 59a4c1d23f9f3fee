package core

import "time"

// historyMarker tags a ClickHistory that was written by a previous boot.
// Uninitialised or decayed memory is overwhelmingly unlikely to hold it.
const historyMarker = 0xA5

// ClickHistory is the transient gesture state. On real hardware it lives in
// a section the C runtime does not zero, so it survives a power cut shorter
// than the RAM retention time. Hosts model that decay with PowerCycle.
type ClickHistory struct {
	FastPresses uint8
	Reading     uint16

	marker uint8
}

// PowerCycle models the supply being removed for off. History outlives the
// cut only if off does not exceed retention; otherwise it is reset. Returns
// whether the history survived.
func (h *ClickHistory) PowerCycle(off, retention time.Duration) bool {
	if off > retention || h.marker != historyMarker {
		h.Reset()
		return false
	}
	return true
}

// Warm reports whether the history carries state from a previous boot.
func (h *ClickHistory) Warm() bool {
	return h.marker == historyMarker
}

// Arm marks the history as written by this boot.
func (h *ClickHistory) Arm() {
	h.marker = historyMarker
}

// Reset clears the gesture state (cold boot or off-time past the window).
func (h *ClickHistory) Reset() {
	*h = ClickHistory{}
}

// Count records one classified press. Short presses accumulate; anything
// else ends the gesture. Returns true once the count exceeds threshold,
// at which point the counter is cleared.
func (h *ClickHistory) Count(class PressClass, threshold uint8) bool {
	if class != PressShort {
		h.FastPresses = 0
		return false
	}
	if h.FastPresses < 0xFF {
		h.FastPresses++
	}
	if threshold > 0 && h.FastPresses > threshold {
		h.FastPresses = 0
		return true
	}
	return false
}
