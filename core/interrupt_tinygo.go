//go:build tinygo

package core

import "runtime/interrupt"

// Critical runs fn with interrupts masked. Any read-modify-write of state
// shared with an ISR must go through here; fn must not block or panic.
// Nesting is safe: the previous mask is restored on exit.
func Critical(fn func()) {
	state := interrupt.Disable()
	fn()
	interrupt.Restore(state)
}
