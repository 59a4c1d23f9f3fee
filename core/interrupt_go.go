//go:build !tinygo

package core

import "sync"

// On the host the ISRs are called by the simulated board or by test
// goroutines, so the critical section is a plain mutex. Unlike the MCU
// version it does not nest.
var interruptMu sync.Mutex

// Critical runs fn holding the simulated interrupt mask
func Critical(fn func()) {
	interruptMu.Lock()
	defer interruptMu.Unlock()
	fn()
}
