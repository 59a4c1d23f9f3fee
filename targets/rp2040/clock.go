//go:build rp2040

package main

import (
	"context"
	"glimmer/core"
	"machine"
	"runtime/volatile"
	"sync/atomic"
	"time"
	"unsafe"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareUptime reads the full 64-bit RP2040 hardware timer
func GetHardwareUptime() uint64 {
	// Read high, low, high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// Power delivers the tick and switch interrupts and emulates the AVR sleep
// modes. The tick runs in its own goroutine paced by the hardware timer;
// power-down suppresses it so only a switch edge wakes the core.
type Power struct {
	pin    machine.Pin
	period time.Duration
	isr    core.Interrupts

	ticks atomic.Uint32 // ticks delivered
	edges atomic.Uint32 // switch edges delivered
	deep  atomic.Bool
}

// NewPower configures pin as a pulled-up switch input and starts the tick
func NewPower(pin machine.Pin, period time.Duration) *Power {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	p := &Power{pin: pin, period: period}
	go p.tickLoop()
	return p
}

// Closed reports whether the switch pulls the pin to ground
func (p *Power) Closed() bool {
	return !p.pin.Get()
}

// Attach registers the driver's handlers and arms the pin interrupt
func (p *Power) Attach(isr core.Interrupts) {
	p.isr = isr
	p.pin.SetInterrupt(machine.PinFalling|machine.PinRising, func(machine.Pin) {
		if p.isr.PinChange != nil {
			p.isr.PinChange()
		}
		p.edges.Add(1)
	})
}

func (p *Power) tickLoop() {
	periodUs := uint64(p.period / time.Microsecond)
	next := GetHardwareUptime()
	for {
		next += periodUs
		if now := GetHardwareUptime(); next > now {
			time.Sleep(time.Duration(next-now) * time.Microsecond)
		} else {
			// Fell behind; resync instead of bursting ticks
			next = now
		}
		if p.deep.Load() {
			continue
		}
		if p.isr.Tick != nil {
			p.isr.Tick()
		}
		p.ticks.Add(1)
	}
}

// Sleep parks until the next tick, or until a switch edge for power-down.
// The Pico is bus powered, so it never reports ErrPowerLost.
func (p *Power) Sleep(ctx context.Context, mode core.SleepMode) error {
	counter := &p.ticks
	if mode == core.SleepPowerDown {
		p.deep.Store(true)
		defer p.deep.Store(false)
		counter = &p.edges
	}
	start := counter.Load()
	for counter.Load() == start {
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(100 * time.Microsecond)
	}
	return nil
}

// Delay blocks for d; ticks keep being delivered by the tick goroutine
func (p *Power) Delay(ctx context.Context, d time.Duration) error {
	deadline := GetHardwareUptime() + uint64(d/time.Microsecond)
	for GetHardwareUptime() < deadline {
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
