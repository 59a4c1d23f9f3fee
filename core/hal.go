package core

import (
	"context"
	"errors"
	"time"
)

// ErrPowerLost is returned by blocking board calls when the supply is cut
// (or, on e-switch boards, when the user interrupts a confirmation window).
var ErrPowerLost = errors.New("power lost")

// Channel identifies a PWM output channel on the light engine
type Channel uint8

// Output is the abstract PWM interface that core code uses.
// Platform-specific implementations handle actual register control.
type Output interface {
	// SetLevel sets the duty cycle of a channel, 0 (off) to 255 (full)
	SetLevel(ch Channel, value uint8) error

	// Enable starts PWM generation on all channels
	Enable() error

	// Disable stops PWM generation and drives the outputs low
	Disable() error
}

// Pulser is implemented by outputs that can generate a strobe train
// without CPU involvement.
type Pulser interface {
	// Pulse queues count flashes at hz and returns immediately
	Pulse(count uint32, hz uint32) error

	// StopPulse aborts a queued train
	StopPulse() error
}

// SampleSource selects what the ADC multiplexer is pointed at.
type SampleSource uint8

const (
	SampleVoltage SampleSource = iota
	SampleTemperature
	SampleOffTimeCap
)

func (s SampleSource) String() string {
	switch s {
	case SampleVoltage:
		return "voltage"
	case SampleTemperature:
		return "temperature"
	case SampleOffTimeCap:
		return "otc"
	default:
		return "unknown"
	}
}

// Sampler is the abstract ADC interface. The core starts a conversion,
// polls Ready on a later tick and consumes the 8-bit Result. Calibration
// is the platform's problem.
type Sampler interface {
	Start(src SampleSource) error
	Ready() bool
	Result() uint8
}

// SwitchPin reports the raw state of the switch input. On e-switch boards
// this is the button; on off-time sleep boards it is the supply-sense pin.
type SwitchPin interface {
	Closed() bool
}

// ByteStore is the non-volatile byte primitive (EEPROM or emulation).
// Erased cells read as 0xFF.
type ByteStore interface {
	LoadByte(addr uint16) (uint8, error)
	StoreByte(addr uint16, value uint8) error
	Size() uint16
}

// SleepMode selects how deep the CPU sleeps
type SleepMode uint8

const (
	// SleepIdle keeps timers and PWM running; woken by the next tick
	SleepIdle SleepMode = iota
	// SleepPowerDown stops all peripheral clocks; woken only by a pin change
	SleepPowerDown
	// SleepWatchdog is power-down with the watchdog tick left running
	SleepWatchdog
)

func (m SleepMode) String() string {
	switch m {
	case SleepPowerDown:
		return "power-down"
	case SleepWatchdog:
		return "watchdog"
	default:
		return "idle"
	}
}

// Interrupts holds the handlers a board invokes from its ISRs.
type Interrupts struct {
	Tick      func()
	PinChange func()
}

// Power owns sleep and interrupt delivery.
type Power interface {
	// Attach registers the ISR handlers. Called once before Run.
	Attach(isr Interrupts)

	// Sleep parks the CPU until the next interrupt has been serviced.
	// It returns ErrPowerLost (or ctx.Err()) when the board loses power.
	Sleep(ctx context.Context, mode SleepMode) error
}

// Clock provides the blocking millisecond delay used by blink patterns.
// Ticks keep being delivered while a delay is in progress.
type Clock interface {
	Delay(ctx context.Context, d time.Duration) error
}

// Board bundles the collaborators the core needs. Every field is required.
type Board struct {
	Output  Output
	Sampler Sampler
	Switch  SwitchPin
	Storage ByteStore
	Power   Power
	Clock   Clock
}

func (b Board) validate() error {
	switch {
	case b.Output == nil:
		return errors.New("board: output driver not configured")
	case b.Sampler == nil:
		return errors.New("board: ADC driver not configured")
	case b.Switch == nil:
		return errors.New("board: switch pin not configured")
	case b.Storage == nil:
		return errors.New("board: storage not configured")
	case b.Power == nil:
		return errors.New("board: power controller not configured")
	case b.Clock == nil:
		return errors.New("board: clock not configured")
	}
	return nil
}
