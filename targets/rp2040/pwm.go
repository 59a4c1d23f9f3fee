//go:build rp2040

package main

import (
	"glimmer/core"
	"glimmer/targets/pio"
	"machine"
)

// PWM_MAX is the full-scale duty value the core works in
const PWM_MAX = 255

// ledPeriod is the PWM period in nanoseconds (20kHz, above audible whine)
const ledPeriod = 1e9 / 20000

// pwmPeripheral is an interface for PWM hardware peripherals
// This abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// LightEngine drives the LED through one hardware PWM channel and hands
// the pin to a PIO state machine for strobe trains.
type LightEngine struct {
	pin     machine.Pin
	pwm     pwmPeripheral
	channel uint8
	level   uint8
	enabled bool
	strobe  *pio.Strobe
}

// NewLightEngine configures the slice driving pin and claims a PIO state
// machine for strobes.
func NewLightEngine(pin machine.Pin) (*LightEngine, error) {
	// RP2040: GPIO pin N maps to slice (N >> 1) & 0x7, channel N & 1
	e := &LightEngine{
		pin: pin,
		pwm: getPWMPeripheral(uint8((uint32(pin) >> 1) & 0x7)),
	}
	if err := e.pwm.Configure(machine.PWMConfig{Period: ledPeriod}); err != nil {
		return nil, err
	}
	if err := e.attachPWM(); err != nil {
		return nil, err
	}
	e.pwm.Set(e.channel, 0)

	strobe, err := pio.NewStrobe(0, 0, pin)
	if err != nil {
		return nil, err
	}
	e.strobe = strobe
	return e, nil
}

// attachPWM (re)routes the pin to the PWM slice
func (e *LightEngine) attachPWM() error {
	ch, err := e.pwm.Channel(e.pin)
	if err != nil {
		return err
	}
	e.channel = ch
	return nil
}

// SetLevel sets the duty cycle: 0 (fully off) to 255 (fully on).
// There is a single LED channel; ch is ignored.
func (e *LightEngine) SetLevel(ch core.Channel, value uint8) error {
	e.level = value
	if e.enabled {
		e.apply()
	}
	return nil
}

func (e *LightEngine) apply() {
	// Scale 0-255 to 0-Top() in 32-bit math
	top := e.pwm.Top()
	e.pwm.Set(e.channel, (uint32(e.level)*top)/PWM_MAX)
}

func (e *LightEngine) Enable() error {
	e.enabled = true
	e.apply()
	return nil
}

// Disable drives the output low. The slice keeps running; a zero duty
// cycle is how TinyGo turns a PWM pin off.
func (e *LightEngine) Disable() error {
	e.enabled = false
	e.pwm.Set(e.channel, 0)
	return nil
}

// Pulse hands the pin to the strobe state machine
func (e *LightEngine) Pulse(count uint32, hz uint32) error {
	e.pwm.Set(e.channel, 0)
	return e.strobe.Start(count, hz)
}

// StopPulse stops the strobe and gives the pin back to PWM
func (e *LightEngine) StopPulse() error {
	e.strobe.Stop()
	if err := e.attachPWM(); err != nil {
		return err
	}
	if e.enabled {
		e.apply()
	}
	return nil
}

// getPWMPeripheral returns the PWM peripheral for a given slice number
// RP2040 has 8 PWM slices: PWM0-PWM7
func getPWMPeripheral(sliceNum uint8) pwmPeripheral {
	switch sliceNum {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	case 7:
		return machine.PWM7
	default:
		return machine.PWM0
	}
}
