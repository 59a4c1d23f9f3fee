//go:build rp2040

package main

import (
	"context"
	"errors"
	"glimmer/core"
	"glimmer/protocol"
	"machine"
	"time"
)

// Pin assignments for the reference light engine (Pico + FET driver board)
const (
	ledPin     = machine.GP16 // PWM slice 0 channel A, shared with the strobe SM
	switchPin  = machine.GP15 // momentary switch to ground
	voltagePin = machine.ADC0 // battery divider, GP26
	otcPin     = machine.ADC1 // off-time capacitor, GP27
)

var (
	// Telemetry buffers
	outputBuffer *protocol.ScratchOutput
	encoder      *protocol.Encoder

	// Debug counters
	framesSent               uint32
	framesDropped            uint32
	consecutiveWriteFailures uint32
	usbWasDisconnected       bool
)

// boardConfig is the build-time configuration of this light: an e-switch
// build, since the Pico is powered from USB and never sees a supply cut.
func boardConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Input = core.InputESwitch
	cfg.Thresholds = core.Classifier{}
	cfg.Defaults.Options = core.OptHidden | core.OptThermal
	return cfg
}

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()

	outputBuffer = protocol.NewScratchOutput()
	encoder = protocol.NewEncoder(outputBuffer)

	core.SetEventSink(func(evt core.Event) {
		emit(func() error {
			return encoder.Event(protocol.EventRecord{Type: evt.Type, Tick: evt.Tick, Value1: evt.Value1, Value2: evt.Value2})
		})
	})
	core.SetDebugWriter(func(msg string) {
		emit(func() error { return encoder.Debug(msg) })
	})

	cfg := boardConfig()

	engine, err := NewLightEngine(ledPin)
	if err != nil {
		halt("light engine: " + err.Error())
	}
	sampler := NewSampler(voltagePin, otcPin)
	store, err := NewEEPROMStore(machine.I2C0, eepromSize)
	if err != nil {
		halt("eeprom: " + err.Error())
	}
	power := NewPower(switchPin, cfg.TickPeriod)

	board := core.Board{
		Output:  engine,
		Sampler: sampler,
		Switch:  power,
		Storage: store,
		Power:   power,
		Clock:   power,
	}

	emit(func() error { return encoder.Hello(uint8(cfg.Input)) })

	var clicks core.ClickHistory
	ctx := context.Background()
	for {
		// Recover from panics so a fault drops the light to off and reboots
		// the driver instead of hanging the MCU with the LED on.
		func() {
			defer func() {
				if r := recover(); r != nil {
					_ = engine.Disable()
					outputBuffer.Reset()
				}
			}()

			d, err := core.NewDriver(cfg, board, &clicks)
			if err != nil {
				halt("driver: " + err.Error())
			}
			err = d.Run(ctx)
			if errors.Is(err, core.ErrPowerLost) {
				clicks.PowerCycle(0, cfg.ClickRetention)
				return
			}
			if err != nil {
				core.DebugPrintln("driver stopped: " + err.Error())
			}
		}()

		time.Sleep(10 * time.Millisecond)
	}
}

// halt reports a fatal setup error over USB forever
func halt(msg string) {
	for {
		emit(func() error { return encoder.Debug(msg) })
		time.Sleep(time.Second)
	}
}

// emit encodes one frame and sends it. When the scratch buffer is full of
// frames the host has not taken, the backlog is dropped so the new frame
// goes out whole; the host sees the gap in the sequence numbers.
func emit(encode func() error) {
	if err := encode(); errors.Is(err, protocol.ErrOutputFull) {
		writeUSB()
		if len(outputBuffer.Result()) > 0 {
			framesDropped++
			outputBuffer.Reset()
		}
		_ = encode()
	}
	writeUSB()
}

// writeUSB writes pending telemetry frames to USB
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			break
		}
		written += n
	}

	switch {
	case written == len(result):
		consecutiveWriteFailures = 0
		usbWasDisconnected = false
		framesSent++
		outputBuffer.Reset()
	case written > 0:
		// Part of a frame is on the wire and cannot be resent; the host
		// resyncs on the sync byte
		framesDropped++
		outputBuffer.Reset()
	default:
		// Likely no host attached; drop stale frames after a few tries
		consecutiveWriteFailures++
		if consecutiveWriteFailures > 10 {
			usbWasDisconnected = true
			consecutiveWriteFailures = 0
			outputBuffer.Reset()
		}
	}
}
