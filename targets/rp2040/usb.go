//go:build rp2040

package main

import (
	"machine"
)

// InitUSB initializes USB serial communication.
// On RP2040 machine.Serial is USB CDC-ACM set up by the TinyGo runtime.
func InitUSB() {
	err := machine.Serial.Configure(machine.UARTConfig{})
	if err != nil {
		return
	}
}

// USBWriteBytes writes telemetry bytes to USB
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
