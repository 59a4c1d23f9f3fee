//go:build rp2040

package pio

// PIO strobe generator using tinygo-org/pio package
// Flashes the LED pin in hardware so the CPU can sleep between ticks.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// PIO program for strobe trains
// Command word: number of flashes minus one (0xFFFFFFFF runs until stopped)
//
// Program flow:
//  1. Pull 32-bit command from FIFO into X
//  2. Pin high for one 32-cycle unit
//  3. Pin low for 161 cycles
//  4. Repeat X+1 times, then wait for the next command
//
// One flash is strobeCycles clock cycles, so the clock divider alone sets
// the flash rate.
func buildStrobeProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),        // 0: pull block
		asm.Out(rp2pio.OutDestX, 32).Encode(), // 1: out x, 32 (flash count - 1)
		// flash:
		asm.Set(rp2pio.SetDestPins, 1).Delay(31).Encode(), // 2: set pins, 1 [31]
		asm.Set(rp2pio.SetDestPins, 0).Delay(31).Encode(), // 3: set pins, 0 [31]
		asm.Set(rp2pio.SetDestY, 2).Delay(31).Encode(),    // 4: set y, 2 [31]
		// dark:
		asm.Jmp(5, rp2pio.JmpYNZeroDec).Delay(31).Encode(), // 5: jmp y--, 5 [31]
		asm.Jmp(2, rp2pio.JmpXNZeroDec).Encode(),           // 6: jmp x--, 2
		// .wrap
	}
}

const (
	strobePIOOrigin = 0 // Load at offset 0 for correct jump addresses

	// Continuous is the command word for an endless train
	Continuous = 0xFFFFFFFF
)

// Strobe generates LED flash trains on one PIO state machine
type Strobe struct {
	pio     *rp2pio.PIO
	sm      rp2pio.StateMachine
	pin     machine.Pin
	cfg     rp2pio.StateMachineConfig
	offset  uint8
	running bool
}

// NewStrobe claims state machine smNum of PIO block pioNum (0 or 1) and
// loads the strobe program. The pin is only taken over by Start.
func NewStrobe(pioNum, smNum uint8, pin machine.Pin) (*Strobe, error) {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	s := &Strobe{
		pio: pioHW,
		sm:  pioHW.StateMachine(smNum),
		pin: pin,
	}

	// Claim the state machine first
	s.sm.TryClaim()

	program := buildStrobeProgram()
	offset, err := s.pio.AddProgram(program, strobePIOOrigin)
	if err != nil {
		return nil, err
	}
	s.offset = offset

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(pin, 1)
	// Shift right, autopull disabled (explicit PULL), 32-bit threshold
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	s.cfg = cfg
	return s, nil
}

// Start queues count flashes at hz; count 0 flashes until Stop
func (s *Strobe) Start(count uint32, hz uint32) error {
	if s.running {
		s.Stop()
	}
	whole, frac := ClockDivider(machine.CPUFrequency(), hz)
	s.cfg.SetClkDivIntFrac(whole, frac)

	s.pin.Configure(machine.PinConfig{Mode: s.pio.PinMode()})

	// Init resets the program counter; pin directions must follow it
	s.sm.Init(s.offset, s.cfg)
	s.sm.SetPindirsConsecutive(s.pin, 1, true)
	s.sm.SetPinsConsecutive(s.pin, 1, false)
	s.sm.SetEnabled(true)

	cmd := uint32(Continuous)
	if count > 0 {
		cmd = count - 1
	}
	for s.sm.IsTxFIFOFull() {
		// Busy wait - FIFO is drained by the pull at offset 0
	}
	s.sm.TxPut(cmd)
	s.running = true
	return nil
}

// Stop halts the state machine and leaves the pin low
func (s *Strobe) Stop() {
	s.sm.SetEnabled(false)
	s.sm.ClearFIFOs()
	s.sm.Restart()
	s.sm.SetPinsConsecutive(s.pin, 1, false)
	s.running = false
}

// Running reports whether a train has been started and not stopped
func (s *Strobe) Running() bool {
	return s.running
}
