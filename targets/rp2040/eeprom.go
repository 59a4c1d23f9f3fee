//go:build rp2040

package main

import (
	"errors"
	"machine"
	"time"

	"tinygo.org/x/drivers/at24cx"
)

const (
	// eepromSize is the slice of the AT24C32 used for settings. The core
	// sizes its wear-leveling rings from it, and a format erases every
	// byte, so more is not better.
	eepromSize = 256

	// eepromWriteCycle is the AT24Cxx internal write time (tWR)
	eepromWriteCycle = 5 * time.Millisecond

	eepromFrequency = 400 * machine.KHz
)

var errEEPROMRange = errors.New("eeprom: address out of range")

// EEPROMStore implements core.ByteStore on an external AT24Cxx EEPROM.
// For I2C0 the default pins are SDA=GP4, SCL=GP5.
type EEPROMStore struct {
	dev  at24cx.Device
	size uint16
}

// NewEEPROMStore configures bus and the EEPROM on it
func NewEEPROMStore(bus *machine.I2C, size uint16) (*EEPROMStore, error) {
	err := bus.Configure(machine.I2CConfig{Frequency: eepromFrequency})
	if err != nil {
		return nil, err
	}
	dev := at24cx.New(bus)
	dev.Configure(at24cx.Config{EndRAMAddress: size})
	return &EEPROMStore{dev: dev, size: size}, nil
}

func (s *EEPROMStore) LoadByte(addr uint16) (uint8, error) {
	if addr >= s.size {
		return 0, errEEPROMRange
	}
	return s.dev.ReadByte(addr)
}

// StoreByte writes one byte and waits out the write cycle; the device
// NAKs everything until it finishes.
func (s *EEPROMStore) StoreByte(addr uint16, value uint8) error {
	if addr >= s.size {
		return errEEPROMRange
	}
	if err := s.dev.WriteByte(addr, value); err != nil {
		return err
	}
	time.Sleep(eepromWriteCycle)
	return nil
}

func (s *EEPROMStore) Size() uint16 {
	return s.size
}
