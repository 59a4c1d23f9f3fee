//go:build rp2040

package main

import (
	"device/rp"
	"glimmer/core"
	"machine"
)

// ADC mux inputs
const (
	tempChannel = 4 // internal temperature sensor
)

// Sampler implements core.Sampler on the RP2040 ADC without blocking:
// Start triggers a single conversion and the core collects it on a later
// tick.
type Sampler struct {
	voltage uint32 // AINSEL of the battery divider
	otc     uint32 // AINSEL of the off-time capacitor
	pending core.SampleSource
}

// NewSampler configures the analog pins for the battery divider and the
// off-time capacitor.
func NewSampler(voltage, otc machine.Pin) *Sampler {
	machine.InitADC()
	for _, pin := range []machine.Pin{voltage, otc} {
		adc := machine.ADC{Pin: pin}
		adc.Configure(machine.ADCConfig{})
	}

	// ADC0-ADC3 are GP26-GP29
	return &Sampler{
		voltage: uint32(voltage - machine.ADC0),
		otc:     uint32(otc - machine.ADC0),
	}
}

// Start selects src on the ADC mux and starts a single conversion
func (s *Sampler) Start(src core.SampleSource) error {
	// Ensure ADC is initialized
	if rp.ADC.CS.Get()&rp.ADC_CS_EN == 0 {
		machine.InitADC()
	}

	var ch uint32
	switch src {
	case core.SampleVoltage:
		ch = s.voltage
	case core.SampleOffTimeCap:
		ch = s.otc
	case core.SampleTemperature:
		rp.ADC.CS.SetBits(rp.ADC_CS_TS_EN)
		ch = tempChannel
	}
	rp.ADC.CS.ReplaceBits(ch<<rp.ADC_CS_AINSEL_Pos, rp.ADC_CS_AINSEL_Msk, 0)

	s.pending = src
	rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE)
	return nil
}

func (s *Sampler) Ready() bool {
	return rp.ADC.CS.HasBits(rp.ADC_CS_READY)
}

// Result returns the finished conversion scaled to 8 bits. Temperature is
// reported in half degrees Celsius.
func (s *Sampler) Result() uint8 {
	raw := uint16(rp.ADC.RESULT.Get())
	if s.pending == core.SampleTemperature {
		return halfDegrees(raw)
	}
	return uint8(raw >> 4)
}

// halfDegrees converts a 12-bit temperature sensor reading using the
// datasheet transfer function: 0.706V at 27C, -1.721mV per degree.
func halfDegrees(raw uint16) uint8 {
	mV := int32(raw) * 3300 / 4096
	milliC := 27000 - (mV-706)*1000000/1721
	half := milliC / 500
	if half < 0 {
		return 0
	}
	if half > 255 {
		return 255
	}
	return uint8(half)
}
