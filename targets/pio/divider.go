package pio

// strobeCycles is the length of one flash: 32 high, 32+32+96+1 low
const strobeCycles = 193

// ClockDivider returns the integer and 1/256 fractional divider that makes
// one flash last 1/hz seconds at cpuHz, clamped to the hardware range.
func ClockDivider(cpuHz, hz uint32) (uint16, uint8) {
	if hz == 0 {
		hz = 1
	}
	rate := uint64(hz) * strobeCycles
	whole := uint64(cpuHz) / rate
	if whole == 0 {
		return 1, 0
	}
	if whole > 0xFFFF {
		return 0xFFFF, 0
	}
	frac := (uint64(cpuHz) % rate) * 256 / rate
	return uint16(whole), uint8(frac)
}
