package core

// VoltageAction is the outcome of one voltage sample
type VoltageAction uint8

const (
	VoltageOK VoltageAction = iota
	VoltageStepDown
	VoltageShutoff
)

// VoltageMonitor requires Samples consecutive readings below Low before
// acting, so ADC noise or sag under load never triggers on its own.
type VoltageMonitor struct {
	Low      uint8
	Critical uint8
	Samples  uint8

	count uint8
	last  uint8
}

// Sample consumes one reading. After Samples consecutive low readings it
// returns one action and clears the counter; the action is Shutoff when
// the reading is below Critical, StepDown otherwise. Callers at moon turn
// a StepDown into a shut-off themselves.
func (m *VoltageMonitor) Sample(reading uint8) VoltageAction {
	m.last = reading
	if m.Low == 0 || m.Samples == 0 {
		return VoltageOK
	}
	if reading >= m.Low {
		m.count = 0
		return VoltageOK
	}
	m.count++
	if m.count < m.Samples {
		return VoltageOK
	}
	m.count = 0
	if reading < m.Critical {
		return VoltageShutoff
	}
	return VoltageStepDown
}

// Reset restarts the consecutive count, e.g. after a button press
func (m *VoltageMonitor) Reset() {
	m.count = 0
}

// Count returns the current consecutive low count
func (m *VoltageMonitor) Count() uint8 {
	return m.count
}

// Last returns the most recent reading
func (m *VoltageMonitor) Last() uint8 {
	return m.last
}

// ThermalAction is the outcome of one temperature sample
type ThermalAction uint8

const (
	ThermalOK ThermalAction = iota
	ThermalStepDown
	ThermalStepUp
)

// ThermalRegulator steps down after Samples consecutive readings above
// Ceiling and steps back up after Samples consecutive readings below
// Ceiling-Hysteresis. Readings in between reset both counters.
type ThermalRegulator struct {
	Ceiling    uint8
	Hysteresis uint8
	Samples    uint8

	hot  uint8
	cool uint8
}

// Sample consumes one raw temperature reading
func (r *ThermalRegulator) Sample(reading uint8) ThermalAction {
	if r.Samples == 0 || r.Ceiling == 0 {
		return ThermalOK
	}
	floor := uint8(0)
	if r.Ceiling > r.Hysteresis {
		floor = r.Ceiling - r.Hysteresis
	}

	switch {
	case reading > r.Ceiling:
		r.cool = 0
		r.hot++
		if r.hot >= r.Samples {
			r.hot = 0
			return ThermalStepDown
		}
	case reading < floor:
		r.hot = 0
		r.cool++
		if r.cool >= r.Samples {
			r.cool = 0
			return ThermalStepUp
		}
	default:
		r.hot = 0
		r.cool = 0
	}
	return ThermalOK
}

// Reset clears both counters
func (r *ThermalRegulator) Reset() {
	r.hot = 0
	r.cool = 0
}

// TurboTimer counts ticks spent in the top solid mode.
type TurboTimer struct {
	Timeout uint16

	elapsed uint16
}

// Tick advances the timer when inTurbo is true and returns true exactly
// once when Timeout is reached. Leaving turbo resets the count.
func (t *TurboTimer) Tick(inTurbo bool) bool {
	if t.Timeout == 0 || !inTurbo {
		t.elapsed = 0
		return false
	}
	t.elapsed++
	if t.elapsed >= t.Timeout {
		t.elapsed = 0
		return true
	}
	return false
}

// Reset restarts the timer
func (t *TurboTimer) Reset() {
	t.elapsed = 0
}

// BattCheckBlinks returns how many blinks represent reading: one per band
// boundary at or below the reading.
func BattCheckBlinks(reading uint8, bands []uint8) uint8 {
	var n uint8
	for _, b := range bands {
		if reading >= b {
			n++
		}
	}
	return n
}
