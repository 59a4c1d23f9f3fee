package core

import (
	"errors"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration validation error
var ErrInvalidConfig = errors.New("invalid driver configuration")

// ConfigError names the offending field of a rejected configuration
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid driver configuration: " + e.Field + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func configErr(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}

// InputStrategy selects how off-time / presses are sensed
type InputStrategy uint8

const (
	// InputOTC reads the residual charge of an off-time capacitor
	InputOTC InputStrategy = iota
	// InputNoInit relies on RAM surviving a short power cut
	InputNoInit
	// InputOTSM stays asleep across the off interval counting watchdog ticks
	InputOTSM
	// InputESwitch polls a momentary switch while powered
	InputESwitch
)

func (s InputStrategy) String() string {
	switch s {
	case InputOTC:
		return "otc"
	case InputNoInit:
		return "noinit"
	case InputOTSM:
		return "otsm"
	case InputESwitch:
		return "eswitch"
	default:
		return "unknown"
	}
}

// ParseInputStrategy maps a config name to a strategy
func ParseInputStrategy(name string) (InputStrategy, bool) {
	for s := InputOTC; s <= InputESwitch; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// BatteryConfig drives the low-voltage monitor. Readings are raw 8-bit ADC.
type BatteryConfig struct {
	Low         uint8  // step down below this
	Critical    uint8  // shut off below this
	Samples     uint8  // consecutive low readings required
	SampleTicks uint16 // ticks between voltage samples
	WarnBlinks  uint8  // blinks before a step-down
	CheckBands  []uint8
}

// ThermalConfig drives the over-temperature regulator. The ceiling itself
// is persisted (PersistedState.ThermalCeiling) and enabled by OptThermal.
type ThermalConfig struct {
	Hysteresis  uint8
	Samples     uint8
	SampleTicks uint16
}

// MenuConfig drives the fast-press configuration menu
type MenuConfig struct {
	FastPresses uint8         // presses beyond this enter the menu
	Items       []Options     // toggles, presented in order
	Window      time.Duration // confirmation window per item
}

// Config is the complete, validated description of one driver build.
type Config struct {
	Input      InputStrategy
	Thresholds Classifier

	DebounceWindow   uint8
	LongHoldTicks    uint16 // e-switch hold boundary
	ClickWindowTicks uint16 // e-switch: max gap between fast presses
	ClickRetention   time.Duration

	TickPeriod    time.Duration
	OutputChannel Channel
	BlinkLevel    uint8

	Groups   [][]uint8
	Hidden   []ModeKind
	Defaults PersistedState

	Battery           BatteryConfig
	Thermal           ThermalConfig
	TurboTimeoutTicks uint16
	SaveDelayTicks    uint16
	Menu              MenuConfig
}

// Tick period bounds of the watchdog/timer tick sources supported
const (
	MinTickPeriod = 16 * time.Millisecond
	MaxTickPeriod = 500 * time.Millisecond
)

// Validate rejects inconsistent combinations with a descriptive error.
func (c *Config) Validate() error {
	if c.Input > InputESwitch {
		return configErr("input", "unknown strategy")
	}
	if c.TickPeriod < MinTickPeriod || c.TickPeriod > MaxTickPeriod {
		return configErr("tick_period", "must be between 16ms and 500ms")
	}

	switch c.Input {
	case InputOTC:
		if c.Thresholds.Short > 0xFF || c.Thresholds.Medium > 0xFF {
			return configErr("thresholds", "capacitor thresholds are 8-bit readings")
		}
		if c.Thresholds.ThreeWay && c.Thresholds.Medium >= c.Thresholds.Short {
			return configErr("thresholds", "medium must be below short for a decaying capacitor")
		}
	case InputOTSM:
		if c.Thresholds.Short == 0 {
			return configErr("thresholds", "short tick boundary must be positive")
		}
		if c.Thresholds.ThreeWay && c.Thresholds.Medium <= c.Thresholds.Short {
			return configErr("thresholds", "medium must be above short when counting ticks")
		}
	case InputNoInit:
		if c.Thresholds.ThreeWay {
			return configErr("thresholds", "noinit sensing cannot tell medium presses apart")
		}
		if c.ClickRetention <= 0 {
			return configErr("click_retention", "must be positive")
		}
	case InputESwitch:
		if c.LongHoldTicks == 0 {
			return configErr("long_hold_ticks", "must be positive")
		}
	}

	if c.Input == InputESwitch || c.Input == InputOTSM {
		// One poll would let a single glitch flip the state
		if c.DebounceWindow < 2 || c.DebounceWindow > 32 {
			return configErr("debounce_window", "must be 2..32 polls")
		}
	}

	if len(c.Groups) == 0 {
		return configErr("groups", "at least one mode group is required")
	}
	if len(c.Groups) >= Erased {
		return configErr("groups", "too many mode groups")
	}
	for i, g := range c.Groups {
		solid := 0
		for _, lvl := range g {
			if lvl == 0 {
				break
			}
			solid++
		}
		if solid == 0 {
			return configErr("groups["+itoa(i)+"]", "no levels before the zero sentinel")
		}
		if solid+1+len(c.Hidden) > MaxModes {
			return configErr("groups["+itoa(i)+"]", "solid and hidden modes exceed "+itoa(MaxModes-1))
		}
	}
	if int(c.Defaults.ModeGroup) >= len(c.Groups) {
		return configErr("defaults.mode_group", "out of range")
	}

	for _, k := range c.Hidden {
		if k == KindSolid || k > KindBattCheck {
			return configErr("hidden", "unknown hidden mode")
		}
		if k == KindBattCheck && len(c.Battery.CheckBands) == 0 {
			return configErr("battery.check_bands", "battcheck needs voltage bands")
		}
	}

	b := c.Battery
	if b.Low > 0 {
		if b.Samples < 2 {
			return configErr("battery.samples", "at least two consecutive readings are required")
		}
		if b.Critical >= b.Low {
			return configErr("battery.critical", "must be below battery.low")
		}
		if b.SampleTicks == 0 {
			return configErr("battery.sample_ticks", "must be positive")
		}
	}
	for i := 1; i < len(b.CheckBands); i++ {
		if b.CheckBands[i] <= b.CheckBands[i-1] {
			return configErr("battery.check_bands", "must be strictly ascending")
		}
	}

	if c.Defaults.Options.Has(OptThermal) || c.Thermal.Samples > 0 {
		if c.Thermal.Samples < 2 {
			return configErr("thermal.samples", "at least two consecutive readings are required")
		}
		if c.Thermal.SampleTicks == 0 {
			return configErr("thermal.sample_ticks", "must be positive")
		}
	}

	if len(c.Menu.Items) > 0 {
		if c.Menu.FastPresses == 0 {
			return configErr("menu.fast_presses", "must be positive when menu items exist")
		}
		if c.Menu.Window <= 0 {
			return configErr("menu.window", "must be positive")
		}
		for _, it := range c.Menu.Items {
			if it == 0 || it&(it-1) != 0 || it&^optionsMask != 0 {
				return configErr("menu.items", "each item must be a single option")
			}
		}
	}
	if c.Defaults.Options&^optionsMask != 0 {
		return configErr("defaults.options", "unknown option bits")
	}
	return nil
}

// DefaultConfig returns a clicky off-time-capacitor build with a four-mode
// group, strobe/beacon/battcheck hidden modes and a three-item menu.
func DefaultConfig() Config {
	return Config{
		Input: InputOTC,
		Thresholds: Classifier{
			Short:    190,
			Medium:   90,
			ThreeWay: true,
		},
		DebounceWindow:   4,
		LongHoldTicks:    32,
		ClickWindowTicks: 24,
		ClickRetention:   500 * time.Millisecond,
		TickPeriod:       16 * time.Millisecond,
		BlinkLevel:       40,
		Groups: [][]uint8{
			{1, 14, 39, 255, 0},
			{1, 10, 50, 120, 255, 0},
			{5, 35, 255, 0},
			{255, 0},
		},
		Hidden: []ModeKind{KindStrobe, KindBeacon, KindBattCheck},
		Defaults: PersistedState{
			Options:        OptHidden | OptThreeWay,
			ThermalCeiling: 190,
		},
		Battery: BatteryConfig{
			Low:         125,
			Critical:    110,
			Samples:     4,
			SampleTicks: 4,
			WarnBlinks:  3,
			CheckBands:  []uint8{110, 125, 140, 155},
		},
		Thermal: ThermalConfig{
			Hysteresis:  10,
			Samples:     4,
			SampleTicks: 32,
		},
		TurboTimeoutTicks: 2 * 60 * 1000 / 16,
		SaveDelayTicks:    0,
		Menu: MenuConfig{
			FastPresses: 15,
			Items:       []Options{OptMemory, OptHidden, OptReverse},
			Window:      time.Second,
		},
	}
}
