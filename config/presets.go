package config

import (
	"sort"
	"time"

	"glimmer/core"
)

// Presets are complete builds for the supported input strategies
var presets = map[string]func() core.Config{
	"otc":     core.DefaultConfig,
	"noinit":  noInitPreset,
	"otsm":    otsmPreset,
	"eswitch": eswitchPreset,
}

// Preset returns the named built-in configuration
func Preset(name string) (core.Config, bool) {
	fn, ok := presets[name]
	if !ok {
		return core.Config{}, false
	}
	return fn(), true
}

// PresetNames lists the built-in configurations in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func noInitPreset() core.Config {
	cfg := core.DefaultConfig()
	cfg.Input = core.InputNoInit
	cfg.Thresholds = core.Classifier{}
	cfg.Defaults.Options &^= core.OptThreeWay
	cfg.Hidden = []core.ModeKind{core.KindStrobe, core.KindSOS, core.KindBattCheck}
	return cfg
}

// otsmPreset counts 16ms watchdog ticks while the supply is off: under
// ~0.4s is short, under ~1.2s is medium.
func otsmPreset() core.Config {
	cfg := core.DefaultConfig()
	cfg.Input = core.InputOTSM
	cfg.Thresholds = core.Classifier{Short: 25, Medium: 75, ThreeWay: true}
	cfg.DebounceWindow = 2
	return cfg
}

func eswitchPreset() core.Config {
	cfg := core.DefaultConfig()
	cfg.Input = core.InputESwitch
	cfg.Thresholds = core.Classifier{}
	cfg.DebounceWindow = 4
	cfg.LongHoldTicks = 32
	cfg.ClickWindowTicks = 24
	cfg.Defaults.Options = core.OptHidden | core.OptMemory
	cfg.Hidden = []core.ModeKind{core.KindStrobe, core.KindBeacon, core.KindSOS, core.KindBattCheck}
	cfg.Menu.FastPresses = 10
	cfg.Menu.Window = 1500 * time.Millisecond
	return cfg
}
