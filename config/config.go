package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"glimmer/core"
)

// File is the YAML representation of a driver build. Durations are in
// milliseconds; option and mode names are the lowercase names used by core.
type File struct {
	Input            string         `yaml:"input"`
	Thresholds       ThresholdsFile `yaml:"thresholds"`
	DebounceWindow   uint8          `yaml:"debounce_window,omitempty"`
	LongHoldTicks    uint16         `yaml:"long_hold_ticks,omitempty"`
	ClickWindowTicks uint16         `yaml:"click_window_ticks,omitempty"`
	ClickRetentionMS int            `yaml:"click_retention_ms,omitempty"`
	TickPeriodMS     int            `yaml:"tick_period_ms"`
	OutputChannel    uint8          `yaml:"output_channel,omitempty"`
	BlinkLevel       uint8          `yaml:"blink_level,omitempty"`

	Groups   [][]uint8    `yaml:"groups"`
	Hidden   []string     `yaml:"hidden,omitempty"`
	Defaults DefaultsFile `yaml:"defaults"`

	Battery        BatteryFile `yaml:"battery"`
	Thermal        ThermalFile `yaml:"thermal"`
	TurboTimeoutMS int         `yaml:"turbo_timeout_ms,omitempty"`
	SaveDelayTicks uint16      `yaml:"save_delay_ticks,omitempty"`
	Menu           MenuFile    `yaml:"menu"`
}

type ThresholdsFile struct {
	Short    uint16 `yaml:"short"`
	Medium   uint16 `yaml:"medium,omitempty"`
	ThreeWay bool   `yaml:"three_way,omitempty"`
}

type DefaultsFile struct {
	ModeGroup      uint8    `yaml:"mode_group"`
	Options        []string `yaml:"options,omitempty"`
	ThermalCeiling uint8    `yaml:"thermal_ceiling,omitempty"`
}

type BatteryFile struct {
	Low         uint8   `yaml:"low"`
	Critical    uint8   `yaml:"critical"`
	Samples     uint8   `yaml:"samples"`
	SampleTicks uint16  `yaml:"sample_ticks"`
	WarnBlinks  uint8   `yaml:"warn_blinks,omitempty"`
	CheckBands  []uint8 `yaml:"check_bands,omitempty"`
}

type ThermalFile struct {
	Hysteresis  uint8  `yaml:"hysteresis,omitempty"`
	Samples     uint8  `yaml:"samples,omitempty"`
	SampleTicks uint16 `yaml:"sample_ticks,omitempty"`
}

type MenuFile struct {
	FastPresses uint8    `yaml:"fast_presses,omitempty"`
	Items       []string `yaml:"items,omitempty"`
	WindowMS    int      `yaml:"window_ms,omitempty"`
}

// Load reads a YAML file, applies defaults and returns a validated config.
func Load(path string) (core.Config, error) {
	if path == "" {
		return core.Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return core.Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, rejecting unknown fields and trailing documents.
func Parse(data []byte) (core.Config, error) {
	var f File

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return core.Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return core.Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	applyDefaults(&f)
	return f.Config()
}

// applyDefaults fills in missing values from the default build
func applyDefaults(f *File) {
	def := core.DefaultConfig()

	if f.Input == "" {
		f.Input = def.Input.String()
	}
	if f.TickPeriodMS == 0 {
		f.TickPeriodMS = int(def.TickPeriod / time.Millisecond)
	}
	if f.DebounceWindow == 0 {
		f.DebounceWindow = def.DebounceWindow
	}
	if f.LongHoldTicks == 0 {
		f.LongHoldTicks = def.LongHoldTicks
	}
	if f.ClickWindowTicks == 0 {
		f.ClickWindowTicks = def.ClickWindowTicks
	}
	if f.ClickRetentionMS == 0 {
		f.ClickRetentionMS = int(def.ClickRetention / time.Millisecond)
	}
	if f.BlinkLevel == 0 {
		f.BlinkLevel = def.BlinkLevel
	}
	if len(f.Groups) == 0 {
		f.Groups = def.Groups
	}
	if f.Thresholds.Short == 0 && f.Input == def.Input.String() {
		f.Thresholds = ThresholdsFile{
			Short:    def.Thresholds.Short,
			Medium:   def.Thresholds.Medium,
			ThreeWay: def.Thresholds.ThreeWay,
		}
	}
	if f.Thermal.Samples > 0 {
		if f.Thermal.SampleTicks == 0 {
			f.Thermal.SampleTicks = def.Thermal.SampleTicks
		}
		if f.Thermal.Hysteresis == 0 {
			f.Thermal.Hysteresis = def.Thermal.Hysteresis
		}
	}
	if f.Defaults.ThermalCeiling == 0 {
		f.Defaults.ThermalCeiling = def.Defaults.ThermalCeiling
	}
	if len(f.Menu.Items) > 0 {
		if f.Menu.FastPresses == 0 {
			f.Menu.FastPresses = def.Menu.FastPresses
		}
		if f.Menu.WindowMS == 0 {
			f.Menu.WindowMS = int(def.Menu.Window / time.Millisecond)
		}
	}
}

// Config converts names to core values and validates the result.
func (f *File) Config() (core.Config, error) {
	var cfg core.Config

	input, ok := core.ParseInputStrategy(f.Input)
	if !ok {
		return cfg, fieldErr("input", "unknown strategy "+f.Input)
	}
	cfg.Input = input
	cfg.Thresholds = core.Classifier{
		Short:    f.Thresholds.Short,
		Medium:   f.Thresholds.Medium,
		ThreeWay: f.Thresholds.ThreeWay,
	}
	cfg.DebounceWindow = f.DebounceWindow
	cfg.LongHoldTicks = f.LongHoldTicks
	cfg.ClickWindowTicks = f.ClickWindowTicks
	cfg.ClickRetention = time.Duration(f.ClickRetentionMS) * time.Millisecond
	cfg.TickPeriod = time.Duration(f.TickPeriodMS) * time.Millisecond
	cfg.OutputChannel = core.Channel(f.OutputChannel)
	cfg.BlinkLevel = f.BlinkLevel
	cfg.Groups = f.Groups

	for _, name := range f.Hidden {
		k, ok := core.ParseModeKind(name)
		if !ok {
			return cfg, fieldErr("hidden", "unknown mode "+name)
		}
		cfg.Hidden = append(cfg.Hidden, k)
	}

	opts, err := parseOptions("defaults.options", f.Defaults.Options)
	if err != nil {
		return cfg, err
	}
	cfg.Defaults = core.PersistedState{
		ModeGroup:      f.Defaults.ModeGroup,
		Options:        opts,
		ThermalCeiling: f.Defaults.ThermalCeiling,
	}

	cfg.Battery = core.BatteryConfig{
		Low:         f.Battery.Low,
		Critical:    f.Battery.Critical,
		Samples:     f.Battery.Samples,
		SampleTicks: f.Battery.SampleTicks,
		WarnBlinks:  f.Battery.WarnBlinks,
		CheckBands:  f.Battery.CheckBands,
	}
	cfg.Thermal = core.ThermalConfig{
		Hysteresis:  f.Thermal.Hysteresis,
		Samples:     f.Thermal.Samples,
		SampleTicks: f.Thermal.SampleTicks,
	}
	if f.TurboTimeoutMS > 0 && f.TickPeriodMS > 0 {
		ticks := f.TurboTimeoutMS / f.TickPeriodMS
		if ticks > 0xFFFF {
			return cfg, fieldErr("turbo_timeout_ms", "too long for the tick period")
		}
		cfg.TurboTimeoutTicks = uint16(ticks)
	}
	cfg.SaveDelayTicks = f.SaveDelayTicks

	for _, name := range f.Menu.Items {
		o, ok := core.ParseOption(name)
		if !ok {
			return cfg, fieldErr("menu.items", "unknown option "+name)
		}
		cfg.Menu.Items = append(cfg.Menu.Items, o)
	}
	cfg.Menu.FastPresses = f.Menu.FastPresses
	cfg.Menu.Window = time.Duration(f.Menu.WindowMS) * time.Millisecond

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseOptions(field string, names []string) (core.Options, error) {
	var opts core.Options
	for _, name := range names {
		o, ok := core.ParseOption(name)
		if !ok {
			return 0, fieldErr(field, "unknown option "+name)
		}
		opts |= o
	}
	return opts, nil
}

func fieldErr(field, reason string) error {
	return &core.ConfigError{Field: field, Reason: reason}
}

// FromCore renders cfg back to its file form, e.g. to print a preset.
func FromCore(cfg core.Config) File {
	f := File{
		Input: cfg.Input.String(),
		Thresholds: ThresholdsFile{
			Short:    cfg.Thresholds.Short,
			Medium:   cfg.Thresholds.Medium,
			ThreeWay: cfg.Thresholds.ThreeWay,
		},
		DebounceWindow:   cfg.DebounceWindow,
		LongHoldTicks:    cfg.LongHoldTicks,
		ClickWindowTicks: cfg.ClickWindowTicks,
		ClickRetentionMS: int(cfg.ClickRetention / time.Millisecond),
		TickPeriodMS:     int(cfg.TickPeriod / time.Millisecond),
		OutputChannel:    uint8(cfg.OutputChannel),
		BlinkLevel:       cfg.BlinkLevel,
		Groups:           cfg.Groups,
		Defaults: DefaultsFile{
			ModeGroup:      cfg.Defaults.ModeGroup,
			ThermalCeiling: cfg.Defaults.ThermalCeiling,
		},
		Battery: BatteryFile{
			Low:         cfg.Battery.Low,
			Critical:    cfg.Battery.Critical,
			Samples:     cfg.Battery.Samples,
			SampleTicks: cfg.Battery.SampleTicks,
			WarnBlinks:  cfg.Battery.WarnBlinks,
			CheckBands:  cfg.Battery.CheckBands,
		},
		Thermal: ThermalFile{
			Hysteresis:  cfg.Thermal.Hysteresis,
			Samples:     cfg.Thermal.Samples,
			SampleTicks: cfg.Thermal.SampleTicks,
		},
		TurboTimeoutMS: int(cfg.TurboTimeoutTicks) * int(cfg.TickPeriod/time.Millisecond),
		SaveDelayTicks: cfg.SaveDelayTicks,
		Menu: MenuFile{
			FastPresses: cfg.Menu.FastPresses,
			WindowMS:    int(cfg.Menu.Window / time.Millisecond),
		},
	}
	for _, k := range cfg.Hidden {
		f.Hidden = append(f.Hidden, k.String())
	}
	for o := core.OptMemory; o <= core.OptThreeWay; o <<= 1 {
		if cfg.Defaults.Options.Has(o) {
			f.Defaults.Options = append(f.Defaults.Options, core.OptionName(o))
		}
	}
	for _, o := range cfg.Menu.Items {
		f.Menu.Items = append(f.Menu.Items, core.OptionName(o))
	}
	return f
}

// Marshal renders cfg as YAML
func Marshal(cfg core.Config) ([]byte, error) {
	f := FromCore(cfg)
	return yaml.Marshal(&f)
}
