package sim

import (
	"bytes"
	"context"
	"testing"
	"time"

	"glimmer/core"
	"glimmer/host/monitor"
	"glimmer/protocol"
)

func run(t *testing.T, cfg core.Config, script string) *Light {
	t.Helper()
	s, err := ParseScript(cfg, script)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Run(context.Background(), s); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return l
}

func otcConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Groups = [][]uint8{{1, 14, 39, 255, 0}}
	return cfg
}

func TestDischargeClassifies(t *testing.T) {
	c := core.DefaultConfig().Thresholds
	tau := NewBoard(core.DefaultConfig()).Tau

	testCases := []struct {
		off  time.Duration
		want core.PressClass
	}{
		{0, core.PressShort},
		{TapOff, core.PressShort},
		{MediumOff, core.PressMedium},
		{LongOff, core.PressLong},
	}
	for _, tc := range testCases {
		if got := c.ClassifyCharge(Discharge(tc.off, tau)); got != tc.want {
			t.Errorf("off %v: expected %v, got %v", tc.off, tc.want, got)
		}
	}
}

func TestOTCLowBatteryScenario(t *testing.T) {
	l := run(t, otcConfig(), "wait:100ms short short lowbat wait:2500ms")
	d := l.Driver()

	if l.Boots != 3 {
		t.Errorf("Expected 3 boots, got %d", l.Boots)
	}
	if d.Index() != 1 || d.Mode().Level != 1 {
		t.Errorf("Expected a step-down to moon, at index %d level %d", d.Index(), d.Mode().Level)
	}
	if n := l.Count(core.EvtStepDown); n != 1 {
		t.Errorf("Expected exactly 1 step-down, got %d", n)
	}
	if n := l.Count(core.EvtShutoff); n != 0 {
		t.Errorf("Expected no shut-off yet, got %d", n)
	}
	if d.Persisted().ModeIndex != 2 {
		t.Errorf("Expected persisted index 2, got %d", d.Persisted().ModeIndex)
	}
}

func TestOTCMediumRetreats(t *testing.T) {
	l := run(t, otcConfig(), "wait:100ms short short medium")
	if got := l.Driver().Index(); got != 1 {
		t.Errorf("Expected medium press to retreat to 1, got %d", got)
	}
	evt, ok := l.Last(core.EvtPress)
	if !ok || evt.Value1 != uint32(core.PressMedium) {
		t.Errorf("last press was not medium: %+v", evt)
	}
}

func TestOTCMenuAcceptedByCut(t *testing.T) {
	l := run(t, otcConfig(), "wait:100ms short*16 wait:800ms cut:200ms wait:1s")
	d := l.Driver()

	if l.Count(core.EvtMenuEnter) != 1 {
		t.Fatalf("menu entered %d times", l.Count(core.EvtMenuEnter))
	}
	if l.Count(core.EvtToggle) != 1 || l.Count(core.EvtRevert) != 0 {
		t.Errorf("Expected one accepted toggle, got %d toggles and %d reverts",
			l.Count(core.EvtToggle), l.Count(core.EvtRevert))
	}
	if !d.Persisted().Options.Has(core.OptMemory) {
		t.Errorf("memory option not persisted: %v", d.Persisted().Options)
	}
	if d.Index() != 1 {
		t.Errorf("Expected the cut after the menu to turn on at 1, got %d", d.Index())
	}
}

func TestNoInitClicks(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Input = core.InputNoInit
	cfg.Thresholds = core.Classifier{}
	cfg.Defaults.Options &^= core.OptThreeWay

	l := run(t, cfg, "wait:100ms short short short")
	if got := l.Driver().Index(); got != 3 {
		t.Errorf("Expected index 3 after three short presses, got %d", got)
	}

	l = run(t, cfg, "wait:100ms short short long")
	if got := l.Driver().Index(); got != 0 {
		t.Errorf("Expected a long press to reset to off, got %d", got)
	}
}

func TestOTSMCountsTicks(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Input = core.InputOTSM
	cfg.Thresholds = core.Classifier{Short: 25, Medium: 75, ThreeWay: true}
	cfg.DebounceWindow = 2

	l := run(t, cfg, "wait:100ms short short medium")
	if got := l.Driver().Index(); got != 1 {
		t.Errorf("Expected index 1, got %d", got)
	}
	if l.Boots != 1 {
		t.Errorf("short off-times must not reboot the MCU, got %d boots", l.Boots)
	}

	l = run(t, cfg, "wait:100ms short short long")
	if l.Boots != 2 {
		t.Errorf("Expected the reserve to run out on a long press, got %d boots", l.Boots)
	}
	if got := l.Driver().Index(); got != 0 {
		t.Errorf("Expected a cold boot to reset to off, got %d", got)
	}
}

func TestESwitch(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Input = core.InputESwitch
	cfg.Thresholds = core.Classifier{}
	cfg.Defaults.Options = core.OptHidden

	l := run(t, cfg, "wait:100ms click click wait:1s")
	if got := l.Driver().Index(); got != 2 {
		t.Errorf("Expected two clicks to reach 2, got %d", got)
	}
	if l.Boots != 1 {
		t.Errorf("e-switch lights never lose power, got %d boots", l.Boots)
	}
	if got := l.Board().Output.Level(); got != 14 {
		t.Errorf("Expected output level 14, got %d", got)
	}

	l = run(t, cfg, "wait:100ms hold wait:500ms")
	if got := l.Driver().Index(); got != 1 {
		t.Errorf("Expected a hold from off to light moon, got %d", got)
	}
}

func TestTelemetryStream(t *testing.T) {
	cfg := otcConfig()
	s, err := ParseScript(cfg, "wait:100ms short short")
	if err != nil {
		t.Fatal(err)
	}
	l, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	l.Telemetry = &buf
	if err := l.Run(context.Background(), s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var frames []protocol.Frame
	m := monitor.New(&buf)
	if err := m.Run(context.Background(), func(f protocol.Frame) { frames = append(frames, f) }); err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if len(frames) != len(l.Records)+1 {
		t.Fatalf("Expected %d frames, got %d", len(l.Records)+1, len(frames))
	}
	if m.Strategy != core.InputOTC || m.Dropped() != 0 {
		t.Errorf("strategy %v, dropped %d", m.Strategy, m.Dropped())
	}
	for i, r := range l.Records {
		if got := frames[i+1].Event; got.Type != r.Event.Type || got.Value1 != r.Event.Value1 {
			t.Errorf("frame %d: expected %+v, got %+v", i+1, r.Event, got)
		}
	}
}

func TestEEPROMWearSpread(t *testing.T) {
	l := run(t, otcConfig(), "wait:100ms short*12")
	ring := l.Driver().Store().RingSize()
	if ring < 2 {
		t.Fatalf("ring size %d", ring)
	}
	// Fewer saves than cells: no cell sees more than its format erase,
	// one write and one erase.
	if max := l.Board().EEPROM.MaxWrites(); max > 3 {
		t.Errorf("hottest cell written %d times with a ring of %d", max, ring)
	}
}

func TestParseScript(t *testing.T) {
	cfg := otcConfig()
	s, err := ParseScript(cfg, "short*2 wait:1s lowbat hot volt:90")
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(s) != 8 {
		t.Fatalf("Expected 8 steps, got %d: %+v", len(s), s)
	}
	if s[0].Action != ActCut || s[0].Duration != TapOff {
		t.Errorf("short is not a tap: %+v", s[0])
	}
	if s[5].Value >= cfg.Battery.Low || s[5].Value <= cfg.Battery.Critical {
		t.Errorf("lowbat reading %d not between thresholds", s[5].Value)
	}
	if s[6].Source != core.SampleTemperature || s[6].Value <= cfg.Defaults.ThermalCeiling {
		t.Errorf("hot reading %+v not above the ceiling", s[6])
	}
	if s[7].Value != 90 {
		t.Errorf("volt:90 parsed as %d", s[7].Value)
	}
	if want := 2*(TapOff+OnSettle) + time.Second; s.Duration() != want {
		t.Errorf("Expected duration %v, got %v", want, s.Duration())
	}

	bad := []string{"dance", "wait", "wait:-1s", "volt:300", "short*0", "click", "hold"}
	for _, text := range bad {
		if _, err := ParseScript(cfg, text); err == nil {
			t.Errorf("%q accepted", text)
		}
	}

	es := cfg
	es.Input = core.InputESwitch
	if _, err := ParseScript(es, "medium"); err == nil {
		t.Error("medium accepted on an e-switch build")
	}
	s, err = ParseScript(es, "short long")
	if err != nil {
		t.Fatalf("e-switch script: %v", err)
	}
	if s[0].Action != ActPress || s[2].Action != ActPress || s[2].Duration <= s[0].Duration {
		t.Errorf("unexpected e-switch steps %+v", s)
	}
}

func TestHoldOutlastsLongHold(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Input = core.InputESwitch
	cfg.Thresholds = core.Classifier{}
	cfg.LongHoldTicks = 300
	cfg.DebounceWindow = 8

	s, err := ParseScript(cfg, "hold")
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	want := time.Duration(300+8+2) * cfg.TickPeriod
	if s[0].Action != ActPress || s[0].Duration != want {
		t.Errorf("Expected a %v press, got %+v", want, s[0])
	}
}
