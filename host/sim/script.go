package sim

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"glimmer/core"
)

// Action is one kind of scripted stimulus
type Action uint8

const (
	// ActWait leaves the light alone
	ActWait Action = iota
	// ActCut removes the supply (a clicky switch press)
	ActCut
	// ActPress closes the momentary switch
	ActPress
	// ActReading changes what the ADC returns for Source
	ActReading
)

// Step is one scripted stimulus. Cut, press and wait steps take Duration;
// reading steps are instantaneous.
type Step struct {
	Action   Action
	Duration time.Duration
	Source   core.SampleSource
	Value    uint8
}

// Script is a sequence of steps run back to back
type Script []Step

// Gesture timings used by the named script words
const (
	TapOff     = 200 * time.Millisecond
	MediumOff  = time.Second
	LongOff    = 5 * time.Second
	OnSettle   = 400 * time.Millisecond
	ClickPress = 80 * time.Millisecond
	ClickGap   = 150 * time.Millisecond
)

// ParseScript turns a whitespace separated list of words into a script for
// cfg. Words: short, medium, long, click, hold[:dur], cut:dur, press:dur,
// wait:dur, lowbat, critbat, fullbat, hot, cool, volt:n, temp:n. A word may
// be repeated with a count suffix, e.g. "short*3".
func ParseScript(cfg core.Config, text string) (Script, error) {
	var s Script
	for _, word := range strings.Fields(text) {
		count := 1
		if i := strings.IndexByte(word, '*'); i >= 0 {
			n, err := strconv.Atoi(word[i+1:])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("bad repeat count in %q", word)
			}
			count = n
			word = word[:i]
		}
		steps, err := parseWord(cfg, word)
		if err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			s = append(s, steps...)
		}
	}
	return s, nil
}

func parseWord(cfg core.Config, word string) ([]Step, error) {
	name, arg, hasArg := strings.Cut(word, ":")
	eswitch := cfg.Input == core.InputESwitch

	duration := func() (time.Duration, error) {
		if !hasArg {
			return 0, fmt.Errorf("%s needs a duration, e.g. %s:500ms", name, name)
		}
		d, err := time.ParseDuration(arg)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("bad duration in %q", word)
		}
		return d, nil
	}
	reading := func(src core.SampleSource) ([]Step, error) {
		n, err := strconv.ParseUint(arg, 10, 8)
		if !hasArg || err != nil {
			return nil, fmt.Errorf("%s needs a reading 0..255", name)
		}
		return []Step{{Action: ActReading, Source: src, Value: uint8(n)}}, nil
	}
	clicky := func(off time.Duration) ([]Step, error) {
		if eswitch {
			return nil, fmt.Errorf("%s is a clicky gesture; use click or hold on e-switch builds", name)
		}
		return []Step{{Action: ActCut, Duration: off}, {Action: ActWait, Duration: OnSettle}}, nil
	}

	switch name {
	case "short":
		if eswitch {
			return clickSteps(), nil
		}
		return clicky(TapOff)
	case "medium":
		return clicky(MediumOff)
	case "long":
		if eswitch {
			return holdSteps(cfg, 0), nil
		}
		return clicky(LongOff)
	case "click":
		if !eswitch {
			return nil, fmt.Errorf("click needs an e-switch build")
		}
		return clickSteps(), nil
	case "hold":
		if !eswitch {
			return nil, fmt.Errorf("hold needs an e-switch build")
		}
		var d time.Duration
		if hasArg {
			var err error
			if d, err = duration(); err != nil {
				return nil, err
			}
		}
		return holdSteps(cfg, d), nil
	case "cut":
		d, err := duration()
		if err != nil {
			return nil, err
		}
		return []Step{{Action: ActCut, Duration: d}}, nil
	case "press":
		d, err := duration()
		if err != nil {
			return nil, err
		}
		return []Step{{Action: ActPress, Duration: d}}, nil
	case "wait":
		d, err := duration()
		if err != nil {
			return nil, err
		}
		return []Step{{Action: ActWait, Duration: d}}, nil
	case "volt":
		return reading(core.SampleVoltage)
	case "temp":
		return reading(core.SampleTemperature)
	case "lowbat":
		return []Step{{Action: ActReading, Source: core.SampleVoltage, Value: lowBattery(cfg)}}, nil
	case "critbat":
		v := uint8(0)
		if cfg.Battery.Critical > 0 {
			v = cfg.Battery.Critical - 1
		}
		return []Step{{Action: ActReading, Source: core.SampleVoltage, Value: v}}, nil
	case "fullbat":
		return []Step{{Action: ActReading, Source: core.SampleVoltage, Value: DefaultVoltage}}, nil
	case "hot":
		return []Step{{Action: ActReading, Source: core.SampleTemperature, Value: addSat(cfg.Defaults.ThermalCeiling, 5)}}, nil
	case "cool":
		return []Step{{Action: ActReading, Source: core.SampleTemperature, Value: DefaultTemperature}}, nil
	}
	return nil, fmt.Errorf("unknown script word %q", word)
}

func clickSteps() []Step {
	return []Step{{Action: ActPress, Duration: ClickPress}, {Action: ActWait, Duration: ClickGap}}
}

// holdSteps presses for d, or just past the long-hold boundary when d is 0
func holdSteps(cfg core.Config, d time.Duration) []Step {
	if d == 0 {
		d = time.Duration(int(cfg.LongHoldTicks)+int(cfg.DebounceWindow)+2) * cfg.TickPeriod
	}
	return []Step{{Action: ActPress, Duration: d}, {Action: ActWait, Duration: ClickGap}}
}

// lowBattery is a reading between the critical and low thresholds
func lowBattery(cfg core.Config) uint8 {
	b := cfg.Battery
	if b.Low == 0 {
		return DefaultVoltage
	}
	if b.Low-b.Critical > 1 {
		return b.Critical + (b.Low-b.Critical)/2
	}
	return b.Low - 1
}

func addSat(a, b uint8) uint8 {
	if a > 0xFF-b {
		return 0xFF
	}
	return a + b
}

// Duration returns the total running time of the script
func (s Script) Duration() time.Duration {
	var total time.Duration
	for _, st := range s {
		total += st.Duration
	}
	return total
}
