package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"glimmer/core"
	"glimmer/protocol"
)

// Record is an event stamped with simulated time
type Record struct {
	At    time.Duration
	Event core.Event
}

func (r Record) String() string {
	return fmt.Sprintf("%9s %s", r.At.Truncate(time.Millisecond), core.FormatEvent(r.Event))
}

// Light is a complete simulated flashlight: a board plus the RAM that
// survives short power cuts. Each power cycle boots a fresh driver.
type Light struct {
	cfg    core.Config
	board  *Board
	clicks core.ClickHistory
	driver *core.Driver

	// Telemetry, when set, receives every event as a protocol frame
	Telemetry io.Writer

	Records []Record
	Boots   int
}

// New creates a light for cfg with erased EEPROM
func New(cfg core.Config) (*Light, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Light{cfg: cfg, board: NewBoard(cfg)}, nil
}

// Board returns the simulated hardware
func (l *Light) Board() *Board {
	return l.board
}

// Driver returns the driver of the current power cycle
func (l *Light) Driver() *core.Driver {
	return l.driver
}

// Run plays script from simulated time zero, booting the driver after
// every power cut, until the script is exhausted.
func (l *Light) Run(ctx context.Context, script Script) error {
	l.board.load(script)

	var out *protocol.ScratchOutput
	var enc *protocol.Encoder
	if l.Telemetry != nil {
		out = protocol.NewScratchOutput()
		enc = protocol.NewEncoder(out)
	}
	var writeErr error
	core.ClearEvents()
	core.SetEventSink(func(evt core.Event) {
		l.Records = append(l.Records, Record{At: l.board.now, Event: evt})
		if enc == nil || writeErr != nil {
			return
		}
		out.Reset()
		if writeErr = enc.Event(protocol.EventRecord{Type: evt.Type, Tick: evt.Tick, Value1: evt.Value1, Value2: evt.Value2}); writeErr != nil {
			return
		}
		_, writeErr = l.Telemetry.Write(out.Result())
	})
	defer core.SetEventSink(nil)

	if enc != nil {
		out.Reset()
		if err := enc.Hello(uint8(l.cfg.Input)); err != nil {
			return fmt.Errorf("encode hello: %w", err)
		}
		if _, err := l.Telemetry.Write(out.Result()); err != nil {
			return fmt.Errorf("write telemetry: %w", err)
		}
	}

	for {
		d, err := core.NewDriver(l.cfg, l.board.HAL(), &l.clicks)
		if err != nil {
			return err
		}
		l.driver = d
		l.Boots++

		err = d.Run(ctx)
		if writeErr != nil {
			return fmt.Errorf("write telemetry: %w", writeErr)
		}
		switch {
		case errors.Is(err, ErrFinished):
			return nil
		case errors.Is(err, core.ErrPowerLost):
		default:
			return err
		}

		off, err := l.board.restore()
		if errors.Is(err, ErrFinished) {
			return nil
		}
		if err != nil {
			return err
		}
		l.clicks.PowerCycle(off, l.cfg.ClickRetention)
	}
}

// Count returns how many recorded events have type typ
func (l *Light) Count(typ uint8) int {
	n := 0
	for _, r := range l.Records {
		if r.Event.Type == typ {
			n++
		}
	}
	return n
}

// Last returns the most recent event of type typ
func (l *Light) Last(typ uint8) (core.Event, bool) {
	for i := len(l.Records) - 1; i >= 0; i-- {
		if l.Records[i].Event.Type == typ {
			return l.Records[i].Event, true
		}
	}
	return core.Event{}, false
}
