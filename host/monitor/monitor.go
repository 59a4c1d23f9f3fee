package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"glimmer/core"
	"glimmer/protocol"
)

// Monitor decodes the telemetry stream of a light attached over serial.
type Monitor struct {
	port    io.Reader
	fifo    *protocol.FifoBuffer
	decoder *protocol.FrameDecoder
	buf     []byte

	// Strategy is the input strategy announced by the last hello frame
	Strategy core.InputStrategy
	hello    bool
}

// New creates a monitor reading from port
func New(port io.Reader) *Monitor {
	return &Monitor{
		port:    port,
		fifo:    protocol.NewFifoBuffer(4 * protocol.MessageMax),
		decoder: protocol.NewFrameDecoder(),
		buf:     make([]byte, protocol.MessageMax),
	}
}

// Dropped returns the number of corrupt or missing frames seen so far
func (m *Monitor) Dropped() int {
	return m.decoder.Dropped
}

// Connected reports whether a hello frame has been received
func (m *Monitor) Connected() bool {
	return m.hello
}

// Run reads until ctx is done or the port reaches EOF, calling handle for
// every decoded frame. Read timeouts (0 bytes, nil error) are ignored.
func (m *Monitor) Run(ctx context.Context, handle func(protocol.Frame)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := m.port.Read(m.buf)
		if n > 0 {
			m.Feed(m.buf[:n], handle)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read telemetry: %w", err)
		}
	}
}

// Feed pushes raw bytes through the decoder
func (m *Monitor) Feed(data []byte, handle func(protocol.Frame)) {
	for len(data) > 0 {
		n := m.fifo.Write(data)
		data = data[n:]
		m.decoder.Decode(m.fifo, func(f protocol.Frame) {
			if f.Kind == protocol.KindHello {
				m.hello = true
				m.Strategy = core.InputStrategy(f.Strategy)
			}
			if handle != nil {
				handle(f)
			}
		})
		if n == 0 && m.fifo.Free() == 0 {
			// Full of bytes the decoder cannot use
			m.fifo.Reset()
		}
	}
}

// Format renders a frame as one log line
func Format(f protocol.Frame) string {
	switch f.Kind {
	case protocol.KindEvent:
		return core.FormatEvent(core.Event{
			Type:   f.Event.Type,
			Tick:   f.Event.Tick,
			Value1: f.Event.Value1,
			Value2: f.Event.Value2,
		})
	case protocol.KindDebug:
		return "DEBUG " + f.Text
	case protocol.KindHello:
		return fmt.Sprintf("HELLO version=%s input=%s", f.Text, core.InputStrategy(f.Strategy))
	default:
		return fmt.Sprintf("frame kind=%d", f.Kind)
	}
}
