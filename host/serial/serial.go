package serial

import (
	"context"
	"io"
	"time"
)

// Port is a telemetry link to a light. The native implementation uses
// github.com/tarm/serial; tests substitute an in-memory reader.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int

	// Retry is the delay between attempts to reopen a lost device
	Retry time.Duration
}

// DefaultConfig returns the settings used by the RP2040 test board
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
		Retry:       500 * time.Millisecond,
	}
}

// Opener opens the device named by a config
type Opener func(cfg *Config) (Port, error)

// Reconnector is a read-only Port that survives the device disappearing,
// as a USB CDC port does every time the light reboots. A failed read,
// EOF included, closes the port and reports a timeout (0, nil); the next
// read reopens it, retrying until the context is done.
type Reconnector struct {
	ctx    context.Context
	cfg    *Config
	open   Opener
	port   Port
	opened bool

	// Reconnects counts successful reopenings after a loss
	Reconnects int
	// OnConnect, when set, is called after every successful open
	OnConnect func(device string)
}

// NewReconnector creates a reconnecting port. Nothing is opened until the
// first Read.
func NewReconnector(ctx context.Context, cfg *Config, open Opener) *Reconnector {
	return &Reconnector{ctx: ctx, cfg: cfg, open: open}
}

func (r *Reconnector) Read(b []byte) (int, error) {
	if r.port == nil {
		if err := r.connect(); err != nil {
			return 0, err
		}
	}
	n, err := r.port.Read(b)
	if err != nil {
		r.port.Close()
		r.port = nil
		return n, nil
	}
	return n, err
}

func (r *Reconnector) connect() error {
	for {
		port, err := r.open(r.cfg)
		if err == nil {
			// Anything queued before we attached belongs to another session
			if err := port.Flush(); err != nil {
				port.Close()
			} else {
				r.port = port
				if r.opened {
					r.Reconnects++
				}
				r.opened = true
				if r.OnConnect != nil {
					r.OnConnect(r.cfg.Device)
				}
				return nil
			}
		}

		select {
		case <-r.ctx.Done():
			return r.ctx.Err()
		case <-time.After(r.cfg.Retry):
		}
	}
}

// Write is not supported; the telemetry link is one way
func (r *Reconnector) Write(b []byte) (int, error) {
	return 0, io.ErrClosedPipe
}

// Flush drops unread input on the current port, if any
func (r *Reconnector) Flush() error {
	if r.port == nil {
		return nil
	}
	return r.port.Flush()
}

// Close closes the current port, if any
func (r *Reconnector) Close() error {
	if r.port == nil {
		return nil
	}
	err := r.port.Close()
	r.port = nil
	return err
}
