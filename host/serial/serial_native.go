//go:build !wasm

package serial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// NativePort wraps the tarm/serial implementation
type NativePort struct {
	port *serial.Port
}

// Open opens a native serial port
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return &NativePort{port: port}, nil
}

// OpenReconnecting returns a port that reopens cfg.Device whenever the
// light reboots, until ctx is done.
func OpenReconnecting(ctx context.Context, cfg *Config) *Reconnector {
	return NewReconnector(ctx, cfg, Open)
}

func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *NativePort) Close() error {
	return p.port.Close()
}

// Flush drops whatever the light sent before we attached
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
