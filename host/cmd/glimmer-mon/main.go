package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"glimmer/host/monitor"
	"glimmer/host/serial"
	"glimmer/protocol"
)

var (
	device    = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud      = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	file      = flag.String("file", "", "Decode a recorded telemetry file instead of a serial port")
	verbose   = flag.Bool("verbose", false, "Print frame sequence numbers")
	reconnect = flag.Bool("reconnect", true, "Reopen the device when the light reboots")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	src, err := open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	m := monitor.New(src)
	err = m.Run(ctx, func(f protocol.Frame) {
		if *verbose {
			fmt.Printf("[%2d] ", f.Sequence)
		}
		fmt.Println(monitor.Format(f))
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m.Dropped() > 0 {
		fmt.Fprintf(os.Stderr, "%d frames dropped\n", m.Dropped())
	}
}

func open(ctx context.Context) (io.ReadCloser, error) {
	if *file != "" {
		return os.Open(*file)
	}

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	if *reconnect {
		r := serial.OpenReconnecting(ctx, cfg)
		r.OnConnect = func(device string) {
			fmt.Printf("Listening on %s...\n", device)
		}
		return r, nil
	}

	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush %s: %w", *device, err)
	}
	fmt.Printf("Listening on %s...\n", *device)
	return port, nil
}
