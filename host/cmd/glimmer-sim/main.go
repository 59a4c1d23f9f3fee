package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"glimmer/config"
	"glimmer/core"
	"glimmer/host/sim"
)

var (
	configPath  = flag.String("config", "", "YAML driver configuration")
	preset      = flag.String("preset", "otc", "Built-in configuration ("+strings.Join(config.PresetNames(), ", ")+")")
	script      = flag.String("script", "wait:100ms short short", "Click script to play")
	telemetry   = flag.String("telemetry", "", "Write the event stream as telemetry frames to this file")
	showLevels  = flag.Bool("levels", false, "Print every PWM change")
	printConfig = flag.Bool("print-config", false, "Print the resolved configuration as YAML and exit")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *printConfig {
		out, err := config.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	steps, err := sim.ParseScript(cfg, *script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: bad script: %v\n", err)
		os.Exit(1)
	}

	light, err := sim.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *telemetry != "" {
		f, err := os.Create(*telemetry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		light.Telemetry = f
	}

	fmt.Printf("glimmer simulator: %s input, %d steps, %v\n", cfg.Input, len(steps), steps.Duration())
	if err := light.Run(context.Background(), steps); err != nil {
		fmt.Fprintf(os.Stderr, "Error: simulation failed: %v\n", err)
		os.Exit(1)
	}

	for _, r := range light.Records {
		fmt.Println(r)
	}
	if *showLevels {
		fmt.Println("\nPWM:")
		for _, l := range light.Board().Output.Changes {
			fmt.Printf("%9s level=%d\n", l.At, l.Value)
		}
	}
	printSummary(light)
}

func loadConfig() (core.Config, error) {
	if *configPath != "" {
		return config.Load(*configPath)
	}
	cfg, ok := config.Preset(*preset)
	if !ok {
		return core.Config{}, fmt.Errorf("unknown preset %q", *preset)
	}
	return cfg, nil
}

func printSummary(light *sim.Light) {
	d := light.Driver()
	st := d.Persisted()
	fmt.Println("\n=== Summary ===")
	fmt.Printf("Boots:       %d\n", light.Boots)
	fmt.Printf("Mode:        %d (%s, level %d)\n", d.Index(), d.Mode().Kind, d.Mode().Level)
	fmt.Printf("Persisted:   index=%d group=%d options=%#02x\n", st.ModeIndex, st.ModeGroup, uint8(st.Options))
	fmt.Printf("EEPROM:      ring=%d hottest cell=%d writes\n", d.Store().RingSize(), light.Board().EEPROM.MaxWrites())
	if d.ShutDown() {
		fmt.Println("Light was shut down by a protection")
	}
}
