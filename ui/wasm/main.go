//go:build js && wasm
// +build js,wasm

package main

import (
	"context"
	"encoding/hex"
	"syscall/js"

	"glimmer/config"
	"glimmer/host/monitor"
	"glimmer/host/sim"
	"glimmer/protocol"
)

// Telemetry monitor fed by the page's Web Serial reader
var mon *monitor.Monitor

func main() {
	mon = monitor.New(nil)

	presets := make([]interface{}, 0)
	for _, name := range config.PresetNames() {
		presets = append(presets, name)
	}

	// Export functions to JavaScript
	js.Global().Set("glimmerWasm", js.ValueOf(map[string]interface{}{
		"crc16":        js.FuncOf(crc16Wrapper),
		"feed":         js.FuncOf(feedWrapper),
		"resetMonitor": js.FuncOf(resetMonitorWrapper),
		"simulate":     js.FuncOf(simulateWrapper),
		"presets":      presets,
		"version":      protocol.Version,
	}))

	// Keep the program running
	select {}
}

// crc16Wrapper calculates CRC16 of hex data
// Args: hexString (string)
// Returns: number (or -1 on error)
func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(-1)
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return js.ValueOf(-1)
	}
	return js.ValueOf(int(protocol.CRC16(data)))
}

// feedWrapper decodes serial bytes received by the page
// Args: hexString (string)
// Returns: {lines: string[], dropped: number, connected: bool, error: string}
func feedWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeFeedResult(nil, "missing hex string argument")
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return makeFeedResult(nil, "invalid hex string: "+err.Error())
	}
	lines := make([]interface{}, 0)
	mon.Feed(data, func(f protocol.Frame) {
		lines = append(lines, monitor.Format(f))
	})
	return makeFeedResult(lines, "")
}

// resetMonitorWrapper discards partial frames, e.g. after a reconnect
func resetMonitorWrapper(this js.Value, args []js.Value) interface{} {
	mon = monitor.New(nil)
	return js.Null()
}

// simulateWrapper runs a gesture script on a simulated light
// Args: preset or YAML config (string), script (string)
// Returns: {lines: string[], boots: number, error: string}
func simulateWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeSimResult(nil, 0, "usage: simulate(presetOrYAML, script)")
	}
	cfg, ok := config.Preset(args[0].String())
	if !ok {
		var err error
		cfg, err = config.Parse([]byte(args[0].String()))
		if err != nil {
			return makeSimResult(nil, 0, err.Error())
		}
	}

	script, err := sim.ParseScript(cfg, args[1].String())
	if err != nil {
		return makeSimResult(nil, 0, err.Error())
	}
	light, err := sim.New(cfg)
	if err != nil {
		return makeSimResult(nil, 0, err.Error())
	}
	if err := light.Run(context.Background(), script); err != nil {
		return makeSimResult(nil, light.Boots, err.Error())
	}

	lines := make([]interface{}, 0, len(light.Records))
	for _, r := range light.Records {
		lines = append(lines, r.String())
	}
	return makeSimResult(lines, light.Boots, "")
}

func makeFeedResult(lines []interface{}, errMsg string) js.Value {
	if lines == nil {
		lines = make([]interface{}, 0)
	}
	return js.ValueOf(map[string]interface{}{
		"lines":     lines,
		"dropped":   mon.Dropped(),
		"connected": mon.Connected(),
		"error":     errMsg,
	})
}

func makeSimResult(lines []interface{}, boots int, errMsg string) js.Value {
	if lines == nil {
		lines = make([]interface{}, 0)
	}
	return js.ValueOf(map[string]interface{}{
		"lines": lines,
		"boots": boots,
		"error": errMsg,
	})
}
