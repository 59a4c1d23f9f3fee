//go:build rp2040

package main

// PIO Strobe Rate Test - Cycles through strobe rates and train lengths
// Watch the LED (or a scope on GP16) to check flash rate and count

import (
	"glimmer/targets/pio"
	"machine"
	"time"
)

const strobePin = machine.GP16

// Rate test configurations: flashes per second and train length (0 = endless).
// Below ~10Hz the divider saturates at 125MHz.
var rateTests = []struct {
	hz    uint32
	count uint32
	name  string
}{
	{12, 4, "Slow (4 flashes @ 12Hz)"},
	{10, 0, "Strobe (10Hz, endless)"},
	{20, 20, "Fast (20 flashes @ 20Hz)"},
	{50, 0, "Party (50Hz, endless)"},
}

func main() {
	time.Sleep(3 * time.Second)

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// Flash LED to indicate start
	for i := 0; i < 3; i++ {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}

	println("=== PIO Strobe Rate Test ===")
	println("Strobe: GP16")

	strobe, err := pio.NewStrobe(0, 0, strobePin)
	if err != nil {
		println("Init error:", err.Error())
		for {
			led.High()
			time.Sleep(100 * time.Millisecond)
			led.Low()
			time.Sleep(100 * time.Millisecond)
		}
	}
	println("Init OK!")

	cycle := 0
	for {
		cycle++
		println("\n=== Cycle", cycle, "===")

		for _, test := range rateTests {
			whole, frac := pio.ClockDivider(machine.CPUFrequency(), test.hz)
			println("Rate:", test.name, "- Divider:", whole, frac)

			led.High()
			if err := strobe.Start(test.count, test.hz); err != nil {
				println("  start error:", err.Error())
			}
			time.Sleep(3 * time.Second)
			strobe.Stop()
			led.Low()

			println("  (changing rate...)")
			time.Sleep(500 * time.Millisecond)
		}
	}
}
