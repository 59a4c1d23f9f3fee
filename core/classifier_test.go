package core

import (
	"testing"
	"time"
)

func TestClassifyCharge(t *testing.T) {
	c := Classifier{Short: 190, Medium: 90, ThreeWay: true}

	testCases := []struct {
		reading  uint8
		expected PressClass
	}{
		{255, PressShort},
		{191, PressShort},
		{190, PressMedium},
		{91, PressMedium},
		{90, PressLong},
		{0, PressLong},
	}

	for _, tc := range testCases {
		if got := c.ClassifyCharge(tc.reading); got != tc.expected {
			t.Errorf("ClassifyCharge(%d) = %v, expected %v", tc.reading, got, tc.expected)
		}
	}

	c.ThreeWay = false
	if got := c.ClassifyCharge(150); got != PressLong {
		t.Errorf("two-way ClassifyCharge(150) = %v, expected long", got)
	}
}

func TestClassifyTicks(t *testing.T) {
	c := Classifier{Short: 8, Medium: 32, ThreeWay: true}

	testCases := []struct {
		ticks    uint16
		expected PressClass
	}{
		{0, PressShort},
		{7, PressShort},
		{8, PressMedium},
		{31, PressMedium},
		{32, PressLong},
		{0xFFFF, PressLong},
	}

	for _, tc := range testCases {
		if got := c.ClassifyTicks(tc.ticks); got != tc.expected {
			t.Errorf("ClassifyTicks(%d) = %v, expected %v", tc.ticks, got, tc.expected)
		}
	}

	c.ThreeWay = false
	if got := c.ClassifyTicks(10); got != PressLong {
		t.Errorf("two-way ClassifyTicks(10) = %v, expected long", got)
	}
}

func TestClickHistoryCount(t *testing.T) {
	var h ClickHistory

	for i := 0; i < 3; i++ {
		if h.Count(PressShort, 3) {
			t.Fatalf("press %d entered the menu early", i+1)
		}
	}
	if h.FastPresses != 3 {
		t.Errorf("Expected 3 fast presses, got %d", h.FastPresses)
	}
	if !h.Count(PressShort, 3) {
		t.Error("Expected the 4th short press to exceed the threshold")
	}
	if h.FastPresses != 0 {
		t.Errorf("Counter not cleared after entering the menu: %d", h.FastPresses)
	}

	h.Count(PressShort, 3)
	h.Count(PressMedium, 3)
	if h.FastPresses != 0 {
		t.Errorf("A medium press must end the gesture, counter is %d", h.FastPresses)
	}

	for i := 0; i < 20; i++ {
		if h.Count(PressShort, 0) {
			t.Fatal("threshold 0 must never enter the menu")
		}
	}
}

func TestClickHistoryPowerCycle(t *testing.T) {
	var h ClickHistory
	if h.Warm() {
		t.Fatal("zero history must be cold")
	}
	if h.PowerCycle(0, testRetention) {
		t.Error("an unarmed history must not survive a power cycle")
	}

	h.Arm()
	h.FastPresses = 5
	if !h.PowerCycle(testRetention/2, testRetention) {
		t.Error("history should survive a short cut")
	}
	if h.FastPresses != 5 {
		t.Errorf("FastPresses changed across a short cut: %d", h.FastPresses)
	}

	if h.PowerCycle(testRetention*2, testRetention) {
		t.Error("history should not survive a long cut")
	}
	if h.FastPresses != 0 || h.Warm() {
		t.Error("history not reset after a long cut")
	}
}

const testRetention = 500 * time.Millisecond
