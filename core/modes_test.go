package core

import (
	"testing"
)

var testHidden = []ModeKind{KindStrobe, KindBeacon, KindBattCheck}

func TestBuildModeTable(t *testing.T) {
	table := BuildModeTable([]uint8{1, 14, 39, 255, 0, 77}, testHidden, false, true)

	if table.Count() != 8 {
		t.Errorf("Expected 8 entries, got %d", table.Count())
	}
	if table.Solid() != 4 {
		t.Errorf("Expected 4 solid modes, got %d", table.Solid())
	}
	if table.Hidden() != 3 {
		t.Errorf("Expected 3 hidden modes, got %d", table.Hidden())
	}
	if m := table.At(0); m.Kind != KindSolid || m.Level != 0 {
		t.Errorf("Index 0 must be off, got %+v", m)
	}
	if m := table.At(4); m.Level != 255 {
		t.Errorf("Expected turbo at 4, got %+v", m)
	}
	if m := table.At(5); m.Kind != KindStrobe {
		t.Errorf("Expected strobe at 5, got %v", m.Kind)
	}
	if m := table.At(200); m.Level != 0 || m.Kind != KindSolid {
		t.Errorf("Out-of-range At must return off, got %+v", m)
	}

	noHidden := BuildModeTable([]uint8{1, 14, 39, 255, 0}, testHidden, false, false)
	if noHidden.Count() != 5 || noHidden.Hidden() != 0 {
		t.Errorf("hidden disabled: count=%d hidden=%d", noHidden.Count(), noHidden.Hidden())
	}
}

func TestBuildModeTableReverse(t *testing.T) {
	table := BuildModeTable([]uint8{1, 14, 39, 255, 0}, testHidden, true, true)

	expected := []uint8{0, 255, 39, 14, 1}
	for i, lvl := range expected {
		if got := table.At(uint8(i)).Level; got != lvl {
			t.Errorf("reversed[%d] = %d, expected %d", i, got, lvl)
		}
	}
	if table.At(5).Kind != KindStrobe {
		t.Error("reverse must not reorder hidden modes")
	}
	if table.Dimmest() != 4 {
		t.Errorf("Expected moon at 4 in a reversed table, got %d", table.Dimmest())
	}
}

func TestAdvanceWraparound(t *testing.T) {
	groups := [][]uint8{
		{1, 14, 39, 255, 0},
		{1, 10, 50, 120, 255, 0},
		{255, 0},
	}
	for _, levels := range groups {
		for _, hidden := range []bool{false, true} {
			table := BuildModeTable(levels, testHidden, false, hidden)
			for start := uint8(1); start <= table.Solid(); start++ {
				m := NewModeMachine(table)
				m.SetIndex(start)

				steps := 0
				for m.Index() != 0 {
					m.Apply(Advance)
					steps++
					if table.IsHidden(m.Index()) {
						t.Fatalf("advance visited hidden index %d", m.Index())
					}
					if steps > MaxModes {
						t.Fatal("advance never wrapped")
					}
				}
				if want := int(table.Solid()-start) + 1; steps != want {
					t.Errorf("levels %v from %d: wrapped after %d advances, expected %d",
						levels, start, steps, want)
				}
			}

			// From index 1, exactly Solid advances return to 0
			m := NewModeMachine(table)
			m.SetIndex(1)
			for i := uint8(0); i < table.Solid(); i++ {
				m.Apply(Advance)
			}
			if m.Index() != 0 {
				t.Errorf("Expected 0 after %d advances, got %d", table.Solid(), m.Index())
			}
		}
	}
}

func TestRetreatAtBoundary(t *testing.T) {
	// With hidden modes: Retreat from off enters the hidden region at the end
	table := BuildModeTable([]uint8{1, 14, 39, 255, 0}, testHidden, false, true)
	m := NewModeMachine(table)

	m.SetIndex(4)
	m.Apply(Advance)
	if m.Index() != 0 {
		t.Fatalf("Expected wrap to 0, got %d", m.Index())
	}
	m.Apply(Retreat)
	if m.Index() != table.Count()-1 || !table.IsHidden(m.Index()) {
		t.Errorf("Expected last hidden index %d, got %d", table.Count()-1, m.Index())
	}

	// Walking backward through hidden modes, then back to moon
	m.Apply(Retreat)
	if m.Index() != 6 {
		t.Errorf("Expected 6, got %d", m.Index())
	}
	m.Apply(Retreat)
	if m.Index() != 5 {
		t.Errorf("Expected first hidden 5, got %d", m.Index())
	}
	m.Apply(Retreat)
	if m.Index() != 1 {
		t.Errorf("Retreat from first hidden must reach moon (1), got %d", m.Index())
	}

	// Without hidden modes: wrap to Count-1
	plain := BuildModeTable([]uint8{1, 14, 39, 255, 0}, nil, false, true)
	m = NewModeMachine(plain)
	m.Apply(Retreat)
	if m.Index() != plain.Count()-1 {
		t.Errorf("Expected %d, got %d", plain.Count()-1, m.Index())
	}

	// Advance from hidden returns to 0
	m = NewModeMachine(table)
	m.SetIndex(6)
	m.Apply(Advance)
	if m.Index() != 0 {
		t.Errorf("Advance from hidden must go to 0, got %d", m.Index())
	}
}

func TestTransitionFor(t *testing.T) {
	testCases := []struct {
		class    PressClass
		opts     Options
		expected Transition
	}{
		{PressShort, 0, Advance},
		{PressMedium, 0, Retreat},
		{PressLong, 0, ResetToFirst},
		{PressLong, OptMemory, RestoreMemory},
		{PressShort, OptMemory, Advance},
	}
	for _, tc := range testCases {
		if got := TransitionFor(tc.class, tc.opts); got != tc.expected {
			t.Errorf("TransitionFor(%v, %d) = %v, expected %v", tc.class, tc.opts, got, tc.expected)
		}
	}
}

func TestModeMachineClamp(t *testing.T) {
	table := BuildModeTable([]uint8{1, 14, 39, 255, 0}, nil, false, false)
	m := NewModeMachine(table)

	m.SetIndex(9)
	if m.Index() != 0 {
		t.Errorf("out-of-range SetIndex must clamp to 0, got %d", m.Index())
	}
	m.SetMemory(200)
	m.Apply(RestoreMemory)
	if m.Index() != 0 {
		t.Errorf("out-of-range memory must restore to 0, got %d", m.Index())
	}

	m.SetIndex(4)
	m.SetMemory(3)
	m.SetTable(BuildModeTable([]uint8{255, 0}, nil, false, false))
	if m.Index() != 0 || m.Memory() != 0 {
		t.Errorf("shrinking the table must clamp, got index=%d memory=%d", m.Index(), m.Memory())
	}

	m.SetTable(table)
	m.SetIndex(2)
	m.SetMemory(3)
	if m.Apply(RestoreMemory); m.Index() != 3 {
		t.Errorf("Expected memory 3, got %d", m.Index())
	}
	if m.Apply(ResetToFirst); m.Index() != 0 {
		t.Errorf("Expected 0 after reset, got %d", m.Index())
	}
}

func TestStepDownStepUp(t *testing.T) {
	table := BuildModeTable([]uint8{1, 14, 39, 255, 0}, testHidden, false, true)
	m := NewModeMachine(table)
	m.SetIndex(4)

	for _, want := range []uint8{3, 2, 1} {
		if !m.StepDown() || m.Index() != want {
			t.Fatalf("Expected step down to %d, got %d", want, m.Index())
		}
	}
	if m.StepDown() {
		t.Error("StepDown at moon must report false")
	}

	if !m.StepUp(3) || m.Index() != 2 {
		t.Errorf("Expected step up to 2, got %d", m.Index())
	}
	m.StepUp(3)
	if m.StepUp(3) {
		t.Error("StepUp must stop at the limit")
	}
	if m.Index() != 3 {
		t.Errorf("Expected 3, got %d", m.Index())
	}

	m.SetIndex(6)
	if !m.StepDown() || m.Index() != 1 {
		t.Errorf("hidden mode must step down to moon, got %d", m.Index())
	}

	reversed := NewModeMachine(BuildModeTable([]uint8{1, 14, 39, 255, 0}, nil, true, false))
	reversed.SetIndex(1) // turbo
	if !reversed.StepDown() || reversed.Index() != 2 {
		t.Errorf("reversed: expected step down to index 2 (39), got %d", reversed.Index())
	}
}
