package core

import (
	"testing"
)

func TestStoreFirstBoot(t *testing.T) {
	mem := newMemStore(64)
	store, err := NewStore(mem)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.RingSize() != 8 {
		t.Errorf("Expected ring size 8 for 64 bytes, got %d", store.RingSize())
	}

	defaults := PersistedState{ModeGroup: 1, Options: OptHidden, ThermalCeiling: 190}
	st, first := store.Load(defaults)
	if !first {
		t.Fatal("blank storage must be first boot")
	}
	if st != defaults {
		t.Errorf("Expected defaults %+v, got %+v", defaults, st)
	}

	if err := store.Format(defaults); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if mem.cells[0] != FirstBootMagic {
		t.Errorf("sentinel not written: 0x%02x", mem.cells[0])
	}

	reopened, _ := NewStore(mem)
	st, first = reopened.Load(PersistedState{})
	if first {
		t.Fatal("formatted storage reported first boot")
	}
	if st != defaults {
		t.Errorf("Expected %+v after format, got %+v", defaults, st)
	}
}

func TestStoreSaveOnlyChanged(t *testing.T) {
	mem := newMemStore(64)
	store, _ := NewStore(mem)
	st := PersistedState{ModeIndex: 1, Options: OptMemory, ThermalCeiling: 180}
	if err := store.Format(st); err != nil {
		t.Fatalf("Format: %v", err)
	}

	before := append([]int(nil), mem.writes...)
	st.ModeIndex = 2
	if err := store.Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	size := store.RingSize()
	changed := 0
	for i := range mem.writes {
		if mem.writes[i] != before[i] {
			changed++
			if uint16(i) < 1 || uint16(i) >= 1+size {
				t.Errorf("Save touched address %d outside the mode index ring", i)
			}
		}
	}
	if changed != 2 {
		t.Errorf("Expected one write and one erase, got %d changed cells", changed)
	}

	reopened, _ := NewStore(mem)
	got, _ := reopened.Load(PersistedState{})
	if got != st {
		t.Errorf("Expected %+v, got %+v", st, got)
	}
}

func TestStoreCorruption(t *testing.T) {
	mem := newMemStore(64)
	store, _ := NewStore(mem)
	store.Format(PersistedState{ModeIndex: 3})

	// Wipe the options ring: treated as first boot
	for i := uint16(0); i < store.RingSize(); i++ {
		mem.cells[1+2*store.RingSize()+i] = Erased
	}
	reopened, _ := NewStore(mem)
	if _, first := reopened.Load(PersistedState{}); !first {
		t.Error("empty ring must be treated as first boot")
	}

	// Wrong sentinel
	store.Format(PersistedState{ModeIndex: 3})
	mem.cells[0] = 0x12
	if _, first := reopened.Load(PersistedState{}); !first {
		t.Error("bad sentinel must be treated as first boot")
	}

	// Bit 7 of options is masked off
	store.Format(PersistedState{})
	reopened, _ = NewStore(mem)
	ring := reopened.Ring(fieldOptions)
	ring.Load()
	ring.Save(0xC1)
	st, _ := reopened.Load(PersistedState{})
	if st.Options != OptMemory {
		t.Errorf("Expected masked options, got 0x%02x", uint8(st.Options))
	}
}

func TestStoreThermalCeilingClamp(t *testing.T) {
	mem := newMemStore(32)
	store, _ := NewStore(mem)
	if err := store.Format(PersistedState{ThermalCeiling: 0xFF}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	st, first := store.Load(PersistedState{})
	if first || st.ThermalCeiling != 0xFE {
		t.Errorf("Expected clamped ceiling 0xFE, got 0x%02x (first=%v)", st.ThermalCeiling, first)
	}
}

func TestStoreTooSmall(t *testing.T) {
	if _, err := NewStore(newMemStore(4)); err == nil {
		t.Error("Expected error for 4-byte storage")
	}
	if _, err := NewStore(nil); err == nil {
		t.Error("Expected error for nil storage")
	}
}

func TestOptionNames(t *testing.T) {
	for o := OptMemory; o <= OptThreeWay; o <<= 1 {
		parsed, ok := ParseOption(OptionName(o))
		if !ok || parsed != o {
			t.Errorf("option %d did not round-trip through %q", o, OptionName(o))
		}
	}
	if _, ok := ParseOption("turbo"); ok {
		t.Error("unknown option parsed")
	}
	if OptMemory.Toggle(OptMemory) != 0 {
		t.Error("Toggle did not clear the bit")
	}
}
