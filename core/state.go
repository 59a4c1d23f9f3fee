package core

import "errors"

// FirstBootMagic marks storage that has been formatted by this firmware
const FirstBootMagic = 0x55

// Options is the packed set of user feature toggles. Bit 7 stays clear so
// the byte can never collide with an erased cell.
type Options uint8

const (
	OptMemory   Options = 1 << 0
	OptReverse  Options = 1 << 1
	OptHidden   Options = 1 << 2
	OptLockout  Options = 1 << 3
	OptThermal  Options = 1 << 4
	OptThreeWay Options = 1 << 5

	optionsMask Options = 0x3F
)

// Has reports whether every bit of o is set
func (opts Options) Has(o Options) bool {
	return opts&o == o
}

// Toggle flips o
func (opts Options) Toggle(o Options) Options {
	return (opts ^ o) & optionsMask
}

// OptionName returns the config name of a single option bit
func OptionName(o Options) string {
	switch o {
	case OptMemory:
		return "memory"
	case OptReverse:
		return "reverse"
	case OptHidden:
		return "hidden"
	case OptLockout:
		return "lockout"
	case OptThermal:
		return "thermal"
	case OptThreeWay:
		return "three_way"
	default:
		return "unknown"
	}
}

// ParseOption maps a config name to an option bit
func ParseOption(name string) (Options, bool) {
	for o := OptMemory; o <= OptThreeWay; o <<= 1 {
		if OptionName(o) == name {
			return o, true
		}
	}
	return 0, false
}

// PersistedState is everything that survives a cold boot
type PersistedState struct {
	ModeIndex      uint8
	ModeGroup      uint8
	Options        Options
	ThermalCeiling uint8
}

// Field order of the wear rings following the sentinel byte
const (
	fieldModeIndex = iota
	fieldModeGroup
	fieldOptions
	fieldThermal
	fieldCount
)

// Store maps PersistedState onto a ByteStore: the sentinel at address 0,
// then one wear ring per field.
type Store struct {
	dev   ByteStore
	rings [fieldCount]*WearRing
	saved [fieldCount]uint8
	valid bool
}

// NewStore lays out rings over dev. Each ring gets the largest power of two
// that fits in (size-1)/fields.
func NewStore(dev ByteStore) (*Store, error) {
	if dev == nil {
		return nil, errors.New("store: no storage device")
	}
	per := (dev.Size() - 1) / fieldCount
	if dev.Size() < 1+fieldCount || per == 0 {
		return nil, errors.New("store: storage too small")
	}
	ringSize := uint16(1)
	for ringSize*2 <= per {
		ringSize *= 2
	}

	s := &Store{dev: dev}
	for i := range s.rings {
		r, err := NewWearRing(dev, 1+uint16(i)*ringSize, ringSize)
		if err != nil {
			return nil, err
		}
		s.rings[i] = r
	}
	return s, nil
}

// RingSize returns the number of cells per field
func (s *Store) RingSize() uint16 {
	return s.rings[0].Size()
}

// Ring exposes the ring of a field for inspection (tests, diagnostics)
func (s *Store) Ring(field int) *WearRing {
	if field < 0 || field >= fieldCount {
		return nil
	}
	return s.rings[field]
}

// Load reads the persisted state. firstBoot is true when the sentinel is
// wrong or any ring is empty; the returned state is then defaults and the
// caller is expected to Format.
func (s *Store) Load(defaults PersistedState) (st PersistedState, firstBoot bool) {
	magic, err := s.dev.LoadByte(0)
	if err != nil || magic != FirstBootMagic {
		return defaults, true
	}

	var vals [fieldCount]uint8
	for i, r := range s.rings {
		v, ok := r.Load()
		if !ok {
			return defaults, true
		}
		vals[i] = v
	}
	s.saved = vals
	s.valid = true

	return PersistedState{
		ModeIndex:      vals[fieldModeIndex],
		ModeGroup:      vals[fieldModeGroup],
		Options:        Options(vals[fieldOptions]) & optionsMask,
		ThermalCeiling: vals[fieldThermal],
	}, false
}

// Format erases every ring, writes st and then the sentinel.
func (s *Store) Format(st PersistedState) error {
	for _, r := range s.rings {
		if err := r.Erase(); err != nil {
			return err
		}
	}
	s.valid = false
	if err := s.Save(st); err != nil {
		return err
	}
	return s.dev.StoreByte(0, FirstBootMagic)
}

// Save writes the fields that differ from the last saved values.
func (s *Store) Save(st PersistedState) error {
	ceiling := st.ThermalCeiling
	if ceiling == Erased {
		ceiling = Erased - 1
	}
	vals := [fieldCount]uint8{
		fieldModeIndex: st.ModeIndex,
		fieldModeGroup: st.ModeGroup,
		fieldOptions:   uint8(st.Options & optionsMask),
		fieldThermal:   ceiling,
	}
	for i, r := range s.rings {
		if s.valid && s.saved[i] == vals[i] {
			continue
		}
		if err := r.Save(vals[i]); err != nil {
			return err
		}
		s.saved[i] = vals[i]
	}
	s.valid = true
	return nil
}
