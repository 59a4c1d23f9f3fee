package core

import "errors"

// Erased is the value of an unwritten or erased EEPROM cell
const Erased = 0xFF

var ErrErasedValue = errors.New("wear ring: 0xFF cannot be stored")

// WearRing spreads writes of one logical byte over Size cells. At most one
// cell holds a non-erased value; it is found by scanning from the base.
// Every write goes to the cell after the live one and then erases the old
// one, so each cell sees 1/Size of the traffic.
type WearRing struct {
	dev  ByteStore
	base uint16
	size uint16
	pos  uint16
	live bool
}

// NewWearRing covers cells [base, base+size). size must be a power of two.
func NewWearRing(dev ByteStore, base, size uint16) (*WearRing, error) {
	if size == 0 || size&(size-1) != 0 {
		return nil, errors.New("wear ring: size must be a power of two")
	}
	if uint32(base)+uint32(size) > uint32(dev.Size()) {
		return nil, errors.New("wear ring: exceeds storage size")
	}
	return &WearRing{dev: dev, base: base, size: size}, nil
}

// Size returns the number of cells in the ring
func (r *WearRing) Size() uint16 {
	return r.size
}

// Position returns the offset of the live cell within the ring
func (r *WearRing) Position() uint16 {
	return r.pos
}

// Load scans for the first non-erased cell. ok is false when the ring is
// empty, which callers treat as first boot.
func (r *WearRing) Load() (value uint8, ok bool) {
	r.live = false
	for i := uint16(0); i < r.size; i++ {
		v, err := r.dev.LoadByte(r.base + i)
		if err != nil {
			continue
		}
		if v != Erased {
			r.pos = i
			r.live = true
			return v, true
		}
	}
	return 0, false
}

// Save writes value to the next cell and erases the previous live cell.
func (r *WearRing) Save(value uint8) error {
	if value == Erased {
		return ErrErasedValue
	}
	next := (r.pos + 1) & (r.size - 1)
	if err := r.dev.StoreByte(r.base+next, value); err != nil {
		return err
	}
	prev, hadLive := r.pos, r.live
	r.pos = next
	r.live = true
	if hadLive && prev != next {
		return r.dev.StoreByte(r.base+prev, Erased)
	}
	return nil
}

// Erase clears every cell of the ring
func (r *WearRing) Erase() error {
	var firstErr error
	for i := uint16(0); i < r.size; i++ {
		if err := r.dev.StoreByte(r.base+i, Erased); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.pos = 0
	r.live = false
	return firstErr
}
