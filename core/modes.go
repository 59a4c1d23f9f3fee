package core

// ModeKind distinguishes steady output from the hidden blinky modes
type ModeKind uint8

const (
	KindSolid ModeKind = iota
	KindStrobe
	KindBeacon
	KindSOS
	KindBattCheck
)

func (k ModeKind) String() string {
	switch k {
	case KindSolid:
		return "solid"
	case KindStrobe:
		return "strobe"
	case KindBeacon:
		return "beacon"
	case KindSOS:
		return "sos"
	case KindBattCheck:
		return "battcheck"
	default:
		return "unknown"
	}
}

// ParseModeKind maps a config name to a hidden mode kind.
func ParseModeKind(name string) (ModeKind, bool) {
	switch name {
	case "strobe":
		return KindStrobe, true
	case "beacon":
		return KindBeacon, true
	case "sos":
		return KindSOS, true
	case "battcheck":
		return KindBattCheck, true
	}
	return KindSolid, false
}

// Mode is one entry of the working mode table
type Mode struct {
	Kind  ModeKind
	Level uint8
}

// MaxModes is the size of the working table, off entry and hidden modes included.
const MaxModes = 16

// ModeTable is the working array assembled at boot. Index 0 is off,
// 1..Solid are solid modes, Solid+1..Count-1 are hidden modes.
type ModeTable struct {
	modes [MaxModes]Mode
	count uint8
	solid uint8
}

// BuildModeTable assembles a table from a group's levels, read up to the
// first zero sentinel. Reverse swaps the solid range only; hidden modes are
// appended in their configured order when enabled.
func BuildModeTable(levels []uint8, hidden []ModeKind, reverse, hiddenEnabled bool) ModeTable {
	var t ModeTable
	t.modes[0] = Mode{Kind: KindSolid, Level: 0}
	t.count = 1

	for _, lvl := range levels {
		if lvl == 0 || t.count >= MaxModes {
			break
		}
		t.modes[t.count] = Mode{Kind: KindSolid, Level: lvl}
		t.count++
	}
	t.solid = t.count - 1

	if reverse {
		for i, j := uint8(1), t.solid; i < j; i, j = i+1, j-1 {
			t.modes[i], t.modes[j] = t.modes[j], t.modes[i]
		}
	}

	if hiddenEnabled {
		for _, k := range hidden {
			if t.count >= MaxModes {
				break
			}
			t.modes[t.count] = Mode{Kind: k}
			t.count++
		}
	}
	return t
}

// Count returns the number of entries including off and hidden modes
func (t *ModeTable) Count() uint8 {
	return t.count
}

// Solid returns the number of solid (lit, non-hidden) modes
func (t *ModeTable) Solid() uint8 {
	return t.solid
}

// Hidden returns the number of hidden modes
func (t *ModeTable) Hidden() uint8 {
	return t.count - 1 - t.solid
}

// Valid reports whether idx addresses an entry
func (t *ModeTable) Valid(idx uint8) bool {
	return idx < t.count
}

// IsHidden reports whether idx is in the hidden region
func (t *ModeTable) IsHidden(idx uint8) bool {
	return idx > t.solid && idx < t.count
}

// At returns entry idx, or the off entry when idx is out of range.
func (t *ModeTable) At(idx uint8) Mode {
	if idx >= t.count {
		return t.modes[0]
	}
	return t.modes[idx]
}

// Transition names a change the state machine can apply
type Transition uint8

const (
	TransitionNone Transition = iota
	Advance
	Retreat
	ResetToFirst
	RestoreMemory
	EnterConfigMenu
)

func (tr Transition) String() string {
	switch tr {
	case TransitionNone:
		return "none"
	case Advance:
		return "advance"
	case Retreat:
		return "retreat"
	case ResetToFirst:
		return "reset"
	case RestoreMemory:
		return "restore"
	case EnterConfigMenu:
		return "menu"
	default:
		return "invalid"
	}
}

// TransitionFor maps a classified press to a transition.
func TransitionFor(class PressClass, opts Options) Transition {
	switch class {
	case PressShort:
		return Advance
	case PressMedium:
		return Retreat
	default:
		if opts.Has(OptMemory) {
			return RestoreMemory
		}
		return ResetToFirst
	}
}

// ModeMachine owns the active mode index.
type ModeMachine struct {
	table  ModeTable
	index  uint8
	memory uint8
}

// NewModeMachine returns a machine at the off entry of table
func NewModeMachine(table ModeTable) *ModeMachine {
	return &ModeMachine{table: table}
}

// Table returns the active table
func (m *ModeMachine) Table() *ModeTable {
	return &m.table
}

// SetTable swaps in a rebuilt table (group or reverse changed) and clamps
// the indices that no longer fit.
func (m *ModeMachine) SetTable(table ModeTable) {
	m.table = table
	if !m.table.Valid(m.index) {
		m.index = 0
	}
	if !m.table.Valid(m.memory) {
		m.memory = 0
	}
}

// Index returns the active mode index
func (m *ModeMachine) Index() uint8 {
	return m.index
}

// Current returns the active mode entry
func (m *ModeMachine) Current() Mode {
	return m.table.At(m.index)
}

// SetIndex jumps to idx; out-of-range values land on off.
func (m *ModeMachine) SetIndex(idx uint8) {
	if !m.table.Valid(idx) {
		idx = 0
	}
	m.index = idx
}

// SetMemory loads the persisted index used by RestoreMemory
func (m *ModeMachine) SetMemory(idx uint8) {
	if !m.table.Valid(idx) {
		idx = 0
	}
	m.memory = idx
}

// Memory returns the index RestoreMemory would load
func (m *ModeMachine) Memory() uint8 {
	return m.memory
}

// Apply performs a transition and reports whether the index changed.
// EnterConfigMenu does not move the index; the caller runs the menu.
func (m *ModeMachine) Apply(tr Transition) bool {
	prev := m.index
	switch tr {
	case Advance:
		m.advance()
	case Retreat:
		m.retreat()
	case ResetToFirst:
		m.index = 0
	case RestoreMemory:
		m.SetIndex(m.memory)
	}
	return m.index != prev
}

func (m *ModeMachine) advance() {
	if !m.table.Valid(m.index) || m.index >= m.table.solid {
		// Past the last solid mode, or anywhere in the hidden region
		m.index = 0
		return
	}
	m.index++
}

func (m *ModeMachine) retreat() {
	switch {
	case !m.table.Valid(m.index):
		m.index = 0
	case m.table.Hidden() > 0 && m.index == m.table.solid+1:
		// First hidden mode goes back to moon, not further into solids
		m.index = m.table.Dimmest()
	case m.index > 0:
		m.index--
	default:
		m.index = m.table.count - 1
	}
}

// Dimmest returns the index of the lowest solid level (moon), or 0 when
// the table has no solid modes.
func (t *ModeTable) Dimmest() uint8 {
	var best uint8
	for i := uint8(1); i <= t.solid; i++ {
		if best == 0 || t.modes[i].Level < t.modes[best].Level {
			best = i
		}
	}
	return best
}

// nextLevel returns the solid index whose level is the closest one below
// (down) or above (up) level, or 0 when there is none.
func (t *ModeTable) nextLevel(level uint8, up bool) uint8 {
	var best uint8
	for i := uint8(1); i <= t.solid; i++ {
		l := t.modes[i].Level
		if up {
			if l > level && (best == 0 || l < t.modes[best].Level) {
				best = i
			}
		} else if l < level && (best == 0 || l > t.modes[best].Level) {
			best = i
		}
	}
	return best
}

// StepDown moves to the next dimmer solid mode for protection, which with
// reversed tables is not index-1. Hidden modes drop to moon. Returns false
// when already at moon (or off): the only further step is off.
func (m *ModeMachine) StepDown() bool {
	if m.table.IsHidden(m.index) {
		moon := m.table.Dimmest()
		if moon == 0 {
			return false
		}
		m.index = moon
		return true
	}
	if m.index == 0 || !m.table.Valid(m.index) {
		return false
	}
	next := m.table.nextLevel(m.table.modes[m.index].Level, false)
	if next == 0 {
		return false
	}
	m.index = next
	return true
}

// StepUp moves to the next brighter solid mode, never above the level of
// entry limit. Used to undo thermal step-downs.
func (m *ModeMachine) StepUp(limit uint8) bool {
	if m.index == 0 || m.table.IsHidden(m.index) || !m.table.Valid(m.index) {
		return false
	}
	ceiling := m.table.At(limit).Level
	next := m.table.nextLevel(m.table.modes[m.index].Level, true)
	if next == 0 || m.table.modes[next].Level > ceiling {
		return false
	}
	m.index = next
	return true
}
