package core

// PressClass is the classified length of a user action
type PressClass uint8

const (
	PressShort PressClass = iota
	PressMedium
	PressLong
)

func (p PressClass) String() string {
	switch p {
	case PressShort:
		return "short"
	case PressMedium:
		return "medium"
	case PressLong:
		return "long"
	default:
		return "invalid"
	}
}

// Classifier partitions a raw off-time signal into press classes.
// Short and Medium are the band boundaries; their meaning depends on the
// signal model of the method called.
type Classifier struct {
	Short    uint16
	Medium   uint16
	ThreeWay bool
}

// ClassifyCharge classifies a residual capacitor reading. The capacitor
// decays while off, so a higher reading means a shorter off-time.
func (c Classifier) ClassifyCharge(reading uint8) PressClass {
	r := uint16(reading)
	if r > c.Short {
		return PressShort
	}
	if c.ThreeWay && r > c.Medium {
		return PressMedium
	}
	return PressLong
}

// ClassifyTicks classifies a count of wake ticks spent asleep with the
// switch open. More ticks means a longer off-time.
func (c Classifier) ClassifyTicks(ticks uint16) PressClass {
	if ticks < c.Short {
		return PressShort
	}
	if c.ThreeWay && ticks < c.Medium {
		return PressMedium
	}
	return PressLong
}
