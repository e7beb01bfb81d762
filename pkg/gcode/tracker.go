package gcode

// InchScale is applied to axis values while the tracker is in inch mode.
//
// TODO: 2.54 is centimetres per inch, not millimetres (25.4). Confirm against
// a real G20 print before changing it, existing translations depend on it.
const InchScale = 2.54

// State is the position and modes accumulated from motion commands.
type State struct {
	X, Y, Z, E, F float64
	Absolute      bool
	Metric        bool
}

// Tracker follows absolute/relative and unit mode and the X/Y/Z/E/F values
// of G1 moves. It knows nothing else about G-code.
type Tracker struct {
	State
}

func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

// Reset returns to absolute millimetre mode with every axis at zero.
func (t *Tracker) Reset() {
	t.State = State{Absolute: true, Metric: true}
}

func (t *Tracker) Act(l *Line) error {
	g, ok := l.Value('G')
	if !ok {
		return nil
	}
	switch g {
	case 90:
		t.Absolute = true
	case 91:
		t.Absolute = false
	case 20:
		t.Metric = false
	case 21:
		t.Metric = true
	case 1:
		t.X = t.update(l, 'X', t.X)
		t.Y = t.update(l, 'Y', t.Y)
		t.Z = t.update(l, 'Z', t.Z)
		t.E = t.update(l, 'E', t.E)
		t.F = t.update(l, 'F', t.F)
	}
	return nil
}

func (t *Tracker) update(l *Line, key byte, old float64) float64 {
	f, ok := l.Get(key)
	if !ok {
		return old
	}
	v := f.Value
	if !t.Metric {
		v *= InchScale
	}
	if !t.Absolute {
		v += old
	}
	return v
}
