package ticker

// Gate models the XTAL/active gate here: two one-shot helper
// timers computed from a role event's anchor point.
//
//   - Active deasserts a "radio is busy" flag once no event is in flight.
//   - XTAL turns the high-frequency clock on shortly before the event, and
//     decides whether to leave it on (Retain) by inspecting the gap to the
//     next scheduled event.
//
// ReducedPrepare is the high bit of ticks_xtal_to_start repurposed as a
// "reduced prepare window" marker; PreemptCalc below
// implements the last-moment check on whether that reduced window still
// fits.
type Gate struct {
	XtalUs       Unit
	ActiveUs     Unit
	RetainGapUs  Unit // if the next event starts within this gap, leave XTAL on
}

// NewGate returns a Gate with the source's defaults: 1.5ms XTAL settle time,
// 500us active-line hold, and a 1.2ms retain threshold (if the next event
// is closer than that it isn't worth stopping the crystal).
func NewGate() Gate {
	return Gate{XtalUs: 1500, ActiveUs: 500, RetainGapUs: 1200}
}

// Retain reports whether the XTAL should stay on given the gap in
// microseconds until the next scheduled ticker entry.
func (g Gate) Retain(gapToNextUs Unit) bool {
	return gapToNextUs <= g.RetainGapUs
}

const reducedPrepareBit = Unit(1) << 31

// XtalToStart packs a prepare-window duration with the high-bit "reduced
// prepare" marker described here.
func XtalToStart(us Unit, reduced bool) Unit {
	if reduced {
		return us | reducedPrepareBit
	}
	return us &^ reducedPrepareBit
}

// SplitXtalToStart unpacks the value written by XtalToStart.
func SplitXtalToStart(v Unit) (us Unit, reduced bool) {
	return v &^ reducedPrepareBit, v&reducedPrepareBit != 0
}

// PreemptCalc checks, at the last moment before an event would start,
// whether a reduced prepare window still leaves enough headroom before the
// ticker's earliest-scheduled entry. If it does not, the caller must abort
// the event into its STOP state.
func PreemptCalc(xtalToStart Unit, ticksToNextUs Unit) (fits bool) {
	us, reduced := SplitXtalToStart(xtalToStart)
	if !reduced {
		return true
	}
	return ticksToNextUs >= us
}
