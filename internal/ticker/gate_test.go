package ticker

import "testing"

func TestNewGateDefaults(t *testing.T) {
	g := NewGate()
	if g.XtalUs != 1500 || g.ActiveUs != 500 || g.RetainGapUs != 1200 {
		t.Fatalf("NewGate() = %+v, want {1500 500 1200}", g)
	}
}

func TestGateRetain(t *testing.T) {
	g := NewGate()
	if !g.Retain(1200) {
		t.Error("Retain(1200) should hold at the exact threshold")
	}
	if !g.Retain(100) {
		t.Error("Retain(100) should hold well inside the threshold")
	}
	if g.Retain(1201) {
		t.Error("Retain(1201) should release just past the threshold")
	}
}

func TestXtalToStartRoundTrip(t *testing.T) {
	for _, reduced := range []bool{true, false} {
		packed := XtalToStart(900, reduced)
		us, gotReduced := SplitXtalToStart(packed)
		if us != 900 || gotReduced != reduced {
			t.Errorf("XtalToStart(900, %v) round trip = (%d, %v), want (900, %v)", reduced, us, gotReduced, reduced)
		}
	}
}

func TestPreemptCalc(t *testing.T) {
	notReduced := XtalToStart(900, false)
	if !PreemptCalc(notReduced, 0) {
		t.Error("non-reduced window always fits, regardless of ticks to next event")
	}

	reduced := XtalToStart(900, true)
	if !PreemptCalc(reduced, 900) {
		t.Error("reduced window should fit when ticksToNext equals its own duration")
	}
	if !PreemptCalc(reduced, 1500) {
		t.Error("reduced window should fit with headroom to spare")
	}
	if PreemptCalc(reduced, 899) {
		t.Error("reduced window should not fit one tick short of its duration")
	}
}
