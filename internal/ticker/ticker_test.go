package ticker

import "testing"

func newTestTicker(now *Unit) *Ticker {
	return New(func() Unit { return *now })
}

func TestTickerStartAndExpireOneShot(t *testing.T) {
	var now Unit
	tk := newTestTicker(&now)

	var fired []int
	err := tk.Start(1, now, 100, 0, 0, 10, func(id int, anchor Unit, lazy uint16, force bool, ctx interface{}) {
		fired = append(fired, id)
	}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	now = 50
	tk.Expire(now)
	if len(fired) != 0 {
		t.Fatalf("expire at t=50 fired %v, want nothing (anchor is 100)", fired)
	}

	now = 100
	tk.Expire(now)
	if len(fired) != 1 || fired[0] != 1 {
		t.Fatalf("expire at t=100 fired %v, want [1]", fired)
	}

	// One-shot entries are not re-armed.
	now = 1000
	tk.Expire(now)
	if len(fired) != 1 {
		t.Fatalf("one-shot entry fired again: %v", fired)
	}
}

func TestTickerStartDuplicateIDErrors(t *testing.T) {
	var now Unit
	tk := newTestTicker(&now)
	noop := func(id int, anchor Unit, lazy uint16, force bool, ctx interface{}) {}
	if err := tk.Start(1, 0, 10, 0, 0, 1, noop, nil); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := tk.Start(1, 0, 10, 0, 0, 1, noop, nil); err == nil {
		t.Fatal("second Start with the same id should error")
	}
}

func TestTickerPeriodicReArmsAndTracksLazy(t *testing.T) {
	var now Unit
	tk := newTestTicker(&now)

	var anchors []Unit
	var lazies []uint16
	tk.Start(1, 0, 100, 100, 0, 10, func(id int, anchor Unit, lazy uint16, force bool, ctx interface{}) {
		anchors = append(anchors, anchor)
		lazies = append(lazies, lazy)
	}, nil)

	now = 100
	tk.Expire(now)
	now = 200
	tk.Expire(now)
	now = 300
	tk.Expire(now)

	if len(anchors) != 3 || anchors[0] != 100 || anchors[1] != 200 || anchors[2] != 300 {
		t.Fatalf("anchors = %v, want [100 200 300]", anchors)
	}
	if len(lazies) != 3 || lazies[0] != 0 || lazies[1] != 0 || lazies[2] != 0 {
		t.Fatalf("lazies = %v, want [0 0 0]", lazies)
	}
}

func TestTickerStop(t *testing.T) {
	var now Unit
	tk := newTestTicker(&now)
	fired := false
	tk.Start(1, 0, 50, 0, 0, 1, func(id int, anchor Unit, lazy uint16, force bool, ctx interface{}) {
		fired = true
	}, nil)
	tk.Stop(1)
	now = 50
	tk.Expire(now)
	if fired {
		t.Fatal("stopped entry should not fire")
	}
	// Stopping an id that was never started is a no-op, not an error.
	tk.Stop(999)
}

func TestTickerUpdateDrift(t *testing.T) {
	var now Unit
	tk := newTestTicker(&now)
	noop := func(id int, anchor Unit, lazy uint16, force bool, ctx interface{}) {}
	tk.Start(1, 0, 100, 50, 0, 1, noop, nil)

	if err := tk.Update(1, 20, 0, 0, false); err != nil {
		t.Fatalf("Update: %v", err)
	}
	id, anchor, _, ok := tk.NextSlotGet()
	if !ok || id != 1 || anchor != 120 {
		t.Fatalf("NextSlotGet after +20 drift = (%d, %d, %v), want (1, 120, true)", id, anchor, ok)
	}

	if err := tk.Update(999, 0, 0, 0, false); err == nil {
		t.Fatal("Update on unknown id should error")
	}
}

func TestTickerNextSlotGetEmpty(t *testing.T) {
	var now Unit
	tk := newTestTicker(&now)
	if _, _, _, ok := tk.NextSlotGet(); ok {
		t.Fatal("NextSlotGet on an empty ticker should report ok=false")
	}
}

func TestTickerSlotsSnapshot(t *testing.T) {
	var now Unit
	tk := newTestTicker(&now)
	noop := func(id int, anchor Unit, lazy uint16, force bool, ctx interface{}) {}
	tk.Start(1, 0, 10, 0, 0, 5, noop, nil)
	tk.Start(2, 0, 20, 0, 0, 7, noop, nil)

	slots := tk.Slots()
	if len(slots) != 2 {
		t.Fatalf("Slots() returned %d entries, want 2", len(slots))
	}
	seen := map[Unit]Unit{}
	for _, s := range slots {
		seen[s.Anchor] = s.Slot
	}
	if seen[10] != 5 || seen[20] != 7 {
		t.Fatalf("Slots() = %v, want anchors 10->slot5 and 20->slot7", slots)
	}
}

func TestTickerJobEnableDisable(t *testing.T) {
	var now Unit
	tk := newTestTicker(&now)
	if !tk.JobEnabled() {
		t.Fatal("ticker job should start enabled")
	}
	tk.JobDisable()
	if tk.JobEnabled() {
		t.Fatal("JobDisable should clear JobEnabled")
	}
	tk.JobEnable()
	if !tk.JobEnabled() {
		t.Fatal("JobEnable should restore JobEnabled")
	}
}
