package pool

import "testing"

func TestTXArenaCtrlDataSeparation(t *testing.T) {
	a := NewTXArena(2, 3, 32)
	if a.CtrlFree() != 2 || a.DataFree() != 3 {
		t.Fatalf("initial free counts = (%d,%d), want (2,3)", a.CtrlFree(), a.DataFree())
	}

	ci, ok := a.AllocCtrl()
	if !ok {
		t.Fatal("AllocCtrl failed with capacity available")
	}
	if a.Kind(ci) != KindCtrl {
		t.Errorf("Kind(%d) = %v, want KindCtrl", ci, a.Kind(ci))
	}

	di, ok := a.AllocData()
	if !ok {
		t.Fatal("AllocData failed with capacity available")
	}
	if a.Kind(di) != KindData {
		t.Errorf("Kind(%d) = %v, want KindData", di, a.Kind(di))
	}

	// Exhausting the control sub-pool must not touch data capacity.
	if _, ok := a.AllocCtrl(); !ok {
		t.Fatal("second AllocCtrl failed")
	}
	if _, ok := a.AllocCtrl(); ok {
		t.Fatal("AllocCtrl succeeded past control capacity")
	}
	if a.DataFree() != 2 {
		t.Errorf("DataFree() = %d after ctrl exhaustion, want 2 (untouched)", a.DataFree())
	}
}

func TestTXArenaFreeThenReuse(t *testing.T) {
	a := NewTXArena(1, 0, 16)
	idx, _ := a.AllocCtrl()
	a.SetBuf(idx, []byte("hello"))
	a.Free(idx)
	if a.CtrlFree() != 1 {
		t.Fatalf("CtrlFree() = %d after Free, want 1", a.CtrlFree())
	}
	idx2, ok := a.AllocCtrl()
	if !ok || idx2 != idx {
		t.Fatalf("reuse after free: got idx=%d ok=%v, want idx=%d ok=true", idx2, ok, idx)
	}
	if len(a.Buf(idx2)) != 0 {
		t.Errorf("Buf() after realloc = %v, want empty (cleared on alloc)", a.Buf(idx2))
	}
}

func TestTXArenaDoubleFreePanics(t *testing.T) {
	a := NewTXArena(1, 0, 16)
	idx, _ := a.AllocCtrl()
	a.Free(idx)
	defer func() {
		if recover() == nil {
			t.Errorf("second Free: expected panic, got none")
		}
	}()
	a.Free(idx)
}

func TestTXArenaNextLinkage(t *testing.T) {
	a := NewTXArena(0, 2, 16)
	i1, _ := a.AllocData()
	i2, _ := a.AllocData()
	if a.Next(i1) != NoNode {
		t.Fatalf("Next(i1) = %d on fresh node, want NoNode", a.Next(i1))
	}
	a.SetNext(i1, i2)
	if a.Next(i1) != i2 {
		t.Errorf("Next(i1) = %d after SetNext, want %d", a.Next(i1), i2)
	}
}
