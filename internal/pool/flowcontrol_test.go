package pool

import "testing"

func TestFlowControlDisabledAlwaysUnlocked(t *testing.T) {
	fc := NewFlowControl(false)
	if !fc.Lock(1) {
		t.Fatal("Lock should always succeed when disabled")
	}
	if !fc.Lock(2) {
		t.Fatal("Lock for a second handle should also succeed when disabled")
	}
	if fc.Locked(1) || fc.Pending() {
		t.Error("disabled flow control must never report locked/pending")
	}
}

func TestFlowControlEnabledExcludesOtherHandles(t *testing.T) {
	fc := NewFlowControl(true)
	if !fc.Lock(5) {
		t.Fatal("first Lock should succeed")
	}
	if !fc.Locked(5) {
		t.Error("Locked(5) should be true after Lock(5)")
	}
	if fc.Locked(6) {
		t.Error("Locked(6) should be false while 5 holds the lock")
	}
	if fc.Lock(6) {
		t.Fatal("Lock(6) should fail while handle 5 holds the lock")
	}
	if !fc.Pending() {
		t.Error("Pending() should be true while a handle holds the lock")
	}
}

func TestFlowControlReentrantLockSameHandle(t *testing.T) {
	fc := NewFlowControl(true)
	fc.Lock(3)
	if !fc.Lock(3) {
		t.Fatal("re-locking the same handle should succeed")
	}
}

func TestFlowControlUnlockReleasesAndIgnoresWrongHandle(t *testing.T) {
	fc := NewFlowControl(true)
	fc.Lock(7)
	fc.Unlock(8) // wrong handle, must be a no-op
	if !fc.Locked(7) {
		t.Fatal("Unlock with the wrong handle must not release the lock")
	}
	fc.Unlock(7)
	if fc.Locked(7) || fc.Pending() {
		t.Error("Unlock with the correct handle should release the lock")
	}
	if !fc.Lock(9) {
		t.Fatal("Lock for a new handle should succeed once released")
	}
}
