package ll

import "testing"

func TestWindowWideningPeriodicUs(t *testing.T) {
	// Both sides at the worst SCA index (500ppm each): 1000ppm combined
	// over a 7.5ms (6-unit) interval is 7.5us of drift per event.
	got := windowWideningPeriodicUs(0, 0, 7500)
	if got != 7 {
		t.Errorf("windowWideningPeriodicUs(0, 0, 7500) = %d, want 7", got)
	}

	// Both sides at the best SCA index (20ppm each): negligible drift.
	got = windowWideningPeriodicUs(7, 7, 7500)
	if got != 0 {
		t.Errorf("windowWideningPeriodicUs(7, 7, 7500) = %d, want 0", got)
	}
}

func TestWidenAndResyncSlaveWindow(t *testing.T) {
	c := &Controller{}
	conn := &Connection{Role: RoleSlave}
	conn.Slave.WindowWideningPeriodicUs = 10
	conn.Slave.WindowWideningMaxUs = 25

	c.widenSlaveWindow(conn)
	if conn.Slave.WindowSizeEventUs != 10 {
		t.Fatalf("after one widen, WindowSizeEventUs = %d, want 10", conn.Slave.WindowSizeEventUs)
	}
	c.widenSlaveWindow(conn)
	if conn.Slave.WindowSizeEventUs != 20 {
		t.Fatalf("after two widens, WindowSizeEventUs = %d, want 20", conn.Slave.WindowSizeEventUs)
	}
	c.widenSlaveWindow(conn)
	if conn.Slave.WindowSizeEventUs != 25 {
		t.Fatalf("widening must cap at WindowWideningMaxUs: got %d, want 25", conn.Slave.WindowSizeEventUs)
	}

	c.resyncSlaveWindow(conn)
	if conn.Slave.WindowSizeEventUs != 0 || conn.Slave.WindowWideningEventUs != 0 {
		t.Fatalf("resync must collapse accumulated widening back to zero, got size=%d event=%d",
			conn.Slave.WindowSizeEventUs, conn.Slave.WindowWideningEventUs)
	}

	// A master connection never widens its window.
	masterConn := &Connection{Role: RoleMaster}
	masterConn.Slave.WindowWideningPeriodicUs = 10
	c.widenSlaveWindow(masterConn)
	if masterConn.Slave.WindowSizeEventUs != 0 {
		t.Fatalf("master role must not widen, got %d", masterConn.Slave.WindowSizeEventUs)
	}
}
