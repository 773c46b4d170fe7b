package ll

// windowWideningPeriodicUs computes the per-event widening of the slave's
// receive window from both peers' sleep clock accuracy: the larger the
// combined worst-case drift, the sooner the slave must start listening
// relative to the nominal anchor.
func windowWideningPeriodicUs(ownSCA, peerSCA uint8, connIntervalUs uint32) uint32 {
	ownPPM := scaPPM[ownSCA&0x7]
	peerPPM := scaPPM[peerSCA&0x7]
	totalPPM := ownPPM + peerPPM
	return uint32((uint64(connIntervalUs) * uint64(totalPPM)) / 1_000_000)
}

// initSlaveTiming seeds a newly-created slave connection's window-widening
// state: the periodic growth rate, the cap a missed-anchor run-up may
// reach, and the base window size before any widening is applied.
func (c *Controller) initSlaveTiming(conn *Connection, ownSCA, peerSCA uint8) {
	conn.Slave.SCA = ownSCA
	conn.Slave.WindowWideningPeriodicUs = windowWideningPeriodicUs(ownSCA, peerSCA, conn.connIntervalUs())
	conn.Slave.WindowWideningMaxUs = conn.connIntervalUs()/2 - 150
	conn.Slave.WindowSizeEventUs = 0
}

// widenSlaveWindow grows the slave's receive window by one period's worth
// of accumulated clock drift ahead of each event, capped at
// WindowWideningMaxUs; a successful reception resets it back to zero via
// resyncSlaveWindow.
func (c *Controller) widenSlaveWindow(conn *Connection) {
	if conn.Role != RoleSlave {
		return
	}
	conn.Slave.WindowWideningEventUs += conn.Slave.WindowWideningPeriodicUs
	if conn.Slave.WindowWideningEventUs > conn.Slave.WindowWideningMaxUs {
		conn.Slave.WindowWideningEventUs = conn.Slave.WindowWideningMaxUs
	}
	conn.Slave.WindowSizeEventUs = conn.Slave.WindowWideningEventUs
}

// resyncSlaveWindow collapses the accumulated window widening once an
// anchor has actually been received, since drift only accrues across
// missed events.
func (c *Controller) resyncSlaveWindow(conn *Connection) {
	conn.Slave.WindowWideningEventUs = 0
	conn.Slave.WindowSizeEventUs = 0
}
