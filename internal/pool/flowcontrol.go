package pool

// FlowControl implements the host flow-control mutex: in
// the absence of host-side credits, at most one connection handle may have
// an unacknowledged received data PDU outstanding at a time. RX is locked
// to a handle on enqueue and released by the host calling Unlock once that
// packet has been dequeued.
//
// The ring of 3 tracks the most recently locked handles purely for
// diagnostics; the actual exclusion rule enforced is simpler: only one
// handle may be locked at a time while the queue is non-empty.
type FlowControl struct {
	enabled bool
	ring    [3]uint16
	ringPos int
	lockedH uint16
	hasLock bool
	req     uint8
	ack     uint8
}

// NewFlowControl returns a FlowControl; enabled mirrors the optional
// fc_ena build-time switch — when disabled, Lock always succeeds and RX
// is never gated on host drains.
func NewFlowControl(enabled bool) *FlowControl {
	return &FlowControl{enabled: enabled}
}

// Lock attempts to gate RX delivery to handle. It fails only if flow
// control is enabled and a different handle already holds the lock.
func (fc *FlowControl) Lock(handle uint16) bool {
	if !fc.enabled {
		return true
	}
	if fc.hasLock && fc.lockedH != handle {
		return false
	}
	if !fc.hasLock {
		fc.lockedH = handle
		fc.hasLock = true
		fc.req++
		fc.ring[fc.ringPos%len(fc.ring)] = handle
		fc.ringPos++
	}
	return true
}

// Unlock releases the lock held by handle; called by the host side via
// RxFCSet(handle, 0). Unlocking a handle that does not hold the lock is a
// no-op.
func (fc *FlowControl) Unlock(handle uint16) {
	if !fc.enabled || !fc.hasLock || fc.lockedH != handle {
		return
	}
	fc.hasLock = false
	fc.ack++
}

// Locked reports whether handle currently holds the RX lock.
func (fc *FlowControl) Locked(handle uint16) bool {
	return fc.enabled && fc.hasLock && fc.lockedH == handle
}

// Pending reports whether any handle currently holds the lock.
func (fc *FlowControl) Pending() bool {
	return fc.enabled && fc.hasLock
}
