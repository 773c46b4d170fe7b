package ll

import "github.com/paypal/go-ll-controller/internal/llcp"

// TerminateIndSend is the host API entry point for tearing a connection
// down: queue LL_TERMINATE_IND as a control PDU via sendCtrl, which puts
// it at the head of the TX list, or right behind a head that has already
// been transmitted once and awaits its ack.
func (c *Controller) TerminateIndSend(handle Handle, reason TermReason) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[handle]
	if !ok {
		return StatusUnknownConnHandle
	}
	if conn.LLCP.Terminate.Pending() {
		return StatusProcedureInProgress
	}
	conn.LLCP.Terminate.Begin()
	conn.LLCP.Terminate.OwnReason = uint8(reason)

	ind := llcp.TerminateInd{ErrorCode: uint8(reason)}
	if err := c.sendCtrl(conn, llcp.OpTerminateInd, ind.Marshal()); err != nil {
		conn.LLCP.Terminate.Complete()
		return StatusNoResources
	}
	return StatusSuccess
}

// rxTerminateInd records the peer's reason, remapping it first,
// so the connection-close path (runEvent's PeerSet check at the start of
// the next event, then closeConnection) can report it to the host once the
// link actually tears down.
func (c *Controller) rxTerminateInd(conn *Connection, body []byte) {
	var ind llcp.TerminateInd
	if err := ind.Unmarshal(body); err != nil {
		return
	}
	conn.LLCP.Terminate.PeerReason = llcp.RemapPeerReason(ind.ErrorCode)
	conn.LLCP.Terminate.PeerSet = true
}

// onTerminateIndAcked fires once our own LL_TERMINATE_IND has been
// acknowledged on air: the connection tears down using our own reason.
func (c *Controller) onTerminateIndAcked(conn *Connection) {
	reason := TermReason(conn.LLCP.Terminate.OwnReason)
	c.closeConnection(conn, reason)
}
