package ll

import "github.com/paypal/go-ll-controller/internal/llcp"

// defaultTxOctets/rxMax are the pre-DLE default and the largest payload
// this build's pools were sized for.
func (c *Controller) defaultTxOctets() uint16 { return c.cfg.MaxOctets }
func (c *Controller) rxMaxOctets() uint16     { return c.cfg.MaxOctets }

// LengthReqSend is the host API entry point for beginning the Data Length
// Extension procedure.
func (c *Controller) LengthReqSend(handle Handle, txOctets uint16) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[handle]
	if !ok {
		return StatusUnknownConnHandle
	}
	if conn.LLCP.Length.Pending() {
		return StatusProcedureInProgress
	}
	conn.LLCP.Length.Begin()
	conn.LLCP.Length.Phase = llcp.LengthReqPhase
	conn.LLCP.Length.CandTxOctets = txOctets

	req := llcp.LengthPDU{
		MaxRxOctets: c.rxMaxOctets(),
		MaxRxTime:   2120,
		MaxTxOctets: txOctets,
		MaxTxTime:   2120,
	}
	if err := c.sendCtrl(conn, llcp.OpLengthReq, req.Marshal()); err != nil {
		conn.LLCP.Length.Complete()
		return StatusNoResources
	}
	conn.LLCP.Length.Phase = llcp.LengthAckWait
	conn.ProcedureExpire = conn.ProcedureReload
	return StatusSuccess
}

// LengthDefaultGet/Set and LengthMaxGet are the remaining host API entry
// points for the Data Length Extension procedure.
func (c *Controller) LengthDefaultGet() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.MaxOctets
}

func (c *Controller) LengthDefaultSet(octets uint16) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if octets == 0 || octets > 251 {
		return StatusInvalidParameter
	}
	c.cfg.MaxOctets = octets
	return StatusSuccess
}

func (c *Controller) LengthMaxGet() uint16 {
	return 251
}

// rxLengthReq replies with our own length preferences and applies the
// effective TX/RX octet rule: each side's effective size is the smaller of
// its own configured limit and the peer's advertised limit.
func (c *Controller) rxLengthReq(conn *Connection, body []byte) {
	var req llcp.LengthPDU
	if err := req.Unmarshal(body); err != nil {
		return
	}
	rsp := llcp.LengthPDU{
		MaxRxOctets: c.rxMaxOctets(),
		MaxRxTime:   2120,
		MaxTxOctets: c.defaultTxOctets(),
		MaxTxTime:   2120,
	}
	if err := c.sendCtrl(conn, llcp.OpLengthRsp, rsp.Marshal()); err != nil {
		return
	}
	c.applyLengthNegotiation(conn, req.MaxRxOctets, req.MaxTxOctets)
}

func (c *Controller) rxLengthRsp(conn *Connection, body []byte) {
	var rsp llcp.LengthPDU
	if err := rsp.Unmarshal(body); err != nil {
		return
	}
	if !conn.LLCP.Length.Pending() {
		return
	}
	c.applyLengthNegotiation(conn, rsp.MaxRxOctets, rsp.MaxTxOctets)
}

// rxUnknownRsp completes the length procedure locally with unchanged
// parameters when the peer does not understand LENGTH_REQ.
func (c *Controller) rxUnknownRsp(conn *Connection, body []byte) {
	var u llcp.UnknownRsp
	if err := u.Unmarshal(body); err != nil {
		return
	}
	if u.UnknownType == llcp.OpLengthReq && conn.LLCP.Length.Pending() {
		conn.LLCP.Length.Complete()
		conn.LLCP.Length.Phase = llcp.LengthIdle
		conn.ProcedureExpire = 0
	}
}

func (c *Controller) rxRejectInd(conn *Connection, body []byte) {
	conn.Enc.PauseRX = false
	conn.Enc.PauseTX = false
	if conn.LLCP.Outer.Active() != llcp.ProcNone {
		conn.LLCP.Outer.End()
	}
	conn.ProcedureExpire = 0
}

func (c *Controller) rxRejectIndExt(conn *Connection, body []byte) {
	var r llcp.RejectIndExt
	if err := r.Unmarshal(body); err != nil {
		return
	}
	if r.RejectOpcode == llcp.OpLengthReq && conn.LLCP.Length.Pending() {
		conn.LLCP.Length.Complete()
		conn.LLCP.Length.Phase = llcp.LengthIdle
		conn.ProcedureExpire = 0
		return
	}
	conn.Enc.PauseRX = false
	conn.Enc.PauseTX = false
	if conn.LLCP.Outer.Active() != llcp.ProcNone {
		conn.LLCP.Outer.End()
	}
	conn.ProcedureExpire = 0
}

// applyLengthNegotiation computes the effective TX/RX octets and, if the
// new effective RX size exceeds the current pool node size, transitions to
// RESIZE.
func (c *Controller) applyLengthNegotiation(conn *Connection, peerMaxRxOctets, peerMaxTxOctets uint16) {
	conn.LLCP.Length.EffTxOctets = llcp.EffectiveTx(peerMaxRxOctets, c.defaultTxOctets())
	conn.LLCP.Length.EffRxOctets = llcp.EffectiveRx(peerMaxTxOctets, c.rxMaxOctets())

	needed := int(conn.LLCP.Length.EffRxOctets) + 2
	if needed > c.rxPool.NodeSize() {
		conn.LLCP.Length.Phase = llcp.LengthResize
		return
	}
	c.finishLength(conn)
}

// tryResizePool is polled by the scheduler's prepare pass while any
// connection sits in LengthResize: it resizes the shared RX pool only once
// every node is free.
func (c *Controller) tryResizePool(conn *Connection) {
	if conn.LLCP.Length.Phase != llcp.LengthResize {
		return
	}
	needed := int(conn.LLCP.Length.EffRxOctets) + 2
	if err := c.rxPool.Resize(needed); err != nil {
		return // still busy; retried on the next prepare
	}
	c.finishLength(conn)
}

func (c *Controller) finishLength(conn *Connection) {
	conn.LLCP.Length.Phase = llcp.LengthIdle
	conn.LLCP.Length.Complete()
	conn.ProcedureExpire = 0
	c.rx.push(RxEvent{
		Kind:        RxLengthChange,
		Handle:      conn.Handle,
		MaxTxOctets: conn.LLCP.Length.EffTxOctets,
		MaxRxOctets: conn.LLCP.Length.EffRxOctets,
	})
}
