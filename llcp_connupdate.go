package ll

import (
	"github.com/paypal/go-ll-controller/internal/llcp"
	"github.com/paypal/go-ll-controller/internal/ticker"
)

// ConnUpdate is the host API entry point for requesting new connection
// parameters. Only one connection in the whole controller may hold the
// global conn_upd mutex at a time.
func (c *Controller) ConnUpdate(handle Handle, interval, latency, timeout uint16) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[handle]
	if !ok {
		return StatusUnknownConnHandle
	}
	if c.hasConnUpd {
		return StatusProcedureInProgress
	}
	if conn.LLCP.Outer.Active() != llcp.ProcNone {
		return StatusProcedureInProgress
	}

	conn.LLCP.Outer.Begin(llcp.ProcConnUpdate)
	conn.LLCP.Outer.ConnUpdate = llcp.ConnUpdateState{
		Phase:    llcp.CUInitiate,
		Interval: interval,
		Latency:  latency,
		Timeout:  timeout,
		WinSize:  1,
		Instant:  conn.EventCounter + conn.LatencyPrepare + 6,
	}
	c.hasConnUpd = true
	c.connUpdHandle = handle

	req := llcp.ConnectionUpdateReq{
		WinSize:   conn.LLCP.Outer.ConnUpdate.WinSize,
		WinOffset: 0,
		Interval:  interval,
		Latency:   latency,
		Timeout:   timeout,
		Instant:   conn.LLCP.Outer.ConnUpdate.Instant,
	}
	if err := c.sendCtrl(conn, llcp.OpConnectionUpdateReq, req.Marshal()); err != nil {
		conn.LLCP.Outer.End()
		c.hasConnUpd = false
		return StatusNoResources
	}
	conn.LLCP.Outer.ConnUpdate.Phase = llcp.CUInProg
	c.metrics.ProceduresStarted.WithLabelValues(llcp.ProcConnUpdate.String()).Inc()
	return StatusSuccess
}

// rxConnectionUpdateReq handles the slave side receiving
// LL_CONNECTION_UPDATE_REQ from the master.
func (c *Controller) rxConnectionUpdateReq(conn *Connection, body []byte) {
	var req llcp.ConnectionUpdateReq
	if err := req.Unmarshal(body); err != nil {
		return
	}
	conn.LLCP.Outer.Begin(llcp.ProcConnUpdate)
	conn.LLCP.Outer.ConnUpdate = llcp.ConnUpdateState{
		Phase:     llcp.CUInProg,
		WinSize:   req.WinSize,
		WinOffset: req.WinOffset,
		Interval:  req.Interval,
		Latency:   req.Latency,
		Timeout:   req.Timeout,
		Instant:   req.Instant,
	}
}

// rxConnParamReq handles a peer-initiated LL_CONNECTION_PARAM_REQ. If a
// different connection already holds the conn_upd mutex, or this
// connection has an outer procedure other than a connection update
// active, this is rejected with error 0x20 (ReasonLMPPDUNotAllowed).
func (c *Controller) rxConnParamReq(conn *Connection, body []byte) {
	var req llcp.ConnParamReq
	if err := req.Unmarshal(body); err != nil {
		return
	}
	if c.hasConnUpd && c.connUpdHandle != conn.Handle {
		c.rejectExt(conn, llcp.OpConnParamReq, uint8(llcp.ReasonLMPPDUNotAllowed))
		return
	}
	if conn.LLCP.Outer.Active() != llcp.ProcNone && conn.LLCP.Outer.Active() != llcp.ProcConnUpdate {
		c.rejectExt(conn, llcp.OpConnParamReq, uint8(llcp.ReasonLMPPDUNotAllowed))
		return
	}

	conn.LLCP.Outer.Begin(llcp.ProcConnUpdate)
	conn.LLCP.Outer.ConnUpdate = llcp.ConnUpdateState{
		Phase:          llcp.CUAppWait,
		Interval:       req.IntervalMax,
		Latency:        req.Latency,
		Timeout:        req.Timeout,
		WinSize:        1,
		IsConnParamReq: true,
	}
	c.hasConnUpd = true
	c.connUpdHandle = conn.Handle
	// A real host approval step would follow; for this core, auto-accept
	// with the peer's requested maximum interval, matching the "host must
	// approve" hook with a trivial policy until ConnUpdate is called
	// explicitly to override it.
	conn.LLCP.Outer.ConnUpdate.Instant = conn.EventCounter + conn.LatencyPrepare + 6
	rsp := llcp.ConnectionUpdateReq{
		WinSize:   1,
		WinOffset: 0,
		Interval:  req.IntervalMax,
		Latency:   req.Latency,
		Timeout:   req.Timeout,
		Instant:   conn.LLCP.Outer.ConnUpdate.Instant,
	}
	conn.LLCP.Outer.ConnUpdate.Phase = llcp.CUInProg
	_ = c.sendCtrl(conn, llcp.OpConnParamRsp, rsp.Marshal())
}

func (c *Controller) rxConnParamRsp(conn *Connection, body []byte) {
	var rsp llcp.ConnParamReq
	if err := rsp.Unmarshal(body); err != nil {
		return
	}
	if conn.LLCP.Outer.Active() != llcp.ProcConnUpdate {
		return
	}
	conn.LLCP.Outer.ConnUpdate.Interval = rsp.IntervalMax
	conn.LLCP.Outer.ConnUpdate.Latency = rsp.Latency
	conn.LLCP.Outer.ConnUpdate.Timeout = rsp.Timeout
	conn.LLCP.Outer.ConnUpdate.Phase = llcp.CUInProg
}

func (c *Controller) rejectExt(conn *Connection, op llcp.Opcode, reason uint8) {
	r := llcp.RejectIndExt{RejectOpcode: op, ErrorCode: reason}
	_ = c.sendCtrl(conn, llcp.OpRejectIndExt, r.Marshal())
}

// applyConnUpdateAtInstant applies a pending connection update once the
// scheduled instant arrives. It is called
// from runEvent at the end of each connection event, after the event
// counter advances.
func (c *Controller) applyConnUpdateAtInstant(conn *Connection) bool {
	cu := &conn.LLCP.Outer.ConnUpdate
	if conn.LLCP.Outer.Active() != llcp.ProcConnUpdate {
		return false
	}
	if !instantReached(conn.EventCounter, cu.Instant) {
		return false
	}

	oldIntervalUs := conn.connIntervalUs()
	oldLatencyEvent := conn.LatencyEvent

	c.ticker.JobDisable()
	conn.ConnIntervalUnits = cu.Interval
	conn.Latency = cu.Latency
	conn.SupervisionUnits = cu.Timeout
	conn.SupervisionReload = conn.supervisionTimeoutUs() / conn.connIntervalUs()
	conn.SupervisionExpire = conn.SupervisionReload

	shiftUs := int64(oldLatencyEvent)*int64(oldIntervalUs) - int64(cu.Latency)*int64(conn.connIntervalUs())
	anchorShift := ticksUnit(shiftUs)
	if conn.Role == RoleSlave {
		anchorShift -= ticksUnit(int64(conn.Slave.WindowWideningPeriodicUs) * int64(cu.Latency))
	}
	var driftPlus, driftMinus ticker.Unit
	if anchorShift >= 0 {
		driftPlus = ticker.Unit(anchorShift)
	} else {
		driftMinus = ticker.Unit(-anchorShift)
	}
	_ = c.ticker.Update(conn.tickerID, driftPlus, driftMinus, 0, true)
	c.ticker.JobEnable()

	changed := cu.Interval != 0
	conn.LLCP.Outer.End()
	c.hasConnUpd = false

	if changed {
		c.rx.push(RxEvent{
			Kind:     RxConnUpdate,
			Handle:   conn.Handle,
			Status:   StatusSuccess,
			Interval: conn.ConnIntervalUnits,
			Latency:  conn.Latency,
			Timeout:  conn.SupervisionUnits,
		})
	}
	c.metrics.ProceduresDone.WithLabelValues(llcp.ProcConnUpdate.String()).Inc()
	return true
}

// instantReached reports whether the event counter has reached instant,
// accounting for 16-bit wraparound.
func instantReached(eventCounter, instant uint16) bool {
	return uint16(eventCounter-instant) <= 0x7FFF
}

// ticksUnit converts a signed microsecond delta into the ticker's tick
// unit. The ticker already works directly in microseconds, so this is the
// identity in magnitude but keeps call sites self-documenting about the
// unit conversion taking place.
func ticksUnit(us int64) int32 {
	return int32(us)
}
