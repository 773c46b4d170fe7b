package ll

import (
	"github.com/paypal/go-ll-controller/internal/llcp"
	"github.com/paypal/go-ll-controller/internal/pool"
	llradio "github.com/paypal/go-ll-controller/internal/radio"
)

// eventResult summarises what happened in one connection event, for the
// scheduler's onEventExpire to act on once the event is over (reschedule,
// or tear the connection down).
type eventResult struct {
	closed  bool
	reason  TermReason
	gotPDU  bool
	crcFail bool
}

// runEvent drives one full connection event to completion: program the
// radio for this event's channel, exchange exactly one master/slave PDU
// pair, and update sequencing/supervision state from the result.
//
// The radio.Radio facade here is call-and-return rather than a real
// interrupt source, so the TX->RX->TX chain that a real controller runs
// across repeated ISR re-entries happens here as a single synchronous
// function call; runEvent is the one deliberate place where that
// simplification is concentrated.
func (c *Controller) runEvent(conn *Connection) eventResult {
	if conn.LLCP.Terminate.PeerSet {
		return eventResult{closed: true, reason: TermReason(conn.LLCP.Terminate.PeerReason)}
	}

	rf := conn.rfChannel()
	c.radio.AccessAddressSet(conn.AccessAddress)
	c.radio.CRCConfigure(0x65B, conn.CRCInit)
	c.radio.FreqChannelSet(rf)
	c.radio.WhitenIVSet(conn.DataChannelUse)
	c.radio.PacketConfigure(0, 0, conn.LLCP.Length.EffRxOctets+2)

	var res eventResult
	if conn.Role == RoleMaster {
		res = c.runMasterHalf(conn)
	} else {
		res = c.runSlaveHalf(conn)
	}
	if !res.closed {
		if pres := c.tickProcedureAndAuth(conn); pres.closed {
			res = pres
		}
	}

	conn.EventCounter++
	conn.LatencyEvent = 0
	c.applyConnUpdateAtInstant(conn)
	c.applyChanMapAtInstant(conn)
	return res
}

func (c *Controller) runMasterHalf(conn *Connection) eventResult {
	tx := c.prepareTxPDU(conn)
	c.radio.PacketTxSet(tx)
	c.radio.SwitchCompleteAndTx()
	if !c.radio.IsDone() {
		return c.missedEvent(conn)
	}

	rxBuf := make([]byte, conn.LLCP.Length.EffRxOctets+2+4)
	c.radio.PacketRxSet(rxBuf)
	c.radio.SwitchCompleteAndRx()
	if !c.radio.IsDone() {
		return c.missedEvent(conn)
	}
	return c.processRx(conn, rxBuf)
}

func (c *Controller) runSlaveHalf(conn *Connection) eventResult {
	c.widenSlaveWindow(conn)
	rxBuf := make([]byte, conn.LLCP.Length.EffRxOctets+2+4)
	c.radio.PacketRxSet(rxBuf)
	c.radio.SwitchCompleteAndRx()
	if !c.radio.IsDone() {
		return c.missedEvent(conn)
	}
	res := c.processRx(conn, rxBuf)

	tx := c.prepareTxPDU(conn)
	c.radio.PacketTxSet(tx)
	c.radio.SwitchCompleteAndTx()
	return res
}

// missedEvent accounts for an anchor with no PDU exchanged: latency_event
// grows and supervision_expire counts down, same as a received-but-useless
// event would.
func (c *Controller) missedEvent(conn *Connection) eventResult {
	conn.LatencyEvent++
	return c.tickSupervision(conn)
}

func (c *Controller) processRx(conn *Connection, rxBuf []byte) eventResult {
	conn.PeerRSSI = c.radio.RSSIGet()
	conn.rssiCountdown++
	if conn.rssiCountdown >= 8 {
		conn.rssiCountdown = 0
		c.rx.push(RxEvent{Kind: RxRSSI, Handle: conn.Handle, RSSI: conn.PeerRSSI})
		if c.metrics.RSSIReported != nil {
			c.metrics.RSSIReported.Observe(float64(conn.PeerRSSI))
		}
	}

	if !c.radio.CRCIsValid() {
		res := c.tickSupervision(conn)
		res.crcFail = true
		return res
	}

	ok, micFail := c.handleRxPDU(conn, rxBuf)
	if micFail {
		return eventResult{closed: true, reason: ReasonMICFailure}
	}
	if !ok {
		res := c.tickSupervision(conn)
		res.crcFail = true
		return res
	}

	conn.SupervisionExpire = conn.SupervisionReload
	c.resyncSlaveWindow(conn)
	res := eventResult{gotPDU: true}
	return res
}

// tickSupervision decrements the supervision countdown and reports a
// termination once it reaches zero.
func (c *Controller) tickSupervision(conn *Connection) eventResult {
	if conn.SupervisionExpire == 0 {
		c.metrics.SupervisionExpiry.WithLabelValues(conn.Role.String()).Inc()
		return eventResult{closed: true, reason: ReasonSupervisionTimeout}
	}
	conn.SupervisionExpire--
	return eventResult{}
}

// tickProcedureAndAuth advances the per-event LLCP procedure-response
// timeout and the authenticated payload (pre)timeout, unconditionally on
// every completed event regardless of whether a PDU was exchanged --
// unlike tickSupervision, which only ticks on a miss. ProcedureExpire
// reaching zero closes the connection with the LL response timeout reason;
// AptoExpire reaching zero surfaces a host notification; ApptoExpire
// reaching zero spontaneously starts a ping if no other LLCP procedure is
// outstanding.
func (c *Controller) tickProcedureAndAuth(conn *Connection) eventResult {
	if conn.ProcedureExpire != 0 {
		if conn.ProcedureExpire > 1 {
			conn.ProcedureExpire--
		} else {
			conn.ProcedureExpire = 0
			return eventResult{closed: true, reason: ReasonLLResponseTimeout}
		}
	}
	if conn.AptoExpire != 0 {
		if conn.AptoExpire > 1 {
			conn.AptoExpire--
		} else {
			conn.AptoExpire = 0
			c.rx.push(RxEvent{Kind: RxAuthPayloadTimeout, Handle: conn.Handle})
		}
	}
	if conn.ApptoExpire != 0 {
		if conn.ApptoExpire > 1 {
			conn.ApptoExpire--
		} else {
			conn.ApptoExpire = 0
			if conn.ProcedureExpire == 0 && conn.LLCP.Outer.Active() == llcp.ProcNone {
				c.pingReqSend(conn)
			}
		}
	}
	return eventResult{}
}

// prepareTxPDU builds the next PDU to transmit: the TX list's head if one
// is queued, otherwise a zero-length keepalive, encrypting it if the link has encryption enabled.
func (c *Controller) prepareTxPDU(conn *Connection) []byte {
	conn.TXList.Empty = false

	var pdu DataPDU
	if conn.TXList.Head == pool.NoNode {
		conn.TXList.Empty = true
		pdu = emptyPDU(conn.NESN, conn.SN)
	} else {
		raw := c.txArena.Buf(conn.TXList.Head)
		kind := c.txArena.Kind(conn.TXList.Head)
		llid := LLIDDataStart
		payload := raw
		if kind == pool.KindCtrl {
			llid = LLIDControl
		} else {
			offset := conn.TXList.HeadOffset
			end := offset + int(conn.LLCP.Length.EffTxOctets)
			if end > len(raw) {
				end = len(raw)
			}
			payload = raw[offset:end]
			conn.TXList.PendingFragLen = len(payload)
			if offset > 0 {
				llid = LLIDDataContinue
			}
		}
		pdu = DataPDU{
			LLID:    llid,
			NESN:    conn.NESN,
			SN:      conn.SN,
			MD:      boolToBit(c.hasMoreToSend(conn)),
			Payload: payload,
		}
		conn.TXList.HeadSent = true
	}
	return c.maybeEncryptTX(conn, pdu)
}

// hasMoreToSend reports whether the MD bit should be set: either the head
// PDU's own buffer still has unsent fragment bytes beyond this event's
// chunk, or another node is already queued behind it.
func (c *Controller) hasMoreToSend(conn *Connection) bool {
	if conn.TXList.Head == pool.NoNode {
		return false
	}
	if c.txArena.Kind(conn.TXList.Head) == pool.KindData {
		raw := c.txArena.Buf(conn.TXList.Head)
		if conn.TXList.HeadOffset+int(conn.LLCP.Length.EffTxOctets) < len(raw) {
			return true
		}
	}
	return c.txArena.Next(conn.TXList.Head) != pool.NoNode
}

func boolToBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// maybeEncryptTX seals pdu's payload under the connection's TX CCM context
// when encryption is live and not paused.
func (c *Controller) maybeEncryptTX(conn *Connection, pdu DataPDU) []byte {
	wire := pdu.Marshal()
	if !conn.Enc.EncTX || conn.Enc.PauseTX {
		return wire
	}
	ct, err := llradio.Seal(&conn.Enc.CCMTx, wire[0], wire[2:])
	if err != nil {
		return wire
	}
	conn.Enc.CCMTx.Counter++
	out := make([]byte, 2+len(ct))
	out[0] = wire[0]
	out[1] = byte(len(ct))
	copy(out[2:], ct)
	return out
}

// handleRxPDU decodes, decrypts (if applicable) and acks/accepts one
// received PDU, implementing the standard Link Layer SN/NESN handshake:
// a peer's NESN differing from our own SN means our last transmission was
// acknowledged; a peer's SN matching our own NESN means its payload is new
// (not a retransmission we've already processed).
func (c *Controller) handleRxPDU(conn *Connection, raw []byte) (ok bool, micFail bool) {
	if len(raw) < 2 {
		return false, false
	}
	header := raw[0]
	length := int(raw[1])
	if len(raw) < 2+length {
		return false, false
	}

	var pdu DataPDU
	if conn.Enc.EncRX && !conn.Enc.PauseRX {
		pt, ok, err := llradio.Open(&conn.Enc.CCMRx, header, raw[2:2+length])
		if err != nil || !ok {
			return false, true
		}
		conn.Enc.CCMRx.Counter++
		pdu.LLID = LLID(header & 0x03)
		pdu.NESN = (header >> 2) & 1
		pdu.SN = (header >> 3) & 1
		pdu.MD = (header >> 4) & 1
		pdu.Payload = pt
	} else {
		if err := pdu.Unmarshal(raw); err != nil {
			return false, false
		}
	}

	if pdu.NESN != conn.SN {
		conn.SN ^= 1
		c.ackHeadTX(conn)
	}
	if pdu.SN == conn.NESN {
		conn.NESN ^= 1
		if c.acceptRx(conn, pdu) {
			return true, true
		}
		c.tickAuthPayload(conn, len(pdu.Payload) != 0)
	}
	return true, false
}

// tickAuthPayload arms or disarms the authenticated payload (pre)timeout
// on a successfully-received, non-retransmitted PDU: any non-empty PDU
// stops both timers, while an empty PDU received under encryption starts
// them if they are not already running.
func (c *Controller) tickAuthPayload(conn *Connection, nonEmpty bool) {
	if nonEmpty {
		conn.AptoExpire = 0
		conn.ApptoExpire = 0
		return
	}
	if (conn.Enc.EncRX || conn.Enc.PauseRX) && conn.AptoExpire == 0 {
		conn.ApptoExpire = conn.ApptoReload
		conn.AptoExpire = conn.AptoReload
	}
}

// ackHeadTX advances the TX list once the peer has acknowledged the last
// PDU sent: a data PDU's head node is only released once every fragment of
// its buffer has gone out, otherwise HeadOffset simply advances so the next
// event sends the next chunk. Control PDUs are never fragmented, so they
// always release on the first ack. The control-PDU ack hook runs first
// since it reads the node's still-live buffer.
func (c *Controller) ackHeadTX(conn *Connection) {
	if conn.TXList.Head != pool.NoNode && c.txArena.Kind(conn.TXList.Head) == pool.KindData {
		raw := c.txArena.Buf(conn.TXList.Head)
		newOffset := conn.TXList.HeadOffset + conn.TXList.PendingFragLen
		if newOffset < len(raw) {
			conn.TXList.HeadOffset = newOffset
			conn.TXList.PendingFragLen = 0
			return
		}
	}
	released, kind, ok := conn.TXList.ReleaseHead(c.txArena)
	if !ok || released == pool.NoNode {
		return
	}
	if kind == pool.KindCtrl {
		c.onCtrlAcked(conn, released)
	}
	c.txArena.Free(released)
}

// acceptRx dispatches a newly-received (non-duplicate) PDU: control PDUs go
// to the LLCP engine, data PDUs are copied into the shared RX pool and
// surfaced to the host, subject to the flow-control mutex and
// pauseWhitelisted's encryption-pause gate. It reports micFail when a data
// PDU arrived while RX was paused for an encryption handshake, which the
// caller must treat as an immediate MIC-failure termination rather than a
// normal accept.
func (c *Controller) acceptRx(conn *Connection, pdu DataPDU) (micFail bool) {
	switch pdu.LLID {
	case LLIDControl:
		if len(pdu.Payload) < 1 {
			return false
		}
		if conn.Enc.PauseRX && !pauseWhitelisted(llcp.Opcode(pdu.Payload[0])) {
			return false
		}
		c.handleLLCP(conn, pdu.Payload)
	case LLIDDataStart, LLIDDataContinue:
		if len(pdu.Payload) == 0 {
			return false
		}
		if conn.Enc.PauseRX {
			return true
		}
		idx, ok := c.rxPool.Alloc()
		if !ok {
			return false
		}
		if !c.flowControl.Lock(conn.Handle) {
			c.rxPool.Free(idx)
			return false
		}
		c.rxPool.SetBuf(idx, append([]byte(nil), pdu.Payload...))
		c.rx.push(RxEvent{Kind: RxData, Handle: conn.Handle, NodeIdx: idx})
	}
	return false
}

// pauseWhitelisted reports whether op may still be processed while RX is
// paused during an encryption-start/refresh handshake.
func pauseWhitelisted(op llcp.Opcode) bool {
	switch op {
	case llcp.OpTerminateInd, llcp.OpRejectInd, llcp.OpRejectIndExt,
		llcp.OpStartEncReq, llcp.OpStartEncRsp, llcp.OpPauseEncRsp, llcp.OpEncRsp:
		return true
	default:
		return false
	}
}

// closeConnection tears a connection down, stopping its ticker slot and
// delivering a single RxTerminate event with the given reason.
func (c *Controller) closeConnection(conn *Connection, reason TermReason) {
	c.ticker.Stop(conn.tickerID)
	if c.hasConnUpd && c.connUpdHandle == conn.Handle {
		c.hasConnUpd = false
	}
	c.metrics.ActiveConnections.Dec()
	c.rx.push(RxEvent{Kind: RxTerminate, Handle: conn.Handle, Reason: reason})
	delete(c.conns, conn.Handle)
}
