package ll

import (
	"fmt"

	"github.com/paypal/go-ll-controller/internal/llcp"
)

// sendCtrl allocates a control buffer, frames opcode+payload into it and
// enqueues it onto conn's TX list with EnqueueCtrl: it becomes the new
// head, or goes right behind a head that has already been transmitted once.
func (c *Controller) sendCtrl(conn *Connection, op llcp.Opcode, payload []byte) error {
	idx, ok := c.txArena.AllocCtrl()
	if !ok {
		return fmt.Errorf("ll: control tx pool exhausted")
	}
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(op)
	copy(buf[1:], payload)
	c.txArena.SetBuf(idx, buf)
	conn.TXList.EnqueueCtrl(c.txArena, idx)
	return nil
}

// handleLLCP parses one received control PDU and dispatches it to the
// procedure-specific handler. payload is the data channel
// PDU's decoded payload, i.e. opcode byte followed by the procedure's wire
// fields.
func (c *Controller) handleLLCP(conn *Connection, payload []byte) {
	if len(payload) < 1 {
		return
	}
	op := llcp.Opcode(payload[0])
	body := payload[1:]

	switch op {
	case llcp.OpConnectionUpdateReq:
		c.rxConnectionUpdateReq(conn, body)
	case llcp.OpConnParamReq:
		c.rxConnParamReq(conn, body)
	case llcp.OpConnParamRsp:
		c.rxConnParamRsp(conn, body)
	case llcp.OpChannelMapReq:
		c.rxChannelMapReq(conn, body)
	case llcp.OpTerminateInd:
		c.rxTerminateInd(conn, body)
	case llcp.OpEncReq:
		c.rxEncReq(conn, body)
	case llcp.OpEncRsp:
		c.rxEncRsp(conn, body)
	case llcp.OpStartEncReq:
		c.rxStartEncReq(conn)
	case llcp.OpStartEncRsp:
		c.rxStartEncRsp(conn)
	case llcp.OpPauseEncReq:
		c.rxPauseEncReq(conn)
	case llcp.OpPauseEncRsp:
		c.rxPauseEncRsp(conn)
	case llcp.OpFeatureReq, llcp.OpSlaveFeatureReq:
		c.rxFeatureReq(conn, body)
	case llcp.OpFeatureRsp:
		c.rxFeatureRsp(conn, body)
	case llcp.OpVersionInd:
		c.rxVersionInd(conn, body)
	case llcp.OpPingReq:
		c.rxPingReq(conn)
	case llcp.OpPingRsp:
		c.rxPingRsp(conn)
	case llcp.OpLengthReq:
		c.rxLengthReq(conn, body)
	case llcp.OpLengthRsp:
		c.rxLengthRsp(conn, body)
	case llcp.OpRejectInd:
		c.rxRejectInd(conn, body)
	case llcp.OpRejectIndExt:
		c.rxRejectIndExt(conn, body)
	case llcp.OpUnknownRsp:
		c.rxUnknownRsp(conn, body)
	default:
		c.sendUnknownRsp(conn, op)
	}
}

func (c *Controller) sendUnknownRsp(conn *Connection, op llcp.Opcode) {
	rsp := llcp.UnknownRsp{UnknownType: op}
	_ = c.sendCtrl(conn, llcp.OpUnknownRsp, rsp.Marshal())
}

// onCtrlAcked is invoked once an LLCP PDU we sent has been acknowledged by
// the peer.
// idx is the now-released tx arena node; its first byte is still the
// opcode that was sent, since callers free the node only after this runs.
func (c *Controller) onCtrlAcked(conn *Connection, idx int) {
	buf := c.txArena.Buf(idx)
	if len(buf) < 1 {
		return
	}
	op := llcp.Opcode(buf[0])
	switch op {
	case llcp.OpTerminateInd:
		c.onTerminateIndAcked(conn)
	case llcp.OpStartEncReq:
		c.onStartEncReqAcked(conn)
	case llcp.OpStartEncRsp:
		c.onStartEncRspAcked(conn)
	case llcp.OpPauseEncRsp:
		c.onPauseEncRspAcked(conn)
	case llcp.OpConnectionUpdateReq, llcp.OpConnParamRsp:
		// nothing to do here: application happens at the scheduled instant,
		// not at ack time.
	case llcp.OpChannelMapReq:
		// likewise applied at instant, by applyChanMapAtInstant.
	}
}
