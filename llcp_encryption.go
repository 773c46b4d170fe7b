package ll

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/paypal/go-ll-controller/internal/llcp"
	llradio "github.com/paypal/go-ll-controller/internal/radio"
)

// combineIV lays out the 8-byte CCM IV as IVm (master's 4 bytes) followed
// by IVs (slave's 4 bytes), per the Core spec's encryption annex.
func combineIV(ivm, ivs uint32) [8]byte {
	var iv [8]byte
	binary.LittleEndian.PutUint32(iv[0:4], ivm)
	binary.LittleEndian.PutUint32(iv[4:8], ivs)
	return iv
}

func randomU64() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func randomU32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// EncReqSend is the master-side host API entry point for beginning the
// encryption start procedure.
func (c *Controller) EncReqSend(handle Handle, randVal uint64, ediv uint16, ltk [16]byte) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[handle]
	if !ok {
		return StatusUnknownConnHandle
	}
	if conn.LLCP.Outer.Active() != llcp.ProcNone {
		return StatusProcedureInProgress
	}

	conn.Enc.LTK = ltk
	conn.LLCP.Outer.Begin(llcp.ProcEncryption)
	conn.LLCP.Outer.Enc = llcp.EncState{
		Phase: llcp.EncReqSent,
		Rand:  randVal,
		EDiv:  ediv,
		SKDm:  randomU64(),
		IVm:   randomU32(),
	}
	conn.Enc.SKDm = conn.LLCP.Outer.Enc.SKDm
	conn.Enc.IVm = conn.LLCP.Outer.Enc.IVm
	conn.Enc.PauseRX = true
	conn.Enc.PauseTX = true

	req := llcp.EncReq{Rand: randVal, EDiv: ediv, SKDm: conn.Enc.SKDm, IVm: conn.Enc.IVm}
	if err := c.sendCtrl(conn, llcp.OpEncReq, req.Marshal()); err != nil {
		conn.LLCP.Outer.End()
		return StatusNoResources
	}
	c.metrics.ProceduresStarted.WithLabelValues(llcp.ProcEncryption.String()).Inc()
	return StatusSuccess
}

// rxEncReq is the slave side receiving LL_ENC_REQ: store the master's
// SKDm/IVm and pause RX until the host supplies the LTK via
// StartEncReqSend.
func (c *Controller) rxEncReq(conn *Connection, body []byte) {
	var req llcp.EncReq
	if err := req.Unmarshal(body); err != nil {
		return
	}
	conn.LLCP.Outer.Begin(llcp.ProcEncryption)
	conn.LLCP.Outer.Enc = llcp.EncState{
		Phase: llcp.EncRspWait,
		Rand:  req.Rand,
		EDiv:  req.EDiv,
		SKDm:  req.SKDm,
		IVm:   req.IVm,
	}
	conn.Enc.SKDm = req.SKDm
	conn.Enc.IVm = req.IVm
	conn.Enc.PauseRX = true
	conn.ProcedureExpire = conn.ProcedureReload
}

// StartEncReqSend is the slave-side host API entry point
// ("radio_start_enc_req_send(handle, error_code, ltk)"): supplies the LTK
// the slave needed after receiving ENC_REQ (modelling the out-of-band LTK
// request/response the host performs with its bonding store, which this
// core does not model).
func (c *Controller) StartEncReqSend(handle Handle, errorCode uint8, ltk [16]byte) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[handle]
	if !ok {
		return StatusUnknownConnHandle
	}
	if conn.LLCP.Outer.Active() != llcp.ProcEncryption {
		return StatusDisallowed
	}
	if errorCode != 0 {
		c.rejectInd(conn, errorCode)
		conn.Enc.PauseRX = false
		conn.LLCP.Outer.End()
		return StatusSuccess
	}

	conn.Enc.LTK = ltk
	conn.Enc.SKDs = randomU64()
	conn.Enc.IVs = randomU32()
	conn.LLCP.Outer.Enc.SKDs = conn.Enc.SKDs
	conn.LLCP.Outer.Enc.IVs = conn.Enc.IVs

	key, err := llradio.SessionKey(ltk, conn.Enc.SKDm, conn.Enc.SKDs)
	if err != nil {
		return StatusInvalidParameter
	}
	iv := combineIV(conn.Enc.IVm, conn.Enc.IVs)
	conn.Enc.CCMTx.Key, conn.Enc.CCMRx.Key = key, key
	conn.Enc.CCMTx.IV, conn.Enc.CCMRx.IV = iv, iv
	conn.Enc.CCMTx.Direction = llradio.DirSlaveToMaster
	conn.Enc.CCMRx.Direction = llradio.DirMasterToSlave

	conn.LLCP.Outer.Enc.Phase = llcp.EncStartRspWait
	rsp := llcp.EncRsp{SKDs: conn.Enc.SKDs, IVs: conn.Enc.IVs}
	if err := c.sendCtrl(conn, llcp.OpEncRsp, rsp.Marshal()); err != nil {
		return StatusNoResources
	}
	return StatusSuccess
}

// rxEncRsp is the master side receiving LL_ENC_RSP.
func (c *Controller) rxEncRsp(conn *Connection, body []byte) {
	var rsp llcp.EncRsp
	if err := rsp.Unmarshal(body); err != nil {
		return
	}
	conn.Enc.SKDs = rsp.SKDs
	conn.Enc.IVs = rsp.IVs
	conn.LLCP.Outer.Enc.SKDs = rsp.SKDs
	conn.LLCP.Outer.Enc.IVs = rsp.IVs

	key, err := llradio.SessionKey(conn.Enc.LTK, conn.Enc.SKDm, conn.Enc.SKDs)
	if err != nil {
		return
	}
	iv := combineIV(conn.Enc.IVm, conn.Enc.IVs)
	conn.Enc.CCMTx.Key, conn.Enc.CCMRx.Key = key, key
	conn.Enc.CCMTx.IV, conn.Enc.CCMRx.IV = iv, iv
	conn.Enc.CCMTx.Direction = llradio.DirMasterToSlave
	conn.Enc.CCMRx.Direction = llradio.DirSlaveToMaster

	conn.LLCP.Outer.Enc.Phase = llcp.EncStartReqSent
	_ = c.sendCtrl(conn, llcp.OpStartEncReq, nil)
}

// onStartEncReqAcked fires once the master's START_ENC_REQ has been
// acknowledged on air: from here both directions are live.
func (c *Controller) onStartEncReqAcked(conn *Connection) {
	conn.Enc.CCMTx.Reset()
	conn.Enc.CCMRx.Reset()
	conn.Enc.EncTX = true
	conn.Enc.EncRX = true
	conn.Enc.PauseRX = false
	conn.Enc.PauseTX = false
}

// rxStartEncReq is the slave side receiving (plaintext) LL_START_ENC_REQ.
func (c *Controller) rxStartEncReq(conn *Connection) {
	conn.Enc.CCMTx.Reset()
	conn.Enc.CCMRx.Reset()
	conn.Enc.EncTX = true
	conn.Enc.EncRX = true
	conn.Enc.PauseRX = false
	conn.Enc.PauseTX = false
	_ = c.sendCtrl(conn, llcp.OpStartEncRsp, nil)
}

// rxStartEncRsp is received encrypted by whichever side is still waiting
// for it; both master and slave echo their own START_ENC_RSP once, then end
// the outer procedure once their own echo is acked (onStartEncRspAcked).
func (c *Controller) rxStartEncRsp(conn *Connection) {
	if conn.LLCP.Outer.Enc.Phase == llcp.EncStartRspWait && conn.Role == RoleSlave {
		// slave already sent its own START_ENC_RSP in rxStartEncReq
		return
	}
	_ = c.sendCtrl(conn, llcp.OpStartEncRsp, nil)
}

func (c *Controller) onStartEncRspAcked(conn *Connection) {
	if conn.LLCP.Outer.Active() != llcp.ProcEncryption {
		return
	}
	conn.LLCP.Outer.End()
	conn.ProcedureExpire = 0
	c.rx.push(RxEvent{Kind: RxEncChange, Handle: conn.Handle, Status: StatusSuccess})
	c.metrics.ProceduresDone.WithLabelValues(llcp.ProcEncryption.String()).Inc()
}

// rxPauseEncReq/rxPauseEncRsp/onPauseEncRspAcked implement the abbreviated
// pause/refresh handshake here; a full refresh re-enters
// EncReqSend, which the host triggers explicitly once pause completes.
func (c *Controller) rxPauseEncReq(conn *Connection) {
	conn.Enc.PauseRX = true
	_ = c.sendCtrl(conn, llcp.OpPauseEncRsp, nil)
}

func (c *Controller) rxPauseEncRsp(conn *Connection) {
	conn.Enc.PauseTX = true
}

func (c *Controller) onPauseEncRspAcked(conn *Connection) {
	conn.Enc.PauseTX = true
	conn.LLCP.Outer.Enc.Refresh = true
}

func (c *Controller) rejectInd(conn *Connection, errorCode uint8) {
	r := llcp.RejectInd{ErrorCode: errorCode}
	_ = c.sendCtrl(conn, llcp.OpRejectInd, r.Marshal())
}
