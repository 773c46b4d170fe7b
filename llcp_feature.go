package ll

import "github.com/paypal/go-ll-controller/internal/llcp"

// defaultFeatures is the feature bitmap this controller advertises; bit 0
// is "LE Encryption" and bit 3 is "LE Data Length Extension" per the Core
// spec's LL feature table, the two features this core actually implements.
const defaultFeatures uint64 = 1<<0 | 1<<3

// FeatureReqSend is the host API entry point for requesting the peer's
// supported LL features.
func (c *Controller) FeatureReqSend(handle Handle) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[handle]
	if !ok {
		return StatusUnknownConnHandle
	}
	if conn.LLCP.Outer.Active() != llcp.ProcNone {
		return StatusProcedureInProgress
	}
	conn.LLCP.Outer.Begin(llcp.ProcFeatureExchange)
	conn.LLCP.Outer.Feature = llcp.FeatureState{Requested: true}
	req := llcp.FeaturePDU{Features: defaultFeatures}
	op := llcp.OpFeatureReq
	if conn.Role == RoleSlave {
		op = llcp.OpSlaveFeatureReq
	}
	if err := c.sendCtrl(conn, op, req.Marshal()); err != nil {
		conn.LLCP.Outer.End()
		return StatusNoResources
	}
	conn.ProcedureExpire = conn.ProcedureReload
	c.metrics.ProceduresStarted.WithLabelValues(llcp.ProcFeatureExchange.String()).Inc()
	return StatusSuccess
}

// rxFeatureReq AND-s the peer's features into conn's feature set and
// replies with our own full feature bitmap (defaultFeatures).
func (c *Controller) rxFeatureReq(conn *Connection, body []byte) {
	var req llcp.FeaturePDU
	if err := req.Unmarshal(body); err != nil {
		return
	}
	conn.LLCP.Features &= req.Features
	rsp := llcp.FeaturePDU{Features: defaultFeatures}
	_ = c.sendCtrl(conn, llcp.OpFeatureRsp, rsp.Marshal())
}

func (c *Controller) rxFeatureRsp(conn *Connection, body []byte) {
	var rsp llcp.FeaturePDU
	if err := rsp.Unmarshal(body); err != nil {
		return
	}
	conn.LLCP.Features &= rsp.Features
	if conn.LLCP.Outer.Active() == llcp.ProcFeatureExchange {
		conn.LLCP.Outer.End()
		conn.ProcedureExpire = 0
		c.metrics.ProceduresDone.WithLabelValues(llcp.ProcFeatureExchange.String()).Inc()
	}
}
