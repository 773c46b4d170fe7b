package ll

import "github.com/paypal/go-ll-controller/internal/llcp"

// pingReqSend starts the authenticated payload ping procedure, used
// internally when the APTO pre-timeout (appto) fires; it is not part of
// the host-facing API since the host only configures APTO, it does not
// trigger individual pings.
func (c *Controller) pingReqSend(conn *Connection) Status {
	if conn.LLCP.Outer.Active() != llcp.ProcNone {
		return StatusProcedureInProgress
	}
	conn.LLCP.Outer.Begin(llcp.ProcPing)
	if err := c.sendCtrl(conn, llcp.OpPingReq, nil); err != nil {
		conn.LLCP.Outer.End()
		return StatusNoResources
	}
	conn.ProcedureExpire = conn.ProcedureReload
	return StatusSuccess
}

func (c *Controller) rxPingReq(conn *Connection) {
	_ = c.sendCtrl(conn, llcp.OpPingRsp, nil)
}

func (c *Controller) rxPingRsp(conn *Connection) {
	if conn.LLCP.Outer.Active() == llcp.ProcPing {
		conn.LLCP.Outer.End()
	}
	conn.ProcedureExpire = 0
	conn.AptoExpire = 0
	conn.ApptoExpire = 0
}
