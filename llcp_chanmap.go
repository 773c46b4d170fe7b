package ll

import (
	"github.com/paypal/go-ll-controller/internal/chanmap"
	"github.com/paypal/go-ll-controller/internal/llcp"
)

// ChanMapUpdate is the host API entry point for requesting a new channel
// map. It is rejected while a connection-update procedure is already
// pending on this connection.
func (c *Controller) ChanMapUpdate(handle Handle, m chanmap.Map) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[handle]
	if !ok {
		return StatusUnknownConnHandle
	}
	if conn.LLCP.Outer.Active() != llcp.ProcNone {
		return StatusProcedureInProgress
	}

	conn.LLCP.Outer.Begin(llcp.ProcChanMap)
	conn.LLCP.Outer.ChanMap = llcp.ChanMapState{
		Pending: true,
		Map:     m,
		Instant: conn.EventCounter + conn.LatencyPrepare + 6,
	}
	req := llcp.ChannelMapReq{Map: m, Instant: conn.LLCP.Outer.ChanMap.Instant}
	if err := c.sendCtrl(conn, llcp.OpChannelMapReq, req.Marshal()); err != nil {
		conn.LLCP.Outer.End()
		return StatusNoResources
	}
	c.metrics.ProceduresStarted.WithLabelValues(llcp.ProcChanMap.String()).Inc()
	return StatusSuccess
}

// ChanMapGet is the host API's "radio_chm_get": the currently active map.
func (c *Controller) ChanMapGet(handle Handle) (chanmap.Map, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[handle]
	if !ok {
		return chanmap.Map{}, StatusUnknownConnHandle
	}
	return conn.ChannelMap, StatusSuccess
}

// rxChannelMapReq handles the slave side receiving LL_CHANNEL_MAP_REQ.
func (c *Controller) rxChannelMapReq(conn *Connection, body []byte) {
	var req llcp.ChannelMapReq
	if err := req.Unmarshal(body); err != nil {
		return
	}
	conn.LLCP.Outer.Begin(llcp.ProcChanMap)
	conn.LLCP.Outer.ChanMap = llcp.ChanMapState{
		Pending: true,
		Map:     req.Map,
		Instant: req.Instant,
	}
}

// applyChanMapAtInstant swaps in the pending channel map once its instant
// has been reached and recomputes data_channel_count = popcount(map).
func (c *Controller) applyChanMapAtInstant(conn *Connection) bool {
	cm := &conn.LLCP.Outer.ChanMap
	if conn.LLCP.Outer.Active() != llcp.ProcChanMap || !cm.Pending {
		return false
	}
	if !instantReached(conn.EventCounter, cm.Instant) {
		return false
	}
	conn.ChannelMap = chanmap.Map(cm.Map)
	conn.DataChannelCount = uint8(conn.ChannelMap.Count())
	cm.Pending = false
	conn.LLCP.Outer.End()
	c.metrics.ProceduresDone.WithLabelValues(llcp.ProcChanMap.String()).Inc()
	return true
}
