package ll

import (
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/paypal/go-ll-controller/internal/chanmap"
	"github.com/paypal/go-ll-controller/internal/metrics"
	"github.com/paypal/go-ll-controller/internal/pool"
	llradio "github.com/paypal/go-ll-controller/internal/radio"
	"github.com/paypal/go-ll-controller/internal/ticker"
)

// llResponseTimeoutUs is the Core spec's fixed LLCP response timeout (40s),
// used as ProcedureReload for every connection regardless of its interval.
const llResponseTimeoutUs = 40_000_000

// authPayloadTimeoutUs is the default Authenticated Payload Timeout (30s)
// a connection arms AptoReload/ApptoReload against once it starts
// listening for empty PDUs under encryption.
const authPayloadTimeoutUs = 30_000_000

// ConnectionParams carries the parameters a CONNECT_REQ PDU would transport
// on air. Advertising and scanning -- how two devices discover each other
// and exchange that PDU -- are out of scope here: this core
// picks up a connection already described by these parameters, whichever
// role it plays.
type ConnectionParams struct {
	AccessAddress uint32
	CRCInit       uint32
	HopIncrement  uint8
	ChannelMap    chanmap.Map
	Interval      uint16 // 1.25ms units
	Latency       uint16
	Timeout       uint16 // 10ms units
	OwnSCA        uint8
	PeerSCA       uint8
}

// Controller is the single owner of every connection's state, the shared
// pools, and the ticker. Every mutating operation -- radio
// events and host API calls alike -- takes Controller.mu, modelling the
// ISR, worker, and host call contexts of a real BLE controller as one
// mutex-guarded struct rather than real interrupt priorities. The one
// exception is the RX event queue drain (RxGet/RxDequeue), which relies
// on rxQueue's own mutex instead.
type Controller struct {
	mu sync.Mutex

	cfg     Config
	radio   llradio.Radio
	metrics *metrics.Metrics

	conns      map[Handle]*Connection
	nextHandle Handle

	txArena     *pool.TXArena
	rxPool      *pool.RXPool
	flowControl *pool.FlowControl
	ticker      *ticker.Ticker
	gate        ticker.Gate

	rx rxQueue

	hasConnUpd    bool
	connUpdHandle Handle
}

// NewController allocates the pools described by cfg and wires them to the
// given radio facade and metrics sink.
func NewController(cfg Config, r llradio.Radio, m *metrics.Metrics) *Controller {
	if m == nil {
		m = metrics.NewNoop()
	}
	nodeSize := cfg.nodeSize()
	c := &Controller{
		cfg:         cfg,
		radio:       r,
		metrics:     m,
		conns:       map[Handle]*Connection{},
		txArena:     pool.NewTXArena(cfg.TXCtrlCount, cfg.TXDataCount, nodeSize),
		rxPool:      pool.NewRXPool(cfg.RXCount, nodeSize),
		flowControl: pool.NewFlowControl(true),
		gate:        ticker.NewGate(),
	}
	c.ticker = ticker.New(r.TicksNow)
	return c
}

// Reset tears down every connection and re-initialises the pools, mirroring
// radio_init being callable again on an already-running controller.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.conns {
		c.ticker.Stop(c.conns[id].tickerID)
	}
	c.conns = map[Handle]*Connection{}
	c.nextHandle = 0
	c.hasConnUpd = false

	nodeSize := c.cfg.nodeSize()
	c.txArena = pool.NewTXArena(c.cfg.TXCtrlCount, c.cfg.TXDataCount, nodeSize)
	c.rxPool = pool.NewRXPool(c.cfg.RXCount, nodeSize)
	c.flowControl = pool.NewFlowControl(true)
	c.rx = rxQueue{}
}

func (c *Controller) newConnection(role Role, p ConnectionParams) *Connection {
	m := p.ChannelMap
	if m == (chanmap.Map{}) {
		m = chanmap.AllChannels()
	}
	handle := c.nextHandle
	c.nextHandle++

	conn := &Connection{
		Handle:            handle,
		Role:              role,
		TraceID:           xid.New(),
		AccessAddress:     p.AccessAddress,
		CRCInit:           p.CRCInit,
		HopIncrement:      p.HopIncrement,
		ChannelMap:        m,
		DataChannelCount:  uint8(m.Count()),
		ConnIntervalUnits: p.Interval,
		Latency:           p.Latency,
		SupervisionUnits:  p.Timeout,
		LatencyPrepare:    1,
		TXList:            newTXList(),
		tickerID:          int(handle),
	}
	conn.LLCP.Features = defaultFeatures
	conn.LLCP.Length.EffTxOctets = c.cfg.MaxOctets
	conn.LLCP.Length.EffRxOctets = c.cfg.MaxOctets
	conn.SupervisionReload = conn.supervisionTimeoutUs() / conn.connIntervalUs()
	conn.SupervisionExpire = conn.SupervisionReload
	conn.ProcedureReload = llResponseTimeoutUs / conn.connIntervalUs()
	conn.AptoReload = authPayloadTimeoutUs / conn.connIntervalUs()
	if ping := uint32(p.Latency) + 2; ping < conn.AptoReload {
		conn.ApptoReload = conn.AptoReload - ping
	} else {
		conn.ApptoReload = conn.AptoReload
	}
	if role == RoleSlave {
		c.initSlaveTiming(conn, p.OwnSCA, p.PeerSCA)
	}
	return conn
}

// ConnectEnable is the master-side host API entry point for starting to
// drive a connection already established over the air (the CONNECT_REQ
// exchange itself is out of scope; this core picks up from an
// already-negotiated set of connection parameters).
func (c *Controller) ConnectEnable(p ConnectionParams) (Handle, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.conns) >= int(c.cfg.MaxConn) {
		return 0, StatusNoResources
	}
	conn := c.newConnection(RoleMaster, p)
	c.conns[conn.Handle] = conn
	c.armConnection(conn)
	c.metrics.ActiveConnections.Inc()
	c.rx.push(RxEvent{Kind: RxConnectionComplete, Handle: conn.Handle, Status: StatusSuccess})
	return conn.Handle, StatusSuccess
}

// AcceptAsSlave is the slave-side counterpart of ConnectEnable.
func (c *Controller) AcceptAsSlave(p ConnectionParams) (Handle, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.conns) >= int(c.cfg.MaxConn) {
		return 0, StatusNoResources
	}
	conn := c.newConnection(RoleSlave, p)
	c.conns[conn.Handle] = conn
	c.armConnection(conn)
	c.metrics.ActiveConnections.Inc()
	c.rx.push(RxEvent{Kind: RxConnectionComplete, Handle: conn.Handle, Status: StatusSuccess})
	return conn.Handle, StatusSuccess
}

// ServiceTicker lets the next due connection events fire, the way the
// worker/ticker-job priority contexts drive the connection event engine
// forward; callers (cmd/llsim, tests) call it after advancing the radio's
// simulated clock.
func (c *Controller) ServiceTicker() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticker.Expire(c.ticker.TicksNow())
}

// RxGet/RxDequeue are the host API's event queue drain.
func (c *Controller) RxGet() (RxEvent, bool) {
	return c.rx.peek()
}

func (c *Controller) RxDequeue() {
	c.rx.pop()
}

// RxMemRelease returns a data node delivered via an RxData event back to
// the shared RX pool once the host has consumed it.
func (c *Controller) RxMemRelease(nodeIdx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rxPool.Free(nodeIdx)
}

func (c *Controller) RxFCSet(handle Handle, locked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if locked {
		c.flowControl.Lock(handle)
	} else {
		c.flowControl.Unlock(handle)
	}
}

func (c *Controller) RxFCGet(handle Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flowControl.Locked(handle)
}

// TxMemAcquire/TxMemRelease/TxEnqueue are the host API's outbound data
// path: the
// host acquires a data node, writes its payload, then enqueues it on a
// connection's TX list.
func (c *Controller) TxMemAcquire() (int, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.txArena.AllocData()
	if !ok {
		return 0, StatusNoResources
	}
	return idx, StatusSuccess
}

func (c *Controller) TxMemRelease(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txArena.Free(idx)
}

// TxMemWrite validates payload against the pool's hard per-node ceiling,
// not the connection's negotiated EffTxOctets: a payload larger than
// EffTxOctets is legal here and goes out fragmented across events by
// prepareTxPDU/ackHeadTX.
func (c *Controller) TxMemWrite(idx int, payload []byte) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(payload) > int(c.cfg.MaxOctets) {
		return StatusInvalidParameter
	}
	c.txArena.SetBuf(idx, append([]byte(nil), payload...))
	return StatusSuccess
}

func (c *Controller) TxEnqueue(handle Handle, idx int) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[handle]
	if !ok {
		return StatusUnknownConnHandle
	}
	conn.TXList.EnqueueData(c.txArena, idx)
	return StatusSuccess
}

// Disconnect is the host API's explicit teardown request, a thin wrapper
// over TerminateIndSend that passes the caller's reason through
// unchanged.
func (c *Controller) Disconnect(handle Handle, reason TermReason) Status {
	return c.TerminateIndSend(handle, reason)
}

func (c *Controller) connString(h Handle) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[h]
	if !ok {
		return fmt.Sprintf("handle %d: no such connection", h)
	}
	return fmt.Sprintf("handle %d (%s) trace=%s: interval=%dus latency=%d timeout=%dms",
		conn.Handle, conn.Role, conn.TraceID, conn.connIntervalUs(), conn.Latency, conn.SupervisionUnits*10)
}
