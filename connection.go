package ll

import (
	"github.com/blang/semver"
	"github.com/rs/xid"

	"github.com/paypal/go-ll-controller/internal/chanmap"
	"github.com/paypal/go-ll-controller/internal/llcp"
	"github.com/paypal/go-ll-controller/internal/radio"
)

// Role is the connection's Link Layer role.
type Role uint8

const (
	RoleMaster Role = iota
	RoleSlave
)

func (r Role) String() string {
	if r == RoleMaster {
		return "master"
	}
	return "slave"
}

// eventState is the radio ISR's per-event FSM state.
type eventState uint8

const (
	stateTX eventState = iota
	stateRX
	stateClose
	stateStop
	stateAbort
)

// slaveState is the slave-only sub-state: window widening and resync.
type slaveState struct {
	SCA                      uint8
	WindowWideningPeriodicUs uint32
	WindowWideningEventUs    uint32
	WindowWideningMaxUs      uint32
	WindowWideningPrepareUs  uint32
	WindowSizeEventUs        uint32
	WindowSizePrepareUs      uint32
	TicksToOffset            uint32
	Force                    uint32 // random bitmask used to break deadlocks on missed anchors
}

// masterState is the master-only sub-state.
type masterState struct {
	ConnectExpire uint16
}

// encState is the connection's encryption sub-state: flags, session-key
// material, and the two CCM contexts. Procedure bookkeeping (which PDU is
// pending next) lives in llcp.EncState, not here -- this struct only holds
// what must survive independent of which procedure last touched it.
type encState struct {
	EncRX   bool
	EncTX   bool
	PauseRX bool
	PauseTX bool
	Refresh bool

	LTK  [16]byte
	SKDm uint64
	SKDs uint64
	IVm  uint32
	IVs  uint32

	CCMTx radio.CCMContext
	CCMRx radio.CCMContext
}

// versionInfo is the cached peer LL version: represented as a semver.Version purely so that
// "peer version >= X" feature gating reads as an ordinary comparison.
type versionInfo struct {
	Cached bool
	Peer   semver.Version
}

// llcpState bundles the outer procedure mutex plus the independent length
// and terminate req/ack pairs.
type llcpState struct {
	Outer     llcp.Outer
	Length    llcp.LengthState
	Terminate llcp.TerminateState
	Features  uint64
	Version   versionInfo
}

// Connection is the central state object of the Link Layer core,
// identified by a small integer Handle assigned on creation.
type Connection struct {
	Handle  Handle
	Role    Role
	TraceID xid.ID // globally-sortable correlation id for logs/metrics, stable for the connection's lifetime

	AccessAddress    uint32
	CRCInit          uint32
	HopIncrement     uint8
	ChannelMap       chanmap.Map
	DataChannelCount uint8
	DataChannelUse   uint8

	ConnIntervalUnits uint16 // 1.25ms units
	Latency           uint16
	SupervisionUnits  uint16 // 10ms units, per Core spec CONNECT_REQ encoding

	SN   uint8
	NESN uint8

	EventCounter   uint16
	LatencyPrepare uint16
	LatencyEvent   uint16

	SupervisionExpire uint32
	SupervisionReload uint32
	ProcedureExpire   uint32
	ProcedureReload   uint32
	AptoExpire        uint32
	AptoReload        uint32
	ApptoExpire       uint32
	ApptoReload       uint32

	Slave  slaveState
	Master masterState
	Enc    encState
	LLCP   llcpState

	TXList txList

	state      eventState
	tickerID   int
	PeerRSSI   int8
	rssiCountdown int
}

// Handle is a Link Layer connection handle.
type Handle = uint16

// connIntervalUs returns the connection interval in microseconds.
func (c *Connection) connIntervalUs() uint32 {
	return uint32(c.ConnIntervalUnits) * 1250
}

// supervisionTimeoutUs returns the supervision timeout in microseconds.
func (c *Connection) supervisionTimeoutUs() uint32 {
	return uint32(c.SupervisionUnits) * 10000
}

// rfChannel advances DataChannelUse per the standard selection algorithm
// and returns the radio frequency channel to program.
func (c *Connection) rfChannel() uint8 {
	next := chanmap.Select(c.DataChannelUse, c.HopIncrement, c.LatencyEvent, c.ChannelMap, c.DataChannelCount)
	c.DataChannelUse = next
	rf, err := chanmap.RFChannel(next)
	if err != nil {
		return 0
	}
	return rf
}
