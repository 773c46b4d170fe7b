package llcp

// ConnUpdatePhase is the connection-update/conn-param-request state machine
// here.
type ConnUpdatePhase uint8

const (
	CUIdle ConnUpdatePhase = iota
	CUInitiate                // master, self-initiated
	CUReq                     // slave, or master using conn-param-req
	CURspWait
	CUAppWait // host must approve peer-requested parameters
	CURsp     // send response
	CUInProg  // instant scheduled, waiting for it to arrive
)

// ConnUpdateState holds one connection's connection-update sub-state.
type ConnUpdateState struct {
	Phase      ConnUpdatePhase
	WinSize    uint8
	WinOffset  uint16
	Interval   uint16
	Latency    uint16
	Timeout    uint16
	Instant    uint16
	IsConnParamReq bool // true if driven by CONN_PARAM_REQ rather than CONNECTION_UPDATE_REQ
}

// ChanMapState holds one connection's channel-map-update sub-state.
type ChanMapState struct {
	Pending bool
	Map     [5]byte
	Instant uint16
}

// EncPhase is the encryption start/pause/refresh state machine.
type EncPhase uint8

const (
	EncIdle EncPhase = iota
	EncReqSent        // master: ENC_REQ sent, awaiting ENC_RSP
	EncRspWait         // slave: ENC_REQ received, deciding FAST_ENC vs host LTK
	EncStartReqSent   // master: START_ENC_REQ sent (in ISR ack), awaiting START_ENC_RSP
	EncStartRspWait   // slave: awaiting START_ENC_REQ then sending START_ENC_RSP
	EncPauseReqSent
	EncRefreshing
)

// EncState holds one connection's encryption-procedure sub-state (the
// session-key material itself lives in ll.Connection.Enc here,
// since it must survive independent of which procedure touched it last).
type EncState struct {
	Phase    EncPhase
	Rand     uint64
	EDiv     uint16
	SKDm     uint64
	IVm      uint32
	SKDs     uint64
	IVs      uint32
	Refresh  bool
	FastEnc  bool // FAST_ENC_PROCEDURE option, a runtime field no code path reads
}

// FeatureState holds the (single round-trip) feature-exchange sub-state.
type FeatureState struct {
	Requested bool
}

// VersionState caches the peer's LL version after the first exchange so
// later requests short-circuit to a local response.
type VersionState struct {
	Sent    bool
	Cached  bool
	PeerVer uint8
	PeerComp uint16
	PeerSub uint16
}

// PingState is the authenticated-payload ping procedure's sub-state; it
// has no persistent fields beyond ReqAck since a ping exchange carries no
// payload.
type PingState struct{}

// LengthPhase is the Data Length Extension mini-FSM here.
type LengthPhase uint8

const (
	LengthIdle LengthPhase = iota
	LengthReqPhase
	LengthAckWait
	LengthRspWait
	LengthResize
)

// LengthState holds the length-update (DLE) sub-state, including the
// candidate octet counts proposed before they become effective.
type LengthState struct {
	ReqAck
	Phase         LengthPhase
	CandRxOctets  uint16
	CandTxOctets  uint16
	EffRxOctets   uint16
	EffTxOctets   uint16
}

// EffectiveTx computes the "effective TX octets" rule here:
// min(peer max rx octets, our default tx octets).
func EffectiveTx(peerMaxRxOctets, ourDefaultTxOctets uint16) uint16 {
	if peerMaxRxOctets < ourDefaultTxOctets {
		return peerMaxRxOctets
	}
	return ourDefaultTxOctets
}

// EffectiveRx computes the "effective RX octets" rule: min(peer max tx
// octets, our RX_MAX).
func EffectiveRx(peerMaxTxOctets, rxMax uint16) uint16 {
	if peerMaxTxOctets < rxMax {
		return peerMaxTxOctets
	}
	return rxMax
}

// TerminateState is the termination sub-state: an
// independent req/ack pair plus own/peer reason fields. There is no
// pre-allocated RX node: the termination is reported to the host as an
// RxTerminate event that ll's closeConnection pushes onto the RX queue.
type TerminateState struct {
	ReqAck
	OwnReason  uint8
	PeerReason uint8
	PeerSet    bool
}

// RemapPeerReason applies remap: a peer-reported 0x13
// ("remote user terminated") becomes 0x16 ("connection terminated by
// local host") when surfaced to our host, because the Core spec reserves
// 0x13 for the initiating side's own reason code.
func RemapPeerReason(reason uint8) uint8 {
	if reason == 0x13 {
		return 0x16
	}
	return reason
}
