package llcp

import "fmt"

// All payloads below are little-endian, bit-exact with Core spec §2.4.2.
// Each type exposes Marshal/Unmarshal the way HCI event-parameter types
// conventionally do, kept inside this package rather than the ll package
// because, unlike the FSM
// logic that drives them, the wire layout never depends on connection
// state.

// ConnectionUpdateReq is LL_CONNECTION_UPDATE_REQ / the accepted half of
// LL_CONNECTION_PARAM_RSP.
type ConnectionUpdateReq struct {
	WinSize   uint8
	WinOffset uint16
	Interval  uint16
	Latency   uint16
	Timeout   uint16
	Instant   uint16
}

func (c ConnectionUpdateReq) Marshal() []byte {
	b := make([]byte, 11)
	b[0] = c.WinSize
	putU16(b[1:3], c.WinOffset)
	putU16(b[3:5], c.Interval)
	putU16(b[5:7], c.Latency)
	putU16(b[7:9], c.Timeout)
	putU16(b[9:11], c.Instant)
	return b
}

func (c *ConnectionUpdateReq) Unmarshal(b []byte) error {
	if len(b) < 11 {
		return fmt.Errorf("llcp: short CONNECTION_UPDATE_REQ")
	}
	c.WinSize = b[0]
	c.WinOffset = getU16(b[1:3])
	c.Interval = getU16(b[3:5])
	c.Latency = getU16(b[5:7])
	c.Timeout = getU16(b[7:9])
	c.Instant = getU16(b[9:11])
	return nil
}

// ConnParamReq is LL_CONNECTION_PARAM_REQ/RSP (they share a wire shape).
type ConnParamReq struct {
	IntervalMin   uint16
	IntervalMax   uint16
	Latency       uint16
	Timeout       uint16
	PreferredSize uint8
	RefConnEvent  uint16
	Offset0       uint16
	Offset1       uint16
	Offset2       uint16
	Offset3       uint16
	Offset4       uint16
	Offset5       uint16
}

func (c ConnParamReq) Marshal() []byte {
	b := make([]byte, 23)
	putU16(b[0:2], c.IntervalMin)
	putU16(b[2:4], c.IntervalMax)
	putU16(b[4:6], c.Latency)
	putU16(b[6:8], c.Timeout)
	b[8] = c.PreferredSize
	putU16(b[9:11], c.RefConnEvent)
	putU16(b[11:13], c.Offset0)
	putU16(b[13:15], c.Offset1)
	putU16(b[15:17], c.Offset2)
	putU16(b[17:19], c.Offset3)
	putU16(b[19:21], c.Offset4)
	putU16(b[21:23], c.Offset5)
	return b
}

func (c *ConnParamReq) Unmarshal(b []byte) error {
	if len(b) < 23 {
		return fmt.Errorf("llcp: short CONN_PARAM_REQ/RSP")
	}
	c.IntervalMin = getU16(b[0:2])
	c.IntervalMax = getU16(b[2:4])
	c.Latency = getU16(b[4:6])
	c.Timeout = getU16(b[6:8])
	c.PreferredSize = b[8]
	c.RefConnEvent = getU16(b[9:11])
	c.Offset0 = getU16(b[11:13])
	c.Offset1 = getU16(b[13:15])
	c.Offset2 = getU16(b[15:17])
	c.Offset3 = getU16(b[17:19])
	c.Offset4 = getU16(b[19:21])
	c.Offset5 = getU16(b[21:23])
	return nil
}

// ChannelMapReq is LL_CHANNEL_MAP_REQ.
type ChannelMapReq struct {
	Map     [5]byte
	Instant uint16
}

func (c ChannelMapReq) Marshal() []byte {
	b := make([]byte, 7)
	copy(b[0:5], c.Map[:])
	putU16(b[5:7], c.Instant)
	return b
}

func (c *ChannelMapReq) Unmarshal(b []byte) error {
	if len(b) < 7 {
		return fmt.Errorf("llcp: short CHANNEL_MAP_REQ")
	}
	copy(c.Map[:], b[0:5])
	c.Instant = getU16(b[5:7])
	return nil
}

// TerminateInd is LL_TERMINATE_IND; ErrorCode is the Core spec status code
// that is remapped on the peer side.
type TerminateInd struct {
	ErrorCode uint8
}

func (t TerminateInd) Marshal() []byte      { return []byte{t.ErrorCode} }
func (t *TerminateInd) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return fmt.Errorf("llcp: short TERMINATE_IND")
	}
	t.ErrorCode = b[0]
	return nil
}

// EncReq is LL_ENC_REQ.
type EncReq struct {
	Rand uint64
	EDiv uint16
	SKDm uint64
	IVm  uint32
}

func (e EncReq) Marshal() []byte {
	b := make([]byte, 22)
	putU64(b[0:8], e.Rand)
	putU16(b[8:10], e.EDiv)
	putU64(b[10:18], e.SKDm)
	putU32(b[18:22], e.IVm)
	return b
}

func (e *EncReq) Unmarshal(b []byte) error {
	if len(b) < 22 {
		return fmt.Errorf("llcp: short ENC_REQ")
	}
	e.Rand = getU64(b[0:8])
	e.EDiv = getU16(b[8:10])
	e.SKDm = getU64(b[10:18])
	e.IVm = getU32(b[18:22])
	return nil
}

// EncRsp is LL_ENC_RSP.
type EncRsp struct {
	SKDs uint64
	IVs  uint32
}

func (e EncRsp) Marshal() []byte {
	b := make([]byte, 12)
	putU64(b[0:8], e.SKDs)
	putU32(b[8:12], e.IVs)
	return b
}

func (e *EncRsp) Unmarshal(b []byte) error {
	if len(b) < 12 {
		return fmt.Errorf("llcp: short ENC_RSP")
	}
	e.SKDs = getU64(b[0:8])
	e.IVs = getU32(b[8:12])
	return nil
}

// FeatureReq/FeatureRsp both carry an 8-byte feature bitmap (LL_FEATURE_REQ,
// LL_FEATURE_RSP, LL_SLAVE_FEATURE_REQ share this shape).
type FeaturePDU struct {
	Features uint64
}

func (f FeaturePDU) Marshal() []byte {
	b := make([]byte, 8)
	putU64(b, f.Features)
	return b
}

func (f *FeaturePDU) Unmarshal(b []byte) error {
	if len(b) < 8 {
		return fmt.Errorf("llcp: short FEATURE pdu")
	}
	f.Features = getU64(b)
	return nil
}

// VersionInd is LL_VERSION_IND.
type VersionInd struct {
	VersNr   uint8
	CompID   uint16
	SubVersNr uint16
}

func (v VersionInd) Marshal() []byte {
	b := make([]byte, 5)
	b[0] = v.VersNr
	putU16(b[1:3], v.CompID)
	putU16(b[3:5], v.SubVersNr)
	return b
}

func (v *VersionInd) Unmarshal(b []byte) error {
	if len(b) < 5 {
		return fmt.Errorf("llcp: short VERSION_IND")
	}
	v.VersNr = b[0]
	v.CompID = getU16(b[1:3])
	v.SubVersNr = getU16(b[3:5])
	return nil
}

// RejectInd is LL_REJECT_IND.
type RejectInd struct {
	ErrorCode uint8
}

func (r RejectInd) Marshal() []byte { return []byte{r.ErrorCode} }
func (r *RejectInd) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return fmt.Errorf("llcp: short REJECT_IND")
	}
	r.ErrorCode = b[0]
	return nil
}

// RejectIndExt is LL_REJECT_IND_EXT, naming which opcode it rejects.
type RejectIndExt struct {
	RejectOpcode Opcode
	ErrorCode    uint8
}

func (r RejectIndExt) Marshal() []byte { return []byte{byte(r.RejectOpcode), r.ErrorCode} }
func (r *RejectIndExt) Unmarshal(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("llcp: short REJECT_IND_EXT")
	}
	r.RejectOpcode = Opcode(b[0])
	r.ErrorCode = b[1]
	return nil
}

// UnknownRsp is LL_UNKNOWN_RSP, naming the opcode we didn't understand.
type UnknownRsp struct {
	UnknownType Opcode
}

func (u UnknownRsp) Marshal() []byte { return []byte{byte(u.UnknownType)} }
func (u *UnknownRsp) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return fmt.Errorf("llcp: short UNKNOWN_RSP")
	}
	u.UnknownType = Opcode(b[0])
	return nil
}

// LengthReq/LengthRsp share a wire shape (LL_LENGTH_REQ, LL_LENGTH_RSP).
type LengthPDU struct {
	MaxRxOctets uint16
	MaxRxTime   uint16
	MaxTxOctets uint16
	MaxTxTime   uint16
}

func (l LengthPDU) Marshal() []byte {
	b := make([]byte, 8)
	putU16(b[0:2], l.MaxRxOctets)
	putU16(b[2:4], l.MaxRxTime)
	putU16(b[4:6], l.MaxTxOctets)
	putU16(b[6:8], l.MaxTxTime)
	return b
}

func (l *LengthPDU) Unmarshal(b []byte) error {
	if len(b) < 8 {
		return fmt.Errorf("llcp: short LENGTH pdu")
	}
	l.MaxRxOctets = getU16(b[0:2])
	l.MaxRxTime = getU16(b[2:4])
	l.MaxTxOctets = getU16(b[4:6])
	l.MaxTxTime = getU16(b[6:8])
	return nil
}

func putU16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func getU16(b []byte) uint16    { return uint16(b[0]) | uint16(b[1])<<8 }

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
