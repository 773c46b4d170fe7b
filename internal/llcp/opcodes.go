package llcp

// Opcode is an LLCP control opcode, bit-exact with Core spec §2.4.2.
type Opcode uint8

const (
	OpConnectionUpdateReq Opcode = 0x00
	OpChannelMapReq       Opcode = 0x01
	OpTerminateInd        Opcode = 0x02
	OpEncReq              Opcode = 0x03
	OpEncRsp              Opcode = 0x04
	OpStartEncReq         Opcode = 0x05
	OpStartEncRsp         Opcode = 0x06
	OpUnknownRsp          Opcode = 0x07
	OpFeatureReq          Opcode = 0x08
	OpFeatureRsp          Opcode = 0x09
	OpPauseEncReq         Opcode = 0x0A
	OpPauseEncRsp         Opcode = 0x0B
	OpVersionInd          Opcode = 0x0C
	OpRejectInd           Opcode = 0x0D
	OpSlaveFeatureReq     Opcode = 0x0E
	OpConnParamReq        Opcode = 0x0F
	OpConnParamRsp        Opcode = 0x10
	OpRejectIndExt        Opcode = 0x11
	OpPingReq             Opcode = 0x12
	OpPingRsp             Opcode = 0x13
	OpLengthReq           Opcode = 0x14
	OpLengthRsp           Opcode = 0x15
)

// PDU is a decoded LLCP control PDU: opcode plus payload, with the
// 2-byte LLID/header framing handled one layer up (ll.pdu.go), keeping
// event-header framing separate from per-event-type payload structs.
type PDU struct {
	Op      Opcode
	Payload []byte
}

// RejectReason is the single error-code byte carried by REJECT_IND and
// REJECT_IND_EXT, using the Core spec's standard error code space (the
// same space as termination reasons).
type RejectReason uint8

const (
	ReasonSuccess                  RejectReason = 0x00
	ReasonPinOrKeyMissing          RejectReason = 0x06
	ReasonUnsupportedFeature       RejectReason = 0x1A
	ReasonDifferentTxRxCoreVersion RejectReason = 0x1D
	ReasonLLResponseTimeout        RejectReason = 0x22
	ReasonLMPPDUNotAllowed         RejectReason = 0x20
	ReasonInstantPassed            RejectReason = 0x28
)
