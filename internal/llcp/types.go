// Package llcp implements the Link Layer Control Procedure engine: one
// state machine per procedure, an outer req/ack mutex that allows at
// most one "outer" procedure active at a time per connection, and the
// collision/reject rules between procedures.
//
// Procedure state lives in plain exported structs so the ll package's
// Connection can embed them directly: bitfields embedded in integer
// counters for FSM tags become a small struct {phase, type} with explicit
// wrapping arithmetic instead.
package llcp

import "fmt"

// ProcType enumerates the outer LLCP procedures that share the
// llcp_req/llcp_ack mutex. Length and Terminate run independent req/ack
// pairs and are not ProcType values.
type ProcType uint8

const (
	ProcNone ProcType = iota
	ProcConnUpdate
	ProcChanMap
	ProcEncryption
	ProcFeatureExchange
	ProcVersionExchange
	ProcPing
)

func (p ProcType) String() string {
	switch p {
	case ProcNone:
		return "none"
	case ProcConnUpdate:
		return "conn_update"
	case ProcChanMap:
		return "chan_map"
	case ProcEncryption:
		return "encryption"
	case ProcFeatureExchange:
		return "feature_exchange"
	case ProcVersionExchange:
		return "version_exchange"
	case ProcPing:
		return "ping"
	default:
		return fmt.Sprintf("proc(%d)", uint8(p))
	}
}

// ReqAck is the req/ack counter pair pattern used three times per
// connection (outer LLCP, length, terminate): a procedure is active
// whenever Req != Ack, mod 8. Begin/Complete keep the two counters exactly
// one apart, so at most one instance of the procedure is ever in flight.
type ReqAck struct {
	Req uint8
	Ack uint8
}

const reqAckMod = 8

// Pending reports whether a procedure using this counter pair is active.
func (r ReqAck) Pending() bool {
	return r.Req != r.Ack
}

// Begin starts a procedure by advancing Req one step ahead of Ack. It
// panics if a procedure is already pending on this counter pair — callers
// must check Pending first; this is a programming invariant, not a
// recoverable error.
func (r *ReqAck) Begin() {
	if r.Pending() {
		panic("llcp: Begin called while a procedure is already pending")
	}
	r.Req = (r.Req + 1) % reqAckMod
}

// Complete acknowledges the active procedure, bringing Ack level with Req.
func (r *ReqAck) Complete() {
	r.Ack = r.Req
}

// Delta returns (Req-Ack) mod 8, which property 2 requires to
// stay within {0, 1}.
func (r ReqAck) Delta() uint8 {
	return uint8((int(r.Req) - int(r.Ack) + reqAckMod) % reqAckMod)
}
