// Package simradio is a simulated implementation of internal/radio.Radio
// used by tests and cmd/llsim. It does not touch any hardware: TimerStart
// advances a monotonic counter, SwitchCompleteAndTx deposits the TX buffer
// on an in-memory Link, and the paired simradio on the "other side" takes
// it in its SwitchCompleteAndRx.
//
// This mirrors the role a thin io.ReadWriteCloser wrapper around a real
// fd would play for a Linux HCI socket: here the same shape of facade
// wraps an in-process channel pair instead of a socket, since the
// radio ISR boundary this core drives is explicitly an external
// collaborator.
package simradio

import (
	"sync"
	"sync/atomic"

	"github.com/paypal/go-ll-controller/internal/radio"
)

// Link is a bidirectional in-memory air interface connecting two Radios.
// A packet one side sends in SwitchCompleteAndTx is picked up by the other
// side's next SwitchCompleteAndRx; both are driven explicitly by the
// controllers the test (or cmd/llsim) services, not by goroutines, so
// connection event tests stay deterministic.
type Link struct {
	mu      sync.Mutex
	aToB    []byte
	bToA    []byte
	lost    map[string]bool // keys "a->b" or "b->a", dropped once then cleared
	clock   uint64
	crcOK   bool
	rssiDbm int8
}

// NewLink creates a Link with CRC validity defaulted to true and RSSI -40dBm
// (typical close-range reading), both overridable via SetCRCValid/SetRSSI
// for fault-injection tests.
func NewLink() *Link {
	return &Link{lost: map[string]bool{}, crcOK: true, rssiDbm: -40}
}

func (l *Link) SetCRCValid(ok bool) { l.mu.Lock(); l.crcOK = ok; l.mu.Unlock() }
func (l *Link) SetRSSI(dbm int8)    { l.mu.Lock(); l.rssiDbm = dbm; l.mu.Unlock() }

// DropNext drops the next packet crossing in the given direction, to
// simulate a missed anchor / CRC error without corrupting the byte stream.
func (l *Link) DropNext(aToB bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if aToB {
		l.lost["a->b"] = true
	} else {
		l.lost["b->a"] = true
	}
}

// Radio is a simradio.Radio bound to one end ("A" or "B") of a Link.
type Radio struct {
	link    *Link
	isA     bool
	txBuf   []byte
	rxBuf   []byte
	aaSet   uint32
	phy     uint8
	chan_   uint8
	done    bool
	ready   bool
	nowUs   uint64
	lastAA  uint32
	ccmDone bool
	ccmOK   bool
	ccmDir  radio.Direction
}

// New returns a Radio bound to side isA of link.
func New(link *Link, isA bool) *Radio {
	return &Radio{link: link, isA: isA, ready: true}
}

func (r *Radio) Reset() error                  { r.done, r.ready = false, true; return nil }
func (r *Radio) PHYSet(phy uint8) error         { r.phy = phy; return nil }
func (r *Radio) TxPowerSet(dbm int8) error      { return nil }
func (r *Radio) TIFSSet(us uint32)              {}
func (r *Radio) AccessAddressSet(aa uint32)     { r.aaSet = aa }
func (r *Radio) CRCConfigure(poly, init uint32) {}
func (r *Radio) PacketConfigure(phy, s1 uint8, maxLen uint16) {}
func (r *Radio) WhitenIVSet(channel uint8)      {}
func (r *Radio) FreqChannelSet(rfChan uint8)    { r.chan_ = rfChan }

func (r *Radio) PacketTxSet(buf []byte) { r.txBuf = buf }
func (r *Radio) PacketRxSet(buf []byte) { r.rxBuf = buf }

func (r *Radio) SwitchCompleteAndTx() {
	r.link.mu.Lock()
	defer r.link.mu.Unlock()
	dir := "a->b"
	if !r.isA {
		dir = "b->a"
	}
	if r.link.lost[dir] {
		delete(r.link.lost, dir)
		r.done = true
		return
	}
	cp := append([]byte(nil), r.txBuf...)
	if r.isA {
		r.link.aToB = cp
	} else {
		r.link.bToA = cp
	}
	r.done = true
}

func (r *Radio) SwitchCompleteAndRx() {
	r.link.mu.Lock()
	defer r.link.mu.Unlock()
	var in []byte
	if r.isA {
		in = r.link.bToA
		r.link.bToA = nil
	} else {
		in = r.link.aToB
		r.link.aToB = nil
	}
	if in == nil {
		r.done = false
		return
	}
	n := copy(r.rxBuf, in)
	r.rxBuf = r.rxBuf[:n]
	r.lastAA = r.aaSet
	r.done = true
}

func (r *Radio) SwitchCompleteAndDisable() { r.done = true }
func (r *Radio) Disable()                  {}
func (r *Radio) IsDone() bool              { return r.done }
func (r *Radio) IsReady() bool             { return r.ready }
func (r *Radio) IsIdle() bool              { return !r.done }

func (r *Radio) TimerStart(tx bool, anchor, remainder uint32) {
	atomic.AddUint64(&r.nowUs, uint64(remainder))
}
func (r *Radio) TimerAACapture() uint32  { return uint32(atomic.LoadUint64(&r.nowUs)) }
func (r *Radio) TimerHCTOConfigure(us uint32) {}
func (r *Radio) TimerEndCapture() uint32 { return uint32(atomic.LoadUint64(&r.nowUs)) }
func (r *Radio) TimerEndGet() uint32     { return uint32(atomic.LoadUint64(&r.nowUs)) }
func (r *Radio) TimerAAGet() uint32      { return uint32(atomic.LoadUint64(&r.nowUs)) }
func (r *Radio) TimerStop()              {}

func (r *Radio) CRCIsValid() bool {
	r.link.mu.Lock()
	defer r.link.mu.Unlock()
	return r.link.crcOK
}

func (r *Radio) RSSIGet() int8 {
	r.link.mu.Lock()
	defer r.link.mu.Unlock()
	return r.link.rssiDbm
}

func (r *Radio) CCMRxPacketSet(ctx *radio.CCMContext, buf []byte) { r.ccmDir = ctx.Direction }
func (r *Radio) CCMTxPacketSet(ctx *radio.CCMContext, buf []byte) { r.ccmDir = ctx.Direction }
func (r *Radio) CCMIsDone() bool                                  { return true }
func (r *Radio) CCMMICIsValid() bool                              { return true }

func (r *Radio) ScratchGet() []byte { return make([]byte, 255) }

func (r *Radio) TicksNow() uint32 { return uint32(atomic.LoadUint64(&r.nowUs)) }

// Advance moves the simulated clock forward, used by tests that need
// TicksNow to progress between events without a real timer.
func (r *Radio) Advance(us uint32) {
	atomic.AddUint64(&r.nowUs, uint64(us))
}

var _ radio.Radio = (*Radio)(nil)
