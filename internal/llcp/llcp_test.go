package llcp

import "testing"

func TestReqAckDeltaStaysWithinOne(t *testing.T) {
	var r ReqAck
	if r.Pending() {
		t.Fatalf("fresh ReqAck reports pending")
	}
	r.Begin()
	if d := r.Delta(); d != 1 {
		t.Errorf("Delta after Begin = %d, want 1", d)
	}
	if !r.Pending() {
		t.Errorf("Pending() = false after Begin")
	}
	r.Complete()
	if d := r.Delta(); d != 0 {
		t.Errorf("Delta after Complete = %d, want 0", d)
	}
	if r.Pending() {
		t.Errorf("Pending() = true after Complete")
	}
}

func TestReqAckBeginPanicsWhilePending(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Begin while pending: expected panic, got none")
		}
	}()
	var r ReqAck
	r.Begin()
	r.Begin()
}

func TestOuterMutexExcludesOtherProcedures(t *testing.T) {
	var o Outer
	o.Begin(ProcConnUpdate)
	if o.Active() != ProcConnUpdate {
		t.Fatalf("Active() = %v, want ProcConnUpdate", o.Active())
	}
	// ChanMap cannot start while ConnUpdate is pending -- a caller that
	// tries anyway hits the same Begin panic as any other collision.
	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("Begin(ProcChanMap) while ConnUpdate pending: expected panic")
			}
		}()
		o.Begin(ProcChanMap)
	}()
	o.End()
	if o.Active() != ProcNone {
		t.Errorf("Active() after End = %v, want ProcNone", o.Active())
	}
}

func TestEffectiveOctets(t *testing.T) {
	if got := EffectiveTx(251, 27); got != 27 {
		t.Errorf("EffectiveTx(251,27) = %d, want 27", got)
	}
	if got := EffectiveTx(27, 251); got != 27 {
		t.Errorf("EffectiveTx(27,251) = %d, want 27", got)
	}
	if got := EffectiveRx(251, 27); got != 27 {
		t.Errorf("EffectiveRx(251,27) = %d, want 27", got)
	}
}

func TestRemapPeerReason(t *testing.T) {
	if got := RemapPeerReason(0x13); got != 0x16 {
		t.Errorf("RemapPeerReason(0x13) = 0x%02X, want 0x16", got)
	}
	if got := RemapPeerReason(0x08); got != 0x08 {
		t.Errorf("RemapPeerReason(0x08) = 0x%02X, want unchanged 0x08", got)
	}
}

func TestConnectionUpdateReqRoundTrip(t *testing.T) {
	want := ConnectionUpdateReq{WinSize: 2, WinOffset: 4, Interval: 24, Latency: 2, Timeout: 400, Instant: 100}
	var got ConnectionUpdateReq
	if err := got.Unmarshal(want.Marshal()); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestLengthPDURoundTrip(t *testing.T) {
	want := LengthPDU{MaxRxOctets: 251, MaxRxTime: 2120, MaxTxOctets: 251, MaxTxTime: 2120}
	var got LengthPDU
	if err := got.Unmarshal(want.Marshal()); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}
