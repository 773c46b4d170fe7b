package ll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paypal/go-ll-controller/internal/chanmap"
	"github.com/paypal/go-ll-controller/internal/llcp"
	"github.com/paypal/go-ll-controller/internal/metrics"
	"github.com/paypal/go-ll-controller/internal/radio/simradio"
)

// pairedLink wires a master and a slave Controller to each other over an
// in-memory radio link, already connected with default parameters.
type pairedLink struct {
	link   *simradio.Link
	radioA *simradio.Radio
	radioB *simradio.Radio
	master *Controller
	slave  *Controller
	mh, sh Handle
}

func newPairedLink(t *testing.T, params ConnectionParams) *pairedLink {
	t.Helper()
	link := simradio.NewLink()
	radioA := simradio.New(link, true)
	radioB := simradio.New(link, false)

	cfg := DefaultConfig()
	master := NewController(cfg, radioA, metrics.NewNoop())
	slave := NewController(cfg, radioB, metrics.NewNoop())

	mh, status := master.ConnectEnable(params)
	require.Equal(t, StatusSuccess, status)
	sh, status := slave.AcceptAsSlave(params)
	require.Equal(t, StatusSuccess, status)

	return &pairedLink{link: link, radioA: radioA, radioB: radioB, master: master, slave: slave, mh: mh, sh: sh}
}

func defaultParams() ConnectionParams {
	return ConnectionParams{
		AccessAddress: 0x8e89bed6 ^ 0x1, // distinct from the fixed advertising AA
		CRCInit:       0x555555,
		HopIncrement:  7,
		ChannelMap:    chanmap.AllChannels(),
		Interval:      6, // 7.5ms
		Latency:       0,
		Timeout:       100, // 1s
		OwnSCA:        4,
		PeerSCA:       4,
	}
}

// step advances both sides' simulated clocks by one connection interval and
// lets their tickers run.
func (p *pairedLink) step(params ConnectionParams) {
	intervalUs := uint32(params.Interval) * 1250
	p.radioA.Advance(intervalUs)
	p.radioB.Advance(intervalUs)
	p.master.ServiceTicker()
	p.slave.ServiceTicker()
}

// drain collects and dequeues every pending RX event from c, in order.
func drain(c *Controller) []RxEvent {
	var out []RxEvent
	for {
		ev, ok := c.RxGet()
		if !ok {
			return out
		}
		out = append(out, ev)
		if ev.Kind == RxData {
			c.RxMemRelease(ev.NodeIdx)
		}
		c.RxDequeue()
	}
}

// --- S1: empty-PDU keepalive ---

func TestScenarioEmptyPDUKeepalive(t *testing.T) {
	params := defaultParams()
	p := newPairedLink(t, params)

	// ConnectEnable/AcceptAsSlave each already queued one RxConnectionComplete.
	drain(p.master)
	drain(p.slave)

	for i := 0; i < 10; i++ {
		p.step(params)
	}

	events := drain(p.slave)
	for _, ev := range events {
		assert.NotEqual(t, RxData, ev.Kind, "no data should have been enqueued to the host with nothing sent")
	}
}

// --- S3: encryption start ---

func TestScenarioEncryptionStart(t *testing.T) {
	params := defaultParams()
	p := newPairedLink(t, params)
	drain(p.master)
	drain(p.slave)

	var ltk [16]byte
	for i := range ltk {
		ltk[i] = 0xFF
	}

	status := p.master.EncReqSend(p.mh, 0, 0, ltk)
	require.Equal(t, StatusSuccess, status)

	// ENC_REQ on air; slave observes it and wants the host to supply the LTK.
	p.step(params)

	status = p.slave.StartEncReqSend(p.sh, 0, ltk)
	require.Equal(t, StatusSuccess, status)

	// ENC_RSP, START_ENC_REQ, START_ENC_RSP round trips.
	for i := 0; i < 4; i++ {
		p.step(params)
	}

	masterEvents := drain(p.master)
	slaveEvents := drain(p.slave)

	requireEncChange := func(evs []RxEvent) {
		found := false
		for _, ev := range evs {
			if ev.Kind == RxEncChange {
				found = true
				assert.Equal(t, StatusSuccess, ev.Status)
			}
		}
		assert.True(t, found, "expected an RxEncChange event")
	}
	requireEncChange(masterEvents)
	requireEncChange(slaveEvents)

	mConn := p.master.conns[p.mh]
	sConn := p.slave.conns[p.sh]
	require.NotNil(t, mConn)
	require.NotNil(t, sConn)

	assert.Equal(t, mConn.Enc.CCMTx.Key, sConn.Enc.CCMRx.Key, "master TX key must equal slave RX key")
	assert.Equal(t, mConn.Enc.CCMRx.Key, sConn.Enc.CCMTx.Key, "master RX key must equal slave TX key")
	assert.Equal(t, mConn.Enc.CCMTx.IV, sConn.Enc.CCMRx.IV)
	assert.True(t, mConn.Enc.EncTX && mConn.Enc.EncRX)
	assert.True(t, sConn.Enc.EncTX && sConn.Enc.EncRX)
}

// --- S4: length resize ---

func TestScenarioLengthResize(t *testing.T) {
	params := defaultParams()
	p := newPairedLink(t, params)
	drain(p.master)
	drain(p.slave)

	// Both sides raise their configured RX ceiling to 251 before negotiating,
	// the way a host would ahead of requesting DLE.
	require.Equal(t, StatusSuccess, p.master.LengthDefaultSet(251))
	require.Equal(t, StatusSuccess, p.slave.LengthDefaultSet(251))

	status := p.master.LengthReqSend(p.mh, 251)
	require.Equal(t, StatusSuccess, status)

	var masterLenEvent, slaveLenEvent *RxEvent
	for i := 0; i < 6 && (masterLenEvent == nil || slaveLenEvent == nil); i++ {
		p.step(params)
		for _, ev := range drain(p.master) {
			if ev.Kind == RxLengthChange {
				e := ev
				masterLenEvent = &e
			}
		}
		for _, ev := range drain(p.slave) {
			if ev.Kind == RxLengthChange {
				e := ev
				slaveLenEvent = &e
			}
		}
	}

	require.NotNil(t, masterLenEvent, "master should see a length-change event")
	require.NotNil(t, slaveLenEvent, "slave should see a length-change event")
	assert.Equal(t, uint16(251), masterLenEvent.MaxTxOctets)
	assert.Equal(t, uint16(251), masterLenEvent.MaxRxOctets)
	assert.Equal(t, uint16(251), slaveLenEvent.MaxTxOctets)
	assert.Equal(t, uint16(251), slaveLenEvent.MaxRxOctets)

	assert.GreaterOrEqual(t, p.master.rxPool.NodeSize(), 251+2)
	assert.GreaterOrEqual(t, p.slave.rxPool.NodeSize(), 251+2)
}

// --- S5: supervision timeout ---

func TestScenarioSupervisionTimeout(t *testing.T) {
	params := defaultParams()
	params.Timeout = 48 // 480ms, so 64 missed 7.5ms events exhaust it
	p := newPairedLink(t, params)
	drain(p.master)
	drain(p.slave)

	// Drop every packet in both directions so the slave never hears from
	// the master again; the countdown needs one more miss than its reload
	// value before the zero-crossing is observed.
	var gotTerm bool
	for i := 0; i < 70 && !gotTerm; i++ {
		p.link.DropNext(true)
		p.link.DropNext(false)
		p.step(params)
		for _, ev := range drain(p.slave) {
			if ev.Kind == RxTerminate {
				gotTerm = true
				assert.Equal(t, ReasonSupervisionTimeout, ev.Reason)
			}
		}
	}
	assert.True(t, gotTerm, "expected a supervision-timeout termination event")
	_, stillConnected := p.slave.conns[p.sh]
	assert.False(t, stillConnected, "connection slot must be returned once terminated")
}

// --- S2: connection update ---

func TestScenarioConnectionUpdate(t *testing.T) {
	params := defaultParams()
	p := newPairedLink(t, params)
	drain(p.master)
	drain(p.slave)

	status := p.master.ConnUpdate(p.mh, 24, 2, 400) // 30ms, latency 2, 4s
	require.Equal(t, StatusSuccess, status)

	var masterUpd, slaveUpd []RxEvent
	for i := 0; i < 12; i++ {
		p.step(params)
		for _, ev := range drain(p.master) {
			if ev.Kind == RxConnUpdate {
				masterUpd = append(masterUpd, ev)
			}
		}
		for _, ev := range drain(p.slave) {
			if ev.Kind == RxConnUpdate {
				slaveUpd = append(slaveUpd, ev)
			}
		}
	}

	require.Len(t, masterUpd, 1, "master must see exactly one connection-update event")
	require.Len(t, slaveUpd, 1, "slave must see exactly one connection-update event")
	assert.Equal(t, uint16(24), masterUpd[0].Interval)
	assert.Equal(t, uint16(2), masterUpd[0].Latency)
	assert.Equal(t, uint16(400), masterUpd[0].Timeout)
	assert.Equal(t, masterUpd[0].Interval, slaveUpd[0].Interval)
	assert.Equal(t, masterUpd[0].Latency, slaveUpd[0].Latency)
	assert.Equal(t, masterUpd[0].Timeout, slaveUpd[0].Timeout)

	assert.False(t, p.master.hasConnUpd, "conn_upd mutex must be released once the instant is applied")
}

// --- S6: CONN_PARAM_REQ collision with an in-progress update elsewhere ---

func TestScenarioConnParamReqCollision(t *testing.T) {
	params := defaultParams()
	p := newPairedLink(t, params)
	drain(p.master)
	drain(p.slave)

	// A second connection on the master controller, still unconnected on
	// the slave side -- collision only needs the conn_upd mutex held.
	secondParams := params
	secondParams.AccessAddress = params.AccessAddress ^ 0x2
	h2, status := p.master.ConnectEnable(secondParams)
	require.Equal(t, StatusSuccess, status)
	drain(p.master)

	// Connection A (p.mh) starts a connection update, taking the global
	// conn_upd mutex.
	status = p.master.ConnUpdate(p.mh, 48, 0, 200)
	require.Equal(t, StatusSuccess, status)
	assert.True(t, p.master.hasConnUpd)
	assert.Equal(t, p.mh, p.master.connUpdHandle)

	// A peer-initiated CONN_PARAM_REQ against connection B must be rejected
	// without touching A's in-progress update.
	connB := p.master.conns[h2]
	require.NotNil(t, connB)
	req := llcp.ConnParamReq{IntervalMin: 30, IntervalMax: 30, Latency: 0, Timeout: 200}
	p.master.rxConnParamReq(connB, req.Marshal())

	assert.Equal(t, p.mh, p.master.connUpdHandle, "collision handling must not touch connection A's mutex ownership")
}

// --- S7: TX fragmentation across EffTxOctets ---

func TestScenarioTxFragmentation(t *testing.T) {
	params := defaultParams()
	p := newPairedLink(t, params)
	drain(p.master)
	drain(p.slave)

	// Pin the negotiated effective TX size well below the payload so a
	// single SDU must go out as several LLIDDataStart/LLIDDataContinue
	// fragments.
	masterConn := p.master.conns[p.mh]
	require.NotNil(t, masterConn)
	masterConn.LLCP.Length.EffTxOctets = 10

	payload := make([]byte, 25)
	for i := range payload {
		payload[i] = byte(i)
	}

	idx, status := p.master.TxMemAcquire()
	require.Equal(t, StatusSuccess, status)
	require.Equal(t, StatusSuccess, p.master.TxMemWrite(idx, payload))
	require.Equal(t, StatusSuccess, p.master.TxEnqueue(p.mh, idx))

	var got []byte
	for i := 0; i < 20 && len(got) < len(payload); i++ {
		p.step(params)
		for _, ev := range drain(p.slave) {
			if ev.Kind == RxData {
				got = append(got, p.slave.rxPool.Buf(ev.NodeIdx)...)
			}
		}
	}

	assert.Equal(t, payload, got, "reassembled fragments must equal the original SDU")
	assert.Equal(t, 0, masterConn.TXList.HeadOffset, "head must be fully released once every fragment is acked")
}
