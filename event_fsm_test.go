package ll

import (
	"testing"

	"github.com/paypal/go-ll-controller/internal/llcp"
	"github.com/paypal/go-ll-controller/internal/metrics"
	"github.com/paypal/go-ll-controller/internal/pool"
)

func TestTickProcedureAndAuthProcedureTimeout(t *testing.T) {
	c := &Controller{metrics: metrics.NewNoop()}
	conn := &Connection{ProcedureExpire: 1}

	res := c.tickProcedureAndAuth(conn)
	if !res.closed || res.reason != ReasonLLResponseTimeout {
		t.Fatalf("expected closed with ReasonLLResponseTimeout, got %+v", res)
	}
	if conn.ProcedureExpire != 0 {
		t.Fatalf("ProcedureExpire must be left at 0, got %d", conn.ProcedureExpire)
	}
}

func TestTickProcedureAndAuthDecrementsWithoutFiring(t *testing.T) {
	c := &Controller{metrics: metrics.NewNoop()}
	conn := &Connection{ProcedureExpire: 5, AptoExpire: 3, ApptoExpire: 3}

	res := c.tickProcedureAndAuth(conn)
	if res.closed {
		t.Fatalf("must not close while counters are still above 1, got %+v", res)
	}
	if conn.ProcedureExpire != 4 || conn.AptoExpire != 2 || conn.ApptoExpire != 2 {
		t.Fatalf("expected all three counters to decrement by one, got proc=%d apto=%d appto=%d",
			conn.ProcedureExpire, conn.AptoExpire, conn.ApptoExpire)
	}
}

func TestTickProcedureAndAuthAptoNotifiesHost(t *testing.T) {
	c := &Controller{metrics: metrics.NewNoop()}
	conn := &Connection{Handle: 7, AptoExpire: 1}

	c.tickProcedureAndAuth(conn)

	ev, ok := c.rx.peek()
	if !ok || ev.Kind != RxAuthPayloadTimeout || ev.Handle != 7 {
		t.Fatalf("expected an RxAuthPayloadTimeout event for handle 7, got ok=%v ev=%+v", ok, ev)
	}
	if conn.AptoExpire != 0 {
		t.Fatalf("AptoExpire must be left at 0 after firing, got %d", conn.AptoExpire)
	}
}

func TestTickProcedureAndAuthApptoPingsWhenIdle(t *testing.T) {
	c := &Controller{metrics: metrics.NewNoop(), conns: map[Handle]*Connection{}, txArena: pool.NewTXArena(2, 2, 32)}
	conn := &Connection{Handle: 1, ApptoExpire: 1, ProcedureReload: 40, TXList: newTXList()}
	c.conns[1] = conn

	c.tickProcedureAndAuth(conn)

	if conn.LLCP.Outer.Active() != llcp.ProcPing {
		t.Fatalf("expected a spontaneous ping procedure to start, got active=%v", conn.LLCP.Outer.Active())
	}
	if conn.ProcedureExpire != conn.ProcedureReload {
		t.Fatalf("pingReqSend must arm ProcedureExpire, got %d want %d", conn.ProcedureExpire, conn.ProcedureReload)
	}
}

func TestTickProcedureAndAuthApptoSkipsPingDuringOtherProcedure(t *testing.T) {
	c := &Controller{metrics: metrics.NewNoop(), conns: map[Handle]*Connection{}}
	conn := &Connection{Handle: 1, ApptoExpire: 1}
	conn.LLCP.Outer.Begin(llcp.ProcConnUpdate)
	c.conns[1] = conn

	c.tickProcedureAndAuth(conn)

	if conn.LLCP.Outer.Active() != llcp.ProcConnUpdate {
		t.Fatalf("an already-running procedure must not be displaced by a spontaneous ping, got %v", conn.LLCP.Outer.Active())
	}
}

func TestTickAuthPayloadArmsOnlyWhenDisarmed(t *testing.T) {
	c := &Controller{}
	conn := &Connection{AptoReload: 100, ApptoReload: 90}
	conn.Enc.EncRX = true

	c.tickAuthPayload(conn, false)
	if conn.AptoExpire != 100 || conn.ApptoExpire != 90 {
		t.Fatalf("empty PDU under encryption must arm both timers, got apto=%d appto=%d", conn.AptoExpire, conn.ApptoExpire)
	}

	conn.AptoExpire = 50
	conn.ApptoExpire = 40
	c.tickAuthPayload(conn, false)
	if conn.AptoExpire != 50 || conn.ApptoExpire != 40 {
		t.Fatalf("an already-armed timer must not be re-armed, got apto=%d appto=%d", conn.AptoExpire, conn.ApptoExpire)
	}

	c.tickAuthPayload(conn, true)
	if conn.AptoExpire != 0 || conn.ApptoExpire != 0 {
		t.Fatalf("a non-empty PDU must disarm both timers, got apto=%d appto=%d", conn.AptoExpire, conn.ApptoExpire)
	}
}
