package ll

import "github.com/paypal/go-ll-controller/internal/ticker"

// eventSlotUs is the reserved ticker slot duration passed to Ticker.Start
// for every connection event, used by the scheduler's collision search.
const eventSlotUs ticker.Unit = 1000

// xtalOffsetUs is the crystal oscillator settle time a connection event
// needs ahead of its anchor, mirrored from the 1500us lead time a real
// radio's crystal needs to stabilize before the anchor it is warming up
// for.
const xtalOffsetUs ticker.Unit = 1500

// armConnection schedules conn's first connection event one interval from
// now, walking the anchor forward past any already-scheduled slot it would
// otherwise land inside, then lets the ticker re-arm it periodically from
// there.
func (c *Controller) armConnection(conn *Connection) {
	now := c.ticker.TicksNow()
	period := ticker.Unit(conn.connIntervalUs())
	first := placeAdvanced(now+period, eventSlotUs+xtalOffsetUs, c.ticker.Slots())
	_ = c.ticker.Start(conn.tickerID, now, first-now, period, 0, eventSlotUs, c.onEventExpire, conn)
}

// placeAdvanced pushes anchor forward past every scheduled slot it would
// otherwise overlap, given the window (including crystal lead time) this
// new event itself needs. It only ever moves anchor later, and converges
// in at most len(slots)+1 passes since each pass can only push anchor past
// one more slot than the last.
func placeAdvanced(anchor ticker.Unit, need ticker.Unit, slots []struct{ Anchor, Slot ticker.Unit }) ticker.Unit {
	for pass := 0; pass <= len(slots); pass++ {
		moved := false
		for _, s := range slots {
			slotEnd := s.Anchor + s.Slot
			if anchor < slotEnd && anchor+need > s.Anchor {
				anchor = slotEnd
				moved = true
			}
		}
		if !moved {
			break
		}
	}
	return anchor
}

// onEventExpire is the ticker callback for one connection's event slot: run
// the event, tear the connection down if it closed, and otherwise check
// whether the crystal should stay warm for the next scheduled slot.
func (c *Controller) onEventExpire(id int, anchor ticker.Unit, lazy uint16, force bool, ctx interface{}) {
	conn, ok := ctx.(*Connection)
	if !ok {
		return
	}
	res := c.runEvent(conn)
	if res.closed {
		c.closeConnection(conn, res.reason)
		return
	}
	c.tryResizePool(conn)
	if _, _, ticksToNext, ok := c.ticker.NextSlotGet(); ok {
		_ = c.gate.Retain(ticksToNext)
	}
}
