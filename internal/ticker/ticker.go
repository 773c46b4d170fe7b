// Package ticker implements the low-jitter periodic/one-shot timer
// described here: role events are placed on it at computed
// anchor points, and it is responsible for expiring callbacks with a
// bounded jitter.
//
// It is a leaf subsystem with its own dispatch table: entries keyed by a
// small id, dispatched from one place, generalized here to carry timing
// instead of opcode bytes.
package ticker

import (
	"container/heap"
	"fmt"
	"sync"
)

// Unit is the ticker's fixed time unit, kept in microseconds directly
// since the concrete hardware RTC tick size is an external concern.
type Unit = uint32

// ExpireFunc is invoked when a ticker entry fires. lazy is the number of
// periods silently skipped since the previous expiry (e.g. because the
// worker was busy). force is always false when Expire invokes the
// callback; Update's force flag is not carried through to it.
type ExpireFunc func(id int, anchor Unit, lazy uint16, force bool, ctx interface{})

// entry is one scheduled ticker slot.
type entry struct {
	id       int
	anchor   Unit // next expiry
	period   Unit // 0 for one-shot
	slot     Unit // reserved duration of the event itself (ticks_slot)
	expireFn ExpireFunc
	ctx      interface{}
	lazy     uint16
	index    int // heap index, maintained by container/heap
}

// Ticker is a min-heap of entries ordered by anchor, guarded by a mutex so
// the worker (ISR) and the job (bookkeeping) contexts can both call into
// it safely; real hardware tickers enforce the same ordering via
// interrupt priority instead of a mutex.
type Ticker struct {
	mu       sync.Mutex
	entries  entryHeap
	byID     map[int]*entry
	jobOK    bool // ticker_job enabled; see JobDisable/JobEnable
	nowFn    func() Unit
	baseNow  Unit
	fallback Unit
}

// New creates a Ticker whose ticks_now() is driven by nowFn (typically
// radio.Radio.TicksNow on real hardware, or simradio's monotonic counter in
// tests).
func New(nowFn func() Unit) *Ticker {
	t := &Ticker{
		byID:  map[int]*entry{},
		jobOK: true,
		nowFn: nowFn,
	}
	heap.Init(&t.entries)
	return t
}

// TicksNow returns the ticker's current time.
func (t *Ticker) TicksNow() Unit {
	return t.nowFn()
}

// Start arms id at anchor+first+remainder, repeating every period (0 =
// one-shot). slot is the reserved ticks_slot duration; the ticker stores it
// and reports it through Slots but does not use it for ordering, which is
// by anchor alone.
func (t *Ticker) Start(id int, anchor, first, period, remainder, slot Unit, expireFn ExpireFunc, ctx interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byID[id]; exists {
		return fmt.Errorf("ticker: id %d already started", id)
	}
	e := &entry{
		id:       id,
		anchor:   anchor + first + remainder,
		period:   period,
		slot:     slot,
		expireFn: expireFn,
		ctx:      ctx,
	}
	t.byID[id] = e
	heap.Push(&t.entries, e)
	return nil
}

// Stop removes id; stopping an id that was never started is a no-op
// rather than erroring on redundant teardown.
func (t *Ticker) Stop(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	if !ok {
		return
	}
	heap.Remove(&t.entries, e.index)
	delete(t.byID, id)
}

// Update adjusts id's next anchor by +driftPlus-driftMinus ticks and folds
// in lazy extra periods. Without force, a periodic entry whose new anchor
// has already passed is moved forward by whole periods until it is no
// longer in the past, counting each skipped period in lazy; with force the
// computed anchor is kept even if it has passed.
func (t *Ticker) Update(id int, driftPlus, driftMinus Unit, lazy uint16, force bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("ticker: update on unknown id %d", id)
	}
	e.anchor = e.anchor + driftPlus - driftMinus
	if e.period != 0 {
		e.anchor += e.period * Unit(lazy)
	}
	e.lazy = lazy
	now := t.nowFn()
	if !force && e.period != 0 {
		for e.anchor < now {
			e.anchor += e.period
			e.lazy++
		}
	}
	heap.Fix(&t.entries, e.index)
	return nil
}

// NextSlotGet reports the id, anchor and ticks-to-expire of the
// earliest-scheduled entry, used by the role scheduler's placement-avoidance
// pass to find free windows across every ticker id. ok is false if nothing
// is scheduled.
func (t *Ticker) NextSlotGet() (id int, anchor Unit, ticksToExpire Unit, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		return 0, 0, 0, false
	}
	e := t.entries[0]
	now := t.nowFn()
	tte := e.anchor - now
	return e.id, e.anchor, tte, true
}

// Slots returns a snapshot of (anchor, slot) for every scheduled entry, in
// no particular order, for the scheduler's placement-avoidance collision
// search.
func (t *Ticker) Slots() []struct{ Anchor, Slot Unit } {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]struct{ Anchor, Slot Unit }, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, struct{ Anchor, Slot Unit }{e.anchor, e.slot})
	}
	return out
}

// Expire pops and fires every entry whose anchor has reached now; it is the
// worker's job to call this from whatever drives the real or simulated
// clock forward. Periodic entries are re-pushed at anchor+period.
func (t *Ticker) Expire(now Unit) {
	for {
		t.mu.Lock()
		if len(t.entries) == 0 || t.entries[0].anchor > now {
			t.mu.Unlock()
			return
		}
		e := heap.Pop(&t.entries).(*entry)
		fn, id, anchor, ctx, lazy := e.expireFn, e.id, e.anchor, e.ctx, e.lazy
		e.lazy = 0
		if e.period != 0 {
			e.anchor += e.period
			heap.Push(&t.entries, e)
		} else {
			delete(t.byID, id)
		}
		t.mu.Unlock()

		fn(id, anchor, lazy, false, ctx)
	}
}

// JobDisable suspends the ticker job context. While disabled, Expire still runs (it is driven by the worker),
// but callers that represent job-only bookkeeping should check JobEnabled
// before touching shared scheduling state.
func (t *Ticker) JobDisable() {
	t.mu.Lock()
	t.jobOK = false
	t.mu.Unlock()
}

func (t *Ticker) JobEnable() {
	t.mu.Lock()
	t.jobOK = true
	t.mu.Unlock()
}

func (t *Ticker) JobEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.jobOK
}

// entryHeap implements container/heap.Interface. No ecosystem priority
// queue library appears anywhere in this module's example pack, so the
// standard library's heap package is used directly here; see DESIGN.md.
type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].anchor < h[j].anchor }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
