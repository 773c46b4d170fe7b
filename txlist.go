package ll

import "github.com/paypal/go-ll-controller/internal/pool"

// txList is the per-connection TX queue: four cursors into the shared
// TXArena (head, ctrl, data, last) plus the in-flight fragmentation offset
// of the head PDU. The singly-linked "_next" relation lives inside the
// pool.TXArena slot rather than behind a pointer on this struct.
type txList struct {
	Head int
	Ctrl int
	Data int
	Last int

	HeadSent       bool // head has been transmitted at least once, awaiting ack
	HeadOffset     int  // bytes of the head PDU already acked, for fragmentation
	PendingFragLen int  // bytes of the head PDU included in the in-flight, not-yet-acked fragment
	Empty          bool // an empty PDU was synthesised for the last TX slot
}

func newTXList() txList {
	return txList{Head: pool.NoNode, Ctrl: pool.NoNode, Data: pool.NoNode, Last: pool.NoNode}
}

// EnqueueData appends a data node at the tail.
func (l *txList) EnqueueData(arena *pool.TXArena, idx int) {
	if l.Head == pool.NoNode {
		l.Head = idx
	}
	if l.Data == pool.NoNode {
		l.Data = idx
	}
	if l.Last != pool.NoNode {
		arena.SetNext(l.Last, idx)
	}
	l.Last = idx
}

// EnqueueCtrl inserts a control node here: after head if head
// has already been transmitted once (so a pending ack on head is not
// disturbed), otherwise it becomes the new head.
func (l *txList) EnqueueCtrl(arena *pool.TXArena, idx int) {
	if l.Head == pool.NoNode {
		l.Head = idx
		l.Ctrl = idx
		l.Last = idx
		return
	}
	if l.HeadSent {
		arena.SetNext(idx, arena.Next(l.Head))
		arena.SetNext(l.Head, idx)
		if l.Last == l.Head {
			l.Last = idx
		}
	} else {
		arena.SetNext(idx, l.Head)
		l.Head = idx
	}
	l.Ctrl = idx
}

// ReleaseHead advances past the head node on a successful ack. released is
// pool.NoNode when the head was an empty-PDU retry (which never occupied a
// real arena slot) or the list was already empty; ok distinguishes "nothing
// to release" from "released an empty retry".
func (l *txList) ReleaseHead(arena *pool.TXArena) (released int, kind pool.Kind, ok bool) {
	if l.Empty {
		l.Empty = false
		return pool.NoNode, 0, true
	}
	if l.Head == pool.NoNode {
		return pool.NoNode, 0, false
	}
	released = l.Head
	kind = arena.Kind(released)
	next := arena.Next(released)
	l.Head = next
	l.HeadSent = false
	l.HeadOffset = 0
	l.PendingFragLen = 0
	if l.Ctrl == released {
		l.Ctrl = pool.NoNode
	}
	if l.Data == released {
		l.Data = pool.NoNode
	}
	if l.Last == released {
		l.Last = pool.NoNode
	}
	return released, kind, true
}
