// Package pool implements the credit/queue manager: the shared RX pool,
// the split TX control/data pool, and the per-handle flow-control mutex.
//
// The TX pool is an arena: every node has a stable integer index, and the
// singly-linked "_next" relation used by a connection's TX list lives
// inside the arena slot itself rather than behind a raw pointer. The
// connection only ever holds four indices (head, ctrl, data, last); see
// Connection.TXList in the ll package.
package pool

import "fmt"

// NoNode is the sentinel index meaning "no node".
const NoNode = -1

// Kind distinguishes control PDUs (LLCP) from data PDUs in the TX arena;
// control PDUs may never be starved by data.
type Kind int

const (
	KindCtrl Kind = iota
	KindData
)

type txNode struct {
	buf    []byte
	next   int
	kind   Kind
	inUse  bool
}

// TXArena is the combined control/data TX buffer pool for one controller.
// Control and data nodes are drawn from disjoint capacity so a burst of
// data traffic can never exhaust the handful of control buffers an LLCP
// procedure needs to make progress.
type TXArena struct {
	nodes     []txNode
	freeCtrl  []int
	freeData  []int
	ctrlCap   int
	dataCap   int
}

// NewTXArena allocates ctrlCap control nodes and dataCap data nodes, each
// sized nodeSize bytes.
func NewTXArena(ctrlCap, dataCap, nodeSize int) *TXArena {
	a := &TXArena{
		nodes:   make([]txNode, ctrlCap+dataCap),
		ctrlCap: ctrlCap,
		dataCap: dataCap,
	}
	for i := 0; i < ctrlCap; i++ {
		a.nodes[i] = txNode{buf: make([]byte, 0, nodeSize), next: NoNode, kind: KindCtrl}
		a.freeCtrl = append(a.freeCtrl, i)
	}
	for i := 0; i < dataCap; i++ {
		idx := ctrlCap + i
		a.nodes[idx] = txNode{buf: make([]byte, 0, nodeSize), next: NoNode, kind: KindData}
		a.freeData = append(a.freeData, idx)
	}
	return a
}

// AllocCtrl draws a free control node, returning (NoNode, false) if the
// control sub-pool is exhausted.
func (a *TXArena) AllocCtrl() (int, bool) {
	if len(a.freeCtrl) == 0 {
		return NoNode, false
	}
	n := len(a.freeCtrl) - 1
	idx := a.freeCtrl[n]
	a.freeCtrl = a.freeCtrl[:n]
	a.nodes[idx].inUse = true
	a.nodes[idx].next = NoNode
	a.nodes[idx].buf = a.nodes[idx].buf[:0]
	return idx, true
}

// AllocData draws a free data node.
func (a *TXArena) AllocData() (int, bool) {
	if len(a.freeData) == 0 {
		return NoNode, false
	}
	n := len(a.freeData) - 1
	idx := a.freeData[n]
	a.freeData = a.freeData[:n]
	a.nodes[idx].inUse = true
	a.nodes[idx].next = NoNode
	a.nodes[idx].buf = a.nodes[idx].buf[:0]
	return idx, true
}

// Free returns idx to its sub-pool. Freeing an already-free node is a
// programming invariant violation (double free) and panics.
func (a *TXArena) Free(idx int) {
	n := &a.nodes[idx]
	if !n.inUse {
		panic(fmt.Sprintf("pool: double free of tx node %d", idx))
	}
	n.inUse = false
	n.next = NoNode
	if n.kind == KindCtrl {
		a.freeCtrl = append(a.freeCtrl, idx)
	} else {
		a.freeData = append(a.freeData, idx)
	}
}

func (a *TXArena) Buf(idx int) []byte       { return a.nodes[idx].buf }
func (a *TXArena) SetBuf(idx int, b []byte) { a.nodes[idx].buf = b }
func (a *TXArena) Next(idx int) int         { return a.nodes[idx].next }
func (a *TXArena) SetNext(idx, next int)    { a.nodes[idx].next = next }
func (a *TXArena) Kind(idx int) Kind        { return a.nodes[idx].kind }

// CtrlFree and DataFree report free-list depth, for metrics/diagnostics.
func (a *TXArena) CtrlFree() int { return len(a.freeCtrl) }
func (a *TXArena) DataFree() int { return len(a.freeData) }
