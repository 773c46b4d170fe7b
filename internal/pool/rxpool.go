package pool

import "fmt"

// RXPool is the single pool shared by every connection's received data
// PDUs. Its node size is re-computed
// whenever any connection negotiates a larger max_rx_octets via the length
// procedure, and the pool may only be re-initialised with Resize while
// every node is free.
type RXPool struct {
	nodeSize int
	bufs     [][]byte
	inUse    []bool
	free     []int
	quota    int // link_rx_data_quota: rxCount-1, reserved for terminate
}

// NewRXPool allocates count nodes of nodeSize bytes. One slot's worth of
// capacity is permanently reserved (quota = count-1) so that a terminate
// event can always be delivered even if the host never drains RX.
func NewRXPool(count, nodeSize int) *RXPool {
	p := &RXPool{nodeSize: nodeSize, quota: count - 1}
	p.bufs = make([][]byte, count)
	p.inUse = make([]bool, count)
	for i := range p.bufs {
		p.bufs[i] = make([]byte, 0, nodeSize)
		p.free = append(p.free, i)
	}
	return p
}

// Idle reports whether every node in the pool is free, the precondition
// Resize requires.
func (p *RXPool) Idle() bool {
	return len(p.free) == len(p.bufs)
}

// Alloc draws a free node, refusing once fewer than (count-quota) nodes
// would remain free — i.e. it never hands out the reserved terminate
// margin. ok is false on exhaustion; callers treat this as transient
// buffer starvation: nack the current RX, don't terminate.
func (p *RXPool) Alloc() (int, bool) {
	if len(p.free) == 0 || len(p.bufs)-len(p.free) >= p.quota {
		return NoNode, false
	}
	n := len(p.free) - 1
	idx := p.free[n]
	p.free = p.free[:n]
	p.inUse[idx] = true
	p.bufs[idx] = p.bufs[idx][:0]
	return idx, true
}

// Free returns idx to the pool.
func (p *RXPool) Free(idx int) {
	if !p.inUse[idx] {
		panic(fmt.Sprintf("pool: double free of rx node %d", idx))
	}
	p.inUse[idx] = false
	p.free = append(p.free, idx)
}

func (p *RXPool) Buf(idx int) []byte       { return p.bufs[idx] }
func (p *RXPool) SetBuf(idx int, b []byte) { p.bufs[idx] = b }
func (p *RXPool) NodeSize() int            { return p.nodeSize }
func (p *RXPool) FreeCount() int           { return len(p.free) }
func (p *RXPool) Cap() int                 { return len(p.bufs) }

// Resize re-initialises the pool with a larger node size, as the length
// procedure's RESIZE phase does once the whole pool has gone idle. It
// refuses if any node is still allocated.
func (p *RXPool) Resize(newNodeSize int) error {
	if !p.Idle() {
		return fmt.Errorf("pool: cannot resize rx pool while %d node(s) are allocated", len(p.bufs)-len(p.free))
	}
	if newNodeSize <= p.nodeSize {
		return nil
	}
	p.nodeSize = newNodeSize
	for i := range p.bufs {
		p.bufs[i] = make([]byte, 0, newNodeSize)
	}
	return nil
}
