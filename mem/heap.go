// Package mem implements the engine's pooled small-object allocator:
// a heap of fixed-size blocks and, on top of it, a pool manager that
// carves each block into fixed-size chunks threaded on a single
// process-wide free list.
package mem

import "fmt"

const (
	// ChunkSize is the size of every allocation unit, in bytes.
	ChunkSize = 16

	// PoolChunks is the number of chunks in one pool.
	PoolChunks = 8

	// PoolSize is the size of one heap block (a pool has no
	// persistent header; the block is chunks end to end).
	PoolSize = ChunkSize * PoolChunks
)

// Handle is an opaque reference to a chunk. The pool manager hands
// these out; HandleNil marks "no chunk".
type Handle uint32

// HandleNil is the null chunk handle.
const HandleNil Handle = 0xFFFFFFFF

// Heap provides pool-sized blocks to the pool manager. Blocks are
// addressed by slot; a chunk handle encodes its block slot and chunk
// index, so the heap can answer the block-start query without any
// per-block bookkeeping in the pool layer.
type Heap struct {
	blocks    [][]byte
	freeSlots []int
	liveCount int
	maxBlocks int

	// gcHook runs on every block allocation, standing in for the
	// engine garbage collector that the real heap may trigger. It
	// can free chunks out from under the caller; the pool manager's
	// slow path re-checks for that.
	gcHook func()
}

// NewHeap creates a heap. maxBlocks limits the number of live blocks;
// zero means unlimited.
func NewHeap(maxBlocks int) *Heap {
	return &Heap{maxBlocks: maxBlocks}
}

// SetGCHook installs a callback invoked during block allocation,
// before the block is handed to the caller.
func (h *Heap) SetGCHook(hook func()) {
	h.gcHook = hook
}

// AllocBlock obtains one pool-sized block and returns the handle of
// its first chunk.
func (h *Heap) AllocBlock() (Handle, error) {
	if h.maxBlocks > 0 && h.liveCount >= h.maxBlocks {
		return HandleNil, fmt.Errorf("mem: heap limit of %d blocks reached", h.maxBlocks)
	}

	if h.gcHook != nil {
		h.gcHook()
	}

	var slot int
	if n := len(h.freeSlots); n > 0 {
		slot = h.freeSlots[n-1]
		h.freeSlots = h.freeSlots[:n-1]
		h.blocks[slot] = make([]byte, PoolSize)
	} else {
		slot = len(h.blocks)
		h.blocks = append(h.blocks, make([]byte, PoolSize))
	}
	h.liveCount++

	return Handle(slot * PoolChunks), nil
}

// FreeBlock releases the block that starts at the given chunk handle.
// The handle must be the block's first chunk.
func (h *Heap) FreeBlock(first Handle) {
	slot := int(first) / PoolChunks
	if int(first)%PoolChunks != 0 || slot >= len(h.blocks) || h.blocks[slot] == nil {
		panic(fmt.Sprintf("mem: FreeBlock of invalid handle %#x", uint32(first)))
	}
	h.blocks[slot] = nil
	h.freeSlots = append(h.freeSlots, slot)
	h.liveCount--
}

// BlockStart answers the chunked-block-start query: the handle of the
// first chunk of the block containing the given chunk.
func (h *Heap) BlockStart(c Handle) Handle {
	return Handle(int(c) / PoolChunks * PoolChunks)
}

// Chunk returns the payload bytes of the given chunk.
func (h *Heap) Chunk(c Handle) []byte {
	slot := int(c) / PoolChunks
	idx := int(c) % PoolChunks
	b := h.blocks[slot]
	if b == nil {
		panic(fmt.Sprintf("mem: access to chunk %#x of a freed block", uint32(c)))
	}
	return b[idx*ChunkSize : (idx+1)*ChunkSize : (idx+1)*ChunkSize]
}

// LiveBlocks reports the number of live blocks.
func (h *Heap) LiveBlocks() int {
	return h.liveCount
}
