package mem

import (
	"encoding/binary"
	"fmt"
)

// Pools is the pool manager. Its only persistent state is the head of
// the process-wide free-chunk list and the free-chunk count; pools
// carry no header of their own and are rediscovered from chunk
// handles via the heap's block-start query.
type Pools struct {
	heap      *Heap
	freeHead  Handle
	freeCount int

	stats Stats

	// heavyCheck walks the whole free list after every operation and
	// verifies the recorded count. Enabled by tests.
	heavyCheck bool
}

// NewPools creates a pool manager over the given heap.
func NewPools(heap *Heap) *Pools {
	p := &Pools{heap: heap, freeHead: HandleNil}
	p.stats.init()
	return p
}

// Heap returns the underlying heap.
func (p *Pools) Heap() *Heap {
	return p.heap
}

// FreeChunks reports the recorded number of free chunks.
func (p *Pools) FreeChunks() int {
	return p.freeCount
}

// Bytes returns the payload of an allocated chunk.
func (p *Pools) Bytes(c Handle) []byte {
	return p.heap.Chunk(c)
}

// next reads the free-list link stored in the first word of a free
// chunk.
func (p *Pools) next(c Handle) Handle {
	return Handle(binary.LittleEndian.Uint32(p.heap.Chunk(c)))
}

// setNext writes the free-list link into the first word of a free
// chunk.
func (p *Pools) setNext(c, next Handle) {
	binary.LittleEndian.PutUint32(p.heap.Chunk(c), uint32(next))
}

// Alloc returns one chunk. It fails only when the free list is empty
// and the heap cannot provide a new pool.
func (p *Pools) Alloc() (Handle, error) {
	if p.freeHead == HandleNil {
		if err := p.allocLongPath(); err != nil {
			return HandleNil, err
		}
	}

	if p.freeCount == 0 || p.freeHead == HandleNil {
		panic("mem: free list and count out of sync after long path")
	}

	p.freeCount--
	c := p.freeHead
	p.freeHead = p.next(c)

	p.stats.allocChunk()
	p.check()
	return c, nil
}

// allocLongPath requests a new pool from the heap and formats it as a
// chain of free chunks. Heap allocation may run the engine garbage
// collector, which can free chunks as a side effect; in that case the
// fresh pool is redundant and is returned to the heap at once.
func (p *Pools) allocLongPath() error {
	p.check()

	if p.freeHead != HandleNil || p.freeCount != 0 {
		panic("mem: long path entered with free chunks available")
	}

	first, err := p.heap.AllocBlock()
	if err != nil {
		return fmt.Errorf("mem: out of memory: %w", err)
	}

	if p.freeCount != 0 {
		// GC ran inside the heap allocator and produced free chunks.
		p.heap.FreeBlock(first)
		return nil
	}

	for i := 0; i < PoolChunks-1; i++ {
		p.setNext(first+Handle(i), first+Handle(i+1))
	}
	p.setNext(first+Handle(PoolChunks-1), HandleNil)

	p.freeHead = first
	p.freeCount += PoolChunks

	p.stats.allocPool(p.freeCount)
	p.check()
	return nil
}

// Free returns a chunk to the free list. O(1); never fails.
func (p *Pools) Free(c Handle) {
	p.check()

	p.setNext(c, p.freeHead)
	p.freeHead = c
	p.freeCount++

	p.stats.freeChunk()
	p.check()
}

// Finalize compacts and verifies that every chunk has been returned.
func (p *Pools) Finalize() error {
	p.Compact()
	if n := p.stats.AllocatedChunks; n != 0 {
		return fmt.Errorf("mem: %d chunks leaked at finalize", n)
	}
	if p.freeCount != 0 {
		return fmt.Errorf("mem: %d chunks leaked at finalize", p.freeCount)
	}
	return nil
}

// check verifies that the free-list length matches the recorded
// count. No-op unless heavy checking is on.
func (p *Pools) check() {
	if !p.heavyCheck {
		return
	}
	met := 0
	for c := p.freeHead; c != HandleNil; c = p.next(c) {
		met++
	}
	if met != p.freeCount {
		panic(fmt.Sprintf("mem: free list holds %d chunks, count says %d", met, p.freeCount))
	}
}
