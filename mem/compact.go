package mem

import "encoding/binary"

// Compaction has to rediscover per-pool occupancy: pools keep no
// header, and the free list mixes chunks from every live pool in
// arbitrary order. Three passes over the free list find the pools
// whose every chunk is free and return them to the heap.
//
// During the passes the first free chunk of a candidate pool is
// overwritten with a temporary header:
//
//	[0:4]  next candidate in the same bucket
//	[4:8]  head of the pool's local free-chunk chain
//	[8:10] magic marker
//	[10]   free chunks attributed to the pool so far
//	[11]   bucket id
//
// The magic is only a heuristic gate (an allocated chunk's payload may
// collide with it); membership in the bucket chain is what confirms a
// candidate.

const (
	compactMagic   = 0x7e89
	compactBuckets = 8
)

type tempHeader struct {
	next       Handle
	localChain Handle
	freeCount  int
	bucket     int
}

func (p *Pools) readHeader(c Handle) tempHeader {
	b := p.heap.Chunk(c)
	return tempHeader{
		next:       Handle(binary.LittleEndian.Uint32(b[0:4])),
		localChain: Handle(binary.LittleEndian.Uint32(b[4:8])),
		freeCount:  int(b[10]),
		bucket:     int(b[11]),
	}
}

func (p *Pools) writeHeader(c Handle, h tempHeader) {
	b := p.heap.Chunk(c)
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.next))
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.localChain))
	binary.LittleEndian.PutUint16(b[8:10], compactMagic)
	b[10] = byte(h.freeCount)
	b[11] = byte(h.bucket)
}

func (p *Pools) headerMagicOK(c Handle) bool {
	return binary.LittleEndian.Uint16(p.heap.Chunk(c)[8:10]) == compactMagic
}

// Compact finds pools with all chunks free and releases them to the
// heap. It may be called at any time and is idempotent.
func (p *Pools) Compact() {
	var buckets [compactBuckets]Handle
	for i := range buckets {
		buckets[i] = HandleNil
	}
	candidates := 0

	// Pass 1: pull out free chunks that are first in their pool and
	// turn them into candidate headers, bucketed round-robin to keep
	// the confirmation walk in pass 2 short.
	prev := HandleNil
	for c := p.freeHead; c != HandleNil; {
		next := p.next(c)

		if p.heap.BlockStart(c) == c {
			if prev == HandleNil {
				p.freeHead = next
			} else {
				p.setNext(prev, next)
			}

			id := candidates % compactBuckets
			candidates++

			p.writeHeader(c, tempHeader{
				next:       buckets[id],
				localChain: HandleNil,
				freeCount:  1, // the first chunk itself
				bucket:     id,
			})
			buckets[id] = c
		} else {
			prev = c
		}

		c = next
	}

	if candidates == 0 {
		return
	}

	// Pass 2: attribute the remaining free chunks to candidates.
	// A chunk belongs to a candidate pool iff its pool's first chunk
	// carries the magic and is confirmed present in its bucket chain.
	prev = HandleNil
	for c := p.freeHead; c != HandleNil; {
		next := p.next(c)

		first := p.heap.BlockStart(c)
		moved := false

		if p.headerMagicOK(first) {
			hdr := p.readHeader(first)
			if hdr.bucket < compactBuckets {
				for it := buckets[hdr.bucket]; it != HandleNil; it = p.readHeader(it).next {
					if it != first {
						continue
					}

					hdr.freeCount++
					if prev == HandleNil {
						p.freeHead = next
					} else {
						p.setNext(prev, next)
					}
					p.setNext(c, hdr.localChain)
					hdr.localChain = c
					p.writeHeader(first, hdr)

					moved = true
					break
				}
			}
		}

		if !moved {
			prev = c
		}
		c = next
	}

	// Pass 3: commit. Full pools go back to the heap; partial
	// candidates relink their local chain, first chunk included,
	// into the global free list.
	for id := 0; id < compactBuckets; id++ {
		for c := buckets[id]; c != HandleNil; {
			hdr := p.readHeader(c)
			next := hdr.next

			if hdr.freeCount == PoolChunks {
				p.heap.FreeBlock(c)
				p.freeCount -= PoolChunks
				p.stats.freePool(p.freeCount)
			} else {
				p.setNext(c, hdr.localChain)
				last := c
				for p.next(last) != HandleNil {
					last = p.next(last)
				}
				p.setNext(last, p.freeHead)
				p.freeHead = c
			}

			c = next
		}
	}

	p.check()
}
