package mem

import (
	"math/rand"
	"testing"
)

func newTestPools(t *testing.T, maxBlocks int) *Pools {
	t.Helper()
	p := NewPools(NewHeap(maxBlocks))
	p.heavyCheck = true
	return p
}

func mustAlloc(t *testing.T, p *Pools) Handle {
	t.Helper()
	c, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	return c
}

func TestAllocFreeFastPath(t *testing.T) {
	p := newTestPools(t, 0)

	c := mustAlloc(t, p)
	if got := p.FreeChunks(); got != PoolChunks-1 {
		t.Errorf("free chunks after first alloc = %d, want %d", got, PoolChunks-1)
	}

	p.Free(c)
	if got := p.FreeChunks(); got != PoolChunks {
		t.Errorf("free chunks after free = %d, want %d", got, PoolChunks)
	}

	// Alloc-then-free leaves the list head where it was.
	c2 := mustAlloc(t, p)
	if c2 != c {
		t.Errorf("refused to reuse the list head: got %#x, want %#x", uint32(c2), uint32(c))
	}
	p.Free(c2)
}

func TestChunksAreDistinct(t *testing.T) {
	p := newTestPools(t, 0)

	seen := make(map[Handle]bool)
	var chunks []Handle
	for i := 0; i < 3*PoolChunks; i++ {
		c := mustAlloc(t, p)
		if seen[c] {
			t.Fatalf("chunk %#x handed out twice", uint32(c))
		}
		seen[c] = true
		chunks = append(chunks, c)
	}
	for _, c := range chunks {
		p.Free(c)
	}
	if got := p.FreeChunks(); got != 3*PoolChunks {
		t.Errorf("free chunks = %d, want %d", got, 3*PoolChunks)
	}
}

func TestHeapExhaustion(t *testing.T) {
	p := newTestPools(t, 1)

	for i := 0; i < PoolChunks; i++ {
		mustAlloc(t, p)
	}
	if _, err := p.Alloc(); err == nil {
		t.Fatal("Alloc succeeded past the heap limit")
	}
}

func TestCompactReleasesEmptyPools(t *testing.T) {
	p := newTestPools(t, 0)

	var chunks []Handle
	for i := 0; i < 2*PoolChunks; i++ {
		chunks = append(chunks, mustAlloc(t, p))
	}
	if got := p.Heap().LiveBlocks(); got != 2 {
		t.Fatalf("live blocks = %d, want 2", got)
	}

	// Free in reverse order so the list interleaves badly with pool
	// layout.
	for i := len(chunks) - 1; i >= 0; i-- {
		p.Free(chunks[i])
	}

	p.Compact()

	if got := p.FreeChunks(); got != 0 {
		t.Errorf("free chunks after compact = %d, want 0", got)
	}
	if got := p.Heap().LiveBlocks(); got != 0 {
		t.Errorf("live blocks after compact = %d, want 0", got)
	}
}

func TestCompactKeepsPartialPools(t *testing.T) {
	p := newTestPools(t, 0)

	var chunks []Handle
	for i := 0; i < 2*PoolChunks; i++ {
		chunks = append(chunks, mustAlloc(t, p))
	}

	// Keep one chunk of the second pool live.
	live := chunks[len(chunks)-1]
	for _, c := range chunks[:len(chunks)-1] {
		p.Free(c)
	}

	p.Compact()

	if got := p.Heap().LiveBlocks(); got != 1 {
		t.Errorf("live blocks = %d, want 1", got)
	}
	if got := p.FreeChunks(); got != PoolChunks-1 {
		t.Errorf("free chunks = %d, want %d", got, PoolChunks-1)
	}

	p.Free(live)
	p.Compact()
	if got := p.Heap().LiveBlocks(); got != 0 {
		t.Errorf("live blocks after final compact = %d, want 0", got)
	}
}

// No pool may have all its chunks free once Compact returns.
func freePoolsAfterCompact(t *testing.T, p *Pools) {
	t.Helper()
	perPool := make(map[Handle]int)
	for c := p.freeHead; c != HandleNil; c = p.next(c) {
		perPool[p.heap.BlockStart(c)]++
	}
	for pool, n := range perPool {
		if n >= PoolChunks {
			t.Errorf("pool %#x still has %d free chunks after compact", uint32(pool), n)
		}
	}
}

func TestCompactIdempotent(t *testing.T) {
	p := newTestPools(t, 0)

	rng := rand.New(rand.NewSource(7))
	var live []Handle
	for i := 0; i < 400; i++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			live = append(live, mustAlloc(t, p))
		} else {
			k := rng.Intn(len(live))
			p.Free(live[k])
			live = append(live[:k], live[k+1:]...)
		}
	}

	p.Compact()
	freePoolsAfterCompact(t, p)
	freeAfter, blocksAfter := p.FreeChunks(), p.Heap().LiveBlocks()

	p.Compact()
	if p.FreeChunks() != freeAfter || p.Heap().LiveBlocks() != blocksAfter {
		t.Errorf("second compact changed state: free %d->%d, blocks %d->%d",
			freeAfter, p.FreeChunks(), blocksAfter, p.Heap().LiveBlocks())
	}
	freePoolsAfterCompact(t, p)

	for _, c := range live {
		p.Free(c)
	}
	if err := p.Finalize(); err != nil {
		t.Errorf("Finalize: %v", err)
	}
}

func TestRandomAllocFreeBoundedPools(t *testing.T) {
	p := newTestPools(t, 0)
	rng := rand.New(rand.NewSource(42))

	var live []Handle
	peakLive := 0
	for i := 0; i < 2000; i++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			live = append(live, mustAlloc(t, p))
			if len(live) > peakLive {
				peakLive = len(live)
			}
		} else {
			k := rng.Intn(len(live))
			p.Free(live[k])
			live = append(live[:k], live[k+1:]...)
		}

		if i%97 == 0 {
			p.Compact()
			freePoolsAfterCompact(t, p)

			bound := (peakLive+PoolChunks-1)/PoolChunks + 1
			if got := p.Heap().LiveBlocks(); got > bound {
				t.Fatalf("step %d: %d live pools, want <= %d (peak live chunks %d)",
					i, got, bound, peakLive)
			}
		}
	}

	for _, c := range live {
		p.Free(c)
	}
	if err := p.Finalize(); err != nil {
		t.Errorf("Finalize: %v", err)
	}
}

func TestGCHookMakesFreshPoolRedundant(t *testing.T) {
	p := newTestPools(t, 0)

	// Drain one pool completely, keeping one chunk to give back from
	// the hook.
	held := mustAlloc(t, p)
	for i := 0; i < PoolChunks-1; i++ {
		mustAlloc(t, p)
	}
	if p.FreeChunks() != 0 {
		t.Fatalf("setup: free chunks = %d, want 0", p.FreeChunks())
	}

	fired := false
	p.Heap().SetGCHook(func() {
		if !fired {
			fired = true
			p.Free(held)
		}
	})

	c := mustAlloc(t, p)
	if !fired {
		t.Fatal("GC hook did not run on the slow path")
	}
	if c != held {
		t.Errorf("slow path ignored GC-freed chunk: got %#x, want %#x", uint32(c), uint32(held))
	}
	if got := p.Heap().LiveBlocks(); got != 1 {
		t.Errorf("live blocks = %d, want 1 (redundant pool must be released)", got)
	}
}

func TestStatsPeaks(t *testing.T) {
	p := newTestPools(t, 0)

	var chunks []Handle
	for i := 0; i < PoolChunks+1; i++ {
		chunks = append(chunks, mustAlloc(t, p))
	}
	st := p.GetStats()
	if st.PoolsCount != 2 || st.PeakPoolsCount != 2 {
		t.Errorf("pools count = %d peak %d, want 2/2", st.PoolsCount, st.PeakPoolsCount)
	}
	if st.AllocatedChunks != PoolChunks+1 || st.PeakAllocatedChunks != PoolChunks+1 {
		t.Errorf("allocated = %d peak %d, want %d", st.AllocatedChunks, st.PeakAllocatedChunks, PoolChunks+1)
	}

	for _, c := range chunks {
		p.Free(c)
	}
	p.Compact()
	st = p.GetStats()
	if st.PoolsCount != 0 {
		t.Errorf("pools count after compact = %d, want 0", st.PoolsCount)
	}
	if st.PeakAllocatedChunks != PoolChunks+1 {
		t.Errorf("peak lost: %d", st.PeakAllocatedChunks)
	}
	p.ResetPeaks()
	if p.GetStats().PeakAllocatedChunks != 0 {
		t.Errorf("ResetPeaks did not reset")
	}
}
