package lit

import (
	"fmt"
	"testing"

	"github.com/shrikejs/shrike/mem"
)

func newTestTable(t *testing.T) (*Table, *mem.Pools) {
	t.Helper()
	pools := mem.NewPools(mem.NewHeap(0))
	return NewTable(pools), pools
}

func TestInternStringDedup(t *testing.T) {
	tbl, _ := newTestTable(t)

	a, err := tbl.InternString("foo")
	if err != nil {
		t.Fatal(err)
	}
	b, err := tbl.InternString("bar")
	if err != nil {
		t.Fatal(err)
	}
	a2, err := tbl.InternString("foo")
	if err != nil {
		t.Fatal(err)
	}

	if a != a2 {
		t.Errorf("same string got two ids: %d, %d", a, a2)
	}
	if a == b {
		t.Errorf("different strings share id %d", a)
	}
	if got := tbl.String(a); got != "foo" {
		t.Errorf("String(%d) = %q, want %q", a, got, "foo")
	}
	if tbl.Kind(a) != KindString {
		t.Errorf("Kind = %d, want KindString", tbl.Kind(a))
	}
	if tbl.Count() != 2 {
		t.Errorf("Count = %d, want 2", tbl.Count())
	}
}

func TestInternNumber(t *testing.T) {
	tbl, _ := newTestTable(t)

	for _, n := range []float64{0, 1.5, -3, 1e300} {
		id, err := tbl.InternNumber(n)
		if err != nil {
			t.Fatal(err)
		}
		if got := tbl.Number(id); got != n {
			t.Errorf("Number(%d) = %v, want %v", id, got, n)
		}
		id2, _ := tbl.InternNumber(n)
		if id != id2 {
			t.Errorf("number %v interned twice: %d, %d", n, id, id2)
		}
	}
}

func TestReleaseReturnsEveryChunk(t *testing.T) {
	tbl, pools := newTestTable(t)

	for i := 0; i < 100; i++ {
		if _, err := tbl.InternString(fmt.Sprintf("ident%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if pools.GetStats().AllocatedChunks != 100 {
		t.Fatalf("allocated = %d, want 100", pools.GetStats().AllocatedChunks)
	}

	tbl.Release()
	if err := pools.Finalize(); err != nil {
		t.Errorf("pools leaked after Release: %v", err)
	}
}
