package bytecode

import (
	"testing"

	"github.com/shrikejs/shrike/lit"
	"github.com/shrikejs/shrike/mem"
)

func newTestTable(t *testing.T) *lit.Table {
	t.Helper()
	return lit.NewTable(mem.NewPools(mem.NewHeap(0)))
}

func TestSnapshotRoundTrip(t *testing.T) {
	table := newTestTable(t)
	name, err := table.InternString("answer")
	if err != nil {
		t.Fatal(err)
	}
	num, err := table.InternNumber(42.5)
	if err != nil {
		t.Fatal(err)
	}

	img := &Image{
		Instrs: []Instr{
			{Op: OpRegVarDecl, Args: [3]Idx{1, 0, 0}},
			{Op: OpAssignment, Args: [3]Idx{0, Idx(ValueNumber), IdxRewriteLiteral}},
			{Op: OpVarDecl, Args: [3]Idx{IdxRewriteLiteral, IdxEmpty, IdxEmpty}},
			{Op: OpRet, Args: [3]Idx{IdxEmpty, IdxEmpty, IdxEmpty}},
		},
		LitMap: []LitMapEntry{
			{Pos: 1, Slot: 2, Lit: num},
			{Pos: 2, Slot: 0, Lit: name},
		},
		Scopes: []ScopeHeader{{Start: 0, Strict: true}},
	}

	data, err := img.Snapshot(table)
	if err != nil {
		t.Fatal(err)
	}

	// Load into a fresh table; ids are remapped through the carried
	// literal payloads.
	fresh := newTestTable(t)
	if _, err := fresh.InternString("occupies-id-zero"); err != nil {
		t.Fatal(err)
	}

	back, err := LoadSnapshot(data, fresh)
	if err != nil {
		t.Fatal(err)
	}

	if len(back.Instrs) != len(img.Instrs) {
		t.Fatalf("instruction count %d, want %d", len(back.Instrs), len(img.Instrs))
	}
	if back.Instrs[1].Op != OpAssignment {
		t.Errorf("instr 1 = %s", back.Instrs[1].Op)
	}

	id, ok := back.LiteralAt(2, 0)
	if !ok {
		t.Fatal("literal map entry for var_decl lost")
	}
	if got := fresh.String(id); got != "answer" {
		t.Errorf("remapped literal = %q, want %q", got, "answer")
	}

	id, ok = back.LiteralAt(1, 2)
	if !ok {
		t.Fatal("literal map entry for assignment lost")
	}
	if got := fresh.Number(id); got != 42.5 {
		t.Errorf("remapped number = %v, want 42.5", got)
	}

	if len(back.Scopes) != 1 || !back.Scopes[0].Strict {
		t.Errorf("scope headers not preserved: %+v", back.Scopes)
	}
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	table := newTestTable(t)
	if _, err := LoadSnapshot([]byte("not a snapshot"), table); err == nil {
		t.Error("garbage accepted as snapshot")
	}
}

func TestSnapshotRefusesInvalidImage(t *testing.T) {
	table := newTestTable(t)
	img := &Image{Instrs: []Instr{{Op: OpJmpDown, Args: [3]Idx{IdxRewriteGeneral, IdxRewriteGeneral, IdxEmpty}}}}
	if _, err := img.Snapshot(table); err == nil {
		t.Error("invalid image snapshotted without error")
	}
}
