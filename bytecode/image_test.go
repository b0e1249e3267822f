package bytecode

import (
	"bytes"
	"testing"

	"github.com/shrikejs/shrike/lit"
)

func TestSplitJoinCounter(t *testing.T) {
	for _, oc := range []Counter{0, 1, 255, 256, 4097, 65535} {
		hi, lo := SplitCounter(oc)
		if got := JoinCounter(hi, lo); got != oc {
			t.Errorf("JoinCounter(SplitCounter(%d)) = %d", oc, got)
		}
	}
}

func TestOpMetaOperandEncoding(t *testing.T) {
	om := New(OpAssignment, Reg(3), IdxConst(Idx(ValueString)), Lit(7))

	if om.Args[0] != 3 || om.LitID[0] != lit.None {
		t.Errorf("register slot encoded as (%d, %d)", om.Args[0], om.LitID[0])
	}
	if om.Args[2] != IdxRewriteLiteral || om.LitID[2] != 7 {
		t.Errorf("literal slot encoded as (%d, %d)", om.Args[2], om.LitID[2])
	}

	om = New(OpRet)
	for i := 0; i < 3; i++ {
		if om.Args[i] != IdxEmpty || om.LitID[i] != lit.None {
			t.Errorf("missing operand %d encoded as (%d, %d)", i, om.Args[i], om.LitID[i])
		}
	}

	om = New(OpJmpDown, Unknown(), Unknown())
	if om.Args[0] != IdxRewriteGeneral {
		t.Errorf("unknown operand encoded as %d", om.Args[0])
	}
}

func TestEncodeDecodeInstrs(t *testing.T) {
	img := &Image{Instrs: []Instr{
		{Op: OpRegVarDecl, Args: [3]Idx{2, 0, 0}},
		{Op: OpAssignment, Args: [3]Idx{0, Idx(ValueSmallint), 42}},
		{Op: OpRet, Args: [3]Idx{IdxEmpty, IdxEmpty, IdxEmpty}},
	}}

	wire := img.EncodeInstrs()
	if len(wire) != 12 {
		t.Fatalf("wire length = %d, want 12", len(wire))
	}

	back, err := DecodeInstrs(wire)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 3 || back[1] != img.Instrs[1] {
		t.Errorf("decode mismatch: %+v", back)
	}

	if _, err := DecodeInstrs(wire[:5]); err == nil {
		t.Error("unaligned stream decoded without error")
	}
}

func TestValidateRejectsRewriteSentinel(t *testing.T) {
	img := &Image{Instrs: []Instr{
		{Op: OpJmpDown, Args: [3]Idx{IdxRewriteGeneral, IdxRewriteGeneral, IdxEmpty}},
	}}
	if err := img.Validate(); err == nil {
		t.Error("rewrite sentinel survived validation")
	}
}

func TestValidateLiteralMapCoverage(t *testing.T) {
	img := &Image{
		Instrs: []Instr{
			{Op: OpVarDecl, Args: [3]Idx{IdxRewriteLiteral, IdxEmpty, IdxEmpty}},
		},
	}
	if err := img.Validate(); err == nil {
		t.Error("literal slot without map entry passed validation")
	}

	img.LitMap = []LitMapEntry{{Pos: 0, Slot: 0, Lit: 1}}
	if err := img.Validate(); err != nil {
		t.Errorf("valid image rejected: %v", err)
	}

	img.LitMap = append(img.LitMap, LitMapEntry{Pos: 0, Slot: 1, Lit: 2})
	if err := img.Validate(); err == nil {
		t.Error("stray literal map entry passed validation")
	}
}

func TestDisassembleOutput(t *testing.T) {
	img := &Image{
		Instrs: []Instr{
			{Op: OpRegVarDecl, Args: [3]Idx{1, 0, 0}},
			{Op: OpRet, Args: [3]Idx{IdxEmpty, IdxEmpty, IdxEmpty}},
		},
	}
	out := Disassemble(img, nil)
	if !bytes.Contains([]byte(out), []byte("reg_var_decl")) || !bytes.Contains([]byte(out), []byte("ret")) {
		t.Errorf("disassembly missing opcodes:\n%s", out)
	}
}
