package bytecode

import (
	"fmt"

	"github.com/shrikejs/shrike/lit"
)

// LitMapEntry associates a literal id with one operand slot of one
// instruction in a finalized image. The VM reads the entry when the
// slot value is IdxRewriteLiteral.
type LitMapEntry struct {
	Pos  Counter
	Slot uint8
	Lit  lit.ID
}

// ScopeHeader describes one scope's region of a merged image.
type ScopeHeader struct {
	Start           Counter
	Strict          bool
	ArgsOnRegisters bool
	NoLexEnv        bool
}

// Image is a finalized bytecode unit: the merged instruction array of
// a compilation, the parallel literal table, and per-scope headers.
type Image struct {
	Instrs []Instr
	LitMap []LitMapEntry
	Scopes []ScopeHeader
}

// LiteralAt finds the literal reference for an instruction slot.
func (img *Image) LiteralAt(pos Counter, slot int) (lit.ID, bool) {
	for _, e := range img.LitMap {
		if e.Pos == pos && int(e.Slot) == slot {
			return e.Lit, true
		}
	}
	return lit.None, false
}

// Validate checks the finalized-image invariants: no slot carries the
// general rewrite sentinel, and literal-marked slots correspond
// one-to-one with literal map entries.
func (img *Image) Validate() error {
	mapped := make(map[uint32]bool, len(img.LitMap))
	for _, e := range img.LitMap {
		if int(e.Pos) >= len(img.Instrs) {
			return fmt.Errorf("bytecode: literal map entry past image end: %d", e.Pos)
		}
		mapped[uint32(e.Pos)<<2|uint32(e.Slot)] = true
	}

	for pos, in := range img.Instrs {
		for slot := 0; slot < 3; slot++ {
			switch in.Args[slot] {
			case IdxRewriteGeneral:
				return fmt.Errorf("bytecode: rewrite sentinel survived at %d.%d (%s)", pos, slot, in.Op)
			case IdxRewriteLiteral:
				if !mapped[uint32(pos)<<2|uint32(slot)] {
					return fmt.Errorf("bytecode: literal slot %d.%d (%s) has no map entry", pos, slot, in.Op)
				}
			default:
				if mapped[uint32(pos)<<2|uint32(slot)] {
					return fmt.Errorf("bytecode: stray literal map entry at %d.%d (%s)", pos, slot, in.Op)
				}
			}
		}
	}
	return nil
}

// EncodeInstrs packs the instruction array into the 4-byte wire
// layout.
func (img *Image) EncodeInstrs() []byte {
	out := make([]byte, 0, len(img.Instrs)*4)
	for _, in := range img.Instrs {
		out = append(out, byte(in.Op), byte(in.Args[0]), byte(in.Args[1]), byte(in.Args[2]))
	}
	return out
}

// DecodeInstrs unpacks a 4-byte wire layout instruction array.
func DecodeInstrs(data []byte) ([]Instr, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("bytecode: instruction stream of %d bytes is not 4-byte aligned", len(data))
	}
	instrs := make([]Instr, 0, len(data)/4)
	for i := 0; i < len(data); i += 4 {
		instrs = append(instrs, Instr{
			Op:   Opcode(data[i]),
			Args: [3]Idx{Idx(data[i+1]), Idx(data[i+2]), Idx(data[i+3])},
		})
	}
	return instrs, nil
}
