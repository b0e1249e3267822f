package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/shrikejs/shrike/lit"
)

// Snapshot format: a finalized image plus the payloads of every
// literal it references, so the image can be loaded into a fresh
// engine context and its ids remapped.

const (
	snapshotMagic   = "shrike-bc"
	snapshotVersion = 1
)

// cborEncMode uses canonical options for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type snapshotLiteral struct {
	ID   uint16  `cbor:"1,keyasint"`
	Kind uint8   `cbor:"2,keyasint"`
	Str  string  `cbor:"3,keyasint,omitempty"`
	Num  float64 `cbor:"4,keyasint,omitempty"`
}

type snapshotLitMapEntry struct {
	Pos  uint16 `cbor:"1,keyasint"`
	Slot uint8  `cbor:"2,keyasint"`
	Lit  uint16 `cbor:"3,keyasint"`
}

type snapshotScope struct {
	Start           uint16 `cbor:"1,keyasint"`
	Strict          bool   `cbor:"2,keyasint,omitempty"`
	ArgsOnRegisters bool   `cbor:"3,keyasint,omitempty"`
	NoLexEnv        bool   `cbor:"4,keyasint,omitempty"`
}

type snapshotImage struct {
	Magic    string                `cbor:"1,keyasint"`
	Version  int                   `cbor:"2,keyasint"`
	ImageID  string                `cbor:"3,keyasint"`
	Instrs   []byte                `cbor:"4,keyasint"`
	LitMap   []snapshotLitMapEntry `cbor:"5,keyasint"`
	Scopes   []snapshotScope       `cbor:"6,keyasint"`
	Literals []snapshotLiteral     `cbor:"7,keyasint"`
}

// Snapshot serializes the image and its referenced literals to bytes.
func (img *Image) Snapshot(table *lit.Table) ([]byte, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: refusing to snapshot invalid image: %w", err)
	}

	snap := snapshotImage{
		Magic:   snapshotMagic,
		Version: snapshotVersion,
		ImageID: uuid.NewString(),
		Instrs:  img.EncodeInstrs(),
	}

	seen := make(map[lit.ID]bool)
	for _, e := range img.LitMap {
		snap.LitMap = append(snap.LitMap, snapshotLitMapEntry{
			Pos:  uint16(e.Pos),
			Slot: e.Slot,
			Lit:  uint16(e.Lit),
		})
		if seen[e.Lit] {
			continue
		}
		seen[e.Lit] = true

		sl := snapshotLiteral{ID: uint16(e.Lit), Kind: uint8(table.Kind(e.Lit))}
		switch table.Kind(e.Lit) {
		case lit.KindString:
			sl.Str = table.String(e.Lit)
		case lit.KindNumber:
			sl.Num = table.Number(e.Lit)
		}
		snap.Literals = append(snap.Literals, sl)
	}

	for _, s := range img.Scopes {
		snap.Scopes = append(snap.Scopes, snapshotScope{
			Start:           uint16(s.Start),
			Strict:          s.Strict,
			ArgsOnRegisters: s.ArgsOnRegisters,
			NoLexEnv:        s.NoLexEnv,
		})
	}

	return cborEncMode.Marshal(&snap)
}

// LoadSnapshot decodes a snapshot, re-interns its literals into the
// given table and returns the image with remapped literal ids.
func LoadSnapshot(data []byte, table *lit.Table) (*Image, error) {
	var snap snapshotImage
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal snapshot: %w", err)
	}
	if snap.Magic != snapshotMagic {
		return nil, fmt.Errorf("bytecode: not a snapshot (magic %q)", snap.Magic)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("bytecode: unsupported snapshot version %d", snap.Version)
	}
	if _, err := uuid.Parse(snap.ImageID); err != nil {
		return nil, fmt.Errorf("bytecode: bad image id: %w", err)
	}

	remap := make(map[uint16]lit.ID, len(snap.Literals))
	for _, sl := range snap.Literals {
		var (
			id  lit.ID
			err error
		)
		switch lit.Kind(sl.Kind) {
		case lit.KindString:
			id, err = table.InternString(sl.Str)
		case lit.KindNumber:
			id, err = table.InternNumber(sl.Num)
		default:
			err = fmt.Errorf("bytecode: snapshot literal %d has bad kind %d", sl.ID, sl.Kind)
		}
		if err != nil {
			return nil, err
		}
		remap[sl.ID] = id
	}

	instrs, err := DecodeInstrs(snap.Instrs)
	if err != nil {
		return nil, err
	}

	img := &Image{Instrs: instrs}
	for _, e := range snap.LitMap {
		id, ok := remap[e.Lit]
		if !ok {
			return nil, fmt.Errorf("bytecode: literal map references missing literal %d", e.Lit)
		}
		img.LitMap = append(img.LitMap, LitMapEntry{Pos: Counter(e.Pos), Slot: e.Slot, Lit: id})
	}
	for _, s := range snap.Scopes {
		img.Scopes = append(img.Scopes, ScopeHeader{
			Start:           Counter(s.Start),
			Strict:          s.Strict,
			ArgsOnRegisters: s.ArgsOnRegisters,
			NoLexEnv:        s.NoLexEnv,
		})
	}

	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: loaded snapshot is invalid: %w", err)
	}
	return img, nil
}
