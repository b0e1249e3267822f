// Package lit implements the engine's literal table: an interning
// store for identifier/string literals and numbers. Record headers
// are fixed-size cells allocated from the pool allocator and chained
// into a list; string payload bytes live in an append-only arena.
package lit

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/shrikejs/shrike/mem"
)

// ID is a compressed reference to a literal record.
type ID uint16

// None marks an operand slot with no associated literal.
const None ID = 0xFFFF

// MaxLiterals bounds the table size; ids above it collide with None.
const MaxLiterals = 0xFFFF

// Kind distinguishes record payloads.
type Kind uint8

const (
	KindString Kind = iota + 1 // identifier or string literal
	KindNumber                 // numeric literal
)

// Record cell layout, one pool chunk per record:
//
//	[0:4]  next record handle
//	[4]    kind
//	[6:8]  string length
//	[8:12] string arena offset
//	[8:16] number bits (KindNumber)

// Table is the literal table. One instance exists per engine context.
type Table struct {
	pools   *mem.Pools
	head    mem.Handle
	records []mem.Handle
	arena   []byte

	strIndex map[string]ID
	numIndex map[uint64]ID
}

// NewTable creates an empty literal table backed by the given pool
// allocator.
func NewTable(pools *mem.Pools) *Table {
	return &Table{
		pools:    pools,
		head:     mem.HandleNil,
		strIndex: make(map[string]ID),
		numIndex: make(map[uint64]ID),
	}
}

func (t *Table) newRecord(kind Kind) (ID, []byte, error) {
	if len(t.records) >= MaxLiterals {
		return None, nil, fmt.Errorf("lit: too many literals (%d)", len(t.records))
	}

	c, err := t.pools.Alloc()
	if err != nil {
		return None, nil, fmt.Errorf("lit: %w", err)
	}

	b := t.pools.Bytes(c)
	for i := range b {
		b[i] = 0
	}
	binary.LittleEndian.PutUint32(b[0:4], uint32(t.head))
	b[4] = byte(kind)

	t.head = c
	id := ID(len(t.records))
	t.records = append(t.records, c)
	return id, b, nil
}

// InternString returns the id of the given string, creating a record
// on first sight.
func (t *Table) InternString(s string) (ID, error) {
	if id, ok := t.strIndex[s]; ok {
		return id, nil
	}
	if len(s) > 0xFFFF {
		return None, fmt.Errorf("lit: string literal of %d bytes exceeds the record limit", len(s))
	}

	id, b, err := t.newRecord(KindString)
	if err != nil {
		return None, err
	}
	binary.LittleEndian.PutUint16(b[6:8], uint16(len(s)))
	binary.LittleEndian.PutUint32(b[8:12], uint32(len(t.arena)))
	t.arena = append(t.arena, s...)

	t.strIndex[s] = id
	return id, nil
}

// InternNumber returns the id of the given number, creating a record
// on first sight.
func (t *Table) InternNumber(n float64) (ID, error) {
	bits := math.Float64bits(n)
	if id, ok := t.numIndex[bits]; ok {
		return id, nil
	}

	id, b, err := t.newRecord(KindNumber)
	if err != nil {
		return None, err
	}
	binary.LittleEndian.PutUint64(b[8:16], bits)

	t.numIndex[bits] = id
	return id, nil
}

// Kind reports the kind of a record.
func (t *Table) Kind(id ID) Kind {
	return Kind(t.pools.Bytes(t.records[id])[4])
}

// String returns the payload of a string record.
func (t *Table) String(id ID) string {
	b := t.pools.Bytes(t.records[id])
	if Kind(b[4]) != KindString {
		panic(fmt.Sprintf("lit: record %d is not a string", id))
	}
	n := int(binary.LittleEndian.Uint16(b[6:8]))
	off := int(binary.LittleEndian.Uint32(b[8:12]))
	return string(t.arena[off : off+n])
}

// Number returns the payload of a number record.
func (t *Table) Number(id ID) float64 {
	b := t.pools.Bytes(t.records[id])
	if Kind(b[4]) != KindNumber {
		panic(fmt.Sprintf("lit: record %d is not a number", id))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[8:16]))
}

// Count reports the number of interned literals.
func (t *Table) Count() int {
	return len(t.records)
}

// Release returns every record cell to the pool allocator. The table
// is unusable afterwards.
func (t *Table) Release() {
	for c := t.head; c != mem.HandleNil; {
		next := mem.Handle(binary.LittleEndian.Uint32(t.pools.Bytes(c)[0:4]))
		t.pools.Free(c)
		c = next
	}
	t.head = mem.HandleNil
	t.records = nil
	t.arena = nil
	t.strIndex = nil
	t.numIndex = nil
}
