// Package bytecode defines the engine's internal bytecode
// representation: operand slots, op-meta instruction records, the
// finalized image layout the VM consumes, a disassembler and a
// snapshot codec.
package bytecode

import (
	"fmt"

	"github.com/shrikejs/shrike/lit"
)

// Idx is a raw operand slot value: a register index, a small
// constant, or one of the reserved sentinels below.
type Idx uint8

const (
	// IdxEmpty marks an absent operand slot.
	IdxEmpty Idx = 0xFF

	// IdxRewriteLiteral marks a slot whose value is a literal
	// reference carried in the parallel literal table.
	IdxRewriteLiteral Idx = 0xFE

	// IdxRewriteGeneral marks a slot pending back-patch. It must not
	// survive into a finalized image.
	IdxRewriteGeneral Idx = 0xFD
)

// Register file layout. General registers hold temporaries and, after
// optimization, local variables and arguments; the three special
// registers are pinned.
const (
	RegGeneralFirst Idx = 0
	RegGeneralLast  Idx = 249

	RegSpecialEvalRet       Idx = 250
	RegSpecialForInPropName Idx = 251
	RegSpecialThisBinding   Idx = 252
)

// OperandType tags the Operand union.
type OperandType uint8

const (
	OperandEmpty    OperandType = iota // absent argument
	OperandLiteral                     // reference into the literal table
	OperandRegister                    // VM register index
	OperandIdxConst                    // small unsigned constant
	OperandUnknown                     // placeholder, filled by a later rewrite
)

// Operand is a parser-level descriptor of an instruction argument.
// Constructors return values; operands are never mutated in place.
type Operand struct {
	typ OperandType
	idx Idx
	lit lit.ID
}

// Empty returns the absent-argument operand.
func Empty() Operand {
	return Operand{typ: OperandEmpty}
}

// Unknown returns a placeholder operand to be rewritten later.
func Unknown() Operand {
	return Operand{typ: OperandUnknown}
}

// IdxConst returns a small-constant operand.
func IdxConst(v Idx) Operand {
	return Operand{typ: OperandIdxConst, idx: v}
}

// Reg returns a register operand.
func Reg(r Idx) Operand {
	if r > RegSpecialThisBinding {
		panic(fmt.Sprintf("bytecode: %#x is not a register", uint8(r)))
	}
	return Operand{typ: OperandRegister, idx: r}
}

// Lit returns a literal-reference operand.
func Lit(id lit.ID) Operand {
	if id == lit.None {
		panic("bytecode: literal operand with no literal")
	}
	return Operand{typ: OperandLiteral, lit: id}
}

// Type returns the operand's variant tag.
func (o Operand) Type() OperandType { return o.typ }

// IsEmpty reports whether the operand is absent.
func (o Operand) IsEmpty() bool { return o.typ == OperandEmpty }

// IsUnknown reports whether the operand is a rewrite placeholder.
func (o Operand) IsUnknown() bool { return o.typ == OperandUnknown }

// IsRegister reports whether the operand is a register.
func (o Operand) IsRegister() bool { return o.typ == OperandRegister }

// IsLiteral reports whether the operand is a literal reference.
func (o Operand) IsLiteral() bool { return o.typ == OperandLiteral }

// IsIdxConst reports whether the operand is a small constant.
func (o Operand) IsIdxConst() bool { return o.typ == OperandIdxConst }

// Register returns the register index of a register operand.
func (o Operand) Register() Idx {
	if o.typ != OperandRegister {
		panic("bytecode: Register on non-register operand")
	}
	return o.idx
}

// Const returns the value of an idx-const operand.
func (o Operand) Const() Idx {
	if o.typ != OperandIdxConst {
		panic("bytecode: Const on non-constant operand")
	}
	return o.idx
}

// Literal returns the literal id of a literal operand.
func (o Operand) Literal() lit.ID {
	if o.typ != OperandLiteral {
		panic("bytecode: Literal on non-literal operand")
	}
	return o.lit
}
