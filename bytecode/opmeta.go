package bytecode

import (
	"fmt"

	"github.com/shrikejs/shrike/lit"
)

// Counter is a position in a per-scope instruction buffer.
type Counter uint16

// MaxInstrs bounds a scope's instruction buffer.
const MaxInstrs = 0x10000

// MaxJumpDistance is the largest encodable jump displacement.
const MaxJumpDistance = 0xFFFF

// Instr is one fixed-width instruction: an opcode and three raw
// operand slots.
type Instr struct {
	Op   Opcode
	Args [3]Idx
}

// Instruction is an emitted instruction together with the literal
// references of its operand slots. For each slot exactly one of these
// holds: the arg is IdxEmpty; the arg is a register or constant and
// the literal is lit.None; the arg is IdxRewriteLiteral and the
// literal is set; the arg is IdxRewriteGeneral pending back-patch.
type Instruction struct {
	Instr
	LitID [3]lit.ID
}

// New builds an op-meta from an opcode and three operands, encoding
// each operand into its raw slot and literal reference.
func New(op Opcode, ops ...Operand) Instruction {
	if len(ops) > 3 {
		panic("bytecode: more than three operands")
	}
	om := Instruction{Instr: Instr{Op: op}}
	for i := 0; i < 3; i++ {
		om.Args[i] = IdxEmpty
		om.LitID[i] = lit.None
	}
	for i, o := range ops {
		om.SetOperand(i, o)
	}
	return om
}

// SetOperand encodes an operand into slot i.
func (om *Instruction) SetOperand(i int, o Operand) {
	switch o.Type() {
	case OperandEmpty:
		om.Args[i] = IdxEmpty
		om.LitID[i] = lit.None
	case OperandUnknown:
		om.Args[i] = IdxRewriteGeneral
		om.LitID[i] = lit.None
	case OperandIdxConst:
		om.Args[i] = o.Const()
		om.LitID[i] = lit.None
	case OperandRegister:
		om.Args[i] = o.Register()
		om.LitID[i] = lit.None
	case OperandLiteral:
		om.Args[i] = IdxRewriteLiteral
		om.LitID[i] = o.Literal()
	default:
		panic(fmt.Sprintf("bytecode: bad operand type %d", o.Type()))
	}
}

// Operand decodes slot i back into an Operand.
func (om *Instruction) Operand(i int) Operand {
	switch {
	case om.Args[i] == IdxEmpty:
		return Empty()
	case om.Args[i] == IdxRewriteGeneral:
		return Unknown()
	case om.Args[i] == IdxRewriteLiteral:
		return Lit(om.LitID[i])
	case om.Args[i] <= RegSpecialThisBinding:
		return Reg(om.Args[i])
	default:
		return IdxConst(om.Args[i])
	}
}

// IsLiteralSlot reports whether slot i carries a literal reference.
func (om *Instruction) IsLiteralSlot(i int) bool {
	return om.Args[i] == IdxRewriteLiteral
}

// SplitCounter encodes a non-negative displacement as two 8-bit
// operand slots.
func SplitCounter(oc Counter) (hi, lo Idx) {
	return Idx(oc >> 8), Idx(oc & 0xFF)
}

// JoinCounter decodes the two-slot displacement encoding.
func JoinCounter(hi, lo Idx) Counter {
	return Counter(hi)<<8 | Counter(lo)
}
