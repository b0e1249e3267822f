package bytecode

import (
	"fmt"
	"strings"

	"github.com/shrikejs/shrike/lit"
)

// formatSlot renders one raw operand slot, resolving literal
// references through the table when one is supplied.
func formatSlot(arg Idx, id lit.ID, table *lit.Table) string {
	switch arg {
	case IdxEmpty:
		return "-"
	case IdxRewriteGeneral:
		return "<rewrite>"
	case IdxRewriteLiteral:
		if table != nil && id != lit.None {
			switch table.Kind(id) {
			case lit.KindString:
				return fmt.Sprintf("%q", table.String(id))
			case lit.KindNumber:
				return fmt.Sprintf("%v", table.Number(id))
			}
		}
		return fmt.Sprintf("lit:%d", id)
	default:
		if arg <= RegSpecialThisBinding {
			return fmt.Sprintf("r%d", arg)
		}
		return fmt.Sprintf("#%d", arg)
	}
}

// FormatOpMeta renders one op-meta as a single line.
func FormatOpMeta(om Instruction, table *lit.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-22s", om.Op)
	for i := 0; i < 3; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatSlot(om.Args[i], om.LitID[i], table))
	}
	if om.Op == OpMeta && om.Args[0] != IdxEmpty && om.Args[0] != IdxRewriteLiteral {
		fmt.Fprintf(&b, "   ; %s", MetaType(om.Args[0]))
	}
	return b.String()
}

// Disassemble renders a finalized image, one instruction per line.
func Disassemble(img *Image, table *lit.Table) string {
	var b strings.Builder
	for pos, in := range img.Instrs {
		om := Instruction{Instr: in}
		for slot := 0; slot < 3; slot++ {
			om.LitID[slot] = lit.None
			if in.Args[slot] == IdxRewriteLiteral {
				if id, ok := img.LiteralAt(Counter(pos), slot); ok {
					om.LitID[slot] = id
				}
			}
		}
		fmt.Fprintf(&b, "%5d  %s\n", pos, FormatOpMeta(om, table))
	}
	return b.String()
}
