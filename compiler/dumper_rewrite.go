package compiler

import (
	"github.com/shrikejs/shrike/bytecode"
)

// Rewrite protocol for control-flow constructs: each dump_*ForRewrite
// emits a template with unknown displacement operands and records its
// position; the matching rewrite* fills in the displacement once the
// target is reached.

// splitDiff encodes a forward displacement into two 8-bit operand
// slots. It does no range check of its own: a scope buffer holds fewer
// than MaxInstrs instructions (see Serializer.DumpOpMeta), so a
// displacement inside one scope always fits.
func splitDiff(diff bytecode.Counter) (hi, lo bytecode.Idx) {
	return bytecode.SplitCounter(diff)
}

func (d *Dumper) rewriteJumpAt(pos bytecode.Counter, want bytecode.Opcode, slotHi, slotLo int) {
	om := d.ser.OpMetaAt(pos)
	if om.Op != want {
		panic("compiler: back-patch stack points at an unexpected opcode")
	}
	hi, lo := splitDiff(d.diffFrom(pos))
	om.SetOperand(slotHi, bytecode.IdxConst(hi))
	om.SetOperand(slotLo, bytecode.IdxConst(lo))
	d.ser.RewriteOpMeta(pos, om)
}

// ---------------------------------------------------------------------------
// Short-circuit chains
// ---------------------------------------------------------------------------

// StartDumpingLogicalAndChecks opens a sub-stack of pending &&
// checks; chains nest, so the sub-stack base is saved aside.
func (d *Dumper) StartDumpingLogicalAndChecks() {
	d.andBases = append(d.andBases, len(d.andChecks))
}

// DumpLogicalAndCheckForRewrite emits the jump-past-the-chain
// template of one && operand.
func (d *Dumper) DumpLogicalAndCheckForRewrite(op bytecode.Operand) {
	d.andChecks = append(d.andChecks, d.ser.CurrentCounter())
	d.dump(bytecode.OpIsFalseJmpDown, op, bytecode.Unknown(), bytecode.Unknown())
}

// RewriteLogicalAndChecks resolves every pending && check of the
// innermost chain to the current position.
func (d *Dumper) RewriteLogicalAndChecks() {
	base := d.andBases[len(d.andBases)-1]
	d.andBases = d.andBases[:len(d.andBases)-1]

	for _, pos := range d.andChecks[base:] {
		d.rewriteJumpAt(pos, bytecode.OpIsFalseJmpDown, 1, 2)
	}
	d.andChecks = d.andChecks[:base]
}

// StartDumpingLogicalOrChecks opens a sub-stack of pending || checks.
func (d *Dumper) StartDumpingLogicalOrChecks() {
	d.orBases = append(d.orBases, len(d.orChecks))
}

// DumpLogicalOrCheckForRewrite emits the jump-past-the-chain template
// of one || operand.
func (d *Dumper) DumpLogicalOrCheckForRewrite(op bytecode.Operand) {
	d.orChecks = append(d.orChecks, d.ser.CurrentCounter())
	d.dump(bytecode.OpIsTrueJmpDown, op, bytecode.Unknown(), bytecode.Unknown())
}

// RewriteLogicalOrChecks resolves every pending || check of the
// innermost chain to the current position.
func (d *Dumper) RewriteLogicalOrChecks() {
	base := d.orBases[len(d.orBases)-1]
	d.orBases = d.orBases[:len(d.orBases)-1]

	for _, pos := range d.orChecks[base:] {
		d.rewriteJumpAt(pos, bytecode.OpIsTrueJmpDown, 1, 2)
	}
	d.orChecks = d.orChecks[:base]
}

// ---------------------------------------------------------------------------
// Conditionals and forward jumps
// ---------------------------------------------------------------------------

// DumpConditionalCheckForRewrite emits the jump-to-else template of
// an if statement or ternary.
func (d *Dumper) DumpConditionalCheckForRewrite(op bytecode.Operand) {
	d.conditionalChecks = append(d.conditionalChecks, d.ser.CurrentCounter())
	d.dump(bytecode.OpIsFalseJmpDown, op, bytecode.Unknown(), bytecode.Unknown())
}

// RewriteConditionalCheck resolves the innermost pending conditional
// check to the current position.
func (d *Dumper) RewriteConditionalCheck() {
	n := len(d.conditionalChecks)
	pos := d.conditionalChecks[n-1]
	d.conditionalChecks = d.conditionalChecks[:n-1]
	d.rewriteJumpAt(pos, bytecode.OpIsFalseJmpDown, 1, 2)
}

// DumpJumpToEndForRewrite emits an unconditional forward jump
// template (to a merge point or loop condition).
func (d *Dumper) DumpJumpToEndForRewrite() {
	d.jumpsToEnd = append(d.jumpsToEnd, d.ser.CurrentCounter())
	d.dump(bytecode.OpJmpDown, bytecode.Unknown(), bytecode.Unknown())
}

// RewriteJumpToEnd resolves the innermost pending forward jump to the
// current position.
func (d *Dumper) RewriteJumpToEnd() {
	n := len(d.jumpsToEnd)
	pos := d.jumpsToEnd[n-1]
	d.jumpsToEnd = d.jumpsToEnd[:n-1]
	d.rewriteJumpAt(pos, bytecode.OpJmpDown, 0, 1)
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

// SetNextIterationTarget records the loop-header position continue
// jumps and the tail check return to.
func (d *Dumper) SetNextIterationTarget() {
	d.nextIterations = append(d.nextIterations, d.ser.CurrentCounter())
}

// DumpContinueIterationsCheck emits the loop-tail backward jump: an
// unconditional one when the condition is empty, a jump-if-true
// otherwise.
func (d *Dumper) DumpContinueIterationsCheck(op bytecode.Operand) {
	n := len(d.nextIterations)
	target := d.nextIterations[n-1]
	d.nextIterations = d.nextIterations[:n-1]

	hi, lo := splitDiff(d.ser.CurrentCounter() - target)
	if op.IsEmpty() {
		d.dump(bytecode.OpJmpUp, bytecode.IdxConst(hi), bytecode.IdxConst(lo))
	} else {
		d.dump(bytecode.OpIsTrueJmpUp, op, bytecode.IdxConst(hi), bytecode.IdxConst(lo))
	}
}

// ---------------------------------------------------------------------------
// Label jumps (simple and across jumpable borders)
// ---------------------------------------------------------------------------

// DumpSimpleOrNestedJumpForRewrite emits a break/continue jump
// template. Its displacement slots initially thread the chain of
// jumps targeting the same label: they hold the position of the
// previous such jump, or the end-of-chain sentinel. A jump crossing a
// jumpable border uses the unwind-aware opcode.
func (d *Dumper) DumpSimpleOrNestedJumpForRewrite(isSimpleJump bool, nextForTarget bytecode.Counter) bytecode.Counter {
	hi, lo := bytecode.SplitCounter(nextForTarget)
	pos := d.ser.CurrentCounter()
	if isSimpleJump {
		d.dump(bytecode.OpJmpDown, bytecode.IdxConst(hi), bytecode.IdxConst(lo))
	} else {
		d.dump(bytecode.OpJmpBreakContinue, bytecode.IdxConst(hi), bytecode.IdxConst(lo))
	}
	return pos
}

// RewriteSimpleOrNestedJumpAndGetNext writes the real target into a
// chained jump and returns the chain link it held before.
func (d *Dumper) RewriteSimpleOrNestedJumpAndGetNext(jumpPos, target bytecode.Counter) bytecode.Counter {
	om := d.ser.OpMetaAt(jumpPos)
	if om.Op != bytecode.OpJmpDown && om.Op != bytecode.OpJmpBreakContinue {
		panic("compiler: label jump chain points at an unexpected opcode")
	}

	prev := bytecode.JoinCounter(om.Args[0], om.Args[1])

	hi, lo := splitDiff(target - jumpPos)
	om.SetOperand(0, bytecode.IdxConst(hi))
	om.SetOperand(1, bytecode.IdxConst(lo))
	d.ser.RewriteOpMeta(jumpPos, om)

	return prev
}

// ---------------------------------------------------------------------------
// Switch
// ---------------------------------------------------------------------------

// StartDumpingCaseClauses opens the ordered clause table of one
// switch statement.
func (d *Dumper) StartDumpingCaseClauses() {
	d.caseBases = append(d.caseBases, len(d.caseClauses))
	d.caseCursors = append(d.caseCursors, len(d.caseClauses))
}

// DumpCaseClauseCheckForRewrite emits the compare-and-jump pair of
// one case clause.
func (d *Dumper) DumpCaseClauseCheckForRewrite(switchExpr, caseExpr bytecode.Operand) {
	res := d.tmpOperand()
	d.dump(bytecode.OpEqualValueType, res, switchExpr, caseExpr)
	d.caseClauses = append(d.caseClauses, d.ser.CurrentCounter())
	d.dump(bytecode.OpIsTrueJmpDown, res, bytecode.Unknown(), bytecode.Unknown())
}

// DumpDefaultClauseCheckForRewrite emits the unconditional jump to
// the default clause (or past the switch when there is none).
func (d *Dumper) DumpDefaultClauseCheckForRewrite() {
	d.caseClauses = append(d.caseClauses, d.ser.CurrentCounter())
	d.dump(bytecode.OpJmpDown, bytecode.Unknown(), bytecode.Unknown())
}

// RewriteCaseClause resolves the next case jump, in source order, to
// the current position.
func (d *Dumper) RewriteCaseClause() {
	cur := d.caseCursors[len(d.caseCursors)-1]
	pos := d.caseClauses[cur]
	d.rewriteJumpAt(pos, bytecode.OpIsTrueJmpDown, 1, 2)
	d.caseCursors[len(d.caseCursors)-1]++
}

// RewriteDefaultClause resolves the default jump (always the last
// entry of the clause table) to the current position.
func (d *Dumper) RewriteDefaultClause() {
	pos := d.caseClauses[len(d.caseClauses)-1]
	d.rewriteJumpAt(pos, bytecode.OpJmpDown, 0, 1)
}

// FinishDumpingCaseClauses drops the switch's clause table.
func (d *Dumper) FinishDumpingCaseClauses() {
	base := d.caseBases[len(d.caseBases)-1]
	d.caseBases = d.caseBases[:len(d.caseBases)-1]
	d.caseCursors = d.caseCursors[:len(d.caseCursors)-1]
	d.caseClauses = d.caseClauses[:base]
}

// ---------------------------------------------------------------------------
// with / for-in spans
// ---------------------------------------------------------------------------

// DumpWithForRewrite emits a with template carrying its block-end
// offset.
func (d *Dumper) DumpWithForRewrite(op bytecode.Operand) bytecode.Counter {
	pos := d.ser.CurrentCounter()
	d.dump(bytecode.OpWith, op, bytecode.Unknown(), bytecode.Unknown())
	return pos
}

// RewriteWith writes the with block's end position.
func (d *Dumper) RewriteWith(pos bytecode.Counter) {
	d.rewriteJumpAt(pos, bytecode.OpWith, 1, 2)
}

// DumpWithEnd terminates a with block.
func (d *Dumper) DumpWithEnd() {
	d.dump(bytecode.OpMeta, bytecode.IdxConst(bytecode.Idx(bytecode.MetaEndWith)), bytecode.Empty(), bytecode.Empty())
}

// DumpForInForRewrite emits a for-in template carrying its block-end
// offset.
func (d *Dumper) DumpForInForRewrite(op bytecode.Operand) bytecode.Counter {
	pos := d.ser.CurrentCounter()
	d.dump(bytecode.OpForIn, op, bytecode.Unknown(), bytecode.Unknown())
	return pos
}

// RewriteForIn writes the for-in block's end position.
func (d *Dumper) RewriteForIn(pos bytecode.Counter) {
	d.rewriteJumpAt(pos, bytecode.OpForIn, 1, 2)
}

// DumpForInEnd terminates a for-in block.
func (d *Dumper) DumpForInEnd() {
	d.dump(bytecode.OpMeta, bytecode.IdxConst(bytecode.Idx(bytecode.MetaEndForIn)), bytecode.Empty(), bytecode.Empty())
}

// ---------------------------------------------------------------------------
// try / catch / finally
// ---------------------------------------------------------------------------

// DumpTryForRewrite emits a try-block template carrying its end
// offset.
func (d *Dumper) DumpTryForRewrite() {
	d.tries = append(d.tries, d.ser.CurrentCounter())
	d.dump(bytecode.OpTryBlock, bytecode.Unknown(), bytecode.Unknown())
}

// RewriteTry writes the try block's end position.
func (d *Dumper) RewriteTry() {
	n := len(d.tries)
	pos := d.tries[n-1]
	d.tries = d.tries[:n-1]
	d.rewriteJumpAt(pos, bytecode.OpTryBlock, 0, 1)
}

// DumpCatchForRewrite emits the catch meta template and the
// exception-identifier meta.
func (d *Dumper) DumpCatchForRewrite(exception bytecode.Operand) {
	if !exception.IsLiteral() {
		panic("compiler: catch exception identifier must be a literal")
	}
	d.catches = append(d.catches, d.ser.CurrentCounter())
	d.dump(bytecode.OpMeta,
		bytecode.IdxConst(bytecode.Idx(bytecode.MetaCatch)),
		bytecode.Unknown(),
		bytecode.Unknown())
	d.dump(bytecode.OpMeta,
		bytecode.IdxConst(bytecode.Idx(bytecode.MetaCatchExceptionIdentifier)),
		exception,
		bytecode.Empty())
}

// RewriteCatch writes the catch block's end position.
func (d *Dumper) RewriteCatch() {
	n := len(d.catches)
	pos := d.catches[n-1]
	d.catches = d.catches[:n-1]

	om := d.ser.OpMetaAt(pos)
	if om.Op != bytecode.OpMeta || bytecode.MetaType(om.Args[0]) != bytecode.MetaCatch {
		panic("compiler: catches stack points at a non catch meta")
	}
	hi, lo := splitDiff(d.diffFrom(pos))
	om.SetOperand(1, bytecode.IdxConst(hi))
	om.SetOperand(2, bytecode.IdxConst(lo))
	d.ser.RewriteOpMeta(pos, om)
}

// DumpFinallyForRewrite emits the finally meta template.
func (d *Dumper) DumpFinallyForRewrite() {
	d.finallies = append(d.finallies, d.ser.CurrentCounter())
	d.dump(bytecode.OpMeta,
		bytecode.IdxConst(bytecode.Idx(bytecode.MetaFinally)),
		bytecode.Unknown(),
		bytecode.Unknown())
}

// RewriteFinally writes the finally block's end position.
func (d *Dumper) RewriteFinally() {
	n := len(d.finallies)
	pos := d.finallies[n-1]
	d.finallies = d.finallies[:n-1]

	om := d.ser.OpMetaAt(pos)
	if om.Op != bytecode.OpMeta || bytecode.MetaType(om.Args[0]) != bytecode.MetaFinally {
		panic("compiler: finallies stack points at a non finally meta")
	}
	hi, lo := splitDiff(d.diffFrom(pos))
	om.SetOperand(1, bytecode.IdxConst(hi))
	om.SetOperand(2, bytecode.IdxConst(lo))
	d.ser.RewriteOpMeta(pos, om)
}

// DumpEndTryCatchFinally terminates a try/catch/finally region.
func (d *Dumper) DumpEndTryCatchFinally() {
	d.dump(bytecode.OpMeta,
		bytecode.IdxConst(bytecode.Idx(bytecode.MetaEndTryCatchFinally)),
		bytecode.Empty(),
		bytecode.Empty())
}
