package compiler

import (
	"fmt"

	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
)

// VargKind selects the header instruction of an argument-list dump.
type VargKind uint8

const (
	VargFuncDecl VargKind = iota
	VargFuncExpr
	VargConstructExpr
	VargCallExpr
	VargArrayDecl
	VargObjDecl
)

// Dumper translates parser-level operations into op-metas. It owns
// the per-scope register file and one back-patch stack per construct
// whose operands become known only later; every template instruction
// it emits is rewritten in place once its target resolves.
type Dumper struct {
	ser   *Serializer
	table *lit.Table

	// Register file cursors. Temps grow from RegGeneralFirst; the
	// optimizer stacks local-variable and argument regions on top.
	regNext        bytecode.Idx
	regMaxTemps    bytecode.Idx
	regMaxLocalVar bytecode.Idx // IdxEmpty when no region allocated
	regMaxArgs     bytecode.Idx // IdxEmpty when no region allocated

	// Saved cursors for nested scopes and varg code sequences.
	regSave []bytecode.Idx

	// Back-patch stacks, one per construct category.
	vargHeaders       []bytecode.Counter
	functionEnds      []bytecode.Counter
	andChecks         []bytecode.Counter
	orChecks          []bytecode.Counter
	andBases          []int
	orBases           []int
	conditionalChecks []bytecode.Counter
	jumpsToEnd        []bytecode.Counter
	propGetters       []bytecode.Instruction
	nextIterations    []bytecode.Counter
	caseClauses       []bytecode.Counter
	caseBases         []int
	caseCursors       []int
	tries             []bytecode.Counter
	catches           []bytecode.Counter
	finallies         []bytecode.Counter
}

// NewDumper creates a dumper emitting through the given serializer.
func NewDumper(ser *Serializer, table *lit.Table) *Dumper {
	d := &Dumper{ser: ser, table: table}
	d.regNext = bytecode.RegGeneralFirst
	d.regMaxTemps = bytecode.RegGeneralFirst
	d.regMaxLocalVar = bytecode.IdxEmpty
	d.regMaxArgs = bytecode.IdxEmpty
	return d
}

// ---------------------------------------------------------------------------
// Register file
// ---------------------------------------------------------------------------

func (d *Dumper) allocTemp() bytecode.Idx {
	if d.regMaxLocalVar != bytecode.IdxEmpty || d.regMaxArgs != bytecode.IdxEmpty {
		panic("compiler: temp allocation after optimizer regions were laid out")
	}
	if d.regNext > bytecode.RegGeneralLast {
		raiseSyntaxError(Loc{}, "Not enough register variables")
	}
	next := d.regNext
	d.regNext++
	if d.regMaxTemps < next {
		d.regMaxTemps = next
	}
	return next
}

func (d *Dumper) tmpOperand() bytecode.Operand {
	return bytecode.Reg(d.allocTemp())
}

// isTempRegister reports whether reg lies in the temp region.
func (d *Dumper) isTempRegister(reg bytecode.Idx) bool {
	return reg >= bytecode.RegGeneralFirst && reg <= d.regMaxTemps
}

// NewStatement resets the temp bump pointer; temporaries do not
// survive across statements.
func (d *Dumper) NewStatement() {
	d.regNext = bytecode.RegGeneralFirst
}

// NewScope saves the register cursors and starts a fresh file for a
// nested scope.
func (d *Dumper) NewScope() {
	if d.regMaxLocalVar != bytecode.IdxEmpty || d.regMaxArgs != bytecode.IdxEmpty {
		panic("compiler: NewScope during optimizer pass")
	}
	d.regSave = append(d.regSave, d.regNext, d.regMaxTemps)
	d.regNext = bytecode.RegGeneralFirst
	d.regMaxTemps = d.regNext
}

// FinishScope restores the register cursors of the enclosing scope.
func (d *Dumper) FinishScope() {
	if d.regMaxLocalVar != bytecode.IdxEmpty || d.regMaxArgs != bytecode.IdxEmpty {
		panic("compiler: FinishScope during optimizer pass")
	}
	n := len(d.regSave)
	d.regMaxTemps = d.regSave[n-1]
	d.regNext = d.regSave[n-2]
	d.regSave = d.regSave[:n-2]
}

// StartVargCodeSequence saves the temp cursor: registers allocated
// while preparing one argument are not used past it and can be
// reclaimed.
func (d *Dumper) StartVargCodeSequence() {
	d.regSave = append(d.regSave, d.regNext)
}

// FinishVargCodeSequence restores the temp cursor saved by
// StartVargCodeSequence.
func (d *Dumper) FinishVargCodeSequence() {
	n := len(d.regSave)
	d.regNext = d.regSave[n-1]
	d.regSave = d.regSave[:n-1]
}

// CheckStacksEmpty verifies that every back-patch stack has drained.
// It runs at scope exit.
func (d *Dumper) CheckStacksEmpty() {
	for name, n := range map[string]int{
		"varg-headers":           len(d.vargHeaders),
		"function-ends":          len(d.functionEnds),
		"logical-and-checks":     len(d.andChecks),
		"logical-or-checks":      len(d.orChecks),
		"conditional-checks":     len(d.conditionalChecks),
		"jumps-to-end":           len(d.jumpsToEnd),
		"prop-getters":           len(d.propGetters),
		"next-iteration-targets": len(d.nextIterations),
		"case-clauses":           len(d.caseClauses),
		"tries":                  len(d.tries),
		"catches":                len(d.catches),
		"finallies":              len(d.finallies),
	} {
		if n != 0 {
			panic(fmt.Sprintf("compiler: %s back-patch stack holds %d entries at scope exit", name, n))
		}
	}
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (d *Dumper) dump(op bytecode.Opcode, ops ...bytecode.Operand) bytecode.Counter {
	return d.ser.DumpOpMeta(bytecode.New(op, ops...))
}

func (d *Dumper) lastDumpedOpMeta() bytecode.Instruction {
	return d.ser.OpMetaAt(d.ser.CurrentCounter() - 1)
}

func (d *Dumper) rewriteLastDumpedOpMeta(om bytecode.Instruction) {
	d.ser.RewriteOpMeta(d.ser.CurrentCounter()-1, om)
}

// diffFrom returns the forward displacement from the given counter to
// the current position.
func (d *Dumper) diffFrom(pos bytecode.Counter) bytecode.Counter {
	return d.ser.CurrentCounter() - pos
}

// operandFromSlot reconstructs the operand stored in an op-meta slot
// holding either a register or a literal reference.
func operandFromSlot(arg bytecode.Idx, id lit.ID) bytecode.Operand {
	if arg != bytecode.IdxRewriteLiteral {
		return bytecode.Reg(arg)
	}
	return bytecode.Lit(id)
}

// IsEvalLiteral reports whether the operand references the literal
// "eval" (detection of the direct-eval call form).
func (d *Dumper) IsEvalLiteral(op bytecode.Operand) bool {
	return op.IsLiteral() &&
		d.table.Kind(op.Literal()) == lit.KindString &&
		d.table.String(op.Literal()) == "eval"
}

// EvalRetOperand is the register holding an eval's completion value.
func EvalRetOperand() bytecode.Operand {
	return bytecode.Reg(bytecode.RegSpecialEvalRet)
}

// ForInPropNameOperand is the register the for-in handler stores the
// next property name into.
func ForInPropNameOperand() bytecode.Operand {
	return bytecode.Reg(bytecode.RegSpecialForInPropName)
}

// DumpThisRes yields the this-binding register.
func (d *Dumper) DumpThisRes() bytecode.Operand {
	return bytecode.Reg(bytecode.RegSpecialThisBinding)
}

// ---------------------------------------------------------------------------
// Assignments
// ---------------------------------------------------------------------------

func (d *Dumper) dumpAssignment(res bytecode.Operand, vt bytecode.ValueType, value bytecode.Operand) {
	d.dump(bytecode.OpAssignment, res, bytecode.IdxConst(bytecode.Idx(vt)), value)
}

// DumpBooleanAssignment stores a boolean constant.
func (d *Dumper) DumpBooleanAssignment(res bytecode.Operand, isTrue bool) {
	v := bytecode.SimpleFalse
	if isTrue {
		v = bytecode.SimpleTrue
	}
	d.dumpAssignment(res, bytecode.ValueSimple, bytecode.IdxConst(v))
}

// DumpBooleanAssignmentRes stores a boolean constant into a fresh temp.
func (d *Dumper) DumpBooleanAssignmentRes(isTrue bool) bytecode.Operand {
	res := d.tmpOperand()
	d.DumpBooleanAssignment(res, isTrue)
	return res
}

// DumpStringAssignmentRes stores a string literal into a fresh temp.
func (d *Dumper) DumpStringAssignmentRes(id lit.ID) bytecode.Operand {
	res := d.tmpOperand()
	d.dumpAssignment(res, bytecode.ValueString, bytecode.Lit(id))
	return res
}

// DumpNumberAssignmentRes stores a number literal into a fresh temp.
func (d *Dumper) DumpNumberAssignmentRes(id lit.ID) bytecode.Operand {
	res := d.tmpOperand()
	d.dumpAssignment(res, bytecode.ValueNumber, bytecode.Lit(id))
	return res
}

// DumpRegexpAssignmentRes stores a regexp literal into a fresh temp.
func (d *Dumper) DumpRegexpAssignmentRes(id lit.ID) bytecode.Operand {
	res := d.tmpOperand()
	d.dumpAssignment(res, bytecode.ValueRegexp, bytecode.Lit(id))
	return res
}

// DumpSmallIntAssignmentRes stores a small integer into a fresh temp.
func (d *Dumper) DumpSmallIntAssignmentRes(v bytecode.Idx) bytecode.Operand {
	res := d.tmpOperand()
	d.dumpAssignment(res, bytecode.ValueSmallint, bytecode.IdxConst(v))
	return res
}

// DumpUndefinedAssignment stores undefined.
func (d *Dumper) DumpUndefinedAssignment(res bytecode.Operand) {
	d.dumpAssignment(res, bytecode.ValueSimple, bytecode.IdxConst(bytecode.SimpleUndefined))
}

// DumpNullAssignmentRes stores null into a fresh temp.
func (d *Dumper) DumpNullAssignmentRes() bytecode.Operand {
	res := d.tmpOperand()
	d.dumpAssignment(res, bytecode.ValueSimple, bytecode.IdxConst(bytecode.SimpleNull))
	return res
}

// DumpArrayHoleAssignmentRes stores the array-hole marker into a
// fresh temp (elision in an array literal).
func (d *Dumper) DumpArrayHoleAssignmentRes() bytecode.Operand {
	res := d.tmpOperand()
	d.dumpAssignment(res, bytecode.ValueSimple, bytecode.IdxConst(bytecode.SimpleArrayHole))
	return res
}

// DumpVariableAssignment copies a variable or register value.
func (d *Dumper) DumpVariableAssignment(res, v bytecode.Operand) {
	d.dumpAssignment(res, bytecode.ValueVariable, v)
}

// DumpVariableAssignmentRes copies a value into a fresh temp.
func (d *Dumper) DumpVariableAssignmentRes(v bytecode.Operand) bytecode.Operand {
	res := d.tmpOperand()
	d.DumpVariableAssignment(res, v)
	return res
}

// ---------------------------------------------------------------------------
// Unary / binary operations
// ---------------------------------------------------------------------------

// DumpUnaryRes emits a two-address operation into a fresh temp.
func (d *Dumper) DumpUnaryRes(op bytecode.Opcode, obj bytecode.Operand) bytecode.Operand {
	res := d.tmpOperand()
	d.dump(op, res, obj)
	return res
}

// DumpBinaryRes emits a three-address operation into a fresh temp.
func (d *Dumper) DumpBinaryRes(op bytecode.Opcode, lhs, rhs bytecode.Operand) bytecode.Operand {
	res := d.tmpOperand()
	d.dump(op, res, lhs, rhs)
	return res
}

// checkOperandInPrefixOperation rejects prefix increment/decrement of
// something that is provably not a reference: a temp register whose
// producing instruction was not a property getter.
func (d *Dumper) checkOperandInPrefixOperation(obj bytecode.Operand, loc Loc) {
	last := d.lastDumpedOpMeta()
	if last.Op != bytecode.OpPropGetter && obj.IsRegister() {
		raiseReferenceError(loc, "Invalid left-hand-side expression in prefix operation")
	}
}

// DumpPreIncrDecrRes emits a prefix increment or decrement.
func (d *Dumper) DumpPreIncrDecrRes(op bytecode.Opcode, obj bytecode.Operand, loc Loc) bytecode.Operand {
	d.checkOperandInPrefixOperation(obj, loc)
	res := d.tmpOperand()
	d.dump(op, res, obj)
	return res
}

// DumpTypeofRes emits typeof into a fresh temp.
func (d *Dumper) DumpTypeofRes(obj bytecode.Operand) bytecode.Operand {
	return d.DumpUnaryRes(bytecode.OpTypeof, obj)
}

// DumpDeleteRes emits the delete operator. Deleting a bare identifier
// is rejected in strict mode; deleting a non-reference value yields
// true without touching anything.
func (d *Dumper) DumpDeleteRes(op bytecode.Operand, isStrict bool, loc Loc) bytecode.Operand {
	res := d.tmpOperand()

	if op.IsLiteral() {
		switch d.table.Kind(op.Literal()) {
		case lit.KindString:
			if isStrict {
				raiseSyntaxError(loc, "Deleting an unqualified identifier is not allowed in strict mode")
			}
			d.dump(bytecode.OpDeleteVar, res, op)
		case lit.KindNumber:
			d.DumpBooleanAssignment(res, true)
		}
		return res
	}

	if op.IsRegister() {
		last := d.lastDumpedOpMeta()
		if last.Op == bytecode.OpPropGetter {
			d.ser.SetWritingPosition(d.ser.CurrentCounter() - 1)
			d.dump(bytecode.OpDeleteProp,
				res,
				operandFromSlot(last.Args[1], last.LitID[1]),
				operandFromSlot(last.Args[2], last.LitID[2]))
			return res
		}
	}

	d.DumpBooleanAssignment(res, true)
	return res
}

// ---------------------------------------------------------------------------
// Property access
// ---------------------------------------------------------------------------

// DumpPropGetterRes reads base[key] into a fresh temp. The emitted
// getter is remembered implicitly: when the expression turns out to
// be a reference target, the dumper backs the write cursor up over it
// and emits a setter or an in-place sequence instead.
func (d *Dumper) DumpPropGetterRes(obj, prop bytecode.Operand) bytecode.Operand {
	res := d.tmpOperand()
	d.dump(bytecode.OpPropGetter, res, obj, prop)
	return res
}

// DumpPropSetter writes value into base[key].
func (d *Dumper) DumpPropSetter(obj, prop, value bytecode.Operand) {
	d.dump(bytecode.OpPropSetter, obj, prop, value)
}

// StartAssignmentExpression classifies the left-hand side of an
// assignment. A temp-register LHS is valid only when the instruction
// that produced it is a property getter; the getter is then removed
// from the buffer and parked on the prop-getters stack for the
// matching setter emission.
func (d *Dumper) StartAssignmentExpression(lhs bytecode.Operand, loc Loc) {
	if !lhs.IsRegister() {
		return
	}
	last := d.lastDumpedOpMeta()
	if last.Op != bytecode.OpPropGetter {
		raiseReferenceError(loc, "Invalid left-hand-side expression")
	}
	d.ser.SetWritingPosition(d.ser.CurrentCounter() - 1)
	d.propGetters = append(d.propGetters, last)
}

func (d *Dumper) popPropGetter() bytecode.Instruction {
	n := len(d.propGetters)
	last := d.propGetters[n-1]
	d.propGetters = d.propGetters[:n-1]
	return last
}

// DumpPropSetterOrVariableAssignmentRes finishes a plain assignment:
// a setter when the LHS was a member expression, a variable
// assignment otherwise. A value just stored into a temp is retargeted
// in place instead of copied.
func (d *Dumper) DumpPropSetterOrVariableAssignmentRes(res, op bytecode.Operand) bytecode.Operand {
	if res.IsRegister() {
		last := d.popPropGetter()
		d.dump(bytecode.OpPropSetter,
			operandFromSlot(last.Args[1], last.LitID[1]),
			operandFromSlot(last.Args[2], last.LitID[2]),
			op)
		return op
	}

	last := d.lastDumpedOpMeta()
	if len(d.vargHeaders) == 0 &&
		(last.Op == bytecode.OpAssignment || last.Op == bytecode.OpAddition) &&
		last.Args[0] != bytecode.IdxRewriteLiteral &&
		d.isTempRegister(last.Args[0]) {
		// The freshly computed value sits in a dead temp; store it
		// straight into the target instead.
		last.SetOperand(0, res)
		d.rewriteLastDumpedOpMeta(last)
		return res
	}

	d.DumpVariableAssignment(res, op)
	return op
}

// DumpPropSetterOrTripleAddressRes finishes a compound assignment:
// getter, the operation on a temp, then the setter - or the in-place
// operation for a plain variable LHS.
func (d *Dumper) DumpPropSetterOrTripleAddressRes(op bytecode.Opcode, res, value bytecode.Operand) bytecode.Operand {
	if res.IsRegister() {
		last := d.popPropGetter()
		obj := operandFromSlot(last.Args[1], last.LitID[1])
		prop := operandFromSlot(last.Args[2], last.LitID[2])

		tmp := d.DumpPropGetterRes(obj, prop)
		d.dump(op, tmp, tmp, value)
		d.DumpPropSetter(obj, prop, tmp)
		return tmp
	}

	d.dump(op, res, res, value)
	return res
}

// ---------------------------------------------------------------------------
// Varg headers and lists
// ---------------------------------------------------------------------------

// DumpVargHeaderForRewrite emits the header instruction of an
// argument list with unknown count and result.
func (d *Dumper) DumpVargHeaderForRewrite(kind VargKind, obj bytecode.Operand) {
	d.vargHeaders = append(d.vargHeaders, d.ser.CurrentCounter())
	switch kind {
	case VargFuncExpr:
		d.dump(bytecode.OpFuncExprN, bytecode.Unknown(), obj, bytecode.Unknown())
	case VargConstructExpr:
		d.dump(bytecode.OpConstructN, bytecode.Unknown(), obj, bytecode.Unknown())
	case VargCallExpr:
		d.dump(bytecode.OpCallN, bytecode.Unknown(), obj, bytecode.Unknown())
	case VargFuncDecl:
		d.dump(bytecode.OpFuncDeclN, obj, bytecode.Unknown())
	case VargArrayDecl:
		d.dump(bytecode.OpArrayDecl, bytecode.Unknown(), bytecode.Unknown(), bytecode.Unknown())
	case VargObjDecl:
		d.dump(bytecode.OpObjDecl, bytecode.Unknown(), bytecode.Unknown(), bytecode.Unknown())
	}
}

// RewriteVargHeaderSetArgsCount writes the now-known argument count
// into the pending header and allocates its result register.
func (d *Dumper) RewriteVargHeaderSetArgsCount(count int, loc Loc) bytecode.Operand {
	n := len(d.vargHeaders)
	pos := d.vargHeaders[n-1]
	d.vargHeaders = d.vargHeaders[:n-1]

	om := d.ser.OpMetaAt(pos)
	switch om.Op {
	case bytecode.OpFuncExprN, bytecode.OpConstructN, bytecode.OpCallN:
		if count > 255 {
			raiseSyntaxError(loc, "No more than 255 formal parameters / arguments are currently supported")
		}
		res := d.tmpOperand()
		om.SetOperand(0, res)
		om.SetOperand(2, bytecode.IdxConst(bytecode.Idx(count)))
		d.ser.RewriteOpMeta(pos, om)
		return res
	case bytecode.OpFuncDeclN:
		if count > 255 {
			raiseSyntaxError(loc, "No more than 255 formal parameters are currently supported")
		}
		om.SetOperand(1, bytecode.IdxConst(bytecode.Idx(count)))
		d.ser.RewriteOpMeta(pos, om)
		return bytecode.Empty()
	case bytecode.OpArrayDecl, bytecode.OpObjDecl:
		if count > 65535 {
			raiseSyntaxError(loc, "No more than 65535 list elements are currently supported")
		}
		res := d.tmpOperand()
		hi, lo := bytecode.SplitCounter(bytecode.Counter(count))
		om.SetOperand(0, res)
		om.SetOperand(1, bytecode.IdxConst(hi))
		om.SetOperand(2, bytecode.IdxConst(lo))
		d.ser.RewriteOpMeta(pos, om)
		return res
	default:
		panic(fmt.Sprintf("compiler: varg header stack points at %s", om.Op))
	}
}

// DumpCallAdditionalInfo emits a call-site-info meta carrying call
// flags and, when present, the explicit this argument.
func (d *Dumper) DumpCallAdditionalInfo(flags bytecode.CallFlags, thisArg bytecode.Operand) {
	d.dump(bytecode.OpMeta,
		bytecode.IdxConst(bytecode.Idx(bytecode.MetaCallSiteInfo)),
		bytecode.IdxConst(bytecode.Idx(flags)),
		thisArg)
}

// DumpVarg emits one element of an argument / parameter / array list.
func (d *Dumper) DumpVarg(op bytecode.Operand) {
	d.dump(bytecode.OpMeta, bytecode.IdxConst(bytecode.Idx(bytecode.MetaVarg)), op, bytecode.Empty())
}

// DumpPropNameAndValue emits a data property of an object literal.
func (d *Dumper) DumpPropNameAndValue(name, value bytecode.Operand) {
	d.dump(bytecode.OpMeta, bytecode.IdxConst(bytecode.Idx(bytecode.MetaVargPropData)), name, value)
}

// DumpPropGetterDecl emits a getter property of an object literal.
func (d *Dumper) DumpPropGetterDecl(name, fn bytecode.Operand) {
	d.dump(bytecode.OpMeta, bytecode.IdxConst(bytecode.Idx(bytecode.MetaVargPropGetter)), name, fn)
}

// DumpPropSetterDecl emits a setter property of an object literal.
func (d *Dumper) DumpPropSetterDecl(name, fn bytecode.Operand) {
	d.dump(bytecode.OpMeta, bytecode.IdxConst(bytecode.Idx(bytecode.MetaVargPropSetter)), name, fn)
}

// ---------------------------------------------------------------------------
// Function end marker
// ---------------------------------------------------------------------------

// DumpFunctionEndForRewrite emits the function-end meta template
// right after a function header's parameter list.
func (d *Dumper) DumpFunctionEndForRewrite() {
	d.functionEnds = append(d.functionEnds, d.ser.CurrentCounter())
	d.dump(bytecode.OpMeta,
		bytecode.IdxConst(bytecode.Idx(bytecode.MetaFunctionEnd)),
		bytecode.Unknown(),
		bytecode.Unknown())
}

// RewriteFunctionEnd writes the displacement from the function-end
// meta to one past the scope's merged region: the remaining own
// instructions plus the subscope regions and lexical-local var-decls
// that merging inserts between header and body.
func (d *Dumper) RewriteFunctionEnd() {
	n := len(d.functionEnds)
	pos := d.functionEnds[n-1]
	d.functionEnds = d.functionEnds[:n-1]

	diff := int(d.diffFrom(pos)) + int(d.ser.CountInstrsInSubscopes()) + d.ser.Scope().LocalCount
	if diff > bytecode.MaxJumpDistance {
		raiseSyntaxError(Loc{}, "Function body is too large")
	}
	hi, lo := bytecode.SplitCounter(bytecode.Counter(diff))

	om := d.ser.OpMetaAt(pos)
	if om.Op != bytecode.OpMeta || bytecode.MetaType(om.Args[0]) != bytecode.MetaFunctionEnd {
		panic("compiler: function-ends stack points at a non function-end meta")
	}
	om.SetOperand(1, bytecode.IdxConst(hi))
	om.SetOperand(2, bytecode.IdxConst(lo))
	d.ser.RewriteOpMeta(pos, om)
}

// DecrementFunctionEndPos shifts the recorded function-end position
// down by one; used when a varg meta before it is removed.
func (d *Dumper) DecrementFunctionEndPos() {
	d.functionEnds[len(d.functionEnds)-1]--
}

// ---------------------------------------------------------------------------
// Returns, throw, variable declarations
// ---------------------------------------------------------------------------

// DumpRet emits a plain return.
func (d *Dumper) DumpRet() {
	d.dump(bytecode.OpRet)
}

// DumpRetVal emits a return with a value.
func (d *Dumper) DumpRetVal(op bytecode.Operand) {
	d.dump(bytecode.OpRetVal, op)
}

// DumpThrow emits a throw.
func (d *Dumper) DumpThrow(op bytecode.Operand) {
	d.dump(bytecode.OpThrow, op)
}

// ---------------------------------------------------------------------------
// Scope headers
// ---------------------------------------------------------------------------

// DumpScopeCodeFlagsForRewrite emits the scope-flags meta template;
// the flags become known once the whole scope is parsed.
func (d *Dumper) DumpScopeCodeFlagsForRewrite() bytecode.Counter {
	pos := d.ser.CurrentCounter()
	d.dump(bytecode.OpMeta,
		bytecode.IdxConst(bytecode.Idx(bytecode.MetaScopeCodeFlags)),
		bytecode.Unknown(),
		bytecode.Empty())
	return pos
}

// RewriteScopeCodeFlags writes the resolved scope flags.
func (d *Dumper) RewriteScopeCodeFlags(pos bytecode.Counter, flags bytecode.ScopeFlags) {
	om := d.ser.OpMetaAt(pos)
	if om.Op != bytecode.OpMeta || bytecode.MetaType(om.Args[0]) != bytecode.MetaScopeCodeFlags {
		panic("compiler: scope-flags rewrite position does not hold a scope-flags meta")
	}
	om.SetOperand(1, bytecode.IdxConst(bytecode.Idx(flags)))
	d.ser.RewriteOpMeta(pos, om)
}

// DumpRegVarDeclForRewrite emits the register-declaration prelude
// template; the counts are written at scope end.
func (d *Dumper) DumpRegVarDeclForRewrite() bytecode.Counter {
	pos := d.ser.CurrentCounter()
	d.dump(bytecode.OpRegVarDecl, bytecode.Unknown(), bytecode.Unknown(), bytecode.Unknown())
	return pos
}

// RewriteRegVarDecl writes the scope's final register counts into the
// reg-var-decl template and closes the optimizer regions.
func (d *Dumper) RewriteRegVarDecl(pos bytecode.Counter) {
	om := d.ser.OpMetaAt(pos)
	if om.Op != bytecode.OpRegVarDecl {
		panic("compiler: reg-var-decl rewrite position does not hold a reg-var-decl")
	}

	tmpRegs := d.regMaxTemps - bytecode.RegGeneralFirst + 1

	localRegs := bytecode.Idx(0)
	if d.regMaxLocalVar != bytecode.IdxEmpty {
		localRegs = d.regMaxLocalVar - d.regMaxTemps
		d.regMaxLocalVar = bytecode.IdxEmpty
	}

	argRegs := bytecode.Idx(0)
	if d.regMaxArgs != bytecode.IdxEmpty {
		argRegs = d.regMaxArgs - (d.regMaxTemps + localRegs)
		d.regMaxArgs = bytecode.IdxEmpty
	}

	om.SetOperand(0, bytecode.IdxConst(tmpRegs))
	om.SetOperand(1, bytecode.IdxConst(localRegs))
	om.SetOperand(2, bytecode.IdxConst(argRegs))
	d.ser.RewriteOpMeta(pos, om)
}
