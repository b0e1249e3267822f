package compiler

import (
	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
	"github.com/shrikejs/shrike/scopes"
)

// Post-parse optimization: after a function body is parsed, local
// variables and parameters are moved from the lexical environment to
// registers. The pass is skipped entirely when anything in the scope
// can observe names dynamically: eval, arguments, with, try, delete,
// or a nested function.

// StartMoveOfVarsToRegs opens the local-variable register region on
// top of the temp high-water mark.
func (d *Dumper) StartMoveOfVarsToRegs() {
	if d.regMaxLocalVar != bytecode.IdxEmpty || d.regMaxArgs != bytecode.IdxEmpty {
		panic("compiler: optimizer regions opened twice")
	}
	d.regMaxLocalVar = d.regMaxTemps
}

// StartMoveOfArgsToRegs opens the argument register region; it fails
// when the remaining registers cannot hold every argument.
func (d *Dumper) StartMoveOfArgsToRegs(argsNum int) bool {
	if d.regMaxArgs != bytecode.IdxEmpty {
		panic("compiler: argument region opened twice")
	}

	if d.regMaxLocalVar == bytecode.IdxEmpty {
		if argsNum+int(d.regMaxTemps) >= int(bytecode.RegGeneralLast) {
			return false
		}
		d.regMaxArgs = d.regMaxTemps
	} else {
		if argsNum+int(d.regMaxLocalVar) >= int(bytecode.RegGeneralLast) {
			return false
		}
		d.regMaxArgs = d.regMaxLocalVar
	}
	return true
}

// AllocRegForUnusedArg burns a register slot for a formal parameter
// masked out by a duplicate name; positions must stay aligned.
func (d *Dumper) AllocRegForUnusedArg() {
	if d.regMaxArgs == bytecode.IdxEmpty || d.regMaxArgs >= bytecode.RegGeneralLast {
		panic("compiler: no argument register available")
	}
	d.regMaxArgs++
}

// TryReplaceIdentifierNameWithReg assigns the next free register of
// the appropriate region to the name, then scans every emitted
// instruction of the scope, replacing operand slots that reference
// the name's literal with the register index.
//
// Slot policy during the scan: the value slot of an assignment is a
// name only when its type tag is "variable"; the property-name slot
// of a varg-prop meta is a key, not a variable reference.
func (d *Dumper) TryReplaceIdentifierNameWithReg(sc *scopes.Scope, name lit.ID, isArg bool) bool {
	var reg bytecode.Idx
	if isArg {
		if d.regMaxArgs == bytecode.IdxEmpty || d.regMaxArgs >= bytecode.RegGeneralLast {
			panic("compiler: argument region exhausted after StartMoveOfArgsToRegs succeeded")
		}
		d.regMaxArgs++
		reg = d.regMaxArgs
	} else {
		if d.regMaxLocalVar == bytecode.IdxEmpty {
			panic("compiler: local-variable region not opened")
		}
		if d.regMaxLocalVar == bytecode.RegGeneralLast {
			// Out of registers; the variable stays lexical.
			return false
		}
		d.regMaxLocalVar++
		reg = d.regMaxLocalVar
	}

	for pos := bytecode.Counter(0); pos < sc.InstrsCount(); pos++ {
		om := sc.OpMetaAt(pos)

		for slot := 0; slot < 3; slot++ {
			if om.Op == bytecode.OpAssignment && slot == 1 &&
				bytecode.ValueType(om.Args[1]) != bytecode.ValueVariable {
				break
			}
			if om.Op == bytecode.OpMeta && slot == 1 {
				switch bytecode.MetaType(om.Args[0]) {
				case bytecode.MetaVargPropData, bytecode.MetaVargPropGetter, bytecode.MetaVargPropSetter:
					continue
				}
			}

			if om.LitID[slot] == name {
				if om.Args[slot] != bytecode.IdxRewriteLiteral {
					panic("compiler: literal id attached to a non-literal slot")
				}
				om.LitID[slot] = lit.None
				om.Args[slot] = reg
			}
		}

		sc.SetOpMeta(pos, om)
	}

	return true
}

// tryMoveVarsToRegs runs the whole optimization for one function
// scope. It may shift the recorded positions of the scope-flags and
// reg-var-decl templates when parameter varg metas are removed.
func (p *Parser) tryMoveVarsToRegs(sc *scopes.Scope, scopeFlagsPos, regVarDeclPos *bytecode.Counter,
	flags bytecode.ScopeFlags) bytecode.ScopeFlags {

	mayReplace := !sc.RefEval &&
		!sc.RefArguments &&
		!sc.ContainsWith &&
		!sc.ContainsTry &&
		!sc.ContainsDelete &&
		!sc.ContainsFunctions

	if !mayReplace {
		return flags
	}

	// No eval / nested functions means no subscopes either.
	if len(sc.Children()) != 0 {
		panic("compiler: optimizable scope has subscopes")
	}

	header := sc.OpMetaAt(0)
	if header.Op != bytecode.OpFuncExprN && header.Op != bytecode.OpFuncDeclN {
		panic("compiler: function scope does not start with a function header")
	}

	// Find the function-end meta past the parameter vargs.
	vargStart := bytecode.Counter(1)
	functionEndPos := vargStart
	for {
		om := sc.OpMetaAt(functionEndPos)
		if om.Op != bytecode.OpMeta {
			panic("compiler: function header not followed by metas")
		}
		if bytecode.MetaType(om.Args[0]) == bytecode.MetaFunctionEnd {
			break
		}
		functionEndPos++
	}

	// Move locals to registers; bail out silently per variable when
	// registers run out.
	p.d.StartMoveOfVarsToRegs()
	for pos := 0; pos < len(sc.Variables); {
		v := sc.Variables[pos]
		if v.IsParam {
			pos++
			continue
		}
		if p.d.TryReplaceIdentifierNameWithReg(sc, v.Name, false) {
			sc.RemoveVariableAt(pos)
		} else {
			pos++
		}
	}

	if !p.d.StartMoveOfArgsToRegs(sc.ParamCount) {
		return flags
	}

	flags |= bytecode.ScopeFlagArgsOnRegisters | bytecode.ScopeFlagNoLexEnv
	sc.ArgsOnRegisters = true
	sc.NoLexEnv = true

	if sc.LocalCount != 0 {
		panic("compiler: locals left lexical while arguments moved to registers")
	}

	// The runtime no longer builds an arguments collection.
	if header.Op == bytecode.OpFuncExprN {
		header.SetOperand(2, bytecode.IdxConst(0))
	} else {
		header.SetOperand(1, bytecode.IdxConst(0))
	}
	sc.SetOpMeta(0, header)

	// Mask duplicated parameter names; the last occurrence wins.
	for a1 := vargStart; a1 < functionEndPos; a1++ {
		om1 := sc.OpMetaAt(a1)
		for a2 := a1 + 1; a2 < functionEndPos; a2++ {
			om2 := sc.OpMetaAt(a2)
			if om1.LitID[1] == om2.LitID[1] {
				om1.LitID[1] = lit.None
				om1.Args[1] = bytecode.IdxEmpty
				sc.SetOpMeta(a1, om1)
				break
			}
		}
	}

	// Remove the parameter vargs: they are not needed at runtime
	// once arguments live in registers. Positions recorded for the
	// function-end marker and the header templates shift with each
	// removal.
	for {
		om := sc.OpMetaAt(vargStart)
		if bytecode.MetaType(om.Args[0]) == bytecode.MetaFunctionEnd {
			break
		}
		if bytecode.MetaType(om.Args[0]) != bytecode.MetaVarg {
			panic("compiler: unexpected meta in parameter list")
		}

		if om.Args[1] == bytecode.IdxEmpty {
			p.d.AllocRegForUnusedArg()
		} else {
			if om.LitID[1] == lit.None {
				panic("compiler: varg without a name literal")
			}
			if !p.d.TryReplaceIdentifierNameWithReg(sc, om.LitID[1], true) {
				panic("compiler: argument replacement failed after capacity check")
			}
		}

		sc.RemoveOpMeta(vargStart)
		*regVarDeclPos--
		*scopeFlagsPos--
		p.d.DecrementFunctionEndPos()
	}

	return flags
}
