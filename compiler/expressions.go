package compiler

import (
	"math"
	"strconv"

	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
	"github.com/shrikejs/shrike/scopes"
)

// formatPropertyNumber renders a numeric property name the way the
// runtime stringifies numbers.
func formatPropertyNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (p *Parser) internString(s string) lit.ID {
	id, err := p.table.InternString(s)
	if err != nil {
		raiseSyntaxError(p.tok.Loc, "%v", err)
	}
	return id
}

// parsePropertyName accepts identifiers, keywords, strings, numbers
// and the boolean/null words, normalizing everything to a string
// literal.
func (p *Parser) parsePropertyName() bytecode.Operand {
	switch p.tok.Type {
	case TokName, TokString:
		return bytecode.Lit(p.tokenLit())
	case TokNumber:
		return bytecode.Lit(p.internString(formatPropertyNumber(p.table.Number(p.tokenLit()))))
	case TokSmallInt:
		return bytecode.Lit(p.internString(strconv.Itoa(int(p.tok.UID))))
	case TokKeyword:
		return bytecode.Lit(p.internString(Keyword(p.tok.UID).String()))
	case TokNull:
		return bytecode.Lit(p.internString("null"))
	case TokBool:
		if p.tok.UID != 0 {
			return bytecode.Lit(p.internString("true"))
		}
		return bytecode.Lit(p.internString("false"))
	default:
		raiseSyntaxError(p.tok.Loc, "Wrong property name type: %s", p.tok.Type)
		return bytecode.Empty()
	}
}

func (p *Parser) parsePropertyNameAndValue() {
	name := p.parsePropertyName()
	p.checker.AddPropName(name, PropData)

	p.tokenAfterNewlinesMustBe(TokColon)
	p.skipNewlines()
	value := p.parseAssignmentExpression(true)

	p.d.DumpPropNameAndValue(name, value)
}

// parsePropertyAssignment handles one object-literal member: a data
// property or a get/set accessor with a function body.
func (p *Parser) parsePropertyAssignment() {
	if !p.tokenIs(TokName) {
		p.parsePropertyNameAndValue()
		return
	}

	word := p.table.String(p.tokenLit())
	if word != "get" && word != "set" {
		p.parsePropertyNameAndValue()
		return
	}
	isSetter := word == "set"

	temp := p.tok
	p.skipNewlines()
	if p.tokenIs(TokColon) {
		p.lexer.SaveToken(p.tok)
		p.tok = temp
		p.parsePropertyNameAndValue()
		return
	}

	name := p.parsePropertyName()
	if isSetter {
		p.checker.AddPropName(name, PropSetter)
	} else {
		p.checker.AddPropName(name, PropGetter)
	}

	p.beginFunctionScope()
	p.checker.StartCheckingOfVargs()

	p.skipNewlines()
	fn := p.parseArgumentList(VargFuncExpr, bytecode.Empty(), nil)

	p.d.DumpFunctionEndForRewrite()

	p.tokenAfterNewlinesMustBe(TokOpenBrace)
	p.skipNewlines()

	wasInFunction := p.insideFunction
	p.insideFunction = true

	masked := p.labels.MaskSet()
	p.parseSourceElementList(false, true)
	p.labels.RestoreSet(masked)

	p.tokenAfterNewlinesMustBe(TokCloseBrace)

	p.d.DumpRet()
	p.d.RewriteFunctionEnd()

	p.insideFunction = wasInFunction

	p.checker.CheckForSyntaxErrorsInFormalParamList(p.isStrictMode(), p.tok.Loc)

	p.endFunctionScope()

	if isSetter {
		p.d.DumpPropSetterDecl(name, fn)
	} else {
		p.d.DumpPropGetterDecl(name, fn)
	}
}

// parseArgumentList emits the varg header for the construct, one varg
// meta per element, and rewrites the header with the final count.
// The lists of function declarations/expressions, calls, new
// expressions, array literals and object literals all flow through
// here.
func (p *Parser) parseArgumentList(kind VargKind, obj bytecode.Operand, thisArg *bytecode.Operand) bytecode.Operand {
	closeTT := TokCloseParen
	argsNum := 0

	switch kind {
	case VargFuncDecl, VargFuncExpr, VargConstructExpr:
		p.currentTokenMustBe(TokOpenParen)
		p.d.DumpVargHeaderForRewrite(kind, obj)

	case VargCallExpr:
		p.currentTokenMustBe(TokOpenParen)

		callFlags := bytecode.CallFlagsNone
		this := bytecode.Empty()
		if thisArg != nil && !thisArg.IsEmpty() {
			callFlags |= bytecode.CallFlagsHaveThisArg

			if thisArg.IsLiteral() {
				// The base of a call expression should be evaluated
				// only once; materializing the this argument
				// re-evaluates a literal base into a temp. Preserved
				// as observed until proven observable.
				this = p.d.DumpVariableAssignmentRes(*thisArg)
			} else {
				this = *thisArg
			}
		} else if p.d.IsEvalLiteral(obj) {
			callFlags |= bytecode.CallFlagsDirectEval
		}

		p.d.DumpVargHeaderForRewrite(kind, obj)

		if callFlags != bytecode.CallFlagsNone {
			if callFlags&bytecode.CallFlagsHaveThisArg != 0 {
				p.d.DumpCallAdditionalInfo(callFlags, this)
			} else {
				p.d.DumpCallAdditionalInfo(callFlags, bytecode.Empty())
			}
		}

	case VargArrayDecl:
		p.currentTokenMustBe(TokOpenSquare)
		closeTT = TokCloseSquare
		p.d.DumpVargHeaderForRewrite(kind, obj)

	case VargObjDecl:
		p.currentTokenMustBe(TokOpenBrace)
		closeTT = TokCloseBrace
		p.d.DumpVargHeaderForRewrite(kind, obj)
		p.checker.StartCheckingOfPropNames()
	}

	p.skipNewlines()
	for !p.tokenIs(closeTT) {
		p.d.StartVargCodeSequence()

		switch kind {
		case VargFuncDecl, VargFuncExpr:
			p.currentTokenMustBe(TokName)
			op := bytecode.Lit(p.tokenLit())
			p.checker.AddVarg(op)
			p.ser.AddVariable(p.tokenLit(), true)
			p.d.DumpVarg(op)
			p.skipNewlines()

		case VargConstructExpr, VargCallExpr:
			op := p.parseAssignmentExpression(true)
			p.d.DumpVarg(op)
			p.skipNewlines()

		case VargArrayDecl:
			if p.tokenIs(TokComma) {
				p.d.DumpVarg(p.d.DumpArrayHoleAssignmentRes())
			} else {
				op := p.parseAssignmentExpression(true)
				p.d.DumpVarg(op)
				p.skipNewlines()
			}

		case VargObjDecl:
			p.parsePropertyAssignment()
			p.skipNewlines()
		}

		if p.tokenIs(TokComma) {
			p.skipNewlines()
		} else {
			p.currentTokenMustBe(closeTT)
		}

		argsNum++
		p.d.FinishVargCodeSequence()
	}

	if kind == VargObjDecl {
		p.checker.CheckForDuplicationOfPropNames(p.isStrictMode(), p.tok.Loc)
	}

	return p.d.RewriteVargHeaderSetArgsCount(argsNum, p.tok.Loc)
}

// ---------------------------------------------------------------------------
// Function declarations and expressions
// ---------------------------------------------------------------------------

// beginFunctionScope creates a function scope inheriting strict mode
// and makes it current.
func (p *Parser) beginFunctionScope() {
	p.currentScope().ContainsFunctions = true

	sc := p.arena.New(p.currentScope(), scopes.Function)
	sc.StrictMode = p.currentScope().StrictMode
	p.pushScope(sc)
	p.lexer.SetStrictMode(sc.StrictMode)
}

// endFunctionScope returns to the enclosing scope.
func (p *Parser) endFunctionScope() {
	child := p.currentScope()
	p.popScope()
	p.lexer.SetStrictMode(p.isStrictMode())
	p.ser.DumpSubscope(child)
}

// parseFunctionDeclaration registers the function name against the
// outer scope via the func-decl header, then compiles the inner scope.
func (p *Parser) parseFunctionDeclaration() {
	p.assertKeyword(KwFunction)

	masked := p.labels.MaskSet()

	p.beginFunctionScope()

	p.tokenAfterNewlinesMustBe(TokName)
	name := bytecode.Lit(p.tokenLit())

	p.skipNewlines()

	p.checker.StartCheckingOfVargs()
	p.parseArgumentList(VargFuncDecl, name, nil)

	p.d.DumpFunctionEndForRewrite()

	p.tokenAfterNewlinesMustBe(TokOpenBrace)
	p.skipNewlines()

	wasInFunction := p.insideFunction
	p.insideFunction = true

	p.parseSourceElementList(false, true)

	p.nextTokenMustBe(TokCloseBrace)

	p.d.DumpRet()
	p.d.RewriteFunctionEnd()

	p.insideFunction = wasInFunction

	p.checker.CheckForEvalAndArgumentsInStrictMode(name, p.isStrictMode(), p.tok.Loc)
	p.checker.CheckForSyntaxErrorsInFormalParamList(p.isStrictMode(), p.tok.Loc)

	p.endFunctionScope()

	p.labels.RestoreSet(masked)
}

// parseFunctionExpression registers the optional name only in the
// inner scope.
func (p *Parser) parseFunctionExpression() bytecode.Operand {
	p.assertKeyword(KwFunction)

	p.checker.StartCheckingOfVargs()
	p.beginFunctionScope()

	p.skipNewlines()

	var res bytecode.Operand
	name := bytecode.Empty()
	if p.tokenIs(TokName) {
		name = bytecode.Lit(p.tokenLit())
		p.skipNewlines()
		res = p.parseArgumentList(VargFuncExpr, name, nil)
	} else {
		p.lexer.SaveToken(p.tok)
		p.skipNewlines()
		res = p.parseArgumentList(VargFuncExpr, bytecode.Empty(), nil)
	}

	p.d.DumpFunctionEndForRewrite()

	p.tokenAfterNewlinesMustBe(TokOpenBrace)
	p.skipNewlines()

	wasInFunction := p.insideFunction
	p.insideFunction = true

	masked := p.labels.MaskSet()
	p.parseSourceElementList(false, true)
	p.labels.RestoreSet(masked)

	p.nextTokenMustBe(TokCloseBrace)

	p.d.DumpRet()
	p.d.RewriteFunctionEnd()

	p.insideFunction = wasInFunction

	p.checker.CheckForEvalAndArgumentsInStrictMode(name, p.isStrictMode(), p.tok.Loc)
	p.checker.CheckForSyntaxErrorsInFormalParamList(p.isStrictMode(), p.tok.Loc)

	p.endFunctionScope()

	return res
}

func (p *Parser) parseArrayLiteral() bytecode.Operand {
	return p.parseArgumentList(VargArrayDecl, bytecode.Empty(), nil)
}

func (p *Parser) parseObjectLiteral() bytecode.Operand {
	return p.parseArgumentList(VargObjDecl, bytecode.Empty(), nil)
}

func (p *Parser) parseLiteral() bytecode.Operand {
	switch p.tok.Type {
	case TokNumber:
		return p.d.DumpNumberAssignmentRes(p.tokenLit())
	case TokString:
		return p.d.DumpStringAssignmentRes(p.tokenLit())
	case TokRegexp:
		return p.d.DumpRegexpAssignmentRes(p.tokenLit())
	case TokNull:
		return p.d.DumpNullAssignmentRes()
	case TokBool:
		return p.d.DumpBooleanAssignmentRes(p.tok.UID != 0)
	case TokSmallInt:
		return p.d.DumpSmallIntAssignmentRes(bytecode.Idx(p.tok.UID))
	default:
		raiseSyntaxError(p.tok.Loc, "Expected literal")
		return bytecode.Empty()
	}
}

func (p *Parser) parsePrimaryExpression() bytecode.Operand {
	if p.isKeyword(KwThis) {
		return p.d.DumpThisRes()
	}

	switch p.tok.Type {
	case TokDiv, TokDivEq:
		// Must be a regexp literal; rescan the token.
		p.rescanRegexpToken()
		return p.parseLiteral()
	case TokNull, TokBool, TokSmallInt, TokNumber, TokRegexp, TokString:
		return p.parseLiteral()
	case TokName:
		switch p.table.String(p.tokenLit()) {
		case "arguments":
			p.currentScope().RefArguments = true
		case "eval":
			p.currentScope().RefEval = true
		}
		return bytecode.Lit(p.tokenLit())
	case TokOpenSquare:
		return p.parseArrayLiteral()
	case TokOpenBrace:
		return p.parseObjectLiteral()
	case TokOpenParen:
		p.skipNewlines()
		if !p.tokenIs(TokCloseParen) {
			res := p.parseExpression(true, evalRetStoreNotDump)
			p.tokenAfterNewlinesMustBe(TokCloseParen)
			return res
		}
	}

	raiseSyntaxError(p.tok.Loc, "Unknown token %s", p.tok.Type)
	return bytecode.Empty()
}

// parseMemberExpression walks member suffixes, emitting a property
// getter per step and reporting the last base and property name to
// the caller.
func (p *Parser) parseMemberExpression(thisArg, propGl *bytecode.Operand) bytecode.Operand {
	var expr bytecode.Operand
	if p.isKeyword(KwFunction) {
		expr = p.parseFunctionExpression()
	} else if p.isKeyword(KwNew) {
		p.skipNewlines()
		expr = p.parseMemberExpression(thisArg, propGl)

		p.skipNewlines()
		if p.tokenIs(TokOpenParen) {
			expr = p.parseArgumentList(VargConstructExpr, expr, nil)
		} else {
			p.lexer.SaveToken(p.tok)
			p.d.DumpVargHeaderForRewrite(VargConstructExpr, expr)
			expr = p.d.RewriteVargHeaderSetArgsCount(0, p.tok.Loc)
		}
	} else {
		expr = p.parsePrimaryExpression()
	}

	p.skipNewlines()
	for p.tokenIs(TokOpenSquare) || p.tokenIs(TokDot) {
		prop := bytecode.Empty()

		if p.tokenIs(TokOpenSquare) {
			p.skipNewlines()
			prop = p.parseExpression(true, evalRetStoreNotDump)
			p.nextTokenMustBe(TokCloseSquare)
		} else {
			p.skipNewlines()
			switch p.tok.Type {
			case TokName:
				prop = p.d.DumpStringAssignmentRes(p.tokenLit())
			case TokKeyword:
				prop = p.d.DumpStringAssignmentRes(p.internString(Keyword(p.tok.UID).String()))
			case TokBool:
				if p.tok.UID != 0 {
					prop = p.d.DumpStringAssignmentRes(p.internString("true"))
				} else {
					prop = p.d.DumpStringAssignmentRes(p.internString("false"))
				}
			case TokNull:
				prop = p.d.DumpStringAssignmentRes(p.internString("null"))
			default:
				raiseSyntaxError(p.tok.Loc, "Expected identifier")
			}
		}
		p.skipNewlines()

		if thisArg != nil {
			*thisArg = expr
		}
		if propGl != nil {
			*propGl = prop
		}
		expr = p.d.DumpPropGetterRes(expr, prop)
	}

	p.lexer.SaveToken(p.tok)
	return expr
}

func (p *Parser) parseCallExpression(thisArgGl, propGl *bytecode.Operand) bytecode.Operand {
	thisArg := bytecode.Empty()
	expr := p.parseMemberExpression(&thisArg, propGl)
	prop := bytecode.Empty()

	p.skipNewlines()
	if !p.tokenIs(TokOpenParen) {
		p.lexer.SaveToken(p.tok)
		if thisArgGl != nil {
			*thisArgGl = thisArg
		}
		return expr
	}

	expr = p.parseArgumentList(VargCallExpr, expr, &thisArg)
	thisArg = bytecode.Empty()

	p.skipNewlines()
	for p.tokenIs(TokOpenParen) || p.tokenIs(TokOpenSquare) || p.tokenIs(TokDot) {
		if p.tokenIs(TokOpenParen) {
			expr = p.parseArgumentList(VargCallExpr, expr, &thisArg)
			p.skipNewlines()
		} else {
			thisArg = expr
			if p.tokenIs(TokOpenSquare) {
				p.skipNewlines()
				prop = p.parseExpression(true, evalRetStoreNotDump)
				p.nextTokenMustBe(TokCloseSquare)
			} else {
				p.tokenAfterNewlinesMustBe(TokName)
				prop = p.d.DumpStringAssignmentRes(p.tokenLit())
			}
			expr = p.d.DumpPropGetterRes(expr, prop)
			p.skipNewlines()
		}
	}
	p.lexer.SaveToken(p.tok)

	if thisArgGl != nil {
		*thisArgGl = thisArg
	}
	if propGl != nil {
		*propGl = prop
	}
	return expr
}

func (p *Parser) parseLeftHandSideExpression(thisArg, prop *bytecode.Operand) bytecode.Operand {
	return p.parseCallExpression(thisArg, prop)
}

// parsePostfixExpression handles the ++/-- suffixes; for a member
// expression target the modified value is stored back through a
// property setter.
func (p *Parser) parsePostfixExpression(outThisArg, outProp *bytecode.Operand) bytecode.Operand {
	thisArg, prop := bytecode.Empty(), bytecode.Empty()
	expr := p.parseLeftHandSideExpression(&thisArg, &prop)

	if p.lexer.PrevToken().Type == TokNewline {
		return expr
	}

	p.skipToken()
	switch {
	case p.tokenIs(TokDoublePlus):
		p.checker.CheckForEvalAndArgumentsInStrictMode(expr, p.isStrictMode(), p.tok.Loc)

		res := p.d.DumpUnaryRes(bytecode.OpPostIncr, expr)
		if !thisArg.IsEmpty() && !prop.IsEmpty() {
			p.d.DumpPropSetter(thisArg, prop, expr)
		}
		expr = res
	case p.tokenIs(TokDoubleMinus):
		p.checker.CheckForEvalAndArgumentsInStrictMode(expr, p.isStrictMode(), p.tok.Loc)

		res := p.d.DumpUnaryRes(bytecode.OpPostDecr, expr)
		if !thisArg.IsEmpty() && !prop.IsEmpty() {
			p.d.DumpPropSetter(thisArg, prop, expr)
		}
		expr = res
	default:
		p.lexer.SaveToken(p.tok)
	}

	if outThisArg != nil {
		*outThisArg = thisArg
	}
	if outProp != nil {
		*outProp = prop
	}
	return expr
}

func (p *Parser) parseUnaryExpression(outThisArg, outProp *bytecode.Operand) bytecode.Operand {
	var expr bytecode.Operand
	thisArg, prop := bytecode.Empty(), bytecode.Empty()

	switch {
	case p.tokenIs(TokDoublePlus):
		p.skipNewlines()
		expr = p.parseUnaryExpression(&thisArg, &prop)
		p.checker.CheckForEvalAndArgumentsInStrictMode(expr, p.isStrictMode(), p.tok.Loc)
		expr = p.d.DumpPreIncrDecrRes(bytecode.OpPreIncr, expr, p.tok.Loc)
		if !thisArg.IsEmpty() && !prop.IsEmpty() {
			p.d.DumpPropSetter(thisArg, prop, expr)
		}
	case p.tokenIs(TokDoubleMinus):
		p.skipNewlines()
		expr = p.parseUnaryExpression(&thisArg, &prop)
		p.checker.CheckForEvalAndArgumentsInStrictMode(expr, p.isStrictMode(), p.tok.Loc)
		expr = p.d.DumpPreIncrDecrRes(bytecode.OpPreDecr, expr, p.tok.Loc)
		if !thisArg.IsEmpty() && !prop.IsEmpty() {
			p.d.DumpPropSetter(thisArg, prop, expr)
		}
	case p.tokenIs(TokPlus):
		p.skipNewlines()
		expr = p.d.DumpUnaryRes(bytecode.OpUnaryPlus, p.parseUnaryExpression(nil, nil))
	case p.tokenIs(TokMinus):
		p.skipNewlines()
		expr = p.d.DumpUnaryRes(bytecode.OpUnaryMinus, p.parseUnaryExpression(nil, nil))
	case p.tokenIs(TokCompl):
		p.skipNewlines()
		expr = p.d.DumpUnaryRes(bytecode.OpBNot, p.parseUnaryExpression(nil, nil))
	case p.tokenIs(TokNot):
		p.skipNewlines()
		expr = p.d.DumpUnaryRes(bytecode.OpLogicalNot, p.parseUnaryExpression(nil, nil))
	case p.isKeyword(KwDelete):
		p.currentScope().ContainsDelete = true
		p.skipNewlines()
		expr = p.parseUnaryExpression(nil, nil)
		expr = p.d.DumpDeleteRes(expr, p.isStrictMode(), p.tok.Loc)
	case p.isKeyword(KwVoid):
		p.skipNewlines()
		expr = p.parseUnaryExpression(nil, nil)
		expr = p.d.DumpVariableAssignmentRes(expr)
		p.d.DumpUndefinedAssignment(expr)
	case p.isKeyword(KwTypeof):
		p.skipNewlines()
		expr = p.d.DumpTypeofRes(p.parseUnaryExpression(nil, nil))
	default:
		expr = p.parsePostfixExpression(&thisArg, &prop)
	}

	if outThisArg != nil {
		*outThisArg = thisArg
	}
	if outProp != nil {
		*outProp = prop
	}
	return expr
}

// dumpAssignmentOfLHSIfLiteral materializes a still-unresolved
// literal operand into a temp, so a following binary op consumes a
// register operand.
func (p *Parser) dumpAssignmentOfLHSIfLiteral(lhs bytecode.Operand) bytecode.Operand {
	if lhs.IsLiteral() {
		return p.d.DumpVariableAssignmentRes(lhs)
	}
	return lhs
}

// parseBinaryLevel runs one precedence level: parse a left operand
// with next, then loop over matching operators.
func (p *Parser) parseBinaryLevel(ops map[TokenType]bytecode.Opcode, next func() bytecode.Operand) bytecode.Operand {
	expr := next()

	p.skipNewlines()
	for {
		op, ok := ops[p.tok.Type]
		if !ok {
			p.lexer.SaveToken(p.tok)
			return expr
		}
		expr = p.dumpAssignmentOfLHSIfLiteral(expr)
		p.skipNewlines()
		expr = p.d.DumpBinaryRes(op, expr, next())
		p.skipNewlines()
	}
}

var multiplicativeOps = map[TokenType]bytecode.Opcode{
	TokMult: bytecode.OpMultiplication,
	TokDiv:  bytecode.OpDivision,
	TokMod:  bytecode.OpRemainder,
}

var additiveOps = map[TokenType]bytecode.Opcode{
	TokPlus:  bytecode.OpAddition,
	TokMinus: bytecode.OpSubstraction,
}

var shiftOps = map[TokenType]bytecode.Opcode{
	TokLShift:   bytecode.OpBShiftLeft,
	TokRShift:   bytecode.OpBShiftRight,
	TokRShiftEx: bytecode.OpBShiftURight,
}

var equalityOps = map[TokenType]bytecode.Opcode{
	TokDoubleEq:    bytecode.OpEqualValue,
	TokNotEq:       bytecode.OpNotEqualValue,
	TokTripleEq:    bytecode.OpEqualValueType,
	TokNotDoubleEq: bytecode.OpNotEqualValueType,
}

func (p *Parser) parseMultiplicativeExpression() bytecode.Operand {
	return p.parseBinaryLevel(multiplicativeOps, func() bytecode.Operand {
		return p.parseUnaryExpression(nil, nil)
	})
}

func (p *Parser) parseAdditiveExpression() bytecode.Operand {
	return p.parseBinaryLevel(additiveOps, p.parseMultiplicativeExpression)
}

func (p *Parser) parseShiftExpression() bytecode.Operand {
	return p.parseBinaryLevel(shiftOps, p.parseAdditiveExpression)
}

// parseRelationalExpression is written out by hand: the 'in' operator
// participates only when the context allows it.
func (p *Parser) parseRelationalExpression(inAllowed bool) bytecode.Operand {
	expr := p.parseShiftExpression()

	p.skipNewlines()
	for {
		var op bytecode.Opcode
		switch {
		case p.tokenIs(TokLess):
			op = bytecode.OpLessThan
		case p.tokenIs(TokGreater):
			op = bytecode.OpGreaterThan
		case p.tokenIs(TokLessEq):
			op = bytecode.OpLessOrEqualThan
		case p.tokenIs(TokGreaterEq):
			op = bytecode.OpGreaterOrEqualThan
		case p.isKeyword(KwInstanceof):
			op = bytecode.OpInstanceof
		case p.isKeyword(KwIn) && inAllowed:
			op = bytecode.OpIn
		default:
			p.lexer.SaveToken(p.tok)
			return expr
		}

		expr = p.dumpAssignmentOfLHSIfLiteral(expr)
		p.skipNewlines()
		expr = p.d.DumpBinaryRes(op, expr, p.parseShiftExpression())
		p.skipNewlines()
	}
}

func (p *Parser) parseEqualityExpression(inAllowed bool) bytecode.Operand {
	return p.parseBinaryLevel(equalityOps, func() bytecode.Operand {
		return p.parseRelationalExpression(inAllowed)
	})
}

func (p *Parser) parseBitwiseAndExpression(inAllowed bool) bytecode.Operand {
	return p.parseBinaryLevel(map[TokenType]bytecode.Opcode{TokAnd: bytecode.OpBAnd}, func() bytecode.Operand {
		return p.parseEqualityExpression(inAllowed)
	})
}

func (p *Parser) parseBitwiseXorExpression(inAllowed bool) bytecode.Operand {
	return p.parseBinaryLevel(map[TokenType]bytecode.Opcode{TokXor: bytecode.OpBXor}, func() bytecode.Operand {
		return p.parseBitwiseAndExpression(inAllowed)
	})
}

func (p *Parser) parseBitwiseOrExpression(inAllowed bool) bytecode.Operand {
	return p.parseBinaryLevel(map[TokenType]bytecode.Opcode{TokOr: bytecode.OpBOr}, func() bytecode.Operand {
		return p.parseBitwiseXorExpression(inAllowed)
	})
}

// parseLogicalAndExpression compiles a && chain: the left value goes
// into a dedicated temp, a jump-past-the-chain template follows each
// operand, and the whole chain rewrites at once.
func (p *Parser) parseLogicalAndExpression(inAllowed bool) bytecode.Operand {
	expr := p.parseBitwiseOrExpression(inAllowed)

	p.skipNewlines()
	if !p.tokenIs(TokDoubleAnd) {
		p.lexer.SaveToken(p.tok)
		return expr
	}

	tmp := p.d.DumpVariableAssignmentRes(expr)
	p.d.StartDumpingLogicalAndChecks()
	p.d.DumpLogicalAndCheckForRewrite(tmp)

	for p.tokenIs(TokDoubleAnd) {
		p.skipNewlines()
		expr = p.parseBitwiseOrExpression(inAllowed)
		p.d.DumpVariableAssignment(tmp, expr)
		p.skipNewlines()
		if p.tokenIs(TokDoubleAnd) {
			p.d.DumpLogicalAndCheckForRewrite(tmp)
		}
	}
	p.lexer.SaveToken(p.tok)
	p.d.RewriteLogicalAndChecks()
	return tmp
}

// parseLogicalOrExpression is the symmetric || chain.
func (p *Parser) parseLogicalOrExpression(inAllowed bool) bytecode.Operand {
	expr := p.parseLogicalAndExpression(inAllowed)

	p.skipNewlines()
	if !p.tokenIs(TokDoubleOr) {
		p.lexer.SaveToken(p.tok)
		return expr
	}

	tmp := p.d.DumpVariableAssignmentRes(expr)
	p.d.StartDumpingLogicalOrChecks()
	p.d.DumpLogicalOrCheckForRewrite(tmp)

	for p.tokenIs(TokDoubleOr) {
		p.skipNewlines()
		expr = p.parseLogicalAndExpression(inAllowed)
		p.d.DumpVariableAssignment(tmp, expr)
		p.skipNewlines()
		if p.tokenIs(TokDoubleOr) {
			p.d.DumpLogicalOrCheckForRewrite(tmp)
		}
	}
	p.lexer.SaveToken(p.tok)
	p.d.RewriteLogicalOrChecks()
	return tmp
}

func (p *Parser) parseConditionalExpression(inAllowed bool, isConditional *bool) bytecode.Operand {
	expr := p.parseLogicalOrExpression(inAllowed)

	p.skipNewlines()
	if !p.tokenIs(TokQuery) {
		p.lexer.SaveToken(p.tok)
		return expr
	}

	p.d.DumpConditionalCheckForRewrite(expr)
	p.skipNewlines()
	expr = p.parseAssignmentExpression(inAllowed)
	tmp := p.d.DumpVariableAssignmentRes(expr)
	p.tokenAfterNewlinesMustBe(TokColon)
	p.d.DumpJumpToEndForRewrite()
	p.d.RewriteConditionalCheck()
	p.skipNewlines()
	expr = p.parseAssignmentExpression(inAllowed)
	p.d.DumpVariableAssignment(tmp, expr)
	p.d.RewriteJumpToEnd()

	if isConditional != nil {
		*isConditional = true
	}
	return tmp
}

var compoundAssignOps = map[TokenType]bytecode.Opcode{
	TokMultEq:     bytecode.OpMultiplication,
	TokDivEq:      bytecode.OpDivision,
	TokModEq:      bytecode.OpRemainder,
	TokPlusEq:     bytecode.OpAddition,
	TokMinusEq:    bytecode.OpSubstraction,
	TokLShiftEq:   bytecode.OpBShiftLeft,
	TokRShiftEq:   bytecode.OpBShiftRight,
	TokRShiftExEq: bytecode.OpBShiftURight,
	TokAndEq:      bytecode.OpBAnd,
	TokXorEq:      bytecode.OpBXor,
	TokOrEq:       bytecode.OpBOr,
}

func (p *Parser) parseAssignmentExpression(inAllowed bool) bytecode.Operand {
	isConditional := false
	exprLoc := p.tok.Loc
	expr := p.parseConditionalExpression(inAllowed, &isConditional)
	if isConditional {
		return expr
	}

	p.skipNewlines()

	tt := p.tok.Type
	op, isCompound := compoundAssignOps[tt]
	if tt != TokEq && !isCompound {
		p.lexer.SaveToken(p.tok)
		return expr
	}

	p.checker.CheckForEvalAndArgumentsInStrictMode(expr, p.isStrictMode(), p.tok.Loc)
	p.skipNewlines()
	p.d.StartAssignmentExpression(expr, exprLoc)
	assignExpr := p.parseAssignmentExpression(inAllowed)

	if tt == TokEq {
		return p.d.DumpPropSetterOrVariableAssignmentRes(expr, assignExpr)
	}
	return p.d.DumpPropSetterOrTripleAddressRes(op, expr, assignExpr)
}

func (p *Parser) parseExpression(inAllowed bool, store evalRetStore) bytecode.Operand {
	expr := p.parseAssignmentExpression(inAllowed)

	for {
		p.skipNewlines()
		if p.tokenIs(TokComma) {
			p.dumpAssignmentOfLHSIfLiteral(expr)
			p.skipNewlines()
			expr = p.parseAssignmentExpression(inAllowed)
		} else {
			p.lexer.SaveToken(p.tok)
			break
		}
	}

	if p.insideEval && store == evalRetStoreDump && !p.insideFunction {
		p.d.DumpVariableAssignment(EvalRetOperand(), expr)
	}

	return expr
}
