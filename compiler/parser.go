package compiler

import (
	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
	"github.com/shrikejs/shrike/scopes"
)

// Parser drives the dumper over the token stream following the ES5.1
// grammar. It is single-pass: statements emit bytecode as they are
// recognized, with the dumper's rewrite protocol patching everything
// that is only known later.
type Parser struct {
	lexer   *Lexer
	table   *lit.Table
	arena   *scopes.Arena
	ser     *Serializer
	d       *Dumper
	labels  *LabelSet
	checker *earlyChecker

	tok            Token
	insideEval     bool
	insideFunction bool

	scopeStack []*scopes.Scope
}

// evalRetStore selects whether an expression statement's value is
// stored into the eval-result register.
type evalRetStore bool

const (
	evalRetStoreDump    evalRetStore = true
	evalRetStoreNotDump evalRetStore = false
)

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

func (p *Parser) tokenIs(tt TokenType) bool {
	return p.tok.Type == tt
}

func (p *Parser) tokenLit() lit.ID {
	return lit.ID(p.tok.UID)
}

func (p *Parser) isKeyword(kw Keyword) bool {
	return p.tok.Type == TokKeyword && Keyword(p.tok.UID) == kw
}

func (p *Parser) assertKeyword(kw Keyword) {
	if !p.isKeyword(kw) {
		raiseSyntaxError(p.tok.Loc, "Expected keyword '%s'", kw)
	}
}

func (p *Parser) skipToken() {
	p.tok = p.lexer.NextToken(false)
}

func (p *Parser) skipNewlines() {
	for {
		p.skipToken()
		if !p.tokenIs(TokNewline) {
			return
		}
	}
}

func (p *Parser) currentTokenMustBe(tt TokenType) {
	if !p.tokenIs(tt) {
		raiseSyntaxError(p.tok.Loc, "Expected '%s' token", tt)
	}
}

func (p *Parser) nextTokenMustBe(tt TokenType) {
	p.skipToken()
	p.currentTokenMustBe(tt)
}

func (p *Parser) tokenAfterNewlinesMustBe(tt TokenType) {
	p.skipNewlines()
	p.currentTokenMustBe(tt)
}

func (p *Parser) tokenAfterNewlinesMustBeKeyword(kw Keyword) {
	p.skipNewlines()
	p.assertKeyword(kw)
}

func (p *Parser) currentScope() *scopes.Scope {
	return p.scopeStack[len(p.scopeStack)-1]
}

func (p *Parser) pushScope(sc *scopes.Scope) {
	p.scopeStack = append(p.scopeStack, sc)
	p.ser.SetScope(sc)
}

func (p *Parser) popScope() {
	p.scopeStack = p.scopeStack[:len(p.scopeStack)-1]
	p.ser.SetScope(p.currentScope())
}

func (p *Parser) isStrictMode() bool {
	return p.currentScope().StrictMode
}

// rescanRegexpToken re-reads a token scanned as a division operator
// as a regular expression literal.
func (p *Parser) rescanRegexpToken() {
	p.lexer.Seek(p.tok.Loc)
	p.tok = p.lexer.NextToken(true)
}

// skipBraces skips a balanced brace/paren/bracket block; the opening
// token must be current.
func (p *Parser) skipBraces(open TokenType) {
	p.currentTokenMustBe(open)

	var close TokenType
	switch open {
	case TokOpenParen:
		close = TokCloseParen
	case TokOpenBrace:
		close = TokCloseBrace
	default:
		close = TokCloseSquare
	}

	p.skipNewlines()
	for !p.tokenIs(close) && !p.tokenIs(TokEOF) {
		if p.tokenIs(TokOpenParen) || p.tokenIs(TokOpenBrace) || p.tokenIs(TokOpenSquare) {
			p.skipBraces(p.tok.Type)
		}
		p.skipNewlines()
	}
	p.currentTokenMustBe(close)
}

// findNextTokenBeforeTheLocus scans for a token of the given type
// strictly before end. On hit it is the current token; on miss the
// lexer stands at end.
func (p *Parser) findNextTokenBeforeTheLocus(find TokenType, end Loc, skipBraceBlocks bool) bool {
	for p.tok.Loc.Offset < end.Offset {
		if skipBraceBlocks {
			if p.tokenIs(TokOpenBrace) {
				p.skipBraces(TokOpenBrace)
				p.skipNewlines()
				if p.tok.Loc.Offset >= end.Offset {
					p.lexer.Seek(end)
					p.tok = p.lexer.NextToken(false)
					return false
				}
			} else if p.tokenIs(TokCloseBrace) {
				raiseSyntaxError(p.tok.Loc, "Unmatched } brace")
			}
		}
		if p.tokenIs(find) {
			return true
		}
		p.skipNewlines()
	}
	return false
}

// insertSemicolon applies automatic semicolon insertion after a
// statement.
func (p *Parser) insertSemicolon() {
	p.skipToken()

	newLine := p.tokenIs(TokNewline) || p.lexer.PrevToken().Type == TokNewline
	closeOrEOF := p.tokenIs(TokCloseBrace) || p.tokenIs(TokEOF)

	if newLine || closeOrEOF {
		p.lexer.SaveToken(p.tok)
	} else if !p.tokenIs(TokSemicolon) && !p.tokenIs(TokEOF) {
		raiseSyntaxError(p.tok.Loc, "Expected either ';' or newline token")
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatementList() {
	for {
		p.parseStatement(nil)

		p.skipNewlines()
		for p.tokenIs(TokSemicolon) {
			p.skipNewlines()
		}
		if p.tokenIs(TokCloseBrace) {
			p.lexer.SaveToken(p.tok)
			return
		}
		if p.isKeyword(KwCase) || p.isKeyword(KwDefault) {
			p.lexer.SaveToken(p.tok)
			return
		}
	}
}

func (p *Parser) parseExpressionInsideParens() bytecode.Operand {
	p.tokenAfterNewlinesMustBe(TokOpenParen)
	p.skipNewlines()
	res := p.parseExpression(true, evalRetStoreNotDump)
	p.tokenAfterNewlinesMustBe(TokCloseParen)
	return res
}

func (p *Parser) parseIfStatement() {
	p.assertKeyword(KwIf)

	cond := p.parseExpressionInsideParens()
	p.d.DumpConditionalCheckForRewrite(cond)

	p.skipNewlines()
	p.parseStatement(nil)

	p.skipNewlines()
	if p.isKeyword(KwElse) {
		p.d.DumpJumpToEndForRewrite()
		p.d.RewriteConditionalCheck()

		p.skipNewlines()
		p.parseStatement(nil)

		p.d.RewriteJumpToEnd()
	} else {
		p.lexer.SaveToken(p.tok)
		p.d.RewriteConditionalCheck()
	}
}

func (p *Parser) parseDoWhileStatement(outermost *Label) {
	p.assertKeyword(KwDo)

	p.d.SetNextIterationTarget()

	p.skipNewlines()
	p.parseStatement(nil)

	p.labels.SetupContinueTarget(outermost, p.ser.CurrentCounter())

	p.tokenAfterNewlinesMustBeKeyword(KwWhile)
	cond := p.parseExpressionInsideParens()
	p.d.DumpContinueIterationsCheck(cond)
}

func (p *Parser) parseWhileStatement(outermost *Label) {
	p.assertKeyword(KwWhile)

	p.tokenAfterNewlinesMustBe(TokOpenParen)
	condLoc := p.tok.Loc
	p.skipBraces(TokOpenParen)

	p.d.DumpJumpToEndForRewrite()
	p.d.SetNextIterationTarget()

	p.skipNewlines()
	p.parseStatement(nil)

	p.labels.SetupContinueTarget(outermost, p.ser.CurrentCounter())

	p.d.RewriteJumpToEnd()

	endLoc := p.tok.Loc
	p.lexer.Seek(condLoc)
	cond := p.parseExpressionInsideParens()
	p.d.DumpContinueIterationsCheck(cond)

	p.lexer.Seek(endLoc)
	p.skipToken()
}

// parseForStatement compiles a plain for loop. The condition and
// increment clauses are re-parsed after the body, because the emitter
// wants the condition check at the loop tail.
func (p *Parser) parseForStatement(outermost *Label, bodyLoc Loc) {
	p.currentTokenMustBe(TokOpenParen)
	p.skipNewlines()

	// Initializer
	if p.isKeyword(KwVar) {
		p.parseVariableDeclarationList()
		p.skipToken()
	} else if !p.tokenIs(TokSemicolon) {
		p.parseExpression(false, evalRetStoreNotDump)
		p.skipToken()
	}

	p.d.DumpJumpToEndForRewrite()
	p.d.SetNextIterationTarget()

	p.currentTokenMustBe(TokSemicolon)
	p.skipToken()

	condLoc := p.tok.Loc

	if !p.findNextTokenBeforeTheLocus(TokSemicolon, bodyLoc, true) {
		raiseSyntaxError(p.tok.Loc, "Invalid for statement")
	}
	p.currentTokenMustBe(TokSemicolon)
	p.skipToken()

	incrLoc := p.tok.Loc

	// Body
	p.lexer.Seek(bodyLoc)
	p.skipNewlines()
	p.parseStatement(nil)

	loopEndLoc := p.tok.Loc

	p.labels.SetupContinueTarget(outermost, p.ser.CurrentCounter())

	// Increment
	p.lexer.Seek(incrLoc)
	p.skipNewlines()
	if !p.tokenIs(TokCloseParen) {
		p.parseExpression(true, evalRetStoreNotDump)
	}
	p.currentTokenMustBe(TokCloseParen)

	p.d.RewriteJumpToEnd()

	// Condition
	p.lexer.Seek(condLoc)
	p.skipNewlines()
	if p.tokenIs(TokSemicolon) {
		p.d.DumpContinueIterationsCheck(bytecode.Empty())
	} else {
		cond := p.parseExpression(true, evalRetStoreNotDump)
		p.d.DumpContinueIterationsCheck(cond)
	}

	p.lexer.Seek(loopEndLoc)
	p.skipNewlines()
	if !p.tokenIs(TokCloseBrace) {
		p.lexer.SaveToken(p.tok)
	}
}

// parseForInStatementIterator parses the iterator clause. It reports
// whether the iterator is a member expression, returning its base and
// property name, or a plain identifier.
func (p *Parser) parseForInStatementIterator() (base, identifier bytecode.Operand, isMember bool) {
	if p.isKeyword(KwVar) {
		p.skipNewlines()
		return bytecode.Empty(), p.parseVariableDeclaration(), false
	}

	var b, prop bytecode.Operand = bytecode.Empty(), bytecode.Empty()
	i := p.parseLeftHandSideExpression(&b, &prop)

	if b.IsEmpty() {
		return bytecode.Empty(), i, false
	}
	return b, prop, true
}

func (p *Parser) parseForInStatement(outermost *Label, bodyLoc Loc) {
	raised := p.labels.RaiseNestedJumpableBorder()

	p.currentTokenMustBe(TokOpenParen)
	p.skipNewlines()

	iteratorLoc := p.tok.Loc

	for p.tok.Loc.Offset < bodyLoc.Offset {
		if !p.findNextTokenBeforeTheLocus(TokKeyword, bodyLoc, true) {
			raiseSyntaxError(p.tok.Loc, "Invalid for statement")
		}
		if p.isKeyword(KwIn) {
			break
		}
		p.skipToken()
	}
	if !p.isKeyword(KwIn) {
		raiseSyntaxError(p.tok.Loc, "Invalid for statement")
	}
	p.skipNewlines()

	// Collection
	collection := p.parseExpression(true, evalRetStoreNotDump)
	p.currentTokenMustBe(TokCloseParen)
	p.skipToken()

	forInPos := p.d.DumpForInForRewrite(collection)

	// Assign the iteration property name to the iterator.
	p.lexer.Seek(iteratorLoc)
	p.tok = p.lexer.NextToken(false)

	base, identifier, isMember := p.parseForInStatementIterator()
	if isMember {
		p.d.DumpPropSetter(base, identifier, ForInPropNameOperand())
	} else {
		p.d.DumpVariableAssignment(identifier, ForInPropNameOperand())
	}

	// Body
	p.lexer.Seek(bodyLoc)
	p.tok = p.lexer.NextToken(false)
	p.parseStatement(nil)

	loopEndLoc := p.tok.Loc

	p.labels.SetupContinueTarget(outermost, p.ser.CurrentCounter())

	p.d.RewriteForIn(forInPos)
	p.d.DumpForInEnd()

	p.lexer.Seek(loopEndLoc)
	p.tok = p.lexer.NextToken(false)
	if !p.tokenIs(TokCloseBrace) {
		p.lexer.SaveToken(p.tok)
	}

	if raised {
		p.labels.RemoveNestedJumpableBorder()
	}
}

// parseForOrForInStatement disambiguates for and for-in by scanning
// for a ';' before the body, then seeks back and parses in the chosen
// mode.
func (p *Parser) parseForOrForInStatement(outermost *Label) {
	p.assertKeyword(KwFor)
	p.tokenAfterNewlinesMustBe(TokOpenParen)

	openParenLoc := p.tok.Loc

	p.skipBraces(TokOpenParen)
	p.skipNewlines()
	bodyLoc := p.tok.Loc

	p.lexer.Seek(openParenLoc)
	p.tok = p.lexer.NextToken(false)

	isPlainFor := p.findNextTokenBeforeTheLocus(TokSemicolon, bodyLoc, true)

	p.lexer.Seek(openParenLoc)
	p.tok = p.lexer.NextToken(false)

	if isPlainFor {
		p.parseForStatement(outermost, bodyLoc)
	} else {
		p.parseForInStatement(outermost, bodyLoc)
	}
}

func (p *Parser) parseWithStatement() {
	p.assertKeyword(KwWith)
	if p.isStrictMode() {
		raiseSyntaxError(p.tok.Loc, "'with' expression is not allowed in strict mode")
	}
	expr := p.parseExpressionInsideParens()

	p.currentScope().ContainsWith = true

	raised := p.labels.RaiseNestedJumpableBorder()

	withPos := p.d.DumpWithForRewrite(expr)
	p.skipNewlines()
	p.parseStatement(nil)
	p.d.RewriteWith(withPos)
	p.d.DumpWithEnd()

	if raised {
		p.labels.RemoveNestedJumpableBorder()
	}
}

func (p *Parser) skipCaseClauseBody() {
	for !p.isKeyword(KwCase) && !p.isKeyword(KwDefault) && !p.tokenIs(TokCloseBrace) {
		if p.tokenIs(TokOpenBrace) {
			p.skipBraces(TokOpenBrace)
		}
		p.skipNewlines()
	}
}

// parseSwitchStatement makes two passes over the case clauses: the
// first emits the jump table, the second seeks back and emits the
// bodies, resolving each clause jump in source order.
func (p *Parser) parseSwitchStatement() {
	p.assertKeyword(KwSwitch)

	switchExpr := p.dumpAssignmentOfLHSIfLiteral(p.parseExpressionInsideParens())
	p.tokenAfterNewlinesMustBe(TokOpenBrace)

	p.d.StartDumpingCaseClauses()
	startLoc := p.tok.Loc

	wasDefault := false
	defaultBodyIndex := 0
	var bodyLocs []Loc

	p.skipNewlines()
	for p.isKeyword(KwCase) || p.isKeyword(KwDefault) {
		if p.isKeyword(KwCase) {
			p.skipNewlines()
			caseExpr := p.parseExpression(true, evalRetStoreNotDump)
			p.nextTokenMustBe(TokColon)
			p.d.DumpCaseClauseCheckForRewrite(switchExpr, caseExpr)
			p.skipNewlines()
			bodyLocs = append(bodyLocs, p.tok.Loc)
			p.skipCaseClauseBody()
		} else {
			if wasDefault {
				raiseSyntaxError(p.tok.Loc, "Duplication of 'default' clause")
			}
			wasDefault = true
			p.tokenAfterNewlinesMustBe(TokColon)
			p.skipNewlines()
			defaultBodyIndex = len(bodyLocs)
			bodyLocs = append(bodyLocs, p.tok.Loc)
			p.skipCaseClauseBody()
		}
	}
	p.currentTokenMustBe(TokCloseBrace)

	p.d.DumpDefaultClauseCheckForRewrite()

	p.lexer.Seek(startLoc)
	p.tok = p.lexer.NextToken(false)
	p.currentTokenMustBe(TokOpenBrace)

	label := p.labels.Push(LabelUnnamedBreaks, lit.None)

	p.skipNewlines()
	for i, loc := range bodyLocs {
		p.lexer.Seek(loc)
		p.tok = p.lexer.NextToken(false)
		for p.tokenIs(TokNewline) {
			p.skipToken()
		}
		if wasDefault && defaultBodyIndex == i {
			p.d.RewriteDefaultClause()
			if p.isKeyword(KwCase) {
				continue
			}
		} else {
			p.d.RewriteCaseClause()
			if p.isKeyword(KwCase) || p.isKeyword(KwDefault) {
				continue
			}
		}
		p.parseStatementList()
		p.skipNewlines()
	}

	if !wasDefault {
		p.d.RewriteDefaultClause()
	}

	p.currentTokenMustBe(TokCloseBrace)

	p.labels.RewriteJumpsAndPop(label, p.ser.CurrentCounter())
	p.d.FinishDumpingCaseClauses()
}

func (p *Parser) parseCatchClause() {
	p.assertKeyword(KwCatch)

	p.tokenAfterNewlinesMustBe(TokOpenParen)
	p.tokenAfterNewlinesMustBe(TokName)
	exception := bytecode.Lit(p.tokenLit())
	p.checker.CheckForEvalAndArgumentsInStrictMode(exception, p.isStrictMode(), p.tok.Loc)
	p.tokenAfterNewlinesMustBe(TokCloseParen)

	p.d.DumpCatchForRewrite(exception)

	p.tokenAfterNewlinesMustBe(TokOpenBrace)
	p.skipNewlines()
	p.parseStatementList()
	p.nextTokenMustBe(TokCloseBrace)

	p.d.RewriteCatch()
}

func (p *Parser) parseFinallyClause() {
	p.assertKeyword(KwFinally)

	p.d.DumpFinallyForRewrite()

	p.tokenAfterNewlinesMustBe(TokOpenBrace)
	p.skipNewlines()
	p.parseStatementList()
	p.nextTokenMustBe(TokCloseBrace)

	p.d.RewriteFinally()
}

func (p *Parser) parseTryStatement() {
	p.assertKeyword(KwTry)

	p.currentScope().ContainsTry = true

	raised := p.labels.RaiseNestedJumpableBorder()

	p.d.DumpTryForRewrite()

	p.tokenAfterNewlinesMustBe(TokOpenBrace)
	p.skipNewlines()
	p.parseStatementList()
	p.nextTokenMustBe(TokCloseBrace)

	p.d.RewriteTry()

	p.tokenAfterNewlinesMustBe(TokKeyword)
	if p.isKeyword(KwCatch) {
		p.parseCatchClause()

		p.skipNewlines()
		if p.isKeyword(KwFinally) {
			p.parseFinallyClause()
		} else {
			p.lexer.SaveToken(p.tok)
		}
	} else if p.isKeyword(KwFinally) {
		p.parseFinallyClause()
	} else {
		raiseSyntaxError(p.tok.Loc, "Expected either 'catch' or 'finally' token")
	}

	p.d.DumpEndTryCatchFinally()

	if raised {
		p.labels.RemoveNestedJumpableBorder()
	}
}

func (p *Parser) parseIterationalStatement(outermostNamed *Label) {
	label := p.labels.Push(LabelUnnamedBreaks|LabelUnnamedContinues, lit.None)

	outermost := outermostNamed
	if outermost == nil {
		outermost = label
	}

	switch {
	case p.isKeyword(KwDo):
		p.parseDoWhileStatement(outermost)
	case p.isKeyword(KwWhile):
		p.parseWhileStatement(outermost)
	default:
		p.assertKeyword(KwFor)
		p.parseForOrForInStatement(outermost)
	}

	p.labels.RewriteJumpsAndPop(label, p.ser.CurrentCounter())
}

func (p *Parser) parseStatement(outermost *Label) {
	p.d.NewStatement()

	if p.tokenIs(TokCloseBrace) {
		p.lexer.SaveToken(p.tok)
		return
	}
	if p.tokenIs(TokOpenBrace) {
		p.skipNewlines()
		if !p.tokenIs(TokCloseBrace) {
			p.parseStatementList()
			p.nextTokenMustBe(TokCloseBrace)
		}
		return
	}
	if p.isKeyword(KwVar) {
		p.parseVariableDeclarationList()
		if p.tokenIs(TokSemicolon) {
			p.skipNewlines()
		} else {
			p.insertSemicolon()
		}
		return
	}
	if p.isKeyword(KwFunction) {
		p.parseFunctionDeclaration()
		return
	}
	if p.tokenIs(TokSemicolon) {
		return
	}
	if p.isKeyword(KwCase) || p.isKeyword(KwDefault) {
		raiseSyntaxError(p.tok.Loc, "Misplaced '%s' clause", Keyword(p.tok.UID))
	}
	if p.isKeyword(KwIf) {
		p.parseIfStatement()
		return
	}
	if p.isKeyword(KwDo) || p.isKeyword(KwWhile) || p.isKeyword(KwFor) {
		p.parseIterationalStatement(outermost)
		return
	}
	if p.isKeyword(KwContinue) || p.isKeyword(KwBreak) {
		p.parseBreakOrContinue()
		return
	}
	if p.isKeyword(KwReturn) {
		if !p.insideFunction {
			raiseSyntaxError(p.tok.Loc, "Return is illegal")
		}

		p.skipToken()
		if !p.tokenIs(TokSemicolon) && !p.tokenIs(TokNewline) && !p.tokenIs(TokCloseBrace) {
			op := p.parseExpression(true, evalRetStoreNotDump)
			p.d.DumpRetVal(op)
			p.insertSemicolon()
		} else {
			p.d.DumpRet()
			if p.tokenIs(TokCloseBrace) {
				p.lexer.SaveToken(p.tok)
			}
		}
		return
	}
	if p.isKeyword(KwWith) {
		p.parseWithStatement()
		return
	}
	if p.isKeyword(KwSwitch) {
		p.parseSwitchStatement()
		return
	}
	if p.isKeyword(KwThrow) {
		p.skipToken()
		op := p.parseExpression(true, evalRetStoreNotDump)
		p.insertSemicolon()
		p.d.DumpThrow(op)
		return
	}
	if p.isKeyword(KwTry) {
		p.parseTryStatement()
		return
	}
	if p.tokenIs(TokName) {
		temp := p.tok
		p.skipNewlines()
		if p.tokenIs(TokColon) {
			p.skipNewlines()

			if p.labels.Find(LabelNamed, lit.ID(temp.UID), nil) != nil {
				raiseSyntaxError(temp.Loc, "Label is duplicated")
			}

			label := p.labels.Push(LabelNamed, lit.ID(temp.UID))

			if outermost != nil {
				p.parseStatement(outermost)
			} else {
				p.parseStatement(label)
			}

			p.labels.RewriteJumpsAndPop(label, p.ser.CurrentCounter())
		} else {
			p.lexer.SaveToken(p.tok)
			p.tok = temp
			expr := p.parseExpression(true, evalRetStoreDump)
			p.dumpAssignmentOfLHSIfLiteral(expr)
			p.insertSemicolon()
		}
		return
	}

	p.parseExpression(true, evalRetStoreDump)
	p.insertSemicolon()
}

func (p *Parser) parseBreakOrContinue() {
	isBreak := p.isKeyword(KwBreak)

	p.skipToken()

	var label *Label
	isSimplyJumpable := true
	if p.tokenIs(TokName) {
		label = p.labels.Find(LabelNamed, p.tokenLit(), &isSimplyJumpable)
		if label == nil {
			raiseSyntaxError(p.tok.Loc, "Label not found")
		}
	} else if isBreak {
		label = p.labels.Find(LabelUnnamedBreaks, lit.None, &isSimplyJumpable)
		if label == nil {
			raiseSyntaxError(p.tok.Loc, "No corresponding statement for the break")
		}
	} else {
		label = p.labels.Find(LabelUnnamedContinues, lit.None, &isSimplyJumpable)
		if label == nil {
			raiseSyntaxError(p.tok.Loc, "No corresponding statement for the continue")
		}
	}

	if p.tokenIs(TokCloseBrace) {
		p.lexer.SaveToken(p.tok)
	}

	p.labels.AddJump(label, isSimplyJumpable, isBreak)
}

func (p *Parser) parseSourceElement() {
	if p.isKeyword(KwFunction) {
		p.parseFunctionDeclaration()
	} else {
		p.parseStatement(nil)
	}
}

// checkDirectivePrologue scans the leading string-literal statements
// for the "use strict" directive, then seeks back so the prologue is
// emitted normally.
func (p *Parser) checkDirectivePrologue() {
	startLoc := p.tok.Loc

	for p.tokenIs(TokString) {
		if p.table.String(p.tokenLit()) == "use strict" && !p.lexer.HasEscapeSequences(p.tok) {
			p.currentScope().StrictMode = true
			p.lexer.SetStrictMode(true)
			break
		}

		p.skipNewlines()
		if p.tokenIs(TokSemicolon) {
			p.skipNewlines()
		}
	}

	if startLoc.Offset != p.tok.Loc.Offset {
		p.lexer.Seek(startLoc)
	} else {
		p.lexer.SaveToken(p.tok)
	}
}

// parseVariableDeclaration registers the variable in the current
// scope and emits the initializer assignment, if any.
func (p *Parser) parseVariableDeclaration() bytecode.Operand {
	p.currentTokenMustBe(TokName)

	nameLit := p.tokenLit()
	name := bytecode.Lit(nameLit)

	if !p.currentScope().VariableExists(nameLit) {
		p.checker.CheckForEvalAndArgumentsInStrictMode(name, p.isStrictMode(), p.tok.Loc)
		p.ser.AddVariable(nameLit, false)
	}

	p.skipNewlines()

	if p.tokenIs(TokEq) {
		p.skipNewlines()
		expr := p.parseAssignmentExpression(true)
		p.d.DumpVariableAssignment(name, expr)
	} else {
		p.lexer.SaveToken(p.tok)
	}

	return name
}

func (p *Parser) parseVariableDeclarationList() {
	p.assertKeyword(KwVar)

	for {
		p.skipNewlines()
		p.parseVariableDeclaration()

		p.skipNewlines()
		if !p.tokenIs(TokComma) {
			p.lexer.SaveToken(p.tok)
			return
		}
	}
}

// parseSourceElementList compiles one scope's body: the scope-flags
// and reg-var-decl templates, the statements, the optimizer pass, and
// the template rewrites.
func (p *Parser) parseSourceElementList(isGlobal, tryReplaceLocalVarsWithRegs bool) {
	endTT := TokCloseBrace
	if isGlobal {
		endTT = TokEOF
	}

	p.d.NewScope()

	scopeFlagsPos := p.d.DumpScopeCodeFlagsForRewrite()

	p.checkDirectivePrologue()

	regVarDeclPos := p.d.DumpRegVarDeclForRewrite()

	if p.insideEval && !p.insideFunction {
		p.d.DumpUndefinedAssignment(EvalRetOperand())
	}

	p.skipNewlines()
	for !p.tokenIs(TokEOF) && !p.tokenIs(TokCloseBrace) {
		p.parseSourceElement()
		p.skipNewlines()
	}

	if !p.tokenIs(endTT) {
		raiseSyntaxError(p.tok.Loc, "Unexpected token")
	}
	p.lexer.SaveToken(p.tok)

	sc := p.currentScope()

	flags := bytecode.ScopeFlags(0)
	if sc.StrictMode {
		flags |= bytecode.ScopeFlagStrict
	}
	if !sc.RefArguments {
		flags |= bytecode.ScopeFlagNotRefArguments
	}
	if !sc.RefEval {
		flags |= bytecode.ScopeFlagNotRefEval
	}

	if tryReplaceLocalVarsWithRegs && sc.Type == scopes.Function {
		flags = p.tryMoveVarsToRegs(sc, &scopeFlagsPos, &regVarDeclPos, flags)
	}

	p.d.RewriteScopeCodeFlags(scopeFlagsPos, flags)
	p.d.RewriteRegVarDecl(regVarDeclPos)
	p.d.FinishScope()
}
