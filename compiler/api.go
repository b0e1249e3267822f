package compiler

import (
	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
	"github.com/shrikejs/shrike/scopes"
)

// Status is the outcome of a compilation.
type Status uint8

const (
	StatusOK Status = iota
	StatusSyntaxError
	StatusReferenceError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusSyntaxError:
		return "SYNTAX_ERROR"
	default:
		return "REFERENCE_ERROR"
	}
}

// Result is the tagged outcome of ParseScript / ParseEval. On success
// Image holds the finalized bytecode; otherwise Err carries the error
// with its source location.
type Result struct {
	Status Status
	Image  *bytecode.Image
	Err    *EarlyError

	// ContainsFunctions is reported for eval code only.
	ContainsFunctions bool
}

// Compiler is one compilation front-end instance. It is
// single-threaded; a fresh parser, dumper and scope arena are built
// per compilation, bracketed by the engine context's lifecycle.
type Compiler struct {
	table      *lit.Table
	showInstrs bool
}

// New creates a compiler interning literals into the given table.
func New(table *lit.Table) *Compiler {
	return &Compiler{table: table}
}

// SetShowInstructions toggles debug dumping of the instruction
// buffer while compiling.
func (c *Compiler) SetShowInstructions(show bool) {
	c.showInstrs = show
}

// ParseScript compiles a program: non-strict (unless the prologue
// says otherwise), non-eval.
func (c *Compiler) ParseScript(source []byte) Result {
	return c.parseProgram(source, false, false)
}

// ParseEval compiles the string passed to an eval() call. The code
// inherits the caller's strict mode, stores its completion value in
// the eval-result register, and skips the variable-to-register
// optimization.
func (c *Compiler) ParseEval(source []byte, inheritedStrict bool) Result {
	return c.parseProgram(source, true, inheritedStrict)
}

// parseProgram is the single recovery point of a compilation: any
// early error raised below unwinds to here, transient state is
// dropped wholesale, and no partial bytecode escapes.
func (c *Compiler) parseProgram(source []byte, inEval, isStrict bool) Result {
	arena := scopes.NewArena()
	defer arena.Release()

	ser := NewSerializer(c.table)
	ser.SetShowInstrs(c.showInstrs)

	d := NewDumper(ser, c.table)

	p := &Parser{
		lexer:      NewLexer(source, c.table),
		table:      c.table,
		arena:      arena,
		ser:        ser,
		d:          d,
		checker:    newEarlyChecker(c.table),
		insideEval: inEval,
	}
	p.labels = NewLabelSet(d)

	scopeType := scopes.Global
	if inEval {
		scopeType = scopes.Eval
	}
	root := arena.New(nil, scopeType)
	root.StrictMode = isStrict
	p.pushScope(root)

	var earlyErr *EarlyError
	img, containsFunctions := func() (*bytecode.Image, bool) {
		defer recoverEarlyError(&earlyErr)

		p.lexer.SetStrictMode(root.StrictMode)
		p.skipNewlines()

		// Global, eval and dynamically constructed code never get
		// the variable-to-register optimization: names there can be
		// redefined behind the compiler's back at run time.
		p.parseSourceElementList(true, false)

		p.skipNewlines()
		if !p.tokenIs(TokEOF) {
			raiseSyntaxError(p.tok.Loc, "Unexpected token at end of source")
		}

		if p.insideEval {
			p.d.DumpRetVal(EvalRetOperand())
		} else {
			p.d.DumpRet()
		}

		p.d.CheckStacksEmpty()

		img, err := ser.MergeScopesIntoBytecode(root)
		if err != nil {
			raiseSyntaxError(Loc{}, "%v", err)
		}
		return img, root.ContainsFunctions
	}()

	if earlyErr != nil {
		// Transient state is reset wholesale: labels, the scope
		// chain, the serializer's scope pointer. The bytecode
		// emitted so far is discarded with the arena.
		p.labels.RemoveAll()
		p.scopeStack = nil

		status := StatusSyntaxError
		if earlyErr.Kind == ErrReference {
			status = StatusReferenceError
		}
		return Result{Status: status, Err: earlyErr}
	}

	return Result{Status: StatusOK, Image: img, ContainsFunctions: containsFunctions}
}
