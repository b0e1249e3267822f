package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
	"github.com/shrikejs/shrike/scopes"
)

var log = commonlog.GetLogger("shrike.compiler")

// Serializer is the instruction buffer front. It appends op-metas to
// the scope currently being compiled, serves reads and rewrites by
// instruction counter, and finally merges the scope tree into a
// bytecode image.
type Serializer struct {
	scope      *scopes.Scope
	table      *lit.Table
	showInstrs bool
}

// NewSerializer creates a serializer resolving literals through the
// given table (used only for debug dumps).
func NewSerializer(table *lit.Table) *Serializer {
	return &Serializer{table: table}
}

// SetShowInstrs toggles logging of every dumped instruction.
func (s *Serializer) SetShowInstrs(show bool) {
	s.showInstrs = show
}

// SetScope switches the buffer the serializer writes to.
func (s *Serializer) SetScope(sc *scopes.Scope) {
	s.scope = sc
}

// Scope returns the scope the serializer currently writes to.
func (s *Serializer) Scope() *scopes.Scope {
	return s.scope
}

// DumpOpMeta appends an instruction to the current scope and returns
// its counter.
func (s *Serializer) DumpOpMeta(om bytecode.Instruction) bytecode.Counter {
	if len(s.scope.Metas) >= bytecode.MaxInstrs-1 {
		raiseSyntaxError(Loc{}, "Too many instructions in scope")
	}
	pos := s.scope.InstrsCount()
	s.scope.AddOpMeta(om)
	if s.showInstrs {
		log.Debugf("%5d  %s", pos, bytecode.FormatOpMeta(om, s.table))
	}
	return pos
}

// OpMetaAt reads the instruction at the given counter.
func (s *Serializer) OpMetaAt(pos bytecode.Counter) bytecode.Instruction {
	return s.scope.OpMetaAt(pos)
}

// RewriteOpMeta overwrites the instruction at the given counter.
func (s *Serializer) RewriteOpMeta(pos bytecode.Counter, om bytecode.Instruction) {
	if s.showInstrs {
		log.Debugf("%5d* %s", pos, bytecode.FormatOpMeta(om, s.table))
	}
	s.scope.SetOpMeta(pos, om)
}

// CurrentCounter returns the counter one past the last instruction.
func (s *Serializer) CurrentCounter() bytecode.Counter {
	return s.scope.InstrsCount()
}

// SetWritingPosition moves the write cursor back, truncating the
// buffer tail.
func (s *Serializer) SetWritingPosition(pos bytecode.Counter) {
	s.scope.Truncate(pos)
}

// CountInstrsInSubscopes reports the merged instruction count of the
// current scope's subscopes; inter-scope jump distances account for
// it because subscope regions are merged between a scope's header and
// its body.
func (s *Serializer) CountInstrsInSubscopes() bytecode.Counter {
	return bytecode.Counter(s.scope.SubscopeInstrCount())
}

// AddVariable registers a parameter or local of the current scope.
func (s *Serializer) AddVariable(name lit.ID, isParam bool) {
	s.scope.AddVariable(name, isParam)
}

// DumpSubscope accounts a finished function scope into its parent.
// The scope tree retains the child, so merging picks it up in
// creation order; only the debug stream needs the event.
func (s *Serializer) DumpSubscope(sub *scopes.Scope) {
	if s.showInstrs {
		log.Debugf("-- subscope of %d instructions complete", sub.InstrsCount())
	}
}

// ---------------------------------------------------------------------------
// Merge: scope tree -> finalized image
// ---------------------------------------------------------------------------

// MergeScopesIntoBytecode linearizes the scope tree into a finalized
// image. Each scope region is laid out as: header (the leading run of
// reg-var-decl / var-decl / meta instructions, function header
// included), var-decl instructions for its lexical locals, subscope
// regions in creation order, then the body. This performs function
// hoisting: the VM walks function regions before the enclosing body
// runs.
func (s *Serializer) MergeScopesIntoBytecode(root *scopes.Scope) (*bytecode.Image, error) {
	img := &bytecode.Image{}
	if err := s.mergeScope(root, img); err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

func (s *Serializer) emitMerged(img *bytecode.Image, om bytecode.Instruction) {
	pos := bytecode.Counter(len(img.Instrs))
	for slot := 0; slot < 3; slot++ {
		if om.IsLiteralSlot(slot) {
			img.LitMap = append(img.LitMap, bytecode.LitMapEntry{
				Pos:  pos,
				Slot: uint8(slot),
				Lit:  om.LitID[slot],
			})
		}
	}
	img.Instrs = append(img.Instrs, om.Instr)
}

func (s *Serializer) mergeScope(sc *scopes.Scope, img *bytecode.Image) error {
	img.Scopes = append(img.Scopes, bytecode.ScopeHeader{
		Start:           bytecode.Counter(len(img.Instrs)),
		Strict:          sc.StrictMode,
		ArgsOnRegisters: sc.ArgsOnRegisters,
		NoLexEnv:        sc.NoLexEnv,
	})

	// Header: everything up to the first computational instruction
	// at or past the reg-var-decl.
	pos := 0
	header := true
	for ; pos < len(sc.Metas); pos++ {
		om := sc.Metas[pos]
		if om.Op != bytecode.OpVarDecl && om.Op != bytecode.OpMeta && !header {
			break
		}
		if om.Op == bytecode.OpRegVarDecl {
			header = false
		}
		s.emitMerged(img, om)
	}

	// Lexical locals; parameters were dumped as varg metas already.
	for _, v := range sc.Variables {
		if !v.IsParam {
			s.emitMerged(img, bytecode.New(bytecode.OpVarDecl, bytecode.Lit(v.Name)))
		}
	}

	for _, child := range sc.Children() {
		if err := s.mergeScope(child, img); err != nil {
			return err
		}
	}

	for ; pos < len(sc.Metas); pos++ {
		s.emitMerged(img, sc.Metas[pos])
	}

	return nil
}
