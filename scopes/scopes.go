// Package scopes implements the compiler's scope tree: an arena of
// scope nodes created while parsing. Children reference parents by
// arena index; the arena owns every node and releases them in bulk at
// the end of a compilation.
package scopes

import (
	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
)

// Type is the kind of code a scope compiles.
type Type uint8

const (
	Global Type = iota // the Global code scope
	Function
	Eval
)

// Variable is a parameter or a 'var'-declared local. Parameters
// precede locals, in declaration order.
type Variable struct {
	Name    lit.ID
	IsParam bool
}

// Scope holds one scope's state during parsing: its flags, variable
// accounting, instruction buffer, and tree links.
type Scope struct {
	arena  *Arena
	index  int
	parent int // -1 for the root

	Type       Type
	StrictMode bool

	// Per-scope properties, not dependent on subscopes.
	RefArguments      bool
	RefEval           bool
	ContainsWith      bool
	ContainsTry       bool
	ContainsDelete    bool
	ContainsFunctions bool

	// Set by the register optimizer.
	ArgsOnRegisters bool
	NoLexEnv        bool

	Variables  []Variable
	ParamCount int
	LocalCount int

	Metas    []bytecode.Instruction
	children []int
}

// Arena owns every scope node of one compilation.
type Arena struct {
	nodes []*Scope
}

// NewArena creates an empty scope arena.
func NewArena() *Arena {
	return &Arena{}
}

// New creates a scope. A nil parent makes a root node; function
// expression scopes are attached to the scope current at creation
// time, which is also their merge position.
func (a *Arena) New(parent *Scope, typ Type) *Scope {
	s := &Scope{
		arena:  a,
		index:  len(a.nodes),
		parent: -1,
		Type:   typ,
	}
	if parent != nil {
		s.parent = parent.index
		parent.children = append(parent.children, s.index)
	}
	a.nodes = append(a.nodes, s)
	return s
}

// Release drops every node. The arena can be reused afterwards.
func (a *Arena) Release() {
	a.nodes = nil
}

// Parent returns the parent scope, or nil for a root.
func (s *Scope) Parent() *Scope {
	if s.parent < 0 {
		return nil
	}
	return s.arena.nodes[s.parent]
}

// Children returns the child scopes in creation (= merge) order.
func (s *Scope) Children() []*Scope {
	out := make([]*Scope, len(s.children))
	for i, idx := range s.children {
		out[i] = s.arena.nodes[idx]
	}
	return out
}

// AddVariable registers a parameter or local. Parameters may repeat;
// the optimizer masks duplicates later.
func (s *Scope) AddVariable(name lit.ID, isParam bool) {
	s.Variables = append(s.Variables, Variable{Name: name, IsParam: isParam})
	if isParam {
		s.ParamCount++
	} else {
		s.LocalCount++
	}
}

// VariableExists reports whether the name is already a parameter or
// local of this scope.
func (s *Scope) VariableExists(name lit.ID) bool {
	for _, v := range s.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

// RemoveVariableAt drops the variable at index i (used when the
// optimizer moves a local to a register).
func (s *Scope) RemoveVariableAt(i int) {
	if s.Variables[i].IsParam {
		s.ParamCount--
	} else {
		s.LocalCount--
	}
	s.Variables = append(s.Variables[:i], s.Variables[i+1:]...)
}

// InstrsCount reports the scope's own instruction count.
func (s *Scope) InstrsCount() bytecode.Counter {
	return bytecode.Counter(len(s.Metas))
}

// AddOpMeta appends an instruction.
func (s *Scope) AddOpMeta(om bytecode.Instruction) {
	s.Metas = append(s.Metas, om)
}

// OpMetaAt returns the instruction at the given counter.
func (s *Scope) OpMetaAt(pos bytecode.Counter) bytecode.Instruction {
	return s.Metas[pos]
}

// SetOpMeta overwrites the instruction at the given counter.
func (s *Scope) SetOpMeta(pos bytecode.Counter, om bytecode.Instruction) {
	s.Metas[pos] = om
}

// RemoveOpMeta deletes the instruction at the given counter, shifting
// the tail down.
func (s *Scope) RemoveOpMeta(pos bytecode.Counter) {
	s.Metas = append(s.Metas[:pos], s.Metas[pos+1:]...)
}

// Truncate sets the writing position, dropping the tail.
func (s *Scope) Truncate(pos bytecode.Counter) {
	s.Metas = s.Metas[:pos]
}

// MergedInstrCount is the number of instructions this scope
// contributes to a merged image: its own instructions, the var-decl
// instructions generated for its lexical locals, and everything its
// subscopes contribute.
func (s *Scope) MergedInstrCount() int {
	n := len(s.Metas) + s.LocalCount
	for _, c := range s.Children() {
		n += c.MergedInstrCount()
	}
	return n
}

// SubscopeInstrCount is the number of merged instructions contributed
// by this scope's subscopes.
func (s *Scope) SubscopeInstrCount() int {
	n := 0
	for _, c := range s.Children() {
		n += c.MergedInstrCount()
	}
	return n
}
