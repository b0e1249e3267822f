package compiler

import (
	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
)

// Early-error bookkeeping for nested constructs: formal-parameter
// lists and object-literal property lists can nest (a function
// expression inside an argument list), so both checkers are stacks of
// lists.

// PropKind classifies an object-literal property for the duplication
// rules of ES5.1 §11.1.5.
type PropKind uint8

const (
	PropData PropKind = iota
	PropGetter
	PropSetter
)

type propEntry struct {
	name lit.ID
	kind PropKind
}

type earlyChecker struct {
	table *lit.Table

	vargFrames [][]lit.ID
	propFrames [][]propEntry
}

func newEarlyChecker(table *lit.Table) *earlyChecker {
	return &earlyChecker{table: table}
}

// StartCheckingOfVargs opens a formal-parameter list frame.
func (c *earlyChecker) StartCheckingOfVargs() {
	c.vargFrames = append(c.vargFrames, nil)
}

// AddVarg records a formal parameter name.
func (c *earlyChecker) AddVarg(op bytecode.Operand) {
	n := len(c.vargFrames)
	c.vargFrames[n-1] = append(c.vargFrames[n-1], op.Literal())
}

// CheckForSyntaxErrorsInFormalParamList closes the innermost
// parameter frame; in strict mode duplicates and the names eval and
// arguments are rejected.
func (c *earlyChecker) CheckForSyntaxErrorsInFormalParamList(isStrict bool, loc Loc) {
	n := len(c.vargFrames)
	frame := c.vargFrames[n-1]
	c.vargFrames = c.vargFrames[:n-1]

	if !isStrict {
		return
	}

	seen := make(map[lit.ID]bool, len(frame))
	for _, name := range frame {
		if seen[name] {
			raiseSyntaxError(loc, "Duplicate formal parameter name %q is not allowed in strict mode",
				c.table.String(name))
		}
		seen[name] = true

		switch c.table.String(name) {
		case "eval", "arguments":
			raiseSyntaxError(loc, "Parameter name %q is not allowed in strict mode", c.table.String(name))
		}
	}
}

// StartCheckingOfPropNames opens an object-literal property frame.
func (c *earlyChecker) StartCheckingOfPropNames() {
	c.propFrames = append(c.propFrames, nil)
}

// AddPropName records one property of the innermost object literal.
func (c *earlyChecker) AddPropName(name bytecode.Operand, kind PropKind) {
	n := len(c.propFrames)
	c.propFrames[n-1] = append(c.propFrames[n-1], propEntry{name: name.Literal(), kind: kind})
}

// CheckForDuplicationOfPropNames closes the innermost property frame
// and applies the ES5.1 duplication rules: data twice is an error in
// strict mode only; data mixed with an accessor, or the same accessor
// kind twice, is always an error.
func (c *earlyChecker) CheckForDuplicationOfPropNames(isStrict bool, loc Loc) {
	n := len(c.propFrames)
	frame := c.propFrames[n-1]
	c.propFrames = c.propFrames[:n-1]

	const (
		hasData = 1 << iota
		hasGet
		hasSet
	)

	seen := make(map[lit.ID]uint8, len(frame))
	for _, e := range frame {
		flags := seen[e.name]

		switch e.kind {
		case PropData:
			if flags&hasData != 0 && isStrict {
				raiseSyntaxError(loc, "Duplicate data property %q is not allowed in strict mode",
					c.table.String(e.name))
			}
			if flags&(hasGet|hasSet) != 0 {
				raiseSyntaxError(loc, "Property %q mixes data and accessor declarations",
					c.table.String(e.name))
			}
			flags |= hasData
		case PropGetter:
			if flags&hasGet != 0 {
				raiseSyntaxError(loc, "Duplicate getter for property %q", c.table.String(e.name))
			}
			if flags&hasData != 0 {
				raiseSyntaxError(loc, "Property %q mixes data and accessor declarations",
					c.table.String(e.name))
			}
			flags |= hasGet
		case PropSetter:
			if flags&hasSet != 0 {
				raiseSyntaxError(loc, "Duplicate setter for property %q", c.table.String(e.name))
			}
			if flags&hasData != 0 {
				raiseSyntaxError(loc, "Property %q mixes data and accessor declarations",
					c.table.String(e.name))
			}
			flags |= hasSet
		}

		seen[e.name] = flags
	}
}

// CheckForEvalAndArgumentsInStrictMode rejects eval and arguments as
// assignment targets and binding names in strict mode.
func (c *earlyChecker) CheckForEvalAndArgumentsInStrictMode(op bytecode.Operand, isStrict bool, loc Loc) {
	if !isStrict || !op.IsLiteral() {
		return
	}
	if c.table.Kind(op.Literal()) != lit.KindString {
		return
	}
	switch c.table.String(op.Literal()) {
	case "eval", "arguments":
		raiseSyntaxError(loc, "%q may not be modified in strict mode", c.table.String(op.Literal()))
	}
}
