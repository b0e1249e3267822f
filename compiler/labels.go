package compiler

import (
	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
)

// LabelType flags classify the jump targets a label catches.
type LabelType uint8

const (
	LabelNamed LabelType = 1 << iota
	LabelUnnamedBreaks
	LabelUnnamedContinues

	// labelBorder marks a jumpable border raised around try, with
	// and for-in blocks: break/continue crossing one cannot use a
	// plain jump and is routed through the VM's unwind machinery.
	labelBorder
)

// endOfChain terminates a label's linked forward-jump chain; the
// chain is threaded through the displacement slots of the jumps
// themselves.
const endOfChain = bytecode.Counter(0xFFFF)

// Label is one entry of the parser's label stack. Forward jumps to it
// accumulate as linked chains until the target is known.
type Label struct {
	types LabelType
	name  lit.ID

	continueTarget    bytecode.Counter
	continueTargetSet bool

	breaksHead     bytecode.Counter
	breaksCount    int
	continuesHead  bytecode.Counter
	continuesCount int

	next *Label
}

// LabelSet is the label stack of one compilation, with a mask hook
// for function boundaries.
type LabelSet struct {
	head   *Label
	dumper *Dumper
}

// NewLabelSet creates an empty label stack.
func NewLabelSet(d *Dumper) *LabelSet {
	return &LabelSet{dumper: d}
}

// Push enters a label covering the immediately following statement.
func (ls *LabelSet) Push(types LabelType, name lit.ID) *Label {
	l := &Label{
		types:         types,
		name:          name,
		breaksHead:    endOfChain,
		continuesHead: endOfChain,
		next:          ls.head,
	}
	ls.head = l
	return l
}

// MaskSet hides the current labels for the duration of a nested
// function body; labels do not cross function boundaries.
func (ls *LabelSet) MaskSet() *Label {
	masked := ls.head
	ls.head = nil
	return masked
}

// RestoreSet reinstates a masked label set.
func (ls *LabelSet) RestoreSet(masked *Label) {
	if ls.head != nil {
		panic("compiler: restoring label set over live labels")
	}
	ls.head = masked
}

// RaiseNestedJumpableBorder raises a border on the stack top.
func (ls *LabelSet) RaiseNestedJumpableBorder() bool {
	ls.Push(labelBorder, lit.None)
	return true
}

// RemoveNestedJumpableBorder removes the border raised last.
func (ls *LabelSet) RemoveNestedJumpableBorder() {
	if ls.head == nil || ls.head.types != labelBorder {
		panic("compiler: no jumpable border to remove")
	}
	ls.head = ls.head.next
}

// Find walks the stack for a label matching the type (and name, for
// named lookups). isSimplyJumpable, when non-nil, is cleared if the
// walk crosses a jumpable border.
func (ls *LabelSet) Find(typ LabelType, name lit.ID, isSimplyJumpable *bool) *Label {
	if isSimplyJumpable != nil {
		*isSimplyJumpable = true
	}
	for l := ls.head; l != nil; l = l.next {
		if l.types == labelBorder {
			if isSimplyJumpable != nil {
				*isSimplyJumpable = false
			}
			continue
		}
		if l.types&typ == 0 {
			continue
		}
		if typ == LabelNamed && l.name != name {
			continue
		}
		return l
	}
	return nil
}

// AddJump emits a break or continue jump targeting the label. When
// the target is not yet known the jump joins the label's chain;
// continues whose target is already set jump directly.
func (ls *LabelSet) AddJump(l *Label, isSimplyJumpable, isBreak bool) {
	d := ls.dumper

	if isBreak {
		l.breaksHead = d.DumpSimpleOrNestedJumpForRewrite(isSimplyJumpable, l.breaksHead)
		l.breaksCount++
		return
	}

	if l.continueTargetSet {
		pos := d.DumpSimpleOrNestedJumpForRewrite(isSimplyJumpable, endOfChain)
		d.RewriteSimpleOrNestedJumpAndGetNext(pos, l.continueTarget)
		return
	}
	l.continuesHead = d.DumpSimpleOrNestedJumpForRewrite(isSimplyJumpable, l.continuesHead)
	l.continuesCount++
}

// SetupContinueTarget resolves the continue chains of every label
// from the stack top down to (and including) the outermost label of
// the current iteration statement.
func (ls *LabelSet) SetupContinueTarget(outermost *Label, target bytecode.Counter) {
	for l := ls.head; l != nil; l = l.next {
		if l.types == labelBorder {
			continue
		}

		l.continueTarget = target
		l.continueTargetSet = true

		for n := l.continuesCount; n > 0; n-- {
			l.continuesHead = ls.dumper.RewriteSimpleOrNestedJumpAndGetNext(l.continuesHead, target)
		}
		l.continuesCount = 0
		l.continuesHead = endOfChain

		if l == outermost {
			break
		}
	}
}

// RewriteJumpsAndPop resolves the label's pending break jumps to the
// given target and pops the label.
func (ls *LabelSet) RewriteJumpsAndPop(l *Label, target bytecode.Counter) {
	if ls.head != l {
		panic("compiler: popping a label that is not the stack top")
	}

	for n := l.breaksCount; n > 0; n-- {
		l.breaksHead = ls.dumper.RewriteSimpleOrNestedJumpAndGetNext(l.breaksHead, target)
	}
	l.breaksCount = 0

	if l.continuesCount != 0 {
		panic("compiler: label popped with unresolved continue jumps")
	}

	ls.head = l.next
}

// RemoveAll clears the stack (error recovery).
func (ls *LabelSet) RemoveAll() {
	ls.head = nil
}
