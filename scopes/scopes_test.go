package scopes

import (
	"testing"

	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
)

func TestTreeLinks(t *testing.T) {
	a := NewArena()
	root := a.New(nil, Global)
	f1 := a.New(root, Function)
	f2 := a.New(root, Function)
	g := a.New(f1, Function)

	if root.Parent() != nil {
		t.Error("root has a parent")
	}
	if f1.Parent() != root || g.Parent() != f1 {
		t.Error("parent links broken")
	}
	kids := root.Children()
	if len(kids) != 2 || kids[0] != f1 || kids[1] != f2 {
		t.Errorf("children order broken: %v", kids)
	}
}

func TestVariableAccounting(t *testing.T) {
	a := NewArena()
	sc := a.New(nil, Function)

	sc.AddVariable(lit.ID(1), true)
	sc.AddVariable(lit.ID(2), true)
	sc.AddVariable(lit.ID(3), false)

	if sc.ParamCount != 2 || sc.LocalCount != 1 {
		t.Errorf("counts = %d params, %d locals", sc.ParamCount, sc.LocalCount)
	}
	if !sc.VariableExists(lit.ID(2)) || sc.VariableExists(lit.ID(9)) {
		t.Error("VariableExists broken")
	}

	sc.RemoveVariableAt(2)
	if sc.LocalCount != 0 || sc.ParamCount != 2 {
		t.Errorf("after removal: %d params, %d locals", sc.ParamCount, sc.LocalCount)
	}
}

func TestMergedInstrCount(t *testing.T) {
	a := NewArena()
	root := a.New(nil, Global)
	child := a.New(root, Function)

	root.AddOpMeta(bytecode.New(bytecode.OpRet))
	root.AddVariable(lit.ID(1), false)
	child.AddOpMeta(bytecode.New(bytecode.OpRet))
	child.AddOpMeta(bytecode.New(bytecode.OpRet))
	child.AddVariable(lit.ID(2), false)

	// child: 2 instrs + 1 local var_decl = 3; root adds 1 + 1.
	if got := child.MergedInstrCount(); got != 3 {
		t.Errorf("child merged count = %d, want 3", got)
	}
	if got := root.MergedInstrCount(); got != 5 {
		t.Errorf("root merged count = %d, want 5", got)
	}
	if got := root.SubscopeInstrCount(); got != 3 {
		t.Errorf("root subscope count = %d, want 3", got)
	}
}

func TestOpMetaBuffer(t *testing.T) {
	a := NewArena()
	sc := a.New(nil, Global)

	sc.AddOpMeta(bytecode.New(bytecode.OpRet))
	sc.AddOpMeta(bytecode.New(bytecode.OpRetVal, bytecode.Reg(0)))
	sc.AddOpMeta(bytecode.New(bytecode.OpRet))

	sc.RemoveOpMeta(1)
	if sc.InstrsCount() != 2 {
		t.Fatalf("count after removal = %d", sc.InstrsCount())
	}
	if sc.OpMetaAt(1).Op != bytecode.OpRet {
		t.Error("removal did not shift the tail")
	}

	sc.Truncate(1)
	if sc.InstrsCount() != 1 {
		t.Errorf("count after truncate = %d", sc.InstrsCount())
	}
}
