package compiler

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/lit"
	"github.com/shrikejs/shrike/mem"
)

func compileScript(t *testing.T, src string) (Result, *lit.Table) {
	t.Helper()
	table := lit.NewTable(mem.NewPools(mem.NewHeap(0)))
	res := New(table).ParseScript([]byte(src))
	return res, table
}

func mustCompile(t *testing.T, src string) (*bytecode.Image, *lit.Table) {
	t.Helper()
	res, table := compileScript(t, src)
	if res.Status != StatusOK {
		t.Fatalf("compile of %q failed: %v", src, res.Err)
	}
	if err := res.Image.Validate(); err != nil {
		t.Fatalf("compile of %q produced invalid image: %v", src, err)
	}
	return res.Image, table
}

func mustFail(t *testing.T, src string, want Status) *EarlyError {
	t.Helper()
	res, _ := compileScript(t, src)
	if res.Status != want {
		t.Fatalf("compile of %q: status = %v, want %v (err: %v)", src, res.Status, want, res.Err)
	}
	if res.Image != nil {
		t.Fatalf("compile of %q returned partial bytecode alongside an error", src)
	}
	return res.Err
}

func opcodePositions(img *bytecode.Image, op bytecode.Opcode) []int {
	var out []int
	for i, in := range img.Instrs {
		if in.Op == op {
			out = append(out, i)
		}
	}
	return out
}

func metaPositions(img *bytecode.Image, mt bytecode.MetaType) []int {
	var out []int
	for i, in := range img.Instrs {
		if in.Op == bytecode.OpMeta && bytecode.MetaType(in.Args[0]) == mt {
			out = append(out, i)
		}
	}
	return out
}

// litReferenced reports whether the finalized image references the
// given name anywhere.
func litReferenced(img *bytecode.Image, table *lit.Table, name string) bool {
	for _, e := range img.LitMap {
		if table.Kind(e.Lit) == lit.KindString && table.String(e.Lit) == name {
			return true
		}
	}
	return false
}

// checkJumpTargets decodes every jump displacement and verifies it
// lands inside the image.
func checkJumpTargets(t *testing.T, img *bytecode.Image) {
	t.Helper()
	for pos, in := range img.Instrs {
		var d bytecode.Counter
		down := true
		switch in.Op {
		case bytecode.OpJmpDown, bytecode.OpJmpBreakContinue, bytecode.OpTryBlock:
			d = bytecode.JoinCounter(in.Args[0], in.Args[1])
		case bytecode.OpIsTrueJmpDown, bytecode.OpIsFalseJmpDown,
			bytecode.OpWith, bytecode.OpForIn:
			d = bytecode.JoinCounter(in.Args[1], in.Args[2])
		case bytecode.OpJmpUp:
			d = bytecode.JoinCounter(in.Args[0], in.Args[1])
			down = false
		case bytecode.OpIsTrueJmpUp, bytecode.OpIsFalseJmpUp:
			d = bytecode.JoinCounter(in.Args[1], in.Args[2])
			down = false
		default:
			continue
		}

		if down {
			if pos+int(d) > len(img.Instrs) {
				t.Errorf("instr %d (%s): target %d past image end %d", pos, in.Op, pos+int(d), len(img.Instrs))
			}
		} else {
			if pos-int(d) < 0 {
				t.Errorf("instr %d (%s): upward target underflows", pos, in.Op)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// End-to-end scenarios
// ---------------------------------------------------------------------------

func TestStrictModeWithRejection(t *testing.T) {
	err := mustFail(t, `"use strict"; with (x) { }`, StatusSyntaxError)
	if !strings.Contains(err.Msg, "with") {
		t.Errorf("error %q does not mention 'with'", err.Msg)
	}
}

func TestForInOverPropertyReference(t *testing.T) {
	img, _ := mustCompile(t, `for (o.k in a) b(o.k);`)

	forIns := opcodePositions(img, bytecode.OpForIn)
	if len(forIns) != 1 {
		t.Fatalf("emitted %d for_in instructions, want 1", len(forIns))
	}
	pos := forIns[0]

	ends := metaPositions(img, bytecode.MetaEndForIn)
	if len(ends) != 1 {
		t.Fatalf("emitted %d end_for_in metas, want 1", len(ends))
	}

	d := bytecode.JoinCounter(img.Instrs[pos].Args[1], img.Instrs[pos].Args[2])
	if pos+int(d) != ends[0] {
		t.Errorf("for_in offset lands at %d, end_for_in is at %d", pos+int(d), ends[0])
	}

	// The iterator assignment stores the special register through a
	// prop setter before the body runs.
	setters := opcodePositions(img, bytecode.OpPropSetter)
	if len(setters) == 0 {
		t.Fatal("no prop_setter for the iterator")
	}
	first := setters[0]
	if first < pos || img.Instrs[first].Args[2] != bytecode.RegSpecialForInPropName {
		t.Errorf("iterator prop_setter at %d does not store the for-in register", first)
	}
}

func TestCompoundAssignmentToProperty(t *testing.T) {
	img, _ := mustCompile(t, `a.b += 1`)

	getters := opcodePositions(img, bytecode.OpPropGetter)
	adds := opcodePositions(img, bytecode.OpAddition)
	setters := opcodePositions(img, bytecode.OpPropSetter)

	if len(getters) != 1 || len(adds) != 1 || len(setters) != 1 {
		t.Fatalf("got %d getters, %d additions, %d setters; want 1 each",
			len(getters), len(adds), len(setters))
	}
	if !(getters[0] < adds[0] && adds[0] < setters[0]) {
		t.Fatalf("sequence is getter=%d addition=%d setter=%d; want getter < addition < setter",
			getters[0], adds[0], setters[0])
	}

	add := img.Instrs[adds[0]]
	if add.Args[0] != add.Args[1] {
		t.Errorf("addition is not in-place on the getter temp: %v", add.Args)
	}
	if get := img.Instrs[getters[0]]; get.Args[0] != add.Args[0] {
		t.Errorf("addition temp %d is not the getter result %d", add.Args[0], get.Args[0])
	}
}

func TestRegisterOptimizationApplies(t *testing.T) {
	img, table := mustCompile(t, `function f(x){ var y = x + 1; return y; }`)

	if litReferenced(img, table, "x") {
		t.Error("parameter x still referenced as a literal after optimization")
	}
	if litReferenced(img, table, "y") {
		t.Error("local y still referenced as a literal after optimization")
	}

	regDecls := opcodePositions(img, bytecode.OpRegVarDecl)
	if len(regDecls) != 2 {
		t.Fatalf("got %d reg_var_decl instructions, want 2 (global + function)", len(regDecls))
	}
	fn := img.Instrs[regDecls[1]]
	if fn.Args[1] != 1 {
		t.Errorf("local-var-regs = %d, want 1", fn.Args[1])
	}
	if fn.Args[2] != 1 {
		t.Errorf("arg-regs = %d, want 1", fn.Args[2])
	}

	if len(img.Scopes) != 2 {
		t.Fatalf("got %d scope headers, want 2", len(img.Scopes))
	}
	if !img.Scopes[1].ArgsOnRegisters || !img.Scopes[1].NoLexEnv {
		t.Errorf("function scope flags = %+v, want arguments-on-registers and no-lex-env", img.Scopes[1])
	}

	// The parameter varg metas were removed.
	for _, pos := range metaPositions(img, bytecode.MetaVarg) {
		t.Errorf("varg meta survived optimization at %d", pos)
	}
}

func TestRegisterOptimizationSuppressedByArguments(t *testing.T) {
	img, table := mustCompile(t, `function f(x){ return arguments.length; }`)

	if !litReferenced(img, table, "x") {
		t.Error("parameter x disappeared although the optimization must be suppressed")
	}
	if len(img.Scopes) != 2 {
		t.Fatalf("got %d scope headers, want 2", len(img.Scopes))
	}
	if img.Scopes[1].ArgsOnRegisters {
		t.Error("ARGUMENTS_ON_REGISTERS set although the function uses arguments")
	}
}

func TestOptimizationSuppressedByEvalWithTryDeleteNested(t *testing.T) {
	for _, src := range []string{
		`function f(x){ eval("x"); return x; }`,
		`function f(x){ with (x) { } return x; }`,
		`function f(x){ try { } finally { } return x; }`,
		`function f(x){ delete q; return x; }`,
		`function f(x){ function g(){} return x; }`,
	} {
		img, table := mustCompile(t, src)
		if !litReferenced(img, table, "x") {
			t.Errorf("%q: x was optimized although the scope is not eligible", src)
		}
	}
}

// ---------------------------------------------------------------------------
// Boundary behaviors
// ---------------------------------------------------------------------------

func paramList(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "p%d", i)
	}
	return b.String()
}

func TestFormalParameterCountBoundary(t *testing.T) {
	ok := fmt.Sprintf("function f(%s){}", paramList(255))
	mustCompile(t, ok)

	bad := fmt.Sprintf("function f(%s){}", paramList(256))
	mustFail(t, bad, StatusSyntaxError)
}

func TestArrayLiteralElementCountBoundary(t *testing.T) {
	// The count is encoded in two 8-bit slots; a count above 255 (here
	// 300) must round-trip through the split encoding.
	elems := strings.TrimSuffix(strings.Repeat("0,", 300), ",")
	img, _ := mustCompile(t, "var a = ["+elems+"];")

	decls := opcodePositions(img, bytecode.OpArrayDecl)
	if len(decls) != 1 {
		t.Fatalf("got %d array_decl instructions, want 1", len(decls))
	}
	in := img.Instrs[decls[0]]
	if got := bytecode.JoinCounter(in.Args[1], in.Args[2]); got != 300 {
		t.Errorf("array_decl element count = %d, want 300", got)
	}
}

func TestUseStrictWithEscapeIsNotADirective(t *testing.T) {
	// The escape sequence suppresses directive recognition, so the
	// with statement is legal.
	mustCompile(t, `"use\x20strict"; with (x) { }`)
}

// ---------------------------------------------------------------------------
// Early errors
// ---------------------------------------------------------------------------

func TestEarlyErrors(t *testing.T) {
	tests := []struct {
		src  string
		want Status
	}{
		{`return 1;`, StatusSyntaxError},
		{`break;`, StatusSyntaxError},
		{`continue;`, StatusSyntaxError},
		{`x: x: 1;`, StatusSyntaxError},
		{`break missing;`, StatusSyntaxError},
		{`"use strict"; var eval = 1;`, StatusSyntaxError},
		{`"use strict"; arguments = 1;`, StatusSyntaxError},
		{`"use strict"; function f(a, a) {}`, StatusSyntaxError},
		{`"use strict"; var o = { p: 1, p: 2 };`, StatusSyntaxError},
		{`"use strict"; delete x;`, StatusSyntaxError},
		{`var o = { get p() {}, get p() {} };`, StatusSyntaxError},
		{`var o = { p: 1, get p() {} };`, StatusSyntaxError},
		{`switch (x) { case 1: default: ; default: ; }`, StatusSyntaxError},
		{`try { }`, StatusSyntaxError},
		{`a = 1 b = 2`, StatusSyntaxError},
		{`1 = 2;`, StatusReferenceError},
		{`++1;`, StatusReferenceError},
		{`f() = 3;`, StatusReferenceError},
	}
	for _, tc := range tests {
		err := mustFail(t, tc.src, tc.want)
		if err.Loc.Line == 0 {
			t.Errorf("%q: error carries no source location", tc.src)
		}
	}
}

func TestNonStrictCounterparts(t *testing.T) {
	for _, src := range []string{
		`var eval = 1;`,
		`function f(a, a) { return a; }`,
		`var o = { p: 1, p: 2 };`,
		`delete x;`,
		`with (x) { y = 1; }`,
		"a = 1\nb = 2",
	} {
		mustCompile(t, src)
	}
}

func TestStrictModeReservedWords(t *testing.T) {
	mustCompile(t, `var let = 1;`)
	mustFail(t, `"use strict"; var let = 1;`, StatusSyntaxError)
}

// ---------------------------------------------------------------------------
// Statements and control flow
// ---------------------------------------------------------------------------

func TestControlFlowCompiles(t *testing.T) {
	sources := []string{
		`if (a) b(); else c();`,
		`while (a) { b(); }`,
		`do { a(); } while (b);`,
		`for (var i = 0; i < 10; i++) { f(i); }`,
		`for (;;) { break; }`,
		`for (var k in o) { f(k); }`,
		`outer: for (var i = 0; i < 3; i++) { for (;;) { continue outer; } }`,
		`switch (x) { case 1: a(); break; case 2: b(); default: c(); }`,
		`try { a(); } catch (e) { b(e); } finally { c(); }`,
		`try { a(); } catch (e) { }`,
		`try { a(); } finally { }`,
		`with (o) { a = b; }`,
		`var s = a && b && c;`,
		`var s = a || b || c;`,
		`var s = a ? b : c;`,
		`var x = typeof a;`,
		`var x = void f();`,
		`var x = -a + +b;`,
		`var x = a.b.c[d](e, f);`,
		`var x = new F(1, 2);`,
		`var x = new F;`,
		`var x = [1, , 2];`,
		`var o = { a: 1, "b": 2, 3: c, get p() { return 1; }, set p(v) { } };`,
		`var f = function named() { return named; };`,
		`var r = /ab+c/gi;`,
		`a.b++; ++a.b; a.b--;`,
		`x = y = z = 1;`,
		`f(a, b)(c)[d].e(g);`,
		`throw new E("boom");`,
		`lbl: { break lbl; }`,
		`while (a) { try { break; } finally { f(); } }`,
	}
	for _, src := range sources {
		img, _ := mustCompile(t, src)
		checkJumpTargets(t, img)
	}
}

func TestBreakAcrossTryUsesNestedJump(t *testing.T) {
	img, _ := mustCompile(t, `while (a) { try { break; } finally { f(); } }`)
	if len(opcodePositions(img, bytecode.OpJmpBreakContinue)) == 0 {
		t.Error("break across a try block did not use the unwind-aware jump")
	}
}

func TestIfElseJumpTargets(t *testing.T) {
	img, _ := mustCompile(t, `if (a) b(); else c();`)

	falseJumps := opcodePositions(img, bytecode.OpIsFalseJmpDown)
	if len(falseJumps) != 1 {
		t.Fatalf("got %d is_false_jmp_down, want 1", len(falseJumps))
	}
	pos := falseJumps[0]
	in := img.Instrs[pos]
	target := pos + int(bytecode.JoinCounter(in.Args[1], in.Args[2]))

	// The else arm begins right after the then arm's jump to the
	// merge point.
	endJumps := opcodePositions(img, bytecode.OpJmpDown)
	if len(endJumps) != 1 {
		t.Fatalf("got %d jmp_down, want 1", len(endJumps))
	}
	if target != endJumps[0]+1 {
		t.Errorf("false branch lands at %d, else arm starts at %d", target, endJumps[0]+1)
	}
}

func TestFunctionEndOffsets(t *testing.T) {
	img, _ := mustCompile(t, `function f(){ g(); } function h(){ f(); } f();`)

	for _, pos := range metaPositions(img, bytecode.MetaFunctionEnd) {
		in := img.Instrs[pos]
		target := pos + int(bytecode.JoinCounter(in.Args[1], in.Args[2]))
		if target > len(img.Instrs) {
			t.Errorf("function_end at %d points past the image (%d > %d)", pos, target, len(img.Instrs))
		}
		if target <= pos {
			t.Errorf("function_end at %d points backwards (%d)", pos, target)
		}
	}
}

// Scope regions are merged header-first: a nested function's region
// sits between the global header and the global body.
func TestFunctionHoistingLayout(t *testing.T) {
	img, _ := mustCompile(t, `a(); function f(){ b(); }`)

	decls := opcodePositions(img, bytecode.OpFuncDeclN)
	calls := opcodePositions(img, bytecode.OpCallN)
	if len(decls) != 1 || len(calls) != 2 {
		t.Fatalf("got %d func_decl_n and %d call_n", len(decls), len(calls))
	}

	// b() belongs to the function region, a() to the global body
	// after it.
	if !(decls[0] < calls[0] && calls[0] < calls[1]) {
		t.Errorf("layout not hoisted: func_decl at %d, calls at %v", decls[0], calls)
	}
}

// ---------------------------------------------------------------------------
// Eval compilation
// ---------------------------------------------------------------------------

func TestParseEval(t *testing.T) {
	table := lit.NewTable(mem.NewPools(mem.NewHeap(0)))
	res := New(table).ParseEval([]byte(`x + 1;`), false)
	if res.Status != StatusOK {
		t.Fatalf("eval compile failed: %v", res.Err)
	}

	last := res.Image.Instrs[len(res.Image.Instrs)-1]
	if last.Op != bytecode.OpRetVal {
		t.Errorf("eval code ends with %s, want retval", last.Op)
	}
	if last.Args[0] != bytecode.RegSpecialEvalRet {
		t.Errorf("retval operand = %d, want the eval-result register", last.Args[0])
	}
	if res.ContainsFunctions {
		t.Error("ContainsFunctions set for function-free eval code")
	}

	res = New(lit.NewTable(mem.NewPools(mem.NewHeap(0)))).ParseEval([]byte(`var f = function(){};`), false)
	if res.Status != StatusOK {
		t.Fatalf("eval compile failed: %v", res.Err)
	}
	if !res.ContainsFunctions {
		t.Error("ContainsFunctions not reported")
	}
}

func TestEvalInheritsStrictMode(t *testing.T) {
	table := lit.NewTable(mem.NewPools(mem.NewHeap(0)))
	res := New(table).ParseEval([]byte(`with (x) { }`), true)
	if res.Status != StatusSyntaxError {
		t.Fatalf("strict eval accepted 'with': %v", res.Status)
	}
}

func TestEvalSuppressesOptimization(t *testing.T) {
	table := lit.NewTable(mem.NewPools(mem.NewHeap(0)))
	res := New(table).ParseEval([]byte(`function f(x){ var y = x; return y; }`), false)
	if res.Status != StatusOK {
		t.Fatalf("eval compile failed: %v", res.Err)
	}
	// Function scopes inside eval still optimize; only the eval
	// scope itself is exempt. The eval scope keeps its variables
	// lexical.
	if len(res.Image.Scopes) != 2 {
		t.Fatalf("got %d scope headers", len(res.Image.Scopes))
	}
	if res.Image.Scopes[0].ArgsOnRegisters || res.Image.Scopes[0].NoLexEnv {
		t.Error("eval scope claims register arguments")
	}
}

// ---------------------------------------------------------------------------
// Determinism
// ---------------------------------------------------------------------------

func TestCompilationIsDeterministic(t *testing.T) {
	src := `
function fib(n) {
  if (n < 2) return n;
  return fib(n - 1) + fib(n - 2);
}
var memo = { 0: 0, 1: 1 };
for (var i = 0; i < 10; i++) { memo[i] = fib(i); }
`
	a, _ := mustCompile(t, src)
	b, _ := mustCompile(t, src)

	if !bytes.Equal(a.EncodeInstrs(), b.EncodeInstrs()) {
		t.Error("two compilations of the same source differ")
	}
	if len(a.LitMap) != len(b.LitMap) {
		t.Errorf("literal maps differ: %d vs %d entries", len(a.LitMap), len(b.LitMap))
	}
}

// Every operand slot of a finalized image carrying the literal marker
// has a map entry, and nothing else does; the rewrite sentinel never
// survives. Validate enforces it; this exercises it broadly.
func TestFinalizedImageInvariants(t *testing.T) {
	img, _ := mustCompile(t, `
"use strict";
var total = 0;
function add(a, b) { return a + b; }
for (var i = 0; i < 100; i++) { total = add(total, i); }
switch (total) { case 0: f(); break; default: g(); }
`)
	if err := img.Validate(); err != nil {
		t.Fatal(err)
	}
	checkJumpTargets(t, img)
}
