package compiler

import (
	"testing"

	"github.com/shrikejs/shrike/lit"
	"github.com/shrikejs/shrike/mem"
)

func newTestLexer(t *testing.T, src string) (*Lexer, *lit.Table) {
	t.Helper()
	table := lit.NewTable(mem.NewPools(mem.NewHeap(0)))
	return NewLexer([]byte(src), table), table
}

func scanTypes(l *Lexer) []TokenType {
	var out []TokenType
	for {
		tok := l.NextToken(false)
		out = append(out, tok.Type)
		if tok.Type == TokEOF {
			return out
		}
	}
}

func TestLexerBasicStream(t *testing.T) {
	l, table := newTestLexer(t, `var x = 10 + 2.5; // comment
f("hi\n");`)

	want := []struct {
		tt   TokenType
		text string
	}{
		{TokKeyword, "var"},
		{TokName, "x"},
		{TokEq, ""},
		{TokSmallInt, ""},
		{TokPlus, ""},
		{TokNumber, ""},
		{TokSemicolon, ""},
		{TokNewline, ""},
		{TokName, "f"},
		{TokOpenParen, ""},
		{TokString, "hi\n"},
		{TokCloseParen, ""},
		{TokSemicolon, ""},
		{TokEOF, ""},
	}

	for i, w := range want {
		tok := l.NextToken(false)
		if tok.Type != w.tt {
			t.Fatalf("token %d: type = %v, want %v", i, tok.Type, w.tt)
		}
		if w.tt == TokName || w.tt == TokString {
			if got := table.String(lit.ID(tok.UID)); got != w.text {
				t.Errorf("token %d: text = %q, want %q", i, got, w.text)
			}
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	l, table := newTestLexer(t, `0 255 256 0x10 3.25 1e3`)

	tok := l.NextToken(false)
	if tok.Type != TokSmallInt || tok.UID != 0 {
		t.Errorf("0: %v uid %d", tok.Type, tok.UID)
	}
	tok = l.NextToken(false)
	if tok.Type != TokSmallInt || tok.UID != 255 {
		t.Errorf("255: %v uid %d", tok.Type, tok.UID)
	}
	tok = l.NextToken(false)
	if tok.Type != TokNumber || table.Number(lit.ID(tok.UID)) != 256 {
		t.Errorf("256 should be a number literal")
	}
	tok = l.NextToken(false)
	if tok.Type != TokSmallInt || tok.UID != 16 {
		t.Errorf("0x10: %v uid %d", tok.Type, tok.UID)
	}
	tok = l.NextToken(false)
	if tok.Type != TokNumber || table.Number(lit.ID(tok.UID)) != 3.25 {
		t.Errorf("3.25 mis-lexed")
	}
	tok = l.NextToken(false)
	if tok.Type != TokNumber || table.Number(lit.ID(tok.UID)) != 1000 {
		t.Errorf("1e3 mis-lexed")
	}
}

func TestLexerPunctuatorMaximalMunch(t *testing.T) {
	l, _ := newTestLexer(t, `>>>= >>> >> > === == = !== != !`)
	want := []TokenType{
		TokRShiftExEq, TokRShiftEx, TokRShift, TokGreater,
		TokTripleEq, TokDoubleEq, TokEq,
		TokNotDoubleEq, TokNotEq, TokNot, TokEOF,
	}
	got := scanTypes(l)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLexerSaveAndSeek(t *testing.T) {
	l, _ := newTestLexer(t, `a b c`)

	a := l.NextToken(false)
	b := l.NextToken(false)

	l.SaveToken(b)
	if got := l.NextToken(false); got != b {
		t.Errorf("pushback returned %+v, want %+v", got, b)
	}

	l.Seek(a.Loc)
	if got := l.NextToken(false); got.UID != a.UID || got.Type != TokName {
		t.Errorf("seek to %v returned %+v", a.Loc, got)
	}
}

func TestLexerStrictModeReservedWords(t *testing.T) {
	l, _ := newTestLexer(t, `let let`)

	if tok := l.NextToken(false); tok.Type != TokName {
		t.Errorf("non-strict 'let' lexed as %v", tok.Type)
	}
	l.SetStrictMode(true)
	if tok := l.NextToken(false); tok.Type != TokKeyword || Keyword(tok.UID) != KwLet {
		t.Errorf("strict 'let' lexed as %v", tok.Type)
	}
}

func TestLexerEscapeDetection(t *testing.T) {
	l, _ := newTestLexer(t, `"use strict" "use\x20strict"`)

	plain := l.NextToken(false)
	if l.HasEscapeSequences(plain) {
		t.Error("escape reported for a plain string")
	}
	escaped := l.NextToken(false)
	if !l.HasEscapeSequences(escaped) {
		t.Error("no escape reported for an escaped string")
	}
}

func TestLexerRegexp(t *testing.T) {
	l, table := newTestLexer(t, `/a[/]b\/c/gi`)

	tok := l.NextToken(true)
	if tok.Type != TokRegexp {
		t.Fatalf("regexp lexed as %v", tok.Type)
	}
	if got := table.String(lit.ID(tok.UID)); got != `/a[/]b\/c/gi` {
		t.Errorf("regexp source = %q", got)
	}
}

func TestLexerLineInfo(t *testing.T) {
	l, _ := newTestLexer(t, "a\n  b")

	a := l.NextToken(false)
	if a.Loc.Line != 1 || a.Loc.Col != 1 {
		t.Errorf("a at %d:%d", a.Loc.Line, a.Loc.Col)
	}
	nl := l.NextToken(false)
	if nl.Type != TokNewline {
		t.Fatalf("expected newline, got %v", nl.Type)
	}
	b := l.NextToken(false)
	if b.Loc.Line != 2 || b.Loc.Col != 3 {
		t.Errorf("b at %d:%d, want 2:3", b.Loc.Line, b.Loc.Col)
	}
}
