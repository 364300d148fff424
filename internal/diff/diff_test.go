package diff

import (
	"reflect"
	"strings"
	"testing"
)

func TestCompute_Identical(t *testing.T) {
	p := Compute("a\nb\n", "a\nb\n")
	if !p.Identical {
		t.Fatal("expected identical")
	}
	if p.Unified != "" {
		t.Errorf("unified should be empty, got %q", p.Unified)
	}
	if p.Summary() != "no changes" {
		t.Errorf("Summary() = %q", p.Summary())
	}
	for _, r := range p.Rows {
		if r.Kind != RowEqual {
			t.Errorf("row %+v should be equal", r)
		}
	}
}

func TestCompute_ChangedLine(t *testing.T) {
	cur := "\\documentclass{article}\n\\begin{document}\nHello\n\\end{document}\n"
	prop := "\\documentclass{article}\n\\begin{document}\n\\textbf{Hello}\n\\end{document}\n"
	p := Compute(cur, prop)
	if p.Identical {
		t.Fatal("expected difference")
	}
	if p.Stats.Additions != 1 || p.Stats.Deletions != 1 {
		t.Errorf("stats = %+v", p.Stats)
	}
	var changed []Row
	for _, r := range p.Rows {
		if r.Kind == RowChanged {
			changed = append(changed, r)
		}
	}
	if len(changed) != 1 || changed[0].Left != "Hello" || changed[0].Right != "\\textbf{Hello}" || changed[0].LeftLine != 3 {
		t.Errorf("changed rows = %+v", changed)
	}
	if !strings.Contains(p.Unified, "--- current/main.tex") || !strings.Contains(p.Unified, "+\\textbf{Hello}") {
		t.Errorf("unified diff:\n%s", p.Unified)
	}
}

func TestCompute_InsertAndDelete(t *testing.T) {
	p := Compute("a\nb\nc\n", "a\nc\nd\ne\n")
	if p.Stats.Deletions != 1 || p.Stats.Additions != 2 {
		t.Errorf("stats = %+v", p.Stats)
	}
	if p.Summary() != "+2 -1" {
		t.Errorf("Summary() = %q", p.Summary())
	}
	kinds := map[RowKind]int{}
	for _, r := range p.Rows {
		kinds[r.Kind]++
	}
	if kinds[RowRemoved] != 1 || kinds[RowAdded] != 2 || kinds[RowEqual] != 2 {
		t.Errorf("row kinds = %v", kinds)
	}
}

func TestCompute_FromEmptyBuffer(t *testing.T) {
	p := Compute("", "\\documentclass{article}\n\\begin{document}\n\\end{document}")
	if p.Identical {
		t.Fatal("expected difference")
	}
	want := []Row{
		{Kind: RowAdded, Right: "\\documentclass{article}", RightLine: 1},
		{Kind: RowAdded, Right: "\\begin{document}", RightLine: 2},
		{Kind: RowAdded, Right: "\\end{document}", RightLine: 3},
	}
	if !reflect.DeepEqual(p.Rows, want) {
		t.Errorf("rows = %+v, want %+v", p.Rows, want)
	}
	if p.Stats != (Stats{Additions: 3}) {
		t.Errorf("stats = %+v", p.Stats)
	}
}

func TestCompute_TrailingNewlineAddsNoRow(t *testing.T) {
	p := Compute("a\n", "a\nb\n")
	want := []Row{
		{Kind: RowEqual, Left: "a", Right: "a", LeftLine: 1, RightLine: 1},
		{Kind: RowAdded, Right: "b", RightLine: 2},
	}
	if !reflect.DeepEqual(p.Rows, want) {
		t.Errorf("rows = %+v, want %+v", p.Rows, want)
	}
	if p.Stats != (Stats{Additions: 1}) {
		t.Errorf("stats = %+v", p.Stats)
	}
	if !strings.Contains(p.Unified, "+b") {
		t.Errorf("unified missing addition:\n%s", p.Unified)
	}
}

func TestRowKind_Prefix(t *testing.T) {
	tests := map[RowKind]string{RowEqual: " ", RowAdded: "+", RowRemoved: "-", RowChanged: "~"}
	for k, want := range tests {
		if got := k.Prefix(); got != want {
			t.Errorf("%s.Prefix() = %q, want %q", k, got, want)
		}
	}
}

func TestSideBySide(t *testing.T) {
	out := Compute("left\n", "right\n").SideBySide(10)
	if !strings.Contains(out, "~ left       | right") {
		t.Errorf("SideBySide() = %q", out)
	}
}
