// Package diff builds the read-only comparison between the current buffer and a
// proposed replacement document. "Diff" here means whole-document comparison;
// proposals are never applied as patches.
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// RowKind classifies one side-by-side row.
type RowKind string

const (
	RowEqual   RowKind = "equal"
	RowChanged RowKind = "changed"
	RowRemoved RowKind = "removed"
	RowAdded   RowKind = "added"
)

// Prefix returns the unified-diff marker for the row kind.
func (k RowKind) Prefix() string {
	switch k {
	case RowRemoved:
		return "-"
	case RowAdded:
		return "+"
	case RowChanged:
		return "~"
	default:
		return " "
	}
}

// Row pairs a line of the current buffer with a line of the proposal.
// Line numbers are 1-based; 0 means the side is empty for this row.
type Row struct {
	Kind      RowKind `json:"kind"`
	Left      string  `json:"left"`
	Right     string  `json:"right"`
	LeftLine  int     `json:"left_line"`
	RightLine int     `json:"right_line"`
}

// Stats counts changed lines.
type Stats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// Preview is the comparison of two documents.
type Preview struct {
	Identical bool   `json:"identical"`
	Rows      []Row  `json:"rows"`
	Unified   string `json:"unified"`
	Stats     Stats  `json:"stats"`
}

const (
	currentName  = "current/main.tex"
	proposedName = "proposed/main.tex"
	contextLines = 3
)

// Compute compares current against proposed.
func Compute(current, proposed string) *Preview {
	p := &Preview{Identical: current == proposed}
	a := splitRows(current)
	b := splitRows(proposed)

	m := difflib.NewMatcher(a, b)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for i, j := op.I1, op.J1; i < op.I2; i, j = i+1, j+1 {
				p.Rows = append(p.Rows, Row{Kind: RowEqual, Left: trimEOL(a[i]), Right: trimEOL(b[j]), LeftLine: i + 1, RightLine: j + 1})
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				p.Rows = append(p.Rows, Row{Kind: RowRemoved, Left: trimEOL(a[i]), LeftLine: i + 1})
			}
			p.Stats.Deletions += op.I2 - op.I1
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				p.Rows = append(p.Rows, Row{Kind: RowAdded, Right: trimEOL(b[j]), RightLine: j + 1})
			}
			p.Stats.Additions += op.J2 - op.J1
		case 'r':
			p.Rows = append(p.Rows, pairReplace(a, b, op)...)
			p.Stats.Deletions += op.I2 - op.I1
			p.Stats.Additions += op.J2 - op.J1
		}
	}

	if !p.Identical {
		unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(current),
			B:        difflib.SplitLines(proposed),
			FromFile: currentName,
			ToFile:   proposedName,
			Context:  contextLines,
		})
		if err == nil {
			p.Unified = unified
		}
	}
	return p
}

// pairReplace lines up a replaced block row by row; the longer side spills
// into removed or added rows.
func pairReplace(a, b []string, op difflib.OpCode) []Row {
	var rows []Row
	i, j := op.I1, op.J1
	for i < op.I2 && j < op.J2 {
		rows = append(rows, Row{Kind: RowChanged, Left: trimEOL(a[i]), Right: trimEOL(b[j]), LeftLine: i + 1, RightLine: j + 1})
		i++
		j++
	}
	for ; i < op.I2; i++ {
		rows = append(rows, Row{Kind: RowRemoved, Left: trimEOL(a[i]), LeftLine: i + 1})
	}
	for ; j < op.J2; j++ {
		rows = append(rows, Row{Kind: RowAdded, Right: trimEOL(b[j]), RightLine: j + 1})
	}
	return rows
}

// splitRows returns the document's lines without terminators. A trailing
// newline does not start another line.
func splitRows(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = trimEOL(l)
	}
	return lines
}

func trimEOL(s string) string {
	return strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r")
}

// Summary returns a one-line description such as "+3 -1".
func (p *Preview) Summary() string {
	if p.Identical {
		return "no changes"
	}
	return fmt.Sprintf("+%d -%d", p.Stats.Additions, p.Stats.Deletions)
}

// SideBySide renders rows as two fixed-width columns for terminal output.
func (p *Preview) SideBySide(width int) string {
	if width < 8 {
		width = 8
	}
	var sb strings.Builder
	for _, r := range p.Rows {
		fmt.Fprintf(&sb, "%s %-*s | %s\n", r.Kind.Prefix(), width, clip(r.Left, width), clip(r.Right, width))
	}
	return sb.String()
}

func clip(s string, width int) string {
	rs := []rune(s)
	if len(rs) <= width {
		return s
	}
	return string(rs[:width-1]) + "…"
}
