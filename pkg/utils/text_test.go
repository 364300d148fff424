package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("αβγδ", 2); got != "αβ..." {
		t.Errorf("multibyte: got %s", got)
	}
}

func TestFirstLine(t *testing.T) {
	if got := FirstLine("\\section{Intro}\nbody"); got != "\\section{Intro}" {
		t.Errorf("got %q", got)
	}
	if got := FirstLine("single"); got != "single" {
		t.Errorf("got %q", got)
	}
}
