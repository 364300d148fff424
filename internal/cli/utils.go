// Package cli provides output helpers for the vibetex command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/vibetex/internal/completion"
	"github.com/hyperjump/vibetex/internal/models"
	"github.com/hyperjump/vibetex/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const docWidth = 72

// ParseFormat validates a -output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// CompileResult summarizes a one-shot compile.
type CompileResult struct {
	Source string `json:"source"`
	Output string `json:"output"`
	Bytes  int    `json:"bytes"`
	Pages  int    `json:"pages,omitempty"`
}

// WriteCompileResult writes the outcome of a one-shot compile.
func WriteCompileResult(w io.Writer, res *CompileResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Compiled %s -> %s (%d bytes", res.Source, res.Output, res.Bytes)
	if res.Pages > 0 {
		fmt.Fprintf(w, ", %d page(s)", res.Pages)
	}
	fmt.Fprintln(w, ")")
	return nil
}

// ChatResult is a one-shot assistant reply, optionally with a diff against the source.
type ChatResult struct {
	Prompt  string `json:"prompt"`
	Message string `json:"message"`
	Latex   string `json:"latex,omitempty"`
	Summary string `json:"summary,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

// WriteChatResult writes an assistant reply.
func WriteChatResult(w io.Writer, res *ChatResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintln(w, res.Message)
	switch {
	case res.Diff != "":
		fmt.Fprintf(w, "\n--- proposed changes (%s) ---\n", res.Summary)
		fmt.Fprint(w, res.Diff)
	case res.Summary != "":
		fmt.Fprintf(w, "\n--- proposed changes (%s) ---\n", res.Summary)
	case res.Latex != "":
		fmt.Fprintln(w, "\n--- proposed document ---")
		fmt.Fprintln(w, res.Latex)
	}
	return nil
}

// WriteCompletions writes completion suggestions.
func WriteCompletions(w io.Writer, list models.CompletionList, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, list)
	}
	if len(list.Items) == 0 {
		fmt.Fprintln(w, "No completions")
		return nil
	}
	for _, c := range list.Items {
		writeCompletion(w, c)
	}
	return nil
}

func writeCompletion(w io.Writer, c models.Completion) {
	fmt.Fprintf(w, "%-24s %-10s", c.Label, c.Kind)
	if c.Documentation != "" {
		fmt.Fprintf(w, " %s", utils.Truncate(utils.FirstLine(c.Documentation), docWidth))
	}
	fmt.Fprintln(w)
}

// SearchOutput is the result of a command documentation search.
type SearchOutput struct {
	Query   string                 `json:"query"`
	Fuzzy   bool                   `json:"fuzzy,omitempty"`
	Results []completion.SearchHit `json:"results"`
}

// WriteSearchHits writes command search results.
func WriteSearchHits(w io.Writer, out *SearchOutput, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, out)
	}
	if len(out.Results) == 0 {
		fmt.Fprintf(w, "No commands match %q\n", out.Query)
		return nil
	}
	suffix := ""
	if out.Fuzzy {
		suffix = " (fuzzy)"
	}
	fmt.Fprintf(w, "Found %d command(s) for %q%s\n\n", len(out.Results), out.Query, suffix)
	for _, hit := range out.Results {
		fmt.Fprintf(w, "%6.3f  ", hit.Score)
		writeCompletion(w, hit.Completion)
	}
	return nil
}

// Status is the shape of GET /api/v1/status.
type Status struct {
	Sessions          int                            `json:"sessions"`
	Compiles          int64                          `json:"compiles"`
	CompilesByStatus  map[models.CompileStatus]int64 `json:"compiles_by_status,omitempty"`
	DiskUsageBytes    *int64                         `json:"disk_usage_bytes,omitempty"`
	CompletionEntries int                            `json:"completion_entries"`
	Config            map[string]interface{}         `json:"config,omitempty"`
}

// WriteStatus writes server status.
func WriteStatus(w io.Writer, s *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "sessions:            %d   # open editor sessions\n", s.Sessions)
	fmt.Fprintf(w, "compiles:            %d   # recorded compile requests\n", s.Compiles)
	for _, st := range []models.CompileStatus{models.CompileSucceeded, models.CompileFailed, models.CompileStale} {
		if n, ok := s.CompilesByStatus[st]; ok {
			fmt.Fprintf(w, "  %-18s %d\n", string(st)+":", n)
		}
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:    %d   # compile history on disk\n", *s.DiskUsageBytes)
	}
	fmt.Fprintf(w, "completion_entries:  %d\n", s.CompletionEntries)
	if len(s.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		keys := make([]string, 0, len(s.Config))
		for k := range s.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%-20s %v\n", k+":", s.Config[k])
		}
	}
	return nil
}

// JoinArgs joins positional args so multi-word input works with or without quoting.
func JoinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
