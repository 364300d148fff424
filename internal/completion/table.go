// Package completion serves LaTeX command suggestions from a static table.
package completion

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/hyperjump/vibetex/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultTrigger is the token that opens a command completion.
const DefaultTrigger = `\`

//go:embed latex_commands.yaml
var builtinTable []byte

// Table maps trigger tokens to their completion entries. It is read-only once loaded.
type Table struct {
	entries  map[string][]models.Completion
	triggers []string
}

type tableFile struct {
	Triggers map[string][]models.Completion `yaml:"triggers"`
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// DefaultTable returns the embedded command table, parsed on first use.
func DefaultTable() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = ParseTable(builtinTable)
	})
	return defaultTable, defaultErr
}

// LoadTable reads a table from path, or returns the embedded table when path is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read completion table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML completion table.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse completion table: %w", err)
	}
	if len(f.Triggers) == 0 {
		return nil, fmt.Errorf("completion table has no triggers")
	}
	t := &Table{entries: make(map[string][]models.Completion, len(f.Triggers))}
	for trigger, items := range f.Triggers {
		if trigger == "" {
			return nil, fmt.Errorf("completion table has an empty trigger")
		}
		for i := range items {
			if items[i].Label == "" {
				return nil, fmt.Errorf("trigger %q entry %d has no label", trigger, i)
			}
			if items[i].Kind == "" {
				items[i].Kind = models.KindFunction
			}
			if items[i].InsertText == "" {
				items[i].InsertText = items[i].Label[min(len(trigger), len(items[i].Label)):]
			}
		}
		t.entries[trigger] = items
		t.triggers = append(t.triggers, trigger)
	}
	// Longest first so a multi-character trigger wins over its own suffix.
	sort.Slice(t.triggers, func(i, j int) bool {
		if len(t.triggers[i]) != len(t.triggers[j]) {
			return len(t.triggers[i]) > len(t.triggers[j])
		}
		return t.triggers[i] < t.triggers[j]
	})
	return t, nil
}

// Triggers returns the trigger tokens, longest first.
func (t *Table) Triggers() []string {
	out := make([]string, len(t.triggers))
	copy(out, t.triggers)
	return out
}

// Entries returns a copy of the entries for trigger in table order.
func (t *Table) Entries(trigger string) []models.Completion {
	items := t.entries[trigger]
	out := make([]models.Completion, len(items))
	copy(out, items)
	return out
}

// Len returns the number of entries across all triggers.
func (t *Table) Len() int {
	n := 0
	for _, items := range t.entries {
		n += len(items)
	}
	return n
}
