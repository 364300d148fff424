package completion

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/vibetex/internal/models"
)

const (
	defaultMaxResults    = 50
	defaultFuzzyDistance = 1
	// Words shorter than this are matched by prefix only.
	minFuzzyWord = 3
)

// Provider answers completion requests against a Table.
type Provider struct {
	table         *Table
	maxResults    int
	fuzzyDistance int
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithMaxResults caps filtered results. Zero or less means no cap.
func WithMaxResults(n int) ProviderOption {
	return func(p *Provider) {
		p.maxResults = n
	}
}

// WithFuzzyDistance sets the edit distance tolerated when no prefix matches.
func WithFuzzyDistance(d int) ProviderOption {
	return func(p *Provider) {
		p.fuzzyDistance = d
	}
}

// NewProvider creates a provider over table.
func NewProvider(table *Table, opts ...ProviderOption) *Provider {
	p := &Provider{
		table:         table,
		maxResults:    defaultMaxResults,
		fuzzyDistance: defaultFuzzyDistance,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Table returns the provider's table.
func (p *Provider) Table() *Table {
	return p.table
}

// SuggestionsAt returns every entry registered for the trigger that precedes
// the word under pos. The result depends only on the trigger and word
// boundary, never on the rest of the document. Without a trigger the list is
// empty.
func (p *Provider) SuggestionsAt(text string, pos int) models.CompletionList {
	trigger, word, rng, ok := p.locate(text, pos)
	if !ok {
		return models.CompletionList{Range: rng, Items: []models.Completion{}}
	}
	return models.CompletionList{
		Trigger: trigger,
		Word:    word,
		Range:   rng,
		Items:   p.table.Entries(trigger),
	}
}

// Complete is SuggestionsAt narrowed to entries matching the current word.
func (p *Provider) Complete(text string, pos int) models.CompletionList {
	list := p.SuggestionsAt(text, pos)
	list.Items = p.Filter(list.Items, list.Trigger, list.Word)
	return list
}

// Filter keeps items whose name (label minus trigger) starts with word,
// exact-case matches first, then case-insensitive ones, both in table order.
// When nothing matches by prefix, names within the fuzzy distance are used.
func (p *Provider) Filter(items []models.Completion, trigger, word string) []models.Completion {
	if word == "" {
		return p.limit(items)
	}
	lower := strings.ToLower(word)
	var exact, folded []models.Completion
	for _, item := range items {
		name := strings.TrimPrefix(item.Label, trigger)
		switch {
		case strings.HasPrefix(name, word):
			exact = append(exact, item)
		case strings.HasPrefix(strings.ToLower(name), lower):
			folded = append(folded, item)
		}
	}
	out := append(exact, folded...)
	if len(out) == 0 && p.fuzzyDistance > 0 && utf8.RuneCountInString(word) >= minFuzzyWord {
		for _, item := range items {
			name := strings.ToLower(strings.TrimPrefix(item.Label, trigger))
			if DamerauLevenshteinDistance(lower, name) <= p.fuzzyDistance {
				out = append(out, item)
			}
		}
	}
	if out == nil {
		out = []models.Completion{}
	}
	return p.limit(out)
}

func (p *Provider) limit(items []models.Completion) []models.Completion {
	if p.maxResults > 0 && len(items) > p.maxResults {
		return items[:p.maxResults]
	}
	return items
}

// locate finds the word ending at pos and the trigger directly before it.
func (p *Provider) locate(text string, pos int) (trigger, word string, rng models.Range, ok bool) {
	pos = clampOffset(text, pos)
	start := pos
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !isWordRune(r) {
			break
		}
		start -= size
	}
	rng = models.Range{Start: start, End: pos}
	for _, t := range p.table.triggers {
		if strings.HasSuffix(text[:start], t) {
			return t, text[start:pos], rng, true
		}
	}
	return "", "", rng, false
}

// clampOffset bounds pos to text and moves it back to a rune boundary.
func clampOffset(text string, pos int) int {
	if pos < 0 {
		return 0
	}
	if pos > len(text) {
		return len(text)
	}
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || r == '@'
}
