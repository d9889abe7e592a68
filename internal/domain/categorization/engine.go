package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
)

// Rule assigns Category to descriptions containing Keyword. An empty Kind
// applies to both incomes and expenses.
type Rule struct {
	Keyword  string
	Category string
	Kind     model.Kind
	Priority int
}

func (r Rule) appliesTo(kind model.Kind) bool {
	return r.Kind == "" || r.Kind == kind
}

// Keywords of this length or shorter only match whole words.
const shortKeywordLen = 4

// Engine matches every keyword rule against a description in one pass using
// the Aho-Corasick algorithm.
type Engine struct {
	matcher  *ahocorasick.Matcher
	patterns []string
	metadata [][]Rule // rules grouped by pattern, same order as patterns
	mu       sync.RWMutex
}

// NewEngine builds an engine from rules.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{}
	e.Build(rules)
	return e
}

// Build replaces the loaded rules. Rules sharing a keyword are grouped under
// one pattern.
func (e *Engine) Build(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	index := make(map[string]int, len(rules))
	patterns := make([]string, 0, len(rules))
	metadata := make([][]Rule, 0, len(rules))

	for _, r := range rules {
		p := keywordPattern(r.Keyword)
		if p == "" {
			continue
		}
		if idx, ok := index[p]; ok {
			metadata[idx] = append(metadata[idx], r)
			continue
		}
		index[p] = len(patterns)
		patterns = append(patterns, p)
		metadata = append(metadata, []Rule{r})
	}

	e.patterns = patterns
	e.metadata = metadata
	e.matcher = nil
	if len(patterns) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(patterns)
	}
}

// Match returns the highest priority rule for the kind whose keyword occurs
// in description. Ties go to the longer keyword.
func (e *Engine) Match(description string, kind model.Kind) *Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matcher == nil {
		return nil
	}

	hits := e.matcher.MatchThreadSafe([]byte(searchText(description)))

	var best *Rule
	for _, idx := range hits {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		for i := range e.metadata[idx] {
			r := e.metadata[idx][i]
			if !r.appliesTo(kind) {
				continue
			}
			if best == nil || better(r, *best) {
				best = &r
			}
		}
	}
	return best
}

// PatternCount returns the number of distinct keywords loaded.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

func better(a, b Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return len(a.Keyword) > len(b.Keyword)
}

// keywordPattern folds a keyword. Short keywords are padded so they only
// match whole words of the padded search text.
func keywordPattern(keyword string) string {
	p := strings.Join(strings.Fields(normalizer.Fold(keyword)), " ")
	if p == "" {
		return ""
	}
	if len(p) <= shortKeywordLen {
		return " " + p + " "
	}
	return p
}

// searchText folds a description, turns punctuation into spaces and pads
// it with one space on each side.
func searchText(description string) string {
	folded := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return ' '
	}, normalizer.Fold(description))
	return " " + strings.Join(strings.Fields(folded), " ") + " "
}
