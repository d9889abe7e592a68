package categorization

import (
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
)

// Words shorter than this are not compared fuzzily.
const minFuzzyWordLen = 5

// FuzzyMatch is a rule that approximately matched one word of a description.
type FuzzyMatch struct {
	Rule  Rule
	Word  string
	Score int // 0-100, 100 is an exact match
}

// FuzzyMatcher catches misspelled keywords ("supermercdo", "alqiler") that
// the exact engine misses.
type FuzzyMatcher struct {
	rules []fuzzyRule
	mu    sync.RWMutex
}

type fuzzyRule struct {
	word string
	rule Rule
}

// NewFuzzyMatcher builds a matcher over the single-word keywords of rules.
func NewFuzzyMatcher(rules []Rule) *FuzzyMatcher {
	fm := &FuzzyMatcher{}
	fm.Build(rules)
	return fm
}

func (fm *FuzzyMatcher) Build(rules []Rule) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.rules = fm.rules[:0]
	for _, r := range rules {
		word := strings.TrimSpace(keywordPattern(r.Keyword))
		if len(word) < minFuzzyWordLen || strings.Contains(word, " ") {
			continue
		}
		fm.rules = append(fm.rules, fuzzyRule{word: word, rule: r})
	}
}

// Match returns the best rule for kind scoring at least threshold against
// any word of description, or nil.
func (fm *FuzzyMatcher) Match(description string, kind model.Kind, threshold int) *FuzzyMatch {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	var best *FuzzyMatch
	for _, word := range strings.Fields(searchText(description)) {
		if len(word) < minFuzzyWordLen {
			continue
		}
		for _, fr := range fm.rules {
			if !fr.rule.appliesTo(kind) {
				continue
			}
			score := fuzzyScore(word, fr.word)
			if score < threshold {
				continue
			}
			if best == nil || score > best.Score || (score == best.Score && better(fr.rule, best.Rule)) {
				best = &FuzzyMatch{Rule: fr.rule, Word: word, Score: score}
			}
		}
	}
	return best
}

// fuzzyScore rates the similarity of two words from 0 to 100, taking the
// better of the edit distance ratio and the subsequence rank.
func fuzzyScore(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}

	maxLen := max(len(s1), len(s2))
	if maxLen == 0 {
		return 0
	}
	levScore := 100 * (maxLen - fuzzy.LevenshteinDistance(s1, s2)) / maxLen

	// s2 spelled out inside s1 with a few extra letters
	rankScore := 0
	if rank := fuzzy.RankMatch(s2, s1); rank >= 0 && rank < len(s1) {
		rankScore = 90 - rank*40/len(s1)
	}

	return max(levScore, rankScore)
}
