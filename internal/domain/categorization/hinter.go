// Package categorization suggests a category for a movement from its
// description and kind.
package categorization

import (
	"context"
	"strings"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
)

const defaultFuzzyThreshold = 85

// Hinter tries the exact keyword engine first and falls back to fuzzy
// matching of single words.
type Hinter struct {
	engine    *Engine
	fuzzy     *FuzzyMatcher
	threshold int
}

// NewHinter creates a hinter over rules. Nil rules load DefaultRules.
func NewHinter(rules []Rule) *Hinter {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Hinter{
		engine:    NewEngine(rules),
		fuzzy:     NewFuzzyMatcher(rules),
		threshold: defaultFuzzyThreshold,
	}
}

// WithFuzzyThreshold sets the minimum fuzzy score (0-100). Values above 100
// turn the fuzzy fallback off.
func (h *Hinter) WithFuzzyThreshold(threshold int) *Hinter {
	h.threshold = threshold
	return h
}

// SuggestCategory returns nil when nothing matches.
func (h *Hinter) SuggestCategory(ctx context.Context, description string, kind model.Kind) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(description) == "" {
		return nil, nil
	}

	if r := h.engine.Match(description, kind); r != nil {
		return &r.Category, nil
	}
	if h.threshold <= 100 {
		if m := h.fuzzy.Match(description, kind, h.threshold); m != nil {
			return &m.Rule.Category, nil
		}
	}
	return nil, nil
}
