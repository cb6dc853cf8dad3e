package normalize

import (
	"strings"

	"golang.org/x/text/cases"

	"redact/internal/detect"
	"redact/internal/store"
)

// Matcher decides which existing entities a mention could belong to. The
// normalizer merges a mention into an entity only when exactly one candidate
// match is returned; ambiguity always creates a new entity.
type Matcher interface {
	Name() string
	Match(text string, category detect.Category, entities []*store.Entity) []*store.Entity
}

var foldCaser = cases.Fold()

// foldText normalizes a mention for caseless comparison.
func foldText(text string) string {
	return foldCaser.String(strings.TrimSpace(text))
}

// ExactMatcher links mentions by case-insensitive text equality plus category.
type ExactMatcher struct{}

func (ExactMatcher) Name() string { return "exact" }

func (ExactMatcher) Match(text string, category detect.Category, entities []*store.Entity) []*store.Entity {
	folded := foldText(text)
	var matched []*store.Entity
	for _, entity := range entities {
		if entity.Category == category && foldText(entity.CanonicalText) == folded {
			matched = append(matched, entity)
		}
	}
	return matched
}

// PersonNameMatcher extends exact matching with surname linking: a bare
// single-token PERSON mention joins an existing PERSON entity when exactly one
// entity's canonical name ends with that token. Any ambiguity falls through to
// the normalizer's new-entity rule.
type PersonNameMatcher struct{}

func (PersonNameMatcher) Name() string { return "person-names" }

func (PersonNameMatcher) Match(text string, category detect.Category, entities []*store.Entity) []*store.Entity {
	if exact := (ExactMatcher{}).Match(text, category, entities); len(exact) > 0 {
		return exact
	}
	if category != detect.CategoryPerson {
		return nil
	}
	folded := foldText(text)
	if folded == "" || strings.ContainsAny(folded, " \t") {
		return nil
	}
	var matched []*store.Entity
	for _, entity := range entities {
		if entity.Category != detect.CategoryPerson {
			continue
		}
		tokens := strings.Fields(foldText(entity.CanonicalText))
		if len(tokens) > 1 && tokens[len(tokens)-1] == folded {
			matched = append(matched, entity)
		}
	}
	return matched
}

// MatcherByName resolves a configured matcher strategy.
func MatcherByName(name string) (Matcher, bool) {
	switch name {
	case "", "exact":
		return ExactMatcher{}, true
	case "person-names":
		return PersonNameMatcher{}, true
	default:
		return nil, false
	}
}
