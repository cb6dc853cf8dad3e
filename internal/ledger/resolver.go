package ledger

import (
	"redact/internal/detect"
	"redact/internal/store"
)

// categoryMasks are the placeholders used when a reviewer accepts a redaction
// without supplying their own replacement text.
var categoryMasks = map[detect.Category]string{
	detect.CategoryPerson:   "[PERSON]",
	detect.CategoryOrg:      "[ORG]",
	detect.CategoryLocation: "[LOCATION]",
	detect.CategoryEmail:    "[EMAIL]",
	detect.CategoryPhone:    "[PHONE]",
	detect.CategoryIDNumber: "[ID_NUMBER]",
	detect.CategoryDate:     "[DATE]",
	detect.CategoryMisc:     "[MISC]",
}

// DefaultMask returns the placeholder for a category.
func DefaultMask(category detect.Category) string {
	if mask, ok := categoryMasks[category]; ok {
		return mask
	}
	return categoryMasks[detect.CategoryMisc]
}

// EffectiveReplacement resolves the text every occurrence of an entity is
// rewritten to. Keep decisions resolve to the original text unchanged, which
// callers signal with an empty string and the applied flag set to false.
func EffectiveReplacement(category detect.Category, decision store.Decision) (replacement string, applied bool) {
	switch decision.Status {
	case store.DecisionKeep:
		return "", false
	case store.DecisionEdited:
		return decision.Replacement, true
	case store.DecisionRedact:
		if decision.Replacement != "" {
			return decision.Replacement, true
		}
		return DefaultMask(category), true
	default:
		return "", false
	}
}
