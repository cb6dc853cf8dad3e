// Package normalize turns raw detector candidates into the stable entity
// partition a talk's review works against: overlapping same-category spans
// merge into single mentions, and mentions link to existing entities through a
// configurable matching strategy. Ambiguous links always create a new entity
// so that no decision ever silently covers the wrong person.
package normalize
