package misleading

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Tag is one entry of the misleading-content vocabulary.
type Tag string

const (
	TagFactualError            Tag = "factual_error"
	TagManipulatedMedia        Tag = "manipulated_media"
	TagOutdatedInformation     Tag = "outdated_information"
	TagMissingImportantContext Tag = "missing_important_context"
	TagDisputedClaimAsFact     Tag = "disputed_claim_as_fact"
	TagMisinterpretedSatire    Tag = "misinterpreted_satire"
	TagOther                   Tag = "other"
)

// allowedTags is listed in prompt order.
var allowedTags = []Tag{
	TagFactualError,
	TagManipulatedMedia,
	TagOutdatedInformation,
	TagMissingImportantContext,
	TagDisputedClaimAsFact,
	TagMisinterpretedSatire,
	TagOther,
}

var allowedSet = func() map[Tag]struct{} {
	set := make(map[Tag]struct{}, len(allowedTags))
	for _, tag := range allowedTags {
		set[tag] = struct{}{}
	}
	return set
}()

// AllowedTags returns a copy of the vocabulary in its canonical order.
func AllowedTags() []Tag {
	out := make([]Tag, len(allowedTags))
	copy(out, allowedTags)
	return out
}

// IsAllowed reports whether tag is an exact vocabulary member.
func IsAllowed(tag Tag) bool {
	_, ok := allowedSet[tag]
	return ok
}

// Strings returns tags as plain strings, preserving order.
func Strings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = string(tag)
	}
	return out
}

// normalizeCandidate folds width and compatibility forms, trims whitespace,
// and lower-cases. A Caser is stateful, so one is built per call.
func normalizeCandidate(value string) Tag {
	folded := norm.NFKC.String(value)
	folded = strings.TrimSpace(folded)
	return Tag(cases.Lower(language.Und).String(folded))
}
