package misleading

import (
	"encoding/json"

	"notewriter/internal/services"
	"notewriter/internal/services/llm"
)

// tagsKey is matched exactly; a differently cased key counts as absent.
const tagsKey = "misleading_tags"

// ParseTags decodes a model reply and validates its candidates. It fails only
// when the reply is not a JSON object; an object without usable tags yields
// an empty, non-nil slice.
func ParseTags(raw string) ([]Tag, error) {
	var fields *map[string]json.RawMessage
	if err := llm.DecodeLLMJSON(raw, &fields); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "misleading", "parse tags", "invalid json", err)
	}
	if fields == nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "misleading", "parse tags", "reply is null", nil)
	}
	return Validate(candidateStrings((*fields)[tagsKey])), nil
}

func candidateStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var value string
		if err := json.Unmarshal(item, &value); err != nil {
			continue
		}
		out = append(out, value)
	}
	return out
}

// Validate normalizes candidates, drops anything outside the vocabulary, and
// removes duplicates keeping first-seen order. Validate(Strings(Validate(x)))
// equals Validate(x).
func Validate(candidates []string) []Tag {
	out := make([]Tag, 0, len(candidates))
	seen := make(map[Tag]struct{}, len(candidates))
	for _, candidate := range candidates {
		tag := normalizeCandidate(candidate)
		if !IsAllowed(tag) {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
