package llm

import (
	"strings"
	"testing"
)

func TestDecodeLLMJSONHandlesFencesAndProse(t *testing.T) {
	cases := map[string]string{
		"plain":  `{"misleading_tags":["other"]}`,
		"fenced": "```json\n{\"misleading_tags\":[\"other\"]}\n```",
		"prose":  "Sure! Here you go: {\"misleading_tags\":[\"other\"]} Hope that helps.",
	}
	for name, content := range cases {
		var out struct {
			Tags []string `json:"misleading_tags"`
		}
		if err := DecodeLLMJSON(content, &out); err != nil {
			t.Fatalf("%s: DecodeLLMJSON returned error: %v", name, err)
		}
		if len(out.Tags) != 1 || out.Tags[0] != "other" {
			t.Fatalf("%s: unexpected tags %v", name, out.Tags)
		}
	}
}

func TestDecodeLLMJSONRejectsNonJSON(t *testing.T) {
	var out map[string]any
	if err := DecodeLLMJSON("", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
	err := DecodeLLMJSON("I am unable to classify this post.", &out)
	if err == nil {
		t.Fatal("expected error for prose payload")
	}
	if !strings.Contains(err.Error(), "payload snippet") {
		t.Fatalf("expected snippet in error, got %v", err)
	}
}

func TestSnippetTruncatesAndCollapsesWhitespace(t *testing.T) {
	if got := Snippet("  a\n\tb  c ", 10); got != "a b c" {
		t.Fatalf("unexpected snippet %q", got)
	}
	if got := Snippet(strings.Repeat("é", 20), 5); got != "ééééé..." {
		t.Fatalf("unexpected truncated snippet %q", got)
	}
	if got := Snippet("   ", 5); got != "<empty>" {
		t.Fatalf("unexpected empty snippet %q", got)
	}
}
