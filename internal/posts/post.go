package posts

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"notewriter/internal/services"
)

// Post is the social-media item under review.
type Post struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// Entry is one batch input record: a post plus the proposed note for it.
type Entry struct {
	Post
	Note string `json:"note"`
}

const maxLineBytes = 1 << 20

// ReadJSONL decodes one Entry per non-blank line. Lines that are not valid
// JSON or lack an id fail the whole read with services.ErrValidation so a
// batch never runs on a partially understood input.
func ReadJSONL(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var entries []Entry
	seen := make(map[string]int)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, services.Wrap(services.ErrValidation, "posts", "read jsonl", fmt.Sprintf("line %d", lineNo), err)
		}
		entry.ID = strings.TrimSpace(entry.ID)
		if entry.ID == "" {
			return nil, services.Wrap(services.ErrValidation, "posts", "read jsonl", fmt.Sprintf("line %d: id required", lineNo), nil)
		}
		if prev, ok := seen[entry.ID]; ok {
			return nil, services.Wrap(services.ErrValidation, "posts", "read jsonl",
				fmt.Sprintf("line %d: duplicate id %q (first seen on line %d)", lineNo, entry.ID, prev), nil)
		}
		seen[entry.ID] = lineNo
		entry.ImageURLs = compactURLs(entry.ImageURLs)
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return entries, nil
}

// Describer produces a text description for an image URL, returning "" when
// no description is available.
type Describer interface {
	DescribeImage(ctx context.Context, imageURL string, temperature float64) string
}

// SummarizeImages describes each image and joins the non-empty descriptions.
// A post without images, or whose images all fail to describe, yields "".
func SummarizeImages(ctx context.Context, describer Describer, imageURLs []string, temperature float64) string {
	if describer == nil {
		return ""
	}
	urls := compactURLs(imageURLs)
	if len(urls) == 0 {
		return ""
	}
	descriptions := make([]string, 0, len(urls))
	for i, url := range urls {
		if ctx.Err() != nil {
			break
		}
		text := strings.TrimSpace(describer.DescribeImage(ctx, url, temperature))
		if text == "" {
			continue
		}
		if len(urls) > 1 {
			text = fmt.Sprintf("Image %d: %s", i+1, text)
		}
		descriptions = append(descriptions, text)
	}
	return strings.Join(descriptions, "\n")
}

func compactURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
