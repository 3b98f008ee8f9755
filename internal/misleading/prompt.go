package misleading

import (
	"strings"

	"notewriter/internal/posts"
)

// NoNoteSentinel prefixes a note writer's refusal. Posts whose note starts
// with it are never classified.
const NoNoteSentinel = "NO NOTE NEEDED"

const noImagesBlock = "No images."

const tagsPromptHeader = `Below is an X post and a proposed Community Note.
Return JSON *only* with one key "misleading_tags" whose value is a list of
one-word tags from the allowed list.

ALLOWED TAGS:
`

// BuildPrompt renders the classification prompt. The output depends only on
// its arguments.
func BuildPrompt(post posts.Post, imagesSummary, noteText string) string {
	var b strings.Builder
	b.WriteString(tagsPromptHeader)
	for i, tag := range allowedTags {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(string(tag))
	}
	b.WriteString("\n\nPOST TEXT:\n")
	b.WriteString(post.Text)
	b.WriteString("\n\n")
	b.WriteString(imagesBlock(imagesSummary))
	b.WriteString("\nPROPOSED NOTE (or refusal):\n")
	b.WriteString(noteText)
	b.WriteByte('\n')
	return b.String()
}

func imagesBlock(summary string) string {
	if strings.TrimSpace(summary) == "" {
		return noImagesBlock
	}
	return "IMAGE SUMMARY:\n" + summary
}
