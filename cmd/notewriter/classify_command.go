package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"notewriter/internal/misleading"
	"notewriter/internal/posts"
	"notewriter/internal/services"
)

type classifyOutput struct {
	PostID        string   `json:"post_id,omitempty"`
	RequestID     string   `json:"request_id"`
	ImagesSummary string   `json:"images_summary,omitempty"`
	Tags          []string `json:"tags"`
}

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var (
		postID     string
		postText   string
		note       string
		noteFile   string
		summary    string
		imageURLs  []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one post and its proposed note",
		Long: `Classify one post and its proposed note into misleading tags.

Image URLs passed with --image are described with the vision model and the
descriptions used as the images summary, unless --summary supplies one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(postText) == "" {
				return errors.New("--text is required")
			}
			noteText, err := resolveNote(cmd.InOrStdin(), note, noteFile)
			if err != nil {
				return err
			}

			classifier, client, err := ctx.classifier()
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()

			requestID := uuid.NewString()
			runCtx := services.WithRequestID(services.WithPostID(cmd.Context(), postID), requestID)
			post := posts.Post{ID: strings.TrimSpace(postID), Text: postText, ImageURLs: imageURLs}

			imagesSummary := strings.TrimSpace(summary)
			if imagesSummary == "" && len(post.ImageURLs) > 0 {
				imagesSummary = posts.SummarizeImages(runCtx, client, post.ImageURLs, cfg.LLM.VisionTemperature)
			}

			tags := classifier.Classify(runCtx, post, imagesSummary, noteText)
			if jsonOutput {
				return writeJSON(cmd, classifyOutput{
					PostID:        post.ID,
					RequestID:     requestID,
					ImagesSummary: imagesSummary,
					Tags:          misleading.Strings(tags),
				})
			}

			out := cmd.OutOrStdout()
			if len(tags) == 0 {
				fmt.Fprintln(out, "No misleading tags")
				return nil
			}
			for _, tag := range tags {
				fmt.Fprintln(out, tag)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&postID, "id", "", "Post identifier used in logs")
	cmd.Flags().StringVar(&postText, "text", "", "Post text")
	cmd.Flags().StringVar(&note, "note", "", "Proposed note text")
	cmd.Flags().StringVar(&noteFile, "note-file", "", "Read the proposed note from a file (- for stdin)")
	cmd.Flags().StringVar(&summary, "summary", "", "Images summary to use instead of describing --image URLs")
	cmd.Flags().StringArrayVar(&imageURLs, "image", nil, "Image URL attached to the post (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func resolveNote(stdin io.Reader, note, noteFile string) (string, error) {
	noteFile = strings.TrimSpace(noteFile)
	if noteFile == "" {
		return note, nil
	}
	if note != "" {
		return "", errors.New("use either --note or --note-file, not both")
	}
	var (
		data []byte
		err  error
	)
	if noteFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(noteFile)
	}
	if err != nil {
		return "", fmt.Errorf("read note: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
