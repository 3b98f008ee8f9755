package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"notewriter/internal/batch"
	"notewriter/internal/logging"
	"notewriter/internal/notifications"
	"notewriter/internal/posts"
	"notewriter/internal/store"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		resume     bool
		workers    int
		noDescribe bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "batch <posts.jsonl>",
		Short: "Classify every post in a JSONL file and store the results",
		Long: `Classify every post in a JSONL file and store the results.

Each line is an object with "id", "text", optional "image_urls", and "note".
Use - to read from stdin. Results are written to the results database in
state_dir; --resume skips posts that already have a stored result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath := strings.TrimSpace(args[0])
			entries, err := readEntries(cmd.InOrStdin(), inputPath)
			if err != nil {
				return err
			}

			classifier, client, err := ctx.classifier()
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()
			logger, _ := ctx.ensureLogger()
			runCfg := *cfg
			if workers > 0 {
				runCfg.Batch.Workers = workers
			}
			if noDescribe {
				runCfg.Batch.DescribeImages = false
			}

			notifier := notifications.NewService(cfg)
			return ctx.withStore(func(st *store.Store) error {
				runner := batch.NewRunner(&runCfg, classifier, client, st, logger)
				summary, err := runner.Run(cmd.Context(), entries, batch.Options{InputPath: inputPath, Resume: resume})
				if err != nil {
					if batch.IsRunInProgress(err) {
						return fmt.Errorf("%w; wait for it to finish or remove %s if it crashed", err, runCfg.BatchLockPath())
					}
					notifyBatch(logger, notifier.NotifyBatchFailed(context.WithoutCancel(cmd.Context()), inputPath, err))
					return err
				}
				notifyBatch(logger, notifier.NotifyBatchCompleted(cmd.Context(), notifications.BatchReport{
					RunID:     summary.RunID,
					Total:     summary.Total,
					Tagged:    summary.Tagged,
					Refusals:  summary.Refusals,
					Resumed:   summary.Resumed,
					Failed:    summary.Failed,
					TagCounts: summary.TagCounts,
					Duration:  summary.Duration,
				}))
				if jsonOutput {
					return writeJSON(cmd, summary)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderBatchSummary(summary))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", false, "Skip posts that already have stored results")
	cmd.Flags().IntVar(&workers, "workers", 0, "Override batch.workers")
	cmd.Flags().BoolVar(&noDescribe, "no-describe", false, "Do not describe attached images")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func notifyBatch(logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logger, "batch notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		logging.String(logging.FieldImpact, "batch results were stored but no alert was sent"),
	)
}

func readEntries(stdin io.Reader, inputPath string) ([]posts.Entry, error) {
	if inputPath == "-" {
		return posts.ReadJSONL(stdin)
	}
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return posts.ReadJSONL(file)
}

func renderBatchSummary(summary batch.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d posts in %s\n", summary.RunID, summary.Total, summary.Duration.Round(time.Millisecond))

	rows := [][]string{
		{"Tagged", strconv.Itoa(summary.Tagged)},
		{"Untagged", strconv.Itoa(summary.Untagged)},
		{"No note needed", strconv.Itoa(summary.Refusals)},
		{"Resumed", strconv.Itoa(summary.Resumed)},
		{"Failed", strconv.Itoa(summary.Failed)},
	}
	b.WriteString(renderTable([]string{"Outcome", "Posts"}, rows, []columnAlignment{alignLeft, alignRight}))
	b.WriteString("\n")

	if len(summary.TagCounts) > 0 {
		tags := make([]string, 0, len(summary.TagCounts))
		for tag := range summary.TagCounts {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		tagRows := make([][]string, 0, len(tags))
		for _, tag := range tags {
			tagRows = append(tagRows, []string{tag, strconv.Itoa(summary.TagCounts[tag])})
		}
		b.WriteString(renderTable([]string{"Tag", "Posts"}, tagRows, []columnAlignment{alignLeft, alignRight}))
		b.WriteString("\n")
	}
	return b.String()
}
