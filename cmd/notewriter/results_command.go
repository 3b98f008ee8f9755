package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"notewriter/internal/store"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect stored batch results",
	}

	resultsCmd.AddCommand(newResultsListCommand(ctx))
	resultsCmd.AddCommand(newResultsShowCommand(ctx))
	resultsCmd.AddCommand(newResultsRunsCommand(ctx))
	resultsCmd.AddCommand(newResultsClearCommand(ctx))
	return resultsCmd
}

func newResultsListCommand(ctx *commandContext) *cobra.Command {
	var (
		runID      string
		taggedOnly bool
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				results, err := st.List(cmd.Context(), store.ListFilter{RunID: runID, TaggedOnly: taggedOnly, Limit: limit})
				if err != nil {
					return err
				}
				if jsonOutput {
					if results == nil {
						results = []store.Result{}
					}
					return writeJSON(cmd, results)
				}
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(out, "No results stored")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Post", "Tags", "Post Text", "Stored"},
					resultRows(results),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Only show results from this run ID")
	cmd.Flags().BoolVar(&taggedOnly, "tagged", false, "Only show results with at least one tag")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func resultRows(results []store.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		rows = append(rows, []string{
			result.PostID,
			formatTags(result.Tags),
			result.PostText,
			formatTimestamp(result.UpdatedAt),
		})
	}
	return rows
}

func newResultsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <post-id>",
		Short: "Show the stored result for a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				result, err := st.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Post:    %s\n", result.PostID)
				fmt.Fprintf(out, "Run:     %s\n", result.RunID)
				fmt.Fprintf(out, "Tags:    %s\n", formatTags(result.Tags))
				if result.Failed {
					fmt.Fprintln(out, "Status:  classification gave up; rerun batch --resume to retry")
				}
				fmt.Fprintf(out, "Stored:  %s\n", formatTimestamp(result.UpdatedAt))
				fmt.Fprintf(out, "\nText:\n%s\n", result.PostText)
				if result.ImagesSummary != "" {
					fmt.Fprintf(out, "\nImages:\n%s\n", result.ImagesSummary)
				}
				fmt.Fprintf(out, "\nNote:\n%s\n", result.Note)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newResultsRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded batch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				runs, err := st.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					finished := "running"
					if run.FinishedAt != nil {
						finished = formatTimestamp(*run.FinishedAt)
					}
					rows = append(rows, []string{
						run.ID,
						formatTimestamp(run.StartedAt),
						finished,
						strconv.Itoa(run.Total),
						strconv.Itoa(run.Tagged),
						strconv.Itoa(run.Skipped),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Started", "Finished", "Posts", "Tagged", "Resumed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	return cmd
}

func newResultsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all stored results and runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				removed, err := st.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d results\n", removed)
				return nil
			})
		},
	}
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ", ")
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}
