package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"notewriter/internal/config"
	"notewriter/internal/services/llm"
	"notewriter/internal/store"
)

const healthTimeout = 30 * time.Second

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check configuration, the results database, and the completion endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, _, err := ctx.llmClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			lines := renderSectionHeader("notewriter health", colorize)
			lines = append(lines, configStatusLines(cfg, ctx.configPath, colorize)...)
			lines = append(lines, storeStatusLine(cmd.Context(), cfg, colorize))

			failed := false
			if offline {
				lines = append(lines, renderStatusLine("Completion API", statusInfo, "Skipped (--offline)", colorize))
			} else {
				line, ok := llmStatusLine(cmd.Context(), client, colorize)
				lines = append(lines, line)
				failed = !ok
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			if failed {
				return fmt.Errorf("completion endpoint check failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the live completion request")
	return cmd
}

func configStatusLines(cfg *config.Config, path string, colorize bool) []string {
	lines := []string{renderStatusLine("Config", statusOK, path, colorize)}
	if cfg.MisleadingTags.Enabled {
		lines = append(lines, renderStatusLine("Misleading tags", statusOK,
			fmt.Sprintf("Enabled (%d attempts)", cfg.MisleadingTags.Retries), colorize))
	} else {
		lines = append(lines, renderStatusLine("Misleading tags", statusWarn, "Disabled", colorize))
	}
	lines = append(lines, renderStatusLine("Model", statusInfo,
		fmt.Sprintf("%s (vision: %s)", cfg.LLM.Model, cfg.LLM.VisionModel), colorize))
	lines = append(lines, renderStatusLine("API key", statusInfo, "Configured: "+yesNo(cfg.LLM.APIKey != ""), colorize))
	if cfg.Notifications.NtfyTopic != "" {
		lines = append(lines, renderStatusLine("Notifications", statusInfo, cfg.Notifications.NtfyTopic, colorize))
	} else {
		lines = append(lines, renderStatusLine("Notifications", statusInfo, "Disabled", colorize))
	}
	return lines
}

func storeStatusLine(ctx context.Context, cfg *config.Config, colorize bool) string {
	st, err := store.Open(cfg)
	if err != nil {
		return renderStatusLine("Results DB", statusError, err.Error(), colorize)
	}
	defer st.Close()
	version, err := st.SchemaVersion(ctx)
	if err != nil {
		return renderStatusLine("Results DB", statusError, err.Error(), colorize)
	}
	return renderStatusLine("Results DB", statusOK, fmt.Sprintf("%s (schema %s)", st.Path(), version), colorize)
}

func llmStatusLine(ctx context.Context, client *llm.Client, colorize bool) (string, bool) {
	checkCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := client.HealthCheck(checkCtx); err != nil {
		return renderStatusLine("Completion API", statusError, err.Error(), colorize), false
	}
	return renderStatusLine("Completion API", statusOK, "Ready ("+client.Model()+")", colorize), true
}
