package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDescribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <image-url>",
		Short: "Describe an image with the vision model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, _, err := ctx.llmClient()
			if err != nil {
				return err
			}
			description := client.DescribeImage(cmd.Context(), strings.TrimSpace(args[0]), cfg.LLM.VisionTemperature)
			if description == "" {
				return errors.New("no description returned; see the log for the vision call failure")
			}
			fmt.Fprintln(cmd.OutOrStdout(), description)
			return nil
		},
	}
}
