package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/sidekick/corpus/cornell"
	"github.com/becomeliminal/sidekick/corpus/label"
)

var (
	labelOutput string
	labelJSON   string
)

var labelCmd = &cobra.Command{
	Use:   "label <personas.json>",
	Short: "Label side characters with an archetype",
	Long: `Classify every side character written by "sidekick prepare" and append
one record per conversation to a JSONL file. Characters already in the file
are skipped, so an interrupted run can simply be restarted. Rate-limited
calls are retried per label.max_attempts and label.retry_wait.`,
	Args: cobra.ExactArgs(1),
	RunE: runLabel,
}

func init() {
	labelCmd.Flags().StringVarP(&labelOutput, "output", "o", "data/processed/side_character_labeled_conversations.jsonl", "JSONL output, appended to")
	labelCmd.Flags().StringVar(&labelJSON, "json", "", "also export the full output as a JSON array to this file")
}

func runLabel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	characters, err := cornell.ReadFile(args[0])
	if err != nil {
		return err
	}
	classifier, err := label.New(ctx, cfg.Embedding.APIKey, label.WithModel(cfg.Label.Model))
	if err != nil {
		return err
	}

	summary, err := label.NewRunner(classifier,
		label.WithMaxAttempts(cfg.Label.MaxAttempts),
		label.WithRetryWait(cfg.Label.RetryWait),
		label.WithLogger(logger),
	).Run(ctx, characters, labelOutput)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if labelJSON != "" {
		n, err := label.ExportJSON(labelOutput, labelJSON)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported %d conversations to %s\n\n", n, labelJSON)
	}
	return summary.Write(out)
}
