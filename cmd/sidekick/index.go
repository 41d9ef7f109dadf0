package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/corpus"
)

var (
	indexMinConfidence float64
	indexBatchSize     int
)

var indexCmd = &cobra.Command{
	Use:   "index <records.json|records.jsonl>",
	Short: "Build the per-archetype example collections",
	Long: `Rebuild every archetype's collection from labelled conversation records.
Each archetype's collection is dropped and refilled with the records carrying
its label at or above the confidence threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().Float64Var(&indexMinConfidence, "min-confidence", 0, "minimum label confidence (overrides corpus.min_confidence)")
	indexCmd.Flags().IntVar(&indexBatchSize, "batch-size", 0, "embedding batch size")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	records, err := corpus.LoadFile(args[0], logger)
	if err != nil {
		return err
	}

	rt, err := newCorpusRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	minConfidence := cfg.Corpus.MinConfidence
	if indexMinConfidence > 0 {
		minConfidence = indexMinConfidence
	}
	report, err := corpus.NewBuilder(rt.store, rt.embedder,
		corpus.WithMinConfidence(minConfidence),
		corpus.WithBatchSize(indexBatchSize),
		corpus.WithBuilderLogger(logger),
	).Build(ctx, records)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %d records\n", len(records))
	for _, p := range core.Personas {
		fmt.Fprintf(out, "  %-18s %5d examples -> %s\n", p.String()+":", report.Indexed[p], p.Collection())
	}
	fmt.Fprintf(out, "Skipped (low confidence): %d\n", report.Skipped)
	fmt.Fprintf(out, "Unlabelled:               %d\n", report.Unlabelled)
	return nil
}
