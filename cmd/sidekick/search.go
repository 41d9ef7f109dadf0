package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/responder"
)

// sampleQueries exercise each archetype's collection.
var sampleQueries = map[core.Persona]string{
	core.WiseMentor:       "I am struggling to find meaning in my work.",
	core.ComedicRelief:    "Tell me a funny story about a misunderstanding.",
	core.SkepticalRealist: "My plan to start a new company is perfect and has no flaws.",
	core.LoyalSidekick:    "I feel like I failed and let everyone down.",
}

var (
	searchArchetype string
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Show the examples retrieved for a query",
	Long: `Print the grounding text a reply would be generated from. Without a
query, each archetype is queried with a sample written for it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchArchetype, "archetype", "a", "", "only search this archetype")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "examples per archetype (overrides corpus.retrieval_limit)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	personas := core.Personas
	if searchArchetype != "" {
		p, err := core.ParsePersona(searchArchetype)
		if err != nil {
			return err
		}
		personas = []core.Persona{p}
	}
	limit := cfg.Corpus.RetrievalLimit
	if searchLimit > 0 {
		limit = searchLimit
	}

	rt, err := newCorpusRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	rule := strings.Repeat("=", 80)
	for _, p := range personas {
		query := sampleQueries[p]
		if len(args) == 1 {
			query = args[0]
		}
		fmt.Fprintln(out, rule)
		fmt.Fprintf(out, "Archetype: %s\nQuery: %q\n", p, query)
		fmt.Fprintln(out, rule)

		examples, err := rt.retriever.Search(ctx, query, p, limit)
		if err != nil {
			fmt.Fprintln(out, responder.RetrievalFailureNote(p, err))
			continue
		}
		fmt.Fprintf(out, "--- Retrieved context (top %d) ---\n\n%s\n\n", limit, responder.FormatExamples(p, examples))
	}
	return nil
}
