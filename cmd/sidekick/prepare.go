package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/sidekick/corpus/cornell"
)

var (
	prepareOutput           string
	prepareMaxConversations int
)

var prepareCmd = &cobra.Command{
	Use:   "prepare <cornell-dir>",
	Short: "Extract side characters from the Cornell Movie-Dialogs corpus",
	Long: `Read the Cornell Movie-Dialogs TSV files and collect, for every side
character, the conversations they have with one of the film's leads. Leads
are the first three credited characters.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrepare,
}

func init() {
	prepareCmd.Flags().StringVarP(&prepareOutput, "output", "o", "data/processed/side_character_personas.json", "output file")
	prepareCmd.Flags().IntVar(&prepareMaxConversations, "max-conversations", cornell.DefaultMaxConversations, "drop characters with more conversations than this")
}

func runPrepare(cmd *cobra.Command, args []string) error {
	ds, err := cornell.Load(args[0], logger)
	if err != nil {
		return err
	}
	characters := cornell.Build(ds, cornell.WithMaxConversations(prepareMaxConversations))
	if err := cornell.WriteFile(prepareOutput, characters); err != nil {
		return err
	}

	conversations := 0
	for _, c := range characters {
		conversations += len(c.Conversations)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d side characters (%d conversations) to %s\n",
		len(characters), conversations, prepareOutput)
	return nil
}
