package responder

import (
	"fmt"
	"strings"

	"github.com/becomeliminal/sidekick/core"
)

// NoExamples is the grounding text when retrieval found nothing.
const NoExamples = "No relevant conversation examples were found."

// Metadata keys read from retrieved examples.
const (
	MetaCharacter = "character_name"
	MetaMovie     = "movie_title"
	MetaGenres    = "genres"
)

// FormatExamples renders retrieved examples as numbered, fenced
// conversations attributed to the persona.
func FormatExamples(persona core.Persona, examples []core.Example) string {
	if len(examples) == 0 {
		return NoExamples
	}

	var b strings.Builder
	for i, ex := range examples {
		character := ex.Metadata[MetaCharacter]
		if character == "" {
			character = "Unknown Character"
		}
		genres := ex.Metadata[MetaGenres]
		if genres == "" {
			genres = "unknown genre"
		}
		fmt.Fprintf(&b, "Example %d: In the following conversation, the character '%s' acts as a '%s' in a movie with genres: %s.\n",
			i+1, character, persona, genres)
		fmt.Fprintf(&b, "Conversation:\n---\n%s\n---\n\n", ex.Text)
	}
	return b.String()
}

// RetrievalFailureNote replaces the examples when the corpus could not be searched.
func RetrievalFailureNote(persona core.Persona, err error) string {
	return fmt.Sprintf("Could not retrieve examples for %s due to an error: %v", persona, err)
}
