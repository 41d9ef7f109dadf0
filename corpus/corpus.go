package corpus

import (
	"context"
	"strings"

	"github.com/becomeliminal/sidekick/core"
)

// Record is one labelled conversation. Label names the persona the
// character was classified as; Confidence is the classifier's 1-10 score.
type Record struct {
	CharacterName  string   `json:"character_name"`
	MovieTitle     string   `json:"movie_title"`
	Genre          []string `json:"genre"`
	ConversationID string   `json:"conversation_id"`
	Conversation   string   `json:"conversation"`
	Label          string   `json:"label"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning,omitempty"`
}

// Persona returns the persona named by the record's label.
func (r Record) Persona() (core.Persona, bool) {
	return core.PersonaByLabel(r.Label)
}

// Genres joins the record's genres the way they are stored.
func (r Record) Genres() string {
	return strings.Join(r.Genre, ",")
}

// Store is the vector storage backend. Collections are keyed by persona.
type Store interface {
	// Reset drops the persona's collection and creates an empty one.
	Reset(ctx context.Context, persona core.Persona) error

	// Add inserts documents; every document must carry its embedding.
	Add(ctx context.Context, persona core.Persona, docs []Document) error

	// Query returns up to limit examples ordered by similarity, highest first.
	Query(ctx context.Context, persona core.Persona, embedding []float32, limit int) ([]core.Example, error)

	// Count reports how many documents the persona's collection holds.
	Count(persona core.Persona) int

	Close() error
}

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// BatchEmbedder is implemented by embedders that can embed many texts in
// one call. The builder uses it when available.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
