package corpus

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/becomeliminal/sidekick/responder"
)

// Metadata keys written alongside each document. Character, movie and
// genres match what the responder reads back.
const (
	MetaCharacter      = responder.MetaCharacter
	MetaMovie          = responder.MetaMovie
	MetaGenres         = responder.MetaGenres
	MetaConfidence     = "confidence"
	MetaConversationID = "conversation_id"
)

// Document is a conversation ready for the vector store.
type Document struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

// NewDocument builds an unembedded document from a record. Several records
// can share a conversation id, so documents get their own.
func NewDocument(r Record) Document {
	return Document{
		ID:   uuid.NewString(),
		Text: r.Conversation,
		Metadata: map[string]string{
			MetaCharacter:      r.CharacterName,
			MetaMovie:          r.MovieTitle,
			MetaGenres:         r.Genres(),
			MetaConfidence:     strconv.FormatFloat(r.Confidence, 'g', -1, 64),
			MetaConversationID: r.ConversationID,
		},
	}
}
