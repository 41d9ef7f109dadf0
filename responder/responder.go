// Package responder produces a persona's reply grounded in retrieved
// corpus examples and the conversation so far.
package responder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/core"
)

// DefaultLimit is how many examples are retrieved per reply.
const DefaultLimit = 5

// Retriever searches a persona's example corpus.
type Retriever interface {
	Search(ctx context.Context, query string, persona core.Persona, limit int) ([]core.Example, error)
}

// GenerateRequest is the full grounding handed to the generator.
type GenerateRequest struct {
	Persona      core.Persona
	Instructions string
	History      []core.Message
	Examples     string
	Input        string
}

// Generator turns grounding into reply text.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Responder answers a turn as a given persona.
type Responder struct {
	retriever Retriever
	generator Generator
	limit     int
	logger    *zap.Logger
}

// Option configures the responder.
type Option func(*Responder)

// WithLimit sets how many examples are retrieved.
func WithLimit(n int) Option {
	return func(r *Responder) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithLogger sets the responder's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Responder) {
		r.logger = l.Named("responder")
	}
}

// New creates a responder.
func New(retriever Retriever, generator Generator, opts ...Option) *Responder {
	r := &Responder{
		retriever: retriever,
		generator: generator,
		limit:     DefaultLimit,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond produces persona's reply to input. The generator sees the shared
// history followed by the persona's private history. Retrieval failures
// degrade to a note in the grounding; generation failures are returned.
// The reply is never empty.
func (r *Responder) Respond(ctx context.Context, persona core.Persona, input string, shared, private []core.Message) (string, error) {
	if !persona.Valid() {
		return "", fmt.Errorf("respond: unknown persona %v", persona)
	}

	history := make([]core.Message, 0, len(shared)+len(private))
	history = append(history, shared...)
	history = append(history, private...)

	examples, err := r.retriever.Search(ctx, input, persona, r.limit)
	var grounding string
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		r.logger.Warn("retrieval failed, continuing without examples",
			zap.Stringer("persona", persona),
			zap.Error(err))
		grounding = RetrievalFailureNote(persona, err)
	} else {
		r.logger.Debug("retrieved examples",
			zap.Stringer("persona", persona),
			zap.Int("count", len(examples)))
		grounding = FormatExamples(persona, examples)
	}

	reply, err := r.generator.Generate(ctx, GenerateRequest{
		Persona:      persona,
		Instructions: Instructions(persona),
		History:      history,
		Examples:     grounding,
		Input:        input,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrGeneration, err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return persona.Fallback(), nil
	}
	return reply, nil
}
