// Package router decides which persona answers a turn.
package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/conversation"
	"github.com/becomeliminal/sidekick/core"
)

// HistoryWindow is how many trailing shared messages the classifier sees.
const HistoryWindow = 4

// NoHistory is the context summary used when the shared history is empty.
const NoHistory = "No previous conversation history."

// Reason explains how a decision was reached.
type Reason string

const (
	ReasonOverride   Reason = "override"
	ReasonClassified Reason = "classified"
	ReasonFallback   Reason = "fallback"
)

// Decision is the outcome of routing one turn.
type Decision struct {
	Persona core.Persona
	Reason  Reason
	// Label is the raw classifier answer; empty for overrides.
	Label string
}

// Overridden reports whether the user chose the persona explicitly.
func (d Decision) Overridden() bool {
	return d.Reason == ReasonOverride
}

// ClassifyRequest is everything the intent classifier is allowed to see.
type ClassifyRequest struct {
	Context string
	Input   string
	Options []core.Persona
}

// Classifier picks the best-fit persona label for a turn. An empty label
// means undecided.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (string, error)
}

// Router holds no per-turn state: a decision depends only on the override,
// the shared history and the input.
type Router struct {
	classifier Classifier
	logger     *zap.Logger
}

// Option configures the router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		r.logger = l.Named("router")
	}
}

// New creates a router backed by the given classifier.
func New(classifier Classifier, opts ...Option) *Router {
	r := &Router{
		classifier: classifier,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decide selects the persona for input. A valid override wins without a
// classifier call. Otherwise the classifier sees the recent shared history;
// an answer outside the catalog yields a fallback decision, while a failed
// call is returned as an error.
func (r *Router) Decide(ctx context.Context, state conversation.State, input string) (Decision, error) {
	if p := state.Override(); p.Valid() {
		r.logger.Debug("routing by override", zap.Stringer("persona", p))
		return Decision{Persona: p, Reason: ReasonOverride}, nil
	}

	label, err := r.classifier.Classify(ctx, ClassifyRequest{
		Context: Summarize(state.Shared()),
		Input:   input,
		Options: core.Personas,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", core.ErrClassification, err)
	}

	p, ok := core.PersonaByLabel(label)
	if !ok {
		r.logger.Info("classifier gave no usable persona", zap.String("label", label))
		return Decision{Persona: core.None, Reason: ReasonFallback, Label: label}, nil
	}

	r.logger.Debug("routing by classifier", zap.Stringer("persona", p))
	return Decision{Persona: p, Reason: ReasonClassified, Label: label}, nil
}

// Summarize renders the last HistoryWindow messages as speaker-labelled
// lines, oldest first.
func Summarize(history []core.Message) string {
	if len(history) == 0 {
		return NoHistory
	}
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Speaker.Label(), m.Content))
	}
	return strings.Join(lines, "\n")
}
