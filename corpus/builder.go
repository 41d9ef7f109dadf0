package corpus

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/becomeliminal/sidekick/core"
)

// DefaultMinConfidence is the lowest classifier confidence indexed.
const DefaultMinConfidence = 8

// BuildReport summarises a build.
type BuildReport struct {
	// Indexed counts documents inserted per persona.
	Indexed map[core.Persona]int
	// Skipped counts records with a known label but too little confidence.
	Skipped int
	// Unlabelled counts records whose label names no persona.
	Unlabelled int
}

// Builder rebuilds persona collections from labelled records.
type Builder struct {
	store         Store
	embedder      Embedder
	minConfidence float64
	batchSize     int
	logger        *zap.Logger
}

// BuilderOption configures the builder.
type BuilderOption func(*Builder)

// WithMinConfidence sets the confidence threshold.
func WithMinConfidence(c float64) BuilderOption {
	return func(b *Builder) {
		b.minConfidence = c
	}
}

// WithBatchSize sets how many texts go to the embedder per call.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithBuilderLogger sets the builder's logger.
func WithBuilderLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l.Named("corpus")
	}
}

// NewBuilder creates a builder.
func NewBuilder(store Store, embedder Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		store:         store,
		embedder:      embedder,
		minConfidence: DefaultMinConfidence,
		batchSize:     100,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build drops and recreates every persona's collection, then indexes the
// records labelled with that persona at or above the confidence threshold.
// Personas build in parallel; the first failure cancels the rest.
func (b *Builder) Build(ctx context.Context, records []Record) (BuildReport, error) {
	report := BuildReport{Indexed: make(map[core.Persona]int, len(core.Personas))}
	byPersona := make(map[core.Persona][]Record, len(core.Personas))
	for _, r := range records {
		p, ok := r.Persona()
		if !ok {
			report.Unlabelled++
			continue
		}
		if r.Confidence < b.minConfidence {
			report.Skipped++
			continue
		}
		byPersona[p] = append(byPersona[p], r)
	}

	counts := make([]int, len(core.Personas))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range core.Personas {
		g.Go(func() error {
			n, err := b.buildPersona(gctx, p, byPersona[p])
			if err != nil {
				return fmt.Errorf("build %s: %w", p, err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for i, p := range core.Personas {
		report.Indexed[p] = counts[i]
	}
	b.logger.Info("corpus built",
		zap.Int("records", len(records)),
		zap.Int("skipped", report.Skipped),
		zap.Int("unlabelled", report.Unlabelled))
	return report, nil
}

func (b *Builder) buildPersona(ctx context.Context, p core.Persona, records []Record) (int, error) {
	if err := b.store.Reset(ctx, p); err != nil {
		return 0, fmt.Errorf("reset collection: %w", err)
	}
	if len(records) == 0 {
		b.logger.Info("no records for persona", zap.Stringer("persona", p))
		return 0, nil
	}

	for start := 0; start < len(records); start += b.batchSize {
		end := min(start+b.batchSize, len(records))
		docs := make([]Document, 0, end-start)
		texts := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			docs = append(docs, NewDocument(r))
			texts = append(texts, r.Conversation)
		}

		embeddings, err := b.embed(ctx, texts)
		if err != nil {
			return start, fmt.Errorf("embed: %w", err)
		}
		for i := range docs {
			docs[i].Embedding = embeddings[i]
		}
		if err := b.store.Add(ctx, p, docs); err != nil {
			return start, fmt.Errorf("add documents: %w", err)
		}
	}

	b.logger.Info("persona indexed",
		zap.Stringer("persona", p),
		zap.String("collection", p.Collection()),
		zap.Int("documents", len(records)))
	return len(records), nil
}

func (b *Builder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if be, ok := b.embedder.(BatchEmbedder); ok {
		out, err := be.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(out) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(out), len(texts))
		}
		return out, nil
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := b.embedder.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
