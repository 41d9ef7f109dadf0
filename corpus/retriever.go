package corpus

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/core"
)

// Config holds Retriever configuration.
type Config struct {
	// MinSimilarity drops results scoring below it [0.0-1.0]. Zero keeps
	// everything the store returns, negative cosine scores included.
	// Default: 0
	MinSimilarity float32

	// CacheBytes bounds the query embedding cache. Zero disables caching.
	// Default: 16 MiB
	CacheBytes int64
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	MinSimilarity: 0,
	CacheBytes:    16 << 20,
}

// Retriever searches persona collections by query text. Query embeddings
// are cached because the same text is often searched more than once.
type Retriever struct {
	store    Store
	embedder Embedder
	config   *Config
	cache    *ristretto.Cache
	logger   *zap.Logger
}

// RetrieverOption configures the retriever.
type RetrieverOption func(*Retriever)

// WithRetrieverLogger sets the retriever's logger.
func WithRetrieverLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = l.Named("corpus")
	}
}

// NewRetriever creates a retriever. A nil config uses DefaultConfig.
func NewRetriever(store Store, embedder Embedder, config *Config, opts ...RetrieverOption) (*Retriever, error) {
	if config == nil {
		config = DefaultConfig
	}
	r := &Retriever{
		store:    store,
		embedder: embedder,
		config:   config,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if config.CacheBytes > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e5,
			MaxCost:     config.CacheBytes,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Search returns up to limit examples from persona's collection, most
// similar first. Every failure wraps core.ErrRetrieval.
func (r *Retriever) Search(ctx context.Context, query string, persona core.Persona, limit int) ([]core.Example, error) {
	if !persona.Valid() {
		return nil, fmt.Errorf("%w: unknown persona %v", core.ErrRetrieval, persona)
	}
	if limit <= 0 {
		return nil, nil
	}

	embedding, err := r.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", core.ErrRetrieval, err)
	}

	results, err := r.store.Query(ctx, persona, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", core.ErrRetrieval, persona.Collection(), err)
	}

	examples := results
	if floor := r.config.MinSimilarity; floor > 0 {
		examples = make([]core.Example, 0, len(results))
		for _, ex := range results {
			if ex.Similarity >= floor {
				examples = append(examples, ex)
			}
		}
	}

	r.logger.Debug("searched corpus",
		zap.Stringer("persona", persona),
		zap.String("query", truncate(query, 50)),
		zap.Int("results", len(results)),
		zap.Int("kept", len(examples)))
	return examples, nil
}

func (r *Retriever) embed(ctx context.Context, query string) ([]float32, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(query); ok {
			return v.([]float32), nil
		}
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(query, embedding, int64(4*len(embedding)))
	}
	return embedding, nil
}

// Close releases the embedding cache. The store is owned by the caller.
func (r *Retriever) Close() {
	if r.cache != nil {
		r.cache.Close()
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
