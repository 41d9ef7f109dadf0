package chromem

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/corpus"
)

// ChromemStore wraps chromem-go for vector storage.
// chromem-go is a pure Go, embedded vector database.
type ChromemStore struct {
	db          *chromem.DB
	collections map[core.Persona]*chromem.Collection // Per-persona collections
	mu          sync.RWMutex
	logger      *zap.Logger
}

// Option configures the store.
type Option func(*ChromemStore)

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *ChromemStore) {
		s.logger = l.Named("chromem")
	}
}

// New creates an in-memory store.
func New(opts ...Option) (*ChromemStore, error) {
	return newStore(chromem.NewDB(), opts...), nil
}

// NewPersistent creates a store backed by files under path. Collections
// written by an earlier run are picked up again.
func NewPersistent(path string, compress bool, opts ...Option) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return newStore(db, opts...), nil
}

func newStore(db *chromem.DB, opts ...Option) *ChromemStore {
	s := &ChromemStore{
		db:          db,
		collections: make(map[core.Persona]*chromem.Collection),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// collection returns the persona's collection, creating it when missing.
func (s *ChromemStore) collection(p core.Persona) (*chromem.Collection, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("no collection for persona %v", p)
	}

	s.mu.RLock()
	col, exists := s.collections[p]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[p]; exists {
		return col, nil
	}

	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := s.db.GetOrCreateCollection(p.Collection(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", p.Collection(), err)
	}
	s.collections[p] = col
	return col, nil
}

// Reset drops the persona's collection and creates an empty one.
func (s *ChromemStore) Reset(ctx context.Context, p core.Persona) error {
	if !p.Valid() {
		return fmt.Errorf("no collection for persona %v", p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(p.Collection()); err != nil {
		return fmt.Errorf("drop collection %s: %w", p.Collection(), err)
	}
	col, err := s.db.CreateCollection(p.Collection(), nil, nil)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", p.Collection(), err)
	}
	s.collections[p] = col
	s.logger.Debug("collection reset", zap.String("collection", p.Collection()))
	return nil
}

// Add inserts embedded documents into the persona's collection.
func (s *ChromemStore) Add(ctx context.Context, p core.Persona, docs []corpus.Document) error {
	col, err := s.collection(p)
	if err != nil {
		return err
	}

	cdocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		if len(d.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", d.ID)
		}
		cdocs = append(cdocs, chromem.Document{
			ID:        d.ID,
			Content:   d.Text,
			Embedding: d.Embedding,
			Metadata:  d.Metadata,
		})
	}

	if err := col.AddDocuments(ctx, cdocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	s.logger.Debug("documents added",
		zap.String("collection", p.Collection()),
		zap.Int("count", len(cdocs)))
	return nil
}

// Query retrieves examples by vector similarity.
func (s *ChromemStore) Query(ctx context.Context, p core.Persona, embedding []float32, limit int) ([]core.Example, error) {
	col, err := s.collection(p)
	if err != nil {
		return nil, err
	}

	// chromem-go requires 0 < nResults <= collection size
	n := min(limit, col.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	examples := make([]core.Example, 0, len(results))
	for _, r := range results {
		examples = append(examples, core.Example{
			Text:       r.Content,
			Source:     p.Collection(),
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		})
	}
	return examples, nil
}

// Count reports the number of documents in the persona's collection.
func (s *ChromemStore) Count(p core.Persona) int {
	col, err := s.collection(p)
	if err != nil {
		return 0
	}
	return col.Count()
}

// Close releases resources.
func (s *ChromemStore) Close() error {
	// chromem-go writes through on every add, nothing to flush
	return nil
}
