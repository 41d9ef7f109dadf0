package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/config"
	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/corpus"
	"github.com/becomeliminal/sidekick/corpus/embedder/genai"
	"github.com/becomeliminal/sidekick/corpus/embedder/mock"
	chromemstore "github.com/becomeliminal/sidekick/corpus/store/chromem"
	"github.com/becomeliminal/sidekick/engine"
	"github.com/becomeliminal/sidekick/responder"
	"github.com/becomeliminal/sidekick/router"
	"github.com/becomeliminal/sidekick/session"
	"github.com/becomeliminal/sidekick/turn"
)

// runtime owns the long-lived components built from the config.
type runtime struct {
	embedder  corpus.Embedder
	store     corpus.Store
	retriever *corpus.Retriever
	closers   []func() error
}

func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}

// newCorpusRuntime opens the embedder, the vector store and the retriever.
func newCorpusRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{}

	emb, closeEmb, err := newEmbedder(ctx, cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	rt.embedder = emb
	if closeEmb != nil {
		rt.closers = append(rt.closers, closeEmb)
	}

	var store *chromemstore.ChromemStore
	if cfg.Corpus.DBPath == "" {
		store, err = chromemstore.New(chromemstore.WithLogger(logger))
	} else {
		store, err = chromemstore.NewPersistent(cfg.Corpus.DBPath, cfg.Corpus.Compress, chromemstore.WithLogger(logger))
	}
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	rt.store = store
	rt.closers = append(rt.closers, store.Close)

	retriever, err := corpus.NewRetriever(store, emb, &corpus.Config{
		MinSimilarity: cfg.Corpus.MinSimilarity,
		CacheBytes:    cfg.Corpus.CacheBytes,
	}, corpus.WithRetrieverLogger(logger))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create retriever: %w", err)
	}
	rt.retriever = retriever
	rt.closers = append(rt.closers, func() error {
		retriever.Close()
		return nil
	})

	for _, p := range core.Personas {
		logger.Debug("corpus collection",
			zap.String("collection", p.Collection()),
			zap.Int("documents", store.Count(p)))
	}
	return rt, nil
}

func newEmbedder(ctx context.Context, ec config.EmbeddingConfig, logger *zap.Logger) (corpus.Embedder, func() error, error) {
	switch ec.Provider {
	case config.ProviderMock:
		if ec.Dimensions > 0 {
			return mock.NewWithDimensions(ec.Dimensions), nil, nil
		}
		return mock.New(), nil, nil
	case config.ProviderGenAI:
		emb, err := genai.New(ctx, ec.APIKey,
			genai.WithModel(ec.Model),
			genai.WithDimensions(ec.Dimensions))
		if err != nil {
			return nil, nil, err
		}
		return emb, nil, nil
	case config.ProviderONNX:
		return newONNXEmbedder(ec, logger)
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
}

// newSessions wires the full turn pipeline behind a session manager.
func newSessions(cfg *config.Config, retriever responder.Retriever, logger *zap.Logger) (*session.Manager, error) {
	eng, err := engine.New(cfg.Anthropic.APIKey,
		engine.WithModel(cfg.Anthropic.Model),
		engine.WithClassifierModel(cfg.Anthropic.ClassifierModel),
		engine.WithMaxTokens(cfg.Anthropic.MaxTokens),
		engine.WithTemperature(cfg.Anthropic.Temperature),
		engine.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	processor := turn.NewProcessor(
		router.New(eng, router.WithLogger(logger)),
		responder.New(retriever, eng,
			responder.WithLimit(cfg.Corpus.RetrievalLimit),
			responder.WithLogger(logger)),
		turn.WithPartition(cfg.Partition()),
		turn.WithTimeout(cfg.Turn.Timeout),
		turn.WithLogger(logger),
		turn.WithStageHook(func(s turn.Stage) {
			logger.Debug("turn stage", zap.Stringer("stage", s))
		}),
	)

	return session.NewManager(processor,
		session.WithMaxSessions(cfg.Server.MaxSessions),
		session.WithLogger(logger),
		session.WithEvictHook(func(id string) {
			logger.Info("session evicted", zap.String("session_id", id))
		}))
}
