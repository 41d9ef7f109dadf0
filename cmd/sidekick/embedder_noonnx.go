//go:build !onnx

package main

import (
	"errors"

	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/config"
	"github.com/becomeliminal/sidekick/corpus"
)

func newONNXEmbedder(config.EmbeddingConfig, *zap.Logger) (corpus.Embedder, func() error, error) {
	return nil, nil, errors.New("onnx embedder not available: rebuild with -tags onnx")
}
