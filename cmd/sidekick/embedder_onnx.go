//go:build onnx

package main

import (
	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/config"
	"github.com/becomeliminal/sidekick/corpus"
	"github.com/becomeliminal/sidekick/corpus/embedder/onnx"
)

// The model fixes its own output size, so Dimensions from the config is not
// passed through.
func newONNXEmbedder(ec config.EmbeddingConfig, logger *zap.Logger) (corpus.Embedder, func() error, error) {
	emb, err := onnx.New(onnx.Config{
		ModelPath:         ec.ONNX.ModelPath,
		TokenizerPath:     ec.ONNX.TokenizerPath,
		SharedLibraryPath: ec.ONNX.LibraryPath,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return emb, emb.Close, nil
}
