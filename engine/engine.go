// Package engine backs reply generation and turn routing with the Anthropic
// Messages API.
package engine

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Defaults applied when no option overrides them.
const (
	DefaultModel       = "claude-sonnet-4-20250514"
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
)

// MessageClient is the part of the Anthropic client the engine calls.
// *anthropic.MessageService satisfies it.
type MessageClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Engine generates persona replies and classifies turns. It implements
// responder.Generator and router.Classifier.
type Engine struct {
	client          MessageClient
	model           string
	classifierModel string
	maxTokens       int64
	temperature     float64
	requestOptions  []option.RequestOption
	logger          *zap.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithModel sets the model used for replies.
func WithModel(model string) Option {
	return func(e *Engine) {
		if model != "" {
			e.model = model
		}
	}
}

// WithClassifierModel sets the model used for routing. Defaults to the
// reply model.
func WithClassifierModel(model string) Option {
	return func(e *Engine) {
		e.classifierModel = model
	}
}

// WithMaxTokens sets the maximum response tokens.
func WithMaxTokens(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature for replies. Routing always
// runs at zero.
func WithTemperature(t float64) Option {
	return func(e *Engine) {
		e.temperature = t
	}
}

// WithRequestOptions adds options to the Anthropic client built by New,
// such as a base URL or HTTP client. NewEngine ignores them.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(e *Engine) {
		e.requestOptions = append(e.requestOptions, opts...)
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l.Named("engine")
	}
}

// NewEngine creates an engine over the given message client.
func NewEngine(client MessageClient, opts ...Option) *Engine {
	e := &Engine{
		client:      client,
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.classifierModel == "" {
		e.classifierModel = e.model
	}
	return e
}

// New creates an engine talking to the Anthropic API with apiKey. Each
// classify or generate call is a single request: the client's automatic
// retries are disabled and failures go straight to the caller.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	e := NewEngine(nil, opts...)
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, e.requestOptions...)
	client := anthropic.NewClient(reqOpts...)
	e.client = &client.Messages
	return e, nil
}
