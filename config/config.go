// Package config loads sidekick configuration from defaults, an optional
// YAML file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/sidekick/conversation"
)

// Embedding providers.
const (
	ProviderGenAI = "genai"
	ProviderMock  = "mock"
	ProviderONNX  = "onnx"
)

// Config holds all sidekick configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Label     LabelConfig     `yaml:"label"`
	Turn      TurnConfig      `yaml:"turn"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AnthropicConfig configures reply generation and routing.
type AnthropicConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	ClassifierModel string  `yaml:"classifier_model"` // empty uses Model
	MaxTokens       int64   `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
}

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Provider   string     `yaml:"provider"` // genai, mock, onnx
	APIKey     string     `yaml:"api_key"`
	Model      string     `yaml:"model"`
	Dimensions int        `yaml:"dimensions"`
	ONNX       ONNXConfig `yaml:"onnx"`
}

// ONNXConfig locates a local embedding model.
type ONNXConfig struct {
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	LibraryPath   string `yaml:"library_path"`
}

// CorpusConfig configures the example corpus.
type CorpusConfig struct {
	DBPath         string  `yaml:"db_path"` // empty keeps the corpus in memory
	Compress       bool    `yaml:"compress"`
	RetrievalLimit int     `yaml:"retrieval_limit"`
	MinSimilarity  float32 `yaml:"min_similarity"`
	MinConfidence  float64 `yaml:"min_confidence"`
	CacheBytes     int64   `yaml:"cache_bytes"`
}

// LabelConfig configures corpus labelling. It uses the embedding API key.
type LabelConfig struct {
	Model       string        `yaml:"model"`
	MaxAttempts int           `yaml:"max_attempts"` // per character, counting rate-limited calls
	RetryWait   time.Duration `yaml:"retry_wait"`
}

// TurnConfig configures turn processing.
type TurnConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Partition string        `yaml:"partition"` // mirror, exclusive
}

// ServerConfig configures the WebSocket front end.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxSessions    int    `yaml:"max_sessions"`
	TranscriptPath string `yaml:"transcript_path"` // empty disables transcripts
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderGenAI,
			Model:      "text-embedding-004",
			Dimensions: 768,
		},
		Corpus: CorpusConfig{
			DBPath:         filepath.Join("data", "vector_stores"),
			RetrievalLimit: 5,
			MinConfidence:  8,
			CacheBytes:     16 << 20,
		},
		Label: LabelConfig{
			Model:       "gemini-2.0-flash",
			MaxAttempts: 5,
			RetryWait:   time.Minute,
		},
		Turn: TurnConfig{
			Timeout:   2 * time.Minute,
			Partition: conversation.PartitionMirror.String(),
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxSessions: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file. Variables from a .env file in the working
// directory are loaded without overriding the environment, then the
// environment overrides everything.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Optional: will use system env vars if not found
	_ = godotenv.Load()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("ANTHROPIC_API_KEY", &c.Anthropic.APIKey)
	setString("GEMINI_API_KEY", &c.Embedding.APIKey)
	setString("SIDEKICK_MODEL", &c.Anthropic.Model)
	setString("SIDEKICK_CLASSIFIER_MODEL", &c.Anthropic.ClassifierModel)
	setString("SIDEKICK_EMBEDDER", &c.Embedding.Provider)
	setString("SIDEKICK_CORPUS_DB", &c.Corpus.DBPath)
	setString("SIDEKICK_LABEL_MODEL", &c.Label.Model)
	setString("SIDEKICK_ADDR", &c.Server.Addr)
	setString("SIDEKICK_TRANSCRIPT", &c.Server.TranscriptPath)
	setString("SIDEKICK_PARTITION", &c.Turn.Partition)
	setString("SIDEKICK_LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("SIDEKICK_TURN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SIDEKICK_TURN_TIMEOUT: %w", err)
		}
		c.Turn.Timeout = d
	}
	if v := os.Getenv("SIDEKICK_MAX_SESSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SIDEKICK_MAX_SESSIONS: %w", err)
		}
		c.Server.MaxSessions = n
	}
	return nil
}

// Partition returns the configured history partition policy.
func (c *Config) Partition() conversation.Partition {
	p, _ := conversation.ParsePartition(c.Turn.Partition)
	return p
}

// Validate rejects nonsensical values.
func (c *Config) Validate() error {
	var errs []error
	if c.Anthropic.Model == "" {
		errs = append(errs, errors.New("anthropic.model is required"))
	}
	if c.Anthropic.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("anthropic.max_tokens must be positive, got %d", c.Anthropic.MaxTokens))
	}
	if c.Anthropic.Temperature < 0 || c.Anthropic.Temperature > 1 {
		errs = append(errs, fmt.Errorf("anthropic.temperature must be within [0, 1], got %g", c.Anthropic.Temperature))
	}
	switch c.Embedding.Provider {
	case ProviderGenAI, ProviderMock, ProviderONNX:
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not one of genai, mock, onnx", c.Embedding.Provider))
	}
	if c.Corpus.RetrievalLimit <= 0 {
		errs = append(errs, fmt.Errorf("corpus.retrieval_limit must be positive, got %d", c.Corpus.RetrievalLimit))
	}
	if c.Corpus.MinSimilarity < 0 || c.Corpus.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("corpus.min_similarity must be within [0, 1], got %g", c.Corpus.MinSimilarity))
	}
	if c.Corpus.CacheBytes < 0 {
		errs = append(errs, fmt.Errorf("corpus.cache_bytes must not be negative"))
	}
	if c.Label.Model == "" {
		errs = append(errs, errors.New("label.model is required"))
	}
	if c.Label.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("label.max_attempts must be positive, got %d", c.Label.MaxAttempts))
	}
	if c.Label.RetryWait < 0 {
		errs = append(errs, fmt.Errorf("label.retry_wait must not be negative"))
	}
	if c.Turn.Timeout < 0 {
		errs = append(errs, fmt.Errorf("turn.timeout must not be negative"))
	}
	if _, ok := conversation.ParsePartition(c.Turn.Partition); !ok {
		errs = append(errs, fmt.Errorf("turn.partition %q is not one of mirror, exclusive", c.Turn.Partition))
	}
	if c.Server.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions must be positive, got %d", c.Server.MaxSessions))
	}
	return errors.Join(errs...)
}
