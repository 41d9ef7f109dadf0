package label

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/corpus"
	"github.com/becomeliminal/sidekick/corpus/cornell"
)

// ErrRateLimited is returned once a character has used all its attempts on
// rate-limited calls.
var ErrRateLimited = errors.New("rate limited")

// lowestBucket is the lowest confidence threshold the summary reports.
const lowestBucket = 5

// Labeller classifies one character. *Classifier implements it.
type Labeller interface {
	Classify(ctx context.Context, ch cornell.Character) (Result, error)
}

// Runner labels characters into a JSONL file of corpus records, resuming
// from whatever the file already holds.
type Runner struct {
	labeller    Labeller
	maxAttempts int
	retryWait   time.Duration
	logger      *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxAttempts bounds the calls made for one character while the API
// keeps rate limiting.
func WithMaxAttempts(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithRetryWait sets the pause after a rate-limited call.
func WithRetryWait(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d >= 0 {
			r.retryWait = d
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a runner around labeller.
func NewRunner(labeller Labeller, opts ...RunnerOption) *Runner {
	r := &Runner{
		labeller:    labeller,
		maxAttempts: 5,
		retryWait:   time.Minute,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("label")
	return r
}

// Summary describes the labelled file after a run. Counts cover resumed
// and newly labelled characters alike.
type Summary struct {
	Resumed  int // characters already in the file
	Labelled int // characters labelled by this run
	Failed   int // characters skipped after an error

	Characters    map[string]int // characters per label
	Conversations map[string]int // conversations per label
	Confidence    map[int]int    // characters with confidence >= key, for keys 5..10
}

func newSummary() Summary {
	return Summary{
		Characters:    make(map[string]int),
		Conversations: make(map[string]int),
		Confidence:    make(map[int]int),
	}
}

func (s *Summary) addCharacter(label string, confidence float64) {
	s.Characters[label]++
	for t := lowestBucket; t <= MaxConfidence; t++ {
		if confidence >= float64(t) {
			s.Confidence[t]++
		}
	}
}

// Write prints the summary with labels in alphabetical order.
func (s Summary) Write(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	printf("Characters: %d resumed, %d labelled, %d failed\n", s.Resumed, s.Labelled, s.Failed)
	printf("\nCharacters per label:\n")
	for _, l := range slices.Sorted(maps.Keys(s.Characters)) {
		printf("  %s: %d\n", l, s.Characters[l])
	}
	printf("\nConversations per label:\n")
	for _, l := range slices.Sorted(maps.Keys(s.Conversations)) {
		printf("  %s: %d\n", l, s.Conversations[l])
	}
	printf("\nConfidence (characters):\n")
	for t := lowestBucket; t <= MaxConfidence; t++ {
		printf("  %d+: %d\n", t, s.Confidence[t])
	}
	return err
}

type characterKey struct{ name, movie string }

// Run labels every character not yet present in outPath and appends one
// record per conversation. A character whose classification fails is
// logged and skipped; only a cancelled context stops the run early.
func (r *Runner) Run(ctx context.Context, characters []cornell.Character, outPath string) (Summary, error) {
	summary := newSummary()
	done, err := r.resume(outPath, &summary)
	if err != nil {
		return summary, err
	}
	if len(done) > 0 {
		r.logger.Info("resuming", zap.Int("characters", len(done)))
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return summary, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return summary, fmt.Errorf("open labelled output: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)

	for _, ch := range characters {
		key := characterKey{ch.Name, ch.MovieTitle}
		if done[key] {
			continue
		}

		res, err := r.classify(ctx, ch)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			r.logger.Error("skipping character",
				zap.String("character", ch.Name),
				zap.String("movie", ch.MovieTitle),
				zap.Error(err))
			continue
		}

		for i, conv := range ch.Conversations {
			rec := corpus.Record{
				CharacterName:  ch.Name,
				MovieTitle:     ch.MovieTitle,
				Genre:          ch.Genre,
				ConversationID: cornell.ConversationID(i),
				Conversation:   conv,
				Label:          res.Label,
				Confidence:     float64(res.Confidence),
			}
			if err := enc.Encode(rec); err != nil {
				return summary, fmt.Errorf("write record: %w", err)
			}
		}

		done[key] = true
		summary.Labelled++
		summary.addCharacter(res.Label, float64(res.Confidence))
		summary.Conversations[res.Label] += len(ch.Conversations)
		r.logger.Info("labelled",
			zap.String("character", ch.Name),
			zap.String("movie", ch.MovieTitle),
			zap.String("label", res.Label),
			zap.Int("confidence", res.Confidence))
	}
	return summary, nil
}

// resume counts the records already in path. A missing file starts fresh.
func (r *Runner) resume(path string, summary *Summary) (map[characterKey]bool, error) {
	done := make(map[characterKey]bool)
	records, err := corpus.LoadFile(path, r.logger)
	if errors.Is(err, os.ErrNotExist) {
		return done, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}

	for _, rec := range records {
		key := characterKey{rec.CharacterName, rec.MovieTitle}
		summary.Conversations[rec.Label]++
		if !done[key] {
			done[key] = true
			summary.Resumed++
			summary.addCharacter(rec.Label, rec.Confidence)
		}
	}
	return done, nil
}

// classify retries rate-limited calls after retryWait, up to maxAttempts
// calls in total. Any other error is returned at once.
func (r *Runner) classify(ctx context.Context, ch cornell.Character) (Result, error) {
	for attempt := 1; ; attempt++ {
		res, err := r.labeller.Classify(ctx, ch)
		if err == nil {
			return res, nil
		}
		if !IsRateLimited(err) {
			return Result{}, err
		}
		if attempt >= r.maxAttempts {
			return Result{}, fmt.Errorf("%w after %d attempts: %w", ErrRateLimited, attempt, err)
		}

		r.logger.Warn("rate limited",
			zap.String("character", ch.Name),
			zap.Int("attempts_left", r.maxAttempts-attempt),
			zap.Duration("wait", r.retryWait))
		timer := time.NewTimer(r.retryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// ExportJSON rewrites a JSONL records file as one indented JSON array and
// returns the number of records written.
func ExportJSON(jsonlPath, jsonPath string) (int, error) {
	records, err := corpus.LoadFile(jsonlPath, nil)
	if err != nil {
		return 0, err
	}
	if records == nil {
		records = []corpus.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode records: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(jsonPath), 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("write records: %w", err)
	}
	return len(records), nil
}
