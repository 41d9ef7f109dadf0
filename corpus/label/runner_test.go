package label_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/becomeliminal/sidekick/corpus"
	"github.com/becomeliminal/sidekick/corpus/cornell"
	"github.com/becomeliminal/sidekick/corpus/label"
)

var rateLimited = genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}

// scriptedLabeller returns the queued errors for a character before its
// result.
type scriptedLabeller struct {
	mu      sync.Mutex
	results map[string]label.Result
	errs    map[string][]error
	calls   map[string]int
}

func newScriptedLabeller() *scriptedLabeller {
	return &scriptedLabeller{
		results: map[string]label.Result{
			"DONKEY":  {Label: "Comedic Relief", Confidence: 9},
			"GANDALF": {Label: "Wise Mentor", Confidence: 6},
			"SAM":     {Label: "Loyal Sidekick", Confidence: 4},
		},
		errs:  map[string][]error{},
		calls: map[string]int{},
	}
}

func (s *scriptedLabeller) Classify(_ context.Context, ch cornell.Character) (label.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[ch.Name]++
	if queued := s.errs[ch.Name]; len(queued) > 0 {
		s.errs[ch.Name] = queued[1:]
		return label.Result{}, queued[0]
	}
	return s.results[ch.Name], nil
}

func cast() []cornell.Character {
	return []cornell.Character{
		{Name: "DONKEY", MovieTitle: "shrek", Genre: []string{"comedy"}, Conversations: []string{"a", "b"}},
		{Name: "GANDALF", MovieTitle: "the fellowship", Conversations: []string{"c"}},
		{Name: "SAM", MovieTitle: "the fellowship", Conversations: []string{"d", "e", "f"}},
	}
}

func newRunner(l label.Labeller, opts ...label.RunnerOption) *label.Runner {
	return label.NewRunner(l, append([]label.RunnerOption{label.WithRetryWait(time.Millisecond)}, opts...)...)
}

func TestRunWritesOneRecordPerConversation(t *testing.T) {
	out := filepath.Join(t.TempDir(), "labelled", "out.jsonl")
	summary, err := newRunner(newScriptedLabeller()).Run(context.Background(), cast(), out)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Labelled)
	assert.Equal(t, map[string]int{"Comedic Relief": 1, "Wise Mentor": 1, "Loyal Sidekick": 1}, summary.Characters)
	assert.Equal(t, map[string]int{"Comedic Relief": 2, "Wise Mentor": 1, "Loyal Sidekick": 3}, summary.Conversations)
	assert.Equal(t, 2, summary.Confidence[5])
	assert.Equal(t, 1, summary.Confidence[9])
	assert.Equal(t, 0, summary.Confidence[10])

	records, err := corpus.LoadFile(out, nil)
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, corpus.Record{
		CharacterName:  "DONKEY",
		MovieTitle:     "shrek",
		Genre:          []string{"comedy"},
		ConversationID: "conv2",
		Conversation:   "b",
		Label:          "Comedic Relief",
		Confidence:     9,
	}, records[1])
}

func TestRunResumesFromExistingOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.jsonl")
	first := newScriptedLabeller()
	_, err := newRunner(first).Run(context.Background(), cast()[:2], out)
	require.NoError(t, err)

	second := newScriptedLabeller()
	summary, err := newRunner(second).Run(context.Background(), cast(), out)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"SAM": 1}, second.calls)
	assert.Equal(t, 2, summary.Resumed)
	assert.Equal(t, 1, summary.Labelled)
	assert.Equal(t, map[string]int{"Comedic Relief": 2, "Wise Mentor": 1, "Loyal Sidekick": 3}, summary.Conversations)
	assert.Equal(t, 1, summary.Characters["Comedic Relief"])

	records, err := corpus.LoadFile(out, nil)
	require.NoError(t, err)
	assert.Len(t, records, 6)
}

func TestRunRetriesRateLimits(t *testing.T) {
	l := newScriptedLabeller()
	l.errs["DONKEY"] = []error{rateLimited, rateLimited}

	summary, err := newRunner(l, label.WithMaxAttempts(3)).Run(context.Background(), cast(), filepath.Join(t.TempDir(), "out.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 3, l.calls["DONKEY"])
	assert.Equal(t, 3, summary.Labelled)
	assert.Zero(t, summary.Failed)
}

func TestRunSkipsCharacterAfterMaxAttempts(t *testing.T) {
	l := newScriptedLabeller()
	l.errs["DONKEY"] = []error{rateLimited, rateLimited, rateLimited}

	out := filepath.Join(t.TempDir(), "out.jsonl")
	summary, err := newRunner(l, label.WithMaxAttempts(2)).Run(context.Background(), cast(), out)
	require.NoError(t, err)
	assert.Equal(t, 2, l.calls["DONKEY"])
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Labelled)

	// The skipped character is picked up by the next run.
	l.errs["DONKEY"] = nil
	summary, err = newRunner(l).Run(context.Background(), cast(), out)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Labelled)
	assert.Equal(t, 2, summary.Resumed)
}

func TestRunDoesNotRetryOtherErrors(t *testing.T) {
	l := newScriptedLabeller()
	l.errs["GANDALF"] = []error{label.ErrInvalidResult, label.ErrInvalidResult}

	summary, err := newRunner(l).Run(context.Background(), cast(), filepath.Join(t.TempDir(), "out.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 1, l.calls["GANDALF"])
	assert.Equal(t, 1, summary.Failed)
	assert.NotContains(t, summary.Characters, "Wise Mentor")
}

func TestRunStopsWhenCancelledDuringWait(t *testing.T) {
	l := newScriptedLabeller()
	l.errs["DONKEY"] = []error{rateLimited}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r := label.NewRunner(l, label.WithRetryWait(time.Hour))

	_, err := r.Run(ctx, cast(), filepath.Join(t.TempDir(), "out.jsonl"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Zero(t, l.calls["GANDALF"])
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	jsonl := filepath.Join(dir, "out.jsonl")
	_, err := newRunner(newScriptedLabeller()).Run(context.Background(), cast(), jsonl)
	require.NoError(t, err)

	n, err := label.ExportJSON(jsonl, filepath.Join(dir, "final", "out.json"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	data, err := os.ReadFile(filepath.Join(dir, "final", "out.json"))
	require.NoError(t, err)
	var records []corpus.Record
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Len(t, records, 6)
}

func TestSummaryWrite(t *testing.T) {
	summary, err := newRunner(newScriptedLabeller()).Run(context.Background(), cast(), filepath.Join(t.TempDir(), "out.jsonl"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, summary.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "0 resumed, 3 labelled, 0 failed")
	assert.Contains(t, out, "Characters per label:\n  Comedic Relief: 1\n  Loyal Sidekick: 1\n  Wise Mentor: 1\n")
	assert.Contains(t, out, "  Loyal Sidekick: 3\n")
	assert.Contains(t, out, "  5+: 2\n")
}
