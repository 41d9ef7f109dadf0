package turn_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/sidekick/conversation"
	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/responder"
	"github.com/becomeliminal/sidekick/router"
	"github.com/becomeliminal/sidekick/turn"
)

type stubClassifier struct {
	label string
	err   error
	calls int
}

func (s *stubClassifier) Classify(ctx context.Context, req router.ClassifyRequest) (string, error) {
	s.calls++
	return s.label, s.err
}

type stubRetriever struct {
	fail map[core.Persona]bool
}

func (s *stubRetriever) Search(ctx context.Context, query string, p core.Persona, limit int) ([]core.Example, error) {
	if s.fail[p] {
		return nil, core.ErrRetrieval
	}
	return []core.Example{{Text: "A: example for " + p.String()}}, nil
}

type stubGenerator struct {
	reply string
	err   error
	block bool
	reqs  []responder.GenerateRequest
}

func (s *stubGenerator) Generate(ctx context.Context, req responder.GenerateRequest) (string, error) {
	s.reqs = append(s.reqs, req)
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.reply, s.err
}

type fixture struct {
	classifier *stubClassifier
	retriever  *stubRetriever
	generator  *stubGenerator
	processor  *turn.Processor
}

func newFixture(label string, opts ...turn.Option) *fixture {
	f := &fixture{
		classifier: &stubClassifier{label: label},
		retriever:  &stubRetriever{fail: map[core.Persona]bool{}},
		generator:  &stubGenerator{reply: "a grounded reply"},
	}
	f.processor = turn.NewProcessor(
		router.New(f.classifier),
		responder.New(f.retriever, f.generator),
		opts...,
	)
	return f
}

func scenarioA(t *testing.T, f *fixture) conversation.State {
	t.Helper()
	state, display, err := f.processor.Process(context.Background(), conversation.New(), "I need advice about my career", "")
	require.NoError(t, err)
	assert.Equal(t, core.WiseMentor, display.Persona)
	return state
}

func TestAutoRoutedTurnMirrorsIntoPrivateHistory(t *testing.T) {
	f := newFixture("Wise Mentor")

	state := scenarioA(t, f)

	assert.Equal(t, 2, state.SharedLen())
	assert.Equal(t, 2, state.HistoryLen(core.WiseMentor))
	assert.Zero(t, state.HistoryLen(core.ComedicRelief))
	assert.Zero(t, state.HistoryLen(core.SkepticalRealist))
	assert.Zero(t, state.HistoryLen(core.LoyalSidekick))
	assert.Equal(t, core.WiseMentor, state.LastRouted())
	assert.Empty(t, state.PendingInput())
	assert.Equal(t, core.None, state.Override())
}

func TestOverrideTurnStaysPrivate(t *testing.T) {
	f := newFixture("Wise Mentor")
	state := scenarioA(t, f)
	f.classifier.calls = 0

	next, display, err := f.processor.Process(context.Background(), state, "tell me a joke", "Comedic Relief")

	require.NoError(t, err)
	assert.Zero(t, f.classifier.calls)
	assert.Equal(t, "Comedic Relief", display.Speaker)
	assert.Equal(t, 2, next.SharedLen())
	assert.Equal(t, state.Shared(), next.Shared())
	assert.Equal(t, 2, next.HistoryLen(core.ComedicRelief))
	assert.Equal(t, 2, next.HistoryLen(core.WiseMentor))
	assert.Equal(t, core.ComedicRelief, next.LastRouted())
}

func TestUnrecognizedLabelFallsBack(t *testing.T) {
	f := newFixture("Clown")
	start := conversation.New()

	next, display, err := f.processor.Process(context.Background(), start, "hmm", "")

	require.NoError(t, err)
	assert.True(t, next.Equal(start))
	assert.Empty(t, next.PendingInput())
	assert.True(t, display.Fallback)
	assert.Equal(t, turn.SystemLabel, display.Speaker)
	assert.Equal(t, turn.FallbackNotice, display.Text)
	assert.Empty(t, f.generator.reqs)
}

func TestUnrecognizedLabelKeepsEarlierHistory(t *testing.T) {
	f := newFixture("Wise Mentor")
	state := scenarioA(t, f)
	f.classifier.label = "Clown"

	next, display, err := f.processor.Process(context.Background(), state, "hmm", "")

	require.NoError(t, err)
	assert.True(t, display.Fallback)
	assert.Equal(t, state.Shared(), next.Shared())
	for _, p := range core.Personas {
		assert.Equal(t, state.History(p), next.History(p), p.String())
	}
	assert.Empty(t, next.PendingInput())
	assert.Equal(t, core.None, next.Override())

	// Nobody spoke this turn, so the last speaker is cleared too.
	assert.Equal(t, core.WiseMentor, state.LastRouted())
	assert.Equal(t, core.None, next.LastRouted())
	assert.False(t, next.Equal(state))
}

func TestRetrievalFailureStillReplies(t *testing.T) {
	f := newFixture("Loyal Sidekick")
	f.retriever.fail[core.LoyalSidekick] = true

	next, display, err := f.processor.Process(context.Background(), conversation.New(), "I failed everyone", "")

	require.NoError(t, err)
	assert.NotEmpty(t, display.Text)
	require.Len(t, f.generator.reqs, 1)
	assert.Contains(t, f.generator.reqs[0].Examples, "Could not retrieve examples")
	assert.NotContains(t, f.generator.reqs[0].Examples, "example for")
	assert.Equal(t, 2, next.SharedLen())
}

func TestOverridePrecedence(t *testing.T) {
	for _, label := range []string{"Wise Mentor", "Clown", ""} {
		for _, p := range core.Personas {
			f := newFixture(label)
			f.classifier.err = errors.New("should not be called")

			_, display, err := f.processor.Process(context.Background(), conversation.New(), "hi", p.String())

			require.NoError(t, err)
			assert.Equal(t, p, display.Persona)
		}
	}
}

func TestInvalidOverrideFallsThroughToInference(t *testing.T) {
	f := newFixture("Skeptical Realist")

	next, display, err := f.processor.Process(context.Background(), conversation.New(), "check my plan", "Clown")

	require.NoError(t, err)
	assert.Equal(t, 1, f.classifier.calls)
	assert.Equal(t, core.SkepticalRealist, display.Persona)
	assert.Equal(t, 2, next.SharedLen())
}

func TestOverrideMustBeDisplayName(t *testing.T) {
	for _, choice := range []string{"M", "wise_mentor_db", "wise mentor"} {
		t.Run(choice, func(t *testing.T) {
			f := newFixture("Skeptical Realist")

			next, display, err := f.processor.Process(context.Background(), conversation.New(), "hello", choice)

			require.NoError(t, err)
			assert.Equal(t, 1, f.classifier.calls)
			assert.Equal(t, core.SkepticalRealist, display.Persona)
			assert.Zero(t, next.HistoryLen(core.WiseMentor))
		})
	}
}

func TestHistoryPartition(t *testing.T) {
	tests := []struct {
		name       string
		partition  conversation.Partition
		label      string
		choice     string
		wantShared int
		wantOwn    int
	}{
		{"mirror auto", conversation.PartitionMirror, "Wise Mentor", "", 2, 2},
		{"mirror override", conversation.PartitionMirror, "Wise Mentor", "Wise Mentor", 0, 2},
		{"exclusive auto", conversation.PartitionExclusive, "Wise Mentor", "", 2, 0},
		{"exclusive override", conversation.PartitionExclusive, "Wise Mentor", "Wise Mentor", 0, 2},
		{"fallback", conversation.PartitionMirror, "nobody", "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.label, turn.WithPartition(tt.partition))

			next, _, err := f.processor.Process(context.Background(), conversation.New(), "hello", tt.choice)

			require.NoError(t, err)
			assert.Equal(t, tt.wantShared, next.SharedLen())
			assert.Equal(t, tt.wantOwn, next.HistoryLen(core.WiseMentor))
			for _, p := range core.Personas[1:] {
				assert.Zero(t, next.HistoryLen(p))
			}
		})
	}
}

func TestContextAssemblyUsesTurnStartHistories(t *testing.T) {
	f := newFixture("Wise Mentor")
	state := scenarioA(t, f)
	state, _, err := f.processor.Process(context.Background(), state, "private chat", "Wise Mentor")
	require.NoError(t, err)

	f.generator.reqs = nil
	_, _, err = f.processor.Process(context.Background(), state, "follow up", "")
	require.NoError(t, err)

	require.Len(t, f.generator.reqs, 1)
	want := append(state.Shared(), state.History(core.WiseMentor)...)
	assert.Equal(t, want, f.generator.reqs[0].History)
}

func TestGenerationFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture("Wise Mentor")
	start := scenarioA(t, f)
	f.generator.err = errors.New("overloaded")

	next, display, err := f.processor.Process(context.Background(), start, "again", "")

	require.Error(t, err)
	var turnErr *turn.Error
	require.ErrorAs(t, err, &turnErr)
	assert.Equal(t, turn.StageResponding, turnErr.Stage)
	assert.ErrorIs(t, err, core.ErrGeneration)
	assert.True(t, next.Equal(start))
	assert.Equal(t, turn.Display{}, display)
}

func TestClassificationFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture("")
	f.classifier.err = errors.New("unavailable")
	start := conversation.New()

	next, _, err := f.processor.Process(context.Background(), start, "hi", "")

	assert.ErrorIs(t, err, core.ErrClassification)
	var turnErr *turn.Error
	require.ErrorAs(t, err, &turnErr)
	assert.Equal(t, turn.StageRouting, turnErr.Stage)
	assert.True(t, next.Equal(start))
}

func TestTimeoutLeavesStateUntouched(t *testing.T) {
	f := newFixture("Wise Mentor", turn.WithTimeout(20*time.Millisecond))
	f.generator.block = true
	start := conversation.New()

	next, _, err := f.processor.Process(context.Background(), start, "slow", "")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, next.Equal(start))
}

func TestCancelledTurnCommitsNothing(t *testing.T) {
	f := newFixture("Wise Mentor")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := conversation.New()

	next, _, err := f.processor.Process(ctx, start, "hi", "Wise Mentor")

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, next.Equal(start))
}

func TestStageTransitions(t *testing.T) {
	var stages []turn.Stage
	hook := turn.WithStageHook(func(s turn.Stage) { stages = append(stages, s) })

	f := newFixture("Wise Mentor", hook)
	_, _, err := f.processor.Process(context.Background(), conversation.New(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, []turn.Stage{turn.StageRouting, turn.StageResponding, turn.StageCommitting, turn.StageIdle}, stages)

	stages = nil
	f = newFixture("Clown", hook)
	_, _, err = f.processor.Process(context.Background(), conversation.New(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, []turn.Stage{turn.StageRouting, turn.StageCommitting, turn.StageIdle}, stages)
}
