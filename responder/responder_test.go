package responder_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/responder"
)

type stubRetriever struct {
	examples []core.Example
	err      error
	queries  []string
}

func (s *stubRetriever) Search(ctx context.Context, query string, persona core.Persona, limit int) ([]core.Example, error) {
	s.queries = append(s.queries, query)
	return s.examples, s.err
}

type stubGenerator struct {
	reply string
	err   error
	reqs  []responder.GenerateRequest
}

func (s *stubGenerator) Generate(ctx context.Context, req responder.GenerateRequest) (string, error) {
	s.reqs = append(s.reqs, req)
	return s.reply, s.err
}

func TestRespond_CombinesSharedThenPrivate(t *testing.T) {
	retriever := &stubRetriever{}
	gen := &stubGenerator{reply: "Follow your curiosity."}
	r := responder.New(retriever, gen)

	shared := []core.Message{core.UserMessage("s1"), core.PersonaMessage(core.WiseMentor, "s2")}
	private := []core.Message{core.UserMessage("p1"), core.PersonaMessage(core.WiseMentor, "p2")}

	reply, err := r.Respond(context.Background(), core.WiseMentor, "what now?", shared, private)

	require.NoError(t, err)
	assert.Equal(t, "Follow your curiosity.", reply)
	require.Len(t, gen.reqs, 1)
	assert.Equal(t, append(append([]core.Message{}, shared...), private...), gen.reqs[0].History)
	assert.Equal(t, "what now?", gen.reqs[0].Input)
	assert.Equal(t, responder.Instructions(core.WiseMentor), gen.reqs[0].Instructions)
	assert.Equal(t, []string{"what now?"}, retriever.queries)
}

func TestRespond_RetrievalErrorBecomesNote(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("collection missing")}
	gen := &stubGenerator{reply: "I'm with you."}
	r := responder.New(retriever, gen)

	reply, err := r.Respond(context.Background(), core.LoyalSidekick, "rough day", nil, nil)

	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	require.Len(t, gen.reqs, 1)
	assert.Contains(t, gen.reqs[0].Examples, "Could not retrieve examples for Loyal Sidekick")
	assert.NotContains(t, gen.reqs[0].Examples, "Example 1")
}

func TestRespond_RetrievalErrorAfterCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &stubGenerator{reply: "x"}
	r := responder.New(&stubRetriever{err: context.Canceled}, gen)

	_, err := r.Respond(ctx, core.LoyalSidekick, "rough day", nil, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, gen.reqs)
}

func TestRespond_GenerationErrorIsFatal(t *testing.T) {
	cause := errors.New("overloaded")
	r := responder.New(&stubRetriever{}, &stubGenerator{err: cause})

	_, err := r.Respond(context.Background(), core.ComedicRelief, "joke", nil, nil)

	assert.ErrorIs(t, err, core.ErrGeneration)
	assert.ErrorIs(t, err, cause)
}

func TestRespond_EmptyReplyUsesPersonaFallback(t *testing.T) {
	for _, p := range core.Personas {
		r := responder.New(&stubRetriever{}, &stubGenerator{reply: "  \n"})

		reply, err := r.Respond(context.Background(), p, "anything", nil, nil)

		require.NoError(t, err)
		assert.Equal(t, p.Fallback(), reply)
	}
}

func TestRespond_RejectsUnknownPersona(t *testing.T) {
	r := responder.New(&stubRetriever{}, &stubGenerator{reply: "x"})

	_, err := r.Respond(context.Background(), core.None, "anything", nil, nil)

	assert.Error(t, err)
}

func TestRespond_LimitOption(t *testing.T) {
	var gotLimit int
	retriever := retrieverFunc(func(ctx context.Context, query string, p core.Persona, limit int) ([]core.Example, error) {
		gotLimit = limit
		return nil, nil
	})
	r := responder.New(retriever, &stubGenerator{reply: "x"}, responder.WithLimit(3))

	_, err := r.Respond(context.Background(), core.WiseMentor, "q", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, gotLimit)
}

type retrieverFunc func(ctx context.Context, query string, p core.Persona, limit int) ([]core.Example, error)

func (f retrieverFunc) Search(ctx context.Context, query string, p core.Persona, limit int) ([]core.Example, error) {
	return f(ctx, query, p, limit)
}

func TestFormatExamples(t *testing.T) {
	assert.Equal(t, responder.NoExamples, responder.FormatExamples(core.WiseMentor, nil))

	out := responder.FormatExamples(core.WiseMentor, []core.Example{
		{Text: "OBI: Use the force.", Metadata: map[string]string{responder.MetaCharacter: "OBI", responder.MetaGenres: "sci-fi,adventure"}},
		{Text: "???: hm"},
	})

	assert.Contains(t, out, "Example 1: In the following conversation, the character 'OBI' acts as a 'Wise Mentor' in a movie with genres: sci-fi,adventure.")
	assert.Contains(t, out, "Conversation:\n---\nOBI: Use the force.\n---")
	assert.Contains(t, out, "Example 2: In the following conversation, the character 'Unknown Character'")
	assert.Equal(t, 2, strings.Count(out, "Conversation:"))
}

func TestInstructionsCoverEveryPersona(t *testing.T) {
	for _, p := range core.Personas {
		assert.Contains(t, responder.Instructions(p), p.String())
	}
	assert.Empty(t, responder.Instructions(core.None))
}
