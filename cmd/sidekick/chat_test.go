package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/transcript"
	"github.com/becomeliminal/sidekick/turn"
)

type call struct {
	input  string
	choice string
}

type fakeTurner struct {
	calls []call
	err   error
}

func (f *fakeTurner) Turn(_ context.Context, _ string, input, choice string) (turn.Display, error) {
	f.calls = append(f.calls, call{input, choice})
	if f.err != nil {
		return turn.Display{}, f.err
	}
	if input == "???" {
		return turn.Display{Speaker: turn.SystemLabel, Avatar: core.None.Avatar(), Text: turn.FallbackNotice, Fallback: true}, nil
	}
	p := core.WiseMentor
	if choice != "" {
		p, _ = core.ParsePersona(choice)
	}
	return turn.Display{Speaker: p.String(), Persona: p, Avatar: p.Avatar(), Text: "reply to " + input}, nil
}

func runScript(t *testing.T, script string, turner *fakeTurner, rec *transcript.Store) string {
	t.Helper()
	var out bytes.Buffer
	c := &chat{
		in:         bufio.NewReader(strings.NewReader(script)),
		out:        &out,
		sessions:   turner,
		id:         "session-1",
		transcript: rec,
	}
	require.NoError(t, c.run(context.Background()))
	return out.String()
}

func TestChatRoutesAndOverrides(t *testing.T) {
	turner := &fakeTurner{}
	out := runScript(t, "hello\nN\nmake me laugh\nc\nexit\n", turner, nil)

	assert.Equal(t, []call{{"hello", ""}, {"make me laugh", "Comedic Relief"}}, turner.calls)
	assert.Contains(t, out, "Wise Mentor says:\nreply to hello")
	assert.Contains(t, out, "Comedic Relief says:\nreply to make me laugh")
}

func TestChatRepromptsOnInvalidKey(t *testing.T) {
	turner := &fakeTurner{}
	out := runScript(t, "hi\nX\nwise mentor\nS\nexit\n", turner, nil)

	assert.Equal(t, 2, strings.Count(out, "Invalid choice"))
	assert.Equal(t, []call{{"hi", "Skeptical Realist"}}, turner.calls)
}

func TestChatFallbackAndErrors(t *testing.T) {
	turner := &fakeTurner{}
	out := runScript(t, "???\nN\n", turner, nil)
	assert.Contains(t, out, turn.FallbackNotice)
	assert.NotContains(t, out, "says:")

	failing := &fakeTurner{err: errors.New("boom")}
	out = runScript(t, "hi\nN\nEXIT\n", failing, nil)
	assert.Contains(t, out, "Error: boom")
	assert.Len(t, failing.calls, 1)
}

func TestChatEndsAtEOF(t *testing.T) {
	turner := &fakeTurner{}
	runScript(t, "", turner, nil)
	runScript(t, "question without a key\n", turner, nil)
	assert.Empty(t, turner.calls)
}

func TestChatRecordsTranscript(t *testing.T) {
	rec, err := transcript.Open(":memory:")
	require.NoError(t, err)
	defer rec.Close()

	runScript(t, "hello\nL\nexit\n", &fakeTurner{}, rec)

	entries, err := rec.List(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "User", entries[0].Speaker)
	assert.Equal(t, "Loyal Sidekick", entries[1].Speaker)
	assert.Equal(t, "reply to hello", entries[1].Content)
}
