package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/transcript"
	"github.com/becomeliminal/sidekick/turn"
)

var chatTranscript string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the archetypes in the terminal",
	Long: `Start an interactive chat. After each message pick an archetype by key,
or N to let the router choose. Type 'exit' to quit.`,
	RunE: runChatCmd,
}

func init() {
	chatCmd.Flags().StringVar(&chatTranscript, "transcript", "", "record the chat to this SQLite file")
}

func runChatCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rt, err := newCorpusRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessions, err := newSessions(cfg, rt.retriever, logger)
	if err != nil {
		return err
	}
	id := sessions.Create()

	var rec *transcript.Store
	if chatTranscript != "" {
		rec, err = transcript.Open(chatTranscript)
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	return (&chat{
		in:         bufio.NewReader(os.Stdin),
		out:        cmd.OutOrStdout(),
		sessions:   sessions,
		id:         id,
		transcript: rec,
	}).run(ctx)
}

// turner runs turns on a session.
type turner interface {
	Turn(ctx context.Context, id, input, choice string) (turn.Display, error)
}

type chat struct {
	in         *bufio.Reader
	out        io.Writer
	sessions   turner
	id         string
	transcript *transcript.Store
}

// routerKey lets the router pick the archetype.
const routerKey = "N"

func (c *chat) run(ctx context.Context) error {
	for {
		query, ok, err := c.prompt("\nEnter your query (or 'exit' to quit): ")
		if err != nil || !ok {
			return err
		}
		if strings.EqualFold(query, "exit") {
			return nil
		}
		if query == "" {
			continue
		}

		choice, ok, err := c.chooseArchetype()
		if err != nil || !ok {
			return err
		}

		display, err := c.sessions.Turn(ctx, c.id, query, choice)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(c.out, "Error: %v\n", err)
			continue
		}
		c.show(display)
		c.record(ctx, query, display)
	}
}

// chooseArchetype asks for a key until a valid one is given. It returns the
// turn choice, empty for the router.
func (c *chat) chooseArchetype() (string, bool, error) {
	for {
		key, ok, err := c.prompt(archetypePrompt())
		if err != nil || !ok {
			return "", ok, err
		}
		key = strings.ToUpper(key)
		if key == routerKey {
			return "", true, nil
		}
		if p, ok := core.PersonaByKey(key); ok {
			return p.String(), true, nil
		}
		fmt.Fprintln(c.out, "Invalid choice. Please try again.")
	}
}

func archetypePrompt() string {
	var b strings.Builder
	b.WriteString("Choose an archetype (")
	for _, p := range core.Personas {
		fmt.Fprintf(&b, "%s = %s, ", p.Key(), p)
	}
	fmt.Fprintf(&b, "%s = let the router decide): ", routerKey)
	return b.String()
}

// prompt reads one trimmed line. ok is false at end of input.
func (c *chat) prompt(text string) (string, bool, error) {
	fmt.Fprint(c.out, text)
	line, err := c.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(line) == "" {
				return "", false, nil
			}
		} else {
			return "", false, err
		}
	}
	return strings.TrimSpace(line), true, nil
}

func (c *chat) show(d turn.Display) {
	if d.Fallback {
		fmt.Fprintf(c.out, "\n%s %s: %s\n", d.Avatar, d.Speaker, d.Text)
		return
	}
	fmt.Fprintf(c.out, "\n%s %s says:\n%s\n", d.Avatar, d.Speaker, d.Text)
}

func (c *chat) record(ctx context.Context, query string, d turn.Display) {
	if c.transcript == nil {
		return
	}
	if err := c.transcript.Append(ctx, c.id,
		transcript.Entry{Speaker: core.SpeakerUser.Label(), Content: query},
		transcript.Entry{Speaker: d.Speaker, Content: d.Text},
	); err != nil {
		logger.Warn("record transcript", zap.Error(err))
	}
}
