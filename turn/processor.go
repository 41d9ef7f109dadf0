// Package turn runs one conversational turn end to end: route, respond,
// commit. A turn either commits completely or leaves the state untouched.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/conversation"
	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/router"
)

// FallbackNotice is shown when no persona was a fit for the turn.
const FallbackNotice = "No archetype was a clear fit for that message, so nobody answered. Try rephrasing, or pick an archetype directly."

// SystemLabel is the speaker label for system notices.
const SystemLabel = "System"

// Stage is a step of the turn state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageRouting
	StageResponding
	StageCommitting
)

func (s Stage) String() string {
	switch s {
	case StageRouting:
		return "routing"
	case StageResponding:
		return "responding"
	case StageCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// Error is a turn-level failure. The state passed to Process is unchanged.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("turn failed while %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Display is what a front end renders for a completed turn.
type Display struct {
	Speaker  string
	Persona  core.Persona
	Avatar   string
	Text     string
	Fallback bool
}

// Router decides who answers.
type Router interface {
	Decide(ctx context.Context, state conversation.State, input string) (router.Decision, error)
}

// Responder produces the chosen persona's reply.
type Responder interface {
	Respond(ctx context.Context, persona core.Persona, input string, shared, private []core.Message) (string, error)
}

// Processor orchestrates turns. It keeps no state between turns; callers
// own the conversation.State and must not run two turns on the same state
// concurrently.
type Processor struct {
	router    Router
	responder Responder
	partition conversation.Partition
	timeout   time.Duration
	onStage   func(Stage)
	logger    *zap.Logger
}

// Option configures the processor.
type Option func(*Processor)

// WithPartition selects where completed turns are recorded.
func WithPartition(p conversation.Partition) Option {
	return func(pr *Processor) {
		pr.partition = p
	}
}

// WithTimeout bounds the whole turn, external calls included.
func WithTimeout(d time.Duration) Option {
	return func(pr *Processor) {
		pr.timeout = d
	}
}

// WithStageHook is called on every state machine transition.
func WithStageHook(fn func(Stage)) Option {
	return func(pr *Processor) {
		pr.onStage = fn
	}
}

// WithLogger sets the processor's logger.
func WithLogger(l *zap.Logger) Option {
	return func(pr *Processor) {
		pr.logger = l.Named("turn")
	}
}

// NewProcessor creates a turn processor.
func NewProcessor(r Router, resp Responder, opts ...Option) *Processor {
	p := &Processor{
		router:    r,
		responder: resp,
		partition: conversation.PartitionMirror,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one turn. choice optionally names the persona the user picked
// by its display name; an empty or unknown choice lets the router infer one. On success it returns
// the new state and what to display; on failure it returns state unchanged
// and an *Error.
func (p *Processor) Process(ctx context.Context, state conversation.State, input string, choice string) (conversation.State, Display, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer p.enter(StageIdle)

	override := p.parseChoice(choice)

	p.enter(StageRouting)
	if err := ctx.Err(); err != nil {
		return state, Display{}, p.fail(StageRouting, err)
	}
	working := state.Begin(input, override)
	decision, err := p.router.Decide(ctx, working, input)
	if err != nil {
		return state, Display{}, p.fail(StageRouting, err)
	}

	if decision.Persona == core.None {
		p.enter(StageCommitting)
		if err := ctx.Err(); err != nil {
			return state, Display{}, p.fail(StageCommitting, err)
		}
		p.logger.Info("turn ended without a persona", zap.String("label", decision.Label))
		return working.Finish(), Display{
			Speaker:  SystemLabel,
			Persona:  core.None,
			Avatar:   core.None.Avatar(),
			Text:     FallbackNotice,
			Fallback: true,
		}, nil
	}

	p.enter(StageResponding)
	reply, err := p.responder.Respond(ctx, decision.Persona, input,
		working.Shared(), working.History(decision.Persona))
	if err != nil {
		return state, Display{}, p.fail(StageResponding, err)
	}

	p.enter(StageCommitting)
	if err := ctx.Err(); err != nil {
		return state, Display{}, p.fail(StageCommitting, err)
	}
	next := working.Commit(decision.Persona, input, reply, decision.Overridden(), p.partition)

	p.logger.Info("turn committed",
		zap.Stringer("persona", decision.Persona),
		zap.String("reason", string(decision.Reason)),
		zap.Int("shared", next.SharedLen()),
		zap.Int("private", next.HistoryLen(decision.Persona)))

	return next, Display{
		Speaker: decision.Persona.String(),
		Persona: decision.Persona,
		Avatar:  decision.Persona.Avatar(),
		Text:    reply,
	}, nil
}

func (p *Processor) parseChoice(choice string) core.Persona {
	if strings.TrimSpace(choice) == "" {
		return core.None
	}
	persona, ok := core.PersonaByLabel(choice)
	if !ok {
		p.logger.Warn("ignoring override",
			zap.Error(fmt.Errorf("%w: %q", core.ErrInvalidOverride, choice)))
		return core.None
	}
	return persona
}

func (p *Processor) enter(s Stage) {
	if p.onStage != nil {
		p.onStage(s)
	}
}

func (p *Processor) fail(stage Stage, err error) error {
	level := p.logger.Warn
	if errors.Is(err, context.Canceled) {
		level = p.logger.Debug
	}
	level("turn aborted", zap.Stringer("stage", stage), zap.Error(err))
	return &Error{Stage: stage, Err: err}
}
