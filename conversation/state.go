// Package conversation holds the authoritative record of one chat session:
// the shared history the router reads, each persona's private history, and
// the routing outcome of the latest turn.
//
// State is a value. Every mutating operation returns a new State and leaves
// the receiver untouched, so a failed or cancelled turn can simply keep the
// state it started from.
package conversation

import (
	"github.com/becomeliminal/sidekick/core"
)

// Partition selects where a completed turn's message pair is recorded.
type Partition int

const (
	// PartitionMirror records auto-routed turns in the shared history and in
	// the routed persona's private history; overridden turns go to the
	// private history only.
	PartitionMirror Partition = iota

	// PartitionExclusive records auto-routed turns in the shared history only
	// and overridden turns in the private history only.
	PartitionExclusive
)

// String returns the config spelling of the partition.
func (p Partition) String() string {
	switch p {
	case PartitionExclusive:
		return "exclusive"
	default:
		return "mirror"
	}
}

// ParsePartition parses "mirror" or "exclusive". Empty means mirror.
func ParsePartition(s string) (Partition, bool) {
	switch s {
	case "", "mirror":
		return PartitionMirror, true
	case "exclusive":
		return PartitionExclusive, true
	default:
		return PartitionMirror, false
	}
}

// State is the conversation record for one session.
type State struct {
	shared     []core.Message
	private    map[core.Persona][]core.Message
	lastRouted core.Persona
	pending    string
	override   core.Persona
}

// New returns an empty state with a private history for every persona.
func New() State {
	private := make(map[core.Persona][]core.Message, len(core.Personas))
	for _, p := range core.Personas {
		private[p] = nil
	}
	return State{private: private}
}

// Shared returns a copy of the shared history, oldest first.
func (s State) Shared() []core.Message {
	return cloneMessages(s.shared)
}

// History returns a copy of a persona's private history, oldest first.
// Personas outside the catalog have no history.
func (s State) History(p core.Persona) []core.Message {
	return cloneMessages(s.private[p])
}

// SharedLen is the number of messages in the shared history.
func (s State) SharedLen() int {
	return len(s.shared)
}

// HistoryLen is the number of messages in a persona's private history.
func (s State) HistoryLen(p core.Persona) int {
	return len(s.private[p])
}

// LastRouted is the persona that answered the most recent turn, or None.
func (s State) LastRouted() core.Persona {
	return s.lastRouted
}

// PendingInput is the text of the turn in flight; empty between turns.
func (s State) PendingInput() string {
	return s.pending
}

// Override is the explicit persona choice for the turn in flight, or None.
func (s State) Override() core.Persona {
	return s.override
}

// Begin records the input and override of a new turn. An override outside
// the catalog is dropped.
func (s State) Begin(input string, override core.Persona) State {
	next := s.clone()
	next.pending = input
	next.override = core.None
	if override.Valid() {
		next.override = override
	}
	return next
}

// Commit records a completed turn answered by p and clears the transient
// fields. overridden says whether p was chosen explicitly by the user.
func (s State) Commit(p core.Persona, input, reply string, overridden bool, partition Partition) State {
	next := s.clone()
	pair := []core.Message{core.UserMessage(input), core.PersonaMessage(p, reply)}

	switch {
	case overridden:
		next.private[p] = appendMessages(next.private[p], pair...)
	case partition == PartitionExclusive:
		next.shared = appendMessages(next.shared, pair...)
	default:
		next.shared = appendMessages(next.shared, pair...)
		next.private[p] = appendMessages(next.private[p], pair...)
	}

	next.lastRouted = p
	next.pending = ""
	next.override = core.None
	return next
}

// Finish ends a turn that produced no persona reply. Histories are left as
// they were.
func (s State) Finish() State {
	next := s.clone()
	next.lastRouted = core.None
	next.pending = ""
	next.override = core.None
	return next
}

// Equal reports whether two states hold the same histories and fields.
func (s State) Equal(o State) bool {
	if s.lastRouted != o.lastRouted || s.pending != o.pending || s.override != o.override {
		return false
	}
	if !equalMessages(s.shared, o.shared) {
		return false
	}
	for _, p := range core.Personas {
		if !equalMessages(s.private[p], o.private[p]) {
			return false
		}
	}
	return true
}

func (s State) clone() State {
	private := make(map[core.Persona][]core.Message, len(core.Personas))
	for _, p := range core.Personas {
		private[p] = s.private[p]
	}
	return State{
		shared:     s.shared,
		private:    private,
		lastRouted: s.lastRouted,
		pending:    s.pending,
		override:   s.override,
	}
}

// appendMessages never writes into base's backing array, so states that
// share a slice never observe each other's appends.
func appendMessages(base []core.Message, msgs ...core.Message) []core.Message {
	out := make([]core.Message, 0, len(base)+len(msgs))
	out = append(out, base...)
	return append(out, msgs...)
}

func cloneMessages(msgs []core.Message) []core.Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out
}

func equalMessages(a, b []core.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
