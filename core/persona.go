package core

import (
	"fmt"
	"strings"
)

// Persona identifies one of the fixed conversational archetypes.
// The zero value is None, meaning no persona was selected.
type Persona int

const (
	// None means no persona: the router fell back or no override was given.
	None Persona = iota
	WiseMentor
	ComedicRelief
	SkepticalRealist
	LoyalSidekick
)

// Personas lists every selectable persona in catalog order.
var Personas = []Persona{WiseMentor, ComedicRelief, SkepticalRealist, LoyalSidekick}

// String returns the display name, which is also the label used by the
// classifier and the corpus.
func (p Persona) String() string {
	switch p {
	case WiseMentor:
		return "Wise Mentor"
	case ComedicRelief:
		return "Comedic Relief"
	case SkepticalRealist:
		return "Skeptical Realist"
	case LoyalSidekick:
		return "Loyal Sidekick"
	case None:
		return "none"
	default:
		return fmt.Sprintf("Persona(%d)", int(p))
	}
}

// Valid reports whether p is a selectable persona.
func (p Persona) Valid() bool {
	switch p {
	case WiseMentor, ComedicRelief, SkepticalRealist, LoyalSidekick:
		return true
	default:
		return false
	}
}

// Criteria describes when the router should pick this persona.
func (p Persona) Criteria() string {
	switch p {
	case WiseMentor:
		return "Choose for questions about life purpose, meaning, wisdom, and abstract guidance."
	case ComedicRelief:
		return "Choose when the user is sad, expresses a desire for humor, or the topic is very lighthearted."
	case SkepticalRealist:
		return "Choose for requests for critical feedback, analysis of plans, risk assessment, or fact-based evaluation."
	case LoyalSidekick:
		return "Choose when the user is venting, expressing fear or frustration, or needs emotional support and encouragement."
	default:
		return ""
	}
}

// Collection is the name of the persona's example corpus collection.
func (p Persona) Collection() string {
	switch p {
	case WiseMentor:
		return "wise_mentor_db"
	case ComedicRelief:
		return "comedic_relief_db"
	case SkepticalRealist:
		return "skeptical_realist_db"
	case LoyalSidekick:
		return "loyal_sidekick_db"
	default:
		return ""
	}
}

// Fallback is what the persona says when it has nothing grounded to offer.
func (p Persona) Fallback() string {
	switch p {
	case WiseMentor:
		return "I do not have the specific wisdom to address that."
	case ComedicRelief:
		return "I'm at a loss for words. I can't find anything funny to say about that."
	case SkepticalRealist:
		return "I lack sufficient data to provide a meaningful analysis of that."
	case LoyalSidekick:
		return "I'm here for you, even if I don't know what to say."
	default:
		return ""
	}
}

// Avatar is the emoji front ends show next to the persona's lines.
func (p Persona) Avatar() string {
	switch p {
	case WiseMentor:
		return "🧙"
	case ComedicRelief:
		return "😂"
	case SkepticalRealist:
		return "🤔"
	case LoyalSidekick:
		return "🐶"
	default:
		return "⚙️"
	}
}

// Key is the single-letter shortcut used by the terminal front end.
func (p Persona) Key() string {
	switch p {
	case WiseMentor:
		return "M"
	case ComedicRelief:
		return "C"
	case SkepticalRealist:
		return "S"
	case LoyalSidekick:
		return "L"
	default:
		return "N"
	}
}

// ParsePersona resolves a persona from its display name, its collection
// name or its single-letter key, ignoring case and surrounding space. It
// serves command-line flags; turn overrides match display names only.
// Unknown values return None and ErrInvalidOverride.
func ParsePersona(s string) (Persona, error) {
	s = strings.TrimSpace(s)
	for _, p := range Personas {
		if strings.EqualFold(s, p.String()) || strings.EqualFold(s, p.Collection()) || strings.EqualFold(s, p.Key()) {
			return p, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrInvalidOverride, s)
}

// PersonaByKey resolves a terminal shortcut key, ignoring case.
func PersonaByKey(key string) (Persona, bool) {
	key = strings.TrimSpace(key)
	for _, p := range Personas {
		if strings.EqualFold(key, p.Key()) {
			return p, true
		}
	}
	return None, false
}

// PersonaByLabel resolves an exact classifier or corpus label.
// Matching is exact apart from surrounding space: the label set is closed.
func PersonaByLabel(label string) (Persona, bool) {
	label = strings.TrimSpace(label)
	for _, p := range Personas {
		if label == p.String() {
			return p, true
		}
	}
	return None, false
}
