package server

import "github.com/becomeliminal/sidekick/core"

// Frame types.
const (
	TypeSession = "session"
	TypeMessage = "message"
	TypeReply   = "reply"
	TypeError   = "error"
)

// AutoMode is the archetype value front ends send to let the router decide.
const AutoMode = "Auto Mode"

// ClientFrame is a message sent by the browser.
type ClientFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Archetype string `json:"archetype,omitempty"`
}

// ServerFrame is a message sent to the browser. Fields not relevant to the
// frame type are omitted.
type ServerFrame struct {
	Type       string   `json:"type"`
	SessionID  string   `json:"session_id,omitempty"`
	Archetypes []string `json:"archetypes,omitempty"`
	Speaker    string   `json:"speaker,omitempty"`
	Avatar     string   `json:"avatar,omitempty"`
	Content    string   `json:"content,omitempty"`
	Fallback   bool     `json:"fallback,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Archetypes lists the choices a front end offers, auto mode first.
func Archetypes() []string {
	names := make([]string, 0, len(core.Personas)+1)
	names = append(names, AutoMode)
	for _, p := range core.Personas {
		names = append(names, p.String())
	}
	return names
}

// choice maps the front end's archetype selection onto a turn override.
func choice(archetype string) string {
	if archetype == AutoMode {
		return ""
	}
	return archetype
}
