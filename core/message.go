package core

// Speaker identifies who produced a message: the user, a persona, or the system.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerSystem Speaker = "system"
)

// PersonaSpeaker returns the speaker value for a persona's reply.
func PersonaSpeaker(p Persona) Speaker {
	return Speaker(p.String())
}

// IsUser reports whether the message came from the user.
func (s Speaker) IsUser() bool {
	return s == SpeakerUser
}

// Label is the display label for transcripts and context summaries.
func (s Speaker) Label() string {
	switch s {
	case SpeakerUser:
		return "User"
	case SpeakerSystem:
		return "System"
	default:
		return string(s)
	}
}

// Message is one immutable line of a conversation.
type Message struct {
	Speaker Speaker `json:"speaker"`
	Content string  `json:"content"`
}

// UserMessage builds a message spoken by the user.
func UserMessage(content string) Message {
	return Message{Speaker: SpeakerUser, Content: content}
}

// PersonaMessage builds a message spoken by a persona.
func PersonaMessage(p Persona, content string) Message {
	return Message{Speaker: PersonaSpeaker(p), Content: content}
}

// Example is one retrieved corpus snippet used to ground a persona reply.
type Example struct {
	Text       string            `json:"text"`
	Source     string            `json:"source"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float32           `json:"similarity"`
}
