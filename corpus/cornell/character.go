package cornell

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Credit positions 1 to MaxLeadCredit are leads; anything after is a side
// character.
const MaxLeadCredit = 3

// DefaultMaxConversations drops characters with more conversations than
// this; they are usually leads billed low.
const DefaultMaxConversations = 50

// Character is a side character in one movie with every conversation they
// have with a lead, in corpus order.
type Character struct {
	Name          string
	MovieTitle    string
	Genre         []string
	Conversations []string
}

// ConversationID names the i-th conversation (zero based).
func ConversationID(i int) string {
	return "conv" + strconv.Itoa(i+1)
}

type characterJSON struct {
	Name          string            `json:"side_character_name"`
	MovieTitle    string            `json:"movie_title"`
	Genre         []string          `json:"genre"`
	Conversations map[string]string `json:"conversations"`
}

// MarshalJSON writes conversations as {"conv1": ..., "conv2": ...}.
func (c Character) MarshalJSON() ([]byte, error) {
	convs := make(map[string]string, len(c.Conversations))
	for i, text := range c.Conversations {
		convs[ConversationID(i)] = text
	}
	genre := c.Genre
	if genre == nil {
		genre = []string{}
	}
	return json.Marshal(characterJSON{Name: c.Name, MovieTitle: c.MovieTitle, Genre: genre, Conversations: convs})
}

// UnmarshalJSON orders conversations by the number in their key.
func (c *Character) UnmarshalJSON(data []byte) error {
	var raw characterJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	keys := make([]string, 0, len(raw.Conversations))
	for k := range raw.Conversations {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return convNumber(keys[i]) < convNumber(keys[j])
	})

	*c = Character{Name: raw.Name, MovieTitle: raw.MovieTitle, Genre: raw.Genre}
	for _, k := range keys {
		c.Conversations = append(c.Conversations, raw.Conversations[k])
	}
	return nil
}

func convNumber(key string) int {
	n, err := strconv.Atoi(strings.TrimLeft(key, "abcdefghijklmnopqrstuvwxyz_"))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	maxConversations int
}

// WithMaxConversations sets the per-character conversation cap.
func WithMaxConversations(n int) BuildOption {
	return func(c *buildConfig) {
		if n > 0 {
			c.maxConversations = n
		}
	}
}

// Build collects, for every side character, the conversations they have
// with a lead. Exchanges between two leads or two side characters, and
// exchanges in movies missing from the titles file, are ignored. Characters
// are grouped by name and movie title, in order of first appearance.
func Build(ds *Dataset, opts ...BuildOption) []Character {
	cfg := buildConfig{maxConversations: DefaultMaxConversations}
	for _, opt := range opts {
		opt(&cfg)
	}

	type key struct{ name, movie string }
	index := make(map[key]int)
	var out []Character

	for _, ex := range ds.Exchanges {
		movie, ok := ds.Movies[ex.MovieID]
		if !ok {
			continue
		}
		side, ok := sideOf(ds.Cast, ex)
		if !ok {
			continue
		}
		text := ds.render(ex)
		if text == "" {
			continue
		}

		name := side.Name
		if name == "" {
			name = fmt.Sprintf("Unknown (%s)", side.ID)
		}
		k := key{name, movie.Title}
		i, seen := index[k]
		if !seen {
			i = len(out)
			index[k] = i
			out = append(out, Character{Name: name, MovieTitle: movie.Title, Genre: movie.Genres})
		}
		out[i].Conversations = append(out[i].Conversations, text)
	}

	kept := out[:0]
	for _, c := range out {
		if n := len(c.Conversations); n >= 1 && n <= cfg.maxConversations {
			kept = append(kept, c)
		}
	}
	return kept
}

// sideOf returns the side character of a lead/side exchange.
func sideOf(cast map[string]CastMember, ex Exchange) (CastMember, bool) {
	a, okA := cast[ex.First]
	b, okB := cast[ex.Second]
	if !okA || !okB {
		return CastMember{}, false
	}
	switch {
	case isLead(a) && isSide(b):
		return b, true
	case isSide(a) && isLead(b):
		return a, true
	default:
		return CastMember{}, false
	}
}

func isLead(c CastMember) bool { return c.CreditPos >= 1 && c.CreditPos <= MaxLeadCredit }
func isSide(c CastMember) bool { return c.CreditPos > MaxLeadCredit }

// render writes an exchange as "SPEAKER: text" lines, skipping unknown ids.
func (ds *Dataset) render(ex Exchange) string {
	var b strings.Builder
	for _, id := range ex.LineIDs {
		line, ok := ds.Lines[id]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", line.Speaker, line.Text)
	}
	return strings.TrimSpace(b.String())
}

// WriteFile saves characters as an indented JSON array.
func WriteFile(path string, characters []Character) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if characters == nil {
		characters = []Character{}
	}
	data, err := json.MarshalIndent(characters, "", "  ")
	if err != nil {
		return fmt.Errorf("encode characters: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads characters written by WriteFile.
func ReadFile(path string) ([]Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read characters: %w", err)
	}
	var characters []Character
	if err := json.Unmarshal(data, &characters); err != nil {
		return nil, fmt.Errorf("decode characters: %w", err)
	}
	return characters, nil
}
