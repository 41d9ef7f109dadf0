// Package label assigns an archetype and a confidence score to side
// characters with a Gemini model, producing the labelled records the
// corpus is built from.
package label

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/corpus/cornell"
)

// DefaultModel is the model characters are labelled with.
const DefaultModel = "gemini-2.0-flash"

// Confidence bounds.
const (
	MinConfidence = 1
	MaxConfidence = 10
)

// ErrInvalidResult is returned when the model's answer is not a known
// label with an in-range confidence.
var ErrInvalidResult = errors.New("invalid classification")

// Result is one character's classification.
type Result struct {
	Label      string `json:"label"`
	Confidence int    `json:"confidence"`
}

// Validate checks the label names a persona and the confidence is in range.
func (r Result) Validate() error {
	if _, ok := core.PersonaByLabel(r.Label); !ok {
		return fmt.Errorf("%w: unknown label %q", ErrInvalidResult, r.Label)
	}
	if r.Confidence < MinConfidence || r.Confidence > MaxConfidence {
		return fmt.Errorf("%w: confidence %d outside [%d, %d]", ErrInvalidResult, r.Confidence, MinConfidence, MaxConfidence)
	}
	return nil
}

// ContentGenerator is the part of the genai models service used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Classifier labels characters through the Gemini API.
type Classifier struct {
	models ContentGenerator
	model  string
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithModel selects the model.
func WithModel(model string) ClassifierOption {
	return func(c *Classifier) {
		if model != "" {
			c.model = model
		}
	}
}

// New creates a classifier using apiKey.
func New(ctx context.Context, apiKey string, opts ...ClassifierOption) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewClassifier(client.Models, opts...), nil
}

// NewClassifier creates a classifier over an existing models service.
func NewClassifier(models ContentGenerator, opts ...ClassifierOption) *Classifier {
	c := &Classifier{models: models, model: DefaultModel}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify asks the model for the character's archetype. The response is
// constrained to a JSON object and validated before it is returned.
func (c *Classifier) Classify(ctx context.Context, ch cornell.Character) (Result, error) {
	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(Prompt(ch), genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema(),
		})
	if err != nil {
		return Result{}, fmt.Errorf("genai classify: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Result{}, fmt.Errorf("%w: empty response", ErrInvalidResult)
	}
	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}
	if err := res.Validate(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Prompt renders the classification prompt for ch.
func Prompt(ch cornell.Character) string {
	var b strings.Builder
	b.WriteString("You are a film analysis AI. Based on the following character dialogues, " +
		"classify the character into one of four primary side-character archetypes.\n\n")
	b.WriteString("Also, provide a confidence score from 1 to 10 indicating how strongly " +
		"you believe the character fits that archetype.\n\n")
	fmt.Fprintf(&b, "Character: %s\nMovie: %s\nGenres: %s\n\n", ch.Name, ch.MovieTitle, strings.Join(ch.Genre, ", "))
	b.WriteString("Dialogues:\n")
	b.WriteString(strings.Join(ch.Conversations, "\n\n"))
	b.WriteString("\n\nChoose exactly one of the following labels:\n\n")
	for _, p := range core.Personas {
		fmt.Fprintf(&b, "- %s: %s\n", p, summaries[p])
	}
	b.WriteString("\nReturn your output in a structured JSON format.")
	return b.String()
}

var summaries = map[core.Persona]string{
	core.ComedicRelief:    "A character who provides humor and lightens the mood.",
	core.WiseMentor:       "An experienced, trusted advisor who guides the protagonist.",
	core.SkepticalRealist: "A grounded, often cynical character who questions plans and points out harsh realities.",
	core.LoyalSidekick:    "A faithful companion who offers emotional support and stands by the protagonist.",
}

func responseSchema() *genai.Schema {
	labels := make([]string, len(core.Personas))
	for i, p := range core.Personas {
		labels[i] = p.String()
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"label": {Type: genai.TypeString, Enum: labels},
			"confidence": {
				Type:    genai.TypeInteger,
				Minimum: genai.Ptr(float64(MinConfidence)),
				Maximum: genai.Ptr(float64(MaxConfidence)),
			},
		},
		Required:         []string{"label", "confidence"},
		PropertyOrdering: []string{"label", "confidence"},
	}
}

// IsRateLimited reports whether err is a quota or rate-limit rejection.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	text := strings.ToUpper(err.Error())
	return strings.Contains(text, "429") &&
		(strings.Contains(text, "RESOURCE_EXHAUSTED") || strings.Contains(text, "TOO MANY REQUESTS"))
}
