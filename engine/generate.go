package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/responder"
)

// examplesHeader separates persona instructions from grounding.
const examplesHeader = "\n\n=== RETRIEVED EXAMPLES ===\n"

// Generate produces the persona's reply. The system prompt carries the
// persona instructions and the retrieved examples; history becomes the
// message list, followed by the user's input.
func (e *Engine) Generate(ctx context.Context, req responder.GenerateRequest) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.Instructions + examplesHeader + req.Examples},
		},
		Messages:    toMessages(req.Persona, req.History, req.Input),
		Temperature: anthropic.Float(e.temperature),
	}

	resp, err := e.client.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	text := responseText(resp)
	e.logger.Debug("generated reply",
		zap.Stringer("persona", req.Persona),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
		zap.Int("chars", len(text)))
	return text, nil
}

// toMessages maps history onto user and assistant turns. Replies from other
// personas are attributed so the model does not take them as its own.
func toMessages(persona core.Persona, history []core.Message, input string) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, m := range history {
		if m.Speaker.IsUser() {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		content := m.Content
		if m.Speaker != core.PersonaSpeaker(persona) {
			content = fmt.Sprintf("[%s]: %s", m.Speaker.Label(), m.Content)
		}
		msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(content)))
	}
	return append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(input)))
}

func responseText(resp *anthropic.Message) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
