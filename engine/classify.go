package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/router"
	"github.com/becomeliminal/sidekick/tools"
)

// classifyMaxTokens leaves room for the reasoning field.
const classifyMaxTokens = 1024

// Classify asks the model which persona should answer. The model is forced
// to call the routing tool; a response without that call yields an empty
// label, which the router treats as no fit.
func (e *Engine) Classify(ctx context.Context, req router.ClassifyRequest) (string, error) {
	def := tools.RouteDefinition(req.Options)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.classifierModel),
		MaxTokens: classifyMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: DirectorPrompt(req)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Input)),
		},
		Tools: []anthropic.ToolUnionParam{def.APITool()},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: def.Name},
		},
		Temperature: anthropic.Float(0),
	}

	resp, err := e.client.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.Name != def.Name {
			continue
		}
		var route core.RouteInput
		if err := json.Unmarshal(block.Input, &route); err != nil {
			return "", fmt.Errorf("decode route input: %w", err)
		}
		e.logger.Debug("classified turn",
			zap.String("archetype", route.Archetype),
			zap.String("reasoning", route.Reasoning))
		return route.Archetype, nil
	}

	e.logger.Warn("classifier response had no routing call")
	return "", nil
}

// DirectorPrompt renders the routing instructions for req.
func DirectorPrompt(req router.ClassifyRequest) string {
	var roles strings.Builder
	for _, p := range req.Options {
		fmt.Fprintf(&roles, "- **%s:** %s\n", p, p.Criteria())
	}
	return fmt.Sprintf(directorTemplate, roles.String(), req.Context, req.Input)
}

const directorTemplate = `You are a master conversational director. Your job is to analyze the user's message, considering the recent conversation history, and route it to the most appropriate specialist archetype.

**ARCHETYPE ROLES:**
%s
**RECENT CONVERSATION HISTORY:**
%s

**LATEST USER MESSAGE:**
"%s"

Based on the history and especially the LATEST USER MESSAGE, which archetype is the single best fit to respond? Think step-by-step:
1. What is the user's primary intent (e.g., seeking facts, seeking comfort, seeking a laugh)?
2. What is their emotional tone (e.g., analytical, anxious, happy)?
3. Considering these, which archetype's role is the best match?

Return your final decision by calling the ` + tools.RouteToolName + ` tool.
`
