package tools

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/becomeliminal/sidekick/core"
)

// RouteToolName is the tool the classifier is forced to call.
const RouteToolName = "route_turn"

// Definition describes a tool offered to the model.
type Definition struct {
	Name        string
	Description string
	InputSchema Schema
}

// RouteDefinition returns the routing tool. Its archetype field is an enum
// of the given personas' names, and its input decodes into core.RouteInput.
func RouteDefinition(options []core.Persona) Definition {
	names := make([]string, 0, len(options))
	for _, p := range options {
		names = append(names, p.String())
	}
	return Definition{
		Name:        RouteToolName,
		Description: "Route the latest user message to the single archetype best suited to respond.",
		InputSchema: BuildSchemaWithReasoning(Schema{
			"archetype": StringEnumProperty("The archetype that should respond.", names...),
		}, false, "archetype"),
	}
}

// APITool converts the definition to the Anthropic tool parameter.
func (d Definition) APITool() anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{
		Properties: d.InputSchema["properties"],
	}
	if required, ok := d.InputSchema["required"].([]string); ok {
		schema.Required = required
	}
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: schema,
		},
	}
}
