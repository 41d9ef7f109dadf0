// Package tools builds the JSON Schema tool definitions offered to the model.
package tools

import "maps"

// Schema is a JSON Schema fragment.
type Schema = map[string]any

// ObjectSchema returns an object schema over properties.
func ObjectSchema(properties Schema, required ...string) Schema {
	s := Schema{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// StringProperty returns a described string property.
func StringProperty(description string) Schema {
	return Schema{"type": "string", "description": description}
}

// StringEnumProperty returns a string property limited to values.
func StringEnumProperty(description string, values ...string) Schema {
	p := StringProperty(description)
	p["enum"] = values
	return p
}

// WithReasoning returns a copy of schema with a "reasoning" property,
// listed as required when requireReasoning is set. schema is not modified.
func WithReasoning(schema Schema, requireReasoning bool) Schema {
	result := maps.Clone(schema)
	if result == nil {
		result = Schema{}
	}

	props, _ := schema["properties"].(Schema)
	props = maps.Clone(props)
	if props == nil {
		props = Schema{}
	}
	props["reasoning"] = StringProperty(
		"Think step-by-step before deciding: the user's primary intent, their emotional tone, " +
			"and which role best matches both.",
	)
	result["properties"] = props

	if requireReasoning {
		required, _ := schema["required"].([]string)
		result["required"] = append(append([]string{}, required...), "reasoning")
	}
	return result
}

// BuildSchemaWithReasoning is ObjectSchema followed by WithReasoning.
func BuildSchemaWithReasoning(properties Schema, requireReasoning bool, required ...string) Schema {
	return WithReasoning(ObjectSchema(properties, required...), requireReasoning)
}
