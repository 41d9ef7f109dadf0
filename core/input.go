package core

// RouteInput is the structured payload the routing tool returns.
// Reasoning carries the classifier's step-by-step justification; only
// Archetype drives the decision.
type RouteInput struct {
	Reasoning string `json:"reasoning,omitempty"`
	Archetype string `json:"archetype"`
}
