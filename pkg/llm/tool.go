package llm

// Tool is the schema side of a callable tool as seen by providers.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema "properties" object.
	Parameters() map[string]any
	RequiredParameters() []string
}

// ToolSchema returns the full JSON Schema object for t's arguments.
func ToolSchema(t Tool) map[string]any {
	props := t.Parameters()
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if req := t.RequiredParameters(); len(req) > 0 {
		schema["required"] = req
	}
	return schema
}

// FunctionSpecs renders tools in the OpenAI function-calling format used by
// OpenAI-compatible backends such as Ollama.
func FunctionSpecs(tools []Tool) []map[string]any {
	specs := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  ToolSchema(t),
			},
		})
	}
	return specs
}
