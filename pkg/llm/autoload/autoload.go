// Package autoload registers every built-in LLM provider.
package autoload

import (
	_ "taskmate/pkg/llm/gemini"
	_ "taskmate/pkg/llm/ollama"
	_ "taskmate/pkg/llm/openailm"
)
