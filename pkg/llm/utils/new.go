// Package llmutils builds a completion backend from configuration.
package llmutils

import (
	"fmt"

	"github.com/papercomputeco/banter/pkg/llm"
	"github.com/papercomputeco/banter/pkg/llm/openai"
)

type NewCompleterOpts struct {
	// ProviderType is "openai"; any OpenAI-compatible server (Ollama,
	// vLLM) is reached through BaseURL.
	ProviderType string
	BaseURL      string
	Model        string
	APIKey       string
}

func NewCompleter(o *NewCompleterOpts) (llm.Completer, error) {
	switch o.ProviderType {
	case "", "openai":
		return openai.New(openai.Config{
			APIKey:  o.APIKey,
			BaseURL: o.BaseURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", o.ProviderType)
	}
}
