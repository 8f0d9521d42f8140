// Package openai implements llm.Completer on top of the OpenAI chat
// completions API. Any OpenAI-compatible server (Ollama, vLLM, LiteLLM) works
// by pointing BaseURL at it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/papercomputeco/banter/pkg/llm"
)

// Config configures the OpenAI completion backend.
type Config struct {
	// APIKey is sent as the bearer token.
	APIKey string

	// BaseURL overrides the API root (e.g. "http://localhost:11434/v1").
	BaseURL string

	// Model is the chat model name, e.g. "gpt-4o-mini".
	Model string

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// Completer sends conversations to the chat completions endpoint.
type Completer struct {
	client openai.Client
	model  string
}

// New creates a Completer. Retries are disabled: failures surface to the
// caller immediately.
func New(c Config) (*Completer, error) {
	if c.Model == "" {
		return nil, errors.New("openai: model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
		option.WithMaxRetries(0),
	}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}

	return &Completer{
		client: openai.NewClient(opts...),
		model:  c.Model,
	}, nil
}

// Complete implements llm.Completer.
func (c *Completer) Complete(ctx context.Context, turns []llm.Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Content))
		case llm.RoleUser:
			messages = append(messages, openai.UserMessage(t.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(t.Content))
		default:
			return "", fmt.Errorf("openai: unsupported role %q", t.Role)
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", llm.ErrEmptyCompletion
	}

	return completion.Choices[0].Message.Content, nil
}
