package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI generates replies through the Chat Completions API. BaseURL makes
// it work against any OpenAI-compatible server, a local Ollama included.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

var _ LLM = (*OpenAI)(nil)

// NewOpenAI validates the configuration and builds the client.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai llm requires an api key or a base url")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai llm requires a model")
	}
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{
		client:      &client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate returns the assistant reply for the conversation.
func (l *OpenAI) Generate(ctx context.Context, messages []Message) (string, error) {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			converted = append(converted, openai.SystemMessage(m.Content))
		case RoleAssistant:
			converted = append(converted, openai.AssistantMessage(m.Content))
		default:
			converted = append(converted, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       l.model,
		Messages:    converted,
		Temperature: openai.Float(l.temperature),
	}
	if l.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(l.maxTokens))
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
