package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic generates replies through the Messages API.
type Anthropic struct {
	client      *anthropic.Client
	model       string
	temperature float64
	maxTokens   int
}

var _ LLM = (*Anthropic)(nil)

// NewAnthropic validates the configuration and builds the client.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic llm requires an api key")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic llm requires a model")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{
		client:      &client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Generate returns the assistant reply for the conversation. System
// messages are lifted into the Messages API system field.
func (l *Anthropic) Generate(ctx context.Context, messages []Message) (string, error) {
	var system []anthropic.TextBlockParam
	var converted []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(l.model),
		Messages:    converted,
		MaxTokens:   int64(l.maxTokens),
		Temperature: anthropic.Float(l.temperature),
	}
	if len(system) > 0 {
		params.System = system
	}

	resp, err := l.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic chat: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return sb.String(), nil
}
