package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.0-flash"

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// GeminiClient wraps the official google.golang.org/genai SDK, the one
// dialect in this kernel's pack that already ships an official Go client.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature *float64
	maxTokens   int
}

// NewGeminiClient validates cfg and constructs the underlying genai.Client.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Chat implements Client by flattening the message list into a single
// Gemini content turn, matching how the kernel's single-shot turn prompt
// has no multi-turn chat history to preserve.
func (c *GeminiClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	var system strings.Builder
	var user strings.Builder
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system.WriteString(m.Content)
			system.WriteString("\n")
		default:
			user.WriteString(m.Content)
			user.WriteString("\n")
		}
	}

	genConfig := &genai.GenerateContentConfig{}
	if temp := firstNonNil(opts.Temperature, c.temperature); temp != nil {
		t := float32(*temp)
		genConfig.Temperature = &t
	}
	if maxTok := firstNonZero(opts.MaxTokens, c.maxTokens); maxTok > 0 {
		genConfig.MaxOutputTokens = int32(maxTok)
	}
	if system.Len() > 0 {
		genConfig.SystemInstruction = genai.NewContentFromText(system.String(), genai.RoleUser)
	}
	if opts.JSONMode {
		genConfig.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user.String()), genConfig)
	if err != nil {
		return "", &CallError{Provider: "gemini", Err: err}
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Embed implements Client using Gemini's embedding endpoint.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.Models.EmbedContent(ctx, "text-embedding-004", genai.Text(text), nil)
	if err != nil {
		return nil, &CallError{Provider: "gemini", Err: err}
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyResponse
	}
	values := resp.Embeddings[0].Values
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out, nil
}
