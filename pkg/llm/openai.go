package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/socialsim4/simkernel/pkg/httpclient"
)

const (
	openaiDefaultBaseURL   = "https://api.openai.com/v1"
	openaiDefaultModel     = "gpt-4o"
	openaiDefaultMaxTokens = 4096
	openaiDefaultTimeout   = 120 * time.Second
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// OpenAIClient talks to an OpenAI Chat Completions-compatible endpoint over
// plain net/http, the way hector's model/openai client hand-rolls its own
// transport rather than depending on an official SDK.
type OpenAIClient struct {
	http        *httpclient.Client
	apiKey      string
	baseURL     string
	model       string
	temperature *float64
	maxTokens   int
}

// NewOpenAIClient validates cfg and returns a ready-to-use OpenAIClient.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openaiDefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = openaiDefaultMaxTokens
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = openaiDefaultTimeout
	}

	return &OpenAIClient{
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(maxRetries),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
			httpclient.WithProvider("openai"),
		),
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

type openaiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatRequest struct {
	Model          string              `json:"model"`
	Messages       []openaiChatMessage `json:"messages"`
	Temperature    *float64            `json:"temperature,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *openaiRespFormat   `json:"response_format,omitempty"`
}

type openaiRespFormat struct {
	Type string `json:"type"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat implements Client.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	reqBody := openaiChatRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: firstNonNil(opts.Temperature, c.temperature),
		MaxTokens:   firstNonZero(opts.MaxTokens, c.maxTokens),
	}
	if opts.JSONMode {
		reqBody.ResponseFormat = &openaiRespFormat{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &CallError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CallError{Provider: "openai", Err: err}
	}

	var parsed openaiChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &CallError{Provider: "openai", Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &CallError{Provider: "openai", Err: fmt.Errorf("%s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return parsed.Choices[0].Message.Content, nil
}

type openaiEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openaiEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Client using OpenAI's /embeddings endpoint.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(openaiEmbeddingRequest{Model: "text-embedding-3-small", Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal openai embedding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build openai embedding request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &CallError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Provider: "openai", Err: err}
	}

	var parsed openaiEmbeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &CallError{Provider: "openai", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Data) == 0 {
		return nil, ErrEmptyResponse
	}
	return parsed.Data[0].Embedding, nil
}

func toOpenAIMessages(messages []Message) []openaiChatMessage {
	out := make([]openaiChatMessage, len(messages))
	for i, m := range messages {
		out[i] = openaiChatMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func firstNonNil(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}
