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
	ollamaDefaultBaseURL = "http://localhost:11434"
	ollamaDefaultModel   = "llama3.2"
	ollamaDefaultTimeout = 300 * time.Second
)

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Temperature *float64
	Timeout     time.Duration
}

// OllamaClient talks to a local or self-hosted Ollama server's chat API,
// hand-rolled the way hector's model/ollama client is (no official SDK).
type OllamaClient struct {
	http        *httpclient.Client
	baseURL     string
	model       string
	temperature *float64
}

// NewOllamaClient returns a ready-to-use OllamaClient. Unlike the other two
// dialects, Ollama requires no API key.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = ollamaDefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = ollamaDefaultTimeout
	}

	return &OllamaClient{
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithProvider("ollama"),
		),
		baseURL:     baseURL,
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  ollamaChatOptions   `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// Chat implements Client.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	reqBody := ollamaChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   false,
		Options:  ollamaChatOptions{Temperature: firstNonNil(opts.Temperature, c.temperature)},
	}
	if opts.JSONMode {
		reqBody.Format = "json"
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &CallError{Provider: "ollama", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CallError{Provider: "ollama", Err: err}
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &CallError{Provider: "ollama", Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != "" {
		return "", &CallError{Provider: "ollama", Err: fmt.Errorf("%s", parsed.Error)}
	}
	if parsed.Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return parsed.Message.Content, nil
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed implements Client using Ollama's /api/embed endpoint.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ollama embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &CallError{Provider: "ollama", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Provider: "ollama", Err: err}
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &CallError{Provider: "ollama", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Embeddings) == 0 {
		return nil, ErrEmptyResponse
	}
	return parsed.Embeddings[0], nil
}

func toOllamaMessages(messages []Message) []ollamaChatMessage {
	out := make([]ollamaChatMessage, len(messages))
	for i, m := range messages {
		out[i] = ollamaChatMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
