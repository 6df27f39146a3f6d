package llm

import (
	"fmt"
	"sync"

	"github.com/socialsim4/simkernel/pkg/config"
)

// Registry binds named LLM configurations (the llmBinding field on an
// AgentState refers to one of these names) to concrete Client instances.
// Bindings are resolved once at scenario load and then read many times per
// round by concurrent agent turns, so lookups take a read lock and
// registration takes a write lock.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]Client
}

// NewRegistry creates an empty LLM client registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]Client)}
}

// Get returns the client registered under name, if any.
func (r *Registry) Get(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.bindings[name]
	return client, ok
}

// Bindings returns the names currently registered, for diagnostics such as
// reporting which llmBinding a scenario file referenced but never declared.
func (r *Registry) Bindings() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	return names
}

// RegisterFromConfig constructs a Client for cfg.Provider and registers it
// under name, the way an AgentState's llmBinding field looks it up later.
// Re-registering an existing name replaces it, matching how a scenario
// reload should pick up an edited llm block without restarting the process.
func (r *Registry) RegisterFromConfig(name string, cfg config.LLMConfig) error {
	cfg.SetDefaults()

	client, err := NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("building llm client %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[name] = client
	return nil
}

// NewFromConfig dispatches on cfg.Provider to construct the matching
// dialect implementation.
func NewFromConfig(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.LLMProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case config.LLMProviderGemini:
		return NewGeminiClient(GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case config.LLMProviderOllama:
		return NewOllamaClient(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
