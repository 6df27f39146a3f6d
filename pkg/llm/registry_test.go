package llm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialsim4/simkernel/pkg/config"
)

func TestRegistry_RegisterFromConfig(t *testing.T) {
	reg := NewRegistry()

	err := reg.RegisterFromConfig("narrator", config.LLMConfig{
		Provider: config.LLMProviderOllama,
		BaseURL:  "http://localhost:11434",
	})
	require.NoError(t, err)

	client, ok := reg.Get("narrator")
	require.True(t, ok)
	assert.NotNil(t, client)
}

func TestRegistry_RegisterFromConfig_UnknownProvider(t *testing.T) {
	reg := NewRegistry()

	err := reg.RegisterFromConfig("bad", config.LLMConfig{Provider: config.LLMProvider("mystery")})
	require.Error(t, err)
}

func TestRegistry_RegisterFromConfig_MissingAPIKey(t *testing.T) {
	reg := NewRegistry()

	err := reg.RegisterFromConfig("gpt", config.LLMConfig{Provider: config.LLMProviderOpenAI})
	require.Error(t, err)
}

func TestRegistry_Get_UnknownNameReturnsFalse(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Get("narrator")
	assert.False(t, ok)
}

func TestRegistry_RegisterFromConfig_ReplacesExistingBinding(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.RegisterFromConfig("narrator", config.LLMConfig{
		Provider: config.LLMProviderOllama,
		BaseURL:  "http://localhost:11434",
		Model:    "llama3",
	}))
	require.NoError(t, reg.RegisterFromConfig("narrator", config.LLMConfig{
		Provider: config.LLMProviderOllama,
		BaseURL:  "http://localhost:11434",
		Model:    "mistral",
	}))

	client, ok := reg.Get("narrator")
	require.True(t, ok)
	ollama, ok := client.(*OllamaClient)
	require.True(t, ok)
	assert.Equal(t, "mistral", ollama.model)
}

func TestRegistry_Bindings_ListsRegisteredNames(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterFromConfig("narrator", config.LLMConfig{
		Provider: config.LLMProviderOllama,
		BaseURL:  "http://localhost:11434",
	}))
	require.NoError(t, reg.RegisterFromConfig("critic", config.LLMConfig{
		Provider: config.LLMProviderOllama,
		BaseURL:  "http://localhost:11434",
	}))

	assert.ElementsMatch(t, []string{"narrator", "critic"}, reg.Bindings())
}

func TestRegistry_ConcurrentRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := "binding"
			_ = reg.RegisterFromConfig(name, config.LLMConfig{
				Provider: config.LLMProviderOllama,
				BaseURL:  "http://localhost:11434",
			})
			reg.Get(name)
		}(i)
	}
	wg.Wait()

	_, ok := reg.Get("binding")
	assert.True(t, ok)
}
