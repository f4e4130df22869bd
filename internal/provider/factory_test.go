package provider

import (
	"log/slog"
	"testing"

	"webpilot/internal/config"
	"webpilot/internal/domain"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Providers["openai"] = config.ProviderConfig{
		Enabled: true,
		APIBase: "https://api.openai.com/v1",
		APIKey:  "sk-test",
	}
	cfg.Providers["disabled"] = config.ProviderConfig{Enabled: false}
	cfg.Providers["groq"] = config.ProviderConfig{
		Enabled: true,
		APIBase: "https://api.groq.com/openai/v1",
		APIKey:  "gsk-test",
	}
	return cfg
}

func TestFactory_GetKnownProviders(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())

	for _, name := range []string{"ollama", "openai"} {
		p, err := f.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		if p.Name() != name {
			t.Fatalf("Name() = %q, want %q", p.Name(), name)
		}
	}
}

func TestFactory_EmptyNameUsesDefault(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())

	p, err := f.Get("")
	if err != nil {
		t.Fatalf("Get(\"\"): %v", err)
	}
	if p.Name() != "ollama" {
		t.Fatalf("default provider = %q, want ollama", p.Name())
	}
}

func TestFactory_CachesInstances(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())

	a, err := f.Get("ollama")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := f.Get("ollama")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b {
		t.Fatal("repeated Get returned a different instance")
	}
}

func TestFactory_UnknownAndDisabled(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())

	if _, err := f.Get("nonexistent"); err == nil {
		t.Fatal("expected an error for an unconfigured provider")
	}
	if _, err := f.Get("disabled"); err == nil {
		t.Fatal("expected an error for a disabled provider")
	}
}

// Providers without a registered constructor fall back to the
// OpenAI-compatible client when an API base and key are configured.
func TestFactory_OpenAICompatibleFallback(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())

	p, err := f.Get("groq")
	if err != nil {
		t.Fatalf("Get(groq): %v", err)
	}
	if _, ok := p.(*OpenAI); !ok {
		t.Fatalf("fallback provider type = %T, want *OpenAI", p)
	}
}

func TestFactory_RegisterConstructorOverrides(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())
	f.RegisterConstructor("groq", func(pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewOllama(OllamaConfig{APIBase: pc.APIBase, Logger: logger})
	})

	p, err := f.Get("groq")
	if err != nil {
		t.Fatalf("Get(groq): %v", err)
	}
	if _, ok := p.(*Ollama); !ok {
		t.Fatalf("provider type = %T, want the registered constructor's *Ollama", p)
	}
}
