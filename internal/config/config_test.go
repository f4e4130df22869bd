package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults_Valid(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
general:
  logLevel: debug
agent:
  maxSteps: 50
  abortOnToolError: true
browser:
  headless: false
  navigationTimeoutSeconds: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.General.LogLevel != "debug" {
		t.Fatalf("logLevel = %q", cfg.General.LogLevel)
	}
	if cfg.Agent.MaxSteps != 50 || !cfg.Agent.AbortOnToolError {
		t.Fatalf("agent = %+v", cfg.Agent)
	}
	if cfg.Browser.Headless {
		t.Fatal("headless override ignored")
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Name != "webpilot" {
		t.Fatalf("server.name = %q", cfg.Server.Name)
	}
	if cfg.Browser.WindowWidth != 1280 {
		t.Fatalf("windowWidth = %d", cfg.Browser.WindowWidth)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := writeConfig(t, `
agent:
  maxSteps: 500
general:
  logLevel: verbose
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !strings.Contains(err.Error(), "maxSteps") || !strings.Contains(err.Error(), "logLevel") {
		t.Fatalf("error does not name the bad fields: %v", err)
	}
}

func TestLoad_EnabledProviderNeedsAPIBase(t *testing.T) {
	path := writeConfig(t, `
providers:
  openai:
    enabled: true
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "apiBase") {
		t.Fatalf("err = %v, want apiBase validation error", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("WEBPILOT_TEST_KEY", "sk-visible")
	os.Unsetenv("WEBPILOT_TEST_ABSENT")

	cases := map[string]string{
		"key: ${WEBPILOT_TEST_KEY}":                "key: sk-visible",
		"key: ${WEBPILOT_TEST_ABSENT:-fallback}":   "key: fallback",
		"key: ${WEBPILOT_TEST_KEY:-ignored}":       "key: sk-visible",
		"key: ${WEBPILOT_TEST_ABSENT}":             "key: ${WEBPILOT_TEST_ABSENT}",
		"plain text without vars":                  "plain text without vars",
		"two: ${WEBPILOT_TEST_KEY}/${WEBPILOT_TEST_KEY}": "two: sk-visible/sk-visible",
	}
	for in, want := range cases {
		if got := ExpandEnvVars(in); got != want {
			t.Fatalf("ExpandEnvVars(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoad_ExpandsEnvVarsInValues(t *testing.T) {
	t.Setenv("WEBPILOT_TEST_MODEL", "llama3.2:3b")
	path := writeConfig(t, `
providers:
  ollama:
    enabled: true
    apiBase: ${WEBPILOT_TEST_BASE:-http://localhost:11434}
    defaultModel: ${WEBPILOT_TEST_MODEL}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pc := cfg.Providers["ollama"]
	if pc.APIBase != "http://localhost:11434" {
		t.Fatalf("apiBase = %q", pc.APIBase)
	}
	if pc.DefaultModel != "llama3.2:3b" {
		t.Fatalf("defaultModel = %q", pc.DefaultModel)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.General.LogLevel = "warn"
	cfg.Agent.MaxSteps = 7

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.General.LogLevel != "warn" || loaded.Agent.MaxSteps != 7 {
		t.Fatalf("round trip lost values: %+v", loaded)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if got := ExpandPath("~/.webpilot/memory.db"); got != filepath.Join(home, ".webpilot/memory.db") {
		t.Fatalf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/absolute/path"); got != "/absolute/path" {
		t.Fatalf("absolute path mangled: %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Fatalf("empty path mangled: %q", got)
	}
}
