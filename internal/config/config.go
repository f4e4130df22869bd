package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for WebPilot.
type Config struct {
	General   GeneralConfig             `yaml:"general"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Browser   BrowserConfig             `yaml:"browser"`
	Memory    MemoryConfig              `yaml:"memory"`
	Agent     AgentConfig               `yaml:"agent"`
	Server    ServerConfig              `yaml:"server"`
	Metrics   MetricsConfig             `yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel        string `yaml:"logLevel"`
	LogFile         string `yaml:"logFile,omitempty"`
	DefaultProvider string `yaml:"defaultProvider"`
}

type ProviderConfig struct {
	Enabled         bool   `yaml:"enabled"`
	APIBase         string `yaml:"apiBase,omitempty"`
	APIKey          string `yaml:"apiKey,omitempty"`
	DefaultModel    string `yaml:"defaultModel,omitempty"`
	RateLimitPerMin int    `yaml:"rateLimitPerMinute,omitempty"`
}

// BrowserConfig configures the Chrome instance the tools drive.
type BrowserConfig struct {
	Headless          bool   `yaml:"headless"`
	UserDataDir       string `yaml:"userDataDir,omitempty"`
	NavigationTimeout int    `yaml:"navigationTimeoutSeconds"`
	WindowWidth       int    `yaml:"windowWidth,omitempty"`
	WindowHeight      int    `yaml:"windowHeight,omitempty"`
}

type MemoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"dbPath"`
}

// AgentConfig tunes the task loop.
type AgentConfig struct {
	MaxSteps         int      `yaml:"maxSteps"`
	TokenBudgetAlert int      `yaml:"tokenBudgetAlert,omitempty"` // 0 = default threshold
	TokenBudgetInfo  int      `yaml:"tokenBudgetInfo,omitempty"`  // 0 = half the alert threshold
	AbortOnToolError bool     `yaml:"abortOnToolError"`
	RateBurst        int      `yaml:"rateBurst,omitempty"`
	RatePerMinute    float64  `yaml:"ratePerMinute,omitempty"`
	AllowedTools     []string `yaml:"allowedTools,omitempty"`
	DeniedTools      []string `yaml:"deniedTools,omitempty"`
}

// ServerConfig identifies this process to connected clients.
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Port     int    `yaml:"port"`
}

// DefaultConfigDir returns the default config directory (~/.webpilot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".webpilot"
	}
	return filepath.Join(home, ".webpilot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Memory.DBPath = ExpandPath(cfg.Memory.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Browser.UserDataDir = ExpandPath(cfg.Browser.UserDataDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Agent.MaxSteps < 1 || cfg.Agent.MaxSteps > 200 {
		errs = append(errs, "agent.maxSteps must be between 1 and 200")
	}
	if cfg.Agent.RatePerMinute < 0 {
		errs = append(errs, "agent.ratePerMinute must be >= 0")
	}
	if cfg.Browser.NavigationTimeout < 1 {
		errs = append(errs, "browser.navigationTimeoutSeconds must be >= 1")
	}
	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		errs = append(errs, "metrics.port must be between 0 and 65535")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	for name, pc := range cfg.Providers {
		if pc.Enabled && pc.APIBase == "" && name != "ollama" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
