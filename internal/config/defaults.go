package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:        "info",
			DefaultProvider: "ollama",
		},
		Providers: map[string]ProviderConfig{
			"ollama": {
				Enabled:      true,
				APIBase:      "http://localhost:11434",
				DefaultModel: "llama3.1:8b",
			},
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30,
			WindowWidth:       1280,
			WindowHeight:      900,
		},
		Memory: MemoryConfig{
			Enabled: true,
			DBPath:  "~/.webpilot/memory.db",
		},
		Agent: AgentConfig{
			MaxSteps:      20,
			RateBurst:     10,
			RatePerMinute: 30,
		},
		Server: ServerConfig{
			Name:    "webpilot",
			Version: "0.1.0",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
			Port:     9090,
		},
	}
}
