package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webpilot/internal/agent"
	"webpilot/internal/browser"
	"webpilot/internal/bus"
	"webpilot/internal/catalog"
	"webpilot/internal/config"
	"webpilot/internal/domain"
	"webpilot/internal/mcp"
	"webpilot/internal/memory"
	"webpilot/internal/metrics"
	"webpilot/internal/provider"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "webpilot",
		Short: "WebPilot: browser-driving agent with a JSON-RPC tool server",
		Long:  "WebPilot exposes a browser automation toolset to language models, either over stdio JSON-RPC or through a built-in task loop.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.webpilot/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		return config.Defaults()
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.General.LogFile != "" {
		if f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		} else {
			logger.Warn("cannot open log file, using stderr", "path", cfg.General.LogFile, "err", err)
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

// buildCatalog starts the browser and registers its toolset.
func buildCatalog(ctx context.Context, cfg *config.Config, log *slog.Logger) (*catalog.Registry, *browser.Bridge, error) {
	bridge := browser.NewBridge(browser.BridgeConfig{
		ProfileDir:        cfg.Browser.UserDataDir,
		Headless:          cfg.Browser.Headless,
		WindowWidth:       cfg.Browser.WindowWidth,
		WindowHeight:      cfg.Browser.WindowHeight,
		NavigationTimeout: time.Duration(cfg.Browser.NavigationTimeout) * time.Second,
		Logger:            log,
	})
	if err := bridge.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}

	reg := catalog.NewRegistry(log)
	for _, t := range browser.Toolset(bridge, "") {
		if err := reg.Register(t); err != nil {
			bridge.Close()
			return nil, nil, err
		}
	}
	reg.Bind(bridge.Current())
	return reg, bridge, nil
}

func startMetrics(cfg *config.Config, log *slog.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Metrics.Endpoint, metrics.Collector.Handler())
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Metrics.Port)
	go func() {
		log.Info("metrics listening", "addr", addr, "endpoint", cfg.Metrics.Endpoint)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server stopped", "err", err)
		}
	}()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool catalog over stdio JSON-RPC",
		Long:  "Reads newline-delimited JSON-RPC requests on stdin and writes responses to stdout. All logging goes to stderr.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, bridge, err := buildCatalog(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer bridge.Close()

			startMetrics(cfg, log)

			transport := mcp.NewStdioTransport(os.Stdin, os.Stdout, log)
			srv := mcp.NewServer(reg, transport, mcp.ServerInfo{
				Name:    cfg.Server.Name,
				Version: cfg.Server.Version,
			}, log)

			log.Info("serving tool catalog on stdio", "tools", len(reg.List()))
			return srv.Run(ctx)
		},
	}
}

func runCmd() *cobra.Command {
	var providerName string
	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run a task through the agent loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := args[0]
			cfg := loadConfig()
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, bridge, err := buildCatalog(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer bridge.Close()

			startMetrics(cfg, log)

			var store domain.PatternStore
			if cfg.Memory.Enabled {
				s, err := memory.NewSQLiteStore(cfg.Memory.DBPath, log)
				if err != nil {
					return err
				}
				defer s.Close()
				store = s
			}

			factory := provider.NewFactory(cfg, log)
			prov, err := factory.Get(providerName)
			if err != nil {
				return err
			}

			events := bus.New(log)
			events.On("*", printEvent)

			orch := agent.NewOrchestrator(agent.OrchestratorConfig{
				Provider:         prov,
				Catalog:          reg,
				Store:            store,
				Contexts:         bridge,
				Interrupts:       bridge,
				Sink:             events,
				Filter:           agent.NewToolFilter(cfg.Agent.AllowedTools, cfg.Agent.DeniedTools),
				Logger:           log,
				MaxSteps:         cfg.Agent.MaxSteps,
				TokenWarnLimit:   cfg.Agent.TokenBudgetAlert,
				TokenInfoLimit:   cfg.Agent.TokenBudgetInfo,
				AbortOnToolError: cfg.Agent.AbortOnToolError,
				RateBurst:        cfg.Agent.RateBurst,
				RatePerMinute:    cfg.Agent.RatePerMinute,
			})

			sess, err := orch.Run(ctx, task)
			if err != nil {
				return err
			}

			select {
			case <-sess.Done():
			case <-ctx.Done():
				_ = orch.Cancel(sess.ID)
				<-sess.Done()
			}

			if sess.State() == agent.StateFailed {
				return fmt.Errorf("task failed: %s", sess.Failure())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "model provider to use (default from config)")
	return cmd
}

func printEvent(ev domain.AgentEvent) {
	switch ev.Type {
	case domain.AgentDelta:
		fmt.Print(ev.Content)
	case domain.AgentToolStart:
		fmt.Fprintf(os.Stderr, "\n[tool] %s\n", ev.Tool)
	case domain.AgentToolEnd:
		fmt.Fprintf(os.Stderr, "[tool] %s done\n", ev.Tool)
	case domain.AgentInfo:
		fmt.Fprintf(os.Stderr, "[info:%s] %s\n", ev.Warning, ev.Content)
	case domain.AgentWarning:
		fmt.Fprintf(os.Stderr, "[warn:%s] %s\n", ev.Warning, ev.Content)
	case domain.AgentCompleted:
		if ev.Content != "" {
			fmt.Print(ev.Content)
		}
		fmt.Println()
	case domain.AgentFailed:
		fmt.Fprintf(os.Stderr, "\n[failed] %s\n", ev.Content)
	case domain.AgentCancelled:
		fmt.Fprintln(os.Stderr, "\n[cancelled]")
	}
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the browser toolset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, bridge, err := buildCatalog(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer bridge.Close()

			for _, td := range reg.List() {
				fmt.Printf("%-15s %s\n", td.Name, td.Description)
				for _, p := range td.Params {
					req := "required"
					if p.Optional {
						req = "optional"
					}
					fmt.Printf("    %-11s %-8s %-9s %s\n", p.Name, p.Type, req, p.Description)
				}
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show config and provider health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}
			logger.Info("version", "webpilot", version)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			factory := provider.NewFactory(cfg, logger)
			prov := factory.HealthyProvider(ctx)
			if prov != nil {
				logger.Info("provider", "name", prov.Name(), "healthy", true)
			} else {
				logger.Info("provider", "healthy", false)
			}
			return nil
		},
	}
}
