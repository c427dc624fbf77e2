package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/voxelhq/scenepilot/internal/bridge"
	"github.com/voxelhq/scenepilot/internal/config"
	"github.com/voxelhq/scenepilot/internal/correct"
	"github.com/voxelhq/scenepilot/internal/embed"
	"github.com/voxelhq/scenepilot/internal/firewall"
	"github.com/voxelhq/scenepilot/internal/intent"
	"github.com/voxelhq/scenepilot/internal/learned"
	"github.com/voxelhq/scenepilot/internal/logging"
	"github.com/voxelhq/scenepilot/internal/override"
	"github.com/voxelhq/scenepilot/internal/resolver"
	"github.com/voxelhq/scenepilot/internal/router"
	"github.com/voxelhq/scenepilot/internal/scene"
	"github.com/voxelhq/scenepilot/internal/server"
	"github.com/voxelhq/scenepilot/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logging.Stderr(cfg.Debug)
	if cfg.LogFile != "" {
		fl, err := logging.NewFileLogger(cfg.LogFile, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer fl.Close()
		log = fl.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	client, stopBridge, err := startBridge(ctx, cfg.Bridge)
	if err != nil {
		return err
	}
	defer stopBridge()

	provider, err := buildProvider(cfg.Embedding)
	if err != nil {
		return err
	}
	if err := provider.Load(ctx); err != nil {
		log.Warn("embedding provider unavailable, semantic stages degrade", "error", err)
		provider = embed.HashProvider{}
	}

	var store learned.Store
	if cfg.LearnedDB != "" {
		sqliteStore, err := learned.OpenSQLite(cfg.LearnedDB, provider)
		if err != nil {
			return fmt.Errorf("open learned store: %w", err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
	} else {
		store = learned.NewMemoryStore(provider)
	}

	registry := workflow.NewRegistry(cfg.WorkflowDir, log)
	intents := intent.NewClassifier(provider, router.WorkflowEntries(registry), log)
	if err := intents.Warm(ctx); err != nil {
		return fmt.Errorf("warm intent classifier: %w", err)
	}

	sup := router.NewSupervisor(router.Deps{
		Analyzer:  scene.NewAnalyzer(client, cfg.SceneCacheTTL.Std(), log),
		Detector:  scene.NewDetector(cfg.ConfidenceFloor, log),
		Corrector: correct.NewEngine(nil, log),
		Overrides: override.NewEngine(log),
		Firewall:  firewall.NewEngine(log),
		Registry:  registry,
		Expander:  workflow.NewExpander(log),
		Adapter:   workflow.NewAdapter(provider, 0, log),
		Resolver: resolver.New(provider, store, resolver.Config{
			WholePromptLimit:    cfg.Resolver.WholePromptLimit,
			SentenceWindowLimit: cfg.Resolver.SentenceWindowLimit,
			MinContextLen:       cfg.Resolver.MinContextLen,
			HintRelevanceFloor:  cfg.Resolver.HintRelevanceFloor,
			LearnedMatchFloor:   cfg.Resolver.LearnedMatchFloor,
		}, log),
		Intents: intents,
		Log:     log,
	})

	log.Info("scenepilot ready", "workflows", len(registry.Names()))
	return server.New(sup, os.Stdin, os.Stdout, log).Run(ctx)
}

// startBridge launches the application-side bridge subprocess and wires a
// stdio client to it. An empty command runs without a boundary: every
// scene query degrades to an empty context.
func startBridge(ctx context.Context, cfg config.BridgeConfig) (bridge.Client, func(), error) {
	if cfg.Command == "" {
		return unreachableBoundary{}, func() {}, nil
	}
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("bridge stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("bridge stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start bridge %s: %w", cfg.Command, err)
	}
	stop := func() {
		stdin.Close()
		cmd.Wait()
	}
	return bridge.NewStdioClient(stdout, stdin), stop, nil
}

func buildProvider(cfg config.EmbeddingConfig) (embed.Provider, error) {
	switch cfg.Provider {
	case "", "hash":
		return embed.HashProvider{}, nil
	case "ollama":
		return embed.NewOllama(cfg.Model)
	case "fastembed":
		return embed.NewFastEmbed(embed.FastEmbedOptions{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// unreachableBoundary is the no-bridge client: every query fails, so the
// analyzer serves degraded empty contexts.
type unreachableBoundary struct{}

func (unreachableBoundary) Send(_ context.Context, cmd bridge.Command, _ map[string]any) (map[string]any, error) {
	return nil, &bridge.RPCError{Command: cmd, Msg: "no bridge configured"}
}
