// Command loomd is the Loom connector runtime server.
//
// It loads a YAML config, registers the built-in connectors, binds the
// configured instances, and serves the operator HTTP API together with the
// MCP agent gateway on a single listen address.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loomworks/loom/internal/app"
	"github.com/loomworks/loom/internal/config"
	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/connector/homeassistant"
	"github.com/loomworks/loom/pkg/connector/model"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "loom.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "loomd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "loomd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("loomd starting",
		"version", app.Version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Connector registry ────────────────────────────────────────────────────
	reg := connector.NewRegistry()
	if err := registerBuiltinConnectors(reg); err != nil {
		slog.Error("failed to register connectors", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher: hot-reload what is safe, warn about the rest ─────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.InstancesChanged {
			for _, ch := range d.InstanceChanges {
				slog.Warn("instance change requires restart to take effect",
					"instance", ch.Name,
					"added", ch.Added,
					"removed", ch.Removed,
				)
			}
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg, reg)

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Connector wiring ──────────────────────────────────────────────────────────

// registerBuiltinConnectors wires every connector that ships with Loom into
// reg: the Home Assistant REST connector plus the full model catalog.
func registerBuiltinConnectors(reg *connector.Registry) error {
	if err := reg.Register(homeassistant.Spec(), homeassistant.Factory); err != nil {
		return err
	}
	for _, r := range model.All() {
		if err := reg.Register(r.Spec, r.Factory); err != nil {
			return err
		}
		slog.Debug("registered connector", "id", r.Spec.ID)
	}
	return nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, reg *connector.Registry) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║           Loom — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Connectors      : %-19d ║\n", reg.Len())
	fmt.Printf("║  Instances       : %-19d ║\n", len(cfg.Instances))
	exposed := 0
	for _, inst := range cfg.Instances {
		if inst.Expose {
			exposed++
		}
	}
	fmt.Printf("║  Agent tools     : %-19d ║\n", exposed)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	if cfg.Server.TLS != nil {
		fmt.Printf("║  TLS             : %-19s ║\n", "enabled")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
