// Package app wires all Loom subsystems into a running service.
//
// The App struct owns the full lifecycle: New connects the connector
// registry, telemetry, configured instances, the operator HTTP API, and the
// agent gateway; Run serves until the context is cancelled; Shutdown flushes
// telemetry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loomworks/loom/internal/config"
	"github.com/loomworks/loom/internal/mcpgate"
	"github.com/loomworks/loom/internal/observe"
	"github.com/loomworks/loom/internal/server"
	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/connector/model"
)

// Version is the reported service version. Overridden at build time via
// -ldflags "-X github.com/loomworks/loom/internal/app.Version=...".
var Version = "dev"

// defaultListenAddr is used when server.listen_addr is not configured.
const defaultListenAddr = ":8080"

// shutdownTimeout bounds the graceful HTTP drain on context cancellation.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	registry *connector.Registry

	tracing   *observe.TracingService
	metrics   *observe.Metrics
	instances []*server.Instance
	gateway   *mcpgate.Gateway
	httpSrv   *http.Server

	shutdownOTel func(context.Context) error
	stopOnce     sync.Once
}

// Option is a functional option for [New].
type Option func(*App)

// WithoutTelemetry skips OTel provider initialisation and uses the current
// global providers instead. Tests use this to keep the process-wide
// Prometheus registry untouched.
func WithoutTelemetry() Option {
	return func(a *App) { a.shutdownOTel = func(context.Context) error { return nil } }
}

// New wires the application together. The registry must already hold every
// connector the config's instances refer to; unresolvable instances fail
// construction.
func New(ctx context.Context, cfg *config.Config, reg *connector.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		registry: reg,
	}
	for _, o := range opts {
		o(a)
	}

	// ── Telemetry ────────────────────────────────────────────────────────
	if a.shutdownOTel == nil {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceVersion: Version,
		})
		if err != nil {
			return nil, fmt.Errorf("app: init telemetry: %w", err)
		}
		a.shutdownOTel = shutdown
	}
	a.metrics = observe.DefaultMetrics()
	a.tracing = observe.NewTracingService(a.metrics)

	// ── Configured instances ─────────────────────────────────────────────
	byName := make(map[string]*server.Instance, len(cfg.Instances))
	for _, ic := range cfg.Instances {
		inst, err := server.BuildInstance(a.registry, ic.Name, ic.Connector, ic.Options, ic.Expose)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.instances = append(a.instances, inst)
		byName[ic.Name] = inst
		slog.Info("bound connector instance",
			"instance", ic.Name,
			"connector", ic.Connector,
			"expose", ic.Expose,
		)
	}

	// Failover chains reference other instances by name, so they are
	// composed only after every instance exists. This must precede the
	// serving surfaces: the gateway captures each adapter when it builds
	// its tools.
	for idx, ic := range cfg.Instances {
		if len(ic.Fallbacks) == 0 {
			continue
		}
		primary, ok := a.instances[idx].Adapter().(*model.Adapter)
		if !ok {
			return nil, fmt.Errorf("app: instance %q: fallbacks need a model connector, %q is not one", ic.Name, ic.Connector)
		}
		chain := make([]*model.Adapter, 0, len(ic.Fallbacks))
		for _, fbName := range ic.Fallbacks {
			target, ok := byName[fbName]
			if !ok {
				return nil, fmt.Errorf("app: instance %q: unknown fallback instance %q", ic.Name, fbName)
			}
			fb, ok := target.Adapter().(*model.Adapter)
			if !ok {
				return nil, fmt.Errorf("app: instance %q: fallback %q is not a model connector", ic.Name, fbName)
			}
			chain = append(chain, fb)
		}
		a.instances[idx].SetAdapter(primary.WithFallbacks(chain...))
		slog.Info("composed model failover chain", "instance", ic.Name, "fallbacks", ic.Fallbacks)
	}

	// ── Serving surfaces ─────────────────────────────────────────────────
	api := server.New(a.registry, a.tracing,
		server.WithInstances(a.instances...),
		server.WithCheckers(server.RegistryChecker(a.registry)),
	)
	a.gateway = mcpgate.New(Version, a.instances, a.tracing)

	root := http.NewServeMux()
	root.Handle("/mcp", a.gateway.Handler())
	root.Handle("/", api.Handler(a.metrics))

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	a.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Handler returns the root HTTP handler (operator API plus agent gateway).
func (a *App) Handler() http.Handler { return a.httpSrv.Handler }

// Gateway returns the agent gateway.
func (a *App) Gateway() *mcpgate.Gateway { return a.gateway }

// Instances returns the configured instances in declaration order.
func (a *App) Instances() []*server.Instance {
	out := make([]*server.Instance, len(a.instances))
	copy(out, a.instances)
	return out
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
// Returns nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			slog.Info("serving https", "addr", a.httpSrv.Addr)
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			slog.Info("serving http", "addr", a.httpSrv.Addr)
			err = a.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpSrv.Shutdown(drainCtx)
	})

	return g.Wait()
}

// Shutdown flushes telemetry. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		err = a.shutdownOTel(ctx)
		slog.Info("shutdown complete")
	})
	return err
}
