// Package app wires all silibot subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates the corpus store, the
// lookup [Service], the audio fetcher and the allow-list; Run loads the
// corpus, serves the observability endpoints and watches the corpus files;
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithMetrics,
// WithGatewayCheck, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/silibot/internal/allowlist"
	"github.com/MrWong99/silibot/internal/audiofetch"
	"github.com/MrWong99/silibot/internal/config"
	"github.com/MrWong99/silibot/internal/corpus"
	"github.com/MrWong99/silibot/internal/health"
	"github.com/MrWong99/silibot/internal/observe"
	"github.com/MrWong99/silibot/internal/resilience"
	"github.com/MrWong99/silibot/internal/voiceline"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	metrics  *observe.Metrics
	logLevel *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	store   *corpus.Store
	service *Service
	fetcher *audiofetch.Fetcher
	allow   *allowlist.Store

	gateway  func() bool
	listener net.Listener
	httpSrv  *http.Server

	// cfgMu guards cfg after Run has started.
	cfgMu sync.Mutex

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics records metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets [App.Reconfigure] change the log level of the process.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithGatewayCheck adds a /readyz check that fails while connected reports
// false.
func WithGatewayCheck(connected func() bool) Option {
	return func(a *App) { a.gateway = connected }
}

// WithListener serves HTTP on ln instead of listening on
// cfg.Server.ListenAddr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. The corpus is not read until [App.Run] or the
// first request; the allow-list database is opened immediately.
func New(_ context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.store, a.service = NewCorpusService(cfg, a.metrics)

	a.fetcher = NewFetcher(cfg.Audio, audiofetch.WithMetrics(a.metrics))

	allow, err := OpenAllowList(cfg.Search.AllowlistPath)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.allow = allow
	a.closers = append(a.closers, allow.Close)

	return a, nil
}

// NewCorpusService builds the corpus store and the lookup service from cfg
// without any of the long-running parts. The CLI and the MCP server use it
// directly.
func NewCorpusService(cfg *config.Config, m *observe.Metrics) (*corpus.Store, *Service) {
	var loaderOpts []corpus.LoaderOption
	if len(cfg.Corpus.RebuildCommand) > 0 {
		loaderOpts = append(loaderOpts, corpus.WithRebuilder(
			corpus.NewExecRebuilder(cfg.Corpus.RebuildCommand, cfg.Corpus.RebuildTimeout),
		))
	}
	loader := corpus.NewLoader(cfg.Corpus.EntityFile, cfg.Corpus.ResponseFile, loaderOpts...)

	var storeOpts []corpus.StoreOption
	if m != nil {
		storeOpts = append(storeOpts, corpus.WithReloadHook(func(snap *voiceline.Snapshot, err error) {
			if err != nil {
				m.RecordCorpusReload(context.Background(), 0, 0, 0, err)
				return
			}
			m.RecordCorpusReload(context.Background(), snap.Version(), snap.Catalog().Len(), snap.Corpus().Len(), nil)
		}))
	}
	store := corpus.NewStore(loader, storeOpts...)

	return store, NewService(store, NewResolver(cfg.Resolver), SearchFromConfig(cfg.Search), m)
}

// NewFetcher builds the audio fetcher from the audio section of cfg.
func NewFetcher(cfg config.AudioConfig, extra ...audiofetch.Option) *audiofetch.Fetcher {
	opts := []audiofetch.Option{
		audiofetch.WithTimeout(cfg.Timeout),
		audiofetch.WithMaxBytes(cfg.MaxBytes),
		audiofetch.WithUserAgent(cfg.UserAgent),
		audiofetch.WithDownloadDir(cfg.DownloadDir),
	}
	if cfg.BreakerFailures > 0 {
		opts = append(opts, audiofetch.WithCircuitBreaker(resilience.Config{
			MaxFailures: cfg.BreakerFailures,
			Cooldown:    cfg.BreakerCooldown,
		}))
	}
	return audiofetch.New(append(opts, extra...)...)
}

// OpenAllowList opens the allow-list at path, creating its directory.
func OpenAllowList(path string) (*allowlist.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create allow-list dir: %w", err)
		}
	}
	return allowlist.Open(path)
}

// Store returns the corpus store.
func (a *App) Store() *corpus.Store { return a.store }

// Service returns the lookup service.
func (a *App) Service() *Service { return a.service }

// Fetcher returns the audio fetcher.
func (a *App) Fetcher() *audiofetch.Fetcher { return a.fetcher }

// AllowList returns the search allow-list.
func (a *App) AllowList() *allowlist.Store { return a.allow }

// Handler returns the HTTP handler serving /healthz, /readyz and /metrics.
func (a *App) Handler() http.Handler {
	checkers := []health.Checker{health.CorpusChecker(a.store)}
	if a.gateway != nil {
		checkers = append(checkers, health.GatewayChecker(a.gateway))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.Middleware(a.metrics)(mux)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run loads the corpus, serves HTTP and, when configured, watches the
// corpus files. It blocks until ctx is cancelled or the HTTP server fails.
//
// A failed initial load is logged, not returned: requests keep answering
// "not ready" and the next request or file change retries.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.store.Reload(ctx); err != nil {
		slog.Error("initial corpus load failed, will retry on demand", "err", err)
	}

	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
		}
	}
	a.cfgMu.Lock()
	a.httpSrv = &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := a.httpSrv
	a.cfgMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve http: %w", err)
		}
		return nil
	})
	if a.cfg.Corpus.Watch {
		g.Go(func() error {
			return corpus.NewWatcher(a.store).Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("app running", "corpus_ready", a.store.Ready(), "watch", a.cfg.Corpus.Watch)
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Reconfigure applies the hot-reloadable parts of next and returns what
// changed. Settings listed in the diff's RestartRequired are logged and
// left alone.
func (a *App) Reconfigure(next *config.Config) config.ConfigDiff {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()

	d := config.Diff(a.cfg, next)
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ResolverChanged {
		a.service.SetResolver(NewResolver(next.Resolver))
		slog.Info("resolver settings changed",
			"phonetic_threshold", next.Resolver.PhoneticThreshold,
			"fuzzy_threshold", next.Resolver.FuzzyThreshold,
			"name_edits", next.Resolver.NameEdits,
			"line_tolerance", next.Resolver.LineTolerance,
		)
	}
	if d.SearchChanged {
		a.service.SetSearch(SearchFromConfig(next.Search))
		slog.Info("search settings changed", "max_results", next.Search.MaxResults, "tolerance", next.Search.Tolerance)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "settings", d.RestartRequired)
	}

	// Keep restart-only settings as they are so they are reported again
	// until the process restarts.
	applied := *a.cfg
	applied.Server.LogLevel = next.Server.LogLevel
	applied.Discord.ChannelID = next.Discord.ChannelID
	applied.Resolver = next.Resolver
	applied.Search.MaxResults = next.Search.MaxResults
	applied.Search.Tolerance = next.Search.Tolerance
	a.cfg = &applied
	return d
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server, then runs the closers in order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.cfgMu.Lock()
		srv := a.httpSrv
		a.cfgMu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
