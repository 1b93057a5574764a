// Package app assembles the query pipeline and its infrastructure from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/soyeahso/rewardbot/internal/aggregator"
	"github.com/soyeahso/rewardbot/internal/backend"
	"github.com/soyeahso/rewardbot/internal/cache"
	"github.com/soyeahso/rewardbot/internal/config"
	"github.com/soyeahso/rewardbot/internal/events"
	"github.com/soyeahso/rewardbot/internal/gateway"
	"github.com/soyeahso/rewardbot/internal/hooks"
	"github.com/soyeahso/rewardbot/internal/llm"
	"github.com/soyeahso/rewardbot/internal/logging"
	"github.com/soyeahso/rewardbot/internal/orchestrator"
	"github.com/soyeahso/rewardbot/internal/resilience"
	"github.com/soyeahso/rewardbot/internal/sink"
	"github.com/soyeahso/rewardbot/internal/store"
	"github.com/soyeahso/rewardbot/internal/synth"
	"github.com/soyeahso/rewardbot/internal/telemetry"
	"github.com/soyeahso/rewardbot/internal/version"
)

// Backend gateway names, also used as breaker names and metric labels.
const (
	RewardsGateway    = "rewards"
	CustomerGateway   = "customer"
	RedemptionGateway = "redemption"
)

// App is a fully wired rewardbot instance.
type App struct {
	Config        config.Config
	Orchestrator  *orchestrator.Orchestrator
	Hooks         *hooks.Manager
	Breakers      *resilience.Registry
	ContextCache  *cache.Named
	ResponseCache *cache.Named
	Generator     llm.Client
	Sinks         *sink.Registry
	// History is nil when the answer log is disabled.
	History *store.HistoryStore

	log     *logging.Logger
	closers []func(ctx context.Context) error
}

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	httpClient  *http.Client
	eventWriter events.MessageWriter
	historyPath string
}

// WithHTTPClient replaces the instrumented HTTP client used for backends and providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *buildOptions) { o.httpClient = c }
}

// WithEventWriter publishes answers through w instead of dialing Kafka.
func WithEventWriter(w events.MessageWriter) Option {
	return func(o *buildOptions) { o.eventWriter = w }
}

// WithHistoryPath sets the database file used when history.path is empty.
func WithHistoryPath(path string) Option {
	return func(o *buildOptions) { o.historyPath = path }
}

// Build wires every component described by cfg. Close releases what it opened.
func Build(ctx context.Context, cfg config.Config, log *logging.Logger, opts ...Option) (_ *App, err error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, log: log.Sub("app")}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "rewardbot",
		ServiceVersion: version.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("starting telemetry: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)

	ctxCache, err := a.newCache(ctx, cfg.Cache, "context")
	if err != nil {
		return nil, err
	}
	respCache, err := a.newCache(ctx, cfg.Cache, "response")
	if err != nil {
		return nil, err
	}
	a.ContextCache = cache.NewNamed("context", ctxCache)
	a.ResponseCache = cache.NewNamed("response", respCache)

	a.Breakers = resilience.NewRegistry(resilience.BreakerConfig{
		Threshold: cfg.Resilience.Breaker.FailureThreshold,
		Window:    cfg.Resilience.Breaker.Window,
		Cooldown:  cfg.Resilience.Breaker.Cooldown,
	},
		resilience.WithFailurePredicate(backend.IsTransient),
		resilience.WithLogger(log),
	)
	retrier := resilience.NewRetrier(resilience.RetryConfig{
		MaxAttempts:     cfg.Resilience.Retry.MaxAttempts,
		InitialInterval: cfg.Resilience.Retry.InitialInterval,
		MaxInterval:     cfg.Resilience.Retry.MaxInterval,
	}, backend.IsTransient)
	guard := func(name string) *resilience.Guard {
		return resilience.NewGuard(resilience.GuardConfig{
			Breaker: a.Breakers.Breaker(name),
			Retrier: retrier,
			Cache:   a.ContextCache,
			TTL:     cfg.Cache.ContextTTL,
		}, log)
	}

	endpoint := func(e config.BackendEndpoint) backend.Options {
		return backend.Options{BaseURL: e.BaseURL, Timeout: e.Timeout, HTTPClient: o.httpClient}
	}
	agg := aggregator.New(aggregator.Config{
		Rewards:    backend.NewRewardsClient(endpoint(cfg.Backends.Rewards), log),
		Cashback:   backend.NewCustomerClient(endpoint(cfg.Backends.Customer), log),
		Redemption: backend.NewRedemptionClient(endpoint(cfg.Backends.Redemption), log),
		Guards: aggregator.Guards{
			Rewards:    guard(RewardsGateway),
			Customer:   guard(CustomerGateway),
			Redemption: guard(RedemptionGateway),
		},
		Cache: a.ContextCache,
		TTL:   cfg.Cache.ContextTTL,
	}, log)

	var llmOpts []llm.APIOption
	if o.httpClient != nil {
		llmOpts = append(llmOpts, llm.WithHTTPClient(o.httpClient))
	}
	a.Generator = llm.NewFromConfig(cfg.Generation, log, llmOpts...)

	syn := synth.New(synth.Config{
		Client:       a.Generator,
		SystemPrompt: cfg.Generation.SystemPrompt,
		MaxTokens:    cfg.Generation.MaxTokens,
		Temperature:  cfg.Generation.Temperature,
		Timeout:      cfg.Generation.Timeout,
		Cache:        a.ResponseCache,
		TTL:          cfg.Cache.ResponseTTL,
	}, log)

	a.Hooks = hooks.NewManager(log)

	a.Sinks = sink.NewRegistry(a.Hooks, log)
	a.closers = append(a.closers, func(context.Context) error { return a.Sinks.CloseAll() })

	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			path = o.historyPath
		}
		if path == "" {
			return nil, errors.New("history is enabled but no database path is set")
		}
		db, err := store.Open(path, log)
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
		a.History = store.NewHistoryStore(db)
		if err := a.Sinks.Register(a.History); err != nil {
			db.Close()
			return nil, err
		}
	}

	if len(cfg.Events.Brokers) > 0 || o.eventWriter != nil {
		var pub *events.Publisher
		if o.eventWriter != nil {
			pub = events.NewPublisherWithWriter(o.eventWriter, log)
		} else {
			pub = events.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic, log)
		}
		if err := a.Sinks.Register(pub); err != nil {
			pub.Close()
			return nil, err
		}
	}
	a.Sinks.AttachAll()

	a.Orchestrator = orchestrator.New(orchestrator.Config{
		Aggregator:  agg,
		Synthesizer: syn,
		Hooks:       a.Hooks,
	}, log)

	a.log.Info().
		Str("cache", cfg.Cache.Backend).
		Str("generator", a.Generator.Name()).
		Bool("history", a.History != nil).
		Strs("sinks", a.Sinks.List()).
		Msg("pipeline ready")
	return a, nil
}

// newCache builds one cache store for the configured backend.
func (a *App) newCache(ctx context.Context, cfg config.CacheConfig, name string) (cache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		rc, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix + name + ":",
		}, a.log)
		if err != nil {
			return nil, fmt.Errorf("connecting %s cache: %w", name, err)
		}
		a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
		return rc, nil
	case "none":
		return cache.NewNoop(), nil
	default:
		mc := cache.NewMemory(cfg.CleanupInterval)
		a.closers = append(a.closers, func(context.Context) error { return mc.Close() })
		return mc, nil
	}
}

// Server builds the HTTP/WebSocket server for this app.
func (a *App) Server(log *logging.Logger) *gateway.Server {
	opts := []gateway.ServerOption{
		gateway.WithHooks(a.Hooks),
		gateway.WithBreakers(a.Breakers),
	}
	if a.History != nil {
		opts = append(opts, gateway.WithHistory(a.History))
	}
	return gateway.New(a.Config.Server, a.Orchestrator, log, opts...)
}

// Close drains pending hooks and releases resources in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
