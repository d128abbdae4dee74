package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"fareradar/internal/config"
	"fareradar/internal/insight"
	"fareradar/internal/pricehistory"
	"fareradar/internal/provider"
	"fareradar/internal/ratelimit"
	"fareradar/internal/routes"
	"fareradar/internal/service"
	"fareradar/internal/storage"
	"fareradar/internal/tracking"
)

const metricsNamespace = "fareradar"

var errPostgresRequired = errors.New("this command needs store.backend=postgres")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// services is the wired domain layer shared by serve and the batch commands.
type services struct {
	keys     storage.Keyspace
	backend  storage.Backend
	provider provider.SearchProvider
	history  *pricehistory.Service
	insights *insight.Service
	search   *service.Service
	routes   *routes.Service
	limiter  *ratelimit.Limiter
}

// openBackend selects the store once from config. The returned closer is never nil.
func (a *App) openBackend(ctx context.Context) (storage.Backend, func(), error) {
	switch a.Config.Store.Backend {
	case config.BackendPostgres:
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewStore(pool)
		return store, store.Close, nil
	case config.BackendMemory:
		a.Logger.Warn().Msg("using in-memory store; state is lost on restart and not shared between instances")
		return storage.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", a.Config.Store.Backend)
	}
}

// openPostgres opens the backend and insists on postgres, for commands that
// read state written by another process.
func (a *App) openPostgres(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Store.Backend != config.BackendPostgres {
		return nil, nil, errPostgresRequired
	}
	backend, closer, err := a.openBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	return backend.(*storage.Store), closer, nil
}

func (a *App) newProvider() provider.SearchProvider {
	cfg := a.Config.Provider
	if cfg.Mode != config.ProviderLive {
		return provider.NewMock()
	}

	client := &http.Client{Timeout: cfg.Timeout}
	fetcher := provider.NewClientCredentialsFetcher(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, client)
	tokens := provider.NewTokenService(fetcher, provider.TokenOptions{Timeout: cfg.Timeout}, a.Logger)
	return provider.NewLive(provider.LiveOptions{
		BaseURL:   cfg.BaseURL,
		Currency:  cfg.Currency,
		Timeout:   cfg.Timeout,
		Retries:   cfg.Retries,
		Backoff:   cfg.Backoff,
		UserAgent: cfg.UserAgent,
	}, tokens, client, a.Logger)
}

func (a *App) newServices(backend storage.Backend, p provider.SearchProvider, observer service.Observer) *services {
	keys := storage.Keyspace{Prefix: a.Config.Store.KeyPrefix}
	history := pricehistory.New(backend, pricehistory.Options{Keys: keys}, a.Logger)
	insights := insight.New(history, a.Logger)

	search := service.New(p, backend, history, insights, observer, service.Options{
		Keys:          keys,
		SearchTTL:     a.Config.Cache.SearchTTL,
		FlightTTL:     a.Config.Cache.FlightTTL,
		SessionTTL:    a.Config.Cache.SessionTTL,
		RecordTimeout: a.Config.PriceHistory.RecordTimeout,
	}, a.Logger)

	return &services{
		keys:     keys,
		backend:  backend,
		provider: p,
		history:  history,
		insights: insights,
		search:   search,
		routes:   routes.New(history, a.Logger),
		limiter:  ratelimit.New(backend, a.policies(), a.Logger, ratelimit.WithKeyspace(keys)),
	}
}

func (a *App) policies() map[string]ratelimit.Policy {
	policies := ratelimit.DefaultPolicies()
	for name, spec := range a.Config.RateLimit.Policies {
		policies[name] = ratelimit.Policy{Limit: spec.Limit, Window: spec.Window}
	}
	return policies
}

// newTracker always logs clicks and also publishes them to NATS when configured.
func (a *App) newTracker(observer tracking.Observer) (*tracking.Tracker, error) {
	sinks := []tracking.Sink{tracking.NewLogSink(a.Logger)}
	if cfg := a.Config.NATS; cfg.URL != "" {
		natsSink, err := tracking.DialNATS(tracking.NATSOptions{
			URL:     cfg.URL,
			Subject: cfg.Subject,
			Name:    cfg.Name,
			Timeout: cfg.Timeout,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, natsSink)
	} else {
		a.Logger.Info().Msg("nats.url not configured; partner clicks are logged only")
	}
	return tracking.NewTracker(observer, a.Logger, sinks...), nil
}

// ExportOptions hold parameters for exporting a route's price samples.
type ExportOptions struct {
	Origin      string
	Destination string
	From        *time.Time
	To          *time.Time
	PNGPath     string
	CSVPath     string
	MaxPoints   int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Origin      string
	Destination string
	WindowDays  int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	Origin      string
	Destination string
	From        time.Time
	To          time.Time
	Step        int
	DryRun      bool
}

// RankOptions configure the rank command.
type RankOptions struct {
	InputPath string
	JSON      bool
}
