package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"fareradar/internal/httpapi"
	"fareradar/internal/metrics"
	"fareradar/internal/scheduler"
	"fareradar/internal/storage"
	"fareradar/internal/version"
)

// Serve runs the HTTP API and the background sweeper until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, closeBackend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer closeBackend()

	m := metrics.New(metricsNamespace)
	svc := a.newServices(backend, a.newProvider(), m)

	tracker, err := a.newTracker(m)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("click tracker close failed")
		}
	}()

	deps := httpapi.Deps{
		Flights:        svc.search,
		Routes:         svc.routes,
		Tracker:        tracker,
		Metrics:        m,
		MetricsHandler: m.Handler(),
	}
	if a.Config.RateLimit.Enabled {
		deps.Limiter = svc.limiter
	}
	api := httpapi.New(deps, httpapi.Options{
		RequestTimeout: a.Config.HTTP.RequestTimeout,
		Version:        version.Version,
		Provider:       svc.provider.Name(),
		Backend:        a.Config.Store.Backend,
	}, a.Logger)

	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           api.Router(),
		ReadTimeout:       a.Config.HTTP.ReadTimeout,
		ReadHeaderTimeout: a.Config.HTTP.ReadTimeout,
		WriteTimeout:      a.Config.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info().
			Str("addr", srv.Addr).
			Str("provider", svc.provider.Name()).
			Str("backend", a.Config.Store.Backend).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.shutdownTimeout())
		defer cancel()
		a.Logger.Info().Msg("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if a.Config.Sweeper.Enabled {
		sched, err := scheduler.New(scheduler.Options{
			Interval:     a.Config.Sweeper.Interval,
			AlignToStart: a.Config.Sweeper.AlignToInterval,
			StartupDelay: a.Config.Sweeper.StartupDelay,
		}, a.Logger)
		if err != nil {
			return err
		}
		sweeper := a.newSweeper(backend, m)
		g.Go(func() error {
			if err := sched.Run(gctx, sweeper.Tick); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	svc.search.Wait()
	if err != nil {
		a.Logger.Error().Err(err).Msg("server terminated with error")
		return err
	}
	a.Logger.Info().Msg("server stopped")
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if a.Config.HTTP.ShutdownTimeout > 0 {
		return a.Config.HTTP.ShutdownTimeout
	}
	return 10 * time.Second
}

func (a *App) newSweeper(backend storage.Backend, observer scheduler.PurgeObserver) *scheduler.Sweeper {
	locker, _ := backend.(storage.AdvisoryLocker)
	return scheduler.NewSweeper(backend, locker, a.Config.Sweeper.AdvisoryLockKey, observer, a.Logger)
}
