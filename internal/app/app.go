package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"clantracker/internal/config"
	"clantracker/internal/fetcher"
	"clantracker/internal/maintenance"
	"clantracker/internal/poller"
	"clantracker/internal/scheduler"
	"clantracker/internal/server"
	"clantracker/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore() (*storage.Store, func(), error) {
	store, err := storage.Open(a.Config.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("close store")
		}
	}
	return store, closer, nil
}

func (a *App) newFetcher() *fetcher.Client {
	return fetcher.NewClient(fetcher.ClientOptions{
		BaseURL:   a.Config.API.BaseURL,
		Token:     a.Config.API.Token,
		Timeout:   a.Config.API.RequestTimeout,
		UserAgent: a.Config.API.UserAgent,
	}, a.Logger)
}

func (a *App) newRetention(store *storage.Store) *maintenance.Retention {
	return maintenance.NewRetention(store, store, maintenance.RetentionOptions{
		Window:         a.Config.Retention.Window,
		RecentWindow:   a.Config.Retention.RecentWindow,
		MinRecentCount: a.Config.Retention.MinRecentCount,
		PlayerWindow:   a.Config.Retention.PlayerWindow,
	}, a.Logger)
}

func (a *App) newInterpolator(store *storage.Store) *maintenance.Interpolator {
	return maintenance.NewInterpolator(store, maintenance.InterpolatorOptions{
		Step:   a.Config.Interpolation.Step,
		Window: a.Config.Interpolation.Window,
	}, a.Logger)
}

// Run executes the long-running tracking service: pollers, maintenance
// sweeps, and the dashboard API.
func (a *App) Run(ctx context.Context) error {
	if a.Config.API.Token == "" {
		return errors.New("api.token is required to run the tracker")
	}
	if a.Config.API.ClanTag == "" {
		return errors.New("api.clan_tag is required to run the tracker")
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	srv := server.New(store, store, server.Options{
		Port:        a.Config.Server.Port,
		ClanTag:     a.Config.API.ClanTag,
		HistoryCap:  a.Config.Server.HistoryCap,
		TrendWindow: a.Config.Derive.TrendWindow,
		StaticDir:   a.Config.Server.StaticDir,
	}, a.Logger)

	p := poller.New(a.newFetcher(), store, store, srv.Hub(), poller.Options{
		ClanTag:        a.Config.API.ClanTag,
		PlayerFetchGap: a.Config.Poller.PlayerFetchGap,
		ActivityWindow: a.Config.Retention.RecentWindow,
	}, a.Logger)

	interpolator := a.newInterpolator(store)
	retention := a.newRetention(store)

	if err := p.Bootstrap(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("initial fetch failed, continuing with scheduled polls")
	}
	if _, err := interpolator.Sweep(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("startup gap fill failed")
	}

	sweeps := maintenance.NewScheduler(a.Logger)
	if err := sweeps.AddJob(a.Config.Retention.Schedule, retention); err != nil {
		return err
	}
	if err := sweeps.AddJob(a.Config.Interpolation.Schedule, interpolator); err != nil {
		return err
	}
	sweeps.Start()
	defer sweeps.Stop()

	clanLoop := scheduler.New(scheduler.Options{
		Interval:     a.Config.Poller.ClanInterval,
		AlignToStart: a.Config.Poller.AlignToInterval,
		StartupDelay: a.Config.Poller.StartupDelay,
	}, a.Logger)
	playerLoop := scheduler.New(scheduler.Options{
		Interval:     a.Config.Poller.PlayerInterval,
		AlignToStart: a.Config.Poller.AlignToInterval,
		StartupDelay: a.Config.Poller.StartupDelay,
	}, a.Logger)

	go func() {
		if err := clanLoop.Run(ctx, p.PollClan); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("clan poll loop terminated")
		}
	}()
	go func() {
		if err := playerLoop.Run(ctx, p.PollPlayers); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("player poll loop terminated")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	a.Logger.Info().Msg("tracker started")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("server forced to shut down")
	}

	a.Logger.Info().Msg("tracker stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical snapshots.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
