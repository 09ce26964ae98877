package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"clantracker/internal/storage"
)

// RetentionOptions tune the pruning sweep.
type RetentionOptions struct {
	// Window is how much clan history is kept once pruning kicks in.
	Window time.Duration
	// RecentWindow and MinRecentCount form the density guard: pruning only
	// happens when at least MinRecentCount snapshots exist within
	// RecentWindow. This avoids destroying history after a stretch of
	// infrequent polling.
	RecentWindow   time.Duration
	MinRecentCount int64
	// PlayerWindow is the (longer) horizon for player war stats.
	PlayerWindow time.Duration
	// Timeout bounds a single sweep.
	Timeout time.Duration
}

// Retention prunes old rows once enough recent data has accumulated.
type Retention struct {
	snapshots storage.SnapshotStore
	players   storage.PlayerStore
	opts      RetentionOptions
	logger    zerolog.Logger

	now func() time.Time
}

// NewRetention constructs the retention sweep. players may be nil when only
// clan snapshots are tracked.
func NewRetention(snapshots storage.SnapshotStore, players storage.PlayerStore, opts RetentionOptions, logger zerolog.Logger) *Retention {
	if opts.Window <= 0 {
		opts.Window = 30 * 24 * time.Hour
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 7 * 24 * time.Hour
	}
	if opts.MinRecentCount <= 0 {
		opts.MinRecentCount = 1000
	}
	if opts.PlayerWindow <= 0 {
		opts.PlayerWindow = 90 * 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &Retention{
		snapshots: snapshots,
		players:   players,
		opts:      opts,
		logger:    logger.With().Str("component", "retention").Logger(),
		now:       time.Now,
	}
}

// Name implements Job.
func (r *Retention) Name() string { return "retention" }

// Run implements Job.
func (r *Retention) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()
	return r.Sweep(ctx)
}

// Sweep applies the two-tier policy: count snapshots inside the recent
// window; only when the count is at or above the threshold, delete everything
// older than the retention window.
func (r *Retention) Sweep(ctx context.Context) error {
	now := r.now().UTC()

	recent, err := r.snapshots.CountSnapshotsSince(ctx, now.Add(-r.opts.RecentWindow))
	if err != nil {
		return fmt.Errorf("retention: count recent snapshots: %w", err)
	}

	if recent < r.opts.MinRecentCount {
		r.logger.Debug().
			Int64("recent", recent).
			Int64("threshold", r.opts.MinRecentCount).
			Msg("not enough recent data, skipping prune")
		return nil
	}

	deleted, err := r.snapshots.DeleteSnapshotsBefore(ctx, now.Add(-r.opts.Window))
	if err != nil {
		return fmt.Errorf("retention: delete snapshots: %w", err)
	}
	if deleted > 0 {
		r.logger.Info().Int64("deleted", deleted).Msg("pruned clan snapshots")
	}

	if r.players != nil {
		statsDeleted, err := r.players.DeletePlayerWarStatsBefore(ctx, now.Add(-r.opts.PlayerWindow))
		if err != nil {
			return fmt.Errorf("retention: delete player war stats: %w", err)
		}
		if statsDeleted > 0 {
			r.logger.Info().Int64("deleted", statsDeleted).Msg("pruned player war stats")
		}
	}

	return nil
}
