package maintenance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"clantracker/internal/storage"
)

// InterpolatorOptions tune the gap-fill sweep.
type InterpolatorOptions struct {
	// Step is the target spacing between points. Gaps wider than Step get
	// synthesized points at Step cadence.
	Step time.Duration
	// Window bounds how far back a sweep looks.
	Window time.Duration
	// Timeout bounds a single sweep.
	Timeout time.Duration
}

// Interpolator smooths visualization across polling downtime by synthesizing
// evenly spaced intermediate snapshots. Synthesized rows go through the same
// insert path as real ones and carry no provenance marker, so once a gap is
// filled its spacing drops to at most Step and later sweeps skip it: the
// operation is idempotent after the first fill.
type Interpolator struct {
	store  storage.SnapshotStore
	opts   InterpolatorOptions
	logger zerolog.Logger

	now func() time.Time
}

// NewInterpolator constructs the gap-fill sweep.
func NewInterpolator(store storage.SnapshotStore, opts InterpolatorOptions, logger zerolog.Logger) *Interpolator {
	if opts.Step <= 0 {
		opts.Step = 5 * time.Minute
	}
	if opts.Window <= 0 {
		opts.Window = 7 * 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &Interpolator{
		store:  store,
		opts:   opts,
		logger: logger.With().Str("component", "interpolator").Logger(),
		now:    time.Now,
	}
}

// Name implements Job.
func (ip *Interpolator) Name() string { return "gap-interpolation" }

// Run implements Job.
func (ip *Interpolator) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), ip.opts.Timeout)
	defer cancel()
	_, err := ip.Sweep(ctx)
	return err
}

// Sweep loads the recent window, walks adjacent pairs per clan, and fills
// any gap wider than Step. Returns the number of synthesized points. A
// concurrent real insert mid-sweep is harmless; at worst a gap stays unfilled
// until the next run.
func (ip *Interpolator) Sweep(ctx context.Context) (int, error) {
	now := ip.now().UTC()

	snapshots, err := ip.store.ListSnapshotsBetween(ctx, now.Add(-ip.opts.Window), now)
	if err != nil {
		return 0, fmt.Errorf("interpolate: load window: %w", err)
	}
	if len(snapshots) < 2 {
		return 0, nil
	}

	inserted := 0
	for _, series := range splitByClan(snapshots) {
		n, err := ip.fillSeries(ctx, series)
		inserted += n
		if err != nil {
			return inserted, err
		}
	}

	if inserted > 0 {
		ip.logger.Info().Int("inserted", inserted).Msg("filled snapshot gaps")
	}
	return inserted, nil
}

func (ip *Interpolator) fillSeries(ctx context.Context, snapshots []storage.Snapshot) (int, error) {
	inserted := 0
	for i := 1; i < len(snapshots); i++ {
		prev, curr := snapshots[i-1], snapshots[i]

		gap := curr.Timestamp.Sub(prev.Timestamp)
		if gap <= ip.opts.Step {
			continue
		}

		pointsToAdd := int(gap/ip.opts.Step) - 1
		if pointsToAdd <= 0 {
			continue
		}

		for j := 1; j <= pointsToAdd; j++ {
			progress := float64(j) / float64(pointsToAdd+1)
			point := interpolate(prev, curr, progress)
			point.Timestamp = prev.Timestamp.Add(time.Duration(j) * ip.opts.Step)

			if err := ip.store.InsertSnapshot(ctx, point); err != nil {
				return inserted, fmt.Errorf("interpolate: insert point: %w", err)
			}
			inserted++
		}
	}
	return inserted, nil
}

// splitByClan partitions the window into per-clan series so a gap is only
// ever bridged between two rows of the same clan. Input order (ascending by
// timestamp) is preserved within each series.
func splitByClan(snapshots []storage.Snapshot) map[string][]storage.Snapshot {
	series := make(map[string][]storage.Snapshot)
	for _, snap := range snapshots {
		series[snap.ClanTag] = append(series[snap.ClanTag], snap)
	}
	return series
}

// interpolate blends two snapshots at the given progress. Continuous fields
// are linearly interpolated and rounded back to integers; discrete fields
// copy prev verbatim.
func interpolate(prev, curr storage.Snapshot, progress float64) storage.Snapshot {
	return storage.Snapshot{
		ClanTag:  prev.ClanTag,
		ClanName: prev.ClanName,

		Members:           lerp(prev.Members, curr.Members, progress),
		ClanPoints:        lerp(prev.ClanPoints, curr.ClanPoints, progress),
		ClanCapitalPoints: lerp(prev.ClanCapitalPoints, curr.ClanCapitalPoints, progress),

		ClanLevel:        prev.ClanLevel,
		WarWins:          prev.WarWins,
		WarLosses:        prev.WarLosses,
		RequiredTrophies: prev.RequiredTrophies,
	}
}

func lerp(a, b int, progress float64) int {
	return int(math.Round(float64(a) + float64(b-a)*progress))
}
