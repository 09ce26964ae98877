package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"clantracker/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestInterpolator(store *storage.Store, now time.Time) *Interpolator {
	ip := NewInterpolator(store, InterpolatorOptions{
		Step:   5 * time.Minute,
		Window: 7 * 24 * time.Hour,
	}, zerolog.Nop())
	ip.now = func() time.Time { return now }
	return ip
}

func insertSnapshot(t *testing.T, store *storage.Store, ts time.Time, members, points int) {
	t.Helper()
	require.NoError(t, store.InsertSnapshot(context.Background(), storage.Snapshot{
		Timestamp:         ts,
		ClanTag:           "#TEST",
		ClanName:          "Test Clan",
		ClanLevel:         10,
		ClanPoints:        points,
		ClanCapitalPoints: 2000,
		Members:           members,
		WarWins:           120,
		WarLosses:         40,
		RequiredTrophies:  2000,
	}))
}

func TestSweepFillsFifteenMinuteGap(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	insertSnapshot(t, store, base, 50, 1000)
	insertSnapshot(t, store, base.Add(15*time.Minute), 52, 1040)

	ip := newTestInterpolator(store, base.Add(16*time.Minute))
	inserted, err := ip.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	snapshots, err := store.ListSnapshots(context.Background(), "#TEST")
	require.NoError(t, err)
	require.Len(t, snapshots, 4)

	first := snapshots[1]
	require.True(t, first.Timestamp.Equal(base.Add(5*time.Minute)))
	require.Equal(t, 51, first.Members)   // 50 + 2/3, rounded
	require.Equal(t, 1013, first.ClanPoints)

	second := snapshots[2]
	require.True(t, second.Timestamp.Equal(base.Add(10*time.Minute)))
	require.Equal(t, 51, second.Members)
	require.Equal(t, 1027, second.ClanPoints)
}

func TestSweepCopiesDiscreteFieldsFromPreviousRow(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertSnapshot(context.Background(), storage.Snapshot{
		Timestamp: base, ClanTag: "#TEST", ClanLevel: 10, WarWins: 100, WarLosses: 30, RequiredTrophies: 2000,
		Members: 40, ClanPoints: 1000,
	}))
	require.NoError(t, store.InsertSnapshot(context.Background(), storage.Snapshot{
		Timestamp: base.Add(20 * time.Minute), ClanTag: "#TEST", ClanLevel: 11, WarWins: 101, WarLosses: 31, RequiredTrophies: 2200,
		Members: 42, ClanPoints: 1100,
	}))

	ip := newTestInterpolator(store, base.Add(21*time.Minute))
	_, err := ip.Sweep(context.Background())
	require.NoError(t, err)

	snapshots, err := store.ListSnapshots(context.Background(), "#TEST")
	require.NoError(t, err)
	require.Len(t, snapshots, 5)

	for _, synth := range snapshots[1:4] {
		require.Equal(t, 10, synth.ClanLevel, "discrete fields copy the preceding real row")
		require.Equal(t, 100, synth.WarWins)
		require.Equal(t, 30, synth.WarLosses)
		require.Equal(t, 2000, synth.RequiredTrophies)
	}
}

func TestSweepInterpolatedValuesStayBetweenEndpoints(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	insertSnapshot(t, store, base, 40, 1000)
	insertSnapshot(t, store, base.Add(time.Hour), 50, 2000)

	ip := newTestInterpolator(store, base.Add(time.Hour+time.Minute))
	_, err := ip.Sweep(context.Background())
	require.NoError(t, err)

	snapshots, err := store.ListSnapshots(context.Background(), "#TEST")
	require.NoError(t, err)
	for _, snap := range snapshots[1 : len(snapshots)-1] {
		require.Greater(t, snap.Members, 40)
		require.Less(t, snap.Members, 50)
		require.Greater(t, snap.ClanPoints, 1000)
		require.Less(t, snap.ClanPoints, 2000)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	insertSnapshot(t, store, base, 50, 1000)
	insertSnapshot(t, store, base.Add(30*time.Minute), 52, 1040)

	ip := newTestInterpolator(store, base.Add(31*time.Minute))

	inserted, err := ip.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, inserted)

	inserted, err = ip.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, inserted, "a filled gap must not be re-detected")
}

func TestSweepNoOpCases(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Fewer than two snapshots.
	insertSnapshot(t, store, base, 50, 1000)
	ip := newTestInterpolator(store, base.Add(time.Minute))
	inserted, err := ip.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, inserted)

	// Gap at exactly the step.
	insertSnapshot(t, store, base.Add(5*time.Minute), 51, 1010)
	ip = newTestInterpolator(store, base.Add(6*time.Minute))
	inserted, err = ip.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, inserted)
}

func TestSweepIgnoresSnapshotsOutsideWindow(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// A wide gap, but entirely older than the 7-day window.
	insertSnapshot(t, store, now.Add(-10*24*time.Hour), 50, 1000)
	insertSnapshot(t, store, now.Add(-9*24*time.Hour), 52, 1040)

	ip := newTestInterpolator(store, now)
	inserted, err := ip.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, inserted)
}

func TestSweepNeverBridgesAcrossClans(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// One clan with a real gap, another clan's lone row sitting inside it.
	insertSnapshot(t, store, base, 50, 1000)
	insertSnapshot(t, store, base.Add(15*time.Minute), 52, 1040)
	require.NoError(t, store.InsertSnapshot(ctx, storage.Snapshot{
		Timestamp:  base.Add(7 * time.Minute),
		ClanTag:    "#OTHER",
		ClanName:   "Other Clan",
		Members:    10,
		ClanPoints: 99999,
	}))

	ip := newTestInterpolator(store, base.Add(16*time.Minute))
	inserted, err := ip.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	// The gap is filled from the clan's own endpoints only.
	filled, err := store.ListSnapshots(ctx, "#TEST")
	require.NoError(t, err)
	require.Len(t, filled, 4)
	require.Equal(t, 51, filled[1].Members)
	require.Equal(t, 1013, filled[1].ClanPoints)
	require.Equal(t, 51, filled[2].Members)
	require.Equal(t, 1027, filled[2].ClanPoints)

	// The other clan's single row spawns nothing.
	other, err := store.ListSnapshots(ctx, "#OTHER")
	require.NoError(t, err)
	require.Len(t, other, 1)
}
