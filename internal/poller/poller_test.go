package poller

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"clantracker/internal/fetcher"
	"clantracker/internal/storage"
)

type fakeAPI struct {
	clan    fetcher.Clan
	members []fetcher.Member
	players map[string]fetcher.Player
	clanErr error
}

func (f *fakeAPI) Clan(ctx context.Context, tag string) (fetcher.Clan, error) {
	if f.clanErr != nil {
		return fetcher.Clan{}, f.clanErr
	}
	return f.clan, nil
}

func (f *fakeAPI) Members(ctx context.Context, tag string) ([]fetcher.Member, error) {
	return f.members, nil
}

func (f *fakeAPI) Player(ctx context.Context, tag string) (fetcher.Player, error) {
	player, ok := f.players[tag]
	if !ok {
		return fetcher.Player{}, errors.New("not found")
	}
	return player, nil
}

type captureNotifier struct {
	snapshots []storage.Snapshot
}

func (c *captureNotifier) BroadcastSnapshot(snapshot storage.Snapshot) {
	c.snapshots = append(c.snapshots, snapshot)
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testClan() fetcher.Clan {
	return fetcher.Clan{
		Tag:               "#ABC",
		Name:              "Test Clan",
		ClanLevel:         12,
		ClanPoints:        34000,
		ClanCapitalPoints: 2800,
		Members:           47,
		WarWins:           250,
		WarLosses:         90,
		RequiredTrophies:  2200,
	}
}

func TestPollClanStoresSnapshotAndNotifies(t *testing.T) {
	store := newTestStore(t)
	api := &fakeAPI{clan: testClan()}
	notifier := &captureNotifier{}

	p := New(api, store, store, notifier, Options{ClanTag: "#ABC"}, zerolog.Nop())

	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.PollClan(context.Background(), tick))

	latest, err := store.LatestSnapshot(context.Background(), "#ABC")
	require.NoError(t, err)
	require.Equal(t, "Test Clan", latest.ClanName)
	require.Equal(t, 47, latest.Members)
	require.True(t, latest.Timestamp.Equal(tick))

	require.Len(t, notifier.snapshots, 1)
	require.Equal(t, 34000, notifier.snapshots[0].ClanPoints)
}

func TestPollClanPropagatesFetchError(t *testing.T) {
	store := newTestStore(t)
	api := &fakeAPI{clanErr: errors.New("rate limited")}

	p := New(api, store, store, nil, Options{ClanTag: "#ABC"}, zerolog.Nop())

	err := p.PollClan(context.Background(), time.Now())
	require.Error(t, err)

	_, err = store.LatestSnapshot(context.Background(), "#ABC")
	require.ErrorIs(t, err, storage.ErrNoSnapshots)
}

func TestPollPlayersUpsertsAndAppendsStats(t *testing.T) {
	store := newTestStore(t)
	api := &fakeAPI{
		members: []fetcher.Member{
			{Tag: "#P1", Name: "Alice", Role: "leader"},
			{Tag: "#P2", Name: "Bob", Role: "member"},
		},
		players: map[string]fetcher.Player{
			"#P1": {Tag: "#P1", Name: "Alice", TownHallLevel: 14, Donations: 450, AttackWins: 120},
			"#P2": {Tag: "#P2", Name: "Bob", TownHallLevel: 11, Donations: 80},
		},
	}

	p := New(api, store, store, nil, Options{ClanTag: "#ABC"}, zerolog.Nop())

	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.PollPlayers(context.Background(), tick))

	players, err := store.ListPlayers(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 2)
	require.Equal(t, "leader", players[0].ClanRole)

	stats, err := store.ListPlayerWarStatsSince(context.Background(), "#P1", tick.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.Equal(t, 450, stats[0].Donations)
}

func TestPollPlayersSkipsFailingPlayer(t *testing.T) {
	store := newTestStore(t)
	api := &fakeAPI{
		members: []fetcher.Member{
			{Tag: "#P1", Name: "Alice", Role: "leader"},
			{Tag: "#GONE", Name: "Ghost", Role: "member"},
		},
		players: map[string]fetcher.Player{
			"#P1": {Tag: "#P1", Name: "Alice", TownHallLevel: 14},
		},
	}

	p := New(api, store, store, nil, Options{ClanTag: "#ABC"}, zerolog.Nop())

	require.NoError(t, p.PollPlayers(context.Background(), time.Now()),
		"one failing player must not sink the cycle")

	players, err := store.ListPlayers(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 1)
}

func TestPollPlayersUpdatesLastSeenOnCounterAdvance(t *testing.T) {
	store := newTestStore(t)
	api := &fakeAPI{
		members: []fetcher.Member{{Tag: "#P1", Name: "Alice", Role: "leader"}},
		players: map[string]fetcher.Player{
			"#P1": {Tag: "#P1", Name: "Alice", Donations: 100},
		},
	}

	p := New(api, store, store, nil, Options{ClanTag: "#ABC"}, zerolog.Nop())

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.PollPlayers(context.Background(), first))

	// No movement: last seen stays unset.
	second := first.Add(5 * time.Minute)
	require.NoError(t, p.PollPlayers(context.Background(), second))
	players, err := store.ListPlayers(context.Background())
	require.NoError(t, err)
	require.True(t, players[0].LastSeen.IsZero())

	// Donations advance: last seen moves to the tick.
	api.players["#P1"] = fetcher.Player{Tag: "#P1", Name: "Alice", Donations: 130}
	third := first.Add(10 * time.Minute)
	require.NoError(t, p.PollPlayers(context.Background(), third))

	players, err = store.ListPlayers(context.Background())
	require.NoError(t, err)
	require.True(t, players[0].LastSeen.Equal(third))
}

func TestBootstrapPollsOnlyWhenEmpty(t *testing.T) {
	store := newTestStore(t)
	api := &fakeAPI{clan: testClan()}
	notifier := &captureNotifier{}

	p := New(api, store, store, notifier, Options{ClanTag: "#ABC"}, zerolog.Nop())

	require.NoError(t, p.Bootstrap(context.Background()))
	require.Len(t, notifier.snapshots, 1)

	// Second bootstrap sees existing data and does nothing.
	require.NoError(t, p.Bootstrap(context.Background()))
	require.Len(t, notifier.snapshots, 1)
}
