// Package poller turns upstream API fetch cycles into stored snapshots.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"clantracker/internal/derive"
	"clantracker/internal/fetcher"
	"clantracker/internal/storage"
)

// SnapshotNotifier receives every real snapshot the poller records, for live
// dashboard push. Interpolated rows never pass through here.
type SnapshotNotifier interface {
	BroadcastSnapshot(snapshot storage.Snapshot)
}

// Options tune the poller.
type Options struct {
	ClanTag string
	// PlayerFetchGap spaces out per-player detail requests to stay under the
	// upstream rate limit.
	PlayerFetchGap time.Duration
	// ActivityWindow is the lookback used for last-seen and activity score.
	ActivityWindow time.Duration
}

// Poller fetches clan and player data and persists it.
type Poller struct {
	api       fetcher.ClanAPI
	snapshots storage.SnapshotStore
	players   storage.PlayerStore
	notifier  SnapshotNotifier
	opts      Options
	logger    zerolog.Logger
}

// New constructs a Poller. notifier may be nil.
func New(api fetcher.ClanAPI, snapshots storage.SnapshotStore, players storage.PlayerStore, notifier SnapshotNotifier, opts Options, logger zerolog.Logger) *Poller {
	if opts.ActivityWindow <= 0 {
		opts.ActivityWindow = 7 * 24 * time.Hour
	}
	return &Poller{
		api:       api,
		snapshots: snapshots,
		players:   players,
		notifier:  notifier,
		opts:      opts,
		logger:    logger.With().Str("component", "poller").Logger(),
	}
}

// PollClan runs one clan fetch cycle: fetch, normalize, insert.
func (p *Poller) PollClan(ctx context.Context, tick time.Time) error {
	clan, err := p.api.Clan(ctx, p.opts.ClanTag)
	if err != nil {
		return fmt.Errorf("fetch clan: %w", err)
	}

	snapshot := storage.Snapshot{
		Timestamp:         tick.UTC(),
		ClanTag:           clan.Tag,
		ClanName:          clan.Name,
		ClanLevel:         clan.ClanLevel,
		ClanPoints:        clan.ClanPoints,
		ClanCapitalPoints: clan.ClanCapitalPoints,
		Members:           clan.Members,
		WarWins:           clan.WarWins,
		WarLosses:         clan.WarLosses,
		RequiredTrophies:  clan.RequiredTrophies,
	}
	if snapshot.ClanTag == "" {
		snapshot.ClanTag = p.opts.ClanTag
	}

	if err := p.snapshots.InsertSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}

	p.logger.Info().
		Str("clan", snapshot.ClanName).
		Int("members", snapshot.Members).
		Int("points", snapshot.ClanPoints).
		Msg("snapshot saved")

	if p.notifier != nil {
		p.notifier.BroadcastSnapshot(snapshot)
	}
	return nil
}

// PollPlayers runs one player fetch cycle: member list, then per-player
// detail. Individual player failures are logged and skipped so one bad tag
// cannot sink the whole cycle.
func (p *Poller) PollPlayers(ctx context.Context, tick time.Time) error {
	members, err := p.api.Members(ctx, p.opts.ClanTag)
	if err != nil {
		return fmt.Errorf("fetch member list: %w", err)
	}

	known, err := p.knownPlayers(ctx)
	if err != nil {
		return err
	}

	p.logger.Info().Int("members", len(members)).Msg("fetching player stats")

	now := tick.UTC()
	for _, member := range members {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := p.pollPlayer(ctx, member, known[member.Tag], now); err != nil {
			p.logger.Error().Err(err).Str("player", member.Name).Msg("player poll failed")
		}

		if p.opts.PlayerFetchGap > 0 {
			time.Sleep(p.opts.PlayerFetchGap)
		}
	}

	return nil
}

func (p *Poller) pollPlayer(ctx context.Context, member fetcher.Member, previous storage.Player, now time.Time) error {
	player, err := p.api.Player(ctx, member.Tag)
	if err != nil {
		return fmt.Errorf("fetch player: %w", err)
	}

	stat := storage.PlayerWarStat{
		PlayerTag:         player.Tag,
		Timestamp:         now,
		WarStars:          player.WarStars,
		AttackWins:        player.AttackWins,
		DefenseWins:       player.DefenseWins,
		Donations:         player.Donations,
		DonationsReceived: player.DonationsReceived,
	}

	history, err := p.players.ListPlayerWarStatsSince(ctx, player.Tag, now.Add(-p.opts.ActivityWindow))
	if err != nil {
		return fmt.Errorf("load war stat history: %w", err)
	}

	lastSeen := previous.LastSeen
	if countersAdvanced(history, stat) {
		lastSeen = now
	}

	if err := p.players.InsertPlayerWarStat(ctx, stat); err != nil {
		return fmt.Errorf("store war stat: %w", err)
	}

	deltas := derive.Deltas(derive.GroupDaily(append(history, stat)))

	record := storage.Player{
		Tag:           player.Tag,
		Name:          player.Name,
		TownHallLevel: player.TownHallLevel,
		ClanRole:      member.Role,
		LastSeen:      lastSeen,
		ActivityScore: derive.ActivityScore(deltas),
	}
	if err := p.players.UpsertPlayer(ctx, record); err != nil {
		return fmt.Errorf("store player: %w", err)
	}
	return nil
}

// Bootstrap polls immediately when the store is empty so the dashboard has a
// first point to show.
func (p *Poller) Bootstrap(ctx context.Context) error {
	_, err := p.snapshots.LatestSnapshot(ctx, p.opts.ClanTag)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNoSnapshots) {
		return err
	}

	p.logger.Info().Msg("no existing data found, fetching initial snapshot")
	return p.PollClan(ctx, time.Now())
}

func (p *Poller) knownPlayers(ctx context.Context) (map[string]storage.Player, error) {
	list, err := p.players.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	known := make(map[string]storage.Player, len(list))
	for _, pl := range list {
		known[pl.Tag] = pl
	}
	return known, nil
}

// countersAdvanced reports whether the new measurement moved any cumulative
// counter past the most recent stored one.
func countersAdvanced(history []storage.PlayerWarStat, stat storage.PlayerWarStat) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	return stat.Donations > last.Donations ||
		stat.DonationsReceived > last.DonationsReceived ||
		stat.AttackWins > last.AttackWins ||
		stat.DefenseWins > last.DefenseWins ||
		stat.WarStars > last.WarStars
}
