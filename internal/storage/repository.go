package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConfigured indicates the store was not initialised.
	ErrNotConfigured = errors.New("storage: database not configured")
	// ErrNoSnapshots indicates no snapshot exists for the requested clan.
	ErrNoSnapshots = errors.New("storage: no snapshots")
)

const (
	insertSnapshotSQL = `INSERT INTO clan_snapshots (
        timestamp,
        clan_tag,
        clan_name,
        clan_level,
        clan_points,
        clan_capital_points,
        members,
        war_wins,
        war_losses,
        required_trophies,
        created_at
    ) VALUES (?,?,?,?,?,?,?,?,?,?,?);`

	snapshotColumns = `id, timestamp, clan_tag, clan_name, clan_level, clan_points,
        clan_capital_points, members, war_wins, war_losses, required_trophies, created_at`

	listSnapshotsSQL = `SELECT ` + snapshotColumns + `
    FROM clan_snapshots
    ORDER BY timestamp, id;`

	listSnapshotsByTagSQL = `SELECT ` + snapshotColumns + `
    FROM clan_snapshots
    WHERE clan_tag = ?
    ORDER BY timestamp, id;`

	latestSnapshotSQL = `SELECT ` + snapshotColumns + `
    FROM clan_snapshots
    WHERE clan_tag = ?
    ORDER BY timestamp DESC, id DESC
    LIMIT 1;`

	latestSnapshotAnySQL = `SELECT ` + snapshotColumns + `
    FROM clan_snapshots
    ORDER BY timestamp DESC, id DESC
    LIMIT 1;`

	listSnapshotsBetweenSQL = `SELECT ` + snapshotColumns + `
    FROM clan_snapshots
    WHERE timestamp >= ? AND timestamp <= ?
    ORDER BY timestamp, id;`

	countSnapshotsSinceSQL = `SELECT COUNT(*) FROM clan_snapshots WHERE timestamp >= ?;`

	deleteSnapshotsBeforeSQL = `DELETE FROM clan_snapshots WHERE timestamp < ?;`

	upsertPlayerSQL = `INSERT INTO players (
        tag, name, town_hall_level, clan_role, last_seen, activity_score, updated_at
    ) VALUES (?,?,?,?,?,?,?)
    ON CONFLICT (tag) DO UPDATE
    SET name            = excluded.name,
        town_hall_level = excluded.town_hall_level,
        clan_role       = excluded.clan_role,
        last_seen       = excluded.last_seen,
        activity_score  = excluded.activity_score,
        updated_at      = excluded.updated_at;`

	listPlayersSQL = `SELECT tag, name, town_hall_level, clan_role, last_seen, activity_score, updated_at
    FROM players
    ORDER BY name, tag;`

	insertPlayerWarStatSQL = `INSERT INTO player_war_stats (
        player_tag, timestamp, war_stars, attack_wins, defense_wins, donations, donations_received
    ) VALUES (?,?,?,?,?,?,?);`

	listPlayerWarStatsSinceSQL = `SELECT id, player_tag, timestamp, war_stars, attack_wins,
        defense_wins, donations, donations_received
    FROM player_war_stats
    WHERE player_tag = ? AND timestamp >= ?
    ORDER BY timestamp, id;`

	deletePlayerWarStatsBeforeSQL = `DELETE FROM player_war_stats WHERE timestamp < ?;`
)

// SnapshotStore defines operations for clan snapshot persistence.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, snapshot Snapshot) error
	ListSnapshots(ctx context.Context, clanTag string) ([]Snapshot, error)
	LatestSnapshot(ctx context.Context, clanTag string) (Snapshot, error)
	ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]Snapshot, error)
	CountSnapshotsSince(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PlayerStore defines operations for player identity and war-stat persistence.
type PlayerStore interface {
	UpsertPlayer(ctx context.Context, player Player) error
	ListPlayers(ctx context.Context) ([]Player, error)
	InsertPlayerWarStat(ctx context.Context, stat PlayerWarStat) error
	ListPlayerWarStatsSince(ctx context.Context, playerTag string, since time.Time) ([]PlayerWarStat, error)
	DeletePlayerWarStatsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// InsertSnapshot appends a snapshot row. Missing optional numerics arrive as
// zero values and are stored as-is; only a zero timestamp is rejected. There
// is deliberately no uniqueness constraint on timestamp: rapid polls may
// record the same instant twice and consumers must tolerate that.
func (s *Store) InsertSnapshot(ctx context.Context, snapshot Snapshot) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if snapshot.Timestamp.IsZero() {
		return fmt.Errorf("insert snapshot: timestamp is required")
	}

	createdAt := snapshot.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, execErr := db.ExecContext(ctx, insertSnapshotSQL,
		snapshot.Timestamp.UnixMilli(),
		snapshot.ClanTag,
		snapshot.ClanName,
		snapshot.ClanLevel,
		snapshot.ClanPoints,
		snapshot.ClanCapitalPoints,
		snapshot.Members,
		snapshot.WarWins,
		snapshot.WarLosses,
		snapshot.RequiredTrophies,
		createdAt.UnixMilli(),
	)
	if execErr != nil {
		return fmt.Errorf("insert snapshot: %w", execErr)
	}
	return nil
}

// ListSnapshots returns all snapshots ordered ascending by timestamp,
// optionally filtered by clan tag.
func (s *Store) ListSnapshots(ctx context.Context, clanTag string) ([]Snapshot, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	var queryErr error
	if clanTag == "" {
		rows, queryErr = db.QueryContext(ctx, listSnapshotsSQL)
	} else {
		rows, queryErr = db.QueryContext(ctx, listSnapshotsByTagSQL, clanTag)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// LatestSnapshot returns the single most recent snapshot for a clan, or the
// most recent overall when clanTag is empty.
func (s *Store) LatestSnapshot(ctx context.Context, clanTag string) (Snapshot, error) {
	db, err := s.getDB()
	if err != nil {
		return Snapshot{}, err
	}

	var row *sql.Row
	if clanTag == "" {
		row = db.QueryRowContext(ctx, latestSnapshotAnySQL)
	} else {
		row = db.QueryRowContext(ctx, latestSnapshotSQL, clanTag)
	}

	snapshot, scanErr := scanSnapshotRow(row)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshots
	}
	if scanErr != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot: %w", scanErr)
	}
	return snapshot, nil
}

// ListSnapshotsBetween returns snapshots within the inclusive range, ascending.
func (s *Store) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.QueryContext(ctx, listSnapshotsBetweenSQL, from.UnixMilli(), to.UnixMilli())
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// CountSnapshotsSince counts snapshots at or after the cutoff.
func (s *Store) CountSnapshotsSince(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	var count int64
	if scanErr := db.QueryRowContext(ctx, countSnapshotsSinceSQL, cutoff.UnixMilli()).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots since: %w", scanErr)
	}
	return count, nil
}

// DeleteSnapshotsBefore removes snapshots strictly older than the cutoff and
// reports how many rows were deleted.
func (s *Store) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	res, execErr := db.ExecContext(ctx, deleteSnapshotsBeforeSQL, cutoff.UnixMilli())
	if execErr != nil {
		return 0, fmt.Errorf("delete snapshots before: %w", execErr)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

// UpsertPlayer inserts or replaces the record for a player tag.
func (s *Store) UpsertPlayer(ctx context.Context, player Player) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if player.Tag == "" {
		return fmt.Errorf("upsert player: tag is required")
	}

	updatedAt := player.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	var lastSeen int64
	if !player.LastSeen.IsZero() {
		lastSeen = player.LastSeen.UnixMilli()
	}

	_, execErr := db.ExecContext(ctx, upsertPlayerSQL,
		player.Tag,
		player.Name,
		player.TownHallLevel,
		player.ClanRole,
		lastSeen,
		player.ActivityScore,
		updatedAt.UnixMilli(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert player: %w", execErr)
	}
	return nil
}

// ListPlayers returns all known players ordered by name.
func (s *Store) ListPlayers(ctx context.Context) ([]Player, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.QueryContext(ctx, listPlayersSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list players: %w", queryErr)
	}
	defer rows.Close()

	players := make([]Player, 0)
	for rows.Next() {
		var p Player
		var lastSeen, updatedAt int64
		if err := rows.Scan(&p.Tag, &p.Name, &p.TownHallLevel, &p.ClanRole, &lastSeen, &p.ActivityScore, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		if lastSeen > 0 {
			p.LastSeen = time.UnixMilli(lastSeen).UTC()
		}
		p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		players = append(players, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return players, nil
}

// InsertPlayerWarStat appends a per-poll measurement for a player.
func (s *Store) InsertPlayerWarStat(ctx context.Context, stat PlayerWarStat) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if stat.PlayerTag == "" {
		return fmt.Errorf("insert player war stat: player tag is required")
	}
	if stat.Timestamp.IsZero() {
		return fmt.Errorf("insert player war stat: timestamp is required")
	}

	_, execErr := db.ExecContext(ctx, insertPlayerWarStatSQL,
		stat.PlayerTag,
		stat.Timestamp.UnixMilli(),
		stat.WarStars,
		stat.AttackWins,
		stat.DefenseWins,
		stat.Donations,
		stat.DonationsReceived,
	)
	if execErr != nil {
		return fmt.Errorf("insert player war stat: %w", execErr)
	}
	return nil
}

// ListPlayerWarStatsSince returns a player's measurements at or after the
// given instant, ascending by timestamp.
func (s *Store) ListPlayerWarStatsSince(ctx context.Context, playerTag string, since time.Time) ([]PlayerWarStat, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.QueryContext(ctx, listPlayerWarStatsSinceSQL, playerTag, since.UnixMilli())
	if queryErr != nil {
		return nil, fmt.Errorf("list player war stats: %w", queryErr)
	}
	defer rows.Close()

	stats := make([]PlayerWarStat, 0)
	for rows.Next() {
		var st PlayerWarStat
		var ts int64
		if err := rows.Scan(&st.ID, &st.PlayerTag, &ts, &st.WarStars, &st.AttackWins,
			&st.DefenseWins, &st.Donations, &st.DonationsReceived); err != nil {
			return nil, fmt.Errorf("scan player war stat: %w", err)
		}
		st.Timestamp = time.UnixMilli(ts).UTC()
		stats = append(stats, st)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return stats, nil
}

// DeletePlayerWarStatsBefore removes war-stat rows strictly older than cutoff.
func (s *Store) DeletePlayerWarStatsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	res, execErr := db.ExecContext(ctx, deletePlayerWarStatsBeforeSQL, cutoff.UnixMilli())
	if execErr != nil {
		return 0, fmt.Errorf("delete player war stats before: %w", execErr)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshotRow(row rowScanner) (Snapshot, error) {
	var snap Snapshot
	var ts, createdAt int64
	if err := row.Scan(
		&snap.ID,
		&ts,
		&snap.ClanTag,
		&snap.ClanName,
		&snap.ClanLevel,
		&snap.ClanPoints,
		&snap.ClanCapitalPoints,
		&snap.Members,
		&snap.WarWins,
		&snap.WarLosses,
		&snap.RequiredTrophies,
		&createdAt,
	); err != nil {
		return Snapshot{}, err
	}
	snap.Timestamp = time.UnixMilli(ts).UTC()
	snap.CreatedAt = time.UnixMilli(createdAt).UTC()
	return snap, nil
}

func collectSnapshots(rows *sql.Rows) ([]Snapshot, error) {
	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshotRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}
