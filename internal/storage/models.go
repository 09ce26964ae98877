package storage

import "time"

// Snapshot is one timestamped measurement of clan-level metrics.
//
// Members, ClanPoints, and ClanCapitalPoints are treated as continuous when
// gaps are interpolated; ClanLevel, WarWins, WarLosses, and RequiredTrophies
// are discrete and only ever copied forward.
type Snapshot struct {
	ID                int64     `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	ClanTag           string    `json:"clanTag"`
	ClanName          string    `json:"clanName"`
	ClanLevel         int       `json:"clanLevel"`
	ClanPoints        int       `json:"clanPoints"`
	ClanCapitalPoints int       `json:"clanCapitalPoints"`
	Members           int       `json:"members"`
	WarWins           int       `json:"warWins"`
	WarLosses         int       `json:"warLosses"`
	RequiredTrophies  int       `json:"requiredTrophies"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Player is the latest known identity and activity summary for one member.
// At most one row exists per tag; rows are replaced in place each poll.
type Player struct {
	Tag           string    `json:"tag"`
	Name          string    `json:"name"`
	TownHallLevel int       `json:"townHallLevel"`
	ClanRole      string    `json:"clanRole"`
	LastSeen      time.Time `json:"lastSeen"`
	ActivityScore int       `json:"activityScore"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PlayerWarStat is an append-only per-player, per-poll measurement. The
// counters come from the upstream API cumulatively and may reset; consumers
// must clamp deltas rather than assume monotonicity.
type PlayerWarStat struct {
	ID                int64     `json:"id"`
	PlayerTag         string    `json:"playerTag"`
	Timestamp         time.Time `json:"timestamp"`
	WarStars          int       `json:"warStars"`
	AttackWins        int       `json:"attackWins"`
	DefenseWins       int       `json:"defenseWins"`
	Donations         int       `json:"donations"`
	DonationsReceived int       `json:"donationsReceived"`
}
