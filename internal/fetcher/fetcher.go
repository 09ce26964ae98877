package fetcher

import "context"

// Clan is the subset of the upstream clan payload the tracker persists.
type Clan struct {
	Tag               string `json:"tag"`
	Name              string `json:"name"`
	ClanLevel         int    `json:"clanLevel"`
	ClanPoints        int    `json:"clanPoints"`
	ClanCapitalPoints int    `json:"clanCapitalPoints"`
	Members           int    `json:"members"`
	WarWins           int    `json:"warWins"`
	WarLosses         int    `json:"warLosses"`
	RequiredTrophies  int    `json:"requiredTrophies"`
}

// Member is one entry of the clan member list.
type Member struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Player is the subset of the upstream player payload the tracker persists.
type Player struct {
	Tag               string `json:"tag"`
	Name              string `json:"name"`
	TownHallLevel     int    `json:"townHallLevel"`
	Role              string `json:"role"`
	WarStars          int    `json:"warStars"`
	AttackWins        int    `json:"attackWins"`
	DefenseWins       int    `json:"defenseWins"`
	Donations         int    `json:"donations"`
	DonationsReceived int    `json:"donationsReceived"`
}

// ClanAPI retrieves clan and player data from the Clash of Clans API.
type ClanAPI interface {
	Clan(ctx context.Context, tag string) (Clan, error)
	Members(ctx context.Context, tag string) ([]Member, error)
	Player(ctx context.Context, tag string) (Player, error)
}
