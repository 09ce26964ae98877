// Package derive turns the raw cumulative war-stat series into a chartable
// per-day activity signal. Everything here is a pure function of its input:
// the same stored series always re-derives the same output.
package derive

import (
	"sort"
	"time"

	"clantracker/internal/storage"
)

// DefaultTrendWindow is the trailing window used for moving averages.
const DefaultTrendWindow = 7

// DailyPoint holds the per-field maximum of all measurements that fell on one
// calendar day. Taking the max guards against a transient dip being mistaken
// for a counter reset.
type DailyPoint struct {
	Date      time.Time `json:"date"`
	Donations int       `json:"donations"`
	Attacks   int       `json:"attacks"`
	WarStars  int       `json:"warStars"`
}

// ActivityPoint is a day-over-day delta, clamped at zero.
type ActivityPoint struct {
	Date      time.Time `json:"date"`
	Donations int       `json:"donations"`
	Attacks   int       `json:"attacks"`
	WarStars  int       `json:"warStars"`
}

// TrendPoint is a trailing simple moving average over activity deltas.
type TrendPoint struct {
	Date      time.Time `json:"date"`
	Donations float64   `json:"donations"`
	Attacks   float64   `json:"attacks"`
	WarStars  float64   `json:"warStars"`
}

// GroupDaily buckets measurements by calendar day (local midnight truncation)
// and keeps the maximum value seen per field within each day. The result is
// ascending by date.
func GroupDaily(stats []storage.PlayerWarStat) []DailyPoint {
	if len(stats) == 0 {
		return nil
	}

	byDay := make(map[time.Time]DailyPoint)
	for _, st := range stats {
		day := truncateToDay(st.Timestamp)
		point, ok := byDay[day]
		if !ok {
			point = DailyPoint{Date: day}
		}
		point.Donations = max(point.Donations, st.Donations)
		point.Attacks = max(point.Attacks, st.AttackWins)
		point.WarStars = max(point.WarStars, st.WarStars)
		byDay[day] = point
	}

	days := make([]DailyPoint, 0, len(byDay))
	for _, point := range byDay {
		days = append(days, point)
	}
	sortByDate(days)
	return days
}

// Deltas computes day-over-day differences over the daily series. Negative
// differences (upstream counter resets) are clamped to zero instead of
// producing negative "activity". The first day has no prior reference and is
// excluded, so the result has len(days)-1 entries.
func Deltas(days []DailyPoint) []ActivityPoint {
	if len(days) < 2 {
		return nil
	}

	deltas := make([]ActivityPoint, 0, len(days)-1)
	for i := 1; i < len(days); i++ {
		prev, curr := days[i-1], days[i]
		deltas = append(deltas, ActivityPoint{
			Date:      curr.Date,
			Donations: max(0, curr.Donations-prev.Donations),
			Attacks:   max(0, curr.Attacks-prev.Attacks),
			WarStars:  max(0, curr.WarStars-prev.WarStars),
		})
	}
	return deltas
}

// MovingAverage computes a trailing window-day simple moving average over the
// deltas. The first window-1 entries have no defined average and are excluded
// from the output rather than zero-filled.
func MovingAverage(deltas []ActivityPoint, window int) []TrendPoint {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	if len(deltas) < window {
		return nil
	}

	trend := make([]TrendPoint, 0, len(deltas)-window+1)
	for i := window - 1; i < len(deltas); i++ {
		var donations, attacks, stars int
		for _, d := range deltas[i-window+1 : i+1] {
			donations += d.Donations
			attacks += d.Attacks
			stars += d.WarStars
		}
		trend = append(trend, TrendPoint{
			Date:      deltas[i].Date,
			Donations: float64(donations) / float64(window),
			Attacks:   float64(attacks) / float64(window),
			WarStars:  float64(stars) / float64(window),
		})
	}
	return trend
}

// ActivityScore condenses recent deltas into a 0-100 engagement figure for
// the player list view. Donations count lightly, attacks and war stars
// heavily, since the latter require deliberate play.
func ActivityScore(deltas []ActivityPoint) int {
	var score float64
	for _, d := range deltas {
		score += float64(d.Donations)*0.2 + float64(d.Attacks)*3 + float64(d.WarStars)*5
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

func truncateToDay(t time.Time) time.Time {
	local := t.Local()
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

func sortByDate(days []DailyPoint) {
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
}
