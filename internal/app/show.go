package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent snapshots.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	snapshots, err := store.ListSnapshots(ctx, a.Config.API.ClanTag)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(os.Stdout, "no snapshots found")
		return nil
	}

	if opts.Limit > 0 && len(snapshots) > opts.Limit {
		snapshots = snapshots[len(snapshots)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tClan\tLevel\tMembers\tPoints\tCapital\tWar W/L")

	for _, snap := range snapshots {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%d\t%d\t%d\t%d/%d\n",
			snap.Timestamp.UTC().Format(time.RFC3339),
			snap.ClanName,
			snap.ClanLevel,
			snap.Members,
			snap.ClanPoints,
			snap.ClanCapitalPoints,
			snap.WarWins,
			snap.WarLosses,
		)
	}

	return writer.Flush()
}
