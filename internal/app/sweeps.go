package app

import (
	"context"
	"fmt"
	"os"
)

// Fill runs one gap-interpolation pass and reports how many points were
// synthesized.
func (a *App) Fill(ctx context.Context) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	inserted, err := a.newInterpolator(store).Sweep(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "inserted %d interpolated snapshots\n", inserted)
	return nil
}

// Prune runs one retention pass.
func (a *App) Prune(ctx context.Context) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	return a.newRetention(store).Sweep(ctx)
}
