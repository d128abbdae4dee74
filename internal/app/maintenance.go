package app

import (
	"context"
	"fmt"
)

// Migrate creates the postgres schema.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openPostgres(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.CreateSchema(ctx); err != nil {
		return err
	}
	a.Logger.Info().Msg("schema up to date")
	return nil
}

// Purge runs one sweep of expired state.
func (a *App) Purge(ctx context.Context) error {
	store, closeStore, err := a.openPostgres(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := a.newSweeper(store, nil).Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "removed %d expired rows\n", removed)
	return nil
}
