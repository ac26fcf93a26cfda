package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// RunResync rebuilds the parse cache for the active profile from scratch
// and exits. The running service's resync endpoint trusts file mtimes;
// this command does not, so it also repairs a cache that went stale
// without mtimes changing, e.g. after restoring a vault from backup.
func RunResync(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.buildLogger(os.Stdout)
	slog.SetDefault(logger)

	eng, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	cur := eng.mgr.Current()
	if err := cur.Rebuild(ctx); err != nil {
		return fmt.Errorf("resync: %w", err)
	}

	st := cur.Status()
	logger.Info("Resync complete",
		slog.String("profile", st.ProfileName),
		slog.Int("notes", st.Notes),
		slog.Int("folders", st.Folders),
		slog.Int("tags", st.Tags))
	return nil
}
