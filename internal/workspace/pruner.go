package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// PruneSchedule is how often expired impersonations are cleared
const PruneSchedule = "*/15 * * * *"

// StartPruner schedules PruneExpired on the cron schedule. The returned cron
// is already running; call Stop on shutdown.
func StartPruner(store *Store, logger zerolog.Logger, schedule string) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		pruneOnce(store, logger)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}

	c.Start()
	logger.Info().Str("schedule", schedule).Msg("Impersonation pruner started")
	return c, nil
}

func pruneOnce(store *Store, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := store.PruneExpired(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prune expired impersonations")
		return
	}
	if n > 0 {
		logger.Info().Int64("cleared", n).Msg("Cleared expired impersonations")
	}
}
