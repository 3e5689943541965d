package caliper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type FailedLister interface {
	ListFailed(ctx context.Context, maxRetries, limit int) ([]SyncEntry, error)
}

// Resyncer replays failed time-spent writes on a cron schedule.
type Resyncer struct {
	Writer     *Writer
	Failed     FailedLister
	MaxRetries int
	Batch      int
	Timeout    time.Duration

	log zerolog.Logger
}

func NewResyncer(w *Writer, failed FailedLister, log zerolog.Logger) *Resyncer {
	return &Resyncer{
		Writer:     w,
		Failed:     failed,
		MaxRetries: 5,
		Batch:      50,
		Timeout:    2 * time.Minute,
		log:        log.With().Str("component", "caliper_resync").Logger(),
	}
}

// RunOnce retries one batch and reports how many entries it replayed. On
// cancellation it stops early and returns the count so far with ctx.Err().
func (r *Resyncer) RunOnce(ctx context.Context) (int, error) {
	entries, err := r.Failed.ListFailed(ctx, r.MaxRetries, r.Batch)
	if err != nil {
		return 0, fmt.Errorf("list failed time-spent syncs: %w", err)
	}
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		r.Writer.UpsertNiceTimeSpentToOneRoster(ctx, TimeSpentInput{
			UserSourcedID: e.UserID,
			LineItemID:    e.LineItemID,
			FinalSeconds:  e.FinalSeconds,
		})
	}
	return len(entries), nil
}

// Start schedules RunOnce on spec (standard five-field cron syntax) and starts
// the scheduler. Stop the returned cron on shutdown.
func (r *Resyncer) Start(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
		defer cancel()
		n, err := r.RunOnce(ctx)
		if err != nil {
			r.log.Error().Err(err).Msg("time-spent resync failed")
			return
		}
		if n > 0 {
			r.log.Info().Int("entries", n).Msg("time-spent resync done")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule time-spent resync %q: %w", spec, err)
	}
	c.Start()
	r.log.Info().Str("schedule", spec).Msg("time-spent resync scheduled")
	return c, nil
}
