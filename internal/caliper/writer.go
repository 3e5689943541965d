// Package caliper persists time-spent activity to the OneRoster gradebook and
// emits the matching Caliper events.
package caliper

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/bjornpagen/nice-sub010/pkg/oneroster"
)

const (
	MetaTimeSpent = "nice_timeSpent"

	defaultScore = 100.0
)

type Clock func() time.Time

type ResultStore interface {
	GetResult(ctx context.Context, sourcedID string) (oneroster.Result, error)
	PutResult(ctx context.Context, sourcedID string, r oneroster.Result) error
}

// SyncRecorder tracks the delivery state of each time-spent write so failed
// writes can be replayed.
type SyncRecorder interface {
	MarkPending(ctx context.Context, e SyncEntry) error
	MarkOK(ctx context.Context, resultID string) error
	MarkFailed(ctx context.Context, resultID, lastErr string) error
}

type TimeSpentInput struct {
	UserSourcedID string
	LineItemID    string
	FinalSeconds  float64
}

func (in TimeSpentInput) ResultID() string {
	return oneroster.ResultID(in.UserSourcedID, in.LineItemID)
}

type Writer struct {
	Results ResultStore
	Sync    SyncRecorder
	Now     Clock

	log zerolog.Logger
}

func NewWriter(results ResultStore, sync SyncRecorder, log zerolog.Logger) *Writer {
	return &Writer{
		Results: results,
		Sync:    sync,
		Now:     time.Now,
		log:     log.With().Str("component", "caliper_writer").Logger(),
	}
}

// UpsertNiceTimeSpentToOneRoster records the time a user spent on a line item
// in the derived nice_<user>_<lineItem> result. The stored time never
// decreases. Failures are logged and recorded, never returned.
func (w *Writer) UpsertNiceTimeSpentToOneRoster(ctx context.Context, in TimeSpentInput) {
	id := in.ResultID()
	log := w.log.With().Str("result", id).Float64("seconds", in.FinalSeconds).Logger()

	if w.Sync != nil {
		if err := w.Sync.MarkPending(ctx, SyncEntry{
			ResultID: id, UserID: in.UserSourcedID, LineItemID: in.LineItemID, FinalSeconds: in.FinalSeconds,
		}); err != nil {
			log.Warn().Err(err).Msg("mark time-spent sync pending")
		}
	}

	err := w.upsert(ctx, in)
	if err != nil {
		log.Error().Err(err).Msg("time-spent write to oneroster failed")
		if w.Sync != nil {
			if merr := w.Sync.MarkFailed(ctx, id, err.Error()); merr != nil {
				log.Warn().Err(merr).Msg("mark time-spent sync failed")
			}
		}
		return
	}
	if w.Sync != nil {
		if merr := w.Sync.MarkOK(ctx, id); merr != nil {
			log.Warn().Err(merr).Msg("mark time-spent sync ok")
		}
	}
}

func (w *Writer) upsert(ctx context.Context, in TimeSpentInput) error {
	id := in.ResultID()
	now := w.now().UTC()

	next := oneroster.Result{
		SourcedID:          id,
		Status:             "active",
		AssessmentLineItem: oneroster.GUIDRef{SourcedID: in.LineItemID, Type: "assessmentLineItem"},
		Student:            oneroster.GUIDRef{SourcedID: in.UserSourcedID, Type: "user"},
		Score:              defaultScore,
		ScoreStatus:        oneroster.ScoreStatusFullyGraded,
		ScoreDate:          now.Format(time.RFC3339),
		Metadata:           map[string]any{},
	}
	var existingTime float64

	prev, err := w.Results.GetResult(ctx, id)
	switch {
	case err == nil:
		if prev.ScoreStatus != "" {
			next.Score = prev.Score
			next.ScoreStatus = prev.ScoreStatus
		}
		if prev.ScoreStatus == oneroster.ScoreStatusFullyGraded && prev.ScoreDate != "" {
			next.ScoreDate = prev.ScoreDate
		}
		if prev.Metadata != nil {
			maps.Copy(next.Metadata, prev.Metadata)
		}
		existingTime, _ = oneroster.MetadataFloat(prev.Metadata, MetaTimeSpent)
	case errors.Is(err, oneroster.ErrNotFound):
	default:
		w.log.Warn().Err(err).Str("result", id).Msg("read existing time-spent result failed, using defaults")
	}

	next.Metadata[MetaTimeSpent] = math.Max(existingTime, math.Floor(in.FinalSeconds))

	if err := w.Results.PutResult(ctx, id, next); err != nil {
		return fmt.Errorf("put time-spent result %s: %w", id, err)
	}
	return nil
}

func (w *Writer) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}
