package xp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bjornpagen/nice-sub010/pkg/oneroster"
)

const (
	metaBankedXP = "nice_bankedXp"
	metaBankedBy = "nice_bankedBy"
	metaBankedAt = "nice_bankedAt"
)

// Roster is the slice of the OneRoster API the banker needs.
type Roster interface {
	ListComponentResources(ctx context.Context, courseComponentSourcedID string) ([]oneroster.ComponentResource, error)
	GetResource(ctx context.Context, sourcedID string) (oneroster.Resource, error)
	GetResult(ctx context.Context, sourcedID string) (oneroster.Result, error)
	PutResult(ctx context.Context, sourcedID string, r oneroster.Result) error
}

// Banker awards the XP of passive resources (articles and videos) that sit
// directly before an exercise in its lesson and that the user has spent time
// on. Each resource is banked at most once; the marker lives in the
// time-spent result's metadata.
type Banker struct {
	Roster Roster
	Now    Clock
	Log    zerolog.Logger
}

func (b *Banker) AwardBankedXPForExercise(ctx context.Context, req BankRequest) (BankResult, error) {
	if req.CourseComponentSourcedID == "" {
		return BankResult{}, errors.New("banked xp: course component required")
	}
	crs, err := b.Roster.ListComponentResources(ctx, req.CourseComponentSourcedID)
	if err != nil {
		return BankResult{}, fmt.Errorf("banked xp: list lesson resources: %w", err)
	}
	slices.SortStableFunc(crs, func(a, c oneroster.ComponentResource) int { return a.SortOrder - c.SortOrder })

	idx := slices.IndexFunc(crs, func(cr oneroster.ComponentResource) bool {
		return cr.SourcedID == req.ExerciseComponentResourceSourcedID
	})
	if idx < 0 {
		return BankResult{}, fmt.Errorf("banked xp: exercise %s not in lesson %s", req.ExerciseComponentResourceSourcedID, req.CourseComponentSourcedID)
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	var out BankResult
	// walk back until the previous non-passive resource
	for i := idx - 1; i >= 0; i-- {
		cr := crs[i]
		res, err := b.Roster.GetResource(ctx, cr.Resource.SourcedID)
		if err != nil {
			return out, fmt.Errorf("banked xp: resource %s: %w", cr.Resource.SourcedID, err)
		}
		if !passive(res.ActivityType()) {
			break
		}
		xp := res.XP()
		if xp <= 0 {
			continue
		}

		id := oneroster.ResultID(req.UserSourcedID, oneroster.LineItemID(cr.SourcedID))
		r, err := b.Roster.GetResult(ctx, id)
		if errors.Is(err, oneroster.ErrNotFound) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("banked xp: result %s: %w", id, err)
		}
		if _, done := r.Metadata[metaBankedXP]; done {
			continue
		}

		if r.Metadata == nil {
			r.Metadata = map[string]any{}
		}
		r.Metadata[metaBankedXP] = xp
		r.Metadata[metaBankedBy] = req.ExerciseComponentResourceSourcedID
		r.Metadata[metaBankedAt] = now().UTC().Format(time.RFC3339)
		if err := b.Roster.PutResult(ctx, id, r); err != nil {
			return out, fmt.Errorf("banked xp: write %s: %w", id, err)
		}
		b.Log.Debug().Str("resource", cr.SourcedID).Float64("xp", xp).Msg("banked passive xp")
		out.BankedXP += xp
		out.AwardedResourceIDs = append(out.AwardedResourceIDs, cr.SourcedID)
	}
	slices.Reverse(out.AwardedResourceIDs)
	return out, nil
}

func passive(activityType string) bool {
	switch strings.ToLower(activityType) {
	case "article", "video":
		return true
	}
	return false
}
