package xp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var ErrInvalidInput = errors.New("xp: invalid award input")

var validate = validator.New()

type Clock func() time.Time

type ProficiencyChecker interface {
	IsProficient(ctx context.Context, userSourcedID, componentResourceSourcedID string) (bool, error)
}

type BankRequest struct {
	UserSourcedID                      string
	CourseComponentSourcedID           string
	ExerciseComponentResourceSourcedID string
}

type BankResult struct {
	BankedXP           float64  `json:"bankedXp"`
	AwardedResourceIDs []string `json:"awardedResourceIds"`
}

// BankedXPAwarder grants deferred XP for passive resources (articles,
// videos) consumed before an exercise.
type BankedXPAwarder interface {
	AwardBankedXPForExercise(ctx context.Context, req BankRequest) (BankResult, error)
}

type StreakUpdater interface {
	UpdateStreak(ctx context.Context, userSourcedID string, xp float64, at time.Time) error
}

// AwardInput is also the request body of the award endpoint. The user is
// taken from the session, never from the body. A positive DurationSeconds
// enables the rush check.
type AwardInput struct {
	UserSourcedID              string  `json:"-" validate:"required"`
	ResourceSourcedID          string  `json:"resourceSourcedId"`
	ComponentResourceSourcedID string  `json:"componentResourceSourcedId" validate:"required"`
	CourseComponentSourcedID   string  `json:"courseComponentSourcedId" validate:"required_if=ActivityType exercise"`
	ActivityType               string  `json:"activityType" validate:"required"`
	BaseXP                     float64 `json:"baseXp" validate:"gte=0"`
	CorrectQuestions           int     `json:"correctQuestions" validate:"gte=0,ltefield=TotalQuestions"`
	TotalQuestions             int     `json:"totalQuestions" validate:"gte=0"`
	AttemptNumber              int     `json:"attemptNumber" validate:"gte=1"`
	DurationSeconds            float64 `json:"durationSeconds" validate:"gte=0"`
}

type AwardResult struct {
	Result
	BankedXP          float64       `json:"bankedXp"`
	BankedResourceIDs []string      `json:"bankedResourceIds,omitempty"`
	Steps             []StepOutcome `json:"steps"`
}

func (r AwardResult) Outcome(step string) (Outcome, bool) {
	for _, s := range r.Steps {
		if s.Step == step {
			return s.Outcome, true
		}
	}
	return 0, false
}

type Awarder struct {
	Proficiency ProficiencyChecker
	Bank        BankedXPAwarder
	Streak      StreakUpdater
	Now         Clock

	log zerolog.Logger
}

func NewAwarder(p ProficiencyChecker, b BankedXPAwarder, s StreakUpdater, log zerolog.Logger, now Clock) *Awarder {
	if now == nil {
		now = time.Now
	}
	return &Awarder{
		Proficiency: p,
		Bank:        b,
		Streak:      s,
		Now:         now,
		log:         log.With().Str("component", "xp").Logger(),
	}
}

// AwardXPForAssessment runs the award pipeline for one completed assessment.
// Input that fails validation returns ErrInvalidInput before any step runs.
// Any other error is a *StepError for a Fatal step; the result then carries
// the outcomes recorded up to the failure.
func (a *Awarder) AwardXPForAssessment(ctx context.Context, in AwardInput) (AwardResult, error) {
	if err := validate.Struct(in); err != nil {
		return AwardResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	log := a.log.With().
		Str("user", in.UserSourcedID).
		Str("componentResource", in.ComponentResourceSourcedID).
		Int("attempt", in.AttemptNumber).
		Logger()
	var out AwardResult
	record := func(step string, o Outcome, err error) {
		out.Steps = append(out.Steps, StepOutcome{Step: step, Outcome: o, Err: err})
	}

	proficient, err := a.Proficiency.IsProficient(ctx, in.UserSourcedID, in.ComponentResourceSourcedID)
	if err != nil {
		record(StepProficiency, Fatal, err)
		return out, &StepError{Step: StepProficiency, Err: err}
	}
	record(StepProficiency, Succeeded, nil)

	accuracy := 0.0
	if in.TotalQuestions > 0 {
		accuracy = float64(in.CorrectQuestions) * 100 / float64(in.TotalQuestions)
	}

	if proficient {
		out.Result = CalculateAssessmentXP(in.BaseXP, accuracy, in.AttemptNumber, WithAward(false))
		record(StepCalculate, Skipped, nil)
		record(StepBank, Skipped, nil)
		record(StepStreak, Skipped, nil)
		log.Info().Msg("already proficient, no xp awarded")
		return out, nil
	}

	opts := []CalcOption{}
	if in.DurationSeconds > 0 {
		opts = append(opts, WithRushCheck(in.TotalQuestions, in.DurationSeconds))
	}
	out.Result = CalculateAssessmentXP(in.BaseXP, accuracy, in.AttemptNumber, opts...)
	record(StepCalculate, Succeeded, nil)

	if isExercise(in.ActivityType) && out.FinalXP > 0 && accuracy >= masteryAccuracy {
		br, err := a.Bank.AwardBankedXPForExercise(ctx, BankRequest{
			UserSourcedID:                      in.UserSourcedID,
			CourseComponentSourcedID:           in.CourseComponentSourcedID,
			ExerciseComponentResourceSourcedID: in.ComponentResourceSourcedID,
		})
		if err != nil {
			record(StepBank, Fatal, err)
			return out, &StepError{Step: StepBank, Err: err}
		}
		out.BankedXP = br.BankedXP
		out.BankedResourceIDs = br.AwardedResourceIDs
		out.FinalXP += br.BankedXP
		record(StepBank, Succeeded, nil)
	} else {
		record(StepBank, Skipped, nil)
	}

	if out.FinalXP > 0 {
		if err := a.Streak.UpdateStreak(ctx, in.UserSourcedID, out.FinalXP, a.Now()); err != nil {
			log.Error().Err(err).Msg("streak update failed")
			record(StepStreak, BestEffortFailed, err)
		} else {
			record(StepStreak, Succeeded, nil)
		}
	} else {
		record(StepStreak, Skipped, nil)
	}

	log.Info().
		Float64("finalXp", out.FinalXP).
		Float64("bankedXp", out.BankedXP).
		Float64("multiplier", out.Multiplier).
		Bool("penalty", out.PenaltyApplied).
		Msg("xp awarded")
	return out, nil
}

func isExercise(activityType string) bool {
	return strings.EqualFold(activityType, "exercise")
}
