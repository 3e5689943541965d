// Package xp computes and awards experience points for completed assessments.
package xp

import "math"

const (
	// rush heuristics
	minSecondsPerQuestion = 5.0
	rushAccuracyCeiling   = 50.0

	masteryAccuracy = 80.0
	perfectAccuracy = 100.0

	ReasonAlreadyProficient = "XP farming prevention: user already proficient"
)

// Result is the outcome of one XP calculation. Accuracy is a percentage.
type Result struct {
	FinalXP        float64 `json:"finalXp"`
	Multiplier     float64 `json:"multiplier"`
	BaseXP         float64 `json:"baseXp"`
	Accuracy       float64 `json:"accuracy"`
	PenaltyApplied bool    `json:"penaltyApplied"`
	Reason         string  `json:"reason"`
}

type calcOptions struct {
	rushCheck       bool
	totalQuestions  int
	durationSeconds float64
	award           bool
}

type CalcOption func(*calcOptions)

// WithRushCheck enables the rush penalty using the question count and the
// time taken.
func WithRushCheck(totalQuestions int, durationSeconds float64) CalcOption {
	return func(o *calcOptions) {
		o.rushCheck = true
		o.totalQuestions = totalQuestions
		o.durationSeconds = durationSeconds
	}
}

// WithAward(false) marks the user as already proficient; no XP is granted.
func WithAward(award bool) CalcOption {
	return func(o *calcOptions) { o.award = award }
}

// CalculateAssessmentXP is pure. The proficiency guard takes precedence over
// the rush penalty, which takes precedence over the multiplier table.
func CalculateAssessmentXP(baseXP, accuracy float64, attemptNumber int, opts ...CalcOption) Result {
	o := calcOptions{award: true}
	for _, fn := range opts {
		fn(&o)
	}
	res := Result{BaseXP: baseXP, Accuracy: accuracy}

	if !o.award {
		res.Reason = ReasonAlreadyProficient
		return res
	}

	if o.rushCheck && o.totalQuestions > 0 {
		perQuestion := o.durationSeconds / float64(o.totalQuestions)
		if perQuestion < minSecondsPerQuestion && accuracy < rushAccuracyCeiling {
			res.FinalXP = -math.Max(1, math.Floor(float64(o.totalQuestions)))
			res.PenaltyApplied = true
			res.Reason = "rushing penalty: answered too quickly with low accuracy"
			return res
		}
	}

	res.Multiplier, res.Reason = multiplier(accuracy, attemptNumber)
	res.FinalXP = math.Round(baseXP * res.Multiplier)
	return res
}

func multiplier(accuracy float64, attemptNumber int) (float64, string) {
	first := attemptNumber <= 1
	switch {
	case accuracy >= perfectAccuracy && first:
		return 1.25, "perfect score on first attempt: 125% XP"
	case accuracy >= perfectAccuracy:
		return 1.0, "perfect score on retry: 100% XP"
	case accuracy >= masteryAccuracy && first:
		return 1.0, "mastery on first attempt: 100% XP"
	case accuracy >= masteryAccuracy:
		return 0.5, "mastery on retry: 50% XP"
	default:
		return 0, "below mastery threshold: no XP"
	}
}

// CalculateAwardedXP is the attempt-unaware calculation kept for older
// time-spent call sites. Use CalculateAssessmentXP for new code.
func CalculateAwardedXP(baseXP, accuracy float64) float64 {
	switch {
	case accuracy >= perfectAccuracy:
		return math.Round(baseXP * 1.25)
	case accuracy >= masteryAccuracy:
		return baseXP
	default:
		return 0
	}
}
