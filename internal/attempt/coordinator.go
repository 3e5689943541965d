// Package attempt decides which attempt of an assessment a user is on and
// prepares the questions for it.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bjornpagen/nice-sub010/internal/httpx"
	"github.com/bjornpagen/nice-sub010/internal/qti"
	"github.com/bjornpagen/nice-sub010/internal/qti/parser"
	"github.com/bjornpagen/nice-sub010/internal/qti/selection"
	"github.com/bjornpagen/nice-sub010/pkg/powerpath"
	"github.com/bjornpagen/nice-sub010/pkg/qtiapi"
)

type RotationMode string

const (
	RotationDeterministic RotationMode = "deterministic"
	RotationRandom        RotationMode = "random"
)

var ErrAttemptNumberMissing = errors.New("assessment attempt number missing")

type ProgressService interface {
	GetAssessmentProgress(ctx context.Context, userSourcedID, componentResourceSourcedID string) (powerpath.Progress, error)
	CreateNewAssessmentAttempt(ctx context.Context, userSourcedID, componentResourceSourcedID string) (powerpath.NewAttempt, error)
}

type PrepareInput struct {
	UserSourcedID              string
	ResourceSourcedID          string
	ComponentResourceSourcedID string
	Test                       qtiapi.AssessmentTest
	Questions                  []qti.ResolvedQuestion
	RotationMode               RotationMode
}

type Prepared struct {
	Questions     []qti.ResolvedQuestion `json:"questions"`
	AttemptNumber int                    `json:"attemptNumber"`
}

type Coordinator struct {
	progress         ProgressService
	poll             RetryPolicy
	createRetryDelay time.Duration
	log              zerolog.Logger
}

type Option func(*Coordinator)

func WithPollPolicy(p RetryPolicy) Option {
	return func(c *Coordinator) { c.poll = p }
}

func WithCreateRetryDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.createRetryDelay = d }
}

func NewCoordinator(progress ProgressService, log zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		progress:         progress,
		poll:             DefaultPollPolicy(),
		createRetryDelay: 200 * time.Millisecond,
		log:              log.With().Str("component", "attempt").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PrepareInteractiveAssessment resolves the active attempt (rolling over a
// finalized one) and selects the questions to show for it.
func (c *Coordinator) PrepareInteractiveAssessment(ctx context.Context, in PrepareInput) (Prepared, error) {
	opts := selection.Options{}
	switch in.RotationMode {
	case RotationDeterministic:
		opts.BaseSeed = in.UserSourcedID + ":" + in.ResourceSourcedID
	case RotationRandom:
	default:
		return Prepared{}, fmt.Errorf("unknown rotation mode %q", in.RotationMode)
	}

	st, err := parser.ParseAssessmentTestXML(in.Test.RawXML)
	if err != nil {
		return Prepared{}, fmt.Errorf("assessment test %s: %w", in.Test.Identifier, err)
	}

	n, err := c.EnsureActiveAttempt(ctx, in.UserSourcedID, in.ComponentResourceSourcedID)
	if err != nil {
		return Prepared{}, err
	}
	opts.AttemptNumber = n

	return Prepared{
		Questions:     selection.Apply(st, in.Questions, opts),
		AttemptNumber: n,
	}, nil
}

// EnsureActiveAttempt returns the attempt number the user should work on.
// When the current attempt is finalized upstream it creates a new one, so
// calling this is not read-only.
func (c *Coordinator) EnsureActiveAttempt(ctx context.Context, userSourcedID, componentResourceSourcedID string) (int, error) {
	log := c.log.With().Str("user", userSourcedID).Str("componentResource", componentResourceSourcedID).Logger()

	p, err := c.progress.GetAssessmentProgress(ctx, userSourcedID, componentResourceSourcedID)
	if err != nil {
		return 0, fmt.Errorf("fetch assessment progress for %s: %w", componentResourceSourcedID, err)
	}
	attempt, finalized := p.Attempt, p.Finalized

	if !finalized {
		err := c.poll.Run(ctx, func(i int) bool {
			p, err := c.progress.GetAssessmentProgress(ctx, userSourcedID, componentResourceSourcedID)
			if err != nil {
				log.Warn().Err(err).Int("poll", i+1).Msg("assessment progress poll failed")
				return false
			}
			if p.Attempt > 0 {
				attempt = p.Attempt
			}
			finalized = p.Finalized
			return finalized
		})
		if err != nil {
			return 0, fmt.Errorf("await finalization of %s: %w", componentResourceSourcedID, err)
		}
	}

	if finalized {
		if n, ok := c.rollover(ctx, log, userSourcedID, componentResourceSourcedID); ok {
			attempt = n
		}
	}

	if attempt <= 0 {
		return 0, fmt.Errorf("%w: user %s, component resource %s", ErrAttemptNumberMissing, userSourcedID, componentResourceSourcedID)
	}
	return attempt, nil
}

// rollover creates a new attempt, retrying once when upstream has not yet
// registered the previous attempt as completed. Failure leaves the caller on
// the previous attempt.
func (c *Coordinator) rollover(ctx context.Context, log zerolog.Logger, userSourcedID, componentResourceSourcedID string) (int, bool) {
	na, err := c.progress.CreateNewAssessmentAttempt(ctx, userSourcedID, componentResourceSourcedID)
	if err != nil && notCompleted(err) {
		log.Info().Err(err).Msg("previous attempt not completed upstream, retrying attempt creation")
		if werr := wait(ctx, c.createRetryDelay); werr != nil {
			log.Error().Err(werr).Msg("attempt creation retry abandoned")
			return 0, false
		}
		na, err = c.progress.CreateNewAssessmentAttempt(ctx, userSourcedID, componentResourceSourcedID)
	}
	if err != nil {
		log.Error().Err(err).Msg("create new assessment attempt failed, continuing on previous attempt")
		return 0, false
	}
	if na.Attempt.Attempt <= 0 {
		log.Warn().Msg("new assessment attempt returned without an attempt number")
		return 0, false
	}
	log.Info().Int("attempt", na.Attempt.Attempt).Msg("rolled over to new assessment attempt")
	return na.Attempt.Attempt, true
}

func notCompleted(err error) bool {
	if httpx.StatusCode(err) == http.StatusUnprocessableEntity {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not completed")
}
