package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/bjornpagen/nice-sub010/internal/attempt"
	auth "github.com/bjornpagen/nice-sub010/internal/auth/middleware"
	"github.com/bjornpagen/nice-sub010/internal/eventlog"
	"github.com/bjornpagen/nice-sub010/internal/qti"
	"github.com/bjornpagen/nice-sub010/internal/qti/parser"
	"github.com/bjornpagen/nice-sub010/internal/xp"
	"github.com/bjornpagen/nice-sub010/pkg/qtiapi"
)

type TestSource interface {
	GetAssessmentTest(ctx context.Context, identifier string) (qtiapi.AssessmentTest, error)
}

type Preparer interface {
	PrepareInteractiveAssessment(ctx context.Context, in attempt.PrepareInput) (attempt.Prepared, error)
}

type Awarder interface {
	AwardXPForAssessment(ctx context.Context, in xp.AwardInput) (xp.AwardResult, error)
}

type EventAppender interface {
	Append(ctx context.Context, typ, key string, data any) error
}

type prepareRequest struct {
	AssessmentTestID           string `json:"assessmentTestId" validate:"required"`
	ResourceSourcedID          string `json:"resourceSourcedId" validate:"required"`
	ComponentResourceSourcedID string `json:"componentResourceSourcedId" validate:"required"`
	RotationMode               string `json:"rotationMode" validate:"omitempty,oneof=deterministic random"`
}

// POST /api/assessments/prepare
// Resolves the active attempt (creating a new one when the last is finalized)
// and returns the questions selected for it.
func PrepareAssessmentHandler(tests TestSource, items qti.ItemFetcher, prep Preparer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.SubjectFromContext(r.Context())
		var req prepareRequest
		if err := decodeBody(w, r, &req); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		mode := attempt.RotationDeterministic
		if req.RotationMode != "" {
			mode = attempt.RotationMode(req.RotationMode)
		}

		test, err := tests.GetAssessmentTest(r.Context(), req.AssessmentTestID)
		if errors.Is(err, qtiapi.ErrNotFound) {
			http.Error(w, "assessment test not found", http.StatusNotFound)
			return
		}
		if err != nil {
			serverError(w, r, http.StatusBadGateway, "fetch assessment test", err)
			return
		}

		questions, err := qti.ResolveAllQuestionsForTestFromXML(r.Context(), items, test)
		if err != nil {
			serverError(w, r, statusForPrepare(err), "resolve assessment questions", err)
			return
		}

		prepared, err := prep.PrepareInteractiveAssessment(r.Context(), attempt.PrepareInput{
			UserSourcedID:              user,
			ResourceSourcedID:          req.ResourceSourcedID,
			ComponentResourceSourcedID: req.ComponentResourceSourcedID,
			Test:                       test,
			Questions:                  questions,
			RotationMode:               mode,
		})
		if err != nil {
			serverError(w, r, statusForPrepare(err), "prepare assessment", err)
			return
		}
		writeJSON(w, http.StatusOK, prepared)
	}
}

func statusForPrepare(err error) int {
	switch {
	case errors.Is(err, parser.ErrMissingTestPart),
		errors.Is(err, parser.ErrMultipleTestParts),
		errors.Is(err, parser.ErrNoSections),
		errors.Is(err, parser.ErrNoItems),
		errors.Is(err, parser.ErrMissingIdentifier),
		errors.Is(err, parser.ErrItemRefOutsideSection),
		errors.Is(err, qti.ErrItemMissing):
		// broken content upstream
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// POST /api/assessments/xp
func AwardXPHandler(a Awarder, events EventAppender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in xp.AwardInput
		if err := decodeJSON(w, r, &in); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		in.UserSourcedID = auth.SubjectFromContext(r.Context())

		res, err := a.AwardXPForAssessment(r.Context(), in)
		if errors.Is(err, xp.ErrInvalidInput) {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			serverError(w, r, http.StatusBadGateway, "award xp", err)
			return
		}

		if events != nil {
			key := eventKey(in.UserSourcedID, in.ComponentResourceSourcedID, in.AttemptNumber)
			if err := events.Append(r.Context(), eventlog.TypeXPAwarded, key, res); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Str("key", key).Msg("append xp event")
			}
		}
		writeJSON(w, http.StatusOK, res)
	}
}
