package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	auth "github.com/bjornpagen/nice-sub010/internal/auth/middleware"
	"github.com/bjornpagen/nice-sub010/internal/caliper"
	"github.com/bjornpagen/nice-sub010/internal/eventlog"
	"github.com/bjornpagen/nice-sub010/internal/timecache"
	sensor "github.com/bjornpagen/nice-sub010/pkg/caliper"
	"github.com/bjornpagen/nice-sub010/pkg/oneroster"
)

type TimeStore interface {
	Get(ctx context.Context, k timecache.Key) (timecache.State, error)
	Set(ctx context.Context, k timecache.Key, st timecache.State) error
	Accumulate(ctx context.Context, k timecache.Key, deltaSeconds float64, now time.Time) (timecache.State, error)
}

type TimeSpentWriter interface {
	UpsertNiceTimeSpentToOneRoster(ctx context.Context, in caliper.TimeSpentInput)
}

type TimeSpentEmitter interface {
	EmitTimeSpent(ctx context.Context, ts sensor.TimeSpent)
}

type TimeHandlers struct {
	Store   TimeStore
	Writer  TimeSpentWriter
	Emitter TimeSpentEmitter
	Events  EventAppender
	Now     func() time.Time
}

func (h *TimeHandlers) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// Mount registers the routes under /api/time/{assessmentId}/{attempt}.
func (h *TimeHandlers) Mount(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.put)
	r.Post("/heartbeat", h.heartbeat)
	r.Post("/finalize", h.finalize)
}

var errAttempt = errors.New("attempt must be a positive integer")

func timeKey(r *http.Request) (timecache.Key, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "attempt"))
	if err != nil || n < 1 {
		return timecache.Key{}, errAttempt
	}
	return timecache.Key{
		UserID:       auth.SubjectFromContext(r.Context()),
		AssessmentID: chi.URLParam(r, "assessmentId"),
		Attempt:      n,
	}, nil
}

func (h *TimeHandlers) get(w http.ResponseWriter, r *http.Request) {
	k, err := timeKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	st, err := h.Store.Get(r.Context(), k)
	if err != nil {
		serverError(w, r, http.StatusInternalServerError, "read time state", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *TimeHandlers) put(w http.ResponseWriter, r *http.Request) {
	k, err := timeKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var st timecache.State
	if err := decodeBody(w, r, &st); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Store.Set(r.Context(), k, st); err != nil {
		if isValidation(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		serverError(w, r, http.StatusInternalServerError, "write time state", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type heartbeatRequest struct {
	DeltaSeconds float64 `json:"deltaSeconds" validate:"gte=0,lte=3600"`
}

func (h *TimeHandlers) heartbeat(w http.ResponseWriter, r *http.Request) {
	k, err := timeKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req heartbeatRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	st, err := h.Store.Accumulate(r.Context(), k, req.DeltaSeconds, h.now())
	if errors.Is(err, timecache.ErrInvalidDelta) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		serverError(w, r, http.StatusInternalServerError, "accumulate time state", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type finalizeRequest struct {
	ComponentResourceSourcedID string `json:"componentResourceSourcedId" validate:"required"`
	ActivityName               string `json:"activityName"`
}

// finalize pushes the accumulated time to OneRoster and Caliper. Both writes
// are best-effort, so the response only reflects the cached state.
func (h *TimeHandlers) finalize(w http.ResponseWriter, r *http.Request) {
	k, err := timeKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req finalizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	st, err := h.Store.Get(r.Context(), k)
	if err != nil {
		serverError(w, r, http.StatusInternalServerError, "read time state", err)
		return
	}

	// outlive a client disconnect
	ctx := context.WithoutCancel(r.Context())
	h.Writer.UpsertNiceTimeSpentToOneRoster(ctx, caliper.TimeSpentInput{
		UserSourcedID: k.UserID,
		LineItemID:    oneroster.LineItemID(req.ComponentResourceSourcedID),
		FinalSeconds:  st.CumulativeActiveSeconds,
	})
	if h.Emitter != nil {
		h.Emitter.EmitTimeSpent(ctx, sensor.TimeSpent{
			ActorID:       k.UserID,
			ActivityID:    req.ComponentResourceSourcedID,
			ActivityName:  req.ActivityName,
			ActiveSeconds: st.CumulativeActiveSeconds,
			At:            h.now(),
		})
	}
	if h.Events != nil {
		key := eventKey(k.UserID, req.ComponentResourceSourcedID, k.Attempt)
		if err := h.Events.Append(ctx, eventlog.TypeTimeSpentFinalized, key, st); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("key", key).Msg("append time-spent event")
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func eventKey(user, componentResource string, attempt int) string {
	return user + ":" + componentResource + ":" + strconv.Itoa(attempt)
}
