package http

import (
	"context"
	"net/http"

	"github.com/bjornpagen/nice-sub010/internal/caliper"
)

type FailedSyncLister interface {
	ListFailed(ctx context.Context, maxRetries, limit int) ([]caliper.SyncEntry, error)
}

// GET /admin/sync/failed?limit=100&max_retries=1000
// Lists time-spent writes that have not reached OneRoster.
func ListFailedSyncsHandler(l FailedSyncLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := min(parseIntDefault(r.URL.Query().Get("limit"), 100), 1000)
		maxRetries := parseIntDefault(r.URL.Query().Get("max_retries"), 1<<30)
		list, err := l.ListFailed(r.Context(), maxRetries, limit)
		if err != nil {
			serverError(w, r, http.StatusInternalServerError, "list failed syncs", err)
			return
		}
		if list == nil {
			list = []caliper.SyncEntry{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// ReadyHandler reports 503 until every dependency answers a ping.
func ReadyHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		code := http.StatusOK
		for name, p := range deps {
			if err := p.Ping(r.Context()); err != nil {
				status[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		writeJSON(w, code, status)
	}
}
