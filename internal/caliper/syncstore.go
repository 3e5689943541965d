package caliper

import (
	"context"
	"database/sql"
	"time"
)

const (
	SyncPending = "pending"
	SyncOK      = "ok"
	SyncFailed  = "failed"
)

type SyncEntry struct {
	ResultID     string    `json:"resultId"`
	UserID       string    `json:"userId"`
	LineItemID   string    `json:"lineItemId"`
	FinalSeconds float64   `json:"finalSeconds"`
	Status       string    `json:"status"`
	Retries      int       `json:"retries"`
	LastError    string    `json:"lastError,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SQLSyncStore keeps the time_spent_sync ledger. Queries use $n placeholders,
// which both pgx and sqlite accept.
type SQLSyncStore struct{ DB *sql.DB }

func (s *SQLSyncStore) MarkPending(ctx context.Context, e SyncEntry) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO time_spent_sync (result_id, user_id, line_item_id, final_seconds, status, retries, updated_at)
		VALUES ($1,$2,$3,$4,'pending',0,$5)
		ON CONFLICT (result_id)
		DO UPDATE SET
			final_seconds=CASE WHEN EXCLUDED.final_seconds > time_spent_sync.final_seconds
				THEN EXCLUDED.final_seconds ELSE time_spent_sync.final_seconds END,
			status='pending',
			updated_at=EXCLUDED.updated_at`,
		e.ResultID, e.UserID, e.LineItemID, e.FinalSeconds, time.Now().Unix())
	return err
}

func (s *SQLSyncStore) MarkOK(ctx context.Context, resultID string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE time_spent_sync
		   SET status='ok', last_error=NULL, updated_at=$2
		 WHERE result_id=$1`, resultID, time.Now().Unix())
	return err
}

func (s *SQLSyncStore) MarkFailed(ctx context.Context, resultID, lastErr string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE time_spent_sync
		   SET status='failed', retries=retries+1, last_error=$2, updated_at=$3
		 WHERE result_id=$1`, resultID, lastErr, time.Now().Unix())
	return err
}

// ListFailed returns failed entries with fewer than maxRetries retries,
// oldest first.
func (s *SQLSyncStore) ListFailed(ctx context.Context, maxRetries, limit int) ([]SyncEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT result_id, user_id, line_item_id, final_seconds, status, retries, COALESCE(last_error,''), updated_at
		FROM time_spent_sync
		WHERE status='failed' AND retries < $1
		ORDER BY updated_at ASC
		LIMIT $2`, maxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncEntry
	for rows.Next() {
		var e SyncEntry
		var updated int64
		if err := rows.Scan(&e.ResultID, &e.UserID, &e.LineItemID, &e.FinalSeconds,
			&e.Status, &e.Retries, &e.LastError, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
