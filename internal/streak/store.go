// Package streak tracks consecutive weeks in which a user earned XP.
package streak

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const week = 7 * 24 * time.Hour

type Streak struct {
	UserID        string    `json:"userId"`
	CurrentWeeks  int       `json:"currentWeeks"`
	LongestWeeks  int       `json:"longestWeeks"`
	LastWeekStart time.Time `json:"lastWeekStart"`
	WeekXP        float64   `json:"weekXp"`
}

// Active reports whether the streak still counts at now: XP was earned this
// week or last week.
func (s Streak) Active(now time.Time) bool {
	if s.CurrentWeeks == 0 {
		return false
	}
	return !WeekStart(now).After(s.LastWeekStart.Add(week))
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SQLStore keeps streaks in user_streaks.
type SQLStore struct{ DB *sql.DB }

func (s *SQLStore) Get(ctx context.Context, userID string) (Streak, error) {
	st, err := get(ctx, s.DB, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Streak{UserID: userID}, nil
	}
	return st, err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q queryer, userID string) (Streak, error) {
	st := Streak{UserID: userID}
	var last int64
	err := q.QueryRowContext(ctx, `
		SELECT current_weeks, longest_weeks, last_week_start, week_xp
		FROM user_streaks WHERE user_id=$1`, userID).
		Scan(&st.CurrentWeeks, &st.LongestWeeks, &last, &st.WeekXP)
	if err != nil {
		return Streak{}, err
	}
	st.LastWeekStart = time.Unix(last, 0).UTC()
	return st, nil
}

// UpdateStreak credits xp to the week containing at. A week directly after the
// last credited week extends the streak; a gap restarts it at one. Credits
// for weeks before the last credited week are ignored.
func (s *SQLStore) UpdateStreak(ctx context.Context, userID string, xp float64, at time.Time) error {
	if xp <= 0 {
		return nil
	}
	ws := WeekStart(at)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	st, err := get(ctx, tx, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		st = Streak{UserID: userID, CurrentWeeks: 1, LongestWeeks: 1, LastWeekStart: ws, WeekXP: xp}
	case err != nil:
		return fmt.Errorf("load streak for %s: %w", userID, err)
	case ws.Equal(st.LastWeekStart):
		st.WeekXP += xp
	case ws.Before(st.LastWeekStart):
		return nil
	case ws.Equal(st.LastWeekStart.Add(week)):
		st.CurrentWeeks++
		st.LastWeekStart, st.WeekXP = ws, xp
	default:
		st.CurrentWeeks = 1
		st.LastWeekStart, st.WeekXP = ws, xp
	}
	st.LongestWeeks = max(st.LongestWeeks, st.CurrentWeeks)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_streaks (user_id, current_weeks, longest_weeks, last_week_start, week_xp, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id)
		DO UPDATE SET
			current_weeks=EXCLUDED.current_weeks,
			longest_weeks=EXCLUDED.longest_weeks,
			last_week_start=EXCLUDED.last_week_start,
			week_xp=EXCLUDED.week_xp,
			updated_at=EXCLUDED.updated_at`,
		userID, st.CurrentWeeks, st.LongestWeeks, st.LastWeekStart.Unix(), st.WeekXP, time.Now().Unix()); err != nil {
		return fmt.Errorf("save streak for %s: %w", userID, err)
	}
	return tx.Commit()
}
