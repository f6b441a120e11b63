package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/logwarden/logwarden/internal/models"
)

type sqliteCounterRepo struct {
	db *sql.DB
}

// Increment performs an atomic upsert so concurrent requests for the
// same source and window each observe a distinct count. The returned
// value is the count after this increment.
func (r *sqliteCounterRepo) Increment(ctx context.Context, source string, windowStart, now time.Time) (int64, error) {
	key := models.CounterKey(source, windowStart)

	query := `
		INSERT INTO attempt_counters (counter_key, source, window_start, count, first_seen, last_seen)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(counter_key) DO UPDATE SET
			count = count + 1,
			last_seen = excluded.last_seen
		RETURNING count
	`
	var count int64
	err := r.db.QueryRowContext(ctx, query, key, source, windowStart.UTC(), now.UTC(), now.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", key, err)
	}
	return count, nil
}

func (r *sqliteCounterRepo) Get(ctx context.Context, source string, windowStart time.Time) (*models.AttemptCounter, error) {
	key := models.CounterKey(source, windowStart)

	query := `
		SELECT counter_key, source, window_start, count, first_seen, last_seen
		FROM attempt_counters WHERE counter_key = ?
	`
	counter := &models.AttemptCounter{}
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&counter.Key, &counter.Source, &counter.WindowStart,
		&counter.Count, &counter.FirstSeen, &counter.LastSeen,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get counter %s: %w", key, err)
	}
	return counter, nil
}

func (r *sqliteCounterRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM attempt_counters WHERE window_start < ?", before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired counters: %w", err)
	}
	return result.RowsAffected()
}
