package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

const eventColumns = `event_id, user_id, occurred_at_ms, direction, source`

type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

// Update runs fn inside a single writer transaction. All Updates share the
// one Worker goroutine, so they never interleave.
func (s *AccessEventStore) Update(ctx context.Context, fn store.TxFn) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &eventTx{tx: tx})
	})
}

func (s *AccessEventStore) LatestForUser(ctx context.Context, userID int64) (store.AccessEvent, bool, error) {
	return latestForUser(ctx, s.db, userID)
}

func (s *AccessEventStore) RangeByTimestamp(ctx context.Context, start, end time.Time) ([]store.AccessEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+eventColumns+`
FROM access_events
WHERE occurred_at_ms >= ? AND occurred_at_ms < ?
ORDER BY occurred_at_ms, event_id;
`, start.UTC().UnixMilli(), end.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("RangeByTimestamp query: %w", err)
	}
	return collectEvents(rows)
}

func (s *AccessEventStore) AllOrderedByUserThenTime(ctx context.Context) ([]store.AccessEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+eventColumns+`
FROM access_events
ORDER BY user_id, occurred_at_ms, event_id;
`)
	if err != nil {
		return nil, fmt.Errorf("AllOrderedByUserThenTime query: %w", err)
	}
	return collectEvents(rows)
}

func (s *AccessEventStore) Recent(ctx context.Context, limit int) ([]store.AccessEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+eventColumns+`
FROM access_events
ORDER BY occurred_at_ms DESC, event_id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent query: %w", err)
	}
	return collectEvents(rows)
}

func (s *AccessEventStore) DeleteForUser(ctx context.Context, userID int64) (int64, error) {
	return s.delete(ctx, `DELETE FROM access_events WHERE user_id = ?;`, userID)
}

func (s *AccessEventStore) DeleteAll(ctx context.Context) (int64, error) {
	return s.delete(ctx, `DELETE FROM access_events;`)
}

func (s *AccessEventStore) delete(ctx context.Context, query string, args ...any) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type eventTx struct {
	tx *sql.Tx
}

func (t *eventTx) LatestForUser(ctx context.Context, userID int64) (store.AccessEvent, bool, error) {
	return latestForUser(ctx, t.tx, userID)
}

func (t *eventTx) LatestPerUser(ctx context.Context) ([]store.AccessEvent, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT e.event_id, e.user_id, e.occurred_at_ms, e.direction, e.source
FROM access_events e
WHERE e.event_id = (
  SELECT l.event_id
  FROM access_events l
  WHERE l.user_id = e.user_id
  ORDER BY l.occurred_at_ms DESC, l.event_id DESC
  LIMIT 1
)
ORDER BY e.user_id;
`)
	if err != nil {
		return nil, fmt.Errorf("LatestPerUser query: %w", err)
	}
	return collectEvents(rows)
}

func (t *eventTx) Append(ctx context.Context, ev store.AccessEvent) (store.AccessEvent, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Source == "" {
		ev.Source = store.SourceCard
	}

	res, err := t.tx.ExecContext(ctx, `
INSERT INTO access_events(user_id, occurred_at_ms, direction, source)
VALUES (?, ?, ?, ?);
`, ev.UserID, ev.Timestamp.UTC().UnixMilli(), string(ev.Direction), string(ev.Source))
	if err != nil {
		return store.AccessEvent{}, fmt.Errorf("Append insert: %w", err)
	}
	if ev.ID, err = res.LastInsertId(); err != nil {
		return store.AccessEvent{}, fmt.Errorf("Append last insert id: %w", err)
	}
	// Report the timestamp at the precision it was stored with.
	ev.Timestamp = time.UnixMilli(ev.Timestamp.UnixMilli()).UTC()
	return ev, nil
}

func latestForUser(ctx context.Context, q querier, userID int64) (store.AccessEvent, bool, error) {
	row := q.QueryRowContext(ctx, `
SELECT `+eventColumns+`
FROM access_events
WHERE user_id = ?
ORDER BY occurred_at_ms DESC, event_id DESC
LIMIT 1;
`, userID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AccessEvent{}, false, nil
	}
	if err != nil {
		return store.AccessEvent{}, false, fmt.Errorf("LatestForUser query: %w", err)
	}
	return ev, true, nil
}

func collectEvents(rows *sql.Rows) ([]store.AccessEvent, error) {
	defer rows.Close()

	var out []store.AccessEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event rows: %w", err)
	}
	return out, nil
}

func scanEvent(row interface{ Scan(dest ...any) error }) (store.AccessEvent, error) {
	var (
		ev         store.AccessEvent
		occurredMs int64
		direction  string
		source     string
	)
	if err := row.Scan(&ev.ID, &ev.UserID, &occurredMs, &direction, &source); err != nil {
		return store.AccessEvent{}, err
	}
	ev.Timestamp = time.UnixMilli(occurredMs).UTC()
	ev.Direction = store.Direction(direction)
	ev.Source = store.Source(source)
	return ev, nil
}
