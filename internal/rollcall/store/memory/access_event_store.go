package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// AccessEventStore is an in-memory append-only attendance log.
// It is intended for use in tests and dev environments.
type AccessEventStore struct {
	mu     sync.Mutex
	events []store.AccessEvent
	nextID int64
}

func NewAccessEventStore() *AccessEventStore {
	return &AccessEventStore{}
}

// Update holds the store lock for the whole unit of work. Appends are staged
// and only become part of the log when fn returns nil.
func (s *AccessEventStore) Update(ctx context.Context, fn store.TxFn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &eventTx{s: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.events = append(s.events, tx.staged...)
	s.nextID += int64(len(tx.staged))
	return nil
}

func (s *AccessEventStore) LatestForUser(_ context.Context, userID int64) (store.AccessEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := latestForUser(s.events, userID)
	return ev, ok, nil
}

func (s *AccessEventStore) RangeByTimestamp(_ context.Context, start, end time.Time) ([]store.AccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.AccessEvent
	for _, ev := range s.events {
		if !ev.Timestamp.Before(start) && ev.Timestamp.Before(end) {
			out = append(out, ev)
		}
	}
	slices.SortStableFunc(out, byTime)
	return out, nil
}

func (s *AccessEventStore) AllOrderedByUserThenTime(_ context.Context) ([]store.AccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.events)
	slices.SortStableFunc(out, func(a, b store.AccessEvent) int {
		if c := cmp.Compare(a.UserID, b.UserID); c != 0 {
			return c
		}
		return byTime(a, b)
	})
	return out, nil
}

func (s *AccessEventStore) Recent(_ context.Context, limit int) ([]store.AccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.events)
	slices.SortStableFunc(out, func(a, b store.AccessEvent) int { return byTime(b, a) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AccessEventStore) DeleteForUser(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.events)
	s.events = slices.DeleteFunc(s.events, func(ev store.AccessEvent) bool { return ev.UserID == userID })
	return int64(before - len(s.events)), nil
}

func (s *AccessEventStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.events))
	s.events = nil
	return n, nil
}

// Events returns a copy of the log in append order.  Test-only helper.
func (s *AccessEventStore) Events() []store.AccessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

type eventTx struct {
	s      *AccessEventStore
	staged []store.AccessEvent
}

func (tx *eventTx) LatestForUser(_ context.Context, userID int64) (store.AccessEvent, bool, error) {
	committed, okC := latestForUser(tx.s.events, userID)
	staged, okS := latestForUser(tx.staged, userID)
	switch {
	case okC && okS:
		if byTime(staged, committed) > 0 {
			return staged, true, nil
		}
		return committed, true, nil
	case okS:
		return staged, true, nil
	default:
		return committed, okC, nil
	}
}

func (tx *eventTx) LatestPerUser(_ context.Context) ([]store.AccessEvent, error) {
	latest := make(map[int64]store.AccessEvent)
	for _, list := range [][]store.AccessEvent{tx.s.events, tx.staged} {
		for _, ev := range list {
			if cur, ok := latest[ev.UserID]; !ok || byTime(ev, cur) > 0 {
				latest[ev.UserID] = ev
			}
		}
	}

	out := make([]store.AccessEvent, 0, len(latest))
	for _, ev := range latest {
		out = append(out, ev)
	}
	slices.SortFunc(out, func(a, b store.AccessEvent) int { return cmp.Compare(a.UserID, b.UserID) })
	return out, nil
}

func (tx *eventTx) Append(_ context.Context, ev store.AccessEvent) (store.AccessEvent, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Source == "" {
		ev.Source = store.SourceCard
	}
	ev.ID = tx.s.nextID + int64(len(tx.staged)) + 1
	tx.staged = append(tx.staged, ev)
	return ev, nil
}

func latestForUser(events []store.AccessEvent, userID int64) (store.AccessEvent, bool) {
	var (
		best  store.AccessEvent
		found bool
	)
	for _, ev := range events {
		if ev.UserID != userID {
			continue
		}
		if !found || byTime(ev, best) > 0 {
			best, found = ev, true
		}
	}
	return best, found
}

func byTime(a, b store.AccessEvent) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
