package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// CloseResult reports one RunDailyClose call.
type CloseResult struct {
	Date    string // local date the run was attributed to
	Skipped bool   // already closed for Date
	Closed  []store.AccessEvent
}

// AutoSignOut closes every session still open at the end of the day by
// appending a synthetic exit. It runs at most once per local calendar date.
type AutoSignOut struct {
	users    store.UserDirectory
	events   store.AccessEventStore
	notifier notify.Notifier
	logger   *zap.Logger
	loc      *time.Location

	mu      sync.Mutex
	lastRun string // DateLayout; empty until the first successful run
}

func NewAutoSignOut(users store.UserDirectory, events store.AccessEventStore, n notify.Notifier, loc *time.Location, logger *zap.Logger) *AutoSignOut {
	if n == nil {
		n = notify.Nop{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &AutoSignOut{
		users:    users,
		events:   events,
		notifier: n,
		logger:   logger,
		loc:      loc,
	}
}

// LastRun returns the local date of the last successful close, or "".
func (a *AutoSignOut) LastRun() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRun
}

// RunDailyClose appends an auto_close exit at now, or at the entry's own
// time if that is later, for every user whose latest event is an entry. The
// date is always taken from now. A failed run records nothing and leaves the
// date eligible for another attempt.
func (a *AutoSignOut) RunDailyClose(ctx context.Context, now time.Time) (CloseResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	date := now.In(a.loc).Format(DateLayout)
	if a.lastRun == date {
		return CloseResult{Date: date, Skipped: true}, nil
	}

	var closed []store.AccessEvent
	err := a.events.Update(ctx, func(ctx context.Context, tx store.EventTx) error {
		closed = closed[:0]
		latest, err := tx.LatestPerUser(ctx)
		if err != nil {
			return err
		}
		for _, ev := range latest {
			if ev.Direction != store.DirectionEntry {
				continue
			}
			// A tap queued ahead of this close may be later than now; the
			// exit must never sort before the entry it closes.
			at := now
			if ev.Timestamp.After(at) {
				at = ev.Timestamp
			}
			exit, err := tx.Append(ctx, store.AccessEvent{
				UserID:    ev.UserID,
				Timestamp: at,
				Direction: store.DirectionExit,
				Source:    store.SourceAutoClose,
			})
			if err != nil {
				return err
			}
			closed = append(closed, exit)
		}
		return nil
	})
	if err != nil {
		return CloseResult{Date: date}, fmt.Errorf("daily close %s: %w", date, err)
	}

	a.lastRun = date
	a.logger.Info("daily close complete", zap.String("date", date), zap.Int("closed", len(closed)))

	for _, ev := range closed {
		a.notifier.Notify(notify.Notification{
			Kind:      notify.KindAutoSignOut,
			Subject:   a.displayName(ctx, ev.UserID),
			Succeeded: true,
			Direction: string(store.DirectionExit),
			At:        ev.Timestamp,
		})
	}

	return CloseResult{Date: date, Closed: closed}, nil
}

func (a *AutoSignOut) displayName(ctx context.Context, userID int64) string {
	u, ok, err := a.users.Get(ctx, userID)
	if err != nil || !ok {
		a.logger.Debug("auto sign-out name lookup", zap.Int64("user_id", userID), zap.Error(err))
		return PlaceholderName(userID)
	}
	return u.DisplayName
}
