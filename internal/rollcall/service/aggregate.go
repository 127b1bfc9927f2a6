package service

import (
	"fmt"
	"slices"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// UserTotal is one user's completed time on site within a window.
type UserTotal struct {
	UserID       int64
	DisplayName  string
	TotalSeconds int64
	Duration     string // HH:MM:SS
}

// openEntries holds at most one unmatched entry timestamp per user. A
// missing key means the user has no open entry.
type openEntries map[int64]time.Time

// open records an entry. A second entry before any exit replaces the first,
// whose interval is discarded.
func (o openEntries) open(userID int64, at time.Time) {
	o[userID] = at
}

// close consumes the user's open entry, if any.
func (o openEntries) close(userID int64) (time.Time, bool) {
	at, ok := o[userID]
	if ok {
		delete(o, userID)
	}
	return at, ok
}

type accumulator struct {
	order  []int64
	totals map[int64]time.Duration
	open   openEntries
}

func newAccumulator() *accumulator {
	return &accumulator{
		totals: make(map[int64]time.Duration),
		open:   make(openEntries),
	}
}

func (a *accumulator) add(ev store.AccessEvent) {
	if _, seen := a.totals[ev.UserID]; !seen {
		a.order = append(a.order, ev.UserID)
		a.totals[ev.UserID] = 0
	}

	switch ev.Direction {
	case store.DirectionEntry:
		a.open.open(ev.UserID, ev.Timestamp)
	case store.DirectionExit:
		entry, ok := a.open.close(ev.UserID)
		if !ok {
			// Stray exit: nothing to pair with.
			return
		}
		a.totals[ev.UserID] += ev.Timestamp.Sub(entry)
	}
}

// result reports users in order of first appearance. Entries still open
// contribute nothing.
func (a *accumulator) result() []UserTotal {
	out := make([]UserTotal, 0, len(a.order))
	for _, id := range a.order {
		secs := int64(a.totals[id] / time.Second)
		out = append(out, UserTotal{
			UserID:       id,
			TotalSeconds: secs,
			Duration:     FormatDuration(secs),
		})
	}
	return out
}

// Aggregate pairs each exit with the user's open entry and sums the
// completed sessions per user. events must be in per-user timestamp order.
func Aggregate(events []store.AccessEvent) []UserTotal {
	acc := newAccumulator()
	for _, ev := range events {
		acc.add(ev)
	}
	return acc.result()
}

// Rank orders totals by TotalSeconds descending. Ties keep their input order.
func Rank(totals []UserTotal) []UserTotal {
	out := slices.Clone(totals)
	slices.SortStableFunc(out, func(a, b UserTotal) int {
		switch {
		case a.TotalSeconds > b.TotalSeconds:
			return -1
		case a.TotalSeconds < b.TotalSeconds:
			return 1
		default:
			return 0
		}
	})
	return out
}

// FormatDuration renders seconds as HH:MM:SS; hours are not capped at 24.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}

// PlaceholderName stands in for users missing from the directory.
func PlaceholderName(userID int64) string {
	return fmt.Sprintf("unknown user #%d", userID)
}

func withNames(totals []UserTotal, names map[int64]string) []UserTotal {
	for i := range totals {
		name, ok := names[totals[i].UserID]
		if !ok {
			name = PlaceholderName(totals[i].UserID)
		}
		totals[i].DisplayName = name
	}
	return totals
}

// Window is a half-open [Start, End) interval. The zero Window is unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Unbounded() bool { return w.Start.IsZero() && w.End.IsZero() }

func AllTime() Window { return Window{} }

// MonthWindow spans the calendar month in loc.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// WeekWindow spans Monday 00:00 to the following Monday 00:00 in loc, for
// the week containing now.
func WeekWindow(now time.Time, loc *time.Location) Window {
	local := now.In(loc)
	sinceMonday := (int(local.Weekday()) + 6) % 7
	start := time.Date(local.Year(), local.Month(), local.Day()-sinceMonday, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}
