package service

import (
	"context"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 500
)

// EventView is an event with its owner's display name resolved.
type EventView struct {
	store.AccessEvent
	DisplayName string
}

// ReportService answers read-only questions about the log. It never writes
// and is safe to call concurrently with the poll loop and the scheduler.
type ReportService struct {
	events    store.AccessEventStore
	directory *DirectoryService
	loc       *time.Location
}

func NewReportService(events store.AccessEventStore, directory *DirectoryService, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{events: events, directory: directory, loc: loc}
}

func (r *ReportService) Location() *time.Location { return r.loc }

// Ranking aggregates the window and orders users by completed time.
func (r *ReportService) Ranking(ctx context.Context, w Window) ([]UserTotal, error) {
	var (
		events []store.AccessEvent
		err    error
	)
	if w.Unbounded() {
		events, err = r.events.AllOrderedByUserThenTime(ctx)
	} else {
		events, err = r.events.RangeByTimestamp(ctx, w.Start, w.End)
	}
	if err != nil {
		return nil, fmt.Errorf("ranking events: %w", err)
	}

	names, err := r.directory.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranking names: %w", err)
	}
	return Rank(withNames(Aggregate(events), names)), nil
}

func (r *ReportService) WeeklyRanking(ctx context.Context, now time.Time) ([]UserTotal, error) {
	return r.Ranking(ctx, WeekWindow(now, r.loc))
}

func (r *ReportService) MonthlyRanking(ctx context.Context, year int, month time.Month) ([]UserTotal, error) {
	return r.Ranking(ctx, MonthWindow(year, month, r.loc))
}

func (r *ReportService) AllTimeRanking(ctx context.Context) ([]UserTotal, error) {
	return r.Ranking(ctx, AllTime())
}

// Calendar lists who was seen on each day of the month.
func (r *ReportService) Calendar(ctx context.Context, year int, month time.Month) (map[string][]string, error) {
	w := MonthWindow(year, month, r.loc)
	events, err := r.events.RangeByTimestamp(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("calendar events: %w", err)
	}
	names, err := r.directory.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("calendar names: %w", err)
	}
	return SummarizeCalendar(events, names, r.loc), nil
}

// Recent returns the newest events first. limit is clamped to
// [1, MaxRecentLimit]; zero or less means DefaultRecentLimit.
func (r *ReportService) Recent(ctx context.Context, limit int) ([]EventView, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	events, err := r.events.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	names, err := r.directory.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("recent names: %w", err)
	}

	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		name, ok := names[ev.UserID]
		if !ok {
			name = PlaceholderName(ev.UserID)
		}
		out = append(out, EventView{AccessEvent: ev, DisplayName: name})
	}
	return out, nil
}
