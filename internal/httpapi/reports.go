package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.reports.Recent(r.Context(), limit)
	if err != nil {
		s.internalError(w, "recent events", err)
		return
	}

	loc := s.reports.Location()
	resp := types.RecentEventsResponse{Events: make([]types.Event, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, types.Event{
			ID:          ev.ID,
			UserID:      ev.UserID,
			DisplayName: ev.DisplayName,
			Timestamp:   ev.Timestamp.In(loc).Format(time.RFC3339),
			Direction:   string(ev.Direction),
			Source:      string(ev.Source),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWeeklyRanking(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	totals, err := s.reports.WeeklyRanking(r.Context(), now)
	if err != nil {
		s.internalError(w, "weekly ranking", err)
		return
	}
	writeJSON(w, http.StatusOK, rankingResponse("weekly", service.WeekWindow(now, s.reports.Location()), totals))
}

func (s *Server) handleMonthlyRanking(w http.ResponseWriter, r *http.Request) {
	year, month, ok := s.yearMonth(w, r)
	if !ok {
		return
	}
	totals, err := s.reports.MonthlyRanking(r.Context(), year, month)
	if err != nil {
		s.internalError(w, "monthly ranking", err)
		return
	}
	writeJSON(w, http.StatusOK, rankingResponse("monthly", service.MonthWindow(year, month, s.reports.Location()), totals))
}

func (s *Server) handleAllTimeRanking(w http.ResponseWriter, r *http.Request) {
	totals, err := s.reports.AllTimeRanking(r.Context())
	if err != nil {
		s.internalError(w, "all-time ranking", err)
		return
	}
	writeJSON(w, http.StatusOK, rankingResponse("all", service.AllTime(), totals))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	year, month, ok := s.yearMonth(w, r)
	if !ok {
		return
	}
	days, err := s.reports.Calendar(r.Context(), year, month)
	if err != nil {
		s.internalError(w, "calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, types.CalendarResponse{Year: year, Month: int(month), Days: days})
}

// yearMonth reads ?year=&month=, defaulting each to the current local
// value. It writes a 400 and returns false on bad input.
func (s *Server) yearMonth(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	now := s.now().In(s.reports.Location())
	year, month := now.Year(), now.Month()

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1970 || n > 9999 {
			writeError(w, http.StatusBadRequest, "invalid_year", "year must be between 1970 and 9999")
			return 0, 0, false
		}
		year = n
	}
	if v := q.Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			writeError(w, http.StatusBadRequest, "invalid_month", "month must be between 1 and 12")
			return 0, 0, false
		}
		month = time.Month(n)
	}
	return year, month, true
}

func rankingResponse(window string, win service.Window, totals []service.UserTotal) types.RankingResponse {
	resp := types.RankingResponse{
		Window:  window,
		Entries: make([]types.RankingEntry, 0, len(totals)),
	}
	if !win.Unbounded() {
		resp.Start = win.Start.Format(time.RFC3339)
		resp.End = win.End.Format(time.RFC3339)
	}
	for i, t := range totals {
		resp.Entries = append(resp.Entries, types.RankingEntry{
			Rank:         i + 1,
			UserID:       t.UserID,
			DisplayName:  t.DisplayName,
			TotalSeconds: t.TotalSeconds,
			Duration:     t.Duration,
		})
	}
	return resp
}
