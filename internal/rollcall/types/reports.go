package types

type Event struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Timestamp   string `json:"timestamp"`
	Direction   string `json:"direction"`
	Source      string `json:"source"`
}

type RecentEventsResponse struct {
	Events []Event `json:"events"`
}

type RankingEntry struct {
	Rank         int    `json:"rank"`
	UserID       int64  `json:"user_id"`
	DisplayName  string `json:"display_name"`
	TotalSeconds int64  `json:"total_seconds"`
	Duration     string `json:"duration"`
}

// RankingResponse covers one window. Start and End are empty for all-time.
type RankingResponse struct {
	Window  string         `json:"window"`
	Start   string         `json:"start,omitempty"`
	End     string         `json:"end,omitempty"`
	Entries []RankingEntry `json:"entries"`
}

// CalendarResponse maps YYYY-MM-DD to the sorted names seen that day.
type CalendarResponse struct {
	Year  int                 `json:"year"`
	Month int                 `json:"month"`
	Days  map[string][]string `json:"days"`
}
