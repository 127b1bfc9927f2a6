package service

import (
	"slices"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// DateLayout keys calendar summaries.
const DateLayout = "2006-01-02"

// SummarizeCalendar groups events by local date and returns, per date, the
// distinct display names seen that day sorted ascending. Dates without
// events are absent.
func SummarizeCalendar(events []store.AccessEvent, names map[int64]string, loc *time.Location) map[string][]string {
	sets := make(map[string]map[string]struct{})
	for _, ev := range events {
		day := ev.Timestamp.In(loc).Format(DateLayout)
		name, ok := names[ev.UserID]
		if !ok {
			name = PlaceholderName(ev.UserID)
		}
		set, ok := sets[day]
		if !ok {
			set = make(map[string]struct{})
			sets[day] = set
		}
		set[name] = struct{}{}
	}

	out := make(map[string][]string, len(sets))
	for day, set := range sets {
		list := make([]string, 0, len(set))
		for name := range set {
			list = append(list, name)
		}
		slices.Sort(list)
		out[day] = list
	}
	return out
}
