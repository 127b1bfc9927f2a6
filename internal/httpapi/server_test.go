package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/BrandonDHaskell/rollcall/internal/httpapi"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/memory"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// fixedNow is Wednesday 2024-03-06 12:00 UTC.
var fixedNow = time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	ts     *httptest.Server
	events *memory.AccessEventStore
	users  *memory.UserDirectory
}

// newTestServer wires up the full dependency graph using in-memory stores
// and returns an httptest.Server whose URL can be hit with a plain http.Client.
// Ada holds card "04A1B2C3" and Bob holds "0B0B0B0B".
func newTestServer(t *testing.T) testEnv {
	t.Helper()

	events := memory.NewAccessEventStore()
	users := memory.NewUserDirectory(events,
		store.User{CardID: "04A1B2C3", DisplayName: "Ada"},
		store.User{CardID: "0B0B0B0B", DisplayName: "Bob"},
	)
	now := func() time.Time { return fixedNow }
	access := service.NewAccessService(users, events, nil, zap.NewNop()).WithClock(now)
	directory := service.NewDirectoryService(users, events)
	reports := service.NewReportService(events, directory, time.UTC)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:    zap.NewNop(),
		Addr:      ":0",
		Access:    access,
		Reports:   reports,
		Directory: directory,
		Now:       now,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return testEnv{ts: ts, events: events, users: users}
}

func (e testEnv) seed(t *testing.T, evs ...store.AccessEvent) {
	t.Helper()
	err := e.events.Update(context.Background(), func(ctx context.Context, tx store.EventTx) error {
		for _, ev := range evs {
			if _, err := tx.Append(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func del(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func at(day, hh, mm int) time.Time {
	return time.Date(2024, time.March, day, hh, mm, 0, 0, time.UTC)
}

// ── Health ──────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	env := newTestServer(t)
	resp := get(t, env.ts.URL+"/healthz")
	expectStatus(t, resp, http.StatusOK)
}

// ── Card events ─────────────────────────────────────────────────────────────

func TestCardEvent_KnownCard_TogglesDirection(t *testing.T) {
	env := newTestServer(t)

	for i, want := range []string{"entry", "exit", "entry"} {
		resp := postJSON(t, env.ts.URL+"/v1/card_events", `{"card_id":"04A1B2C3"}`)
		expectStatus(t, resp, http.StatusOK)

		var ce types.CardEventResponse
		decode(t, resp, &ce)
		if !ce.Known {
			t.Fatalf("presentation %d: expected known=true", i)
		}
		if ce.Direction != want {
			t.Errorf("presentation %d: expected direction=%s, got %q", i, want, ce.Direction)
		}
		if ce.DisplayName != "Ada" {
			t.Errorf("expected display_name=Ada, got %q", ce.DisplayName)
		}
	}

	if n := len(env.events.Events()); n != 3 {
		t.Errorf("expected 3 events, got %d", n)
	}
}

func TestCardEvent_UnknownCard_NotRecorded(t *testing.T) {
	env := newTestServer(t)

	resp := postJSON(t, env.ts.URL+"/v1/card_events", `{"card_id":"DEADBEEF"}`)
	expectStatus(t, resp, http.StatusOK)

	var ce types.CardEventResponse
	decode(t, resp, &ce)
	if ce.Known {
		t.Error("expected known=false for an unregistered card")
	}
	if ce.Outcome != string(service.OutcomeUnknownCard) {
		t.Errorf("expected outcome=unknown_card, got %q", ce.Outcome)
	}
	if n := len(env.events.Events()); n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
}

func TestCardEvent_MissingCardID_400(t *testing.T) {
	env := newTestServer(t)
	resp := postJSON(t, env.ts.URL+"/v1/card_events", `{"card_id":"  "}`)
	expectStatus(t, resp, http.StatusBadRequest)

	var e types.ErrorResponse
	decode(t, resp, &e)
	if e.Error != "invalid_card_id" {
		t.Errorf("expected error=invalid_card_id, got %q", e.Error)
	}
}

func TestCardEvent_InvalidJSON_400(t *testing.T) {
	env := newTestServer(t)
	resp := postJSON(t, env.ts.URL+"/v1/card_events", `not json at all`)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestCardEvent_UnknownField_400(t *testing.T) {
	env := newTestServer(t)
	resp := postJSON(t, env.ts.URL+"/v1/card_events", `{"card_id":"04A1B2C3","door":"front"}`)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestCardEvent_Protobuf(t *testing.T) {
	env := newTestServer(t)

	body, err := proto.Marshal(wrapperspb.String("04A1B2C3"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(env.ts.URL+"/v1/card_events", "application/x-protobuf", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Fatalf("expected protobuf response, got %q", ct)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out structpb.Struct
	if err := proto.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	fields := out.AsMap()
	if fields["direction"] != "entry" {
		t.Errorf("expected direction=entry, got %v", fields["direction"])
	}
	if fields["display_name"] != "Ada" {
		t.Errorf("expected display_name=Ada, got %v", fields["display_name"])
	}
}

func TestCardEvent_BadProtobuf_400(t *testing.T) {
	env := newTestServer(t)
	resp, err := http.Post(env.ts.URL+"/v1/card_events", "application/x-protobuf", bytes.NewReader([]byte{0xff, 0xff}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

// ── Reports ─────────────────────────────────────────────────────────────────

func TestRecentEvents_NewestFirst(t *testing.T) {
	env := newTestServer(t)
	env.seed(t,
		store.AccessEvent{UserID: 1, Timestamp: at(4, 9, 0), Direction: store.DirectionEntry},
		store.AccessEvent{UserID: 2, Timestamp: at(4, 10, 0), Direction: store.DirectionEntry},
		store.AccessEvent{UserID: 1, Timestamp: at(4, 11, 0), Direction: store.DirectionExit},
	)

	resp := get(t, env.ts.URL+"/v1/events/recent?limit=2")
	expectStatus(t, resp, http.StatusOK)

	var out types.RecentEventsResponse
	decode(t, resp, &out)
	if len(out.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(out.Events))
	}
	if out.Events[0].DisplayName != "Ada" || out.Events[0].Direction != "exit" {
		t.Errorf("unexpected first event: %+v", out.Events[0])
	}
	if out.Events[1].DisplayName != "Bob" {
		t.Errorf("unexpected second event: %+v", out.Events[1])
	}
}

func TestRecentEvents_BadLimit_400(t *testing.T) {
	env := newTestServer(t)
	resp := get(t, env.ts.URL+"/v1/events/recent?limit=zero")
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestWeeklyRanking(t *testing.T) {
	env := newTestServer(t)
	env.seed(t,
		store.AccessEvent{UserID: 1, Timestamp: at(4, 9, 0), Direction: store.DirectionEntry},
		store.AccessEvent{UserID: 1, Timestamp: at(4, 9, 30), Direction: store.DirectionExit},
		store.AccessEvent{UserID: 2, Timestamp: at(5, 9, 0), Direction: store.DirectionEntry},
		store.AccessEvent{UserID: 2, Timestamp: at(5, 11, 0), Direction: store.DirectionExit},
		// Previous week.
		store.AccessEvent{UserID: 1, Timestamp: at(1, 9, 0), Direction: store.DirectionEntry},
		store.AccessEvent{UserID: 1, Timestamp: at(1, 19, 0), Direction: store.DirectionExit},
	)

	resp := get(t, env.ts.URL+"/v1/rankings/weekly")
	expectStatus(t, resp, http.StatusOK)

	var out types.RankingResponse
	decode(t, resp, &out)
	if out.Start != "2024-03-04T00:00:00Z" {
		t.Errorf("expected week start 2024-03-04, got %q", out.Start)
	}
	if len(out.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out.Entries))
	}
	if out.Entries[0].DisplayName != "Bob" || out.Entries[0].Duration != "02:00:00" {
		t.Errorf("unexpected first entry: %+v", out.Entries[0])
	}
	if out.Entries[1].DisplayName != "Ada" || out.Entries[1].TotalSeconds != 1800 {
		t.Errorf("unexpected second entry: %+v", out.Entries[1])
	}
}

func TestMonthlyRanking_QueryParams(t *testing.T) {
	env := newTestServer(t)
	env.seed(t,
		store.AccessEvent{UserID: 2, Timestamp: time.Date(2024, time.February, 2, 9, 0, 0, 0, time.UTC), Direction: store.DirectionEntry},
		store.AccessEvent{UserID: 2, Timestamp: time.Date(2024, time.February, 2, 10, 0, 0, 0, time.UTC), Direction: store.DirectionExit},
	)

	resp := get(t, env.ts.URL+"/v1/rankings/monthly?year=2024&month=2")
	expectStatus(t, resp, http.StatusOK)

	var out types.RankingResponse
	decode(t, resp, &out)
	if len(out.Entries) != 1 || out.Entries[0].TotalSeconds != 3600 {
		t.Fatalf("unexpected entries: %+v", out.Entries)
	}

	bad := get(t, env.ts.URL+"/v1/rankings/monthly?month=13")
	expectStatus(t, bad, http.StatusBadRequest)
}

func TestAllTimeRanking(t *testing.T) {
	env := newTestServer(t)
	resp := get(t, env.ts.URL+"/v1/rankings/all")
	expectStatus(t, resp, http.StatusOK)

	var out types.RankingResponse
	decode(t, resp, &out)
	if out.Window != "all" || out.Start != "" {
		t.Errorf("unexpected window: %+v", out)
	}
	if out.Entries == nil || len(out.Entries) != 0 {
		t.Errorf("expected empty entries, got %+v", out.Entries)
	}
}

func TestCalendar_DefaultsToCurrentMonth(t *testing.T) {
	env := newTestServer(t)
	env.seed(t,
		store.AccessEvent{UserID: 2, Timestamp: at(5, 9, 0), Direction: store.DirectionEntry},
		store.AccessEvent{UserID: 1, Timestamp: at(5, 10, 0), Direction: store.DirectionEntry},
	)

	resp := get(t, env.ts.URL+"/v1/calendar")
	expectStatus(t, resp, http.StatusOK)

	var out types.CalendarResponse
	decode(t, resp, &out)
	if out.Year != 2024 || out.Month != 3 {
		t.Errorf("expected 2024-03, got %d-%d", out.Year, out.Month)
	}
	names := out.Days["2024-03-05"]
	if len(out.Days) != 1 || len(names) != 2 || names[0] != "Ada" || names[1] != "Bob" {
		t.Errorf("unexpected days: %+v", out.Days)
	}
}

// ── Users ───────────────────────────────────────────────────────────────────

func TestCreateUser(t *testing.T) {
	env := newTestServer(t)

	resp := postJSON(t, env.ts.URL+"/v1/users", `{"card_id":"0C0C0C0C","display_name":"Cy"}`)
	expectStatus(t, resp, http.StatusCreated)

	var u types.User
	decode(t, resp, &u)
	if u.ID == 0 || u.DisplayName != "Cy" {
		t.Errorf("unexpected user: %+v", u)
	}

	dup := postJSON(t, env.ts.URL+"/v1/users", `{"card_id":"0C0C0C0C","display_name":"Cyrus"}`)
	expectStatus(t, dup, http.StatusConflict)

	noName := postJSON(t, env.ts.URL+"/v1/users", `{"card_id":"0D0D0D0D"}`)
	expectStatus(t, noName, http.StatusBadRequest)
}

func TestListUsers(t *testing.T) {
	env := newTestServer(t)
	resp := get(t, env.ts.URL+"/v1/users")
	expectStatus(t, resp, http.StatusOK)

	var out types.UsersResponse
	decode(t, resp, &out)
	if len(out.Users) != 2 || out.Users[0].DisplayName != "Ada" {
		t.Errorf("unexpected users: %+v", out.Users)
	}
}

func TestDeleteUser_CascadesEvents(t *testing.T) {
	env := newTestServer(t)
	env.seed(t,
		store.AccessEvent{UserID: 1, Timestamp: at(4, 9, 0), Direction: store.DirectionEntry},
		store.AccessEvent{UserID: 2, Timestamp: at(4, 9, 0), Direction: store.DirectionEntry},
	)

	resp := del(t, env.ts.URL+"/v1/users/1")
	expectStatus(t, resp, http.StatusNoContent)

	left := env.events.Events()
	if len(left) != 1 || left[0].UserID != 2 {
		t.Errorf("expected only Bob's event to remain, got %+v", left)
	}

	again := del(t, env.ts.URL+"/v1/users/1")
	expectStatus(t, again, http.StatusNotFound)

	bad := del(t, env.ts.URL+"/v1/users/abc")
	expectStatus(t, bad, http.StatusBadRequest)
}

func TestClearUserEvents(t *testing.T) {
	env := newTestServer(t)
	env.seed(t,
		store.AccessEvent{UserID: 1, Timestamp: at(4, 9, 0), Direction: store.DirectionEntry},
		store.AccessEvent{UserID: 1, Timestamp: at(4, 10, 0), Direction: store.DirectionExit},
		store.AccessEvent{UserID: 2, Timestamp: at(4, 9, 0), Direction: store.DirectionEntry},
	)

	resp := del(t, env.ts.URL+"/v1/users/1/events")
	expectStatus(t, resp, http.StatusOK)

	var out types.ClearEventsResponse
	decode(t, resp, &out)
	if out.Deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", out.Deleted)
	}
	if n := len(env.events.Events()); n != 1 {
		t.Errorf("expected 1 event left, got %d", n)
	}
}

func TestClearAllEvents(t *testing.T) {
	env := newTestServer(t)
	env.seed(t,
		store.AccessEvent{UserID: 1, Timestamp: at(4, 9, 0), Direction: store.DirectionEntry},
		store.AccessEvent{UserID: 2, Timestamp: at(4, 9, 0), Direction: store.DirectionEntry},
	)

	resp := del(t, env.ts.URL+"/v1/events")
	expectStatus(t, resp, http.StatusOK)
	if n := len(env.events.Events()); n != 0 {
		t.Errorf("expected empty log, got %d events", n)
	}
}
