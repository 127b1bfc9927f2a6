package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu   sync.Mutex
	got  []notify.Notification
	err  error
	gate chan struct{}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, n notify.Notification) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return s.err
}

func (s *recordingSink) received() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Notification(nil), s.got...)
}

// ── Dispatcher ───────────────────────────────────────────────────────────────

func TestDispatcher_DeliversToEverySinkAndDrainsOnShutdown(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{err: errors.New("webhook down")}
	d := notify.NewDispatcher(notify.DispatcherConfig{}, zap.NewNop(), a, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Notify(notify.Notification{Kind: notify.KindAccess, Subject: "Ada", Succeeded: true, Direction: "entry"})
	d.Notify(notify.Notification{Kind: notify.KindUnknownCard, Subject: "Unknown user"})
	cancel()
	require.NoError(t, <-done)

	// A failing sink does not stop delivery to the others.
	assert.Len(t, a.received(), 2)
	assert.Len(t, b.received(), 2)
	assert.False(t, a.received()[0].At.IsZero(), "Notify stamps the time")
}

func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	gate := make(chan struct{})
	sink := &recordingSink{gate: gate}
	d := notify.NewDispatcher(notify.DispatcherConfig{QueueSize: 1}, zap.NewNop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	returned := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Notify(notify.Notification{Kind: notify.KindAccess, Subject: "Ada"})
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked while the sink was stalled")
	}

	close(gate)
	cancel()
	require.NoError(t, <-done)
	assert.Less(t, len(sink.received()), 10, "overflow should have been dropped")
}

func TestDispatcher_NotifyAfterShutdownIsDropped(t *testing.T) {
	sink := &recordingSink{}
	d := notify.NewDispatcher(notify.DispatcherConfig{}, zap.NewNop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	d.Notify(notify.Notification{Kind: notify.KindAccess})
	assert.Empty(t, sink.received())
}

// ── Discord ──────────────────────────────────────────────────────────────────

func TestDiscordSink_PostsEmbed(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	sink := notify.NewDiscordSink(ts.URL, ts.Client(), time.UTC)
	err := sink.Send(context.Background(), notify.Notification{
		Kind:      notify.KindAccess,
		Subject:   "Ada",
		Succeeded: true,
		Direction: "exit",
		At:        time.Date(2026, 2, 16, 18, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	embeds := got["embeds"].([]any)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Equal(t, "Access event: exit", embed["title"])
	assert.Contains(t, embed["description"], "**Ada** left")
	assert.EqualValues(t, 0x00FF00, embed["color"])
	assert.Equal(t, "2026-02-16T18:30:00Z", embed["timestamp"])
}

func TestDiscordSink_FailureIsReported(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	sink := notify.NewDiscordSink(ts.URL, ts.Client(), time.UTC)
	err := sink.Send(context.Background(), notify.Notification{Kind: notify.KindUnknownCard, Subject: "Unknown user"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDiscordSink_IgnoresReadyPrompts(t *testing.T) {
	sink := notify.NewDiscordSink("http://127.0.0.1:1/unused", nil, time.UTC)
	require.NoError(t, sink.Send(context.Background(), notify.Notification{Kind: notify.KindReady}))
}

// ── Display ──────────────────────────────────────────────────────────────────

type fakePort struct {
	strings.Builder
	failWrites bool
	closed     bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.failWrites {
		return 0, io.ErrClosedPipe
	}
	return p.Builder.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestDisplaySink_GreetsThenShowsLines(t *testing.T) {
	port := &fakePort{}
	sink := notify.NewDisplaySink(func() (io.WriteCloser, error) { return port, nil }, 0, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, sink.Send(ctx, notify.Notification{Kind: notify.KindAccess, Subject: "Ada", Direction: "entry"}))
	require.NoError(t, sink.Send(ctx, notify.Notification{Kind: notify.KindUnknownCard}))
	require.NoError(t, sink.Send(ctx, notify.Notification{Kind: notify.KindReady}))
	require.NoError(t, sink.Send(ctx, notify.Notification{Kind: notify.KindAutoSignOut, Subject: "Ada"}))

	assert.Equal(t,
		"System Ready\nPlace your card\n"+
			"Ada\nEntry\n"+
			"Unknown Card\nPlease register\n"+
			"Ready\nPlace your card\n",
		port.String())
}

func TestDisplaySink_ReconnectsAfterWriteError(t *testing.T) {
	first := &fakePort{}
	second := &fakePort{}
	opens := 0
	sink := notify.NewDisplaySink(func() (io.WriteCloser, error) {
		opens++
		if opens == 1 {
			return first, nil
		}
		return second, nil
	}, 0, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, sink.Show(ctx, "a", "b"))

	first.failWrites = true
	require.Error(t, sink.Show(ctx, "c", "d"))
	assert.True(t, first.closed)

	require.NoError(t, sink.Show(ctx, "e", "f"))
	assert.Equal(t, 2, opens)
	assert.Equal(t, "System Ready\nPlace your card\ne\nf\n", second.String())
	require.NoError(t, sink.Close())
}
