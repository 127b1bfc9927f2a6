package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	sqlitestore "github.com/BrandonDHaskell/rollcall/internal/rollcall/store/sqlite"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Shared cache keeps the in-memory database alive for the lifetime of the
	// pool; the per-test name keeps tests isolated.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}
	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(w.Close)
	return w
}

type fixture struct {
	conn   *sql.DB
	users  *sqlitestore.UserDirectory
	events *sqlitestore.AccessEventStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	return fixture{
		conn:   conn,
		users:  sqlitestore.NewUserDirectory(conn, w),
		events: sqlitestore.NewAccessEventStore(conn, w),
	}
}

func (f fixture) seedUser(t *testing.T, cardID, name string) store.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), store.User{CardID: cardID, DisplayName: name})
	if err != nil {
		t.Fatalf("seedUser(%s): %v", cardID, err)
	}
	return u
}

func (f fixture) appendEvent(t *testing.T, userID int64, at time.Time, dir store.Direction) store.AccessEvent {
	t.Helper()
	var out store.AccessEvent
	err := f.events.Update(context.Background(), func(ctx context.Context, tx store.EventTx) error {
		var err error
		out, err = tx.Append(ctx, store.AccessEvent{UserID: userID, Timestamp: at, Direction: dir})
		return err
	})
	if err != nil {
		t.Fatalf("appendEvent: %v", err)
	}
	return out
}
