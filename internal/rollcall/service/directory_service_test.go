package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/memory"
)

func newTestDirectory(t *testing.T) (*service.DirectoryService, *memory.AccessEventStore) {
	t.Helper()
	events := memory.NewAccessEventStore()
	users := memory.NewUserDirectory(events)
	return service.NewDirectoryService(users, events), events
}

func TestRegister_Validates(t *testing.T) {
	d, _ := newTestDirectory(t)

	_, err := d.Register(context.Background(), " ", "Ada")
	assert.ErrorIs(t, err, service.ErrInvalidCardID)

	_, err = d.Register(context.Background(), "A", "  ")
	assert.ErrorIs(t, err, service.ErrInvalidDisplayName)
}

func TestRegister_DuplicateCard(t *testing.T) {
	d, _ := newTestDirectory(t)

	u, err := d.Register(context.Background(), "04A1", " Ada ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.DisplayName)

	_, err = d.Register(context.Background(), "04A1", "Bob")
	assert.ErrorIs(t, err, store.ErrDuplicateCardID)
}

func TestRemove_CascadesEvents(t *testing.T) {
	d, events := newTestDirectory(t)
	ada, err := d.Register(context.Background(), "A", "Ada")
	require.NoError(t, err)
	bob, err := d.Register(context.Background(), "B", "Bob")
	require.NoError(t, err)
	seedEvents(t, events,
		ev(ada.ID, at(4, 9, 0), store.DirectionEntry),
		ev(bob.ID, at(4, 9, 0), store.DirectionEntry),
	)

	require.NoError(t, d.Remove(context.Background(), ada.ID))

	left := events.Events()
	require.Len(t, left, 1)
	assert.Equal(t, bob.ID, left[0].UserID)

	users, err := d.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Bob", users[0].DisplayName)
}

func TestRemove_UnknownUser(t *testing.T) {
	d, _ := newTestDirectory(t)
	assert.ErrorIs(t, d.Remove(context.Background(), 99), store.ErrUserNotFound)
}

func TestClearEvents_KeepsUser(t *testing.T) {
	d, events := newTestDirectory(t)
	ada, err := d.Register(context.Background(), "A", "Ada")
	require.NoError(t, err)
	seedEvents(t, events,
		ev(ada.ID, at(4, 9, 0), store.DirectionEntry),
		ev(ada.ID, at(4, 10, 0), store.DirectionExit),
	)

	n, err := d.ClearEvents(context.Background(), ada.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, events.Events())

	names, err := d.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{ada.ID: "Ada"}, names)

	_, err = d.ClearEvents(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestClearAllEvents(t *testing.T) {
	d, events := newTestDirectory(t)
	seedEvents(t, events,
		ev(1, at(4, 9, 0), store.DirectionEntry),
		ev(2, at(4, 9, 0), store.DirectionEntry),
	)

	n, err := d.ClearAllEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, events.Events())
}
