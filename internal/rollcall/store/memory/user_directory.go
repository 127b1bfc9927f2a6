package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

type UserDirectory struct {
	mu     sync.RWMutex
	byID   map[int64]store.User
	byCard map[string]int64
	nextID int64
	events *AccessEventStore
}

// NewUserDirectory returns an empty directory. When events is non-nil,
// deleting a user also deletes that user's events.
func NewUserDirectory(events *AccessEventStore, users ...store.User) *UserDirectory {
	d := &UserDirectory{
		byID:   make(map[int64]store.User),
		byCard: make(map[string]int64),
		events: events,
	}
	for _, u := range users {
		_, _ = d.Create(context.Background(), u)
	}
	return d
}

func (d *UserDirectory) FindByCardID(_ context.Context, cardID string) (store.User, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byCard[cardID]
	if !ok {
		return store.User{}, false, nil
	}
	return d.byID[id], true, nil
}

func (d *UserDirectory) Get(_ context.Context, id int64) (store.User, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	return u, ok, nil
}

func (d *UserDirectory) List(_ context.Context) ([]store.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]store.User, 0, len(d.byID))
	for _, u := range d.byID {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b store.User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (d *UserDirectory) Create(_ context.Context, u store.User) (store.User, error) {
	u.CardID = strings.TrimSpace(u.CardID)
	u.DisplayName = strings.TrimSpace(u.DisplayName)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byCard[u.CardID]; exists {
		return store.User{}, store.ErrDuplicateCardID
	}
	d.nextID++
	u.ID = d.nextID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	d.byID[u.ID] = u
	d.byCard[u.CardID] = u.ID
	return u, nil
}

func (d *UserDirectory) Delete(ctx context.Context, id int64) error {
	d.mu.Lock()
	u, ok := d.byID[id]
	if ok {
		delete(d.byID, id)
		delete(d.byCard, u.CardID)
	}
	d.mu.Unlock()

	if !ok {
		return store.ErrUserNotFound
	}
	if d.events != nil {
		_, _ = d.events.DeleteForUser(ctx, id)
	}
	return nil
}
