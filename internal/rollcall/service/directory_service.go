package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

var ErrInvalidDisplayName = errors.New("display_name is required")

// DirectoryService is the management surface over users and their logs.
type DirectoryService struct {
	users  store.UserDirectory
	events store.AccessEventStore
}

func NewDirectoryService(users store.UserDirectory, events store.AccessEventStore) *DirectoryService {
	return &DirectoryService{users: users, events: events}
}

func (d *DirectoryService) Register(ctx context.Context, cardID, displayName string) (store.User, error) {
	cardID = strings.TrimSpace(cardID)
	displayName = strings.TrimSpace(displayName)
	if cardID == "" {
		return store.User{}, ErrInvalidCardID
	}
	if displayName == "" {
		return store.User{}, ErrInvalidDisplayName
	}
	return d.users.Create(ctx, store.User{CardID: cardID, DisplayName: displayName})
}

func (d *DirectoryService) List(ctx context.Context) ([]store.User, error) {
	return d.users.List(ctx)
}

// Remove deletes the user together with every event they own.
func (d *DirectoryService) Remove(ctx context.Context, id int64) error {
	if err := d.requireUser(ctx, id); err != nil {
		return err
	}
	if _, err := d.events.DeleteForUser(ctx, id); err != nil {
		return fmt.Errorf("remove user %d events: %w", id, err)
	}
	return d.users.Delete(ctx, id)
}

// ClearEvents empties one user's log and keeps the user.
func (d *DirectoryService) ClearEvents(ctx context.Context, id int64) (int64, error) {
	if err := d.requireUser(ctx, id); err != nil {
		return 0, err
	}
	return d.events.DeleteForUser(ctx, id)
}

func (d *DirectoryService) ClearAllEvents(ctx context.Context) (int64, error) {
	return d.events.DeleteAll(ctx)
}

// Names maps user IDs to display names.
func (d *DirectoryService) Names(ctx context.Context) (map[int64]string, error) {
	users, err := d.users.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}
	return names, nil
}

func (d *DirectoryService) requireUser(ctx context.Context, id int64) error {
	_, ok, err := d.users.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrUserNotFound
	}
	return nil
}
