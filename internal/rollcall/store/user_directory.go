package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateCardID = errors.New("card_id already registered")
)

// User is a directory entry. CardID is matched exactly and is never changed
// once assigned.
type User struct {
	ID          int64
	CardID      string
	DisplayName string
	CreatedAt   time.Time
}

type UserDirectory interface {
	FindByCardID(ctx context.Context, cardID string) (User, bool, error)
	Get(ctx context.Context, id int64) (User, bool, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, u User) (User, error)
	// Delete removes the user; their events go with them.
	Delete(ctx context.Context, id int64) error
}
