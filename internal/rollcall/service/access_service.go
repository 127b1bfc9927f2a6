package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

var (
	ErrInvalidCardID = errors.New("card_id is required")

	// ErrStorageFailure wraps any store error hit while processing a card.
	// Nothing is written when it is returned.
	ErrStorageFailure = errors.New("storage failure")
)

// UnknownSubject is the notification subject used for unrecognized cards.
const UnknownSubject = "Unknown user"

type OutcomeKind string

const (
	OutcomeRecorded    OutcomeKind = "recorded"
	OutcomeUnknownCard OutcomeKind = "unknown_card"
)

// Outcome reports what ProcessCard did. User and Event are set only when
// Kind is OutcomeRecorded.
type Outcome struct {
	Kind   OutcomeKind
	CardID string
	User   store.User
	Event  store.AccessEvent
}

// AccessService is the entry/exit state machine: each recognized card
// presentation toggles its holder between inside and outside.
type AccessService struct {
	users    store.UserDirectory
	events   store.AccessEventStore
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewAccessService(users store.UserDirectory, events store.AccessEventStore, n notify.Notifier, logger *zap.Logger) *AccessService {
	if n == nil {
		n = notify.Nop{}
	}
	return &AccessService{
		users:    users,
		events:   events,
		notifier: n,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source used to stamp new events.
func (s *AccessService) WithClock(now func() time.Time) *AccessService {
	s.now = now
	return s
}

// NextDirection decides the direction of a new event given the user's most
// recent one: exit only when the latest event exists and is an entry.
func NextDirection(latest store.AccessEvent, found bool) store.Direction {
	if found && latest.Direction == store.DirectionEntry {
		return store.DirectionExit
	}
	return store.DirectionEntry
}

// ProcessCard resolves cardID and appends the holder's next event. An
// unrecognized card is an ordinary outcome, not an error, and writes nothing.
func (s *AccessService) ProcessCard(ctx context.Context, cardID string) (Outcome, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return Outcome{}, ErrInvalidCardID
	}

	user, found, err := s.users.FindByCardID(ctx, cardID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: find user: %w", ErrStorageFailure, err)
	}
	if !found {
		s.logger.Info("unknown card presented", zap.String("card_id", cardID))
		s.notifier.Notify(notify.Notification{
			Kind:      notify.KindUnknownCard,
			Subject:   UnknownSubject,
			Succeeded: false,
			At:        s.now(),
			Details:   map[string]string{"card_id": cardID},
		})
		return Outcome{Kind: OutcomeUnknownCard, CardID: cardID}, nil
	}

	var recorded store.AccessEvent
	err = s.events.Update(ctx, func(ctx context.Context, tx store.EventTx) error {
		latest, ok, err := tx.LatestForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		recorded, err = tx.Append(ctx, store.AccessEvent{
			UserID:    user.ID,
			Timestamp: s.now(),
			Direction: NextDirection(latest, ok),
			Source:    store.SourceCard,
		})
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: record event: %w", ErrStorageFailure, err)
	}

	s.logger.Info("access recorded",
		zap.Int64("user_id", user.ID),
		zap.String("name", user.DisplayName),
		zap.String("direction", string(recorded.Direction)))

	s.notifier.Notify(notify.Notification{
		Kind:      notify.KindAccess,
		Subject:   user.DisplayName,
		Succeeded: true,
		Direction: string(recorded.Direction),
		At:        recorded.Timestamp,
	})

	return Outcome{Kind: OutcomeRecorded, CardID: cardID, User: user, Event: recorded}, nil
}
