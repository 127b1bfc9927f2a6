package store

import (
	"context"
	"time"
)

// Direction is the toggled state recorded for one card presentation.
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// Source records which activity appended an event. Aggregation does not
// distinguish between sources.
type Source string

const (
	SourceCard      Source = "card"
	SourceAutoClose Source = "auto_close"
)

// AccessEvent is one row of the append-only attendance log. Per user, events
// are ordered by Timestamp ascending with ID breaking ties.
type AccessEvent struct {
	ID        int64
	UserID    int64
	Timestamp time.Time
	Direction Direction
	Source    Source
}

// EventTx is the view of the log available inside a unit of work. Appends
// made through it become visible to other readers only when the unit of work
// commits.
type EventTx interface {
	LatestForUser(ctx context.Context, userID int64) (AccessEvent, bool, error)
	// LatestPerUser returns each user's most recent event, ordered by user ID.
	LatestPerUser(ctx context.Context) ([]AccessEvent, error)
	Append(ctx context.Context, ev AccessEvent) (AccessEvent, error)
}

// TxFn runs inside EventStore.Update. Returning an error discards every
// append made through tx.
type TxFn func(ctx context.Context, tx EventTx) error

// AccessEventStore persists the attendance log.
type AccessEventStore interface {
	// Update runs fn as a unit of work serialized against every other Update.
	Update(ctx context.Context, fn TxFn) error

	LatestForUser(ctx context.Context, userID int64) (AccessEvent, bool, error)
	// RangeByTimestamp returns events with start <= Timestamp < end ordered
	// by timestamp.
	RangeByTimestamp(ctx context.Context, start, end time.Time) ([]AccessEvent, error)
	AllOrderedByUserThenTime(ctx context.Context) ([]AccessEvent, error)
	// Recent returns at most limit events, newest first.
	Recent(ctx context.Context, limit int) ([]AccessEvent, error)

	DeleteForUser(ctx context.Context, userID int64) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}
