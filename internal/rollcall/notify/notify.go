// Package notify broadcasts attendance events to best-effort sinks: the
// reader's serial display, a chat webhook and the structured log.
package notify

import (
	"context"
	"time"
)

type Kind string

const (
	// KindAccess is a recorded entry or exit.
	KindAccess Kind = "access"
	// KindUnknownCard is a presentation of a card nobody owns.
	KindUnknownCard Kind = "unknown_card"
	// KindAutoSignOut is a forced exit written by the daily close.
	KindAutoSignOut Kind = "auto_sign_out"
	// KindReady prompts for the next card once the reader cooldown ends.
	KindReady Kind = "ready"
)

type Notification struct {
	Kind      Kind
	Subject   string // display name, or a placeholder for unknown cards
	Succeeded bool
	Direction string // "entry" | "exit" for KindAccess and KindAutoSignOut
	At        time.Time
	Details   map[string]string
}

// Sink delivers a notification somewhere. Implementations may block; the
// Dispatcher bounds every call with a timeout.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Notifier accepts notifications without ever blocking the caller.
type Notifier interface {
	Notify(n Notification)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(Notification) {}
