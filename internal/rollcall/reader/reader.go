// Package reader turns a contactless card reader into a stream of card
// identifiers fed to the access state machine.
package reader

import (
	"context"
	"errors"
	"strings"
)

// ErrPCSCUnavailable is returned by NewPCSCSource in builds without the
// pcsc tag.
var ErrPCSCUnavailable = errors.New("pc/sc support not compiled in (build with -tags pcsc)")

// ErrPollTimeout is reported when a Source does not answer within the poll
// timeout, or is still busy with an earlier poll that timed out.
var ErrPollTimeout = errors.New("card reader poll timed out")

type Status int

const (
	StatusNoCard Status = iota
	StatusCard
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusCard:
		return "card"
	case StatusNoCard:
		return "no_card"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Reading is the result of one poll. CardID is set only for StatusCard and
// Err only for StatusError.
type Reading struct {
	Status Status
	CardID string
	Err    error
}

func Card(id string) Reading   { return Reading{Status: StatusCard, CardID: id} }
func NoCard() Reading          { return Reading{Status: StatusNoCard} }
func Failed(err error) Reading { return Reading{Status: StatusError, Err: err} }

// Source polls the reader once. It should return within ctx's deadline and
// must not retry internally. Driver calls that ignore ctx are abandoned by
// the Poller after its poll timeout; it will not poll again until the
// abandoned call returns.
type Source interface {
	Poll(ctx context.Context) Reading
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) Reading

func (f SourceFunc) Poll(ctx context.Context) Reading { return f(ctx) }

// HealthReporter is told whether the reader is answering polls.
type HealthReporter interface {
	SetReaderHealthy(healthy bool)
}

// pickReader returns the first reader whose name contains filter, or the
// first reader when filter is empty.
func pickReader(readers []string, filter string) (string, bool) {
	for _, r := range readers {
		if filter == "" || strings.Contains(r, filter) {
			return r, true
		}
	}
	return "", false
}
