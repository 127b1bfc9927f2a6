//go:build pcsc

package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ebfe/scard"
	"go.uber.org/zap"
)

// PCSCSource reads card identifiers through the platform PC/SC service. It
// owns its PC/SC context and re-establishes it after a transport error.
type PCSCSource struct {
	nameFilter string
	logger     *zap.Logger

	mu     sync.Mutex
	ctx    *scard.Context
	reader string
}

// NewPCSCSource connects to the first reader whose name contains
// nameFilter, or the first reader when nameFilter is empty.
func NewPCSCSource(nameFilter string, logger *zap.Logger) (*PCSCSource, error) {
	s := &PCSCSource{nameFilter: nameFilter, logger: logger}
	if err := s.ensureContext(); err != nil {
		return nil, err
	}
	logger.Info("pc/sc reader selected", zap.String("reader", s.reader))
	return s, nil
}

func (s *PCSCSource) Poll(ctx context.Context) Reading {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureContext(); err != nil {
		return Failed(err)
	}

	// Timeout 0 with StateUnaware reports the current state without waiting.
	states := []scard.ReaderState{{Reader: s.reader, CurrentState: scard.StateUnaware}}
	if err := s.ctx.GetStatusChange(states, 0); err != nil && !errors.Is(err, scard.ErrTimeout) {
		s.releaseLocked()
		return Failed(fmt.Errorf("pcsc status: %w", err))
	}
	if states[0].EventState&scard.StatePresent == 0 {
		return NoCard()
	}

	card, err := s.ctx.Connect(s.reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		if noCard(err) {
			return NoCard()
		}
		s.releaseLocked()
		return Failed(fmt.Errorf("pcsc connect: %w", err))
	}
	defer func() { _ = card.Disconnect(scard.LeaveCard) }()

	rsp, err := card.Transmit(GetUIDCommand)
	if err != nil {
		if noCard(err) {
			return NoCard()
		}
		return Failed(fmt.Errorf("pcsc transmit: %w", err))
	}

	uid, err := ParseUIDResponse(rsp)
	if err != nil {
		return Failed(err)
	}
	return Card(uid)
}

// Close releases the PC/SC context.
func (s *PCSCSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	return nil
}

func (s *PCSCSource) ensureContext() error {
	if s.ctx != nil {
		return nil
	}
	c, err := scard.EstablishContext()
	if err != nil {
		return fmt.Errorf("pcsc establish context: %w", err)
	}
	readers, err := c.ListReaders()
	if err != nil {
		_ = c.Release()
		return fmt.Errorf("pcsc list readers: %w", err)
	}
	name, ok := pickReader(readers, s.nameFilter)
	if !ok {
		_ = c.Release()
		return fmt.Errorf("pcsc: no reader matching %q among %d", s.nameFilter, len(readers))
	}
	s.ctx, s.reader = c, name
	return nil
}

func (s *PCSCSource) releaseLocked() {
	if s.ctx == nil {
		return
	}
	if err := s.ctx.Release(); err != nil {
		s.logger.Debug("pcsc release", zap.Error(err))
	}
	s.ctx = nil
}

func noCard(err error) bool {
	return errors.Is(err, scard.ErrNoSmartcard) || errors.Is(err, scard.ErrRemovedCard)
}
