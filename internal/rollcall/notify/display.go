package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Opener returns a fresh connection to the display.
type Opener func() (io.WriteCloser, error)

// SerialOpener opens a serial port at the given baud rate.
func SerialOpener(port string, baud int) Opener {
	return func() (io.WriteCloser, error) {
		p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("open serial %s: %w", port, err)
		}
		return p, nil
	}
}

// DisplaySink drives the two-line display next to the reader. The
// connection is opened lazily, greeted once, and dropped on the first write
// error so the next notification reconnects.
type DisplaySink struct {
	open   Opener
	settle time.Duration // boards that reset on open need a moment
	logger *zap.Logger

	mu   sync.Mutex
	conn io.WriteCloser
}

func NewDisplaySink(open Opener, settle time.Duration, logger *zap.Logger) *DisplaySink {
	return &DisplaySink{open: open, settle: settle, logger: logger}
}

func (s *DisplaySink) Name() string { return "display" }

func (s *DisplaySink) Send(ctx context.Context, n Notification) error {
	line1, line2, ok := displayLines(n)
	if !ok {
		return nil
	}
	return s.Show(ctx, line1, line2)
}

// Show writes two lines to the display, connecting first if needed.
func (s *DisplaySink) Show(ctx context.Context, line1, line2 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(ctx); err != nil {
		return err
	}
	if err := s.writeLocked(line1, line2); err != nil {
		_ = s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *DisplaySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *DisplaySink) connectLocked(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	conn, err := s.open()
	if err != nil {
		return err
	}
	if s.settle > 0 {
		t := time.NewTimer(s.settle)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			_ = conn.Close()
			return ctx.Err()
		}
	}
	s.conn = conn
	s.logger.Info("display connected")

	if err := s.writeLocked("System Ready", "Place your card"); err != nil {
		_ = s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *DisplaySink) writeLocked(line1, line2 string) error {
	if s.conn == nil {
		return errors.New("display not connected")
	}
	if _, err := io.WriteString(s.conn, line1+"\n"+line2+"\n"); err != nil {
		return fmt.Errorf("display write: %w", err)
	}
	return nil
}

func displayLines(n Notification) (string, string, bool) {
	switch n.Kind {
	case KindAccess:
		if n.Direction == "exit" {
			return n.Subject, "Exit", true
		}
		return n.Subject, "Entry", true
	case KindUnknownCard:
		return "Unknown Card", "Please register", true
	case KindReady:
		return "Ready", "Place your card", true
	default:
		return "", "", false
	}
}
