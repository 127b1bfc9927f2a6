package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 10 * time.Second
)

// Dispatcher fans notifications out to its sinks from a single goroutine.
// Delivery is attempted once per sink; failures are logged and dropped.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Notification
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
}

type DispatcherConfig struct {
	QueueSize   int
	SendTimeout time.Duration
}

func NewDispatcher(cfg DispatcherConfig, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Notification, cfg.QueueSize),
		timeout: cfg.SendTimeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Notify enqueues n. When the queue is full, or the dispatcher has shut
// down, n is dropped with a warning.
func (d *Dispatcher) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = d.now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped after shutdown", zap.String("kind", string(n.Kind)))
		return
	}
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, dropping",
			zap.String("kind", string(n.Kind)),
			zap.String("subject", n.Subject))
	}
}

// Run delivers queued notifications until ctx is cancelled, then delivers
// whatever is still queued before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-ctx.Done():
			d.mu.Lock()
			d.closed = true
			close(d.queue)
			d.mu.Unlock()
			for n := range d.queue {
				d.deliver(n)
			}
			return nil
		}
	}
}

func (d *Dispatcher) deliver(n Notification) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := s.Send(ctx, n)
		cancel()
		if err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("sink", s.Name()),
				zap.String("kind", string(n.Kind)),
				zap.Error(err))
		}
	}
}
