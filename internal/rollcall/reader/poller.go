package reader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
)

// Processor is satisfied by *service.AccessService.
type Processor interface {
	ProcessCard(ctx context.Context, cardID string) (service.Outcome, error)
}

type PollerConfig struct {
	// IdleInterval is the pause between polls that saw no card. Defaults to 500ms.
	IdleInterval time.Duration
	// Cooldown is the pause after a processed card. Defaults to 5s.
	Cooldown time.Duration
	// PollTimeout bounds a single Source.Poll. Defaults to 2s.
	PollTimeout time.Duration
	// ProcessTimeout bounds ProcessCard. Defaults to 10s.
	ProcessTimeout time.Duration
}

// Poller is the card poll loop. It is strictly sequential: one poll, at
// most one processed card, then a sleep.
type Poller struct {
	src      Source
	proc     Processor
	notifier notify.Notifier
	health   HealthReporter // may be nil
	logger   *zap.Logger
	cfg      PollerConfig

	healthy *bool
	stuck   chan Reading // result of a poll abandoned after its timeout
}

func NewPoller(cfg PollerConfig, src Source, proc Processor, n notify.Notifier, health HealthReporter, logger *zap.Logger) *Poller {
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 500 * time.Millisecond
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Second
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 10 * time.Second
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Poller{
		src:      src,
		proc:     proc,
		notifier: n,
		health:   health,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run polls until ctx is cancelled. A card being processed when ctx is
// cancelled is still recorded; the loop exits at its next sleep.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("card poller started",
		zap.Duration("idle_interval", p.cfg.IdleInterval),
		zap.Duration("cooldown", p.cfg.Cooldown))

	for ctx.Err() == nil {
		r := p.poll(ctx)
		p.reportHealth(r)

		if r.Status != StatusCard {
			if !sleep(ctx, p.cfg.IdleInterval) {
				break
			}
			continue
		}

		p.process(ctx, r.CardID)
		if !sleep(ctx, p.cfg.Cooldown) {
			break
		}
		p.notifier.Notify(notify.Notification{Kind: notify.KindReady, At: time.Now()})
	}

	p.logger.Info("card poller stopped")
	return nil
}

// poll runs Source.Poll in its own goroutine so a driver that ignores ctx
// cannot hold the loop past PollTimeout. At most one poll is outstanding.
func (p *Poller) poll(ctx context.Context) Reading {
	if p.stuck != nil {
		select {
		case <-p.stuck:
			// Stale; the card, if any, is read again below.
			p.stuck = nil
		default:
			return Failed(fmt.Errorf("%w: previous poll still running", ErrPollTimeout))
		}
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
	defer cancel()

	ch := make(chan Reading, 1)
	go func() { ch <- p.src.Poll(pollCtx) }()

	var r Reading
	select {
	case r = <-ch:
	case <-pollCtx.Done():
		select {
		case r = <-ch:
		default:
			p.stuck = ch
			if ctx.Err() != nil {
				return NoCard()
			}
			return Failed(fmt.Errorf("%w after %s", ErrPollTimeout, p.cfg.PollTimeout))
		}
	}

	if r.Status == StatusCard && r.CardID == "" {
		return NoCard()
	}
	return r
}

func (p *Poller) process(ctx context.Context, cardID string) {
	procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ProcessTimeout)
	defer cancel()

	out, err := p.proc.ProcessCard(procCtx, cardID)
	if err != nil {
		p.logger.Error("card processing failed", zap.String("card_id", cardID), zap.Error(err))
		return
	}
	p.logger.Debug("card processed",
		zap.String("card_id", cardID),
		zap.String("outcome", string(out.Kind)))
}

// reportHealth forwards reader health only when it changes. Transport
// errors are otherwise handled like "no card".
func (p *Poller) reportHealth(r Reading) {
	healthy := r.Status != StatusError
	if p.healthy != nil && *p.healthy == healthy {
		return
	}
	p.healthy = &healthy

	if healthy {
		p.logger.Info("card reader available")
	} else {
		p.logger.Warn("card reader unavailable", zap.Error(r.Err))
	}
	if p.health != nil {
		p.health.SetReaderHealthy(healthy)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
