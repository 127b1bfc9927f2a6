package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Exporter writes a snapshot of the log somewhere outside the database.
type Exporter interface {
	Export(ctx context.Context) error
}

// DailyCloser is satisfied by *AutoSignOut.
type DailyCloser interface {
	RunDailyClose(ctx context.Context, now time.Time) (CloseResult, error)
}

type SchedulerConfig struct {
	// Interval between ticks. Defaults to 60s.
	Interval time.Duration

	// Cutoff is the local "HH:MM" at or after which the daily close runs.
	// Defaults to "23:59".
	Cutoff string

	Location *time.Location
}

// Scheduler drives the periodic export and the daily close off one ticker.
// An export still running when the next tick arrives causes that tick's
// export to be skipped.
type Scheduler struct {
	closer   DailyCloser
	exporter Exporter // may be nil
	logger   *zap.Logger

	interval     time.Duration
	cutoffHour   int
	cutoffMinute int
	loc          *time.Location

	exporting atomic.Bool
	wg        sync.WaitGroup
}

func NewScheduler(cfg SchedulerConfig, closer DailyCloser, exporter Exporter, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Cutoff == "" {
		cfg.Cutoff = "23:59"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	h, m, err := ParseCutoff(cfg.Cutoff)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		closer:       closer,
		exporter:     exporter,
		logger:       logger,
		interval:     cfg.Interval,
		cutoffHour:   h,
		cutoffMinute: m,
		loc:          cfg.Location,
	}, nil
}

// ParseCutoff parses a 24-hour "HH:MM" time of day.
func ParseCutoff(s string) (hour, minute int, err error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("bad cutoff %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(hs)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad cutoff hour %q", s)
	}
	minute, err = strconv.Atoi(ms)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad cutoff minute %q", s)
	}
	return hour, minute, nil
}

// Run ticks until ctx is cancelled, then waits for an in-flight export.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		zap.Duration("interval", s.interval),
		zap.String("cutoff", fmt.Sprintf("%02d:%02d", s.cutoffHour, s.cutoffMinute)))

	for {
		select {
		case <-ctx.Done():
			s.Wait()
			return nil
		case t := <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			s.Tick(ctx, t)
		}
	}
}

// Tick performs one scheduler step at now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.startExport(ctx)

	if !s.PastCutoff(now) {
		return
	}
	res, err := s.closer.RunDailyClose(ctx, now)
	if err != nil {
		s.logger.Error("daily close failed", zap.Error(err))
		return
	}
	if !res.Skipped {
		s.logger.Debug("daily close ran", zap.String("date", res.Date), zap.Int("closed", len(res.Closed)))
	}
}

// PastCutoff reports whether now's local time of day is at or after the cutoff.
func (s *Scheduler) PastCutoff(now time.Time) bool {
	local := now.In(s.loc)
	if local.Hour() != s.cutoffHour {
		return local.Hour() > s.cutoffHour
	}
	return local.Minute() >= s.cutoffMinute
}

// Wait blocks until no export is running.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) startExport(ctx context.Context) bool {
	if s.exporter == nil {
		return false
	}
	if !s.exporting.CompareAndSwap(false, true) {
		s.logger.Debug("export still running; skipping tick")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.exporting.Store(false)

		if err := s.exporter.Export(ctx); err != nil {
			s.logger.Error("export failed", zap.Error(err))
		}
	}()
	return true
}
