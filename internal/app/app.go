// Package app assembles the rollcall runtime from configuration and
// supervises its long-running activities.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/rollcall/internal/config"
	"github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/grpcapi"
	"github.com/BrandonDHaskell/rollcall/internal/httpapi"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/export"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/reader"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/sqlite"
)

const shutdownTimeout = 5 * time.Second

// Options override parts of the graph built from Config.
type Options struct {
	// Source replaces the PC/SC reader. When nil and the reader is enabled,
	// a PC/SC source is opened.
	Source reader.Source
}

// App owns every long-lived resource: the database and its writer, the
// notification sinks, the card source and the servers.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	conn   *sql.DB
	writer *db.Worker

	dispatcher *notify.Dispatcher
	display    *notify.DisplaySink // nil when no display is configured

	Access    *service.AccessService
	Directory *service.DirectoryService
	Reports   *service.ReportService
	AutoClose *service.AutoSignOut
	Exporter  *export.Exporter // nil when export is disabled

	scheduler *service.Scheduler
	source    reader.Source
	poller    *reader.Poller
	http      *httpapi.Server
	grpc      *grpcapi.Server // nil when grpc.addr is empty

	ready    chan struct{}
	httpAddr net.Addr
	grpcAddr net.Addr
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opt Options) (*App, error) {
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, err
	}

	if cfg.Env == "dev" && len(cfg.SeedUsers) > 0 {
		seeds := make([]db.SeedUser, 0, len(cfg.SeedUsers))
		for _, u := range cfg.SeedUsers {
			seeds = append(seeds, db.SeedUser{CardID: u.CardID, DisplayName: u.DisplayName})
		}
		n, err := db.SeedDev(ctx, conn, db.SeedDevOptions{Users: seeds})
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		if n > 0 {
			logger.Info("seeded users", zap.Int("count", n))
		}
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		conn:   conn,
		writer: db.NewWorker(conn),
		ready:  make(chan struct{}),
	}

	users := sqlite.NewUserDirectory(conn, a.writer)
	events := sqlite.NewAccessEventStore(conn, a.writer)

	sinks := []notify.Sink{notify.NewLogSink(logger.Named("notify"))}
	if cfg.Discord.WebhookURL != "" {
		sinks = append(sinks, notify.NewDiscordSink(cfg.Discord.WebhookURL, nil, cfg.Location))
	}
	if cfg.Display.Port != "" {
		a.display = notify.NewDisplaySink(notify.SerialOpener(cfg.Display.Port, cfg.Display.Baud), 2*time.Second, logger.Named("display"))
		sinks = append(sinks, a.display)
	}
	a.dispatcher = notify.NewDispatcher(notify.DispatcherConfig{}, logger.Named("notify"), sinks...)

	a.Access = service.NewAccessService(users, events, a.dispatcher, logger.Named("access"))
	a.Directory = service.NewDirectoryService(users, events)
	a.Reports = service.NewReportService(events, a.Directory, cfg.Location)
	a.AutoClose = service.NewAutoSignOut(users, events, a.dispatcher, cfg.Location, logger.Named("autoclose"))

	if cfg.Export.Path != "" {
		var pub export.Publisher
		if cfg.Export.S3Bucket != "" {
			p, err := export.NewS3Publisher(ctx, export.S3Config{
				Bucket:   cfg.Export.S3Bucket,
				Key:      cfg.Export.S3Key,
				Region:   cfg.Export.S3Region,
				Endpoint: cfg.Export.S3Endpoint,
			})
			if err != nil {
				a.closeStorage()
				return nil, err
			}
			pub = p
		}
		a.Exporter = export.New(export.Config{Path: cfg.Export.Path, Location: cfg.Location},
			users, events, a.Reports, pub, logger.Named("export"))
	}

	var exporter service.Exporter
	if a.Exporter != nil {
		exporter = a.Exporter
	}
	a.scheduler, err = service.NewScheduler(service.SchedulerConfig{
		Interval: cfg.Scheduler.Interval,
		Cutoff:   cfg.Scheduler.Cutoff,
		Location: cfg.Location,
	}, a.AutoClose, exporter, logger.Named("scheduler"))
	if err != nil {
		a.closeStorage()
		return nil, err
	}

	if cfg.GRPCAddr != "" {
		a.grpc = grpcapi.NewServer(logger.Named("grpc"))
	}

	a.source = opt.Source
	if a.source == nil && cfg.Reader.Enabled {
		src, err := reader.NewPCSCSource(cfg.Reader.Name, logger.Named("reader"))
		if err != nil {
			a.closeStorage()
			return nil, err
		}
		a.source = src
	}
	if a.source != nil {
		var health reader.HealthReporter
		if a.grpc != nil {
			health = a.grpc
		}
		a.poller = reader.NewPoller(reader.PollerConfig{
			IdleInterval: cfg.Reader.IdleInterval,
			Cooldown:     cfg.Reader.Cooldown,
			PollTimeout:  cfg.Reader.PollTimeout,
		}, a.source, a.Access, a.dispatcher, health, logger.Named("reader"))
	}

	a.http = httpapi.NewServer(httpapi.Dependencies{
		Logger:    logger.Named("http"),
		Addr:      cfg.HTTPAddr,
		Access:    a.Access,
		Reports:   a.Reports,
		Directory: a.Directory,
	})

	return a, nil
}

// Run serves until ctx is cancelled or any activity fails, then stops all
// of them. In-flight appends finish before Run returns; Close releases the
// storage afterwards.
func (a *App) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	a.httpAddr = httpLis.Addr()

	var grpcLis net.Listener
	if a.grpc != nil {
		grpcLis, err = net.Listen("tcp", a.cfg.GRPCAddr)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("grpc listen: %w", err)
		}
		a.grpcAddr = grpcLis.Addr()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.dispatcher.Run(gctx) })
	g.Go(func() error { return a.scheduler.Run(gctx) })
	if a.poller != nil {
		g.Go(func() error { return a.poller.Run(gctx) })
	}

	g.Go(func() error {
		a.logger.Info("http listening", zap.String("addr", a.httpAddr.String()))
		if err := a.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return a.http.Shutdown(shutdownCtx)
	})

	if a.grpc != nil {
		g.Go(func() error {
			if err := a.grpc.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.grpc.Stop()
			return nil
		})
	}

	a.dispatcher.Notify(notify.Notification{Kind: notify.KindReady})
	close(a.ready)

	err = g.Wait()
	a.logger.Info("rollcall stopped", zap.Error(err))
	return err
}

// Ready is closed once Run has bound its listeners.
func (a *App) Ready() <-chan struct{} { return a.ready }

// HTTPAddr is valid after Ready.
func (a *App) HTTPAddr() net.Addr { return a.httpAddr }

// GRPCAddr is valid after Ready; nil when gRPC is disabled.
func (a *App) GRPCAddr() net.Addr { return a.grpcAddr }

// RunOnce runs fn with notification delivery active and drains the queue
// before returning. It is for one-shot commands that never call Run; the
// App cannot Run afterwards.
func (a *App) RunOnce(ctx context.Context, fn func(context.Context) error) error {
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.dispatcher.Run(dctx)
	}()

	err := fn(ctx)
	cancel()
	<-done
	return err
}

// Export runs one export outside the scheduler.
func (a *App) Export(ctx context.Context) error {
	if a.Exporter == nil {
		return errors.New("export disabled: export.path is empty")
	}
	return a.Exporter.Export(ctx)
}

// Close releases the card source, the display and the database. Call it
// after Run has returned.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.source.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.display != nil {
		errs = append(errs, a.display.Close())
	}
	errs = append(errs, a.closeStorage())
	return errors.Join(errs...)
}

func (a *App) closeStorage() error {
	a.writer.Close()
	return a.conn.Close()
}
