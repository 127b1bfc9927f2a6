// Package export renders the attendance log as a spreadsheet and optionally
// publishes it to object storage.
package export

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

const (
	SheetLog     = "Log"
	SheetUsers   = "Users"
	SheetRanking = "Ranking"

	timeLayout = "2006-01-02 15:04:05"
)

// Publisher ships a finished workbook somewhere else.
type Publisher interface {
	Publish(ctx context.Context, path string) error
}

type Config struct {
	Path     string
	Location *time.Location
}

// Exporter regenerates the workbook from the full log and directory.
type Exporter struct {
	users     store.UserDirectory
	events    store.AccessEventStore
	reports   *service.ReportService
	publisher Publisher // may be nil
	logger    *zap.Logger
	path      string
	loc       *time.Location
}

func New(cfg Config, users store.UserDirectory, events store.AccessEventStore, reports *service.ReportService, pub Publisher, logger *zap.Logger) *Exporter {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Exporter{
		users:     users,
		events:    events,
		reports:   reports,
		publisher: pub,
		logger:    logger,
		path:      cfg.Path,
		loc:       cfg.Location,
	}
}

// Export writes the workbook next to Path and renames it into place, so a
// reader of Path never sees a partial file.
func (e *Exporter) Export(ctx context.Context) error {
	f, err := e.Build(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.xlsx")
	if err != nil {
		return fmt.Errorf("export temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("export write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export close: %w", err)
	}
	if err := os.Rename(tmpName, e.path); err != nil {
		return fmt.Errorf("export rename: %w", err)
	}
	e.logger.Debug("export written", zap.String("path", e.path))

	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, e.path); err != nil {
			return fmt.Errorf("export publish: %w", err)
		}
	}
	return nil
}

// Build assembles the workbook in memory. The caller closes it.
func (e *Exporter) Build(ctx context.Context) (*excelize.File, error) {
	users, err := e.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	events, err := e.events.AllOrderedByUserThenTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("export events: %w", err)
	}
	ranking, err := e.reports.AllTimeRanking(ctx)
	if err != nil {
		return nil, fmt.Errorf("export ranking: %w", err)
	}

	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetLog); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetUsers, SheetRanking} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]store.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	if err := e.writeLog(f, header, events, byID); err != nil {
		return nil, fmt.Errorf("export log sheet: %w", err)
	}
	if err := e.writeUsers(f, header, users); err != nil {
		return nil, fmt.Errorf("export users sheet: %w", err)
	}
	if err := writeRanking(f, header, ranking); err != nil {
		return nil, fmt.Errorf("export ranking sheet: %w", err)
	}

	ok = true
	return f, nil
}

func (e *Exporter) writeLog(f *excelize.File, header int, events []store.AccessEvent, byID map[int64]store.User) error {
	slices.SortStableFunc(events, func(a, b store.AccessEvent) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	rows := [][]any{{"Timestamp", "Name", "Card", "Direction", "Source"}}
	for _, ev := range events {
		u, ok := byID[ev.UserID]
		if !ok {
			u = store.User{DisplayName: service.PlaceholderName(ev.UserID)}
		}
		rows = append(rows, []any{
			ev.Timestamp.In(e.loc).Format(timeLayout),
			u.DisplayName,
			u.CardID,
			string(ev.Direction),
			string(ev.Source),
		})
	}
	return writeRows(f, SheetLog, header, rows, 22)
}

func (e *Exporter) writeUsers(f *excelize.File, header int, users []store.User) error {
	rows := [][]any{{"ID", "Name", "Card", "Registered"}}
	for _, u := range users {
		rows = append(rows, []any{u.ID, u.DisplayName, u.CardID, u.CreatedAt.In(e.loc).Format(timeLayout)})
	}
	return writeRows(f, SheetUsers, header, rows, 22)
}

func writeRanking(f *excelize.File, header int, ranking []service.UserTotal) error {
	rows := [][]any{{"Rank", "Name", "Total", "Seconds"}}
	for i, t := range ranking {
		rows = append(rows, []any{i + 1, t.DisplayName, t.Duration, t.TotalSeconds})
	}
	return writeRows(f, SheetRanking, header, rows, 18)
}

func writeRows(f *excelize.File, sheet string, header int, rows [][]any, width float64) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	last, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", header); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, width)
}
