package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedUser struct {
	CardID      string
	DisplayName string
}

type SeedDevOptions struct {
	// Users are inserted only when the users table is empty, so an operator
	// who deletes the seeded accounts does not see them come back.
	Users []SeedUser
}

// SeedDev populates an empty directory with starter users. It returns the
// number of users inserted.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) (int, error) {
	if len(opt.Users) == 0 {
		return 0, nil
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users;`).Scan(&count); err != nil {
		return 0, fmt.Errorf("seed count users: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now().UTC().UnixMilli()
	inserted := 0
	for _, u := range opt.Users {
		card := strings.TrimSpace(u.CardID)
		name := strings.TrimSpace(u.DisplayName)
		if card == "" || name == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO users(card_id, display_name, created_at_ms)
VALUES (?, ?, ?);`, card, name, now); err != nil {
			return inserted, fmt.Errorf("seed user %s: %w", card, err)
		}
		inserted++
	}
	return inserted, nil
}
