package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

type UserDirectory struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewUserDirectory(db *sql.DB, writer *dbpkg.Worker) *UserDirectory {
	return &UserDirectory{db: db, writer: writer}
}

// FindByCardID matches card_id exactly; the column's BINARY collation keeps
// the comparison case-sensitive.
func (d *UserDirectory) FindByCardID(ctx context.Context, cardID string) (store.User, bool, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT user_id, card_id, display_name, created_at_ms
FROM users
WHERE card_id = ?;
`, cardID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, false, nil
	}
	if err != nil {
		return store.User{}, false, fmt.Errorf("FindByCardID query: %w", err)
	}
	return u, true, nil
}

func (d *UserDirectory) Get(ctx context.Context, id int64) (store.User, bool, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT user_id, card_id, display_name, created_at_ms
FROM users
WHERE user_id = ?;
`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, false, nil
	}
	if err != nil {
		return store.User{}, false, fmt.Errorf("Get user query: %w", err)
	}
	return u, true, nil
}

func (d *UserDirectory) List(ctx context.Context) ([]store.User, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT user_id, card_id, display_name, created_at_ms
FROM users
ORDER BY user_id;
`)
	if err != nil {
		return nil, fmt.Errorf("List users query: %w", err)
	}
	defer rows.Close()

	var out []store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("List users scan: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List users rows: %w", err)
	}
	return out, nil
}

func (d *UserDirectory) Create(ctx context.Context, u store.User) (store.User, error) {
	u.CardID = strings.TrimSpace(u.CardID)
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	err := d.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM users WHERE card_id = ?;`, u.CardID).Scan(&existing)
		if err == nil {
			return store.ErrDuplicateCardID
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("Create user check card: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO users(card_id, display_name, created_at_ms)
VALUES (?, ?, ?);
`, u.CardID, u.DisplayName, u.CreatedAt.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("Create user insert: %w", err)
		}
		u.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Create user last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.User{}, err
	}
	return u, nil
}

// Delete removes the user row; ON DELETE CASCADE removes their events.
func (d *UserDirectory) Delete(ctx context.Context, id int64) error {
	return d.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?;`, id)
		if err != nil {
			return fmt.Errorf("Delete user: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Delete user rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrUserNotFound
		}
		return nil
	})
}

func scanUser(row interface{ Scan(dest ...any) error }) (store.User, error) {
	var (
		u         store.User
		createdMs int64
	)
	if err := row.Scan(&u.ID, &u.CardID, &u.DisplayName, &createdMs); err != nil {
		return store.User{}, err
	}
	u.CreatedAt = time.UnixMilli(createdMs).UTC()
	return u, nil
}
