package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spotstats/internal/shared"
)

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by [sql.Tx], [sql.Conn] and [sql.DB].
type execer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// utc normalises timestamps before binding. SQLite compares DATETIME columns as text.
func utc(t time.Time) time.Time {
	return t.UTC()
}

// collect drains rows through scan and closes them.
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// checkWindow rejects unknown time ranges before they reach a query.
func checkWindow(window string) error {
	for _, w := range shared.TimeWindows {
		if w == window {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown time range %q", shared.ErrInvalidArgument, window)
}
