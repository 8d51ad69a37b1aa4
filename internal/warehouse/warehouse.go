// Package warehouse talks to the external relational query service and
// memoizes recent results.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"crmsms/internal/models"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// DB wraps the pooled connection to the warehouse. Queries are parameterized
// with ? placeholders and rebound to the driver's style on the way out.
type DB struct {
	sql    *sql.DB
	driver string
	log    *zap.Logger
}

// Open parses the DSN, picks the driver and tunes the pool. The first real
// round-trip happens on the connection-test endpoint or the first query, not
// here.
func Open(dsn string, maxOpen, maxIdle int, maxLifetime time.Duration, log *zap.Logger) (*DB, error) {
	driver, driverDSN, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, driverDSN)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	log.Info("warehouse configured", zap.String("driver", driver))
	return &DB{sql: db, driver: driver, log: log}, nil
}

// NewDB wraps an already-open handle. Used by tests with sqlmock.
func NewDB(db *sql.DB, driver string, log *zap.Logger) *DB {
	return &DB{sql: db, driver: driver, log: log}
}

// normalizeDSN maps mysql:// and mariadb:// URLs to the mysql driver's DSN
// format; postgres URLs pass through to lib/pq unchanged. Anything else is
// handed to the mysql driver as-is.
func normalizeDSN(dsn string) (driver, out string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "mysql://"), strings.HasPrefix(dsn, "mariadb://"):
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse dsn: %w", err)
		}
		user, pass := "", ""
		if u.User != nil {
			user = u.User.Username()
			pass, _ = u.User.Password()
		}
		name := strings.TrimPrefix(u.Path, "/")
		if user == "" || u.Host == "" || name == "" {
			return "", "", fmt.Errorf("dsn missing user, host or database")
		}
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", user, pass, u.Host, name), nil
	default:
		return "mysql", dsn, nil
	}
}

// Query executes one statement and materializes the full result as a Table.
// The statement's resources are released on every exit path; failures come
// back as *models.QueryServiceError.
func (d *DB) Query(ctx context.Context, q string, args []any) (models.Table, error) {
	started := time.Now()
	rows, err := d.sql.QueryContext(ctx, d.rebound(q), args...)
	if err != nil {
		return models.Table{}, &models.QueryServiceError{Err: err}
	}
	defer rows.Close()

	table, err := collectTable(rows)
	if err != nil {
		return models.Table{}, &models.QueryServiceError{Err: err}
	}
	d.log.Debug("warehouse query",
		zap.Int("rows", len(table.Rows)),
		zap.Int("params", len(args)),
		zap.Duration("took", time.Since(started)))
	return table, nil
}

func collectTable(rows *sql.Rows) (models.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return models.Table{}, err
	}
	table := models.Table{Columns: cols}
	for rows.Next() {
		cells := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return models.Table{}, err
		}
		row := make([]string, len(cols))
		for i, c := range cells {
			if c.Valid {
				row[i] = c.String
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return models.Table{}, err
	}
	return table, nil
}

// Ping verifies connectivity for the connection-test endpoint.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.sql.PingContext(ctx); err != nil {
		return &models.QueryServiceError{Err: err}
	}
	return nil
}

// Close releases the pool.
func (d *DB) Close() error { return d.sql.Close() }

// rebound rewrites ? placeholders to $1..$n for postgres. Single-quoted
// literals are left untouched.
func (d *DB) rebound(q string) string {
	if d.driver != "postgres" {
		return q
	}
	var sb strings.Builder
	sb.Grow(len(q) + 16)
	n := 0
	inQuote := false
	for _, r := range q {
		switch {
		case r == '\'':
			inQuote = !inQuote
			sb.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			fmt.Fprintf(&sb, "$%d", n)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
