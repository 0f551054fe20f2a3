package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
)

type Config struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
	MaxIdleConns int           `envconfig:"MAX_IDLE_CONNS" split_words:"true" default:"2"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// Store wraps the bun handle. It is safe for concurrent use; all cross-turn
// coordination happens in PostgreSQL.
type Store struct {
	db *bun.DB
}

func New(cfg Config) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: database dsn is required", contractx.ErrValidation)
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(cfg.Timeout),
	)
	sqldb := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	return &Store{db: bun.NewDB(sqldb, pgdialect.New())}, nil
}

func MustNew(cfg Config) *Store {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping database: %v", contractx.ErrTransport, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RawQuery executes an ad-hoc statement for the admin channel. SELECT/WITH
// statements return rows; anything else returns an affected-rows status.
func (s *Store) RawQuery(ctx context.Context, query string) (contractx.Rows, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return contractx.Rows{}, fmt.Errorf("%w: empty query", contractx.ErrValidation)
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		res, err := s.db.ExecContext(ctx, trimmed)
		if err != nil {
			return contractx.Rows{}, fmt.Errorf("%w: exec statement: %v", contractx.ErrTransport, err)
		}
		affected, _ := res.RowsAffected()
		return contractx.Rows{Status: fmt.Sprintf("OK, rows affected: %d", affected)}, nil
	}

	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return contractx.Rows{}, fmt.Errorf("%w: run query: %v", contractx.ErrTransport, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return contractx.Rows{}, fmt.Errorf("%w: read columns: %v", contractx.ErrTransport, err)
	}

	out := contractx.Rows{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return contractx.Rows{}, fmt.Errorf("%w: scan row: %v", contractx.ErrTransport, err)
		}
		out.Values = append(out.Values, values)
	}
	if err := rows.Err(); err != nil {
		return contractx.Rows{}, fmt.Errorf("%w: iterate rows: %v", contractx.ErrTransport, err)
	}
	return out, nil
}
