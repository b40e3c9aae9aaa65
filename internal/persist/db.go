package persist

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/talismans/server/internal/config"
)

// Dialect is the SQL backend behind a DB.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// DB wraps the journal database. PostgreSQL goes through a pgx pool exposed
// as database/sql; SQLite uses the pure-Go modernc driver.
type DB struct {
	SQL     *sql.DB
	Pool    *pgxpool.Pool // nil for SQLite
	Dialect Dialect
	log     *zap.Logger
}

// DialectOf picks the backend from a DSN: postgres:// or postgresql:// URLs
// select PostgreSQL, anything else is a SQLite path (":memory:" included).
func DialectOf(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return SQLite
}

func NewDB(ctx context.Context, cfg config.JournalConfig, log *zap.Logger) (*DB, error) {
	switch DialectOf(cfg.DSN) {
	case Postgres:
		return openPostgres(ctx, cfg, log)
	default:
		return openSQLite(ctx, cfg, log)
	}
}

func openPostgres(ctx context.Context, cfg config.JournalConfig, log *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{SQL: stdlib.OpenDBFromPool(pool), Pool: pool, Dialect: Postgres, log: log}, nil
}

func openSQLite(ctx context.Context, cfg config.JournalConfig, log *zap.Logger) (*DB, error) {
	dsn := cfg.DSN
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; an in-memory database also only exists per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &DB{SQL: db, Dialect: SQLite, log: log}, nil
}

// Rebind rewrites '?' placeholders to '$n' for PostgreSQL.
func (db *DB) Rebind(query string) string {
	if db.Dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) Close() {
	db.SQL.Close()
	if db.Pool != nil {
		db.Pool.Close()
	}
}
