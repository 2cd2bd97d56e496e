package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Service owns the PostgreSQL connection pool.
type Service interface {
	// Health reports pool statistics and whether the database answers a ping.
	Health() map[string]string

	// DB exposes the pool to the repositories.
	DB() *sql.DB

	// Close terminates the pool.
	Close() error
}

const (
	maxOpenConns = 25

	// waitCountWarning flags a pool whose callers often queue for a connection
	waitCountWarning = 1000
)

type service struct {
	db *sql.DB
}

// New opens a pgx-backed pool for dsn and verifies it with a ping.
func New(ctx context.Context, dsn string) (Service, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &service{db: db}, nil
}

// NewFromDB wraps an existing pool.
func NewFromDB(db *sql.DB) Service {
	return &service{db: db}
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"

	dbStats := s.db.Stats()
	stats["message"] = healthMessage(dbStats)
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	return stats
}

// healthMessage summarizes pool pressure. A bounded pool is saturated when
// every connection it may open is in use.
func healthMessage(dbStats sql.DBStats) string {
	limit := dbStats.MaxOpenConnections

	switch {
	case dbStats.WaitCount > waitCountWarning:
		return "The database has a high number of wait events, indicating potential bottlenecks."
	case limit > 0 && dbStats.InUse >= limit:
		return "The database is experiencing heavy load."
	default:
		return "It's healthy"
	}
}

func (s *service) Close() error {
	return s.db.Close()
}
