// Package postgres provides the PostgreSQL connection pool and schema
// migrations shared by the storage services.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Config holds PostgreSQL connection settings
type Config struct {
	URL            string
	MaxConns       int
	MaxIdleConns   int
	ConnectTimeout time.Duration
}

// DefaultConfig returns connection defaults suitable for development
func DefaultConfig() Config {
	return Config{
		URL:            "postgres://localhost:5432/atrium?sslmode=disable",
		MaxConns:       25,
		MaxIdleConns:   5,
		ConnectTimeout: 10 * time.Second,
	}
}

// Open connects to PostgreSQL, configures the pool, and verifies the
// connection with a ping.
func Open(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// EscapeLike escapes LIKE/ILIKE wildcard characters in a user-supplied
// search term so it matches as a literal substring. Queries using the result
// must specify ESCAPE '\'.
func EscapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
