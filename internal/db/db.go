package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"runtime"
	"time"

	_ "github.com/lib/pq"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrDBConnect   = errors.New("db connect error")
	ErrUnsupported = errors.New("unsupported database driver")
)

// StatsDB defines the interface for the player statistics source
type StatsDB interface {
	FetchPlayerStats(ctx context.Context) ([]stats.PlayerStatRow, error)
	Close() error
	Ping(ctx context.Context) error
}

// playerStatsQuery joins players, teams and per-player statistics.
// Ordering by the statistics id keeps row order, and with it ranking
// tie-breaks, reproducible across refreshes.
const playerStatsQuery = `
	SELECT j.nome, t.nome AS time, e.gols, e.assistencias
	FROM jogadores j
	JOIN times t ON j.time_id = t.id
	JOIN estatisticas e ON j.id = e.jogador_id
	ORDER BY e.id ASC
`

// Client implements StatsDB on top of database/sql
type Client struct {
	db     *sql.DB
	driver string
}

// NewClient opens a connection pool for driver and verifies it with a ping
func NewClient(driver, dsn string) (*Client, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open database: %w", err), ErrDBConnect)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := configureConnection(ctx, driver, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Join(fmt.Errorf("failed to ping database: %w", err), ErrDBConnect)
	}

	return &Client{db: db, driver: driver}, nil
}

func configureConnection(ctx context.Context, driver string, connection *sql.DB) error {
	if driver == DriverPostgres {
		connection.SetMaxOpenConns(25)
		connection.SetMaxIdleConns(5)
		connection.SetConnMaxLifetime(5 * time.Minute)

		return nil
	}

	parallelism := min(8, max(2, runtime.GOMAXPROCS(0)))
	connection.SetMaxOpenConns(parallelism)
	connection.SetMaxIdleConns(parallelism)
	connection.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode=WAL",
	}
	for _, pragma := range pragmas {
		if _, errPragma := connection.ExecContext(ctx, pragma); errPragma != nil {
			return errors.Join(errPragma, ErrDBConnect)
		}
	}

	return nil
}

// FetchPlayerStats runs the player statistics join and returns every row
func (c *Client) FetchPlayerStats(ctx context.Context) ([]stats.PlayerStatRow, error) {
	rows, err := c.db.QueryContext(ctx, playerStatsQuery)
	if err != nil {
		return nil, fmt.Errorf("query player stats: %w", err)
	}
	defer rows.Close()

	var out []stats.PlayerStatRow
	for rows.Next() {
		var r stats.PlayerStatRow
		if err := rows.Scan(&r.Name, &r.Team, &r.Goals, &r.Assists); err != nil {
			return nil, fmt.Errorf("scan player stats: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate player stats: %w", err)
	}

	return out, nil
}

// Driver returns the database/sql driver name in use
func (c *Client) Driver() string {
	return c.driver
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping checks database connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// PostgresDSN builds a postgres URL from discrete connection settings
func PostgresDSN(host, port, name, user, password, sslMode string) string {
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + name,
	}
	if sslMode != "" {
		dsn.RawQuery = url.Values{"sslmode": []string{sslMode}}.Encode()
	}

	return dsn.String()
}
