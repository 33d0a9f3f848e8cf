package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
)

// MigrationAction is the type of migration to perform.
type MigrationAction int

const (
	// MigrateUp Fully upgrades the schema.
	MigrateUp MigrationAction = iota
	// MigrateDn Fully downgrades the schema.
	MigrateDn
	// MigrateUpOne Upgrade the schema by one revision.
	MigrateUpOne
	// MigrateDownOne Downgrade the schema by one revision.
	MigrateDownOne
)

var (
	//go:embed migrations
	migrations embed.FS

	ErrMigrate = errors.New("failed to migrate db schema")
)

// ParseMigrationAction maps a CLI argument to a MigrationAction
func ParseMigrationAction(name string) (MigrationAction, error) {
	switch name {
	case "", "up":
		return MigrateUp, nil
	case "down":
		return MigrateDn, nil
	case "up-one":
		return MigrateUpOne, nil
	case "down-one":
		return MigrateDownOne, nil
	default:
		return MigrateUp, fmt.Errorf("unknown migration action %q", name)
	}
}

// Migrate applies the embedded schema migrations for the client's driver
func (c *Client) Migrate(action MigrationAction) error {
	var (
		driver    database.Driver
		errDriver error
	)

	switch c.driver {
	case DriverSQLite:
		driver, errDriver = sqlite.WithInstance(c.db, &sqlite.Config{})
	default:
		driver, errDriver = postgres.WithInstance(c.db, &postgres.Config{})
	}
	if errDriver != nil {
		return errors.Join(errDriver, ErrMigrate)
	}

	source, errSource := iofs.New(migrations, "migrations/"+c.driver)
	if errSource != nil {
		return errors.Join(errSource, ErrMigrate)
	}

	migrator, errMigrateInstance := migrate.NewWithInstance("iofs", source, c.driver, driver)
	if errMigrateInstance != nil {
		return errors.Join(errMigrateInstance, ErrMigrate)
	}

	var errMigration error

	switch action {
	case MigrateUpOne:
		errMigration = migrator.Steps(1)
	case MigrateDn:
		errMigration = migrator.Down()
	case MigrateDownOne:
		errMigration = migrator.Steps(-1)
	case MigrateUp:
		fallthrough
	default:
		errMigration = migrator.Up()
	}

	if errMigration != nil && !errors.Is(errMigration, migrate.ErrNoChange) {
		return errors.Join(errMigration, ErrMigrate)
	}

	return nil
}

// Seed inserts rows into the teams, players and statistics tables in one transaction.
// Teams are created on first use and reused by name afterwards.
func (c *Client) Seed(ctx context.Context, rows []stats.PlayerStatRow) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	teamIDs := make(map[string]int64)
	for _, row := range rows {
		teamID, ok := teamIDs[row.Team]
		if !ok {
			teamID, err = c.teamID(ctx, tx, row.Team)
			if err != nil {
				return err
			}
			teamIDs[row.Team] = teamID
		}

		var playerID int64
		insertPlayer := fmt.Sprintf("INSERT INTO jogadores (nome, time_id) VALUES (%s, %s) RETURNING id",
			c.placeholder(1), c.placeholder(2))
		if err := tx.QueryRowContext(ctx, insertPlayer, row.Name, teamID).Scan(&playerID); err != nil {
			return fmt.Errorf("insert player %s: %w", row.Name, err)
		}

		insertStats := fmt.Sprintf("INSERT INTO estatisticas (jogador_id, gols, assistencias) VALUES (%s, %s, %s)",
			c.placeholder(1), c.placeholder(2), c.placeholder(3))
		if _, err := tx.ExecContext(ctx, insertStats, playerID, row.Goals, row.Assists); err != nil {
			return fmt.Errorf("insert stats for %s: %w", row.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	return nil
}

func (c *Client) teamID(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64

	selectTeam := fmt.Sprintf("SELECT id FROM times WHERE nome = %s", c.placeholder(1))
	err := tx.QueryRowContext(ctx, selectTeam, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query team %s: %w", name, err)
	}

	insertTeam := fmt.Sprintf("INSERT INTO times (nome) VALUES (%s) RETURNING id", c.placeholder(1))
	if err := tx.QueryRowContext(ctx, insertTeam, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert team %s: %w", name, err)
	}

	return id, nil
}

func (c *Client) placeholder(n int) string {
	if c.driver == DriverSQLite {
		return "?"
	}

	return fmt.Sprintf("$%d", n)
}
