package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/db"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	"github.com/spf13/cobra"
)

func migrateRun(_ *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	action, err := db.ParseMigrationAction(name)
	if err != nil {
		return errors.Join(err, errApp)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(client)

	if err := client.Migrate(action); err != nil {
		return errors.Join(err, errApp)
	}

	fmt.Printf("✓ Migrations applied (%s, %s)\n", client.Driver(), actionName(name))

	return nil
}

func seedRun(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return errors.Join(err, errApp)
		}
		defer file.Close()
		in = file
	}

	var rows []stats.PlayerStatRow
	if err := json.NewDecoder(in).Decode(&rows); err != nil {
		return errors.Join(fmt.Errorf("decode rows: %w", err), errApp)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(client)

	if err := client.Seed(cmd.Context(), rows); err != nil {
		return errors.Join(err, errApp)
	}

	fmt.Printf("✓ Inserted %s player rows\n", humanize.Comma(int64(len(rows))))

	return nil
}

func actionName(name string) string {
	if name == "" {
		return "up"
	}
	return name
}

func closeDB(client *db.Client) {
	if err := client.Close(); err != nil {
		slog.Error("Failed to close database", slog.String("error", err.Error()))
	}
}
