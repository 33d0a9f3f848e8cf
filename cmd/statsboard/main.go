package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/config"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/db"
	"github.com/spf13/cobra"
)

var (
	BuildVersion   = "master"
	BuildCommit    = "00000000"
	BuildDate      = time.Now().Format("2006-01-02T15:04:05Z")
	BuildGoVersion = runtime.Version()
	cfgFile        string
	rootCmd        = &cobra.Command{
		Use:   "statsboard",
		Short: "Football player statistics dashboard",
		Long:  `statsboard - goals, assists and team totals served as a JSON API and a live web dashboard`,
		RunE:  serve,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}

	migrateCmd = &cobra.Command{
		Use:       "migrate [up|down|up-one|down-one]",
		Short:     "Apply database schema migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "up-one", "down-one"},
		RunE:      migrateRun,
	}

	seedCmd = &cobra.Command{
		Use:   "seed FILE",
		Short: "Insert player statistics from a JSON file (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  seedRun,
	}

	versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		Long:              "Print detailed version information about statsboard",
		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		Run:               version,
	}
)

var errApp = errors.New("application error")

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, versionCmd)

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		slog.Error("Exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func version(_ *cobra.Command, _ []string) {
	fmt.Printf("statsboard - football player statistics\n\n")
	fmt.Printf("  Version: %s\n", BuildVersion)
	fmt.Printf("  Commit:  %s\n", BuildCommit)
	fmt.Printf("  Built:   %s\n", BuildDate)
	fmt.Printf("  Runtime: %s\n\n", BuildGoVersion)
}

// loadConfig reads the configuration and installs the logger
func loadConfig() (config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Read()
	if err != nil {
		return config.Config{}, errors.Join(err, errApp)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	config.LoggerInit(os.Stderr, level)

	return cfg, nil
}

// openDB connects to the configured statistics database
func openDB(cfg config.Config) (*db.Client, error) {
	if cfg.Database.Driver == db.DriverSQLite && cfg.Database.DSN == "" {
		if err := config.EnsureDataDir(cfg.Database.Path); err != nil {
			return nil, errors.Join(err, errApp)
		}
	}

	client, err := db.NewClient(cfg.Database.Driver, cfg.Database.ResolveDSN())
	if err != nil {
		return nil, errors.Join(err, errApp)
	}

	return client, nil
}
