package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rlkit/trainflow/internal/migration"
)

// runMigrate handles the migrate command and its subactions.
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(2)
	}

	sub := args[0]
	subargs := args[1:]

	switch sub {
	case "up":
		withMigratorCLI("migrate up", subargs, func(ctx context.Context, cli *migration.CLI, _ *flag.FlagSet) error {
			return cli.RunUp(ctx)
		})
	case "down":
		withMigratorCLI("migrate down", subargs, func(ctx context.Context, cli *migration.CLI, _ *flag.FlagSet) error {
			return cli.RunDown(ctx)
		})
	case "steps":
		withMigratorCLI("migrate steps", subargs, func(ctx context.Context, cli *migration.CLI, fs *flag.FlagSet) error {
			if fs.NArg() != 1 {
				return fmt.Errorf("usage: trainflow migrate steps [options] <n>")
			}
			n, err := strconv.Atoi(fs.Arg(0))
			if err != nil {
				return fmt.Errorf("invalid step count %q: %w", fs.Arg(0), err)
			}
			return cli.RunSteps(ctx, n)
		})
	case "version":
		withMigratorCLI("migrate version", subargs, func(ctx context.Context, cli *migration.CLI, _ *flag.FlagSet) error {
			return cli.RunVersion(ctx)
		})
	case "status":
		withMigratorCLI("migrate status", subargs, func(ctx context.Context, cli *migration.CLI, _ *flag.FlagSet) error {
			return cli.RunStatus(ctx)
		})
	case "help", "-h", "--help":
		printMigrateUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown migrate subcommand: %s\n", sub)
		printMigrateUsage()
		os.Exit(2)
	}
}

// withMigratorCLI parses the shared migration flags, builds the migrator,
// and runs one action against it.
func withMigratorCLI(name string, args []string, action func(context.Context, *migration.CLI, *flag.FlagSet) error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	databaseURL := fs.String("database-url", "", "Database connection URL (file path for sqlite)")
	dbTypeStr := fs.String("type", string(migration.DatabaseTypeSQLite), "Database type: postgres, mysql, sqlite")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	if *databaseURL == "" {
		fatalf("%s: --database-url is required", name)
	}
	dbType, err := migration.ParseDatabaseType(*dbTypeStr)
	if err != nil {
		fatalf("%s: %v", name, err)
	}

	logger := initLogger(*debug)
	defer logger.Sync()

	migrator, err := migration.NewMigrator(*databaseURL, dbType, logger)
	if err != nil {
		fatalf("%s: %v", name, err)
	}
	defer migrator.Close()

	if err := action(context.Background(), migration.NewCLI(migrator), fs); err != nil {
		fatalf("%s: %v", name, err)
	}
}

func printMigrateUsage() {
	fmt.Fprintln(os.Stderr, `trainflow migrate - tracking store schema migrations

Usage:
  trainflow migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Roll back the last migration
  steps <n> Migrate n steps; negative rolls back (prefix a negative count with --)
  version   Show current schema version
  status    Show per-migration state
  help      Show this help message

Options:
  --database-url <url>  Database connection URL (file path for sqlite)
  --type <type>         Database type: postgres, mysql, sqlite (default sqlite)
  --debug               Enable debug logging

Examples:
  trainflow migrate up --database-url results/run_history.db
  trainflow migrate status --database-url "postgres://localhost/trainflow?sslmode=disable" --type postgres
  trainflow migrate steps --database-url results/run_history.db 2
  trainflow migrate steps --database-url results/run_history.db -- -1`)
}
