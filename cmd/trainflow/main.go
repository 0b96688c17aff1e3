package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rlkit/trainflow"

	// Built-in entry point plus the manifest factories shipped in contrib.
	// The contrib factories stay inert until a manifest names them.
	_ "github.com/rlkit/trainflow/contrib/rediswriter"
	_ "github.com/rlkit/trainflow/contrib/wswriter"
	_ "github.com/rlkit/trainflow/plugins/builtin"
)

// Build-time injected.
var (
	Version   = trainflow.Version
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "writers":
		runWriters(os.Args[2:])
	case "runs":
		runRuns(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printVersion() {
	fmt.Printf("trainflow %s\n", Version)
	fmt.Printf("  build time: %s\n", BuildTime)
	fmt.Printf("  git commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `trainflow - training stats toolkit

Usage:
  trainflow <command> [options]

Commands:
  writers   Resolve and list the stats writers a run would use
  runs      List runs recorded in a local tracking store
  migrate   Tracking store schema migrations
  version   Show version information
  help      Show this help message

Options for 'writers':
  --config <path>        Run options YAML (defaults used when omitted)
  --manifest-dir <dir>   Directory scanned for *.plugin.{yaml,yml,json}
                         manifests (repeatable)
  --debug                Debug logging

Options for 'runs':
  --db <path>            Local store path (default results/run_history.db)
  --project <name>       Tracking project (default trainflow)

Migration subcommands (each takes --database-url and --type):
  migrate up             Apply all pending migrations
  migrate down           Roll back the last migration
  migrate steps <n>      Migrate n steps; negative rolls back
  migrate version        Show current schema version
  migrate status         Show per-migration state

Examples:
  trainflow writers --config run.yaml --manifest-dir ./plugins --debug
  trainflow runs --db results/ppo-1/run_history.db
  trainflow migrate up --database-url trainflow.db --type sqlite
  trainflow migrate steps --database-url trainflow.db -- -1`)
}

// initLogger builds the application logger. Output goes to stderr so
// command output on stdout stays machine-readable.
func initLogger(debug bool) *zap.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoding := "json"

	if debug {
		level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	}

	cfg := zap.Config{
		Level:            level,
		Development:      debug,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
