package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/rlkit/trainflow/internal/telemetry"
	"github.com/rlkit/trainflow/plugins"
	"github.com/rlkit/trainflow/settings"
)

// stringSliceFlag collects repeated flag values.
type stringSliceFlag []string

func (f *stringSliceFlag) String() string { return strings.Join(*f, ",") }

func (f *stringSliceFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// runWriters resolves the stats writers a training run would use and prints
// them as a table. Manifest directories are applied to the default registry
// before resolution, exactly as a trainer process would at startup.
func runWriters(args []string) {
	fs := flag.NewFlagSet("writers", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to run options YAML")
	var manifestDirs stringSliceFlag
	fs.Var(&manifestDirs, "manifest-dir", "Directory to scan for plugin manifests (repeatable)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	logger := initLogger(*debug)
	defer logger.Sync()

	providers, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		defer providers.Shutdown(context.Background())
	}

	opts := settings.DefaultRunOptions()
	if *configPath != "" {
		loaded, err := settings.Load(*configPath)
		if err != nil {
			fatalf("load run options: %v", err)
		}
		opts = loaded
	}

	reg := plugins.Default()
	reg.SetLogger(logger)

	if len(manifestDirs) > 0 {
		if err := reg.DiscoverManifests(context.Background(), manifestDirs); err != nil {
			fatalf("discover manifests: %v", err)
		}
	}

	writers, err := reg.ResolveStatsWriters(opts)
	if err != nil {
		fatalf("resolve stats writers: %v", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTYPE\tCLOSEABLE")
	for i, w := range writers {
		_, closeable := w.(io.Closer)
		fmt.Fprintf(tw, "%d\t%T\t%t\n", i+1, w, closeable)
	}
	if err := tw.Flush(); err != nil {
		fatalf("write table: %v", err)
	}

	for _, w := range writers {
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("close writer", zap.String("type", fmt.Sprintf("%T", w)), zap.Error(err))
			}
		}
	}
}
