package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/rlkit/trainflow/tracker"
)

// runRuns lists the runs recorded in a local tracking store.
func runRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", filepath.Join("results", "run_history.db"), "Path to the local tracking store")
	project := fs.String("project", tracker.DefaultProject, "Tracking project")
	fs.Parse(args)

	logger := initLogger(false)
	defer logger.Sync()

	if _, err := os.Stat(*dbPath); err != nil {
		fatalf("open tracking store: %v", err)
	}

	client, err := tracker.OpenLocal(*dbPath, *project, logger)
	if err != nil {
		fatalf("open tracking store: %v", err)
	}
	defer client.Close()

	runs, err := client.ListRuns(context.Background(), *project)
	if err != nil {
		fatalf("list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSTARTED\tDURATION")
	for _, run := range runs {
		duration := "-"
		if !run.EndTime.IsZero() {
			duration = run.EndTime.Sub(run.StartTime).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			run.RunID, run.Name, run.Status,
			run.StartTime.Format(time.RFC3339), duration)
	}
	if err := tw.Flush(); err != nil {
		fatalf("write table: %v", err)
	}
}
