package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// CLI formats Migrator operations for terminal use. It backs the
// `trainflow migrate` subcommand.
type CLI struct {
	migrator *Migrator
	out      io.Writer
}

// NewCLI wraps a migrator, writing to stdout.
func NewCLI(m *Migrator) *CLI {
	return &CLI{migrator: m, out: os.Stdout}
}

// SetOutput redirects CLI output, mainly for tests.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// RunUp applies all pending migrations and prints the resulting version.
func (c *CLI) RunUp(ctx context.Context) error {
	fmt.Fprintln(c.out, "applying migrations...")
	if err := c.migrator.Up(ctx); err != nil {
		return err
	}
	return c.printVersionLine(ctx, "schema up to date")
}

// RunDown rolls back the most recent migration.
func (c *CLI) RunDown(ctx context.Context) error {
	fmt.Fprintln(c.out, "rolling back one migration...")
	if err := c.migrator.Down(ctx); err != nil {
		return err
	}
	return c.printVersionLine(ctx, "rollback complete")
}

// RunDownAll rolls back every applied migration.
func (c *CLI) RunDownAll(ctx context.Context) error {
	fmt.Fprintln(c.out, "rolling back all migrations...")
	if err := c.migrator.DownAll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "schema reset")
	return nil
}

// RunSteps migrates n steps forward, or back when n is negative.
func (c *CLI) RunSteps(ctx context.Context, n int) error {
	fmt.Fprintf(c.out, "migrating %+d step(s)...\n", n)
	if err := c.migrator.Steps(ctx, n); err != nil {
		return err
	}
	return c.printVersionLine(ctx, "done")
}

// RunForce overwrites the recorded schema version.
func (c *CLI) RunForce(ctx context.Context, version int) error {
	if err := c.migrator.Force(ctx, version); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "version forced to %d\n", version)
	return nil
}

// RunVersion prints the current schema version.
func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Fprintln(c.out, "no migrations applied yet")
		return nil
	}
	fmt.Fprintf(c.out, "version %d", version)
	if dirty {
		fmt.Fprint(c.out, " (dirty)")
	}
	fmt.Fprintln(c.out)
	return nil
}

// RunStatus prints a table of every migration with its applied state.
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.out, "no migrations found")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, s := range statuses {
		state := "pending"
		switch {
		case s.Dirty:
			state = "dirty"
		case s.Applied:
			state = "applied"
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, state)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\napplied %d of %d, %d pending\n",
		info.AppliedMigrations, info.TotalMigrations, info.PendingMigrations)
	return nil
}

func (c *CLI) printVersionLine(ctx context.Context, prefix string) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s at version %d", prefix, version)
	if dirty {
		fmt.Fprint(c.out, " (dirty)")
	}
	fmt.Fprintln(c.out)
	return nil
}
