// Package migration versions the run-history schema (runs and metrics
// tables) across PostgreSQL, MySQL, and SQLite.
//
// SQL files are embedded per dialect under migrations/<dialect> and applied
// through golang-migrate. The Migrator exposes Up/Down/Steps plus
// Version/Status/Info for inspection; CLI wraps it with formatted terminal
// output for the migrate subcommand.
package migration
