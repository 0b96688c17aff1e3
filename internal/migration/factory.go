package migration

import (
	"strings"

	"go.uber.org/zap"

	"github.com/rlkit/trainflow/internal/database"
)

// NewForDatabase builds a Migrator for the database a pool Config points at,
// translating the pool DSN into the URL form the migration drivers expect.
func NewForDatabase(cfg database.Config, logger *zap.Logger) (*Migrator, error) {
	dbType, err := ParseDatabaseType(cfg.Driver)
	if err != nil {
		return nil, err
	}
	return NewMigrator(migrationURL(dbType, cfg.DSN), dbType, logger)
}

// migrationURL adapts a gorm-style DSN for the migration sql drivers.
func migrationURL(dbType DatabaseType, dsn string) string {
	switch dbType {
	case DatabaseTypeSQLite:
		// Pool configs hold a bare file path for sqlite.
		if strings.HasPrefix(dsn, "file:") {
			return dsn
		}
		return BuildDatabaseURL(DatabaseTypeSQLite, "", 0, dsn, "", "", "")
	case DatabaseTypeMySQL:
		if strings.Contains(dsn, "multiStatements=") {
			return dsn
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "multiStatements=true"
	default:
		return dsn
	}
}
