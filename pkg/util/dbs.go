package util

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// OpenDatabase opens the sqlite profile database. An empty DSN yields an
// in-memory database, which the tests rely on.
func OpenDatabase(cfg *gorm.Config, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}
