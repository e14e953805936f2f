// Package migrations bundles the schema migrations for every supported
// database driver into the binary.
package migrations

import (
	"embed"
	"fmt"
)

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS

// ForDriver returns the migration files and their directory for a
// database/sql driver name.
func ForDriver(driver string) (embed.FS, string, error) {
	switch driver {
	case "sqlite3":
		return SqliteMigrations, "sqlite", nil
	case "postgres":
		return PostgresMigrations, "postgres", nil
	default:
		return embed.FS{}, "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}
