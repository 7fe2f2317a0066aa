// Package migrations embeds the schema for every supported SQL driver.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// FS returns the migration files for the given sqlx driver name.
func FS(driver string) (fs.FS, error) {
	switch driver {
	case "sqlite":
		return fs.Sub(files, "sqlite")
	case "pgx":
		return fs.Sub(files, "postgres")
	default:
		return nil, fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}
