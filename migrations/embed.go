// Package migrations embeds SQL migration files into the binary.
//
// Importing this package for its side effect registers the files with the
// database package, so the SQL does not need to ship alongside the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
