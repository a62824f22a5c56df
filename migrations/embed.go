// Package migrations compiles the SQL schema files into the binary so
// the bridge needs no migration files on disk at runtime. A blank
// import from cmd/stbridge triggers the registration.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
