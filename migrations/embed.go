// Package migrations embeds the SQL migration files into the binary and
// registers them with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.Migrations = files
	database.MigrationsDir = "."
}
