// Package database provides SQLite connectivity for the Insteon core.
//
// The database holds the modem traffic journal only; device and link group
// registries live in memory and are rebuilt from the modem on startup.
//
// Migrations are embedded SQL files named
// YYYYMMDD_HHMMSS_description.{up,down}.sql. The migrations package
// registers them by setting Migrations at init time. Each migration is
// applied in its own transaction and recorded in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
