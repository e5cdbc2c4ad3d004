package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db"), WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db
}

// useMigrations swaps the registered migrations for the duration of a test.
func useMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	orig, origDir := Migrations, MigrationsDir
	Migrations, MigrationsDir = fsys, "."
	t.Cleanup(func() { Migrations, MigrationsDir = orig, origDir })
}

var journalMigrations = fstest.MapFS{
	"20260301_120000_journal.up.sql":   {Data: []byte("CREATE TABLE journal (id INTEGER PRIMARY KEY, frame BLOB NOT NULL);")},
	"20260301_120000_journal.down.sql": {Data: []byte("DROP TABLE journal;")},
	"20260302_090000_notes.up.sql":     {Data: []byte("CREATE TABLE notes (id INTEGER PRIMARY KEY);")},
	"README.md":                        {Data: []byte("ignored")},
}

func TestOpen(t *testing.T) {
	t.Run("creates nested directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a", "b", "insteon.db")
		db, err := Open(Config{Path: path, BusyTimeout: 1})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // test cleanup

		if _, err := os.Stat(filepath.Dir(path)); err != nil {
			t.Errorf("directory not created: %v", err)
		}
		if db.Path() != path {
			t.Errorf("Path() = %q, want %q", db.Path(), path)
		}
	})

	t.Run("health check", func(t *testing.T) {
		db := openTestDB(t)
		if err := db.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})
}

func TestCloseTwice(t *testing.T) {
	db := openTestDB(t)
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

func TestMigrate(t *testing.T) {
	useMigrations(t, journalMigrations)
	db := openTestDB(t)
	ctx := context.Background()

	_, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 2 || pending[0].Name != "journal" || pending[1].Name != "notes" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied = %d, pending = %d", len(applied), len(pending))
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO journal (frame) VALUES (?)", []byte{0x02, 0x60}); err != nil {
		t.Errorf("insert into migrated table: %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260301_120000_journal.up.sql":   journalMigrations["20260301_120000_journal.up.sql"],
		"20260301_120000_journal.down.sql": journalMigrations["20260301_120000_journal.down.sql"],
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='journal'").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Error("journal table should have been dropped")
	}
	applied, _, err := db.MigrationStatus(ctx)
	if err != nil || len(applied) != 0 {
		t.Errorf("applied = %v, err = %v", applied, err)
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty = %v", err)
	}
}

func TestMigrateWithoutMigrations(t *testing.T) {
	orig := Migrations
	Migrations = nil
	t.Cleanup(func() { Migrations = orig })

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() error = %v", err)
	}
}

func TestMigrateMissingUp(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260301_120000_orphan.down.sql": {Data: []byte("DROP TABLE orphan;")},
	})
	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err == nil {
		t.Error("expected error for migration without up SQL")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_modem_traffic.up.sql", "20260301_120000", "modem_traffic", true, true},
		{"20260301_120000_modem_traffic.down.sql", "20260301_120000", "modem_traffic", false, true},
		{"20260301_120000.up.sql", "20260301_120000", "20260301_120000", true, true},
		{"readme.txt", "", "", false, false},
		{"20260301_120000_x.sql", "", "", false, false},
		{"invalid.up.sql", "", "", false, false},
		{"2026_12_x.up.sql", "", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)", version, name, up, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}
