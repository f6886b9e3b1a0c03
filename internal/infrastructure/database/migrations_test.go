package database

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/nerrad567/gray-logic-pwm/migrations"
)

// openMigratedDB opens an in-memory database with the embedded migrations applied.
func openMigratedDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{Path: ":memory:", BusyTimeout: 1, Migrations: migrations.FS})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close() //nolint:errcheck // Test cleanup
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master query error = %v", err)
	}
	return count == 1
}

// TestMigrate verifies the embedded output state schema applies cleanly.
func TestMigrate(t *testing.T) {
	db := openMigratedDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, table := range []string{"output_state", "output_state_history", "schema_migrations"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("status = %d applied, %d pending; want 2, 0", len(applied), len(pending))
	}
	if applied[0].Version != "20261019_120000" || applied[0].AppliedAt.IsZero() {
		t.Errorf("first applied = %+v", applied[0])
	}

	// Idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

// TestMigrateDown verifies the latest migration rolls back.
func TestMigrateDown(t *testing.T) {
	db := openMigratedDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "output_state_history") {
		t.Error("output_state_history still exists after MigrateDown")
	}
	if !tableExists(t, db, "output_state") {
		t.Error("output_state removed by single MigrateDown")
	}

	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "output_state_history" {
		t.Errorf("pending = %+v, want output_state_history", pending)
	}
}

// TestMigrateNoMigrations verifies a nil filesystem only creates the tracking table.
func TestMigrateNoMigrations(t *testing.T) {
	db, err := Open(Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "schema_migrations") {
		t.Error("schema_migrations not created")
	}
	if err := db.MigrateDown(context.Background()); err != nil {
		t.Errorf("MigrateDown() with nothing applied error = %v", err)
	}
}

// TestMigrateFailureRollsBack verifies a broken migration is not recorded.
func TestMigrateFailureRollsBack(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101_000000_good.up.sql": {Data: []byte("CREATE TABLE good (id INTEGER PRIMARY KEY);")},
		"20260102_000000_bad.up.sql":  {Data: []byte("CREATE TABLE bad (id INTEGER PRIMARY KEY); INSERT INTO missing VALUES (1);")},
	}

	db, err := Open(Config{Path: ":memory:", BusyTimeout: 1, Migrations: fsys})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	err = db.Migrate(context.Background())
	if err == nil || !strings.Contains(err.Error(), "20260102_000000") {
		t.Fatalf("Migrate() error = %v, want failure naming the bad migration", err)
	}

	if !tableExists(t, db, "good") {
		t.Error("earlier migration should stay committed")
	}
	if tableExists(t, db, "bad") {
		t.Error("failed migration should be rolled back")
	}
}

// TestMigrateDownWithoutDownSQL verifies a one-way migration cannot be reverted.
func TestMigrateDownWithoutDownSQL(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101_000000_oneway.up.sql": {Data: []byte("CREATE TABLE oneway (id INTEGER PRIMARY KEY);")},
	}

	db, err := Open(Config{Path: ":memory:", BusyTimeout: 1, Migrations: fsys})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(context.Background()); err == nil || !strings.Contains(err.Error(), "no down SQL") {
		t.Errorf("MigrateDown() error = %v, want no down SQL", err)
	}
}

// TestParseMigrationFilename verifies filename parsing.
func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20261019_120000_output_state.up.sql", "20261019_120000", true, true},
		{"20261019_120000_output_state.down.sql", "20261019_120000", false, true},
		{"20261019_120000.up.sql", "20261019_120000", true, true},
		{"README.md", "", false, false},
		{"20261019_120000_output_state.sql", "", false, false},
		{"nounderscore.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.name)
			if version != tt.wantVersion || isUp != tt.wantUp || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.name, version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	if got := extractMigrationName("20261019_120100_output_state_history.up.sql"); got != "output_state_history" {
		t.Errorf("extractMigrationName() = %q", got)
	}
}
