package db

import (
	"path/filepath"
	"testing"
)

func TestLatestMigrationVersion(t *testing.T) {
	v, err := LatestMigrationVersion()
	if err != nil {
		t.Fatalf("LatestMigrationVersion failed: %v", err)
	}
	if v != 2 {
		t.Errorf("latest version = %d, want 2", v)
	}
}

func TestNewDB_AppliesMigrations(t *testing.T) {
	db, _ := setupTestDB(t)

	status, err := db.GetMigrationStatus()
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != 2 || status.Dirty || status.Pending() {
		t.Errorf("unexpected status %+v", status)
	}

	// Running again is a no-op.
	if err := db.MigrateUp(); err != nil {
		t.Errorf("second MigrateUp failed: %v", err)
	}
}

func TestOpenDB_LeavesSchemaAlone(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	status, err := db.GetMigrationStatus()
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != 0 || !status.Pending() {
		t.Errorf("fresh database status %+v", status)
	}

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("version = %d dirty = %v, want 2 false", version, dirty)
	}
}

func TestMigrateDown(t *testing.T) {
	db, _ := setupTestDB(t)
	s, err := db.StartSession("/dev/ttyUSB0", "batch-2")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("version after down = %d, want 1", version)
	}

	// Sessions survive dropping the end-time column.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, s.ID).Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("session lost by down migration")
	}

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.EndSession(s.ID); err != nil {
		t.Errorf("EndSession after re-migrating failed: %v", err)
	}
}
