package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if err := s1.Put(ctx, "deck", []byte(`{"source":"deck.md"}`)); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if _, err := s1.Append(ctx, "changelog", []byte(`{"id":"a"}`)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	v, ok, err := s2.Get(ctx, "deck")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if string(v) != `{"source":"deck.md"}` {
		t.Errorf("Get() = %s", v)
	}
	records, err := s2.Stream(ctx, "changelog")
	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}
	if len(records) != 1 || records[0].Seq != 1 {
		t.Errorf("Stream() = %+v, want one record at seq 1", records)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestOpen_MigratesPreV1Database(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	// A database from before v1: both tables, no stream index, user_version 0.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE kv (key TEXT PRIMARY KEY, value BLOB NOT NULL, revision INTEGER NOT NULL DEFAULT 1)`,
		`CREATE TABLE log (stream TEXT NOT NULL, seq INTEGER NOT NULL, data BLOB NOT NULL, PRIMARY KEY (stream, seq))`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Exec(%q) failed: %v", stmt, err)
		}
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
	var name string
	err = s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_log_stream'`).Scan(&name)
	if err != nil {
		t.Errorf("stream index missing after migration: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "test.db")
	if s, err := Open(path); err == nil {
		s.Close()
		t.Fatal("Open() should fail for a path in a missing directory")
	}
}

func TestClose_Nil(t *testing.T) {
	var s Store
	if err := s.Close(); err != nil {
		t.Errorf("Close() on zero Store = %v", err)
	}
}
