package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "nested", "app.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	fsys := fstest.MapFS{
		"001_a.sql":  {Data: []byte(`CREATE TABLE a (id INTEGER PRIMARY KEY);`)},
		"002_b.sql":  {Data: []byte(`CREATE TABLE b (id INTEGER PRIMARY KEY); INSERT INTO a(id) VALUES (1);`)},
		"README.txt": {Data: []byte(`not a migration`)},
	}
	for i := 0; i < 2; i++ {
		if err := Migrate(conn, fsys); err != nil {
			t.Fatalf("Migrate pass %d: %v", i+1, err)
		}
	}

	var applied, rows int
	if err := conn.QueryRow(`SELECT COUNT(1) FROM _migrations`).Scan(&applied); err != nil {
		t.Fatal(err)
	}
	if err := conn.QueryRow(`SELECT COUNT(1) FROM a`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if applied != 2 || rows != 1 {
		t.Errorf("applied=%d rows=%d, want 2 and 1", applied, rows)
	}
}

func TestMigrateStopsOnBadScript(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	fsys := fstest.MapFS{"001_bad.sql": {Data: []byte(`CREATE TABLE (;`)}}
	if err := Migrate(conn, fsys); err == nil {
		t.Fatal("expected error for malformed migration")
	}
	var applied int
	_ = conn.QueryRow(`SELECT COUNT(1) FROM _migrations`).Scan(&applied)
	if applied != 0 {
		t.Errorf("failed migration was recorded")
	}
}
