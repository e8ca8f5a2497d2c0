package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestRun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	v, err := Version(ctx, db)
	if err != nil {
		t.Fatalf("Version() failed: %v", err)
	}
	if v != 2 {
		t.Errorf("expected schema version 2, got %d", v)
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("first Run() failed: %v", err)
	}

	if err := Run(ctx, db); err != nil {
		t.Fatalf("second Run() failed: %v", err)
	}

	steps, err := Steps()
	if err != nil {
		t.Fatalf("Steps() failed: %v", err)
	}
	v, err := Version(ctx, db)
	if err != nil {
		t.Fatalf("Version() failed: %v", err)
	}
	if want := steps[len(steps)-1].Version; v != want {
		t.Errorf("expected schema version %d, got %d", want, v)
	}
}

func TestRun_CreatesTables(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	wantColumns := map[string][]string{
		"runs":       {"id", "source", "name", "status", "actions", "full_cycles", "error", "started_at", "finished_at", "duration_ms"},
		"cron_state": {"job_key", "last_fired_minute", "fire_count", "updated_at"},
	}

	for table, cols := range wantColumns {
		rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
		if err != nil {
			t.Fatalf("getting %s schema: %v", table, err)
		}

		have := make(map[string]bool)
		for rows.Next() {
			var cid int
			var name, colType string
			var notNull, pk int
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
				rows.Close()
				t.Fatalf("scanning column info: %v", err)
			}
			have[name] = true
		}
		rows.Close()

		for _, col := range cols {
			if !have[col] {
				t.Errorf("%s missing required column: %s", table, col)
			}
		}
	}
}

func TestStatements(t *testing.T) {
	body := "-- header\nCREATE TABLE a (\n  x TEXT\n);\n\nCREATE INDEX i ON a (x);\n"
	stmts := statements(body)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (\nx TEXT\n)" {
		t.Errorf("unexpected first statement %q", stmts[0])
	}
	if stmts[1] != "CREATE INDEX i ON a (x)" {
		t.Errorf("unexpected second statement %q", stmts[1])
	}
}

func TestSteps_Ordered(t *testing.T) {
	steps, err := Steps()
	if err != nil {
		t.Fatalf("Steps() failed: %v", err)
	}
	for i, s := range steps {
		if s.Version != i+1 {
			t.Errorf("step %d has version %d", i, s.Version)
		}
	}
}
