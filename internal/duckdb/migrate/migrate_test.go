package migrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	_ "github.com/duckdb/duckdb-go/v2"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunAppliesAllMigrations(t *testing.T) {
	db := openTestDB(t)

	if err := NewRunner(db).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, table := range []string{"transitions", "key_presses", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT table_name FROM information_schema.tables WHERE table_name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(openTestDB(t))

	if err := r.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	st, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Current != 2 || st.Latest != 2 || len(st.Pending) != 0 {
		t.Errorf("Status = %+v, want current=2 latest=2 nothing pending", st)
	}
}

func TestStatusBeforeRun(t *testing.T) {
	st, err := NewRunner(openTestDB(t)).Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Current != 0 || len(st.Pending) != 2 || st.Pending[0] != "001_transitions.sql" {
		t.Errorf("Status = %+v, want version 0 with both migrations pending", st)
	}
}

func TestRunDetectsEditedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := NewRunner(db).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_migrations SET checksum = 'stale' WHERE version = 1"); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	err := NewRunner(db).Run(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Run = %v, want %v", err, ErrChecksumMismatch)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		want    []int
		wantErr bool
	}{
		{
			name: "sorted by version",
			files: fstest.MapFS{
				"migrations/010_b.sql": {Data: []byte("SELECT 1;")},
				"migrations/002_a.sql": {Data: []byte("SELECT 1;")},
				"migrations/README.md": {Data: []byte("ignored")},
				"migrations/003_c.sql": {Data: []byte("SELECT 1;")},
			},
			want: []int{2, 3, 10},
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
				"migrations/01_b.sql":  {Data: []byte("SELECT 1;")},
			},
			wantErr: true,
		},
		{
			name:    "bad name",
			files:   fstest.MapFS{"migrations/init.sql": {Data: []byte("SELECT 1;")}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			migs, err := Load(tt.files)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			var got []int
			for _, m := range migs {
				got = append(got, m.Version)
				if len(m.Checksum) != 64 {
					t.Errorf("%s checksum = %q", m.Name, m.Checksum)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("versions = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("versions = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestStatements(t *testing.T) {
	got := statements("-- key presses\nCREATE TABLE a (x INT);\n\n  CREATE INDEX i ON a (x);\n")
	if len(got) != 2 {
		t.Fatalf("statements returned %d statements: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (x INT)" || got[1] != "CREATE INDEX i ON a (x)" {
		t.Errorf("statements = %q", got)
	}
}
