package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"postgres://app:pw@localhost:5432/clinic?sslmode=disable", "pgx5://app:pw@localhost:5432/clinic?sslmode=disable", false},
		{"postgresql://localhost/clinic", "pgx5://localhost/clinic", false},
		{"mysql://localhost/clinic", "", true},
	}
	for _, tt := range tests {
		got, err := migrateURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestMigrationFilesArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	if len(ups) == 0 {
		t.Fatal("expected at least one migration")
	}
	for v := range ups {
		if !downs[v] {
			t.Errorf("migration %s has no down file", v)
		}
	}
}
