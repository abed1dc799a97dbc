package postgres

import (
	"io/fs"
	"strings"
	"testing"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		dsn      string
		password string
		want     string
	}{
		{"no password", "host=db user=scened", "", "host=db user=scened"},
		{"key value", "host=db user=scened", "s3cret", "host=db user=scened password=s3cret"},
		{"key value quoted", "host=db", "a b", "host=db password='a b'"},
		{"key value keeps explicit", "host=db password=x", "y", "host=db password=x"},
		{"url", "postgres://scened@db:5432/scenes?sslmode=disable", "pw", "postgres://scened:pw@db:5432/scenes?sslmode=disable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.dsn, tt.password); got != tt.want {
				t.Errorf("DSN(%q, %q) = %q, want %q", tt.dsn, tt.password, got, tt.want)
			}
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected embedded migrations, got %v", files)
	}
	for _, f := range files {
		b, err := fs.ReadFile(migrations, f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if !strings.Contains(string(b), "-- +goose Up") || !strings.Contains(string(b), "-- +goose Down") {
			t.Errorf("%s is missing goose annotations", f)
		}
	}
}
