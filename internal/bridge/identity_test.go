package bridge

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupIdentityDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE identity (
			id               INTEGER PRIMARY KEY CHECK (id = 1),
			hook_id          TEXT NOT NULL,
			app_id           TEXT NOT NULL,
			tunnel_subdomain TEXT NOT NULL,
			created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestLoadGeneratesIdentityOnFirstRun(t *testing.T) {
	store := NewIdentityStore(setupIdentityDB(t))

	ident, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ident.HookID == "" || ident.AppID == "" {
		t.Errorf("identity has empty ids: %+v", ident)
	}
	if ident.HookID == ident.AppID {
		t.Error("hook id and app id must be independent")
	}
	if ident.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	subdomainPattern := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{8}-stce$`)
	if !subdomainPattern.MatchString(ident.TunnelSubdomain) {
		t.Errorf("subdomain %q does not match {8hex}-{8hex}-stce", ident.TunnelSubdomain)
	}
}

func TestLoadIsStableAcrossRestarts(t *testing.T) {
	db := setupIdentityDB(t)

	first, err := NewIdentityStore(db).Load(context.Background())
	if err != nil {
		t.Fatalf("first Load() error = %v", err)
	}

	// A new store over the same database simulates a restart.
	second, err := NewIdentityStore(db).Load(context.Background())
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	if second.HookID != first.HookID ||
		second.AppID != first.AppID ||
		second.TunnelSubdomain != first.TunnelSubdomain {
		t.Errorf("identity changed across restarts:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestNewSubdomainsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sub := newSubdomain()
		if seen[sub] {
			t.Fatalf("duplicate subdomain %q", sub)
		}
		seen[sub] = true
	}
}
