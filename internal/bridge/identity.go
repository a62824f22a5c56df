package bridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is the stable per-installation identity. Generated once on
// first run and persisted: the hook id is part of the webhook path the
// cloud posts to, the app id scopes the subscription set, and the
// subdomain pins the tunnel hostname so all three survive restarts.
type Identity struct {
	HookID          string    `json:"hook_id"`
	AppID           string    `json:"app_id"`
	TunnelSubdomain string    `json:"tunnel_subdomain"`
	CreatedAt       time.Time `json:"created_at"`
}

// IdentityStore persists the installation identity in SQLite.
type IdentityStore struct {
	db *sql.DB
}

// NewIdentityStore creates an IdentityStore over an open connection.
func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// Load returns the stored identity, generating and persisting one on
// first run.
func (s *IdentityStore) Load(ctx context.Context) (Identity, error) {
	var ident Identity
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT hook_id, app_id, tunnel_subdomain, created_at FROM identity WHERE id = 1`,
	).Scan(&ident.HookID, &ident.AppID, &ident.TunnelSubdomain, &createdAt)

	switch {
	case err == nil:
		if ts, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			ident.CreatedAt = ts
		}
		return ident, nil
	case errors.Is(err, sql.ErrNoRows):
		return s.create(ctx)
	default:
		return Identity{}, fmt.Errorf("loading identity: %w", err)
	}
}

// create generates a fresh identity and inserts it as the single row.
func (s *IdentityStore) create(ctx context.Context) (Identity, error) {
	ident := Identity{
		HookID:          uuid.NewString(),
		AppID:           uuid.NewString(),
		TunnelSubdomain: newSubdomain(),
		CreatedAt:       time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identity (id, hook_id, app_id, tunnel_subdomain, created_at)
		 VALUES (1, ?, ?, ?, ?)`,
		ident.HookID, ident.AppID, ident.TunnelSubdomain,
		ident.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("persisting identity: %w", err)
	}
	return ident, nil
}

// newSubdomain builds a tunnel subdomain of the form
// {8 hex}-{8 hex}-stce: random enough to never collide on a shared
// tunnel provider, fixed suffix so operators can spot bridge hostnames.
func newSubdomain() string {
	a := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	b := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return a + "-" + b + "-stce"
}
