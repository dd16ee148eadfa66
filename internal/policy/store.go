package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dhawalhost/mcpguard/internal/authz"
	"github.com/jmoiron/sqlx"
)

// Store persists policy documents so administrative mutations survive
// restarts. The engine never reads from here directly; the service layer
// loads stored policies at startup and writes through on mutation.
type Store interface {
	SavePolicy(ctx context.Context, p authz.Policy) error
	DeletePolicy(ctx context.Context, name string) error
	GetPolicy(ctx context.Context, name string) (authz.Policy, error)
	ListPolicies(ctx context.Context) ([]authz.Policy, error)
}

// ErrNotFound is returned when the named policy is not persisted.
var ErrNotFound = errors.New("policy not persisted")

type store struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed store. Documents are stored as
// JSONB keyed by policy name.
func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

// Migrate creates the backing table.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS guard_policies (
			name       TEXT PRIMARY KEY,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *store) SavePolicy(ctx context.Context, p authz.Policy) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal policy %q: %w", p.Name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO guard_policies (name, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET document = $2, updated_at = now()`,
		p.Name, doc)
	return err
}

func (s *store) DeletePolicy(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM guard_policies WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

func (s *store) GetPolicy(ctx context.Context, name string) (authz.Policy, error) {
	var doc []byte
	err := s.db.QueryRowxContext(ctx,
		`SELECT document FROM guard_policies WHERE name = $1`, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Policy{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return authz.Policy{}, err
	}
	var p authz.Policy
	if err := json.Unmarshal(doc, &p); err != nil {
		return authz.Policy{}, fmt.Errorf("unmarshal policy %q: %w", name, err)
	}
	return p, nil
}

func (s *store) ListPolicies(ctx context.Context) ([]authz.Policy, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT document FROM guard_policies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []authz.Policy
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var p authz.Policy
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("unmarshal stored policy: %w", err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}
