// Package store persists generated marketing plans in Postgres, keyed by
// website domain and language.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/brevera/stackmatch/internal/planner"
)

// ErrPlanNotFound is returned by LookupPlan when no plan exists for the
// domain/language pair.
var ErrPlanNotFound = errors.New("plan not found")

const schema = `
CREATE TABLE IF NOT EXISTS marketing_plans (
	id         UUID PRIMARY KEY,
	domain     TEXT NOT NULL,
	language   TEXT NOT NULL,
	plan       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (domain, language)
)`

// DB wraps the plans table. It satisfies planner.PlanStore.
type DB struct {
	sql *sql.DB
}

// Open connects and verifies the connection.
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

// EnsureSchema creates the plans table when missing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.sql.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure plans schema: %w", err)
	}
	return nil
}

// UpsertPlan stores the plan for the domain/language pair, replacing any
// previous version.
func (d *DB) UpsertPlan(ctx context.Context, domain, language string, plan *planner.Plan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}

	now := time.Now().UTC()
	_, err = d.sql.ExecContext(ctx, `
INSERT INTO marketing_plans (id, domain, language, plan, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (domain, language) DO UPDATE
SET plan = EXCLUDED.plan, updated_at = EXCLUDED.updated_at
`, uuid.NewString(), domain, language, payload, now)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

// LookupPlan returns the stored plan or ErrPlanNotFound.
func (d *DB) LookupPlan(ctx context.Context, domain, language string) (*planner.Plan, error) {
	row := d.sql.QueryRowContext(ctx, `
SELECT plan
FROM marketing_plans
WHERE domain = $1 AND language = $2
`, domain, language)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrPlanNotFound, domain, language)
		}
		return nil, fmt.Errorf("lookup plan: %w", err)
	}

	var plan planner.Plan
	if err := json.Unmarshal(payload, &plan); err != nil {
		return nil, fmt.Errorf("decoding stored plan: %w", err)
	}
	return &plan, nil
}
