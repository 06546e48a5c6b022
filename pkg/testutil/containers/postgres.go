//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema mirrors migrations/0001_voice.sql. Applied once when the shared
// container starts.
const schema = `
CREATE TABLE IF NOT EXISTS voice_profiles (
	subject_id       UUID PRIMARY KEY,
	references_json  JSONB NOT NULL,
	model_ref        TEXT NOT NULL,
	is_enrolled      BOOLEAN NOT NULL DEFAULT FALSE,
	last_match_score DOUBLE PRECISION,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS voice_samples (
	id               UUID PRIMARY KEY,
	session_id       UUID NOT NULL,
	subject_id       UUID NOT NULL,
	sample_index     INTEGER NOT NULL,
	blob_ref         TEXT NOT NULL,
	fingerprint_json JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	UNIQUE (session_id, sample_index)
);

CREATE INDEX IF NOT EXISTS idx_voice_samples_session ON voice_samples (session_id);

CREATE TABLE IF NOT EXISTS voice_audit_events (
	id         BIGSERIAL PRIMARY KEY,
	category   TEXT NOT NULL,
	subject_id UUID NOT NULL,
	action     TEXT NOT NULL,
	tier       TEXT,
	score      DOUBLE PRECISION,
	reason     TEXT,
	request_id TEXT,
	client_ip  TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_voice_audit_subject ON voice_audit_events (subject_id, created_at);
`

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts a new Postgres container and applies the
// schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("voicegate_test"),
		tcpostgres.WithUsername("voicegate"),
		tcpostgres.WithPassword("voicegate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Note: no t.Cleanup here; the container is managed by the singleton
	// Manager and shared across test suites. Ryuk handles cleanup.
	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		Pool:      pool,
	}
}

// TruncateAll clears every table. Use between tests to ensure isolation.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `TRUNCATE voice_profiles, voice_samples, voice_audit_events`)
	return err
}
