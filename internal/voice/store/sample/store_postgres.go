package sample

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"voicegate/internal/blob"
	"voicegate/internal/voice/models"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/sentinel"
)

// PostgresStore persists enrollment samples in PostgreSQL. The unique
// (session_id, sample_index) constraint backs the append-only slot
// semantics.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed sample store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const appendSampleSQL = `
INSERT INTO voice_samples (id, session_id, subject_id, sample_index, blob_ref, fingerprint_json, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (s *PostgresStore) Append(ctx context.Context, sample *models.EnrollmentSample) error {
	encoded, err := json.Marshal(sample.Fingerprint)
	if err != nil {
		return fmt.Errorf("encode fingerprint for sample %s: %w", sample.ID, err)
	}

	_, err = s.pool.Exec(ctx, appendSampleSQL,
		sample.ID.String(),
		sample.SessionID.String(),
		sample.SubjectID.String(),
		sample.SampleIndex,
		string(sample.BlobRef),
		encoded,
		sample.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sample %d for session %s: %w",
				sample.SampleIndex, sample.SessionID, sentinel.ErrConflict)
		}
		return fmt.Errorf("append sample %s: %w", sample.ID, err)
	}
	return nil
}

const listBySessionSQL = `
SELECT id, session_id, subject_id, sample_index, blob_ref, fingerprint_json, created_at
FROM voice_samples
WHERE session_id = $1
ORDER BY sample_index`

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID id.SessionID) ([]*models.EnrollmentSample, error) {
	rows, err := s.pool.Query(ctx, listBySessionSQL, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("list samples for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var samples []*models.EnrollmentSample
	for rows.Next() {
		var (
			sample                            models.EnrollmentSample
			rawID, rawSession, rawSubject, ref string
			fp                                []byte
		)
		if err := rows.Scan(&rawID, &rawSession, &rawSubject, &sample.SampleIndex, &ref, &fp, &sample.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if sample.ID, err = id.ParseSampleID(rawID); err != nil {
			return nil, fmt.Errorf("decode sample id %q: %w", rawID, err)
		}
		if sample.SessionID, err = id.ParseSessionID(rawSession); err != nil {
			return nil, fmt.Errorf("decode session id %q: %w", rawSession, err)
		}
		if sample.SubjectID, err = id.ParseSubjectID(rawSubject); err != nil {
			return nil, fmt.Errorf("decode subject id %q: %w", rawSubject, err)
		}
		sample.BlobRef = blob.Ref(ref)
		if err := json.Unmarshal(fp, &sample.Fingerprint); err != nil {
			return nil, fmt.Errorf("decode fingerprint for sample %s: %w", sample.ID, err)
		}
		samples = append(samples, &sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list samples for session %s: %w", sessionID, err)
	}
	return samples, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
