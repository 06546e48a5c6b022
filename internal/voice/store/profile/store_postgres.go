package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"voicegate/internal/voice/fingerprint"
	"voicegate/internal/voice/models"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/sentinel"
)

// PostgresStore persists voice profiles in PostgreSQL. References are stored
// as JSONB; the subject_id primary key enforces the one-profile-per-subject
// invariant at the database level.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed profile store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const findProfileSQL = `
SELECT subject_id, references_json, model_ref, is_enrolled, last_match_score, created_at, updated_at
FROM voice_profiles
WHERE subject_id = $1`

func (s *PostgresStore) FindBySubject(ctx context.Context, subjectID id.SubjectID) (*models.VoiceProfile, error) {
	var (
		profile    models.VoiceProfile
		rawSubject string
		refs       []byte
	)
	err := s.pool.QueryRow(ctx, findProfileSQL, subjectID.String()).Scan(
		&rawSubject,
		&refs,
		&profile.ModelRef,
		&profile.IsEnrolled,
		&profile.LastMatchScore,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile for subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find profile for subject %s: %w", subjectID, err)
	}

	profile.SubjectID, err = id.ParseSubjectID(rawSubject)
	if err != nil {
		return nil, fmt.Errorf("decode subject id %q: %w", rawSubject, err)
	}
	if err := json.Unmarshal(refs, &profile.References); err != nil {
		return nil, fmt.Errorf("decode references for subject %s: %w", subjectID, err)
	}
	return &profile, nil
}

const upsertProfileSQL = `
INSERT INTO voice_profiles (subject_id, references_json, model_ref, is_enrolled, last_match_score, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (subject_id) DO UPDATE SET
	references_json  = EXCLUDED.references_json,
	model_ref        = EXCLUDED.model_ref,
	is_enrolled      = EXCLUDED.is_enrolled,
	last_match_score = EXCLUDED.last_match_score,
	updated_at       = EXCLUDED.updated_at`

func (s *PostgresStore) Upsert(ctx context.Context, profile *models.VoiceProfile) error {
	refs := profile.References
	if refs == nil {
		refs = []fingerprint.Fingerprint{}
	}
	encoded, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("encode references for subject %s: %w", profile.SubjectID, err)
	}

	_, err = s.pool.Exec(ctx, upsertProfileSQL,
		profile.SubjectID.String(),
		encoded,
		profile.ModelRef,
		profile.IsEnrolled,
		profile.LastMatchScore,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile for subject %s: %w", profile.SubjectID, err)
	}
	return nil
}

const setLastMatchScoreSQL = `
UPDATE voice_profiles
SET last_match_score = $2, updated_at = now()
WHERE subject_id = $1`

func (s *PostgresStore) SetLastMatchScore(ctx context.Context, subjectID id.SubjectID, score float64) error {
	tag, err := s.pool.Exec(ctx, setLastMatchScoreSQL, subjectID.String(), score)
	if err != nil {
		return fmt.Errorf("set last match score for subject %s: %w", subjectID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile for subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
