// Package postgres persists audit events in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/audit"
)

// Store is the durable audit trail. Events are append-only; there is no
// update or delete path.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const appendEventSQL = `
INSERT INTO voice_audit_events (category, subject_id, action, tier, score, reason, request_id, client_ip, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.pool.Exec(ctx, appendEventSQL,
		string(event.Category),
		event.SubjectID.String(),
		string(event.Action),
		event.Tier,
		event.Score,
		event.Reason,
		event.RequestID,
		event.ClientIP,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

const listBySubjectSQL = `
SELECT category, subject_id, action, tier, score, reason, request_id, client_ip, created_at
FROM voice_audit_events
WHERE subject_id = $1
ORDER BY created_at`

func (s *Store) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, listBySubjectSQL, subjectID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event      audit.Event
			rawSubject string
		)
		if err := rows.Scan(
			&event.Category,
			&rawSubject,
			&event.Action,
			&event.Tier,
			&event.Score,
			&event.Reason,
			&event.RequestID,
			&event.ClientIP,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if event.SubjectID, err = id.ParseSubjectID(rawSubject); err != nil {
			return nil, fmt.Errorf("decode subject id %q: %w", rawSubject, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

var _ audit.Store = (*Store)(nil)
