package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"voicegate/internal/voice/models"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/sentinel"
)

const (
	// Redis key prefix for enrollment sessions
	sessionKeyPrefix = "voice_session:"

	// Execute retries on WATCH conflicts before giving up. Conflicts are
	// rare (two uploads racing on one session) and resolve immediately.
	executeMaxRetries = 3
)

// RedisStore is the production Store. Session expiry is enforced twice: the
// lazy Resumable check at read time, and a Redis TTL that garbage-collects
// the key itself.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

// ttlFor returns the remaining lifetime of the session key, padded so the
// key outlives its logical expiry slightly. Resumable() is the authority on
// expiry; the TTL only reclaims memory.
func ttlFor(sess *models.EnrollmentSession, now time.Time) time.Duration {
	ttl := sess.ExpiresAt.Sub(now) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

func (s *RedisStore) Create(ctx context.Context, sess *models.EnrollmentSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}

	ok, err := s.client.SetNX(ctx, sessionKey(sess.ID), payload, ttlFor(sess, time.Now())).Result()
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	if !ok {
		return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.EnrollmentSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session %s: %w", sessionID, err)
	}

	var sess models.EnrollmentSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// Execute runs validate and mutate inside a WATCH transaction so two
// concurrent mutations of the same session cannot both commit against the
// same loaded state. WATCH conflicts are retried a few times; persistent
// contention surfaces redis.TxFailedErr to the caller.
func (s *RedisStore) Execute(ctx context.Context, sessionID id.SessionID,
	validate func(*models.EnrollmentSession) error,
	mutate func(*models.EnrollmentSession)) (*models.EnrollmentSession, error) {

	key := sessionKey(sessionID)
	var result *models.EnrollmentSession

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("find session %s: %w", sessionID, err)
		}

		var sess models.EnrollmentSession
		if err := json.Unmarshal(raw, &sess); err != nil {
			return fmt.Errorf("unmarshal session %s: %w", sessionID, err)
		}

		if err := validate(&sess); err != nil {
			return err
		}
		mutate(&sess)

		payload, err := json.Marshal(&sess)
		if err != nil {
			return fmt.Errorf("marshal session %s: %w", sessionID, err)
		}

		ttl, err := tx.TTL(ctx, key).Result()
		if err != nil || ttl <= 0 {
			ttl = ttlFor(&sess, time.Now())
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		if err != nil {
			return err
		}

		result = &sess
		return nil
	}

	var err error
	for attempt := 0; attempt < executeMaxRetries; attempt++ {
		err = s.client.Watch(ctx, txn, key)
		if err != redis.TxFailedErr {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

var _ Store = (*RedisStore)(nil)
