//go:build integration

package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"voicegate/internal/voice/models"
	"voicegate/internal/voice/store/session"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/sentinel"
	"voicegate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = session.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func newSession() *models.EnrollmentSession {
	now := time.Now()
	return &models.EnrollmentSession{
		ID:              id.NewSessionID(),
		SubjectID:       id.NewSubjectID(),
		SamplesRequired: 3,
		Status:          models.SessionStatusActive,
		CreatedAt:       now,
		ExpiresAt:       now.Add(30 * time.Minute),
	}
}

func (s *RedisStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	sess := newSession()

	s.Require().NoError(s.store.Create(ctx, sess))

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.ID, found.ID)
	s.Equal(sess.SubjectID, found.SubjectID)
	s.Equal(sess.ExpiresAt.UnixNano(), found.ExpiresAt.UnixNano())
}

func (s *RedisStoreSuite) TestCreateDuplicate() {
	ctx := context.Background()
	sess := newSession()

	s.Require().NoError(s.store.Create(ctx, sess))
	s.ErrorIs(s.store.Create(ctx, sess), sentinel.ErrConflict)
}

func (s *RedisStoreSuite) TestFindUnknown() {
	_, err := s.store.FindByID(context.Background(), id.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSessionKeyCarriesTTL() {
	ctx := context.Background()
	sess := newSession()
	s.Require().NoError(s.store.Create(ctx, sess))

	ttl, err := s.redis.Client.TTL(ctx, "voice_session:"+sess.ID.String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 29*time.Minute)
	s.LessOrEqual(ttl, 31*time.Minute+time.Second)
}

func (s *RedisStoreSuite) TestExecuteIncrement() {
	ctx := context.Background()
	sess := newSession()
	s.Require().NoError(s.store.Create(ctx, sess))

	updated, err := s.store.Execute(ctx, sess.ID,
		func(sess *models.EnrollmentSession) error { return nil },
		func(sess *models.EnrollmentSession) { sess.SamplesRecorded++ },
	)
	s.Require().NoError(err)
	s.Equal(1, updated.SamplesRecorded)
}

func (s *RedisStoreSuite) TestExecutePreservesTTL() {
	ctx := context.Background()
	sess := newSession()
	s.Require().NoError(s.store.Create(ctx, sess))

	key := "voice_session:" + sess.ID.String()
	initialTTL, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)

	time.Sleep(100 * time.Millisecond)

	_, err = s.store.Execute(ctx, sess.ID,
		func(sess *models.EnrollmentSession) error { return nil },
		func(sess *models.EnrollmentSession) { sess.SamplesRecorded++ },
	)
	s.Require().NoError(err)

	newTTL, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.InDelta(initialTTL.Seconds(), newTTL.Seconds(), 5.0)
}

func (s *RedisStoreSuite) TestExecuteValidationRollback() {
	ctx := context.Background()
	sess := newSession()
	s.Require().NoError(s.store.Create(ctx, sess))

	validationErr := errors.New("validation failed")
	_, err := s.store.Execute(ctx, sess.ID,
		func(sess *models.EnrollmentSession) error { return validationErr },
		func(sess *models.EnrollmentSession) { sess.SamplesRecorded = 99 },
	)
	s.ErrorIs(err, validationErr)

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Zero(found.SamplesRecorded)
}

// Concurrent increments against one session must not overshoot the sample
// cap: the WATCH transaction re-reads committed state on each attempt.
func (s *RedisStoreSuite) TestExecuteConcurrentIncrement() {
	ctx := context.Background()
	sess := newSession()
	s.Require().NoError(s.store.Create(ctx, sess))

	capacityErr := errors.New("session full")

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, sess.ID,
				func(sess *models.EnrollmentSession) error {
					if sess.SamplesRecorded >= sess.SamplesRequired {
						return capacityErr
					}
					return nil
				},
				func(sess *models.EnrollmentSession) { sess.SamplesRecorded++ },
			)
			if err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.LessOrEqual(found.SamplesRecorded, sess.SamplesRequired, "increments must stop at the cap")
	s.Equal(int32(found.SamplesRecorded), successCount.Load(), "every committed increment maps to one success")
}
