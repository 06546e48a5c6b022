//go:build integration

package sample_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"voicegate/internal/blob"
	"voicegate/internal/voice/fingerprint"
	"voicegate/internal/voice/models"
	"voicegate/internal/voice/store/sample"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/sentinel"
	"voicegate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *sample.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.pg = mgr.GetPostgres(s.T())
	s.store = sample.NewPostgres(s.pg.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func newSample(sessionID id.SessionID, subjectID id.SubjectID, index int) *models.EnrollmentSample {
	return &models.EnrollmentSample{
		ID:          id.NewSampleID(),
		SessionID:   sessionID,
		SubjectID:   subjectID,
		SampleIndex: index,
		BlobRef:     blob.Ref("blob-" + id.NewSampleID().String()),
		Fingerprint: fingerprint.FromEncoded("QUJDQUJD"),
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	sessionID := id.NewSessionID()
	subjectID := id.NewSubjectID()

	want := []*models.EnrollmentSample{
		newSample(sessionID, subjectID, 2),
		newSample(sessionID, subjectID, 1),
		newSample(sessionID, subjectID, 3),
	}
	for _, smp := range want {
		s.Require().NoError(s.store.Append(ctx, smp))
	}

	got, err := s.store.ListBySession(ctx, sessionID)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Equal(1, got[0].SampleIndex)
	s.Equal(2, got[1].SampleIndex)
	s.Equal(3, got[2].SampleIndex)
	s.Equal(subjectID, got[0].SubjectID)
	s.Equal(want[1].Fingerprint, got[0].Fingerprint)
}

func (s *PostgresStoreSuite) TestAppendDuplicateIndex() {
	ctx := context.Background()
	sessionID := id.NewSessionID()
	subjectID := id.NewSubjectID()

	s.Require().NoError(s.store.Append(ctx, newSample(sessionID, subjectID, 1)))
	err := s.store.Append(ctx, newSample(sessionID, subjectID, 1))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestListEmptySession() {
	got, err := s.store.ListBySession(context.Background(), id.NewSessionID())
	s.Require().NoError(err)
	s.Empty(got)
}
