package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicegate/internal/blob"
	"voicegate/internal/voice/engine"
	"voicegate/internal/voice/enrollment"
	"voicegate/internal/voice/models"
	"voicegate/internal/voice/store/profile"
	"voicegate/internal/voice/store/sample"
	"voicegate/internal/voice/store/session"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/audit"
)

// newTestServer wires the full voice stack on in-memory stores with no
// external provider configured.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := audit.NewPublisher(64)
	profiles := profile.NewInMemory()

	manager := enrollment.NewManager(
		session.NewInMemory(), sample.NewInMemory(), profiles, blob.NewInMemoryStore(),
		enrollment.NewTokenService("test-signing-key"), enrollment.Config{},
		publisher, logger,
	)
	eng := engine.New(profiles, nil, nil, engine.Config{AllowFallback: true}, publisher, logger)

	r := chi.NewRouter()
	New(manager, eng, logger).Register(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

const testAudio = "ABABABABABABABABABABABABABABAB"

func enrollFully(t *testing.T, server *httptest.Server, subjectID string) {
	t.Helper()

	token := ""
	for i := 0; i < enrollment.DefaultSamplesRequired; i++ {
		resp, raw := postJSON(t, server.URL+"/voice/enroll", map[string]string{
			"subject_id":    subjectID,
			"session_token": token,
			"audio":         testAudio,
		})
		var body EnrollResponse
		require.NoError(t, json.Unmarshal(raw, &body))
		token = body.SessionToken

		if i < enrollment.DefaultSamplesRequired-1 {
			require.Equal(t, http.StatusAccepted, resp.StatusCode)
			require.False(t, body.IsComplete)
		} else {
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			require.True(t, body.IsComplete)
		}
		require.Equal(t, i+1, body.SamplesRecorded)
	}
}

func TestEnrollAndVerifyFlow(t *testing.T) {
	server := newTestServer(t)
	subjectID := id.NewSubjectID().String()

	enrollFully(t, server, subjectID)

	resp, raw := postJSON(t, server.URL+"/voice/verify", map[string]string{
		"subject_id": subjectID,
		"audio":      testAudio,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body VerifyResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.True(t, body.IsMatch)
	assert.Equal(t, string(models.TierHeuristic), body.Provider)
	assert.GreaterOrEqual(t, body.Score, body.Threshold)
}

func TestVerifyNotEnrolled(t *testing.T) {
	server := newTestServer(t)

	resp, raw := postJSON(t, server.URL+"/voice/verify", map[string]string{
		"subject_id": id.NewSubjectID().String(),
		"audio":      testAudio,
	})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.Contains(t, string(raw), "not_enrolled")
}

func TestEnrollValidation(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing subject", map[string]string{"audio": testAudio}},
		{"bad subject uuid", map[string]string{"subject_id": "not-a-uuid", "audio": testAudio}},
		{"missing audio", map[string]string{"subject_id": id.NewSubjectID().String()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, server.URL+"/voice/enroll", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestEnrollMalformedJSON(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/voice/enroll", "application/json",
		strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnrollmentStatusEndpoint(t *testing.T) {
	server := newTestServer(t)
	subjectID := id.NewSubjectID().String()

	get := func() StatusResponse {
		resp, err := http.Get(server.URL + "/voice/enrollment-status?subject_id=" + subjectID)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body StatusResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	before := get()
	assert.False(t, before.IsEnrolled)
	assert.Zero(t, before.ReferenceCount)

	enrollFully(t, server, subjectID)

	after := get()
	assert.True(t, after.IsEnrolled)
	assert.Equal(t, enrollment.DefaultSamplesRequired, after.ReferenceCount)
}

func TestEnrollmentStatusBadSubject(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/voice/enrollment-status?subject_id=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnrollAcceptsDataURIAudio(t *testing.T) {
	server := newTestServer(t)

	resp, raw := postJSON(t, server.URL+"/voice/enroll", map[string]string{
		"subject_id": id.NewSubjectID().String(),
		"audio":      "data:audio/webm;base64," + testAudio,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body EnrollResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 1, body.SamplesRecorded)
	assert.NotEmpty(t, body.SessionToken)
}
