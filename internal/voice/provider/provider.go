// Package provider calls the external voice verification service. The
// service is trusted: when it answers, its verdict is returned verbatim and
// no local re-scoring happens. Any failure is surfaced as a categorized
// *Error so the caller can fall back to a degraded tier.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	id "voicegate/pkg/domain"
)

// DefaultTimeout bounds a single verification call.
const DefaultTimeout = 15 * time.Second

// VerifyRequest is one verification attempt against the external service.
type VerifyRequest struct {
	SubjectID id.SubjectID
	// ModelRef is the subject's enrolled speaker model reference, empty if
	// the subject has no profile.
	ModelRef string
	// Audio is the cleaned base64 payload.
	Audio string
}

// VerifyResult is the service's verdict.
type VerifyResult struct {
	IsMatch    bool
	Score      float64
	Transcript string
}

// Verifier is implemented by anything that can produce an authoritative
// match verdict.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

// HTTPBridge talks to the verification service over HTTP.
type HTTPBridge struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// Option configures an HTTPBridge.
type Option func(*HTTPBridge)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *HTTPBridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client; used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *HTTPBridge) { b.client = c }
}

// NewHTTPBridge creates a bridge for the service at baseURL. A trailing
// slash on baseURL is tolerated.
func NewHTTPBridge(baseURL, apiKey string, logger *slog.Logger, opts ...Option) *HTTPBridge {
	b := &HTTPBridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: DefaultTimeout,
		client:  &http.Client{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type verifyPayload struct {
	Audio            string `json:"audio"`
	ReferenceModelID string `json:"referenceModelId,omitempty"`
	SubjectID        string `json:"subjectId"`
}

// Verify posts the audio to the service and parses its verdict. The call is
// bounded by the bridge timeout regardless of the parent context.
func (b *HTTPBridge) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	body, err := json.Marshal(verifyPayload{
		Audio:            req.Audio,
		ReferenceModelID: req.ModelRef,
		SubjectID:        req.SubjectID.String(),
	})
	if err != nil {
		return nil, newError(ErrorMalformedResponse, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/voice/login", bytes.NewReader(body))
	if err != nil {
		return nil, newError(ErrorNetwork, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

	start := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newError(ErrorTimeout, fmt.Sprintf("no response within %s", b.timeout), err)
		}
		return nil, newError(ErrorNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, newError(ErrorNetwork, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Category:   ErrorHTTP,
			Message:    "service responded with " + strconv.Itoa(resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	result, err := parseVerdict(raw)
	if err != nil {
		return nil, err
	}

	b.logger.DebugContext(ctx, "voice provider verdict",
		slog.String("subject_id", req.SubjectID.String()),
		slog.Bool("is_match", result.IsMatch),
		slog.Float64("score", result.Score),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// parseVerdict tolerates the field spellings observed across service
// versions: an optional {"data": {...}} envelope, isMatch/match/voiceMatch,
// matchScore/score, transcript/transcribedAnswer.
func parseVerdict(raw []byte) (*VerifyResult, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, newError(ErrorMalformedResponse, "service returned invalid JSON", err)
	}

	fields := envelope
	if data, ok := envelope["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, newError(ErrorMalformedResponse, "service returned invalid data envelope", err)
		}
		fields = inner
	}

	result := &VerifyResult{}
	result.IsMatch = pickBool(fields, "isMatch", "match", "voiceMatch")
	result.Score = pickNumber(fields, "matchScore", "score")
	result.Transcript = pickString(fields, "transcript", "transcribedAnswer")
	return result, nil
}

func pickBool(fields map[string]json.RawMessage, keys ...string) bool {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var v bool
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return false
}

func pickNumber(fields map[string]json.RawMessage, keys ...string) float64 {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
		// Some service versions stringify scores.
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if parsed, err := strconv.ParseFloat(s, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func pickString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return ""
}
