package handler

import (
	"voicegate/internal/voice/enrollment"
	"voicegate/internal/voice/models"
)

// EnrollResponse reports enrollment progress after an accepted sample.
type EnrollResponse struct {
	SessionToken    string `json:"session_token"`
	SamplesRecorded int    `json:"samples_recorded"`
	SamplesRequired int    `json:"samples_required"`
	IsComplete      bool   `json:"is_complete"`
}

func toEnrollResponse(result *enrollment.SubmitResult) EnrollResponse {
	return EnrollResponse{
		SessionToken:    result.SessionToken,
		SamplesRecorded: result.SamplesRecorded,
		SamplesRequired: result.SamplesRequired,
		IsComplete:      result.IsComplete,
	}
}

// VerifyResponse is the wire form of a match decision.
type VerifyResponse struct {
	IsMatch    bool     `json:"is_match"`
	Score      float64  `json:"score"`
	Threshold  float64  `json:"threshold,omitempty"`
	Provider   string   `json:"provider"`
	Reasons    []string `json:"reasons,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
}

func toVerifyResponse(decision *models.MatchDecision) VerifyResponse {
	return VerifyResponse{
		IsMatch:    decision.IsMatch,
		Score:      decision.Score,
		Threshold:  decision.Threshold,
		Provider:   string(decision.Provider),
		Reasons:    decision.Reasons,
		Transcript: decision.Transcript,
	}
}

// StatusResponse reports the subject's enrollment state.
type StatusResponse struct {
	IsEnrolled      bool     `json:"is_enrolled"`
	SamplesRequired int      `json:"samples_required"`
	ReferenceCount  int      `json:"reference_count"`
	LastMatchScore  *float64 `json:"last_match_score,omitempty"`
}

func toStatusResponse(status *enrollment.EnrollmentStatus) StatusResponse {
	return StatusResponse{
		IsEnrolled:      status.IsEnrolled,
		SamplesRequired: status.SamplesRequired,
		ReferenceCount:  status.ReferenceCount,
		LastMatchScore:  status.LastMatchScore,
	}
}
