package handler

import (
	"strings"

	id "voicegate/pkg/domain"
	dErrors "voicegate/pkg/domain-errors"
)

// EnrollRequest is one sample submission. SessionToken is optional: absent
// or unusable tokens start a fresh session.
type EnrollRequest struct {
	SubjectID    string `json:"subject_id"`
	SessionToken string `json:"session_token,omitempty"`
	Audio        string `json:"audio"`

	subjectID id.SubjectID
}

func (r *EnrollRequest) Validate() error {
	subjectID, err := id.ParseSubjectID(strings.TrimSpace(r.SubjectID))
	if err != nil {
		return err
	}
	r.subjectID = subjectID

	if strings.TrimSpace(r.Audio) == "" {
		return dErrors.New(dErrors.CodeValidation, "audio is required")
	}
	return nil
}

// VerifyRequest is one verification attempt.
type VerifyRequest struct {
	SubjectID string `json:"subject_id"`
	Audio     string `json:"audio"`

	subjectID id.SubjectID
}

func (r *VerifyRequest) Validate() error {
	subjectID, err := id.ParseSubjectID(strings.TrimSpace(r.SubjectID))
	if err != nil {
		return err
	}
	r.subjectID = subjectID

	if strings.TrimSpace(r.Audio) == "" {
		return dErrors.New(dErrors.CodeValidation, "audio is required")
	}
	return nil
}
