// Package handler exposes the voice enrollment and verification HTTP API.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"voicegate/internal/voice/enrollment"
	"voicegate/internal/voice/models"
	id "voicegate/pkg/domain"
	"voicegate/pkg/platform/httputil"
	"voicegate/pkg/requestcontext"
)

// EnrollmentService is the enrollment surface the handler depends on.
type EnrollmentService interface {
	SubmitSample(ctx context.Context, subjectID id.SubjectID, sessionToken, audio string) (*enrollment.SubmitResult, error)
	Status(ctx context.Context, subjectID id.SubjectID) (*enrollment.EnrollmentStatus, error)
}

// VerificationService is the decision surface the handler depends on.
type VerificationService interface {
	Verify(ctx context.Context, subjectID id.SubjectID, audio string) (*models.MatchDecision, error)
}

// Handler handles the /voice endpoints.
type Handler struct {
	enrollment   EnrollmentService
	verification VerificationService
	logger       *slog.Logger
}

func New(enrollmentSvc EnrollmentService, verificationSvc VerificationService, logger *slog.Logger) *Handler {
	return &Handler{
		enrollment:   enrollmentSvc,
		verification: verificationSvc,
		logger:       logger,
	}
}

// Register mounts the voice routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/voice/enroll", h.handleEnroll)
	r.Post("/voice/verify", h.handleVerify)
	r.Get("/voice/enrollment-status", h.handleStatus)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EnrollRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.enrollment.SubmitSample(ctx, req.subjectID, req.SessionToken, req.Audio)
	if err != nil {
		h.logger.WarnContext(ctx, "sample submission failed",
			"request_id", requestID,
			"subject_id", req.subjectID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusAccepted
	if result.IsComplete {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, toEnrollResponse(result))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision, err := h.verification.Verify(ctx, req.subjectID, req.Audio)
	if err != nil {
		h.logger.WarnContext(ctx, "verification failed",
			"request_id", requestID,
			"subject_id", req.subjectID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toVerifyResponse(decision))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := id.ParseSubjectID(strings.TrimSpace(r.URL.Query().Get("subject_id")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status, err := h.enrollment.Status(ctx, subjectID)
	if err != nil {
		h.logger.WarnContext(ctx, "enrollment status lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(status))
}
