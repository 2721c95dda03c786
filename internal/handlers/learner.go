package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/services"
)

// LearnerHandler is the VLE-facing surface for one learner: captures,
// enrolment samples, consent and the enrolment gates.
type LearnerHandler struct {
	log          *logger.Logger
	learners     repos.LearnerRepo
	verification services.VerificationService
	validation   services.ValidationService
	enrolment    services.EnrolmentService
	consent      services.ConsentService
	send         services.SENDService
}

func NewLearnerHandler(
	log *logger.Logger,
	learners repos.LearnerRepo,
	verification services.VerificationService,
	validation services.ValidationService,
	enrolment services.EnrolmentService,
	consent services.ConsentService,
	send services.SENDService,
) *LearnerHandler {
	return &LearnerHandler{
		log:          log.With("handler", "LearnerHandler"),
		learners:     learners,
		verification: verification,
		validation:   validation,
		enrolment:    enrolment,
		consent:      consent,
		send:         send,
	}
}

func (h *LearnerHandler) learnerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("lid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return uuid.Nil, false
	}
	return id, true
}

type verificationRequest struct {
	ActivityID  uuid.UUID   `json:"activity_id" binding:"required"`
	SessionID   *uuid.UUID  `json:"session_id"`
	Instruments []uuid.UUID `json:"instruments" binding:"required"`
	Data        string      `json:"data" binding:"required"`
}

func (h *LearnerHandler) SubmitVerification(c *gin.Context) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return
	}
	var req verificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_data_encoding", err)
		return
	}
	request, err := h.verification.CreateRequest(c.Request.Context(), learnerID, req.ActivityID, req.SessionID, req.Instruments, data)
	if err != nil {
		h.log.Error("SubmitVerification failed", "error", err, "learner_id", learnerID, "activity_id", req.ActivityID)
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request_id": request.ID, "status": request.Status})
}

type enrolmentSampleRequest struct {
	Instruments []uuid.UUID `json:"instruments" binding:"required"`
	Data        string      `json:"data" binding:"required"`
}

func (h *LearnerHandler) SubmitEnrolmentSample(c *gin.Context) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return
	}
	var req enrolmentSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_data_encoding", err)
		return
	}
	sample, err := h.validation.StoreSample(c.Request.Context(), learnerID, req.Instruments, data)
	if err != nil {
		h.log.Error("SubmitEnrolmentSample failed", "error", err, "learner_id", learnerID)
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sample_id": sample.ID, "status": sample.Status})
}

func (h *LearnerHandler) EnrolmentStatus(c *gin.Context) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return
	}
	status, err := h.enrolment.Status(c.Request.Context(), learnerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"instruments": status})
}

func (h *LearnerHandler) MissingEnrolment(c *gin.Context) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return
	}
	activityID, err := uuid.Parse(c.Param("aid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_activity_id", err)
		return
	}
	result, err := h.enrolment.MissingEnrolment(c.Request.Context(), learnerID, activityID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *LearnerHandler) OpenSession(c *gin.Context) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return
	}
	activityID, err := uuid.Parse(c.Param("aid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_activity_id", err)
		return
	}
	session, err := h.verification.OpenSession(c.Request.Context(), activityID, learnerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *LearnerHandler) CloseSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	if err := h.verification.CloseSession(c.Request.Context(), sessionID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "closed"})
}

type acceptConsentRequest struct {
	ConsentID uuid.UUID `json:"consent_id" binding:"required"`
}

func (h *LearnerHandler) AcceptConsent(c *gin.Context) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return
	}
	var req acceptConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.consent.Accept(c.Request.Context(), learnerID, req.ConsentID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "accepted"})
}

func (h *LearnerHandler) RejectConsent(c *gin.Context) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return
	}
	if err := h.consent.Reject(c.Request.Context(), learnerID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "rejected"})
}

func (h *LearnerHandler) ConsentStatus(c *gin.Context) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return
	}
	learner, err := h.learners.GetByID(c.Request.Context(), nil, learnerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if learner == nil {
		RespondServiceError(c, fmt.Errorf("%w: learner %s", pkgerrors.ErrNotFound, learnerID))
		return
	}
	status, err := h.consent.Status(c.Request.Context(), learner)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": status})
}

func (h *LearnerHandler) SENDStatus(c *gin.Context) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return
	}
	status, err := h.send.Status(c.Request.Context(), learnerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, status)
}
