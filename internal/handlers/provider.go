package handlers

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/middleware"
	"github.com/tesla-ce/trust-backend/internal/services"
)

// ProviderHandler is the write surface for external provider workers:
// results, validations, enrolment model updates and deferred notifications.
type ProviderHandler struct {
	log           *logger.Logger
	verification  services.VerificationService
	validation    services.ValidationService
	enrolment     services.EnrolmentService
	notifications services.NotificationService
}

func NewProviderHandler(
	log *logger.Logger,
	verification services.VerificationService,
	validation services.ValidationService,
	enrolment services.EnrolmentService,
	notifications services.NotificationService,
) *ProviderHandler {
	return &ProviderHandler{
		log:           log.With("handler", "ProviderHandler"),
		verification:  verification,
		validation:    validation,
		enrolment:     enrolment,
		notifications: notifications,
	}
}

func (h *ProviderHandler) PutResult(c *gin.Context) {
	providerID := middleware.ProviderIDFrom(c)
	requestID, err := uuid.Parse(c.Param("rid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request_id", err)
		return
	}
	var payload services.ResultPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.verification.PutProviderResult(c.Request.Context(), requestID, providerID, payload); err != nil {
		h.log.Error("PutResult failed", "error", err, "request_id", requestID, "provider_id", providerID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "accepted"})
}

func (h *ProviderHandler) PutValidation(c *gin.Context) {
	providerID := middleware.ProviderIDFrom(c)
	sampleID, err := uuid.Parse(c.Param("vid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_sample_id", err)
		return
	}
	var payload services.ValidationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.validation.PutValidation(c.Request.Context(), sampleID, providerID, payload); err != nil {
		h.log.Error("PutValidation failed", "error", err, "sample_id", sampleID, "provider_id", providerID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "accepted"})
}

type deferNotificationRequest struct {
	Key  string                    `json:"key" binding:"required"`
	When time.Time                 `json:"when" binding:"required"`
	Info services.NotificationInfo `json:"info" binding:"required"`
}

func (h *ProviderHandler) CreateNotification(c *gin.Context) {
	providerID := middleware.ProviderIDFrom(c)
	var req deferNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	notification, err := h.notifications.Defer(c.Request.Context(), providerID, req.Key, req.When, req.Info)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, notification)
}

func (h *ProviderHandler) ListNotifications(c *gin.Context) {
	providerID := middleware.ProviderIDFrom(c)
	notifications, err := h.notifications.List(c.Request.Context(), providerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"notifications": notifications})
}

func (h *ProviderHandler) DeleteNotification(c *gin.Context) {
	providerID := middleware.ProviderIDFrom(c)
	if err := h.notifications.Delete(c.Request.Context(), providerID, c.Param("key")); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}

func (h *ProviderHandler) LockEnrolment(c *gin.Context) {
	providerID := middleware.ProviderIDFrom(c)
	learnerID, err := uuid.Parse(c.Param("lid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return
	}
	lock, err := h.enrolment.LockModel(c.Request.Context(), learnerID, providerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"token":      lock.Token,
		"percentage": lock.Enrolment.Percentage,
		"model":      lock.Enrolment.Model,
		"pending":    lock.Pending,
	})
}

type commitEnrolmentRequest struct {
	Token uuid.UUID `json:"token" binding:"required"`
	// Model is the base64 encoded model blob. Optional when the provider
	// rewrites the model in place through its own storage.
	Model string `json:"model"`
}

func (h *ProviderHandler) CommitEnrolment(c *gin.Context) {
	providerID := middleware.ProviderIDFrom(c)
	learnerID, err := uuid.Parse(c.Param("lid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return
	}
	var req commitEnrolmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	var modelData []byte
	if req.Model != "" {
		modelData, err = base64.StdEncoding.DecodeString(req.Model)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_model_encoding", err)
			return
		}
	}
	if err := h.enrolment.CommitModel(c.Request.Context(), learnerID, providerID, req.Token, modelData); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "committed"})
}

type unlockEnrolmentRequest struct {
	Token uuid.UUID `json:"token" binding:"required"`
}

func (h *ProviderHandler) UnlockEnrolment(c *gin.Context) {
	providerID := middleware.ProviderIDFrom(c)
	learnerID, err := uuid.Parse(c.Param("lid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return
	}
	var req unlockEnrolmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.enrolment.ReleaseModel(c.Request.Context(), learnerID, providerID, req.Token); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "released"})
}

func (h *ProviderHandler) AvailableSamples(c *gin.Context) {
	providerID := middleware.ProviderIDFrom(c)
	learnerID, err := uuid.Parse(c.Param("lid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return
	}
	samples, err := h.enrolment.AvailableSamples(c.Request.Context(), learnerID, providerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"samples": samples})
}

func (h *ProviderHandler) UsedSamples(c *gin.Context) {
	providerID := middleware.ProviderIDFrom(c)
	learnerID, err := uuid.Parse(c.Param("lid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return
	}
	samples, err := h.enrolment.UsedSamples(c.Request.Context(), learnerID, providerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"samples": samples})
}
