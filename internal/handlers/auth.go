package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/services"
)

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		log:         log.With("handler", "AuthHandler"),
		authService: authService,
	}
}

type providerLoginRequest struct {
	Acronym string `json:"acronym" binding:"required"`
	Secret  string `json:"secret" binding:"required"`
}

func (h *AuthHandler) LoginProvider(c *gin.Context) {
	var req providerLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	token, provider, err := h.authService.LoginProvider(c.Request.Context(), req.Acronym, req.Secret)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"token":       token,
		"expires_in":  int(h.authService.GetAccessTTL().Seconds()),
		"provider_id": provider.ID,
		"queue":       provider.Queue,
	})
}

type vleLoginRequest struct {
	Name   string `json:"name" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

func (h *AuthHandler) LoginVLE(c *gin.Context) {
	var req vleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	token, err := h.authService.LoginVLE(c.Request.Context(), req.Name, req.Secret)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"token":      token,
		"expires_in": int(h.authService.GetAccessTTL().Seconds()),
	})
}
