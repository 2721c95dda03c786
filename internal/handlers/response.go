package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
)

type APIError struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Detail  interface{} `json:"detail,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps domain errors onto HTTP statuses. Gate failures
// carry their structured detail so clients can show the learner what is
// missing.
func RespondServiceError(c *gin.Context, err error) {
	var missingIC *pkgerrors.MissingICError
	var missingEnrolment *pkgerrors.MissingEnrolmentError
	var instrumentCount *pkgerrors.InstrumentCountError
	switch {
	case errors.As(err, &missingIC):
		c.JSON(http.StatusPreconditionFailed, ErrorEnvelope{Error: APIError{
			Message: missingIC.Error(),
			Code:    "missing_ic",
			Detail:  gin.H{"status": missingIC.Status},
		}})
	case errors.As(err, &missingEnrolment):
		c.JSON(http.StatusPreconditionFailed, ErrorEnvelope{Error: APIError{
			Message: missingEnrolment.Error(),
			Code:    "missing_enrolment",
			Detail:  missingEnrolment.Detail,
		}})
	case errors.As(err, &instrumentCount):
		RespondError(c, http.StatusUnprocessableEntity, "invalid_instruments", err)
	case errors.Is(err, pkgerrors.ErrLockConflict):
		RespondError(c, http.StatusLocked, "lock_conflict", err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
