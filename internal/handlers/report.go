package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/services"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type ReportHandler struct {
	log     *logger.Logger
	reports services.ReportService
	facts   services.FactsService
}

func NewReportHandler(log *logger.Logger, reports services.ReportService, facts services.FactsService) *ReportHandler {
	return &ReportHandler{
		log:     log.With("handler", "ReportHandler"),
		reports: reports,
		facts:   facts,
	}
}

type reportInstrumentView struct {
	*types.ReportActivityInstrument
	Facts []string `json:"facts"`
}

func (h *ReportHandler) GetActivityReport(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("aid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_activity_id", err)
		return
	}
	learnerID, err := uuid.Parse(c.Param("lid"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return
	}
	report, rows, err := h.reports.GetReport(c.Request.Context(), activityID, learnerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	instruments := make([]reportInstrumentView, 0, len(rows))
	for _, row := range rows {
		facts, err := h.facts.FactsForInstrument(c.Request.Context(), activityID, learnerID, row.InstrumentID)
		if err != nil {
			h.log.Warn("Facts derivation failed", "error", err, "instrument_id", row.InstrumentID)
			facts = []string{services.FactNeutralMissingInformation}
		}
		instruments = append(instruments, reportInstrumentView{
			ReportActivityInstrument: row,
			Facts:                    facts,
		})
	}
	RespondOK(c, gin.H{
		"report":      report,
		"instruments": instruments,
	})
}
