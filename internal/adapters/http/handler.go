package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modvault/monetization-agent/internal/application"
	"github.com/modvault/monetization-agent/internal/contracts"
	"github.com/modvault/monetization-agent/internal/domain"
)

type Handler struct{ service *application.Service }

func NewHandler(service *application.Service) *Handler { return &Handler{service: service} }

// triggerRun is the scheduler path: a GET with no body always runs the
// full pipeline.
func (h *Handler) triggerRun(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, r, domain.RunFull)
}

func (h *Handler) runNamedJob(w http.ResponseWriter, r *http.Request) {
	var req contracts.RunJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body")
		return
	}
	runType, err := domain.ParseRunType(req.JobType)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	h.runJob(w, r, runType)
}

// runJob reports runner failures as a 500 carrying the full run
// result, so the scheduler sees the failure while operators still get
// the numbers.
func (h *Handler) runJob(w http.ResponseWriter, r *http.Request, runType domain.RunType) {
	result, err := h.service.RunJob(r.Context(), runType)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	body := contracts.RunJobResponse{
		Success:            result.Success,
		Job:                string(runType),
		Duration:           result.Duration.String(),
		DurationSeconds:    result.Duration.Seconds(),
		ItemsProcessed:     result.ItemsProcessed,
		OpportunitiesFound: result.OpportunitiesFound,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		Error:              result.Error,
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeSuccess(w, status, body)
}

func (h *Handler) enqueueAction(w http.ResponseWriter, r *http.Request) {
	var req contracts.EnqueueActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body")
		return
	}
	row, err := h.service.EnqueueAction(r.Context(), actorFromContext(r.Context()), application.EnqueueActionInput{
		OpportunityID: req.OpportunityID,
		ActionType:    req.ActionType,
		Payload:       req.Payload,
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeSuccess(w, http.StatusCreated, contracts.ActionResponse{
		ActionID:       row.ActionID,
		OpportunityID:  row.OpportunityID,
		ActionType:     row.ActionType,
		Status:         string(row.Status),
		Payload:        row.Payload,
		MeasuredImpact: row.MeasuredImpact,
		CreatedAt:      row.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) executeAction(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	result, err := h.service.ExecuteAction(r.Context(), chi.URLParam(r, "action_id"), actor.SubjectID)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, contracts.ExecuteActionResponse{
		ActionID: chi.URLParam(r, "action_id"),
		Success:  result.Success,
		Output:   result.Output,
		Error:    result.Error,
	})
}

func (h *Handler) rollbackExecution(w http.ResponseWriter, r *http.Request) {
	var req contracts.RollbackRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	actor := actorFromContext(r.Context())
	logID := chi.URLParam(r, "execution_log_id")
	rolledBack, err := h.service.RollbackExecution(r.Context(), logID, actor.SubjectID, req.Reason)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, contracts.RollbackResponse{ExecutionLogID: logID, RolledBack: rolledBack})
}

func (h *Handler) executionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetExecutionStats(r.Context())
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, contracts.ExecutionStatsResponse{
		TotalAttempts:        stats.TotalAttempts,
		Succeeded:            stats.Succeeded,
		Failed:               stats.Failed,
		RolledBack:           stats.RolledBack,
		AverageTimeToExecute: stats.AverageTimeToExecute,
	})
}

func (h *Handler) generateForecast(w http.ResponseWriter, r *http.Request) {
	var req contracts.GenerateForecastRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	written, err := h.service.GenerateForecast(r.Context(), req.Months)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, contracts.GenerateForecastResponse{MonthsWritten: written})
}

func (h *Handler) listForecasts(w http.ResponseWriter, r *http.Request) {
	upcoming, err := h.service.GetUpcomingForecasts(r.Context(), 0)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	accuracy, err := h.service.GetForecastAccuracy(r.Context())
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	rows := make([]contracts.ForecastRow, 0, len(upcoming))
	for _, fc := range upcoming {
		rows = append(rows, contracts.ForecastRow{
			ForecastID:                 fc.ForecastID,
			ForecastMonth:              fc.ForecastMonth.Format("2006-01"),
			ForecastedAdRevenue:        fc.ForecastedAdRevenue,
			ForecastedAffiliateRevenue: fc.ForecastedAffiliateRevenue,
			ForecastedTotalRevenue:     fc.ForecastedTotalRevenue,
			ActualTotalRevenue:         fc.ActualTotalRevenue,
			ConfidenceLevel:            fc.ConfidenceLevel,
			GrowthRate:                 fc.GrowthRate,
			MonthOverMonthGrowth:       fc.MonthOverMonthGrowth,
		})
	}
	writeSuccess(w, http.StatusOK, contracts.ForecastsResponse{Upcoming: rows, Accuracy: accuracy})
}

func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetDashboard(r.Context())
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) getLearningDashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetLearningDashboard(r.Context())
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, out)
}
