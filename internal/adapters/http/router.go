package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler, cronSecret string, admin AdminVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(cronAuthMiddleware(cronSecret))
			r.Get("/agent/run", handler.triggerRun)
			r.Post("/agent/run", handler.runNamedJob)
		})
		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware(admin))
			r.Post("/actions", handler.enqueueAction)
			r.Post("/actions/{action_id}/execute", handler.executeAction)
			r.Post("/executions/{execution_log_id}/rollback", handler.rollbackExecution)
			r.Get("/executions/stats", handler.executionStats)
			r.Post("/forecasts/generate", handler.generateForecast)
			r.Get("/forecasts", handler.listForecasts)
			r.Get("/dashboard", handler.getDashboard)
			r.Get("/learning", handler.getLearningDashboard)
		})
	})
	return r
}
