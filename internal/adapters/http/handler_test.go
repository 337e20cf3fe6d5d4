package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	eventadapter "github.com/modvault/monetization-agent/internal/adapters/events"
	"github.com/modvault/monetization-agent/internal/adapters/memory"
	"github.com/modvault/monetization-agent/internal/adapters/security"
	"github.com/modvault/monetization-agent/internal/application"
	"github.com/modvault/monetization-agent/internal/domain"
)

const (
	testCronSecret = "cron-secret"
	testJWTSecret  = "test-secret"
)

type testServer struct {
	router   http.Handler
	repos    *memory.Repositories
	verifier *security.AdminTokenVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Opportunities: repos.Opportunities,
		Actions:       repos.Actions,
		ExecutionLogs: repos.ExecutionLogs,
		Runs:          repos.Runs,
		Forecasts:     repos.Forecasts,
		SiteConfig:    repos.SiteConfig,
		Catalog:       memory.NewAffiliateCatalog(nil),
		Analytics:     memory.NewAnalyticsSource(nil),
		Ledger:        memory.NewRevenueLedger(nil),
		Events:        eventadapter.NewMemoryPublisher(),
		RunLock:       memory.NewRunLock(),
		Logger:        slog.Default(),
	})
	verifier, err := security.NewAdminTokenVerifier(testJWTSecret)
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}
	return &testServer{
		router:   NewRouter(NewHandler(svc), testCronSecret, verifier),
		repos:    repos,
		verifier: verifier,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func (ts *testServer) adminToken(t *testing.T, subject, role string) string {
	t.Helper()
	token, err := ts.verifier.Sign(subject, role, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := ts.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestCronTriggerRequiresSecret(t *testing.T) {
	ts := newTestServer(t)

	for name, token := range map[string]string{"missing": "", "wrong": "not-the-secret"} {
		rec := ts.do(t, http.MethodGet, "/api/v1/agent/run", token, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s secret: status = %d, want 401", name, rec.Code)
		}
	}
	runs, _ := ts.repos.Runs.ListRecent(context.Background(), 10)
	if len(runs) != 0 {
		t.Fatalf("rejected trigger must not create runs, got %d", len(runs))
	}
}

func TestCronTriggerRunsFullPipeline(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/agent/run", testCronSecret, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Status != "success" {
		t.Fatalf("envelope status = %q", env.Status)
	}
	var data struct {
		Success bool   `json:"success"`
		Job     string `json:"job"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !data.Success || data.Job != "full" {
		t.Fatalf("unexpected run data: %+v", data)
	}
	runs, _ := ts.repos.Runs.ListRecent(context.Background(), 10)
	if len(runs) != 1 || runs[0].Status != domain.RunSuccess {
		t.Fatalf("expected one successful run row, got %+v", runs)
	}
}

func TestNamedJobValidation(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/agent/run", testCronSecret, map[string]string{"job_type": "reindex"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Code != "unsupported_job_type" {
		t.Fatalf("code = %q, want unsupported_job_type", env.Code)
	}
}

func TestAdminEndpointsRequireAdminToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/dashboard", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/v1/dashboard", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/v1/dashboard", ts.adminToken(t, "viewer-1", "viewer"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin role: status = %d, want 403", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/v1/dashboard", ts.adminToken(t, "admin-1", "admin"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin token: status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestEnqueueExecuteRollbackOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()
	impact := decimal.NewFromInt(340)
	opp := domain.Opportunity{
		OpportunityID:   "opp_http",
		Type:            domain.OpportunityAffiliateScan,
		Title:           "Promote HostCo",
		Priority:        4,
		EstimatedImpact: &impact,
		Status:          domain.OpportunityPending,
		DedupeKey:       "affiliate_scan_finding:promote:opp_http",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := ts.repos.Opportunities.Create(ctx, opp); err != nil {
		t.Fatalf("seed opportunity: %v", err)
	}
	token := ts.adminToken(t, "admin-1", "admin")

	rec := ts.do(t, http.MethodPost, "/api/v1/actions", token, map[string]any{
		"opportunity_id": "opp_http",
		"action_type":    "update_offer_placement",
		"payload":        map[string]any{"offer_id": "off-1", "placement": "featured"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("enqueue: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ActionID string `json:"action_id"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &created); err != nil {
		t.Fatalf("decode action: %v", err)
	}
	if created.Status != "pending" {
		t.Fatalf("action status = %q, want pending", created.Status)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/actions/"+created.ActionID+"/execute", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("execute: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var executed struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &executed); err != nil {
		t.Fatalf("decode execute: %v", err)
	}
	if !executed.Success {
		t.Fatalf("expected execution success, body %s", rec.Body.String())
	}

	logRow, err := ts.repos.ExecutionLogs.LatestSuccessful(ctx, created.ActionID)
	if err != nil {
		t.Fatalf("latest log: %v", err)
	}
	if logRow.ExecutedBy != "admin-1" {
		t.Fatalf("executed_by = %q, want the token subject", logRow.ExecutedBy)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/executions/"+logRow.ExecutionLogID+"/rollback", token, map[string]string{"reason": "regression"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rollback: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var rolled struct {
		RolledBack bool `json:"rolled_back"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &rolled); err != nil {
		t.Fatalf("decode rollback: %v", err)
	}
	if !rolled.RolledBack {
		t.Fatalf("expected rollback to apply")
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/executions/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status = %d", rec.Code)
	}
}

func TestExecuteUnknownActionReturns404(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t, "admin-1", "admin")
	rec := ts.do(t, http.MethodPost, "/api/v1/actions/act_missing/execute", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Status != "error" || env.Code != "not_found" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestForecastEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t, "admin-1", "admin")

	rec := ts.do(t, http.MethodPost, "/api/v1/forecasts/generate", token, map[string]int{"months": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var gen struct {
		MonthsWritten int `json:"months_written"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &gen); err != nil {
		t.Fatalf("decode generate: %v", err)
	}
	if gen.MonthsWritten != 2 {
		t.Fatalf("months written = %d, want 2", gen.MonthsWritten)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/forecasts", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var list struct {
		Upcoming []json.RawMessage `json:"upcoming"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Upcoming) != 2 {
		t.Fatalf("upcoming = %d rows, want 2", len(list.Upcoming))
	}
}
