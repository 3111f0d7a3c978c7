package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/stepstats/cache-analyzer/internal/config"
	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
	"github.com/stepstats/cache-analyzer/internal/observability/metrics"
)

const (
	serviceName = "cache-analyzer-api"
	apiVersion  = "v1"

	backpressureWait = 50 * time.Millisecond
)

type Router struct {
	cfg       config.Config
	analyzer  ports.CommandAnalyzer
	scheduler ports.BulkScheduler
	browser   ports.ReportBrowser
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	analyzer ports.CommandAnalyzer,
	scheduler ports.BulkScheduler,
	browser ports.ReportBrowser,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		analyzer:  analyzer,
		scheduler: scheduler,
		browser:   browser,
		metrics:   m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", rt.health)
	mux.HandleFunc("/api/v1/analyze-command", rt.analyzeCommand)
	mux.HandleFunc("/api/v1/bulk-analyze", rt.bulkAnalyze)
	mux.HandleFunc("/api/v1/reports", rt.listReports)
	mux.HandleFunc("/api/v1/reports/", rt.getReport)
	mux.HandleFunc("/api/v1/system-info", rt.systemInfo)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   serviceName,
		"version":   apiVersion,
		"timestamp": time.Now().In(domain.ReportingZone).Format(time.RFC3339),
	})
}

func (rt *Router) analyzeCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Command     string `json:"command"`
		PackageName string `json:"packageName"`
		StartDate   string `json:"startDate"`
		EndDate     string `json:"endDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "command is required"})
		return
	}
	if strings.TrimSpace(req.PackageName) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "packageName is required"})
		return
	}

	start := time.Now()
	report, err := rt.analyzer.AnalyzeCommand(r.Context(), ports.AnalyzeCommandRequest{
		Command:    req.Command,
		AppPackage: req.PackageName,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	})
	if rt.metrics != nil {
		rt.metrics.RecordCommandAnalysis("api", time.Since(start), err)
	}
	if err != nil {
		if domain.IsKind(err, domain.ErrNoData) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":           "no step records found",
				"command":         req.Command,
				"app_package":     req.PackageName,
				"total_step_runs": 0,
			})
			return
		}
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) bulkAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		StartDate              string `json:"startDate"`
		EndDate                string `json:"endDate"`
		GenerateIndividual     *bool  `json:"generateIndividual"`
		GenerateCommandPackage *bool  `json:"generateCommandPackage"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	job, err := rt.scheduler.Schedule(r.Context(), ports.BulkAnalysisParams{
		StartDate:              req.StartDate,
		EndDate:                req.EndDate,
		GenerateIndividual:     boolOrTrue(req.GenerateIndividual),
		GenerateCommandPackage: boolOrTrue(req.GenerateCommandPackage),
	})
	if rt.metrics != nil {
		rt.metrics.RecordBulkRequest("api", err)
	}
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":      "accepted",
		"analysis_id": job.AnalysisID,
		"directory":   "analysis_" + job.AnalysisID,
	})
}

func (rt *Router) listReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	listings, err := rt.browser.ListRuns(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": listings})
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	relPath := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	if relPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "report path is required"})
		return
	}

	report, err := rt.browser.GetReport(r.Context(), relPath)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) systemInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dynamodb_table":              rt.cfg.DynamoDBTable,
		"aws_region":                  rt.cfg.AWSRegion,
		"step_classifications_filter": rt.cfg.StepClassifications,
		"similarity_threshold":        rt.cfg.SimilarityThreshold,
		"output_directory":            rt.cfg.OutputDir,
		"api_version":                 apiVersion,
		"timestamp":                   time.Now().In(domain.ReportingZone).Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func boolOrTrue(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}
