package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/snapdrift/internal/analyzer"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/internal/health"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/utils"
)

// AnalysisHandler serves drift, timeline, comparison and health reports
type AnalysisHandler struct {
	analyzer    *analyzer.Analyzer
	reporter    *health.Reporter
	defaultDays int
	logger      *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler. defaultDays is used
// when a request carries no days parameter.
func NewAnalysisHandler(a *analyzer.Analyzer, reporter *health.Reporter, defaultDays int, log *logger.Logger) *AnalysisHandler {
	if defaultDays < 1 {
		defaultDays = 7
	}
	return &AnalysisHandler{
		analyzer:    a,
		reporter:    reporter,
		defaultDays: defaultDays,
		logger:      log,
	}
}

// Compare diffs scan b against scan a
// @Summary Compare scans
// @Description Compare two scans resource by resource
// @Tags Analysis
// @Produce json
// @Param a query int true "Older scan ID"
// @Param b query int true "Newer scan ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/v1/compare [get]
func (h *AnalysisHandler) Compare(w http.ResponseWriter, r *http.Request) {
	a, err := requiredInt64(r, "a")
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}
	b, err := requiredInt64(r, "b")
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	report, err := h.analyzer.CompareScans(r.Context(), a, b)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, report)
}

// Drift analyzes drift of a context against a baseline scan
// @Summary Analyze drift
// @Description Analyze drift of a context against a baseline scan
// @Tags Analysis
// @Produce json
// @Param context query string false "Cluster context"
// @Param days query int false "Window in days"
// @Param baseline query int false "Baseline scan ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/drift [get]
func (h *AnalysisHandler) Drift(w http.ResponseWriter, r *http.Request) {
	days, err := queryDays(r, h.defaultDays)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}
	baseline, err := utils.QueryInt64Ptr(r, "baseline")
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	report, err := h.analyzer.AnalyzeDrift(r.Context(), r.URL.Query().Get("context"), days, baseline)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, report)
}

// Timeline lists observations of one resource. An absent namespace
// parameter selects the cluster-scoped resource.
// @Summary Resource timeline
// @Description List every observation of one resource
// @Tags Analysis
// @Produce json
// @Param api_version query string true "Resource apiVersion"
// @Param kind query string true "Resource kind"
// @Param name query string true "Resource name"
// @Param namespace query string false "Resource namespace"
// @Param days query int false "Window in days"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/timeline [get]
func (h *AnalysisHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	apiVersion, kind, name := q.Get("api_version"), q.Get("kind"), q.Get("name")
	if apiVersion == "" || kind == "" || name == "" {
		utils.WriteError(w, errors.BadRequest("api_version, kind and name are required"))
		return
	}

	days, err := queryDays(r, h.defaultDays)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	key := scan.NewKey(apiVersion, kind, utils.QueryStringPtr(r, "namespace"), name)
	timeline, err := h.analyzer.ResourceTimeline(r.Context(), key, days)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, timeline)
}

// Evolution reports resource and change counts per scan of a context
// @Summary Cluster evolution
// @Description Report resource and change counts per scan of a context
// @Tags Analysis
// @Produce json
// @Param context query string false "Cluster context"
// @Param days query int false "Window in days"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/evolution [get]
func (h *AnalysisHandler) Evolution(w http.ResponseWriter, r *http.Request) {
	days, err := queryDays(r, h.defaultDays)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	evolution, err := h.analyzer.ClusterEvolution(r.Context(), r.URL.Query().Get("context"), days)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, evolution)
}

// ChangeSummary reports change statistics and the most recent changes
// @Summary Change summary
// @Description Report change statistics and the most recent changes
// @Tags Analysis
// @Produce json
// @Param context query string false "Cluster context"
// @Param days query int false "Window in days"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/changes/summary [get]
func (h *AnalysisHandler) ChangeSummary(w http.ResponseWriter, r *http.Request) {
	days, err := queryDays(r, h.defaultDays)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	summary, err := h.analyzer.ChangeSummary(r.Context(), utils.QueryStringPtr(r, "context"), days)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, summary)
}

// HistoricalSummary aggregates the scan history
// @Summary Historical summary
// @Description Aggregate the scan history
// @Tags Analysis
// @Produce json
// @Param days query int false "Window in days"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/summary [get]
func (h *AnalysisHandler) HistoricalSummary(w http.ResponseWriter, r *http.Request) {
	days, err := queryDays(r, h.defaultDays)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	summary, err := h.analyzer.HistoricalSummary(r.Context(), days)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, summary)
}

// Health builds the health report of a context
// @Summary Context health
// @Description Score the health of a context
// @Tags Analysis
// @Produce json
// @Param context query string false "Cluster context"
// @Param days query int false "Window in days"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/health [get]
func (h *AnalysisHandler) Health(w http.ResponseWriter, r *http.Request) {
	days, err := queryDays(r, h.defaultDays)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	report, err := h.reporter.Report(r.Context(), r.URL.Query().Get("context"), days)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to build health report")
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, report)
}
