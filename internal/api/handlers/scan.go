package handlers

import (
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/utils"
)

// ScanDetail is a scan header with its per-kind and per-namespace counts
type ScanDetail struct {
	*scan.Scan
	ByKind      map[string]int `json:"by_kind"`
	ByNamespace map[string]int `json:"by_namespace"`
}

// ScanHandler serves scan history
type ScanHandler struct {
	scans   scan.Repository
	changes change.Repository
	logger  *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(scans scan.Repository, changes change.Repository, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		scans:   scans,
		changes: changes,
		logger:  log,
	}
}

// List returns recent scans, newest first
// @Summary List scans
// @Description List recent scans, newest first
// @Tags Scans
// @Produce json
// @Param context query string false "Cluster context"
// @Param namespace query string false "Scan namespace"
// @Param days query int false "Only scans from the last N days"
// @Param limit query int false "Maximum number of scans"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/scans [get]
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := utils.PageSize(r)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}
	days, err := utils.QueryInt(r, "days", 0)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}
	if days < 0 || days > MaxWindowDays {
		utils.WriteError(w, errors.BadRequest(fmt.Sprintf("days must be between 0 and %d", MaxWindowDays)))
		return
	}

	scans, err := h.scans.GetRecentScans(r.Context(), scan.RecentFilter{
		Context:   utils.QueryStringPtr(r, "context"),
		Namespace: utils.QueryStringPtr(r, "namespace"),
		SinceDays: days,
		Limit:     limit,
	})
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list scans")
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"scans": scans,
		"count": len(scans),
	})
}

// Get returns one scan with resource counts
// @Summary Get scan
// @Description Get a scan with its resource counts per kind and namespace
// @Tags Scans
// @Produce json
// @Param id path int true "Scan ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/v1/scans/{id} [get]
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	detail := ScanDetail{}
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		s, err := h.scans.GetByID(ctx, id)
		detail.Scan = s
		return err
	})
	g.Go(func() error {
		counts, err := h.scans.CountByKind(ctx, id)
		detail.ByKind = counts
		return err
	})
	g.Go(func() error {
		counts, err := h.scans.CountByNamespace(ctx, id)
		detail.ByNamespace = counts
		return err
	})
	if err := g.Wait(); err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, detail)
}

// Changes returns the change records whose newer scan is id
// @Summary List scan changes
// @Description List the change records detected by a scan
// @Tags Scans
// @Produce json
// @Param id path int true "Scan ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/v1/scans/{id}/changes [get]
func (h *ScanHandler) Changes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	if _, err := h.scans.GetByID(r.Context(), id); err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	records, err := h.changes.ListForScan(r.Context(), id)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list changes")
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"scan_id": id,
		"changes": records,
		"count":   len(records),
	})
}
