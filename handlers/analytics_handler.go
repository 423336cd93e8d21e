package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services/analytics"
	"go.uber.org/zap"
)

// AnalyticsService computes the downtime metrics
type AnalyticsService interface {
	GetDailyCallStats(ctx context.Context, tenantID uuid.UUID) ([]analytics.HourBucket, error)
	GetAnalyticsStats(ctx context.Context, tenantID uuid.UUID) (*analytics.Summary, error)
	GetHourlyDowntime(ctx context.Context, tenantID uuid.UUID) ([]analytics.DowntimeBucket, error)
	GetMachineReports(ctx context.Context, tenantID uuid.UUID, period models.Period) ([]analytics.MachineReport, error)
	GetLocationReports(ctx context.Context, tenantID uuid.UUID, period models.Period) ([]analytics.LocationReport, error)
}

// AnalyticsHandler serves the analytics endpoints
type AnalyticsHandler struct {
	analytics AnalyticsService
	logger    *zap.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(svc AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: svc,
		logger:    logger,
	}
}

// HandleDaily handles GET /api/v1/t/{slug}/analytics/daily
func (h *AnalyticsHandler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	buckets, err := h.analytics.GetDailyCallStats(r.Context(), tenant.ID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, buckets, h.logger)
}

// HandleSummary handles GET /api/v1/t/{slug}/analytics/summary
func (h *AnalyticsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	summary, err := h.analytics.GetAnalyticsStats(r.Context(), tenant.ID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, summary, h.logger)
}

// HandleHourlyDowntime handles GET /api/v1/t/{slug}/analytics/downtime/hourly
func (h *AnalyticsHandler) HandleHourlyDowntime(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	buckets, err := h.analytics.GetHourlyDowntime(r.Context(), tenant.ID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, buckets, h.logger)
}

// HandleMachineReports handles GET /api/v1/t/{slug}/analytics/machines?period=
func (h *AnalyticsHandler) HandleMachineReports(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	reports, err := h.analytics.GetMachineReports(r.Context(), tenant.ID, periodParam(r))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, reports, h.logger)
}

// HandleLocationReports handles GET /api/v1/t/{slug}/analytics/locations?period=
func (h *AnalyticsHandler) HandleLocationReports(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	reports, err := h.analytics.GetLocationReports(r.Context(), tenant.ID, periodParam(r))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, reports, h.logger)
}

// periodParam defaults to daily when ?period= is absent
func periodParam(r *http.Request) models.Period {
	if p := r.URL.Query().Get("period"); p != "" {
		return models.Period(p)
	}
	return models.PeriodDaily
}
