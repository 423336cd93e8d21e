// Package analytics derives reliability statistics from a tenant's call
// history. Nothing is cached; every request recomputes from stored calls.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upb/andon-board/config"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"github.com/upb/andon-board/services"
	"go.uber.org/zap"
)

// Summary is the trailing-window MTTR and MTBF of a tenant
type Summary struct {
	MTTRMinutes   int `json:"mttr_minutes"`
	MTBFHours     int `json:"mtbf_hours"`
	TotalCalls    int `json:"total_calls"`
	ResolvedCalls int `json:"resolved_calls"`
	MachineCount  int `json:"machine_count"`
	WindowDays    int `json:"window_days"`
}

// Service fetches call history and hands it to the aggregation functions
type Service struct {
	calls       repositories.CallRepository
	machines    repositories.MachineRepository
	locations   repositories.LocationRepository
	hoursPerDay float64
	windowDays  int
	loc         *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a new analytics Service
func NewService(repos *repositories.Repositories, cfg config.AnalyticsConfig, logger *zap.Logger) *Service {
	return &Service{
		calls:       repos.Calls,
		machines:    repos.Machines,
		locations:   repos.Locations,
		hoursPerDay: cfg.HoursPerDay,
		windowDays:  cfg.MTBFWindowDays,
		loc:         cfg.Location(),
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) localNow() time.Time {
	return s.now().In(s.loc)
}

// GetDailyCallStats counts today's calls per hour
func (s *Service) GetDailyCallStats(ctx context.Context, tenantID uuid.UUID) ([]HourBucket, error) {
	now := s.localNow()
	calls, err := s.callsOfDay(ctx, tenantID, now, nil)
	if err != nil {
		return nil, err
	}
	return HourlyCallCounts(calls, now), nil
}

// GetAnalyticsStats computes MTTR and MTBF over the trailing window
func (s *Service) GetAnalyticsStats(ctx context.Context, tenantID uuid.UUID) (*Summary, error) {
	now := s.localNow()
	from := now.AddDate(0, 0, -s.windowDays)

	calls, err := s.list(ctx, tenantID, repositories.CallFilter{CreatedFrom: &from})
	if err != nil {
		return nil, err
	}
	machineCount, err := s.machines.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to count machines", tenantID, err)
	}

	resolved := 0
	for _, c := range calls {
		if c.Status == models.CallStatusResolved {
			resolved++
		}
	}

	return &Summary{
		MTTRMinutes:   MTTRMinutes(calls),
		MTBFHours:     MTBFHours(s.hoursPerDay, s.windowDays, machineCount, len(calls)),
		TotalCalls:    len(calls),
		ResolvedCalls: resolved,
		MachineCount:  machineCount,
		WindowDays:    s.windowDays,
	}, nil
}

// GetHourlyDowntime sums today's resolved downtime per creation hour
func (s *Service) GetHourlyDowntime(ctx context.Context, tenantID uuid.UUID) ([]DowntimeBucket, error) {
	now := s.localNow()
	calls, err := s.callsOfDay(ctx, tenantID, now, []models.CallStatus{models.CallStatusResolved})
	if err != nil {
		return nil, err
	}
	machineCount, err := s.machines.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to count machines", tenantID, err)
	}
	return HourlyDowntime(calls, machineCount, now), nil
}

// GetMachineReports ranks machines by downtime over the period
func (s *Service) GetMachineReports(ctx context.Context, tenantID uuid.UUID, period models.Period) ([]MachineReport, error) {
	calls, err := s.resolvedInPeriod(ctx, tenantID, period)
	if err != nil {
		return nil, err
	}
	machines, err := s.machines.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to list machines", tenantID, err)
	}
	return MachineReports(machines, calls, period, s.hoursPerDay), nil
}

// GetLocationReports ranks locations by downtime over the period
func (s *Service) GetLocationReports(ctx context.Context, tenantID uuid.UUID, period models.Period) ([]LocationReport, error) {
	calls, err := s.resolvedInPeriod(ctx, tenantID, period)
	if err != nil {
		return nil, err
	}
	machines, err := s.machines.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to list machines", tenantID, err)
	}
	locations, err := s.locations.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to list locations", tenantID, err)
	}
	return LocationReports(locations, machines, calls, period, s.hoursPerDay), nil
}

func (s *Service) resolvedInPeriod(ctx context.Context, tenantID uuid.UUID, period models.Period) ([]*models.Call, error) {
	if !period.Valid() {
		return nil, services.ErrInvalidPeriod.WithDetail("period", string(period))
	}
	from, _ := PeriodWindow(period, s.localNow())
	return s.list(ctx, tenantID, repositories.CallFilter{
		Statuses:    []models.CallStatus{models.CallStatusResolved},
		CreatedFrom: &from,
	})
}

func (s *Service) callsOfDay(ctx context.Context, tenantID uuid.UUID, day time.Time, statuses []models.CallStatus) ([]*models.Call, error) {
	start, end := models.DayWindow(day)
	return s.list(ctx, tenantID, repositories.CallFilter{
		Statuses:    statuses,
		CreatedFrom: &start,
		CreatedTo:   &end,
		Order:       repositories.OldestFirst,
	})
}

func (s *Service) list(ctx context.Context, tenantID uuid.UUID, filter repositories.CallFilter) ([]*models.Call, error) {
	calls, err := s.calls.List(ctx, tenantID, filter)
	if err != nil {
		return nil, s.failed("failed to list calls", tenantID, err)
	}
	return calls, nil
}

func (s *Service) failed(msg string, tenantID uuid.UUID, err error) error {
	s.logger.Error(msg, zap.String("tenant_id", tenantID.String()), zap.Error(err))
	return services.WrapInternal(msg, err)
}
