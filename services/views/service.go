// Package views serves tenant-scoped read models: call history, live
// division queues, reference data and dashboard tallies.
package views

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"github.com/upb/andon-board/services"
	"go.uber.org/zap"
)

// MaxListLimit caps a single call history page
const MaxListLimit = 500

// CallQuery narrows a call listing. All set fields must hold. Period is
// relative to Date (today when zero); From and To take precedence over it.
type CallQuery struct {
	Status     models.CallStatus
	LocationID *uuid.UUID
	DivisionID *uuid.UUID
	Period     models.Period
	Date       time.Time
	From       *time.Time
	To         *time.Time
	Limit      int
}

// DashboardStats are the headline tallies of the dashboard
type DashboardStats struct {
	ActiveCalls     int `json:"active_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	ResolvedToday   int `json:"resolved_today"`
	CallsToday      int `json:"calls_today"`
	TotalMachines   int `json:"total_machines"`
}

// Service answers read-only queries
type Service struct {
	calls     repositories.CallRepository
	machines  repositories.MachineRepository
	locations repositories.LocationRepository
	divisions repositories.DivisionRepository
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new views Service. Calendar days follow loc.
func NewService(repos *repositories.Repositories, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		calls:     repos.Calls,
		machines:  repos.Machines,
		locations: repos.Locations,
		divisions: repos.Divisions,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// ListCalls returns matching calls newest first
func (s *Service) ListCalls(ctx context.Context, tenantID uuid.UUID, q CallQuery) ([]*models.Call, error) {
	filter, err := s.buildFilter(q)
	if err != nil {
		return nil, err
	}
	calls, err := s.calls.List(ctx, tenantID, filter)
	if err != nil {
		return nil, s.failed("failed to list calls", tenantID, err)
	}
	return calls, nil
}

func (s *Service) buildFilter(q CallQuery) (repositories.CallFilter, error) {
	filter := repositories.CallFilter{
		LocationID: q.LocationID,
		DivisionID: q.DivisionID,
		Order:      repositories.NewestFirst,
		Limit:      q.Limit,
	}
	if filter.Limit <= 0 || filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}

	if q.Status != "" {
		if !q.Status.Valid() {
			return filter, services.NewFieldError("status", "must be one of ACTIVE, IN_PROGRESS, RESOLVED")
		}
		filter.Statuses = []models.CallStatus{q.Status}
	}

	switch {
	case q.From != nil || q.To != nil:
		if q.From != nil && q.To != nil && !q.To.After(*q.From) {
			return filter, services.NewFieldError("to", "must be after from")
		}
		filter.CreatedFrom = q.From
		filter.CreatedTo = q.To
	case q.Period != "":
		if !q.Period.Valid() {
			return filter, services.ErrInvalidPeriod.WithDetail("period", string(q.Period))
		}
		from, to := s.periodRange(q.Period, q.Date)
		filter.CreatedFrom = &from
		filter.CreatedTo = &to
	}
	return filter, nil
}

// periodRange anchors a period on a reference date. For today the window ends
// now; a past date ends at that day's midnight.
func (s *Service) periodRange(period models.Period, date time.Time) (time.Time, time.Time) {
	now := s.now().In(s.loc)
	if date.IsZero() || models.StartOfDay(date.In(s.loc)).Equal(models.StartOfDay(now)) {
		return period.Window(now)
	}
	dayStart, dayEnd := models.DayWindow(date.In(s.loc))
	if period == models.PeriodDaily {
		return dayStart, dayEnd
	}
	from, _ := period.Window(dayEnd)
	return from, dayEnd
}

// GetDivisionCalls returns the open calls routed to a division, or the
// unassigned ones for the general board, oldest first
func (s *Service) GetDivisionCalls(ctx context.Context, tenantID uuid.UUID, route models.DivisionRoute) ([]*models.Call, error) {
	filter := repositories.CallFilter{
		Statuses: []models.CallStatus{models.CallStatusActive, models.CallStatusInProgress},
		Order:    repositories.OldestFirst,
	}
	if id, ok := route.DivisionID(); ok {
		if _, err := s.divisions.GetByID(ctx, tenantID, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrDivisionNotFound
			}
			return nil, s.failed("failed to load division", tenantID, err)
		}
		filter.DivisionID = &id
	} else {
		filter.Unassigned = true
	}

	calls, err := s.calls.List(ctx, tenantID, filter)
	if err != nil {
		return nil, s.failed("failed to list division calls", tenantID, err)
	}
	return calls, nil
}

// GetLocations lists the tenant's locations
func (s *Service) GetLocations(ctx context.Context, tenantID uuid.UUID) ([]*models.Location, error) {
	locations, err := s.locations.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to list locations", tenantID, err)
	}
	return locations, nil
}

// GetDivisions lists the tenant's divisions
func (s *Service) GetDivisions(ctx context.Context, tenantID uuid.UUID) ([]*models.Division, error) {
	divisions, err := s.divisions.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to list divisions", tenantID, err)
	}
	return divisions, nil
}

// GetMachines lists the tenant's machines with their location names
func (s *Service) GetMachines(ctx context.Context, tenantID uuid.UUID) ([]*models.Machine, error) {
	machines, err := s.machines.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to list machines", tenantID, err)
	}
	return machines, nil
}

// GetMachineByCode resolves a scanned QR code
func (s *Service) GetMachineByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Machine, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, services.NewFieldError("code", "machine code is required")
	}
	machine, err := s.machines.GetByCode(ctx, tenantID, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrMachineNotFound
		}
		return nil, s.failed("failed to load machine", tenantID, err)
	}
	return machine, nil
}

// GetDashboardStats tallies open calls, today's activity and the machine count
func (s *Service) GetDashboardStats(ctx context.Context, tenantID uuid.UUID) (*DashboardStats, error) {
	dayStart, dayEnd := models.DayWindow(s.now().In(s.loc))

	counts, err := s.calls.Counts(ctx, tenantID, dayStart, dayEnd)
	if err != nil {
		return nil, s.failed("failed to count calls", tenantID, err)
	}
	machines, err := s.machines.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to count machines", tenantID, err)
	}

	return &DashboardStats{
		ActiveCalls:     counts.Active,
		InProgressCalls: counts.InProgress,
		ResolvedToday:   counts.ResolvedToday,
		CallsToday:      counts.CreatedToday,
		TotalMachines:   machines,
	}, nil
}

func (s *Service) failed(msg string, tenantID uuid.UUID, err error) error {
	s.logger.Error(msg, zap.String("tenant_id", tenantID.String()), zap.Error(err))
	return services.WrapInternal(msg, err)
}
