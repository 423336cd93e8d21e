// Package calls implements the call lifecycle: raising a call from a machine
// scan, responding to it and resolving it with a report.
package calls

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/andon-board/internal/observability"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"github.com/upb/andon-board/services"
	"github.com/upb/andon-board/services/notify"
	"go.uber.org/zap"
)

// Outcome is the result kind of CreateCall
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
)

// CreateCallResult is returned by CreateCall. On a duplicate, Call is the
// call that is already open for the machine.
type CreateCallResult struct {
	Outcome Outcome      `json:"outcome"`
	Call    *models.Call `json:"call"`
}

// EventRecorder receives lifecycle events for the call trail
type EventRecorder interface {
	CallCreated(ctx context.Context, call *models.Call)
	DuplicateScan(ctx context.Context, existing *models.Call)
	CallResponded(ctx context.Context, call *models.Call, responderID uuid.UUID)
	CallResolved(ctx context.Context, call *models.Call, resolverID uuid.UUID)
}

// Service is the call lifecycle engine
type Service struct {
	calls     repositories.CallRepository
	reports   repositories.ReportRepository
	machines  repositories.MachineRepository
	divisions repositories.DivisionRepository
	users     repositories.UserRepository
	txMgr     repositories.TransactionManager
	notifier  notify.Notifier
	formatter *notify.Formatter
	events    EventRecorder
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new call lifecycle Service
func NewService(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	notifier notify.Notifier,
	formatter *notify.Formatter,
	events EventRecorder,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		calls:     repos.Calls,
		reports:   repos.Reports,
		machines:  repos.Machines,
		divisions: repos.Divisions,
		users:     repos.Users,
		txMgr:     txMgr,
		notifier:  notifier,
		formatter: formatter,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateCall raises a call for a machine. If the machine already has an open
// call the existing call is returned with OutcomeDuplicate and nothing is
// written or announced.
func (s *Service) CreateCall(ctx context.Context, tenantID, machineID uuid.UUID, divisionID *uuid.UUID) (*CreateCallResult, error) {
	result, err := s.createCall(ctx, tenantID, machineID, divisionID)
	if err != nil {
		if services.IsInternalError(err) {
			s.metrics.CallCreated("error")
			s.logger.Error("create call failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("machine_id", machineID.String()),
				zap.Error(err))
		}
		return nil, err
	}
	s.metrics.CallCreated(string(result.Outcome))
	return result, nil
}

func (s *Service) createCall(ctx context.Context, tenantID, machineID uuid.UUID, divisionID *uuid.UUID) (*CreateCallResult, error) {
	machine, err := s.machines.GetByID(ctx, tenantID, machineID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrMachineNotFound
		}
		return nil, services.WrapInternal("failed to load machine", err)
	}

	route := models.Unassigned()
	if divisionID != nil {
		division, err := s.divisions.GetByID(ctx, tenantID, *divisionID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrDivisionNotFound
			}
			return nil, services.WrapInternal("failed to load division", err)
		}
		route = models.AssignedTo(division.ID, division.Name)
	}

	if existing, err := s.findOpen(ctx, tenantID, machineID); err != nil {
		return nil, err
	} else if existing != nil {
		return s.duplicate(ctx, existing), nil
	}

	call, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.Call, error) {
		number, err := s.calls.NextNumber(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		call := models.NewCall(tenantID, machine.ID, route, s.now())
		call.Number = number
		if err := s.calls.Create(ctx, call); err != nil {
			return nil, err
		}
		return call, nil
	})
	if err != nil {
		// a concurrent scan won the partial unique index
		if repositories.ConflictField(err) == "machine_id" {
			existing, findErr := s.findOpen(ctx, tenantID, machineID)
			if findErr == nil && existing != nil {
				return s.duplicate(ctx, existing), nil
			}
		}
		return nil, services.WrapInternal("failed to create call", err)
	}

	call.MachineName = machine.Name
	call.MachineCode = machine.Code
	call.LocationID = machine.LocationID
	call.LocationName = machine.LocationName

	s.logger.Info("call created",
		zap.String("tenant_id", tenantID.String()),
		zap.Int64("number", call.Number),
		zap.String("machine", machine.Code))

	s.events.CallCreated(ctx, call)
	s.notify(ctx, call, s.formatter.CallCreated(call))

	return &CreateCallResult{Outcome: OutcomeCreated, Call: call}, nil
}

func (s *Service) findOpen(ctx context.Context, tenantID, machineID uuid.UUID) (*models.Call, error) {
	existing, err := s.calls.FindOpenByMachine(ctx, tenantID, machineID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, services.WrapInternal("failed to look up open call", err)
	}
	return existing, nil
}

func (s *Service) duplicate(ctx context.Context, existing *models.Call) *CreateCallResult {
	s.logger.Debug("duplicate scan ignored",
		zap.String("call_id", existing.ID.String()),
		zap.Int64("number", existing.Number))
	s.events.DuplicateScan(ctx, existing)
	return &CreateCallResult{Outcome: OutcomeDuplicate, Call: existing}
}

// RespondToCall moves an ACTIVE call to IN_PROGRESS on behalf of responderID
func (s *Service) RespondToCall(ctx context.Context, tenantID, callID, responderID uuid.UUID) (*models.Call, error) {
	call, err := s.loadForTransition(ctx, tenantID, callID, models.CallActionRespond)
	if err != nil {
		return nil, err
	}
	responder, err := s.loadUser(ctx, tenantID, responderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.calls.MarkResponded(ctx, tenantID, callID, responderID, now); err != nil {
		return nil, s.transitionFailed(models.CallActionRespond, err)
	}

	call.Status = models.CallStatusInProgress
	call.RespondedAt = &now
	call.ResponderID = &responderID
	call.ResponderName = responder.Name
	s.metrics.Transition(string(models.CallActionRespond), "ok")

	s.events.CallResponded(ctx, call, responderID)
	s.notify(ctx, call, s.formatter.CallResponded(call, responder.Name))

	return call, nil
}

// ResolveCall closes an open call and stores its report atomically
func (s *Service) ResolveCall(ctx context.Context, tenantID, callID uuid.UUID, content string, resolverID uuid.UUID) (*models.Call, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, services.ErrEmptyReport.WithDetail("content", "report content is required")
	}

	call, err := s.loadForTransition(ctx, tenantID, callID, models.CallActionResolve)
	if err != nil {
		return nil, err
	}
	resolver, err := s.loadUser(ctx, tenantID, resolverID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := models.NewReport(callID, content, now)
	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.calls.MarkResolved(ctx, tenantID, callID, resolverID, now); err != nil {
			return err
		}
		return s.reports.Create(ctx, report)
	})
	if err != nil {
		return nil, s.transitionFailed(models.CallActionResolve, err)
	}

	call.Status = models.CallStatusResolved
	call.ResolvedAt = &now
	call.ResolverID = &resolverID
	call.ResolverName = resolver.Name
	if call.RespondedAt == nil {
		call.RespondedAt = &now
		call.ResponderID = &resolverID
		call.ResponderName = resolver.Name
	}
	call.Report = report

	s.metrics.Transition(string(models.CallActionResolve), "ok")
	if downtime, ok := call.Downtime(); ok {
		s.metrics.CallResolved(downtime)
	}

	s.events.CallResolved(ctx, call, resolverID)
	s.notify(ctx, call, s.formatter.CallResolved(call, resolver.Name))

	return call, nil
}

// GetCall returns a call with its report, if resolved
func (s *Service) GetCall(ctx context.Context, tenantID, callID uuid.UUID) (*models.Call, error) {
	call, err := s.calls.GetByID(ctx, tenantID, callID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrCallNotFound
		}
		return nil, services.WrapInternal("failed to load call", err)
	}

	report, err := s.reports.GetByCallID(ctx, call.ID)
	switch {
	case err == nil:
		call.Report = report
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, services.WrapInternal("failed to load report", err)
	}
	return call, nil
}

func (s *Service) loadForTransition(ctx context.Context, tenantID, callID uuid.UUID, action models.CallAction) (*models.Call, error) {
	call, err := s.calls.GetByID(ctx, tenantID, callID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrCallNotFound
		}
		return nil, services.WrapInternal("failed to load call", err)
	}
	if !models.CanTransition(action, call.Status) {
		s.metrics.Transition(string(action), "rejected")
		return nil, services.NewTransitionError(action, call.Status)
	}
	return call, nil
}

func (s *Service) loadUser(ctx context.Context, tenantID, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to load user", err)
	}
	return user, nil
}

// transitionFailed maps a failed conditional update. ErrConflict means another
// request moved the call first.
func (s *Service) transitionFailed(action models.CallAction, err error) error {
	if errors.Is(err, repositories.ErrConflict) {
		s.metrics.Transition(string(action), "rejected")
		return services.ErrConcurrentUpdate.Wrap(err).WithDetail("action", string(action))
	}
	s.logger.Error("call transition failed", zap.String("action", string(action)), zap.Error(err))
	return services.WrapInternal("failed to "+string(action)+" call", err)
}

func (s *Service) notify(ctx context.Context, call *models.Call, text string) {
	callID := call.ID
	s.notifier.Notify(ctx, notify.Message{
		TenantID: call.TenantID,
		CallID:   &callID,
		Text:     text,
	})
}
