package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/andon-board/internal/observability"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"go.uber.org/zap"
)

// Service writes call events asynchronously through a small worker pool.
// Recording never blocks the caller: a full buffer drops the event.
type Service struct {
	repo        repositories.CallEventRepository
	metrics     *observability.Metrics
	logger      *zap.Logger
	events      chan *models.CallEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	mu          sync.Mutex
	started     bool
	closed      bool
}

// Config holds configuration for the Service
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  256,
		WorkerCount: 2,
	}
}

// NewService creates a new call event Service
func NewService(repo repositories.CallEventRepository, metrics *observability.Metrics, logger *zap.Logger, cfg Config) *Service {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.BufferSize < 0 {
		cfg.BufferSize = 0
	}
	return &Service{
		repo:        repo,
		metrics:     metrics,
		logger:      logger,
		events:      make(chan *models.CallEvent, cfg.BufferSize),
		workerCount: cfg.WorkerCount,
		bufferSize:  cfg.BufferSize,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("call event service already started")
	}
	if s.closed {
		return fmt.Errorf("call event service already shut down")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started call event service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))
	return nil
}

// Shutdown stops accepting events and waits for queued ones to be written
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := len(s.events)
	close(s.events)
	s.mu.Unlock()

	s.logger.Info("stopping call event service", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("call event service stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("call event service shutdown: %w", ctx.Err())
	}
}

// Record queues an event. The request id is taken from ctx when the event
// does not carry one.
func (s *Service) Record(ctx context.Context, event *models.CallEvent) {
	if event.RequestID == "" {
		event.WithRequest(middleware.GetReqID(ctx))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.closed {
		s.drop(event, "not running")
		return
	}

	select {
	case s.events <- event:
	default:
		s.drop(event, "buffer full")
	}
}

func (s *Service) drop(event *models.CallEvent, reason string) {
	s.metrics.EventDropped()
	s.logger.Warn("dropping call event",
		zap.String("reason", reason),
		zap.String("action", string(event.Action)),
		zap.String("tenant_id", event.TenantID.String()))
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	for event := range s.events {
		if err := s.write(event); err != nil {
			s.logger.Error("failed to write call event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Action)),
				zap.String("tenant_id", event.TenantID.String()))
		}
	}
}

func (s *Service) write(event *models.CallEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.repo.Insert(ctx, event)
}

// Stats represents call event service statistics
type Stats struct {
	BufferSize    int  `json:"buffer_size"`
	PendingEvents int  `json:"pending_events"`
	WorkerCount   int  `json:"worker_count"`
	Started       bool `json:"started"`
}

// GetStats returns statistics about the service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.events),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.closed,
	}
}

// ListCallEvents returns a call's trail oldest first
func (s *Service) ListCallEvents(ctx context.Context, tenantID, callID uuid.UUID) ([]*models.CallEvent, error) {
	return s.repo.ListByCall(ctx, tenantID, callID)
}

// ListTenantEvents returns a tenant's latest events
func (s *Service) ListTenantEvents(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.CallEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByTenant(ctx, tenantID, limit, offset)
}

// Convenience methods for the board's recurring events

// CallCreated records a newly raised call
func (s *Service) CallCreated(ctx context.Context, call *models.Call) {
	s.Record(ctx, models.NewCallEvent(call.TenantID, models.CallEventCreated, "call").
		WithCall(call.ID).
		WithResource(call.MachineID).
		WithDetails(map[string]interface{}{
			"number":   call.Number,
			"division": call.Route.Label(),
			"assigned": call.Route.IsAssigned(),
		}))
}

// DuplicateScan records a createCall that hit an already open call
func (s *Service) DuplicateScan(ctx context.Context, existing *models.Call) {
	s.Record(ctx, models.NewCallEvent(existing.TenantID, models.CallEventDuplicateScan, "call").
		WithCall(existing.ID).
		WithResource(existing.MachineID).
		WithDetails(map[string]interface{}{
			"number": existing.Number,
			"status": existing.Status,
		}))
}

// CallResponded records ACTIVE to IN_PROGRESS
func (s *Service) CallResponded(ctx context.Context, call *models.Call, responderID uuid.UUID) {
	s.Record(ctx, models.NewCallEvent(call.TenantID, models.CallEventResponded, "call").
		WithCall(call.ID).
		WithActor(responderID))
}

// CallResolved records a resolution and its report
func (s *Service) CallResolved(ctx context.Context, call *models.Call, resolverID uuid.UUID) {
	event := models.NewCallEvent(call.TenantID, models.CallEventResolved, "call").
		WithCall(call.ID).
		WithActor(resolverID)
	details := map[string]interface{}{}
	if call.Report != nil {
		event.WithResource(call.Report.ID)
		details["report_length"] = len(call.Report.Content)
	}
	if downtime, ok := call.Downtime(); ok {
		details["downtime_seconds"] = int64(downtime.Seconds())
	}
	s.Record(ctx, event.WithDetails(details))
}

// NotificationFailed records a message the sink could not deliver
func (s *Service) NotificationFailed(ctx context.Context, tenantID uuid.UUID, callID *uuid.UUID, cause error) {
	event := models.NewCallEvent(tenantID, models.CallEventNotifyFailed, "notification").
		WithDetails(map[string]interface{}{"error": cause.Error()})
	if callID != nil {
		event.WithCall(*callID)
	}
	s.Record(ctx, event)
}

// MachineCreated records a new machine
func (s *Service) MachineCreated(ctx context.Context, machine *models.Machine, actorID uuid.UUID) {
	s.Record(ctx, models.NewCallEvent(machine.TenantID, models.CallEventMachineAdded, "machine").
		WithActor(actorID).
		WithResource(machine.ID).
		WithDetails(map[string]interface{}{
			"name": machine.Name,
			"code": machine.Code,
		}))
}

// UserCreated records a new staff account
func (s *Service) UserCreated(ctx context.Context, user *models.User, actorID *uuid.UUID) {
	event := models.NewCallEvent(user.TenantID, models.CallEventUserAdded, "user").
		WithResource(user.ID).
		WithDetails(map[string]interface{}{
			"email": user.Email,
			"role":  user.Role,
		})
	if actorID != nil {
		event.WithActor(*actorID)
	}
	s.Record(ctx, event)
}
