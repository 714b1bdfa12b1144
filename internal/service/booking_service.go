package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/campus-hub-api/internal/lifecycle"
	"github.com/campushub/campus-hub-api/internal/models"
	"github.com/campushub/campus-hub-api/internal/policy"
	appErrors "github.com/campushub/campus-hub-api/pkg/errors"
)

type bookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	Decide(ctx context.Context, id string, to models.BookingStatus, approverID string, notes *string, decidedAt time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id string, from, to models.BookingStatus) (bool, error)
}

type bookingAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateBookingRequest is the payload for requesting a booking.
type CreateBookingRequest struct {
	ContactName  string    `json:"contact_name" validate:"required"`
	ContactEmail string    `json:"contact_email" validate:"required,email"`
	ContactPhone string    `json:"contact_phone"`
	Purpose      string    `json:"purpose" validate:"required"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	Capacity     int       `json:"capacity" validate:"required,min=1"`
}

// DecideBookingRequest is the payload for approving or rejecting.
type DecideBookingRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// BookingService provides booking request and decision use cases.
type BookingService struct {
	repo      bookingRepository
	audit     bookingAuditor
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	now       func() time.Time
}

// SetMetrics wires optional Prometheus instrumentation.
func (s *BookingService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// NewBookingService constructs a BookingService instance.
func NewBookingService(repo bookingRepository, audit bookingAuditor, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BookingService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create files a new booking request in pending state.
func (s *BookingService) Create(ctx context.Context, claims *models.JWTClaims, req CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	if req.StartTime.Before(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be in the future")
	}

	booking := &models.Booking{
		RequesterID:  claims.UserID,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Purpose:      req.Purpose,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Capacity:     req.Capacity,
		Status:       models.BookingStatusPending,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	return booking, nil
}

// Get returns a booking visible to the requester. Requesters reach their
// own bookings; staff reach all of them.
func (s *BookingService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Booking, error) {
	booking, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if actor.Role != models.RoleStaff && actor.ID != booking.RequesterID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	return booking, nil
}

// List returns bookings scoped to the requester.
func (s *BookingService) List(ctx context.Context, claims *models.JWTClaims, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	actor := policy.FromClaims(claims)
	filter.Normalize()
	if actor.Role != models.RoleStaff {
		filter.RequesterID = actor.ID
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Decide approves or rejects a pending booking. The decision is written
// conditionally against pending status, so a second decision attempt
// reports a state conflict rather than overwriting the first.
func (s *BookingService) Decide(ctx context.Context, claims *models.JWTClaims, id string, req DecideBookingRequest) (*models.Booking, error) {
	booking, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionDecideBooking, policy.Resource{OwnerID: booking.RequesterID}); err != nil {
		return nil, err
	}

	to := models.BookingStatusRejected
	if req.Approve {
		to = models.BookingStatusApproved
	}
	if !lifecycle.CanBookingTransition(booking.Status, to) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("cannot decide booking in status %q", booking.Status))
	}

	var notes *string
	if req.Notes != "" {
		notes = &req.Notes
	}

	now := s.now()
	decided, err := s.repo.Decide(ctx, id, to, actor.ID, notes, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide booking")
	}
	if !decided {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "booking was already decided")
	}

	s.metrics.RecordBookingDecision(string(to))

	booking.Status = to
	booking.ApproverID = &actor.ID
	booking.DecisionNotes = notes
	booking.DecidedAt = &now

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.ID,
			Action:     models.AuditActionBookingDecision,
			Resource:   "booking",
			ResourceID: &id,
			NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, to)),
		}); err != nil {
			s.logger.Warn("failed to record booking audit log", zap.Error(err))
		}
	}

	return booking, nil
}

// Complete marks an approved booking as completed. Staff only.
func (s *BookingService) Complete(ctx context.Context, claims *models.JWTClaims, id string) (*models.Booking, error) {
	booking, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if actor.Role != models.RoleStaff {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may complete bookings")
	}
	if !lifecycle.CanBookingTransition(booking.Status, models.BookingStatusCompleted) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("cannot complete booking in status %q", booking.Status))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, booking.Status, models.BookingStatusCompleted)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete booking")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "booking changed state concurrently")
	}

	booking.Status = models.BookingStatusCompleted
	return booking, nil
}

// Cancel cancels a pending or approved booking. The requester may cancel
// their own booking; staff may cancel any.
func (s *BookingService) Cancel(ctx context.Context, claims *models.JWTClaims, id string) (*models.Booking, error) {
	booking, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if actor.Role != models.RoleStaff && actor.ID != booking.RequesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester or staff may cancel a booking")
	}
	if !lifecycle.CanBookingTransition(booking.Status, models.BookingStatusCancelled) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("cannot cancel booking in status %q", booking.Status))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, booking.Status, models.BookingStatusCancelled)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "booking changed state concurrently")
	}

	booking.Status = models.BookingStatusCancelled
	return booking, nil
}

func (s *BookingService) fetch(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}
