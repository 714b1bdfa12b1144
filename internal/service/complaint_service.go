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

type complaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	UpdateStatus(ctx context.Context, complaint *models.Complaint, from models.ComplaintStatus) (bool, error)
	UpdateEscalation(ctx context.Context, id string, level int, urgent bool) error
	Rate(ctx context.Context, id string, score int, feedback *string, ratedAt time.Time) (bool, error)
	AddResponse(ctx context.Context, resp *models.ComplaintResponse) error
	ListResponses(ctx context.Context, complaintID string, includeInternal bool) ([]models.ComplaintResponse, error)
}

type complaintAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateComplaintRequest is the payload for filing a complaint.
type CreateComplaintRequest struct {
	Category    string `json:"category" validate:"required"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Subject     string `json:"subject" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	Location    string `json:"location" validate:"required"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// UpdateComplaintStatusRequest is the payload for a status transition.
type UpdateComplaintStatusRequest struct {
	Status                  string     `json:"status" validate:"required,oneof=in-progress resolved rejected closed"`
	Note                    string     `json:"note"`
	EstimatedResolutionTime *time.Time `json:"estimated_resolution_time"`
}

// RespondComplaintRequest is the payload for a thread response.
type RespondComplaintRequest struct {
	Message    string `json:"message" validate:"required"`
	IsInternal bool   `json:"is_internal"`
}

// RateComplaintRequest is the payload for rating a resolution.
type RateComplaintRequest struct {
	Score    int    `json:"score" validate:"required,min=1,max=5"`
	Feedback string `json:"feedback"`
}

// ComplaintService provides complaint lifecycle use cases.
type ComplaintService struct {
	repo      complaintRepository
	audit     complaintAuditor
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	now       func() time.Time
}

// SetMetrics wires optional Prometheus instrumentation.
func (s *ComplaintService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// NewComplaintService constructs a ComplaintService instance.
func NewComplaintService(repo complaintRepository, audit complaintAuditor, validate *validator.Validate, logger *zap.Logger) *ComplaintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ComplaintService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create files a new complaint on behalf of the requesting student.
func (s *ComplaintService) Create(ctx context.Context, claims *models.JWTClaims, req CreateComplaintRequest) (*models.Complaint, error) {
	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionSubmitComplaint, policy.Resource{}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint payload")
	}

	priority := models.ComplaintPriority(req.Priority)
	if priority == "" {
		priority = models.ComplaintPriorityMedium
	}

	complaint := &models.Complaint{
		ComplainantID: actor.ID,
		Category:      req.Category,
		Priority:      priority,
		Subject:       req.Subject,
		Description:   req.Description,
		Location:      req.Location,
		IsAnonymous:   req.IsAnonymous,
		Status:        models.ComplaintStatusPending,
	}
	if err := s.repo.Create(ctx, complaint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}

	s.metrics.RecordComplaintFiled()
	return complaint, nil
}

// Get returns a complaint the requester may see. Students only reach their
// own complaints; anonymous filings are masked for everyone but the
// complainant.
func (s *ComplaintService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Complaint, error) {
	complaint, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if actor.Role == models.RoleStudent && actor.ID != complaint.ComplainantID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
	}

	return s.maskIfAnonymous(complaint, actor), nil
}

// List returns complaints scoped to the requester. Students see their own;
// regular staff see complaints assigned to them plus the unassigned pool;
// senior staff see everything.
func (s *ComplaintService) List(ctx context.Context, claims *models.JWTClaims, filter models.ComplaintFilter) ([]models.Complaint, *models.Pagination, error) {
	actor := policy.FromClaims(claims)
	filter.Normalize()

	switch {
	case actor.Role == models.RoleStudent:
		filter.ComplainantID = actor.ID
		filter.AssignedToOrUnowned = ""
	case actor.Senior():
		filter.ComplainantID = ""
		filter.AssignedToOrUnowned = ""
	default:
		filter.ComplainantID = ""
		filter.AssignedToOrUnowned = actor.ID
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}

	masked := make([]models.Complaint, len(items))
	for i := range items {
		masked[i] = *s.maskIfAnonymous(&items[i], actor)
	}

	return masked, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// UpdateStatus transitions a complaint. Moving to in-progress assigns the
// acting staff member when the complaint is unowned; moving to resolved
// stamps the actual resolution time. The write is conditional on the
// status the decision was made against, so racing transitions fail closed.
func (s *ComplaintService) UpdateStatus(ctx context.Context, claims *models.JWTClaims, id string, req UpdateComplaintStatusRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	complaint, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionChangeComplaintStatus, policy.Resource{OwnerID: complaint.ComplainantID, AssigneeID: complaint.AssigneeID}); err != nil {
		return nil, err
	}

	from := complaint.Status
	to := models.ComplaintStatus(req.Status)

	if to == models.ComplaintStatusClosed {
		if !lifecycle.CanCloseComplaint(from, actor.Senior()) {
			return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("cannot close complaint in status %q", from))
		}
	} else if !lifecycle.CanComplaintTransition(from, to) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("cannot move complaint from %q to %q", from, to))
	}

	now := s.now()
	complaint.Status = to
	if to == models.ComplaintStatusInProgress && complaint.AssigneeID == nil {
		complaint.AssigneeID = &actor.ID
		complaint.AssignedAt = &now
	}
	if req.EstimatedResolutionTime != nil {
		complaint.EstimatedResolutionTime = req.EstimatedResolutionTime
	}
	if to == models.ComplaintStatusResolved && complaint.ActualResolutionTime == nil {
		complaint.ActualResolutionTime = &now
	}

	updated, err := s.repo.UpdateStatus(ctx, complaint, from)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update complaint status")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "complaint changed state concurrently")
	}

	s.metrics.RecordComplaintTransition(string(from), string(to))

	if req.Note != "" {
		if err := s.repo.AddResponse(ctx, &models.ComplaintResponse{
			ComplaintID: id,
			ResponderID: actor.ID,
			Message:     req.Note,
			IsInternal:  true,
		}); err != nil {
			s.logger.Warn("failed to record status note", zap.Error(err))
		}
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.ID,
			Action:     models.AuditActionComplaintStatus,
			Resource:   "complaint",
			ResourceID: &id,
			OldValues:  []byte(fmt.Sprintf(`{"status":%q}`, from)),
			NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, to)),
		}); err != nil {
			s.logger.Warn("failed to record complaint audit log", zap.Error(err))
		}
	}

	return s.maskIfAnonymous(complaint, actor), nil
}

// Escalate bumps the escalation counter by one, clamped at the maximum.
// The counter never moves down; any escalation flags the complaint urgent.
func (s *ComplaintService) Escalate(ctx context.Context, claims *models.JWTClaims, id string) (*models.Complaint, error) {
	complaint, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionEscalateComplaint, policy.Resource{OwnerID: complaint.ComplainantID, AssigneeID: complaint.AssigneeID}); err != nil {
		return nil, err
	}

	if complaint.Status == models.ComplaintStatusClosed {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "cannot escalate a closed complaint")
	}
	if complaint.EscalationLevel >= models.MaxEscalationLevel {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "complaint is already at the maximum escalation level")
	}

	level := lifecycle.ClampEscalation(complaint.EscalationLevel + 1)
	urgent := level > 0

	if err := s.repo.UpdateEscalation(ctx, id, level, urgent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to escalate complaint")
	}

	complaint.EscalationLevel = level
	complaint.IsUrgent = urgent
	return s.maskIfAnonymous(complaint, actor), nil
}

// Respond appends an entry to the complaint thread. Internal notes are
// staff-only; closed complaints take no further responses.
func (s *ComplaintService) Respond(ctx context.Context, claims *models.JWTClaims, id string, req RespondComplaintRequest) (*models.ComplaintResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}

	complaint, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionRespondComplaint, policy.Resource{OwnerID: complaint.ComplainantID, AssigneeID: complaint.AssigneeID}); err != nil {
		return nil, err
	}

	if complaint.Status == models.ComplaintStatusClosed {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "cannot respond to a closed complaint")
	}
	if req.IsInternal && actor.Role != models.RoleStaff {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may post internal notes")
	}

	response := &models.ComplaintResponse{
		ComplaintID: id,
		ResponderID: actor.ID,
		Message:     req.Message,
		IsInternal:  req.IsInternal,
	}
	if err := s.repo.AddResponse(ctx, response); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add response")
	}
	return response, nil
}

// Responses returns the complaint thread in chronological order. Internal
// notes are stripped for student requesters.
func (s *ComplaintService) Responses(ctx context.Context, claims *models.JWTClaims, id string) ([]models.ComplaintResponse, error) {
	complaint, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if actor.Role == models.RoleStudent && actor.ID != complaint.ComplainantID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
	}

	includeInternal := actor.Role == models.RoleStaff
	responses, err := s.repo.ListResponses(ctx, id, includeInternal)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list responses")
	}
	return responses, nil
}

// Rate records a one-time satisfaction score on a resolved complaint. The
// conditional write enforces resolved-and-unrated in a single statement.
func (s *ComplaintService) Rate(ctx context.Context, claims *models.JWTClaims, id string, req RateComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}

	complaint, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionRateComplaint, policy.Resource{OwnerID: complaint.ComplainantID}); err != nil {
		return nil, err
	}

	var feedback *string
	if req.Feedback != "" {
		feedback = &req.Feedback
	}

	now := s.now()
	rated, err := s.repo.Rate(ctx, id, req.Score, feedback, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rate complaint")
	}
	if !rated {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "complaint must be resolved and not yet rated")
	}

	complaint.RatingScore = &req.Score
	complaint.RatingFeedback = feedback
	complaint.RatedAt = &now
	return complaint, nil
}

func (s *ComplaintService) fetch(ctx context.Context, id string) (*models.Complaint, error) {
	complaint, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	return complaint, nil
}

// maskIfAnonymous blanks the complainant identity on anonymous filings for
// every requester except the complainant themself.
func (s *ComplaintService) maskIfAnonymous(complaint *models.Complaint, actor policy.Actor) *models.Complaint {
	if !complaint.IsAnonymous || actor.ID == complaint.ComplainantID {
		return complaint
	}
	masked := *complaint
	masked.ComplainantID = ""
	return &masked
}
