package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/campus-hub-api/internal/models"
	"github.com/campushub/campus-hub-api/internal/policy"
	appErrors "github.com/campushub/campus-hub-api/pkg/errors"
	"github.com/campushub/campus-hub-api/pkg/export"
	"github.com/campushub/campus-hub-api/pkg/jobs"
	"github.com/campushub/campus-hub-api/pkg/storage"
)

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, filePath string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string, finishedAt time.Time) error
}

type reportComplaintSource interface {
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
}

type reportBookingSource interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
}

type reportEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// CreateReportRequest is the payload for requesting an export.
type CreateReportRequest struct {
	Type     string     `json:"type" validate:"required,oneof=complaints bookings"`
	Format   string     `json:"format" validate:"required,oneof=csv pdf"`
	Category string     `json:"category"`
	Status   string     `json:"status"`
	From     *time.Time `json:"from"`
	To       *time.Time `json:"to"`
}

// ReportJobView is a report job with its download link when available.
type ReportJobView struct {
	models.ReportJob
	DownloadURL string     `json:"download_url,omitempty"`
	URLExpires  *time.Time `json:"url_expires_at,omitempty"`
}

// reportExportPageSize caps how many rows a single export pulls.
const reportExportPageSize = 100

// ReportService builds CSV/PDF exports in the background. Requests are
// persisted, pushed onto a worker queue and downloaded later through
// HMAC-signed URLs, so export rendering never blocks an API request.
type ReportService struct {
	repo       reportRepository
	complaints reportComplaintSource
	bookings   reportBookingSource
	queue      reportEnqueuer
	storage    *storage.LocalStorage
	signer     *storage.SignedURLSigner
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
	now        func() time.Time
}

// SetMetrics wires optional Prometheus instrumentation.
func (s *ReportService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// NewReportService constructs a ReportService instance.
func NewReportService(
	repo reportRepository,
	complaints reportComplaintSource,
	bookings reportBookingSource,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReportService{
		repo:       repo,
		complaints: complaints,
		bookings:   bookings,
		storage:    store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetQueue wires the worker queue. Called after construction because the
// queue handler needs the service.
func (s *ReportService) SetQueue(queue reportEnqueuer) {
	s.queue = queue
}

// Enqueue persists a report request and queues it for rendering. Staff only.
func (s *ReportService) Enqueue(ctx context.Context, claims *models.JWTClaims, req CreateReportRequest) (*models.ReportJob, error) {
	actor := policy.FromClaims(claims)
	if actor.Role != models.RoleStaff {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may request reports")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "report queue is not running")
	}

	job := &models.ReportJob{
		ID:   uuid.NewString(),
		Type: models.ReportType(req.Type),
		Params: models.ReportJobParams{
			Format:   models.ReportFormat(req.Format),
			Category: req.Category,
			Status:   req.Status,
			From:     req.From,
			To:       req.To,
		},
		Status:      models.ReportStatusQueued,
		RequestedBy: actor.ID,
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "report", Payload: job.ID}); err != nil {
		reason := "failed to enqueue report job"
		if markErr := s.repo.MarkFailed(ctx, job.ID, reason, s.now()); markErr != nil {
			s.logger.Error("failed to mark report job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, reason)
	}

	return job, nil
}

// Get returns job status for the requester, including a signed download
// URL once the job finished. Only the requester and seniors may look.
func (s *ReportService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*ReportJobView, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}

	actor := policy.FromClaims(claims)
	if actor.ID != job.RequestedBy && !actor.Senior() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}

	view := &ReportJobView{ReportJob: *job}
	if job.Status == models.ReportStatusFinished && job.FilePath != nil {
		token, expires, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			s.logger.Warn("failed to sign report url", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			view.DownloadURL = fmt.Sprintf("/api/v1/reports/download/%s", token)
			view.URLExpires = &expires
		}
	}
	return view, nil
}

// Download validates a signed token and opens the rendered file.
func (s *ReportService) Download(ctx context.Context, token string) (*os.File, *models.ReportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}

	if job.Status != models.ReportStatusFinished || job.FilePath == nil || *job.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report file not available")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report file missing")
	}
	return file, job, nil
}

// HandleJob is the queue handler: it renders the export and stores the
// result, marking the persisted job along the way.
func (s *ReportService) HandleJob(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok || jobID == "" {
		s.logger.Error("report job with invalid payload", zap.Any("payload", job.Payload))
		return nil
	}

	record, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", jobID, err)
	}

	if err := s.repo.MarkProcessing(ctx, jobID); err != nil {
		return fmt.Errorf("mark report job processing: %w", err)
	}

	relPath, err := s.render(ctx, record)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, jobID, err.Error(), s.now()); markErr != nil {
			s.logger.Error("failed to mark report job failed", zap.String("job_id", jobID), zap.Error(markErr))
		}
		s.metrics.RecordReportJob(string(models.ReportStatusFailed))
		return fmt.Errorf("render report %s: %w", jobID, err)
	}

	if err := s.repo.MarkFinished(ctx, jobID, relPath, s.now()); err != nil {
		return fmt.Errorf("mark report job finished: %w", err)
	}
	s.metrics.RecordReportJob(string(models.ReportStatusFinished))

	s.logger.Info("report rendered",
		zap.String("job_id", jobID),
		zap.String("type", string(record.Type)),
		zap.String("format", string(record.Params.Format)),
		zap.String("file", relPath),
	)
	return nil
}

func (s *ReportService) render(ctx context.Context, record *models.ReportJob) (string, error) {
	var table export.Table
	var err error
	switch record.Type {
	case models.ReportTypeComplaints:
		table, err = s.complaintTable(ctx, record.Params)
	case models.ReportTypeBookings:
		table, err = s.bookingTable(ctx, record.Params)
	default:
		return "", fmt.Errorf("unknown report type %q", record.Type)
	}
	if err != nil {
		return "", err
	}
	table.Title = fmt.Sprintf("%s report", record.Type)

	var payload []byte
	switch record.Params.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(table)
	default:
		payload, err = s.csv.Render(table)
	}
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("reports/%s.%s", record.ID, record.Params.Format)
	return s.storage.Save(filename, payload)
}

func (s *ReportService) complaintTable(ctx context.Context, params models.ReportJobParams) (export.Table, error) {
	filter := models.ComplaintFilter{
		Category: params.Category,
		Status:   params.Status,
		Page:     1,
		PageSize: reportExportPageSize,
	}

	table := export.Table{
		Columns: []string{"ID", "Category", "Priority", "Subject", "Status", "Escalation", "Created", "Resolved"},
	}

	for {
		items, total, err := s.complaints.List(ctx, filter)
		if err != nil {
			return export.Table{}, fmt.Errorf("list complaints: %w", err)
		}
		for i := range items {
			c := &items[i]
			resolved := ""
			if c.ActualResolutionTime != nil {
				resolved = c.ActualResolutionTime.Format(time.RFC3339)
			}
			table.AddRow(
				c.ID,
				c.Category,
				string(c.Priority),
				c.Subject,
				string(c.Status),
				fmt.Sprintf("%d", c.EscalationLevel),
				c.CreatedAt.Format(time.RFC3339),
				resolved,
			)
		}
		if len(table.Rows) >= total || len(items) == 0 {
			break
		}
		filter.Page++
	}

	return table, nil
}

func (s *ReportService) bookingTable(ctx context.Context, params models.ReportJobParams) (export.Table, error) {
	filter := models.BookingFilter{
		Status:   params.Status,
		Page:     1,
		PageSize: reportExportPageSize,
	}

	table := export.Table{
		Columns: []string{"ID", "Purpose", "Start", "End", "Capacity", "Status", "Decided"},
	}

	for {
		items, total, err := s.bookings.List(ctx, filter)
		if err != nil {
			return export.Table{}, fmt.Errorf("list bookings: %w", err)
		}
		for i := range items {
			b := &items[i]
			decided := ""
			if b.DecidedAt != nil {
				decided = b.DecidedAt.Format(time.RFC3339)
			}
			table.AddRow(
				b.ID,
				b.Purpose,
				b.StartTime.Format(time.RFC3339),
				b.EndTime.Format(time.RFC3339),
				fmt.Sprintf("%d", b.Capacity),
				string(b.Status),
				decided,
			)
		}
		if len(table.Rows) >= total || len(items) == 0 {
			break
		}
		filter.Page++
	}

	return table, nil
}
