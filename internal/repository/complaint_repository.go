package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/campus-hub-api/internal/models"
)

const complaintColumns = `id, complainant_id, category, priority, subject, description, location, is_anonymous, status, assignee_id, assigned_at, escalation_level, is_urgent, estimated_resolution_time, actual_resolution_time, rating_score, rating_feedback, rated_at, created_at, updated_at`

// ComplaintRepository provides persistence for complaints and their
// response threads.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository creates the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts a new complaint in pending state.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = now
	}
	complaint.UpdatedAt = now
	query := `INSERT INTO complaints (id, complainant_id, category, priority, subject, description, location, is_anonymous, status, escalation_level, is_urgent, created_at, updated_at)
VALUES (:id, :complainant_id, :category, :priority, :subject, :description, :location, :is_anonymous, :status, :escalation_level, :is_urgent, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, complaint); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// GetByID returns a complaint by identifier.
func (r *ComplaintRepository) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, query, id); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// List returns complaints narrowed by the filter with total count.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	base := "FROM complaints WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ComplainantID != "" {
		conditions = append(conditions, fmt.Sprintf("complainant_id = $%d", len(args)+1))
		args = append(args, filter.ComplainantID)
	}
	if filter.AssignedToOrUnowned != "" {
		conditions = append(conditions, fmt.Sprintf("(assignee_id = $%d OR assignee_id IS NULL)", len(args)+1))
		args = append(args, filter.AssignedToOrUnowned)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, filter.Priority)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(subject) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	whereClause := base
	if len(conditions) > 0 {
		whereClause += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY is_urgent DESC, created_at DESC LIMIT %d OFFSET %d", complaintColumns, whereClause, size, offset)
	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + whereClause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}
	return complaints, total, nil
}

// UpdateStatus persists a status transition along with the assignment and
// resolution fields the transition touched. The WHERE clause pins the
// expected source status, so a racing transition leaves zero rows updated.
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, complaint *models.Complaint, from models.ComplaintStatus) (bool, error) {
	complaint.UpdatedAt = time.Now().UTC()
	const query = `UPDATE complaints SET status = $3, assignee_id = $4, assigned_at = $5, estimated_resolution_time = $6, actual_resolution_time = $7, updated_at = $8
WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query,
		complaint.ID, from, complaint.Status,
		complaint.AssigneeID, complaint.AssignedAt,
		complaint.EstimatedResolutionTime, complaint.ActualResolutionTime,
		complaint.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update complaint status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update complaint status: %w", err)
	}
	return affected == 1, nil
}

// UpdateEscalation persists the escalation counter and urgency flag.
func (r *ComplaintRepository) UpdateEscalation(ctx context.Context, id string, level int, urgent bool) error {
	const query = `UPDATE complaints SET escalation_level = $2, is_urgent = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, level, urgent, time.Now().UTC()); err != nil {
		return fmt.Errorf("update complaint escalation: %w", err)
	}
	return nil
}

// Rate attaches a rating. The WHERE clause enforces the resolved-status
// gate and single-rating at the store level as well.
func (r *ComplaintRepository) Rate(ctx context.Context, id string, score int, feedback *string, ratedAt time.Time) (bool, error) {
	const query = `UPDATE complaints SET rating_score = $2, rating_feedback = $3, rated_at = $4, updated_at = $4
WHERE id = $1 AND status = 'resolved' AND rating_score IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, score, feedback, ratedAt)
	if err != nil {
		return false, fmt.Errorf("rate complaint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rate complaint: %w", err)
	}
	return affected == 1, nil
}

// AddResponse appends a response to the complaint thread.
func (r *ComplaintRepository) AddResponse(ctx context.Context, resp *models.ComplaintResponse) error {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO complaint_responses (id, complaint_id, responder_id, message, is_internal, created_at)
VALUES (:id, :complaint_id, :responder_id, :message, :is_internal, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, resp); err != nil {
		return fmt.Errorf("add complaint response: %w", err)
	}
	return nil
}

// ListResponses returns the ordered response thread. Internal notes are
// filtered out unless requested.
func (r *ComplaintRepository) ListResponses(ctx context.Context, complaintID string, includeInternal bool) ([]models.ComplaintResponse, error) {
	query := `SELECT id, complaint_id, responder_id, message, is_internal, created_at FROM complaint_responses WHERE complaint_id = $1`
	if !includeInternal {
		query += ` AND is_internal = FALSE`
	}
	query += ` ORDER BY created_at ASC`
	var responses []models.ComplaintResponse
	if err := r.db.SelectContext(ctx, &responses, query, complaintID); err != nil {
		return nil, fmt.Errorf("list complaint responses: %w", err)
	}
	return responses, nil
}
