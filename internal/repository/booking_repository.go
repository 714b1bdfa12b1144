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

const bookingColumns = `id, requester_id, contact_name, contact_email, contact_phone, purpose, start_time, end_time, capacity, status, approver_id, decision_notes, decided_at, created_at, updated_at`

// BookingRepository provides persistence for session/room bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a new booking in pending state.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	query := `INSERT INTO bookings (id, requester_id, contact_name, contact_email, contact_phone, purpose, start_time, end_time, capacity, status, created_at, updated_at)
VALUES (:id, :requester_id, :contact_name, :contact_email, :contact_phone, :purpose, :start_time, :end_time, :capacity, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// GetByID returns a booking by identifier.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// List returns bookings narrowed by the filter with total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.RequesterID != "" {
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)+1))
		args = append(args, filter.RequesterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_time DESC LIMIT %d OFFSET %d", bookingColumns, whereClause, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + whereClause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// Decide records the approval decision. Conditional on pending status so a
// second decision attempt updates zero rows; approver identity and
// timestamp are therefore written exactly once.
func (r *BookingRepository) Decide(ctx context.Context, id string, to models.BookingStatus, approverID string, notes *string, decidedAt time.Time) (bool, error) {
	const query = `UPDATE bookings SET status = $2, approver_id = $3, decision_notes = $4, decided_at = $5, updated_at = $5
WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, to, approverID, notes, decidedAt)
	if err != nil {
		return false, fmt.Errorf("decide booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decide booking: %w", err)
	}
	return affected == 1, nil
}

// UpdateStatus moves a booking between post-decision states, pinned to the
// expected source status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from, to models.BookingStatus) (bool, error) {
	const query = `UPDATE bookings SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	return affected == 1, nil
}
