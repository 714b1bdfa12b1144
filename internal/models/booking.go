package models

import "time"

// BookingStatus tracks the booking lifecycle. The approval decision
// (approved/rejected) is terminal; approved bookings may still move to
// completed or cancelled.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusApproved  BookingStatus = "approved"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking represents a session/room booking request.
type Booking struct {
	ID            string        `db:"id" json:"id"`
	RequesterID   string        `db:"requester_id" json:"requester_id"`
	ContactName   string        `db:"contact_name" json:"contact_name"`
	ContactEmail  string        `db:"contact_email" json:"contact_email"`
	ContactPhone  string        `db:"contact_phone" json:"contact_phone"`
	Purpose       string        `db:"purpose" json:"purpose"`
	StartTime     time.Time     `db:"start_time" json:"start_time"`
	EndTime       time.Time     `db:"end_time" json:"end_time"`
	Capacity      int           `db:"capacity" json:"capacity"`
	Status        BookingStatus `db:"status" json:"status"`
	ApproverID    *string       `db:"approver_id" json:"approver_id,omitempty"`
	DecisionNotes *string       `db:"decision_notes" json:"decision_notes,omitempty"`
	DecidedAt     *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Decided reports whether the approval decision has been recorded. Approver
// identity and timestamp are immutable afterwards.
func (b *Booking) Decided() bool {
	return b.DecidedAt != nil
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	RequesterID string
	Status      string
	Page        int
	PageSize    int
}

// Normalize clamps paging values to sane bounds.
func (f *BookingFilter) Normalize() {
	f.Page, f.PageSize = NormalizePage(f.Page, f.PageSize)
}
