package models

import "time"

// ComplaintStatus tracks the complaint lifecycle.
type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "pending"
	ComplaintStatusInProgress ComplaintStatus = "in-progress"
	ComplaintStatusResolved   ComplaintStatus = "resolved"
	ComplaintStatusRejected   ComplaintStatus = "rejected"
	ComplaintStatusClosed     ComplaintStatus = "closed"
)

// ComplaintPriority grades complaints for triage.
type ComplaintPriority string

const (
	ComplaintPriorityLow    ComplaintPriority = "low"
	ComplaintPriorityMedium ComplaintPriority = "medium"
	ComplaintPriorityHigh   ComplaintPriority = "high"
)

// MaxEscalationLevel bounds the monotonic escalation counter.
const MaxEscalationLevel = 3

// Complaint represents a student-filed complaint row.
type Complaint struct {
	ID                      string            `db:"id" json:"id"`
	ComplainantID           string            `db:"complainant_id" json:"complainant_id"`
	Category                string            `db:"category" json:"category"`
	Priority                ComplaintPriority `db:"priority" json:"priority"`
	Subject                 string            `db:"subject" json:"subject"`
	Description             string            `db:"description" json:"description"`
	Location                string            `db:"location" json:"location"`
	IsAnonymous             bool              `db:"is_anonymous" json:"is_anonymous"`
	Status                  ComplaintStatus   `db:"status" json:"status"`
	AssigneeID              *string           `db:"assignee_id" json:"assignee_id,omitempty"`
	AssignedAt              *time.Time        `db:"assigned_at" json:"assigned_at,omitempty"`
	EscalationLevel         int               `db:"escalation_level" json:"escalation_level"`
	IsUrgent                bool              `db:"is_urgent" json:"is_urgent"`
	EstimatedResolutionTime *time.Time        `db:"estimated_resolution_time" json:"estimated_resolution_time,omitempty"`
	ActualResolutionTime    *time.Time        `db:"actual_resolution_time" json:"actual_resolution_time,omitempty"`
	RatingScore             *int              `db:"rating_score" json:"rating_score,omitempty"`
	RatingFeedback          *string           `db:"rating_feedback" json:"rating_feedback,omitempty"`
	RatedAt                 *time.Time        `db:"rated_at" json:"rated_at,omitempty"`
	CreatedAt               time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time         `db:"updated_at" json:"updated_at"`
}

// IsOverdue reports whether the estimated resolution time has passed without
// the complaint being resolved. Derived at read time, never stored.
func (c *Complaint) IsOverdue(now time.Time) bool {
	if c.Status == ComplaintStatusResolved || c.Status == ComplaintStatusClosed {
		return false
	}
	return c.EstimatedResolutionTime != nil && now.After(*c.EstimatedResolutionTime)
}

// ComplaintResponse is one entry in a complaint's ordered response thread.
type ComplaintResponse struct {
	ID          string    `db:"id" json:"id"`
	ComplaintID string    `db:"complaint_id" json:"complaint_id"`
	ResponderID string    `db:"responder_id" json:"responder_id"`
	Message     string    `db:"message" json:"message"`
	IsInternal  bool      `db:"is_internal" json:"is_internal"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ComplaintFilter narrows complaint listings. Exactly one of the scope
// fields is set by the visibility filter depending on the requester.
type ComplaintFilter struct {
	ComplainantID       string
	AssignedToOrUnowned string
	Category            string
	Status              string
	Priority            string
	Search              string
	Page                int
	PageSize            int
}

// Normalize clamps paging values to sane bounds.
func (f *ComplaintFilter) Normalize() {
	f.Page, f.PageSize = NormalizePage(f.Page, f.PageSize)
}
