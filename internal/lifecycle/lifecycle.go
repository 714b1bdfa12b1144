// Package lifecycle holds the status transition tables for complaints,
// announcements and bookings. Services consult these before any write so
// invalid transitions never reach the store.
package lifecycle

import "github.com/campushub/campus-hub-api/internal/models"

// complaintTransitions maps a target status to the source statuses it may
// be reached from. Closing from any state is a separate senior-staff path,
// see CanCloseComplaint.
var complaintTransitions = map[models.ComplaintStatus][]models.ComplaintStatus{
	models.ComplaintStatusInProgress: {models.ComplaintStatusPending},
	models.ComplaintStatusResolved:   {models.ComplaintStatusInProgress},
	models.ComplaintStatusRejected:   {models.ComplaintStatusInProgress},
	models.ComplaintStatusClosed:     {models.ComplaintStatusResolved, models.ComplaintStatusRejected},
}

// CanComplaintTransition reports whether a regular staff transition from
// one complaint status to another is legal.
func CanComplaintTransition(from, to models.ComplaintStatus) bool {
	allowed, ok := complaintTransitions[to]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// CanCloseComplaint reports whether the actor may move the complaint to
// closed. HOD/Admin may close from any non-closed state.
func CanCloseComplaint(from models.ComplaintStatus, senior bool) bool {
	if from == models.ComplaintStatusClosed {
		return false
	}
	if senior {
		return true
	}
	return CanComplaintTransition(from, models.ComplaintStatusClosed)
}

var announcementTransitions = map[models.AnnouncementStatus][]models.AnnouncementStatus{
	models.AnnouncementStatusPublished: {models.AnnouncementStatusDraft},
	models.AnnouncementStatusArchived:  {models.AnnouncementStatusPublished},
	models.AnnouncementStatusExpired:   {models.AnnouncementStatusPublished},
}

// CanAnnouncementTransition reports whether an announcement status change
// is legal. Expiry never reverses.
func CanAnnouncementTransition(from, to models.AnnouncementStatus) bool {
	allowed, ok := announcementTransitions[to]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

var bookingTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusApproved:  {models.BookingStatusPending},
	models.BookingStatusRejected:  {models.BookingStatusPending},
	models.BookingStatusCompleted: {models.BookingStatusApproved},
	models.BookingStatusCancelled: {models.BookingStatusPending, models.BookingStatusApproved},
}

// CanBookingTransition reports whether a booking status change is legal.
// Approve/reject are only reachable from pending, so a second decision
// attempt always fails here.
func CanBookingTransition(from, to models.BookingStatus) bool {
	allowed, ok := bookingTransitions[to]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// ClampEscalation bounds the escalation counter to [0, MaxEscalationLevel].
func ClampEscalation(level int) int {
	if level < 0 {
		return 0
	}
	if level > models.MaxEscalationLevel {
		return models.MaxEscalationLevel
	}
	return level
}
