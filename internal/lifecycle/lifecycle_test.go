package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campushub/campus-hub-api/internal/models"
)

func TestComplaintTransitions(t *testing.T) {
	cases := []struct {
		from, to models.ComplaintStatus
		want     bool
	}{
		{models.ComplaintStatusPending, models.ComplaintStatusInProgress, true},
		{models.ComplaintStatusInProgress, models.ComplaintStatusResolved, true},
		{models.ComplaintStatusInProgress, models.ComplaintStatusRejected, true},
		{models.ComplaintStatusResolved, models.ComplaintStatusClosed, true},
		{models.ComplaintStatusRejected, models.ComplaintStatusClosed, true},
		{models.ComplaintStatusPending, models.ComplaintStatusResolved, false},
		{models.ComplaintStatusResolved, models.ComplaintStatusInProgress, false},
		{models.ComplaintStatusClosed, models.ComplaintStatusInProgress, false},
		{models.ComplaintStatusPending, models.ComplaintStatusClosed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanComplaintTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanCloseComplaint(t *testing.T) {
	// Regular staff close only from resolved or rejected.
	assert.True(t, CanCloseComplaint(models.ComplaintStatusResolved, false))
	assert.True(t, CanCloseComplaint(models.ComplaintStatusRejected, false))
	assert.False(t, CanCloseComplaint(models.ComplaintStatusPending, false))
	assert.False(t, CanCloseComplaint(models.ComplaintStatusInProgress, false))

	// Seniors close from any non-closed state.
	assert.True(t, CanCloseComplaint(models.ComplaintStatusPending, true))
	assert.True(t, CanCloseComplaint(models.ComplaintStatusInProgress, true))
	assert.False(t, CanCloseComplaint(models.ComplaintStatusClosed, true))
}

func TestAnnouncementTransitions(t *testing.T) {
	assert.True(t, CanAnnouncementTransition(models.AnnouncementStatusDraft, models.AnnouncementStatusPublished))
	assert.True(t, CanAnnouncementTransition(models.AnnouncementStatusPublished, models.AnnouncementStatusArchived))
	assert.True(t, CanAnnouncementTransition(models.AnnouncementStatusPublished, models.AnnouncementStatusExpired))
	assert.False(t, CanAnnouncementTransition(models.AnnouncementStatusExpired, models.AnnouncementStatusPublished))
	assert.False(t, CanAnnouncementTransition(models.AnnouncementStatusArchived, models.AnnouncementStatusPublished))
	assert.False(t, CanAnnouncementTransition(models.AnnouncementStatusDraft, models.AnnouncementStatusArchived))
}

func TestBookingTransitions(t *testing.T) {
	assert.True(t, CanBookingTransition(models.BookingStatusPending, models.BookingStatusApproved))
	assert.True(t, CanBookingTransition(models.BookingStatusPending, models.BookingStatusRejected))
	assert.True(t, CanBookingTransition(models.BookingStatusApproved, models.BookingStatusCompleted))
	assert.True(t, CanBookingTransition(models.BookingStatusPending, models.BookingStatusCancelled))
	assert.True(t, CanBookingTransition(models.BookingStatusApproved, models.BookingStatusCancelled))

	// A decision is terminal: no second decision, no undo.
	assert.False(t, CanBookingTransition(models.BookingStatusApproved, models.BookingStatusRejected))
	assert.False(t, CanBookingTransition(models.BookingStatusRejected, models.BookingStatusApproved))
	assert.False(t, CanBookingTransition(models.BookingStatusCancelled, models.BookingStatusApproved))
	assert.False(t, CanBookingTransition(models.BookingStatusCompleted, models.BookingStatusCancelled))
}

func TestClampEscalation(t *testing.T) {
	assert.Equal(t, 0, ClampEscalation(-1))
	assert.Equal(t, 2, ClampEscalation(2))
	assert.Equal(t, models.MaxEscalationLevel, ClampEscalation(models.MaxEscalationLevel+5))
}
