package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushub/campus-hub-api/internal/models"
	appErrors "github.com/campushub/campus-hub-api/pkg/errors"
)

type mockBookingRepo struct {
	bookings map[string]*models.Booking
	nextID   int
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{bookings: make(map[string]*models.Booking)}
}

func (m *mockBookingRepo) Create(_ context.Context, booking *models.Booking) error {
	m.nextID++
	booking.ID = fmt.Sprintf("b-%d", m.nextID)
	booking.CreatedAt = time.Now().UTC()
	clone := *booking
	m.bookings[booking.ID] = &clone
	return nil
}

func (m *mockBookingRepo) GetByID(_ context.Context, id string) (*models.Booking, error) {
	booking, ok := m.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *booking
	return &clone, nil
}

func (m *mockBookingRepo) List(_ context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	out := make([]models.Booking, 0)
	for _, b := range m.bookings {
		if filter.RequesterID != "" && b.RequesterID != filter.RequesterID {
			continue
		}
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *mockBookingRepo) Decide(_ context.Context, id string, to models.BookingStatus, approverID string, notes *string, decidedAt time.Time) (bool, error) {
	booking, ok := m.bookings[id]
	if !ok || booking.Status != models.BookingStatusPending {
		return false, nil
	}
	booking.Status = to
	booking.ApproverID = &approverID
	booking.DecisionNotes = notes
	booking.DecidedAt = &decidedAt
	return true, nil
}

func (m *mockBookingRepo) UpdateStatus(_ context.Context, id string, from, to models.BookingStatus) (bool, error) {
	booking, ok := m.bookings[id]
	if !ok || booking.Status != from {
		return false, nil
	}
	booking.Status = to
	return true, nil
}

func newBookingService(repo *mockBookingRepo) *BookingService {
	return NewBookingService(repo, &mockAuditor{}, nil, zap.NewNop())
}

func requestBooking(t *testing.T, svc *BookingService, requester string) *models.Booking {
	t.Helper()
	start := time.Now().UTC().Add(24 * time.Hour)
	booking, err := svc.Create(context.Background(), studentClaims(requester), CreateBookingRequest{
		ContactName:  "Ravi Kumar",
		ContactEmail: "ravi@example.edu",
		Purpose:      "Robotics club meetup",
		StartTime:    start,
		EndTime:      start.Add(2 * time.Hour),
		Capacity:     40,
	})
	require.NoError(t, err)
	return booking
}

func TestBookingDecisionFlow(t *testing.T) {
	repo := newMockBookingRepo()
	svc := newBookingService(repo)
	ctx := context.Background()

	booking := requestBooking(t, svc, "student-1")
	assert.Equal(t, models.BookingStatusPending, booking.Status)

	approved, err := svc.Decide(ctx, staffClaims("staff-1"), booking.ID, DecideBookingRequest{Approve: true, Notes: "hall A reserved"})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusApproved, approved.Status)
	require.NotNil(t, approved.ApproverID)
	assert.Equal(t, "staff-1", *approved.ApproverID)
	require.NotNil(t, approved.DecisionNotes)
	assert.NotNil(t, approved.DecidedAt)

	// A second decision never overwrites the first.
	_, err = svc.Decide(ctx, staffClaims("staff-2"), booking.ID, DecideBookingRequest{Approve: false})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)

	completed, err := svc.Complete(ctx, staffClaims("staff-1"), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, completed.Status)
}

func TestBookingRejection(t *testing.T) {
	repo := newMockBookingRepo()
	svc := newBookingService(repo)

	booking := requestBooking(t, svc, "student-1")
	rejected, err := svc.Decide(context.Background(), staffClaims("staff-1"), booking.ID, DecideBookingRequest{Approve: false, Notes: "hall unavailable"})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusRejected, rejected.Status)

	// Rejected is terminal.
	_, err = svc.Complete(context.Background(), staffClaims("staff-1"), booking.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentCannotDecideBooking(t *testing.T) {
	repo := newMockBookingRepo()
	svc := newBookingService(repo)

	booking := requestBooking(t, svc, "student-1")
	_, err := svc.Decide(context.Background(), studentClaims("student-2"), booking.ID, DecideBookingRequest{Approve: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestBookingCancelRules(t *testing.T) {
	repo := newMockBookingRepo()
	svc := newBookingService(repo)
	ctx := context.Background()

	booking := requestBooking(t, svc, "student-1")

	// Another student cannot cancel someone else's booking.
	_, err := svc.Cancel(ctx, studentClaims("student-2"), booking.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	cancelled, err := svc.Cancel(ctx, studentClaims("student-1"), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)

	// Cancelled is terminal.
	_, err = svc.Decide(ctx, staffClaims("staff-1"), booking.ID, DecideBookingRequest{Approve: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestBookingCancelApproved(t *testing.T) {
	repo := newMockBookingRepo()
	svc := newBookingService(repo)
	ctx := context.Background()

	booking := requestBooking(t, svc, "student-1")
	_, err := svc.Decide(ctx, staffClaims("staff-1"), booking.ID, DecideBookingRequest{Approve: true})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, staffClaims("staff-1"), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
}

func TestBookingValidation(t *testing.T) {
	svc := newBookingService(newMockBookingRepo())
	ctx := context.Background()
	start := time.Now().UTC().Add(24 * time.Hour)

	// End before start.
	_, err := svc.Create(ctx, studentClaims("student-1"), CreateBookingRequest{
		ContactName:  "Ravi Kumar",
		ContactEmail: "ravi@example.edu",
		Purpose:      "meetup",
		StartTime:    start,
		EndTime:      start.Add(-time.Hour),
		Capacity:     10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// Start in the past.
	past := time.Now().UTC().Add(-time.Hour)
	_, err = svc.Create(ctx, studentClaims("student-1"), CreateBookingRequest{
		ContactName:  "Ravi Kumar",
		ContactEmail: "ravi@example.edu",
		Purpose:      "meetup",
		StartTime:    past,
		EndTime:      past.Add(2 * time.Hour),
		Capacity:     10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookingListScoping(t *testing.T) {
	repo := newMockBookingRepo()
	svc := newBookingService(repo)
	ctx := context.Background()

	mine := requestBooking(t, svc, "student-1")
	requestBooking(t, svc, "student-2")

	items, _, err := svc.List(ctx, studentClaims("student-1"), models.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].ID)

	all, _, err := svc.List(ctx, staffClaims("staff-1"), models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Requesters only see their own bookings by ID as well.
	_, err = svc.Get(ctx, studentClaims("student-2"), mine.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
