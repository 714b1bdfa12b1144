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

type mockComplaintRepo struct {
	complaints map[string]*models.Complaint
	responses  []models.ComplaintResponse
	nextID     int

	// loseRace makes the next conditional status write report zero rows.
	loseRace bool
}

func newMockComplaintRepo() *mockComplaintRepo {
	return &mockComplaintRepo{complaints: make(map[string]*models.Complaint)}
}

func (m *mockComplaintRepo) Create(_ context.Context, complaint *models.Complaint) error {
	m.nextID++
	complaint.ID = fmt.Sprintf("c-%d", m.nextID)
	complaint.CreatedAt = time.Now().UTC()
	clone := *complaint
	m.complaints[complaint.ID] = &clone
	return nil
}

func (m *mockComplaintRepo) GetByID(_ context.Context, id string) (*models.Complaint, error) {
	complaint, ok := m.complaints[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *complaint
	return &clone, nil
}

func (m *mockComplaintRepo) List(_ context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	out := make([]models.Complaint, 0)
	for _, c := range m.complaints {
		if filter.ComplainantID != "" && c.ComplainantID != filter.ComplainantID {
			continue
		}
		if filter.AssignedToOrUnowned != "" {
			if c.AssigneeID != nil && *c.AssigneeID != filter.AssignedToOrUnowned {
				continue
			}
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockComplaintRepo) UpdateStatus(_ context.Context, complaint *models.Complaint, from models.ComplaintStatus) (bool, error) {
	if m.loseRace {
		m.loseRace = false
		return false, nil
	}
	stored, ok := m.complaints[complaint.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	clone := *complaint
	m.complaints[complaint.ID] = &clone
	return true, nil
}

func (m *mockComplaintRepo) UpdateEscalation(_ context.Context, id string, level int, urgent bool) error {
	stored, ok := m.complaints[id]
	if !ok {
		return sql.ErrNoRows
	}
	stored.EscalationLevel = level
	stored.IsUrgent = urgent
	return nil
}

func (m *mockComplaintRepo) Rate(_ context.Context, id string, score int, feedback *string, ratedAt time.Time) (bool, error) {
	stored, ok := m.complaints[id]
	if !ok {
		return false, nil
	}
	if stored.Status != models.ComplaintStatusResolved || stored.RatingScore != nil {
		return false, nil
	}
	stored.RatingScore = &score
	stored.RatingFeedback = feedback
	stored.RatedAt = &ratedAt
	return true, nil
}

func (m *mockComplaintRepo) AddResponse(_ context.Context, resp *models.ComplaintResponse) error {
	resp.ID = fmt.Sprintf("r-%d", len(m.responses)+1)
	resp.CreatedAt = time.Now().UTC()
	m.responses = append(m.responses, *resp)
	return nil
}

func (m *mockComplaintRepo) ListResponses(_ context.Context, complaintID string, includeInternal bool) ([]models.ComplaintResponse, error) {
	out := make([]models.ComplaintResponse, 0)
	for _, r := range m.responses {
		if r.ComplaintID != complaintID {
			continue
		}
		if r.IsInternal && !includeInternal {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type mockAuditor struct {
	logs []models.AuditLog
}

func (m *mockAuditor) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, Department: "CSE", Year: "3rd-year"}
}

func staffClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStaff, Department: "CSE"}
}

func seniorClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStaff, Designation: models.DesignationHOD}
}

func newComplaintService(repo *mockComplaintRepo) *ComplaintService {
	return NewComplaintService(repo, &mockAuditor{}, nil, zap.NewNop())
}

func fileComplaint(t *testing.T, svc *ComplaintService, owner string, anonymous bool) *models.Complaint {
	t.Helper()
	complaint, err := svc.Create(context.Background(), studentClaims(owner), CreateComplaintRequest{
		Category:    "hostel",
		Subject:     "Broken heater",
		Description: "Room 204 heater has been out for a week",
		Location:    "Block B, Room 204",
		IsAnonymous: anonymous,
	})
	require.NoError(t, err)
	return complaint
}

func TestComplaintRequiresLocation(t *testing.T) {
	svc := newComplaintService(newMockComplaintRepo())
	_, err := svc.Create(context.Background(), studentClaims("student-1"), CreateComplaintRequest{
		Category:    "hostel",
		Subject:     "Broken heater",
		Description: "Room 204 heater has been out for a week",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestComplaintLifecycleFlow(t *testing.T) {
	repo := newMockComplaintRepo()
	svc := newComplaintService(repo)
	ctx := context.Background()

	complaint := fileComplaint(t, svc, "student-1", false)
	assert.Equal(t, models.ComplaintStatusPending, complaint.Status)
	assert.Equal(t, models.ComplaintPriorityMedium, complaint.Priority)

	// Moving to in-progress assigns the acting staff member.
	updated, err := svc.UpdateStatus(ctx, staffClaims("staff-1"), complaint.ID, UpdateComplaintStatusRequest{Status: "in-progress"})
	require.NoError(t, err)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, "staff-1", *updated.AssigneeID)
	assert.NotNil(t, updated.AssignedAt)

	// Resolving stamps the actual resolution time.
	resolved, err := svc.UpdateStatus(ctx, staffClaims("staff-1"), complaint.ID, UpdateComplaintStatusRequest{Status: "resolved"})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusResolved, resolved.Status)
	assert.NotNil(t, resolved.ActualResolutionTime)

	// The complainant rates the resolution once.
	rated, err := svc.Rate(ctx, studentClaims("student-1"), complaint.ID, RateComplaintRequest{Score: 4})
	require.NoError(t, err)
	require.NotNil(t, rated.RatingScore)
	assert.Equal(t, 4, *rated.RatingScore)

	// Second rating attempt hits the resolved-and-unrated gate.
	_, err = svc.Rate(ctx, studentClaims("student-1"), complaint.ID, RateComplaintRequest{Score: 5})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestComplaintStatusBlockedForOtherStaff(t *testing.T) {
	repo := newMockComplaintRepo()
	svc := newComplaintService(repo)
	ctx := context.Background()

	complaint := fileComplaint(t, svc, "student-1", false)
	_, err := svc.UpdateStatus(ctx, staffClaims("staff-1"), complaint.ID, UpdateComplaintStatusRequest{Status: "in-progress"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, staffClaims("staff-2"), complaint.ID, UpdateComplaintStatusRequest{Status: "resolved"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// A senior overrides the assignment restriction.
	_, err = svc.UpdateStatus(ctx, seniorClaims("hod-1"), complaint.ID, UpdateComplaintStatusRequest{Status: "resolved"})
	assert.NoError(t, err)
}

func TestComplaintInvalidTransition(t *testing.T) {
	repo := newMockComplaintRepo()
	svc := newComplaintService(repo)

	complaint := fileComplaint(t, svc, "student-1", false)
	_, err := svc.UpdateStatus(context.Background(), staffClaims("staff-1"), complaint.ID, UpdateComplaintStatusRequest{Status: "resolved"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestSeniorClosesFromAnyState(t *testing.T) {
	repo := newMockComplaintRepo()
	svc := newComplaintService(repo)
	ctx := context.Background()

	complaint := fileComplaint(t, svc, "student-1", false)

	// Regular staff cannot close a pending complaint.
	_, err := svc.UpdateStatus(ctx, staffClaims("staff-1"), complaint.ID, UpdateComplaintStatusRequest{Status: "closed"})
	require.Error(t, err)

	closed, err := svc.UpdateStatus(ctx, seniorClaims("admin-1"), complaint.ID, UpdateComplaintStatusRequest{Status: "closed"})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusClosed, closed.Status)
}

func TestComplaintConcurrentTransitionConflict(t *testing.T) {
	repo := newMockComplaintRepo()
	svc := newComplaintService(repo)
	ctx := context.Background()

	complaint := fileComplaint(t, svc, "student-1", false)

	// Another transition lands between the read and the write.
	repo.loseRace = true

	_, err := svc.UpdateStatus(ctx, staffClaims("staff-1"), complaint.ID, UpdateComplaintStatusRequest{Status: "in-progress"})
	require.Error(t, err)
	conflict := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, conflict.Code)
	assert.Contains(t, conflict.Message, "concurrently")
}

func TestEscalateMonotonicAndUrgent(t *testing.T) {
	repo := newMockComplaintRepo()
	svc := newComplaintService(repo)
	ctx := context.Background()

	complaint := fileComplaint(t, svc, "student-1", false)

	first, err := svc.Escalate(ctx, staffClaims("staff-1"), complaint.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.EscalationLevel)
	assert.True(t, first.IsUrgent)

	second, err := svc.Escalate(ctx, staffClaims("staff-1"), complaint.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.EscalationLevel)

	third, err := svc.Escalate(ctx, staffClaims("staff-1"), complaint.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxEscalationLevel, third.EscalationLevel)

	_, err = svc.Escalate(ctx, staffClaims("staff-1"), complaint.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestAnonymousComplaintMasking(t *testing.T) {
	repo := newMockComplaintRepo()
	svc := newComplaintService(repo)
	ctx := context.Background()

	complaint := fileComplaint(t, svc, "student-1", true)

	// The complainant sees their own identity.
	own, err := svc.Get(ctx, studentClaims("student-1"), complaint.ID)
	require.NoError(t, err)
	assert.Equal(t, "student-1", own.ComplainantID)

	// Staff see the complaint but not the identity.
	forStaff, err := svc.Get(ctx, staffClaims("staff-1"), complaint.ID)
	require.NoError(t, err)
	assert.True(t, forStaff.IsAnonymous)
	assert.Empty(t, forStaff.ComplainantID)
}

func TestComplaintListScoping(t *testing.T) {
	repo := newMockComplaintRepo()
	svc := newComplaintService(repo)
	ctx := context.Background()

	mine := fileComplaint(t, svc, "student-1", false)
	fileComplaint(t, svc, "student-2", false)

	items, _, err := svc.List(ctx, studentClaims("student-1"), models.ComplaintFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].ID)

	all, _, err := svc.List(ctx, seniorClaims("hod-1"), models.ComplaintFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRespondAndThreadFiltering(t *testing.T) {
	repo := newMockComplaintRepo()
	svc := newComplaintService(repo)
	ctx := context.Background()

	complaint := fileComplaint(t, svc, "student-1", false)

	_, err := svc.Respond(ctx, studentClaims("student-1"), complaint.ID, RespondComplaintRequest{Message: "Any update?"})
	require.NoError(t, err)

	// Students cannot post internal notes.
	_, err = svc.Respond(ctx, studentClaims("student-1"), complaint.ID, RespondComplaintRequest{Message: "note", IsInternal: true})
	require.Error(t, err)

	_, err = svc.Respond(ctx, staffClaims("staff-1"), complaint.ID, RespondComplaintRequest{Message: "checking with facilities", IsInternal: true})
	require.NoError(t, err)

	// Other students never reach the thread.
	_, err = svc.Responses(ctx, studentClaims("student-2"), complaint.ID)
	require.Error(t, err)

	studentView, err := svc.Responses(ctx, studentClaims("student-1"), complaint.ID)
	require.NoError(t, err)
	assert.Len(t, studentView, 1)

	staffView, err := svc.Responses(ctx, staffClaims("staff-2"), complaint.ID)
	require.NoError(t, err)
	assert.Len(t, staffView, 2)
}

func TestRespondClosedComplaintRejected(t *testing.T) {
	repo := newMockComplaintRepo()
	svc := newComplaintService(repo)
	ctx := context.Background()

	complaint := fileComplaint(t, svc, "student-1", false)
	repo.complaints[complaint.ID].Status = models.ComplaintStatusClosed

	_, err := svc.Respond(ctx, studentClaims("student-1"), complaint.ID, RespondComplaintRequest{Message: "reopening?"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestStaffCannotFileComplaint(t *testing.T) {
	svc := newComplaintService(newMockComplaintRepo())
	_, err := svc.Create(context.Background(), staffClaims("staff-1"), CreateComplaintRequest{
		Category:    "hostel",
		Subject:     "subject",
		Description: "description",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
