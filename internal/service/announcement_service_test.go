package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushub/campus-hub-api/internal/models"
	appErrors "github.com/campushub/campus-hub-api/pkg/errors"
)

type mockAnnouncementRepo struct {
	announcements map[string]*models.Announcement
	reads         map[string]map[string]bool
	bookmarks     map[string]map[string]bool
	listCalls     int
	nextID        int
}

func newMockAnnouncementRepo() *mockAnnouncementRepo {
	return &mockAnnouncementRepo{
		announcements: make(map[string]*models.Announcement),
		reads:         make(map[string]map[string]bool),
		bookmarks:     make(map[string]map[string]bool),
	}
}

func (m *mockAnnouncementRepo) List(_ context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	m.listCalls++
	out := make([]models.Announcement, 0)
	for _, a := range m.announcements {
		if a.Status == models.AnnouncementStatusDraft && !filter.IncludeDrafts {
			continue
		}
		if filter.AuthorID != "" && a.AuthorID != filter.AuthorID {
			continue
		}
		if !a.VisibleTo(filter.AudienceTags) {
			continue
		}
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (m *mockAnnouncementRepo) GetByID(_ context.Context, id string) (*models.Announcement, error) {
	a, ok := m.announcements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *a
	return &clone, nil
}

func (m *mockAnnouncementRepo) Create(_ context.Context, announcement *models.Announcement) error {
	m.nextID++
	announcement.ID = fmt.Sprintf("a-%d", m.nextID)
	announcement.CreatedAt = time.Now().UTC()
	clone := *announcement
	m.announcements[announcement.ID] = &clone
	return nil
}

func (m *mockAnnouncementRepo) Update(_ context.Context, announcement *models.Announcement) error {
	if _, ok := m.announcements[announcement.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *announcement
	m.announcements[announcement.ID] = &clone
	return nil
}

func (m *mockAnnouncementRepo) UpdateStatus(_ context.Context, id string, from, to models.AnnouncementStatus, publishedAt *time.Time) (bool, error) {
	a, ok := m.announcements[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	if publishedAt != nil {
		a.PublishedAt = publishedAt
	}
	return true, nil
}

func (m *mockAnnouncementRepo) RecordRead(_ context.Context, announcementID, userID string, _ time.Time) (bool, error) {
	if m.reads[announcementID] == nil {
		m.reads[announcementID] = make(map[string]bool)
	}
	if m.reads[announcementID][userID] {
		return false, nil
	}
	m.reads[announcementID][userID] = true
	return true, nil
}

func (m *mockAnnouncementRepo) ToggleBookmark(_ context.Context, announcementID, userID string) (bool, error) {
	if m.bookmarks[announcementID] == nil {
		m.bookmarks[announcementID] = make(map[string]bool)
	}
	m.bookmarks[announcementID][userID] = !m.bookmarks[announcementID][userID]
	return m.bookmarks[announcementID][userID], nil
}

func (m *mockAnnouncementRepo) Delete(_ context.Context, id string) error {
	delete(m.announcements, id)
	return nil
}

// stubCacheRepo is an in-memory stand-in for the Redis cache repository.
type stubCacheRepo struct {
	store map[string][]byte
	sets  int
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{store: make(map[string][]byte)}
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = raw
	s.sets++
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	s.store = make(map[string][]byte)
	return nil
}

func newAnnouncementService(repo *mockAnnouncementRepo, cache *stubCacheRepo) *AnnouncementService {
	if cache == nil {
		return NewAnnouncementService(repo, nil, &mockAuditor{}, nil, zap.NewNop(), time.Minute)
	}
	return NewAnnouncementService(repo, cache, &mockAuditor{}, nil, zap.NewNop(), time.Minute)
}

func publishAnnouncement(t *testing.T, svc *AnnouncementService, author string, req CreateAnnouncementRequest) *models.Announcement {
	t.Helper()
	req.Publish = true
	announcement, err := svc.Create(context.Background(), staffClaims(author), req)
	require.NoError(t, err)
	return announcement
}

func TestVisibilityTags(t *testing.T) {
	tags := VisibilityTags(studentClaims("student-1"))
	assert.ElementsMatch(t, []string{"all", "students", "cse", "3rd-year"}, tags)

	tags = VisibilityTags(staffClaims("staff-1"))
	assert.ElementsMatch(t, []string{"all", "staff", "cse"}, tags)
}

func TestAnnouncementListCacheAside(t *testing.T) {
	repo := newMockAnnouncementRepo()
	cache := newStubCacheRepo()
	svc := newAnnouncementService(repo, cache)
	ctx := context.Background()

	publishAnnouncement(t, svc, "staff-1", CreateAnnouncementRequest{
		Title:    "Library hours",
		Content:  "Extended until midnight during exams",
		Category: "academic",
	})
	// Publishing invalidated whatever Create cached, so start clean.
	require.Empty(t, cache.store)

	items, pagination, err := svc.List(ctx, studentClaims("student-1"), models.AnnouncementFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 1, cache.sets)

	// Second identical request is served from cache.
	cachedItems, _, err := svc.List(ctx, studentClaims("student-1"), models.AnnouncementFilter{})
	require.NoError(t, err)
	assert.Len(t, cachedItems, 1)
	assert.Equal(t, 1, repo.listCalls)

	// A different visibility scope never shares cache entries.
	_, _, err = svc.List(ctx, staffClaims("staff-1"), models.AnnouncementFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestAnnouncementWriteInvalidatesCache(t *testing.T) {
	repo := newMockAnnouncementRepo()
	cache := newStubCacheRepo()
	svc := newAnnouncementService(repo, cache)
	ctx := context.Background()

	announcement := publishAnnouncement(t, svc, "staff-1", CreateAnnouncementRequest{
		Title:    "Old title",
		Content:  "content",
		Category: "general",
	})

	_, _, err := svc.List(ctx, studentClaims("student-1"), models.AnnouncementFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, cache.store)

	_, err = svc.Update(ctx, staffClaims("staff-1"), announcement.ID, UpdateAnnouncementRequest{
		Title:    "New title",
		Content:  "content",
		Category: "general",
	})
	require.NoError(t, err)
	assert.Empty(t, cache.store)
}

func TestAnnouncementLazyExpiry(t *testing.T) {
	repo := newMockAnnouncementRepo()
	svc := newAnnouncementService(repo, nil)
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour)
	announcement := publishAnnouncement(t, svc, "staff-1", CreateAnnouncementRequest{
		Title:     "Flash sale at the canteen",
		Content:   "today only",
		Category:  "general",
		ExpiresAt: &future,
	})

	// Move the clock past the deadline.
	svc.now = func() time.Time { return future.Add(time.Minute) }

	got, err := svc.Get(ctx, seniorClaims("hod-1"), announcement.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnnouncementStatusExpired, got.Status)
	assert.Equal(t, models.AnnouncementStatusExpired, repo.announcements[announcement.ID].Status)

	// Expired items disappear for regular accounts.
	_, err = svc.Get(ctx, studentClaims("student-1"), announcement.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementDraftVisibility(t *testing.T) {
	repo := newMockAnnouncementRepo()
	svc := newAnnouncementService(repo, nil)
	ctx := context.Background()

	draft, err := svc.Create(ctx, staffClaims("staff-1"), CreateAnnouncementRequest{
		Title:    "Draft notice",
		Content:  "not ready yet",
		Category: "general",
	})
	require.NoError(t, err)
	require.Equal(t, models.AnnouncementStatusDraft, draft.Status)

	// The author sees their draft.
	_, err = svc.Get(ctx, staffClaims("staff-1"), draft.ID)
	require.NoError(t, err)

	// Other accounts get a not-found, not a forbidden.
	_, err = svc.Get(ctx, studentClaims("student-1"), draft.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// Seniors can review any draft.
	_, err = svc.Get(ctx, seniorClaims("hod-1"), draft.ID)
	require.NoError(t, err)

	// IncludeDrafts is scoped to the author's own drafts.
	items, _, err := svc.List(ctx, staffClaims("staff-2"), models.AnnouncementFilter{IncludeDrafts: true})
	require.NoError(t, err)
	assert.Empty(t, items)

	own, _, err := svc.List(ctx, staffClaims("staff-1"), models.AnnouncementFilter{IncludeDrafts: true})
	require.NoError(t, err)
	assert.Len(t, own, 1)
}

func TestAnnouncementAudienceScoping(t *testing.T) {
	repo := newMockAnnouncementRepo()
	svc := newAnnouncementService(repo, nil)
	ctx := context.Background()

	announcement := publishAnnouncement(t, svc, "staff-1", CreateAnnouncementRequest{
		Title:          "ECE lab safety briefing",
		Content:        "mandatory attendance",
		Category:       "academic",
		TargetAudience: []string{"ECE", " ece ", "Students"},
	})
	// Audience tags are lowercased and deduplicated.
	assert.Equal(t, []string{"ece", "students"}, []string(announcement.TargetAudience))

	// A CSE staff member matches neither tag.
	claims := &models.JWTClaims{UserID: "staff-2", Role: models.RoleStaff, Department: "CSE"}
	_, err := svc.Get(ctx, claims, announcement.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// Any student matches the "students" tag.
	_, err = svc.Get(ctx, studentClaims("student-1"), announcement.ID)
	require.NoError(t, err)
}

func TestAnnouncementPublishLifecycle(t *testing.T) {
	repo := newMockAnnouncementRepo()
	svc := newAnnouncementService(repo, nil)
	ctx := context.Background()

	draft, err := svc.Create(ctx, staffClaims("staff-1"), CreateAnnouncementRequest{
		Title:    "Sports day",
		Content:  "grounds booked all day",
		Category: "events",
	})
	require.NoError(t, err)

	// Another staff member cannot publish someone else's draft.
	_, err = svc.Publish(ctx, staffClaims("staff-2"), draft.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	published, err := svc.Publish(ctx, staffClaims("staff-1"), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnnouncementStatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)

	// Publishing twice is a state conflict.
	_, err = svc.Publish(ctx, staffClaims("staff-1"), draft.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)

	archived, err := svc.Archive(ctx, staffClaims("staff-1"), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnnouncementStatusArchived, archived.Status)
}

func TestAnnouncementExpiryInPastRejected(t *testing.T) {
	svc := newAnnouncementService(newMockAnnouncementRepo(), nil)
	past := time.Now().UTC().Add(-time.Hour)
	_, err := svc.Create(context.Background(), staffClaims("staff-1"), CreateAnnouncementRequest{
		Title:     "Stale",
		Content:   "content",
		Category:  "general",
		ExpiresAt: &past,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentCannotCreateAnnouncement(t *testing.T) {
	svc := newAnnouncementService(newMockAnnouncementRepo(), nil)
	_, err := svc.Create(context.Background(), studentClaims("student-1"), CreateAnnouncementRequest{
		Title:    "Hi",
		Content:  "content",
		Category: "general",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMarkReadFirstTimeOnly(t *testing.T) {
	repo := newMockAnnouncementRepo()
	svc := newAnnouncementService(repo, nil)
	ctx := context.Background()

	announcement := publishAnnouncement(t, svc, "staff-1", CreateAnnouncementRequest{
		Title:    "Exam schedule",
		Content:  "posted on the portal",
		Category: "academic",
	})

	first, err := svc.MarkRead(ctx, studentClaims("student-1"), announcement.ID)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := svc.MarkRead(ctx, studentClaims("student-1"), announcement.ID)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestToggleBookmarkFlips(t *testing.T) {
	repo := newMockAnnouncementRepo()
	svc := newAnnouncementService(repo, nil)
	ctx := context.Background()

	announcement := publishAnnouncement(t, svc, "staff-1", CreateAnnouncementRequest{
		Title:    "Hostel wifi upgrade",
		Content:  "downtime this weekend",
		Category: "general",
	})

	on, err := svc.ToggleBookmark(ctx, studentClaims("student-1"), announcement.ID)
	require.NoError(t, err)
	assert.True(t, on)

	off, err := svc.ToggleBookmark(ctx, studentClaims("student-1"), announcement.ID)
	require.NoError(t, err)
	assert.False(t, off)
}
