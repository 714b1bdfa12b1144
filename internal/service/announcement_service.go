package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/campus-hub-api/internal/lifecycle"
	"github.com/campushub/campus-hub-api/internal/models"
	"github.com/campushub/campus-hub-api/internal/policy"
	appErrors "github.com/campushub/campus-hub-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	UpdateStatus(ctx context.Context, id string, from, to models.AnnouncementStatus, publishedAt *time.Time) (bool, error)
	RecordRead(ctx context.Context, announcementID, userID string, readAt time.Time) (bool, error)
	ToggleBookmark(ctx context.Context, announcementID, userID string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type announcementCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type announcementAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateAnnouncementRequest is the payload for creating an announcement.
type CreateAnnouncementRequest struct {
	Title          string     `json:"title" validate:"required,max=200"`
	Content        string     `json:"content" validate:"required"`
	Category       string     `json:"category" validate:"required"`
	Priority       string     `json:"priority" validate:"omitempty,oneof=low normal high"`
	IsPinned       bool       `json:"is_pinned"`
	TargetAudience []string   `json:"target_audience"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Publish        bool       `json:"publish"`
}

// UpdateAnnouncementRequest is the payload for editing an announcement.
type UpdateAnnouncementRequest struct {
	Title          string     `json:"title" validate:"required,max=200"`
	Content        string     `json:"content" validate:"required"`
	Category       string     `json:"category" validate:"required"`
	Priority       string     `json:"priority" validate:"omitempty,oneof=low normal high"`
	IsPinned       bool       `json:"is_pinned"`
	TargetAudience []string   `json:"target_audience"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

type announcementListPage struct {
	Items      []models.Announcement `json:"items"`
	Pagination *models.Pagination    `json:"pagination"`
}

// AnnouncementService provides announcement use cases. Listings are served
// through a cache-aside Redis layer keyed by filter; any write invalidates
// the whole listing keyspace.
type AnnouncementService struct {
	repo      announcementRepository
	cache     announcementCache
	audit     announcementAuditor
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cacheTTL  time.Duration
	now       func() time.Time
}

// SetMetrics wires optional Prometheus instrumentation.
func (s *AnnouncementService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// NewAnnouncementService constructs an AnnouncementService instance.
func NewAnnouncementService(repo announcementRepository, cache announcementCache, audit announcementAuditor, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AnnouncementService{
		repo:      repo,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// VisibilityTags derives the audience tags an account is allowed to see.
// Tags come from the resolved credential, never from client input.
func VisibilityTags(claims *models.JWTClaims) []string {
	tags := []string{models.AudienceAll}
	switch claims.Role {
	case models.RoleStudent:
		tags = append(tags, models.AudienceStudents)
	case models.RoleStaff:
		tags = append(tags, models.AudienceStaff)
	}
	if claims.Department != "" {
		tags = append(tags, strings.ToLower(claims.Department))
	}
	if claims.Year != "" {
		tags = append(tags, strings.ToLower(claims.Year))
	}
	return tags
}

// List returns announcements visible to the requester, cache-aside.
func (s *AnnouncementService) List(ctx context.Context, claims *models.JWTClaims, filter models.AnnouncementFilter) ([]models.Announcement, *models.Pagination, error) {
	filter.Normalize()
	filter.AudienceTags = VisibilityTags(claims)
	if filter.IncludeDrafts {
		// Draft visibility is limited to the author's own drafts.
		if claims.Role != models.RoleStaff {
			filter.IncludeDrafts = false
		} else {
			filter.AuthorID = claims.UserID
		}
	}

	key := listCacheKey(filter)
	if s.cache != nil {
		var cached announcementListPage
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheLookup(true)
			return cached.Items, cached.Pagination, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("announcement cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, total)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, announcementListPage{Items: items, Pagination: pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("announcement cache write failed", zap.Error(err))
		}
	}

	return items, pagination, nil
}

// Get returns a single announcement the requester may see. Expiry is
// applied lazily here: a published announcement past its expires_at is
// flipped to expired on first access after the deadline.
func (s *AnnouncementService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Announcement, error) {
	announcement, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if announcement.Status == models.AnnouncementStatusPublished && announcement.IsExpired(s.now()) {
		if _, err := s.repo.UpdateStatus(ctx, id, models.AnnouncementStatusPublished, models.AnnouncementStatusExpired, nil); err != nil {
			s.logger.Warn("failed to mark announcement expired", zap.String("id", id), zap.Error(err))
		} else {
			s.invalidateListings(ctx)
		}
		announcement.Status = models.AnnouncementStatusExpired
	}

	actor := policy.FromClaims(claims)
	if announcement.Status != models.AnnouncementStatusPublished {
		// Non-published items are only visible to the author and seniors.
		if actor.ID != announcement.AuthorID && !actor.Senior() {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return announcement, nil
	}

	if !announcement.VisibleTo(VisibilityTags(claims)) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}
	return announcement, nil
}

// Create creates a draft, or publishes immediately when requested.
func (s *AnnouncementService) Create(ctx context.Context, claims *models.JWTClaims, req CreateAnnouncementRequest) (*models.Announcement, error) {
	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionCreateAnnouncement, policy.Resource{}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be in the future")
	}

	priority := models.AnnouncementPriority(req.Priority)
	if priority == "" {
		priority = models.AnnouncementPriorityNormal
	}
	audience := normalizeAudience(req.TargetAudience)

	announcement := &models.Announcement{
		Title:          req.Title,
		Content:        req.Content,
		Category:       req.Category,
		Priority:       priority,
		Status:         models.AnnouncementStatusDraft,
		IsPinned:       req.IsPinned,
		TargetAudience: audience,
		AuthorID:       actor.ID,
		ExpiresAt:      req.ExpiresAt,
	}
	if req.Publish {
		now := s.now()
		announcement.Status = models.AnnouncementStatusPublished
		announcement.PublishedAt = &now
	}

	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	if req.Publish {
		s.metrics.RecordAnnouncementPublished()
		s.invalidateListings(ctx)
	}
	return announcement, nil
}

// Publish moves a draft to published.
func (s *AnnouncementService) Publish(ctx context.Context, claims *models.JWTClaims, id string) (*models.Announcement, error) {
	announcement, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionEditAnnouncement, policy.Resource{OwnerID: announcement.AuthorID}); err != nil {
		return nil, err
	}
	if !lifecycle.CanAnnouncementTransition(announcement.Status, models.AnnouncementStatusPublished) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("cannot publish announcement in status %q", announcement.Status))
	}

	now := s.now()
	updated, err := s.repo.UpdateStatus(ctx, id, announcement.Status, models.AnnouncementStatusPublished, &now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish announcement")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "announcement changed state concurrently")
	}

	announcement.Status = models.AnnouncementStatusPublished
	announcement.PublishedAt = &now
	s.metrics.RecordAnnouncementPublished()
	s.invalidateListings(ctx)
	return announcement, nil
}

// Archive moves a published announcement to archived.
func (s *AnnouncementService) Archive(ctx context.Context, claims *models.JWTClaims, id string) (*models.Announcement, error) {
	announcement, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionEditAnnouncement, policy.Resource{OwnerID: announcement.AuthorID}); err != nil {
		return nil, err
	}
	if !lifecycle.CanAnnouncementTransition(announcement.Status, models.AnnouncementStatusArchived) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("cannot archive announcement in status %q", announcement.Status))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, announcement.Status, models.AnnouncementStatusArchived, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive announcement")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "announcement changed state concurrently")
	}

	announcement.Status = models.AnnouncementStatusArchived
	s.invalidateListings(ctx)
	return announcement, nil
}

// Update edits the content fields of an announcement.
func (s *AnnouncementService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	announcement, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionEditAnnouncement, policy.Resource{OwnerID: announcement.AuthorID}); err != nil {
		return nil, err
	}

	announcement.Title = req.Title
	announcement.Content = req.Content
	announcement.Category = req.Category
	if req.Priority != "" {
		announcement.Priority = models.AnnouncementPriority(req.Priority)
	}
	announcement.IsPinned = req.IsPinned
	announcement.TargetAudience = normalizeAudience(req.TargetAudience)
	announcement.ExpiresAt = req.ExpiresAt

	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.ID,
			Action:     models.AuditActionAnnouncementEdit,
			Resource:   "announcement",
			ResourceID: &id,
		}); err != nil {
			s.logger.Warn("failed to record announcement audit log", zap.Error(err))
		}
	}

	s.invalidateListings(ctx)
	return announcement, nil
}

// Delete removes an announcement permanently.
func (s *AnnouncementService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	announcement, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}

	actor := policy.FromClaims(claims)
	if err := policy.Check(actor, policy.ActionDeleteAnnouncement, policy.Resource{OwnerID: announcement.AuthorID}); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}

	s.invalidateListings(ctx)
	return nil
}

// MarkRead records a read receipt. The first read from an account bumps
// the view counter; repeats are no-ops.
func (s *AnnouncementService) MarkRead(ctx context.Context, claims *models.JWTClaims, id string) (bool, error) {
	if _, err := s.Get(ctx, claims, id); err != nil {
		return false, err
	}

	firstRead, err := s.repo.RecordRead(ctx, id, claims.UserID, s.now())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record read receipt")
	}
	if firstRead {
		s.invalidateListings(ctx)
	}
	return firstRead, nil
}

// ToggleBookmark flips the bookmark flag for the requester, returning the
// new state.
func (s *AnnouncementService) ToggleBookmark(ctx context.Context, claims *models.JWTClaims, id string) (bool, error) {
	if _, err := s.Get(ctx, claims, id); err != nil {
		return false, err
	}

	bookmarked, err := s.repo.ToggleBookmark(ctx, id, claims.UserID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle bookmark")
	}
	return bookmarked, nil
}

func (s *AnnouncementService) fetch(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

func (s *AnnouncementService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "announcements:list:*"); err != nil {
		s.logger.Warn("failed to invalidate announcement cache", zap.Error(err))
	}
}

func normalizeAudience(tags []string) []string {
	if len(tags) == 0 {
		return []string{models.AudienceAll}
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return []string{models.AudienceAll}
	}
	return out
}

func listCacheKey(filter models.AnnouncementFilter) string {
	return fmt.Sprintf("announcements:list:%s|%s|%s|%s|%s|%t|%d|%d|%s",
		strings.Join(filter.AudienceTags, ","),
		filter.AuthorID,
		filter.Category,
		filter.Priority,
		filter.Search,
		filter.IncludeDrafts,
		filter.Page,
		filter.PageSize,
		filter.Sort,
	)
}
