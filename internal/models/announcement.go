package models

import (
	"time"

	"github.com/lib/pq"
)

// AnnouncementStatus tracks the announcement lifecycle.
type AnnouncementStatus string

const (
	AnnouncementStatusDraft     AnnouncementStatus = "draft"
	AnnouncementStatusPublished AnnouncementStatus = "published"
	AnnouncementStatusArchived  AnnouncementStatus = "archived"
	AnnouncementStatusExpired   AnnouncementStatus = "expired"
)

// AnnouncementPriority defines ordering for announcements.
type AnnouncementPriority string

const (
	AnnouncementPriorityLow    AnnouncementPriority = "low"
	AnnouncementPriorityNormal AnnouncementPriority = "normal"
	AnnouncementPriorityHigh   AnnouncementPriority = "high"
)

// Audience tags accepted in target_audience. Year and department tags
// (e.g. "3rd-year", "cse") are free-form and matched against the account.
const (
	AudienceAll      = "all"
	AudienceStudents = "students"
	AudienceStaff    = "staff"
)

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID             string               `db:"id" json:"id"`
	Title          string               `db:"title" json:"title"`
	Content        string               `db:"content" json:"content"`
	Category       string               `db:"category" json:"category"`
	Priority       AnnouncementPriority `db:"priority" json:"priority"`
	Status         AnnouncementStatus   `db:"status" json:"status"`
	IsPinned       bool                 `db:"is_pinned" json:"is_pinned"`
	TargetAudience pq.StringArray       `db:"target_audience" json:"target_audience"`
	AuthorID       string               `db:"author_id" json:"author_id"`
	ViewCount      int                  `db:"view_count" json:"view_count"`
	PublishedAt    *time.Time           `db:"published_at" json:"published_at,omitempty"`
	ExpiresAt      *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at" json:"updated_at"`
}

// IsExpired derives expiry from the stored timestamp. The status column is
// updated lazily on access, so listings must consult this instead.
func (a *Announcement) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// VisibleTo reports whether the target audience intersects the allowed tags.
func (a *Announcement) VisibleTo(allowedTags []string) bool {
	if len(a.TargetAudience) == 0 {
		return true
	}
	allowed := make(map[string]struct{}, len(allowedTags))
	for _, tag := range allowedTags {
		allowed[tag] = struct{}{}
	}
	for _, tag := range a.TargetAudience {
		if _, ok := allowed[tag]; ok {
			return true
		}
	}
	return false
}

// AnnouncementSort enumerates the supported listing sort keys.
type AnnouncementSort string

const (
	AnnouncementSortNewest   AnnouncementSort = "newest"
	AnnouncementSortOldest   AnnouncementSort = "oldest"
	AnnouncementSortPriority AnnouncementSort = "priority"
	AnnouncementSortViews    AnnouncementSort = "views"
)

// AnnouncementFilter narrows listing queries. AudienceTags is derived from
// the requester by the visibility filter, never taken from client input.
type AnnouncementFilter struct {
	AudienceTags  []string
	AuthorID      string
	Category      string
	Priority      string
	Search        string
	IncludeDrafts bool
	Page          int
	PageSize      int
	Sort          AnnouncementSort
}

// Normalize clamps paging values to sane bounds.
func (f *AnnouncementFilter) Normalize() {
	f.Page, f.PageSize = NormalizePage(f.Page, f.PageSize)
}

// AnnouncementRead is a per-user read receipt.
type AnnouncementRead struct {
	AnnouncementID string    `db:"announcement_id" json:"announcement_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	ReadAt         time.Time `db:"read_at" json:"read_at"`
}
