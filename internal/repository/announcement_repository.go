package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campushub/campus-hub-api/internal/models"
)

const announcementColumns = `id, title, content, category, priority, status, is_pinned, target_audience, author_id, view_count, published_at, expires_at, created_at, updated_at`

// AnnouncementRepository provides persistence for announcements, their
// read receipts and bookmarks.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// List returns announcements visible under the provided filter. Expired
// items are excluded by timestamp even when the stored status has not yet
// been lazily updated.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	base := "FROM announcements"
	where := []string{}
	args := []interface{}{}

	if filter.IncludeDrafts && filter.AuthorID != "" {
		where = append(where, fmt.Sprintf("(status = 'published' OR author_id = $%d)", len(args)+1))
		args = append(args, filter.AuthorID)
	} else {
		where = append(where, "status = 'published'")
	}
	where = append(where, "(expires_at IS NULL OR expires_at > NOW())")

	if len(filter.AudienceTags) > 0 {
		where = append(where, fmt.Sprintf("target_audience && $%d", len(args)+1))
		args = append(args, pq.Array(filter.AudienceTags))
	}
	if filter.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Priority != "" {
		where = append(where, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, filter.Priority)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(content) LIKE $%d OR EXISTS (SELECT 1 FROM unnest(target_audience) tag WHERE LOWER(tag) LIKE $%d))", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s
%s WHERE %s
ORDER BY is_pinned DESC, %s
LIMIT %d OFFSET %d`, announcementColumns, base, whereClause, sortClause(filter.Sort), size, offset)
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

func sortClause(sort models.AnnouncementSort) string {
	switch sort {
	case models.AnnouncementSortOldest:
		return "created_at ASC"
	case models.AnnouncementSortPriority:
		return "CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END, created_at DESC"
	case models.AnnouncementSortViews:
		return "view_count DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

// GetByID returns an announcement by identifier.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE id = $1`
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		return nil, err
	}
	return &announcement, nil
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now
	query := `INSERT INTO announcements (id, title, content, category, priority, status, is_pinned, target_audience, author_id, view_count, published_at, expires_at, created_at, updated_at)
VALUES (:id, :title, :content, :category, :priority, :status, :is_pinned, :target_audience, :author_id, :view_count, :published_at, :expires_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update modifies content fields of an existing announcement. Author
// identity is never rewritten.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	query := `UPDATE announcements SET title = :title, content = :content, category = :category, priority = :priority,
is_pinned = :is_pinned, target_audience = :target_audience, expires_at = :expires_at, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return nil
}

// UpdateStatus moves an announcement between lifecycle states. The update
// is conditional on the expected current status so concurrent transitions
// fail closed instead of overwriting each other.
func (r *AnnouncementRepository) UpdateStatus(ctx context.Context, id string, from, to models.AnnouncementStatus, publishedAt *time.Time) (bool, error) {
	const query = `UPDATE announcements SET status = $3, published_at = COALESCE($4, published_at), updated_at = $5 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, publishedAt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update announcement status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update announcement status: %w", err)
	}
	return affected == 1, nil
}

// RecordRead stores an idempotent read receipt and bumps the view counter
// only on the first read by the account. Returns whether this was the
// first read.
func (r *AnnouncementRepository) RecordRead(ctx context.Context, announcementID, userID string, readAt time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin read receipt tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO announcement_reads (announcement_id, user_id, read_at) VALUES ($1, $2, $3) ON CONFLICT (announcement_id, user_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, insert, announcementID, userID, readAt)
	if err != nil {
		return false, fmt.Errorf("record read receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record read receipt: %w", err)
	}
	if affected == 0 {
		return false, tx.Commit()
	}

	const bump = `UPDATE announcements SET view_count = view_count + 1 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, announcementID); err != nil {
		return false, fmt.Errorf("increment view count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit read receipt: %w", err)
	}
	return true, nil
}

// ToggleBookmark flips bookmark membership for the account and returns
// whether the announcement is bookmarked afterwards.
func (r *AnnouncementRepository) ToggleBookmark(ctx context.Context, announcementID, userID string) (bool, error) {
	const remove = `DELETE FROM announcement_bookmarks WHERE announcement_id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, remove, announcementID, userID)
	if err != nil {
		return false, fmt.Errorf("remove bookmark: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove bookmark: %w", err)
	}
	if affected > 0 {
		return false, nil
	}

	const insert = `INSERT INTO announcement_bookmarks (announcement_id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, announcementID, userID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("add bookmark: %w", err)
	}
	return true, nil
}

// Delete removes an announcement.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM announcements WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return nil
}
